package notifications

import (
	"context"
	"fmt"
	"iter"

	"github.com/kevinmanvar27/distributor-app-sub002/internal/domain"
)

// DefaultPageSize is the number of users fetched per directory page.
const DefaultPageSize = 100

// StreamUsers lazily walks the user directory page by page using keyset
// pagination on user ID. The cursor only moves forward; iteration stops at the
// first error, which is yielded once.
func StreamUsers(ctx context.Context, directory UserDirectory, query UserPageQuery) iter.Seq2[domain.User, error] {
	if query.Limit <= 0 {
		query.Limit = DefaultPageSize
	}

	return func(yield func(domain.User, error) bool) {
		q := query
		for {
			if err := ctx.Err(); err != nil {
				yield(domain.User{}, err)
				return
			}

			page, err := directory.ListUsersPage(ctx, q)
			if err != nil {
				yield(domain.User{}, fmt.Errorf("list users after %d: %w", q.AfterID, err))
				return
			}

			for _, user := range page {
				if !yield(user, nil) {
					return
				}
			}

			if len(page) < q.Limit {
				return
			}

			lastID := page[len(page)-1].ID
			if lastID <= q.AfterID {
				yield(domain.User{}, fmt.Errorf("user page cursor did not advance past %d", q.AfterID))
				return
			}
			q.AfterID = lastID
		}
	}
}

// usersOf adapts a slice of users to the stream shape used by the dispatcher.
func usersOf(users []domain.User) iter.Seq2[domain.User, error] {
	return func(yield func(domain.User, error) bool) {
		for _, user := range users {
			if !yield(user, nil) {
				return
			}
		}
	}
}
