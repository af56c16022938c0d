package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/kevinmanvar27/distributor-app-sub002/internal/domain"
	"github.com/kevinmanvar27/distributor-app-sub002/internal/notifications"
)

const userColumns = `u.id, u.name, u.email, u.role, u.device_token, u.created_at`

// GetUser retrieves a user by ID.
func (r *Repository) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u WHERE u.id = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notifications.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// GetGroupWithMembers retrieves a user group and all of its members.
func (r *Repository) GetGroupWithMembers(ctx context.Context, id int64) (*domain.UserGroup, error) {
	group := &domain.UserGroup{ID: id}

	err := r.db.QueryRow(ctx, `SELECT name FROM user_groups WHERE id = $1`, id).Scan(&group.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notifications.ErrGroupNotFound
		}
		return nil, fmt.Errorf("get user group: %w", err)
	}

	query := `
		SELECT ` + userColumns + `
		FROM users u
		JOIN user_group_members m ON m.user_id = u.id
		WHERE m.user_group_id = $1
		ORDER BY u.id
	`
	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}
	defer rows.Close()

	group.Members = make([]domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan group member: %w", err)
		}
		group.Members = append(group.Members, *user)
	}

	return group, rows.Err()
}

// ListUsersPage returns users with ID greater than query.AfterID, ordered by ID.
func (r *Repository) ListUsersPage(ctx context.Context, query notifications.UserPageQuery) ([]domain.User, error) {
	excluded := make([]string, 0, len(query.ExcludeRoles))
	for _, role := range query.ExcludeRoles {
		excluded = append(excluded, string(role))
	}

	sql := `
		SELECT ` + userColumns + `
		FROM users u
		WHERE u.id > $1 AND NOT (u.role = ANY($3::text[]))
		ORDER BY u.id
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, sql, query.AfterID, query.Limit, excluded)
	if err != nil {
		return nil, fmt.Errorf("list users page: %w", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0, query.Limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *user)
	}

	return users, rows.Err()
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user        domain.User
		deviceToken *string
	)
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Role,
		&deviceToken,
		&user.CreatedAt,
	); err != nil {
		return nil, err
	}
	if deviceToken != nil {
		user.DeviceToken = *deviceToken
	}
	return &user, nil
}
