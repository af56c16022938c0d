// Package notifications provides push notification dispatch and scheduling.
package notifications

import (
	"context"
	"time"

	"github.com/kevinmanvar27/distributor-app-sub002/internal/domain"
)

// Inbox stores in-app notification records.
type Inbox interface {
	CreateNotification(ctx context.Context, notification *domain.Notification) error
}

// UserDirectory gives read access to users and groups.
type UserDirectory interface {
	// GetUser returns ErrUserNotFound if the user does not exist.
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	// GetGroupWithMembers returns ErrGroupNotFound if the group does not exist.
	GetGroupWithMembers(ctx context.Context, id int64) (*domain.UserGroup, error)
	// ListUsersPage returns up to query.Limit users with ID > query.AfterID, ordered by ID.
	ListUsersPage(ctx context.Context, query UserPageQuery) ([]domain.User, error)
}

// UserPageQuery selects one page of the user directory.
type UserPageQuery struct {
	AfterID      int64
	Limit        int
	ExcludeRoles []domain.Role
}

// ScheduledRepository defines data access for scheduled notifications.
type ScheduledRepository interface {
	CreateScheduled(ctx context.Context, n *domain.ScheduledNotification) error
	GetScheduled(ctx context.Context, id int64) (*domain.ScheduledNotification, error)
	ListScheduled(ctx context.Context, filter ScheduledFilter) ([]domain.ScheduledNotification, error)

	// ClaimDue leases every pending notification scheduled at or before now
	// that is not leased by another scheduler, to owner until leaseUntil.
	ClaimDue(ctx context.Context, owner string, now, leaseUntil time.Time) ([]domain.ScheduledNotification, error)
	// RenewLease extends owner's lease on a pending notification.
	// Returns ErrLeaseLost if the notification is no longer pending or
	// another scheduler has claimed it since.
	RenewLease(ctx context.Context, id int64, owner string, leaseUntil time.Time) error
	// CompleteScheduled moves a pending notification leased by owner to a
	// terminal status. Returns ErrNotPending otherwise.
	CompleteScheduled(ctx context.Context, id int64, owner string, completion Completion) error
	// CancelScheduled returns ErrScheduledNotFound or ErrNotPending.
	CancelScheduled(ctx context.Context, id int64, at time.Time) error
	// DeleteTerminalBefore removes terminal notifications with sent_at before cutoff.
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)

	GetScheduledStats(ctx context.Context) (*ScheduledStats, error)
}

// Completion is the terminal state written for a processed notification.
type Completion struct {
	Status       domain.ScheduledStatus
	SuccessCount int
	FailCount    int
	ErrorMessage *string
	SentAt       time.Time
}

// ScheduledFilter narrows ListScheduled.
type ScheduledFilter struct {
	Status domain.ScheduledStatus
	Limit  int
}

// ScheduledStats holds scheduled notification counts by status.
type ScheduledStats struct {
	Pending   int64
	Sent      int64
	Failed    int64
	Cancelled int64
}
