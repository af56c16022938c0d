package postgres

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/kevinmanvar27/distributor-app-sub002/internal/domain"
	"github.com/kevinmanvar27/distributor-app-sub002/internal/notifications"
)

const scheduledColumns = `
	id, title, body, data, target_type, user_id, user_group_id, scheduled_at, status,
	error_message, success_count, fail_count, sent_at, created_by, created_at, updated_at
`

// CreateScheduled stores a new scheduled notification.
func (r *Repository) CreateScheduled(ctx context.Context, n *domain.ScheduledNotification) error {
	query := `
		INSERT INTO scheduled_notifications
			(title, body, data, target_type, user_id, user_group_id, scheduled_at, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`
	data := n.Data
	if data == nil {
		data = map[string]any{}
	}

	err := r.db.QueryRow(ctx, query,
		n.Title,
		n.Body,
		data,
		n.TargetType,
		n.UserID,
		n.UserGroupID,
		n.ScheduledAt,
		n.Status,
		n.CreatedBy,
	).Scan(&n.ID, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert scheduled notification: %w", err)
	}
	return nil
}

// GetScheduled retrieves a scheduled notification by ID.
func (r *Repository) GetScheduled(ctx context.Context, id int64) (*domain.ScheduledNotification, error) {
	query := `SELECT ` + scheduledColumns + ` FROM scheduled_notifications WHERE id = $1`

	n, err := scanScheduled(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notifications.ErrScheduledNotFound
		}
		return nil, fmt.Errorf("get scheduled notification: %w", err)
	}
	return n, nil
}

// ListScheduled returns scheduled notifications, newest first.
func (r *Repository) ListScheduled(ctx context.Context, filter notifications.ScheduledFilter) ([]domain.ScheduledNotification, error) {
	query := `
		SELECT ` + scheduledColumns + `
		FROM scheduled_notifications
		WHERE ($1::text = '' OR status = $1::text)
		ORDER BY scheduled_at DESC, id DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, string(filter.Status), filter.Limit)
	if err != nil {
		return nil, fmt.Errorf("list scheduled notifications: %w", err)
	}
	return collectScheduled(rows)
}

// ClaimDue leases all due pending notifications that no other scheduler holds.
func (r *Repository) ClaimDue(ctx context.Context, owner string, now, leaseUntil time.Time) ([]domain.ScheduledNotification, error) {
	query := `
		UPDATE scheduled_notifications
		SET locked_until = $2, locked_by = $3, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM scheduled_notifications
			WHERE status = 'pending'
			  AND scheduled_at <= $1
			  AND (locked_until IS NULL OR locked_until <= $1)
			ORDER BY scheduled_at, id
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + scheduledColumns
	rows, err := r.db.Query(ctx, query, now, leaseUntil, owner)
	if err != nil {
		return nil, fmt.Errorf("claim due notifications: %w", err)
	}

	items, err := collectScheduled(rows)
	if err != nil {
		return nil, err
	}

	// RETURNING does not preserve the subquery order.
	sortByScheduledAt(items)
	return items, nil
}

// RenewLease extends the lease owner holds on a pending notification.
func (r *Repository) RenewLease(ctx context.Context, id int64, owner string, leaseUntil time.Time) error {
	query := `
		UPDATE scheduled_notifications
		SET locked_until = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'pending' AND locked_by = $2
	`
	result, err := r.db.Exec(ctx, query, id, owner, leaseUntil)
	if err != nil {
		return fmt.Errorf("renew lease: %w", err)
	}

	if result.RowsAffected() == 0 {
		return notifications.ErrLeaseLost
	}
	return nil
}

// CompleteScheduled writes the terminal state of a notification still leased by owner.
func (r *Repository) CompleteScheduled(ctx context.Context, id int64, owner string, c notifications.Completion) error {
	query := `
		UPDATE scheduled_notifications
		SET status = $3, success_count = $4, fail_count = $5, error_message = $6,
		    sent_at = $7, locked_until = NULL, locked_by = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'pending' AND locked_by = $2
	`
	result, err := r.db.Exec(ctx, query, id, owner, c.Status, c.SuccessCount, c.FailCount, c.ErrorMessage, c.SentAt)
	if err != nil {
		return fmt.Errorf("complete scheduled notification: %w", err)
	}

	if result.RowsAffected() == 0 {
		return notifications.ErrNotPending
	}
	return nil
}

// CancelScheduled cancels a pending notification.
func (r *Repository) CancelScheduled(ctx context.Context, id int64, at time.Time) error {
	query := `
		UPDATE scheduled_notifications
		SET status = 'cancelled', sent_at = $2, locked_until = NULL, locked_by = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`
	result, err := r.db.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("cancel scheduled notification: %w", err)
	}

	if result.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM scheduled_notifications WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check scheduled notification: %w", err)
	}
	if !exists {
		return notifications.ErrScheduledNotFound
	}
	return notifications.ErrNotPending
}

// DeleteTerminalBefore removes terminal notifications that finished before cutoff.
func (r *Repository) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	statuses := make([]string, 0, 3)
	for _, s := range domain.TerminalStatuses() {
		statuses = append(statuses, string(s))
	}

	query := `
		DELETE FROM scheduled_notifications
		WHERE status = ANY($1::text[]) AND sent_at IS NOT NULL AND sent_at < $2
	`
	result, err := r.db.Exec(ctx, query, statuses, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete terminal notifications: %w", err)
	}
	return result.RowsAffected(), nil
}

// GetScheduledStats returns counts by status.
func (r *Repository) GetScheduledStats(ctx context.Context) (*notifications.ScheduledStats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'sent'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COUNT(*) FILTER (WHERE status = 'cancelled')
		FROM scheduled_notifications
	`
	var stats notifications.ScheduledStats
	err := r.db.QueryRow(ctx, query).Scan(&stats.Pending, &stats.Sent, &stats.Failed, &stats.Cancelled)
	if err != nil {
		return nil, fmt.Errorf("get scheduled stats: %w", err)
	}
	return &stats, nil
}

func collectScheduled(rows pgx.Rows) ([]domain.ScheduledNotification, error) {
	defer rows.Close()

	items := make([]domain.ScheduledNotification, 0)
	for rows.Next() {
		n, err := scanScheduled(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scheduled notification: %w", err)
		}
		items = append(items, *n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scheduled notifications: %w", err)
	}
	return items, nil
}

func scanScheduled(row pgx.Row) (*domain.ScheduledNotification, error) {
	var n domain.ScheduledNotification
	err := row.Scan(
		&n.ID,
		&n.Title,
		&n.Body,
		&n.Data,
		&n.TargetType,
		&n.UserID,
		&n.UserGroupID,
		&n.ScheduledAt,
		&n.Status,
		&n.ErrorMessage,
		&n.SuccessCount,
		&n.FailCount,
		&n.SentAt,
		&n.CreatedBy,
		&n.CreatedAt,
		&n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if n.Data == nil {
		n.Data = map[string]any{}
	}
	return &n, nil
}

func sortByScheduledAt(items []domain.ScheduledNotification) {
	slices.SortFunc(items, func(a, b domain.ScheduledNotification) int {
		if c := a.ScheduledAt.Compare(b.ScheduledAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
