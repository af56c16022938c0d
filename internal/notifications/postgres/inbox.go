package postgres

import (
	"context"
	"fmt"

	"github.com/kevinmanvar27/distributor-app-sub002/internal/domain"
)

// CreateNotification stores an in-app notification.
func (r *Repository) CreateNotification(ctx context.Context, n *domain.Notification) error {
	query := `
		INSERT INTO notifications (user_id, title, message, type, data, read)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	data := n.Data
	if data == nil {
		data = map[string]any{}
	}

	err := r.db.QueryRow(ctx, query,
		n.UserID,
		n.Title,
		n.Message,
		n.Type,
		data,
		n.Read,
	).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}
