package notifications

import (
	"context"
	"fmt"
	"maps"

	"github.com/kevinmanvar27/distributor-app-sub002/internal/domain"
)

// InboxWriter writes one in-app notification per recipient, independent of
// the push outcome.
type InboxWriter struct {
	store Inbox
}

// NewInboxWriter creates a new inbox writer.
func NewInboxWriter(store Inbox) *InboxWriter {
	return &InboxWriter{store: store}
}

// Persist saves an in-app notification for the user.
func (w *InboxWriter) Persist(ctx context.Context, userID int64, payload Payload) (*domain.Notification, error) {
	payload = payload.withDefaults()

	notification := &domain.Notification{
		UserID:  userID,
		Title:   payload.Title,
		Message: payload.Body,
		Type:    payload.Type,
		Data:    maps.Clone(payload.Data),
	}

	if err := w.store.CreateNotification(ctx, notification); err != nil {
		return nil, fmt.Errorf("save notification for user %d: %w", userID, err)
	}

	return notification, nil
}
