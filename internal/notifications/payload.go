package notifications

import (
	"maps"
	"strconv"

	"github.com/kevinmanvar27/distributor-app-sub002/internal/domain"
)

// Payload defaults.
const (
	DefaultTitle = "Notification"
	DefaultType  = "general"

	// ScheduledNotificationType tags records produced by the scheduler.
	ScheduledNotificationType = "scheduled_notification"
)

// Payload is the content of a notification before it is fanned out.
type Payload struct {
	Title string
	Body  string
	Type  string
	Data  map[string]any
}

// withDefaults fills empty fields with their defaults.
func (p Payload) withDefaults() Payload {
	if p.Title == "" {
		p.Title = DefaultTitle
	}
	if p.Type == "" {
		p.Type = DefaultType
	}
	if p.Data == nil {
		p.Data = map[string]any{}
	}
	return p
}

func (p Payload) pushMessage() PushMessage {
	p = p.withDefaults()
	return PushMessage{
		Title: p.Title,
		Body:  p.Body,
		Data:  p.Data,
	}
}

// ScheduledPayload builds the payload for a scheduled notification, injecting
// the scheduler metadata into its data.
func ScheduledPayload(n *domain.ScheduledNotification) Payload {
	data := make(map[string]any, len(n.Data)+2)
	maps.Copy(data, n.Data)
	data["type"] = ScheduledNotificationType
	data["scheduled_notification_id"] = strconv.FormatInt(n.ID, 10)

	return Payload{
		Title: n.Title,
		Body:  n.Body,
		Type:  ScheduledNotificationType,
		Data:  data,
	}
}
