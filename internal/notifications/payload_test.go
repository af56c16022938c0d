package notifications

import (
	"testing"

	"github.com/kevinmanvar27/distributor-app-sub002/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestScheduledPayload(t *testing.T) {
	n := &domain.ScheduledNotification{
		ID:    42,
		Title: "Flash sale",
		Body:  "Today only",
		Data: map[string]any{
			"screen": "offers",
			"type":   "overwritten",
		},
	}

	p := ScheduledPayload(n)

	assert.Equal(t, "Flash sale", p.Title)
	assert.Equal(t, "Today only", p.Body)
	assert.Equal(t, ScheduledNotificationType, p.Type)
	assert.Equal(t, map[string]any{
		"screen":                    "offers",
		"type":                      ScheduledNotificationType,
		"scheduled_notification_id": "42",
	}, p.Data)

	// The stored record keeps its own data.
	assert.Equal(t, "overwritten", n.Data["type"])
	assert.NotContains(t, n.Data, "scheduled_notification_id")
}

func TestPayload_WithDefaults(t *testing.T) {
	tests := []struct {
		name     string
		payload  Payload
		expected Payload
	}{
		{
			name:     "empty",
			payload:  Payload{},
			expected: Payload{Title: DefaultTitle, Type: DefaultType, Data: map[string]any{}},
		},
		{
			name:     "filled",
			payload:  Payload{Title: "T", Body: "B", Type: "order", Data: map[string]any{"k": "v"}},
			expected: Payload{Title: "T", Body: "B", Type: "order", Data: map[string]any{"k": "v"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.payload.withDefaults())
		})
	}
}
