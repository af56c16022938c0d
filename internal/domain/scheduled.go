package domain

import (
	"errors"
	"time"
)

// TargetType selects the recipients of a scheduled notification.
type TargetType string

// Target types.
const (
	TargetSingleUser TargetType = "single_user"
	TargetGroup      TargetType = "group"
	TargetAllUsers   TargetType = "all_users"
)

// IsValid checks if the target type is known.
func (t TargetType) IsValid() bool {
	switch t {
	case TargetSingleUser, TargetGroup, TargetAllUsers:
		return true
	}
	return false
}

// ScheduledStatus represents the lifecycle state of a scheduled notification.
type ScheduledStatus string

// Scheduled notification statuses.
const (
	ScheduledStatusPending   ScheduledStatus = "pending"
	ScheduledStatusSent      ScheduledStatus = "sent"
	ScheduledStatusFailed    ScheduledStatus = "failed"
	ScheduledStatusCancelled ScheduledStatus = "cancelled"
)

// IsValid checks if the status is known.
func (s ScheduledStatus) IsValid() bool {
	switch s {
	case ScheduledStatusPending, ScheduledStatusSent, ScheduledStatusFailed, ScheduledStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (s ScheduledStatus) IsTerminal() bool {
	return s == ScheduledStatusSent || s == ScheduledStatusFailed || s == ScheduledStatusCancelled
}

// CanTransitionTo reports whether moving from s to next is allowed.
// Only pending notifications move, and only to a terminal status.
func (s ScheduledStatus) CanTransitionTo(next ScheduledStatus) bool {
	return s == ScheduledStatusPending && next.IsTerminal()
}

// TerminalStatuses lists the statuses eligible for retention cleanup.
func TerminalStatuses() []ScheduledStatus {
	return []ScheduledStatus{ScheduledStatusSent, ScheduledStatusFailed, ScheduledStatusCancelled}
}

// Target validation errors.
var (
	ErrInvalidTargetType   = errors.New("invalid target type")
	ErrTargetUserRequired  = errors.New("user_id is required for single_user target")
	ErrTargetGroupRequired = errors.New("user_group_id is required for group target")
	ErrTargetOverspecified = errors.New("target has fields that do not match its type")
)

// ScheduledNotification is a deferred, targeted push notification.
type ScheduledNotification struct {
	ID           int64           `json:"id"`
	Title        string          `json:"title"`
	Body         string          `json:"body"`
	Data         map[string]any  `json:"data"`
	TargetType   TargetType      `json:"target_type"`
	UserID       *int64          `json:"user_id,omitempty"`
	UserGroupID  *int64          `json:"user_group_id,omitempty"`
	ScheduledAt  time.Time       `json:"scheduled_at"`
	Status       ScheduledStatus `json:"status"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	SuccessCount int             `json:"success_count"`
	FailCount    int             `json:"fail_count"`
	SentAt       *time.Time      `json:"sent_at,omitempty"`
	CreatedBy    *int64          `json:"created_by,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ValidateTarget checks that exactly the fields required by the target type are set.
func (n *ScheduledNotification) ValidateTarget() error {
	switch n.TargetType {
	case TargetSingleUser:
		if n.UserID == nil {
			return ErrTargetUserRequired
		}
		if n.UserGroupID != nil {
			return ErrTargetOverspecified
		}
	case TargetGroup:
		if n.UserGroupID == nil {
			return ErrTargetGroupRequired
		}
		if n.UserID != nil {
			return ErrTargetOverspecified
		}
	case TargetAllUsers:
		if n.UserID != nil || n.UserGroupID != nil {
			return ErrTargetOverspecified
		}
	default:
		return ErrInvalidTargetType
	}
	return nil
}
