package notifications

import "errors"

// Repository errors.
var (
	ErrScheduledNotFound = errors.New("scheduled notification not found")
	ErrNotPending        = errors.New("scheduled notification is not pending")
	ErrLeaseLost         = errors.New("scheduled notification lease lost")
)

// Directory errors.
var (
	ErrUserNotFound  = errors.New("user not found")
	ErrGroupNotFound = errors.New("user group not found")
)
