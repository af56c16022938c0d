package domain

import (
	"slices"
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleStaff Role = "staff"
	RoleAdmin Role = "admin"
)

// Permissions checked by the notifications API.
const (
	PermissionManageNotifications = "manage_notifications"
)

// User is a recipient as seen by the notification core. The user table
// itself belongs to the storefront application.
type User struct {
	ID          int64
	Name        string
	Email       string
	Role        Role
	DeviceToken string
	CreatedAt   time.Time
}

// HasDeviceToken reports whether push delivery is possible for the user.
func (u User) HasDeviceToken() bool {
	return u.DeviceToken != ""
}

type UserGroup struct {
	ID      int64
	Name    string
	Members []User
}

// Principal is the authenticated caller of the admin API.
type Principal struct {
	UserID      int64
	Role        Role
	Permissions []string
}

// HasRole reports whether the principal holds exactly the given role.
func (p Principal) HasRole(role Role) bool {
	return p.Role == role
}

// HasPermission reports whether the principal was granted the permission.
// Admins hold every permission.
func (p Principal) HasPermission(permission string) bool {
	if p.Role == RoleAdmin {
		return true
	}
	return slices.Contains(p.Permissions, permission)
}
