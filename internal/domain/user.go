package domain

import "time"

// UserRole enumerates supported roles.
type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

// User represents an account that can sign in.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Role         UserRole
	IsActive     bool
	LastLogin    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}

// UserPreferences stores free-form UI preferences per user.
type UserPreferences struct {
	UserID      string
	Preferences map[string]any
	UpdatedAt   time.Time
}

// ParseRole maps user input onto a known role.
func ParseRole(v string) (UserRole, bool) {
	switch UserRole(v) {
	case UserRoleAdmin:
		return UserRoleAdmin, true
	case UserRoleUser:
		return UserRoleUser, true
	default:
		return "", false
	}
}
