package models

import "time"

// LogEntry is one line of the operator activity log.
type LogEntry struct {
	ID        string    `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	Action    string    `json:"action" db:"action"`
	Timestamp time.Time `json:"timestamp" db:"created_at"`
	Details   string    `json:"details" db:"details"`
}

// Role of a terminal user.
type Role string

const (
	RoleCashier Role = "cashier"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// User is kept only so backups carry the user list; authentication lives elsewhere.
type User struct {
	Username string `json:"username" db:"username"`
	Role     Role   `json:"role" db:"role"`
	FullName string `json:"fullName" db:"full_name"`
	IsActive bool   `json:"isActive" db:"is_active"`
}
