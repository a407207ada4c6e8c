package models

import "time"

// UserRole defines access levels within the API.
type UserRole string

const (
	RoleAdmin  UserRole = "ADMIN"
	RoleMusico UserRole = "MUSICO"
)

// User represents an orchestra member or administrator.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	FullName     string    `db:"full_name" json:"full_name"`
	Instrument   *string   `db:"instrument" json:"instrument,omitempty"`
	Role         UserRole  `db:"role" json:"role"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// IsAdmin reports whether the user holds the administrator role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
