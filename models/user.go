package models

import "time"

type UserRole string

const (
	RoleAdmin UserRole = "admin"
	RoleUser  UserRole = "user"
)

type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Principal is the authenticated caller as seen by the services.
type Principal struct {
	UserID int
	Role   UserRole
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
