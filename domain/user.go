package domain

import "time"

// User represents an authenticated identity that owns tasks.
type User struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Email        string            `json:"email,omitempty"`
	PasswordHash string            `json:"-"`
	Role         string            `json:"role"`
	Status       string            `json:"status"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	UserStatusActive = "active"
)

func (u *User) IsActive() bool {
	return u != nil && u.Status == UserStatusActive
}
