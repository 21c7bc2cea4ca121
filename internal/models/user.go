package models

import (
	"time"
)

const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Email        *string   `json:"email"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

type RegisterRequest struct {
	Username string  `json:"username"`
	Password string  `json:"password"`
	Email    *string `json:"email"`
	Role     string  `json:"role"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	User      *User     `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	// SessionID goes into the cookie, never into the body.
	SessionID string `json:"-"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	Password        string `json:"password"`
}

// AuthContext is the caller identity resolved once per request. The zero
// value is an anonymous caller.
type AuthContext struct {
	UserID    *int64
	Username  string
	Role      string
	SessionID string
}

func (a AuthContext) Authenticated() bool {
	return a.UserID != nil
}

func (a AuthContext) IsAdmin() bool {
	return a.Authenticated() && a.Role == RoleAdmin
}

func (a AuthContext) CanWrite() bool {
	return !a.Authenticated() || a.Role != RoleViewer
}
