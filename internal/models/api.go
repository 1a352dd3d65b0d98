package models

import "encoding/json"

// APIResponse is the envelope used by the remote backend and mirrored by
// this server's own JSON endpoints.
type APIResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// LoginRequest represents a login form submission forwarded to the backend
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is the backend's payload on a successful login
type LoginResult struct {
	User  UserRecord `json:"user"`
	Token string     `json:"token"`
}
