package dto

import "time"

// RegisterRequest payload for new accounts.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// EmailRequest payload for resend-verification and password-reset-request.
type EmailRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest carries the replacement password; the reset token
// travels in the query string.
type ResetPasswordRequest struct {
	Password string `json:"password"`
}

// UpdateRequest is the closed set of updatable account fields. Absent fields
// stay untouched.
type UpdateRequest struct {
	Name     *string `json:"name"`
	Password *string `json:"password"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
