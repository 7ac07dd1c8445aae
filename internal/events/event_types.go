package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventAccountRegistered      EventType = "account_registered"
	EventVerificationRequested  EventType = "verification_requested"
	EventAccountVerified        EventType = "account_verified"
	EventPasswordResetRequested EventType = "password_reset_requested"
	EventAccountDeleted         EventType = "account_deleted"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	AccountID string      `json:"account_id"`
	Email     string      `json:"email"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// VerificationTokenPayload carries a freshly issued email-verification token.
type VerificationTokenPayload struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PasswordResetPayload carries a freshly issued password-reset token.
type PasswordResetPayload struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
