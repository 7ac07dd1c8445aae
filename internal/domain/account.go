package domain

import (
	"errors"
	"time"
)

// ErrAlreadyVerified is returned when a verified account is verified again.
var ErrAlreadyVerified = errors.New("account already verified")

// Account is the domain model for a registered user account.
type Account struct {
	ID                string
	Name              string
	Email             string
	PasswordHash      string
	IsVerified        bool
	PasswordChangedAt *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// MarkVerified transitions the account to verified. The transition is
// one-way; redeeming a second verification token is rejected rather than
// silently ignored.
func (a *Account) MarkVerified() error {
	if a.IsVerified {
		return ErrAlreadyVerified
	}
	a.IsVerified = true
	return nil
}

// RecordPasswordChange stores the new hash and advances the password epoch.
// Every session token issued before this moment becomes stale.
func (a *Account) RecordPasswordChange(newHash string, at time.Time) {
	a.PasswordHash = newHash
	a.PasswordChangedAt = &at
}

// SessionValidAt reports whether a token issued at the given time is still
// acceptable against the account's password epoch. Registration does not set
// the epoch; only explicit password changes do.
func (a *Account) SessionValidAt(issuedAt time.Time) bool {
	if a.PasswordChangedAt == nil {
		return true
	}
	return !issuedAt.Before(*a.PasswordChangedAt)
}
