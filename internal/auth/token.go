package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Purpose tags a token with the single flow it may be redeemed in.
type Purpose string

const (
	PurposeSession           Purpose = "session"
	PurposeEmailVerification Purpose = "email_verification"
	PurposePasswordReset     Purpose = "password_reset"
)

var (
	// ErrTokenInvalid covers bad signatures and malformed payloads.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is returned when the token TTL has elapsed.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenPurpose is returned when a token is presented to a consumer
	// expecting a different purpose.
	ErrTokenPurpose = errors.New("token purpose mismatch")
)

// Claims describes the signed JWT payload.
type Claims struct {
	Purpose Purpose `json:"purpose"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies signed, time-bounded tokens. The signing
// secret is process-wide state loaded once at startup.
type TokenManager struct {
	secret []byte
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{secret: []byte(secret)}
}

// Issue builds and signs a token for the subject with the given purpose and
// TTL, returning the token string and its expiry.
func (tm *TokenManager) Issue(subjectID string, purpose Purpose, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := &Claims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// Verify validates the signature and expiry and enforces that the token was
// issued for the expected purpose. Callers never perform their own purpose
// comparison; a reset token presented where a session token is expected
// fails here.
func (tm *TokenManager) Verify(tokenStr string, want Purpose) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}
	if claims.Purpose != want {
		return nil, ErrTokenPurpose
	}
	return claims, nil
}
