package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/repository"
	apperrors "github.com/spec-kit/account-service/pkg/util/errorutil"
)

const accountKey = "auth_account"

// AuthMiddleware is the per-request authentication gate. It extracts a
// session token from the cookie or bearer header, verifies it, and
// re-validates it against current account state.
type AuthMiddleware struct {
	tokens   *TokenManager
	accounts repository.AccountRepository
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, accounts repository.AccountRepository) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, accounts: accounts}
}

// Handle enforces authentication for protected routes. The session cookie is
// preferred; a Bearer authorization header is the fallback. Failure reasons
// beyond "not verified" and "stale session" are deliberately collapsed into
// a single generic response.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	tokenStr := extractToken(c)
	if tokenStr == "" {
		return apperrors.NewNoCredentials()
	}

	claims, err := m.tokens.Verify(tokenStr, PurposeSession)
	if err != nil {
		return apperrors.NewAuthenticationFailed()
	}

	account, err := m.accounts.GetByID(c.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// no distinction from a bad token, to avoid account enumeration
			return apperrors.NewAuthenticationFailed()
		}
		return apperrors.MapError(err)
	}

	if !account.IsVerified {
		return apperrors.NewAccountNotVerified()
	}
	if !account.SessionValidAt(claims.IssuedAt.Time) {
		return apperrors.NewSessionStale()
	}

	c.Locals(accountKey, account)
	return c.Next()
}

func extractToken(c *fiber.Ctx) string {
	if cookie := c.Cookies(SessionCookieName); cookie != "" {
		return cookie
	}
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// AccountFromContext retrieves the authenticated account.
func AccountFromContext(c *fiber.Ctx) (*domain.Account, bool) {
	val := c.Locals(accountKey)
	if val == nil {
		return nil, false
	}
	account, ok := val.(*domain.Account)
	return account, ok
}
