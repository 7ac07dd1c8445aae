package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/config"
	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/events"
	"github.com/spec-kit/account-service/internal/repository"
	apperrors "github.com/spec-kit/account-service/pkg/util/errorutil"
)

const maxNameLength = 50

// AccountUpdate is the closed partial-update structure for PUT /update.
// Only the fields enumerated here can be changed; each carries its own
// validation rule.
type AccountUpdate struct {
	Name     *string
	Password *string
}

// AccountService coordinates registration, login, verification, password
// reset, and account mutation flows.
type AccountService struct {
	accounts   repository.AccountRepository
	dispatcher events.Dispatcher
	tokenMgr   *auth.TokenManager
	bcryptCost int
	sessionTTL time.Duration
	verifyTTL  time.Duration
	resetTTL   time.Duration
}

// AccountDependencies encapsulates collaborator requirements.
type AccountDependencies struct {
	AccountRepo repository.AccountRepository
	Dispatcher  events.Dispatcher
}

// NewAccountService builds the service.
func NewAccountService(cfg config.Config, deps AccountDependencies) *AccountService {
	return &AccountService{
		accounts:   deps.AccountRepo,
		dispatcher: deps.Dispatcher,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret),
		bcryptCost: cfg.Auth.BcryptCost,
		sessionTTL: cfg.Auth.SessionTTL(),
		verifyTTL:  cfg.Auth.VerificationTTL(),
		resetTTL:   cfg.Auth.ResetTTL(),
	}
}

// Register creates a new unverified account and emits a verification token
// through the notification pipeline. A failed notification send does not
// roll the account back; the resend-verification endpoint covers it.
func (s *AccountService) Register(ctx context.Context, name, email, password string) (*domain.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidationError("name is required", nil)
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return nil, apperrors.NewValidationError("name cannot exceed 50 characters", nil)
	}

	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := validateStrongPassword(password); err != nil {
		return nil, err
	}

	if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewDuplicateAccount()
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	account := &domain.Account{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, apperrors.NewDuplicateAccount()
		}
		return nil, err
	}

	if err := s.publishVerificationToken(ctx, events.EventAccountRegistered, account); err != nil {
		return nil, err
	}
	return account, nil
}

// Login authenticates credentials and issues a session token. Unknown email
// and wrong password are indistinguishable to the caller. Unverified
// accounts may log in; the authentication gate blocks protected routes.
func (s *AccountService) Login(ctx context.Context, email, password string) (*domain.Account, string, time.Time, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewAuthenticationFailed()
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", time.Time{}, apperrors.NewAuthenticationFailed()
		}
		return nil, "", time.Time{}, err
	}
	if err := auth.ComparePassword(account.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewAuthenticationFailed()
	}

	token, exp, err := s.tokenMgr.Issue(account.ID, auth.PurposeSession, s.sessionTTL)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return account, token, exp, nil
}

// VerifyEmail redeems an email-verification token. A second redemption
// after success is rejected, not silently ignored.
func (s *AccountService) VerifyEmail(ctx context.Context, tokenStr string) (*domain.Account, error) {
	claims, err := s.tokenMgr.Verify(tokenStr, auth.PurposeEmailVerification)
	if err != nil {
		return nil, apperrors.NewAuthenticationFailed()
	}

	account, err := s.accounts.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewAuthenticationFailed()
		}
		return nil, err
	}

	if err := account.MarkVerified(); err != nil {
		if errors.Is(err, domain.ErrAlreadyVerified) {
			return nil, apperrors.NewAlreadyVerified()
		}
		return nil, err
	}
	if err := s.accounts.Update(ctx, account); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:      events.EventAccountVerified,
		AccountID: account.ID,
		Email:     account.Email,
	})
	return account, nil
}

// ResendVerification issues a fresh verification token for an unverified
// account.
func (s *AccountService) ResendVerification(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("account", nil)
		}
		return err
	}
	if account.IsVerified {
		return apperrors.NewAlreadyVerified()
	}

	return s.publishVerificationToken(ctx, events.EventVerificationRequested, account)
}

// RequestPasswordReset issues a short-lived reset token and hands it to the
// notification sender. The token itself never appears in the HTTP response.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("account", nil)
		}
		return err
	}

	token, exp, err := s.tokenMgr.Issue(account.ID, auth.PurposePasswordReset, s.resetTTL)
	if err != nil {
		return err
	}

	s.publishEvent(ctx, events.Event{
		Type:      events.EventPasswordResetRequested,
		AccountID: account.ID,
		Email:     account.Email,
		Payload:   events.PasswordResetPayload{Token: token, ExpiresAt: exp},
	})
	return nil
}

// ResetPassword redeems a reset token and sets a new password, advancing the
// password epoch so every outstanding session token becomes stale. A reset
// token issued before the latest password change is rejected, which makes
// redemption effectively single-use.
func (s *AccountService) ResetPassword(ctx context.Context, tokenStr, newPassword string) error {
	claims, err := s.tokenMgr.Verify(tokenStr, auth.PurposePasswordReset)
	if err != nil {
		return apperrors.NewAuthenticationFailed()
	}
	if err := validateStrongPassword(newPassword); err != nil {
		return err
	}

	account, err := s.accounts.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// subject deleted after issuance; same response as a bad token
			return apperrors.NewAuthenticationFailed()
		}
		return err
	}
	if !account.SessionValidAt(claims.IssuedAt.Time) {
		return apperrors.NewAuthenticationFailed()
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	account.RecordPasswordChange(hash, time.Now())
	return s.accounts.Update(ctx, account)
}

// Update applies a partial update to the authenticated account. Whitespace
// only values count as absent; an update with no effective fields fails.
func (s *AccountService) Update(ctx context.Context, accountID string, update AccountUpdate) (*domain.Account, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("account", nil)
		}
		return nil, err
	}

	changed := false

	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name != "" {
			if utf8.RuneCountInString(name) > maxNameLength {
				return nil, apperrors.NewValidationError("name cannot exceed 50 characters", nil)
			}
			account.Name = name
			changed = true
		}
	}

	if update.Password != nil && strings.TrimSpace(*update.Password) != "" {
		if err := validateStrongPassword(*update.Password); err != nil {
			return nil, err
		}
		hash, err := auth.HashPassword(*update.Password, s.bcryptCost)
		if err != nil {
			return nil, err
		}
		account.RecordPasswordChange(hash, time.Now())
		changed = true
	}

	if !changed {
		return nil, apperrors.NewValidationError("no fields to update", nil)
	}

	if err := s.accounts.Update(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// Delete removes the account. Verification or reset tokens issued before
// deletion fail at account lookup from then on.
func (s *AccountService) Delete(ctx context.Context, accountID string) error {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("account", nil)
		}
		return err
	}

	if err := s.accounts.Delete(ctx, accountID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("account", nil)
		}
		return err
	}

	s.publishEvent(ctx, events.Event{
		Type:      events.EventAccountDeleted,
		AccountID: account.ID,
		Email:     account.Email,
	})
	return nil
}

// GetProfile loads the account for the profile endpoint.
func (s *AccountService) GetProfile(ctx context.Context, accountID string) (*domain.Account, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("account", nil)
		}
		return nil, err
	}
	return account, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AccountService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AccountService) publishVerificationToken(ctx context.Context, eventType events.EventType, account *domain.Account) error {
	token, exp, err := s.tokenMgr.Issue(account.ID, auth.PurposeEmailVerification, s.verifyTTL)
	if err != nil {
		return err
	}
	s.publishEvent(ctx, events.Event{
		Type:      eventType,
		AccountID: account.ID,
		Email:     account.Email,
		Payload:   events.VerificationTokenPayload{Token: token, ExpiresAt: exp},
	})
	return nil
}

func (s *AccountService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.Timestamp = time.Now()
	_ = s.dispatcher.Publish(ctx, event)
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", apperrors.NewValidationError("email is required", nil)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperrors.NewValidationError("invalid email address", nil)
	}
	return email, nil
}

// validateStrongPassword requires at least 6 characters including a lower
// case letter, an upper case letter, a digit, and a symbol.
func validateStrongPassword(password string) error {
	var hasLower, hasUpper, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSymbol = true
		}
	}
	if utf8.RuneCountInString(password) < 6 || !hasLower || !hasUpper || !hasDigit || !hasSymbol {
		return apperrors.NewValidationError(
			"password must be at least 6 characters and include a number, a symbol, and mixed case letters", nil)
	}
	return nil
}
