package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/account-service/internal/api/dto"
	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/service"
	apperrors "github.com/spec-kit/account-service/pkg/util/errorutil"
)

// AccountsHandler exposes the account endpoints.
type AccountsHandler struct {
	accounts      *service.AccountService
	secureCookies bool
}

// NewAccountsHandler constructs handler.
func NewAccountsHandler(accountService *service.AccountService, secureCookies bool) *AccountsHandler {
	return &AccountsHandler{accounts: accountService, secureCookies: secureCookies}
}

// Register handles POST /register.
func (h *AccountsHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("name, email and password are required", nil)
	}

	account, err := h.accounts.Register(c.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": fiber.Map{
			"account": accountResponse(account),
			"message": "account registered, please verify your email",
		},
	})
}

// Login handles POST /login.
func (h *AccountsHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password are required", nil)
	}

	account, token, exp, err := h.accounts.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	auth.SetSessionCookie(c, token, exp, h.secureCookies)

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"account": accountResponse(account),
			"auth":    dto.AuthResponse{Token: token, ExpiresAt: exp},
		},
	})
}

// Logout handles POST /logout.
func (h *AccountsHandler) Logout(c *fiber.Ctx) error {
	auth.ClearSessionCookie(c, h.secureCookies)
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "logged_out"}})
}

// VerifyEmail handles GET /verify-email?token=.
func (h *AccountsHandler) VerifyEmail(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		return apperrors.NewValidationError("token is required", nil)
	}

	account, err := h.accounts.VerifyEmail(c.Context(), token)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"status":  "verified",
			"account": accountResponse(account),
		},
	})
}

// ResendVerification handles POST /resend-verification.
func (h *AccountsHandler) ResendVerification(c *fiber.Ctx) error {
	var req dto.EmailRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" {
		return apperrors.NewValidationError("email is required", nil)
	}

	if err := h.accounts.ResendVerification(c.Context(), req.Email); err != nil {
		return err
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{
		"data": fiber.Map{"status": "verification_sent"},
	})
}

// RequestPasswordReset handles POST /password-reset-request.
func (h *AccountsHandler) RequestPasswordReset(c *fiber.Ctx) error {
	var req dto.EmailRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" {
		return apperrors.NewValidationError("email is required", nil)
	}

	if err := h.accounts.RequestPasswordReset(c.Context(), req.Email); err != nil {
		return err
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{
		"data": fiber.Map{"status": "reset_requested"},
	})
}

// ResetPassword handles POST /reset-password?token=.
func (h *AccountsHandler) ResetPassword(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		return apperrors.NewValidationError("token is required", nil)
	}

	var req dto.ResetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Password == "" {
		return apperrors.NewValidationError("password is required", nil)
	}

	if err := h.accounts.ResetPassword(c.Context(), token, req.Password); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "password_reset"}})
}

// Profile handles GET /profile.
func (h *AccountsHandler) Profile(c *fiber.Ctx) error {
	account, ok := auth.AccountFromContext(c)
	if !ok {
		return apperrors.NewNoCredentials()
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"account": accountResponse(account)}})
}

// Update handles PUT /update.
func (h *AccountsHandler) Update(c *fiber.Ctx) error {
	account, ok := auth.AccountFromContext(c)
	if !ok {
		return apperrors.NewNoCredentials()
	}

	var req dto.UpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	updated, err := h.accounts.Update(c.Context(), account.ID, service.AccountUpdate{
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"account": accountResponse(updated),
			"message": "account updated successfully",
		},
	})
}

// Delete handles DELETE /delete.
func (h *AccountsHandler) Delete(c *fiber.Ctx) error {
	account, ok := auth.AccountFromContext(c)
	if !ok {
		return apperrors.NewNoCredentials()
	}

	if err := h.accounts.Delete(c.Context(), account.ID); err != nil {
		return err
	}

	auth.ClearSessionCookie(c, h.secureCookies)
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "account_deleted"}})
}

// accountResponse serializes an account for clients. The password hash never
// leaves the service.
func accountResponse(account *domain.Account) fiber.Map {
	return fiber.Map{
		"id":          account.ID,
		"name":        account.Name,
		"email":       account.Email,
		"is_verified": account.IsVerified,
		"created_at":  account.CreatedAt,
	}
}
