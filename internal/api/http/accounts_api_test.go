package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/api/http/handlers"
	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/config"
	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/events"
	"github.com/spec-kit/account-service/internal/service"
)

type memoryAccountRepo struct {
	mu     sync.Mutex
	byID   map[string]*domain.Account
	nextID int
}

func newMemoryAccountRepo() *memoryAccountRepo {
	return &memoryAccountRepo{byID: map[string]*domain.Account{}}
}

func (r *memoryAccountRepo) Create(_ context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.Email == account.Email {
			return &pgconn.PgError{Code: "23505"}
		}
	}
	r.nextID++
	account.ID = "acc-" + strconv.Itoa(r.nextID)
	account.CreatedAt = time.Now()
	account.UpdatedAt = account.CreatedAt
	copied := *account
	r.byID[account.ID] = &copied
	return nil
}

func (r *memoryAccountRepo) Update(_ context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[account.ID]; !ok {
		return pgx.ErrNoRows
	}
	copied := *account
	r.byID[account.ID] = &copied
	return nil
}

func (r *memoryAccountRepo) GetByID(_ context.Context, id string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *account
	return &copied, nil
}

func (r *memoryAccountRepo) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, account := range r.byID {
		if account.Email == email {
			copied := *account
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memoryAccountRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.byID, id)
	return nil
}

type captureDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *captureDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *captureDispatcher) Subscribe(_ events.EventType, _ events.EventHandler) {}

func (d *captureDispatcher) lastPayload(eventType events.EventType) (interface{}, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := len(d.events) - 1; i >= 0; i-- {
		if d.events[i].Type == eventType {
			return d.events[i].Payload, true
		}
	}
	return nil, false
}

type testEnv struct {
	app        *fiber.App
	dispatcher *captureDispatcher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := config.Config{
		Auth: config.AuthConfig{
			JWTSecret:            "api-test-secret",
			SessionTTLDays:       7,
			VerificationTTLHours: 24,
			ResetTTLMinutes:      60,
			BcryptCost:           4,
		},
	}

	repo := newMemoryAccountRepo()
	dispatcher := &captureDispatcher{}
	accountService := service.NewAccountService(cfg, service.AccountDependencies{
		AccountRepo: repo,
		Dispatcher:  dispatcher,
	})
	authMiddleware := auth.NewAuthMiddleware(accountService.TokenManager(), repo)

	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), nil, 0)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("account-service", "test", nil, nil),
		Accounts:       handlers.NewAccountsHandler(accountService, false),
		AuthMiddleware: authMiddleware,
	})

	return &testEnv{app: app, dispatcher: dispatcher}
}

type apiResponse struct {
	status int
	body   map[string]any
	resp   *http.Response
}

func (e *testEnv) do(t *testing.T, method, path string, payload any, configure func(*http.Request)) apiResponse {
	t.Helper()

	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewBuffer(raw)
	} else {
		body = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if configure != nil {
		configure(req)
	}

	resp, err := e.app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	decoded := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return apiResponse{status: resp.StatusCode, body: decoded, resp: resp}
}

func (r apiResponse) errorCode(t *testing.T) string {
	t.Helper()
	errObj, ok := r.body["error"].(map[string]any)
	require.True(t, ok, "expected error envelope, got %v", r.body)
	code, _ := errObj["code"].(string)
	return code
}

func (r apiResponse) data(t *testing.T) map[string]any {
	t.Helper()
	data, ok := r.body["data"].(map[string]any)
	require.True(t, ok, "expected data envelope, got %v", r.body)
	return data
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, cookie := range resp.Cookies() {
		if cookie.Name == auth.SessionCookieName {
			return cookie
		}
	}
	return nil
}

func (e *testEnv) verificationToken(t *testing.T) string {
	t.Helper()
	payload, ok := e.dispatcher.lastPayload(events.EventAccountRegistered)
	if !ok {
		payload, ok = e.dispatcher.lastPayload(events.EventVerificationRequested)
	}
	require.True(t, ok, "no verification event captured")
	return payload.(events.VerificationTokenPayload).Token
}

func TestRegistrationAndVerificationScenario(t *testing.T) {
	env := newTestEnv(t)

	// register: 201, unverified
	res := env.do(t, http.MethodPost, "/register", map[string]string{
		"name": "Ann", "email": "a@x.com", "password": "Abcdef1!",
	}, nil)
	require.Equal(t, http.StatusCreated, res.status)
	account := res.data(t)["account"].(map[string]any)
	require.Equal(t, false, account["is_verified"])
	_, hasHash := account["password_hash"]
	require.False(t, hasHash)

	// login works before verification and sets the session cookie
	res = env.do(t, http.MethodPost, "/login", map[string]string{
		"email": "a@x.com", "password": "Abcdef1!",
	}, nil)
	require.Equal(t, http.StatusOK, res.status)
	cookie := sessionCookie(res.resp)
	require.NotNil(t, cookie)
	require.True(t, cookie.HttpOnly)
	require.NotEmpty(t, cookie.Value)

	// profile before verification fails with the actionable distinction
	res = env.do(t, http.MethodGet, "/profile", nil, func(req *http.Request) {
		req.AddCookie(cookie)
	})
	require.Equal(t, http.StatusUnauthorized, res.status)
	require.Equal(t, "ACCOUNT_NOT_VERIFIED", res.errorCode(t))

	// redeem the verification token
	token := env.verificationToken(t)
	res = env.do(t, http.MethodGet, "/verify-email?token="+token, nil, nil)
	require.Equal(t, http.StatusOK, res.status)

	// second redemption is rejected, not silently ignored
	res = env.do(t, http.MethodGet, "/verify-email?token="+token, nil, nil)
	require.Equal(t, http.StatusBadRequest, res.status)
	require.Equal(t, "ALREADY_VERIFIED", res.errorCode(t))

	// profile now succeeds and omits the password hash
	res = env.do(t, http.MethodGet, "/profile", nil, func(req *http.Request) {
		req.AddCookie(cookie)
	})
	require.Equal(t, http.StatusOK, res.status)
	profile := res.data(t)["account"].(map[string]any)
	require.Equal(t, "a@x.com", profile["email"])
	_, hasHash = profile["password_hash"]
	require.False(t, hasHash)
}

func TestDuplicateRegistration(t *testing.T) {
	env := newTestEnv(t)

	res := env.do(t, http.MethodPost, "/register", map[string]string{
		"name": "Ann", "email": "a@x.com", "password": "Abcdef1!",
	}, nil)
	require.Equal(t, http.StatusCreated, res.status)

	res = env.do(t, http.MethodPost, "/register", map[string]string{
		"name": "Ann Again", "email": "A@X.com", "password": "Abcdef1!",
	}, nil)
	require.Equal(t, http.StatusBadRequest, res.status)
	require.Equal(t, "DUPLICATE_ACCOUNT", res.errorCode(t))
}

func TestLogoutClearsCookie(t *testing.T) {
	env := newTestEnv(t)

	res := env.do(t, http.MethodPost, "/logout", nil, nil)
	require.Equal(t, http.StatusOK, res.status)
	cookie := sessionCookie(res.resp)
	require.NotNil(t, cookie)
	require.Empty(t, cookie.Value)
	require.True(t, cookie.Expires.Before(time.Now()))
}

func registerAndVerify(t *testing.T, env *testEnv, email string) *http.Cookie {
	t.Helper()

	res := env.do(t, http.MethodPost, "/register", map[string]string{
		"name": "Ann", "email": email, "password": "Abcdef1!",
	}, nil)
	require.Equal(t, http.StatusCreated, res.status)

	token := env.verificationToken(t)
	res = env.do(t, http.MethodGet, "/verify-email?token="+token, nil, nil)
	require.Equal(t, http.StatusOK, res.status)

	res = env.do(t, http.MethodPost, "/login", map[string]string{
		"email": email, "password": "Abcdef1!",
	}, nil)
	require.Equal(t, http.StatusOK, res.status)
	cookie := sessionCookie(res.resp)
	require.NotNil(t, cookie)
	return cookie
}

func TestUpdateScenarios(t *testing.T) {
	env := newTestEnv(t)
	cookie := registerAndVerify(t, env, "a@x.com")

	// no fields to update
	res := env.do(t, http.MethodPut, "/update", map[string]string{}, func(req *http.Request) {
		req.AddCookie(cookie)
	})
	require.Equal(t, http.StatusBadRequest, res.status)
	require.Equal(t, "VALIDATION_FAILED", res.errorCode(t))

	// name change keeps the session alive
	res = env.do(t, http.MethodPut, "/update", map[string]string{"name": "Ann Renamed"}, func(req *http.Request) {
		req.AddCookie(cookie)
	})
	require.Equal(t, http.StatusOK, res.status)
	require.Equal(t, "Ann Renamed", res.data(t)["account"].(map[string]any)["name"])

	// password change advances the epoch; the current session token goes stale
	res = env.do(t, http.MethodPut, "/update", map[string]string{"password": "Newpass1!"}, func(req *http.Request) {
		req.AddCookie(cookie)
	})
	require.Equal(t, http.StatusOK, res.status)

	res = env.do(t, http.MethodGet, "/profile", nil, func(req *http.Request) {
		req.AddCookie(cookie)
	})
	require.Equal(t, http.StatusUnauthorized, res.status)
	require.Equal(t, "SESSION_STALE", res.errorCode(t))

	// logging in with the new password restores access
	res = env.do(t, http.MethodPost, "/login", map[string]string{
		"email": "a@x.com", "password": "Newpass1!",
	}, nil)
	require.Equal(t, http.StatusOK, res.status)
	fresh := sessionCookie(res.resp)
	require.NotNil(t, fresh)

	res = env.do(t, http.MethodGet, "/profile", nil, func(req *http.Request) {
		req.AddCookie(fresh)
	})
	require.Equal(t, http.StatusOK, res.status)
}

func TestDeleteScenario(t *testing.T) {
	env := newTestEnv(t)
	cookie := registerAndVerify(t, env, "a@x.com")

	res := env.do(t, http.MethodDelete, "/delete", nil, func(req *http.Request) {
		req.AddCookie(cookie)
	})
	require.Equal(t, http.StatusOK, res.status)
	cleared := sessionCookie(res.resp)
	require.NotNil(t, cleared)
	require.Empty(t, cleared.Value)

	// the old session token now references a missing subject
	res = env.do(t, http.MethodGet, "/profile", nil, func(req *http.Request) {
		req.AddCookie(cookie)
	})
	require.Equal(t, http.StatusUnauthorized, res.status)
	require.Equal(t, "AUTHENTICATION_FAILED", res.errorCode(t))
}

func TestResetPasswordViaEndpoint(t *testing.T) {
	env := newTestEnv(t)
	registerAndVerify(t, env, "a@x.com")

	res := env.do(t, http.MethodPost, "/password-reset-request", map[string]string{"email": "a@x.com"}, nil)
	require.Equal(t, http.StatusAccepted, res.status)
	// the token travels through the notification sender, never the response
	_, hasToken := res.data(t)["token"]
	require.False(t, hasToken)

	payload, ok := env.dispatcher.lastPayload(events.EventPasswordResetRequested)
	require.True(t, ok)
	token := payload.(events.PasswordResetPayload).Token

	res = env.do(t, http.MethodPost, "/reset-password?token="+token, map[string]string{"password": "Newpass1!"}, nil)
	require.Equal(t, http.StatusOK, res.status)

	res = env.do(t, http.MethodPost, "/login", map[string]string{
		"email": "a@x.com", "password": "Newpass1!",
	}, nil)
	require.Equal(t, http.StatusOK, res.status)
}

func TestResetPasswordRejectsSessionToken(t *testing.T) {
	env := newTestEnv(t)
	cookie := registerAndVerify(t, env, "a@x.com")

	res := env.do(t, http.MethodPost, "/reset-password?token="+cookie.Value, map[string]string{"password": "Newpass1!"}, nil)
	require.Equal(t, http.StatusUnauthorized, res.status)
	require.Equal(t, "AUTHENTICATION_FAILED", res.errorCode(t))
}

func TestProtectedRoutesRequireCredentials(t *testing.T) {
	env := newTestEnv(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/profile"},
		{http.MethodPut, "/update"},
		{http.MethodDelete, "/delete"},
	} {
		res := env.do(t, route.method, route.path, nil, nil)
		require.Equal(t, http.StatusUnauthorized, res.status, route.path)
		require.Equal(t, "NO_CREDENTIALS", res.errorCode(t), route.path)
	}
}
