package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "account-service", cfg.App.Name)
	require.Equal(t, "0.0.0.0:4000", cfg.App.Addr())
	require.False(t, cfg.App.IsProduction())
	require.Equal(t, 30*time.Second, cfg.App.RequestTimeout())

	require.Equal(t, 7*24*time.Hour, cfg.Auth.SessionTTL())
	require.Equal(t, 24*time.Hour, cfg.Auth.VerificationTTL())
	require.Equal(t, 60*time.Minute, cfg.Auth.ResetTTL())
	require.Equal(t, 12, cfg.Auth.BcryptCost)

	require.Equal(t, 5, cfg.RateLimit.ResetRequestLimit)
	require.Equal(t, 15*time.Minute, cfg.RateLimit.ResetRequestWindow())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("AUTH_JWT_SECRET", "override-secret")
	t.Setenv("AUTH_SESSION_TTL_DAYS", "1")
	t.Setenv("AUTH_VERIFICATION_TTL_HOURS", "2")
	t.Setenv("AUTH_RESET_TTL_MINUTES", "5")
	t.Setenv("RATE_LIMIT_RESET_REQUESTS", "3")
	t.Setenv("RATE_LIMIT_RESET_WINDOW_MINUTES", "10")

	cfg, err := Load()
	require.NoError(t, err)

	require.True(t, cfg.App.IsProduction())
	require.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	require.Equal(t, "override-secret", cfg.Auth.JWTSecret)
	require.Equal(t, 24*time.Hour, cfg.Auth.SessionTTL())
	require.Equal(t, 2*time.Hour, cfg.Auth.VerificationTTL())
	require.Equal(t, 5*time.Minute, cfg.Auth.ResetTTL())
	require.Equal(t, 3, cfg.RateLimit.ResetRequestLimit)
	require.Equal(t, 10*time.Minute, cfg.RateLimit.ResetRequestWindow())
}

func TestLoadRejectsBadRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "not-a-number")

	_, err := Load()
	require.Error(t, err)
}

func TestTTLHelpersFallBackOnNonPositiveValues(t *testing.T) {
	auth := AuthConfig{SessionTTLDays: 0, VerificationTTLHours: -1, ResetTTLMinutes: 0}
	require.Equal(t, 7*24*time.Hour, auth.SessionTTL())
	require.Equal(t, 24*time.Hour, auth.VerificationTTL())
	require.Equal(t, 60*time.Minute, auth.ResetTTL())

	rl := RateLimitConfig{ResetRequestWindowMinutes: 0}
	require.Equal(t, 15*time.Minute, rl.ResetRequestWindow())

	app := AppConfig{RequestTimeoutSeconds: 0}
	require.Equal(t, time.Duration(0), app.RequestTimeout())
}
