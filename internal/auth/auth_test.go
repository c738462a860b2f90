package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	t.Parallel()

	tm := NewTokenManager("secret", "core-api", 5)
	token, expiresAt, err := tm.GenerateToken(42)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), expiresAt, time.Minute)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "42", claims.Subject)
}

func TestParseTokenRejects(t *testing.T) {
	t.Parallel()

	tm := NewTokenManager("secret", "core-api", 5)

	other, _, err := NewTokenManager("other", "core-api", 5).GenerateToken(42)
	require.NoError(t, err)
	_, err = tm.ParseToken(other)
	assert.Error(t, err, "wrong signature")

	foreign, _, err := NewTokenManager("secret", "elsewhere", 5).GenerateToken(42)
	require.NoError(t, err)
	_, err = tm.ParseToken(foreign)
	assert.Error(t, err, "wrong issuer")

	stale := NewTokenManager("secret", "core-api", 5)
	stale.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, _, err := stale.GenerateToken(42)
	require.NoError(t, err)
	_, err = tm.ParseToken(expired)
	assert.Error(t, err, "expired")

	noUser := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "ada",
		Issuer:    "core-api",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	})
	signed, err := noUser.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = tm.ParseToken(signed)
	assert.Error(t, err, "non-numeric subject")
}

func TestParseTokenFallsBackToSubject(t *testing.T) {
	t.Parallel()

	tm := NewTokenManager("secret", "", 5)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "17",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	claims, err := tm.ParseToken(signed)
	require.NoError(t, err)
	assert.Equal(t, int64(17), claims.UserID)
}

func TestAuthMiddleware(t *testing.T) {
	t.Parallel()

	tm := NewTokenManager("secret", "", 5)
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.SendStatus(fiber.StatusUnauthorized)
		},
	})
	app.Get("/me", NewAuthMiddleware(tm).Handle, func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		require.True(t, ok)
		return c.JSON(fiber.Map{"uid": principal.UserID})
	})

	token, _, err := tm.GenerateToken(9)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "valid", header: "Bearer " + token, status: fiber.StatusOK},
		{name: "lowercase scheme", header: "bearer " + token, status: fiber.StatusOK},
		{name: "missing", header: "", status: fiber.StatusUnauthorized},
		{name: "basic", header: "Basic abc", status: fiber.StatusUnauthorized},
		{name: "garbage", header: "Bearer nope", status: fiber.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}
