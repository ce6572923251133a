package middleware_test

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/lumora-app/lumora-api/internal/middleware"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func TestDecodeIdentityExtractsSubjectAndRole(t *testing.T) {
	signed := signToken(t, jwt.MapClaims{
		"sub":  float64(42),
		"role": "admin",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	userID, role, err := middleware.DecodeIdentity(testSecret, signed)
	require.NoError(t, err)
	require.Equal(t, uint(42), userID)
	require.Equal(t, "admin", role)
}

func TestDecodeIdentityAcceptsStringSubject(t *testing.T) {
	signed := signToken(t, jwt.MapClaims{
		"user_id": "7",
		"roles":   []interface{}{"user"},
	})

	userID, role, err := middleware.DecodeIdentity(testSecret, signed)
	require.NoError(t, err)
	require.Equal(t, uint(7), userID)
	require.Equal(t, "user", role)
}

func TestDecodeIdentityRejectsWrongSecret(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": float64(1)})
	signed, err := token.SignedString([]byte("other-secret"))
	require.NoError(t, err)

	_, _, err = middleware.DecodeIdentity(testSecret, signed)
	require.Error(t, err)
}

func TestDecodeIdentityRejectsExpiredToken(t *testing.T) {
	signed := signToken(t, jwt.MapClaims{
		"sub": float64(1),
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	_, _, err := middleware.DecodeIdentity(testSecret, signed)
	require.Error(t, err)
}

func TestJWTProtectedSetsLocals(t *testing.T) {
	app := fiber.New()
	app.Use(middleware.JWTProtected(testSecret))
	app.Get("/", func(c *fiber.Ctx) error {
		require.Equal(t, uint(42), c.Locals("user_id"))
		require.Equal(t, "admin", c.Locals("user_role"))
		return c.SendStatus(fiber.StatusOK)
	})

	signed := signToken(t, jwt.MapClaims{"sub": float64(42), "role": "admin"})

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+signed)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestJWTProtectedRejectsMissingHeader(t *testing.T) {
	app := fiber.New()
	app.Use(middleware.JWTProtected(testSecret))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
