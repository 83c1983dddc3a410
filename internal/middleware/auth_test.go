package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"prok/internal/auth"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

func TestAuthRequired(t *testing.T) {
	issuer, err := auth.NewTokenIssuer(testSecret)
	require.NoError(t, err)

	past := time.Now().Add(-48 * time.Hour)
	stale, err := auth.NewTokenIssuer(testSecret, auth.WithClock(func() time.Time { return past }))
	require.NoError(t, err)

	app := fiber.New()
	app.Get("/test", AuthRequired(issuer), func(c *fiber.Ctx) error {
		uid, ok := UserID(c)
		ctxUID, _ := c.UserContext().Value(UserIDKey).(uint)
		return c.JSON(fiber.Map{"userID": uid, "ok": ok, "ctx": ctxUID})
	})

	valid, err := issuer.Issue(123)
	require.NoError(t, err)
	expired, err := stale.Issue(123)
	require.NoError(t, err)

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
		expectedError  string
	}{
		{"Happy Path", "Bearer " + valid, http.StatusOK, ""},
		{"Missing Header", "", http.StatusUnauthorized, "Authorization required"},
		{"Invalid Format", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, "Invalid authorization header format"},
		{"Empty Bearer", "Bearer ", http.StatusUnauthorized, "Invalid authorization header format"},
		{"Malformed Token", "Bearer malformed.token.here", http.StatusUnauthorized, "Invalid token"},
		{"Expired Token", "Bearer " + expired, http.StatusUnauthorized, "Token has expired"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			if tt.expectedStatus == http.StatusOK {
				assert.Equal(t, float64(123), body["userID"])
				assert.Equal(t, float64(123), body["ctx"])
				assert.Equal(t, true, body["ok"])
			} else {
				assert.Equal(t, tt.expectedError, body["error"])
			}
		})
	}
}

func TestUserID_Unset(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		_, ok := UserID(c)
		return c.JSON(fiber.Map{"ok": ok})
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var body map[string]bool
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.False(t, body["ok"])
}
