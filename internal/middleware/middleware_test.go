package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/concert-seat-reservation/internal/config"
	"github.com/iliyamo/concert-seat-reservation/internal/utils"
)

const secret = "test-secret"

func serve(t *testing.T, e *echo.Echo, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func whoami(c echo.Context) error {
	uid, ok := UserID(c)
	if !ok {
		return c.NoContent(http.StatusUnauthorized)
	}
	return c.JSON(http.StatusOK, echo.Map{"user_id": uid, "role": c.Get(ContextRole)})
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	e.GET("/whoami", whoami, JWTAuth(secret))

	tok, err := utils.NewAccessToken(secret, 7, utils.RoleCustomer, time.Minute)
	require.NoError(t, err)
	rec := serve(t, e, tok.Token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":7,"role":"CUSTOMER"}`, rec.Body.String())

	rec = serve(t, e, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing bearer token")

	forged, err := utils.NewAccessToken("wrong", 7, utils.RoleCustomer, time.Minute)
	require.NoError(t, err)
	rec = serve(t, e, forged.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	zero, err := utils.NewAccessToken(secret, 0, utils.RoleCustomer, time.Minute)
	require.NoError(t, err)
	rec = serve(t, e, zero.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid claims")
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	e.GET("/whoami", whoami, JWTAuth(secret), RequireRole(utils.RoleOwner))

	customer, err := utils.NewAccessToken(secret, 1, utils.RoleCustomer, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, serve(t, e, customer.Token).Code)

	owner, err := utils.NewAccessToken(secret, 2, utils.RoleOwner, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, serve(t, e, owner.Token).Code)
}

func TestTokenBucketPassThroughWithoutRedis(t *testing.T) {
	e := echo.New()
	logger := NewLogger(&bytes.Buffer{}, "debug", false)
	e.GET("/whoami", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
		NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil, logger))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusNoContent, serve(t, e, "").Code)
	}
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/reservations/hold", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.9")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/reservations/hold")

	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip_user_route"}
	assert.Equal(t, "rl:ip:10.0.0.9:user:anon:route:POST /v1/reservations/hold", buildRateKey(cfg, c))

	c.Set(ContextUserID, uint64(12))
	cfg.KeyStrategy = "user"
	assert.Equal(t, "rl:user:12", buildRateKey(cfg, c))
}

func TestRequestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	e.Use(RequestLogger(NewLogger(&buf, "info", true)))
	e.GET("/ok", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/gone", func(c echo.Context) error { return c.JSON(http.StatusGone, echo.Map{"error": "hold expired"}) })

	for _, path := range []string{"/ok", "/gone"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"level":"INFO"`)
	assert.Contains(t, lines[1], `"level":"WARN"`)
	assert.Contains(t, lines[1], `"status_code":410`)
}
