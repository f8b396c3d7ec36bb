package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/peer-support/internal/config"
	"github.com/iliyamo/peer-support/internal/model"
	"github.com/iliyamo/peer-support/internal/service"
)

type fakeTokens map[string]string

func (f fakeTokens) VerifyAccess(raw string) (string, error) {
	if id, ok := f[raw]; ok {
		return id, nil
	}
	return "", errors.New("bad token")
}

type fakeUsers map[string]*model.User

func (f fakeUsers) Lookup(_ context.Context, id string) (*model.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, &service.Error{Kind: service.Unauthorized, Msg: "user does not exist"}
}

func newAuthServer() *echo.Echo {
	e := echo.New()
	tokens := fakeTokens{"good": "u1", "orphan": "gone"}
	users := fakeUsers{"u1": {ID: "u1", Role: model.RoleClient, Status: model.UserStatusActive}}
	g := e.Group("", JWTAuth(tokens, users))
	g.GET("/me", func(c echo.Context) error { return c.String(http.StatusOK, CurrentUser(c).ID) })
	g.GET("/admin", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, RequireRole(model.RoleAdmin))
	return e
}

func TestJWTAuth(t *testing.T) {
	e := newAuthServer()
	cases := []struct {
		name   string
		setup  func(*http.Request)
		status int
	}{
		{"no credentials", func(*http.Request) {}, http.StatusUnauthorized},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer good") }, http.StatusOK},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: AccessCookie, Value: "good"}) }, http.StatusOK},
		{"bad token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
		{"deleted account", func(r *http.Request) { r.Header.Set("Authorization", "Bearer orphan") }, http.StatusUnauthorized},
		{"header wins over cookie", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer nope")
			r.AddCookie(&http.Cookie{Name: AccessCookie, Value: "good"})
		}, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			tc.setup(req)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			if tc.status == http.StatusOK {
				assert.Equal(t, "u1", rec.Body.String())
			} else {
				assert.Contains(t, rec.Body.String(), `"success":false`)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	e := newAuthServer()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestTokenBucketLocalFallback(t *testing.T) {
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            time.Hour,
		KeyStrategy:    "ip",
		Prefix:         "rl",
	}
	e := echo.New()
	e.Use(NewTokenBucket(cfg, nil))
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	hit := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":1234"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, hit("10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, hit("10.0.0.1").Code)
	blocked := hit("10.0.0.1")
	require.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.NotEmpty(t, blocked.Header().Get("Retry-After"))
	assert.Equal(t, "2", blocked.Header().Get("X-RateLimit-Limit"))

	assert.Equal(t, http.StatusOK, hit("10.0.0.2").Code, "buckets are per key")
}

func TestTokenBucketDisabled(t *testing.T) {
	e := echo.New()
	e.Use(NewTokenBucket(config.RateLimitConfig{Enabled: false}, nil))
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}
