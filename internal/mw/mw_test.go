package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"ev-booking-gateway/internal/bookingapi"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func do(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestSession(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u", "exp": now.Add(-time.Minute).Unix(),
	}).SignedString([]byte("k"))
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", Session(nil, func() time.Time { return now }), func(c *gin.Context) {
		sess, ok := SessionFrom(c)
		require.True(t, ok)
		c.String(http.StatusOK, sess.Token)
	})

	w := do(r, http.MethodGet, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"missing bearer token"}`, w.Body.String())

	w = do(r, http.MethodGet, "/me", expired)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"session expired"}`, w.Body.String())

	w = do(r, http.MethodGet, "/me", "opaque")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "opaque", w.Body.String())
}

func TestSession_SchemeIsCaseInsensitive(t *testing.T) {
	r := gin.New()
	r.GET("/me", Session(nil, nil), func(c *gin.Context) {
		sess, _ := SessionFrom(c)
		c.String(http.StatusOK, sess.Token)
	})

	for _, header := range []string{"bearer tok", "BEARER tok", "Bearer   tok "} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", header)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, header)
		assert.Equal(t, "tok", w.Body.String(), header)
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSession_Verified(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	sign := func(secret string) string {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1"}).SignedString([]byte(secret))
		require.NoError(t, err)
		return tok
	}

	r := gin.New()
	r.GET("/me", Session(bookingapi.NewVerifier("backend-secret"), func() time.Time { return now }), func(c *gin.Context) {
		sess, _ := SessionFrom(c)
		c.String(http.StatusOK, sess.Key())
	})

	w := do(r, http.MethodGet, "/me", sign("backend-secret"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u:user-1", w.Body.String())

	w = do(r, http.MethodGet, "/me", sign("attacker-key"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"invalid session token"}`, w.Body.String())

	w = do(r, http.MethodGet, "/me", "opaque")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimiter(t *testing.T) {
	r := gin.New()
	r.GET("/x", RateLimiter(rate.Limit(0.001), 2), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/x", "").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/x", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, http.MethodGet, "/x", "").Code)
}

func TestCache_PerUser(t *testing.T) {
	store := cache.New(time.Minute, time.Minute)
	calls := 0

	r := gin.New()
	r.Use(Session(nil, nil))
	r.GET("/stations", Cache(store, time.Minute), func(c *gin.Context) {
		calls++
		sess, _ := SessionFrom(c)
		c.String(http.StatusOK, sess.Token)
	})
	r.POST("/stations", Invalidate(store), func(c *gin.Context) { c.Status(http.StatusCreated) })

	assert.Equal(t, "alice", do(r, http.MethodGet, "/stations", "alice").Body.String())
	hit := do(r, http.MethodGet, "/stations", "alice")
	assert.Equal(t, "alice", hit.Body.String())
	assert.Equal(t, "HIT", hit.Header().Get("X-Cache"))
	assert.Equal(t, "bob", do(r, http.MethodGet, "/stations", "bob").Body.String())
	assert.Equal(t, 2, calls)

	assert.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/stations", "alice").Code)
	do(r, http.MethodGet, "/stations", "alice")
	assert.Equal(t, 3, calls, "writes flush the cache")
}
