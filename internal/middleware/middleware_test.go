package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dutyfreepos/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), Recovery(), ErrorHandler())
	r.GET("/x", handlers...)
	return r
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestID_GeneratedAndPropagated(t *testing.T) {
	r := newEngine(func(c *gin.Context) { c.String(http.StatusOK, c.GetString(RequestIDKey)) })

	w := do(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
	assert.Equal(t, w.Header().Get(RequestIDHeader), w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, "dash-42")
	w = do(r, req)
	assert.Equal(t, "dash-42", w.Header().Get(RequestIDHeader))
}

func TestErrorHandler_MapsTaxonomy(t *testing.T) {
	tests := []struct {
		err    error
		status int
		detail string
	}{
		{&apierror.TransportError{Op: "GET /health", Err: errors.New("refused")}, http.StatusServiceUnavailable, ""},
		{fmt.Errorf("open: %w", &apierror.ServerError{Status: 409, Detail: "already open"}), http.StatusConflict, "already open"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tt := range tests {
		r := newEngine(func(c *gin.Context) { _ = c.Error(tt.err) })
		w := do(r, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, tt.status, w.Code)

		var body apierror.APIError
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		if tt.detail != "" {
			assert.Equal(t, tt.detail, body.Detail)
		}
	}
}

func TestRecovery_HidesPanic(t *testing.T) {
	r := newEngine(func(*gin.Context) { panic("secret stack") })

	w := do(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "secret")
}

func TestCORS_AllowsConfiguredOrigin(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"http://localhost:3000"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := do(r, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = do(r, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRateLimiter_FixedWindow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l := NewRateLimiter(2, time.Minute, clock)

	ok, _ := l.Allow("10.0.0.1")
	assert.True(t, ok)
	ok, _ = l.Allow("10.0.0.1")
	assert.True(t, ok)
	ok, _ = l.Allow("10.0.0.1")
	assert.False(t, ok)

	ok, _ = l.Allow("10.0.0.2")
	assert.True(t, ok, "limits are per client")

	clock.Advance(time.Minute + time.Second)
	ok, _ = l.Allow("10.0.0.1")
	assert.True(t, ok, "a new window starts after expiry")
}

func TestRateLimiter_Middleware(t *testing.T) {
	l := NewRateLimiter(1, time.Minute, clockwork.NewFakeClock())
	r := gin.New()
	r.POST("/replay", l.Middleware(), func(c *gin.Context) { c.Status(http.StatusAccepted) })

	w := do(r, httptest.NewRequest(http.MethodPost, "/replay", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = do(r, httptest.NewRequest(http.MethodPost, "/replay", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}
