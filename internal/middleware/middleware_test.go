package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"currency_ledger/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"uuid": c.GetString(ContextUUID), "name": c.GetString(ContextName)})
	})
	return r
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuthMiddleware(t *testing.T) {
	r := newRouter(JWTAuthMiddleware("secret"))
	valid, err := utils.GenerateJWT("u1", "Alice", "secret", time.Now())
	require.NoError(t, err)
	expired, err := utils.GenerateJWT("u1", "Alice", "secret", time.Now().Add(-time.Hour))
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer abc.def.ghi", http.StatusForbidden},
		{"expired token", "Bearer " + expired, http.StatusForbidden},
		{"valid token", "Bearer " + valid, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := serve(r, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.JSONEq(t, `{"uuid":"u1","name":"Alice"}`, w.Body.String())
			}
		})
	}
}

func TestProxyTrustClientIP(t *testing.T) {
	trust, err := NewProxyTrust([]string{"127.0.0.1", "10.1.0.0/16"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		xff    string
		realIP string
		remote string
		want   string
	}{
		{"trusted proxy forwarded first entry", "1.2.3.4, 5.6.7.8", "9.9.9.9", "127.0.0.1:1234", "1.2.3.4"},
		{"trusted range real ip", "", "9.9.9.9", "10.1.2.3:1234", "9.9.9.9"},
		{"trusted proxy without headers", "", "", "127.0.0.1:1234", "127.0.0.1"},
		{"trusted mapped forwarded", "::ffff:10.0.0.5", "", "[::ffff:127.0.0.1]:1234", "10.0.0.5"},
		{"untrusted peer ignores forwarded", "10.0.0.5", "10.0.0.5", "203.0.113.9:4444", "203.0.113.9"},
		{"mapped remote addr", "", "", "[::ffff:10.0.0.1]:1234", "10.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			assert.Equal(t, tt.want, trust.ClientIP(req))
		})
	}
}

func TestNewProxyTrustRejectsGarbage(t *testing.T) {
	_, err := NewProxyTrust([]string{"not-an-ip"})
	assert.Error(t, err)
	_, err = NewProxyTrust([]string{"10.0.0.0/99"})
	assert.Error(t, err)
}

func TestIPAllowlistMiddleware(t *testing.T) {
	trust, err := NewProxyTrust([]string{"127.0.0.1"})
	require.NoError(t, err)
	r := newRouter(ClientIPMiddleware(trust), IPAllowlistMiddleware([]string{"127.0.0.1", "::ffff:10.0.0.5"}))

	tests := []struct {
		name   string
		remote string
		xff    string
		status int
	}{
		{"listed peer", "127.0.0.1:5555", "", http.StatusOK},
		{"listed mapped entry", "10.0.0.5:5555", "", http.StatusOK},
		{"unlisted peer", "192.168.1.1:5555", "", http.StatusForbidden},
		{"listed client behind trusted proxy", "127.0.0.1:5555", "10.0.0.5", http.StatusOK},
		{"unlisted client behind trusted proxy", "127.0.0.1:5555", "192.168.1.1", http.StatusForbidden},
		{"forged forwarded header from untrusted peer", "203.0.113.9:4444", "10.0.0.5", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			assert.Equal(t, tt.status, serve(r, req).Code)
		})
	}
}

func TestIPAllowlistWithoutResolverUsesRemoteAddr(t *testing.T) {
	r := newRouter(IPAllowlistMiddleware([]string{"10.0.0.5"}))
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "203.0.113.9:4444"
	req.Header.Set("X-Forwarded-For", "10.0.0.5")
	assert.Equal(t, http.StatusForbidden, serve(r, req).Code)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	r := newRouter(rl.Handler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "10.0.0.1:1000"
		codes = append(codes, serve(r, req).Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "10.0.0.2:1000"
	assert.Equal(t, http.StatusOK, serve(r, req).Code, "other clients have their own bucket")
}

func TestRateLimiterIgnoresForgedForwardedFor(t *testing.T) {
	trust, err := NewProxyTrust([]string{"127.0.0.1"})
	require.NoError(t, err)
	rl := NewRateLimiter(1, 1)
	r := newRouter(ClientIPMiddleware(trust), rl.Handler())

	codes := make([]int, 0, 2)
	for _, forged := range []string{"1.1.1.1", "2.2.2.2"} {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "203.0.113.9:4444"
		req.Header.Set("X-Forwarded-For", forged)
		codes = append(codes, serve(r, req).Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	rl.getLimiter("a")
	rl.Cleanup(time.Hour)
	assert.Len(t, rl.limiters, 1)
	rl.limiters["a"].lastSeen = time.Now().Add(-2 * time.Hour)
	rl.Cleanup(time.Hour)
	assert.Empty(t, rl.limiters)
}

func TestRequestLoggerSetsRequestID(t *testing.T) {
	r := newRouter(RequestLogger())

	w := serve(r, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "abc")
	w = serve(r, req)
	assert.Equal(t, "abc", w.Header().Get(RequestIDHeader))
}
