package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/skillmentorx-api/internal/models"
	appErrors "github.com/noah-isme/skillmentorx-api/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type tokenStub map[string]*models.JWTClaims

func (s tokenStub) ValidateToken(token string) (*models.JWTClaims, error) {
	claims, ok := s[token]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return claims, nil
}

func newProtectedRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	validator := tokenStub{
		"student": {UserID: "s1", Role: models.RoleStudent},
		"admin":   {UserID: "a1", Role: models.RoleAdmin},
		"fresh":   {UserID: "n1", Role: models.RoleNone},
	}
	chain := append([]gin.HandlerFunc{JWT(validator)}, handlers...)
	chain = append(chain, func(c *gin.Context) {
		userID, _ := c.Get(ContextUserIDKey)
		c.String(http.StatusOK, userID.(string))
	})
	r.GET("/protected", chain...)
	return r
}

func doRequest(r http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestJWT(t *testing.T) {
	r := newProtectedRouter()

	assert.Equal(t, http.StatusUnauthorized, doRequest(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, doRequest(r, "bogus").Code)

	rec := doRequest(r, "student")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "s1", rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Basic abc")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRoles(t *testing.T) {
	r := newProtectedRouter(RequireRoles(models.RoleAdmin))

	assert.Equal(t, http.StatusForbidden, doRequest(r, "student").Code)
	assert.Equal(t, http.StatusOK, doRequest(r, "admin").Code)
	assert.Equal(t, http.StatusUnauthorized, doRequest(r, "").Code)
}

func TestRequireNoRole(t *testing.T) {
	r := newProtectedRouter(RequireNoRole())

	assert.Equal(t, http.StatusOK, doRequest(r, "fresh").Code)
	assert.Equal(t, http.StatusConflict, doRequest(r, "student").Code)
}

type memoryLimiter struct {
	mu     sync.Mutex
	counts map[string]int
	err    error
}

// Allow spends from a fixed window that never resets, enough to drive the middleware.
func (m *memoryLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (models.RateDecision, error) {
	if m.err != nil {
		return models.RateDecision{}, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = map[string]int{}
	}
	if m.counts[key] >= limit {
		return models.RateDecision{Remaining: 0, RetryAfter: window, ResetAfter: window}, nil
	}
	m.counts[key]++
	return models.RateDecision{Allowed: true, Remaining: limit - m.counts[key], ResetAfter: window}, nil
}

func TestRateLimit(t *testing.T) {
	limiter := &memoryLimiter{}
	r := gin.New()
	r.POST("/login", RateLimit(limiter, RateLimitConfig{Prefix: "auth", Requests: 2, Window: time.Minute}, nil), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	first := send()
	assert.Equal(t, http.StatusNoContent, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusNoContent, send().Code)

	blocked := send()
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.Equal(t, "60", blocked.Header().Get("Retry-After"))
	assert.Equal(t, "0", blocked.Header().Get("X-RateLimit-Remaining"))
	assert.Contains(t, blocked.Body.String(), "RATE_LIMITED")
}

func TestRateLimitFailsOpen(t *testing.T) {
	r := gin.New()
	r.GET("/x", RateLimit(&memoryLimiter{err: errors.New("redis down")}, RateLimitConfig{Requests: 1}, nil), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

type auditSink struct {
	logs []*models.AuditLog
}

func (a *auditSink) Create(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func TestAuditRecordsSuccessfulCalls(t *testing.T) {
	sink := &auditSink{}
	r := newProtectedRouter(Audit(sink, nil, "REQUEST_EXPORT", "request"))

	require.Equal(t, http.StatusOK, doRequest(r, "admin").Code)
	require.Len(t, sink.logs, 1)
	assert.Equal(t, "REQUEST_EXPORT", sink.logs[0].Action)
	require.NotNil(t, sink.logs[0].UserID)
	assert.Equal(t, "a1", *sink.logs[0].UserID)

	doRequest(r, "")
	assert.Len(t, sink.logs, 1)
}
