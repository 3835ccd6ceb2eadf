package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	apiContext "wazeapp/internal/api/context"
	"wazeapp/internal/platform/config"
)

func TestRateLimiter_AllowAndRefill(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{})
	defer rl.Stop()

	now := time.Unix(1700000000, 0)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("org_1:api_write", 3))
	}
	assert.False(t, rl.Allow("org_1:api_write", 3))
	assert.True(t, rl.Allow("org_2:api_write", 3), "buckets are per key")

	now = now.Add(20 * time.Second)
	assert.True(t, rl.Allow("org_1:api_write", 3))
	assert.False(t, rl.Allow("org_1:api_write", 3))
}

func TestRateLimiter_LimitPerTenant(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{WebhookTestPerMinute: 1})
	defer rl.Stop()

	handler := rl.Limit(LimitWebhookTest)(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	request := func(orgID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req = req.WithContext(context.WithValue(req.Context(), apiContext.Tenant, &TenantContext{OrgID: orgID}))
		rr := httptest.NewRecorder()
		handler(rr, req)
		return rr
	}

	assert.Equal(t, http.StatusOK, request("org_1").Code)

	rr := request("org_1")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))
	assert.Contains(t, rr.Body.String(), "RATE_LIMIT_EXCEEDED")

	assert.Equal(t, http.StatusOK, request("org_2").Code)
}

func TestRateLimiter_UnconfiguredClassIsOpen(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{})
	defer rl.Stop()

	handler := rl.Limit(LimitAPIRead)(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	for i := 0; i < 5; i++ {
		rr := httptest.NewRecorder()
		handler(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, rr.Code)
	}
}
