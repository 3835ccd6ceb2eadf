package middleware

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	apiContext "wazeapp/internal/api/context"
	"wazeapp/internal/pkg/errors"
	"wazeapp/internal/platform/config"
)

// Limit classes applied to route groups.
const (
	LimitAPIRead     = "api_read"
	LimitAPIWrite    = "api_write"
	LimitWebhookTest = "webhook_test"
)

type RateLimiter struct {
	store  *sync.Map // map[string]*Bucket
	limits map[string]int
	now    func() time.Time
	done   chan struct{}
}

type Bucket struct {
	tokens     int
	lastRefill time.Time
	mu         sync.Mutex
	// We need to know when it was last accessed to clean it up
	lastAccess time.Time
}

func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		store: &sync.Map{},
		limits: map[string]int{
			LimitAPIRead:     cfg.APIReadPerMinute,
			LimitAPIWrite:    cfg.APIWritePerMinute,
			LimitWebhookTest: cfg.WebhookTestPerMinute,
		},
		now:  time.Now,
		done: make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
		}

		now := rl.now()
		rl.store.Range(func(key, value interface{}) bool {
			bucket := value.(*Bucket)
			bucket.mu.Lock()
			if now.Sub(bucket.lastAccess) > 10*time.Minute {
				rl.store.Delete(key)
			}
			bucket.mu.Unlock()
			return true
		})
	}
}

// Stop ends the cleanup loop.
func (rl *RateLimiter) Stop() {
	close(rl.done)
}

// Allow takes a token from key's bucket, refilled at limit per minute.
func (rl *RateLimiter) Allow(key string, limit int) bool {
	now := rl.now()

	val, _ := rl.store.LoadOrStore(key, &Bucket{
		tokens:     limit,
		lastRefill: now,
		lastAccess: now,
	})

	bucket := val.(*Bucket)
	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	bucket.lastAccess = now

	elapsed := now.Sub(bucket.lastRefill)
	refillRate := float64(limit) / 60.0
	refillTokens := int(elapsed.Seconds() * refillRate)

	if refillTokens > 0 {
		if bucket.tokens+refillTokens > limit {
			bucket.tokens = limit
		} else {
			bucket.tokens += refillTokens
		}
		bucket.lastRefill = now
	}

	if bucket.tokens > 0 {
		bucket.tokens--
		return true
	}

	return false
}

// Limit keys buckets by organization when a tenant is resolved, by client IP otherwise.
// A limit class configured as zero or less is not enforced.
func (rl *RateLimiter) Limit(limitType string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			limit := rl.limits[limitType]
			if limit <= 0 {
				next(w, r)
				return
			}

			var key string
			if tenant, ok := r.Context().Value(apiContext.Tenant).(*TenantContext); ok && tenant != nil {
				key = fmt.Sprintf("%s:%s", tenant.OrgID, limitType)
			} else {
				ip, _, err := net.SplitHostPort(r.RemoteAddr)
				if err != nil {
					ip = r.RemoteAddr
				}
				key = fmt.Sprintf("%s:%s", ip, limitType)
			}

			if !rl.Allow(key, limit) {
				w.Header().Set("Retry-After", "60")
				errors.WriteError(w, http.StatusTooManyRequests, errors.ErrCodeRateLimitExceeded, "Rate limit exceeded", nil)
				return
			}

			next(w, r)
		}
	}
}
