package webhooks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"wazeapp/internal/platform/models"
	"wazeapp/internal/platform/repositories"
)

// memStore is an in-memory Store with the same field-level semantics as the SQL repository.
type memStore struct {
	mu      sync.Mutex
	records map[string]*models.WebhookConfig
	seq     int
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]*models.WebhookConfig)}
}

func clone(w *models.WebhookConfig) *models.WebhookConfig {
	c := *w
	c.Events = append([]string(nil), w.Events...)
	if w.Headers != nil {
		c.Headers = make(map[string]string, len(w.Headers))
		for k, v := range w.Headers {
			c.Headers[k] = v
		}
	}
	return &c
}

// put stores a record as-is, bypassing validation.
func (s *memStore) put(w *models.WebhookConfig) *models.WebhookConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	if w.ID == "" {
		w.ID = fmt.Sprintf("wh_test_%d", s.seq)
	}
	if w.CreatedAt == 0 {
		w.CreatedAt = int64(s.seq)
	}
	s.records[w.ID] = clone(w)
	return w
}

func (s *memStore) snapshot(id string) *models.WebhookConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.records[id]
	if !ok {
		return nil
	}
	return clone(w)
}

func (s *memStore) Create(ctx context.Context, w *models.WebhookConfig) error {
	s.put(w)
	return nil
}

func (s *memStore) GetByID(ctx context.Context, orgID, id string) (*models.WebhookConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.records[id]
	if !ok || w.OrganizationID != orgID {
		return nil, nil
	}
	return clone(w), nil
}

func (s *memStore) list(orgID string, filter func(*models.WebhookConfig) bool) []*models.WebhookConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.WebhookConfig{}
	for _, w := range s.records {
		if w.OrganizationID == orgID && filter(w) {
			out = append(out, clone(w))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out
}

func (s *memStore) ListByOrg(ctx context.Context, orgID string) ([]*models.WebhookConfig, error) {
	return s.list(orgID, func(*models.WebhookConfig) bool { return true }), nil
}

func (s *memStore) FindDeliverable(ctx context.Context, orgID string) ([]*models.WebhookConfig, error) {
	return s.list(orgID, func(w *models.WebhookConfig) bool { return w.IsActive && !w.AutoDisabled }), nil
}

func (s *memStore) mutate(orgID, id string, fn func(w *models.WebhookConfig)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.records[id]
	if !ok || (orgID != "" && w.OrganizationID != orgID) {
		return false
	}
	fn(w)
	return true
}

func (s *memStore) Update(ctx context.Context, u *models.WebhookConfig) (bool, error) {
	return s.mutate(u.OrganizationID, u.ID, func(w *models.WebhookConfig) {
		w.Name, w.URL = u.Name, u.URL
		w.Events = append([]string(nil), u.Events...)
		w.Headers = u.Headers
		w.MaxRetries, w.RetryDelay, w.AutoDisableThreshold = u.MaxRetries, u.RetryDelay, u.AutoDisableThreshold
	}), nil
}

func (s *memStore) Delete(ctx context.Context, orgID, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.records[id]
	if !ok || w.OrganizationID != orgID {
		return false, nil
	}
	delete(s.records, id)
	return true, nil
}

func (s *memStore) SetActive(ctx context.Context, orgID, id string, active bool) (bool, error) {
	return s.mutate(orgID, id, func(w *models.WebhookConfig) {
		w.IsActive = active
		w.AutoDisabled = false
		w.ConsecutiveFailures = 0
	}), nil
}

func (s *memStore) UpdateSecret(ctx context.Context, orgID, id, secret string) (bool, error) {
	return s.mutate(orgID, id, func(w *models.WebhookConfig) { w.Secret = secret }), nil
}

func (s *memStore) RecordSuccess(ctx context.Context, id string, at int64) (bool, error) {
	return s.mutate("", id, func(w *models.WebhookConfig) {
		w.ConsecutiveFailures = 0
		w.TotalTriggered++
		w.TotalSuccess++
		w.LastTriggeredAt, w.LastSuccessAt = &at, &at
	}), nil
}

func (s *memStore) RecordFailure(ctx context.Context, id string, at int64, message string) (*repositories.FailureCounters, error) {
	var c *repositories.FailureCounters
	s.mutate("", id, func(w *models.WebhookConfig) {
		w.ConsecutiveFailures++
		w.TotalTriggered++
		w.TotalFailures++
		w.LastTriggeredAt, w.LastFailureAt = &at, &at
		w.LastError = &message
		c = &repositories.FailureCounters{
			ConsecutiveFailures:  w.ConsecutiveFailures,
			AutoDisableThreshold: w.AutoDisableThreshold,
			AutoDisabled:         w.AutoDisabled,
		}
	})
	return c, nil
}

func (s *memStore) MarkAutoDisabled(ctx context.Context, id string) (bool, error) {
	flipped := false
	s.mutate("", id, func(w *models.WebhookConfig) {
		if !w.AutoDisabled && w.ConsecutiveFailures >= w.AutoDisableThreshold {
			w.AutoDisabled = true
			flipped = true
		}
	})
	return flipped, nil
}

// delayRecorder replaces time.After so backoff waits return immediately and are observable.
type delayRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
	hook   func(n int)
}

func (r *delayRecorder) after(d time.Duration) <-chan time.Time {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	n := len(r.delays)
	hook := r.hook
	r.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func (r *delayRecorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

func newTestDispatcher(t *testing.T, store Store, opts Options) (*Dispatcher, *delayRecorder) {
	t.Helper()
	if opts.Timeout == 0 {
		opts.Timeout = 2 * time.Second
	}
	d := NewDispatcher(store, NewHTTPSender(opts.Timeout, 1024), opts, zerolog.Nop(), NewMetrics(prometheus.NewRegistry()))
	rec := &delayRecorder{}
	d.after = rec.after
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		d.Shutdown(ctx)
	})
	return d, rec
}
