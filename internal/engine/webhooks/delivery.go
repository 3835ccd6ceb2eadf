package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"wazeapp/internal/platform/models"
)

type attemptOutcome int

const (
	attemptSucceeded attemptOutcome = iota
	// attemptFailed leaves the retry decision to the chain.
	attemptFailed
	// attemptStopped ends the chain: auto-disabled or config gone.
	attemptStopped
)

// Trigger starts one independent delivery chain per deliverable config of orgID subscribed to
// eventType. It returns once the chains are started; delivery outcomes never reach the caller.
func (d *Dispatcher) Trigger(ctx context.Context, orgID, eventType string, payload interface{}) (int, error) {
	if d.isClosed() {
		return 0, ErrDispatcherClosed
	}

	configs, err := d.store.FindDeliverable(ctx, orgID)
	if err != nil {
		return 0, fmt.Errorf("load webhooks: %w", err)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return 0, ErrDispatcherClosed
	}

	started := 0
	for _, cfg := range configs {
		if !cfg.Deliverable() || !cfg.Subscribes(eventType) {
			continue
		}
		d.wg.Add(1)
		d.metrics.chainStarted()
		go d.run(cfg, eventType, payload)
		started++
	}

	d.logger.Debug().Str("org_id", orgID).Str("event", eventType).Int("webhooks", started).Msg("event dispatched")
	return started, nil
}

// run is one delivery chain. Attempts are sequential; a retry waits retryDelay*2^attempt.
func (d *Dispatcher) run(cfg *models.WebhookConfig, eventType string, payload interface{}) {
	defer d.wg.Done()
	defer d.metrics.chainFinished()

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			current, err := d.store.GetByID(context.Background(), cfg.OrganizationID, cfg.ID)
			if err != nil {
				d.logger.Error().Err(err).Str("webhook_id", cfg.ID).Msg("failed to reload webhook before retry")
				d.metrics.chainAbandoned("store_error")
				return
			}
			if current == nil || !current.Deliverable() {
				d.logger.Debug().Str("webhook_id", cfg.ID).Int("attempt", attempt).Msg("webhook removed or disabled, retry dropped")
				d.metrics.chainAbandoned("disabled")
				return
			}
			cfg = current
		}

		if d.deliver(cfg, eventType, payload, attempt) != attemptFailed {
			return
		}

		if attempt >= cfg.MaxRetries {
			d.logger.Warn().Str("webhook_id", cfg.ID).Str("event", eventType).Int("attempts", attempt+1).Msg("webhook retries exhausted")
			return
		}

		delay := backoff(cfg.RetryDelay, attempt)
		d.metrics.retryScheduled()
		d.logger.Debug().Str("webhook_id", cfg.ID).Int("attempt", attempt+1).Dur("delay", delay).Msg("webhook retry scheduled")

		select {
		case <-d.after(delay):
		case <-d.stop:
			d.logger.Warn().Str("webhook_id", cfg.ID).Str("event", eventType).Msg("pending webhook retry dropped on shutdown")
			d.metrics.chainAbandoned("shutdown")
			return
		}
	}
}

func backoff(retryDelayMS, attempt int) time.Duration {
	return time.Duration(retryDelayMS) * time.Millisecond * time.Duration(int64(1)<<uint(attempt))
}

// deliver performs one attempt and records its outcome on the config.
func (d *Dispatcher) deliver(cfg *models.WebhookConfig, eventType string, payload interface{}, attempt int) attemptOutcome {
	ctx := context.Background()
	res := d.send(ctx, cfg, eventType, payload)
	if errors.Is(res.err, ErrDispatcherClosed) {
		d.logger.Warn().Str("webhook_id", cfg.ID).Str("event", eventType).Msg("queued webhook delivery dropped on shutdown")
		d.metrics.chainAbandoned("shutdown")
		return attemptStopped
	}
	at := d.now().UnixMilli()

	log := d.logger.With().
		Str("webhook_id", cfg.ID).
		Str("org_id", cfg.OrganizationID).
		Str("event", eventType).
		Int("attempt", attempt).
		Int("status", res.statusCode).
		Dur("duration", res.duration).
		Logger()

	if res.err == nil {
		if _, err := d.store.RecordSuccess(ctx, cfg.ID, at); err != nil {
			log.Error().Err(err).Msg("failed to record webhook success")
		}
		log.Debug().Msg("webhook delivered")
		return attemptSucceeded
	}

	message := d.failureMessage(res.err)
	log.Warn().Str("error", message).Msg("webhook delivery failed")

	counters, err := d.store.RecordFailure(ctx, cfg.ID, at, message)
	if err != nil {
		log.Error().Err(err).Msg("failed to record webhook failure")
		return attemptFailed
	}
	if counters == nil || counters.AutoDisabled {
		return attemptStopped
	}

	if counters.ConsecutiveFailures >= counters.AutoDisableThreshold {
		flipped, err := d.store.MarkAutoDisabled(ctx, cfg.ID)
		if err != nil {
			log.Error().Err(err).Msg("failed to auto-disable webhook")
		}
		if flipped {
			d.metrics.autoDisabled()
			log.Warn().Int("consecutive_failures", counters.ConsecutiveFailures).Msg("webhook auto-disabled")
		}
		return attemptStopped
	}

	return attemptFailed
}

type sendResult struct {
	statusCode int
	err        error
	duration   time.Duration
}

// send waits for a slot, then builds, signs and posts the envelope so the timestamp reflects
// the moment of sending. It never touches the store.
func (d *Dispatcher) send(ctx context.Context, cfg *models.WebhookConfig, eventType string, payload interface{}) sendResult {
	select {
	case d.slots <- struct{}{}:
	case <-d.stop:
		return sendResult{err: ErrDispatcherClosed}
	case <-ctx.Done():
		return sendResult{err: ctx.Err()}
	}
	defer func() { <-d.slots }()

	timestamp := d.now().UnixMilli()
	body, err := json.Marshal(models.WebhookEnvelope{
		Event:     eventType,
		Timestamp: timestamp,
		Data:      payload,
	})
	if err != nil {
		return sendResult{err: fmt.Errorf("encode payload: %w", err)}
	}

	header := buildHeaders(cfg, eventType, timestamp, Sign(cfg.Secret, body))

	ctx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := d.sender.Post(ctx, cfg.URL, body, header)
	res := sendResult{err: err, duration: time.Since(start)}
	if err == nil {
		res.statusCode = resp.StatusCode
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			res.err = &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(resp.Body), 512)}
		}
	}

	d.metrics.recordAttempt(res.err == nil, res.duration)
	return res
}

// buildHeaders applies config headers first and the reserved headers last.
func buildHeaders(cfg *models.WebhookConfig, eventType string, timestamp int64, signature string) http.Header {
	header := make(http.Header, len(cfg.Headers)+5)
	header.Set("User-Agent", "WazeApp-Webhook/1.0")

	for name, value := range cfg.Headers {
		if isReservedHeader(name) {
			continue
		}
		header.Set(name, value)
	}

	header.Set(HeaderContentType, "application/json")
	header.Set(HeaderSignature, signature)
	header.Set(HeaderEvent, eventType)
	header.Set(HeaderTimestamp, strconv.FormatInt(timestamp, 10))
	return header
}

func (d *Dispatcher) failureMessage(err error) string {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Sprintf("request timed out after %s", d.opts.Timeout)
	}
	return truncate(err.Error(), 1024)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

// TestResult is the outcome of a diagnostic delivery. Duration is in milliseconds.
type TestResult struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"status_code,omitempty"`
	Error      string `json:"error,omitempty"`
	Duration   int64  `json:"duration"`
}

// TestWebhook sends a single synthetic "test" event and reports the result. It does not retry
// and does not change any counters.
func (d *Dispatcher) TestWebhook(ctx context.Context, orgID, id string) (*TestResult, error) {
	cfg, err := d.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"message":      "This is a test webhook from WazeApp",
		"webhook_id":   cfg.ID,
		"webhook_name": cfg.Name,
	}

	res := d.send(ctx, cfg, EventTest, payload)
	if errors.Is(res.err, ErrDispatcherClosed) {
		return nil, res.err
	}
	result := &TestResult{
		Success:    res.err == nil,
		StatusCode: res.statusCode,
		Duration:   res.duration.Milliseconds(),
	}
	if res.err != nil {
		result.Error = d.failureMessage(res.err)
	}

	d.logger.Info().Str("webhook_id", cfg.ID).Bool("success", result.Success).Int("status", res.statusCode).Msg("webhook test sent")
	return result, nil
}

func (d *Dispatcher) isClosed() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.closed
}

// Shutdown stops accepting triggers, drops pending retries and waits for in-flight attempts
// until ctx is done.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.stop)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info().Msg("webhook dispatcher drained")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("webhook dispatcher drain: %w", ctx.Err())
	}
}
