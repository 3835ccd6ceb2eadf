package webhooks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"wazeapp/internal/platform/config"
	"wazeapp/internal/platform/models"
)

// Options tunes the dispatcher. Zero values fall back to the documented defaults.
type Options struct {
	// WorkerCount bounds concurrent HTTP attempts across all chains.
	WorkerCount int
	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration

	// Defaults applied to configs created without explicit retry settings.
	MaxRetries           int
	RetryDelayMS         int
	AutoDisableThreshold int
}

func OptionsFromConfig(cfg config.WebhooksConfig) Options {
	return Options{
		WorkerCount:          cfg.WorkerCount,
		Timeout:              cfg.Timeout,
		MaxRetries:           cfg.MaxRetries,
		RetryDelayMS:         cfg.RetryDelayMS,
		AutoDisableThreshold: cfg.AutoDisableThreshold,
	}
}

func (o Options) withDefaults() Options {
	if o.WorkerCount <= 0 {
		o.WorkerCount = 32
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryDelayMS <= 0 {
		o.RetryDelayMS = 1000
	}
	if o.AutoDisableThreshold <= 0 {
		o.AutoDisableThreshold = 10
	}
	return o
}

// Dispatcher owns webhook configs and delivers events to them.
type Dispatcher struct {
	store   Store
	sender  Sender
	opts    Options
	logger  zerolog.Logger
	metrics *Metrics

	now   func() time.Time
	after func(time.Duration) <-chan time.Time

	slots chan struct{}

	mu     sync.RWMutex
	closed bool
	stop   chan struct{}
	wg     sync.WaitGroup
}

func NewDispatcher(store Store, sender Sender, opts Options, logger zerolog.Logger, metrics *Metrics) *Dispatcher {
	opts = opts.withDefaults()
	return &Dispatcher{
		store:   store,
		sender:  sender,
		opts:    opts,
		logger:  logger.With().Str("component", "webhooks").Logger(),
		metrics: metrics,
		now:     time.Now,
		after:   time.After,
		slots:   make(chan struct{}, opts.WorkerCount),
		stop:    make(chan struct{}),
	}
}

// CreateSpec is the operator input for a new webhook. Nil retry settings use the defaults.
type CreateSpec struct {
	Name                 string            `json:"name"`
	URL                  string            `json:"url"`
	Events               []string          `json:"events"`
	Headers              map[string]string `json:"headers,omitempty"`
	MaxRetries           *int              `json:"max_retries,omitempty"`
	RetryDelay           *int              `json:"retry_delay,omitempty"`
	AutoDisableThreshold *int              `json:"auto_disable_threshold,omitempty"`
}

// UpdateSpec is a partial update; nil fields are left as they are.
type UpdateSpec struct {
	Name                 *string           `json:"name,omitempty"`
	URL                  *string           `json:"url,omitempty"`
	Events               []string          `json:"events,omitempty"`
	Headers              map[string]string `json:"headers,omitempty"`
	MaxRetries           *int              `json:"max_retries,omitempty"`
	RetryDelay           *int              `json:"retry_delay,omitempty"`
	AutoDisableThreshold *int              `json:"auto_disable_threshold,omitempty"`
}

// Create registers a webhook. The returned record carries the generated secret.
func (d *Dispatcher) Create(ctx context.Context, orgID string, spec CreateSpec) (*models.WebhookConfig, error) {
	secret, err := GenerateSecret()
	if err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}

	webhook := &models.WebhookConfig{
		OrganizationID:       orgID,
		Name:                 strings.TrimSpace(spec.Name),
		URL:                  strings.TrimSpace(spec.URL),
		Secret:               secret,
		Events:               normalizeEvents(spec.Events),
		Headers:              spec.Headers,
		IsActive:             true,
		AutoDisabled:         false,
		AutoDisableThreshold: intOr(spec.AutoDisableThreshold, d.opts.AutoDisableThreshold),
		MaxRetries:           intOr(spec.MaxRetries, d.opts.MaxRetries),
		RetryDelay:           intOr(spec.RetryDelay, d.opts.RetryDelayMS),
		CreatedAt:            d.now().UnixMilli(),
	}

	if err := ValidateWebhook(webhook); err != nil {
		return nil, err
	}

	if err := d.store.Create(ctx, webhook); err != nil {
		return nil, fmt.Errorf("create webhook: %w", err)
	}

	d.logger.Info().Str("webhook_id", webhook.ID).Str("org_id", orgID).Strs("events", webhook.Events).Msg("webhook created")
	return webhook, nil
}

func (d *Dispatcher) List(ctx context.Context, orgID string) ([]*models.WebhookConfig, error) {
	webhooks, err := d.store.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	return webhooks, nil
}

func (d *Dispatcher) Get(ctx context.Context, orgID, id string) (*models.WebhookConfig, error) {
	webhook, err := d.store.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, fmt.Errorf("get webhook: %w", err)
	}
	if webhook == nil {
		return nil, ErrNotFound
	}
	return webhook, nil
}

// Update merges the provided fields into the stored config. Counters and secret are untouched.
func (d *Dispatcher) Update(ctx context.Context, orgID, id string, spec UpdateSpec) (*models.WebhookConfig, error) {
	webhook, err := d.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	if spec.Name != nil {
		webhook.Name = strings.TrimSpace(*spec.Name)
	}
	if spec.URL != nil {
		webhook.URL = strings.TrimSpace(*spec.URL)
	}
	if spec.Events != nil {
		webhook.Events = normalizeEvents(spec.Events)
	}
	if spec.Headers != nil {
		webhook.Headers = spec.Headers
	}
	if spec.MaxRetries != nil {
		webhook.MaxRetries = *spec.MaxRetries
	}
	if spec.RetryDelay != nil {
		webhook.RetryDelay = *spec.RetryDelay
	}
	if spec.AutoDisableThreshold != nil {
		webhook.AutoDisableThreshold = *spec.AutoDisableThreshold
	}

	if err := ValidateWebhook(webhook); err != nil {
		return nil, err
	}

	ok, err := d.store.Update(ctx, webhook)
	if err != nil {
		return nil, fmt.Errorf("update webhook: %w", err)
	}
	if !ok {
		return nil, ErrNotFound
	}
	return webhook, nil
}

func (d *Dispatcher) Delete(ctx context.Context, orgID, id string) error {
	ok, err := d.store.Delete(ctx, orgID, id)
	if err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	d.logger.Info().Str("webhook_id", id).Str("org_id", orgID).Msg("webhook deleted")
	return nil
}

// Toggle sets is_active and always re-arms the config: auto_disabled and the failure
// streak are cleared whatever the requested state.
func (d *Dispatcher) Toggle(ctx context.Context, orgID, id string, active bool) (*models.WebhookConfig, error) {
	ok, err := d.store.SetActive(ctx, orgID, id, active)
	if err != nil {
		return nil, fmt.Errorf("toggle webhook: %w", err)
	}
	if !ok {
		return nil, ErrNotFound
	}
	d.logger.Info().Str("webhook_id", id).Str("org_id", orgID).Bool("is_active", active).Msg("webhook toggled")
	return d.Get(ctx, orgID, id)
}

// RegenerateSecret rotates the signing secret and returns the new value.
func (d *Dispatcher) RegenerateSecret(ctx context.Context, orgID, id string) (string, error) {
	secret, err := GenerateSecret()
	if err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}

	ok, err := d.store.UpdateSecret(ctx, orgID, id, secret)
	if err != nil {
		return "", fmt.Errorf("regenerate secret: %w", err)
	}
	if !ok {
		return "", ErrNotFound
	}
	d.logger.Info().Str("webhook_id", id).Str("org_id", orgID).Msg("webhook secret regenerated")
	return secret, nil
}

func intOr(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}
