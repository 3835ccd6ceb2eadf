package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"wazeapp/internal/platform/models"
)

const webhookColumns = `id, organization_id, name, url, secret, events, headers, is_active, auto_disabled,
	auto_disable_threshold, max_retries, retry_delay, consecutive_failures, total_triggered, total_success,
	total_failures, last_triggered_at, last_success_at, last_failure_at, last_error, created_at, updated_at`

// FailureCounters is the state of a config right after a failed attempt was recorded.
type FailureCounters struct {
	ConsecutiveFailures  int
	AutoDisableThreshold int
	AutoDisabled         bool
}

type WebhookRepository struct {
	db *sql.DB
}

func NewWebhookRepository(db *sql.DB) *WebhookRepository {
	return &WebhookRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanWebhook(row rowScanner) (*models.WebhookConfig, error) {
	var w models.WebhookConfig
	var eventsStr string
	var headersStr sql.NullString
	var lastTriggeredAt, lastSuccessAt, lastFailureAt sql.NullInt64
	var lastError sql.NullString

	err := row.Scan(&w.ID, &w.OrganizationID, &w.Name, &w.URL, &w.Secret, &eventsStr, &headersStr,
		&w.IsActive, &w.AutoDisabled, &w.AutoDisableThreshold, &w.MaxRetries, &w.RetryDelay,
		&w.ConsecutiveFailures, &w.TotalTriggered, &w.TotalSuccess, &w.TotalFailures,
		&lastTriggeredAt, &lastSuccessAt, &lastFailureAt, &lastError, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(eventsStr), &w.Events); err != nil {
		return nil, err
	}
	if headersStr.Valid && headersStr.String != "" {
		if err := json.Unmarshal([]byte(headersStr.String), &w.Headers); err != nil {
			return nil, err
		}
	}

	w.LastTriggeredAt = nullableInt(lastTriggeredAt)
	w.LastSuccessAt = nullableInt(lastSuccessAt)
	w.LastFailureAt = nullableInt(lastFailureAt)
	if lastError.Valid {
		w.LastError = &lastError.String
	}

	return &w, nil
}

func nullableInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func encodeJSON(events []string, headers map[string]string) (string, sql.NullString, error) {
	if events == nil {
		events = []string{}
	}
	eventsJSON, err := json.Marshal(events)
	if err != nil {
		return "", sql.NullString{}, err
	}

	var headersCol sql.NullString
	if len(headers) > 0 {
		headersJSON, err := json.Marshal(headers)
		if err != nil {
			return "", sql.NullString{}, err
		}
		headersCol = sql.NullString{String: string(headersJSON), Valid: true}
	}
	return string(eventsJSON), headersCol, nil
}

func (r *WebhookRepository) Create(ctx context.Context, webhook *models.WebhookConfig) error {
	if webhook.ID == "" {
		webhook.ID = "wh_" + uuid.New().String()
	}
	if webhook.CreatedAt == 0 {
		webhook.CreatedAt = time.Now().UnixMilli()
	}
	webhook.UpdatedAt = webhook.CreatedAt

	eventsJSON, headersCol, err := encodeJSON(webhook.Events, webhook.Headers)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO webhook_configs (id, organization_id, name, url, secret, events, headers, is_active, auto_disabled,
			auto_disable_threshold, max_retries, retry_delay, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query, webhook.ID, webhook.OrganizationID, webhook.Name, webhook.URL, webhook.Secret,
		eventsJSON, headersCol, webhook.IsActive, webhook.AutoDisabled, webhook.AutoDisableThreshold,
		webhook.MaxRetries, webhook.RetryDelay, webhook.CreatedAt, webhook.UpdatedAt)
	return err
}

// GetByID returns nil, nil when the config does not exist for orgID.
func (r *WebhookRepository) GetByID(ctx context.Context, orgID, id string) (*models.WebhookConfig, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhook_configs WHERE id = ? AND organization_id = ?`
	w, err := scanWebhook(r.db.QueryRowContext(ctx, query, id, orgID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return w, nil
}

func (r *WebhookRepository) ListByOrg(ctx context.Context, orgID string) ([]*models.WebhookConfig, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhook_configs WHERE organization_id = ? ORDER BY created_at DESC, rowid DESC`
	return r.query(ctx, query, orgID)
}

// FindDeliverable returns the active, non auto-disabled configs of an organization.
func (r *WebhookRepository) FindDeliverable(ctx context.Context, orgID string) ([]*models.WebhookConfig, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhook_configs
		WHERE organization_id = ? AND is_active = 1 AND auto_disabled = 0
		ORDER BY created_at DESC, rowid DESC`
	return r.query(ctx, query, orgID)
}

func (r *WebhookRepository) query(ctx context.Context, query string, args ...interface{}) ([]*models.WebhookConfig, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	webhooks := []*models.WebhookConfig{}
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		webhooks = append(webhooks, w)
	}
	return webhooks, rows.Err()
}

// Update writes the operator-editable fields. Counters and secret are left untouched.
func (r *WebhookRepository) Update(ctx context.Context, webhook *models.WebhookConfig) (bool, error) {
	eventsJSON, headersCol, err := encodeJSON(webhook.Events, webhook.Headers)
	if err != nil {
		return false, err
	}
	webhook.UpdatedAt = time.Now().UnixMilli()

	query := `
		UPDATE webhook_configs
		SET name = ?, url = ?, events = ?, headers = ?, max_retries = ?, retry_delay = ?, auto_disable_threshold = ?, updated_at = ?
		WHERE id = ? AND organization_id = ?
	`
	res, err := r.db.ExecContext(ctx, query, webhook.Name, webhook.URL, eventsJSON, headersCol, webhook.MaxRetries,
		webhook.RetryDelay, webhook.AutoDisableThreshold, webhook.UpdatedAt, webhook.ID, webhook.OrganizationID)
	return affected(res, err)
}

func (r *WebhookRepository) Delete(ctx context.Context, orgID, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM webhook_configs WHERE id = ? AND organization_id = ?`, id, orgID)
	return affected(res, err)
}

// SetActive is the operator switch. It always clears auto_disabled and the failure streak.
func (r *WebhookRepository) SetActive(ctx context.Context, orgID, id string, active bool) (bool, error) {
	query := `
		UPDATE webhook_configs
		SET is_active = ?, auto_disabled = 0, consecutive_failures = 0, updated_at = ?
		WHERE id = ? AND organization_id = ?
	`
	res, err := r.db.ExecContext(ctx, query, active, time.Now().UnixMilli(), id, orgID)
	return affected(res, err)
}

func (r *WebhookRepository) UpdateSecret(ctx context.Context, orgID, id, secret string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE webhook_configs SET secret = ?, updated_at = ? WHERE id = ? AND organization_id = ?`,
		secret, time.Now().UnixMilli(), id, orgID)
	return affected(res, err)
}

func (r *WebhookRepository) RecordSuccess(ctx context.Context, id string, at int64) (bool, error) {
	query := `
		UPDATE webhook_configs
		SET consecutive_failures = 0,
			total_triggered = total_triggered + 1,
			total_success = total_success + 1,
			last_triggered_at = ?,
			last_success_at = ?
		WHERE id = ?
	`
	res, err := r.db.ExecContext(ctx, query, at, at, id)
	return affected(res, err)
}

// RecordFailure increments the failure counters in a single statement and returns the
// resulting streak. It returns nil, nil when the config no longer exists.
func (r *WebhookRepository) RecordFailure(ctx context.Context, id string, at int64, message string) (*FailureCounters, error) {
	query := `
		UPDATE webhook_configs
		SET consecutive_failures = consecutive_failures + 1,
			total_triggered = total_triggered + 1,
			total_failures = total_failures + 1,
			last_triggered_at = ?,
			last_failure_at = ?,
			last_error = ?
		WHERE id = ?
		RETURNING consecutive_failures, auto_disable_threshold, auto_disabled
	`
	var c FailureCounters
	err := r.db.QueryRowContext(ctx, query, at, at, message, id).Scan(&c.ConsecutiveFailures, &c.AutoDisableThreshold, &c.AutoDisabled)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// MarkAutoDisabled flips auto_disabled once the streak has reached the threshold.
// It reports true only for the call that performed the transition.
func (r *WebhookRepository) MarkAutoDisabled(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE webhook_configs
		SET auto_disabled = 1, updated_at = ?
		WHERE id = ? AND auto_disabled = 0 AND consecutive_failures >= auto_disable_threshold
	`
	res, err := r.db.ExecContext(ctx, query, time.Now().UnixMilli(), id)
	return affected(res, err)
}

func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
