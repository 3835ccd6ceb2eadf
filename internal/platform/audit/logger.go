package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Actions recorded for webhook management.
const (
	ActionWebhookCreated           = "webhook.created"
	ActionWebhookUpdated           = "webhook.updated"
	ActionWebhookDeleted           = "webhook.deleted"
	ActionWebhookToggled           = "webhook.toggled"
	ActionWebhookSecretRegenerated = "webhook.secret_regenerated"
	ActionWebhookTested            = "webhook.tested"
)

type AuditLog struct {
	ID             string                 `json:"id"`
	OrganizationID string                 `json:"organization_id"`
	UserID         string                 `json:"user_id"`
	Action         string                 `json:"action"`
	ResourceType   string                 `json:"resource_type"`
	ResourceID     string                 `json:"resource_id"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	IPAddress      string                 `json:"ip_address"`
	UserAgent      string                 `json:"user_agent"`
	CreatedAt      int64                  `json:"created_at"`
}

// Logger writes audit entries in the background. Close waits for pending writes.
type Logger struct {
	db *sql.DB
	wg sync.WaitGroup
}

func NewLogger(db *sql.DB) *Logger {
	return &Logger{db: db}
}

// Log records entry asynchronously. Failures are logged and never reach the caller.
func (l *Logger) Log(entry AuditLog) {
	entry.ID = "audit_" + uuid.New().String()
	entry.CreatedAt = time.Now().UnixMilli()
	if entry.IPAddress == "" {
		entry.IPAddress = "unknown"
	}
	if entry.UserAgent == "" {
		entry.UserAgent = "unknown"
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		if err := l.insert(context.Background(), &entry); err != nil {
			log.Error().Err(err).Str("action", entry.Action).Str("org_id", entry.OrganizationID).Msg("failed to write audit log")
		}
	}()
}

func (l *Logger) insert(ctx context.Context, entry *AuditLog) error {
	var metadata sql.NullString
	if len(entry.Metadata) > 0 {
		b, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		metadata = sql.NullString{String: string(b), Valid: true}
	}

	query := `
		INSERT INTO audit_logs (id, organization_id, user_id, action, resource_type, resource_id, metadata, ip_address, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := l.db.ExecContext(ctx, query,
		entry.ID, entry.OrganizationID, entry.UserID, entry.Action, entry.ResourceType, entry.ResourceID,
		metadata, entry.IPAddress, entry.UserAgent, entry.CreatedAt)
	return err
}

// List returns the newest entries of an organization.
func (l *Logger) List(ctx context.Context, orgID string, limit int) ([]*AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT id, organization_id, user_id, action, resource_type, resource_id, metadata, ip_address, user_agent, created_at
		FROM audit_logs WHERE organization_id = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?
	`
	rows, err := l.db.QueryContext(ctx, query, orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []*AuditLog{}
	for rows.Next() {
		var entry AuditLog
		var metadata, ip, ua sql.NullString
		if err := rows.Scan(&entry.ID, &entry.OrganizationID, &entry.UserID, &entry.Action, &entry.ResourceType,
			&entry.ResourceID, &metadata, &ip, &ua, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if metadata.Valid {
			if err := json.Unmarshal([]byte(metadata.String), &entry.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata of %s: %w", entry.ID, err)
			}
		}
		entry.IPAddress, entry.UserAgent = ip.String, ua.String
		logs = append(logs, &entry)
	}
	return logs, rows.Err()
}

// Close blocks until queued entries are written.
func (l *Logger) Close() {
	l.wg.Wait()
}
