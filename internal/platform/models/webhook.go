package models

// WebhookConfig is a tenant-registered delivery endpoint.
type WebhookConfig struct {
	ID                   string            `json:"id"`
	OrganizationID       string            `json:"organization_id"`
	Name                 string            `json:"name"`
	URL                  string            `json:"url"`
	Secret               string            `json:"-"`
	Events               []string          `json:"events"`            // JSON array in DB
	Headers              map[string]string `json:"headers,omitempty"` // JSON object in DB
	IsActive             bool              `json:"is_active"`
	AutoDisabled         bool              `json:"auto_disabled"`
	AutoDisableThreshold int               `json:"auto_disable_threshold"`
	MaxRetries           int               `json:"max_retries"`
	RetryDelay           int               `json:"retry_delay"` // milliseconds
	ConsecutiveFailures  int               `json:"consecutive_failures"`
	TotalTriggered       int64             `json:"total_triggered"`
	TotalSuccess         int64             `json:"total_success"`
	TotalFailures        int64             `json:"total_failures"`
	LastTriggeredAt      *int64            `json:"last_triggered_at,omitempty"`
	LastSuccessAt        *int64            `json:"last_success_at,omitempty"`
	LastFailureAt        *int64            `json:"last_failure_at,omitempty"`
	LastError            *string           `json:"last_error,omitempty"`
	CreatedAt            int64             `json:"created_at"`
	UpdatedAt            int64             `json:"updated_at"`
}

// Subscribes reports whether the config lists eventType.
func (w *WebhookConfig) Subscribes(eventType string) bool {
	for _, e := range w.Events {
		if e == eventType {
			return true
		}
	}
	return false
}

// Deliverable reports whether the config may receive deliveries.
func (w *WebhookConfig) Deliverable() bool {
	return w.IsActive && !w.AutoDisabled
}

// WebhookEnvelope is the JSON body posted to endpoints. Field order is part of the wire format.
type WebhookEnvelope struct {
	Event     string      `json:"event"`
	Timestamp int64       `json:"timestamp"`
	Data      interface{} `json:"data"`
}
