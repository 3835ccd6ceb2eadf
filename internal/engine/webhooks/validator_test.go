package webhooks

import (
	"errors"
	"strings"
	"testing"

	"wazeapp/internal/platform/models"
)

func validConfig() *models.WebhookConfig {
	return &models.WebhookConfig{
		Name:                 "CRM",
		URL:                  "https://crm.example.com/hooks",
		Events:               []string{EventMessageReceived},
		Headers:              map[string]string{"Authorization": "Bearer abc"},
		MaxRetries:           3,
		RetryDelay:           1000,
		AutoDisableThreshold: 10,
	}
}

func TestValidateWebhook(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(w *models.WebhookConfig)
		field  string
	}{
		{name: "Valid", mutate: func(w *models.WebhookConfig) {}},
		{name: "Missing Name", mutate: func(w *models.WebhookConfig) { w.Name = "  " }, field: "name"},
		{name: "Long Name", mutate: func(w *models.WebhookConfig) { w.Name = strings.Repeat("a", 256) }, field: "name"},
		{name: "Missing URL", mutate: func(w *models.WebhookConfig) { w.URL = "" }, field: "url"},
		{name: "Bad Scheme", mutate: func(w *models.WebhookConfig) { w.URL = "ftp://example.com" }, field: "url"},
		{name: "No Host", mutate: func(w *models.WebhookConfig) { w.URL = "https://" }, field: "url"},
		{name: "No Events", mutate: func(w *models.WebhookConfig) { w.Events = nil }, field: "events"},
		{name: "Bad Event", mutate: func(w *models.WebhookConfig) { w.Events = []string{"has space"} }, field: "events"},
		{name: "Reserved Header", mutate: func(w *models.WebhookConfig) { w.Headers = map[string]string{"x-webhook-signature": "x"} }, field: "headers"},
		{name: "Header Injection", mutate: func(w *models.WebhookConfig) { w.Headers = map[string]string{"X-A": "a\r\nB: c"} }, field: "headers"},
		{name: "Bad Header Name", mutate: func(w *models.WebhookConfig) { w.Headers = map[string]string{"X A": "a"} }, field: "headers"},
		{name: "Retries Too High", mutate: func(w *models.WebhookConfig) { w.MaxRetries = 11 }, field: "max_retries"},
		{name: "Negative Delay", mutate: func(w *models.WebhookConfig) { w.RetryDelay = -1 }, field: "retry_delay"},
		{name: "Zero Threshold", mutate: func(w *models.WebhookConfig) { w.AutoDisableThreshold = 0 }, field: "auto_disable_threshold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := validConfig()
			tt.mutate(w)
			err := ValidateWebhook(w)

			if tt.field == "" {
				if err != nil {
					t.Fatalf("Expected no error, got %v", err)
				}
				return
			}

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, verr.Field)
			}
		})
	}
}

func TestNormalizeEvents(t *testing.T) {
	got := normalizeEvents([]string{" message.sent", "message.read", "message.sent"})
	want := []string{"message.sent", "message.read"}

	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected %v, got %v", want, got)
		}
	}
}
