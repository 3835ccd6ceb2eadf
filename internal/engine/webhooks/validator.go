package webhooks

import (
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"wazeapp/internal/platform/models"
)

const (
	maxNameLength     = 255
	maxURLLength      = 2048
	maxEvents         = 50
	maxHeaders        = 20
	maxRetriesLimit   = 10
	maxRetryDelayMS   = 3600000
	maxThresholdLimit = 1000
)

var (
	eventPattern  = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.:-]{0,99}$`)
	headerPattern = regexp.MustCompile(`^[A-Za-z0-9!#$%&'*+.^_|~-]+$`)
)

func ValidateWebhook(w *models.WebhookConfig) error {
	if strings.TrimSpace(w.Name) == "" {
		return invalid("name", "is required")
	}
	if len(w.Name) > maxNameLength {
		return invalid("name", "must be at most %d characters", maxNameLength)
	}

	if err := validateURL(w.URL); err != nil {
		return err
	}

	if len(w.Events) == 0 {
		return invalid("events", "at least one event is required")
	}
	if len(w.Events) > maxEvents {
		return invalid("events", "at most %d events are allowed", maxEvents)
	}
	for _, e := range w.Events {
		if !eventPattern.MatchString(e) {
			return invalid("events", "invalid event type %q", e)
		}
	}

	if len(w.Headers) > maxHeaders {
		return invalid("headers", "at most %d headers are allowed", maxHeaders)
	}
	for name, value := range w.Headers {
		if !headerPattern.MatchString(name) {
			return invalid("headers", "invalid header name %q", name)
		}
		if isReservedHeader(name) {
			return invalid("headers", "header %q is set by the dispatcher", name)
		}
		if strings.ContainsAny(value, "\r\n") {
			return invalid("headers", "value of %q must not contain line breaks", name)
		}
	}

	if w.MaxRetries < 0 || w.MaxRetries > maxRetriesLimit {
		return invalid("max_retries", "must be between 0 and %d", maxRetriesLimit)
	}
	if w.RetryDelay < 0 || w.RetryDelay > maxRetryDelayMS {
		return invalid("retry_delay", "must be between 0 and %d milliseconds", maxRetryDelayMS)
	}
	if w.AutoDisableThreshold < 1 || w.AutoDisableThreshold > maxThresholdLimit {
		return invalid("auto_disable_threshold", "must be between 1 and %d", maxThresholdLimit)
	}

	return nil
}

func validateURL(raw string) error {
	if raw == "" {
		return invalid("url", "is required")
	}
	if len(raw) > maxURLLength {
		return invalid("url", "must be at most %d characters", maxURLLength)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return invalid("url", "invalid url format")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return invalid("url", "must start with http:// or https://")
	}
	if u.Host == "" {
		return invalid("url", "host is required")
	}
	return nil
}

func isReservedHeader(name string) bool {
	canonical := http.CanonicalHeaderKey(name)
	for _, r := range reservedHeaders {
		if canonical == r {
			return true
		}
	}
	return false
}

// normalizeEvents trims and de-duplicates event tags, keeping first occurrence order.
func normalizeEvents(events []string) []string {
	seen := make(map[string]struct{}, len(events))
	out := make([]string, 0, len(events))
	for _, e := range events {
		e = strings.TrimSpace(e)
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}
