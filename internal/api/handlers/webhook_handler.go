package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	apiContext "wazeapp/internal/api/context"
	"wazeapp/internal/api/middleware"
	"wazeapp/internal/engine/webhooks"
	"wazeapp/internal/pkg/errors"
	"wazeapp/internal/platform/audit"
	"wazeapp/internal/platform/auth"
	"wazeapp/internal/platform/models"
)

// WebhookService is the part of the dispatcher the management API drives.
type WebhookService interface {
	Create(ctx context.Context, orgID string, spec webhooks.CreateSpec) (*models.WebhookConfig, error)
	List(ctx context.Context, orgID string) ([]*models.WebhookConfig, error)
	Get(ctx context.Context, orgID, id string) (*models.WebhookConfig, error)
	Update(ctx context.Context, orgID, id string, spec webhooks.UpdateSpec) (*models.WebhookConfig, error)
	Delete(ctx context.Context, orgID, id string) error
	Toggle(ctx context.Context, orgID, id string, active bool) (*models.WebhookConfig, error)
	RegenerateSecret(ctx context.Context, orgID, id string) (string, error)
	TestWebhook(ctx context.Context, orgID, id string) (*webhooks.TestResult, error)
}

// AuditRecorder receives operator actions.
type AuditRecorder interface {
	Log(entry audit.AuditLog)
}

type WebhookHandler struct {
	service WebhookService
	audit   AuditRecorder
}

func NewWebhookHandler(service WebhookService, recorder AuditRecorder) *WebhookHandler {
	return &WebhookHandler{service: service, audit: recorder}
}

// webhookWithSecret is only returned by create and regenerate-secret.
type webhookWithSecret struct {
	*models.WebhookConfig
	Secret string `json:"secret"`
}

func (h *WebhookHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenant := r.Context().Value(apiContext.Tenant).(*middleware.TenantContext)

	var req webhooks.CreateSpec
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	webhook, err := h.service.Create(r.Context(), tenant.OrgID, req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.record(r, audit.ActionWebhookCreated, webhook.ID, map[string]interface{}{
		"url":    webhook.URL,
		"events": webhook.Events,
	})
	writeJSON(w, http.StatusCreated, webhookWithSecret{WebhookConfig: webhook, Secret: webhook.Secret})
}

func (h *WebhookHandler) List(w http.ResponseWriter, r *http.Request) {
	tenant := r.Context().Value(apiContext.Tenant).(*middleware.TenantContext)

	list, err := h.service.List(r.Context(), tenant.OrgID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"webhooks": list})
}

func (h *WebhookHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenant := r.Context().Value(apiContext.Tenant).(*middleware.TenantContext)

	webhook, err := h.service.Get(r.Context(), tenant.OrgID, webhookID(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, webhook)
}

func (h *WebhookHandler) Update(w http.ResponseWriter, r *http.Request) {
	tenant := r.Context().Value(apiContext.Tenant).(*middleware.TenantContext)
	id := webhookID(r)

	var req webhooks.UpdateSpec
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	webhook, err := h.service.Update(r.Context(), tenant.OrgID, id, req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.record(r, audit.ActionWebhookUpdated, id, nil)
	writeJSON(w, http.StatusOK, webhook)
}

func (h *WebhookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenant := r.Context().Value(apiContext.Tenant).(*middleware.TenantContext)
	id := webhookID(r)

	if err := h.service.Delete(r.Context(), tenant.OrgID, id); err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.record(r, audit.ActionWebhookDeleted, id, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (h *WebhookHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	tenant := r.Context().Value(apiContext.Tenant).(*middleware.TenantContext)
	id := webhookID(r)

	var req struct {
		IsActive *bool `json:"is_active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IsActive == nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "is_active is required", nil)
		return
	}

	webhook, err := h.service.Toggle(r.Context(), tenant.OrgID, id, *req.IsActive)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.record(r, audit.ActionWebhookToggled, id, map[string]interface{}{"is_active": *req.IsActive})
	writeJSON(w, http.StatusOK, webhook)
}

func (h *WebhookHandler) RegenerateSecret(w http.ResponseWriter, r *http.Request) {
	tenant := r.Context().Value(apiContext.Tenant).(*middleware.TenantContext)
	id := webhookID(r)

	secret, err := h.service.RegenerateSecret(r.Context(), tenant.OrgID, id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.record(r, audit.ActionWebhookSecretRegenerated, id, nil)
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "secret": secret})
}

// Test sends a synthetic event. Delivery failures are reported in the body with 200.
func (h *WebhookHandler) Test(w http.ResponseWriter, r *http.Request) {
	tenant := r.Context().Value(apiContext.Tenant).(*middleware.TenantContext)
	id := webhookID(r)

	result, err := h.service.TestWebhook(r.Context(), tenant.OrgID, id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.record(r, audit.ActionWebhookTested, id, map[string]interface{}{"success": result.Success})
	writeJSON(w, http.StatusOK, result)
}

// Events lists the event types the platform emits.
func (h *WebhookHandler) Events(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": webhooks.KnownEvents})
}

func (h *WebhookHandler) writeServiceError(w http.ResponseWriter, err error) {
	var verr *webhooks.ValidationError
	switch {
	case stderrors.As(err, &verr):
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, verr.Error(),
			map[string]string{"field": verr.Field})
	case stderrors.Is(err, webhooks.ErrNotFound):
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Webhook not found", nil)
	default:
		log.Error().Err(err).Msg("webhook request failed")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Internal server error", nil)
	}
}

func (h *WebhookHandler) record(r *http.Request, action, resourceID string, metadata map[string]interface{}) {
	if h.audit == nil {
		return
	}

	entry := audit.AuditLog{
		Action:       action,
		ResourceType: "webhook",
		ResourceID:   resourceID,
		Metadata:     metadata,
		IPAddress:    clientIP(r),
		UserAgent:    r.UserAgent(),
	}
	if claims, ok := r.Context().Value(apiContext.Claims).(*auth.Claims); ok {
		entry.UserID = claims.UserID
		entry.OrganizationID = claims.OrganizationID
	}
	if tenant, ok := r.Context().Value(apiContext.Tenant).(*middleware.TenantContext); ok {
		entry.OrganizationID = tenant.OrgID
	}
	h.audit.Log(entry)
}

func webhookID(r *http.Request) string {
	params, _ := r.Context().Value(apiContext.Params).(httprouter.Params)
	return params.ByName("webhook_id")
}
