package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"
	apiContext "wazeapp/internal/api/context"
	"wazeapp/internal/api/middleware"
	"wazeapp/internal/pkg/errors"
	"wazeapp/internal/platform/audit"
)

type AuditReader interface {
	List(ctx context.Context, orgID string, limit int) ([]*audit.AuditLog, error)
}

type AuditHandler struct {
	reader AuditReader
}

func NewAuditHandler(reader AuditReader) *AuditHandler {
	return &AuditHandler{reader: reader}
}

func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	tenant := r.Context().Value(apiContext.Tenant).(*middleware.TenantContext)

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "limit must be a positive integer", nil)
			return
		}
		limit = n
	}

	logs, err := h.reader.List(r.Context(), tenant.OrgID, limit)
	if err != nil {
		log.Error().Err(err).Str("org_id", tenant.OrgID).Msg("failed to list audit logs")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to list audit logs", nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"audit_logs": logs})
}
