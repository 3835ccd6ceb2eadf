package middleware

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
	apiContext "wazeapp/internal/api/context"
	"wazeapp/internal/pkg/errors"
	"wazeapp/internal/platform/auth"
	"wazeapp/internal/platform/models"
)

type TenantContext struct {
	OrgID   string
	OrgSlug string
}

// OrganizationLookup returns nil, nil for unknown organizations.
type OrganizationLookup interface {
	GetByID(ctx context.Context, id string) (*models.Organization, error)
}

type TenantMiddleware struct {
	orgs OrganizationLookup
}

func NewTenantMiddleware(orgs OrganizationLookup) *TenantMiddleware {
	return &TenantMiddleware{orgs: orgs}
}

func (m *TenantMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := r.Context().Value(apiContext.Claims).(*auth.Claims)
		if !ok {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "No authentication claims found", nil)
			return
		}

		org, err := m.orgs.GetByID(r.Context(), claims.OrganizationID)
		if err != nil {
			log.Error().Err(err).Str("org_id", claims.OrganizationID).Msg("failed to load organization")
			errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to load organization", nil)
			return
		}
		if org == nil {
			errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Organization not found", nil)
			return
		}

		ctx := context.WithValue(r.Context(), apiContext.Tenant, &TenantContext{
			OrgID:   org.ID,
			OrgSlug: org.Slug,
		})

		next(w, r.WithContext(ctx))
	}
}
