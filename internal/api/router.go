package api

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"
	apiContext "wazeapp/internal/api/context"
	"wazeapp/internal/api/handlers"
	"wazeapp/internal/api/middleware"
	"wazeapp/internal/pkg/errors"
	"wazeapp/internal/platform/auth"
)

type Dependencies struct {
	WebhookHandler   *handlers.WebhookHandler
	AuditHandler     *handlers.AuditHandler
	HealthHandler    *handlers.HealthHandler
	MetricsHandler   *handlers.MetricsHandler
	AuthMiddleware   *middleware.AuthMiddleware
	TenantMiddleware *middleware.TenantMiddleware
	RateLimiter      *middleware.RateLimiter
}

func NewRouter(deps *Dependencies) *httprouter.Router {
	router := httprouter.New()

	// Operational endpoints
	router.GET("/health", wrap(deps.HealthHandler.Check))
	router.GET("/metrics", wrap(deps.MetricsHandler.Export))

	authMid := deps.AuthMiddleware
	tenantMid := deps.TenantMiddleware
	read := deps.RateLimiter.Limit(middleware.LimitAPIRead)
	write := deps.RateLimiter.Limit(middleware.LimitAPIWrite)
	test := deps.RateLimiter.Limit(middleware.LimitWebhookTest)
	operator := requireRole("admin", "owner")

	wh := deps.WebhookHandler

	// Webhook management
	router.GET("/api/v1/webhook-events",
		chain(wh.Events, authMid.Handle))
	router.POST("/api/v1/webhooks",
		chain(wh.Create, authMid.Handle, tenantMid.Handle, operator, write))
	router.GET("/api/v1/webhooks",
		chain(wh.List, authMid.Handle, tenantMid.Handle, read))
	router.GET("/api/v1/webhooks/:webhook_id",
		chain(wh.Get, authMid.Handle, tenantMid.Handle, read))
	router.PATCH("/api/v1/webhooks/:webhook_id",
		chain(wh.Update, authMid.Handle, tenantMid.Handle, operator, write))
	router.DELETE("/api/v1/webhooks/:webhook_id",
		chain(wh.Delete, authMid.Handle, tenantMid.Handle, operator, write))
	router.POST("/api/v1/webhooks/:webhook_id/toggle",
		chain(wh.Toggle, authMid.Handle, tenantMid.Handle, operator, write))
	router.POST("/api/v1/webhooks/:webhook_id/regenerate-secret",
		chain(wh.RegenerateSecret, authMid.Handle, tenantMid.Handle, operator, write))
	router.POST("/api/v1/webhooks/:webhook_id/test",
		chain(wh.Test, authMid.Handle, tenantMid.Handle, operator, test))

	// Audit trail
	router.GET("/api/v1/audit-logs",
		chain(deps.AuditHandler.List, authMid.Handle, tenantMid.Handle, operator, read))

	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Route not found", nil)
	})

	return router
}

// Helper function to chain middlewares
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// Convert http.HandlerFunc to httprouter.Handle
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}

func requireRole(roles ...string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims, ok := r.Context().Value(apiContext.Claims).(*auth.Claims)
			if !ok {
				errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "No authentication claims found", nil)
				return
			}

			allowed := false
			for _, role := range roles {
				if claims.Role == role {
					allowed = true
					break
				}
			}

			if !allowed {
				errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Insufficient permissions", nil)
				return
			}

			next(w, r)
		}
	}
}
