package webhooks

import (
	"context"

	"wazeapp/internal/platform/models"
	"wazeapp/internal/platform/repositories"
)

// Store is the record store the dispatcher works against.
// Lookups return nil, nil for missing records; mutations report whether a row matched.
type Store interface {
	Create(ctx context.Context, webhook *models.WebhookConfig) error
	GetByID(ctx context.Context, orgID, id string) (*models.WebhookConfig, error)
	ListByOrg(ctx context.Context, orgID string) ([]*models.WebhookConfig, error)
	FindDeliverable(ctx context.Context, orgID string) ([]*models.WebhookConfig, error)
	Update(ctx context.Context, webhook *models.WebhookConfig) (bool, error)
	Delete(ctx context.Context, orgID, id string) (bool, error)
	SetActive(ctx context.Context, orgID, id string, active bool) (bool, error)
	UpdateSecret(ctx context.Context, orgID, id, secret string) (bool, error)

	RecordSuccess(ctx context.Context, id string, at int64) (bool, error)
	RecordFailure(ctx context.Context, id string, at int64, message string) (*repositories.FailureCounters, error)
	MarkAutoDisabled(ctx context.Context, id string) (bool, error)
}

var _ Store = (*repositories.WebhookRepository)(nil)
