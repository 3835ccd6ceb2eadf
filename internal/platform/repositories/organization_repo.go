package repositories

import (
	"context"
	"database/sql"
	"time"

	"wazeapp/internal/platform/models"
)

type OrganizationRepository struct {
	db *sql.DB
}

func NewOrganizationRepository(db *sql.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

func (r *OrganizationRepository) Create(ctx context.Context, org *models.Organization) error {
	now := time.Now().UnixMilli()
	if org.CreatedAt == 0 {
		org.CreatedAt = now
	}
	org.UpdatedAt = now
	if org.PlanTier == "" {
		org.PlanTier = "free"
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO organizations (id, slug, name, plan_tier, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, org.ID, org.Slug, org.Name, org.PlanTier, org.CreatedAt, org.UpdatedAt)
	return err
}

// GetByID returns nil, nil for unknown or soft-deleted organizations.
func (r *OrganizationRepository) GetByID(ctx context.Context, id string) (*models.Organization, error) {
	org := &models.Organization{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, slug, name, plan_tier, created_at, updated_at, deleted_at
		FROM organizations WHERE id = ? AND deleted_at IS NULL
	`, id).Scan(&org.ID, &org.Slug, &org.Name, &org.PlanTier, &org.CreatedAt, &org.UpdatedAt, &org.DeletedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return org, nil
}
