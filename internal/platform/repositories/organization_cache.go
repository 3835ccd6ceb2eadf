package repositories

import (
	"context"
	"sync"
	"time"

	"wazeapp/internal/platform/models"
)

type cachedOrganization struct {
	org      *models.Organization
	cachedAt time.Time
}

// CachedOrganizations keeps resolved organizations for ttl so the tenant middleware does not
// hit the database on every request. Misses are never cached.
type CachedOrganizations struct {
	repo  *OrganizationRepository
	store sync.Map // map[org_id]*cachedOrganization
	ttl   time.Duration
	now   func() time.Time
}

func NewCachedOrganizations(repo *OrganizationRepository, ttl time.Duration) *CachedOrganizations {
	return &CachedOrganizations{repo: repo, ttl: ttl, now: time.Now}
}

func (c *CachedOrganizations) GetByID(ctx context.Context, id string) (*models.Organization, error) {
	if val, ok := c.store.Load(id); ok {
		entry := val.(*cachedOrganization)
		if c.now().Sub(entry.cachedAt) <= c.ttl {
			return entry.org, nil
		}
		c.store.Delete(id)
	}

	org, err := c.repo.GetByID(ctx, id)
	if err != nil || org == nil {
		return org, err
	}

	c.store.Store(id, &cachedOrganization{org: org, cachedAt: c.now()})
	return org, nil
}
