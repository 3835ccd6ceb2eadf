package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachedOrganizations(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	columns := []string{"id", "slug", "name", "plan_tier", "created_at", "updated_at", "deleted_at"}
	expectOrg := func() {
		mock.ExpectQuery("SELECT (.+) FROM organizations WHERE id = ?").
			WithArgs("org_1").
			WillReturnRows(sqlmock.NewRows(columns).AddRow("org_1", "acme", "Acme", "free", 1, 1, nil))
	}

	now := time.Unix(1700000000, 0)
	cache := NewCachedOrganizations(NewOrganizationRepository(db), time.Minute)
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	expectOrg()
	org, err := cache.GetByID(ctx, "org_1")
	require.NoError(t, err)
	assert.Equal(t, "acme", org.Slug)

	org, err = cache.GetByID(ctx, "org_1")
	require.NoError(t, err)
	assert.Equal(t, "acme", org.Slug, "served from cache without a query")

	now = now.Add(2 * time.Minute)
	expectOrg()
	_, err = cache.GetByID(ctx, "org_1")
	require.NoError(t, err)

	mock.ExpectQuery("SELECT (.+) FROM organizations WHERE id = ?").
		WithArgs("org_404").
		WillReturnRows(sqlmock.NewRows(columns))
	mock.ExpectQuery("SELECT (.+) FROM organizations WHERE id = ?").
		WithArgs("org_404").
		WillReturnRows(sqlmock.NewRows(columns))
	for i := 0; i < 2; i++ {
		missing, err := cache.GetByID(ctx, "org_404")
		require.NoError(t, err)
		assert.Nil(t, missing)
	}

	assert.NoError(t, mock.ExpectationsWereMet())
}
