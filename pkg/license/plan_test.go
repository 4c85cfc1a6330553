package license_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/licensekit/pkg/license"
)

func TestPlan_ExpiryFrom(t *testing.T) {
	t.Parallel()

	issued := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 4, 15, 10, 30, 0, 0, time.UTC),
		license.PlanQuarterly.ExpiryFrom(issued))
	assert.Equal(t, time.Date(2027, 1, 15, 10, 30, 0, 0, time.UTC),
		license.PlanAnnual.ExpiryFrom(issued))
}

func TestNewCatalog(t *testing.T) {
	t.Parallel()

	t.Run("valid config", func(t *testing.T) {
		t.Parallel()
		catalog, err := license.NewCatalog(license.CatalogConfig{
			QuarterlyPriceID: "price_q",
			AnnualPriceID:    "price_a",
		})
		require.NoError(t, err)
		assert.NotNil(t, catalog)
	})

	t.Run("missing price IDs", func(t *testing.T) {
		t.Parallel()
		_, err := license.NewCatalog(license.CatalogConfig{QuarterlyPriceID: "price_q"})
		assert.ErrorIs(t, err, license.ErrInvalidCatalog)
	})

	t.Run("identical price IDs", func(t *testing.T) {
		t.Parallel()
		_, err := license.NewCatalog(license.CatalogConfig{
			QuarterlyPriceID: "price_x",
			AnnualPriceID:    "price_x",
		})
		assert.ErrorIs(t, err, license.ErrInvalidCatalog)
	})
}

func TestCatalog_PlanByPrice(t *testing.T) {
	t.Parallel()

	catalog, err := license.NewCatalog(license.CatalogConfig{
		QuarterlyPriceID: "price_q",
		AnnualPriceID:    "price_a",
	})
	require.NoError(t, err)

	plan, err := catalog.PlanByPrice("price_q")
	require.NoError(t, err)
	assert.Equal(t, license.PlanQuarterly, plan)

	plan, err = catalog.PlanByPrice("price_a")
	require.NoError(t, err)
	assert.Equal(t, license.PlanAnnual, plan)

	_, err = catalog.PlanByPrice("price_unknown")
	assert.ErrorIs(t, err, license.ErrUnknownPlan)
}

func TestCatalog_OtherPrice(t *testing.T) {
	t.Parallel()

	catalog, err := license.NewCatalog(license.CatalogConfig{
		QuarterlyPriceID: "price_q",
		AnnualPriceID:    "price_a",
	})
	require.NoError(t, err)

	other, err := catalog.OtherPrice("price_q")
	require.NoError(t, err)
	assert.Equal(t, "price_a", other)

	other, err = catalog.OtherPrice("price_a")
	require.NoError(t, err)
	assert.Equal(t, "price_q", other)

	_, err = catalog.OtherPrice("price_unknown")
	assert.ErrorIs(t, err, license.ErrUnknownPlan)
}

func TestLoadCatalog_YAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "plans.yml")
	content := "quarterly_price_id: price_q\nannual_price_id: price_a\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	catalog, err := license.LoadCatalog(path)
	require.NoError(t, err)

	plan, err := catalog.PlanByPrice("price_q")
	require.NoError(t, err)
	assert.Equal(t, license.PlanQuarterly, plan)
}

func TestLoadCatalog_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := license.LoadCatalog("/nonexistent/plans.yml")
	assert.ErrorIs(t, err, license.ErrInvalidCatalog)
}
