package license

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Plan is a billing tier determining license duration.
type Plan string

const (
	PlanQuarterly Plan = "quarterly"
	PlanAnnual    Plan = "annual"
)

// Valid reports whether the plan is one of the configured tiers.
func (p Plan) Valid() bool {
	return p == PlanQuarterly || p == PlanAnnual
}

// ExpiryFrom computes the license expiry for the plan's duration:
// three calendar months for quarterly, one calendar year for annual.
func (p Plan) ExpiryFrom(issuedAt time.Time) time.Time {
	switch p {
	case PlanQuarterly:
		return issuedAt.AddDate(0, 3, 0)
	case PlanAnnual:
		return issuedAt.AddDate(1, 0, 0)
	default:
		return issuedAt
	}
}

// CatalogConfig maps the two configured provider price IDs to plans.
type CatalogConfig struct {
	QuarterlyPriceID string `env:"STRIPE_QUARTERLY_PRICE_ID,required" yaml:"quarterly_price_id"`
	AnnualPriceID    string `env:"STRIPE_ANNUAL_PRICE_ID,required" yaml:"annual_price_id"`
}

// Catalog resolves provider price IDs to plans and back. It is immutable
// after construction and safe for concurrent use.
type Catalog struct {
	quarterlyPriceID string
	annualPriceID    string
}

// NewCatalog builds a catalog from config, failing fast on misconfiguration
// so an unknown-plan error at issuance time can only mean the provider and
// the deployment disagree.
func NewCatalog(cfg CatalogConfig) (*Catalog, error) {
	if cfg.QuarterlyPriceID == "" || cfg.AnnualPriceID == "" {
		return nil, fmt.Errorf("%w: both price IDs must be set", ErrInvalidCatalog)
	}
	if cfg.QuarterlyPriceID == cfg.AnnualPriceID {
		return nil, fmt.Errorf("%w: price IDs must differ", ErrInvalidCatalog)
	}
	return &Catalog{
		quarterlyPriceID: cfg.QuarterlyPriceID,
		annualPriceID:    cfg.AnnualPriceID,
	}, nil
}

// LoadCatalog reads a catalog from a YAML file. Useful for deployments that
// keep price mappings in config files instead of environment variables.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}

	var cfg CatalogConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}

	return NewCatalog(cfg)
}

// PlanByPrice resolves a provider price ID to a plan. Returns ErrUnknownPlan
// when the price matches neither configured tier.
func (c *Catalog) PlanByPrice(priceID string) (Plan, error) {
	switch priceID {
	case c.quarterlyPriceID:
		return PlanQuarterly, nil
	case c.annualPriceID:
		return PlanAnnual, nil
	default:
		return "", fmt.Errorf("%w: %q (expected %q or %q)",
			ErrUnknownPlan, priceID, c.quarterlyPriceID, c.annualPriceID)
	}
}

// PriceByPlan returns the provider price ID for a plan, or empty for an
// unknown plan.
func (c *Catalog) PriceByPlan(p Plan) string {
	switch p {
	case PlanQuarterly:
		return c.quarterlyPriceID
	case PlanAnnual:
		return c.annualPriceID
	default:
		return ""
	}
}

// OtherPrice returns the opposite tier's price ID, used by plan swaps
// (quarterly <-> annual).
func (c *Catalog) OtherPrice(currentPriceID string) (string, error) {
	switch currentPriceID {
	case c.quarterlyPriceID:
		return c.annualPriceID, nil
	case c.annualPriceID:
		return c.quarterlyPriceID, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPlan, currentPriceID)
	}
}
