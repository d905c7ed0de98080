package configs

import (
	"time"

	"github.com/shopspring/decimal"

	"meta-ads/internal/core/domain"
	"meta-ads/internal/pkg/errs"
)

// Escrow holds the business settings of the escrow core.
type Escrow struct {
	// PlatformAccount is the contract account. It receives platform fees
	// and is the principal allowed to settle.
	PlatformAccount string `env:"PLATFORM_ACCOUNT" envDefault:"metaads.near"`
	// UnitScale converts whole currency units into smallest units.
	UnitScale string `env:"UNIT_SCALE" envDefault:"1000000000000000000000000"`
	// IDPolicy is "caller" or "auto".
	IDPolicy string `env:"ID_POLICY" envDefault:"caller"`

	AutoSettle     bool          `env:"AUTO_SETTLE" envDefault:"true"`
	SettleInterval time.Duration `env:"SETTLE_INTERVAL" envDefault:"1m"`
	Seed           bool          `env:"SEED" envDefault:"false"`
}

// Scale parses UnitScale.
func (c Escrow) Scale() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.UnitScale)
	if err != nil {
		return decimal.Decimal{}, errs.Wrap(err, "parse unit scale")
	}
	if !d.IsPositive() || !d.IsInteger() {
		return decimal.Decimal{}, errs.Wrapf(domain.ErrInvalidInput, "unit scale %s must be a positive integer", c.UnitScale)
	}
	return d, nil
}

// Policy parses IDPolicy. A typo is an error rather than a silent
// fallback, because the two policies expect different request bodies.
func (c Escrow) Policy() (domain.IDPolicy, error) {
	return domain.ParseIDPolicy(c.IDPolicy)
}
