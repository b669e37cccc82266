package market

import (
	"errors"
	"fmt"

	"papertrade/internal/ledger"
	"papertrade/internal/pkg/circuit"

	"github.com/shopspring/decimal"
)

// GuardedOracle trips a per-symbol breaker after repeated lookup failures so
// a broken symbol is skipped until its breaker half-opens.
type GuardedOracle struct {
	inner    PriceOracle
	breakers *circuit.Set
}

func NewGuardedOracle(inner PriceOracle, breakers *circuit.Set) *GuardedOracle {
	return &GuardedOracle{inner: inner, breakers: breakers}
}

func (g *GuardedOracle) CurrentPrice(symbol string) (decimal.Decimal, error) {
	sym := ledger.NormalizeSymbol(symbol)
	var p decimal.Decimal
	err := g.breakers.Get(sym).Do(func() error {
		var err error
		p, err = g.inner.CurrentPrice(sym)
		return err
	})
	if errors.Is(err, circuit.ErrOpen) {
		return decimal.Zero, fmt.Errorf("%w: breaker open for %s", ledger.ErrPriceUnavailable, sym)
	}
	if err != nil {
		return decimal.Zero, err
	}
	return p, nil
}

// OpenSymbols lists symbols currently short-circuited.
func (g *GuardedOracle) OpenSymbols() []string {
	return g.breakers.Open()
}
