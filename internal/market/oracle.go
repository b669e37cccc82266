// Package market supplies mark prices to the desk. The static oracle is the
// single source of truth; feeds such as RedisFeed write into it.
package market

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"papertrade/internal/ledger"

	"github.com/shopspring/decimal"
)

var ErrUnknownSymbol = errors.New("symbol not quoted")

// PriceOracle is the inbound price dependency of the ledger.
type PriceOracle interface {
	CurrentPrice(symbol string) (decimal.Decimal, error)
}

// Quote is the latest mark for one symbol.
type Quote struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Source    string          `json:"source"`
	UpdatedAt time.Time       `json:"updated_at"`
}

const (
	SourceConfig = "config"
	SourceAPI    = "api"
	SourceRedis  = "redis"
)

// StaticOracle is an in-memory price table. Lookups are cheap and never block
// on I/O.
type StaticOracle struct {
	mu     sync.RWMutex
	quotes map[string]Quote
	nowFn  func() time.Time
}

func NewStaticOracle(seed map[string]decimal.Decimal) *StaticOracle {
	o := &StaticOracle{quotes: make(map[string]Quote), nowFn: time.Now}
	o.SetAll(seed, SourceConfig)
	return o
}

func (o *StaticOracle) CurrentPrice(symbol string) (decimal.Decimal, error) {
	sym := ledger.NormalizeSymbol(symbol)
	o.mu.RLock()
	q, ok := o.quotes[sym]
	o.mu.RUnlock()
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownSymbol, sym)
	}
	return q.Price, nil
}

// Set stores a positive price for symbol.
func (o *StaticOracle) Set(symbol string, price decimal.Decimal, source string) error {
	sym := ledger.NormalizeSymbol(symbol)
	if sym == "" {
		return errors.New("symbol is required")
	}
	if !price.IsPositive() {
		return fmt.Errorf("price for %s must be positive, got %s", sym, price)
	}
	o.mu.Lock()
	o.quotes[sym] = Quote{Symbol: sym, Price: price, Source: source, UpdatedAt: o.nowFn()}
	o.mu.Unlock()
	return nil
}

// SetAll applies a batch and returns the number of prices stored. Invalid
// entries are skipped.
func (o *StaticOracle) SetAll(prices map[string]decimal.Decimal, source string) int {
	n := 0
	for sym, p := range prices {
		if o.Set(sym, p, source) == nil {
			n++
		}
	}
	return n
}

func (o *StaticOracle) Remove(symbol string) {
	o.mu.Lock()
	delete(o.quotes, ledger.NormalizeSymbol(symbol))
	o.mu.Unlock()
}

// Snapshot returns every quote sorted by symbol.
func (o *StaticOracle) Snapshot() []Quote {
	o.mu.RLock()
	out := make([]Quote, 0, len(o.quotes))
	for _, q := range o.quotes {
		out = append(out, q)
	}
	o.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
