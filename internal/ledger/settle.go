package ledger

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sort"

	"papertrade/internal/logger"

	"github.com/shopspring/decimal"
)

// SettleReport summarises one settlement pass.
type SettleReport struct {
	Attempted int `json:"attempted"`
	Filled    int `json:"filled"`
	Failed    int `json:"failed"`
	// Unpriced counts pending orders skipped because their symbol had no price.
	Unpriced int `json:"unpriced"`
	Exits    int `json:"exits"`
	// Touched lists the users whose state changed during the pass.
	Touched []string `json:"touched,omitempty"`
}

type markCache struct {
	src    PriceSource
	prices map[string]decimal.Decimal
	errs   map[string]error
}

func newMarkCache(src PriceSource) *markCache {
	return &markCache{src: src, prices: make(map[string]decimal.Decimal), errs: make(map[string]error)}
}

// get asks the source at most once per symbol per pass.
func (c *markCache) get(symbol string) (decimal.Decimal, error) {
	if p, ok := c.prices[symbol]; ok {
		return p, nil
	}
	if err, ok := c.errs[symbol]; ok {
		return decimal.Zero, err
	}
	p, err := c.src.CurrentPrice(symbol)
	if err == nil && !p.IsPositive() {
		err = fmt.Errorf("non-positive mark %s", p)
	}
	if err != nil {
		c.errs[symbol] = err
		return decimal.Zero, err
	}
	c.prices[symbol] = p
	return p, nil
}

// Settle re-evaluates every pending order once against the current marks,
// refreshes position marks and, when enabled, closes positions whose
// stop-loss or take-profit level has been crossed. A failure on one order is
// logged and the pass continues.
func (l *Ledger) Settle() SettleReport {
	var report SettleReport
	marks := newMarkCache(l.settlePrices)
	touched := make(map[string]struct{})

	for _, userID := range l.Users() {
		acct := l.accounts[userID]
		pending := make([]*Order, 0)
		for _, o := range acct.orders {
			if o.Status == StatusPending {
				pending = append(pending, o)
			}
		}
		for _, o := range pending {
			mark, err := marks.get(o.Symbol)
			if err != nil {
				report.Unpriced++
				continue
			}
			report.Attempted++
			filled, err := l.attemptSafely(acct, o, mark)
			if err != nil {
				report.Failed++
				logger.Warnf("[settlement] order %s (%s %s) failed: %v", o.ID, userID, o.Symbol, err)
				continue
			}
			if filled {
				report.Filled++
				touched[userID] = struct{}{}
			}
		}
	}

	for symbol, err := range marks.errs {
		if errors.Is(err, ErrPriceUnavailable) {
			logger.Debugf("[settlement] %s skipped: %v", symbol, err)
			continue
		}
		logger.Warnf("[settlement] no mark for %s: %v", symbol, err)
	}

	for _, userID := range l.Users() {
		if l.markPositions(l.accounts[userID], marks, &report) {
			touched[userID] = struct{}{}
		}
	}

	for id := range touched {
		report.Touched = append(report.Touched, id)
	}
	sort.Strings(report.Touched)
	return report
}

// ErrPriceUnavailable may be wrapped by price sources that deliberately
// withhold a price (for example an open circuit breaker); settlement logs it
// at debug level only.
var ErrPriceUnavailable = errors.New("price temporarily unavailable")

func (l *Ledger) attemptSafely(acct *account, order *Order, mark decimal.Decimal) (filled bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[settlement] panic on order %s: %v\n%s", order.ID, r, debug.Stack())
			filled = false
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	_, filled = l.execute(acct, order, mark)
	return filled, nil
}

// markPositions stores the latest mark on every priced position and fires
// protective exits. It reports whether the account changed.
func (l *Ledger) markPositions(acct *account, marks *markCache, report *SettleReport) bool {
	if len(acct.positions) == 0 {
		return false
	}
	symbols := make([]string, 0, len(acct.positions))
	for sym := range acct.positions {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	changed := false
	for _, sym := range symbols {
		pos, ok := acct.positions[sym]
		if !ok {
			continue
		}
		mark, err := marks.get(sym)
		if err != nil {
			continue
		}
		if !pos.MarkPrice.Equal(mark) {
			pos.MarkPrice = mark
			changed = true
		}
		if !l.params.ProtectiveExits {
			continue
		}
		reason, hit := protectionHit(*pos, mark)
		if !hit {
			continue
		}
		if err := l.closeSafely(acct, pos, mark, reason); err != nil {
			report.Failed++
			logger.Warnf("[settlement] %s exit for %s %s failed: %v", reason, acct.userID, sym, err)
			continue
		}
		report.Exits++
		changed = true
	}
	return changed
}

func (l *Ledger) closeSafely(acct *account, pos *Position, mark decimal.Decimal, reason ExitReason) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	now := l.now()
	order := &Order{
		ID:          l.newID(),
		UserID:      acct.userID,
		Symbol:      pos.Symbol,
		Side:        closingSide(pos.Side),
		Kind:        KindMarket,
		Quantity:    pos.Quantity,
		TimeInForce: IOC,
		Status:      StatusPending,
		Reason:      string(reason),
		CreatedAt:   now,
		UpdatedAt:   now,
		seq:         l.nextSeq(),
	}
	acct.orders = append(acct.orders, order)
	acct.byID[order.ID] = order
	f := l.fill(acct, order, mark)
	logger.Infof("[settlement] %s closed %s %s qty=%s @ %s realized=%s",
		reason, acct.userID, pos.Symbol, f.Trade.Quantity, f.Trade.Price, f.Realized)
	return nil
}

func closingSide(side PositionSide) Side {
	if side == PositionShort {
		return SideBuy
	}
	return SideSell
}

// protectionHit checks the stop-loss first so a gap through both levels is
// treated as a loss.
func protectionHit(pos Position, mark decimal.Decimal) (ExitReason, bool) {
	if pos.StopLoss != nil && stopLossHit(pos.Side, mark, *pos.StopLoss) {
		return ExitStopLoss, true
	}
	if pos.TakeProfit != nil && takeProfitHit(pos.Side, mark, *pos.TakeProfit) {
		return ExitTakeProfit, true
	}
	return "", false
}

func stopLossHit(side PositionSide, mark, level decimal.Decimal) bool {
	if !mark.IsPositive() || !level.IsPositive() {
		return false
	}
	switch side {
	case PositionShort:
		return mark.GreaterThanOrEqual(level)
	default:
		return mark.LessThanOrEqual(level)
	}
}

func takeProfitHit(side PositionSide, mark, level decimal.Decimal) bool {
	if !mark.IsPositive() || !level.IsPositive() {
		return false
	}
	switch side {
	case PositionShort:
		return mark.LessThanOrEqual(level)
	default:
		return mark.GreaterThanOrEqual(level)
	}
}
