package trader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"papertrade/internal/ledger"
	"papertrade/internal/logger"

	"github.com/google/uuid"
)

var ErrStopped = errors.New("desk is stopped")

// FillSink observes fills outside the event loop (journal, notifiers).
type FillSink interface {
	OnFill(ctx context.Context, fill ledger.Fill) error
}

type Option func(*Desk)

func WithEventStore(store EventStore) Option {
	return func(d *Desk) { d.store = store }
}

func WithFillSinks(sinks ...FillSink) Option {
	return func(d *Desk) {
		for _, s := range sinks {
			if s != nil {
				d.sinks = append(d.sinks, s)
			}
		}
	}
}

// WithLedgerOptions forwards options to the owned ledger.
func WithLedgerOptions(opts ...ledger.Option) Option {
	return func(d *Desk) { d.ledgerOpts = append(d.ledgerOpts, opts...) }
}

// Desk owns the ledger. Every mutation runs on a single event loop, so a
// fill's cash, position and trade effects can never interleave with another
// command. Reads are served from an immutable snapshot and never wait on the
// loop.
type Desk struct {
	ledger        *ledger.Ledger
	prices        ledger.PriceSource
	store         EventStore
	sinks         []FillSink
	ledgerOpts    []ledger.Option
	eventRegistry *HandlerRegistry

	msgCh   chan EventEnvelope
	stopCh  chan struct{}
	stopped atomic.Bool
	wg      sync.WaitGroup

	// fillBuf collects fills during one event and is then moved onto
	// fillQueue. The queue is unbounded: sinks see every fill.
	fillBuf   []ledger.Fill
	fillMu    sync.Mutex
	fillQueue []ledger.Fill
	fillReady chan struct{}
	fillDone  chan struct{}
	sinkWG    sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once

	stateSnapshot atomic.Value
}

func NewDesk(params ledger.Params, prices ledger.PriceSource, opts ...Option) *Desk {
	d := &Desk{
		prices:        prices,
		eventRegistry: NewHandlerRegistry(),
		msgCh:         make(chan EventEnvelope, 100),
		stopCh:        make(chan struct{}),
		fillReady:     make(chan struct{}, 1),
		fillDone:      make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	d.eventRegistry.RegisterDefaultHandlers()
	ledgerOpts := append([]ledger.Option{ledger.WithFillHook(d.collectFill)}, d.ledgerOpts...)
	d.ledger = ledger.New(params, prices, ledgerOpts...)
	d.stateSnapshot.Store(NewState(params))
	return d
}

func (d *Desk) Start() {
	d.startOnce.Do(func() {
		d.wg.Add(1)
		go d.runLoop()
		d.sinkWG.Add(1)
		go d.dispatchFills()
	})
}

// Stop drains the event loop, flushes pending fill notifications and closes
// the event store. It is safe to call more than once.
func (d *Desk) Stop() {
	d.stopOnce.Do(func() {
		d.stopped.Store(true)
		close(d.stopCh)
		d.wg.Wait()
		close(d.fillDone)
		d.sinkWG.Wait()
		if d.store != nil {
			if err := d.store.Close(); err != nil {
				logger.Warnf("[desk] event store close failed: %v", err)
			}
		}
	})
}

func (d *Desk) Send(evt EventEnvelope) error {
	if d.stopped.Load() {
		return ErrStopped
	}
	select {
	case d.msgCh <- evt:
		return nil
	case <-d.stopCh:
		return ErrStopped
	}
}

func (d *Desk) SendSync(ctx context.Context, evt EventEnvelope) (any, error) {
	if evt.ReplyCh == nil {
		evt.ReplyCh = make(chan Reply, 1)
	}
	if err := d.Send(evt); err != nil {
		return nil, err
	}
	select {
	case r := <-evt.ReplyCh:
		return r.Value, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-d.stopCh:
		// the loop may have handled the event just before stopping
		select {
		case r, ok := <-evt.ReplyCh:
			if ok {
				return r.Value, r.Err
			}
		default:
		}
		return nil, fmt.Errorf("%w during sync call", ErrStopped)
	}
}

func (d *Desk) Snapshot() *State {
	return d.stateSnapshot.Load().(*State)
}

func (d *Desk) runLoop() {
	defer d.wg.Done()
	logger.Infof("[desk] event loop started")
	for {
		select {
		case evt := <-d.msgCh:
			d.handleEvent(evt)
		case <-d.stopCh:
			for {
				select {
				case evt := <-d.msgCh:
					d.handleEvent(evt)
				default:
					logger.Infof("[desk] event loop stopped")
					return
				}
			}
		}
	}
}

// handleEvent runs one handler. A panicking handler is reported to the caller
// and does not stop the loop.
func (d *Desk) handleEvent(evt EventEnvelope) {
	var (
		err    error
		result any
	)
	start := time.Now()
	hctx := NewHandlerContext(d)

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[desk] panic handling event %s: %v\n%s", evt.Type, r, debug.Stack())
			err = fmt.Errorf("panic: %v", r)
			result = nil
		}
		if err == nil && d.store != nil && shouldPersistEvent(evt.Type) {
			if perr := d.store.Append(evt); perr != nil {
				logger.Errorf("[desk] failed to persist event %s: %v", evt.Type, perr)
			}
		}
		d.publish(hctx.touched)
		d.flushFills()

		if evt.ReplyCh != nil {
			evt.ReplyCh <- Reply{Value: result, Err: err}
			close(evt.ReplyCh)
		}
		if dur := time.Since(start); dur > 100*time.Millisecond {
			logger.Warnf("[desk] slow event %s took %v", evt.Type, dur)
		}
	}()

	handler, ok := d.eventRegistry.Get(evt.Type)
	if !ok {
		err = fmt.Errorf("no handler registered for event type %s", evt.Type)
		logger.Warnf("[desk] %v", err)
		return
	}
	err = handler.Handle(hctx, evt.Payload, evt.ID)
	result = hctx.result
}

// shouldPersistEvent selects the commands journaled once they are accepted.
func shouldPersistEvent(t EventType) bool {
	switch t {
	case EvtPlaceOrder, EvtCancelOrder:
		return true
	default:
		return false
	}
}

// publish stores a new snapshot that shares unchanged account views with the
// previous one.
func (d *Desk) publish(touched map[string]struct{}) {
	prev := d.Snapshot()
	if len(touched) == 0 {
		return
	}
	next := &State{
		Accounts: make(map[string]ledger.AccountView, len(prev.Accounts)+len(touched)),
		Params:   prev.Params,
		Version:  prev.Version + 1,
		Pending:  d.ledger.PendingCount(),
	}
	for id, v := range prev.Accounts {
		next.Accounts[id] = v
	}
	for id := range touched {
		next.Accounts[id] = d.ledger.View(id)
	}
	d.stateSnapshot.Store(next)
}

func (d *Desk) collectFill(f ledger.Fill) {
	d.fillBuf = append(d.fillBuf, f)
}

func (d *Desk) flushFills() {
	if len(d.fillBuf) == 0 {
		return
	}
	d.fillMu.Lock()
	d.fillQueue = append(d.fillQueue, d.fillBuf...)
	d.fillMu.Unlock()
	d.fillBuf = d.fillBuf[:0]
	select {
	case d.fillReady <- struct{}{}:
	default:
	}
}

func (d *Desk) takeFills() []ledger.Fill {
	d.fillMu.Lock()
	defer d.fillMu.Unlock()
	batch := d.fillQueue
	d.fillQueue = nil
	return batch
}

// dispatchFills delivers queued fills in order. After Stop closes fillDone
// the event loop has exited, so one last drain empties the queue.
func (d *Desk) dispatchFills() {
	defer d.sinkWG.Done()
	for {
		select {
		case <-d.fillReady:
			d.deliverBatch(d.takeFills())
		case <-d.fillDone:
			d.deliverBatch(d.takeFills())
			return
		}
	}
}

func (d *Desk) deliverBatch(batch []ledger.Fill) {
	for _, f := range batch {
		for _, sink := range d.sinks {
			d.deliver(sink, f)
		}
	}
}

func (d *Desk) deliver(sink FillSink, f ledger.Fill) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[desk] fill sink %T panicked: %v", sink, r)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sink.OnFill(ctx, f); err != nil {
		logger.Warnf("[desk] fill sink %T failed for trade %s: %v", sink, f.Trade.ID, err)
	}
}

func newEnvelope(t EventType, userID string, payload any) (EventEnvelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return EventEnvelope{}, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return EventEnvelope{
		ID:        uuid.NewString(),
		Type:      t,
		Payload:   raw,
		CreatedAt: time.Now(),
		UserID:    userID,
	}, nil
}

// PlaceOrder places an order and waits for the outcome.
func (d *Desk) PlaceOrder(ctx context.Context, userID string, req ledger.OrderRequest) (ledger.PlaceResult, error) {
	evt, err := newEnvelope(EvtPlaceOrder, userID, PlaceOrderPayload{UserID: userID, Request: req})
	if err != nil {
		return ledger.PlaceResult{}, err
	}
	v, err := d.SendSync(ctx, evt)
	if err != nil {
		return ledger.PlaceResult{}, err
	}
	return v.(ledger.PlaceResult), nil
}

func (d *Desk) CancelOrder(ctx context.Context, userID, orderID string) (ledger.Order, error) {
	evt, err := newEnvelope(EvtCancelOrder, userID, CancelOrderPayload{UserID: userID, OrderID: orderID})
	if err != nil {
		return ledger.Order{}, err
	}
	v, err := d.SendSync(ctx, evt)
	if err != nil {
		return ledger.Order{}, err
	}
	return v.(ledger.Order), nil
}

// Settle runs one settlement pass on the event loop.
func (d *Desk) Settle(ctx context.Context, trigger string) (ledger.SettleReport, error) {
	evt, err := newEnvelope(EvtSettle, "", SettlePayload{Trigger: trigger})
	if err != nil {
		return ledger.SettleReport{}, err
	}
	v, err := d.SendSync(ctx, evt)
	if err != nil {
		return ledger.SettleReport{}, err
	}
	return v.(ledger.SettleReport), nil
}

func (d *Desk) ListOrders(userID string, status ledger.OrderStatus) []ledger.Order {
	return d.Snapshot().Account(userID).ListOrders(status)
}

// ListPositions returns open positions re-priced at the current marks.
func (d *Desk) ListPositions(userID string) []ledger.Position {
	return ledger.Reprice(d.Snapshot().Account(userID), d.prices)
}

func (d *Desk) ListTrades(userID string, limit int) []ledger.Trade {
	return d.Snapshot().Account(userID).ListTrades(limit)
}

func (d *Desk) AccountInfo(userID string) ledger.AccountInfo {
	s := d.Snapshot()
	return ledger.Summarize(s.Account(userID), d.prices, s.Params.MarginRate)
}

// Users lists every user with ledger state, sorted.
func (d *Desk) Users() []string {
	s := d.Snapshot()
	out := make([]string, 0, len(s.Accounts))
	for id := range s.Accounts {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// PendingCount is the number of pending orders across all users.
func (d *Desk) PendingCount() int {
	return d.Snapshot().Pending
}
