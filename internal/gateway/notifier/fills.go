package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"papertrade/internal/ledger"
	"papertrade/internal/logger"

	"github.com/nats-io/nats.go"
)

// FillEvent is the wire form of a fill published to NATS.
type FillEvent struct {
	TradeID     string    `json:"trade_id"`
	OrderID     string    `json:"order_id"`
	UserID      string    `json:"user_id"`
	Symbol      string    `json:"symbol"`
	Side        string    `json:"side"`
	Kind        string    `json:"kind"`
	Quantity    string    `json:"quantity"`
	Price       string    `json:"price"`
	Commission  string    `json:"commission"`
	RealizedPnL string    `json:"realized_pnl"`
	Balance     string    `json:"balance"`
	Reason      string    `json:"reason,omitempty"`
	ExecutedAt  time.Time `json:"executed_at"`
}

func NewFillEvent(f ledger.Fill) FillEvent {
	return FillEvent{
		TradeID:     f.Trade.ID,
		OrderID:     f.Trade.OrderID,
		UserID:      f.Trade.UserID,
		Symbol:      f.Trade.Symbol,
		Side:        string(f.Trade.Side),
		Kind:        string(f.Order.Kind),
		Quantity:    f.Trade.Quantity.String(),
		Price:       f.Trade.Price.String(),
		Commission:  f.Trade.Commission.String(),
		RealizedPnL: f.Realized.String(),
		Balance:     f.Balance.String(),
		Reason:      f.Order.Reason,
		ExecutedAt:  f.Trade.ExecutedAt,
	}
}

// FillMessage formats a fill for chat channels.
func FillMessage(f ledger.Fill) StructuredMessage {
	icon, title := "🟢", "Order filled"
	if f.Trade.Side == ledger.SideSell {
		icon = "🔴"
	}
	switch ledger.ExitReason(f.Order.Reason) {
	case ledger.ExitStopLoss:
		icon, title = "🛑", "Stop-loss exit"
	case ledger.ExitTakeProfit:
		icon, title = "🎯", "Take-profit exit"
	}
	trade := []string{
		fmt.Sprintf("User: %s", f.Trade.UserID),
		fmt.Sprintf("%s %s %s", f.Trade.Side, f.Trade.Quantity, f.Trade.Symbol),
		fmt.Sprintf("Price: %s (%s)", f.Trade.Price, f.Order.Kind),
		fmt.Sprintf("Commission: %s", f.Trade.Commission),
	}
	account := []string{fmt.Sprintf("Balance: %s", f.Balance.StringFixed(2))}
	if !f.Realized.IsZero() {
		account = append(account, fmt.Sprintf("Realized P&L: %s", f.Realized.StringFixed(2)))
	}
	return StructuredMessage{
		Icon:      icon,
		Title:     title,
		Sections:  []MessageSection{{Title: "Trade", Lines: trade}, {Title: "Account", Lines: account}},
		Footer:    "order " + f.Order.ID,
		Timestamp: f.Trade.ExecutedAt,
	}
}

// TextFillSink forwards fills to a text channel.
type TextFillSink struct {
	notifier TextNotifier
}

func NewTextFillSink(n TextNotifier) *TextFillSink {
	return &TextFillSink{notifier: n}
}

func (s *TextFillSink) OnFill(_ context.Context, f ledger.Fill) error {
	return s.notifier.SendText(FillMessage(f).RenderMarkdown())
}

// Publisher is the subset of *nats.Conn used for fan-out.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSFillPublisher publishes every fill as JSON on "<subject>.<SYMBOL>".
type NATSFillPublisher struct {
	pub     Publisher
	subject string
}

func NewNATSFillPublisher(pub Publisher, subject string) *NATSFillPublisher {
	if subject == "" {
		subject = "papertrade.fills"
	}
	return &NATSFillPublisher{pub: pub, subject: subject}
}

func (p *NATSFillPublisher) OnFill(_ context.Context, f ledger.Fill) error {
	const op = "notifier.NATSFillPublisher.OnFill"
	data, err := json.Marshal(NewFillEvent(f))
	if err != nil {
		return fmt.Errorf("%s: marshal: %w", op, err)
	}
	if err := p.pub.Publish(p.subject+"."+f.Trade.Symbol, data); err != nil {
		return fmt.Errorf("%s: publish: %w", op, err)
	}
	return nil
}

// DialNATS connects with unlimited reconnects so a broker restart does not
// silence notifications.
func DialNATS(url, name string) (*nats.Conn, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warnf("[notify] nats disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Infof("[notify] nats reconnected to %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", url, err)
	}
	return nc, nil
}
