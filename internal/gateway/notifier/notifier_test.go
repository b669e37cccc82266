package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"papertrade/internal/ledger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func sampleFill(reason string) ledger.Fill {
	return ledger.Fill{
		Order: ledger.Order{ID: "o-1", Kind: ledger.KindMarket, Reason: reason},
		Trade: ledger.Trade{
			ID: "t-1", OrderID: "o-1", UserID: "alice", Symbol: "BTCUSDT", Side: ledger.SideSell,
			Quantity: decimal.RequireFromString("2"), Price: decimal.RequireFromString("120"),
			Commission: decimal.RequireFromString("0.24"), ExecutedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		Realized: decimal.RequireFromString("40"),
		Balance:  decimal.RequireFromString("10039.76"),
	}
}

func TestFillMessage(t *testing.T) {
	text := FillMessage(sampleFill("")).RenderMarkdown()
	assert.Contains(t, text, "Order filled")
	assert.Contains(t, text, "sell 2 BTCUSDT")
	assert.Contains(t, text, "Realized P&L: 40.00")
	assert.Contains(t, text, "Time: 2024-01-01")

	exit := FillMessage(sampleFill(string(ledger.ExitStopLoss)))
	assert.Equal(t, "Stop-loss exit", exit.Title)
}

func TestRenderMarkdownTruncates(t *testing.T) {
	msg := StructuredMessage{Title: "x", Sections: []MessageSection{{Lines: []string{strings.Repeat("a", 5000)}}}}
	out := msg.RenderMarkdown()
	assert.LessOrEqual(t, len(out), maxStructuredMessageLen+3)
	assert.True(t, strings.HasSuffix(out, "..."))
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(subject string, data []byte) error {
	return m.Called(subject, data).Error(0)
}

func TestNATSFillPublisher(t *testing.T) {
	pub := &mockPublisher{}
	var captured []byte
	pub.On("Publish", "papertrade.fills.BTCUSDT", mock.Anything).
		Run(func(args mock.Arguments) { captured = args.Get(1).([]byte) }).
		Return(nil).Once()

	p := NewNATSFillPublisher(pub, "")
	require.NoError(t, p.OnFill(context.Background(), sampleFill("")))
	pub.AssertExpectations(t)

	var evt FillEvent
	require.NoError(t, json.Unmarshal(captured, &evt))
	assert.Equal(t, "t-1", evt.TradeID)
	assert.Equal(t, "120", evt.Price)
	assert.Equal(t, "40", evt.RealizedPnL)

	pub.On("Publish", mock.Anything, mock.Anything).Return(errors.New("nats: connection closed"))
	assert.Error(t, p.OnFill(context.Background(), sampleFill("")))
}

func TestTelegramSendText(t *testing.T) {
	var hits atomic.Int32
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		if n == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tg := NewTelegram("TOKEN", "42")
	tg.BaseURL = srv.URL
	tg.Backoff = time.Millisecond

	sink := NewTextFillSink(tg)
	require.NoError(t, sink.OnFill(context.Background(), sampleFill("")))
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, "42", body["chat_id"])
	assert.Contains(t, body["text"], "BTCUSDT")
}

func TestTelegramRequiresConfig(t *testing.T) {
	assert.Error(t, NewTelegram("", "").SendText("hi"))
}

func TestTelegramGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	tg := NewTelegram("T", "1")
	tg.BaseURL = srv.URL
	tg.Backoff = time.Millisecond
	err := tg.SendText("hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
