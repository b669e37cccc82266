package deskhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"papertrade/internal/ledger"
	"papertrade/internal/market"
	storemodel "papertrade/internal/store/model"
	"papertrade/internal/trader"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// DeskService is what the HTTP layer needs from the desk.
type DeskService interface {
	PlaceOrder(ctx context.Context, userID string, req ledger.OrderRequest) (ledger.PlaceResult, error)
	CancelOrder(ctx context.Context, userID, orderID string) (ledger.Order, error)
	ListOrders(userID string, status ledger.OrderStatus) []ledger.Order
	ListPositions(userID string) []ledger.Position
	ListTrades(userID string, limit int) []ledger.Trade
	AccountInfo(userID string) ledger.AccountInfo
}

type PriceBook interface {
	Snapshot() []market.Quote
	Set(symbol string, price decimal.Decimal, source string) error
}

type TradeJournal interface {
	RecentTrades(ctx context.Context, userID string, limit int) ([]storemodel.TradeModel, error)
}

// EventLog reads back the accepted commands.
type EventLog interface {
	LoadEvents(ctx context.Context, since time.Time, limit int) ([]trader.EventEnvelope, error)
}

type Router struct {
	desk    DeskService
	prices  PriceBook
	journal TradeJournal
	events  EventLog
	limiter *UserLimiter
}

func NewRouter(desk DeskService, prices PriceBook, journal TradeJournal, events EventLog, limiter *UserLimiter) *Router {
	return &Router{desk: desk, prices: prices, journal: journal, events: events, limiter: limiter}
}

// Register mounts the routes under group (normally /api).
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	users := group.Group("/users/:user")
	users.POST("/orders", r.limiter.Middleware(), r.handlePlaceOrder)
	users.DELETE("/orders/:id", r.handleCancelOrder)
	users.GET("/orders", r.handleListOrders)
	users.GET("/positions", r.handleListPositions)
	users.GET("/trades", r.handleListTrades)
	users.GET("/account", r.handleAccount)
	if r.journal != nil {
		users.GET("/journal", r.handleJournal)
	}
	if r.events != nil {
		group.GET("/events", r.handleEvents)
	}
	if r.prices != nil {
		group.GET("/prices", r.handleListPrices)
		group.PUT("/prices/:symbol", r.handleSetPrice)
	}
}

func userParam(c *gin.Context) string {
	return strings.TrimSpace(c.Param("user"))
}

func (r *Router) handlePlaceOrder(c *gin.Context) {
	var req ledger.OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "", "invalid order body: "+err.Error())
		return
	}
	res, err := r.desk.PlaceOrder(c.Request.Context(), userParam(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"order_id": res.Order.ID,
		"status":   res.Order.Status,
		"executed": res.Executed,
		"message":  res.Message,
		"order":    res.Order,
		"trade":    res.Trade,
	})
}

func (r *Router) handleCancelOrder(c *gin.Context) {
	order, err := r.desk.CancelOrder(c.Request.Context(), userParam(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order_id": order.ID,
		"status":   order.Status,
		"message":  "order cancelled",
	})
}

func (r *Router) handleListOrders(c *gin.Context) {
	status, ok := ledger.ParseOrderStatus(c.Query("status"))
	if !ok {
		badRequest(c, "status", "unknown status "+strconv.Quote(c.Query("status")))
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": r.desk.ListOrders(userParam(c), status)})
}

func (r *Router) handleListPositions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"positions": r.desk.ListPositions(userParam(c))})
}

func parseLimit(c *gin.Context) (int, bool) {
	raw := strings.TrimSpace(c.Query("limit"))
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		badRequest(c, "limit", "limit must be a non-negative integer")
		return 0, false
	}
	return n, true
}

func (r *Router) handleListTrades(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": r.desk.ListTrades(userParam(c), limit)})
}

func (r *Router) handleAccount(c *gin.Context) {
	c.JSON(http.StatusOK, r.desk.AccountInfo(userParam(c)))
}

func (r *Router) handleJournal(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	trades, err := r.journal.RecentTrades(c.Request.Context(), userParam(c), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

type eventView struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	UserID    string          `json:"user_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	Payload   json.RawMessage `json:"payload"`
}

// handleEvents serves the command log; since is an optional RFC 3339 time.
func (r *Router) handleEvents(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	var since time.Time
	if raw := strings.TrimSpace(c.Query("since")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			badRequest(c, "since", "since must be an RFC 3339 timestamp")
			return
		}
		since = t
	}
	events, err := r.events.LoadEvents(c.Request.Context(), since, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]eventView, 0, len(events))
	for _, evt := range events {
		out = append(out, eventView{
			ID:        evt.ID,
			Type:      string(evt.Type),
			UserID:    evt.UserID,
			CreatedAt: evt.CreatedAt,
			Payload:   evt.Payload,
		})
	}
	c.JSON(http.StatusOK, gin.H{"events": out})
}

func (r *Router) handleListPrices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"prices": r.prices.Snapshot()})
}

type setPriceRequest struct {
	Price decimal.Decimal `json:"price"`
}

func (r *Router) handleSetPrice(c *gin.Context) {
	var req setPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "price", "invalid price body: "+err.Error())
		return
	}
	symbol := ledger.NormalizeSymbol(c.Param("symbol"))
	if err := r.prices.Set(symbol, req.Price, market.SourceAPI); err != nil {
		badRequest(c, "price", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "price": req.Price})
}
