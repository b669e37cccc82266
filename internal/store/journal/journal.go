// Package journal keeps an append-only audit trail of desk commands and
// fills in SQLite or PostgreSQL.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"papertrade/internal/ledger"
	storemodel "papertrade/internal/store/model"
	"papertrade/internal/trader"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Driver string
	Path   string
	DSN    string
}

type Journal struct {
	db      *gorm.DB
	timeout time.Duration
}

var (
	_ trader.EventStore  = (*Journal)(nil)
	_ trader.EventReader = (*Journal)(nil)
	_ trader.FillSink    = (*Journal)(nil)
)

func Open(cfg Config) (*Journal, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", cfg.Driver, err)
	}
	if err := db.AutoMigrate(&storemodel.EventLogModel{}, &storemodel.TradeModel{}); err != nil {
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}
	if strings.EqualFold(cfg.Driver, DriverSQLite) {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// one writer: the event loop and the fill dispatcher share it
		sqlDB.SetMaxOpenConns(1)
	}
	return &Journal{db: db, timeout: 5 * time.Second}, nil
}

func dialectorFor(cfg Config) (gorm.Dialector, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case DriverSQLite:
		path := strings.TrimSpace(cfg.Path)
		if path == "" {
			return nil, errors.New("journal: sqlite path is required")
		}
		if err := ensureDir(path); err != nil {
			return nil, err
		}
		dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
		return sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: dsn}), nil
	case DriverPostgres:
		if strings.TrimSpace(cfg.DSN) == "" {
			return nil, errors.New("journal: postgres dsn is required")
		}
		return postgres.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("journal: unsupported driver %q", cfg.Driver)
	}
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Append records a desk command.
func (j *Journal) Append(evt trader.EventEnvelope) error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	created := evt.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	rec := storemodel.EventLogModel{
		EventID:       evt.ID,
		Type:          string(evt.Type),
		UserID:        evt.UserID,
		Payload:       datatypes.JSON(evt.Payload),
		CreatedAtUnix: created.UnixMilli(),
	}
	return j.db.WithContext(ctx).Create(&rec).Error
}

// OnFill records a trade.
func (j *Journal) OnFill(ctx context.Context, f ledger.Fill) error {
	rec := storemodel.TradeModel{
		TradeID:        f.Trade.ID,
		OrderID:        f.Trade.OrderID,
		UserID:         f.Trade.UserID,
		Symbol:         f.Trade.Symbol,
		Side:           string(f.Trade.Side),
		OrderKind:      string(f.Order.Kind),
		Quantity:       f.Trade.Quantity.String(),
		Price:          f.Trade.Price.String(),
		Commission:     f.Trade.Commission.String(),
		RealizedPnL:    f.Realized.String(),
		BalanceAfter:   f.Balance.String(),
		Reason:         f.Order.Reason,
		ExecutedAtUnix: f.Trade.ExecutedAt.UnixMilli(),
	}
	return j.db.WithContext(ctx).Create(&rec).Error
}

// RecentTrades returns the latest journaled trades of a user, newest first.
func (j *Journal) RecentTrades(ctx context.Context, userID string, limit int) ([]storemodel.TradeModel, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []storemodel.TradeModel
	err := j.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("executed_at DESC").Order("id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// LoadEvents returns events created after since, oldest first.
func (j *Journal) LoadEvents(ctx context.Context, since time.Time, limit int) ([]trader.EventEnvelope, error) {
	if limit <= 0 {
		limit = trader.DefaultEventPage
	}
	query := j.db.WithContext(ctx).Order("created_at ASC").Order("id ASC").Limit(limit)
	if !since.IsZero() {
		query = query.Where("created_at > ?", since.UnixMilli())
	}
	var rows []storemodel.EventLogModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]trader.EventEnvelope, 0, len(rows))
	for _, row := range rows {
		out = append(out, trader.EventEnvelope{
			ID:        row.EventID,
			Type:      trader.EventType(row.Type),
			UserID:    row.UserID,
			Payload:   json.RawMessage(row.Payload),
			CreatedAt: time.UnixMilli(row.CreatedAtUnix),
		})
	}
	return out, nil
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
