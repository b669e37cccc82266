package market

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"papertrade/internal/ledger"
	"papertrade/internal/logger"
	"papertrade/internal/scheduler"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// PriceStore reads raw price payloads keyed by symbol. Missing symbols are
// simply absent from the result.
type PriceStore interface {
	Fetch(ctx context.Context, symbols []string) (map[string]string, error)
	Close() error
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisStore reads prices written by the market-data collaborator under
// "<prefix>:<SYMBOL>".
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(cfg RedisConfig) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisStore{client: client, prefix: strings.TrimSuffix(cfg.KeyPrefix, ":")}
}

func (s *RedisStore) key(symbol string) string {
	if s.prefix == "" {
		return symbol
	}
	return s.prefix + ":" + symbol
}

func (s *RedisStore) Fetch(ctx context.Context, symbols []string) (map[string]string, error) {
	pipe := s.client.Pipeline()
	cmds := make(map[string]*redis.StringCmd, len(symbols))
	for _, sym := range symbols {
		cmds[sym] = pipe.Get(ctx, s.key(sym))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis price fetch: %w", err)
	}
	out := make(map[string]string, len(cmds))
	for sym, cmd := range cmds {
		val, err := cmd.Result()
		if err != nil {
			continue
		}
		out[sym] = val
	}
	return out, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// RedisFeed polls a PriceStore and writes decoded prices into the oracle.
type RedisFeed struct {
	store    PriceStore
	oracle   *StaticOracle
	symbols  []string
	interval time.Duration
	timeout  time.Duration
}

func NewRedisFeed(store PriceStore, oracle *StaticOracle, symbols []string, interval time.Duration) *RedisFeed {
	norm := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s = ledger.NormalizeSymbol(s); s != "" {
			norm = append(norm, s)
		}
	}
	return &RedisFeed{
		store:    store,
		oracle:   oracle,
		symbols:  norm,
		interval: interval,
		timeout:  3 * time.Second,
	}
}

// Poll runs one fetch and returns how many prices were stored.
func (f *RedisFeed) Poll(ctx context.Context) (int, error) {
	if len(f.symbols) == 0 {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	raw, err := f.store.Fetch(ctx, f.symbols)
	if err != nil {
		return 0, err
	}
	stored := 0
	for sym, payload := range raw {
		price, err := decodePrice(payload)
		if err != nil {
			logger.Warnf("[market] redis price for %s ignored: %v", sym, err)
			continue
		}
		if err := f.oracle.Set(sym, price, SourceRedis); err != nil {
			logger.Warnf("[market] redis price for %s rejected: %v", sym, err)
			continue
		}
		stored++
	}
	return stored, nil
}

// Run polls until ctx is done.
func (f *RedisFeed) Run(ctx context.Context) error {
	s := scheduler.NewIntervalScheduler(ctx, "redis-prices", f.interval)
	s.RunImmediately = true
	s.Start(func() {
		n, err := f.Poll(ctx)
		if err != nil {
			logger.Warnf("[market] redis poll failed: %v", err)
			return
		}
		logger.Debugf("[market] redis poll stored %d/%d prices", n, len(f.symbols))
	})
	return f.store.Close()
}

// decodePrice accepts a bare number, a JSON string holding a number or an
// object with a "price" field.
func decodePrice(payload string) (decimal.Decimal, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return decimal.Zero, errors.New("empty payload")
	}
	res := gjson.Parse(payload)
	if res.IsObject() {
		res = res.Get("price")
	}
	var text string
	switch res.Type {
	case gjson.Number:
		text = res.Raw
	case gjson.String:
		text = res.Str
	default:
		return decimal.Zero, fmt.Errorf("unsupported payload %q", payload)
	}
	price, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse %q: %w", text, err)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("non-positive price %s", price)
	}
	return price, nil
}
