package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"papertrade/internal/ledger"

	"github.com/shopspring/decimal"
)

// Config is the root configuration of the paper trading desk.
type Config struct {
	App        AppConfig        `toml:"app"`
	Ledger     LedgerConfig     `toml:"ledger"`
	Settlement SettlementConfig `toml:"settlement"`
	Market     MarketConfig     `toml:"market"`
	Store      StoreConfig      `toml:"store"`
	Notify     NotifyConfig     `toml:"notify"`
}

type AppConfig struct {
	Env       string `toml:"env"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	HTTPAddr  string `toml:"http_addr"`
	LogPath   string `toml:"log_path"`
}

// LedgerConfig holds the economic constants. Values are decimal strings.
type LedgerConfig struct {
	StartingBalance    string `toml:"starting_balance"`
	CommissionRate     string `toml:"commission_rate"`
	BalanceHaircut     string `toml:"balance_haircut"`
	MarginRate         string `toml:"margin_rate"`
	MaxOrdersPerMinute int    `toml:"max_orders_per_minute"`
}

// Params converts the section into ledger parameters.
func (l LedgerConfig) Params(protectiveExits bool) (ledger.Params, error) {
	p := ledger.Params{ProtectiveExits: protectiveExits}
	fields := []struct {
		key    string
		raw    string
		target *decimal.Decimal
	}{
		{"ledger.starting_balance", l.StartingBalance, &p.StartingBalance},
		{"ledger.commission_rate", l.CommissionRate, &p.CommissionRate},
		{"ledger.balance_haircut", l.BalanceHaircut, &p.BalanceHaircut},
		{"ledger.margin_rate", l.MarginRate, &p.MarginRate},
	}
	for _, f := range fields {
		v, err := decimal.NewFromString(strings.TrimSpace(f.raw))
		if err != nil {
			return ledger.Params{}, fmt.Errorf("%s: %w", f.key, err)
		}
		*f.target = v
	}
	return p, nil
}

type SettlementConfig struct {
	IntervalSeconds int  `toml:"interval_seconds"`
	RunImmediately  bool `toml:"run_immediately"`
	ProtectiveExits bool `toml:"protective_exits"`
	// BreakerThreshold is the number of consecutive price failures that open
	// a symbol's breaker; 0 disables the breaker.
	BreakerThreshold      int `toml:"breaker_threshold"`
	BreakerTimeoutSeconds int `toml:"breaker_timeout_seconds"`
}

func (s SettlementConfig) Interval() time.Duration {
	return time.Duration(s.IntervalSeconds) * time.Second
}

func (s SettlementConfig) BreakerTimeout() time.Duration {
	return time.Duration(s.BreakerTimeoutSeconds) * time.Second
}

type MarketConfig struct {
	// Prices seeds the static oracle, symbol -> decimal string.
	Prices map[string]string `toml:"prices"`
	Redis  RedisConfig       `toml:"redis"`
}

// PriceSeed parses the configured prices with normalized symbols.
func (m MarketConfig) PriceSeed() (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(m.Prices))
	keys := make([]string, 0, len(m.Prices))
	for k := range m.Prices {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sym := ledger.NormalizeSymbol(k)
		p, err := decimal.NewFromString(strings.TrimSpace(m.Prices[k]))
		if err != nil {
			return nil, fmt.Errorf("market.prices.%s: %w", k, err)
		}
		if !p.IsPositive() {
			return nil, fmt.Errorf("market.prices.%s must be positive", k)
		}
		out[sym] = p
	}
	return out, nil
}

type RedisConfig struct {
	Enabled     bool     `toml:"enabled"`
	Addr        string   `toml:"addr"`
	Password    string   `toml:"password"`
	DB          int      `toml:"db"`
	KeyPrefix   string   `toml:"key_prefix"`
	Symbols     []string `toml:"symbols"`
	PollSeconds int      `toml:"poll_seconds"`
}

func (r RedisConfig) PollInterval() time.Duration {
	return time.Duration(r.PollSeconds) * time.Second
}

const (
	StoreDriverSQLite   = "sqlite"
	StoreDriverPostgres = "postgres"
	StoreDriverFile     = "file"
)

// StoreConfig selects the journal backend. An empty driver disables it.
type StoreConfig struct {
	Driver string `toml:"driver"`
	Path   string `toml:"path"`
	DSN    string `toml:"dsn"`
}

type NotifyConfig struct {
	NATS     NATSConfig     `toml:"nats"`
	Telegram TelegramConfig `toml:"telegram"`
}

type NATSConfig struct {
	Enabled bool   `toml:"enabled"`
	URL     string `toml:"url"`
	Subject string `toml:"subject"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

// keySet tracks the config paths explicitly present in the files.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

// markWithParents marks "a.b.c" as well as "a.b" and "a".
func (k keySet) markWithParents(path string) {
	for {
		k.mark(path)
		idx := strings.LastIndex(path, ".")
		if idx < 0 {
			return
		}
		path = path[:idx]
	}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault describes how one field gets its default.
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
