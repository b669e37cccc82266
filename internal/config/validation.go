package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

func validate(c *Config) error {
	if err := c.App.validate(); err != nil {
		return err
	}
	if err := c.Ledger.validate(c.Settlement.ProtectiveExits); err != nil {
		return err
	}
	if err := c.Settlement.validate(); err != nil {
		return err
	}
	if err := c.Market.validate(); err != nil {
		return err
	}
	if err := c.Store.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func (a *AppConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(a.LogLevel)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("app.log_level %q is not one of debug, info, warn, error", a.LogLevel)
	}
	switch strings.ToLower(strings.TrimSpace(a.LogFormat)) {
	case "text", "json":
	default:
		return fmt.Errorf("app.log_format must be text or json")
	}
	if strings.TrimSpace(a.HTTPAddr) == "" {
		return fmt.Errorf("app.http_addr cannot be empty")
	}
	return nil
}

func (l *LedgerConfig) validate(protectiveExits bool) error {
	p, err := l.Params(protectiveExits)
	if err != nil {
		return err
	}
	if !p.StartingBalance.IsPositive() {
		return fmt.Errorf("ledger.starting_balance must be > 0")
	}
	if p.CommissionRate.IsNegative() || p.CommissionRate.GreaterThanOrEqual(one) {
		return fmt.Errorf("ledger.commission_rate must be in [0, 1)")
	}
	if !p.BalanceHaircut.IsPositive() || p.BalanceHaircut.GreaterThan(one) {
		return fmt.Errorf("ledger.balance_haircut must be in (0, 1]")
	}
	if p.MarginRate.IsNegative() {
		return fmt.Errorf("ledger.margin_rate must be >= 0")
	}
	return nil
}

func (s *SettlementConfig) validate() error {
	if s.IntervalSeconds <= 0 {
		return fmt.Errorf("settlement.interval_seconds must be > 0")
	}
	if s.BreakerThreshold < 0 {
		return fmt.Errorf("settlement.breaker_threshold must be >= 0")
	}
	return nil
}

func (m *MarketConfig) validate() error {
	if _, err := m.PriceSeed(); err != nil {
		return err
	}
	if m.Redis.Enabled {
		if strings.TrimSpace(m.Redis.Addr) == "" {
			return fmt.Errorf("market.redis.addr cannot be empty when redis is enabled")
		}
		if len(m.Redis.Symbols) == 0 {
			return fmt.Errorf("market.redis.symbols requires at least one symbol")
		}
	}
	return nil
}

func (s *StoreConfig) validate() error {
	switch s.Driver {
	case "":
		return nil
	case StoreDriverSQLite, StoreDriverFile:
		if strings.TrimSpace(s.Path) == "" {
			return fmt.Errorf("store.path cannot be empty for driver %s", s.Driver)
		}
	case StoreDriverPostgres:
		if strings.TrimSpace(s.DSN) == "" {
			return fmt.Errorf("store.dsn cannot be empty for postgres")
		}
	default:
		return fmt.Errorf("store.driver %q is not supported (sqlite, postgres, file)", s.Driver)
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	if n.NATS.Enabled && strings.TrimSpace(n.NATS.URL) == "" {
		return fmt.Errorf("notify.nats.url cannot be empty when nats is enabled")
	}
	if n.Telegram.Enabled {
		if strings.TrimSpace(n.Telegram.BotToken) == "" || strings.TrimSpace(n.Telegram.ChatID) == "" {
			return fmt.Errorf("notify.telegram requires bot_token and chat_id")
		}
	}
	return nil
}
