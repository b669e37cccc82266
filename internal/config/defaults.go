package config

import (
	"strings"
)

const (
	defaultAppEnv           = "dev"
	defaultAppLogLevel      = "info"
	defaultAppLogFormat     = "text"
	defaultAppHTTPAddr      = ":9991"
	defaultStartingBalance  = "10000"
	defaultCommissionRate   = "0.001"
	defaultBalanceHaircut   = "0.95"
	defaultMarginRate       = "0.1"
	defaultMaxOrdersPerMin  = 120
	defaultSettleInterval   = 5
	defaultBreakerThreshold = 5
	defaultBreakerTimeout   = 30
	defaultRedisAddr        = "127.0.0.1:6379"
	defaultRedisKeyPrefix   = "exchange:price"
	defaultRedisPollSeconds = 2
	defaultSQLitePath       = "data/papertrade.db"
	defaultFileJournalPath  = "data/events.jsonl"
	defaultNATSURL          = "nats://127.0.0.1:4222"
	defaultNATSSubject      = "papertrade.fills"
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Ledger.applyDefaults(keys)
	c.Settlement.applyDefaults(keys)
	c.Market.applyDefaults(keys)
	c.Store.applyDefaults(keys)
	c.Notify.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.log_format", &a.LogFormat, defaultAppLogFormat),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
	)
}

func (l *LedgerConfig) applyDefaults(keys keySet) {
	if l == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("ledger.starting_balance", &l.StartingBalance, defaultStartingBalance),
		stringFieldDefault("ledger.commission_rate", &l.CommissionRate, defaultCommissionRate),
		stringFieldDefault("ledger.balance_haircut", &l.BalanceHaircut, defaultBalanceHaircut),
		stringFieldDefault("ledger.margin_rate", &l.MarginRate, defaultMarginRate),
		fieldDefault{
			key:   "ledger.max_orders_per_minute",
			need:  func() bool { return l.MaxOrdersPerMinute == 0 },
			apply: func() { l.MaxOrdersPerMinute = defaultMaxOrdersPerMin },
		},
	)
	if l.MaxOrdersPerMinute < 0 {
		l.MaxOrdersPerMinute = 0
	}
}

func (s *SettlementConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "settlement.interval_seconds",
			need:  func() bool { return s.IntervalSeconds <= 0 },
			apply: func() { s.IntervalSeconds = defaultSettleInterval },
		},
		boolFieldDefault("settlement.protective_exits", &s.ProtectiveExits, true),
		fieldDefault{
			key:   "settlement.breaker_threshold",
			need:  func() bool { return s.BreakerThreshold == 0 },
			apply: func() { s.BreakerThreshold = defaultBreakerThreshold },
		},
		fieldDefault{
			key:   "settlement.breaker_timeout_seconds",
			need:  func() bool { return s.BreakerTimeoutSeconds <= 0 },
			apply: func() { s.BreakerTimeoutSeconds = defaultBreakerTimeout },
		},
	)
}

func (m *MarketConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	if m.Prices == nil {
		m.Prices = make(map[string]string)
	}
	r := &m.Redis
	applyFieldDefaults(keys,
		stringFieldDefault("market.redis.addr", &r.Addr, defaultRedisAddr),
		stringFieldDefault("market.redis.key_prefix", &r.KeyPrefix, defaultRedisKeyPrefix),
		fieldDefault{
			key:   "market.redis.poll_seconds",
			need:  func() bool { return r.PollSeconds <= 0 },
			apply: func() { r.PollSeconds = defaultRedisPollSeconds },
		},
	)
	r.Symbols = normalizeSymbolList(r.Symbols)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	s.Driver = strings.ToLower(strings.TrimSpace(s.Driver))
	switch s.Driver {
	case StoreDriverSQLite:
		applyFieldDefaults(keys, stringFieldDefault("store.path", &s.Path, defaultSQLitePath))
	case StoreDriverFile:
		applyFieldDefaults(keys, stringFieldDefault("store.path", &s.Path, defaultFileJournalPath))
	}
}

func (n *NotifyConfig) applyDefaults(keys keySet) {
	if n == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("notify.nats.url", &n.NATS.URL, defaultNATSURL),
		stringFieldDefault("notify.nats.subject", &n.NATS.Subject, defaultNATSSubject),
	)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func normalizeSymbolList(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
