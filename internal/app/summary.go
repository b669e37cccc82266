package app

import (
	"fmt"
	"strings"
	"time"

	"papertrade/internal/ledger"
)

type StartupSummary struct {
	Env             string
	HTTPAddr        string
	Params          ledger.Params
	SettleInterval  time.Duration
	Symbols         []string
	FeedSymbols     []string
	FeedEnabled     bool
	BreakerEnabled  bool
	Store           string
	Notifiers       []string
	OrdersPerMinute int
}

func (s *StartupSummary) Print() {
	fmt.Println(strings.Repeat("=", 80))
	title := "PAPERTRADE STARTUP SUMMARY"
	fmt.Printf("%*s\n", 40+len(title)/2, title)
	fmt.Println(strings.Repeat("=", 80))

	fmt.Println("[SERVICE]")
	fmt.Printf("  env:        %s\n", s.Env)
	fmt.Printf("  http:       %s\n", s.HTTPAddr)
	fmt.Printf("  journal:    %s\n", s.Store)
	fmt.Printf("  notifiers:  %s\n", formatList(s.Notifiers))
	fmt.Println()

	fmt.Println("[LEDGER]")
	fmt.Printf("  starting balance: %s\n", s.Params.StartingBalance)
	fmt.Printf("  commission rate:  %s\n", s.Params.CommissionRate)
	fmt.Printf("  buy haircut:      %s\n", s.Params.BalanceHaircut)
	fmt.Printf("  margin rate:      %s\n", s.Params.MarginRate)
	if s.OrdersPerMinute > 0 {
		fmt.Printf("  order limit:      %d/min per user\n", s.OrdersPerMinute)
	} else {
		fmt.Println("  order limit:      off")
	}
	fmt.Println()

	fmt.Println("[SETTLEMENT]")
	fmt.Printf("  interval:         %s\n", s.SettleInterval)
	fmt.Printf("  protective exits: %t\n", s.Params.ProtectiveExits)
	fmt.Printf("  price breaker:    %t\n", s.BreakerEnabled)
	fmt.Println()

	fmt.Println("[PRICES]")
	fmt.Printf("  seeded: %s\n", formatList(s.Symbols))
	if s.FeedEnabled {
		fmt.Printf("  redis:  %s\n", formatList(s.FeedSymbols))
	} else {
		fmt.Println("  redis:  off")
	}
	fmt.Println(strings.Repeat("=", 80))
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
