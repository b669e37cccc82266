package model

import (
	"gorm.io/datatypes"
)

// EventLogModel is one accepted desk command.
type EventLogModel struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	EventID       string         `gorm:"column:event_id;size:64;uniqueIndex"`
	Type          string         `gorm:"column:type;size:32;index"`
	UserID        string         `gorm:"column:user_id;size:128;index"`
	Payload       datatypes.JSON `gorm:"column:payload"`
	CreatedAtUnix int64          `gorm:"column:created_at;index"`
}

func (EventLogModel) TableName() string { return "event_logs" }

// TradeModel is one fill. Decimal values are stored as text so no precision
// is lost on either dialect.
type TradeModel struct {
	ID             int64  `gorm:"column:id;primaryKey"`
	TradeID        string `gorm:"column:trade_id;size:64;uniqueIndex"`
	OrderID        string `gorm:"column:order_id;size:64;index"`
	UserID         string `gorm:"column:user_id;size:128;index"`
	Symbol         string `gorm:"column:symbol;size:32"`
	Side           string `gorm:"column:side;size:8"`
	OrderKind      string `gorm:"column:order_kind;size:16"`
	Quantity       string `gorm:"column:quantity;type:text"`
	Price          string `gorm:"column:price;type:text"`
	Commission     string `gorm:"column:commission;type:text"`
	RealizedPnL    string `gorm:"column:realized_pnl;type:text"`
	BalanceAfter   string `gorm:"column:balance_after;type:text"`
	Reason         string `gorm:"column:reason;size:64"`
	ExecutedAtUnix int64  `gorm:"column:executed_at;index"`
}

func (TradeModel) TableName() string { return "trades" }
