package model

import (
	"strings"

	"orderflow/internal/types"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// SecurityModel maps to 'securities' table, keyed by (symbol, venue).
type SecurityModel struct {
	ID             int64           `gorm:"column:id;primaryKey"`
	Symbol         string          `gorm:"column:symbol;uniqueIndex:idx_security_key;not null"`
	Venue          string          `gorm:"column:venue;uniqueIndex:idx_security_key;not null"`
	TradingEnabled bool            `gorm:"column:trading_enabled"`
	RiskFactor     decimal.Decimal `gorm:"column:risk_factor;type:text"`
	MaxPosition    decimal.Decimal `gorm:"column:max_position;type:text"`
	Instrument     string          `gorm:"column:instrument"`
	Currency       string          `gorm:"column:currency"`
	Attributes     datatypes.JSON  `gorm:"column:attributes"`
	CreatedAtUnix  int64           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAtUnix  int64           `gorm:"column:updated_at;autoUpdateTime"`
}

func (SecurityModel) TableName() string { return "securities" }

// Normalize 统一 symbol/venue 的大小写，与 types.NewKey 一致。
func (m *SecurityModel) Normalize() {
	k := types.NewKey(m.Symbol, m.Venue)
	m.Symbol = k.Symbol
	m.Venue = k.Venue
	m.Instrument = strings.TrimSpace(m.Instrument)
	m.Currency = strings.ToUpper(strings.TrimSpace(m.Currency))
}

func (m SecurityModel) Definition() types.SecurityDefinition {
	return types.SecurityDefinition{
		Symbol:         m.Symbol,
		Venue:          m.Venue,
		TradingEnabled: m.TradingEnabled,
		RiskFactor:     m.RiskFactor,
		MaxPosition:    m.MaxPosition,
		Instrument:     m.Instrument,
		Currency:       m.Currency,
	}
}
