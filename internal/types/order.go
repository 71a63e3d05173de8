package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side 表示订单方向。
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide 解析 BUY/SELL（忽略大小写与空白）。
func ParseSide(raw string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(SideBuy):
		return SideBuy, nil
	case string(SideSell):
		return SideSell, nil
	default:
		return "", fmt.Errorf("unknown order side %q", raw)
	}
}

// Key 是订单与证券参考数据之间的连接键。
type Key struct {
	Symbol string `json:"symbol"`
	Venue  string `json:"venue"`
}

// NewKey 归一化 symbol/venue，保证两侧比较一致。
func NewKey(symbol, venue string) Key {
	return Key{
		Symbol: strings.ToUpper(strings.TrimSpace(symbol)),
		Venue:  strings.ToUpper(strings.TrimSpace(venue)),
	}
}

func (k Key) String() string {
	return k.Symbol + "@" + k.Venue
}

// OrderRecord 是变更流中新插入的一条订单。
// Size 保留原始十进制文本，解析失败由风控阶段归类。
type OrderRecord struct {
	OrderID         string    `json:"order_id"`
	Symbol          string    `json:"symbol"`
	Venue           string    `json:"venue"`
	Side            Side      `json:"side"`
	Size            string    `json:"size"`
	TransactionTime time.Time `json:"transaction_time,omitempty"`
}

func (o OrderRecord) Key() Key {
	return NewKey(o.Symbol, o.Venue)
}

// SecurityDefinition 是一条证券参考数据。
type SecurityDefinition struct {
	Symbol         string          `json:"symbol"`
	Venue          string          `json:"venue"`
	TradingEnabled bool            `json:"trading_enabled"`
	RiskFactor     decimal.Decimal `json:"risk_factor"`
	MaxPosition    decimal.Decimal `json:"max_position"`
	// Instrument 是场所侧的合约标识（如 IG epic），为空时使用 Symbol。
	Instrument     string          `json:"instrument,omitempty"`
	Currency       string          `json:"currency,omitempty"`
}

func (s SecurityDefinition) Key() Key {
	return NewKey(s.Symbol, s.Venue)
}

// ValidatedOrder 是匹配到可交易参考数据的订单，附带风控参数。
type ValidatedOrder struct {
	OrderRecord
	RiskFactor  decimal.Decimal `json:"risk_factor"`
	MaxPosition decimal.Decimal `json:"max_position"`
	Instrument  string          `json:"instrument,omitempty"`
	Currency    string          `json:"currency,omitempty"`
}

// InstrumentID 返回下单时使用的场所合约标识。
func (o ValidatedOrder) InstrumentID() string {
	if o.Instrument != "" {
		return o.Instrument
	}
	return o.Key().Symbol
}

// AccountBalance 在批次开始时获取一次，批次内只读。
type AccountBalance struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// Batch 是一次变更流调用解析出的订单集合。
type Batch struct {
	ID         string        `json:"id"`
	Records    []OrderRecord `json:"records"`
	Ignored    int           `json:"ignored"`
	ReceivedAt time.Time     `json:"received_at"`
}
