package pipeline

import (
	"context"
	"fmt"

	"orderflow/internal/types"
)

// ValidationResult 是参考数据连接的结果。
type ValidationResult struct {
	Valid   []types.ValidatedOrder
	Invalid []types.Key
	// Keys 为批次中出现的去重 key，按首次出现顺序排列。
	Keys []types.Key
}

// Validator 把订单与证券参考数据做连接，拆分为可交易与无效两部分。
type Validator struct {
	lookup SecurityLookup
	venue  string
}

func NewValidator(lookup SecurityLookup, venue string) *Validator {
	return &Validator{lookup: lookup, venue: types.NewKey("", venue).Venue}
}

// Validate 对整批订单只发起一次查询。订单顺序在输出中保留；
// 一个 key 可以对应零到多笔订单。
func (v *Validator) Validate(ctx context.Context, orders []types.OrderRecord) (ValidationResult, error) {
	if len(orders) == 0 {
		return ValidationResult{}, nil
	}
	if v == nil || v.lookup == nil {
		return ValidationResult{}, types.NewLookupError("securities", fmt.Errorf("security lookup not configured"))
	}
	keys := distinctKeys(orders)
	rows, err := v.lookup.Query(ctx, keys)
	if err != nil {
		return ValidationResult{}, types.NewLookupError("securities", err)
	}

	wanted := make(map[types.Key]struct{}, len(keys))
	for _, k := range keys {
		wanted[k] = struct{}{}
	}
	matched := make(map[types.Key]types.SecurityDefinition, len(rows))
	for _, row := range rows {
		k := row.Key()
		if !row.TradingEnabled || k.Venue != v.venue {
			continue
		}
		if _, ok := wanted[k]; !ok {
			continue
		}
		if _, dup := matched[k]; dup {
			continue
		}
		matched[k] = row
	}

	res := ValidationResult{Keys: keys}
	for _, o := range orders {
		def, ok := matched[o.Key()]
		if !ok {
			continue
		}
		res.Valid = append(res.Valid, types.ValidatedOrder{
			OrderRecord: o,
			RiskFactor:  def.RiskFactor,
			MaxPosition: def.MaxPosition,
			Instrument:  def.Instrument,
			Currency:    def.Currency,
		})
	}
	for _, k := range keys {
		if _, ok := matched[k]; !ok {
			res.Invalid = append(res.Invalid, k)
		}
	}
	return res, nil
}

func distinctKeys(orders []types.OrderRecord) []types.Key {
	seen := make(map[types.Key]struct{}, len(orders))
	out := make([]types.Key, 0, len(orders))
	for _, o := range orders {
		k := o.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
