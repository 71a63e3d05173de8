// Package convert provides decimal coercion for loosely typed payload values.
package convert

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ToDecimal converts strings, json.Number and native numerics to decimal.Decimal.
// NaN/Inf and unsupported types are errors rather than silent zeros.
func ToDecimal(v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case nil:
		return decimal.Zero, fmt.Errorf("empty numeric value")
	case decimal.Decimal:
		return t, nil
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return decimal.Zero, fmt.Errorf("non-finite value %v", t)
		}
		return decimal.NewFromFloat(t), nil
	case float32:
		return ToDecimal(float64(t))
	case int:
		return decimal.NewFromInt(int64(t)), nil
	case int64:
		return decimal.NewFromInt(t), nil
	case int32:
		return decimal.NewFromInt32(t), nil
	case uint64:
		return decimal.NewFromString(strconv.FormatUint(t, 10))
	case json.Number:
		return decimal.NewFromString(t.String())
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return decimal.Zero, fmt.Errorf("empty numeric value")
		}
		return decimal.NewFromString(s)
	default:
		return decimal.Zero, fmt.Errorf("unsupported numeric type %T", v)
	}
}

// ToDecimalOr returns def when v cannot be converted.
func ToDecimalOr(v any, def decimal.Decimal) decimal.Decimal {
	d, err := ToDecimal(v)
	if err != nil {
		return def
	}
	return d
}
