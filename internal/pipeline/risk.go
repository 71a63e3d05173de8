package pipeline

import (
	"fmt"
	"strings"

	"orderflow/internal/types"

	"github.com/shopspring/decimal"
)

// RiskResult 是风控阶段的输出，Accepted 与 Rejected 不相交且覆盖全部输入。
type RiskResult struct {
	Accepted []types.ValidatedOrder
	Rejected []types.RiskDecision
	// Decisions 与输入一一对应，按输入顺序排列。
	Decisions []types.RiskDecision
}

// RiskGate 按仓位上限与风险系数评估订单。
type RiskGate struct{}

func NewRiskGate() *RiskGate {
	return &RiskGate{}
}

// Evaluate 对每笔订单恰好求值一次。
func (g *RiskGate) Evaluate(orders []types.ValidatedOrder, balance types.AccountBalance) RiskResult {
	res := RiskResult{Decisions: make([]types.RiskDecision, 0, len(orders))}
	for _, o := range orders {
		d := g.safeDecide(o, balance)
		res.Decisions = append(res.Decisions, d)
		if d.Accepted {
			res.Accepted = append(res.Accepted, o)
		} else {
			res.Rejected = append(res.Rejected, d)
		}
	}
	return res
}

func (g *RiskGate) safeDecide(o types.ValidatedOrder, balance types.AccountBalance) (d types.RiskDecision) {
	defer func() {
		if r := recover(); r != nil {
			d = evaluationError(o, fmt.Sprintf("panic: %v", r))
		}
	}()
	return Decide(o, balance)
}

// Decide 是 (Size, RiskFactor, MaxPosition, Balance) 的纯函数，规则按顺序首个命中生效：
// 余额为零或数量不可解析 → evaluation_error；size/balance > RiskFactor → exposure；
// size > MaxPosition → max_position；否则接受。等于阈值视为通过。
func Decide(o types.ValidatedOrder, balance types.AccountBalance) types.RiskDecision {
	if !balance.Amount.IsPositive() {
		return evaluationError(o, fmt.Sprintf("account balance %s is not positive", balance.Amount.String()))
	}
	size, err := parseSize(o.Size)
	if err != nil {
		return evaluationError(o, err.Error())
	}
	exposure := size.Div(balance.Amount)
	d := types.RiskDecision{
		OrderID:  o.OrderID,
		Key:      o.Key(),
		Exposure: exposure,
	}
	switch {
	case exposure.GreaterThan(o.RiskFactor):
		d.Reason = types.RiskReasonExposure
	case size.GreaterThan(o.MaxPosition):
		d.Reason = types.RiskReasonMaxPosition
	default:
		d.Accepted = true
		d.Reason = types.RiskReasonNone
	}
	return d
}

func parseSize(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, fmt.Errorf("order size is empty")
	}
	size, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("order size %q is not a decimal", raw)
	}
	if !size.IsPositive() {
		return decimal.Zero, fmt.Errorf("order size %s is not positive", size.String())
	}
	return size, nil
}

func evaluationError(o types.ValidatedOrder, detail string) types.RiskDecision {
	err := &types.RiskEvaluationError{OrderID: o.OrderID, Detail: detail}
	return types.RiskDecision{
		OrderID: o.OrderID,
		Key:     o.Key(),
		Reason:  types.RiskReasonEvaluationError,
		Err:     err.Error(),
	}
}
