package types

import "github.com/shopspring/decimal"

// RiskReason 描述风控结论的来源。
type RiskReason string

const (
	RiskReasonNone            RiskReason = "none"
	RiskReasonExposure        RiskReason = "exposure"
	RiskReasonMaxPosition     RiskReason = "max_position"
	RiskReasonEvaluationError RiskReason = "evaluation_error"
)

// RiskDecision 是单笔已校验订单的风控结论。
type RiskDecision struct {
	OrderID  string          `json:"order_id"`
	Key      Key             `json:"key"`
	Accepted bool            `json:"accepted"`
	Reason   RiskReason      `json:"reason"`
	Exposure decimal.Decimal `json:"exposure"`
	Err      string          `json:"error,omitempty"`
}

// IsEvaluationError 区分输入异常导致的拒绝与正常限额拒绝。
func (d RiskDecision) IsEvaluationError() bool {
	return d.Reason == RiskReasonEvaluationError
}
