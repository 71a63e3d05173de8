package types

import (
	"encoding/json"
	"time"
)

// OutcomeStatus 描述一笔下单的终态。
type OutcomeStatus string

const (
	OutcomeExecuted   OutcomeStatus = "executed"
	OutcomeVenueError OutcomeStatus = "venue_error"
	OutcomeTimeout    OutcomeStatus = "timeout"
)

// ExecutionOutcome 是执行扇出对单笔订单的记录。
// Completed=false 表示截止时间前未返回。
type ExecutionOutcome struct {
	OrderID   string          `json:"order_id"`
	Key       Key             `json:"key"`
	Completed bool            `json:"completed"`
	Status    OutcomeStatus   `json:"status"`
	Reference string          `json:"reference,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Err       string          `json:"error,omitempty"`
	Latency   time.Duration   `json:"latency"`
}

// Receipt 是场所对一次成功下单的回执。
type Receipt struct {
	Reference string          `json:"reference"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}
