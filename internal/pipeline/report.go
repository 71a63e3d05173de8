package pipeline

import (
	"time"

	"orderflow/internal/types"
)

// ReportMeta 是报告中与三个分区无关的批次信息。
type ReportMeta struct {
	BatchID   string
	Venue     string
	Balance   types.AccountBalance
	StartedAt time.Time
}

// Aggregate 合并三个分区，复制输入，不做交叉引用。空输入得到合法的空分区。
func Aggregate(meta ReportMeta, invalid []types.Key, rejected []types.RiskDecision, outcomes []types.ExecutionOutcome) types.BatchReport {
	return types.BatchReport{
		BatchID:        meta.BatchID,
		Venue:          meta.Venue,
		Balance:        meta.Balance,
		Invalid:        append(make([]types.Key, 0, len(invalid)), invalid...),
		RejectedByRisk: append(make([]types.RiskDecision, 0, len(rejected)), rejected...),
		Outcomes:       append(make([]types.ExecutionOutcome, 0, len(outcomes)), outcomes...),
		StartedAt:      meta.StartedAt,
		FinishedAt:     time.Now(),
	}
}
