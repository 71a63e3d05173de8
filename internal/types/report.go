package types

import "time"

// BatchReport 是一个批次的最终产物，构建后不再修改。
type BatchReport struct {
	BatchID        string             `json:"batch_id"`
	Venue          string             `json:"venue"`
	Balance        AccountBalance     `json:"balance"`
	Invalid        []Key              `json:"invalid"`
	RejectedByRisk []RiskDecision     `json:"rejected_by_risk"`
	Outcomes       []ExecutionOutcome `json:"outcomes"`
	StartedAt      time.Time          `json:"started_at"`
	FinishedAt     time.Time          `json:"finished_at"`
}

// ReportCounts 汇总报告各分区数量。
type ReportCounts struct {
	Invalid          int `json:"invalid"`
	Rejected         int `json:"rejected"`
	EvaluationErrors int `json:"evaluation_errors"`
	Executed         int `json:"executed"`
	VenueErrors      int `json:"venue_errors"`
	TimedOut         int `json:"timed_out"`
}

func (r BatchReport) Counts() ReportCounts {
	c := ReportCounts{
		Invalid:  len(r.Invalid),
		Rejected: len(r.RejectedByRisk),
	}
	for _, d := range r.RejectedByRisk {
		if d.IsEvaluationError() {
			c.EvaluationErrors++
		}
	}
	for _, o := range r.Outcomes {
		switch {
		case !o.Completed:
			c.TimedOut++
		case o.Status == OutcomeVenueError:
			c.VenueErrors++
		default:
			c.Executed++
		}
	}
	return c
}

// Empty 报告三个分区均为空。
func (r BatchReport) Empty() bool {
	return len(r.Invalid) == 0 && len(r.RejectedByRisk) == 0 && len(r.Outcomes) == 0
}
