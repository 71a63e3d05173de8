package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"orderflow/internal/logger"
	"orderflow/internal/pipeline"
	"orderflow/internal/types"
)

const maxLinesPerSection = 20

// RenderReport 把批次报告转换为结构化消息。
func RenderReport(r types.BatchReport) StructuredMessage {
	c := r.Counts()
	icon := "✅"
	switch {
	case c.TimedOut > 0 || c.VenueErrors > 0:
		icon = "⚠️"
	case c.Executed == 0:
		icon = "ℹ️"
	}
	msg := StructuredMessage{
		Icon:      icon,
		Title:     fmt.Sprintf("批次 %s @ %s", shortID(r.BatchID), r.Venue),
		Timestamp: r.FinishedAt,
		Footer: fmt.Sprintf("余额 %s %s | 无效 %d | 风控拒绝 %d | 成交 %d | 场所错误 %d | 超时 %d",
			r.Balance.Amount.String(), r.Balance.Currency,
			c.Invalid, c.Rejected, c.Executed, c.VenueErrors, c.TimedOut),
	}
	if len(r.Invalid) > 0 {
		lines := make([]string, 0, len(r.Invalid))
		for _, k := range r.Invalid {
			lines = append(lines, k.String())
		}
		msg.Sections = append(msg.Sections, MessageSection{Title: "无效证券", Lines: capLines(lines)})
	}
	if len(r.RejectedByRisk) > 0 {
		lines := make([]string, 0, len(r.RejectedByRisk))
		for _, d := range r.RejectedByRisk {
			line := fmt.Sprintf("%s %s %s", d.OrderID, d.Key, d.Reason)
			if d.Reason == types.RiskReasonExposure {
				line += " exposure=" + d.Exposure.StringFixed(4)
			}
			if d.Err != "" {
				line += " (" + d.Err + ")"
			}
			lines = append(lines, line)
		}
		msg.Sections = append(msg.Sections, MessageSection{Title: "风控拒绝", Lines: capLines(lines)})
	}
	if len(r.Outcomes) > 0 {
		lines := make([]string, 0, len(r.Outcomes))
		for _, o := range r.Outcomes {
			line := fmt.Sprintf("%s %s %s", o.OrderID, o.Key, o.Status)
			switch {
			case o.Reference != "":
				line += " ref=" + o.Reference
			case o.Err != "":
				line += " (" + o.Err + ")"
			}
			lines = append(lines, line)
		}
		msg.Sections = append(msg.Sections, MessageSection{Title: "执行结果", Lines: capLines(lines)})
	}
	return msg
}

func capLines(lines []string) []string {
	if len(lines) <= maxLinesPerSection {
		return lines
	}
	out := append([]string(nil), lines[:maxLinesPerSection]...)
	return append(out, fmt.Sprintf("... 另有 %d 条", len(lines)-maxLinesPerSection))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// ReportNotifier 把报告渲染为 Markdown 并通过文本通道发送。
type ReportNotifier struct {
	text TextNotifier
}

func NewReportNotifier(text TextNotifier) *ReportNotifier {
	return &ReportNotifier{text: text}
}

func (n *ReportNotifier) Send(ctx context.Context, r types.BatchReport) error {
	if n == nil || n.text == nil {
		return nil
	}
	return n.text.SendText(ctx, RenderReport(r).RenderMarkdown())
}

// LogNotifier 只把报告摘要写入日志。
type LogNotifier struct{}

func (LogNotifier) Send(_ context.Context, r types.BatchReport) error {
	c := r.Counts()
	logger.With("batch_id", r.BatchID, "venue", r.Venue).Info("batch report",
		"invalid", c.Invalid, "rejected", c.Rejected, "evaluation_errors", c.EvaluationErrors,
		"executed", c.Executed, "venue_errors", c.VenueErrors, "timed_out", c.TimedOut)
	return nil
}

// Multi 依次发送给每个接收方，单个失败不影响其他接收方，错误合并返回。
type Multi []pipeline.Notifier

func (m Multi) Send(ctx context.Context, r types.BatchReport) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Send(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Describe 列出接收方类型，用于启动摘要。
func (m Multi) Describe() string {
	names := make([]string, 0, len(m))
	for _, n := range m {
		if n == nil {
			continue
		}
		names = append(names, strings.TrimPrefix(fmt.Sprintf("%T", n), "*"))
	}
	return strings.Join(names, ",")
}
