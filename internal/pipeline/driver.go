package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"orderflow/internal/logger"
	"orderflow/internal/types"

	"github.com/google/uuid"
)

const (
	sessionCloseTimeout = 5 * time.Second
	notifyTimeout       = 10 * time.Second
)

// DriverConfig 描述驱动器依赖，均在进程启动时构建一次并显式注入。
type DriverConfig struct {
	Venue           string
	DispatchTimeout time.Duration
	Lookup          SecurityLookup
	Connector       Connector
	Notifier        Notifier
}

// Result 是一次批次执行的结果：要么有报告（Reported），要么有错误（Failed），
// 空批次停留在 Idle 且两者皆无。
type Result struct {
	BatchID  string
	State    State
	Trail    []State
	Report   *types.BatchReport
	Err      error
	Duration time.Duration
}

// Driver 按顺序编排校验、风控、扇出和汇总，每个批次独立且不保留状态。
type Driver struct {
	venue     string
	validator *Validator
	gate      *RiskGate
	fanout    *Fanout
	connector Connector
	notifier  Notifier

	// 场所会话默认串行使用。
	mu   sync.Mutex
	idFn func() string
}

func NewDriver(cfg DriverConfig) (*Driver, error) {
	venue := types.NewKey("", cfg.Venue).Venue
	if venue == "" {
		return nil, fmt.Errorf("pipeline driver requires a target venue")
	}
	if cfg.Lookup == nil {
		return nil, fmt.Errorf("pipeline driver requires a security lookup")
	}
	if cfg.Connector == nil {
		return nil, fmt.Errorf("pipeline driver requires a venue connector")
	}
	return &Driver{
		venue:     venue,
		validator: NewValidator(cfg.Lookup, venue),
		gate:      NewRiskGate(),
		fanout:    NewFanout(cfg.DispatchTimeout),
		connector: cfg.Connector,
		notifier:  cfg.Notifier,
		idFn:      uuid.NewString,
	}, nil
}

// Venue 返回目标场所。
func (d *Driver) Venue() string { return d.venue }

type batchRun struct {
	id    string
	state State
	trail []State
	log   *slog.Logger
}

func (r *batchRun) advance(to State) {
	if !canTransition(r.state, to) {
		r.log.Error("invalid state transition", "from", r.state.String(), "to", to.String())
	}
	r.log.Debug("state transition", "from", r.state.String(), "to", to.String())
	r.state = to
	r.trail = append(r.trail, to)
}

// Run 执行一个批次。失败被限制在批次内：记录日志并返回 Failed，不会向上抛出。
func (d *Driver) Run(ctx context.Context, batch types.Batch) (res Result) {
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	started := time.Now()
	id := batch.ID
	if id == "" {
		id = d.idFn()
	}
	run := &batchRun{
		id:    id,
		state: StateIdle,
		trail: []State{StateIdle},
		log:   logger.With("batch_id", id, "venue", d.venue),
	}
	defer func() {
		if r := recover(); r != nil {
			err := &StageError{Stage: run.state, Err: fmt.Errorf("panic: %v", r)}
			res = d.fail(run, err)
		}
		res.Duration = time.Since(started)
	}()

	orders := d.filterVenue(run, batch.Records)
	if len(orders) == 0 {
		run.log.Info("empty batch, nothing to do", "ignored", batch.Ignored)
		return Result{BatchID: id, State: StateIdle, Trail: run.trail}
	}

	sess, err := d.connector.Open(ctx)
	if err != nil {
		return d.fail(run, &StageError{Stage: StateIdle, Err: err})
	}
	defer d.closeSession(ctx, run, sess)

	balance, err := sess.Balance(ctx)
	if err != nil {
		if !types.IsAuthError(err) {
			err = types.NewLookupError("balance", err)
		}
		return d.fail(run, &StageError{Stage: StateIdle, Err: err})
	}
	run.advance(StateBalanceLoaded)
	run.log.Info("balance loaded", "amount", balance.Amount.String(), "currency", balance.Currency, "orders", len(orders))

	meta := ReportMeta{BatchID: id, Venue: d.venue, Balance: balance, StartedAt: started}

	validated, err := d.validator.Validate(ctx, orders)
	if err != nil {
		return d.fail(run, &StageError{Stage: StateBalanceLoaded, Err: err})
	}
	run.advance(StateValidated)
	run.log.Info("orders validated", "keys", len(validated.Keys), "valid", len(validated.Valid), "invalid", len(validated.Invalid))
	if len(validated.Valid) == 0 {
		return d.report(ctx, run, Aggregate(meta, validated.Invalid, nil, nil))
	}

	gated := d.gate.Evaluate(validated.Valid, balance)
	run.advance(StateRiskGated)
	run.log.Info("risk gated", "accepted", len(gated.Accepted), "rejected", len(gated.Rejected))
	if len(gated.Accepted) == 0 {
		return d.report(ctx, run, Aggregate(meta, validated.Invalid, gated.Rejected, nil))
	}

	outcomes := d.fanout.Dispatch(ctx, sess, gated.Accepted)
	run.advance(StateDispatched)

	return d.report(ctx, run, Aggregate(meta, validated.Invalid, gated.Rejected, outcomes))
}

func (d *Driver) filterVenue(run *batchRun, records []types.OrderRecord) []types.OrderRecord {
	out := make([]types.OrderRecord, 0, len(records))
	for _, rec := range records {
		if rec.Key().Venue != d.venue {
			continue
		}
		out = append(out, rec)
	}
	if dropped := len(records) - len(out); dropped > 0 {
		run.log.Info("orders for other venues skipped", "count", dropped)
	}
	return out
}

func (d *Driver) report(ctx context.Context, run *batchRun, report types.BatchReport) Result {
	c := report.Counts()
	run.log.Info("batch report built",
		"invalid", c.Invalid, "rejected", c.Rejected, "executed", c.Executed,
		"venue_errors", c.VenueErrors, "timed_out", c.TimedOut)
	d.notify(ctx, run, report)
	run.advance(StateReported)
	return Result{BatchID: run.id, State: run.state, Trail: run.trail, Report: &report}
}

func (d *Driver) notify(ctx context.Context, run *batchRun, report types.BatchReport) {
	if d.notifier == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			run.log.Error("notifier panic", "panic", fmt.Sprint(r))
		}
	}()
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := d.notifier.Send(nctx, report); err != nil {
		run.log.Warn("notify failed", "error", err.Error())
	}
}

func (d *Driver) fail(run *batchRun, err error) Result {
	if run.state != StateFailed {
		run.advance(StateFailed)
	}
	kind := "unexpected"
	switch {
	case types.IsAuthError(err):
		kind = "auth"
	case types.IsLookupError(err):
		kind = "lookup"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		kind = "canceled"
	}
	run.log.Error("batch failed", "kind", kind, "error", err.Error(), "trail", trailString(run.trail))
	return Result{BatchID: run.id, State: StateFailed, Trail: run.trail, Err: err}
}

func (d *Driver) closeSession(ctx context.Context, run *batchRun, sess Session) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sessionCloseTimeout)
	defer cancel()
	if err := sess.Close(cctx); err != nil {
		run.log.Warn("venue session close failed", "error", err.Error())
	}
}

func trailString(trail []State) string {
	out := ""
	for i, s := range trail {
		if i > 0 {
			out += ">"
		}
		out += s.String()
	}
	return out
}
