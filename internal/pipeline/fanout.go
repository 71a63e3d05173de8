package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"orderflow/internal/logger"
	"orderflow/internal/types"
)

const defaultDispatchTimeout = 5 * time.Second

// Dispatcher 是扇出所需的最小场所能力。
type Dispatcher interface {
	Dispatch(ctx context.Context, order types.ValidatedOrder) (types.Receipt, error)
}

// Fanout 在一个共享截止时间内并发下单。
type Fanout struct {
	timeout time.Duration
	nowFn   func() time.Time
}

func NewFanout(timeout time.Duration) *Fanout {
	if timeout <= 0 {
		timeout = defaultDispatchTimeout
	}
	return &Fanout{timeout: timeout, nowFn: time.Now}
}

func (f *Fanout) Timeout() time.Duration { return f.timeout }

type dispatchResult struct {
	idx     int
	receipt types.Receipt
	err     error
	latency time.Duration
}

// Dispatch 立即启动全部下单，等待全部完成或截止时间到达。
// 结果按 accepted 下标存放；截止时仍未返回的订单记为 Completed=false，
// 其后续返回被忽略。这里不做重试。
func (f *Fanout) Dispatch(ctx context.Context, venue Dispatcher, accepted []types.ValidatedOrder) []types.ExecutionOutcome {
	n := len(accepted)
	if n == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	dispatchCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	// 缓冲为 n，被放弃的 goroutine 也能写入后退出。
	results := make(chan dispatchResult, n)
	start := f.nowFn()
	for i := range accepted {
		go func(idx int, order types.ValidatedOrder) {
			began := time.Now()
			receipt, err := safeDispatch(dispatchCtx, venue, order)
			results <- dispatchResult{idx: idx, receipt: receipt, err: err, latency: time.Since(began)}
		}(i, accepted[i])
	}

	outcomes := make([]types.ExecutionOutcome, n)
	done := make([]bool, n)
	timer := time.NewTimer(f.timeout)
	defer timer.Stop()

	received := 0
collect:
	for received < n {
		select {
		case r := <-results:
			received++
			if out, ok := classify(accepted[r.idx], r); ok {
				outcomes[r.idx] = out
				done[r.idx] = true
			}
		case <-timer.C:
			break collect
		case <-dispatchCtx.Done():
			break collect
		}
	}

	elapsed := f.nowFn().Sub(start)
	for i, ok := range done {
		if ok {
			continue
		}
		outcomes[i] = types.ExecutionOutcome{
			OrderID:   accepted[i].OrderID,
			Key:       accepted[i].Key(),
			Completed: false,
			Status:    types.OutcomeTimeout,
			Err:       types.ErrDispatchTimeout.Error(),
			Latency:   elapsed,
		}
	}
	if pending := n - countTrue(done); pending > 0 {
		logger.Warnf("[fanout] %d/%d dispatches abandoned at deadline %s", pending, n, f.timeout)
	}
	return outcomes
}

// classify 把一次返回映射为结果；上下文超时视为未完成（返回 false）。
func classify(order types.ValidatedOrder, r dispatchResult) (types.ExecutionOutcome, bool) {
	out := types.ExecutionOutcome{
		OrderID: order.OrderID,
		Key:     order.Key(),
		Latency: r.latency,
	}
	if r.err != nil {
		if errors.Is(r.err, context.DeadlineExceeded) || errors.Is(r.err, context.Canceled) {
			return out, false
		}
		out.Completed = true
		out.Status = types.OutcomeVenueError
		out.Err = r.err.Error()
		out.Payload = r.receipt.Payload
		return out, true
	}
	out.Completed = true
	out.Status = types.OutcomeExecuted
	out.Reference = r.receipt.Reference
	out.Payload = r.receipt.Payload
	return out, true
}

func safeDispatch(ctx context.Context, venue Dispatcher, order types.ValidatedOrder) (receipt types.Receipt, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &types.DispatchError{Err: fmt.Errorf("dispatch panic: %v", r)}
		}
	}()
	if venue == nil {
		return types.Receipt{}, &types.DispatchError{Err: errors.New("venue not configured")}
	}
	return venue.Dispatch(ctx, order)
}

func countTrue(flags []bool) int {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}
