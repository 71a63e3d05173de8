package pipeline

import (
	"context"

	"orderflow/internal/types"
)

// SecurityLookup 对参考数据做一次析取查询：返回与任一 key 匹配的所有行。
// 调用要么整体成功，要么整体失败。
type SecurityLookup interface {
	Query(ctx context.Context, keys []types.Key) ([]types.SecurityDefinition, error)
}

// Connector 为每个批次打开一个场所会话。
type Connector interface {
	Open(ctx context.Context) (Session, error)
}

// Session 是一次已认证的场所会话。Dispatch 必须可对不同订单并发调用。
type Session interface {
	Balance(ctx context.Context) (types.AccountBalance, error)
	Dispatch(ctx context.Context, order types.ValidatedOrder) (types.Receipt, error)
	Close(ctx context.Context) error
}

// Notifier 接收最终报告；失败只记录日志，不影响批次结果。
type Notifier interface {
	Send(ctx context.Context, report types.BatchReport) error
}

// NotifierFunc 适配普通函数。
type NotifierFunc func(ctx context.Context, report types.BatchReport) error

func (f NotifierFunc) Send(ctx context.Context, report types.BatchReport) error {
	return f(ctx, report)
}
