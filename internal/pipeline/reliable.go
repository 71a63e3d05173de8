package pipeline

import (
	"context"
	"errors"

	"orderflow/internal/pkg/retry"
	"orderflow/internal/types"
)

// RetryPolicies 为每类外部调用单独配置重试。
type RetryPolicies struct {
	Lookup   retry.Policy
	Session  retry.Policy
	Balance  retry.Policy
	Dispatch retry.Policy
}

type retryLookup struct {
	inner  SecurityLookup
	policy retry.Policy
}

// RetryLookup 给参考数据查询加上重试。
func RetryLookup(inner SecurityLookup, p retry.Policy) SecurityLookup {
	return &retryLookup{inner: inner, policy: p}
}

func (l *retryLookup) Query(ctx context.Context, keys []types.Key) ([]types.SecurityDefinition, error) {
	var rows []types.SecurityDefinition
	err := retry.Do(ctx, "securities.query", l.policy, func(ctx context.Context) error {
		var err error
		rows, err = l.inner.Query(ctx, keys)
		return err
	})
	return rows, err
}

type retryConnector struct {
	inner    Connector
	policies RetryPolicies
}

// RetryConnector 给会话建立、余额查询和下单分别加上重试。认证失败不重试。
// 下单重试受调用方 ctx（扇出截止时间）约束。
func RetryConnector(inner Connector, p RetryPolicies) Connector {
	return &retryConnector{inner: inner, policies: p}
}

func (c *retryConnector) Open(ctx context.Context) (Session, error) {
	var sess Session
	err := retry.Do(ctx, "venue.open", c.policies.Session, func(ctx context.Context) error {
		var err error
		sess, err = c.inner.Open(ctx)
		return permanentIfAuth(err)
	})
	if err != nil {
		return nil, err
	}
	return &retrySession{inner: sess, policies: c.policies}, nil
}

type retrySession struct {
	inner    Session
	policies RetryPolicies
}

func (s *retrySession) Balance(ctx context.Context) (types.AccountBalance, error) {
	var bal types.AccountBalance
	err := retry.Do(ctx, "venue.balance", s.policies.Balance, func(ctx context.Context) error {
		var err error
		bal, err = s.inner.Balance(ctx)
		return permanentIfAuth(err)
	})
	return bal, err
}

func (s *retrySession) Dispatch(ctx context.Context, order types.ValidatedOrder) (types.Receipt, error) {
	var receipt types.Receipt
	err := retry.Do(ctx, "venue.dispatch", s.policies.Dispatch, func(ctx context.Context) error {
		var err error
		receipt, err = s.inner.Dispatch(ctx, order)
		// 场所明确拒绝的订单不重试。
		var de *types.DispatchError
		if errors.As(err, &de) && de.Code != "" {
			return retry.Permanent(err)
		}
		return permanentIfAuth(err)
	})
	return receipt, err
}

func (s *retrySession) Close(ctx context.Context) error {
	return s.inner.Close(ctx)
}

func permanentIfAuth(err error) error {
	if err != nil && types.IsAuthError(err) {
		return retry.Permanent(err)
	}
	return err
}
