package pipeline

import (
	"context"
	"sync"
	"sync/atomic"

	"orderflow/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockLookup struct {
	mock.Mock
}

func (m *MockLookup) Query(ctx context.Context, keys []types.Key) ([]types.SecurityDefinition, error) {
	args := m.Called(ctx, keys)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.SecurityDefinition), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Send(ctx context.Context, report types.BatchReport) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

// fakeSession 记录调用并按 dispatchFn 模拟场所。
type fakeSession struct {
	balance    types.AccountBalance
	balanceErr error
	dispatchFn func(ctx context.Context, o types.ValidatedOrder) (types.Receipt, error)

	mu         sync.Mutex
	dispatched []string
	closed     atomic.Int32
}

func (s *fakeSession) Balance(context.Context) (types.AccountBalance, error) {
	return s.balance, s.balanceErr
}

func (s *fakeSession) Dispatch(ctx context.Context, o types.ValidatedOrder) (types.Receipt, error) {
	s.mu.Lock()
	s.dispatched = append(s.dispatched, o.OrderID)
	s.mu.Unlock()
	if s.dispatchFn == nil {
		return types.Receipt{Reference: "deal-" + o.OrderID}, nil
	}
	return s.dispatchFn(ctx, o)
}

func (s *fakeSession) Close(context.Context) error {
	s.closed.Add(1)
	return nil
}

func (s *fakeSession) dispatchedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.dispatched...)
}

type fakeConnector struct {
	sess    *fakeSession
	openErr error
	opened  atomic.Int32
}

func (c *fakeConnector) Open(context.Context) (Session, error) {
	c.opened.Add(1)
	if c.openErr != nil {
		return nil, c.openErr
	}
	return c.sess, nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func order(id, symbol, venue, size string) types.OrderRecord {
	return types.OrderRecord{OrderID: id, Symbol: symbol, Venue: venue, Side: types.SideBuy, Size: size}
}

func security(symbol, venue string, enabled bool, riskFactor, maxPos string) types.SecurityDefinition {
	return types.SecurityDefinition{
		Symbol:         symbol,
		Venue:          venue,
		TradingEnabled: enabled,
		RiskFactor:     dec(riskFactor),
		MaxPosition:    dec(maxPos),
	}
}

func balance(amount string) types.AccountBalance {
	return types.AccountBalance{Amount: dec(amount), Currency: "GBP"}
}
