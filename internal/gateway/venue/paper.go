package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"orderflow/internal/logger"
	"orderflow/internal/pipeline"
	"orderflow/internal/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaperConfig 描述本地模拟场所。
type PaperConfig struct {
	Balance  decimal.Decimal
	Currency string
	Latency  time.Duration
}

// Paper 是不连接外部系统的模拟场所，按配置的延迟成交全部订单。
type Paper struct {
	cfg  PaperConfig
	idFn func() string

	mu    sync.Mutex
	fills []PaperFill
}

// PaperFill 记录一笔模拟成交。
type PaperFill struct {
	Reference string          `json:"reference"`
	OrderID   string          `json:"order_id"`
	Epic      string          `json:"epic"`
	Side      types.Side      `json:"side"`
	Size      decimal.Decimal `json:"size"`
	FilledAt  time.Time       `json:"filled_at"`
}

func NewPaper(cfg PaperConfig) *Paper {
	if strings.TrimSpace(cfg.Currency) == "" {
		cfg.Currency = "GBP"
	}
	return &Paper{cfg: cfg, idFn: uuid.NewString}
}

func (p *Paper) Open(ctx context.Context) (pipeline.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &paperSession{paper: p}, nil
}

// Fills 返回迄今为止的模拟成交。
func (p *Paper) Fills() []PaperFill {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PaperFill(nil), p.fills...)
}

type paperSession struct {
	paper *Paper
}

func (s *paperSession) Balance(ctx context.Context) (types.AccountBalance, error) {
	return types.AccountBalance{Amount: s.paper.cfg.Balance, Currency: s.paper.cfg.Currency}, nil
}

func (s *paperSession) Dispatch(ctx context.Context, order types.ValidatedOrder) (types.Receipt, error) {
	size, err := decimal.NewFromString(strings.TrimSpace(order.Size))
	if err != nil {
		return types.Receipt{}, &types.DispatchError{Code: "paper.invalid-size", Err: err}
	}
	if d := s.paper.cfg.Latency; d > 0 {
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return types.Receipt{}, ctx.Err()
		case <-timer.C:
		}
	}
	fill := PaperFill{
		Reference: "PAPER-" + strings.ToUpper(s.paper.idFn()),
		OrderID:   order.OrderID,
		Epic:      order.InstrumentID(),
		Side:      order.Side,
		Size:      size,
		FilledAt:  time.Now(),
	}
	s.paper.mu.Lock()
	s.paper.fills = append(s.paper.fills, fill)
	s.paper.mu.Unlock()
	payload, err := json.Marshal(fill)
	if err != nil {
		return types.Receipt{}, fmt.Errorf("encode paper fill: %w", err)
	}
	logger.Debugf("[paper] filled order %s %s %s x %s", order.OrderID, fill.Side, fill.Epic, size)
	return types.Receipt{Reference: fill.Reference, Payload: payload}, nil
}

func (s *paperSession) Close(context.Context) error { return nil }
