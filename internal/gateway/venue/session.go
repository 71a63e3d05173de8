package venue

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"orderflow/internal/logger"
	"orderflow/internal/pkg/circuit"
	"orderflow/internal/pkg/convert"
	"orderflow/internal/types"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

const (
	dealStatusAccepted = "ACCEPTED"
	confirmAttempts    = 3
	confirmInterval    = 200 * time.Millisecond
	maxDealRefLen      = 30
)

// 场所接受的 dealReference 字符集。
var dealRefPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,30}$`)

// session 是一次已认证的场所会话，Dispatch 可并发调用。
type session struct {
	client    *Client
	cst       string
	token     string
	accountID string

	// 已提交过的 dealReference；重复提交前先查确认。
	posted sync.Map
}

func (s *session) request(method, path, version string, payload any) request {
	return request{method: method, path: path, version: version, payload: payload, cst: s.cst, token: s.token}
}

// Balance 读取 /accounts，按 accountID → preferred → 第一个账户的顺序选取。
func (s *session) Balance(ctx context.Context) (types.AccountBalance, error) {
	resp, err := s.client.do(ctx, s.request(http.MethodGet, "/accounts", "1", nil))
	if err != nil {
		return types.AccountBalance{}, err
	}
	if code := gjson.GetBytes(resp.body, "errorCode").String(); code != "" {
		if strings.HasPrefix(code, "error.security.") {
			return types.AccountBalance{}, &types.AuthError{Code: code}
		}
		return types.AccountBalance{}, fmt.Errorf("accounts returned %s", code)
	}
	if resp.status >= 300 {
		return types.AccountBalance{}, fmt.Errorf("accounts returned %d: %s", resp.status, snippet(resp.body))
	}
	account, ok := pickAccount(gjson.GetBytes(resp.body, "accounts"), s.accountID)
	if !ok {
		return types.AccountBalance{}, errors.New("accounts response has no account")
	}
	raw := account.Get("balance.available")
	if !raw.Exists() {
		raw = account.Get("balance.balance")
	}
	amount, err := convert.ToDecimal(numericValue(raw))
	if err != nil {
		return types.AccountBalance{}, fmt.Errorf("account %s balance: %w", account.Get("accountId").String(), err)
	}
	currency := account.Get("currency").String()
	if currency == "" {
		currency = s.client.currency
	}
	return types.AccountBalance{Amount: amount, Currency: currency}, nil
}

func numericValue(r gjson.Result) any {
	switch r.Type {
	case gjson.Number:
		return json.Number(r.Raw)
	case gjson.String:
		return r.Str
	default:
		return nil
	}
}

func pickAccount(accounts gjson.Result, id string) (gjson.Result, bool) {
	list := accounts.Array()
	if len(list) == 0 {
		return gjson.Result{}, false
	}
	if id != "" {
		for _, a := range list {
			if a.Get("accountId").String() == id {
				return a, true
			}
		}
	}
	for _, a := range list {
		if a.Get("preferred").Bool() {
			return a, true
		}
	}
	return list[0], true
}

// Dispatch 以市价单开仓并查询成交确认。场所拒单返回带 Code 的 DispatchError。
func (s *session) Dispatch(ctx context.Context, order types.ValidatedOrder) (types.Receipt, error) {
	if err := s.acquire(ctx); err != nil {
		return types.Receipt{}, err
	}
	var receipt types.Receipt
	err := s.client.breaker.Do(func() error {
		var err error
		receipt, err = s.dispatch(ctx, order)
		return err
	})
	if errors.Is(err, circuit.ErrOpen) {
		return types.Receipt{}, &types.DispatchError{Err: err}
	}
	return receipt, err
}

// acquire 等待限流令牌。等不到令牌时返回 ctx 错误，订单按超时处理而非场所错误。
func (s *session) acquire(ctx context.Context) error {
	r := s.client.limiter.Reserve()
	if !r.OK() {
		return &types.DispatchError{Err: errors.New("venue rate limiter refused reservation")}
	}
	delay := r.Delay()
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		r.Cancel()
		return fmt.Errorf("waiting for venue rate limit: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

// DealReference 由订单号确定性生成，同一订单重试时场所据此去重。
func DealReference(orderID string) string {
	id := strings.TrimSpace(orderID)
	if dealRefPattern.MatchString(id) {
		return id
	}
	sum := sha256.Sum256([]byte(id))
	return "OF" + hex.EncodeToString(sum[:])[:maxDealRefLen-2]
}

func (s *session) dispatch(ctx context.Context, order types.ValidatedOrder) (types.Receipt, error) {
	size, err := decimal.NewFromString(strings.TrimSpace(order.Size))
	if err != nil {
		return types.Receipt{}, &types.DispatchError{Err: fmt.Errorf("order size %q: %w", order.Size, err)}
	}
	ref := DealReference(order.OrderID)
	if _, seen := s.posted.Load(ref); seen {
		// 上次提交结果未知：场所已有确认则直接返回，不再重复下单。
		if receipt, found, err := s.confirmOnce(ctx, ref); found {
			return receipt, err
		}
		if ctx.Err() != nil {
			return types.Receipt{}, ctx.Err()
		}
	}
	currency := order.Currency
	if currency == "" {
		currency = s.client.currency
	}
	payload := map[string]any{
		"epic":           order.InstrumentID(),
		"expiry":         s.client.expiry,
		"direction":      string(order.Side),
		"size":           json.Number(size.String()),
		"orderType":      "MARKET",
		"currencyCode":   currency,
		"forceOpen":      true,
		"guaranteedStop": false,
		"dealReference":  ref,
	}
	s.posted.Store(ref, struct{}{})
	resp, err := s.client.do(ctx, s.request(http.MethodPost, "/positions/otc", "2", payload))
	if err != nil {
		return types.Receipt{}, &types.DispatchError{Err: err}
	}
	if code := gjson.GetBytes(resp.body, "errorCode").String(); code != "" {
		return types.Receipt{}, &types.DispatchError{Code: code, Status: resp.status}
	}
	if resp.status >= 300 {
		return types.Receipt{}, &types.DispatchError{Status: resp.status, Err: errors.New(snippet(resp.body))}
	}
	if got := gjson.GetBytes(resp.body, "dealReference").String(); got != "" {
		ref = got
	}
	return s.confirm(ctx, order, ref)
}

// confirm 查询 /confirms/{ref}；确认暂不可用时以 dealReference 作为回执。
func (s *session) confirm(ctx context.Context, order types.ValidatedOrder, ref string) (types.Receipt, error) {
	for i := 0; i < confirmAttempts; i++ {
		receipt, found, err := s.confirmOnce(ctx, ref)
		if found {
			return receipt, err
		}
		if ctx.Err() != nil {
			return types.Receipt{}, ctx.Err()
		}
		timer := time.NewTimer(confirmInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return types.Receipt{}, ctx.Err()
		case <-timer.C:
		}
	}
	logger.Warnf("[venue] order %s confirmation unavailable, using deal reference %s", order.OrderID, ref)
	return types.Receipt{Reference: ref}, nil
}

// confirmOnce 只在场所返回 200 时 found=true；拒绝的确认转为带 Code 的 DispatchError。
func (s *session) confirmOnce(ctx context.Context, ref string) (types.Receipt, bool, error) {
	resp, err := s.client.do(ctx, s.request(http.MethodGet, "/confirms/"+ref, "1", nil))
	if err != nil || resp.status != http.StatusOK {
		return types.Receipt{}, false, nil
	}
	status := gjson.GetBytes(resp.body, "dealStatus").String()
	if status != "" && status != dealStatusAccepted {
		reason := gjson.GetBytes(resp.body, "reason").String()
		if reason == "" {
			reason = strings.ToLower(status)
		}
		return types.Receipt{}, true, &types.DispatchError{Code: reason, Status: resp.status}
	}
	deal := gjson.GetBytes(resp.body, "dealId").String()
	if deal == "" {
		deal = ref
	}
	return types.Receipt{Reference: deal, Payload: json.RawMessage(resp.body)}, true, nil
}

// Close 注销会话；失败只返回错误，由调用方记录。
func (s *session) Close(ctx context.Context) error {
	resp, err := s.client.do(ctx, s.request(http.MethodDelete, "/session", "1", nil))
	if err != nil {
		return err
	}
	if resp.status >= 300 && resp.status != http.StatusUnauthorized {
		return fmt.Errorf("session logout returned %d", resp.status)
	}
	logger.Infof("[venue] session destroyed account=%s", s.accountID)
	return nil
}
