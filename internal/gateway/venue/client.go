package venue

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"orderflow/internal/config"
	"orderflow/internal/logger"
	"orderflow/internal/pipeline"
	"orderflow/internal/pkg/circuit"
	"orderflow/internal/types"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const (
	headerAPIKey    = "X-IG-API-KEY"
	headerCST       = "CST"
	headerSecurity  = "X-SECURITY-TOKEN"
	headerVersion   = "Version"
	maxErrorBodyLen = 4096
)

// Client wraps the IG-style REST API: session handshake, accounts and OTC positions.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	apiKey     string
	identifier string
	password   string
	accountID  string
	currency   string
	expiry     string

	limiter *rate.Limiter
	breaker *circuit.CircuitBreaker
}

// NewClient constructs a venue client from configuration.
func NewClient(cfg config.VenueConfig) (*Client, error) {
	raw := strings.TrimSpace(cfg.APIURL)
	if raw == "" {
		return nil, fmt.Errorf("venue.api_url 不能为空")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("解析 venue.api_url 失败: %w", err)
	}
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		if transport.TLSClientConfig == nil {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402
		} else {
			transport.TLSClientConfig.InsecureSkipVerify = true // #nosec G402
		}
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}
	breaker := circuit.NewCircuitBreaker("venue."+strings.ToLower(cfg.Name), cfg.BreakerThreshold, cfg.BreakerCooldown())
	breaker.SetFailurePredicate(isVenueFault)
	return &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
		apiKey:     strings.TrimSpace(cfg.APIKey),
		identifier: strings.TrimSpace(cfg.Identifier),
		password:   cfg.Password,
		accountID:  strings.TrimSpace(cfg.AccountID),
		currency:   strings.TrimSpace(cfg.Currency),
		expiry:     "-",
		limiter:    rate.NewLimiter(limit, burst),
		breaker:    breaker,
	}, nil
}

// SetHTTPClient sets the HTTP client for testing.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Breaker exposes the dispatch breaker state.
func (c *Client) Breaker() *circuit.CircuitBreaker {
	return c.breaker
}

// Open 完成会话握手，返回携带 CST / X-SECURITY-TOKEN 的会话。
func (c *Client) Open(ctx context.Context) (pipeline.Session, error) {
	payload := map[string]any{
		"identifier":        c.identifier,
		"password":          c.password,
		"encryptedPassword": nil,
	}
	resp, err := c.do(ctx, request{method: http.MethodPost, path: "/session", version: "2", payload: payload})
	if err != nil {
		return nil, err
	}
	if code := gjson.GetBytes(resp.body, "errorCode").String(); code != "" {
		return nil, &types.AuthError{Code: code}
	}
	if resp.status >= 500 {
		return nil, fmt.Errorf("session handshake returned %d: %s", resp.status, snippet(resp.body))
	}
	if resp.status >= 300 {
		return nil, &types.AuthError{Err: fmt.Errorf("session handshake returned %d", resp.status)}
	}
	cst := resp.header.Get(headerCST)
	token := resp.header.Get(headerSecurity)
	if cst == "" || token == "" {
		return nil, &types.AuthError{Err: errors.New("session handshake returned no tokens")}
	}
	account := c.accountID
	if account == "" {
		account = gjson.GetBytes(resp.body, "currentAccountId").String()
	}
	logger.Infof("[venue] session created account=%s", account)
	return &session{client: c, cst: cst, token: token, accountID: account}, nil
}

type request struct {
	method  string
	path    string
	version string
	payload any
	cst     string
	token   string
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (c *Client) do(ctx context.Context, r request) (response, error) {
	endpoint, err := c.resolveEndpoint(r.path)
	if err != nil {
		return response{}, err
	}
	var body io.Reader
	if r.payload != nil {
		buf, err := json.Marshal(r.payload)
		if err != nil {
			return response{}, fmt.Errorf("序列化请求失败: %w", err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, endpoint.String(), body)
	if err != nil {
		return response{}, fmt.Errorf("构造请求失败: %w", err)
	}
	req.Header.Set("Accept", "application/json; charset=UTF-8")
	if r.payload != nil {
		req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	}
	req.Header.Set(headerAPIKey, c.apiKey)
	if r.version != "" {
		req.Header.Set(headerVersion, r.version)
	}
	if r.cst != "" {
		req.Header.Set(headerCST, r.cst)
		req.Header.Set(headerSecurity, r.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("调用场所 %s %s 失败: %w", r.method, r.path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return response{}, fmt.Errorf("读取场所响应失败: %w", err)
	}
	return response{status: resp.StatusCode, header: resp.Header, body: data}, nil
}

func (c *Client) resolveEndpoint(path string) (*url.URL, error) {
	if c.baseURL == nil {
		return nil, fmt.Errorf("venue API 地址未设置")
	}
	trimmed := strings.TrimSpace(path)
	if !strings.HasPrefix(trimmed, "/") {
		trimmed = "/" + trimmed
	}
	base := *c.baseURL
	base.Path = strings.TrimSuffix(base.Path, "/") + trimmed
	base.RawPath = ""
	base.RawQuery = ""
	base.Fragment = ""
	return &base, nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBodyLen {
		s = s[:maxErrorBodyLen]
	}
	return s
}

// isVenueFault 只把传输失败与 5xx 计入熔断；场所明确拒单与调用方取消不计入。
func isVenueFault(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var de *types.DispatchError
	if errors.As(err, &de) {
		return de.Code == "" && (de.Status == 0 || de.Status >= 500)
	}
	return true
}
