package config

import (
	"strings"
	"time"
)

// Config 是 orderflow 的主配置载体。
type Config struct {
	App      AppConfig      `toml:"app"`
	Store    StoreConfig    `toml:"store"`
	Venue    VenueConfig    `toml:"venue"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Retry    RetryConfig    `toml:"retry"`
	Notify   NotifyConfig   `toml:"notify"`
}

type AppConfig struct {
	Env       string `toml:"env"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	LogPath   string `toml:"log_path"`
	HTTPAddr  string `toml:"http_addr"`
}

// StoreConfig 描述参考数据库、报告日志库与种子文件位置。
type StoreConfig struct {
	ReferencePath string `toml:"reference_path"`
	JournalPath   string `toml:"journal_path"`
	SeedPath      string `toml:"seed_path"`
	WatchSeed     bool   `toml:"watch_seed"`
}

const (
	VenueModePaper = "paper"
	VenueModeIG    = "ig"
)

// VenueConfig 描述目标交易场所及其连接方式。
type VenueConfig struct {
	Name                   string  `toml:"name"`
	Mode                   string  `toml:"mode"` // paper | ig
	APIURL                 string  `toml:"api_url"`
	APIKey                 string  `toml:"api_key"`
	Identifier             string  `toml:"identifier"`
	Password               string  `toml:"password"`
	AccountID              string  `toml:"account_id"`
	Currency               string  `toml:"currency"`
	TimeoutSeconds         int     `toml:"timeout_seconds"`
	InsecureSkipVerify     bool    `toml:"insecure_skip_verify"`
	RatePerSecond          float64 `toml:"rate_per_second"`
	RateBurst              int     `toml:"rate_burst"`
	BreakerThreshold       int     `toml:"breaker_threshold"`
	BreakerCooldownSeconds int     `toml:"breaker_cooldown_seconds"`
	PaperBalance           string  `toml:"paper_balance"`
	PaperLatencyMS         int     `toml:"paper_latency_ms"`
}

func (v VenueConfig) Timeout() time.Duration {
	return time.Duration(v.TimeoutSeconds) * time.Second
}

func (v VenueConfig) BreakerCooldown() time.Duration {
	return time.Duration(v.BreakerCooldownSeconds) * time.Second
}

func (v VenueConfig) PaperLatency() time.Duration {
	return time.Duration(v.PaperLatencyMS) * time.Millisecond
}

type PipelineConfig struct {
	DispatchTimeoutMS int `toml:"dispatch_timeout_ms"`
}

// DispatchTimeout 是扇出的共享截止时间。
func (p PipelineConfig) DispatchTimeout() time.Duration {
	return time.Duration(p.DispatchTimeoutMS) * time.Millisecond
}

// RetryConfig 为每类外部调用单独配置重试。
type RetryConfig struct {
	Lookup   RetryPolicyConfig `toml:"lookup"`
	Session  RetryPolicyConfig `toml:"session"`
	Balance  RetryPolicyConfig `toml:"balance"`
	Dispatch RetryPolicyConfig `toml:"dispatch"`
}

type RetryPolicyConfig struct {
	MaxAttempts int `toml:"max_attempts"`
	BaseDelayMS int `toml:"base_delay_ms"`
	MaxDelayMS  int `toml:"max_delay_ms"`
}

func (r RetryPolicyConfig) BaseDelay() time.Duration {
	return time.Duration(r.BaseDelayMS) * time.Millisecond
}

func (r RetryPolicyConfig) MaxDelay() time.Duration {
	return time.Duration(r.MaxDelayMS) * time.Millisecond
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
