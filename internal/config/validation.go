package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.App.validate(); err != nil {
		return err
	}
	if err := c.Store.validate(); err != nil {
		return err
	}
	if err := c.Venue.validate(); err != nil {
		return err
	}
	if err := c.Pipeline.validate(); err != nil {
		return err
	}
	if err := c.Retry.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func (a *AppConfig) validate() error {
	switch a.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("app.log_format only supports text|json, got %s", a.LogFormat)
	}
	return nil
}

func (s *StoreConfig) validate() error {
	if strings.TrimSpace(s.ReferencePath) == "" {
		return fmt.Errorf("store.reference_path cannot be empty")
	}
	if s.WatchSeed && strings.TrimSpace(s.SeedPath) == "" {
		s.WatchSeed = false
	}
	return nil
}

func (v *VenueConfig) validate() error {
	if v.Name == "" {
		return fmt.Errorf("venue.name cannot be empty")
	}
	switch v.Mode {
	case VenueModePaper:
		bal, err := decimal.NewFromString(strings.TrimSpace(v.PaperBalance))
		if err != nil {
			return fmt.Errorf("venue.paper_balance is not a decimal: %w", err)
		}
		if bal.IsNegative() {
			return fmt.Errorf("venue.paper_balance must be >= 0")
		}
	case VenueModeIG:
		if v.APIURL == "" {
			return fmt.Errorf("venue.api_url cannot be empty")
		}
		if strings.TrimSpace(v.APIKey) == "" {
			return fmt.Errorf("venue.api_key cannot be empty in ig mode")
		}
		if strings.TrimSpace(v.Identifier) == "" || strings.TrimSpace(v.Password) == "" {
			return fmt.Errorf("venue requires identifier+password in ig mode")
		}
	default:
		return fmt.Errorf("venue.mode only supports paper|ig, got %s", v.Mode)
	}
	if v.RateBurst < 0 {
		return fmt.Errorf("venue.rate_burst must be >= 0")
	}
	return nil
}

func (p *PipelineConfig) validate() error {
	if p.DispatchTimeoutMS <= 0 {
		return fmt.Errorf("pipeline.dispatch_timeout_ms must be > 0")
	}
	return nil
}

func (r *RetryConfig) validate() error {
	policies := map[string]RetryPolicyConfig{
		"retry.lookup":   r.Lookup,
		"retry.session":  r.Session,
		"retry.balance":  r.Balance,
		"retry.dispatch": r.Dispatch,
	}
	for name, p := range policies {
		if p.MaxAttempts <= 0 {
			return fmt.Errorf("%s.max_attempts must be > 0", name)
		}
		if p.BaseDelayMS < 0 || p.MaxDelayMS < 0 {
			return fmt.Errorf("%s delays must be >= 0", name)
		}
		if p.MaxDelayMS > 0 && p.BaseDelayMS > p.MaxDelayMS {
			return fmt.Errorf("%s.base_delay_ms must be <= max_delay_ms", name)
		}
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	if n.Telegram.Enabled {
		if n.Telegram.BotToken == "" || n.Telegram.ChatID == "" {
			return fmt.Errorf("telegram notification enabled but missing bot_token or chat_id")
		}
	}
	return nil
}
