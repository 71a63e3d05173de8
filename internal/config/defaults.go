package config

import (
	"strings"
)

// 默认值常量
const (
	defaultAppEnv            = "dev"
	defaultAppLogLevel       = "info"
	defaultAppLogFormat      = "text"
	defaultAppHTTPAddr       = ":9992"
	defaultStoreReference    = "/data/db/securities.db"
	defaultStoreJournal      = "/data/db/reports.db"
	defaultVenueName         = "IG"
	defaultVenueMode         = VenueModePaper
	defaultVenueAPIURL       = "https://demo-api.ig.com/gateway/deal"
	defaultVenueCurrency     = "GBP"
	defaultVenueTimeout      = 10
	defaultVenueRate         = 10
	defaultVenueBurst        = 5
	defaultBreakerThreshold  = 5
	defaultBreakerCooldown   = 30
	defaultPaperBalance      = "10000"
	defaultDispatchTimeoutMS = 5000
	defaultRetryLookup       = 3
	defaultRetrySession      = 3
	defaultRetryBalance      = 3
	defaultRetryDispatch     = 2
	defaultRetryBaseMS       = 200
	defaultRetryMaxMS        = 2000
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Store.applyDefaults(keys)
	c.Venue.applyDefaults(keys)
	c.Pipeline.applyDefaults(keys)
	c.Retry.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.log_format", &a.LogFormat, defaultAppLogFormat),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
	)
	a.LogFormat = strings.ToLower(strings.TrimSpace(a.LogFormat))
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("store.reference_path", &s.ReferencePath, defaultStoreReference),
		stringFieldDefault("store.journal_path", &s.JournalPath, defaultStoreJournal),
		boolFieldDefault("store.watch_seed", &s.WatchSeed, true),
	)
}

func (v *VenueConfig) applyDefaults(keys keySet) {
	if v == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("venue.name", &v.Name, defaultVenueName),
		stringFieldDefault("venue.mode", &v.Mode, defaultVenueMode),
		stringFieldDefault("venue.api_url", &v.APIURL, defaultVenueAPIURL),
		stringFieldDefault("venue.currency", &v.Currency, defaultVenueCurrency),
		stringFieldDefault("venue.paper_balance", &v.PaperBalance, defaultPaperBalance),
		fieldDefault{
			key:   "venue.timeout_seconds",
			need:  func() bool { return v.TimeoutSeconds <= 0 },
			apply: func() { v.TimeoutSeconds = defaultVenueTimeout },
		},
		fieldDefault{
			key:   "venue.rate_per_second",
			need:  func() bool { return v.RatePerSecond <= 0 },
			apply: func() { v.RatePerSecond = defaultVenueRate },
		},
		fieldDefault{
			key:   "venue.rate_burst",
			need:  func() bool { return v.RateBurst <= 0 },
			apply: func() { v.RateBurst = defaultVenueBurst },
		},
		fieldDefault{
			key:   "venue.breaker_threshold",
			need:  func() bool { return v.BreakerThreshold <= 0 },
			apply: func() { v.BreakerThreshold = defaultBreakerThreshold },
		},
		fieldDefault{
			key:   "venue.breaker_cooldown_seconds",
			need:  func() bool { return v.BreakerCooldownSeconds <= 0 },
			apply: func() { v.BreakerCooldownSeconds = defaultBreakerCooldown },
		},
	)
	v.Name = strings.ToUpper(strings.TrimSpace(v.Name))
	v.Mode = strings.ToLower(strings.TrimSpace(v.Mode))
	v.APIURL = strings.TrimRight(strings.TrimSpace(v.APIURL), "/")
	if v.PaperLatencyMS < 0 {
		v.PaperLatencyMS = 0
	}
}

func (p *PipelineConfig) applyDefaults(keys keySet) {
	if p == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "pipeline.dispatch_timeout_ms",
			need:  func() bool { return p.DispatchTimeoutMS <= 0 },
			apply: func() { p.DispatchTimeoutMS = defaultDispatchTimeoutMS },
		},
	)
}

func (r *RetryConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	r.Lookup.applyDefaults(keys, "retry.lookup", defaultRetryLookup)
	r.Session.applyDefaults(keys, "retry.session", defaultRetrySession)
	r.Balance.applyDefaults(keys, "retry.balance", defaultRetryBalance)
	r.Dispatch.applyDefaults(keys, "retry.dispatch", defaultRetryDispatch)
}

func (p *RetryPolicyConfig) applyDefaults(keys keySet, prefix string, attempts int) {
	applyFieldDefaults(keys,
		fieldDefault{
			key:   prefix + ".max_attempts",
			need:  func() bool { return p.MaxAttempts <= 0 },
			apply: func() { p.MaxAttempts = attempts },
		},
		fieldDefault{
			key:   prefix + ".base_delay_ms",
			need:  func() bool { return p.BaseDelayMS <= 0 },
			apply: func() { p.BaseDelayMS = defaultRetryBaseMS },
		},
		fieldDefault{
			key:   prefix + ".max_delay_ms",
			need:  func() bool { return p.MaxDelayMS <= 0 },
			apply: func() { p.MaxDelayMS = defaultRetryMaxMS },
		},
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
