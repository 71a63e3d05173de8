package app

import (
	"context"
	"fmt"
	"strings"

	"orderflow/internal/config"
	"orderflow/internal/gateway"
	"orderflow/internal/gateway/notifier"
	"orderflow/internal/logger"
	"orderflow/internal/pipeline"
	"orderflow/internal/pkg/retry"
	"orderflow/internal/store/journal"
	"orderflow/internal/store/seed"
	"orderflow/internal/store/sqlite"
	streamhttp "orderflow/internal/transport/http/stream"
)

type AppBuilder struct {
	cfg *config.Config

	connectorFn func(config.VenueConfig) (pipeline.Connector, error)
	textFn      func(config.TelegramConfig) notifier.TextNotifier
	withHTTP    bool
}

type AppBuilderOption func(*AppBuilder)

// WithConnector 替换场所连接器构造（测试用）。
func WithConnector(fn func(config.VenueConfig) (pipeline.Connector, error)) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.connectorFn = fn
		}
	}
}

// WithTextNotifier 替换 Telegram 文本通道。
func WithTextNotifier(fn func(config.TelegramConfig) notifier.TextNotifier) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.textFn = fn
		}
	}
}

// WithoutHTTP 不构建 HTTP 服务（一次性模式）。
func WithoutHTTP() AppBuilderOption {
	return func(b *AppBuilder) { b.withHTTP = false }
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:         cfg,
		connectorFn: gateway.NewConnectorFromConfig,
		textFn:      buildTelegram,
		withHTTP:    true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func buildTelegram(cfg config.TelegramConfig) notifier.TextNotifier {
	return notifier.NewTelegram(cfg.BotToken, cfg.ChatID)
}

func (b *AppBuilder) Build(ctx context.Context) (_ *App, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)
	logger.SetFormat(cfg.App.LogFormat)

	a := &App{cfg: cfg}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	st, err := sqlite.NewSqliteStore(cfg.Store.ReferencePath)
	if err != nil {
		return nil, fmt.Errorf("open reference store: %w", err)
	}
	a.store = st
	a.closers = append(a.closers, st.Close)

	summary := &StartupSummary{
		Env:           cfg.App.Env,
		ReferencePath: cfg.Store.ReferencePath,
		JournalPath:   cfg.Store.JournalPath,
		SeedPath:      cfg.Store.SeedPath,
		Venue:         strings.ToUpper(cfg.Venue.Name),
		VenueMode:     cfg.Venue.Mode,
		DispatchTTL:   cfg.Pipeline.DispatchTimeout().String(),
		Retry: map[string]string{
			"lookup":   formatPolicy(cfg.Retry.Lookup),
			"session":  formatPolicy(cfg.Retry.Session),
			"balance":  formatPolicy(cfg.Retry.Balance),
			"dispatch": formatPolicy(cfg.Retry.Dispatch),
		},
	}
	if cfg.Venue.Mode == config.VenueModeIG {
		summary.VenueEndpoint = cfg.Venue.APIURL
	}

	if path := strings.TrimSpace(cfg.Store.SeedPath); path != "" {
		loader, err := seed.NewLoader(path, st)
		if err != nil {
			return nil, err
		}
		res, err := loader.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load securities seed: %w", err)
		}
		summary.SeedRows = res.Upserted
		a.seeder = loader
		a.watchSeed = cfg.Store.WatchSeed
	}

	notifiers := notifier.Multi{notifier.LogNotifier{}}
	if path := strings.TrimSpace(cfg.Store.JournalPath); path != "" {
		j, err := journal.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open report journal: %w", err)
		}
		a.journal = j
		a.closers = append(a.closers, j.Close)
		notifiers = append(notifiers, j)
	}
	if tg := cfg.Notify.Telegram; tg.Enabled {
		notifiers = append(notifiers, notifier.NewReportNotifier(b.textFn(tg)))
	}
	summary.Notifiers = notifiers.Describe()

	conn, err := b.connectorFn(cfg.Venue)
	if err != nil {
		return nil, fmt.Errorf("build venue connector: %w", err)
	}
	policies := pipeline.RetryPolicies{
		Lookup:   policyFrom(cfg.Retry.Lookup),
		Session:  policyFrom(cfg.Retry.Session),
		Balance:  policyFrom(cfg.Retry.Balance),
		Dispatch: policyFrom(cfg.Retry.Dispatch),
	}
	driver, err := pipeline.NewDriver(pipeline.DriverConfig{
		Venue:           cfg.Venue.Name,
		DispatchTimeout: cfg.Pipeline.DispatchTimeout(),
		Lookup:          pipeline.RetryLookup(st, policies.Lookup),
		Connector:       pipeline.RetryConnector(conn, policies),
		Notifier:        notifiers,
	})
	if err != nil {
		return nil, err
	}
	a.driver = driver

	if b.withHTTP && strings.TrimSpace(cfg.App.HTTPAddr) != "" {
		var reports streamhttp.ReportStore
		if a.journal != nil {
			reports = a.journal
		}
		srv, err := streamhttp.NewServer(streamhttp.ServerConfig{
			Addr:    cfg.App.HTTPAddr,
			Runner:  driver,
			Reports: reports,
		})
		if err != nil {
			return nil, err
		}
		a.http = srv
		summary.HTTPAddr = srv.Addr()
	}
	a.Summary = summary
	return a, nil
}

func policyFrom(p config.RetryPolicyConfig) retry.Policy {
	return retry.Policy{MaxAttempts: p.MaxAttempts, BaseDelay: p.BaseDelay(), MaxDelay: p.MaxDelay()}
}

func formatPolicy(p config.RetryPolicyConfig) string {
	return fmt.Sprintf("%d 次, %s..%s", p.MaxAttempts, p.BaseDelay(), p.MaxDelay())
}
