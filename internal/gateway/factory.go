package gateway

import (
	"fmt"
	"strings"

	"orderflow/internal/config"
	"orderflow/internal/gateway/venue"
	"orderflow/internal/pipeline"

	"github.com/shopspring/decimal"
)

// NewConnectorFromConfig 按 venue.mode 构造场所连接器。
func NewConnectorFromConfig(cfg config.VenueConfig) (pipeline.Connector, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Mode)) {
	case "", config.VenueModePaper:
		balance, err := decimal.NewFromString(strings.TrimSpace(cfg.PaperBalance))
		if err != nil {
			return nil, fmt.Errorf("venue.paper_balance: %w", err)
		}
		return venue.NewPaper(venue.PaperConfig{
			Balance:  balance,
			Currency: cfg.Currency,
			Latency:  cfg.PaperLatency(),
		}), nil
	case config.VenueModeIG:
		client, err := venue.NewClient(cfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported venue mode: %s", cfg.Mode)
	}
}
