package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Sternrassler/appliance-stats/pkg/cache"
	"github.com/Sternrassler/appliance-stats/pkg/collector"
	"github.com/Sternrassler/appliance-stats/pkg/config"
	"github.com/Sternrassler/appliance-stats/pkg/loader"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// document is what one collection prints.
type document struct {
	Host      string         `json:"host"`
	Timestamp time.Time      `json:"timestamp"`
	Duration  string         `json:"duration"`
	Stats     map[string]any `json:"stats"`
	Errors    []string       `json:"errors"`
}

type poller struct {
	host      string
	loader    *loader.Loader
	collector *collector.Collector
	out       *json.Encoder
	logger    zerolog.Logger
}

func newPoller(cfg *config.Config, logger *zerolog.Logger, store cache.Store, out io.Writer) (*poller, error) {
	l, err := loader.New(cfg.Target.Host, cfg.LoaderConfig(logger, store))
	if err != nil {
		return nil, err
	}
	if err := l.SetEndpoints(cfg.Endpoints); err != nil {
		return nil, fmt.Errorf("register endpoints: %w", err)
	}

	c, err := collector.New(l, cfg.Properties, cfg.CollectorOptions(logger))
	if err != nil {
		return nil, err
	}

	return &poller{
		host:      cfg.Target.Host,
		loader:    l,
		collector: c,
		out:       json.NewEncoder(out),
		logger:    *logger,
	}, nil
}

// run polls until ctx is done.
func (p *poller) run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := p.pollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			p.logger.Error().Err(err).Msg("Poll failed")
		}

		select {
		case <-ctx.Done():
			p.logger.Info().Msg("Poller stopped")
			return nil
		case <-ticker.C:
		}
	}

	p.logger.Info().Msg("Poller stopped")
	return nil
}

// pollOnce authenticates, collects and prints one document. The cache is
// erased afterwards so the next poll sees fresh data.
func (p *poller) pollOnce(ctx context.Context) error {
	if err := p.loader.Auth(ctx); err != nil {
		return err
	}

	stopOnCancel := context.AfterFunc(ctx, p.collector.Stop)
	defer stopOnCancel()

	start := time.Now()
	result, err := p.collector.Collect(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if err := p.loader.EraseCache(context.WithoutCancel(ctx)); err != nil {
			p.logger.Warn().Err(err).Msg("Failed to erase cache")
		}
	}()

	if len(result.Errors) > 0 {
		p.logger.Warn().Int("errors", len(result.Errors)).Msg("Collection finished with errors")
	}

	return p.out.Encode(document{
		Host:      p.host,
		Timestamp: start.UTC(),
		Duration:  time.Since(start).String(),
		Stats:     result.Stats,
		Errors:    result.Errors,
	})
}
