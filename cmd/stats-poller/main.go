// Command stats-poller periodically collects statistics from an appliance and
// writes one JSON document per collection to stdout.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/appliance-stats/pkg/cache"
	"github.com/Sternrassler/appliance-stats/pkg/config"
	"github.com/Sternrassler/appliance-stats/pkg/logging"
	"github.com/Sternrassler/appliance-stats/pkg/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
)

const name = "stats-poller"

var (
	// overridden during build with ldflags
	version = "dev"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    name,
		Version: version,
		Usage:   "Collect appliance statistics on an interval",
		Description: `Reads a YAML file describing the target device, its endpoints and the
properties to collect, then collects every interval and prints one JSON
document per collection.

  stats-poller --config poller.yaml --interval 30s
  stats-poller --config poller.yaml --once --log-level debug --pretty`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Path to the poller YAML configuration",
				Sources:  cli.EnvVars("STATS_POLLER_CONFIG"),
				Required: true,
			},
			&cli.DurationFlag{
				Name:    "interval",
				Usage:   "Time between collections",
				Sources: cli.EnvVars("STATS_POLLER_INTERVAL"),
				Value:   60 * time.Second,
			},
			&cli.BoolFlag{
				Name:  "once",
				Usage: "Collect once and exit",
			},
			&cli.StringFlag{
				Name:    "metrics-addr",
				Usage:   "Serve Prometheus metrics on this address (e.g. :9100)",
				Sources: cli.EnvVars("STATS_POLLER_METRICS_ADDR"),
			},
			&cli.StringFlag{
				Name:    "redis-addr",
				Usage:   "Share resolved responses through Redis (overrides cache.redisAddr)",
				Sources: cli.EnvVars("STATS_POLLER_REDIS_ADDR"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Sources: cli.EnvVars("STATS_POLLER_LOG_LEVEL"),
				Value:   "info",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Human-readable log output",
			},
		},
		Action: runPoller,
	}
}

func runPoller(ctx context.Context, cmd *cli.Command) error {
	level, err := logging.ParseLevel(cmd.String("log-level"))
	if err != nil {
		return err
	}
	logger := logging.Setup(logging.Config{
		Level:  level,
		Pretty: cmd.Bool("pretty"),
		Output: cmd.Root().ErrWriter,
	}).With().Str("component", "poller").Logger()

	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}

	interval := cmd.Duration("interval")
	if interval <= 0 && !cmd.Bool("once") {
		return fmt.Errorf("interval must be positive (got %s)", interval)
	}

	store, closeStore, err := openStore(ctx, cfg, cmd.String("redis-addr"), logger)
	if err != nil {
		return err
	}
	defer closeStore()

	if addr := cmd.String("metrics-addr"); addr != "" {
		shutdown := serveMetrics(addr, logger)
		defer shutdown()
	}

	p, err := newPoller(cfg, &logger, store, cmd.Root().Writer)
	if err != nil {
		return err
	}

	logger.Info().
		Str("host", cfg.Target.Host).
		Dur("interval", interval).
		Bool("once", cmd.Bool("once")).
		Msg("Poller starting")

	if cmd.Bool("once") {
		return p.pollOnce(ctx)
	}
	return p.run(ctx, interval)
}

func openStore(ctx context.Context, cfg *config.Config, override string, logger zerolog.Logger) (cache.Store, func(), error) {
	addr := cfg.Cache.RedisAddr
	if override != "" {
		addr = override
	}
	if addr == "" {
		return nil, func() {}, nil
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   cfg.Cache.RedisDB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		redisClient.Close()
		return nil, nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	logger.Info().Str("addr", addr).Msg("Connected to Redis")

	return cache.NewRedisStore(redisClient), func() { redisClient.Close() }, nil
}

func serveMetrics(addr string, logger zerolog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", healthHandler)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("addr", addr).Msg("Metrics server failed")
		}
	}()
	logger.Info().Str("addr", addr).Msg("Serving metrics")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}
