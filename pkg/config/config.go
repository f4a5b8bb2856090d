// Package config loads the poller's YAML configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Sternrassler/appliance-stats/pkg/cache"
	"github.com/Sternrassler/appliance-stats/pkg/collector"
	"github.com/Sternrassler/appliance-stats/pkg/endpoint"
	"github.com/Sternrassler/appliance-stats/pkg/loader"
	"github.com/Sternrassler/appliance-stats/pkg/pagination"
	"github.com/Sternrassler/appliance-stats/pkg/ratelimit"
	"github.com/Sternrassler/appliance-stats/pkg/transport"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned for files that parse but do not validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the poller configuration file.
type Config struct {
	Target     Target                        `yaml:"target"`
	Loader     LoaderSettings                `yaml:"loader"`
	Cache      CacheSettings                 `yaml:"cache"`
	Collector  CollectorSettings             `yaml:"collector"`
	Endpoints  []endpoint.Endpoint           `yaml:"endpoints"`
	Properties map[string]collector.Property `yaml:"properties"`
}

// Target is the device to poll.
type Target struct {
	Host        string                `yaml:"host"`
	Credentials transport.Credentials `yaml:"credentials"`
	Connection  transport.Connection  `yaml:"connection"`
}

// LoaderSettings tune the Endpoint Loader.
type LoaderSettings struct {
	ChunkSize int           `yaml:"chunkSize"`
	Workers   int           `yaml:"workers"`
	Timeout   time.Duration `yaml:"timeout"`
	MaxPages  int           `yaml:"maxPages"`

	Retry struct {
		MaxAttempts int           `yaml:"maxAttempts"`
		Delay       time.Duration `yaml:"delay"`
	} `yaml:"retry"`

	RateLimit struct {
		RequestsPerSecond float64 `yaml:"requestsPerSecond"`
		Burst             int     `yaml:"burst"`
	} `yaml:"rateLimit"`
}

// CacheSettings configure the optional shared Redis store.
type CacheSettings struct {
	RedisAddr string        `yaml:"redisAddr"`
	RedisDB   int           `yaml:"redisDB"`
	TTL       time.Duration `yaml:"ttl"`
}

// CollectorSettings tune the Collector.
type CollectorSettings struct {
	Workers  int  `yaml:"workers"`
	IsCustom bool `yaml:"isCustom"`
}

// Load reads and validates the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates a configuration document. Unknown fields are rejected.
func Parse(data []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings New would otherwise reject later, so a bad file
// fails at startup with the offending field named.
func (c *Config) Validate() error {
	if c.Target.Host == "" {
		return fmt.Errorf("%w: target.host is required", ErrInvalidConfig)
	}
	if err := c.Target.Credentials.Validate(); err != nil {
		return fmt.Errorf("%w: target.credentials: %v", ErrInvalidConfig, err)
	}
	if len(c.Properties) == 0 {
		return fmt.Errorf("%w: properties must not be empty", ErrInvalidConfig)
	}
	if c.Loader.ChunkSize < 0 || c.Loader.Workers < 0 || c.Collector.Workers < 0 {
		return fmt.Errorf("%w: chunkSize and workers must not be negative", ErrInvalidConfig)
	}
	for i, ep := range c.Endpoints {
		if err := ep.Normalize().Validate(); err != nil {
			return fmt.Errorf("%w: endpoints[%d]: %v", ErrInvalidConfig, i, err)
		}
	}
	return nil
}

// LoaderConfig converts the file into a loader configuration. store may be nil.
func (c *Config) LoaderConfig(logger *zerolog.Logger, store cache.Store) loader.Config {
	cfg := loader.DefaultConfig(c.Target.Credentials)
	cfg.Logger = logger
	cfg.Connection = c.Target.Connection
	cfg.ChunkSize = c.Loader.ChunkSize
	cfg.Workers = c.Loader.Workers
	if c.Loader.Timeout > 0 {
		cfg.Timeout = c.Loader.Timeout
	}
	if c.Loader.MaxPages > 0 {
		cfg.Pagination = pagination.Config{MaxPages: c.Loader.MaxPages}
	}
	cfg.Retry = loader.RetryConfig{
		MaxAttempts: c.Loader.Retry.MaxAttempts,
		Delay:       c.Loader.Retry.Delay,
	}
	cfg.RateLimit = ratelimit.Config{
		RequestsPerSecond: c.Loader.RateLimit.RequestsPerSecond,
		Burst:             c.Loader.RateLimit.Burst,
	}
	if store != nil {
		cfg.Store = store
		cfg.StoreTTL = c.Cache.TTL
	}
	return cfg
}

// CollectorOptions converts the file into collector options.
func (c *Config) CollectorOptions(logger *zerolog.Logger) collector.Options {
	return collector.Options{
		Logger:   logger,
		IsCustom: c.Collector.IsCustom,
		Workers:  c.Collector.Workers,
	}
}
