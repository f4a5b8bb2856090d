// Package loader fetches named endpoints from an appliance management API.
//
// A Loader owns the endpoint registry for one device. LoadEndpoint resolves a
// registered endpoint completely: it follows pagination, fetches per-item stats,
// expands references, retries transient failures and caches the result when the
// request shape allows it. Every device exchange goes through the Loader's
// worker pool, so at most Workers exchanges are in flight at once.
package loader

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/appliance-stats/pkg/cache"
	"github.com/Sternrassler/appliance-stats/pkg/endpoint"
	"github.com/Sternrassler/appliance-stats/pkg/pagination"
	"github.com/Sternrassler/appliance-stats/pkg/pool"
	"github.com/Sternrassler/appliance-stats/pkg/ratelimit"
	"github.com/Sternrassler/appliance-stats/pkg/transport"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Loader is the Endpoint Loader for one device.
type Loader struct {
	target        transport.Target
	requester     transport.Requester
	authenticator transport.Authenticator
	registry      *endpoint.Registry
	cache         *cache.Manager
	pool          *pool.Pool
	limiter       *ratelimit.Limiter
	config        Config
	logger        zerolog.Logger

	mu    sync.RWMutex
	token string
}

// Config holds the loader configuration.
type Config struct {
	Credentials transport.Credentials
	Connection  transport.Connection

	// Logger defaults to the global logger with component=loader.
	Logger *zerolog.Logger

	// ChunkSize is the page size for paginated endpoints.
	ChunkSize int

	// Workers bounds concurrent device exchanges.
	Workers int

	// Requester executes exchanges. Defaults to a net/http requester.
	Requester transport.Requester

	// Authenticator obtains tokens. Defaults to a login against the device.
	Authenticator transport.Authenticator

	// Store optionally shares resolved responses between loaders (Redis).
	Store    cache.Store
	StoreTTL time.Duration

	// RateLimit paces exchanges. The zero value does not limit.
	RateLimit ratelimit.Config

	Retry      RetryConfig
	Pagination pagination.Config

	// Timeout bounds one exchange of the default requester.
	Timeout time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(credentials transport.Credentials) Config {
	return Config{
		Credentials: credentials,
		Connection:  transport.DefaultConnection(),
		ChunkSize:   30,
		Workers:     1,
		Retry:       DefaultRetryConfig(),
		Pagination:  pagination.DefaultConfig(),
		Timeout:     transport.DefaultTimeout,
	}
}

// Result is a fully resolved endpoint.
type Result struct {
	Name string
	Data any
}

// LoadOptions are per-call request adjustments.
type LoadOptions struct {
	// ReplaceStrings maps regular expressions to replacements applied to the
	// serialized request body before it is sent, in sorted pattern order.
	ReplaceStrings map[string]string `yaml:"replaceStrings"`
}

// New creates a loader for host. Zero-valued settings take their defaults.
func New(host string, cfg Config) (*Loader, error) {
	if strings.TrimSpace(host) == "" {
		return nil, fmt.Errorf("%w: host is required", ErrInvalidConfig)
	}

	defaults := DefaultConfig(cfg.Credentials)
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = defaults.ChunkSize
	}
	if cfg.Workers == 0 {
		cfg.Workers = defaults.Workers
	}
	if cfg.ChunkSize < 1 || int64(cfg.ChunkSize) > pool.MaxSize {
		return nil, fmt.Errorf("%w: chunk size must be a positive safe integer (got %d)", ErrInvalidConfig, cfg.ChunkSize)
	}
	if cfg.Workers < 1 || int64(cfg.Workers) > pool.MaxSize {
		return nil, fmt.Errorf("%w: workers must be a positive safe integer (got %d)", ErrInvalidConfig, cfg.Workers)
	}

	if err := cfg.Credentials.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if cfg.Connection.Protocol == "" {
		cfg.Connection.Protocol = defaults.Connection.Protocol
	}
	if cfg.Connection.Port == 0 {
		cfg.Connection.Port = defaults.Connection.Port
	}
	cfg.Connection.Protocol = strings.ToLower(cfg.Connection.Protocol)
	if err := cfg.Connection.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = defaults.Retry.MaxAttempts
	}
	if cfg.Retry.MaxAttempts < 1 || cfg.Retry.Delay < 0 {
		return nil, fmt.Errorf("%w: retry attempts must be >= 1 and delay >= 0", ErrInvalidConfig)
	}

	limiter, err := ratelimit.New(cfg.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	workers, err := pool.New("loader", cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	var logger zerolog.Logger
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "loader").Logger()
	} else {
		logger = log.With().Str("component", "loader").Logger()
	}
	logger = logger.With().Str("host", host).Logger()

	if cfg.Requester == nil {
		cfg.Requester = transport.NewHTTPRequester(cfg.Timeout)
	}
	if cfg.Authenticator == nil {
		cfg.Authenticator = transport.NewTokenAuthenticator(cfg.Requester)
	}

	var cacheOpts []cache.ManagerOption
	if cfg.Store != nil {
		cacheOpts = append(cacheOpts, cache.WithStore(cfg.Store, cfg.StoreTTL))
	}

	return &Loader{
		target: transport.Target{
			Host:        host,
			Connection:  cfg.Connection,
			Credentials: cfg.Credentials,
		},
		requester:     cfg.Requester,
		authenticator: cfg.Authenticator,
		registry:      endpoint.NewRegistry(logger),
		cache:         cache.NewManager(logger, cacheOpts...),
		pool:          workers,
		limiter:       limiter,
		config:        cfg,
		logger:        logger,
	}, nil
}

// Host returns the target device.
func (l *Loader) Host() string {
	return l.target.Host
}

// Workers returns the exchange concurrency bound.
func (l *Loader) Workers() int {
	return l.pool.Size()
}

// SetEndpoints replaces the whole registry. On a validation error the previous
// registry is kept.
func (l *Loader) SetEndpoints(list []endpoint.Endpoint) error {
	return l.registry.Replace(list)
}

// RegisterEndpoints adds or overwrites descriptors without touching the rest.
func (l *Loader) RegisterEndpoints(list []endpoint.Endpoint) error {
	return l.registry.Add(list)
}

// Endpoint returns a registered descriptor.
func (l *Loader) Endpoint(name string) (endpoint.Endpoint, bool) {
	return l.registry.Get(name)
}

// Auth obtains a token for subsequent requests.
func (l *Loader) Auth(ctx context.Context) error {
	token, err := l.authenticator.Token(ctx, l.target)
	if err != nil {
		return fmt.Errorf("auth %s: %w", l.target.Host, err)
	}

	l.mu.Lock()
	l.token = token
	l.mu.Unlock()

	l.logger.Debug().Msg("Authenticated")
	return nil
}

func (l *Loader) authToken() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.token
}

// LoadEndpoint fetches the named endpoint completely.
func (l *Loader) LoadEndpoint(ctx context.Context, name string, opts LoadOptions) (*Result, error) {
	data, err := l.load(ctx, name, opts)
	if err != nil {
		endpointLoadsTotal.WithLabelValues(name, "error").Inc()
		return nil, &EndpointError{Name: name, Err: err}
	}
	endpointLoadsTotal.WithLabelValues(name, "ok").Inc()
	return &Result{Name: name, Data: data}, nil
}

func (l *Loader) load(ctx context.Context, name string, opts LoadOptions) (any, error) {
	ep, ok := l.registry.Get(name)
	if !ok {
		return nil, ErrUnknownEndpoint
	}

	body, err := requestBody(ep.Body, opts.ReplaceStrings)
	if err != nil {
		return nil, err
	}

	fetch := func(ctx context.Context) (any, error) {
		return l.fetch(ctx, ep, body)
	}

	if !ep.Cacheable() {
		return fetch(ctx)
	}
	return l.cache.Load(ctx, cache.NewKey(l.target.Host, ep.Name, ep.Query, ep.Body), fetch)
}

// fetch resolves one endpoint: first exchange or pages, then enrichment.
func (l *Loader) fetch(ctx context.Context, ep endpoint.Endpoint, body []byte) (any, error) {
	var extra url.Values
	if ep.Pagination {
		extra = pagination.PageSizeQuery(l.config.ChunkSize)
	}
	uri, err := endpoint.BuildURI(ep.Path, ep.Query, extra)
	if err != nil {
		return nil, err
	}

	var data any
	if ep.Pagination {
		follower := pagination.NewFollower(pagination.PageFetcherFunc(func(ctx context.Context, pageURI string) (any, error) {
			return l.request(ctx, ep, ep.Method, pageURI, body)
		}), l.config.Pagination).WithLogger(l.logger)

		merged, err := follower.FetchAll(ctx, uri)
		if err != nil {
			return nil, err
		}
		data = merged
	} else {
		data, err = l.request(ctx, ep, ep.Method, uri, body)
		if err != nil {
			return nil, err
		}
	}

	return l.enrich(ctx, ep, data)
}

// EraseCache drops every resolved response for this device. Pending fetches
// are not affected.
func (l *Loader) EraseCache(ctx context.Context) error {
	if err := l.cache.Erase(ctx, l.target.Host); err != nil {
		return fmt.Errorf("erase cache: %w", err)
	}
	l.logger.Debug().Msg("Cache erased")
	return nil
}

// Cache returns the response cache (for testing).
func (l *Loader) Cache() *cache.Manager {
	return l.cache
}
