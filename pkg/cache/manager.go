package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Fetcher produces the value for a key on a cache miss.
type Fetcher func(ctx context.Context) (any, error)

// Manager holds resolved responses and in-flight fetches per key.
//
// A key is either absent, pending (one fetch shared by every concurrent caller)
// or resolved. Failed fetches leave the key absent. Values handed out are shared
// between callers and must be treated as read-only.
type Manager struct {
	mu       sync.Mutex
	resolved map[string]any
	pending  map[string]*pendingFetch

	store    Store
	storeTTL time.Duration
	logger   zerolog.Logger
}

type pendingFetch struct {
	done    chan struct{}
	data    any
	err     error
	waiters int
	cancel  context.CancelFunc
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithStore adds a shared second-level store.
func WithStore(store Store, ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		m.store = store
		if ttl <= 0 {
			ttl = DefaultStoreTTL
		}
		m.storeTTL = ttl
	}
}

// NewManager creates an empty cache.
func NewManager(logger zerolog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		resolved: make(map[string]any),
		pending:  make(map[string]*pendingFetch),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load returns the resolved value for key, joins a pending fetch for it, or
// starts one. The fetch runs detached from the caller's context and is only
// cancelled once every waiting caller has given up.
func (m *Manager) Load(ctx context.Context, key CacheKey, fetch Fetcher) (any, error) {
	k := key.String()

	m.mu.Lock()
	if v, ok := m.resolved[k]; ok {
		m.mu.Unlock()
		CacheHits.WithLabelValues("memory").Inc()
		return v, nil
	}

	p, ok := m.pending[k]
	if ok {
		p.waiters++
		CoalescedWaits.Inc()
	} else {
		fetchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		p = &pendingFetch{
			done:    make(chan struct{}),
			waiters: 1,
			cancel:  cancel,
		}
		m.pending[k] = p
		CacheMisses.Inc()
		go m.run(fetchCtx, key, k, p, fetch)
	}
	m.mu.Unlock()

	if ok {
		m.logger.Debug().Str("key", k).Msg("Joined pending fetch")
	}

	select {
	case <-p.done:
		return p.data, p.err
	case <-ctx.Done():
		m.abandon(k, p)
		return nil, ctx.Err()
	}
}

func (m *Manager) run(ctx context.Context, key CacheKey, k string, p *pendingFetch, fetch Fetcher) {
	defer p.cancel()

	data, err := m.fetchShared(ctx, key, fetch)

	m.mu.Lock()
	p.data, p.err = data, err
	if m.pending[k] == p {
		delete(m.pending, k)
	}
	if err == nil {
		m.resolved[k] = data
	}
	m.mu.Unlock()

	close(p.done)
}

// fetchShared consults the shared store before fetching and fills it afterwards.
func (m *Manager) fetchShared(ctx context.Context, key CacheKey, fetch Fetcher) (any, error) {
	if m.store == nil {
		return fetch(ctx)
	}

	entry, err := m.store.Get(ctx, key)
	switch {
	case err == nil:
		if v, decodeErr := entry.Value(); decodeErr == nil {
			CacheHits.WithLabelValues("store").Inc()
			return v, nil
		}
	case !errors.Is(err, ErrCacheMiss):
		m.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache store get error")
	}

	data, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	if entry, err := NewEntry(data, m.storeTTL); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to encode cache entry")
	} else if err := m.store.Set(ctx, key, entry); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to write cache store")
	}
	return data, nil
}

func (m *Manager) abandon(k string, p *pendingFetch) {
	m.mu.Lock()
	p.waiters--
	last := p.waiters == 0
	if last && m.pending[k] == p {
		// later callers start a fresh fetch instead of joining a cancelled one
		delete(m.pending, k)
	}
	m.mu.Unlock()

	if last {
		p.cancel()
	}
}

// Erase drops all resolved entries. Pending fetches are untouched and still
// store their result when they complete.
func (m *Manager) Erase(ctx context.Context, host string) error {
	m.mu.Lock()
	m.resolved = make(map[string]any)
	m.mu.Unlock()
	CacheErases.Inc()

	if m.store != nil {
		return m.store.Flush(ctx, host)
	}
	return nil
}

// Len returns the number of resolved entries.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.resolved)
}

// Pending returns the number of in-flight fetches.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
