package pagination

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/appliance-stats/pkg/endpoint"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// PageSizeParam is the query parameter carrying the page size.
	PageSizeParam = "$top"

	// NextLinkField names the next page's absolute URL in a page body.
	NextLinkField = "nextLink"

	// ItemsField holds the page's elements.
	ItemsField = "items"
)

// ErrProtocol marks malformed paging responses.
var ErrProtocol = errors.New("pagination protocol error")

// Config holds follower configuration.
type Config struct {
	// MaxPages stops runaway paging.
	MaxPages int
}

// DefaultConfig returns the default follower configuration.
func DefaultConfig() Config {
	return Config{
		MaxPages: 10000,
	}
}

// PageFetcher fetches and decodes one page by request URI.
type PageFetcher interface {
	FetchPage(ctx context.Context, uri string) (any, error)
}

// PageFetcherFunc adapts a function to PageFetcher.
type PageFetcherFunc func(ctx context.Context, uri string) (any, error)

// FetchPage calls f.
func (f PageFetcherFunc) FetchPage(ctx context.Context, uri string) (any, error) {
	return f(ctx, uri)
}

// Follower walks nextLink chains.
type Follower struct {
	fetcher PageFetcher
	config  Config
	logger  zerolog.Logger
}

// NewFollower creates a follower. The logger defaults to the global one.
func NewFollower(fetcher PageFetcher, config Config) *Follower {
	if config.MaxPages <= 0 {
		config.MaxPages = DefaultConfig().MaxPages
	}
	return &Follower{
		fetcher: fetcher,
		config:  config,
		logger:  log.With().Str("component", "pagination").Logger(),
	}
}

// WithLogger replaces the follower's logger.
func (f *Follower) WithLogger(logger zerolog.Logger) *Follower {
	f.logger = logger
	return f
}

// PageSizeQuery returns the query values requesting pages of size chunkSize.
func PageSizeQuery(chunkSize int) url.Values {
	return url.Values{PageSizeParam: {strconv.Itoa(chunkSize)}}
}

// FetchAll fetches firstURI and every page linked from it and returns the merged object.
func (f *Follower) FetchAll(ctx context.Context, firstURI string) (map[string]any, error) {
	start := time.Now()

	first, err := f.fetchPage(ctx, firstURI, 1)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]any, len(first))
	for k, v := range first {
		merged[k] = v
	}
	delete(merged, NextLinkField)

	items, hasItems, err := pageItems(first, 1)
	if err != nil {
		return nil, err
	}

	visited := map[string]bool{firstURI: true}
	page := first
	pages := 1
	for {
		nextURI, ok, err := nextPageURI(page, pages)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if visited[nextURI] {
			return nil, fmt.Errorf("%w: page %d links back to %q", ErrProtocol, pages, nextURI)
		}
		if pages >= f.config.MaxPages {
			return nil, fmt.Errorf("%w: more than %d pages", ErrProtocol, f.config.MaxPages)
		}
		visited[nextURI] = true
		pages++

		page, err = f.fetchPage(ctx, nextURI, pages)
		if err != nil {
			return nil, err
		}
		more, ok, err := pageItems(page, pages)
		if err != nil {
			return nil, err
		}
		if ok {
			items = append(items, more...)
			hasItems = true
		}
	}

	if hasItems {
		merged[ItemsField] = items
	}

	f.logger.Debug().
		Str("uri", firstURI).
		Int("pages", pages).
		Int("items", len(items)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return merged, nil
}

func (f *Follower) fetchPage(ctx context.Context, uri string, pageNum int) (map[string]any, error) {
	data, err := f.fetcher.FetchPage(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("fetch page %d: %w", pageNum, err)
	}
	page, ok := data.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: page %d is not an object (got %T)", ErrProtocol, pageNum, data)
	}
	return page, nil
}

func pageItems(page map[string]any, pageNum int) ([]any, bool, error) {
	raw, ok := page[ItemsField]
	if !ok || raw == nil {
		return nil, false, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, false, fmt.Errorf("%w: page %d items is %T, want array", ErrProtocol, pageNum, raw)
	}
	return items, true, nil
}

func nextPageURI(page map[string]any, pageNum int) (string, bool, error) {
	raw, ok := page[NextLinkField]
	if !ok || raw == nil {
		return "", false, nil
	}
	link, ok := raw.(string)
	if !ok {
		return "", false, fmt.Errorf("%w: page %d nextLink is %T, want string", ErrProtocol, pageNum, raw)
	}
	uri, err := endpoint.LinkURI(link, "")
	if err != nil {
		return "", false, fmt.Errorf("%w: page %d: %v", ErrProtocol, pageNum, err)
	}
	return uri, true, nil
}
