// Package collector drives a set of named properties through a Loader and
// folds the results into one stats object.
//
// Property tasks are admitted through the Collector's own worker pool in sorted
// property order. A failed property never affects its siblings: its error is
// recorded and its output key is set to an empty object. Stop prevents further
// admissions while letting started tasks finish.
package collector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Sternrassler/appliance-stats/pkg/endpoint"
	"github.com/Sternrassler/appliance-stats/pkg/loader"
	"github.com/Sternrassler/appliance-stats/pkg/pool"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrInvalidOptions is returned by New for bad construction arguments.
	ErrInvalidOptions = errors.New("invalid collector options")

	// ErrAlreadyActive is returned when Collect is called while a collection runs.
	ErrAlreadyActive = errors.New("collection already in progress")
)

// EndpointLoader is the part of *loader.Loader the collector uses.
type EndpointLoader interface {
	LoadEndpoint(ctx context.Context, name string, opts loader.LoadOptions) (*loader.Result, error)
	RegisterEndpoints(list []endpoint.Endpoint) error
}

// Property is one entry of the property set.
type Property struct {
	// Endpoint names a registered endpoint. Defaults to the property name
	// unless the collector is custom.
	Endpoint string `yaml:"endpoint"`

	// Descriptor defines the endpoint inline; it is registered on the loader
	// when the collector is created.
	Descriptor *endpoint.Endpoint `yaml:"descriptor"`

	// OutputName is the stats key. Defaults to the property name.
	OutputName string `yaml:"outputName"`

	// Options are passed to every LoadEndpoint call.
	Options loader.LoadOptions `yaml:"options"`
}

// Options holds collector configuration.
type Options struct {
	Logger *zerolog.Logger

	// IsCustom requires every property to name its endpoint explicitly.
	IsCustom bool

	// Workers bounds concurrently running property tasks. Defaults to 1.
	Workers int
}

// Result is the outcome of one collection.
type Result struct {
	Stats  map[string]any
	Errors []string
}

type task struct {
	property string
	endpoint string
	output   string
	opts     loader.LoadOptions
}

type run struct {
	id     string
	cancel context.CancelFunc
	// dispatched is closed once no further task will be admitted.
	dispatched chan struct{}
}

// Collector gathers a fixed property set.
type Collector struct {
	loader EndpointLoader
	tasks  []task
	pool   *pool.Pool
	logger zerolog.Logger

	mu      sync.Mutex
	current *run
}

// New creates a collector over loader and properties.
func New(l EndpointLoader, properties map[string]Property, opts Options) (*Collector, error) {
	if l == nil {
		return nil, fmt.Errorf("%w: loader is required", ErrInvalidOptions)
	}
	if ll, ok := l.(*loader.Loader); ok && ll == nil {
		return nil, fmt.Errorf("%w: loader is required", ErrInvalidOptions)
	}
	if len(properties) == 0 {
		return nil, fmt.Errorf("%w: properties must be a non-empty map", ErrInvalidOptions)
	}
	if opts.Logger == nil {
		return nil, fmt.Errorf("%w: logger is required", ErrInvalidOptions)
	}
	if opts.Workers == 0 {
		opts.Workers = 1
	}
	workers, err := pool.New("collector", opts.Workers)
	if err != nil {
		return nil, fmt.Errorf("%w: workers: %v", ErrInvalidOptions, err)
	}

	names := make([]string, 0, len(properties))
	for name := range properties {
		names = append(names, name)
	}
	sort.Strings(names)

	var inline []endpoint.Endpoint
	tasks := make([]task, 0, len(names))
	for _, name := range names {
		prop := properties[name]

		endpointName := prop.Endpoint
		if prop.Descriptor != nil {
			desc := *prop.Descriptor
			if desc.Name == "" {
				desc.Name = endpointName
			}
			if desc.Name == "" {
				desc.Name = name
			}
			endpointName = desc.Name
			inline = append(inline, desc)
		}
		if endpointName == "" {
			if opts.IsCustom {
				return nil, fmt.Errorf("%w: property %q has no endpoint", ErrInvalidOptions, name)
			}
			endpointName = name
		}

		output := prop.OutputName
		if output == "" {
			output = name
		}

		tasks = append(tasks, task{
			property: name,
			endpoint: endpointName,
			output:   output,
			opts:     prop.Options,
		})
	}

	if len(inline) > 0 {
		if err := l.RegisterEndpoints(inline); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
		}
	}

	return &Collector{
		loader: l,
		tasks:  tasks,
		pool:   workers,
		logger: opts.Logger.With().Str("component", "collector").Logger(),
	}, nil
}

// IsActive reports whether a collection is running.
func (c *Collector) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

// Collect runs every property once. Partial failures are reported in the
// result; an error is only returned for misuse.
func (c *Collector) Collect(ctx context.Context) (*Result, error) {
	admitCtx, cancel := context.WithCancel(ctx)
	r := &run{
		id:         uuid.NewString(),
		cancel:     cancel,
		dispatched: make(chan struct{}),
	}

	c.mu.Lock()
	if c.current != nil {
		c.mu.Unlock()
		cancel()
		return nil, ErrAlreadyActive
	}
	c.current = r
	c.mu.Unlock()

	defer func() {
		cancel()
		c.mu.Lock()
		c.current = nil
		c.mu.Unlock()
	}()

	logger := c.logger.With().Str("run_id", r.id).Logger()
	logger.Debug().Int("properties", len(c.tasks)).Msg("Collection started")
	start := time.Now()

	result := &Result{
		Stats:  make(map[string]any, len(c.tasks)),
		Errors: []string{},
	}
	var resultMu sync.Mutex
	var wg sync.WaitGroup

	admitted := 0
	for _, t := range c.tasks {
		if err := c.pool.Acquire(admitCtx); err != nil {
			break
		}
		admitted++

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer c.pool.Release()

			res, err := c.loader.LoadEndpoint(ctx, t.endpoint, t.opts)

			resultMu.Lock()
			defer resultMu.Unlock()
			if err != nil {
				propertyFailuresTotal.Inc()
				logger.Warn().Err(err).Str("property", t.property).Msg("Property collection failed")
				result.Errors = append(result.Errors, err.Error())
				result.Stats[t.output] = map[string]any{}
				return
			}
			result.Stats[t.output] = res.Data
		}()
	}
	close(r.dispatched)

	skipped := len(c.tasks) - admitted
	if skipped > 0 {
		cancelledTasksTotal.Add(float64(skipped))
		logger.Info().Int("skipped", skipped).Msg("Collection stopped before all properties started")
	}

	wg.Wait()

	runsTotal.Inc()
	runDuration.Observe(time.Since(start).Seconds())
	logger.Debug().
		Int("admitted", admitted).
		Int("errors", len(result.Errors)).
		Dur("duration", time.Since(start)).
		Msg("Collection finished")

	return result, nil
}

// Stop cancels the admission of tasks that have not started yet and returns
// once no further task will start. Running tasks complete normally. Stop is a
// no-op when no collection is active.
func (c *Collector) Stop() {
	c.mu.Lock()
	r := c.current
	c.mu.Unlock()
	if r == nil {
		return
	}

	r.cancel()
	<-r.dispatched
}
