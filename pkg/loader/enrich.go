package loader

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Sternrassler/appliance-stats/pkg/endpoint"
	"golang.org/x/sync/errgroup"
)

// Response fields involved in enrichment.
const (
	fieldItems    = "items"
	fieldSelfLink = "selfLink"
	fieldLink     = "link"
	fieldKind     = "kind"
	fieldEntries  = "entries"
)

// enrichKind tags what a response element needs before it is complete.
type enrichKind int

const (
	// itemWithStats gets <selfLink>/stats merged in.
	itemWithStats enrichKind = iota + 1
	// reference is replaced by the object its link points at.
	reference
	// referenceWithStats is a reference whose target is stats-enriched first.
	referenceWithStats
)

func (k enrichKind) String() string {
	switch k {
	case itemWithStats:
		return "item+stats"
	case reference:
		return "reference"
	case referenceWithStats:
		return "reference+stats"
	default:
		return "unknown"
	}
}

// enrichTask is one follow-up fetch for an element of the items array.
type enrichTask struct {
	kind   enrichKind
	item   map[string]any
	field  string
	link   string
	suffix string
}

// enrichResult is applied to the item once every task of the response is done.
type enrichResult struct {
	task  enrichTask
	value map[string]any
}

// plan classifies every element of items into enrichment tasks.
func plan(ep endpoint.Endpoint, data any) []enrichTask {
	if !ep.IncludeStats && len(ep.ExpandReferences) == 0 {
		return nil
	}

	var tasks []enrichTask
	for _, item := range itemsOf(data) {
		if ep.IncludeStats {
			if link, ok := item[fieldSelfLink].(string); ok {
				tasks = append(tasks, enrichTask{kind: itemWithStats, item: item, link: link})
			}
		}

		for _, field := range ep.ReferenceFields() {
			ref, ok := item[field].(map[string]any)
			if !ok {
				continue
			}
			link, ok := ref[fieldLink].(string)
			if !ok {
				continue
			}
			opts := ep.ExpandReferences[field]
			kind := reference
			if opts.IncludeStats {
				kind = referenceWithStats
			}
			tasks = append(tasks, enrichTask{
				kind:   kind,
				item:   item,
				field:  field,
				link:   link,
				suffix: opts.EndpointSuffix,
			})
		}
	}
	return tasks
}

// itemsOf returns the object elements of data's items array.
func itemsOf(data any) []map[string]any {
	obj, ok := data.(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := obj[fieldItems].([]any)
	if !ok {
		return nil
	}
	items := make([]map[string]any, 0, len(raw))
	for _, v := range raw {
		if item, ok := v.(map[string]any); ok {
			items = append(items, item)
		}
	}
	return items
}

// enrich runs the stats and reference fetches for data and merges the results.
// Any failed fetch fails the whole response.
func (l *Loader) enrich(ctx context.Context, ep endpoint.Endpoint, data any) (any, error) {
	tasks := plan(ep, data)
	if len(tasks) == 0 {
		return data, nil
	}

	results, err := l.runTasks(ctx, ep, tasks)
	if err != nil {
		return nil, err
	}

	for _, r := range results {
		switch r.task.kind {
		case itemWithStats:
			mergeStats(r.task.item, r.value)
		case reference, referenceWithStats:
			r.task.item[r.task.field] = r.value
		}
	}
	return data, nil
}

func (l *Loader) runTasks(ctx context.Context, ep endpoint.Endpoint, tasks []enrichTask) ([]enrichResult, error) {
	results := make([]enrichResult, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.pool.Size())
	for i, task := range tasks {
		g.Go(func() error {
			value, err := l.runTask(gctx, ep, task)
			if err != nil {
				return err
			}
			results[i] = enrichResult{task: task, value: value}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (l *Loader) runTask(ctx context.Context, ep endpoint.Endpoint, task enrichTask) (map[string]any, error) {
	switch task.kind {
	case itemWithStats:
		return l.fetchStats(ctx, ep, task.link)

	case reference, referenceWithStats:
		uri, err := endpoint.LinkURI(task.link, task.suffix)
		if err != nil {
			return nil, &SubFetchError{Kind: SubFetchReference, Field: task.field, URI: task.link, Err: err}
		}
		data, err := l.request(ctx, ep, http.MethodGet, uri, nil)
		if err != nil {
			return nil, &SubFetchError{Kind: SubFetchReference, Field: task.field, URI: uri, Err: err}
		}
		target, ok := data.(map[string]any)
		if !ok {
			return nil, &SubFetchError{Kind: SubFetchReference, Field: task.field, URI: uri, Err: errNotObject(data)}
		}
		if task.kind == referenceWithStats {
			if err := l.statsForTarget(ctx, ep, target); err != nil {
				return nil, err
			}
		}
		return target, nil

	default:
		return nil, fmt.Errorf("unknown enrichment kind %v", task.kind)
	}
}

// statsForTarget stats-enriches a fetched reference target: its items when it
// is a collection, the object itself otherwise.
func (l *Loader) statsForTarget(ctx context.Context, ep endpoint.Endpoint, target map[string]any) error {
	objects := itemsOf(target)
	if _, isCollection := target[fieldItems]; !isCollection {
		objects = []map[string]any{target}
	}

	var tasks []enrichTask
	for _, obj := range objects {
		if link, ok := obj[fieldSelfLink].(string); ok {
			tasks = append(tasks, enrichTask{kind: itemWithStats, item: obj, link: link})
		}
	}
	if len(tasks) == 0 {
		return nil
	}

	results, err := l.runTasks(ctx, ep, tasks)
	if err != nil {
		return err
	}
	for _, r := range results {
		mergeStats(r.task.item, r.value)
	}
	return nil
}

func (l *Loader) fetchStats(ctx context.Context, ep endpoint.Endpoint, selfLink string) (map[string]any, error) {
	uri, err := endpoint.StatsURI(selfLink)
	if err != nil {
		return nil, &SubFetchError{Kind: SubFetchStats, URI: selfLink, Err: err}
	}
	data, err := l.request(ctx, ep, http.MethodGet, uri, nil)
	if err != nil {
		return nil, &SubFetchError{Kind: SubFetchStats, URI: uri, Err: err}
	}
	stats, ok := data.(map[string]any)
	if !ok {
		return nil, &SubFetchError{Kind: SubFetchStats, URI: uri, Err: errNotObject(data)}
	}
	return stats, nil
}

// mergeStats copies kind and entries of a stats response onto item.
func mergeStats(item, stats map[string]any) {
	for _, key := range []string{fieldKind, fieldEntries} {
		if v, ok := stats[key]; ok {
			item[key] = v
		}
	}
}
