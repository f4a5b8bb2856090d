// Package endpoint describes the named resources the loader can fetch from an appliance
// and keeps them in a per-loader registry.
package endpoint

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// ErrInvalidEndpoint is returned when an endpoint descriptor fails validation.
var ErrInvalidEndpoint = errors.New("invalid endpoint")

// ReferenceOptions controls how a referencing field is expanded.
type ReferenceOptions struct {
	// IncludeStats enriches the fetched target with its /stats sub-resource.
	IncludeStats bool `yaml:"includeStats" json:"includeStats,omitempty"`

	// EndpointSuffix is appended to the link path, before the query string.
	EndpointSuffix string `yaml:"endpointSuffix" json:"endpointSuffix,omitempty"`
}

// Endpoint is the static description of a fetchable resource.
type Endpoint struct {
	// Name is the registry key. Defaults to Path.
	Name string `yaml:"name" json:"name"`

	// Path is the URI path on the device, optionally with a query string.
	Path string `yaml:"path" json:"path"`

	// Method is the HTTP verb. Defaults to GET.
	Method string `yaml:"method" json:"method,omitempty"`

	// Body is sent as the request payload. A string is sent verbatim,
	// anything else is JSON encoded. A body disables caching.
	Body any `yaml:"body" json:"body,omitempty"`

	// Query holds extra query parameters.
	Query map[string]string `yaml:"query" json:"query,omitempty"`

	// Pagination requests chunked pages and follows nextLink.
	Pagination bool `yaml:"pagination" json:"pagination,omitempty"`

	// IncludeStats merges <selfLink>/stats into every item with a selfLink.
	IncludeStats bool `yaml:"includeStats" json:"includeStats,omitempty"`

	// ExpandReferences maps item field names to expansion options.
	ExpandReferences map[string]ReferenceOptions `yaml:"expandReferences" json:"expandReferences,omitempty"`

	// IgnoreCached forces a fresh fetch on every call.
	IgnoreCached bool `yaml:"ignoreCached" json:"ignoreCached,omitempty"`

	// ParseDuplicateKeys coalesces duplicate JSON object keys into arrays.
	ParseDuplicateKeys bool `yaml:"parseDuplicateKeys" json:"parseDuplicateKeys,omitempty"`
}

// Normalize returns a copy with defaults applied.
func (e Endpoint) Normalize() Endpoint {
	if e.Name == "" {
		e.Name = e.Path
	}
	if e.Method == "" {
		e.Method = http.MethodGet
	}
	e.Method = strings.ToUpper(e.Method)
	return e
}

// Validate checks a normalized descriptor.
func (e Endpoint) Validate() error {
	if strings.TrimSpace(e.Path) == "" {
		return fmt.Errorf("%w: path is required (name %q)", ErrInvalidEndpoint, e.Name)
	}
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidEndpoint)
	}
	switch e.Body.(type) {
	case nil, string, map[string]any, []any:
	default:
		return fmt.Errorf("%w: body of %q must be a string or an object (got %T)", ErrInvalidEndpoint, e.Name, e.Body)
	}
	for field := range e.ExpandReferences {
		if field == "" {
			return fmt.Errorf("%w: empty expandReferences field name in %q", ErrInvalidEndpoint, e.Name)
		}
	}
	return nil
}

// Cacheable reports whether responses for this descriptor may be cached and
// shared between concurrent callers. It depends only on the request shape.
func (e Endpoint) Cacheable() bool {
	return e.Body == nil && !e.Pagination && !e.IgnoreCached
}

// ReferenceFields returns the expandable field names in sorted order.
func (e Endpoint) ReferenceFields() []string {
	fields := make([]string, 0, len(e.ExpandReferences))
	for field := range e.ExpandReferences {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}
