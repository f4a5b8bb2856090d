package cache

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/Sternrassler/appliance-stats/pkg/jsonutil"
)

// KeyPrefix starts every serialized cache key.
const KeyPrefix = "stats"

// CacheKey identifies a cacheable request shape on one device.
type CacheKey struct {
	// Host is the target device.
	Host string

	// Name is the logical endpoint name.
	Name string

	// Query holds the endpoint's extra query parameters.
	Query map[string]string

	// Body is the request payload, if any.
	Body any
}

// NewKey builds a key for the given device and endpoint request shape.
func NewKey(host, name string, query map[string]string, body any) CacheKey {
	return CacheKey{Host: host, Name: name, Query: query, Body: body}
}

// String generates a deterministic cache key string.
// Format: stats:host:name:query=<sorted, encoded>:body=<json>
//
// Example:
//
//	stats:10.0.0.1:virtualServers:query=%24select=name:body=null
func (k CacheKey) String() string {
	parts := []string{KeyPrefix, k.Host, k.Name}

	// url.Values.Encode sorts by key
	values := url.Values{}
	for key, val := range k.Query {
		values.Set(key, val)
	}
	parts = append(parts, "query="+values.Encode())

	body := "null"
	switch b := k.Body.(type) {
	case nil:
	case string:
		body = fmt.Sprintf("%q", b)
	default:
		if encoded, err := jsonutil.Marshal(b); err == nil {
			body = string(encoded)
		} else {
			body = fmt.Sprintf("%v", b)
		}
	}
	parts = append(parts, "body="+body)

	return strings.Join(parts, ":")
}

// HostPattern returns a glob matching every key of the given host.
func HostPattern(host string) string {
	return KeyPrefix + ":" + escapeGlob(host) + ":*"
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\', '^':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
