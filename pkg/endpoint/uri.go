package endpoint

import (
	"fmt"
	"net/url"
	"strings"
)

// BuildURI joins path (which may carry its own query string) with the given
// parameters and returns a request URI with a percent-encoded, sorted query.
func BuildURI(path string, query map[string]string, extra url.Values) (string, error) {
	u, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("%w: parse path %q: %v", ErrInvalidEndpoint, path, err)
	}

	values := u.Query()
	for key, val := range query {
		values.Set(key, val)
	}
	for key, vals := range extra {
		values[key] = append([]string(nil), vals...)
	}

	uri := u.EscapedPath()
	if uri == "" {
		uri = "/"
	}
	if encoded := values.Encode(); encoded != "" {
		uri += "?" + encoded
	}
	return uri, nil
}

// LinkURI converts an absolute link returned by the device (selfLink, nextLink,
// reference link) into a request URI on the configured host. suffix is inserted
// after the path and before the query string.
func LinkURI(link, suffix string) (string, error) {
	if strings.TrimSpace(link) == "" {
		return "", fmt.Errorf("empty link")
	}
	u, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("parse link %q: %v", link, err)
	}

	path := u.EscapedPath()
	if path == "" {
		return "", fmt.Errorf("link %q has no path", link)
	}
	uri := strings.TrimSuffix(path, "/") + suffix
	if u.RawQuery != "" {
		uri += "?" + u.RawQuery
	}
	return uri, nil
}

// StatsURI returns the /stats sub-resource URI of an object's selfLink.
func StatsURI(selfLink string) (string, error) {
	return LinkURI(selfLink, "/stats")
}
