package loader

import (
	"errors"
	"fmt"
	"testing"
)

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "server status", err: &StatusError{StatusCode: 503}, expected: true},
		{name: "client status", err: &StatusError{StatusCode: 404}, expected: true},
		{name: "transport failure", err: &TransportError{Err: errors.New("connection reset")}, expected: true},
		{name: "wrapped status", err: fmt.Errorf("page 2: %w", &StatusError{StatusCode: 500}), expected: true},
		{name: "parse error", err: &ParseError{Err: errors.New("bad json")}, expected: false},
		{name: "protocol error", err: errNotObject([]any{}), expected: false},
		{name: "invalid request", err: ErrInvalidRequest, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldRetry(tt.err); got != tt.expected {
				t.Errorf("shouldRetry(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorClass
	}{
		{name: "4xx", err: &StatusError{StatusCode: 401}, expected: ErrorClassClient},
		{name: "5xx", err: &StatusError{StatusCode: 502}, expected: ErrorClassServer},
		{name: "3xx", err: &StatusError{StatusCode: 304}, expected: ErrorClassServer},
		{name: "transport", err: &TransportError{Err: errors.New("timeout")}, expected: ErrorClassNetwork},
		{name: "parse", err: &ParseError{Err: errors.New("eof")}, expected: ErrorClassParse},
		{name: "other", err: ErrProtocol, expected: ErrorClassProtocol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.err); got != tt.expected {
				t.Errorf("classify() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestEndpointError_Error(t *testing.T) {
	err := &EndpointError{
		Name: "virtualServers",
		Err:  &StatusError{URI: "/mgmt/tm/ltm/virtual", StatusCode: 500, Body: "boom"},
	}

	want := `Unable to get response from endpoint "virtualServers": bad status code 500 for "/mgmt/tm/ltm/virtual": boom`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatal("errors.As(*StatusError) = false, want true")
	}
	if statusErr.StatusCode != 500 {
		t.Errorf("StatusCode = %d, want 500", statusErr.StatusCode)
	}
}

func TestSubFetchError_Error(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name     string
		err      *SubFetchError
		expected string
	}{
		{
			name:     "stats",
			err:      &SubFetchError{Kind: SubFetchStats, URI: "/a/stats", Err: cause},
			expected: "unable to fetch stats (/a/stats): boom",
		},
		{
			name:     "reference",
			err:      &SubFetchError{Kind: SubFetchReference, Field: "membersReference", URI: "/a/members", Err: cause},
			expected: `unable to expand reference "membersReference" (/a/members): boom`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
			if !errors.Is(tt.err, cause) {
				t.Error("errors.Is(cause) = false, want true")
			}
		})
	}
}
