package loader

import (
	"errors"
	"fmt"
)

// Common errors returned by the loader.
var (
	// ErrInvalidConfig is returned by New for bad construction arguments.
	ErrInvalidConfig = errors.New("invalid loader configuration")

	// ErrUnknownEndpoint is returned for names missing from the registry.
	ErrUnknownEndpoint = errors.New("endpoint not registered")

	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrInvalidRequest marks request options that cannot be applied, such as a
	// bad replaceStrings pattern.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrProtocol marks responses that do not have the expected shape.
	ErrProtocol = errors.New("protocol error")
)

// ErrorClass represents a classification of fetch errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx responses.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx and other non-2xx responses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents transport failures.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassProtocol represents malformed paging or link data.
	ErrorClassProtocol ErrorClass = "protocol"

	// ErrorClassParse represents undecodable response bodies.
	ErrorClassParse ErrorClass = "parse"
)

// EndpointError is what every failed LoadEndpoint returns.
type EndpointError struct {
	Name string
	Err  error
}

// Error implements the error interface.
func (e *EndpointError) Error() string {
	return fmt.Sprintf("Unable to get response from endpoint %q: %v", e.Name, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *EndpointError) Unwrap() error {
	return e.Err
}

// StatusError is a non-2xx response.
type StatusError struct {
	URI        string
	StatusCode int
	Status     string
	Body       string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	msg := fmt.Sprintf("bad status code %d for %q", e.StatusCode, e.URI)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Class returns the error class for metrics.
func (e *StatusError) Class() ErrorClass {
	if e.StatusCode >= 400 && e.StatusCode < 500 {
		return ErrorClassClient
	}
	return ErrorClassServer
}

// TransportError is a failure to complete the exchange at all.
type TransportError struct {
	URI string
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure for %q: %v", e.URI, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// ParseError is an undecodable response body.
type ParseError struct {
	URI string
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("unable to parse response from %q: %v", e.URI, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// SubFetchKind names what a follow-up fetch was for.
type SubFetchKind string

const (
	SubFetchStats     SubFetchKind = "stats"
	SubFetchReference SubFetchKind = "reference"
)

// SubFetchError is a failed stats or reference follow-up fetch. It fails the
// whole endpoint.
type SubFetchError struct {
	Kind  SubFetchKind
	Field string
	URI   string
	Err   error
}

// Error implements the error interface.
func (e *SubFetchError) Error() string {
	if e.Kind == SubFetchReference {
		return fmt.Sprintf("unable to expand reference %q (%s): %v", e.Field, e.URI, e.Err)
	}
	return fmt.Sprintf("unable to fetch stats (%s): %v", e.URI, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *SubFetchError) Unwrap() error {
	return e.Err
}

// shouldRetry reports whether an exchange error is transient.
func shouldRetry(err error) bool {
	var statusErr *StatusError
	var transportErr *TransportError
	return errors.As(err, &statusErr) || errors.As(err, &transportErr)
}

// classify returns the metrics class of err.
func classify(err error) ErrorClass {
	var statusErr *StatusError
	var transportErr *TransportError
	var parseErr *ParseError
	switch {
	case errors.As(err, &statusErr):
		return statusErr.Class()
	case errors.As(err, &transportErr):
		return ErrorClassNetwork
	case errors.As(err, &parseErr):
		return ErrorClassParse
	default:
		return ErrorClassProtocol
	}
}

func errNotObject(v any) error {
	return fmt.Errorf("%w: response is %T, want object", ErrProtocol, v)
}
