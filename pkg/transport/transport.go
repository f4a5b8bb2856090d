// Package transport defines what the loader needs from the outside world: one
// HTTP exchange with the device, and a way to obtain an auth token.
//
// HTTPRequester and TokenAuthenticator are the default implementations.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// AuthTokenHeader carries the device auth token.
const AuthTokenHeader = "X-F5-Auth-Token"

// Supported protocols.
const (
	ProtocolHTTP  = "http"
	ProtocolHTTPS = "https"
)

// ErrInvalidTarget is returned for malformed credentials or connection settings.
var ErrInvalidTarget = errors.New("invalid target")

// Credentials identify the caller to the device. Either Token, or Username with
// an optional Passphrase, must be set.
type Credentials struct {
	Username   string `yaml:"username"`
	Passphrase string `yaml:"passphrase"`
	Token      string `yaml:"token"`
}

// Validate checks the credential shape.
func (c Credentials) Validate() error {
	switch {
	case c.Token != "" && (c.Username != "" || c.Passphrase != ""):
		return fmt.Errorf("%w: credentials must have either a token or a username, not both", ErrInvalidTarget)
	case c.Token != "":
		return nil
	case c.Username != "":
		return nil
	case c.Passphrase != "":
		return fmt.Errorf("%w: credentials passphrase requires a username", ErrInvalidTarget)
	default:
		return fmt.Errorf("%w: credentials must have a token or a username", ErrInvalidTarget)
	}
}

// Connection holds how the device is reached.
type Connection struct {
	Protocol            string `yaml:"protocol"`
	Port                int    `yaml:"port"`
	AllowSelfSignedCert bool   `yaml:"allowSelfSignedCert"`
}

// DefaultConnection returns HTTPS on port 443 with certificate verification.
func DefaultConnection() Connection {
	return Connection{Protocol: ProtocolHTTPS, Port: 443}
}

// Validate checks protocol and port.
func (c Connection) Validate() error {
	switch strings.ToLower(c.Protocol) {
	case ProtocolHTTP, ProtocolHTTPS:
	default:
		return fmt.Errorf("%w: connection protocol must be http or https (got %q)", ErrInvalidTarget, c.Protocol)
	}
	if c.Port <= 0 || c.Port >= 65536 {
		return fmt.Errorf("%w: connection port must be in (0, 65536) (got %d)", ErrInvalidTarget, c.Port)
	}
	return nil
}

// Target is a device plus how to reach and authenticate against it.
type Target struct {
	Host        string
	Connection  Connection
	Credentials Credentials
}

// BaseURL returns scheme://host:port.
func (t Target) BaseURL() string {
	return fmt.Sprintf("%s://%s:%d", strings.ToLower(t.Connection.Protocol), t.Host, t.Connection.Port)
}

// Request is one exchange with the device.
type Request struct {
	Method string
	// URI is the path plus encoded query string.
	URI     string
	Body    []byte
	Headers http.Header
}

// Response is the device's answer. Any status code is a valid Response.
type Response struct {
	StatusCode int
	Status     string
	Body       []byte
	Headers    http.Header
}

// Requester executes exchanges against a target.
type Requester interface {
	Do(ctx context.Context, target Target, req Request) (*Response, error)
}

// Authenticator obtains a token usable in AuthTokenHeader.
type Authenticator interface {
	Token(ctx context.Context, target Target) (string, error)
}
