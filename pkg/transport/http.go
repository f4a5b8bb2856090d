package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds one exchange.
const DefaultTimeout = 30 * time.Second

// HTTPRequester executes exchanges with net/http. It keeps one client for
// verified TLS and one for self-signed device certificates.
type HTTPRequester struct {
	secure   *http.Client
	insecure *http.Client
}

// NewHTTPRequester creates a requester with the given per-exchange timeout.
func NewHTTPRequester(timeout time.Duration) *HTTPRequester {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPRequester{
		secure: &http.Client{
			Transport: &http.Transport{
				Proxy:             http.ProxyFromEnvironment,
				ForceAttemptHTTP2: false,
			},
			Timeout: timeout,
		},
		insecure: &http.Client{
			Transport: &http.Transport{
				Proxy:             http.ProxyFromEnvironment,
				ForceAttemptHTTP2: false,
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: true, //nolint:gosec // devices commonly ship self-signed certs; opt-in per target
				},
			},
			Timeout: timeout,
		},
	}
}

// NewHTTPRequesterWithClient uses client for every exchange (tests, custom transports).
func NewHTTPRequesterWithClient(client *http.Client) *HTTPRequester {
	return &HTTPRequester{secure: client, insecure: client}
}

// Do implements Requester.
func (r *HTTPRequester) Do(ctx context.Context, target Target, req Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target.BaseURL()+req.URI, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for key, values := range req.Headers {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}
	if req.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	client := r.secure
	if target.Connection.AllowSelfSignedCert {
		client = r.insecure
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       data,
		Headers:    resp.Header.Clone(),
	}, nil
}
