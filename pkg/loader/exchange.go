package loader

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/appliance-stats/pkg/endpoint"
	"github.com/Sternrassler/appliance-stats/pkg/jsonutil"
	"github.com/Sternrassler/appliance-stats/pkg/transport"
)

// maxErrorBody caps how much of a failed response ends up in an error message.
const maxErrorBody = 256

// request performs one exchange (with retries) and decodes the body.
func (l *Loader) request(ctx context.Context, ep endpoint.Endpoint, method, uri string, body []byte) (any, error) {
	raw, err := l.exchange(ctx, ep.Name, method, uri, body)
	if err != nil {
		return nil, err
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]any{}, nil
	}

	var data any
	if ep.ParseDuplicateKeys {
		data, err = jsonutil.UnmarshalDuplicateKeys(raw)
	} else {
		data, err = jsonutil.Unmarshal(raw)
	}
	if err != nil {
		err = &ParseError{URI: uri, Err: err}
		errorsTotal.WithLabelValues(string(ErrorClassParse)).Inc()
		return nil, err
	}
	return data, nil
}

// exchange sends one request through the worker pool, retrying transient failures.
func (l *Loader) exchange(ctx context.Context, name, method, uri string, body []byte) ([]byte, error) {
	logger := l.logger.With().Str("endpoint", name).Str("uri", uri).Logger()

	var result []byte
	err := retryExchange(ctx, l.config.Retry, logger, func(attempt int) error {
		return l.pool.Do(ctx, func() error {
			if err := l.limiter.Wait(ctx); err != nil {
				return err
			}

			req := transport.Request{
				Method:  method,
				URI:     uri,
				Body:    body,
				Headers: http.Header{},
			}
			if token := l.authToken(); token != "" {
				req.Headers.Set(transport.AuthTokenHeader, token)
			}

			start := time.Now()
			resp, err := l.requester.Do(ctx, l.target, req)
			requestDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

			if err != nil {
				requestsTotal.WithLabelValues(name, "network_error").Inc()
				errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.Debug().Err(err).Int("attempt", attempt).Msg("Request failed")
				return &TransportError{URI: uri, Err: err}
			}

			requestsTotal.WithLabelValues(name, strconv.Itoa(resp.StatusCode)).Inc()
			logger.Debug().
				Str("method", method).
				Int("status", resp.StatusCode).
				Int("attempt", attempt).
				Msg("Request complete")

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				statusErr := &StatusError{
					URI:        uri,
					StatusCode: resp.StatusCode,
					Status:     resp.Status,
					Body:       truncate(string(resp.Body), maxErrorBody),
				}
				errorsTotal.WithLabelValues(string(statusErr.Class())).Inc()
				return statusErr
			}

			result = resp.Body
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
