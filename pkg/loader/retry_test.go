package loader

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRetryExchange(t *testing.T) {
	transient := &StatusError{URI: "/x", StatusCode: 503}
	permanent := &ParseError{URI: "/x", Err: errors.New("bad json")}

	tests := []struct {
		name        string
		failures    int
		failWith    error
		wantCalls   int
		wantErr     bool
		wantExhaust bool
	}{
		{name: "first attempt", failures: 0, wantCalls: 1},
		{name: "succeeds on third", failures: 2, failWith: transient, wantCalls: 3},
		{name: "exhausted", failures: 5, failWith: transient, wantCalls: 3, wantErr: true, wantExhaust: true},
		{name: "permanent error", failures: 5, failWith: permanent, wantCalls: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := retryExchange(context.Background(), DefaultRetryConfig(), zerolog.Nop(), func(attempt int) error {
				calls++
				if attempt != calls {
					t.Errorf("attempt = %d, want %d", attempt, calls)
				}
				if calls <= tt.failures {
					return tt.failWith
				}
				return nil
			})

			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got := errors.Is(err, ErrRetryExhausted); got != tt.wantExhaust {
				t.Errorf("errors.Is(ErrRetryExhausted) = %v, want %v", got, tt.wantExhaust)
			}
			if tt.wantExhaust && !errors.Is(err, transient) {
				t.Errorf("last error not wrapped: %v", err)
			}
		})
	}
}

func TestRetryExchange_DelayHonorsContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	cfg := RetryConfig{MaxAttempts: 3, Delay: time.Hour}
	calls := 0
	start := time.Now()
	err := retryExchange(ctx, cfg, zerolog.Nop(), func(int) error {
		calls++
		return &TransportError{URI: "/x", Err: errors.New("refused")}
	})

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want context.DeadlineExceeded", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("retry wait took %v, want prompt return on cancel", elapsed)
	}
}
