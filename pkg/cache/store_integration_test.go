//go:build integration

package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns a client
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	t.Cleanup(func() {
		client.Close()
		redisContainer.Terminate(context.Background())
	})
	return client
}

func TestRedisStore_SetAndGet(t *testing.T) {
	store := NewRedisStore(setupRedis(t))
	ctx := context.Background()
	key := NewKey("10.0.0.1", "pools", nil, nil)

	entry, err := NewEntry(map[string]any{"kind": "pools"}, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got.Data) != string(entry.Data) {
		t.Errorf("Data mismatch: got %s, want %s", got.Data, entry.Data)
	}
}

func TestRedisStore_Miss(t *testing.T) {
	store := NewRedisStore(setupRedis(t))

	_, err := store.Get(context.Background(), NewKey("h", "none", nil, nil))
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}
}

func TestRedisStore_ExpiredNotStored(t *testing.T) {
	store := NewRedisStore(setupRedis(t))
	ctx := context.Background()
	key := NewKey("h", "old", nil, nil)

	entry := &CacheEntry{Data: []byte(`{}`), Expires: time.Now().Add(-time.Hour)}
	if err := store.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, err := store.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss for expired entry, got %v", err)
	}
}

func TestRedisStore_FlushOnlyHost(t *testing.T) {
	store := NewRedisStore(setupRedis(t))
	ctx := context.Background()

	entry, _ := NewEntry("v", time.Minute)
	mine := NewKey("device-a", "pools", nil, nil)
	other := NewKey("device-b", "pools", nil, nil)
	for _, k := range []CacheKey{mine, other} {
		if err := store.Set(ctx, k, entry); err != nil {
			t.Fatal(err)
		}
	}

	if err := store.Flush(ctx, "device-a"); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if _, err := store.Get(ctx, mine); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("device-a entry survived Flush: %v", err)
	}
	if _, err := store.Get(ctx, other); err != nil {
		t.Errorf("device-b entry removed by Flush: %v", err)
	}
}

func TestManager_WithRedisStore(t *testing.T) {
	store := NewRedisStore(setupRedis(t))
	ctx := context.Background()
	key := NewKey("h", "pools", nil, nil)

	calls := 0
	fetch := func(context.Context) (any, error) {
		calls++
		return map[string]any{"items": []any{"p1"}}, nil
	}

	for i := 0; i < 2; i++ {
		m := NewManager(zerolog.Nop(), WithStore(store, time.Minute))
		if _, err := m.Load(ctx, key, fetch); err != nil {
			t.Fatal(err)
		}
	}
	if calls != 1 {
		t.Errorf("fetch calls = %d, want 1 across managers sharing Redis", calls)
	}
}
