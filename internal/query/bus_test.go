package query

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingInvalidator struct {
	mu       sync.Mutex
	prefixes []string
}

func (r *recordingInvalidator) Invalidate(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefixes = append(r.prefixes, prefix)
	return 1
}

func (r *recordingInvalidator) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.prefixes...)
}

func TestBusDeliversRemoteInvalidations(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	local := NewBus(client, "test.invalidate", nil)
	remote := NewBus(client, "test.invalidate", nil)
	require.NotEqual(t, local.Origin(), remote.Origin())

	target := &recordingInvalidator{}
	require.NoError(t, local.Listen(ctx, target))

	require.NoError(t, local.Publish(ctx, "ignored-own-message"))
	require.NoError(t, remote.Publish(ctx, "products"))

	require.Eventually(t, func() bool { return len(target.seen()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"products"}, target.seen())
}

func TestBusInvalidatesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cache := NewCache[string](Options{StaleTime: time.Hour})
	key := NewKey("products", "page=1")
	cache.Query(ctx, key, func(ctx context.Context) (string, error) { return "v1", nil })

	require.NoError(t, NewBus(client, "", nil).Listen(ctx, cache))
	require.NoError(t, NewBus(client, "", nil).Publish(ctx, "products"))

	require.Eventually(t, func() bool {
		peek, _ := cache.Peek(key)
		return peek.Stale
	}, 2*time.Second, 10*time.Millisecond)
}
