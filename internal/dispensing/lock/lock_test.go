package lock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestStockEntryKey(t *testing.T) {
	assert.Equal(t, "dispensary:lock:stock_entry:42", StockEntryKey(42))
}

func TestNoop(t *testing.T) {
	release, err := Noop{}.Acquire(context.Background(), "k")
	require.NoError(t, err)
	release(context.Background())
}

func startRedis(t *testing.T) redis.UniversalClient {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis lock test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRedis_MutualExclusion(t *testing.T) {
	locker := NewRedis(startRedis(t), 5*time.Second, 5*time.Second)
	ctx := context.Background()

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(ctx, StockEntryKey(1))
			if !assert.NoError(t, err) {
				return
			}
			n := inside.Add(1)
			for {
				m := maxInside.Load()
				if n <= m || maxInside.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			inside.Add(-1)
			release(ctx)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside.Load())
}

func TestRedis_BusyAfterWait(t *testing.T) {
	rdb := startRedis(t)
	holder := NewRedis(rdb, 5*time.Second, 0)
	waiter := NewRedis(rdb, 5*time.Second, 100*time.Millisecond)
	ctx := context.Background()

	release, err := holder.Acquire(ctx, StockEntryKey(2))
	require.NoError(t, err)
	defer release(ctx)

	_, err = waiter.Acquire(ctx, StockEntryKey(2))
	assert.ErrorIs(t, err, ErrBusy)

	// different stock entries never contend
	other, err := waiter.Acquire(ctx, StockEntryKey(3))
	require.NoError(t, err)
	other(ctx)
}
