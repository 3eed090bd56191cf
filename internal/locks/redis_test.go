package locks

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"ms-checkin/internal/logger"
)

// setupTestRedis starts an in-memory redis for the duration of the test.
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	if err := client.Ping(context.Background()).Err(); err != nil {
		mr.Close()
		t.Fatalf("Failed to connect to miniredis: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

// held reports whether anyone currently owns key.
func held(t *testing.T, r *Redis, key string) bool {
	t.Helper()
	n, err := r.Client.Exists(context.Background(), redisKeyPrefix+key).Result()
	require.NoError(t, err)
	return n == 1
}

func TestRedisLockUnlock(t *testing.T) {
	client, _ := setupTestRedis(t)
	r := NewRedis(client, time.Second, 5*time.Millisecond, logger.Discard())
	ctx := context.Background()

	unlock, err := r.Lock(ctx, TableKey(7))
	require.NoError(t, err)

	assert.True(t, held(t, r, TableKey(7)))

	unlock()
	unlock()

	assert.False(t, held(t, r, TableKey(7)))
}

func TestRedisLockWaitsForRelease(t *testing.T) {
	client, _ := setupTestRedis(t)
	r := NewRedis(client, 5*time.Second, 5*time.Millisecond, logger.Discard())

	var counter, seen int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := r.Lock(context.Background(), TableKey(1))
			if !assert.NoError(t, err) {
				return
			}
			v := atomic.LoadInt32(&counter)
			time.Sleep(2 * time.Millisecond)
			atomic.StoreInt32(&counter, v+1)
			atomic.AddInt32(&seen, 1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), atomic.LoadInt32(&counter))
	assert.Equal(t, int32(10), seen)
}

func TestRedisLockContextTimeout(t *testing.T) {
	client, _ := setupTestRedis(t)
	r := NewRedis(client, 5*time.Second, 5*time.Millisecond, logger.Discard())

	unlock, err := r.Lock(context.Background(), TableKey(2))
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = r.Lock(ctx, TableKey(2))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRedisUnlockKeepsForeignOwner(t *testing.T) {
	client, mr := setupTestRedis(t)
	r := NewRedis(client, time.Second, 5*time.Millisecond, logger.Discard())
	ctx := context.Background()

	staleUnlock, err := r.Lock(ctx, TableKey(3))
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	freshUnlock, err := r.Lock(ctx, TableKey(3))
	require.NoError(t, err)
	defer freshUnlock()

	staleUnlock()
	assert.True(t, held(t, r, TableKey(3)), "expired holder must not release the new owner's lock")
}

// TestRedisIntegration runs the lock against a real redis container.
func TestRedisIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping Redis integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	defer redisContainer.Terminate(ctx)

	host, err := redisContainer.Host(ctx)
	require.NoError(t, err)
	port, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	defer client.Close()

	r := NewRedis(client, 2*time.Second, 10*time.Millisecond, logger.Discard())
	unlock, err := r.Lock(ctx, TableKey(9))
	require.NoError(t, err)

	lockCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = r.Lock(lockCtx, TableKey(9))
	assert.Error(t, err)

	unlock()
	unlock2, err := r.Lock(ctx, TableKey(9))
	require.NoError(t, err)
	unlock2()
}
