package redis

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ms-attendance/internal/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis connects a client to an in-memory miniredis server.
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

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

func TestLock_ExclusivePerEvent(t *testing.T) {
	client, _ := setupTestRedis(t)
	l := NewLocker(client, time.Minute, logger.NewNop())
	ctx := context.Background()

	locked, err := l.Lock(ctx, "event-1", "upload-a")
	require.NoError(t, err)
	assert.True(t, locked)

	locked, err = l.Lock(ctx, "event-1", "upload-b")
	require.NoError(t, err)
	assert.False(t, locked, "second upload must wait")

	locked, err = l.Lock(ctx, "event-2", "upload-b")
	require.NoError(t, err)
	assert.True(t, locked, "other events are independent")

	require.NoError(t, l.Unlock(ctx, "event-1", "upload-a"))
	locked, err = l.Lock(ctx, "event-1", "upload-b")
	require.NoError(t, err)
	assert.True(t, locked)
}

func TestUnlock_OnlyOwner(t *testing.T) {
	client, _ := setupTestRedis(t)
	l := NewLocker(client, time.Minute, logger.NewNop())
	ctx := context.Background()

	_, err := l.Lock(ctx, "event-1", "upload-a")
	require.NoError(t, err)

	require.NoError(t, l.Unlock(ctx, "event-1", "upload-b"))
	val, err := client.Get(ctx, "attendance_lock:event-1").Result()
	require.NoError(t, err)
	assert.Equal(t, "upload-a", val)

	require.NoError(t, l.Unlock(ctx, "event-1", "upload-a"))
	_, err = client.Get(ctx, "attendance_lock:event-1").Result()
	assert.Equal(t, redis.Nil, err)

	assert.NoError(t, l.Unlock(ctx, "event-1", "upload-a"), "unlocking twice is harmless")
}

func TestLock_Expires(t *testing.T) {
	client, mr := setupTestRedis(t)
	l := NewLocker(client, 30*time.Second, logger.NewNop())
	ctx := context.Background()

	_, err := l.Lock(ctx, "event-1", "crashed-upload")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, mr.TTL("attendance_lock:event-1"))

	mr.FastForward(31 * time.Second)

	held, err := l.IsLocked(ctx, "event-1")
	require.NoError(t, err)
	assert.False(t, held)
	locked, err := l.Lock(ctx, "event-1", "next-upload")
	require.NoError(t, err)
	assert.True(t, locked)
}

func TestNewLocker_DefaultTTL(t *testing.T) {
	client, _ := setupTestRedis(t)
	assert.Equal(t, defaultLockTTL, NewLocker(client, 0, logger.NewNop()).TTL)
}

func TestLock_Concurrent(t *testing.T) {
	client, _ := setupTestRedis(t)
	l := NewLocker(client, time.Minute, logger.NewNop())

	const attempts = 20
	var wg sync.WaitGroup
	var winners int32
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ok, err := l.Lock(context.Background(), "event-race", fmt.Sprintf("upload-%d", n))
			if err == nil && ok {
				atomic.AddInt32(&winners, 1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners, "exactly one concurrent upload holds the event")
}

func TestLock_RedisDown(t *testing.T) {
	client, mr := setupTestRedis(t)
	l := NewLocker(client, time.Minute, logger.NewNop())
	mr.Close()

	_, err := l.Lock(context.Background(), "event-1", "upload-a")
	assert.Error(t, err)
}
