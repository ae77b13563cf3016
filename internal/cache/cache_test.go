package cache

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/quiz-engine/internal/models"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

type cachedQuiz struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

func TestCacheHelper_NilClientDegrades(t *testing.T) {
	ctx := context.Background()
	helper := NewCacheHelper(nil, "quiz:")

	assert.NoError(t, helper.Set(ctx, "id:1", cachedQuiz{ID: 1}, time.Minute))
	assert.NoError(t, helper.Delete(ctx, "id:1"))

	var dest cachedQuiz
	assert.ErrorIs(t, helper.Get(ctx, "id:1", &dest), ErrCacheNotAvailable)
}

func TestCacheHelper_CacheOrExecute(t *testing.T) {
	ctx := context.Background()
	_, client := newTestClient(t)
	helper := NewCacheHelper(client, "quiz:")

	calls := 0
	fetch := func() (interface{}, error) {
		calls++
		return cachedQuiz{ID: 7, Title: "Geography"}, nil
	}

	var first cachedQuiz
	require.NoError(t, helper.CacheOrExecute(ctx, "id:7", &first, time.Minute, fetch))
	assert.Equal(t, "Geography", first.Title)

	var second cachedQuiz
	require.NoError(t, helper.CacheOrExecute(ctx, "id:7", &second, time.Minute, fetch))
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	require.NoError(t, helper.Delete(ctx, "id:7"))
	var missing cachedQuiz
	assert.ErrorIs(t, helper.Get(ctx, "id:7", &missing), ErrCacheNotFound)
}

func TestRedisLocker_MutualExclusion(t *testing.T) {
	_, client := newTestClient(t)
	locker := NewRedisLocker(client, "lock:", 5*time.Second)

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			unlock, err := locker.Lock(ctx, "start:1:s1")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
}

func TestRedisLocker_ContextCancelled(t *testing.T) {
	_, client := newTestClient(t)
	locker := NewRedisLocker(client, "lock:", 5*time.Second)

	unlock, err := locker.Lock(context.Background(), "k")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "k")
	assert.ErrorIs(t, err, ErrLockNotAcquired)
}

func TestRedisLocker_ReleaseFailuresAreLogged(t *testing.T) {
	mr, client := newTestClient(t)
	locker := NewRedisLocker(client, "lock:", time.Second)
	var buf bytes.Buffer
	locker.logger = slog.New(slog.NewJSONHandler(&buf, nil))

	unlock, err := locker.Lock(context.Background(), "expired")
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)
	unlock()
	assert.Contains(t, buf.String(), "Lock expired before release")
	assert.Contains(t, buf.String(), "lock:expired")

	buf.Reset()
	unlock, err = locker.Lock(context.Background(), "down")
	require.NoError(t, err)
	mr.Close()
	unlock()
	assert.Contains(t, buf.String(), "Failed to release lock")
	assert.Contains(t, buf.String(), "lock:down")
}

func TestRedisLedger_MarkSentOnce(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)
	ledger := NewRedisLedger(client, time.Hour)

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	first, err := ledger.MarkSent(ctx, 3, start, models.ReminderUpcoming, 12)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := ledger.MarkSent(ctx, 3, start, models.ReminderUpcoming, 12)
	require.NoError(t, err)
	assert.False(t, again)

	other, err := ledger.MarkSent(ctx, 3, start, models.ReminderStartingSoon, 12)
	require.NoError(t, err)
	assert.True(t, other)

	moved, err := ledger.MarkSent(ctx, 3, start.Add(time.Hour), models.ReminderUpcoming, 12)
	require.NoError(t, err)
	assert.True(t, moved)

	mr.FastForward(2 * time.Hour)
	expired, err := ledger.MarkSent(ctx, 3, start, models.ReminderUpcoming, 12)
	require.NoError(t, err)
	assert.True(t, expired)
}
