package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/quiz-engine/internal/cache"
	"github.com/SAP-F-2025/quiz-engine/internal/models"
)

func TestKeyedLocks_ExclusivePerKey(t *testing.T) {
	locks := newKeyedLocks()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("start:1:alice")
			defer unlock()
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Empty(t, locks.entries)
}

func TestKeyedLocks_SharedReaders(t *testing.T) {
	locks := newKeyedLocks()

	unlockA := locks.RLock("attempt:1")
	acquired := make(chan struct{})
	go func() {
		unlockB := locks.RLock("attempt:1")
		close(acquired)
		unlockB()
	}()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second reader blocked")
	}

	writer := make(chan struct{})
	go func() {
		unlock := locks.Lock("attempt:1")
		close(writer)
		unlock()
	}()

	select {
	case <-writer:
		t.Fatal("writer acquired while a reader holds the key")
	case <-time.After(20 * time.Millisecond):
	}
	unlockA()
	<-writer
}

func TestKeyedLocks_IndependentKeys(t *testing.T) {
	locks := newKeyedLocks()
	unlock := locks.Lock(attemptLockKey(1))
	defer unlock()

	done := make(chan struct{})
	go func() {
		locks.Lock(attemptLockKey(2))()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("different keys must not contend")
	}
}

func TestStartAttempt_WithRedisLocker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	env := newTestEnv(t)
	env.attempts = NewAttemptService(env.repo, env.clock, env.notifier, cache.NewRedisLocker(client, "quiz-engine:lock:", 5*time.Second),
		discardLogger(), AttemptConfig{CollaboratorTimeout: 5 * time.Second, GradeScheme: models.GradingPassFail})
	quiz, _ := env.scoringQuiz(t, func(q *models.Quiz) { q.MaxAttempts = 3 })

	var wg sync.WaitGroup
	var started int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.attempts.StartAttempt(context.Background(), student("alice"), quiz.ID); err == nil {
				atomic.AddInt32(&started, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), started)
	count, err := env.repo.Attempt().CountAttempts(context.Background(), quiz.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Empty(t, mr.Keys())
}
