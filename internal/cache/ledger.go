package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/SAP-F-2025/quiz-engine/internal/models"
)

// RedisLedger records sent reminders with SETNX so concurrent scanners agree on who sends.
type RedisLedger struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisLedger(client *redis.Client, ttl time.Duration) *RedisLedger {
	return &RedisLedger{
		client: client,
		prefix: "reminder:",
		ttl:    ttl,
	}
}

func (l *RedisLedger) key(quizID uint, startsAt time.Time, kind models.ReminderKind) string {
	return fmt.Sprintf("%s%d:%d:%s", l.prefix, quizID, startsAt.Unix(), kind)
}

// MarkSent reports true only for the first caller per (quizID, startsAt, kind) within the TTL
func (l *RedisLedger) MarkSent(ctx context.Context, quizID uint, startsAt time.Time, kind models.ReminderKind, recipients int) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key(quizID, startsAt, kind), strconv.Itoa(recipients), l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark reminder sent: %w", err)
	}
	return ok, nil
}
