package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// SubmissionGuard marks in-flight submissions in Redis so that every instance sees them.
// Keys expire after ttl, so a crashed holder cannot block a pair forever.
type SubmissionGuard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSubmissionGuard(client *redis.Client, ttl time.Duration) *SubmissionGuard {
	return &SubmissionGuard{client: client, ttl: ttl}
}

func (g *SubmissionGuard) Acquire(ctx context.Context, userID, quizID int64) (bool, error) {
	return g.client.SetNX(ctx, g.key(userID, quizID), "1", g.ttl).Result()
}

func (g *SubmissionGuard) Release(ctx context.Context, userID, quizID int64) {
	// best effort; the key expires on its own
	_ = g.client.Del(context.WithoutCancel(ctx), g.key(userID, quizID)).Err()
}

func (g *SubmissionGuard) key(userID, quizID int64) string {
	return "quiz:" + strconv.FormatInt(quizID, 10) + ":submit:" + strconv.FormatInt(userID, 10)
}
