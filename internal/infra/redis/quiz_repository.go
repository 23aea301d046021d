package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quizboard-service/internal/domain"
)

// QuizLoader fetches quiz content from a backing store.
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID int64) (domain.QuizContent, error)
}

// QuizRepository caches quiz content in Redis and falls back to a loader on cache miss.
// Content is stored as JSON: SET quiz:{quizID}:content {json} EX ttl
// Invalidate bumps quiz:{quizID}:version; a load only writes back while the
// version it started under is unchanged.
type QuizRepository struct {
	client *redis.Client
	loader QuizLoader
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuizRepository(client *redis.Client, loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID int64) (domain.QuizContent, error) {
	if quiz, ok := r.cached(ctx, quizID); ok {
		return quiz, nil
	}

	result, err, _ := r.sf.Do(strconv.FormatInt(quizID, 10), func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if quiz, ok := r.cached(ctx, quizID); ok {
			return quiz, nil
		}

		version, err := r.version(ctx, quizID)
		if err != nil {
			// without a version the write-back cannot be checked, so skip it
			return r.loader.LoadQuiz(ctx, quizID)
		}

		quiz, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.QuizContent{}, err
		}

		data, err := json.Marshal(quiz)
		if err != nil {
			return domain.QuizContent{}, fmt.Errorf("marshal quiz: %w", err)
		}
		// best effort: a failed or skipped write only costs another load
		_ = r.store(ctx, quizID, version, data)
		return quiz, nil
	})
	if err != nil {
		return domain.QuizContent{}, err
	}
	return result.(domain.QuizContent), nil
}

func (r *QuizRepository) Invalidate(ctx context.Context, quizID int64) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, r.versionKey(quizID))
		pipe.Del(ctx, r.contentKey(quizID))
		return nil
	})
	r.sf.Forget(strconv.FormatInt(quizID, 10))
	return err
}

// store writes content under WATCH so an Invalidate that lands after the load
// started aborts the write.
func (r *QuizRepository) store(ctx context.Context, quizID int64, version int64, data []byte) error {
	versionKey := r.versionKey(quizID)
	return r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, versionKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.contentKey(quizID), data, r.ttlWithJitter())
			return nil
		})
		return err
	}, versionKey)
}

func (r *QuizRepository) version(ctx context.Context, quizID int64) (int64, error) {
	v, err := r.client.Get(ctx, r.versionKey(quizID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func (r *QuizRepository) cached(ctx context.Context, quizID int64) (domain.QuizContent, bool) {
	// redis.Nil and transport errors both fall through to the loader
	data, err := r.client.Get(ctx, r.contentKey(quizID)).Bytes()
	if err != nil {
		return domain.QuizContent{}, false
	}
	var quiz domain.QuizContent
	if err := json.Unmarshal(data, &quiz); err != nil {
		return domain.QuizContent{}, false
	}
	return quiz, true
}

func (r *QuizRepository) contentKey(quizID int64) string {
	return "quiz:" + strconv.FormatInt(quizID, 10) + ":content"
}

func (r *QuizRepository) versionKey(quizID int64) string {
	return "quiz:" + strconv.FormatInt(quizID, 10) + ":version"
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
