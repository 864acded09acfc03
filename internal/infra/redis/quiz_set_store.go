package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"caretoplay/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Backing is the authoritative quiz set store behind the Redis cache.
type Backing interface {
	Get(ctx context.Context, quizSetKey string) (domain.QuizSet, error)
	Save(ctx context.Context, quizSet domain.QuizSet) error
}

// CachedQuizSetStore caches finished quiz sets in Redis and falls back to the
// backing store on a miss. Finished quiz sets are stored as:
// SET quizset:{quizSetKey} {json} EX {ttl}
type CachedQuizSetStore struct {
	client  *redis.Client
	backing Backing
	ttl     time.Duration
	sf      singleflight.Group
	rnd     *rand.Rand
	rndMu   sync.Mutex
}

func NewCachedQuizSetStore(client *redis.Client, backing Backing, ttl time.Duration) *CachedQuizSetStore {
	return &CachedQuizSetStore{
		client:  client,
		backing: backing,
		ttl:     ttl,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *CachedQuizSetStore) Get(ctx context.Context, quizSetKey string) (domain.QuizSet, error) {
	if quizSet, ok := r.cached(ctx, quizSetKey); ok {
		return quizSet, nil
	}

	result, err, _ := r.sf.Do(quizSetKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if quizSet, ok := r.cached(ctx, quizSetKey); ok {
			return quizSet, nil
		}

		quizSet, err := r.backing.Get(ctx, quizSetKey)
		if err != nil {
			return domain.QuizSet{}, err
		}
		if quizSet.IsFinished() && r.ttl > 0 {
			if raw, err := json.Marshal(quizSet); err == nil {
				_ = r.client.Set(ctx, r.key(quizSetKey), raw, r.ttlWithJitter()).Err()
			}
		}
		return quizSet, nil
	})
	if err != nil {
		return domain.QuizSet{}, err
	}
	return result.(domain.QuizSet).Clone(), nil
}

// Save writes through to the backing store and drops the cached copy.
func (r *CachedQuizSetStore) Save(ctx context.Context, quizSet domain.QuizSet) error {
	if err := r.backing.Save(ctx, quizSet); err != nil {
		return err
	}
	_ = r.client.Del(ctx, r.key(quizSet.QuizSetKey)).Err()
	return nil
}

func (r *CachedQuizSetStore) cached(ctx context.Context, quizSetKey string) (domain.QuizSet, bool) {
	raw, err := r.client.Get(ctx, r.key(quizSetKey)).Bytes()
	if err != nil {
		return domain.QuizSet{}, false
	}
	var quizSet domain.QuizSet
	if err := json.Unmarshal(raw, &quizSet); err != nil {
		return domain.QuizSet{}, false
	}
	return quizSet, true
}

func (r *CachedQuizSetStore) key(quizSetKey string) string {
	return "quizset:" + quizSetKey
}

func (r *CachedQuizSetStore) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
