package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"caretoplay/internal/domain"
	"golang.org/x/sync/singleflight"
)

// QuizSetStore keeps quiz sets in a map (useful for tests/demos and single-node runs).
type QuizSetStore struct {
	mu       sync.RWMutex
	quizSets map[string]domain.QuizSet
}

func NewQuizSetStore() *QuizSetStore {
	return &QuizSetStore{quizSets: make(map[string]domain.QuizSet)}
}

func (s *QuizSetStore) Get(_ context.Context, quizSetKey string) (domain.QuizSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if quizSet, ok := s.quizSets[quizSetKey]; ok {
		return quizSet.Clone(), nil
	}
	return domain.QuizSet{}, domain.ErrQuizSetNotFound
}

func (s *QuizSetStore) Save(_ context.Context, quizSet domain.QuizSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quizSets[quizSet.QuizSetKey] = quizSet.Clone()
	return nil
}

// Backing is the authoritative store behind a cache.
type Backing interface {
	Get(ctx context.Context, quizSetKey string) (domain.QuizSet, error)
	Save(ctx context.Context, quizSet domain.QuizSet) error
}

// CachedQuizSetStore caches finished quiz sets with a TTL to avoid repeated reads
// of the backing store. Quiz sets still being authored are always read through.
type CachedQuizSetStore struct {
	backing Backing
	ttl     time.Duration
	clock   func() time.Time
	sf      singleflight.Group
	rnd     *rand.Rand
	rndMu   sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedQuizSet
}

type cachedQuizSet struct {
	quizSet   domain.QuizSet
	expiresAt time.Time
}

func NewCachedQuizSetStore(backing Backing, ttl time.Duration) *CachedQuizSetStore {
	return &CachedQuizSetStore{
		backing: backing,
		ttl:     ttl,
		clock:   time.Now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:   make(map[string]cachedQuizSet),
	}
}

func (r *CachedQuizSetStore) Get(ctx context.Context, quizSetKey string) (domain.QuizSet, error) {
	if quizSet, ok := r.lookup(quizSetKey); ok {
		return quizSet, nil
	}

	result, err, _ := r.sf.Do(quizSetKey, func() (interface{}, error) {
		if quizSet, ok := r.lookup(quizSetKey); ok {
			return quizSet, nil
		}

		quizSet, err := r.backing.Get(ctx, quizSetKey)
		if err != nil {
			return domain.QuizSet{}, err
		}
		if quizSet.IsFinished() && r.ttl > 0 {
			r.mu.Lock()
			r.cache[quizSetKey] = cachedQuizSet{
				quizSet:   quizSet.Clone(),
				expiresAt: r.clock().Add(r.ttlWithJitter()),
			}
			r.mu.Unlock()
		}
		return quizSet, nil
	})
	if err != nil {
		return domain.QuizSet{}, err
	}
	return result.(domain.QuizSet).Clone(), nil
}

// Save writes through and drops the cached copy.
func (r *CachedQuizSetStore) Save(ctx context.Context, quizSet domain.QuizSet) error {
	if err := r.backing.Save(ctx, quizSet); err != nil {
		return err
	}
	// evict after the write so a concurrent read cannot refill the old copy
	r.mu.Lock()
	delete(r.cache, quizSet.QuizSetKey)
	r.mu.Unlock()
	return nil
}

func (r *CachedQuizSetStore) lookup(quizSetKey string) (domain.QuizSet, bool) {
	now := r.clock()
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.cache[quizSetKey]; ok && entry.expiresAt.After(now) {
		return entry.quizSet.Clone(), true
	}
	return domain.QuizSet{}, false
}

func (r *CachedQuizSetStore) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
