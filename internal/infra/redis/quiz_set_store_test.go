package redis

import (
	"context"
	"testing"
	"time"

	"caretoplay/internal/domain"
	"caretoplay/internal/infra/memory"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestCachedQuizSetStoreCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	backing := &countingBacking{Backing: memory.NewQuizSetStore()}
	_ = backing.Save(ctx, sampleQuizSet("KEY000000001", domain.StatusFinished))
	store := NewCachedQuizSetStore(newClient(mr), backing, time.Minute)

	if _, err := store.Get(ctx, "KEY000000001"); err != nil {
		t.Fatalf("get quiz set: %v", err)
	}
	if backing.gets != 1 {
		t.Fatalf("expected backing called once, got %d", backing.gets)
	}
	if !mr.Exists("quizset:KEY000000001") {
		t.Fatalf("expected finished quiz set to be cached")
	}
	if ttl := mr.TTL("quizset:KEY000000001"); ttl < time.Minute || ttl > time.Minute+6*time.Second {
		t.Fatalf("expected ttl with jitter, got %v", ttl)
	}

	// Second call should hit cache, backing not incremented.
	got, err := store.Get(ctx, "KEY000000001")
	if err != nil || got.Name != "Mia" {
		t.Fatalf("cached read: %+v (%v)", got, err)
	}
	if backing.gets != 1 {
		t.Fatalf("expected cache hit, backing calls=%d", backing.gets)
	}
}

func TestCachedQuizSetStoreSkipsDraftsAndInvalidates(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	backing := &countingBacking{Backing: memory.NewQuizSetStore()}
	store := NewCachedQuizSetStore(newClient(mr), backing, time.Minute)

	draft := sampleQuizSet("KEY000000002", domain.StatusNew)
	if err := store.Save(ctx, draft); err != nil {
		t.Fatalf("save: %v", err)
	}
	_, _ = store.Get(ctx, "KEY000000002")
	if mr.Exists("quizset:KEY000000002") {
		t.Fatalf("drafts must not be cached")
	}

	finished := sampleQuizSet("KEY000000002", domain.StatusFinished)
	_ = store.Save(ctx, finished)
	_, _ = store.Get(ctx, "KEY000000002")
	if !mr.Exists("quizset:KEY000000002") {
		t.Fatalf("expected finished quiz set to be cached")
	}
	_ = store.Save(ctx, finished)
	if mr.Exists("quizset:KEY000000002") {
		t.Fatalf("expected save to invalidate the cache")
	}
}

func TestCachedQuizSetStoreZeroTTLDisablesCache(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	backing := &countingBacking{Backing: memory.NewQuizSetStore()}
	_ = backing.Save(ctx, sampleQuizSet("KEY000000003", domain.StatusFinished))
	store := NewCachedQuizSetStore(newClient(mr), backing, 0)

	_, _ = store.Get(ctx, "KEY000000003")
	_, _ = store.Get(ctx, "KEY000000003")
	if mr.Exists("quizset:KEY000000003") {
		t.Fatalf("expected no cache entry with zero ttl")
	}
	if backing.gets != 2 {
		t.Fatalf("expected every read to reach the backing store, got %d", backing.gets)
	}
}

type countingBacking struct {
	Backing
	gets int
}

func (b *countingBacking) Get(ctx context.Context, key string) (domain.QuizSet, error) {
	b.gets++
	return b.Backing.Get(ctx, key)
}

func sampleQuizSet(key string, status domain.Status) domain.QuizSet {
	quizSet := domain.EmptyQuizSet()
	quizSet.QuizSetKey = key
	quizSet.Name = "Mia"
	quizSet.Status = status
	quizSet.Quizzes = []domain.QuizAnswer{{Choice: 1, Options: []string{"a", "b"}}}
	return quizSet
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
