package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"caretoplay/internal/domain"
)

func TestCachedQuizSetStoreCachesFinished(t *testing.T) {
	ctx := context.Background()
	backing := &countingBacking{Backing: NewQuizSetStore()}
	_ = backing.Save(ctx, sampleQuizSet("KEY000000001", domain.StatusFinished))
	store := NewCachedQuizSetStore(backing, time.Minute)

	if _, err := store.Get(ctx, "KEY000000001"); err != nil {
		t.Fatalf("get quiz set: %v", err)
	}
	if backing.gets != 1 {
		t.Fatalf("expected backing read once, got %d", backing.gets)
	}
	got, err := store.Get(ctx, "KEY000000001")
	if err != nil {
		t.Fatalf("get quiz set 2: %v", err)
	}
	if backing.gets != 1 {
		t.Fatalf("expected cache hit, backing reads %d", backing.gets)
	}

	// callers must not be able to mutate the cached copy
	got.Quizzes[0].Choice = 2
	again, _ := store.Get(ctx, "KEY000000001")
	if again.Quizzes[0].Choice != 0 {
		t.Fatalf("cached quiz set was mutated")
	}
}

func TestCachedQuizSetStoreReadsThroughDrafts(t *testing.T) {
	ctx := context.Background()
	backing := &countingBacking{Backing: NewQuizSetStore()}
	_ = backing.Save(ctx, sampleQuizSet("KEY000000002", domain.StatusNew))
	store := NewCachedQuizSetStore(backing, time.Minute)

	_, _ = store.Get(ctx, "KEY000000002")
	_, _ = store.Get(ctx, "KEY000000002")
	if backing.gets != 2 {
		t.Fatalf("expected drafts to bypass the cache, got %d reads", backing.gets)
	}
}

func TestCachedQuizSetStoreInvalidatesOnSave(t *testing.T) {
	ctx := context.Background()
	backing := &countingBacking{Backing: NewQuizSetStore()}
	quizSet := sampleQuizSet("KEY000000003", domain.StatusFinished)
	_ = backing.Save(ctx, quizSet)
	store := NewCachedQuizSetStore(backing, time.Minute)
	_, _ = store.Get(ctx, "KEY000000003")

	quizSet.Name = "Renamed"
	if err := store.Save(ctx, quizSet); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, _ := store.Get(ctx, "KEY000000003")
	if got.Name != "Renamed" || backing.gets != 2 {
		t.Fatalf("expected fresh read after save, got %q after %d reads", got.Name, backing.gets)
	}
}

func TestCachedQuizSetStoreExpires(t *testing.T) {
	ctx := context.Background()
	backing := &countingBacking{Backing: NewQuizSetStore()}
	_ = backing.Save(ctx, sampleQuizSet("KEY000000004", domain.StatusFinished))
	store := NewCachedQuizSetStore(backing, time.Minute)
	now := time.Now()
	store.clock = func() time.Time { return now }

	_, _ = store.Get(ctx, "KEY000000004")
	now = now.Add(2 * time.Minute)
	_, _ = store.Get(ctx, "KEY000000004")
	if backing.gets != 2 {
		t.Fatalf("expected expired entry to be reloaded, got %d reads", backing.gets)
	}
}

func TestQuizSetStoreNotFound(t *testing.T) {
	_, err := NewQuizSetStore().Get(context.Background(), "MISSING00000")
	if !errors.Is(err, domain.ErrQuizSetNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCachedQuizSetStoreSaveEvictsAfterWrite(t *testing.T) {
	ctx := context.Background()
	inner := NewQuizSetStore()
	_ = inner.Save(ctx, sampleQuizSet("KEY000000004", domain.StatusFinished))
	backing := &hookedBacking{Backing: inner}
	store := NewCachedQuizSetStore(backing, time.Minute)
	_, _ = store.Get(ctx, "KEY000000004")

	// a read that lands while the write is in flight
	backing.beforeSave = func() { _, _ = store.Get(ctx, "KEY000000004") }
	updated := sampleQuizSet("KEY000000004", domain.StatusFinished)
	updated.Name = "Noa"
	if err := store.Save(ctx, updated); err != nil {
		t.Fatalf("save quiz set: %v", err)
	}

	got, err := store.Get(ctx, "KEY000000004")
	if err != nil {
		t.Fatalf("get quiz set: %v", err)
	}
	if got.Name != "Noa" {
		t.Fatalf("expected saved name, got %q", got.Name)
	}
}

func TestCachedQuizSetStoreKeepsCacheOnFailedSave(t *testing.T) {
	ctx := context.Background()
	inner := NewQuizSetStore()
	_ = inner.Save(ctx, sampleQuizSet("KEY000000005", domain.StatusFinished))
	backing := &hookedBacking{Backing: inner, saveErr: errors.New("boom")}
	store := NewCachedQuizSetStore(backing, time.Minute)
	_, _ = store.Get(ctx, "KEY000000005")

	if err := store.Save(ctx, sampleQuizSet("KEY000000005", domain.StatusFinished)); err == nil {
		t.Fatalf("expected save error")
	}
	if _, ok := store.lookup("KEY000000005"); !ok {
		t.Fatalf("expected cached entry to survive a failed save")
	}
}

type hookedBacking struct {
	Backing
	beforeSave func()
	saveErr    error
}

func (b *hookedBacking) Save(ctx context.Context, quizSet domain.QuizSet) error {
	if b.beforeSave != nil {
		b.beforeSave()
	}
	if b.saveErr != nil {
		return b.saveErr
	}
	return b.Backing.Save(ctx, quizSet)
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
	quizSet.Quizzes = []domain.QuizAnswer{{Choice: 0, Options: []string{"a", "b", "c"}}}
	return quizSet
}
