package flow_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"caretoplay/internal/domain"
	"caretoplay/internal/flow"
)

var errBoom = errors.New("boom")

type fakeBackend struct {
	mu sync.Mutex

	quizSets map[string]domain.QuizSet
	nextKey  string

	failFetch     int
	failCreate    int
	failSave      int
	failSnap      int
	failSubscribe int

	fetches    int
	creates    int
	saves      int
	saved      []domain.QuizSet
	snaps      []domain.SnapType
	pages      []string
	subscribed []domain.PersonalInfo
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{quizSets: map[string]domain.QuizSet{}, nextKey: "ABCDEF123456"}
}

func (b *fakeBackend) FetchQuizSet(_ context.Context, key string) (domain.QuizSet, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fetches++
	if b.failFetch > 0 {
		b.failFetch--
		return domain.QuizSet{}, errBoom
	}
	if qs, ok := b.quizSets[key]; ok {
		return qs.Clone(), nil
	}
	qs := domain.EmptyQuizSet()
	qs.QuizSetKey = key
	return qs, nil
}

func (b *fakeBackend) CreateQuizSet(_ context.Context, ref string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.creates++
	if b.failCreate > 0 {
		b.failCreate--
		return "", errBoom
	}
	qs := domain.EmptyQuizSet()
	qs.QuizSetKey = b.nextKey
	qs.Ref = ref
	b.quizSets[b.nextKey] = qs
	return b.nextKey, nil
}

func (b *fakeBackend) SaveQuizSetData(_ context.Context, qs domain.QuizSet) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.saves++
	if b.failSave > 0 {
		b.failSave--
		return errBoom
	}
	b.saved = append(b.saved, qs.Clone())
	b.quizSets[qs.QuizSetKey] = qs.Clone()
	return nil
}

func (b *fakeBackend) BuildPage(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pages = append(b.pages, key)
	return nil
}

func (b *fakeBackend) Subscribe(_ context.Context, key, name string, info domain.PersonalInfo) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failSubscribe > 0 {
		b.failSubscribe--
		return errBoom
	}
	copied := domain.PersonalInfo{"quizSetKey": key, "name": name}
	for k, v := range info {
		copied[k] = v
	}
	b.subscribed = append(b.subscribed, copied)
	return nil
}

func (b *fakeBackend) Snap(_ context.Context, t domain.SnapType, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t == domain.SnapComplete && b.failSnap > 0 {
		b.failSnap--
		return errBoom
	}
	b.snaps = append(b.snaps, t)
	return nil
}

func (b *fakeBackend) snapCount(t domain.SnapType) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, s := range b.snaps {
		if s == t {
			n++
		}
	}
	return n
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte

	// failGets and failSets count the upcoming failures per slot.
	failGets map[string]int
	failSets map[string]int
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}, failGets: map[string]int{}, failSets: map[string]int{}}
}

func (c *memCache) Get(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGets[key] > 0 {
		c.failGets[key]--
		return false, errBoom
	}
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (c *memCache) Set(_ context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSets[key] > 0 {
		c.failSets[key]--
		return errBoom
	}
	c.data[key] = raw
	return nil
}

func (c *memCache) Del(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *memCache) failGet(key string, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failGets[key] += n
}

func (c *memCache) failSet(key string, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failSets[key] += n
}

func (c *memCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

type recordingNavigator struct {
	mu        sync.Mutex
	redirects []string
}

func (n *recordingNavigator) Redirect(key string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.redirects = append(n.redirects, key)
}

type fakeSharer struct {
	err      error
	requests []flow.ShareRequest
}

func (s *fakeSharer) Share(_ context.Context, req flow.ShareRequest) error {
	s.requests = append(s.requests, req)
	return s.err
}

type fakeClipboard struct {
	err    error
	copied []string
}

func (c *fakeClipboard) CopyLink(_ context.Context, url string) error {
	c.copied = append(c.copied, url)
	return c.err
}

type transitions struct {
	mu   sync.Mutex
	seen []flow.Snapshot
}

func (r *transitions) record(s flow.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, s)
}

// states lists the states visited by the named machine, in order.
func (r *transitions) states(machine string) []flow.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []flow.State
	for _, s := range r.seen {
		if s.Machine == machine {
			out = append(out, s.State)
		}
	}
	return out
}

type harness struct {
	backend   *fakeBackend
	cache     *memCache
	navigator *recordingNavigator
	sharer    *fakeSharer
	clipboard *fakeClipboard
	log       *transitions
}

func newHarness() *harness {
	return &harness{
		backend:   newFakeBackend(),
		cache:     newMemCache(),
		navigator: &recordingNavigator{},
		sharer:    &fakeSharer{},
		clipboard: &fakeClipboard{},
		log:       &transitions{},
	}
}

func (h *harness) options() flow.Options {
	return flow.Options{
		Backend:      h.backend,
		Cache:        h.cache,
		Navigator:    h.navigator,
		Sharer:       h.sharer,
		Clipboard:    h.clipboard,
		ShareBaseURL: "https://caretoplay.test",
		Ref:          "test-ref",
		OnTransition: h.log.record,
	}
}

func (h *harness) seedDraft(t *testing.T, qs domain.QuizSet) {
	t.Helper()
	if err := h.cache.Set(context.Background(), flow.PersistedQuizSetKey, qs); err != nil {
		t.Fatalf("seed draft: %v", err)
	}
}

func expectState(t *testing.T, got, want flow.State) {
	t.Helper()
	if got != want {
		t.Fatalf("expected state %q, got %q", want, got)
	}
}

func containsInOrder(states []flow.State, want ...flow.State) bool {
	i := 0
	for _, s := range states {
		if i < len(want) && s == want[i] {
			i++
		}
	}
	return i == len(want)
}

func finishedQuizSet(key string, choice int) domain.QuizSet {
	qs := domain.EmptyQuizSet()
	qs.QuizSetKey = key
	qs.Name = "Mia"
	qs.Status = domain.StatusFinished
	qs.QuizVersion = domain.CurrentQuizVersion
	for _, q := range domain.Quizzes[domain.CurrentQuizVersion] {
		qs.Quizzes = append(qs.Quizzes, domain.QuizAnswer{Choice: choice, Options: append([]string(nil), q.Options...)})
	}
	return qs
}

func (b *fakeBackend) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return fmt.Sprintf("fetches=%d creates=%d saves=%d", b.fetches, b.creates, b.saves)
}

func jsonOf(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	return out, json.Unmarshal(raw, &out)
}

func containsKey(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}
