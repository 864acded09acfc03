package redis

import (
	"context"
	"testing"
	"time"

	"caretoplay/internal/app"
	"caretoplay/internal/flow"
	miniredis "github.com/alicebob/miniredis/v2"
)

func TestSessionStoreSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	store := NewSessionStore(client, time.Minute)
	service := app.NewPlayService(store, app.PlayConfig{Caches: NewDeviceCaches(client, time.Hour)})

	session, err := service.Open(context.Background(), app.OpenRequest{DeviceID: "device-1"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	key := "play:session:" + session.ID()
	if !mr.Exists(key) {
		t.Fatalf("expected redis key to be set")
	}
	if got, _ := mr.Get(key); got != "device-1" {
		t.Fatalf("expected device id in marker, got %q", got)
	}

	service.Close(context.Background(), session.ID())
	if mr.Exists(key) {
		t.Fatalf("expected redis key to be removed")
	}
}

func TestDeviceCacheRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	cache := NewDeviceCaches(newClient(mr), time.Hour).ForDevice("device-1")

	var finished []string
	if ok, err := cache.Get(ctx, flow.FinishedQuizSetsKey, &finished); ok || err != nil {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	if err := cache.Set(ctx, flow.FinishedQuizSetsKey, []string{"KEY000000001"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !mr.Exists("device:device-1:" + flow.FinishedQuizSetsKey) {
		t.Fatalf("expected namespaced key")
	}
	if ok, err := cache.Get(ctx, flow.FinishedQuizSetsKey, &finished); !ok || err != nil || len(finished) != 1 {
		t.Fatalf("expected hit, got %v ok=%v err=%v", finished, ok, err)
	}
	_ = cache.Del(ctx, flow.FinishedQuizSetsKey)
	if mr.Exists("device:device-1:" + flow.FinishedQuizSetsKey) {
		t.Fatalf("expected key to be deleted")
	}
}

func TestStatsIncrements(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	stats := NewStats(newClient(mr))
	path := "stats/quizSets/KEY000000001/shareCount"
	for i := 0; i < 3; i++ {
		if err := stats.Incr(ctx, path); err != nil {
			t.Fatalf("incr: %v", err)
		}
	}
	if n, err := stats.Count(ctx, path); err != nil || n != 3 {
		t.Fatalf("expected 3, got %d (%v)", n, err)
	}
	if n, _ := stats.Count(ctx, "stats/overview/visitCount"); n != 0 {
		t.Fatalf("expected missing counter to be zero, got %d", n)
	}
}
