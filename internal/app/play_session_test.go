package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"caretoplay/internal/app"
	"caretoplay/internal/domain"
	"caretoplay/internal/flow"
	"caretoplay/internal/infra/memory"
	"github.com/rs/zerolog"
)

func openSession(t *testing.T, cfg app.PlayConfig, req app.OpenRequest) (*app.PlayService, *app.PlaySession) {
	t.Helper()
	if cfg.Caches == nil {
		cfg.Caches = memory.NewDeviceCaches()
	}
	cfg.Logger = zerolog.Nop()
	play := app.NewPlayService(memory.NewSessionStore(), cfg)
	session, err := play.Open(context.Background(), req)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { play.Close(context.Background(), session.ID()) })
	return play, session
}

func waitFor(t *testing.T, ch <-chan app.Message, msgType string) app.Message {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				t.Fatalf("channel closed waiting for %s", msgType)
			}
			if msg.Type == msgType {
				return msg
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", msgType)
		}
	}
}

func TestOpenNewQuizSetRedirectsAndRecordsVisit(t *testing.T) {
	stats := memory.NewStats()
	backend := app.NewQuizSetService(memory.NewQuizSetStore(), stats, nil, zerolog.Nop())
	_, session := openSession(t, app.PlayConfig{Backend: backend}, app.OpenRequest{QuizSetKey: "new"})

	session.Wait()
	if session.DeviceID() == "" {
		t.Fatalf("expected generated device id")
	}
	if !domain.ValidQuizSetKey(session.QuizSetKey()) {
		t.Fatalf("expected redirect to a created key, got %q", session.QuizSetKey())
	}
	if got := session.Controller().State(); got != flow.StateNewQuizSet {
		t.Fatalf("expected newQuizSet, got %s", got)
	}
	if got := stats.Count("stats/overview/visitCount"); got != 1 {
		t.Fatalf("expected overview visit, got %d", got)
	}
}

func TestOpenRejectsMalformedKey(t *testing.T) {
	play := app.NewPlayService(memory.NewSessionStore(), app.PlayConfig{Logger: zerolog.Nop()})
	if _, err := play.Open(context.Background(), app.OpenRequest{QuizSetKey: "lower-case"}); !errors.Is(err, domain.ErrInvalidQuizSetKey) {
		t.Fatalf("expected invalid key, got %v", err)
	}
	if err := play.Send(context.Background(), "missing", flow.Event{Type: flow.EventNext}); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session not found, got %v", err)
	}
}

func TestSubscribeReplaysLatestSnapshots(t *testing.T) {
	backend := app.NewQuizSetService(memory.NewQuizSetStore(), memory.NewStats(), nil, zerolog.Nop())
	play, session := openSession(t, app.PlayConfig{Backend: backend}, app.OpenRequest{QuizSetKey: "new"})
	session.Wait()

	ch, cancel, err := play.Subscribe(context.Background(), session.ID())
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	first := waitFor(t, ch, app.MessageState)
	if first.Snapshot == nil || first.Snapshot.Machine != "quizSet" || first.Snapshot.State != flow.StateNewQuizSet {
		t.Fatalf("expected controller snapshot first, got %+v", first.Snapshot)
	}
}

func TestNativeShareRoundTrip(t *testing.T) {
	_, session := openSession(t, app.PlayConfig{ShareTimeout: time.Second}, app.OpenRequest{DeviceID: "d1", NativeShare: true})
	ch, cancel := session.Subscribe()
	defer cancel()

	result := make(chan error, 1)
	go func() {
		result <- session.Share(context.Background(), flow.ShareRequest{Title: "Care to Play?", URL: "https://caretoplay.test/q/K"})
	}()
	msg := waitFor(t, ch, app.MessageShare)
	if msg.Share == nil || msg.Share.URL != "https://caretoplay.test/q/K" {
		t.Fatalf("unexpected share message %+v", msg)
	}
	session.ResolveShare(app.ShareResult{})
	if err := <-result; err != nil {
		t.Fatalf("expected share to succeed, got %v", err)
	}

	go func() {
		result <- session.Share(context.Background(), flow.ShareRequest{URL: "https://caretoplay.test/q/K"})
	}()
	waitFor(t, ch, app.MessageShare)
	session.ResolveShare(app.ShareResult{Error: flow.ShareInternalError, Message: "boom"})
	var shareErr *flow.ShareError
	if err := <-result; !errors.As(err, &shareErr) || shareErr.Name != flow.ShareInternalError {
		t.Fatalf("expected internal share error, got %v", err)
	}
}

func TestShareWithoutNativeSupport(t *testing.T) {
	_, session := openSession(t, app.PlayConfig{}, app.OpenRequest{DeviceID: "d2"})

	var shareErr *flow.ShareError
	err := session.Share(context.Background(), flow.ShareRequest{URL: "u"})
	if !errors.As(err, &shareErr) || shareErr.Name != flow.ShareUnsupported {
		t.Fatalf("expected unsupported, got %v", err)
	}

	ch, cancel := session.Subscribe()
	defer cancel()
	if err := session.CopyLink(context.Background(), "https://caretoplay.test/q/K"); err != nil {
		t.Fatalf("copy link: %v", err)
	}
	if msg := waitFor(t, ch, app.MessageCopyLink); msg.URL != "https://caretoplay.test/q/K" {
		t.Fatalf("unexpected copy link message %+v", msg)
	}
}

func TestShareTimesOut(t *testing.T) {
	_, session := openSession(t, app.PlayConfig{ShareTimeout: 20 * time.Millisecond}, app.OpenRequest{DeviceID: "d3", NativeShare: true})

	var shareErr *flow.ShareError
	err := session.Share(context.Background(), flow.ShareRequest{URL: "u"})
	if !errors.As(err, &shareErr) || shareErr.Name != flow.ShareTimeout {
		t.Fatalf("expected timeout, got %v", err)
	}
}
