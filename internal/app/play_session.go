package app

import (
	"context"
	"sync"
	"time"

	"caretoplay/internal/domain"
	"caretoplay/internal/flow"
	"github.com/rs/zerolog"
)

// Message types pushed to a device.
const (
	MessageState    = "state"
	MessageRedirect = "redirect"
	MessageShare    = "share"
	MessageCopyLink = "copyLink"
)

// Message is one update pushed to the device driving a play session.
type Message struct {
	Type       string             `json:"type"`
	Snapshot   *flow.Snapshot     `json:"snapshot,omitempty"`
	QuizSetKey string             `json:"quizSetKey,omitempty"`
	Share      *flow.ShareRequest `json:"share,omitempty"`
	URL        string             `json:"url,omitempty"`
}

// ShareResult is the device's answer to a share message. An empty Error means the
// share sheet completed.
type ShareResult struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// queued is an event, or a flush marker when ev is nil.
type queued struct {
	ev  *flow.Event
	ack chan struct{}
}

const (
	subscriberBuffer = 32
	eventBuffer      = 16
)

// PlaySession drives one device through the quiz flows. Events are handled in
// order on the session's own goroutine; updates fan out to every subscriber.
type PlaySession struct {
	id       string
	deviceID string
	log      zerolog.Logger

	controller *flow.QuizSetController

	events chan queued
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	nativeShare  bool
	shareTimeout time.Duration
	shareResults chan ShareResult

	mu          sync.RWMutex
	quizSetKey  string
	subscribers map[chan Message]struct{}
	latest      map[string]flow.Snapshot
	order       []string
	closed      bool
}

// PlayConfig is shared by every session of a PlayService.
type PlayConfig struct {
	Backend      flow.Backend
	Caches       DeviceCaches
	ShareBaseURL string
	StageDelay   time.Duration
	ShareTimeout time.Duration
	Logger       zerolog.Logger
}

// OpenRequest describes the device opening a session.
type OpenRequest struct {
	DeviceID    string
	QuizSetKey  string
	Ref         string
	NativeShare bool
}

func newPlaySession(id string, cfg PlayConfig, req OpenRequest) *PlaySession {
	ctx, cancel := context.WithCancel(context.Background())
	s := &PlaySession{
		id:           id,
		deviceID:     req.DeviceID,
		log:          cfg.Logger.With().Str("session", id).Str("device", req.DeviceID).Logger(),
		events:       make(chan queued, eventBuffer),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
		nativeShare:  req.NativeShare,
		shareTimeout: cfg.ShareTimeout,
		shareResults: make(chan ShareResult, 1),
		quizSetKey:   req.QuizSetKey,
		subscribers:  make(map[chan Message]struct{}),
		latest:       make(map[string]flow.Snapshot),
	}
	if s.shareTimeout <= 0 {
		s.shareTimeout = 30 * time.Second
	}

	var cache flow.DeviceCache
	if cfg.Caches != nil {
		cache = cfg.Caches.ForDevice(req.DeviceID)
	}
	logger := s.log
	s.controller = flow.NewQuizSetController(flow.Options{
		Backend:      cfg.Backend,
		Cache:        cache,
		Navigator:    s,
		Sharer:       s,
		Clipboard:    s,
		ShareBaseURL: cfg.ShareBaseURL,
		Ref:          req.Ref,
		StageDelay:   cfg.StageDelay,
		OnTransition: s.observe,
		Logger:       &logger,
	})
	return s
}

// ID returns the session id.
func (s *PlaySession) ID() string { return s.id }

// DeviceID returns the device the session belongs to.
func (s *PlaySession) DeviceID() string { return s.deviceID }

// QuizSetKey returns the key of the quiz set currently shown.
func (s *PlaySession) QuizSetKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.quizSetKey
}

// Controller exposes the session's controller for inspection.
func (s *PlaySession) Controller() *flow.QuizSetController {
	return s.controller
}

func (s *PlaySession) start(quizSetKey string) {
	go s.run()
	_ = s.Send(flow.Event{Type: flow.EventSetQuizSetKey, QuizSetKey: quizSetKey})
}

func (s *PlaySession) run() {
	defer close(s.done)
	for {
		select {
		case q := <-s.events:
			if q.ev != nil {
				s.controller.Send(s.ctx, *q.ev)
			}
			if q.ack != nil {
				close(q.ack)
			}
		case <-s.ctx.Done():
			return
		}
	}
}

// Send queues an event for the session's controller.
func (s *PlaySession) Send(ev flow.Event) error {
	return s.enqueue(queued{ev: &ev})
}

func (s *PlaySession) enqueue(q queued) error {
	select {
	case <-s.ctx.Done():
		return domain.ErrSessionClosed
	default:
	}
	select {
	case s.events <- q:
		return nil
	case <-s.ctx.Done():
		return domain.ErrSessionClosed
	}
}

// ResolveShare delivers the device's share outcome to a pending share.
func (s *PlaySession) ResolveShare(res ShareResult) {
	select {
	case s.shareResults <- res:
	default:
	}
}

// Share implements flow.Sharer by asking the device to open its share sheet.
func (s *PlaySession) Share(ctx context.Context, req flow.ShareRequest) error {
	if !s.nativeShare {
		return &flow.ShareError{Name: flow.ShareUnsupported}
	}
	select {
	case <-s.shareResults:
	default:
	}
	s.broadcast(Message{Type: MessageShare, Share: &req})

	timer := time.NewTimer(s.shareTimeout)
	defer timer.Stop()
	select {
	case res := <-s.shareResults:
		if res.Error == "" {
			return nil
		}
		return &flow.ShareError{Name: res.Error, Message: res.Message}
	case <-timer.C:
		return &flow.ShareError{Name: flow.ShareTimeout}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CopyLink implements flow.Clipboard.
func (s *PlaySession) CopyLink(_ context.Context, url string) error {
	s.broadcast(Message{Type: MessageCopyLink, URL: url})
	return nil
}

// Redirect implements flow.Navigator.
func (s *PlaySession) Redirect(quizSetKey string) {
	s.mu.Lock()
	s.quizSetKey = quizSetKey
	s.mu.Unlock()
	s.broadcast(Message{Type: MessageRedirect, QuizSetKey: quizSetKey})
}

func (s *PlaySession) observe(snapshot flow.Snapshot) {
	s.mu.Lock()
	if _, ok := s.latest[snapshot.ID]; !ok {
		s.order = append(s.order, snapshot.ID)
	}
	s.latest[snapshot.ID] = snapshot
	s.mu.Unlock()
	s.broadcast(Message{Type: MessageState, Snapshot: &snapshot})
}

// Subscribe returns a channel of updates, starting with the latest snapshot of
// every machine seen so far. The caller must invoke cancel.
func (s *PlaySession) Subscribe() (<-chan Message, func()) {
	ch := make(chan Message, subscriberBuffer)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	for _, id := range s.order {
		if len(ch) == cap(ch) {
			break
		}
		snapshot := s.latest[id]
		ch <- Message{Type: MessageState, Snapshot: &snapshot}
	}
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *PlaySession) broadcast(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- msg:
		default:
			// slow subscriber: drop its oldest update
			select {
			case <-ch:
			default:
			}
			ch <- msg
		}
	}
}

// Close stops the session and releases its subscribers.
func (s *PlaySession) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
	s.mu.Unlock()

	s.cancel()
	<-s.done
	s.controller.Close()
	s.controller.Wait()
}

// Wait blocks until queued events and background work have been handled.
func (s *PlaySession) Wait() {
	ack := make(chan struct{})
	if err := s.enqueue(queued{ack: ack}); err == nil {
		select {
		case <-ack:
		case <-s.done:
		}
	}
	s.controller.Wait()
}
