package app

import (
	"context"
	"strings"

	"caretoplay/internal/domain"
	"caretoplay/internal/flow"
	"github.com/google/uuid"
)

// DeviceCaches hands out the cache local to one device.
type DeviceCaches interface {
	ForDevice(deviceID string) flow.DeviceCache
}

// SessionRepository abstracts where live play sessions are kept (in-memory, Redis, etc).
type SessionRepository interface {
	Put(session *PlaySession)
	Get(sessionID string) (*PlaySession, bool)
	Delete(sessionID string)
}

// PlayService opens play sessions and routes device traffic to them.
type PlayService struct {
	sessions SessionRepository
	cfg      PlayConfig
}

func NewPlayService(sessions SessionRepository, cfg PlayConfig) *PlayService {
	return &PlayService{sessions: sessions, cfg: cfg}
}

// Open starts a session for a device looking at quizSetKey ("" for whatever the
// device was last working on, "new" for a fresh quiz set).
func (p *PlayService) Open(ctx context.Context, req OpenRequest) (*PlaySession, error) {
	req.QuizSetKey = strings.TrimSpace(req.QuizSetKey)
	if req.QuizSetKey != "" && req.QuizSetKey != flow.NewQuizSetToken && !domain.ValidQuizSetKey(req.QuizSetKey) {
		return nil, domain.ErrInvalidQuizSetKey
	}
	if req.DeviceID == "" {
		req.DeviceID = uuid.NewString()
	}

	session := newPlaySession(uuid.NewString(), p.cfg, req)
	p.sessions.Put(session)
	session.start(req.QuizSetKey)

	if p.cfg.Backend != nil {
		key := req.QuizSetKey
		if key == flow.NewQuizSetToken {
			key = ""
		}
		if err := p.cfg.Backend.Snap(ctx, domain.SnapVisit, key); err != nil {
			session.log.Debug().Err(err).Msg("record visit")
		}
	}
	return session, nil
}

// Send routes a device event to its session.
func (p *PlayService) Send(_ context.Context, sessionID string, ev flow.Event) error {
	session, ok := p.sessions.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	return session.Send(ev)
}

// Subscribe returns the session's update stream. The caller must invoke cancel.
func (p *PlayService) Subscribe(_ context.Context, sessionID string) (<-chan Message, func(), error) {
	session, ok := p.sessions.Get(sessionID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.Subscribe()
	return ch, cancel, nil
}

// ResolveShare reports the device's share outcome.
func (p *PlayService) ResolveShare(_ context.Context, sessionID string, res ShareResult) error {
	session, ok := p.sessions.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	session.ResolveShare(res)
	return nil
}

// Close stops the session and forgets it.
func (p *PlayService) Close(_ context.Context, sessionID string) {
	session, ok := p.sessions.Get(sessionID)
	if !ok {
		return
	}
	p.sessions.Delete(sessionID)
	session.Close()
}
