package flow

import (
	"context"
	"strings"
	"sync"

	"caretoplay/internal/domain"
)

// EventType names an event a machine can receive.
type EventType string

const (
	EventSetQuizSetKey EventType = "setQuizSetKey"
	EventContinue      EventType = "continue"
	EventStartAfresh   EventType = "startAfresh"
	EventRetry         EventType = "retry"
	EventNext          EventType = "next"
	EventBack          EventType = "back"
	EventReview        EventType = "review"
	EventShare         EventType = "share"
	EventSkip          EventType = "skip"

	// form events
	EventChange EventType = "change"
	EventSubmit EventType = "submit"

	// question events
	EventSelect  EventType = "select"
	EventEdit    EventType = "edit"
	EventInput   EventType = "input"
	EventConfirm EventType = "confirm"
	EventCancel  EventType = "cancel"
	EventAnswer  EventType = "answer"
	EventGuess   EventType = "guess"

	eventInit         EventType = "init"
	eventFormDone     EventType = "formDone"
	eventStageElapsed EventType = "stageElapsed"
)

// Event is the single message shape understood by every machine. Fields not used
// by an event type are ignored.
type Event struct {
	Type        EventType           `json:"type"`
	QuizSetKey  string              `json:"quizSetKey,omitempty"`
	Choice      int                 `json:"choice"`
	OptionIndex int                 `json:"optionIndex"`
	Options     []string            `json:"options,omitempty"`
	Field       string              `json:"field,omitempty"`
	Value       string              `json:"value,omitempty"`
	Values      domain.PersonalInfo `json:"-"`

	fromChild bool
	internal  bool
	seq       int
}

// State is a dotted state path such as "askToShare.sharing".
type State string

// Matches reports whether s is p or a descendant of p.
func (s State) Matches(p State) bool {
	return s == p || strings.HasPrefix(string(s), string(p)+".")
}

// Snapshot is an observable copy of a machine's state and context.
type Snapshot struct {
	Machine string `json:"machine"`
	ID      string `json:"id"`
	State   State  `json:"state"`
	Context any    `json:"context"`
}

type envelope struct {
	ctx context.Context
	ev  Event
}

// mailbox serializes event handling for one machine. Send never blocks on a busy
// machine: the event is queued and handled by whoever is draining the queue.
type mailbox struct {
	mu    sync.Mutex
	queue []envelope
	busy  bool

	proc sync.Mutex
}

func (m *mailbox) dispatch(ctx context.Context, ev Event, handle func(context.Context, Event)) {
	if ev.Type.internalOnly() && !ev.internal && !ev.fromChild {
		return
	}
	m.mu.Lock()
	m.queue = append(m.queue, envelope{ctx: ctx, ev: ev})
	if m.busy {
		m.mu.Unlock()
		return
	}
	m.busy = true
	for len(m.queue) > 0 {
		next := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()

		m.proc.Lock()
		handle(next.ctx, next.ev)
		m.proc.Unlock()

		m.mu.Lock()
	}
	m.busy = false
	m.mu.Unlock()
}

// read runs fn while no event is being handled.
func (m *mailbox) read(fn func()) {
	m.proc.Lock()
	defer m.proc.Unlock()
	fn()
}

// internalOnly reports whether t may only be raised by the machines themselves.
func (t EventType) internalOnly() bool {
	switch t {
	case eventInit, eventFormDone, eventStageElapsed:
		return true
	}
	return false
}

func internalEvent(t EventType) Event {
	return Event{Type: t, internal: true}
}

func childEvent(ev Event) Event {
	ev.fromChild = true
	return ev
}
