package flow

import (
	"context"
	"strings"

	"caretoplay/internal/domain"
)

// QuizSetController states.
const (
	StateLoading                  State = "loading"
	StateLoadingWaiting           State = "loading.waiting"
	StateFetchingQuizSet          State = "loading.fetchingQuizSet"
	StateFetchingPersistedQuizSet State = "loading.fetchingPersistedQuizSet"
	StateConfirmContinue          State = "confirmContinue"
	StateCreatingQuizSet          State = "creatingQuizSet"
	StateError                    State = "error"
	StateNewQuizSet               State = "newQuizSet"
	StateExistingQuizSet          State = "existingQuizSet"
)

// ControllerContext is the observable context of the controller.
type ControllerContext struct {
	QuizSet domain.QuizSet `json:"quizSet"`
	Error   string         `json:"error,omitempty"`
}

// QuizSetController resolves which quiz set a device is looking at and hands it
// to the authoring or guessing flow.
type QuizSetController struct {
	mailbox
	env *env

	state   State
	ctx     ControllerContext
	history State

	newFlow      *NewQuizSetMachine
	existingFlow *ExistingQuizSetMachine
}

// NewQuizSetController returns a controller waiting for a setQuizSetKey event.
func NewQuizSetController(opts Options) *QuizSetController {
	return &QuizSetController{
		env:   newEnv(opts),
		state: StateLoadingWaiting,
		ctx:   ControllerContext{QuizSet: domain.EmptyQuizSet()},
	}
}

// Send delivers an event. Once a flow is running, events go to that flow.
func (c *QuizSetController) Send(ctx context.Context, ev Event) {
	c.dispatch(ctx, ev, c.handle)
}

// State returns the current state.
func (c *QuizSetController) State() State {
	var s State
	c.read(func() { s = c.state })
	return s
}

// Context returns a copy of the controller context.
func (c *QuizSetController) Context() ControllerContext {
	var out ControllerContext
	c.read(func() { out = c.copyContext() })
	return out
}

// NewQuizSet returns the running authoring flow, if any.
func (c *QuizSetController) NewQuizSet() *NewQuizSetMachine {
	var m *NewQuizSetMachine
	c.read(func() { m = c.newFlow })
	return m
}

// ExistingQuizSet returns the running guessing flow, if any.
func (c *QuizSetController) ExistingQuizSet() *ExistingQuizSetMachine {
	var m *ExistingQuizSetMachine
	c.read(func() { m = c.existingFlow })
	return m
}

// Wait blocks until background work started by any machine in the tree is done.
func (c *QuizSetController) Wait() {
	c.env.bg.Wait()
}

// Close stops timers held by the running flow.
func (c *QuizSetController) Close() {
	if m := c.NewQuizSet(); m != nil {
		m.Close()
	}
	if m := c.ExistingQuizSet(); m != nil {
		m.Close()
	}
}

func (c *QuizSetController) copyContext() ControllerContext {
	out := c.ctx
	out.QuizSet = c.ctx.QuizSet.Clone()
	return out
}

func (c *QuizSetController) transition(to State) {
	c.state = to
	c.env.observe(Snapshot{Machine: "quizSet", ID: "quizSet", State: c.state, Context: c.copyContext()})
}

func (c *QuizSetController) handle(ctx context.Context, ev Event) {
	switch c.state {
	case StateLoadingWaiting:
		if ev.Type != EventSetQuizSetKey {
			return
		}
		key := strings.TrimSpace(ev.QuizSetKey)
		switch key {
		case NewQuizSetToken:
			c.enterCreatingQuizSet(ctx)
		case "":
			c.enterFetchingPersistedQuizSet(ctx)
		default:
			c.ctx.QuizSet.QuizSetKey = key
			c.enterFetchingQuizSet(ctx)
		}

	case StateConfirmContinue:
		switch ev.Type {
		case EventContinue:
			c.enterNewQuizSet(ctx)
		case EventStartAfresh:
			c.env.clearDraft(ctx)
			c.ctx.QuizSet = domain.EmptyQuizSet()
			c.enterCreatingQuizSet(ctx)
		}

	case StateError:
		if ev.Type == EventRetry {
			c.ctx.Error = ""
			c.enter(ctx, c.history)
		}

	case StateNewQuizSet:
		c.newFlow.Send(ctx, ev)

	case StateExistingQuizSet:
		c.existingFlow.Send(ctx, ev)
	}
}

// enter re-enters a state recorded as history.
func (c *QuizSetController) enter(ctx context.Context, s State) {
	switch s {
	case StateFetchingQuizSet:
		c.enterFetchingQuizSet(ctx)
	case StateFetchingPersistedQuizSet:
		c.enterFetchingPersistedQuizSet(ctx)
	case StateCreatingQuizSet:
		c.enterCreatingQuizSet(ctx)
	default:
		c.transition(StateLoadingWaiting)
	}
}

func (c *QuizSetController) fail(from State, msg string, err error) {
	c.env.log.Warn().Err(err).Str("state", string(from)).Str("quizSetKey", c.ctx.QuizSet.QuizSetKey).Msg(msg)
	c.history = from
	c.ctx.Error = msg
	c.transition(StateError)
}

func (c *QuizSetController) enterFetchingQuizSet(ctx context.Context) {
	c.transition(StateFetchingQuizSet)
	if c.env.Backend == nil {
		c.fail(StateFetchingQuizSet, "failed to load quiz set", errNoBackend)
		return
	}
	key := c.ctx.QuizSet.QuizSetKey
	quizSet, err := c.env.Backend.FetchQuizSet(ctx, key)
	if err != nil {
		c.fail(StateFetchingQuizSet, "failed to load quiz set", err)
		return
	}
	if quizSet.IsFinished() {
		if quizSet.QuizSetKey == "" {
			quizSet.QuizSetKey = key
		}
		c.ctx.QuizSet = quizSet
		c.enterExistingQuizSet(ctx)
		return
	}
	c.enterFetchingPersistedQuizSet(ctx)
}

func (c *QuizSetController) enterFetchingPersistedQuizSet(ctx context.Context) {
	c.transition(StateFetchingPersistedQuizSet)
	draft, ok := c.env.loadDraft(ctx)
	if !ok {
		c.enterCreatingQuizSet(ctx)
		return
	}
	if draft.QuizSetKey != c.ctx.QuizSet.QuizSetKey {
		c.env.Navigator.Redirect(draft.QuizSetKey)
	}
	c.ctx.QuizSet = draft
	c.transition(StateConfirmContinue)
}

func (c *QuizSetController) enterCreatingQuizSet(ctx context.Context) {
	c.transition(StateCreatingQuizSet)
	if c.env.Backend == nil {
		c.fail(StateCreatingQuizSet, "failed to create quiz set", errNoBackend)
		return
	}
	key, err := c.env.Backend.CreateQuizSet(ctx, c.env.Ref)
	if err != nil {
		c.fail(StateCreatingQuizSet, "failed to create quiz set", err)
		return
	}
	quizSet := domain.EmptyQuizSet()
	quizSet.QuizSetKey = key
	quizSet.QuizVersion = c.env.QuizVersion
	quizSet.Ref = c.env.Ref
	c.ctx.QuizSet = quizSet
	c.env.Navigator.Redirect(key)
	c.enterNewQuizSet(ctx)
}

func (c *QuizSetController) enterNewQuizSet(ctx context.Context) {
	c.newFlow = newNewQuizSetMachine(c.env, c.ctx.QuizSet.Clone())
	c.transition(StateNewQuizSet)
	c.newFlow.Send(ctx, internalEvent(eventInit))
}

func (c *QuizSetController) enterExistingQuizSet(ctx context.Context) {
	c.existingFlow = newExistingQuizSetMachine(c.env, c.ctx.QuizSet.Clone())
	c.transition(StateExistingQuizSet)
	c.existingFlow.Send(ctx, internalEvent(eventInit))
}
