package flow

import (
	"context"

	"caretoplay/internal/domain"
)

// Flow states shared by the authoring and guessing machines.
const (
	StateShowingStage State = "showingStage"
	StateShowingQuiz  State = "showingQuiz"
	StateOutroduction State = "outroduction"
	StateAskToShare   State = "askToShare"
)

// NewQuizSetMachine states.
const (
	StateAskForPersonalInfo    State = "askForPersonalInfo"
	StateFinishingQuizSet      State = "finishingQuizSet"
	StateFinishingQuizSetError State = "finishingQuizSetError"
	StateAskToSubscribe        State = "askToSubscribe"
)

// NewQuizSetContext is the observable context of the authoring flow.
type NewQuizSetContext struct {
	QuizSet          domain.QuizSet `json:"quizSet"`
	CurrentQuizIndex int            `json:"currentQuizIndex"`
	Stage            domain.Stage   `json:"stage,omitempty"`
	ShareMessage     string         `json:"shareMessage,omitempty"`
	Error            string         `json:"error,omitempty"`
}

// NewQuizSetMachine walks the author through personal info, the staged
// questions, submission, and the subscribe and share prompts. The draft is
// written to the device cache after every mutating step.
type NewQuizSetMachine struct {
	mailbox
	env *env

	state State
	ctx   NewQuizSetContext

	personalInfo *FormMachine
	subscription *FormMachine
	inputs       []*QuizInputMachine

	resumed    bool
	stage stageTimer
}

func newNewQuizSetMachine(e *env, quizSet domain.QuizSet) *NewQuizSetMachine {
	if quizSet.PersonalInfo == nil {
		quizSet.PersonalInfo = domain.PersonalInfo{}
	}
	if quizSet.Status == "" {
		quizSet.Status = domain.StatusNew
	}
	return &NewQuizSetMachine{
		env:   e,
		state: StateAskForPersonalInfo,
		ctx:   NewQuizSetContext{QuizSet: quizSet, CurrentQuizIndex: -1},
	}
}

// NewNewQuizSetMachine builds a standalone authoring flow for quizSet and starts it.
func NewNewQuizSetMachine(ctx context.Context, quizSet domain.QuizSet, opts Options) *NewQuizSetMachine {
	m := newNewQuizSetMachine(newEnv(opts), quizSet.Clone())
	m.Send(ctx, internalEvent(eventInit))
	return m
}

// Send delivers an event. Events the current state does not handle are forwarded
// to the active child (form or question).
func (m *NewQuizSetMachine) Send(ctx context.Context, ev Event) {
	m.dispatch(ctx, ev, m.handle)
}

// State returns the current state.
func (m *NewQuizSetMachine) State() State {
	var s State
	m.read(func() { s = m.state })
	return s
}

// Context returns a copy of the flow context.
func (m *NewQuizSetMachine) Context() NewQuizSetContext {
	var c NewQuizSetContext
	m.read(func() { c = m.copyContext() })
	return c
}

// PersonalInfoForm returns the active personal info form, if any.
func (m *NewQuizSetMachine) PersonalInfoForm() *FormMachine {
	var f *FormMachine
	m.read(func() { f = m.personalInfo })
	return f
}

// SubscriptionForm returns the subscription form once spawned.
func (m *NewQuizSetMachine) SubscriptionForm() *FormMachine {
	var f *FormMachine
	m.read(func() { f = m.subscription })
	return f
}

// CurrentInput returns the question machine for the current index.
func (m *NewQuizSetMachine) CurrentInput() *QuizInputMachine {
	var q *QuizInputMachine
	m.read(func() { q = m.inputAt(m.ctx.CurrentQuizIndex) })
	return q
}

// Wait blocks until background work (page builds, analytics) has finished.
func (m *NewQuizSetMachine) Wait() {
	m.env.bg.Wait()
}

// Close stops pending stage timers.
func (m *NewQuizSetMachine) Close() {
	m.read(m.stage.stop)
}

func (m *NewQuizSetMachine) copyContext() NewQuizSetContext {
	c := m.ctx
	c.QuizSet = m.ctx.QuizSet.Clone()
	return c
}

func (m *NewQuizSetMachine) transition(to State) {
	if m.state == StateShowingStage && to != StateShowingStage {
		m.stage.stop()
	}
	m.state = to
	m.env.observe(Snapshot{Machine: "newQuizSet", ID: "newQuizSet", State: m.state, Context: m.copyContext()})
}

func (m *NewQuizSetMachine) inputAt(i int) *QuizInputMachine {
	if i < 0 || i >= len(m.inputs) {
		return nil
	}
	return m.inputs[i]
}

func (m *NewQuizSetMachine) handle(ctx context.Context, ev Event) {
	if ev.Type == eventInit {
		m.enterAskForPersonalInfo(ctx)
		return
	}

	switch {
	case m.state == StateAskForPersonalInfo:
		if ev.Type == eventFormDone && ev.fromChild {
			m.assignPersonalInfo(ev.Values)
			m.env.persistDraft(ctx, m.ctx.QuizSet)
			if !m.resumed {
				m.resumed = true
				m.ctx.CurrentQuizIndex = m.resumeIndex() - 1
			}
			m.enterShowingStage()
			return
		}
		m.forward(ctx, m.personalInfo, ev)

	case m.state == StateShowingStage:
		switch ev.Type {
		case EventNext:
			m.ctx.CurrentQuizIndex++
			m.enterShowingQuiz(ctx)
		case eventStageElapsed:
			if m.stage.current(ev) {
				m.ctx.CurrentQuizIndex++
				m.enterShowingQuiz(ctx)
			}
		case EventBack:
			if m.ctx.CurrentQuizIndex >= 0 {
				m.enterShowingQuiz(ctx)
			} else {
				m.enterAskForPersonalInfo(ctx)
			}
		}

	case m.state == StateShowingQuiz:
		switch {
		case ev.Type == EventAnswer && ev.fromChild:
			m.assignAnswer(ev.Choice, ev.Options)
			m.env.persistDraft(ctx, m.ctx.QuizSet)
			m.advance(ctx)
		case ev.Type == EventBack:
			i := m.ctx.CurrentQuizIndex
			m.ctx.CurrentQuizIndex--
			if m.env.Bank.HasPreviousQuiz(i) && m.env.Bank.SameStage(i-1, i) {
				m.enterShowingQuiz(ctx)
			} else {
				m.enterAskForPersonalInfo(ctx)
			}
		default:
			if input := m.inputAt(m.ctx.CurrentQuizIndex); input != nil {
				m.forward(ctx, input, ev)
			}
		}

	case m.state == StateFinishingQuizSetError:
		if ev.Type == EventRetry {
			m.enterFinishingQuizSet(ctx)
		}

	case m.state == StateOutroduction:
		if ev.Type == EventNext {
			m.enterAskToSubscribe(ctx)
		}

	case m.state == StateAskToSubscribe:
		switch {
		case ev.Type == EventNext && ev.fromChild:
			m.assignPersonalInfo(ev.Values)
			m.enterAskToShare()
		case ev.Type == EventSkip:
			m.enterAskToShare()
		default:
			m.forward(ctx, m.subscription, ev)
		}

	case m.state.Matches(StateAskToShare):
		if ev.Type == EventShare && m.state != StateAskToShare+"."+ShareSharing {
			m.share(ctx)
		}
	}
}

func (m *NewQuizSetMachine) forward(ctx context.Context, child sender, ev Event) {
	if ev.fromChild {
		return
	}
	child.Send(ctx, ev)
}

// advance picks the next target after an answer.
func (m *NewQuizSetMachine) advance(ctx context.Context) {
	i := m.ctx.CurrentQuizIndex
	switch {
	case m.env.Bank.ShouldShowStage(i):
		m.enterShowingStage()
	case m.env.Bank.HasNextQuiz(i):
		m.ctx.CurrentQuizIndex++
		m.enterShowingQuiz(ctx)
	default:
		m.enterFinishingQuizSet(ctx)
	}
}

// resumeIndex is the first question without a saved choice.
func (m *NewQuizSetMachine) resumeIndex() int {
	for i := range m.env.Bank {
		if i >= len(m.ctx.QuizSet.Quizzes) || m.ctx.QuizSet.Quizzes[i].Choice < 0 {
			return i
		}
	}
	return len(m.env.Bank) - 1
}

func (m *NewQuizSetMachine) assignPersonalInfo(values domain.PersonalInfo) {
	for k, v := range values {
		if k == "name" {
			m.ctx.QuizSet.Name = v
			continue
		}
		m.ctx.QuizSet.PersonalInfo[k] = v
	}
}

// assignAnswer writes the answer at the current index, padding earlier slots so
// quizzes stay aligned with the question bank.
func (m *NewQuizSetMachine) assignAnswer(choice int, options []string) {
	i := m.ctx.CurrentQuizIndex
	for len(m.ctx.QuizSet.Quizzes) <= i {
		n := len(m.ctx.QuizSet.Quizzes)
		m.ctx.QuizSet.Quizzes = append(m.ctx.QuizSet.Quizzes, domain.QuizAnswer{
			Choice:  -1,
			Options: append([]string(nil), m.env.Bank[n].Options...),
		})
	}
	m.ctx.QuizSet.Quizzes[i] = domain.QuizAnswer{Choice: choice, Options: append([]string(nil), options...)}
}

func (m *NewQuizSetMachine) enterAskForPersonalInfo(ctx context.Context) {
	initial := domain.PersonalInfo{"name": m.ctx.QuizSet.Name}
	for k, v := range m.ctx.QuizSet.PersonalInfo {
		initial[k] = v
	}
	m.personalInfo = newFormMachine(m.env, "personalInfo", PersonalInfoSchema, initial, m, eventFormDone)
	m.transition(StateAskForPersonalInfo)
	m.personalInfo.Send(ctx, internalEvent(eventInit))
}

func (m *NewQuizSetMachine) enterShowingStage() {
	m.ctx.Stage = m.env.Bank.StageAt(m.ctx.CurrentQuizIndex + 1)
	m.transition(StateShowingStage)
	m.stage.start(m.env.StageDelay, m)
}

func (m *NewQuizSetMachine) enterShowingQuiz(ctx context.Context) {
	i := m.ctx.CurrentQuizIndex
	if m.inputAt(i) == nil {
		for len(m.inputs) <= i {
			m.inputs = append(m.inputs, nil)
		}
		var saved *domain.QuizAnswer
		if i < len(m.ctx.QuizSet.Quizzes) {
			answer := m.ctx.QuizSet.Quizzes[i]
			saved = &answer
		}
		m.inputs[i] = newQuizInputMachine(m.env, m, i, m.env.Bank[i], saved)
	}
	m.ctx.Stage = m.env.Bank.StageAt(i)
	m.transition(StateShowingQuiz)
	m.inputs[i].Send(ctx, internalEvent(eventInit))
}

func (m *NewQuizSetMachine) enterFinishingQuizSet(ctx context.Context) {
	m.ctx.Error = ""
	m.transition(StateFinishingQuizSet)

	payload := m.ctx.QuizSet.Clone()
	payload.Status = domain.StatusFinished
	payload.QuizVersion = m.env.QuizVersion

	err := errNoBackend
	if m.env.Backend != nil {
		err = m.env.Backend.SaveQuizSetData(ctx, payload)
	}
	if err != nil {
		m.env.log.Warn().Err(err).Str("quizSetKey", payload.QuizSetKey).Msg("finish quiz set")
		m.ctx.Error = "We could not save your answers. Please try again."
		m.transition(StateFinishingQuizSetError)
		return
	}

	m.ctx.QuizSet = payload
	m.env.clearDraft(ctx)
	m.env.markFinished(ctx, payload.QuizSetKey)
	key := payload.QuizSetKey
	m.env.background("buildPage", func(ctx context.Context) error {
		return m.env.Backend.BuildPage(ctx, key)
	})
	m.transition(StateOutroduction)
}

func (m *NewQuizSetMachine) enterAskToSubscribe(ctx context.Context) {
	key := m.ctx.QuizSet.QuizSetKey
	name := m.ctx.QuizSet.Name
	known := domain.PersonalInfo{}
	for k, v := range m.ctx.QuizSet.PersonalInfo {
		known[k] = v
	}
	form := newFormMachine(m.env, "subscription", SubscriptionSchema, known, m, EventNext)
	form.submit = func(ctx context.Context, values domain.PersonalInfo) error {
		if m.env.Backend == nil {
			return errNoBackend
		}
		info := domain.PersonalInfo{}
		for k, v := range known {
			info[k] = v
		}
		for k, v := range values {
			info[k] = v
		}
		return m.env.Backend.Subscribe(ctx, key, name, info)
	}
	m.subscription = form
	m.transition(StateAskToSubscribe)
	form.Send(ctx, internalEvent(eventInit))
}

func (m *NewQuizSetMachine) enterAskToShare() {
	m.ctx.ShareMessage = ""
	m.transition(StateAskToShare + "." + ShareIdle)
}

func (m *NewQuizSetMachine) share(ctx context.Context) {
	key := m.ctx.QuizSet.QuizSetKey
	req := ShareRequest{
		Title: "Care to Play?",
		Text:  "How well do you know " + m.ctx.QuizSet.Name + "? Take the quiz and find out.",
		URL:   m.env.shareURL(key),
	}
	m.env.runShare(ctx, key, req, func(sub State, message string) {
		m.ctx.ShareMessage = message
		m.transition(StateAskToShare + "." + sub)
	})
}
