package flow

import (
	"context"

	"caretoplay/internal/domain"
)

// ExistingQuizSetMachine states.
const (
	StateIntroduction           State = "introduction"
	StateFetchingPersistedGuess State = "fetchingPersistedGuess"
	StateConfirmReview          State = "confirmReview"
	StateCompletingQuizSet      State = "completingQuizSet"
	StateCompletingQuizSetError State = "completingQuizSetError"
)

// ExistingQuizSetContext is the observable context of the guessing flow.
// PersistedGuesses is aligned with QuizSet.Quizzes; -1 marks an unguessed question.
type ExistingQuizSetContext struct {
	QuizSet          domain.QuizSet `json:"quizSet"`
	CurrentQuizIndex int            `json:"currentQuizIndex"`
	PersistedGuesses []int          `json:"persistedGuesses"`
	Score            int            `json:"score"`
	Stage            domain.Stage   `json:"stage,omitempty"`
	ShareMessage     string         `json:"shareMessage,omitempty"`
	Error            string         `json:"error,omitempty"`
}

// ExistingQuizSetMachine lets a visitor guess a finished quiz set. The owner's
// quiz set is never modified; guesses live only in the device cache.
type ExistingQuizSetMachine struct {
	mailbox
	env *env

	state State
	ctx   ExistingQuizSetContext

	guesses []*QuizGuessMachine

	stage stageTimer
}

func newExistingQuizSetMachine(e *env, quizSet domain.QuizSet) *ExistingQuizSetMachine {
	return &ExistingQuizSetMachine{
		env:   e,
		state: StateIntroduction,
		ctx: ExistingQuizSetContext{
			QuizSet:          quizSet,
			CurrentQuizIndex: -1,
			PersistedGuesses: []int{},
		},
	}
}

// NewExistingQuizSetMachine builds a standalone guessing flow for a finished quiz
// set and starts it.
func NewExistingQuizSetMachine(ctx context.Context, quizSet domain.QuizSet, opts Options) *ExistingQuizSetMachine {
	m := newExistingQuizSetMachine(newEnv(opts), quizSet.Clone())
	m.Send(ctx, internalEvent(eventInit))
	return m
}

// Send delivers an event, forwarding unhandled ones to the current question.
func (m *ExistingQuizSetMachine) Send(ctx context.Context, ev Event) {
	m.dispatch(ctx, ev, m.handle)
}

// State returns the current state.
func (m *ExistingQuizSetMachine) State() State {
	var s State
	m.read(func() { s = m.state })
	return s
}

// Context returns a copy of the flow context.
func (m *ExistingQuizSetMachine) Context() ExistingQuizSetContext {
	var c ExistingQuizSetContext
	m.read(func() { c = m.copyContext() })
	return c
}

// CurrentGuess returns the question machine for the current index.
func (m *ExistingQuizSetMachine) CurrentGuess() *QuizGuessMachine {
	var g *QuizGuessMachine
	m.read(func() { g = m.guessAt(m.ctx.CurrentQuizIndex) })
	return g
}

// Wait blocks until background analytics have finished.
func (m *ExistingQuizSetMachine) Wait() {
	m.env.bg.Wait()
}

// Close stops pending stage timers.
func (m *ExistingQuizSetMachine) Close() {
	m.read(m.stage.stop)
}

func (m *ExistingQuizSetMachine) copyContext() ExistingQuizSetContext {
	c := m.ctx
	c.QuizSet = m.ctx.QuizSet.Clone()
	c.PersistedGuesses = append([]int{}, m.ctx.PersistedGuesses...)
	return c
}

func (m *ExistingQuizSetMachine) transition(to State) {
	if m.state == StateShowingStage && to != StateShowingStage {
		m.stage.stop()
	}
	m.state = to
	m.env.observe(Snapshot{Machine: "existingQuizSet", ID: "existingQuizSet", State: m.state, Context: m.copyContext()})
}

func (m *ExistingQuizSetMachine) guessAt(i int) *QuizGuessMachine {
	if i < 0 || i >= len(m.guesses) {
		return nil
	}
	return m.guesses[i]
}

func (m *ExistingQuizSetMachine) handle(ctx context.Context, ev Event) {
	if ev.Type == eventInit {
		m.transition(StateIntroduction)
		return
	}

	switch {
	case m.state == StateIntroduction:
		if ev.Type == EventNext {
			m.enterFetchingPersistedGuess(ctx)
		}

	case m.state == StateConfirmReview:
		switch ev.Type {
		case EventReview:
			m.env.snap(domain.SnapReview, m.ctx.QuizSet.QuizSetKey)
			m.enterShowingStage()
		case EventStartAfresh:
			m.ctx.PersistedGuesses = []int{}
			m.ctx.Score = 0
			m.ctx.CurrentQuizIndex = -1
			m.guesses = nil
			m.env.persistGuesses(ctx, m.ctx.QuizSet.QuizSetKey, m.ctx.PersistedGuesses)
			m.enterShowingStage()
		}

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
				m.transition(StateIntroduction)
			}
		}

	case m.state == StateShowingQuiz:
		switch {
		case ev.Type == EventGuess && ev.fromChild:
			m.assignGuess(ev.Choice)
			m.env.persistGuesses(ctx, m.ctx.QuizSet.QuizSetKey, m.ctx.PersistedGuesses)
			m.advance(ctx)
		case ev.Type == EventBack:
			i := m.ctx.CurrentQuizIndex
			m.ctx.CurrentQuizIndex--
			if m.env.Bank.HasPreviousQuiz(i) && m.env.Bank.SameStage(i-1, i) {
				m.enterShowingQuiz(ctx)
			} else {
				m.transition(StateIntroduction)
			}
		case !ev.fromChild:
			if g := m.guessAt(m.ctx.CurrentQuizIndex); g != nil {
				g.Send(ctx, ev)
			}
		}

	case m.state == StateCompletingQuizSetError:
		if ev.Type == EventRetry {
			m.enterCompletingQuizSet(ctx)
		}

	case m.state == StateOutroduction:
		if ev.Type == EventNext {
			m.ctx.ShareMessage = ""
			m.transition(StateAskToShare + "." + ShareAsking)
		}

	case m.state.Matches(StateAskToShare):
		if ev.Type == EventShare && m.state != StateAskToShare+"."+ShareSharing {
			m.share(ctx)
		}
	}
}

func (m *ExistingQuizSetMachine) advance(ctx context.Context) {
	i := m.ctx.CurrentQuizIndex
	switch {
	case m.env.Bank.ShouldShowStage(i):
		m.enterShowingStage()
	case m.env.Bank.HasNextQuiz(i):
		m.ctx.CurrentQuizIndex++
		m.enterShowingQuiz(ctx)
	default:
		m.enterCompletingQuizSet(ctx)
	}
}

func (m *ExistingQuizSetMachine) assignGuess(choice int) {
	i := m.ctx.CurrentQuizIndex
	for len(m.ctx.PersistedGuesses) <= i {
		m.ctx.PersistedGuesses = append(m.ctx.PersistedGuesses, -1)
	}
	m.ctx.PersistedGuesses[i] = choice
	m.ctx.Score = m.score()
}

func (m *ExistingQuizSetMachine) score() int {
	n := 0
	for i, g := range m.ctx.PersistedGuesses {
		if g >= 0 && i < len(m.ctx.QuizSet.Quizzes) && m.ctx.QuizSet.Quizzes[i].Choice == g {
			n++
		}
	}
	return n
}

func (m *ExistingQuizSetMachine) enterFetchingPersistedGuess(ctx context.Context) {
	m.transition(StateFetchingPersistedGuess)
	guesses := m.env.loadGuesses(ctx, m.ctx.QuizSet.QuizSetKey)
	if len(guesses) == 0 {
		m.enterShowingStage()
		return
	}
	m.ctx.PersistedGuesses = guesses
	m.ctx.Score = m.score()
	m.guesses = nil
	m.transition(StateConfirmReview)
}

func (m *ExistingQuizSetMachine) enterShowingStage() {
	m.ctx.Stage = m.env.Bank.StageAt(m.ctx.CurrentQuizIndex + 1)
	m.transition(StateShowingStage)
	m.stage.start(m.env.StageDelay, m)
}

func (m *ExistingQuizSetMachine) enterShowingQuiz(ctx context.Context) {
	i := m.ctx.CurrentQuizIndex
	if m.guessAt(i) == nil {
		for len(m.guesses) <= i {
			m.guesses = append(m.guesses, nil)
		}
		var answer domain.QuizAnswer
		if i < len(m.ctx.QuizSet.Quizzes) {
			answer = m.ctx.QuizSet.Quizzes[i]
		} else {
			answer = domain.QuizAnswer{Choice: -1}
		}
		seeded := -1
		if i < len(m.ctx.PersistedGuesses) {
			seeded = m.ctx.PersistedGuesses[i]
		}
		quiz := m.env.Bank[i]
		quiz.Options = append([]string(nil), quiz.Options...)
		answer.Options = append([]string(nil), answer.Options...)
		m.guesses[i] = newQuizGuessMachine(m.env, m, i, quiz, answer, seeded)
	}
	m.ctx.Stage = m.env.Bank.StageAt(i)
	m.transition(StateShowingQuiz)
	m.guesses[i].Send(ctx, internalEvent(eventInit))
}

func (m *ExistingQuizSetMachine) enterCompletingQuizSet(ctx context.Context) {
	m.ctx.Error = ""
	m.transition(StateCompletingQuizSet)
	key := m.ctx.QuizSet.QuizSetKey
	m.env.persistGuesses(ctx, key, m.ctx.PersistedGuesses)

	err := errNoBackend
	if m.env.Backend != nil {
		err = m.env.Backend.Snap(ctx, domain.SnapComplete, key)
	}
	if err != nil {
		m.env.log.Warn().Err(err).Str("quizSetKey", key).Msg("complete quiz set")
		m.ctx.Error = "We could not record your result. Please try again."
		m.transition(StateCompletingQuizSetError)
		return
	}
	m.transition(StateOutroduction)
}

func (m *ExistingQuizSetMachine) share(ctx context.Context) {
	key := m.ctx.QuizSet.QuizSetKey
	req := ShareRequest{
		Title: "Care to Play?",
		Text:  "I know " + m.ctx.QuizSet.Name + " better than you do. Prove me wrong.",
		URL:   m.env.shareURL(key),
	}
	m.env.runShare(ctx, key, req, func(sub State, message string) {
		m.ctx.ShareMessage = message
		m.transition(StateAskToShare + "." + sub)
	})
}
