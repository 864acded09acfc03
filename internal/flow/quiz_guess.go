package flow

import (
	"context"
	"fmt"

	"caretoplay/internal/domain"
)

// QuizGuess states.
const (
	GuessUnrevealed    State = "unrevealed"
	GuessConfirmGuess  State = "confirmGuess"
	GuessRevealed      State = "revealed"
	GuessRevealedRight State = "revealed.right"
	GuessRevealedWrong State = "revealed.wrong"
)

// QuizGuessContext is the observable context of one guessing question.
type QuizGuessContext struct {
	Index  int         `json:"index"`
	Quiz   domain.Quiz `json:"quiz"`
	Answer int         `json:"-"`
	Choice int         `json:"choice"`
}

// QuizGuessMachine holds a tentative guess, asks for confirmation, then reveals
// whether it matches the owner's answer. next reports the guess to the parent.
type QuizGuessMachine struct {
	mailbox
	env    *env
	parent sender

	state State
	ctx   QuizGuessContext
}

// newQuizGuessMachine builds a guess for the owner's answer. A seeded guess
// (choice >= 0) starts revealed.
func newQuizGuessMachine(e *env, parent sender, index int, quiz domain.Quiz, answer domain.QuizAnswer, seeded int) *QuizGuessMachine {
	if len(answer.Options) > 0 {
		quiz.Options = append([]string(nil), answer.Options...)
	} else {
		quiz.Options = append([]string(nil), quiz.Options...)
	}
	g := &QuizGuessMachine{
		env:    e,
		parent: parent,
		ctx: QuizGuessContext{
			Index:  index,
			Quiz:   quiz,
			Answer: answer.Choice,
			Choice: -1,
		},
	}
	if seeded >= 0 && seeded < len(quiz.Options) {
		g.ctx.Choice = seeded
	}
	if g.hasNotGuessed() {
		g.state = GuessUnrevealed
	} else {
		g.state = g.revealedState()
	}
	return g
}

// Send delivers an event to the question.
func (g *QuizGuessMachine) Send(ctx context.Context, ev Event) {
	g.dispatch(ctx, ev, g.handle)
}

// State returns the current state.
func (g *QuizGuessMachine) State() State {
	var s State
	g.read(func() { s = g.state })
	return s
}

// Context returns a copy of the question context.
func (g *QuizGuessMachine) Context() QuizGuessContext {
	var c QuizGuessContext
	g.read(func() { c = g.copyContext() })
	return c
}

func (g *QuizGuessMachine) copyContext() QuizGuessContext {
	c := g.ctx
	c.Quiz.Options = append([]string(nil), g.ctx.Quiz.Options...)
	return c
}

// revealView exposes the owner's answer only once the guess is revealed.
type revealView struct {
	QuizGuessContext
	Correct *int `json:"answer,omitempty"`
}

func (g *QuizGuessMachine) transition(to State) {
	g.state = to
	view := revealView{QuizGuessContext: g.copyContext()}
	if g.state.Matches(GuessRevealed) {
		answer := g.ctx.Answer
		view.Correct = &answer
	}
	g.env.observe(Snapshot{
		Machine: "quizGuess",
		ID:      fmt.Sprintf("quizGuess:%d", g.ctx.Index),
		State:   g.state,
		Context: view,
	})
}

func (g *QuizGuessMachine) hasNotGuessed() bool {
	return g.ctx.Choice < 0
}

func (g *QuizGuessMachine) revealedState() State {
	if g.ctx.Choice == g.ctx.Answer {
		return GuessRevealedRight
	}
	return GuessRevealedWrong
}

func (g *QuizGuessMachine) validOption(i int) bool {
	return i >= 0 && i < len(g.ctx.Quiz.Options)
}

func (g *QuizGuessMachine) handle(ctx context.Context, ev Event) {
	if ev.Type == eventInit {
		g.transition(g.state)
		return
	}
	switch {
	case g.state == GuessUnrevealed:
		switch ev.Type {
		case EventSelect:
			if g.validOption(ev.Choice) {
				g.ctx.Choice = ev.Choice
				g.transition(GuessUnrevealed)
			}
		case EventSubmit:
			if !g.hasNotGuessed() {
				g.transition(GuessConfirmGuess)
			}
		}
	case g.state == GuessConfirmGuess:
		switch ev.Type {
		case EventConfirm:
			g.transition(g.revealedState())
		case EventCancel:
			g.transition(GuessUnrevealed)
		}
	case g.state.Matches(GuessRevealed):
		if ev.Type == EventNext {
			g.parent.Send(ctx, childEvent(Event{Type: EventGuess, Choice: g.ctx.Choice}))
		}
	}
}
