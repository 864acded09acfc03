package flow

import (
	"context"
	"fmt"
	"strings"

	"caretoplay/internal/domain"
)

// QuizInput states.
const (
	InputIdle    State = "idle"
	InputEditing State = "editing"
	InputError   State = "error"
)

// QuizInputContext is the observable context of one authoring question.
type QuizInputContext struct {
	Index             int         `json:"index"`
	Quiz              domain.Quiz `json:"quiz"`
	Choice            int         `json:"choice"`
	OptionIndexToEdit int         `json:"optionIndexToEdit"`
	DraftOptionValue  string      `json:"draftOptionValue"`
	Error             string      `json:"error,omitempty"`
}

// QuizInputMachine lets the author pick, and optionally reword, an option. A
// confirmed choice is sent to the parent as an answer event.
type QuizInputMachine struct {
	mailbox
	env    *env
	parent sender

	state State
	ctx   QuizInputContext
}

// newQuizInputMachine seeds the question with a previously saved answer, keeping
// canned options wherever the saved copy is blank.
func newQuizInputMachine(e *env, parent sender, index int, quiz domain.Quiz, saved *domain.QuizAnswer) *QuizInputMachine {
	options := append([]string(nil), quiz.Options...)
	choice := -1
	if saved != nil {
		for i := range options {
			if i < len(saved.Options) && strings.TrimSpace(saved.Options[i]) != "" {
				options[i] = saved.Options[i]
			}
		}
		if saved.Choice >= 0 && saved.Choice < len(options) {
			choice = saved.Choice
		}
	}
	quiz.Options = options
	return &QuizInputMachine{
		env:    e,
		parent: parent,
		state:  InputIdle,
		ctx: QuizInputContext{
			Index:             index,
			Quiz:              quiz,
			Choice:            choice,
			OptionIndexToEdit: -1,
		},
	}
}

// Send delivers an event to the question.
func (q *QuizInputMachine) Send(ctx context.Context, ev Event) {
	q.dispatch(ctx, ev, q.handle)
}

// State returns the current state.
func (q *QuizInputMachine) State() State {
	var s State
	q.read(func() { s = q.state })
	return s
}

// Context returns a copy of the question context.
func (q *QuizInputMachine) Context() QuizInputContext {
	var c QuizInputContext
	q.read(func() { c = q.copyContext() })
	return c
}

func (q *QuizInputMachine) copyContext() QuizInputContext {
	c := q.ctx
	c.Quiz.Options = append([]string(nil), q.ctx.Quiz.Options...)
	return c
}

func (q *QuizInputMachine) transition(to State) {
	q.state = to
	q.env.observe(Snapshot{
		Machine: "quizInput",
		ID:      fmt.Sprintf("quizInput:%d", q.ctx.Index),
		State:   q.state,
		Context: q.copyContext(),
	})
}

func (q *QuizInputMachine) validOption(i int) bool {
	return i >= 0 && i < len(q.ctx.Quiz.Options)
}

func (q *QuizInputMachine) handle(ctx context.Context, ev Event) {
	switch q.state {
	case InputIdle, InputError:
		switch ev.Type {
		case eventInit:
			q.transition(q.state)
		case EventSelect:
			if q.validOption(ev.Choice) {
				q.ctx.Choice = ev.Choice
				q.ctx.Error = ""
				q.transition(InputIdle)
			}
		case EventEdit:
			if q.ctx.Quiz.CanEdit && q.validOption(ev.OptionIndex) {
				q.ctx.OptionIndexToEdit = ev.OptionIndex
				q.ctx.DraftOptionValue = q.ctx.Quiz.Options[ev.OptionIndex]
				q.ctx.Error = ""
				q.transition(InputEditing)
			}
		case EventAnswer:
			if q.validOption(ev.Choice) {
				q.ctx.Choice = ev.Choice
			}
			q.submit(ctx)
		case EventSubmit:
			q.submit(ctx)
		}
	case InputEditing:
		switch ev.Type {
		case EventInput:
			q.ctx.DraftOptionValue = ev.Value
			q.ctx.Error = ""
			q.transition(InputEditing)
		case EventConfirm:
			draft := strings.TrimSpace(q.ctx.DraftOptionValue)
			if draft == "" {
				q.ctx.Error = "Option cannot be empty."
				q.transition(InputEditing)
				return
			}
			q.ctx.Quiz.Options[q.ctx.OptionIndexToEdit] = draft
			q.clearEdit()
			q.transition(InputIdle)
		case EventCancel:
			q.clearEdit()
			q.transition(InputIdle)
		}
	}
}

func (q *QuizInputMachine) clearEdit() {
	q.ctx.OptionIndexToEdit = -1
	q.ctx.DraftOptionValue = ""
	q.ctx.Error = ""
}

func (q *QuizInputMachine) submit(ctx context.Context) {
	if !q.validOption(q.ctx.Choice) {
		q.ctx.Error = "Please select an option."
		q.transition(InputError)
		return
	}
	q.ctx.Error = ""
	q.transition(InputIdle)
	q.parent.Send(ctx, childEvent(Event{
		Type:    EventAnswer,
		Choice:  q.ctx.Choice,
		Options: append([]string(nil), q.ctx.Quiz.Options...),
	}))
}
