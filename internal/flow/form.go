package flow

import (
	"context"
	"strings"

	"caretoplay/internal/domain"
)

// Rule validates one field value and returns an error message, or "" when valid.
type Rule func(value string) string

// FieldSpec lists the rules applied to a form field.
type FieldSpec struct {
	Name  string
	Rules []Rule
}

// Schema is the ordered list of validated fields of a form.
type Schema []FieldSpec

// Validate returns field-level messages for every failing field.
func (s Schema) Validate(values domain.PersonalInfo) map[string][]string {
	errs := map[string][]string{}
	for _, field := range s {
		if msgs := field.validate(values[field.Name]); len(msgs) > 0 {
			errs[field.Name] = msgs
		}
	}
	return errs
}

func (s Schema) field(name string) (FieldSpec, bool) {
	for _, f := range s {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

func (f FieldSpec) validate(value string) []string {
	var msgs []string
	for _, rule := range f.Rules {
		if msg := rule(value); msg != "" {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

// Required rejects blank values.
func Required(msg string) Rule {
	return func(v string) string {
		if strings.TrimSpace(v) == "" {
			return msg
		}
		return ""
	}
}

// OneOf rejects non-blank values outside allowed.
func OneOf(msg string, allowed ...string) Rule {
	return func(v string) string {
		if v == "" {
			return ""
		}
		for _, a := range allowed {
			if v == a {
				return ""
			}
		}
		return msg
	}
}

// Email rejects non-blank values that are not a bare email address.
func Email(msg string) Rule {
	return func(v string) string {
		v = strings.TrimSpace(v)
		if v == "" {
			return ""
		}
		if !domain.ValidEmail(v) {
			return msg
		}
		return ""
	}
}

// Checked requires a checkbox value of "true".
func Checked(msg string) Rule {
	return func(v string) string {
		if v != "true" {
			return msg
		}
		return ""
	}
}

var (
	Ages = []string{
		"< 20", "20 - 25", "26 - 30", "31 - 35", "36 - 40", "41 - 45",
		"46 - 50", "51 - 55", "56 - 60", "61 - 65", "> 65",
	}
	MaritalStatuses = []string{"Single", "Married", "Divorced", "Widowed"}
)

// PersonalInfoSchema validates the author's personal info.
var PersonalInfoSchema = Schema{
	{Name: "name", Rules: []Rule{Required("Please enter your name.")}},
	{Name: "age", Rules: []Rule{
		Required("Please select your age."),
		OneOf("Please select your age.", Ages...),
	}},
}

// SubscriptionSchema validates the lucky draw subscription.
var SubscriptionSchema = Schema{
	{Name: "email", Rules: []Rule{
		Required("Please enter your email."),
		Email("Please enter a valid email."),
	}},
	{Name: "maritalStatus", Rules: []Rule{
		Required("Please select your marital status."),
		OneOf("Please select your marital status.", MaritalStatuses...),
	}},
	{Name: "haveChildren", Rules: []Rule{
		Required("Please tell us if you have children."),
		OneOf("Please tell us if you have children.", "Yes", "No"),
	}},
	{Name: "agreedToPDPA", Rules: []Rule{Checked("Please check PDPA box.")}},
}

// Form states.
const (
	FormInputting       State = "inputting"
	FormSubmitting      State = "submitting"
	FormSubmitted       State = "submitted"
	FormSubmittingError State = "submittingError"
)

// FormContext is the observable context of a form.
type FormContext struct {
	Values domain.PersonalInfo `json:"fieldValues"`
	Errors map[string][]string `json:"fieldErrors"`
	Error  string              `json:"error,omitempty"`
}

type sender interface {
	Send(ctx context.Context, ev Event)
}

// FormMachine collects and validates fields, optionally submits them, and reports
// the values to its parent with doneType once submitted.
type FormMachine struct {
	mailbox
	env *env
	id  string

	schema   Schema
	submit   func(ctx context.Context, values domain.PersonalInfo) error
	parent   sender
	doneType EventType

	state     State
	ctx       FormContext
	attempted bool
}

func newFormMachine(e *env, id string, schema Schema, initial domain.PersonalInfo, parent sender, doneType EventType) *FormMachine {
	values := domain.PersonalInfo{}
	for _, f := range schema {
		values[f.Name] = initial[f.Name]
	}
	return &FormMachine{
		env:      e,
		id:       id,
		schema:   schema,
		parent:   parent,
		doneType: doneType,
		state:    FormInputting,
		ctx:      FormContext{Values: values, Errors: map[string][]string{}},
	}
}

// Send delivers an event to the form.
func (f *FormMachine) Send(ctx context.Context, ev Event) {
	f.dispatch(ctx, ev, f.handle)
}

// State returns the current state.
func (f *FormMachine) State() State {
	var s State
	f.read(func() { s = f.state })
	return s
}

// Context returns a copy of the form context.
func (f *FormMachine) Context() FormContext {
	var c FormContext
	f.read(func() { c = f.copyContext() })
	return c
}

func (f *FormMachine) copyContext() FormContext {
	c := FormContext{Values: domain.PersonalInfo{}, Errors: map[string][]string{}, Error: f.ctx.Error}
	for k, v := range f.ctx.Values {
		c.Values[k] = v
	}
	for k, v := range f.ctx.Errors {
		c.Errors[k] = append([]string(nil), v...)
	}
	return c
}

func (f *FormMachine) snapshot() Snapshot {
	return Snapshot{Machine: "form", ID: f.id, State: f.state, Context: f.copyContext()}
}

func (f *FormMachine) transition(to State) {
	f.state = to
	f.env.observe(f.snapshot())
}

func (f *FormMachine) handle(ctx context.Context, ev Event) {
	switch f.state {
	case FormInputting:
		switch ev.Type {
		case eventInit:
			f.transition(FormInputting)
		case EventChange:
			f.change(ev)
		case EventSubmit:
			errs := f.schema.Validate(f.ctx.Values)
			f.attempted = true
			f.ctx.Errors = errs
			if len(errs) > 0 {
				f.transition(FormInputting)
				return
			}
			f.invokeSubmit(ctx)
		}
	case FormSubmittingError:
		switch ev.Type {
		case EventRetry:
			f.invokeSubmit(ctx)
		case EventChange:
			f.ctx.Error = ""
			f.state = FormInputting
			f.change(ev)
		}
	}
}

func (f *FormMachine) change(ev Event) {
	spec, ok := f.schema.field(ev.Field)
	if !ok {
		return
	}
	f.ctx.Values[ev.Field] = ev.Value
	if f.attempted {
		if msgs := spec.validate(ev.Value); len(msgs) > 0 {
			f.ctx.Errors[ev.Field] = msgs
		} else {
			delete(f.ctx.Errors, ev.Field)
		}
	}
	f.transition(f.state)
}

func (f *FormMachine) invokeSubmit(ctx context.Context) {
	values := f.copyContext().Values
	if f.submit != nil {
		f.ctx.Error = ""
		f.transition(FormSubmitting)
		if err := f.submit(ctx, values); err != nil {
			f.env.log.Warn().Err(err).Str("form", f.id).Msg("form submission failed")
			f.ctx.Error = "Something went wrong. Please try again."
			f.transition(FormSubmittingError)
			return
		}
	}
	f.transition(FormSubmitted)
	if f.parent != nil {
		f.parent.Send(ctx, childEvent(Event{Type: f.doneType, Values: values}))
	}
}
