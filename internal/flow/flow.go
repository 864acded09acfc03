// Package flow holds the quiz-taking state machines: the quiz set controller, the
// authoring and guessing flows, and the per-question and form child machines.
//
// Every machine is an actor with its own mailbox. Events are handled one at a time
// to completion; events sent while a machine is busy (for example a child reporting
// an answer to its parent) are queued and handled in order.
package flow

import (
	"context"
	"errors"
	"sync"
	"time"

	"caretoplay/internal/domain"
	"github.com/rs/zerolog"
)

// Device cache slots.
const (
	PersistedQuizSetKey = "ctp_persisted"
	FinishedQuizSetsKey = "ctp_finished"
	PersistedGuessesKey = "ctp_guesses"
)

// NewQuizSetToken is the reserved quiz set key that always starts a fresh quiz set.
const NewQuizSetToken = "new"

const backgroundTimeout = 10 * time.Second

// Backend is the remote side of the flows.
type Backend interface {
	FetchQuizSet(ctx context.Context, quizSetKey string) (domain.QuizSet, error)
	CreateQuizSet(ctx context.Context, ref string) (string, error)
	SaveQuizSetData(ctx context.Context, quizSet domain.QuizSet) error
	BuildPage(ctx context.Context, quizSetKey string) error
	Subscribe(ctx context.Context, quizSetKey, name string, info domain.PersonalInfo) error
	Snap(ctx context.Context, t domain.SnapType, quizSetKey string) error
}

// DeviceCache is best-effort storage local to one device.
// Get reports false when the key is absent.
type DeviceCache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Del(ctx context.Context, key string) error
}

// Navigator moves the device to another quiz set page.
type Navigator interface {
	Redirect(quizSetKey string)
}

// ShareRequest is what gets handed to the native share sheet.
type ShareRequest struct {
	Title string `json:"title"`
	Text  string `json:"text"`
	URL   string `json:"url"`
}

// Sharer opens the platform share sheet.
type Sharer interface {
	Share(ctx context.Context, req ShareRequest) error
}

// Clipboard copies a link for the user when sharing is not possible.
type Clipboard interface {
	CopyLink(ctx context.Context, url string) error
}

// Share failure names reported by the native share capability.
const (
	ShareUnsupported   = "Unsupported"
	ShareInternalError = "InternalError"
	ShareTimeout       = "ShareTimeout"
)

// ShareError is a failed native share, discriminated by Name.
type ShareError struct {
	Name    string
	Message string
}

func (e *ShareError) Error() string {
	if e.Message == "" {
		return "share failed: " + e.Name
	}
	return "share failed: " + e.Name + ": " + e.Message
}

// Options wires collaborators into a tree of machines. A controller passes its
// options down to every machine it spawns.
type Options struct {
	Bank        domain.QuestionBank
	QuizVersion domain.QuizVersion

	Backend   Backend
	Cache     DeviceCache
	Navigator Navigator
	Sharer    Sharer
	Clipboard Clipboard

	// ShareBaseURL prefixes /q/{quizSetKey} in shared links.
	ShareBaseURL string
	// Ref is stored on quiz sets created by this device.
	Ref string
	// StageDelay auto-advances stage screens; zero waits for a next event.
	StageDelay time.Duration
	// OnTransition observes every machine in the tree. It runs on the machine's
	// processing path and must not block or call back into the machine.
	OnTransition func(Snapshot)
	Logger       *zerolog.Logger
}

type env struct {
	Options
	log zerolog.Logger
	bg  *sync.WaitGroup
}

func newEnv(opts Options) *env {
	if opts.QuizVersion == "" {
		opts.QuizVersion = domain.CurrentQuizVersion
	}
	if opts.Bank == nil {
		opts.Bank = domain.Quizzes[opts.QuizVersion]
	}
	if opts.Cache == nil {
		opts.Cache = nopCache{}
	}
	if opts.Navigator == nil {
		opts.Navigator = nopNavigator{}
	}
	if opts.Sharer == nil {
		opts.Sharer = unsupportedSharer{}
	}
	if opts.Clipboard == nil {
		opts.Clipboard = nopClipboard{}
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &env{Options: opts, log: logger, bg: &sync.WaitGroup{}}
}

func (e *env) observe(s Snapshot) {
	if e.OnTransition != nil {
		e.OnTransition(s)
	}
}

func (e *env) shareURL(quizSetKey string) string {
	return e.ShareBaseURL + "/q/" + quizSetKey
}

// background runs fn detached from the caller's context. Failures are logged only.
func (e *env) background(task string, fn func(ctx context.Context) error) {
	e.bg.Add(1)
	go func() {
		defer e.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			e.log.Warn().Err(err).Str("task", task).Msg("background task failed")
		}
	}()
}

func (e *env) snap(t domain.SnapType, quizSetKey string) {
	if e.Backend == nil {
		return
	}
	e.background("snap:"+string(t), func(ctx context.Context) error {
		return e.Backend.Snap(ctx, t, quizSetKey)
	})
}

var errNoBackend = errors.New("flow: no backend configured")

type nopCache struct{}

func (nopCache) Get(context.Context, string, any) (bool, error) { return false, nil }
func (nopCache) Set(context.Context, string, any) error         { return nil }
func (nopCache) Del(context.Context, string) error              { return nil }

type nopNavigator struct{}

func (nopNavigator) Redirect(string) {}

type unsupportedSharer struct{}

func (unsupportedSharer) Share(context.Context, ShareRequest) error {
	return &ShareError{Name: ShareUnsupported}
}

type nopClipboard struct{}

func (nopClipboard) CopyLink(context.Context, string) error { return nil }
