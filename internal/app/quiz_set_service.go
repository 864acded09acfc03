package app

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"caretoplay/internal/domain"
	"github.com/rs/zerolog"
)

// QuizSetStore persists quiz sets. Get returns domain.ErrQuizSetNotFound for unknown keys.
type QuizSetStore interface {
	Get(ctx context.Context, quizSetKey string) (domain.QuizSet, error)
	Save(ctx context.Context, quizSet domain.QuizSet) error
}

// StatsCounter increments analytics counters addressed by path.
type StatsCounter interface {
	Incr(ctx context.Context, path string) error
}

// PageBuilder warms the public page of a finished quiz set.
type PageBuilder interface {
	BuildPage(ctx context.Context, quizSetKey string) error
}

// KeyGenerator returns a new random quiz set key.
type KeyGenerator func() (string, error)

const createAttempts = 3

// QuizSetService is the remote side of the quiz flows: storage, analytics and page builds.
type QuizSetService struct {
	store  QuizSetStore
	stats  StatsCounter
	pages  PageBuilder
	newKey KeyGenerator
	log    zerolog.Logger
}

func NewQuizSetService(store QuizSetStore, stats StatsCounter, pages PageBuilder, logger zerolog.Logger) *QuizSetService {
	return &QuizSetService{
		store:  store,
		stats:  stats,
		pages:  pages,
		newKey: NewQuizSetKey,
		log:    logger,
	}
}

// WithKeyGenerator replaces the key generator, for deterministic tests.
func (s *QuizSetService) WithKeyGenerator(gen KeyGenerator) *QuizSetService {
	s.newKey = gen
	return s
}

// FetchQuizSet returns the stored quiz set, or an empty new one carrying the key.
func (s *QuizSetService) FetchQuizSet(ctx context.Context, quizSetKey string) (domain.QuizSet, error) {
	if !domain.ValidQuizSetKey(quizSetKey) {
		return domain.QuizSet{}, domain.ErrInvalidQuizSetKey
	}
	quizSet, err := s.store.Get(ctx, quizSetKey)
	if errors.Is(err, domain.ErrQuizSetNotFound) {
		empty := domain.EmptyQuizSet()
		empty.QuizSetKey = quizSetKey
		return empty, nil
	}
	if err != nil {
		return domain.QuizSet{}, fmt.Errorf("fetch quiz set %s: %w", quizSetKey, err)
	}
	quizSet.QuizSetKey = quizSetKey
	return quizSet, nil
}

// CreateQuizSet reserves a fresh key and stores a new quiz set under it.
func (s *QuizSetService) CreateQuizSet(ctx context.Context, ref string) (string, error) {
	for attempt := 0; attempt < createAttempts; attempt++ {
		key, err := s.newKey()
		if err != nil {
			return "", fmt.Errorf("generate quiz set key: %w", err)
		}
		_, err = s.store.Get(ctx, key)
		if err == nil {
			s.log.Debug().Str("quizSetKey", key).Msg("quiz set key collision")
			continue
		}
		if !errors.Is(err, domain.ErrQuizSetNotFound) {
			return "", fmt.Errorf("check quiz set key: %w", err)
		}

		quizSet := domain.EmptyQuizSet()
		quizSet.QuizSetKey = key
		quizSet.QuizVersion = domain.CurrentQuizVersion
		quizSet.Ref = strings.TrimSpace(ref)
		if err := s.store.Save(ctx, quizSet); err != nil {
			return "", fmt.Errorf("create quiz set: %w", err)
		}
		s.log.Info().Str("quizSetKey", key).Str("ref", quizSet.Ref).Msg("quiz set created")
		return key, nil
	}
	return "", fmt.Errorf("create quiz set: no free key after %d attempts", createAttempts)
}

// SaveQuizSetData overwrites the quiz set. A finished quiz set never goes back to
// new, and its answers can only be saved again unchanged.
func (s *QuizSetService) SaveQuizSetData(ctx context.Context, quizSet domain.QuizSet) error {
	if !domain.ValidQuizSetKey(quizSet.QuizSetKey) {
		return domain.ErrInvalidQuizSetKey
	}
	if quizSet.Status == "" {
		quizSet.Status = domain.StatusNew
	}
	if quizSet.QuizVersion == "" {
		quizSet.QuizVersion = domain.CurrentQuizVersion
	}
	if err := checkAlignment(quizSet); err != nil {
		return err
	}

	existing, err := s.store.Get(ctx, quizSet.QuizSetKey)
	switch {
	case errors.Is(err, domain.ErrQuizSetNotFound):
	case err != nil:
		return fmt.Errorf("load quiz set %s: %w", quizSet.QuizSetKey, err)
	case existing.IsFinished() && !quizSet.IsFinished():
		return domain.ErrStatusRegression
	case existing.IsFinished():
		if !reflect.DeepEqual(normalize(existing.Quizzes), normalize(quizSet.Quizzes)) {
			return domain.ErrQuizSetFinished
		}
	}
	if quizSet.Ref == "" {
		quizSet.Ref = existing.Ref
	}

	if err := s.store.Save(ctx, quizSet); err != nil {
		return fmt.Errorf("save quiz set %s: %w", quizSet.QuizSetKey, err)
	}
	s.log.Info().Str("quizSetKey", quizSet.QuizSetKey).Str("status", string(quizSet.Status)).Msg("quiz set saved")
	return nil
}

// checkAlignment rejects answers that do not line up with the question bank.
// Finished quiz sets must answer every question.
func checkAlignment(quizSet domain.QuizSet) error {
	bank, ok := domain.Bank(quizSet.QuizVersion)
	if !ok {
		return fmt.Errorf("%w: unknown quiz version %q", domain.ErrQuizMisaligned, quizSet.QuizVersion)
	}
	if len(quizSet.Quizzes) > len(bank) {
		return domain.ErrQuizMisaligned
	}
	if quizSet.IsFinished() && len(quizSet.Quizzes) != len(bank) {
		return domain.ErrQuizMisaligned
	}
	for i, answer := range quizSet.Quizzes {
		if answer.Choice < -1 || answer.Choice >= len(answer.Options) {
			return fmt.Errorf("%w: question %d", domain.ErrQuizMisaligned, i)
		}
		if quizSet.IsFinished() && answer.Choice < 0 {
			return fmt.Errorf("%w: question %d unanswered", domain.ErrQuizMisaligned, i)
		}
	}
	return nil
}

func normalize(answers []domain.QuizAnswer) []domain.QuizAnswer {
	out := make([]domain.QuizAnswer, len(answers))
	for i, a := range answers {
		out[i] = domain.QuizAnswer{Choice: a.Choice, Options: append([]string{}, a.Options...)}
	}
	return out
}

// BuildPage warms the quiz set's public page.
func (s *QuizSetService) BuildPage(ctx context.Context, quizSetKey string) error {
	if !domain.ValidQuizSetKey(quizSetKey) {
		return domain.ErrInvalidQuizSetKey
	}
	if s.pages == nil {
		return nil
	}
	if err := s.pages.BuildPage(ctx, quizSetKey); err != nil {
		return fmt.Errorf("build page %s: %w", quizSetKey, err)
	}
	return nil
}

// Subscribe records the subscription details on the quiz set. Unknown quiz sets
// are accepted without being created.
func (s *QuizSetService) Subscribe(ctx context.Context, quizSetKey, name string, info domain.PersonalInfo) error {
	email := strings.TrimSpace(info["email"])
	if !domain.ValidEmail(email) {
		return domain.ErrInvalidEmail
	}
	if !domain.ValidQuizSetKey(quizSetKey) {
		return domain.ErrInvalidQuizSetKey
	}

	quizSet, err := s.store.Get(ctx, quizSetKey)
	if errors.Is(err, domain.ErrQuizSetNotFound) {
		s.log.Debug().Str("quizSetKey", quizSetKey).Msg("subscribe to unknown quiz set")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load quiz set %s: %w", quizSetKey, err)
	}

	if quizSet.PersonalInfo == nil {
		quizSet.PersonalInfo = domain.PersonalInfo{}
	}
	for k, v := range info {
		if k == "name" {
			continue
		}
		quizSet.PersonalInfo[k] = strings.TrimSpace(v)
	}
	if quizSet.Name == "" {
		quizSet.Name = name
	}
	if err := s.store.Save(ctx, quizSet); err != nil {
		return fmt.Errorf("save subscription %s: %w", quizSetKey, err)
	}
	s.log.Info().Str("quizSetKey", quizSetKey).Msg("subscribed")
	return nil
}

// Snap increments the counter for t, per quiz set when a key is given.
func (s *QuizSetService) Snap(ctx context.Context, t domain.SnapType, quizSetKey string) error {
	if !t.Valid() {
		return domain.ErrUnknownSnapType
	}
	if quizSetKey != "" && !domain.ValidQuizSetKey(quizSetKey) {
		return domain.ErrInvalidQuizSetKey
	}
	if err := s.stats.Incr(ctx, domain.StatsPath(t, quizSetKey)); err != nil {
		return fmt.Errorf("snap %s: %w", t, err)
	}
	return nil
}
