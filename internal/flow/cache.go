package flow

import (
	"context"

	"caretoplay/internal/domain"
)

// Device cache access is best-effort: failures are logged and otherwise ignored.

func (e *env) loadDraft(ctx context.Context) (domain.QuizSet, bool) {
	var draft domain.QuizSet
	ok, err := e.Cache.Get(ctx, PersistedQuizSetKey, &draft)
	if err != nil {
		e.log.Debug().Err(err).Msg("read persisted quiz set")
		return domain.QuizSet{}, false
	}
	if !ok || draft.QuizSetKey == "" {
		return domain.QuizSet{}, false
	}
	return draft, true
}

func (e *env) persistDraft(ctx context.Context, quizSet domain.QuizSet) {
	quizSet.QuizVersion = e.QuizVersion
	if err := e.Cache.Set(ctx, PersistedQuizSetKey, quizSet); err != nil {
		e.log.Debug().Err(err).Str("quizSetKey", quizSet.QuizSetKey).Msg("persist quiz set")
	}
}

func (e *env) clearDraft(ctx context.Context) {
	if err := e.Cache.Del(ctx, PersistedQuizSetKey); err != nil {
		e.log.Debug().Err(err).Msg("clear persisted quiz set")
	}
}

func (e *env) markFinished(ctx context.Context, quizSetKey string) {
	var finished []string
	if _, err := e.Cache.Get(ctx, FinishedQuizSetsKey, &finished); err != nil {
		// a partial list must not replace the stored one
		e.log.Debug().Err(err).Str("quizSetKey", quizSetKey).Msg("read finished quiz sets, skipping update")
		return
	}
	for _, key := range finished {
		if key == quizSetKey {
			return
		}
	}
	finished = append(finished, quizSetKey)
	if err := e.Cache.Set(ctx, FinishedQuizSetsKey, finished); err != nil {
		e.log.Debug().Err(err).Msg("persist finished quiz sets")
	}
}

func (e *env) loadGuesses(ctx context.Context, quizSetKey string) []int {
	all := map[string][]int{}
	if _, err := e.Cache.Get(ctx, PersistedGuessesKey, &all); err != nil {
		e.log.Debug().Err(err).Msg("read persisted guesses")
		return nil
	}
	return all[quizSetKey]
}

func (e *env) persistGuesses(ctx context.Context, quizSetKey string, guesses []int) {
	all := map[string][]int{}
	if _, err := e.Cache.Get(ctx, PersistedGuessesKey, &all); err != nil {
		// writing back only this key would drop every other quiz set's guesses
		e.log.Debug().Err(err).Str("quizSetKey", quizSetKey).Msg("read persisted guesses, skipping update")
		return
	}
	if all == nil {
		all = map[string][]int{}
	}
	all[quizSetKey] = append([]int{}, guesses...)
	if err := e.Cache.Set(ctx, PersistedGuessesKey, all); err != nil {
		e.log.Debug().Err(err).Str("quizSetKey", quizSetKey).Msg("persist guesses")
	}
}
