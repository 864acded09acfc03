package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"caretoplay/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuizSetStore keeps quiz set JSONB in Postgres.
type QuizSetStore struct {
	pool *pgxpool.Pool
}

func NewQuizSetStore(pool *pgxpool.Pool) *QuizSetStore {
	return &QuizSetStore{pool: pool}
}

func (s *QuizSetStore) Get(ctx context.Context, quizSetKey string) (domain.QuizSet, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM quiz_sets WHERE quiz_set_key=$1`, quizSetKey).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuizSet{}, domain.ErrQuizSetNotFound
	}
	if err != nil {
		return domain.QuizSet{}, fmt.Errorf("load quiz set: %w", err)
	}
	var quizSet domain.QuizSet
	if err := json.Unmarshal(raw, &quizSet); err != nil {
		return domain.QuizSet{}, fmt.Errorf("unmarshal quiz set: %w", err)
	}
	return quizSet, nil
}

func (s *QuizSetStore) Save(ctx context.Context, quizSet domain.QuizSet) error {
	raw, err := json.Marshal(quizSet)
	if err != nil {
		return fmt.Errorf("marshal quiz set: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO quiz_sets (quiz_set_key, status, data)
VALUES ($1, $2, $3)
ON CONFLICT (quiz_set_key) DO UPDATE
SET status = EXCLUDED.status, data = EXCLUDED.data, updated_at = now()`,
		quizSet.QuizSetKey, string(quizSet.Status), raw)
	if err != nil {
		return fmt.Errorf("save quiz set: %w", err)
	}
	return nil
}

// Stats keeps analytics counters in the quiz_stats table.
type Stats struct {
	pool *pgxpool.Pool
}

func NewStats(pool *pgxpool.Pool) *Stats {
	return &Stats{pool: pool}
}

func (s *Stats) Incr(ctx context.Context, path string) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO quiz_stats (path, count) VALUES ($1, 1)
ON CONFLICT (path) DO UPDATE SET count = quiz_stats.count + 1`, path)
	if err != nil {
		return fmt.Errorf("increment %s: %w", path, err)
	}
	return nil
}

// Count reads the counter at path; missing counters are zero.
func (s *Stats) Count(ctx context.Context, path string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT count FROM quiz_stats WHERE path=$1`, path).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	return n, nil
}
