package firebase

import (
	"context"
	"fmt"

	"caretoplay/internal/domain"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"google.golang.org/api/option"
)

// Store keeps quiz sets under quizSets/{key} and analytics counters under their
// stats path in a Firebase Realtime Database.
type Store struct {
	client *db.Client
}

// NewStore connects to the Realtime Database at databaseURL. An empty
// credentialsFile connects without authentication, which is what the local
// database emulator expects.
func NewStore(ctx context.Context, credentialsFile, databaseURL string) (*Store, error) {
	opt := option.WithoutAuthentication()
	if credentialsFile != "" {
		opt = option.WithCredentialsFile(credentialsFile)
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{DatabaseURL: databaseURL}, opt)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}
	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("get database client: %w", err)
	}
	return &Store{client: client}, nil
}

func (s *Store) ref(quizSetKey string) *db.Ref {
	return s.client.NewRef("quizSets").Child(quizSetKey)
}

func (s *Store) Get(ctx context.Context, quizSetKey string) (domain.QuizSet, error) {
	var quizSet domain.QuizSet
	if err := s.ref(quizSetKey).Get(ctx, &quizSet); err != nil {
		return domain.QuizSet{}, fmt.Errorf("read quiz set %s: %w", quizSetKey, err)
	}
	if isMissing(quizSet) {
		return domain.QuizSet{}, domain.ErrQuizSetNotFound
	}
	return quizSet, nil
}

func (s *Store) Save(ctx context.Context, quizSet domain.QuizSet) error {
	if err := s.ref(quizSet.QuizSetKey).Set(ctx, quizSet); err != nil {
		return fmt.Errorf("write quiz set %s: %w", quizSet.QuizSetKey, err)
	}
	return nil
}

// Incr bumps the counter at path inside a transaction.
func (s *Store) Incr(ctx context.Context, path string) error {
	err := s.client.NewRef(path).Transaction(ctx, func(node db.TransactionNode) (interface{}, error) {
		var count int64
		if err := node.Unmarshal(&count); err != nil {
			return nil, err
		}
		return count + 1, nil
	})
	if err != nil {
		return fmt.Errorf("increment %s: %w", path, err)
	}
	return nil
}

// Count reads the counter at path; missing counters are zero.
func (s *Store) Count(ctx context.Context, path string) (int64, error) {
	var count int64
	if err := s.client.NewRef(path).Get(ctx, &count); err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	return count, nil
}

// isMissing reports whether a read decoded an absent node: the database returns
// null, leaving every field zero.
func isMissing(quizSet domain.QuizSet) bool {
	return quizSet.QuizSetKey == "" && quizSet.Status == "" && quizSet.Name == "" && len(quizSet.Quizzes) == 0
}
