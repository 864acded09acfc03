package app

import (
	"caretoplay/internal/domain"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// NewQuizSetKey draws a random key from the quiz set key alphabet.
func NewQuizSetKey() (string, error) {
	return gonanoid.Generate(domain.QuizSetKeyAlphabet, domain.QuizSetKeyLength)
}
