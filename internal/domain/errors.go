package domain

import "errors"

var (
	// ErrQuizSetNotFound is returned by stores when no record exists for a key.
	ErrQuizSetNotFound = errors.New("quiz set not found")
	// ErrInvalidQuizSetKey indicates a malformed quiz set key.
	ErrInvalidQuizSetKey = errors.New("invalid quiz set key")
	// ErrStatusRegression is returned when a save would move a finished quiz set back to new.
	ErrStatusRegression = errors.New("quiz set status cannot go back to new")
	// ErrQuizSetFinished indicates an attempt to change answers of a finished quiz set.
	ErrQuizSetFinished = errors.New("quiz set already finished")
	// ErrQuizMisaligned indicates more answers than the question bank has questions.
	ErrQuizMisaligned = errors.New("quiz answers do not match the question bank")
	// ErrInvalidEmail indicates the subscription email failed validation.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrSessionClosed is returned when sending to a closed play session.
	ErrSessionClosed = errors.New("play session closed")
	// ErrSessionNotFound indicates an unknown play session id.
	ErrSessionNotFound = errors.New("play session not found")
	// ErrUnknownSnapType indicates an analytics counter that does not exist.
	ErrUnknownSnapType = errors.New("unknown snap type")
)
