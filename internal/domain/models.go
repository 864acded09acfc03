package domain

import (
	"net/mail"
	"strings"
)

// Status tracks the lifecycle of a quiz set. It only ever moves from new to finished.
type Status string

const (
	StatusNew      Status = "new"
	StatusFinished Status = "finished"
)

// PersonalInfo is the free-form bag filled in by the personal info and subscription forms.
type PersonalInfo map[string]string

// QuizAnswer is the quiz set owner's answer to one question of the bank.
type QuizAnswer struct {
	Choice  int      `json:"choice"`
	Options []string `json:"options"`
}

// QuizSet is the root entity shared between the author and the guessing party.
type QuizSet struct {
	QuizSetKey   string       `json:"quizSetKey"`
	Name         string       `json:"name"`
	PersonalInfo PersonalInfo `json:"personalInfo,omitempty"`
	Status       Status       `json:"status"`
	Quizzes      []QuizAnswer `json:"quizzes"`
	QuizVersion  QuizVersion  `json:"quizVersion,omitempty"`
	Ref          string       `json:"ref,omitempty"`
}

// EmptyQuizSet returns a fresh, unsaved quiz set.
func EmptyQuizSet() QuizSet {
	return QuizSet{
		Status:       StatusNew,
		PersonalInfo: PersonalInfo{},
		Quizzes:      []QuizAnswer{},
	}
}

// IsFinished reports whether the owner has submitted the quiz set.
func (q QuizSet) IsFinished() bool {
	return q.Status == StatusFinished
}

// Clone returns a deep copy so machines never share slices or maps with callers.
func (q QuizSet) Clone() QuizSet {
	out := q
	if q.PersonalInfo != nil {
		out.PersonalInfo = make(PersonalInfo, len(q.PersonalInfo))
		for k, v := range q.PersonalInfo {
			out.PersonalInfo[k] = v
		}
	}
	if q.Quizzes != nil {
		out.Quizzes = make([]QuizAnswer, len(q.Quizzes))
		for i, answer := range q.Quizzes {
			out.Quizzes[i] = QuizAnswer{
				Choice:  answer.Choice,
				Options: append([]string(nil), answer.Options...),
			}
		}
	}
	return out
}

// SnapType names an analytics counter.
type SnapType string

const (
	SnapVisit    SnapType = "visit"
	SnapShare    SnapType = "share"
	SnapComplete SnapType = "complete"
	SnapReview   SnapType = "review"
)

// Valid reports whether t is one of the known counters.
func (t SnapType) Valid() bool {
	switch t {
	case SnapVisit, SnapShare, SnapComplete, SnapReview:
		return true
	}
	return false
}

// StatsPath returns the counter path, scoped to a quiz set when quizSetKey is set.
func StatsPath(t SnapType, quizSetKey string) string {
	if quizSetKey != "" {
		return "stats/quizSets/" + quizSetKey + "/" + string(t) + "Count"
	}
	return "stats/overview/" + string(t) + "Count"
}

// QuizSetKeyAlphabet is the character set quiz set keys are drawn from.
const QuizSetKeyAlphabet = "1234567890ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// QuizSetKeyLength is the length of a generated quiz set key.
const QuizSetKeyLength = 12

// ValidQuizSetKey checks the shape of a client supplied key.
func ValidQuizSetKey(key string) bool {
	if len(key) != QuizSetKeyLength {
		return false
	}
	for _, r := range key {
		if !strings.ContainsRune(QuizSetKeyAlphabet, r) {
			return false
		}
	}
	return true
}

// ValidEmail accepts a bare address ("a@b.c", no display name) whose domain has a dot.
func ValidEmail(v string) bool {
	addr, err := mail.ParseAddress(v)
	if err != nil || addr.Address != v {
		return false
	}
	return strings.Contains(v[strings.LastIndex(v, "@")+1:], ".")
}
