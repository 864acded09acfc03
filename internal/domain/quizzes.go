package domain

import "strings"

// Stage groups questions; a stage screen is shown whenever the stage changes.
type Stage string

const (
	StageCasual   Stage = "casual"
	StageIntimate Stage = "intimate"
	StageCritical Stage = "critical"
)

// QuizVersion selects a shape of the question bank.
type QuizVersion string

const QuizVersionV1 QuizVersion = "v1"

// CurrentQuizVersion is the bank used for every new quiz set.
const CurrentQuizVersion = QuizVersionV1

// Quiz is one canned question of the bank.
type Quiz struct {
	Stage            Stage    `json:"stage"`
	CanEdit          bool     `json:"canEdit"`
	QuestionToAnswer string   `json:"questionToAnswer"`
	QuestionToGuess  string   `json:"questionToGuess"`
	Options          []string `json:"options"`
	Hint             string   `json:"hint,omitempty"`
}

// GuessText renders the guessing prompt for the quiz set owner's name.
func (q Quiz) GuessText(name string) string {
	return strings.ReplaceAll(q.QuestionToGuess, "{{name}}", name)
}

// QuestionBank is an ordered list of canned questions.
type QuestionBank []Quiz

// HasNextQuiz reports whether another question follows index i.
func (b QuestionBank) HasNextQuiz(i int) bool {
	return i < len(b)-1
}

// HasPreviousQuiz reports whether a question precedes index i.
func (b QuestionBank) HasPreviousQuiz(i int) bool {
	return i > 0
}

// ShouldShowStage is true when question i+1 exists and belongs to a different stage than i.
func (b QuestionBank) ShouldShowStage(i int) bool {
	if i < 0 || !b.HasNextQuiz(i) {
		return false
	}
	return b[i].Stage != b[i+1].Stage
}

// SameStage reports whether questions i and j exist and share a stage.
func (b QuestionBank) SameStage(i, j int) bool {
	if i < 0 || j < 0 || i >= len(b) || j >= len(b) {
		return false
	}
	return b[i].Stage == b[j].Stage
}

// StageAt returns the stage of question i, or "" when out of range.
func (b QuestionBank) StageAt(i int) Stage {
	if i < 0 || i >= len(b) {
		return ""
	}
	return b[i].Stage
}

// Bank returns the question bank for version v.
func Bank(v QuizVersion) (QuestionBank, bool) {
	bank, ok := Quizzes[v]
	return bank, ok
}

// Quizzes holds every released question bank.
var Quizzes = map[QuizVersion]QuestionBank{
	QuizVersionV1: {
		{
			Stage:            StageCasual,
			CanEdit:          true,
			QuestionToAnswer: "What brings joy in your life?",
			QuestionToGuess:  "What brings joy in {{name}}'s life?",
			Options: []string{
				"Spending quality time with family",
				"Doing good for others",
				"Accomplishment in work",
				"Keeping an active lifestyle",
			},
		},
		{
			Stage:            StageCasual,
			CanEdit:          true,
			QuestionToAnswer: "If you were stuck on a deserted island, what would you take with you?",
			QuestionToGuess:  "If {{name}} were stuck on a deserted island, what would {{name}} take along?",
			Options:          []string{"A knife", "A flashlight", "A roasted chicken", "An umbrella"},
		},
		{
			Stage:            StageCasual,
			CanEdit:          true,
			QuestionToAnswer: "How do you relax after a hard day of work?",
			QuestionToGuess:  "How does {{name}} relax after a hard day of work?",
			Options: []string{
				"With a cup of relaxing tea",
				"Watching television",
				"Sharing about my day",
				"Taking a warm shower",
			},
		},
		{
			Stage:            StageIntimate,
			CanEdit:          true,
			QuestionToAnswer: "If you had 24 hours left to live, what would you do?",
			QuestionToGuess:  "If {{name}} had 24 hours left to live, what would {{name}} do?",
			Options: []string{
				"Do the craziest thing on my bucket list",
				"Call up everyone to bid goodbye",
				"Find a good view and wait",
				"Say \"I love you\" to all my loved ones",
			},
		},
		{
			Stage:            StageIntimate,
			CanEdit:          false,
			QuestionToAnswer: "Would you rather die in 20 years with no regrets or in 50 years with many regrets?",
			QuestionToGuess:  "Would {{name}} rather die in 20 years with no regrets or in 50 years with many regrets?",
			Options:          []string{"20 years with no regrets", "50 years with many regrets"},
		},
		{
			Stage:            StageIntimate,
			CanEdit:          true,
			QuestionToAnswer: "Which dream destination do you want to visit before you die?",
			QuestionToGuess:  "Which dream destination does {{name}} want to visit before dying?",
			Options:          []string{"Hawaii", "Venice", "Paris", "London"},
		},
		{
			Stage:            StageCritical,
			CanEdit:          true,
			QuestionToAnswer: "If you found out you had a bad illness and one month to live, what would be your biggest fear?",
			QuestionToGuess:  "If {{name}} found out about a bad illness and one month to live, what would be {{name}}'s biggest fear?",
			Options: []string{
				"Being in pain and suffering",
				"No one coming to my bedside",
				"Financial concerns",
				"Causing worry to my family",
			},
			Hint: "There is no wrong answer here.",
		},
		{
			Stage:            StageCritical,
			CanEdit:          true,
			QuestionToAnswer: "If you suddenly lost control over your body, what would you miss the most?",
			QuestionToGuess:  "If {{name}} suddenly lost control over the body, what would {{name}} miss the most?",
			Options: []string{
				"Being able to walk",
				"Being able to eat on my own",
				"Being able to talk",
				"Being able to bathe",
			},
		},
		{
			Stage:            StageCritical,
			CanEdit:          true,
			QuestionToAnswer: "If you were hospitalized, who do you trust most to make decisions on your behalf?",
			QuestionToGuess:  "If {{name}} were hospitalized, who would {{name}} trust most to make decisions on their behalf?",
			Options:          []string{"Mother", "Father", "Spouse", "Sibling"},
			Hint:             "This person is often called a substitute decision maker.",
		},
	},
}
