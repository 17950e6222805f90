// Package quiz generates the end-of-session quiz from the question bank
// and grades submitted answers with a single model call.
package quiz

import (
	"fmt"

	"github.com/edaccel/tutor/internal/model"
	"github.com/edaccel/tutor/internal/pool"
)

// DefaultTimeLimit is the quiz time limit in seconds.
const DefaultTimeLimit = 300

// distribution maps a comprehension level to the number of easy, medium
// and hard questions the quiz draws.
var distribution = map[model.Level][3]int{
	model.LevelLow:    {3, 2, 0},
	model.LevelMedium: {1, 3, 1},
	model.LevelHigh:   {1, 2, 2},
}

// Generator assembles quizzes from the question bank.
type Generator struct {
	bank      *pool.Bank
	timeLimit int
}

// NewGenerator creates a quiz generator. timeLimit is in seconds; values
// below 1 fall back to DefaultTimeLimit.
func NewGenerator(bank *pool.Bank, timeLimit int) *Generator {
	if timeLimit < 1 {
		timeLimit = DefaultTimeLimit
	}
	return &Generator{bank: bank, timeLimit: timeLimit}
}

// Generate builds the quiz for a session. The draw is seeded by the
// session ID, so generating twice for the same session yields an
// identical quiz.
func (g *Generator) Generate(s *model.Session) *model.Quiz {
	seed := pool.Seed(s.ID)
	counts := distribution[s.Plan.Level]

	var questions []model.QuizQuestion
	id := 1
	for i, d := range []model.Difficulty{model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard} {
		// Skip past the entries the evaluation draw consumed so the quiz
		// never re-asks a question the student already answered.
		for _, q := range g.bank.SampleAfter(seed, d, pool.EvalPerTier, counts[i]) {
			questions = append(questions, model.QuizQuestion{
				ID:            id,
				Question:      q.Question,
				Difficulty:    d,
				CorrectAnswer: q.Answer,
				Explanation:   q.Explanation,
			})
			id++
		}
	}

	return &model.Quiz{
		TotalQuestions:   len(questions),
		TimeLimitSeconds: g.timeLimit,
		Questions:        questions,
	}
}

// ValidateAnswers checks a submission against the quiz and returns the
// answers keyed by question ID. Every question must be answered exactly
// once and every answer must name a question in the quiz.
func ValidateAnswers(q *model.Quiz, answers []model.QuizAnswer) (map[int]string, error) {
	known := make(map[int]bool, len(q.Questions))
	for _, question := range q.Questions {
		known[question.ID] = true
	}

	byID := make(map[int]string, len(answers))
	for _, a := range answers {
		if !known[a.QuestionID] {
			return nil, fmt.Errorf("%w: question %d", model.ErrUnknownQuestion, a.QuestionID)
		}
		if _, dup := byID[a.QuestionID]; dup {
			return nil, fmt.Errorf("%w: question %d", model.ErrDuplicateAnswer, a.QuestionID)
		}
		byID[a.QuestionID] = a.Answer
	}
	if len(byID) != len(q.Questions) {
		return nil, fmt.Errorf("%w: got %d of %d answers", model.ErrIncompleteAnswers, len(byID), len(q.Questions))
	}
	return byID, nil
}
