package quiz

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/edaccel/tutor/internal/i18n"
	"github.com/edaccel/tutor/internal/llm"
	"github.com/edaccel/tutor/internal/llm/prompts"
	"github.com/edaccel/tutor/internal/model"
	"github.com/edaccel/tutor/internal/passage"
)

// Grader scores quiz submissions with a single model call.
type Grader struct {
	completer llm.Completer
	passage   passage.Passage
}

// NewGrader creates a quiz grader.
func NewGrader(completer llm.Completer, p passage.Passage) *Grader {
	return &Grader{completer: completer, passage: p}
}

// gradePayload is the JSON shape the model is asked to return.
type gradePayload struct {
	Score           int    `json:"score"`
	Summary         string `json:"summary"`
	QuestionReviews []struct {
		QuestionID int    `json:"question_id"`
		IsCorrect  bool   `json:"is_correct"`
		Feedback   string `json:"feedback"`
	} `json:"question_reviews"`
}

// Grade scores the validated answers against the quiz. The whole quiz is
// graded in one model call; questions the model fails to review are
// conservatively marked incorrect so a flaky reply never inflates the
// score. The returned result always reviews every question in quiz order.
func (g *Grader) Grade(ctx context.Context, s *model.Session, answers map[int]string) *model.QuizResult {
	q := s.Quiz
	payload := g.callModel(ctx, s, answers)

	reviewed := make(map[int]struct {
		correct  bool
		feedback string
	}, len(q.Questions))
	if payload != nil {
		for _, r := range payload.QuestionReviews {
			reviewed[r.QuestionID] = struct {
				correct  bool
				feedback string
			}{r.IsCorrect, r.Feedback}
		}
	}

	result := &model.QuizResult{
		Total: q.TotalQuestions,
	}
	for _, question := range q.Questions {
		review := model.QuestionReview{
			QuestionID:    question.ID,
			Question:      question.Question,
			UserAnswer:    answers[question.ID],
			CorrectAnswer: question.CorrectAnswer,
			Difficulty:    question.Difficulty,
		}
		if r, ok := reviewed[question.ID]; ok {
			review.IsCorrect = r.correct
			review.Feedback = r.feedback
		} else {
			review.IsCorrect = false
			review.Feedback = i18n.T(ctx, "FeedbackUngraded")
		}
		if review.IsCorrect {
			result.Score++
		}
		result.QuestionReviews = append(result.QuestionReviews, review)
	}

	// The score is recomputed from the reviews; the model's own score
	// field is ignored so the total always matches the per-question verdicts.
	result.Percentage = model.Percent(result.Score, result.Total)
	if payload != nil && payload.Summary != "" {
		result.Summary = payload.Summary
	} else {
		result.Summary = i18n.T(ctx, "SummaryFallback")
	}
	return result
}

func (g *Grader) callModel(ctx context.Context, s *model.Session, answers map[int]string) *gradePayload {
	prompt, err := prompts.BuildQuizGrade(g.passage, s.Quiz.Questions, answers)
	if err != nil {
		slog.Error("build grading prompt failed", "session", s.ID, "error", err)
		return nil
	}

	raw, err := g.completer.CompleteJSON(ctx, "You are a quiz grader. Respond only with JSON.", prompt)
	if err != nil {
		slog.Warn("grading model call failed", "session", s.ID, "error", err)
		return nil
	}

	obj, err := llm.ExtractJSONObject(raw)
	if err != nil {
		slog.Warn("grading response had no JSON object", "session", s.ID)
		return nil
	}

	var p gradePayload
	if err := json.Unmarshal([]byte(obj), &p); err != nil {
		slog.Warn("grading response unparseable", "session", s.ID, "error", err)
		return nil
	}
	return &p
}
