// Package evaluator runs the warm-up evaluation phase: it walks the student
// through six questions about the passage, then asks the model to assess the
// answers and produce a teaching plan.
package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/edaccel/tutor/internal/llm"
	"github.com/edaccel/tutor/internal/llm/prompts"
	"github.com/edaccel/tutor/internal/model"
	"github.com/edaccel/tutor/internal/passage"
	"github.com/edaccel/tutor/internal/pool"
)

// Engine drives the evaluation phase for a session.
type Engine struct {
	completer llm.Completer
	bank      *pool.Bank
	passage   passage.Passage
}

// New creates an evaluation engine over the given question bank and passage.
func New(completer llm.Completer, bank *pool.Bank, p passage.Passage) *Engine {
	return &Engine{completer: completer, bank: bank, passage: p}
}

// Begin draws the session's evaluation questions and returns the first one.
// The draw is seeded by the session ID, so rebuilding the same session
// yields the same questions in the same order.
func (e *Engine) Begin(s *model.Session) string {
	s.EvalQuestions = e.bank.DrawEvaluation(pool.Seed(s.ID))
	return s.EvalQuestions[0].Prompt
}

// RecordAnswer stores the student's answer to the current question. If
// questions remain it returns the next prompt; after the final answer it
// builds the teaching plan and reports the phase as done.
func (e *Engine) RecordAnswer(ctx context.Context, s *model.Session, answer string) (next string, done bool, err error) {
	if len(s.EvalAnswers) >= len(s.EvalQuestions) {
		return "", false, model.ErrWrongPhase
	}
	s.EvalAnswers = append(s.EvalAnswers, answer)

	if len(s.EvalAnswers) < len(s.EvalQuestions) {
		return s.EvalQuestions[len(s.EvalAnswers)].Prompt, false, nil
	}

	plan := e.buildPlan(ctx, s)
	s.Plan = &plan
	return "", true, nil
}

// planPayload is the JSON shape the model is asked to return. Scores are
// pointers so a dimension the model omitted is distinguishable from a zero.
type planPayload struct {
	Level  string `json:"level"`
	Scores struct {
		Understanding *int `json:"understanding"`
		Fundamentals  *int `json:"fundamentals"`
		Interest      *int `json:"interest"`
		Comprehension *int `json:"comprehension"`
	} `json:"scores"`
	Focus string `json:"focus"`
}

// buildPlan asks the model to assess the answers. Any failure along the way
// degrades to a default plan so the session always moves forward.
func (e *Engine) buildPlan(ctx context.Context, s *model.Session) model.EvaluationPlan {
	prompt, err := prompts.BuildEvalPlan(e.passage, s.EvalQuestions, s.EvalAnswers)
	if err != nil {
		slog.Error("build evaluation prompt failed", "session", s.ID, "error", err)
		return defaultPlan()
	}

	raw, err := e.completer.CompleteJSON(ctx, "You are a reading-comprehension assessor. Respond only with JSON.", prompt)
	if err != nil {
		slog.Warn("evaluation model call failed, using default plan", "session", s.ID, "error", err)
		return defaultPlan()
	}

	plan, err := parsePlan(raw)
	if err != nil {
		slog.Warn("evaluation response unusable, using default plan", "session", s.ID, "error", err)
		return defaultPlan()
	}
	slog.Info("evaluation plan built", "session", s.ID, "level", plan.Level)
	return plan
}

func parsePlan(raw string) (model.EvaluationPlan, error) {
	obj, err := llm.ExtractJSONObject(raw)
	if err != nil {
		return model.EvaluationPlan{}, err
	}

	var p planPayload
	if err := json.Unmarshal([]byte(obj), &p); err != nil {
		return model.EvaluationPlan{}, fmt.Errorf("parse plan: %w", err)
	}

	if !model.ValidLevel(p.Level) {
		return model.EvaluationPlan{}, fmt.Errorf("invalid level %q", p.Level)
	}
	level := model.Level(p.Level)

	for name, v := range map[string]*int{
		"understanding": p.Scores.Understanding,
		"fundamentals":  p.Scores.Fundamentals,
		"interest":      p.Scores.Interest,
		"comprehension": p.Scores.Comprehension,
	} {
		if v == nil {
			return model.EvaluationPlan{}, fmt.Errorf("missing score dimension %q", name)
		}
	}
	scores := model.DimensionScores{
		Understanding: *p.Scores.Understanding,
		Fundamentals:  *p.Scores.Fundamentals,
		Interest:      *p.Scores.Interest,
		Comprehension: *p.Scores.Comprehension,
	}
	if !scores.InRange() {
		return model.EvaluationPlan{}, fmt.Errorf("scores out of range: %+v", scores)
	}

	focus := p.Focus
	if focus == "" {
		focus = defaultFocus(level)
	}
	return model.EvaluationPlan{Level: level, Scores: scores, Focus: focus}, nil
}

func defaultPlan() model.EvaluationPlan {
	return model.EvaluationPlan{
		Level: model.LevelMedium,
		Scores: model.DimensionScores{
			Understanding: 50,
			Fundamentals:  50,
			Interest:      50,
			Comprehension: 50,
		},
		Focus: defaultFocus(model.LevelMedium),
	}
}

func defaultFocus(level model.Level) string {
	switch level {
	case model.LevelLow:
		return "Reinforce the main idea of the passage and basic fact-finding."
	case model.LevelHigh:
		return "Explore the passage's implications and push toward deeper inferences."
	default:
		return "Strengthen overall comprehension of the passage's key points and details."
	}
}
