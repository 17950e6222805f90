// Package orchestrator coordinates a tutoring session through its phases.
// It owns the phase dispatch for /chat, the quiz hand-off, and submission
// grading; all session mutation happens here, under the store's per-session
// lock.
package orchestrator

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/edaccel/tutor/internal/evaluator"
	"github.com/edaccel/tutor/internal/i18n"
	"github.com/edaccel/tutor/internal/model"
	"github.com/edaccel/tutor/internal/passage"
	"github.com/edaccel/tutor/internal/quiz"
	"github.com/edaccel/tutor/internal/store"
	"github.com/edaccel/tutor/internal/teach"
)

// Orchestrator wires the phase engines to the session store.
type Orchestrator struct {
	store     *store.Store
	evaluator *evaluator.Engine
	teacher   *teach.Manager
	generator *quiz.Generator
	grader    *quiz.Grader
	passage   passage.Passage
}

// New creates an orchestrator over the given store and phase engines.
func New(st *store.Store, ev *evaluator.Engine, tm *teach.Manager, gen *quiz.Generator, gr *quiz.Grader, p passage.Passage) *Orchestrator {
	return &Orchestrator{
		store:     st,
		evaluator: ev,
		teacher:   tm,
		generator: gen,
		grader:    gr,
		passage:   p,
	}
}

// Passage returns the reading passage the sessions are built around.
func (o *Orchestrator) Passage() passage.Passage { return o.passage }

// Start creates a new session and returns the greeting with the first
// evaluation question.
func (o *Orchestrator) Start(ctx context.Context) (*model.StartResponse, error) {
	id := uuid.NewString()
	s := o.store.Create(id)

	first := o.evaluator.Begin(s)
	greeting := i18n.Td(ctx, "StartGreeting", map[string]any{"Title": o.passage.Title})
	message := greeting + "\n\n" + first
	s.AddMessage(model.PhaseEvaluation, model.RoleTutor, message)

	slog.Info("session started", "session", id)
	return &model.StartResponse{
		SessionID: id,
		Message:   message,
		Mode:      s.Phase,
	}, nil
}

// Chat handles one student message, dispatching on the session's phase.
func (o *Orchestrator) Chat(ctx context.Context, req model.ChatRequest) (*model.ChatResponse, error) {
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return nil, model.ErrEmptyMessage
	}

	s, release, err := o.store.Acquire(req.SessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	switch s.Phase {
	case model.PhaseEvaluation:
		return o.chatEvaluation(ctx, s, text)
	case model.PhaseTeach:
		return o.chatTeach(ctx, s, text)
	case model.PhaseQuiz:
		s.AddMessage(model.PhaseQuiz, model.RoleStudent, text)
		nudge := i18n.T(ctx, "QuizChatNudge")
		s.AddMessage(model.PhaseQuiz, model.RoleTutor, nudge)
		// show_quiz stays on so the client keeps the quiz form up, but the
		// question set is never re-sent after the hand-off.
		return &model.ChatResponse{Response: nudge, Phase: s.Phase, ShowQuiz: true}, nil
	default: // review
		s.AddMessage(model.PhaseReview, model.RoleStudent, text)
		wrapUp := i18n.T(ctx, "ReviewWrapUp")
		s.AddMessage(model.PhaseReview, model.RoleTutor, wrapUp)
		return &model.ChatResponse{Response: wrapUp, Phase: s.Phase, IsComplete: true}, nil
	}
}

func (o *Orchestrator) chatEvaluation(ctx context.Context, s *model.Session, text string) (*model.ChatResponse, error) {
	s.AddMessage(model.PhaseEvaluation, model.RoleStudent, text)

	next, done, err := o.evaluator.RecordAnswer(ctx, s, text)
	if err != nil {
		return nil, err
	}
	if !done {
		s.AddMessage(model.PhaseEvaluation, model.RoleTutor, next)
		return &model.ChatResponse{Response: next, Phase: s.Phase}, nil
	}

	// Evaluation complete: the plan is set, move on to teaching and open
	// the conversation in one reply.
	s.AddMessage(model.PhaseEvaluation, model.RoleTutor, i18n.T(ctx, "EvalComplete"))
	if err := s.TransitionTo(model.PhaseTeach); err != nil {
		return nil, err
	}
	slog.Info("evaluation complete", "session", s.ID, "level", s.Plan.Level)

	intro := o.teacher.Intro(ctx, s)
	reply := i18n.T(ctx, "EvalComplete") + "\n\n" + intro
	return &model.ChatResponse{Response: reply, Phase: s.Phase}, nil
}

func (o *Orchestrator) chatTeach(ctx context.Context, s *model.Session, text string) (*model.ChatResponse, error) {
	reply, done, err := o.teacher.Reply(ctx, s, text)
	if err != nil {
		return nil, err
	}
	if !done {
		return &model.ChatResponse{Response: reply, Phase: s.Phase}, nil
	}

	// Teaching bound reached: freeze the quiz and hand it to the student.
	// quiz_data rides on this response only; later requests use the
	// already-generated quiz.
	if err := s.TransitionTo(model.PhaseQuiz); err != nil {
		return nil, err
	}
	if s.Quiz == nil {
		s.Quiz = o.generator.Generate(s)
	}
	slog.Info("quiz generated", "session", s.ID, "questions", s.Quiz.TotalQuestions)

	return &model.ChatResponse{
		Response: reply,
		Phase:    s.Phase,
		ShowQuiz: true,
		QuizData: quizData(s.Quiz),
	}, nil
}

// SubmitQuiz grades a quiz submission. Submissions after grading return the
// cached result unchanged.
func (o *Orchestrator) SubmitQuiz(ctx context.Context, sessionID string, answers []model.QuizAnswer) (*model.SubmitResponse, error) {
	s, release, err := o.store.Acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	if s.Result != nil {
		return &model.SubmitResponse{Success: true, AlreadyGraded: true, QuizResult: s.Result}, nil
	}
	if s.Phase != model.PhaseQuiz || s.Quiz == nil {
		return nil, model.ErrQuizNotReady
	}

	byID, err := quiz.ValidateAnswers(s.Quiz, answers)
	if err != nil {
		return nil, err
	}

	result := o.grader.Grade(ctx, s, byID)
	s.Result = result
	if err := s.TransitionTo(model.PhaseReview); err != nil {
		return nil, err
	}
	slog.Info("quiz graded", "session", s.ID, "score", result.Score, "total", result.Total)

	return &model.SubmitResponse{Success: true, QuizResult: result}, nil
}

// Status returns a snapshot of the session's progress.
func (o *Orchestrator) Status(sessionID string) (*model.StatusResponse, error) {
	s, release, err := o.store.Acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	resp := &model.StatusResponse{
		SessionID: s.ID,
		Phase:     s.Phase,
		Plan:      s.Plan,
		QuizReady: s.Quiz != nil,
		Graded:    s.Result != nil,
	}
	switch s.Phase {
	case model.PhaseEvaluation:
		resp.Evaluation = &model.EvaluationProgress{
			AnswersCollected: len(s.EvalAnswers),
			TotalQuestions:   model.EvalQuestionCount,
			IsComplete:       false,
		}
	case model.PhaseTeach:
		resp.Evaluation = &model.EvaluationProgress{
			AnswersCollected: len(s.EvalAnswers),
			TotalQuestions:   model.EvalQuestionCount,
			IsComplete:       true,
		}
		resp.Teach = &model.TeachProgress{
			Exchanges: s.TeachExchanges,
			Bound:     o.teacher.Exchanges(),
		}
	}
	return resp, nil
}

func quizData(q *model.Quiz) *model.QuizData {
	data := &model.QuizData{
		TotalQuestions:   q.TotalQuestions,
		TimeLimitSeconds: q.TimeLimitSeconds,
	}
	for _, question := range q.Questions {
		data.Questions = append(data.Questions, model.QuizDataQuestion{
			ID:         question.ID,
			Question:   question.Question,
			Difficulty: question.Difficulty,
		})
	}
	return data
}
