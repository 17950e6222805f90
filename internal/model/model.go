package model

import (
	"math"
	"time"
)

// Phase is the coarse-grained state of a tutoring session. Transitions are
// one-directional: evaluation -> teach -> quiz -> review.
type Phase string

const (
	PhaseEvaluation Phase = "evaluation"
	PhaseTeach      Phase = "teach"
	PhaseQuiz       Phase = "quiz"
	PhaseReview     Phase = "review"
)

var phaseOrder = map[Phase]Phase{
	PhaseEvaluation: PhaseTeach,
	PhaseTeach:      PhaseQuiz,
	PhaseQuiz:       PhaseReview,
	PhaseReview:     PhaseReview,
}

// CanTransition reports whether moving from p to target is the legal
// forward step.
func (p Phase) CanTransition(target Phase) bool {
	return phaseOrder[p] == target && p != target
}

// Role represents a chat message role.
type Role string

const (
	RoleStudent Role = "user"
	RoleTutor   Role = "assistant"
)

// Message is a single message in a phase transcript.
type Message struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Level is the student level classification produced by the evaluation.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// ValidLevel reports whether s names a known level.
func ValidLevel(s string) bool {
	switch Level(s) {
	case LevelLow, LevelMedium, LevelHigh:
		return true
	}
	return false
}

// Difficulty represents question difficulty tier.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// DimensionScores holds the four scored axes of an evaluation, each 0-100.
type DimensionScores struct {
	Understanding int `json:"understanding"`
	Fundamentals  int `json:"fundamentals"`
	Interest      int `json:"interest"`
	Comprehension int `json:"comprehension"`
}

// InRange reports whether every dimension is within [0,100].
func (d DimensionScores) InRange() bool {
	for _, v := range []int{d.Understanding, d.Fundamentals, d.Interest, d.Comprehension} {
		if v < 0 || v > 100 {
			return false
		}
	}
	return true
}

// EvaluationPlan is the classification produced after the 6-question
// evaluation. Immutable once set on a session.
type EvaluationPlan struct {
	Level  Level           `json:"level"`
	Scores DimensionScores `json:"scores"`
	Focus  string          `json:"focus"`
}

// EvalQuestion is one of the six ordered evaluation prompts for a session.
type EvalQuestion struct {
	Label  string `json:"label"`
	Prompt string `json:"prompt"`
}

// QuizQuestion is a single quiz question. CorrectAnswer and Explanation
// stay server-side until grading.
type QuizQuestion struct {
	ID            int        `json:"id"`
	Question      string     `json:"question"`
	Difficulty    Difficulty `json:"difficulty"`
	CorrectAnswer string     `json:"correct_answer"`
	Explanation   string     `json:"explanation"`
}

// Quiz is the frozen question set for a session. Generated once, never
// regenerated.
type Quiz struct {
	TotalQuestions   int            `json:"total_questions"`
	TimeLimitSeconds int            `json:"time_limit_seconds"`
	Questions        []QuizQuestion `json:"questions"`
}

// QuizAnswer is one submitted answer keyed by question id.
type QuizAnswer struct {
	QuestionID int    `json:"question_id"`
	Answer     string `json:"answer"`
}

// QuestionReview is the graded outcome for one quiz question.
type QuestionReview struct {
	QuestionID    int        `json:"question_id"`
	Question      string     `json:"question"`
	UserAnswer    string     `json:"user_answer"`
	CorrectAnswer string     `json:"correct_answer"`
	IsCorrect     bool       `json:"is_correct"`
	Feedback      string     `json:"feedback"`
	Difficulty    Difficulty `json:"difficulty"`
}

// QuizResult is the graded outcome of the quiz phase. Cached on the session
// so repeated submissions are idempotent.
type QuizResult struct {
	Score           int              `json:"score"`
	Total           int              `json:"total"`
	Percentage      float64          `json:"percentage"`
	Summary         string           `json:"summary"`
	QuestionReviews []QuestionReview `json:"question_reviews"`
}

// Percent returns score/total*100 rounded to one decimal place.
func Percent(score, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(score)/float64(total)*1000) / 10
}

// EvalQuestionCount is the fixed number of evaluation prompts per session.
const EvalQuestionCount = 6

// Session is the complete state of one tutoring session. It is owned by the
// store; only the orchestrator mutates it, while holding the session lock.
type Session struct {
	ID           string    `json:"session_id"`
	Phase        Phase     `json:"phase"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`

	EvalQuestions []EvalQuestion  `json:"eval_questions"`
	EvalAnswers   []string        `json:"eval_answers"`
	Plan          *EvaluationPlan `json:"plan,omitempty"`

	TeachExchanges int `json:"teach_exchanges"`

	Quiz   *Quiz       `json:"quiz,omitempty"`
	Result *QuizResult `json:"quiz_result,omitempty"`

	EvalConversation   []Message `json:"eval_conversation"`
	TeachConversation  []Message `json:"teach_conversation"`
	QuizConversation   []Message `json:"quiz_conversation"`
	ReviewConversation []Message `json:"review_conversation"`
}

// NewSession creates a session in the evaluation phase.
func NewSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		Phase:        PhaseEvaluation,
		CreatedAt:    now,
		LastActivity: now,
	}
}

// AddMessage appends a message to the transcript of the given phase.
func (s *Session) AddMessage(phase Phase, role Role, content string) {
	msg := Message{Role: role, Content: content, At: time.Now()}
	switch phase {
	case PhaseEvaluation:
		s.EvalConversation = append(s.EvalConversation, msg)
	case PhaseTeach:
		s.TeachConversation = append(s.TeachConversation, msg)
	case PhaseQuiz:
		s.QuizConversation = append(s.QuizConversation, msg)
	case PhaseReview:
		s.ReviewConversation = append(s.ReviewConversation, msg)
	}
}

// Conversation returns the transcript for the given phase.
func (s *Session) Conversation(phase Phase) []Message {
	switch phase {
	case PhaseEvaluation:
		return s.EvalConversation
	case PhaseTeach:
		return s.TeachConversation
	case PhaseQuiz:
		return s.QuizConversation
	case PhaseReview:
		return s.ReviewConversation
	}
	return nil
}

// TransitionTo advances the session phase. It returns ErrWrongPhase when the
// move is not the legal forward step; phases are never re-entered.
func (s *Session) TransitionTo(target Phase) error {
	if !s.Phase.CanTransition(target) {
		return ErrWrongPhase
	}
	s.Phase = target
	return nil
}

// Touch records activity, deferring inactivity expiry.
func (s *Session) Touch() {
	s.LastActivity = time.Now()
}
