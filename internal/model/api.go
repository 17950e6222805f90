package model

// API request and response schemas for the JSON contract with the
// presentation layer.

// StartResponse is returned by POST /start.
type StartResponse struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	Mode      Phase  `json:"mode"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// QuizDataQuestion is the student-facing view of a quiz question. Correct
// answers are deliberately absent.
type QuizDataQuestion struct {
	ID         int        `json:"id"`
	Question   string     `json:"question"`
	Difficulty Difficulty `json:"difficulty"`
}

// QuizData is attached to the chat response exactly once, at the
// teach-to-quiz transition.
type QuizData struct {
	TotalQuestions   int                `json:"total_questions"`
	TimeLimitSeconds int                `json:"time_limit_seconds"`
	Questions        []QuizDataQuestion `json:"questions"`
}

// ChatResponse is returned by POST /chat.
type ChatResponse struct {
	Response   string    `json:"response"`
	Phase      Phase     `json:"phase"`
	IsComplete bool      `json:"is_complete"`
	ShowQuiz   bool      `json:"show_quiz,omitempty"`
	QuizData   *QuizData `json:"quiz_data,omitempty"`
}

// SubmitRequest is the body of POST /session/{id}/quiz/submit. Both a bare
// answer list and a wrapped object are accepted.
type SubmitRequest struct {
	Answers []QuizAnswer `json:"answers"`
}

// SubmitResponse is returned by the quiz submit endpoint.
type SubmitResponse struct {
	Success       bool        `json:"success"`
	AlreadyGraded bool        `json:"already_graded,omitempty"`
	QuizResult    *QuizResult `json:"quiz_result"`
}

// EvaluationProgress reports progress through the evaluation questions.
type EvaluationProgress struct {
	AnswersCollected int  `json:"answers_collected"`
	TotalQuestions   int  `json:"total_questions"`
	IsComplete       bool `json:"is_complete"`
}

// TeachProgress reports progress through the teaching exchanges.
type TeachProgress struct {
	Exchanges int `json:"exchanges"`
	Bound     int `json:"bound"`
}

// StatusResponse is the session status snapshot for GET /session/{id}/status.
type StatusResponse struct {
	SessionID  string              `json:"session_id"`
	Phase      Phase               `json:"phase"`
	Plan       *EvaluationPlan     `json:"plan,omitempty"`
	Evaluation *EvaluationProgress `json:"evaluation_progress,omitempty"`
	Teach      *TeachProgress      `json:"teach_progress,omitempty"`
	QuizReady  bool                `json:"quiz_ready"`
	Graded     bool                `json:"graded"`
}

// PassageResponse is the reading passage payload for GET /passage.
type PassageResponse struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	Difficulty string `json:"difficulty"`
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
