package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/edaccel/tutor/internal/evaluator"
	appI18n "github.com/edaccel/tutor/internal/i18n"
	"github.com/edaccel/tutor/internal/model"
	"github.com/edaccel/tutor/internal/orchestrator"
	"github.com/edaccel/tutor/internal/passage"
	"github.com/edaccel/tutor/internal/pool"
	"github.com/edaccel/tutor/internal/quiz"
	"github.com/edaccel/tutor/internal/store"
	"github.com/edaccel/tutor/internal/teach"
)

// scriptedCompleter answers Complete calls with canned text and CompleteJSON
// calls with queued JSON payloads, in order.
type scriptedCompleter struct {
	jsonReplies []string
}

func (s *scriptedCompleter) Complete(context.Context, string, []model.Message) (string, error) {
	return "Let's talk about the passage.", nil
}

func (s *scriptedCompleter) CompleteJSON(context.Context, string, string) (string, error) {
	if len(s.jsonReplies) == 0 {
		return "{}", nil
	}
	r := s.jsonReplies[0]
	s.jsonReplies = s.jsonReplies[1:]
	return r, nil
}

const planJSON = `{
	"level": "medium",
	"scores": {"understanding": 60, "fundamentals": 55, "interest": 70, "comprehension": 65},
	"focus": "Work on connecting details."
}`

func gradeJSON(correct int) string {
	reviews := ""
	for i := 1; i <= 5; i++ {
		if i > 1 {
			reviews += ","
		}
		reviews += fmt.Sprintf(`{"question_id": %d, "is_correct": %v, "feedback": "noted"}`, i, i <= correct)
	}
	return fmt.Sprintf(`{"score": %d, "summary": "Good effort.", "question_reviews": [%s]}`, correct, reviews)
}

const teachExchanges = 2

func newTestServer(t *testing.T, completer *scriptedCompleter) *httptest.Server {
	t.Helper()
	if err := appI18n.Init("en"); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}
	bank, err := pool.Load()
	if err != nil {
		t.Fatalf("pool.Load: %v", err)
	}
	p := passage.Default()
	st := store.New(0)
	t.Cleanup(st.Close)

	orch := orchestrator.New(
		st,
		evaluator.New(completer, bank, p),
		teach.New(completer, p, teachExchanges),
		quiz.NewGenerator(bank, 300),
		quiz.NewGrader(completer, p),
		p,
	)

	r := chi.NewRouter()
	r.Use(appI18n.Middleware("en"))
	New(orch, "test").Routes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		t.Fatalf("encode request: %v", err)
	}
	resp, err := http.Post(url, "application/json", &buf)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response from %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response from %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func startSession(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	var start model.StartResponse
	if code := postJSON(t, srv.URL+"/start", struct{}{}, &start); code != http.StatusOK {
		t.Fatalf("POST /start status = %d", code)
	}
	if start.SessionID == "" || start.Mode != model.PhaseEvaluation {
		t.Fatalf("unexpected start response: %+v", start)
	}
	return start.SessionID
}

// driveToQuiz walks a session through evaluation and teaching until the
// quiz is handed out, returning the quiz data.
func driveToQuiz(t *testing.T, srv *httptest.Server, sessionID string) *model.QuizData {
	t.Helper()

	var chat model.ChatResponse
	for i := 0; i < model.EvalQuestionCount; i++ {
		req := model.ChatRequest{SessionID: sessionID, Message: fmt.Sprintf("answer %d", i+1)}
		if code := postJSON(t, srv.URL+"/chat", req, &chat); code != http.StatusOK {
			t.Fatalf("eval chat %d status = %d", i+1, code)
		}
	}
	if chat.Phase != model.PhaseTeach {
		t.Fatalf("phase after evaluation = %s, want teach", chat.Phase)
	}

	for i := 0; i < teachExchanges; i++ {
		req := model.ChatRequest{SessionID: sessionID, Message: fmt.Sprintf("thought %d", i+1)}
		if code := postJSON(t, srv.URL+"/chat", req, &chat); code != http.StatusOK {
			t.Fatalf("teach chat %d status = %d", i+1, code)
		}
	}
	if chat.Phase != model.PhaseQuiz {
		t.Fatalf("phase after teaching = %s, want quiz", chat.Phase)
	}
	if !chat.ShowQuiz || chat.QuizData == nil {
		t.Fatal("quiz hand-off response missing quiz data")
	}
	return chat.QuizData
}

func submitAll(t *testing.T, srv *httptest.Server, sessionID string, quizData *model.QuizData, out *model.SubmitResponse) int {
	t.Helper()
	var answers []model.QuizAnswer
	for _, q := range quizData.Questions {
		answers = append(answers, model.QuizAnswer{QuestionID: q.ID, Answer: "my answer"})
	}
	return postJSON(t, srv.URL+"/session/"+sessionID+"/quiz/submit", answers, out)
}

func TestFullSessionFlow(t *testing.T) {
	srv := newTestServer(t, &scriptedCompleter{jsonReplies: []string{planJSON, gradeJSON(3)}})
	sessionID := startSession(t, srv)

	quizData := driveToQuiz(t, srv, sessionID)
	if quizData.TotalQuestions != 5 || len(quizData.Questions) != 5 {
		t.Fatalf("quiz has %d questions, want 5", len(quizData.Questions))
	}
	if quizData.TimeLimitSeconds != 300 {
		t.Errorf("time limit = %d, want 300", quizData.TimeLimitSeconds)
	}

	// Chat during the quiz phase nudges back to the quiz form.
	var nudge model.ChatResponse
	req := model.ChatRequest{SessionID: sessionID, Message: "can I ask something?"}
	if code := postJSON(t, srv.URL+"/chat", req, &nudge); code != http.StatusOK {
		t.Fatalf("quiz chat status = %d", code)
	}
	if nudge.Phase != model.PhaseQuiz || nudge.QuizData != nil {
		t.Errorf("quiz-phase chat leaked quiz data or changed phase: %+v", nudge)
	}
	if !nudge.ShowQuiz {
		t.Error("quiz-phase chat should keep show_quiz set")
	}

	var submit model.SubmitResponse
	if code := submitAll(t, srv, sessionID, quizData, &submit); code != http.StatusOK {
		t.Fatalf("submit status = %d", code)
	}
	if !submit.Success || submit.AlreadyGraded {
		t.Fatalf("unexpected submit response: %+v", submit)
	}
	result := submit.QuizResult
	if result.Score != 3 || result.Total != 5 {
		t.Errorf("score = %d/%d, want 3/5", result.Score, result.Total)
	}
	if result.Percentage != 60 {
		t.Errorf("percentage = %v, want 60", result.Percentage)
	}
	if len(result.QuestionReviews) != 5 {
		t.Errorf("got %d reviews, want 5", len(result.QuestionReviews))
	}

	var status model.StatusResponse
	if code := getJSON(t, srv.URL+"/session/"+sessionID+"/status", &status); code != http.StatusOK {
		t.Fatalf("status code = %d", code)
	}
	if status.Phase != model.PhaseReview || !status.Graded {
		t.Errorf("final status = %+v, want graded review phase", status)
	}
}

func TestQuizDataAppearsExactlyOnce(t *testing.T) {
	srv := newTestServer(t, &scriptedCompleter{jsonReplies: []string{planJSON}})
	sessionID := startSession(t, srv)
	driveToQuiz(t, srv, sessionID)

	// No later chat response carries quiz data again.
	var chat model.ChatResponse
	req := model.ChatRequest{SessionID: sessionID, Message: "show me the quiz again"}
	if code := postJSON(t, srv.URL+"/chat", req, &chat); code != http.StatusOK {
		t.Fatalf("chat status = %d", code)
	}
	if chat.QuizData != nil {
		t.Error("quiz data was re-sent after the hand-off")
	}
}

func TestResubmitReturnsCachedResult(t *testing.T) {
	srv := newTestServer(t, &scriptedCompleter{jsonReplies: []string{planJSON, gradeJSON(5)}})
	sessionID := startSession(t, srv)
	quizData := driveToQuiz(t, srv, sessionID)

	var first model.SubmitResponse
	if code := submitAll(t, srv, sessionID, quizData, &first); code != http.StatusOK {
		t.Fatalf("first submit status = %d", code)
	}

	// The grade queue is exhausted: a second grading call would fail, so a
	// matching result proves the cache was used.
	var second model.SubmitResponse
	if code := submitAll(t, srv, sessionID, quizData, &second); code != http.StatusOK {
		t.Fatalf("second submit status = %d", code)
	}
	if !second.AlreadyGraded {
		t.Error("second submit not flagged already_graded")
	}
	if second.QuizResult.Score != first.QuizResult.Score {
		t.Errorf("cached score = %d, want %d", second.QuizResult.Score, first.QuizResult.Score)
	}
}

func TestSubmitValidation(t *testing.T) {
	srv := newTestServer(t, &scriptedCompleter{jsonReplies: []string{planJSON}})
	sessionID := startSession(t, srv)
	quizData := driveToQuiz(t, srv, sessionID)

	tests := []struct {
		name     string
		answers  []model.QuizAnswer
		wantCode string
	}{
		{"unknown question", []model.QuizAnswer{{QuestionID: 99, Answer: "x"}}, "unknown_question"},
		{"incomplete", []model.QuizAnswer{{QuestionID: quizData.Questions[0].ID, Answer: "x"}}, "incomplete_answers"},
		{"duplicate", []model.QuizAnswer{
			{QuestionID: quizData.Questions[0].ID, Answer: "x"},
			{QuestionID: quizData.Questions[0].ID, Answer: "y"},
		}, "duplicate_answer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var errResp model.ErrorResponse
			code := postJSON(t, srv.URL+"/session/"+sessionID+"/quiz/submit", tt.answers, &errResp)
			if code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", code)
			}
			if errResp.Code != tt.wantCode {
				t.Errorf("error code = %q, want %q", errResp.Code, tt.wantCode)
			}
		})
	}

	// A rejected submission does not grade the quiz.
	var status model.StatusResponse
	getJSON(t, srv.URL+"/session/"+sessionID+"/status", &status)
	if status.Graded {
		t.Error("session graded after rejected submissions")
	}
}

func TestSubmitBeforeQuiz(t *testing.T) {
	srv := newTestServer(t, &scriptedCompleter{})
	sessionID := startSession(t, srv)

	var errResp model.ErrorResponse
	code := postJSON(t, srv.URL+"/session/"+sessionID+"/quiz/submit", []model.QuizAnswer{}, &errResp)
	if code != http.StatusConflict {
		t.Errorf("status = %d, want 409", code)
	}
	if errResp.Code != "quiz_not_ready" {
		t.Errorf("error code = %q, want quiz_not_ready", errResp.Code)
	}
}

func TestUnknownSession(t *testing.T) {
	srv := newTestServer(t, &scriptedCompleter{})

	var errResp model.ErrorResponse
	req := model.ChatRequest{SessionID: "nope", Message: "hello"}
	if code := postJSON(t, srv.URL+"/chat", req, &errResp); code != http.StatusNotFound {
		t.Errorf("chat status = %d, want 404", code)
	}
	if errResp.Code != "session_not_found" {
		t.Errorf("error code = %q", errResp.Code)
	}

	if code := getJSON(t, srv.URL+"/session/nope/status", nil); code != http.StatusNotFound {
		t.Errorf("status status = %d, want 404", code)
	}
}

func TestEmptyMessageRejected(t *testing.T) {
	srv := newTestServer(t, &scriptedCompleter{})
	sessionID := startSession(t, srv)

	var errResp model.ErrorResponse
	req := model.ChatRequest{SessionID: sessionID, Message: "   "}
	if code := postJSON(t, srv.URL+"/chat", req, &errResp); code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", code)
	}
	if errResp.Code != "empty_message" {
		t.Errorf("error code = %q, want empty_message", errResp.Code)
	}
}

func TestQuizDataHidesAnswers(t *testing.T) {
	srv := newTestServer(t, &scriptedCompleter{jsonReplies: []string{planJSON}})
	sessionID := startSession(t, srv)

	// Work with the raw JSON so stray fields are visible.
	var chat struct {
		QuizData json.RawMessage `json:"quiz_data"`
	}
	for i := 0; i < model.EvalQuestionCount+teachExchanges; i++ {
		req := model.ChatRequest{SessionID: sessionID, Message: "an answer"}
		postJSON(t, srv.URL+"/chat", req, &chat)
	}
	if chat.QuizData == nil {
		t.Fatal("no quiz data at the hand-off")
	}
	if bytes.Contains(chat.QuizData, []byte("correct_answer")) ||
		bytes.Contains(chat.QuizData, []byte("explanation")) {
		t.Error("quiz data leaks answers or explanations")
	}
}

func TestPassageAndHealth(t *testing.T) {
	srv := newTestServer(t, &scriptedCompleter{})

	var p model.PassageResponse
	if code := getJSON(t, srv.URL+"/passage", &p); code != http.StatusOK {
		t.Fatalf("passage status = %d", code)
	}
	if p.Title == "" || p.Content == "" {
		t.Errorf("passage response incomplete: %+v", p)
	}

	var h model.HealthResponse
	if code := getJSON(t, srv.URL+"/health", &h); code != http.StatusOK {
		t.Fatalf("health status = %d", code)
	}
	if h.Status != "ok" || h.Version != "test" {
		t.Errorf("health = %+v", h)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	srv := newTestServer(t, &scriptedCompleter{})

	first := startSession(t, srv)
	second := startSession(t, srv)
	if first == second {
		t.Fatal("two sessions share an id")
	}

	req := model.ChatRequest{SessionID: first, Message: "an answer"}
	if code := postJSON(t, srv.URL+"/chat", req, nil); code != http.StatusOK {
		t.Fatalf("chat status = %d", code)
	}

	var status model.StatusResponse
	getJSON(t, srv.URL+"/session/"+second+"/status", &status)
	if status.Evaluation == nil || status.Evaluation.AnswersCollected != 0 {
		t.Errorf("second session saw the first session's answers: %+v", status.Evaluation)
	}
	getJSON(t, srv.URL+"/session/"+first+"/status", &status)
	if status.Evaluation == nil || status.Evaluation.AnswersCollected != 1 {
		t.Errorf("first session progress = %+v, want 1 answer", status.Evaluation)
	}
}

func TestSubmitAcceptsWrappedAnswers(t *testing.T) {
	srv := newTestServer(t, &scriptedCompleter{jsonReplies: []string{planJSON, gradeJSON(5)}})
	sessionID := startSession(t, srv)
	quizData := driveToQuiz(t, srv, sessionID)

	var answers []model.QuizAnswer
	for _, q := range quizData.Questions {
		answers = append(answers, model.QuizAnswer{QuestionID: q.ID, Answer: "wrapped"})
	}
	var submit model.SubmitResponse
	code := postJSON(t, srv.URL+"/session/"+sessionID+"/quiz/submit", model.SubmitRequest{Answers: answers}, &submit)
	if code != http.StatusOK {
		t.Fatalf("wrapped submit status = %d", code)
	}
	if !submit.Success {
		t.Error("wrapped submit failed")
	}
}
