// Package prompts builds the model prompts from embedded text templates.
package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/edaccel/tutor/internal/model"
	"github.com/edaccel/tutor/internal/passage"
)

//go:embed templates/*.txt
var templateFS embed.FS

var systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)

var (
	loadOnce  sync.Once
	loadErr   error
	templates map[string]*template.Template
)

var templateNames = []string{"eval_plan", "teach_system", "teach_intro", "quiz_grade"}

// Load parses the embedded prompt templates.
// It uses sync.Once to ensure templates are loaded only once.
func Load() error {
	loadOnce.Do(func() {
		templates = make(map[string]*template.Template)
		for _, name := range templateNames {
			file := "templates/" + name + ".txt"
			content, err := fs.ReadFile(templateFS, file)
			if err != nil {
				loadErr = errors.New("failed to read prompt file " + file + ": " + err.Error())
				return
			}
			tmpl, err := template.New(name).Parse(string(content))
			if err != nil {
				loadErr = errors.New("failed to parse prompt template " + file + ": " + err.Error())
				return
			}
			templates[name] = tmpl
		}
	})
	return loadErr
}

// EvalAnswer pairs an evaluation question with the student's answer.
type EvalAnswer struct {
	Label  string
	Prompt string
	Answer string
}

// EvalPlanData holds template data for the evaluation plan prompt.
type EvalPlanData struct {
	PassageTitle   string
	PassageContent string
	Answers        []EvalAnswer
}

// TeachData holds template data for the teaching system prompt.
type TeachData struct {
	PassageTitle   string
	PassageContent string
	Level          string
	Focus          string
}

// IntroData holds template data for the teaching intro prompt.
type IntroData struct {
	Focus string
}

// GradeItem pairs a quiz question with the student's answer.
type GradeItem struct {
	ID            int
	Question      string
	CorrectAnswer string
	Answer        string
}

// GradeData holds template data for the quiz grading prompt.
type GradeData struct {
	PassageTitle   string
	PassageContent string
	Items          []GradeItem
}

// BuildEvalPlan builds the prompt that asks the model to assess the
// student's evaluation answers and produce a teaching plan.
func BuildEvalPlan(p passage.Passage, questions []model.EvalQuestion, answers []string) (string, error) {
	data := EvalPlanData{
		PassageTitle:   p.Title,
		PassageContent: p.Content,
	}
	for i, q := range questions {
		answer := "[No answer provided]"
		if i < len(answers) {
			answer = sanitize(answers[i])
		}
		data.Answers = append(data.Answers, EvalAnswer{Label: q.Label, Prompt: q.Prompt, Answer: answer})
	}
	return execute("eval_plan", data)
}

// BuildTeachSystem builds the system instruction for the teaching phase.
func BuildTeachSystem(p passage.Passage, plan model.EvaluationPlan) (string, error) {
	return execute("teach_system", TeachData{
		PassageTitle:   p.Title,
		PassageContent: p.Content,
		Level:          string(plan.Level),
		Focus:          plan.Focus,
	})
}

// BuildTeachIntro builds the user prompt that opens the teaching phase.
func BuildTeachIntro(plan model.EvaluationPlan) (string, error) {
	return execute("teach_intro", IntroData{Focus: plan.Focus})
}

// BuildQuizGrade builds the prompt that grades all quiz answers in one call.
func BuildQuizGrade(p passage.Passage, questions []model.QuizQuestion, answers map[int]string) (string, error) {
	data := GradeData{
		PassageTitle:   p.Title,
		PassageContent: p.Content,
	}
	for _, q := range questions {
		data.Items = append(data.Items, GradeItem{
			ID:            q.ID,
			Question:      q.Question,
			CorrectAnswer: q.CorrectAnswer,
			Answer:        sanitize(answers[q.ID]),
		})
	}
	return execute("quiz_grade", data)
}

func execute(name string, data any) (string, error) {
	if err := Load(); err != nil {
		return "", err
	}
	tmpl, ok := templates[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt template %q", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func sanitize(answer string) string {
	answer = systemInstructionsRegex.ReplaceAllString(answer, "")
	answer = strings.TrimSpace(answer)

	if answer == "" {
		return "[No answer provided]"
	}

	if utf8.RuneCountInString(answer) > 10000 {
		runes := []rune(answer)
		runes = runes[:10000]
		answer = string(runes) + "\n\n[Answer truncated due to length]"
	}

	return answer
}
