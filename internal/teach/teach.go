// Package teach runs the guided teaching conversation between the
// evaluation and the quiz.
package teach

import (
	"context"
	"log/slog"

	"github.com/edaccel/tutor/internal/i18n"
	"github.com/edaccel/tutor/internal/llm"
	"github.com/edaccel/tutor/internal/llm/prompts"
	"github.com/edaccel/tutor/internal/model"
	"github.com/edaccel/tutor/internal/passage"
)

// DefaultExchanges is the number of completed student/tutor exchanges
// before the session moves on to the quiz.
const DefaultExchanges = 5

// Manager drives the teaching phase for a session.
type Manager struct {
	completer llm.Completer
	passage   passage.Passage
	exchanges int
}

// New creates a teaching manager. exchanges is the number of completed
// exchanges before the quiz; values below 1 fall back to DefaultExchanges.
func New(completer llm.Completer, p passage.Passage, exchanges int) *Manager {
	if exchanges < 1 {
		exchanges = DefaultExchanges
	}
	return &Manager{completer: completer, passage: p, exchanges: exchanges}
}

// Exchanges returns the configured exchange bound.
func (m *Manager) Exchanges() int { return m.exchanges }

// Intro opens the teaching conversation with a message tailored to the
// student's evaluation plan. A model failure degrades to a canned opener;
// either way the message is recorded on the session.
func (m *Manager) Intro(ctx context.Context, s *model.Session) string {
	intro := m.generateIntro(ctx, s)
	s.AddMessage(model.PhaseTeach, model.RoleTutor, intro)
	return intro
}

func (m *Manager) generateIntro(ctx context.Context, s *model.Session) string {
	system, err := prompts.BuildTeachSystem(m.passage, *s.Plan)
	if err != nil {
		slog.Error("build teach system prompt failed", "session", s.ID, "error", err)
		return i18n.T(ctx, "TeachIntroFallback")
	}
	opener, err := prompts.BuildTeachIntro(*s.Plan)
	if err != nil {
		slog.Error("build teach intro prompt failed", "session", s.ID, "error", err)
		return i18n.T(ctx, "TeachIntroFallback")
	}

	reply, err := m.completer.Complete(ctx, system, []model.Message{
		{Role: model.RoleStudent, Content: opener},
	})
	if err != nil {
		slog.Warn("teach intro model call failed, using fallback", "session", s.ID, "error", err)
		return i18n.T(ctx, "TeachIntroFallback")
	}
	return reply
}

// Reply handles one student message. The exchange counter advances only
// when the model produces a reply; a failed call yields an apology and
// leaves the counter unchanged, so the student never loses a turn to an
// outage. When the counter reaches the bound the reply carries a
// transition cue and done is true.
func (m *Manager) Reply(ctx context.Context, s *model.Session, text string) (reply string, done bool, err error) {
	s.AddMessage(model.PhaseTeach, model.RoleStudent, text)

	system, perr := prompts.BuildTeachSystem(m.passage, *s.Plan)
	if perr != nil {
		slog.Error("build teach system prompt failed", "session", s.ID, "error", perr)
		return m.apologize(ctx, s), false, nil
	}

	reply, cerr := m.completer.Complete(ctx, system, s.Conversation(model.PhaseTeach))
	if cerr != nil {
		slog.Warn("teach model call failed", "session", s.ID, "error", cerr)
		return m.apologize(ctx, s), false, nil
	}

	s.TeachExchanges++
	if s.TeachExchanges >= m.exchanges {
		reply += "\n\n" + i18n.T(ctx, "TeachTransitionCue")
		done = true
	}
	s.AddMessage(model.PhaseTeach, model.RoleTutor, reply)
	return reply, done, nil
}

func (m *Manager) apologize(ctx context.Context, s *model.Session) string {
	msg := i18n.T(ctx, "TeachApology")
	s.AddMessage(model.PhaseTeach, model.RoleTutor, msg)
	return msg
}
