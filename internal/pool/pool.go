// Package pool holds the fixed question bank: three open-ended evaluation
// prompts plus per-tier comprehension questions used for both the seeded
// evaluation draw and quiz assembly.
package pool

import (
	"embed"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"os"

	"github.com/edaccel/tutor/internal/model"
)

//go:embed bank.json
var bankFS embed.FS

// EvalPerTier is the number of questions DrawEvaluation consumes from the
// head of each tier's permutation. Later draws skip past them.
const EvalPerTier = 1

// minPerTier is the startup invariant: each tier must cover the evaluation
// draw plus the largest per-tier quiz draw (three questions) without overlap.
const minPerTier = 4

// Question is one bank entry: a prompt with its expected answer and the
// explanation used for post-quiz feedback.
type Question struct {
	Question    string `json:"question"`
	Answer      string `json:"answer"`
	Explanation string `json:"explanation"`
}

// Bank is the full question bank, keyed by difficulty tier.
type Bank struct {
	Easy   []Question `json:"easy"`
	Medium []Question `json:"medium"`
	Hard   []Question `json:"hard"`
}

// The three fixed open-ended evaluation prompts. They are framed as general
// dialogue; the student is never told this is an assessment.
var fixedPrompts = []model.EvalQuestion{
	{Label: "Main Idea", Prompt: "I'm going to ask you a few questions so I can tailor your learning. Can you first tell me what this passage is about?"},
	{Label: "Interest", Prompt: "What did you like most about this passage or find most interesting?"},
	{Label: "Fiction vs Non-fiction", Prompt: "Would you say this piece is fictional or non-fictional? What makes you think that?"},
}

// Load parses and validates the embedded bank.
func Load() (*Bank, error) {
	data, err := bankFS.ReadFile("bank.json")
	if err != nil {
		return nil, fmt.Errorf("read embedded bank: %w", err)
	}
	return parse(data)
}

// LoadFile parses and validates a bank override from disk.
func LoadFile(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return parse(data)
}

func parse(data []byte) (*Bank, error) {
	var b Bank
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse question bank: %w", err)
	}
	for tier, qs := range map[string][]Question{
		"easy": b.Easy, "medium": b.Medium, "hard": b.Hard,
	} {
		if len(qs) < minPerTier {
			return nil, fmt.Errorf("question bank tier %q has %d entries, need at least %d", tier, len(qs), minPerTier)
		}
		for i, q := range qs {
			if q.Question == "" || q.Answer == "" {
				return nil, fmt.Errorf("question bank tier %q entry %d has an empty question or answer", tier, i)
			}
		}
	}
	return &b, nil
}

// Seed derives a deterministic sampling seed from a session id, so repeated
// draws within one session are stable without persisting the drawn set.
func Seed(sessionID string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(sessionID))
	return h.Sum64()
}

// Tier returns the bank entries for a difficulty tier.
func (b *Bank) Tier(d model.Difficulty) []Question {
	switch d {
	case model.DifficultyEasy:
		return b.Easy
	case model.DifficultyMedium:
		return b.Medium
	case model.DifficultyHard:
		return b.Hard
	}
	return nil
}

// DrawEvaluation returns the six ordered evaluation prompts for a session:
// the three fixed open-ended prompts, then one easy, one medium, and one
// hard question sampled without replacement, deterministic per seed.
func (b *Bank) DrawEvaluation(seed uint64) []model.EvalQuestion {
	qs := make([]model.EvalQuestion, 0, model.EvalQuestionCount)
	qs = append(qs, fixedPrompts...)

	for _, tier := range []struct {
		d     model.Difficulty
		label string
	}{
		{model.DifficultyEasy, "Easy Question"},
		{model.DifficultyMedium, "Medium Question"},
		{model.DifficultyHard, "Hard Question"},
	} {
		picked := b.Sample(seed, tier.d, 1)
		qs = append(qs, model.EvalQuestion{Label: tier.label, Prompt: picked[0].Question})
	}
	return qs
}

// Sample returns n questions from a tier, sampled without replacement and
// deterministic per seed. n is clamped to the tier size.
func (b *Bank) Sample(seed uint64, d model.Difficulty, n int) []Question {
	return b.SampleAfter(seed, d, 0, n)
}

// SampleAfter works like Sample but skips the first skip entries of the
// tier's permutation. The evaluation draw takes the head of each
// permutation, so quiz assembly passes EvalPerTier here and never re-asks
// a question the student answered during evaluation.
func (b *Bank) SampleAfter(seed uint64, d model.Difficulty, skip, n int) []Question {
	tier := b.Tier(d)
	if skip < 0 {
		skip = 0
	}
	if skip > len(tier) {
		skip = len(tier)
	}
	if n > len(tier)-skip {
		n = len(tier) - skip
	}
	if n <= 0 {
		return nil
	}
	// Mix the tier into the seed so different tiers of the same session
	// draw independent permutations.
	h := fnv.New64a()
	h.Write([]byte(d))
	r := rand.New(rand.NewPCG(seed, h.Sum64()))

	out := make([]Question, 0, n)
	for _, idx := range r.Perm(len(tier))[skip : skip+n] {
		out = append(out, tier[idx])
	}
	return out
}
