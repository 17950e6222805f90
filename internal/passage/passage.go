// Package passage holds the reading passage every session works against.
package passage

import (
	_ "embed"
	"strings"
)

//go:embed passage.txt
var content string

// Passage is a reading text with a coarse difficulty label.
type Passage struct {
	Title      string
	Content    string
	Difficulty string
}

// Default returns the embedded passage.
func Default() Passage {
	return Passage{
		Title:      "The Secret Life of Honeybees",
		Content:    strings.TrimSpace(content),
		Difficulty: "medium",
	}
}
