package textgen

import (
	"context"
	"fmt"
	"strings"

	"github.com/mcdev12/zippy/go/internal/models"
)

// Length is the desired size bucket of a generated sentence.
type Length string

const (
	LengthShort  Length = "short"
	LengthMedium Length = "medium"
	LengthLong   Length = "long"
)

// DefaultCategory means no particular topic.
const DefaultCategory = "General"

// Request describes the text a race needs.
type Request struct {
	Difficulty models.Difficulty `json:"difficulty"`
	Category   string            `json:"category"`
	// Seed loosely steers the content, for example a custom topic.
	Seed string `json:"seed,omitempty"`
	// TargetChars are keys the typist keeps missing; the text should lean on them.
	TargetChars []string `json:"targetChars,omitempty"`
	Length      Length   `json:"length,omitempty"`
}

// Generator produces race text.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Model is a chat style completion backend.
type Model interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

func (l Length) words() string {
	switch l {
	case LengthShort:
		return "6-8 words"
	case LengthLong:
		return "20-25 words"
	default:
		return "10-13 words"
	}
}

// Prompt renders the instruction sent to a model for req.
func Prompt(req Request) string {
	theme := req.Category
	if theme == "" || theme == DefaultCategory {
		theme = "fascinating trivia or life philosophy"
	}
	difficulty := req.Difficulty
	if difficulty == "" {
		difficulty = models.DifficultyMedium
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Generate a single %s level typing practice sentence about %q.\n", difficulty, theme)
	if req.Seed != "" {
		fmt.Fprintf(&b, "Base the content loosely on: %s.\n", req.Seed)
	}
	if len(req.TargetChars) > 0 {
		fmt.Fprintf(&b, "The typist struggles with these keys: [%s]. Use them far more often than normal text would.\n",
			strings.Join(req.TargetChars, ", "))
	}
	fmt.Fprintf(&b, "Length: %s.\n", req.Length.words())
	b.WriteString("Return only the sentence. No quotes. No labels.")
	return b.String()
}
