package textgen

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// CannedCoachNote is used whenever no model could write a note.
const CannedCoachNote = "Solid effort. Consistency is the key to unlocking true speed."

const coachSystemPrompt = "You are a motivating typing coach."

// CoachRequest summarises one finished attempt.
type CoachRequest struct {
	WPM         int      `json:"wpm"`
	Accuracy    int      `json:"accuracy"`
	Errors      int      `json:"errors"`
	MissedChars []string `json:"missedChars"`
}

// Coach writes a one sentence note about an attempt. It never fails.
type Coach struct {
	models []Model
}

// NewCoach uses the models in order of preference.
func NewCoach(models ...Model) *Coach {
	return &Coach{models: models}
}

// Note returns model feedback, or CannedCoachNote when nothing answers.
func (c *Coach) Note(ctx context.Context, req CoachRequest) string {
	prompt := coachPrompt(req)
	for _, m := range c.models {
		note, err := m.Complete(ctx, coachSystemPrompt, prompt)
		if err != nil {
			log.Debug().Err(err).Msg("coach model failed")
			continue
		}
		if note = Clean(note); note != "" {
			return note
		}
	}
	return CannedCoachNote
}

func coachPrompt(req CoachRequest) string {
	missed := "none"
	if len(req.MissedChars) > 0 {
		missed = strings.Join(req.MissedChars, ", ")
	}
	return fmt.Sprintf("Act as a world-class typing coach. Analyze these stats: WPM: %d, Accuracy: %d%%, Total Errors: %d. "+
		"Frequently missed characters: %s. Provide a single, insightful, motivating sentence of feedback (max 20 words).",
		req.WPM, req.Accuracy, req.Errors, missed)
}
