package models

import (
	"time"

	"github.com/google/uuid"
)

// TypingResult is the outcome of one completed attempt.
type TypingResult struct {
	ID         uuid.UUID      `json:"id"`
	UserID     string         `json:"userId,omitempty"`
	Date       time.Time      `json:"date"`
	WPM        int            `json:"wpm"`
	Accuracy   int            `json:"accuracy"`
	Time       float64        `json:"time"`
	Errors     int            `json:"errors"`
	Difficulty Difficulty     `json:"difficulty"`
	Mode       GameMode       `json:"mode"`
	TextLength int            `json:"textLength"`
	ErrorMap   map[string]int `json:"errorMap,omitempty"`
	CoachNote  string         `json:"coachNote,omitempty"`
}

// PersonalBest is the best WPM recorded for a difficulty and mode.
type PersonalBest struct {
	UserID     string     `json:"userId"`
	Difficulty Difficulty `json:"difficulty"`
	Mode       GameMode   `json:"mode"`
	WPM        int        `json:"wpm"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Score is the leaderboard credit for the attempt: characters typed minus
// errors, never negative.
func (r TypingResult) Score() int64 {
	return int64(max(r.TextLength-r.Errors, 0))
}

// LeaderboardEntry is one racer's standing on the global board.
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Score    int64  `json:"score"`
}
