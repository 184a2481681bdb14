package db

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

type TypingResult struct {
	ID              uuid.UUID
	UserID          string
	CreatedAt       time.Time
	Wpm             int32
	Accuracy        int32
	DurationSeconds float64
	Errors          int32
	Difficulty      string
	Mode            string
	TextLength      int32
	ErrorMap        pqtype.NullRawMessage
	MissedChars     []string
	CoachNote       sql.NullString
}

type PersonalBest struct {
	UserID     string
	Difficulty string
	Mode       string
	Wpm        int32
	UpdatedAt  time.Time
}

type LeaderboardRow struct {
	Rank     int64
	UserID   string
	Username string
	Score    int64
}
