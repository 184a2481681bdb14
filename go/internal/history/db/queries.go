package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"
)

const insertTypingResult = `
INSERT INTO typing_results (
    id, user_id, created_at, wpm, accuracy, duration_seconds, errors,
    difficulty, mode, text_length, error_map, missed_chars, coach_note
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
`

type InsertTypingResultParams struct {
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

func (q *Queries) InsertTypingResult(ctx context.Context, arg InsertTypingResultParams) error {
	_, err := q.db.ExecContext(ctx, insertTypingResult,
		arg.ID,
		arg.UserID,
		arg.CreatedAt,
		arg.Wpm,
		arg.Accuracy,
		arg.DurationSeconds,
		arg.Errors,
		arg.Difficulty,
		arg.Mode,
		arg.TextLength,
		arg.ErrorMap,
		pq.Array(arg.MissedChars),
		arg.CoachNote,
	)
	return err
}

const listRecentTypingResults = `
SELECT id, user_id, created_at, wpm, accuracy, duration_seconds, errors,
       difficulty, mode, text_length, error_map, missed_chars, coach_note
FROM typing_results
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2
`

type ListRecentTypingResultsParams struct {
	UserID string
	Limit  int32
}

func (q *Queries) ListRecentTypingResults(ctx context.Context, arg ListRecentTypingResultsParams) ([]TypingResult, error) {
	rows, err := q.db.QueryContext(ctx, listRecentTypingResults, arg.UserID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []TypingResult
	for rows.Next() {
		var i TypingResult
		if err := rows.Scan(
			&i.ID,
			&i.UserID,
			&i.CreatedAt,
			&i.Wpm,
			&i.Accuracy,
			&i.DurationSeconds,
			&i.Errors,
			&i.Difficulty,
			&i.Mode,
			&i.TextLength,
			&i.ErrorMap,
			pq.Array(&i.MissedChars),
			&i.CoachNote,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getPersonalBest = `
SELECT user_id, difficulty, mode, wpm, updated_at
FROM personal_bests
WHERE user_id = $1 AND difficulty = $2 AND mode = $3
`

type GetPersonalBestParams struct {
	UserID     string
	Difficulty string
	Mode       string
}

func (q *Queries) GetPersonalBest(ctx context.Context, arg GetPersonalBestParams) (PersonalBest, error) {
	row := q.db.QueryRowContext(ctx, getPersonalBest, arg.UserID, arg.Difficulty, arg.Mode)
	var i PersonalBest
	err := row.Scan(&i.UserID, &i.Difficulty, &i.Mode, &i.Wpm, &i.UpdatedAt)
	return i, err
}

const listPersonalBests = `
SELECT user_id, difficulty, mode, wpm, updated_at
FROM personal_bests
WHERE user_id = $1
ORDER BY difficulty, mode
`

func (q *Queries) ListPersonalBests(ctx context.Context, userID string) ([]PersonalBest, error) {
	rows, err := q.db.QueryContext(ctx, listPersonalBests, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []PersonalBest
	for rows.Next() {
		var i PersonalBest
		if err := rows.Scan(&i.UserID, &i.Difficulty, &i.Mode, &i.Wpm, &i.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Only replaces the stored row when the new WPM is strictly higher.
const upsertPersonalBest = `
INSERT INTO personal_bests (user_id, difficulty, mode, wpm, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id, difficulty, mode) DO UPDATE
SET wpm = EXCLUDED.wpm, updated_at = EXCLUDED.updated_at
WHERE personal_bests.wpm < EXCLUDED.wpm
`

type UpsertPersonalBestParams struct {
	UserID     string
	Difficulty string
	Mode       string
	Wpm        int32
	UpdatedAt  time.Time
}

func (q *Queries) UpsertPersonalBest(ctx context.Context, arg UpsertPersonalBestParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, upsertPersonalBest,
		arg.UserID,
		arg.Difficulty,
		arg.Mode,
		arg.Wpm,
		arg.UpdatedAt,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const addLeaderboardScore = `
INSERT INTO leaderboard (user_id, score, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (user_id) DO UPDATE
SET score = leaderboard.score + EXCLUDED.score, updated_at = EXCLUDED.updated_at
`

type AddLeaderboardScoreParams struct {
	UserID    string
	Points    int64
	UpdatedAt time.Time
}

func (q *Queries) AddLeaderboardScore(ctx context.Context, arg AddLeaderboardScoreParams) error {
	_, err := q.db.ExecContext(ctx, addLeaderboardScore, arg.UserID, arg.Points, arg.UpdatedAt)
	return err
}

// Earlier arrival breaks score ties so ranks are stable between calls.
const rankedLeaderboard = `
SELECT ROW_NUMBER() OVER (ORDER BY l.score DESC, l.updated_at, l.user_id) AS rank,
       l.user_id,
       COALESCE(p.preferences -> 'user_profile' ->> 'username', '') AS username,
       l.score
FROM leaderboard l
LEFT JOIN user_preferences p ON p.user_id = l.user_id
`

const listLeaderboard = rankedLeaderboard + `
ORDER BY rank
LIMIT $1
`

func (q *Queries) ListLeaderboard(ctx context.Context, limit int32) ([]LeaderboardRow, error) {
	rows, err := q.db.QueryContext(ctx, listLeaderboard, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []LeaderboardRow
	for rows.Next() {
		var i LeaderboardRow
		if err := rows.Scan(&i.Rank, &i.UserID, &i.Username, &i.Score); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getLeaderboardEntry = `
SELECT rank, user_id, username, score
FROM (` + rankedLeaderboard + `) ranked
WHERE user_id = $1
`

func (q *Queries) GetLeaderboardEntry(ctx context.Context, userID string) (LeaderboardRow, error) {
	row := q.db.QueryRowContext(ctx, getLeaderboardEntry, userID)
	var i LeaderboardRow
	err := row.Scan(&i.Rank, &i.UserID, &i.Username, &i.Score)
	return i, err
}
