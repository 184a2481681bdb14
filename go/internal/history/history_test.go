package history

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/zippy/go/internal/history/db"
	"github.com/mcdev12/zippy/go/internal/models"
)

type bestKey struct{ user, difficulty, mode string }

// memoryQueries mimics the SQL semantics of the generated queries.
type memoryQueries struct {
	mu      sync.Mutex
	results []db.InsertTypingResultParams
	bests   map[bestKey]db.PersonalBest
	board   map[string]db.AddLeaderboardScoreParams
	names   map[string]string
}

func newMemoryQueries() *memoryQueries {
	return &memoryQueries{
		bests: make(map[bestKey]db.PersonalBest),
		board: make(map[string]db.AddLeaderboardScoreParams),
		names: make(map[string]string),
	}
}

func (m *memoryQueries) InsertTypingResult(_ context.Context, arg db.InsertTypingResultParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, arg)
	return nil
}

func (m *memoryQueries) ListRecentTypingResults(_ context.Context, arg db.ListRecentTypingResultsParams) ([]db.TypingResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []db.TypingResult
	for _, r := range m.results {
		if r.UserID != arg.UserID {
			continue
		}
		out = append(out, db.TypingResult(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > int(arg.Limit) {
		out = out[:arg.Limit]
	}
	return out, nil
}

func (m *memoryQueries) GetPersonalBest(_ context.Context, arg db.GetPersonalBestParams) (db.PersonalBest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pb, ok := m.bests[bestKey{arg.UserID, arg.Difficulty, arg.Mode}]
	if !ok {
		return db.PersonalBest{}, sql.ErrNoRows
	}
	return pb, nil
}

func (m *memoryQueries) ListPersonalBests(_ context.Context, userID string) ([]db.PersonalBest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []db.PersonalBest
	for k, pb := range m.bests {
		if k.user == userID {
			out = append(out, pb)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Mode < out[j].Mode })
	return out, nil
}

func (m *memoryQueries) UpsertPersonalBest(_ context.Context, arg db.UpsertPersonalBestParams) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := bestKey{arg.UserID, arg.Difficulty, arg.Mode}
	if cur, ok := m.bests[key]; ok && cur.Wpm >= arg.Wpm {
		return 0, nil
	}
	m.bests[key] = db.PersonalBest(arg)
	return 1, nil
}

func (m *memoryQueries) AddLeaderboardScore(_ context.Context, arg db.AddLeaderboardScoreParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.board[arg.UserID]
	arg.Points += cur.Points
	m.board[arg.UserID] = arg
	return nil
}

func (m *memoryQueries) ranked() []db.LeaderboardRow {
	rows := make([]db.AddLeaderboardScoreParams, 0, len(m.board))
	for _, r := range m.board {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.Before(b.UpdatedAt)
		}
		return a.UserID < b.UserID
	})
	out := make([]db.LeaderboardRow, 0, len(rows))
	for i, r := range rows {
		out = append(out, db.LeaderboardRow{Rank: int64(i + 1), UserID: r.UserID, Username: m.names[r.UserID], Score: r.Points})
	}
	return out
}

func (m *memoryQueries) ListLeaderboard(_ context.Context, limit int32) ([]db.LeaderboardRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.ranked()
	if len(out) > int(limit) {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryQueries) GetLeaderboardEntry(_ context.Context, userID string) (db.LeaderboardRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.ranked() {
		if row.UserID == userID {
			return row, nil
		}
	}
	return db.LeaderboardRow{}, sql.ErrNoRows
}

func result(user string, wpm int, at time.Time) models.TypingResult {
	return models.TypingResult{
		ID:         uuid.New(),
		UserID:     user,
		Date:       at,
		WPM:        wpm,
		Accuracy:   97,
		Time:       31.5,
		Errors:     2,
		Difficulty: models.DifficultyHard,
		Mode:       models.GameModeSolo,
		TextLength: 120,
		ErrorMap:   map[string]int{"q": 1, "e": 3},
		CoachNote:  "Slow down on the q.",
	}
}

func TestRecordTracksPersonalBest(t *testing.T) {
	q := newMemoryQueries()
	app := NewApp(NewRepositoryWithQuerier(q))
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	improved, err := app.Record(ctx, result("u1", 70, base))
	require.NoError(t, err)
	assert.True(t, improved)

	improved, err = app.Record(ctx, result("u1", 65, base.Add(time.Minute)))
	require.NoError(t, err)
	assert.False(t, improved)

	improved, err = app.Record(ctx, result("u1", 70, base.Add(2*time.Minute)))
	require.NoError(t, err)
	assert.False(t, improved, "a tie is not an improvement")

	improved, err = app.Record(ctx, result("u1", 82, base.Add(3*time.Minute)))
	require.NoError(t, err)
	assert.True(t, improved)

	pb, ok, err := app.PersonalBest(ctx, "u1", models.DifficultyHard, models.GameModeSolo)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 82, pb.WPM)
	assert.Equal(t, base.Add(3*time.Minute), pb.UpdatedAt)

	require.Len(t, q.results, 4)
	assert.Equal(t, []string{"e", "q"}, q.results[0].MissedChars)
	assert.JSONEq(t, `{"q":1,"e":3}`, string(q.results[0].ErrorMap.RawMessage))
	assert.Equal(t, sql.NullString{String: "Slow down on the q.", Valid: true}, q.results[0].CoachNote)
}

func TestPersonalBestMissing(t *testing.T) {
	app := NewApp(NewRepositoryWithQuerier(newMemoryQueries()))

	_, ok, err := app.PersonalBest(context.Background(), "u1", models.DifficultyEasy, models.GameModeDaily)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRecentNewestFirstAndCapped(t *testing.T) {
	q := newMemoryQueries()
	app := NewApp(NewRepositoryWithQuerier(q))
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < MaxRecent+5; i++ {
		_, err := app.Record(ctx, result("u1", 40+i, base.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
	}
	_, err := app.Record(ctx, result("u2", 99, base))
	require.NoError(t, err)

	recent, err := app.Recent(ctx, "u1", 500)
	require.NoError(t, err)
	require.Len(t, recent, MaxRecent)
	assert.Equal(t, 40+MaxRecent+4, recent[0].WPM)
	assert.Equal(t, map[string]int{"q": 1, "e": 3}, recent[0].ErrorMap)
	assert.Equal(t, "Slow down on the q.", recent[0].CoachNote)

	few, err := app.Recent(ctx, "u1", 3)
	require.NoError(t, err)
	assert.Len(t, few, 3)

	_, err = app.Recent(ctx, "", 3)
	assert.ErrorIs(t, err, ErrInvalidResult)
}

func TestRecordValidation(t *testing.T) {
	app := NewApp(NewRepositoryWithQuerier(newMemoryQueries()))
	now := time.Now()

	tests := []struct {
		name   string
		mutate func(*models.TypingResult)
	}{
		{"guest", func(r *models.TypingResult) { r.UserID = "" }},
		{"negative wpm", func(r *models.TypingResult) { r.WPM = -1 }},
		{"accuracy above 100", func(r *models.TypingResult) { r.Accuracy = 101 }},
		{"unknown difficulty", func(r *models.TypingResult) { r.Difficulty = "nightmare" }},
		{"unknown mode", func(r *models.TypingResult) { r.Mode = "marathon" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := result("u1", 50, now)
			tt.mutate(&r)
			_, err := app.Record(context.Background(), r)
			assert.ErrorIs(t, err, ErrInvalidResult)
		})
	}
}

func TestPersonalBestsList(t *testing.T) {
	app := NewApp(NewRepositoryWithQuerier(newMemoryQueries()))
	ctx := context.Background()

	solo := result("u1", 60, time.Now())
	timed := result("u1", 55, time.Now())
	timed.Mode = models.GameModeTimeAttack
	require.NoError(t, app.RecordAttempt(ctx, solo))
	require.NoError(t, app.RecordAttempt(ctx, timed))

	bests, err := app.PersonalBests(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, bests, 2)
	assert.Equal(t, models.GameModeSolo, bests[0].Mode)
	assert.Equal(t, 55, bests[1].WPM)
}

func TestLeaderboardRanksByScore(t *testing.T) {
	q := newMemoryQueries()
	q.names["u2"] = "Bo"
	app := NewApp(NewRepositoryWithQuerier(q))
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	// result() types 120 chars with 2 errors, 118 points an attempt
	require.NoError(t, app.RecordAttempt(ctx, result("u1", 50, base)))
	require.NoError(t, app.RecordAttempt(ctx, result("u2", 70, base.Add(time.Minute))))
	require.NoError(t, app.RecordAttempt(ctx, result("u2", 70, base.Add(2*time.Minute))))
	require.NoError(t, app.RecordAttempt(ctx, result("u3", 90, base.Add(3*time.Minute))))
	sloppy := result("u4", 20, base)
	sloppy.Errors = 500
	require.NoError(t, app.RecordAttempt(ctx, sloppy))

	board, err := app.Leaderboard(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []models.LeaderboardEntry{
		{Rank: 1, UserID: "u2", Username: "Bo", Score: 236},
		{Rank: 2, UserID: "u1", Score: 118},
		{Rank: 3, UserID: "u3", Score: 118},
		{Rank: 4, UserID: "u4", Score: 0},
	}, board)

	top, err := app.Leaderboard(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, top, 2)

	standing, ok, err := app.Standing(ctx, "u3")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, standing.Rank)

	_, ok, err = app.Standing(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = app.Standing(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidResult)
}

func TestStandingBeyondListedTop(t *testing.T) {
	q := newMemoryQueries()
	app := NewApp(NewRepositoryWithQuerier(q))
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < MaxLeaderboard+3; i++ {
		r := result(fmt.Sprintf("u%03d", i), 60, base.Add(time.Duration(i)*time.Second))
		r.TextLength = 1000 - i
		require.NoError(t, app.RecordAttempt(ctx, r))
	}

	board, err := app.Leaderboard(ctx, 1000)
	require.NoError(t, err)
	assert.Len(t, board, MaxLeaderboard)

	last, ok, err := app.Standing(ctx, fmt.Sprintf("u%03d", MaxLeaderboard+2))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, MaxLeaderboard+3, last.Rank)
}
