package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/mcdev12/zippy/go/internal/history/db"
	"github.com/mcdev12/zippy/go/internal/models"
	"github.com/mcdev12/zippy/go/internal/sqlutil"
)

type Querier interface {
	InsertTypingResult(ctx context.Context, arg db.InsertTypingResultParams) error
	ListRecentTypingResults(ctx context.Context, arg db.ListRecentTypingResultsParams) ([]db.TypingResult, error)
	GetPersonalBest(ctx context.Context, arg db.GetPersonalBestParams) (db.PersonalBest, error)
	ListPersonalBests(ctx context.Context, userID string) ([]db.PersonalBest, error)
	UpsertPersonalBest(ctx context.Context, arg db.UpsertPersonalBestParams) (int64, error)
	AddLeaderboardScore(ctx context.Context, arg db.AddLeaderboardScoreParams) error
	ListLeaderboard(ctx context.Context, limit int32) ([]db.LeaderboardRow, error)
	GetLeaderboardEntry(ctx context.Context, userID string) (db.LeaderboardRow, error)
}

type Repository struct {
	queries Querier
	inTx    func(ctx context.Context, fn func(Querier) error) error
}

// NewRepository binds the repository to a Postgres handle.
func NewRepository(database *sql.DB) *Repository {
	return &Repository{
		queries: db.New(database),
		inTx: func(ctx context.Context, fn func(Querier) error) error {
			return sqlutil.Run(ctx, database, db.New(database).WithTx, func(q *db.Queries) error {
				return fn(q)
			})
		},
	}
}

// NewRepositoryWithQuerier runs every call, transactional ones included,
// straight against q.
func NewRepositoryWithQuerier(q Querier) *Repository {
	return &Repository{
		queries: q,
		inTx: func(_ context.Context, fn func(Querier) error) error {
			return fn(q)
		},
	}
}

// SaveAttempt inserts the result, raises the personal best and credits the
// leaderboard in one transaction. It reports whether the best improved.
func (r *Repository) SaveAttempt(ctx context.Context, result models.TypingResult) (bool, error) {
	errorMap, err := sqlutil.ToNullJSON(result.ErrorMap)
	if err != nil {
		return false, fmt.Errorf("failed to encode error map: %w", err)
	}

	improved := false
	err = r.inTx(ctx, func(q Querier) error {
		if err := q.InsertTypingResult(ctx, db.InsertTypingResultParams{
			ID:              result.ID,
			UserID:          result.UserID,
			CreatedAt:       result.Date,
			Wpm:             int32(result.WPM),
			Accuracy:        int32(result.Accuracy),
			DurationSeconds: result.Time,
			Errors:          int32(result.Errors),
			Difficulty:      string(result.Difficulty),
			Mode:            string(result.Mode),
			TextLength:      int32(result.TextLength),
			ErrorMap:        errorMap,
			MissedChars:     missedChars(result.ErrorMap),
			CoachNote:       sqlutil.ToSqlString(result.CoachNote),
		}); err != nil {
			return fmt.Errorf("failed to insert typing result: %w", err)
		}

		n, err := q.UpsertPersonalBest(ctx, db.UpsertPersonalBestParams{
			UserID:     result.UserID,
			Difficulty: string(result.Difficulty),
			Mode:       string(result.Mode),
			Wpm:        int32(result.WPM),
			UpdatedAt:  result.Date,
		})
		if err != nil {
			return fmt.Errorf("failed to upsert personal best: %w", err)
		}
		improved = n > 0

		if err := q.AddLeaderboardScore(ctx, db.AddLeaderboardScoreParams{
			UserID:    result.UserID,
			Points:    result.Score(),
			UpdatedAt: result.Date,
		}); err != nil {
			return fmt.Errorf("failed to add leaderboard score: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return improved, nil
}

func (r *Repository) ListRecent(ctx context.Context, userID string, limit int) ([]models.TypingResult, error) {
	rows, err := r.queries.ListRecentTypingResults(ctx, db.ListRecentTypingResultsParams{
		UserID: userID,
		Limit:  int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list typing results: %w", err)
	}

	out := make([]models.TypingResult, 0, len(rows))
	for _, row := range rows {
		res, err := r.dbResultToModel(row)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

func (r *Repository) GetPersonalBest(ctx context.Context, userID string, d models.Difficulty, m models.GameMode) (*models.PersonalBest, error) {
	row, err := r.queries.GetPersonalBest(ctx, db.GetPersonalBestParams{
		UserID:     userID,
		Difficulty: string(d),
		Mode:       string(m),
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get personal best: %w", err)
	}
	pb := dbBestToModel(row)
	return &pb, nil
}

func (r *Repository) ListPersonalBests(ctx context.Context, userID string) ([]models.PersonalBest, error) {
	rows, err := r.queries.ListPersonalBests(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list personal bests: %w", err)
	}
	out := make([]models.PersonalBest, 0, len(rows))
	for _, row := range rows {
		out = append(out, dbBestToModel(row))
	}
	return out, nil
}

func (r *Repository) ListLeaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	rows, err := r.queries.ListLeaderboard(ctx, int32(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list leaderboard: %w", err)
	}
	out := make([]models.LeaderboardEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, dbLeaderboardToModel(row))
	}
	return out, nil
}

func (r *Repository) GetLeaderboardEntry(ctx context.Context, userID string) (*models.LeaderboardEntry, error) {
	row, err := r.queries.GetLeaderboardEntry(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard entry: %w", err)
	}
	entry := dbLeaderboardToModel(row)
	return &entry, nil
}

func (r *Repository) dbResultToModel(row db.TypingResult) (models.TypingResult, error) {
	errorMap, err := sqlutil.FromNullJSON[int](row.ErrorMap)
	if err != nil {
		return models.TypingResult{}, fmt.Errorf("failed to decode error map of %s: %w", row.ID, err)
	}
	return models.TypingResult{
		ID:         row.ID,
		UserID:     row.UserID,
		Date:       row.CreatedAt.UTC(),
		WPM:        int(row.Wpm),
		Accuracy:   int(row.Accuracy),
		Time:       row.DurationSeconds,
		Errors:     int(row.Errors),
		Difficulty: models.Difficulty(row.Difficulty),
		Mode:       models.GameMode(row.Mode),
		TextLength: int(row.TextLength),
		ErrorMap:   errorMap,
		CoachNote:  sqlutil.FromSqlString(row.CoachNote, ""),
	}, nil
}

func dbBestToModel(row db.PersonalBest) models.PersonalBest {
	return models.PersonalBest{
		UserID:     row.UserID,
		Difficulty: models.Difficulty(row.Difficulty),
		Mode:       models.GameMode(row.Mode),
		WPM:        int(row.Wpm),
		UpdatedAt:  row.UpdatedAt.In(time.UTC),
	}
}

func dbLeaderboardToModel(row db.LeaderboardRow) models.LeaderboardEntry {
	return models.LeaderboardEntry{
		Rank:     int(row.Rank),
		UserID:   row.UserID,
		Username: row.Username,
		Score:    row.Score,
	}
}

// missedChars lists the keys of an error map, most missed first.
func missedChars(errorMap map[string]int) []string {
	keys := make([]string, 0, len(errorMap))
	for k := range errorMap {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if errorMap[keys[i]] != errorMap[keys[j]] {
			return errorMap[keys[i]] > errorMap[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}
