package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/zippy/go/internal/models"
)

const (
	// MaxRecent caps how many attempts a history listing returns.
	MaxRecent = 50
	// MaxLeaderboard caps how many racers the global board lists.
	MaxLeaderboard = 100
)

// HistoryRepository defines what the app layer needs from the repository
type HistoryRepository interface {
	SaveAttempt(ctx context.Context, result models.TypingResult) (bool, error)
	ListRecent(ctx context.Context, userID string, limit int) ([]models.TypingResult, error)
	GetPersonalBest(ctx context.Context, userID string, d models.Difficulty, m models.GameMode) (*models.PersonalBest, error)
	ListPersonalBests(ctx context.Context, userID string) ([]models.PersonalBest, error)
	ListLeaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
	GetLeaderboardEntry(ctx context.Context, userID string) (*models.LeaderboardEntry, error)
}

// App handles attempt history business logic
type App struct {
	repo HistoryRepository
}

func NewApp(repo HistoryRepository) *App {
	return &App{repo: repo}
}

// Record validates and stores a finished attempt, reporting whether it set
// a new personal best.
func (a *App) Record(ctx context.Context, result models.TypingResult) (bool, error) {
	if err := validate(result); err != nil {
		return false, fmt.Errorf("validation failed: %w", err)
	}

	improved, err := a.repo.SaveAttempt(ctx, result)
	if err != nil {
		return false, err
	}

	log.Info().
		Str("user_id", result.UserID).
		Str("mode", string(result.Mode)).
		Int("wpm", result.WPM).
		Bool("personal_best", improved).
		Msg("recorded attempt")
	return improved, nil
}

// RecordAttempt stores result and drops the personal best flag.
func (a *App) RecordAttempt(ctx context.Context, result models.TypingResult) error {
	_, err := a.Record(ctx, result)
	return err
}

// Recent returns the newest attempts, at most MaxRecent.
func (a *App) Recent(ctx context.Context, userID string, limit int) ([]models.TypingResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidResult)
	}
	if limit <= 0 || limit > MaxRecent {
		limit = MaxRecent
	}
	return a.repo.ListRecent(ctx, userID, limit)
}

// PersonalBest returns the stored best, ok is false when none exists.
func (a *App) PersonalBest(ctx context.Context, userID string, d models.Difficulty, m models.GameMode) (models.PersonalBest, bool, error) {
	pb, err := a.repo.GetPersonalBest(ctx, userID, d, m)
	if errors.Is(err, ErrNotFound) {
		return models.PersonalBest{}, false, nil
	}
	if err != nil {
		return models.PersonalBest{}, false, err
	}
	return *pb, true, nil
}

func (a *App) PersonalBests(ctx context.Context, userID string) ([]models.PersonalBest, error) {
	return a.repo.ListPersonalBests(ctx, userID)
}

// Leaderboard returns the top racers by score, at most MaxLeaderboard.
func (a *App) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 || limit > MaxLeaderboard {
		limit = MaxLeaderboard
	}
	return a.repo.ListLeaderboard(ctx, limit)
}

// Standing returns userID's rank on the whole board, not just the listed
// top. ok is false until the user records an attempt.
func (a *App) Standing(ctx context.Context, userID string) (models.LeaderboardEntry, bool, error) {
	if userID == "" {
		return models.LeaderboardEntry{}, false, fmt.Errorf("%w: user id is required", ErrInvalidResult)
	}
	entry, err := a.repo.GetLeaderboardEntry(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return models.LeaderboardEntry{}, false, nil
	}
	if err != nil {
		return models.LeaderboardEntry{}, false, err
	}
	return *entry, true, nil
}

func validate(r models.TypingResult) error {
	switch {
	case r.UserID == "":
		return fmt.Errorf("%w: user id is required", ErrInvalidResult)
	case r.WPM < 0:
		return fmt.Errorf("%w: negative wpm", ErrInvalidResult)
	case r.Accuracy < 0 || r.Accuracy > 100:
		return fmt.Errorf("%w: accuracy %d out of range", ErrInvalidResult, r.Accuracy)
	}
	if _, err := models.ParseDifficulty(string(r.Difficulty)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResult, err)
	}
	if _, err := models.ParseGameMode(string(r.Mode)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResult, err)
	}
	return nil
}
