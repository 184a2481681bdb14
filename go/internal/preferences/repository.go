package preferences

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcdev12/zippy/go/internal/models"
)

// DB is the slice of *pgxpool.Pool the repository uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ DB = (*pgxpool.Pool)(nil)

const (
	loadPreferences = `SELECT preferences FROM user_preferences WHERE user_id = $1`

	upsertPreferences = `
INSERT INTO user_preferences (user_id, preferences, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (user_id) DO UPDATE
SET preferences = EXCLUDED.preferences, updated_at = EXCLUDED.updated_at`
)

// Repository stores one JSONB preference bundle per user.
type Repository struct {
	db DB
}

func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

// Connect opens a tuned pool for databaseURL and checks it answers.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 10 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return pool, nil
}

// Load returns the stored bundle, or nil with no error for unknown users.
func (r *Repository) Load(ctx context.Context, userID string) (*models.Preferences, error) {
	var raw []byte
	err := r.db.QueryRow(ctx, loadPreferences, userID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}

	var prefs models.Preferences
	if err := json.Unmarshal(raw, &prefs); err != nil {
		return nil, fmt.Errorf("failed to decode preferences for %s: %w", userID, err)
	}
	return &prefs, nil
}

// Save replaces the user's bundle.
func (r *Repository) Save(ctx context.Context, userID string, prefs models.Preferences) error {
	if userID == "" {
		return ErrNoUser
	}
	raw, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	if _, err := r.db.Exec(ctx, upsertPreferences, userID, raw); err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}
