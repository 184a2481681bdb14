package textgen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	dailyKeyPrefix = "zippy:daily:"
	dailyTTL       = 48 * time.Hour
)

// DailyCache is the slice of a Redis client the daily text needs.
type DailyCache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// DailyText hands out one shared text per UTC day. The first caller of the
// day generates it; everyone else reads it back from Redis.
type DailyText struct {
	cache DailyCache
	gen   Generator
	clock clockwork.Clock
}

// NewDailyText creates a daily text source.
func NewDailyText(cache DailyCache, gen Generator, clock clockwork.Clock) *DailyText {
	return &DailyText{cache: cache, gen: gen, clock: clock}
}

// Key is the cache key for the day containing t.
func (d *DailyText) Key(t time.Time) string {
	return dailyKeyPrefix + t.UTC().Format("2006-01-02")
}

// Generate implements Generator.
func (d *DailyText) Generate(ctx context.Context, req Request) (string, error) {
	key := d.Key(d.clock.Now())

	text, err := d.cache.Get(ctx, key).Result()
	switch {
	case err == nil && text != "":
		return text, nil
	case err != nil && !errors.Is(err, redis.Nil):
		// a cache outage still gets a real text, just not a shared one
		log.Warn().Err(err).Str("key", key).Msg("daily text cache read failed")
	}

	text, err = d.gen.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("generate daily text: %w", err)
	}

	stored, err := d.cache.SetNX(ctx, key, text, dailyTTL).Result()
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("daily text cache write failed")
		return text, nil
	}
	if !stored {
		// another instance generated first; everyone types the same text
		if winner, err := d.cache.Get(ctx, key).Result(); err == nil && winner != "" {
			return winner, nil
		}
	}
	return text, nil
}
