// Package usage remembers which addresses already spent the one free solo
// attempt guests get.
package usage

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"
)

const keyPrefix = "zippy:solo:"

// DefaultTTL bounds how long an address stays marked.
const DefaultTTL = 30 * 24 * time.Hour

// ErrNoAddress is returned when the caller cannot be identified.
var ErrNoAddress = errors.New("no identifying address")

// Redis is the slice of *redis.Client the gate uses.
type Redis interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Gate stores hashed addresses so raw IPs never reach Redis.
type Gate struct {
	rdb  Redis
	salt []byte
	ttl  time.Duration
}

func NewGate(rdb Redis, salt string, ttl time.Duration) *Gate {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Gate{rdb: rdb, salt: []byte(salt), ttl: ttl}
}

// Key returns the Redis key for addr.
func (g *Gate) Key(addr string) string {
	sum := blake2b.Sum256(append(append([]byte(nil), g.salt...), normalize(addr)...))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// HasUsed reports whether addr already took its free attempt.
func (g *Gate) HasUsed(ctx context.Context, addr string) (bool, error) {
	if normalize(addr) == "" {
		return false, ErrNoAddress
	}
	n, err := g.rdb.Exists(ctx, g.Key(addr)).Result()
	if err != nil {
		return false, fmt.Errorf("check solo usage: %w", err)
	}
	return n > 0, nil
}

// Record marks addr as having used its free attempt.
func (g *Gate) Record(ctx context.Context, addr string) error {
	if normalize(addr) == "" {
		return ErrNoAddress
	}
	if err := g.rdb.Set(ctx, g.Key(addr), time.Now().UTC().Format(time.RFC3339), g.ttl).Err(); err != nil {
		return fmt.Errorf("record solo usage: %w", err)
	}
	return nil
}

// For binds the gate to one address so it can gate a session.
func (g *Gate) For(addr string) *Tracker {
	return &Tracker{gate: g, addr: addr}
}

// Tracker is a Gate bound to one caller.
type Tracker struct {
	gate *Gate
	addr string
}

func (t *Tracker) HasUsed(ctx context.Context) (bool, error) {
	return t.gate.HasUsed(ctx, t.addr)
}

func (t *Tracker) Record(ctx context.Context) error {
	return t.gate.Record(ctx, t.addr)
}

// normalize strips a port so one host maps to one key.
func normalize(addr string) string {
	addr = strings.TrimSpace(addr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
