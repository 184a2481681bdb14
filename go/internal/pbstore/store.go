// Package pbstore keeps a racer's personal bests and drilled keys on local
// disk so ghosts work without an account.
package pbstore

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/mcdev12/zippy/go/internal/models"
)

var (
	bestsBucket    = []byte("personal_best")
	settingsBucket = []byte("settings")
	problemKeysKey = []byte("problem_keys")
)

// Store is a bbolt file holding client state.
type Store struct {
	db *bolt.DB
}

// Open creates or opens the store at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bestsBucket, settingsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func bestKey(d models.Difficulty, m models.GameMode) []byte {
	return []byte("pb_" + string(d) + "_" + string(m))
}

// Get returns the stored best WPM for d and m.
func (s *Store) Get(d models.Difficulty, m models.GameMode) (int, bool, error) {
	var (
		wpm int
		ok  bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bestsBucket).Get(bestKey(d, m))
		if raw == nil {
			return nil
		}
		n, err := strconv.Atoi(string(raw))
		if err != nil {
			return fmt.Errorf("corrupt personal best %s: %w", bestKey(d, m), err)
		}
		wpm, ok = n, true
		return nil
	})
	return wpm, ok, err
}

// UpdateIfBetter stores wpm when it beats the current best and reports
// whether it did.
func (s *Store) UpdateIfBetter(d models.Difficulty, m models.GameMode, wpm int) (bool, error) {
	improved := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bestsBucket)
		key := bestKey(d, m)
		if raw := b.Get(key); raw != nil {
			if cur, err := strconv.Atoi(string(raw)); err == nil && cur >= wpm {
				return nil
			}
		}
		improved = true
		return b.Put(key, []byte(strconv.Itoa(wpm)))
	})
	return improved, err
}

// All returns every stored best.
func (s *Store) All() ([]models.PersonalBest, error) {
	var out []models.PersonalBest
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bestsBucket).ForEach(func(k, v []byte) error {
			d, m, ok := parseBestKey(string(k))
			if !ok {
				return nil
			}
			n, err := strconv.Atoi(string(v))
			if err != nil {
				return nil
			}
			out = append(out, models.PersonalBest{Difficulty: d, Mode: m, WPM: n})
			return nil
		})
	})
	return out, err
}

// parseBestKey splits pb_<difficulty>_<mode>. Modes may contain '_',
// difficulties never do.
func parseBestKey(k string) (models.Difficulty, models.GameMode, bool) {
	rest, ok := strings.CutPrefix(k, "pb_")
	if !ok {
		return "", "", false
	}
	d, m, ok := strings.Cut(rest, "_")
	if !ok {
		return "", "", false
	}
	return models.Difficulty(d), models.GameMode(m), true
}

// ProblemKeys returns the keys the racer keeps missing.
func (s *Store) ProblemKeys() ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(settingsBucket).Get(problemKeysKey)
		if raw == nil {
			return nil
		}
		return json.Unmarshal(raw, &keys)
	})
	return keys, err
}

func (s *Store) SetProblemKeys(keys []string) error {
	raw, err := json.Marshal(keys)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(settingsBucket).Put(problemKeysKey, raw)
	})
}
