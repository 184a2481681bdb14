package preferences

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/zippy/go/internal/models"
)

// DefaultDebounce is how long a user must stop changing settings before
// they are written.
const DefaultDebounce = time.Second

// Store persists a bundle. *Repository satisfies it.
type Store interface {
	Save(ctx context.Context, userID string, prefs models.Preferences) error
}

type pendingSave struct {
	prefs models.Preferences
	timer clockwork.Timer
	seq   uint64
}

// Saver batches rapid preference changes into one write per user after a
// quiet period. Writes are fire-and-forget; failures are logged.
type Saver struct {
	store        Store
	clock        clockwork.Clock
	delay        time.Duration
	writeTimeout time.Duration

	mu      sync.Mutex
	seq     uint64
	pending map[string]*pendingSave
}

func NewSaver(store Store, clock clockwork.Clock, delay time.Duration) *Saver {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Saver{
		store:        store,
		clock:        clock,
		delay:        delay,
		writeTimeout: 5 * time.Second,
		pending:      make(map[string]*pendingSave),
	}
}

// Save schedules prefs for userID, replacing anything still waiting.
func (s *Saver) Save(userID string, prefs models.Preferences) {
	if userID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.pending[userID]; ok {
		p.timer.Stop()
	}
	s.seq++
	seq := s.seq
	s.pending[userID] = &pendingSave{
		prefs: prefs,
		seq:   seq,
		timer: s.clock.AfterFunc(s.delay, func() { s.fire(userID, seq) }),
	}
}

// Pending reports how many users have unwritten changes.
func (s *Saver) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Flush writes everything still waiting, for use on shutdown.
func (s *Saver) Flush(ctx context.Context) {
	s.mu.Lock()
	batch := s.pending
	s.pending = make(map[string]*pendingSave)
	s.mu.Unlock()

	for userID, p := range batch {
		p.timer.Stop()
		s.write(ctx, userID, p.prefs)
	}
}

func (s *Saver) fire(userID string, seq uint64) {
	s.mu.Lock()
	p, ok := s.pending[userID]
	if !ok || p.seq != seq {
		s.mu.Unlock()
		return
	}
	delete(s.pending, userID)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()
	s.write(ctx, userID, p.prefs)
}

func (s *Saver) write(ctx context.Context, userID string, prefs models.Preferences) {
	if err := s.store.Save(ctx, userID, prefs); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("failed to save preferences")
		return
	}
	log.Debug().Str("user_id", userID).Msg("saved preferences")
}
