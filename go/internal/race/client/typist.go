package client

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/zippy/go/internal/race/session"
)

// Keyboard is the part of a session a typist drives.
type Keyboard interface {
	Type(value string) (session.Keystroke, error)
	Snapshot() session.Snapshot
}

// Rand decides when the typist slips.
type Rand interface {
	Float64() float64
}

// Typist types whatever text the session holds at a steady pace. It backs
// the headless racer used for smoke and load tests.
type Typist struct {
	clock    clockwork.Clock
	keyboard Keyboard
	interval time.Duration
	accuracy float64
	rnd      Rand
}

// NewTypist types at wpm (five characters per word). accuracy in [0,1] is
// the chance a keystroke is correct; mistakes are typed as a wrong char.
func NewTypist(clock clockwork.Clock, kb Keyboard, wpm, accuracy float64, rnd Rand) *Typist {
	if wpm <= 0 {
		wpm = 40
	}
	return &Typist{
		clock:    clock,
		keyboard: kb,
		interval: time.Duration(float64(time.Minute) / (wpm * 5)),
		accuracy: accuracy,
		rnd:      rnd,
	}
}

// Interval is the pause between keystrokes.
func (t *Typist) Interval() time.Duration {
	return t.interval
}

// Run types until the session completes or ctx ends.
func (t *Typist) Run(ctx context.Context) error {
	ticker := t.clock.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
		}

		snap := t.keyboard.Snapshot()
		switch {
		case snap.State == session.StateCompleted:
			return nil
		case snap.State != session.StateRunning, snap.Loading:
			continue
		}

		text := []rune(snap.Text)
		if snap.Index >= len(text) {
			continue
		}
		next := text[snap.Index]
		if t.rnd != nil && t.rnd.Float64() >= t.accuracy {
			next = wrongKey(next)
		}
		_, _ = t.keyboard.Type(string(text[:snap.Index]) + string(next))
	}
}

func wrongKey(r rune) rune {
	if r == 'x' {
		return 'z'
	}
	return 'x'
}
