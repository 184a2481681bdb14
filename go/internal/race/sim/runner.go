package sim

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/zippy/go/internal/models"
)

// Target holds the simulated participants a Runner advances.
type Target interface {
	UpdateSimulated(fn func([]models.Participant) []models.Participant)
}

// Runner ticks a Simulator on a clock while a race is running.
type Runner struct {
	clock  clockwork.Clock
	sim    *Simulator
	target Target

	mu      sync.Mutex
	env     Env
	frozen  bool
	cancel  context.CancelFunc
	done    chan struct{}
	onTick  func()
	running bool
}

// NewRunner creates a stopped runner.
func NewRunner(clock clockwork.Clock, sim *Simulator, target Target) *Runner {
	return &Runner{clock: clock, sim: sim, target: target}
}

// OnTick registers a hook called after every simulated tick.
func (r *Runner) OnTick(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onTick = fn
}

// Start begins ticking with env. Starting a running runner only swaps env.
func (r *Runner) Start(ctx context.Context, env Env) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.env = env
	r.frozen = false
	if r.running {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.running = true
	go r.loop(ctx, r.done)
}

// Stop halts ticking. It does not wait for the loop, so it is safe to call
// from an OnTick hook, and safe to call repeatedly.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	r.running = false
	r.cancel()
}

// Done is closed once the current loop has exited.
func (r *Runner) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return r.done
}

// SetEnv swaps the environment, for example when new text arrives.
func (r *Runner) SetEnv(env Env) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.env = env
}

// SetSlowed toggles the slow-opponents effect.
func (r *Runner) SetSlowed(slowed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.env.Slowed = slowed
}

// SetFrozen pauses or resumes ticking without stopping the loop.
func (r *Runner) SetFrozen(frozen bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = frozen
}

// Running reports whether the loop is active.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Runner) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	r.mu.Lock()
	tick := r.sim.TickFor(r.env)
	r.mu.Unlock()

	ticker := r.clock.NewTicker(tick)
	defer ticker.Stop()

	log.Debug().Dur("tick", tick).Msg("simulator started")
	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("simulator stopped")
			return
		case <-ticker.Chan():
			if next := r.tick(ctx); next != tick && next > 0 {
				tick = next
				ticker.Reset(tick)
			}
		}
	}
}

// tick advances the target once and returns the tick the current env
// wants, which changes when new text or a new personal best arrives.
func (r *Runner) tick(ctx context.Context) time.Duration {
	r.mu.Lock()
	env, frozen, hook := r.env, r.frozen, r.onTick
	r.mu.Unlock()
	if ctx.Err() != nil {
		return 0
	}
	if frozen {
		return r.sim.TickFor(env)
	}

	r.target.UpdateSimulated(func(ps []models.Participant) []models.Participant {
		return r.sim.Step(ps, env)
	})
	if hook != nil {
		hook()
	}
	return r.sim.TickFor(env)
}
