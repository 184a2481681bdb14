package analytics

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// ErrWorkerRunning is returned by Start on a running worker.
var ErrWorkerRunning = errors.New("analytics worker already running")

type Config struct {
	QueueSize  int
	MaxRetries int
	RetryDelay time.Duration
}

func DefaultConfig() Config {
	return Config{
		QueueSize:  1024,
		MaxRetries: 3,
		RetryDelay: time.Second,
	}
}

// Worker publishes queued events in the background so callers on the room
// hot path never wait on the bus.
type Worker struct {
	publisher Publisher
	config    Config
	clock     clockwork.Clock

	queue chan Event

	published atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
	lastEvent atomic.Int64 // unix nanos of the last successful publish

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

func NewWorker(publisher Publisher, cfg Config, clock clockwork.Clock) *Worker {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Worker{
		publisher: publisher,
		config:    cfg,
		clock:     clock,
		queue:     make(chan Event, cfg.QueueSize),
	}
}

func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return ErrWorkerRunning
	}
	w.running = true
	w.stop = make(chan struct{})

	w.wg.Add(1)
	go w.run(ctx, w.stop)

	log.Info().Int("queue_size", w.config.QueueSize).Msg("analytics worker started")
	return nil
}

// Stop drains what is already queued and waits for the loop to exit.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stop)
	w.mu.Unlock()

	w.wg.Wait()
	log.Info().Msg("analytics worker stopped")
}

// Enqueue hands an event to the worker. It never blocks; when the queue is
// full the event is dropped and false returned.
func (w *Worker) Enqueue(event Event) bool {
	select {
	case w.queue <- event:
		return true
	default:
		w.dropped.Add(1)
		log.Warn().
			Str("event_type", string(event.Type)).
			Str("room_id", event.RoomID).
			Msg("analytics queue full, dropping event")
		return false
	}
}

func (w *Worker) run(ctx context.Context, stop chan struct{}) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			w.drain(ctx)
			return
		case event := <-w.queue:
			w.publish(ctx, event)
		}
	}
}

func (w *Worker) drain(ctx context.Context) {
	for {
		select {
		case event := <-w.queue:
			w.publish(ctx, event)
		default:
			return
		}
	}
}

func (w *Worker) publish(ctx context.Context, event Event) {
	if err := w.publishWithRetry(ctx, event); err != nil {
		w.failed.Add(1)
		log.Error().
			Err(err).
			Str("event_id", event.ID.String()).
			Str("event_type", string(event.Type)).
			Msg("failed to publish room event")
	}
}

func (w *Worker) publishWithRetry(ctx context.Context, event Event) error {
	var lastErr error

	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-w.clock.After(w.config.RetryDelay * time.Duration(attempt)):
			}
		}

		if err := w.publisher.Publish(ctx, event); err != nil {
			lastErr = err
			log.Warn().
				Err(err).
				Str("event_id", event.ID.String()).
				Int("attempt", attempt+1).
				Msg("failed to publish room event, retrying")
			continue
		}
		w.published.Add(1)
		w.lastEvent.Store(w.clock.Now().UnixNano())
		return nil
	}
	return lastErr
}

// WorkerStats counts what the worker did since it was created.
type WorkerStats struct {
	Published     uint64    `json:"published"`
	Failed        uint64    `json:"failed"`
	Dropped       uint64    `json:"dropped"`
	Pending       int       `json:"pending"`
	LastPublished time.Time `json:"last_published,omitempty"`
}

func (w *Worker) Stats() WorkerStats {
	stats := WorkerStats{
		Published: w.published.Load(),
		Failed:    w.failed.Load(),
		Dropped:   w.dropped.Load(),
		Pending:   len(w.queue),
	}
	if ns := w.lastEvent.Load(); ns != 0 {
		stats.LastPublished = time.Unix(0, ns).UTC()
	}
	return stats
}
