package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/zippy/go/internal/models"
	"github.com/mcdev12/zippy/go/internal/race/registry"
)

var _ registry.Observer = (*Observer)(nil)

type recordingPublisher struct {
	mu       sync.Mutex
	failures int
	calls    int
	events   []Event
}

func (p *recordingPublisher) Publish(_ context.Context, e Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.failures > 0 {
		p.failures--
		return errors.New("nats unavailable")
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

func testConfig() Config {
	return Config{QueueSize: 8, MaxRetries: 2, RetryDelay: time.Millisecond}
}

func TestObserverPublishesLifecycle(t *testing.T) {
	pub := &recordingPublisher{}
	w := NewWorker(pub, testConfig(), clockwork.NewRealClock())
	require.NoError(t, w.Start(context.Background()))

	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	obs := NewObserver(w, clock)
	snap := models.RoomSnapshot{
		ID:     "ABC123",
		HostID: "u1",
		Participants: []models.Participant{
			{ID: "u1"}, {ID: "u2"},
		},
		RaceText: "héllo",
		Status:   models.RoomStatusRunning,
	}
	obs.RoomCreated(snap)
	obs.RaceStarted(snap)
	obs.RoomClosed("ABC123")
	w.Stop()

	events := pub.published()
	require.Len(t, events, 3)
	assert.Equal(t, EventRoomCreated, events[0].Type)
	assert.Equal(t, EventRaceStarted, events[1].Type)
	assert.Equal(t, EventRoomClosed, events[2].Type)
	assert.Nil(t, events[2].Payload)
	assert.Equal(t, clock.Now(), events[0].CreatedAt)

	var payload RoomPayload
	require.NoError(t, json.Unmarshal(events[1].Payload, &payload))
	assert.Equal(t, RoomPayload{
		HostID:       "u1",
		Participants: []string{"u1", "u2"},
		Status:       "RUNNING",
		TextLength:   5,
	}, payload)
}

func TestWorkerRetries(t *testing.T) {
	pub := &recordingPublisher{failures: 2}
	w := NewWorker(pub, testConfig(), nil)
	require.NoError(t, w.Start(context.Background()))

	assert.True(t, w.Enqueue(Event{Type: EventRoomClosed, RoomID: "R1"}))
	w.Stop()

	assert.Len(t, pub.published(), 1)
	assert.Equal(t, 3, pub.calls)
	stats := w.Stats()
	assert.EqualValues(t, 1, stats.Published)
	assert.Zero(t, stats.Failed)
	assert.False(t, stats.LastPublished.IsZero())
}

func TestWorkerGivesUp(t *testing.T) {
	pub := &recordingPublisher{failures: 10}
	w := NewWorker(pub, testConfig(), nil)
	require.NoError(t, w.Start(context.Background()))

	w.Enqueue(Event{Type: EventRoomClosed, RoomID: "R1"})
	w.Stop()

	assert.Empty(t, pub.published())
	assert.Equal(t, 3, pub.calls)
	assert.EqualValues(t, 1, w.Stats().Failed)
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	w := NewWorker(&recordingPublisher{}, Config{QueueSize: 1}, nil)

	assert.True(t, w.Enqueue(Event{Type: EventRoomClosed}))
	assert.False(t, w.Enqueue(Event{Type: EventRoomClosed}))
	assert.Equal(t, WorkerStats{Dropped: 1, Pending: 1}, w.Stats())
}

func TestStartTwice(t *testing.T) {
	w := NewWorker(Noop{}, testConfig(), nil)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	assert.ErrorIs(t, w.Start(context.Background()), ErrWorkerRunning)
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "zippy.rooms.race_started", subject(DefaultJetStreamConfig().SubjectPrefix, EventRaceStarted))
}
