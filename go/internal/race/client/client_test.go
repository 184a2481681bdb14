package client

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/zippy/go/internal/models"
	"github.com/mcdev12/zippy/go/internal/race/gateway"
	"github.com/mcdev12/zippy/go/internal/race/reconcile"
	"github.com/mcdev12/zippy/go/internal/race/session"
	"github.com/mcdev12/zippy/go/internal/race/sim"
	"github.com/mcdev12/zippy/go/internal/textgen"
)

func newGateway(t *testing.T) string {
	t.Helper()
	svc := gateway.NewService(gateway.DefaultConfig(), nil)
	router := mux.NewRouter()
	svc.RegisterRoutes(router)
	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		_ = svc.Stop()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/race"
}

type racer struct {
	client  *Client
	roster  *reconcile.Reconciler
	session *session.Session
}

func newRacer(t *testing.T, url, id, name string) *racer {
	t.Helper()
	roster := reconcile.New(id)
	self := models.Participant{ID: id, Name: name, Avatar: "🚀"}

	c, err := Dial(context.Background(), DefaultConfig(url), self, roster)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	cfg := session.DefaultConfig(models.GameModeCompetitive, models.DifficultyMedium)
	cfg.Competitive = models.CompetitiveMultiplayer
	cfg.SelfID = id
	cfg.Name = name
	s := session.New(cfg, session.Deps{
		Clock:      clockwork.NewFakeClock(),
		Roster:     roster,
		OnProgress: c.ReportProgress,
	})
	c.Bind(s)

	return &racer{client: c, roster: roster, session: s}
}

func waitJoined(t *testing.T, c *Client) string {
	t.Helper()
	select {
	case id := <-c.Joined():
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("no room acknowledgement")
		return ""
	}
}

func ids(ps []models.Participant) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.ID)
	}
	return out
}

func TestNetworkedRace(t *testing.T) {
	url := newGateway(t)
	a := newRacer(t, url, "guest-a", "Ada")
	b := newRacer(t, url, "guest-b", "Bo")

	require.NoError(t, a.client.CreateRoom())
	roomID := waitJoined(t, a.client)
	require.Len(t, roomID, 6)

	require.NoError(t, b.client.JoinRoom(strings.ToLower(roomID)))
	assert.Equal(t, roomID, waitJoined(t, b.client))

	assert.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{"guest-a", "guest-b"}, ids(a.roster.List()))
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "guest-a", a.roster.HostID())

	started := make(chan string, 1)
	b.client.OnGameStart(func(text string) { started <- text })
	require.NoError(t, a.client.StartGame("go fast now"))

	select {
	case text := <-started:
		assert.Equal(t, "go fast now", text)
	case <-time.After(2 * time.Second):
		t.Fatal("race never started")
	}
	assert.Eventually(t, func() bool {
		return a.session.State() == session.StateRunning
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, session.StateRunning, b.session.State())

	for _, v := range []string{"g", "go", "go "} {
		_, err := b.session.Type(v)
		require.NoError(t, err)
	}

	assert.Eventually(t, func() bool {
		for _, p := range a.roster.List() {
			if p.ID == "guest-b" {
				return p.Index == 3
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, b.client.LeaveRoom())
	assert.Equal(t, []string{"guest-b"}, ids(b.roster.List()))
	assert.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{"guest-a"}, ids(a.roster.List()))
	}, 2*time.Second, 5*time.Millisecond)
}

type fixedBests int

func (b fixedBests) Get(models.Difficulty, models.GameMode) (int, bool, error) {
	return int(b), b > 0, nil
}

func (b fixedBests) UpdateIfBetter(models.Difficulty, models.GameMode, int) (bool, error) {
	return false, nil
}

func ghostIndex(ps []models.Participant) int {
	for _, p := range ps {
		if p.IsGhost {
			return p.Index
		}
	}
	return -1
}

func TestNetworkedRaceAdvancesGhost(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := newGateway(t)
	clock := clockwork.NewFakeClock()
	roster := reconcile.New("guest-a")
	c, err := Dial(ctx, DefaultConfig(url), models.Participant{ID: "guest-a", Name: "Ada"}, roster)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	cfg := session.DefaultConfig(models.GameModeCompetitive, models.DifficultyMedium)
	cfg.Competitive = models.CompetitiveMultiplayer
	cfg.SelfID = "guest-a"
	cfg.Name = "Ada"
	runner := sim.NewRunner(clock, sim.New(sim.DefaultConfig(), constRand(0)), roster)
	s := session.New(cfg, session.Deps{
		Clock:      clock,
		Roster:     roster,
		Sim:        runner,
		Bests:      fixedBests(60),
		OnProgress: c.ReportProgress,
	})
	c.Bind(s)
	defer s.Reset()

	require.NoError(t, c.CreateRoom())
	waitJoined(t, c)
	require.NoError(t, c.StartGame("ghosts race online too"))
	assert.Eventually(t, func() bool {
		return s.State() == session.StateRunning
	}, 2*time.Second, 5*time.Millisecond)

	ps := roster.List()
	require.Len(t, ps, 2)
	assert.Equal(t, []string{"guest-a", sim.GhostID}, ids(ps))
	assert.Equal(t, 0, ghostIndex(ps))

	_, err = s.Type("g")
	require.NoError(t, err)
	// session clock and simulator both tick on the fake clock
	require.NoError(t, clock.BlockUntilContext(ctx, 2))

	assert.Eventually(t, func() bool {
		clock.Advance(100 * time.Millisecond)
		return ghostIndex(roster.List()) >= 3
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, runner.Running())
}

func TestServerErrorsAreSurfaced(t *testing.T) {
	url := newGateway(t)
	r := newRacer(t, url, "guest-a", "Ada")

	require.NoError(t, r.client.JoinRoom("NOPE00"))

	select {
	case err := <-r.client.Errors():
		assert.ErrorIs(t, err, ErrServer)
		assert.Contains(t, err.Error(), "Room not found")
	case <-time.After(2 * time.Second):
		t.Fatal("expected an error event")
	}
	assert.Empty(t, r.client.RoomID())
}

func TestRoomIntentsNeedARoom(t *testing.T) {
	url := newGateway(t)
	r := newRacer(t, url, "guest-a", "Ada")

	assert.ErrorIs(t, r.client.LeaveRoom(), ErrNotInRoom)
	assert.ErrorIs(t, r.client.StartGame("text"), ErrNotInRoom)
	r.client.ReportProgress(1, 0)
}

func TestClosedClientRejectsIntents(t *testing.T) {
	url := newGateway(t)
	r := newRacer(t, url, "guest-a", "Ada")

	require.NoError(t, r.client.Close())
	require.NoError(t, r.client.Close())
	<-r.client.Done()
	assert.ErrorIs(t, r.client.CreateRoom(), ErrClosed)
}

func TestDialFailure(t *testing.T) {
	_, err := Dial(context.Background(), DefaultConfig("ws://127.0.0.1:1/ws/race"), models.Participant{ID: "x"}, reconcile.New("x"))
	assert.Error(t, err)
}

type constRand float64

func (c constRand) Float64() float64 { return float64(c) }

type fakeTexts string

func (f fakeTexts) Generate(context.Context, textgen.Request) (string, error) { return string(f), nil }

func TestTypistFinishesRace(t *testing.T) {
	s := session.New(session.DefaultConfig(models.GameModeSolo, models.DifficultyEasy), session.Deps{
		Clock: clockwork.NewFakeClock(),
		Texts: fakeTexts("hello world"),
	})
	require.NoError(t, s.Start(context.Background()))

	clock := clockwork.NewFakeClock()
	typist := NewTypist(clock, s, 60, 1, constRand(0))
	assert.Equal(t, 200*time.Millisecond, typist.Interval())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- typist.Run(ctx) }()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	assert.Eventually(t, func() bool {
		clock.Advance(typist.Interval())
		return s.State() == session.StateCompleted
	}, 2*time.Second, time.Millisecond)

	clock.Advance(typist.Interval())
	require.NoError(t, <-errc)
	assert.Equal(t, 0, s.Snapshot().Errors)
	assert.Equal(t, 11, s.Snapshot().Index)
}

func TestTypistMakesMistakes(t *testing.T) {
	s := session.New(session.DefaultConfig(models.GameModeSolo, models.DifficultyEasy), session.Deps{
		Clock: clockwork.NewFakeClock(),
		Texts: fakeTexts("abc"),
	})
	require.NoError(t, s.Start(context.Background()))

	clock := clockwork.NewFakeClock()
	typist := NewTypist(clock, s, 60, 0.5, constRand(0.9))

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- typist.Run(ctx) }()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	assert.Eventually(t, func() bool {
		clock.Advance(typist.Interval())
		return s.Snapshot().Errors >= 2
	}, 2*time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)

	snap := s.Snapshot()
	assert.Equal(t, 0, snap.Index)
	assert.Equal(t, map[string]int{"x": snap.Errors}, snap.ErrorMap)
}
