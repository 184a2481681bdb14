package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/zippy/go/internal/models"
	"github.com/mcdev12/zippy/go/internal/race/sim"
	"github.com/mcdev12/zippy/go/internal/textgen"
)

type fixedRand float64

func (f fixedRand) Float64() float64 { return float64(f) }

type fakeTexts struct {
	mu       sync.Mutex
	texts    []string
	err      error
	requests []textgen.Request
}

func (f *fakeTexts) Generate(_ context.Context, req textgen.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	if len(f.texts) == 0 {
		return "", errors.New("out of text")
	}
	text := f.texts[0]
	if len(f.texts) > 1 {
		f.texts = f.texts[1:]
	}
	return text, nil
}

func (f *fakeTexts) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type fakeRoster struct {
	mu       sync.Mutex
	local    models.Participant
	ghost    *models.Participant
	bots     []models.Participant
	progress [][2]int
	resets   int
}

func (f *fakeRoster) SetLocal(p models.Participant) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.local = p
}

func (f *fakeRoster) SetLocalProgress(index, errCount int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress = append(f.progress, [2]int{index, errCount})
}

func (f *fakeRoster) SetGhost(g *models.Participant) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ghost = g
}

func (f *fakeRoster) SetBots(bots []models.Participant) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bots = bots
}

func (f *fakeRoster) ResetProgress() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
}

type fakeSim struct {
	mu      sync.Mutex
	starts  []sim.Env
	envs    []sim.Env
	stops   int
	frozen  []bool
	slowed  []bool
	running bool
}

func (f *fakeSim) Start(_ context.Context, env sim.Env) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, env)
	f.running = true
}

func (f *fakeSim) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.running = false
}

func (f *fakeSim) SetEnv(env sim.Env) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.envs = append(f.envs, env)
}

func (f *fakeSim) SetFrozen(frozen bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frozen = append(f.frozen, frozen)
}

func (f *fakeSim) SetSlowed(slowed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slowed = append(f.slowed, slowed)
}

func (f *fakeSim) frozenCalls() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.frozen...)
}

func (f *fakeSim) slowedCalls() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.slowed...)
}

type fakeCoach struct{ note string }

func (f fakeCoach) Note(context.Context, textgen.CoachRequest) string { return f.note }

type fakeResults struct {
	mu       sync.Mutex
	recorded []models.TypingResult
}

func (f *fakeResults) RecordAttempt(_ context.Context, r models.TypingResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded = append(f.recorded, r)
	return nil
}

type fakeBests struct {
	mu      sync.Mutex
	best    int
	updates []int
}

func (f *fakeBests) Get(models.Difficulty, models.GameMode) (int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.best, f.best > 0, nil
}

func (f *fakeBests) UpdateIfBetter(_ models.Difficulty, _ models.GameMode, wpm int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, wpm)
	if wpm > f.best {
		f.best = wpm
		return true, nil
	}
	return false, nil
}

type fakeUsage struct {
	mu       sync.Mutex
	used     bool
	err      error
	recorded int
}

func (f *fakeUsage) HasUsed(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.used, f.err
}

func (f *fakeUsage) Record(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded++
	f.used = true
	return nil
}

type harness struct {
	clock   *clockwork.FakeClock
	texts   *fakeTexts
	roster  *fakeRoster
	sim     *fakeSim
	results []Result
	mu      sync.Mutex
}

func (h *harness) completed() []Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Result(nil), h.results...)
}

func newHarness(texts ...string) (*harness, Deps) {
	h := &harness{
		clock:  clockwork.NewFakeClock(),
		texts:  &fakeTexts{texts: texts},
		roster: &fakeRoster{},
		sim:    &fakeSim{},
	}
	deps := Deps{
		Clock:  h.clock,
		Rand:   fixedRand(0),
		Texts:  h.texts,
		Roster: h.roster,
		Sim:    h.sim,
		OnComplete: func(r Result) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.results = append(h.results, r)
		},
	}
	return h, deps
}

func typeAll(t *testing.T, s *Session, text string) {
	t.Helper()
	runes := []rune(text)
	for i := 1; i <= len(runes); i++ {
		_, err := s.Type(string(runes[:i]))
		require.NoError(t, err)
	}
}

func TestSoloCompletesExactlyOnce(t *testing.T) {
	text := "abcdefghij klmnopqrs"
	require.Len(t, text, 20)
	h, deps := newHarness(text)
	s := New(DefaultConfig(models.GameModeSolo, models.DifficultyEasy), deps)

	require.Equal(t, StateLobby, s.State())
	require.NoError(t, s.Start(context.Background()))
	require.Equal(t, StateRunning, s.State())

	typeAll(t, s, text)

	snap := s.Snapshot()
	assert.Equal(t, StateCompleted, snap.State)
	assert.Equal(t, 20, snap.Index)
	assert.Equal(t, 0, snap.Errors)
	assert.Equal(t, 100, snap.Accuracy)

	_, err := s.Type(text + "x")
	assert.ErrorIs(t, err, ErrInputRejected)

	results := h.completed()
	require.Len(t, results, 1)
	assert.Equal(t, 0, results[0].Errors)
	assert.Equal(t, 100, results[0].Accuracy)
	assert.Equal(t, 20, results[0].TextLength)
	assert.Equal(t, models.GameModeSolo, results[0].Mode)
	assert.False(t, results[0].Authenticated)

	stored, ok := s.Result()
	require.True(t, ok)
	assert.Equal(t, results[0].ID, stored.ID)

	assert.Equal(t, "me", h.roster.local.ID)
	assert.Equal(t, [2]int{20, 0}, h.roster.progress[len(h.roster.progress)-1])
	assert.False(t, h.sim.running)
}

func TestTypeClassifiesKeystrokes(t *testing.T) {
	h, deps := newHarness("abc def")
	var relayed [][2]int
	deps.OnProgress = func(index, errCount int) { relayed = append(relayed, [2]int{index, errCount}) }
	s := New(DefaultConfig(models.GameModeSolo, models.DifficultyEasy), deps)
	require.NoError(t, s.Start(context.Background()))

	k, err := s.Type("x")
	require.NoError(t, err)
	assert.Equal(t, KeystrokeError, k)
	assert.Equal(t, 0, s.Snapshot().Index)

	k, _ = s.Type("a")
	assert.Equal(t, KeystrokeCorrect, k)
	k, _ = s.Type("ab")
	assert.Equal(t, KeystrokeCorrect, k)
	k, _ = s.Type("ab")
	assert.Equal(t, KeystrokeIgnored, k)
	k, _ = s.Type("a")
	assert.Equal(t, KeystrokeBackspace, k)

	snap := s.Snapshot()
	assert.Equal(t, 1, snap.Index)
	assert.Equal(t, 1, snap.Errors)
	assert.Equal(t, 3, snap.TotalKeys)
	assert.Equal(t, 2, snap.CorrectKeys)
	assert.Equal(t, 67, snap.Accuracy)
	assert.Equal(t, map[string]int{"x": 1}, snap.ErrorMap)
	assert.Equal(t, [][2]int{{0, 1}, {1, 1}, {2, 1}, {1, 1}}, relayed)
	assert.Len(t, h.sim.starts, 1)
}

func TestTypeNormalizesSmartPunctuation(t *testing.T) {
	_, deps := newHarness("it's")
	s := New(DefaultConfig(models.GameModeSolo, models.DifficultyEasy), deps)
	require.NoError(t, s.Start(context.Background()))

	typeAll(t, s, "it’s")
	assert.Equal(t, StateCompleted, s.State())
	assert.Equal(t, 0, s.Snapshot().Errors)
}

func TestTypeRejectedOutsideRunning(t *testing.T) {
	_, deps := newHarness("abc")
	s := New(DefaultConfig(models.GameModeSolo, models.DifficultyEasy), deps)

	k, err := s.Type("a")
	assert.ErrorIs(t, err, ErrInputRejected)
	assert.Equal(t, KeystrokeIgnored, k)
}

func TestStartGenerationFailureStaysInLobby(t *testing.T) {
	h, deps := newHarness()
	h.texts.fail(errors.New("quota exceeded"))
	s := New(DefaultConfig(models.GameModeSolo, models.DifficultyHard), deps)

	err := s.Start(context.Background())
	require.ErrorIs(t, err, ErrGenerationUnavailable)
	assert.Equal(t, StateLobby, s.State())
	assert.False(t, s.Snapshot().Loading)
}

func TestStartRejectsBlankText(t *testing.T) {
	_, deps := newHarness("   ")
	s := New(DefaultConfig(models.GameModeSolo, models.DifficultyHard), deps)

	require.ErrorIs(t, s.Start(context.Background()), ErrGenerationUnavailable)
	assert.Equal(t, StateLobby, s.State())
}

func TestStartWhileRunning(t *testing.T) {
	_, deps := newHarness("abc")
	s := New(DefaultConfig(models.GameModeSolo, models.DifficultyEasy), deps)
	require.NoError(t, s.Start(context.Background()))

	assert.ErrorIs(t, s.Start(context.Background()), ErrInvalidTransition)
}

func TestRestartAfterCompletion(t *testing.T) {
	h, deps := newHarness("ab", "cd")
	s := New(DefaultConfig(models.GameModeSolo, models.DifficultyEasy), deps)
	require.NoError(t, s.Start(context.Background()))
	typeAll(t, s, "ab")
	require.Equal(t, StateCompleted, s.State())

	require.NoError(t, s.Start(context.Background()))
	snap := s.Snapshot()
	assert.Equal(t, StateRunning, snap.State)
	assert.Equal(t, "cd", snap.Text)
	assert.Equal(t, 0, snap.Index)
	_, ok := s.Result()
	assert.False(t, ok)
	assert.Len(t, h.completed(), 1)
}

func TestRestartFailureReturnsToLobby(t *testing.T) {
	h, deps := newHarness("ab")
	s := New(DefaultConfig(models.GameModeSolo, models.DifficultyEasy), deps)
	require.NoError(t, s.Start(context.Background()))
	_, _ = s.Type("x")
	typeAll(t, s, "ab")
	require.Equal(t, StateCompleted, s.State())

	h.texts.fail(errors.New("quota exceeded"))
	require.ErrorIs(t, s.Start(context.Background()), ErrGenerationUnavailable)

	snap := s.Snapshot()
	assert.Equal(t, StateLobby, snap.State)
	assert.Equal(t, 0, snap.Index)
	assert.Equal(t, 0, snap.Errors)
	assert.Equal(t, 0, snap.TotalKeys)
	assert.Empty(t, snap.Text)
	assert.False(t, snap.Loading)

	_, ok := s.Result()
	assert.True(t, ok, "the finished attempt is still reported")
	assert.Len(t, h.completed(), 1)
}

func TestReset(t *testing.T) {
	h, deps := newHarness("abc")
	s := New(DefaultConfig(models.GameModeSolo, models.DifficultyEasy), deps)
	require.NoError(t, s.Start(context.Background()))
	_, _ = s.Type("a")

	s.Reset()

	snap := s.Snapshot()
	assert.Equal(t, StateLobby, snap.State)
	assert.Equal(t, 0, snap.Index)
	assert.Empty(t, snap.Text)
	assert.Empty(t, h.completed())
}

func TestMultiplayerStartsFromRoom(t *testing.T) {
	_, deps := newHarness()
	cfg := DefaultConfig(models.GameModeCompetitive, models.DifficultyMedium)
	cfg.Competitive = models.CompetitiveMultiplayer
	cfg.SelfID = "guest-abc"
	h := deps.Roster.(*fakeRoster)
	s := New(cfg, deps)

	assert.ErrorIs(t, s.Start(context.Background()), ErrNetworkedStart)

	require.NoError(t, s.BeginNetworked(context.Background(), "race text"))
	assert.Equal(t, StateRunning, s.State())
	assert.Equal(t, "guest-abc", h.local.ID)
	assert.Empty(t, h.bots)

	// a second game-starting event restarts the race
	_, _ = s.Type("r")
	require.NoError(t, s.BeginNetworked(context.Background(), "other text"))
	snap := s.Snapshot()
	assert.Equal(t, "other text", snap.Text)
	assert.Equal(t, 0, snap.Index)

	assert.ErrorIs(t, s.BeginNetworked(context.Background(), " "), ErrInvalidTransition)
}

func TestBeginNetworkedRequiresMultiplayer(t *testing.T) {
	_, deps := newHarness()
	s := New(DefaultConfig(models.GameModeSolo, models.DifficultyMedium), deps)
	assert.ErrorIs(t, s.BeginNetworked(context.Background(), "text"), ErrInvalidTransition)
}

func TestRosterSetup(t *testing.T) {
	t.Run("competitive bots", func(t *testing.T) {
		h, deps := newHarness("abc")
		cfg := DefaultConfig(models.GameModeCompetitive, models.DifficultyPro)
		cfg.Opponents = 2
		require.NoError(t, New(cfg, deps).Start(context.Background()))
		assert.Equal(t, sim.OpponentBots(2), h.roster.bots)
		assert.Nil(t, h.roster.ghost)
	})

	t.Run("wpm race", func(t *testing.T) {
		h, deps := newHarness("abc")
		require.NoError(t, New(DefaultConfig(models.GameModeWPMRace, models.DifficultyPro), deps).Start(context.Background()))
		assert.Equal(t, []models.Participant{sim.TargetBot()}, h.roster.bots)
	})

	t.Run("ghost from personal best", func(t *testing.T) {
		h, deps := newHarness("abc")
		deps.Bests = &fakeBests{best: 42}
		s := New(DefaultConfig(models.GameModeSolo, models.DifficultyPro), deps)
		require.NoError(t, s.Start(context.Background()))
		require.NotNil(t, h.roster.ghost)
		assert.Equal(t, sim.GhostID, h.roster.ghost.ID)

		_, _ = s.Type("a")
		require.Len(t, h.sim.starts, 1)
		assert.Equal(t, 42.0, h.sim.starts[0].PersonalBestWPM)
		assert.Equal(t, 3, h.sim.starts[0].TextLength)
	})
}

func TestTimedModeRollsOverText(t *testing.T) {
	h, deps := newHarness("ab", "cd")
	s := New(DefaultConfig(models.GameModeTimeAttack, models.DifficultyEasy), deps)
	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, 60*time.Second, s.Snapshot().TimeLeft)

	typeAll(t, s, "ab")

	snap := s.Snapshot()
	assert.Equal(t, StateRunning, snap.State)
	assert.Equal(t, "cd", snap.Text)
	assert.Equal(t, 0, snap.Index)
	assert.Empty(t, snap.Input)
	assert.Equal(t, 2, snap.CorrectKeys)
	assert.False(t, snap.Loading)
	assert.Len(t, h.sim.envs, 1)

	// failure to load more text keeps the attempt on the current text
	h.texts.fail(errors.New("offline"))
	_, err := s.Type("c")
	require.NoError(t, err)
	_, err = s.Type("cd")
	assert.ErrorIs(t, err, ErrGenerationUnavailable)

	snap = s.Snapshot()
	assert.Equal(t, StateRunning, snap.State)
	assert.Equal(t, "cd", snap.Text)
	assert.Equal(t, 0, snap.Index)
	assert.False(t, snap.Loading)
	assert.Empty(t, h.completed())
}

func TestTimedModeCompletesWhenTimeRunsOut(t *testing.T) {
	h, deps := newHarness("the quick brown fox jumps")
	s := New(DefaultConfig(models.GameModeTimeAttack, models.DifficultyEasy), deps)
	require.NoError(t, s.Start(context.Background()))
	typeAll(t, s, "the quick ")

	attempt := s.attempt
	for i := 0; i < 599; i++ {
		require.False(t, s.onTick(attempt))
	}
	assert.Equal(t, 100*time.Millisecond, s.Snapshot().TimeLeft)
	require.True(t, s.onTick(attempt))

	results := h.completed()
	require.Len(t, results, 1)
	assert.Equal(t, 60.0, results[0].Time)
	assert.Equal(t, 2, results[0].WPM)
	assert.Equal(t, StateCompleted, s.State())

	// late ticks are no-ops
	assert.True(t, s.onTick(attempt))
	assert.Len(t, h.completed(), 1)
}

func TestBeatTheClockBonusPerWord(t *testing.T) {
	_, deps := newHarness("ab cd ef")
	s := New(DefaultConfig(models.GameModeBeatTheClock, models.DifficultyEasy), deps)
	require.NoError(t, s.Start(context.Background()))
	require.Equal(t, 30*time.Second, s.Snapshot().TimeLeft)

	typeAll(t, s, "ab cd ")
	assert.Equal(t, 35*time.Second, s.Snapshot().TimeLeft)
	assert.Equal(t, 2, s.Snapshot().Streak)
}

func TestAccuracyChallengeEndsOnFirstMistake(t *testing.T) {
	h, deps := newHarness("abcdef")
	s := New(DefaultConfig(models.GameModeAccuracyChallenge, models.DifficultyEasy), deps)
	require.NoError(t, s.Start(context.Background()))

	typeAll(t, s, "abc")
	k, err := s.Type("abcx")
	require.NoError(t, err)
	assert.Equal(t, KeystrokeError, k)

	assert.Equal(t, StateCompleted, s.State())
	results := h.completed()
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Errors)
	assert.Equal(t, 75, results[0].Accuracy)
}

func TestTickLoopAdvancesElapsed(t *testing.T) {
	h, deps := newHarness("abcdef")
	s := New(DefaultConfig(models.GameModeSolo, models.DifficultyEasy), deps)
	require.NoError(t, s.Start(context.Background()))

	// the clock starts on the first keystroke
	assert.Equal(t, time.Duration(0), s.Snapshot().Elapsed)
	_, _ = s.Type("a")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, h.clock.BlockUntilContext(ctx, 1))
	h.clock.Advance(100 * time.Millisecond)

	assert.Eventually(t, func() bool {
		return s.Snapshot().Elapsed == 100*time.Millisecond
	}, time.Second, time.Millisecond)
}

func TestPowerUps(t *testing.T) {
	newSession := func(t *testing.T, r float64, text string) (*harness, *Session) {
		h, deps := newHarness(text)
		deps.Rand = fixedRand(r)
		cfg := DefaultConfig(models.GameModeSolo, models.DifficultyEasy)
		cfg.WordsPerPowerUp = 1
		s := New(cfg, deps)
		require.NoError(t, s.Start(context.Background()))
		return h, s
	}

	t.Run("skip word", func(t *testing.T) {
		_, s := newSession(t, 0, "one two three")
		typeAll(t, s, "one ")
		require.Equal(t, []PowerUpKind{PowerUpSkipWord}, s.Snapshot().PowerUps)

		require.NoError(t, s.UsePowerUp(PowerUpSkipWord))
		snap := s.Snapshot()
		assert.Equal(t, 8, snap.Index)
		assert.Equal(t, "one two ", snap.Input)
		assert.Empty(t, snap.PowerUps)

		assert.ErrorIs(t, s.UsePowerUp(PowerUpSkipWord), ErrNoPowerUp)
	})

	t.Run("skip last word completes", func(t *testing.T) {
		h, s := newSession(t, 0, "one two")
		typeAll(t, s, "one ")
		require.NoError(t, s.UsePowerUp(PowerUpSkipWord))
		assert.Equal(t, StateCompleted, s.State())
		assert.Len(t, h.completed(), 1)
	})

	t.Run("time freeze", func(t *testing.T) {
		h, s := newSession(t, 0.5, "one two three")
		typeAll(t, s, "one ")
		require.Equal(t, []PowerUpKind{PowerUpTimeFreeze}, s.Snapshot().PowerUps)

		require.NoError(t, s.UsePowerUp(PowerUpTimeFreeze))
		assert.True(t, s.Snapshot().Frozen)
		assert.Equal(t, []bool{true}, h.sim.frozenCalls())

		assert.False(t, s.onTick(s.attempt))
		assert.Equal(t, time.Duration(0), s.Snapshot().Elapsed)

		h.clock.Advance(3 * time.Second)
		assert.Eventually(t, func() bool { return !s.Snapshot().Frozen }, time.Second, time.Millisecond)
		assert.Equal(t, []bool{true, false}, h.sim.frozenCalls())
	})

	t.Run("slow opponents", func(t *testing.T) {
		h, s := newSession(t, 0.9, "one two three")
		typeAll(t, s, "one ")
		require.NoError(t, s.UsePowerUp(PowerUpSlowOpponents))
		assert.True(t, s.Snapshot().Slowed)

		h.clock.Advance(5 * time.Second)
		assert.Eventually(t, func() bool { return !s.Snapshot().Slowed }, time.Second, time.Millisecond)
		assert.Equal(t, []bool{true, false}, h.sim.slowedCalls())
	})

	t.Run("holds at most three", func(t *testing.T) {
		_, s := newSession(t, 0, "a b c d e f")
		typeAll(t, s, "a b c d e ")
		assert.Len(t, s.Snapshot().PowerUps, 3)
	})

	t.Run("streak resets on mistake", func(t *testing.T) {
		_, deps := newHarness("ab cd ef gh")
		cfg := DefaultConfig(models.GameModeSolo, models.DifficultyEasy)
		cfg.WordsPerPowerUp = 2
		s := New(cfg, deps)
		require.NoError(t, s.Start(context.Background()))
		typeAll(t, s, "ab ")
		_, _ = s.Type("ab x")
		for _, v := range []string{"ab c", "ab cd", "ab cd "} {
			_, err := s.Type(v)
			require.NoError(t, err)
		}
		assert.Equal(t, 1, s.Snapshot().Streak)
		assert.Empty(t, s.Snapshot().PowerUps)
	})

	t.Run("not running", func(t *testing.T) {
		_, deps := newHarness("abc")
		s := New(DefaultConfig(models.GameModeSolo, models.DifficultyEasy), deps)
		assert.ErrorIs(t, s.UsePowerUp(PowerUpSkipWord), ErrInvalidTransition)
	})
}

func TestGuestGating(t *testing.T) {
	t.Run("first solo attempt is free", func(t *testing.T) {
		h, deps := newHarness("ab")
		usage := &fakeUsage{}
		deps.Usage = usage
		s := New(DefaultConfig(models.GameModeSolo, models.DifficultyEasy), deps)

		require.NoError(t, s.Start(context.Background()))
		typeAll(t, s, "ab")
		require.Len(t, h.completed(), 1)
		assert.Equal(t, 1, usage.recorded)

		assert.ErrorIs(t, s.Start(context.Background()), ErrAttemptRestricted)
		assert.Equal(t, StateCompleted, s.State())
	})

	t.Run("other modes need an account", func(t *testing.T) {
		_, deps := newHarness("ab")
		deps.Usage = &fakeUsage{}
		s := New(DefaultConfig(models.GameModeTimeAttack, models.DifficultyEasy), deps)
		assert.ErrorIs(t, s.Start(context.Background()), ErrAttemptRestricted)
	})

	t.Run("usage lookup failure allows the attempt", func(t *testing.T) {
		_, deps := newHarness("ab")
		deps.Usage = &fakeUsage{err: errors.New("redis down")}
		s := New(DefaultConfig(models.GameModeSolo, models.DifficultyEasy), deps)
		assert.NoError(t, s.Start(context.Background()))
	})

	t.Run("signed in users are not gated", func(t *testing.T) {
		_, deps := newHarness("ab")
		deps.Usage = &fakeUsage{used: true}
		cfg := DefaultConfig(models.GameModeTimeAttack, models.DifficultyEasy)
		cfg.UserID = "user-1"
		assert.NoError(t, New(cfg, deps).Start(context.Background()))
	})
}

func TestAuthenticatedCompletionSideEffects(t *testing.T) {
	h, deps := newHarness("ab")
	results := &fakeResults{}
	bests := &fakeBests{}
	usage := &fakeUsage{}
	deps.Results = results
	deps.Bests = bests
	deps.Usage = usage
	deps.Coach = fakeCoach{note: "Keep your wrists relaxed."}

	cfg := DefaultConfig(models.GameModeSolo, models.DifficultyMedium)
	cfg.UserID = "user-1"
	s := New(cfg, deps)
	require.NoError(t, s.Start(context.Background()))

	_, _ = s.Type("a")
	s.onTick(s.attempt)
	_, _ = s.Type("ab")

	completed := h.completed()
	require.Len(t, completed, 1)
	res := completed[0]
	assert.True(t, res.Authenticated)
	assert.True(t, res.NewPersonalBest)
	assert.Equal(t, "Keep your wrists relaxed.", res.CoachNote)
	assert.Equal(t, "user-1", res.UserID)
	assert.Equal(t, 240, res.WPM)

	require.Len(t, results.recorded, 1)
	assert.Equal(t, res.ID, results.recorded[0].ID)
	assert.Equal(t, []int{240}, bests.updates)
	assert.Zero(t, usage.recorded)

	stored, ok := s.Result()
	require.True(t, ok)
	assert.Equal(t, "Keep your wrists relaxed.", stored.CoachNote)
}

func TestDailyModeUsesDailySource(t *testing.T) {
	h, deps := newHarness("not today")
	deps.Daily = &fakeTexts{texts: []string{"daily words"}}
	s := New(DefaultConfig(models.GameModeDaily, models.DifficultyMedium), deps)

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, "daily words", s.Snapshot().Text)
	assert.Empty(t, h.texts.requests)
}

func TestProblemKeysDriveNextText(t *testing.T) {
	h, deps := newHarness("abc", "xyz")
	s := New(DefaultConfig(models.GameModeSolo, models.DifficultyEasy), deps)
	s.SetProblemKeys([]string{"q"})
	require.NoError(t, s.Start(context.Background()))

	for _, miss := range []string{"Z", "z", "y", "k"} {
		_, _ = s.Type(miss)
	}
	typeAll(t, s, "abc")

	assert.Equal(t, []string{"q", "z", "k", "y"}, s.ProblemKeys())
	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, []string{"q", "z", "k", "y"}, h.texts.requests[1].TargetChars)
}

func TestMergeProblemKeys(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, mergeProblemKeys([]string{"a", "b"}, []string{"b", "c"}, 10))
	assert.Equal(t, []string{"c", "d"}, mergeProblemKeys([]string{"a", "b"}, []string{"c", "d"}, 2))
	assert.Equal(t, []string{"e", "a", "c"}, topMissed(map[string]int{"a": 2, "c": 2, "e": 5, "f": 1}, 3))
}
