package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/zippy/go/internal/models"
	"github.com/mcdev12/zippy/go/internal/race/sim"
	"github.com/mcdev12/zippy/go/internal/textgen"
)

// Session runs one player's attempts: LOBBY, then RUNNING, then COMPLETED.
// All methods are safe for concurrent use.
type Session struct {
	cfg  Config
	deps Deps

	mu      sync.Mutex
	state   State
	attempt int
	parent  context.Context
	cancel  context.CancelFunc

	text        string
	runes       []rune
	input       string
	index       int
	errors      int
	totalKeys   int
	correctKeys int
	streak      int
	elapsed     time.Duration
	timeLeft    time.Duration
	started     bool
	loading     bool
	frozen      bool
	slowed      bool
	powerUps    []PowerUpKind
	errorMap    map[string]int
	problemKeys []string
	pbWPM       int
	result      *Result

	freezeTimer clockwork.Timer
	slowTimer   clockwork.Timer
}

// New creates a session in LOBBY.
func New(cfg Config, deps Deps) *Session {
	defaults := DefaultConfig(cfg.Mode, cfg.Difficulty)
	if cfg.Tick <= 0 {
		cfg.Tick = defaults.Tick
	}
	if cfg.TimedDuration <= 0 {
		cfg.TimedDuration = defaults.TimedDuration
	}
	if cfg.BeatClockStart <= 0 {
		cfg.BeatClockStart = defaults.BeatClockStart
	}
	if cfg.BeatClockBonus <= 0 {
		cfg.BeatClockBonus = defaults.BeatClockBonus
	}
	if cfg.FreezeDuration <= 0 {
		cfg.FreezeDuration = defaults.FreezeDuration
	}
	if cfg.SlowDuration <= 0 {
		cfg.SlowDuration = defaults.SlowDuration
	}
	if cfg.WordsPerPowerUp <= 0 {
		cfg.WordsPerPowerUp = defaults.WordsPerPowerUp
	}
	if cfg.MaxPowerUps <= 0 {
		cfg.MaxPowerUps = defaults.MaxPowerUps
	}
	if cfg.MaxProblemKeys <= 0 {
		cfg.MaxProblemKeys = defaults.MaxProblemKeys
	}
	if cfg.ProblemKeysPerRun <= 0 {
		cfg.ProblemKeysPerRun = defaults.ProblemKeysPerRun
	}
	if cfg.OpponentDifficulty == "" {
		cfg.OpponentDifficulty = cfg.Difficulty
	}

	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewSource(deps.Clock.Now().UnixNano()))
	}

	return &Session{
		cfg:      cfg,
		deps:     deps,
		state:    StateLobby,
		parent:   context.Background(),
		errorMap: make(map[string]int),
	}
}

// Config returns the rules the session runs with.
func (s *Session) Config() Config {
	return s.cfg
}

// Start begins a local attempt: it fetches text and moves to RUNNING. A
// finished session first returns to LOBBY with zeroed counters. If the text
// cannot be fetched the session stays in LOBBY and the error wraps
// ErrGenerationUnavailable.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.cfg.networked():
		s.mu.Unlock()
		return ErrNetworkedStart
	case s.state == StateRunning, s.loading:
		s.mu.Unlock()
		return fmt.Errorf("%w: start while %s", ErrInvalidTransition, s.state)
	}
	if s.state == StateCompleted {
		s.lobbyLocked()
	}
	s.loading = true
	req := s.requestLocked()
	s.mu.Unlock()

	if err := s.checkGuest(ctx); err != nil {
		s.setLoading(false)
		return err
	}

	text, err := s.fetchText(ctx, req)
	if err != nil {
		s.setLoading(false)
		log.Warn().Err(err).Str("mode", string(s.cfg.Mode)).Msg("race text unavailable, staying in lobby")
		return err
	}

	s.mu.Lock()
	s.beginLocked(ctx, text)
	s.mu.Unlock()
	return nil
}

// BeginNetworked starts a multiplayer attempt with the text carried by the
// room's game-starting event. A race already running is replaced.
func (s *Session) BeginNetworked(ctx context.Context, text string) error {
	text = textgen.Clean(text)
	if text == "" {
		return fmt.Errorf("%w: empty race text", ErrInvalidTransition)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cfg.networked() {
		return fmt.Errorf("%w: not a multiplayer session", ErrInvalidTransition)
	}
	s.beginLocked(ctx, text)
	return nil
}

// Reset abandons any attempt without side effects and returns to LOBBY with
// zeroed counters.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lobbyLocked()
}

func (s *Session) lobbyLocked() {
	s.stopAttemptLocked()
	s.attempt++
	s.resetCountersLocked()
	s.state = StateLobby
	s.text, s.runes = "", nil
	s.loading = false
	if s.deps.Roster != nil {
		s.deps.Roster.ResetProgress()
	}
}

// Type feeds the current contents of the input box. Growing input that still
// matches the text advances the player; anything else is a mistake.
// Shrinking input is a backspace.
func (s *Session) Type(value string) (Keystroke, error) {
	s.mu.Lock()
	if s.state != StateRunning || s.loading {
		s.mu.Unlock()
		return KeystrokeIgnored, ErrInputRejected
	}
	if !s.started {
		s.startClockLocked()
	}

	val := textgen.Normalize(value)
	valLen := utf8.RuneCountInString(val)
	inLen := utf8.RuneCountInString(s.input)

	if valLen < inLen {
		s.input = val
		s.index = valLen
		index, errCount := s.index, s.errors
		s.mu.Unlock()
		s.report(index, errCount)
		return KeystrokeBackspace, nil
	}
	if val == s.input {
		s.mu.Unlock()
		return KeystrokeIgnored, nil
	}

	s.totalKeys++
	if !strings.HasPrefix(s.text, val) {
		return s.mistakeLocked(val)
	}

	if valLen > inLen {
		s.correctKeys++
		if strings.HasSuffix(val, " ") {
			s.wordCompletedLocked()
		}
	}
	s.input = val
	s.index = valLen
	return KeystrokeCorrect, s.advancedLocked()
}

// UsePowerUp spends one held power-up of kind.
func (s *Session) UsePowerUp(kind PowerUpKind) error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return fmt.Errorf("%w: power-up while %s", ErrInvalidTransition, s.state)
	}
	held := -1
	for i, k := range s.powerUps {
		if k == kind {
			held = i
			break
		}
	}
	if held < 0 {
		s.mu.Unlock()
		return ErrNoPowerUp
	}
	s.powerUps = append(s.powerUps[:held], s.powerUps[held+1:]...)

	attempt := s.attempt
	switch kind {
	case PowerUpSkipWord:
		rest := s.runes[s.index:]
		skip := len(rest)
		for i, r := range rest {
			if r == ' ' {
				skip = i + 1
				break
			}
		}
		s.index += skip
		s.input = string(s.runes[:s.index])
		return s.advancedLocked()

	case PowerUpTimeFreeze:
		s.frozen = true
		if s.deps.Sim != nil {
			s.deps.Sim.SetFrozen(true)
		}
		if s.freezeTimer != nil {
			s.freezeTimer.Stop()
		}
		s.freezeTimer = s.deps.Clock.AfterFunc(s.cfg.FreezeDuration, func() { s.unfreeze(attempt) })

	case PowerUpSlowOpponents:
		s.slowed = true
		if s.deps.Sim != nil {
			s.deps.Sim.SetSlowed(true)
		}
		if s.slowTimer != nil {
			s.slowTimer.Stop()
		}
		s.slowTimer = s.deps.Clock.AfterFunc(s.cfg.SlowDuration, func() { s.unslow(attempt) })
	}
	s.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	errorMap := make(map[string]int, len(s.errorMap))
	for k, v := range s.errorMap {
		errorMap[k] = v
	}
	return Snapshot{
		State:       s.state,
		Text:        s.text,
		Input:       s.input,
		Index:       s.index,
		Errors:      s.errors,
		TotalKeys:   s.totalKeys,
		CorrectKeys: s.correctKeys,
		Streak:      s.streak,
		Elapsed:     s.elapsed,
		TimeLeft:    s.timeLeft,
		PowerUps:    append([]PowerUpKind(nil), s.powerUps...),
		Frozen:      s.frozen,
		Slowed:      s.slowed,
		Loading:     s.loading,
		ErrorMap:    errorMap,
		ProblemKeys: append([]string(nil), s.problemKeys...),
		WPM:         s.wpmLocked(),
		Accuracy:    s.accuracyLocked(),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Result returns the last finished attempt.
func (s *Session) Result() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return Result{}, false
	}
	return *s.result, true
}

// ProblemKeys returns the keys future texts should drill.
func (s *Session) ProblemKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.problemKeys...)
}

// SetProblemKeys restores drilled keys saved by an earlier run.
func (s *Session) SetProblemKeys(keys []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(keys) > s.cfg.MaxProblemKeys {
		keys = keys[len(keys)-s.cfg.MaxProblemKeys:]
	}
	s.problemKeys = append([]string(nil), keys...)
}

func (s *Session) setLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = loading
}

func (s *Session) checkGuest(ctx context.Context) error {
	if s.cfg.authenticated() || s.deps.Usage == nil {
		return nil
	}
	used, err := s.deps.Usage.HasUsed(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("solo usage check failed, allowing attempt")
		used = false
	}
	if used || s.cfg.Mode != models.GameModeSolo {
		return ErrAttemptRestricted
	}
	return nil
}

func (s *Session) requestLocked() textgen.Request {
	return textgen.Request{
		Difficulty:  s.cfg.Difficulty,
		Category:    s.cfg.Category,
		Seed:        s.cfg.Seed,
		TargetChars: append([]string(nil), s.problemKeys...),
		Length:      textgen.LengthMedium,
	}
}

func (s *Session) fetchText(ctx context.Context, req textgen.Request) (string, error) {
	source := s.deps.Texts
	if s.cfg.Mode == models.GameModeDaily && s.deps.Daily != nil {
		source = s.deps.Daily
	}
	if source == nil {
		return "", fmt.Errorf("%w: no text source", ErrGenerationUnavailable)
	}

	text, err := source.Generate(ctx, req)
	if err == nil {
		if text = textgen.Clean(text); text == "" {
			err = errors.New("empty text")
		}
	}
	if err != nil {
		if errors.Is(err, ErrGenerationUnavailable) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrGenerationUnavailable, err)
	}
	return text, nil
}

// beginLocked enters RUNNING with text. Caller holds s.mu.
func (s *Session) beginLocked(ctx context.Context, text string) {
	s.stopAttemptLocked()
	s.attempt++
	s.resetCountersLocked()

	s.parent = ctx
	s.state = StateRunning
	s.text = text
	s.runes = []rune(text)
	s.timeLeft = s.cfg.countdown()
	s.loading = false
	s.result = nil
	s.prepareRosterLocked()

	log.Debug().
		Str("mode", string(s.cfg.Mode)).
		Str("difficulty", string(s.cfg.Difficulty)).
		Int("text_length", len(s.runes)).
		Msg("attempt started")
}

func (s *Session) resetCountersLocked() {
	s.input = ""
	s.index = 0
	s.errors = 0
	s.totalKeys = 0
	s.correctKeys = 0
	s.streak = 0
	s.elapsed = 0
	s.timeLeft = 0
	s.started = false
	s.frozen = false
	s.slowed = false
	s.powerUps = nil
	s.errorMap = make(map[string]int)
}

func (s *Session) prepareRosterLocked() {
	s.pbWPM = 0
	if s.deps.Bests != nil {
		if pb, ok, err := s.deps.Bests.Get(s.cfg.Difficulty, s.cfg.Mode); err != nil {
			log.Warn().Err(err).Msg("personal best lookup failed")
		} else if ok {
			s.pbWPM = pb
		}
	}

	roster := s.deps.Roster
	if roster == nil {
		return
	}
	roster.SetLocal(models.Participant{ID: s.cfg.localID(), Name: s.cfg.Name, Avatar: s.cfg.Avatar})
	if s.pbWPM > 0 {
		ghost := sim.Ghost()
		roster.SetGhost(&ghost)
	} else {
		roster.SetGhost(nil)
	}

	switch {
	case s.cfg.Mode == models.GameModeCompetitive && s.cfg.Competitive == models.CompetitiveBots:
		roster.SetBots(sim.OpponentBots(s.cfg.Opponents))
	case s.cfg.Mode == models.GameModeWPMRace:
		roster.SetBots([]models.Participant{sim.TargetBot()})
	default:
		roster.SetBots(nil)
	}
	roster.ResetProgress()
}

func (s *Session) simEnvLocked() sim.Env {
	return sim.Env{
		TextLength:      len(s.runes),
		Difficulty:      s.cfg.OpponentDifficulty,
		PersonalBestWPM: float64(s.pbWPM),
		Slowed:          s.slowed,
	}
}

// startClockLocked starts timing on the first keystroke of an attempt.
func (s *Session) startClockLocked() {
	s.started = true
	ctx, cancel := context.WithCancel(s.parent)
	s.cancel = cancel
	go s.tickLoop(ctx, s.attempt)
	if s.deps.Sim != nil {
		s.deps.Sim.Start(ctx, s.simEnvLocked())
	}
}

func (s *Session) stopAttemptLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.deps.Sim != nil {
		s.deps.Sim.Stop()
	}
	if s.freezeTimer != nil {
		s.freezeTimer.Stop()
		s.freezeTimer = nil
	}
	if s.slowTimer != nil {
		s.slowTimer.Stop()
		s.slowTimer = nil
	}
}

func (s *Session) tickLoop(ctx context.Context, attempt int) {
	ticker := s.deps.Clock.NewTicker(s.cfg.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if done := s.onTick(attempt); done {
				return
			}
		}
	}
}

// onTick advances the clock by one tick and reports whether the loop should end.
func (s *Session) onTick(attempt int) bool {
	s.mu.Lock()
	if s.attempt != attempt || s.state != StateRunning {
		s.mu.Unlock()
		return true
	}
	if s.frozen {
		s.mu.Unlock()
		return false
	}

	s.elapsed += s.cfg.Tick
	if s.cfg.Mode.Countdown() {
		s.timeLeft -= s.cfg.Tick
		if s.timeLeft <= 0 {
			s.timeLeft = 0
			res, parent := s.completeLocked(), s.parent
			s.mu.Unlock()
			s.finish(parent, res)
			return true
		}
	}
	s.mu.Unlock()
	return false
}

func (s *Session) wordCompletedLocked() {
	s.streak++
	if s.streak%s.cfg.WordsPerPowerUp == 0 {
		kind := powerUpKinds[int(s.deps.Rand.Float64()*float64(len(powerUpKinds)))%len(powerUpKinds)]
		s.powerUps = append(s.powerUps, kind)
		if len(s.powerUps) > s.cfg.MaxPowerUps {
			s.powerUps = s.powerUps[len(s.powerUps)-s.cfg.MaxPowerUps:]
		}
	}
	if s.cfg.Mode == models.GameModeBeatTheClock {
		s.timeLeft += s.cfg.BeatClockBonus
	}
}

// mistakeLocked records a wrong keystroke and releases s.mu.
func (s *Session) mistakeLocked(val string) (Keystroke, error) {
	s.errors++
	s.streak = 0

	if s.cfg.Mode == models.GameModeAccuracyChallenge {
		res, parent := s.completeLocked(), s.parent
		s.mu.Unlock()
		s.finish(parent, res)
		return KeystrokeError, nil
	}

	last, _ := utf8.DecodeLastRuneInString(val)
	s.errorMap[string(unicode.ToLower(last))]++
	index, errCount := s.index, s.errors
	s.mu.Unlock()

	s.report(index, errCount)
	return KeystrokeError, nil
}

// advancedLocked handles the end of text after the index moved forward and
// releases s.mu. Countdown modes roll straight into fresh text.
func (s *Session) advancedLocked() error {
	if s.index < len(s.runes) {
		index, errCount := s.index, s.errors
		s.mu.Unlock()
		s.report(index, errCount)
		return nil
	}

	if !s.cfg.Mode.Countdown() {
		index, errCount := s.index, s.errors
		res, parent := s.completeLocked(), s.parent
		s.mu.Unlock()
		s.report(index, errCount)
		s.finish(parent, res)
		return nil
	}

	s.input = ""
	s.index = 0
	s.loading = true
	attempt, parent, req, errCount := s.attempt, s.parent, s.requestLocked(), s.errors
	s.mu.Unlock()

	s.report(0, errCount)
	return s.reloadText(parent, attempt, req)
}

// reloadText swaps in fresh text mid attempt. On failure the attempt keeps
// running on the previous text.
func (s *Session) reloadText(ctx context.Context, attempt int, req textgen.Request) error {
	text, err := s.fetchText(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attempt != attempt || s.state != StateRunning {
		return nil
	}
	s.loading = false
	if err != nil {
		log.Warn().Err(err).Msg("could not load next text, repeating current one")
		return err
	}

	s.text = text
	s.runes = []rune(text)
	if s.deps.Roster != nil {
		s.deps.Roster.ResetProgress()
	}
	if s.deps.Sim != nil {
		s.deps.Sim.SetEnv(s.simEnvLocked())
	}
	return nil
}

func (s *Session) unfreeze(attempt int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attempt != attempt {
		return
	}
	s.frozen = false
	if s.deps.Sim != nil {
		s.deps.Sim.SetFrozen(false)
	}
}

func (s *Session) unslow(attempt int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attempt != attempt {
		return
	}
	s.slowed = false
	if s.deps.Sim != nil {
		s.deps.Sim.SetSlowed(false)
	}
}

func (s *Session) report(index, errCount int) {
	if s.deps.Roster != nil {
		s.deps.Roster.SetLocalProgress(index, errCount)
	}
	if s.deps.OnProgress != nil {
		s.deps.OnProgress(index, errCount)
	}
}

func (s *Session) wpmLocked() int {
	minutes := s.elapsed.Minutes()
	if minutes <= 0 {
		return 0
	}
	typed := utf8.RuneCountInString(s.input)
	if s.cfg.Mode.Countdown() {
		// input resets on every rollover, correct keys do not
		typed = s.correctKeys
	}
	return int(float64(typed)/models.CharsPerWord/minutes + 0.5)
}

func (s *Session) accuracyLocked() int {
	if s.totalKeys == 0 {
		return 100
	}
	return int(float64(s.totalKeys-s.errors)/float64(s.totalKeys)*100 + 0.5)
}

// completeLocked moves RUNNING to COMPLETED and computes the result. The
// state check makes it fire once per attempt. Caller holds s.mu.
func (s *Session) completeLocked() Result {
	s.state = StateCompleted
	s.loading = false
	s.stopAttemptLocked()

	seconds := s.elapsed.Seconds()
	if s.cfg.Mode == models.GameModeTimeAttack {
		seconds = s.cfg.TimedDuration.Seconds()
	}

	errorMap := make(map[string]int, len(s.errorMap))
	for k, v := range s.errorMap {
		errorMap[k] = v
	}
	s.problemKeys = mergeProblemKeys(s.problemKeys, topMissed(s.errorMap, s.cfg.ProblemKeysPerRun), s.cfg.MaxProblemKeys)

	res := Result{
		TypingResult: models.TypingResult{
			ID:         uuid.New(),
			UserID:     s.cfg.UserID,
			Date:       s.deps.Clock.Now().UTC(),
			WPM:        s.wpmLocked(),
			Accuracy:   s.accuracyLocked(),
			Time:       seconds,
			Errors:     s.errors,
			Difficulty: s.cfg.Difficulty,
			Mode:       s.cfg.Mode,
			TextLength: len(s.runes),
			ErrorMap:   errorMap,
		},
		Authenticated: s.cfg.authenticated(),
	}
	s.result = &res

	log.Info().
		Str("mode", string(s.cfg.Mode)).
		Int("wpm", res.WPM).
		Int("accuracy", res.Accuracy).
		Int("errors", res.Errors).
		Msg("attempt completed")
	return res
}

// finish runs the completion side effects outside the lock.
func (s *Session) finish(ctx context.Context, res Result) {
	switch {
	case res.Authenticated:
		if s.deps.Bests != nil {
			improved, err := s.deps.Bests.UpdateIfBetter(res.Difficulty, res.Mode, res.WPM)
			if err != nil {
				log.Error().Err(err).Msg("failed to update personal best")
			}
			res.NewPersonalBest = improved
		}
		if s.deps.Coach != nil {
			res.CoachNote = s.deps.Coach.Note(ctx, textgen.CoachRequest{
				WPM:         res.WPM,
				Accuracy:    res.Accuracy,
				Errors:      res.Errors,
				MissedChars: sortedKeys(res.ErrorMap),
			})
		}
		if s.deps.Results != nil {
			if err := s.deps.Results.RecordAttempt(ctx, res.TypingResult); err != nil {
				log.Error().Err(err).Str("result_id", res.ID.String()).Msg("failed to record attempt")
			}
		}
	case s.cfg.Mode == models.GameModeSolo && s.deps.Usage != nil:
		if err := s.deps.Usage.Record(ctx); err != nil {
			log.Error().Err(err).Msg("failed to record free solo attempt")
		}
	}

	s.mu.Lock()
	if s.result != nil && s.result.ID == res.ID {
		stored := res
		s.result = &stored
	}
	s.mu.Unlock()

	if s.deps.OnComplete != nil {
		s.deps.OnComplete(res)
	}
}

// topMissed returns up to n keys with the most misses, ties broken by key.
func topMissed(errorMap map[string]int, n int) []string {
	keys := sortedKeys(errorMap)
	sort.SliceStable(keys, func(i, j int) bool {
		return errorMap[keys[i]] > errorMap[keys[j]]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}

// mergeProblemKeys appends fresh keys not already known and keeps the newest max.
func mergeProblemKeys(prev, fresh []string, max int) []string {
	seen := make(map[string]struct{}, len(prev)+len(fresh))
	merged := make([]string, 0, len(prev)+len(fresh))
	for _, k := range append(append([]string(nil), prev...), fresh...) {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		merged = append(merged, k)
	}
	if len(merged) > max {
		merged = merged[len(merged)-max:]
	}
	return merged
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
