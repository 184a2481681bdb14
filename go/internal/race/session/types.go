package session

import (
	"time"

	"github.com/mcdev12/zippy/go/internal/models"
)

// State is the attempt lifecycle.
type State string

const (
	StateLobby     State = "LOBBY"
	StateRunning   State = "RUNNING"
	StateCompleted State = "COMPLETED"
)

// Keystroke classifies one input change.
type Keystroke int

const (
	KeystrokeIgnored Keystroke = iota
	KeystrokeCorrect
	KeystrokeError
	KeystrokeBackspace
)

func (k Keystroke) String() string {
	switch k {
	case KeystrokeCorrect:
		return "correct"
	case KeystrokeError:
		return "error"
	case KeystrokeBackspace:
		return "backspace"
	default:
		return "ignored"
	}
}

// PowerUpKind is an earned one-shot effect.
type PowerUpKind string

const (
	PowerUpSkipWord      PowerUpKind = "SKIP_WORD"
	PowerUpTimeFreeze    PowerUpKind = "TIME_FREEZE"
	PowerUpSlowOpponents PowerUpKind = "SLOW_OPPONENTS"
)

var powerUpKinds = []PowerUpKind{PowerUpSkipWord, PowerUpTimeFreeze, PowerUpSlowOpponents}

// Config fixes the rules of an attempt.
type Config struct {
	Mode        models.GameMode
	Competitive models.CompetitiveType
	Difficulty  models.Difficulty
	// OpponentDifficulty sets the bot tier; defaults to Difficulty.
	OpponentDifficulty models.Difficulty
	Opponents          int
	Category           string
	Seed               string

	// SelfID is this client's effective id in multiplayer rooms.
	SelfID string
	// UserID is the signed in account, empty for guests.
	UserID string
	Name   string
	Avatar string

	Tick              time.Duration
	TimedDuration     time.Duration
	BeatClockStart    time.Duration
	BeatClockBonus    time.Duration
	FreezeDuration    time.Duration
	SlowDuration      time.Duration
	WordsPerPowerUp   int
	MaxPowerUps       int
	MaxProblemKeys    int
	ProblemKeysPerRun int
}

// DefaultConfig returns the standard rules for mode at difficulty.
func DefaultConfig(mode models.GameMode, difficulty models.Difficulty) Config {
	return Config{
		Mode:              mode,
		Competitive:       models.CompetitiveBots,
		Difficulty:        difficulty,
		Opponents:         3,
		Category:          "General",
		Name:              "Guest",
		Avatar:            "🙂",
		Tick:              100 * time.Millisecond,
		TimedDuration:     60 * time.Second,
		BeatClockStart:    30 * time.Second,
		BeatClockBonus:    2500 * time.Millisecond,
		FreezeDuration:    3 * time.Second,
		SlowDuration:      5 * time.Second,
		WordsPerPowerUp:   8,
		MaxPowerUps:       3,
		MaxProblemKeys:    10,
		ProblemKeysPerRun: 3,
	}
}

func (c Config) networked() bool {
	return c.Mode == models.GameModeCompetitive && c.Competitive == models.CompetitiveMultiplayer
}

func (c Config) authenticated() bool {
	return c.UserID != ""
}

// localID is the id the local player carries in the display list.
func (c Config) localID() string {
	if c.networked() && c.SelfID != "" {
		return c.SelfID
	}
	return "me"
}

func (c Config) countdown() time.Duration {
	switch c.Mode {
	case models.GameModeTimeAttack:
		return c.TimedDuration
	case models.GameModeBeatTheClock:
		return c.BeatClockStart
	default:
		return 0
	}
}

// Snapshot is a read-only view of a session.
type Snapshot struct {
	State       State
	Text        string
	Input       string
	Index       int
	Errors      int
	TotalKeys   int
	CorrectKeys int
	Streak      int
	Elapsed     time.Duration
	TimeLeft    time.Duration
	PowerUps    []PowerUpKind
	Frozen      bool
	Slowed      bool
	Loading     bool
	ErrorMap    map[string]int
	ProblemKeys []string
	WPM         int
	Accuracy    int
}

// Result is what a completed attempt produced.
type Result struct {
	models.TypingResult
	Authenticated bool
	// NewPersonalBest is set when the attempt beat the stored best.
	NewPersonalBest bool
}
