package models

import "fmt"

// CharsPerWord is the standard word length used for every WPM figure.
const CharsPerWord = 5

// Difficulty is one of the five text/bot difficulty tiers.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
	DifficultyPro    Difficulty = "pro"
	DifficultyInsane Difficulty = "insane"
)

// Difficulties lists the tiers from slowest to fastest.
var Difficulties = []Difficulty{
	DifficultyEasy,
	DifficultyMedium,
	DifficultyHard,
	DifficultyPro,
	DifficultyInsane,
}

// ParseDifficulty validates a difficulty string.
func ParseDifficulty(s string) (Difficulty, error) {
	for _, d := range Difficulties {
		if string(d) == s {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown difficulty %q", s)
}

// GameMode defines how an attempt is played and when it ends.
type GameMode string

const (
	GameModeSolo              GameMode = "solo"
	GameModeTimeAttack        GameMode = "timed"
	GameModeCompetitive       GameMode = "competitive"
	GameModeDaily             GameMode = "daily"
	GameModeBeatTheClock      GameMode = "beat_the_clock"
	GameModeAccuracyChallenge GameMode = "accuracy_challenge"
	GameModeWPMRace           GameMode = "wpm_race"
)

// ParseGameMode validates a game mode string.
func ParseGameMode(s string) (GameMode, error) {
	switch m := GameMode(s); m {
	case GameModeSolo, GameModeTimeAttack, GameModeCompetitive, GameModeDaily,
		GameModeBeatTheClock, GameModeAccuracyChallenge, GameModeWPMRace:
		return m, nil
	}
	return "", fmt.Errorf("unknown game mode %q", s)
}

// Countdown reports whether the mode runs against a clock.
func (m GameMode) Countdown() bool {
	return m == GameModeTimeAttack || m == GameModeBeatTheClock
}

// CompetitiveType selects between local bots and networked rooms.
type CompetitiveType string

const (
	CompetitiveBots        CompetitiveType = "bots"
	CompetitiveMultiplayer CompetitiveType = "multiplayer"
)
