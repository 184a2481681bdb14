package models

// UserProfile is the display identity a racer carries into rooms.
type UserProfile struct {
	Username    string `json:"username"`
	Avatar      string `json:"avatar"`
	AccentColor string `json:"accentColor"`
	Theme       string `json:"theme,omitempty"`
	IsPro       bool   `json:"is_pro,omitempty"`
}

// PomodoroSettings configures the focus timer widget.
type PomodoroSettings struct {
	Enabled        bool   `json:"enabled"`
	DefaultMinutes int    `json:"defaultMinutes"`
	Size           string `json:"size"`
}

// Preferences is the opaque settings bundle persisted per authenticated user.
type Preferences struct {
	AIProvider           string            `json:"ai_provider"`
	GithubToken          string            `json:"github_token"`
	UserProfile          UserProfile       `json:"user_profile"`
	PomodoroSettings     PomodoroSettings  `json:"pomodoro_settings"`
	AIOpponentCount      int               `json:"ai_opponent_count"`
	AIOpponentDifficulty Difficulty        `json:"ai_opponent_difficulty"`
	CalibratedKeys       []string          `json:"calibrated_keys"`
	KeyMappings          map[string]string `json:"key_mappings"`
	SoundProfile         string            `json:"sound_profile,omitempty"`
	KeyboardLayout       string            `json:"keyboard_layout,omitempty"`
	SpeedUnit            string            `json:"speed_unit,omitempty"`
}

// DefaultProfile is used for racers who never customised their profile.
var DefaultProfile = UserProfile{Username: "Guest Player", Avatar: "😊", AccentColor: "indigo"}
