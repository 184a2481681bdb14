package sim

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mcdev12/zippy/go/internal/models"
)

//go:embed default.yaml
var defaultConfig []byte

// Config tunes the simulator. Tiers are data so new difficulty levels do
// not need code changes.
type Config struct {
	Tick time.Duration `yaml:"tick"`
	// MinTick bounds how far the tick is subdivided for a fast ghost.
	MinTick time.Duration `yaml:"min_tick"`
	// MaxGhostWPM is the fastest personal best the ghost reproduces.
	MaxGhostWPM float64                       `yaml:"max_ghost_wpm"`
	TargetWPM   float64                       `yaml:"target_wpm"`
	SlowFactor  float64                       `yaml:"slow_factor"`
	BotSpread   float64                       `yaml:"bot_spread"`
	Tiers       map[models.Difficulty]float64 `yaml:"tiers"`
}

// DefaultConfig returns the built in tuning.
func DefaultConfig() Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultConfig, &cfg); err != nil {
		panic(fmt.Sprintf("embedded sim config: %v", err))
	}
	return cfg
}

// LoadConfig reads a YAML file. An empty path yields the defaults.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read sim config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML on top of the defaults and validates the result.
// Tiers named in data override the matching default tiers.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse sim config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the tier table and pacing constants.
func (c Config) Validate() error {
	if c.Tick <= 0 {
		return fmt.Errorf("%w: tick must be positive", ErrInvalidConfig)
	}
	if c.MinTick <= 0 || c.MinTick > c.Tick {
		return fmt.Errorf("%w: min_tick must be in (0, tick]", ErrInvalidConfig)
	}
	if c.TargetWPM <= 0 || c.MaxGhostWPM <= 0 {
		return fmt.Errorf("%w: target_wpm and max_ghost_wpm must be positive", ErrInvalidConfig)
	}
	if paceChance(c.TargetWPM, c.Tick) > 1 {
		return fmt.Errorf("%w: target_wpm %v is faster than one character a tick", ErrInvalidConfig, c.TargetWPM)
	}
	if paceChance(c.MaxGhostWPM, c.MinTick) > 1 {
		return fmt.Errorf("%w: max_ghost_wpm %v is faster than one character per min_tick", ErrInvalidConfig, c.MaxGhostWPM)
	}
	if c.SlowFactor <= 0 || c.SlowFactor > 1 {
		return fmt.Errorf("%w: slow_factor must be in (0, 1]", ErrInvalidConfig)
	}
	if c.BotSpread < 0 {
		return fmt.Errorf("%w: bot_spread must not be negative", ErrInvalidConfig)
	}

	prev := 0.0
	for _, d := range models.Difficulties {
		speed, ok := c.Tiers[d]
		if !ok {
			return fmt.Errorf("%w: missing tier %q", ErrInvalidConfig, d)
		}
		if speed <= prev {
			return fmt.Errorf("%w: tier %q (%v) must be faster than the tier below (%v)", ErrInvalidConfig, d, speed, prev)
		}
		prev = speed
	}
	return nil
}
