package sim

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mcdev12/zippy/go/internal/models"
)

// Rand is the source of the per-tick Bernoulli trials.
type Rand interface {
	Float64() float64
}

// Env is the race state a tick is evaluated against.
type Env struct {
	// TextLength is the race text length in characters.
	TextLength int
	// Difficulty selects the opponent bot tier.
	Difficulty models.Difficulty
	// PersonalBestWPM paces the ghost.
	PersonalBestWPM float64
	// Slowed is set while a slow-opponents power-up is active.
	Slowed bool
}

// EnvForText builds an Env for text, counting characters rather than bytes.
func EnvForText(text string, d models.Difficulty, pbWPM float64) Env {
	return Env{
		TextLength:      utf8.RuneCountInString(text),
		Difficulty:      d,
		PersonalBestWPM: pbWPM,
	}
}

// Simulator advances locally controlled participants one tick at a time.
type Simulator struct {
	cfg Config
	rnd Rand
}

// New creates a simulator. cfg is assumed valid.
func New(cfg Config, rnd Rand) *Simulator {
	return &Simulator{cfg: cfg, rnd: rnd}
}

// Config returns the tuning the simulator runs with.
func (s *Simulator) Config() Config {
	return s.cfg
}

// paceChance converts a words-per-minute pace into the chance of one
// character per tick. Averaged over many ticks it covers wpm words a minute.
func paceChance(wpm float64, tick time.Duration) float64 {
	return wpm / 60 * tick.Seconds() * models.CharsPerWord
}

func (s *Simulator) ghostWPM(env Env) float64 {
	return math.Min(env.PersonalBestWPM, s.cfg.MaxGhostWPM)
}

// TickFor is the tick a race with env runs at. It is the configured tick,
// subdivided when the ghost needs more than one character a tick.
func (s *Simulator) TickFor(env Env) time.Duration {
	chance := paceChance(s.ghostWPM(env), s.cfg.Tick)
	if chance <= 1 {
		return s.cfg.Tick
	}
	tick := time.Duration(float64(s.cfg.Tick) / math.Ceil(chance))
	if tick < s.cfg.MinTick {
		tick = s.cfg.MinTick
	}
	return tick
}

// Probability is the per-tick step chance for p. Networked participants
// are never simulated and get zero.
func (s *Simulator) Probability(p models.Participant, env Env) float64 {
	return s.probability(p, env, s.TickFor(env))
}

func (s *Simulator) probability(p models.Participant, env Env, tick time.Duration) float64 {
	switch {
	case p.IsGhost:
		if env.PersonalBestWPM <= 0 {
			return 0
		}
		return paceChance(s.ghostWPM(env), tick)
	case p.ID == TargetBotID:
		return paceChance(s.cfg.TargetWPM, tick)
	case p.IsBot:
		base, ok := s.cfg.Tiers[env.Difficulty]
		if !ok {
			base = s.cfg.Tiers[models.DifficultyMedium]
		}
		if env.Slowed {
			base *= s.cfg.SlowFactor
		}
		// tiers are chances per configured tick
		chance := math.Min(base*(1+float64(botIndex(p.ID))*s.cfg.BotSpread), 1)
		return chance * float64(tick) / float64(s.cfg.Tick)
	default:
		return 0
	}
}

// Step runs one tick of TickFor(env) over ps and returns the advanced copy.
// Each simulated participant moves at most one character and never past
// the text end.
func (s *Simulator) Step(ps []models.Participant, env Env) []models.Participant {
	tick := s.TickFor(env)
	out := make([]models.Participant, len(ps))
	copy(out, ps)
	for i := range out {
		if out[i].Networked() {
			continue
		}
		if out[i].Index >= env.TextLength {
			out[i].Index = env.TextLength
			continue
		}
		if s.rnd.Float64() < s.probability(out[i], env, tick) {
			out[i].Index++
		}
	}
	return out
}

// botIndex reads N from a "bot-N" id. Other ids count as bot zero.
func botIndex(id string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(id, botIDPrefix))
	if err != nil || !strings.HasPrefix(id, botIDPrefix) || n < 0 {
		return 0
	}
	return n
}
