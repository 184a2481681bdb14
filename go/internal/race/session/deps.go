package session

import (
	"context"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/zippy/go/internal/models"
	"github.com/mcdev12/zippy/go/internal/race/sim"
	"github.com/mcdev12/zippy/go/internal/textgen"
)

// TextSource fetches race text.
type TextSource interface {
	Generate(ctx context.Context, req textgen.Request) (string, error)
}

// Roster is the display list the session keeps the local player, ghost and
// bots in. *reconcile.Reconciler satisfies it.
type Roster interface {
	SetLocal(p models.Participant)
	SetLocalProgress(index, errCount int)
	SetGhost(g *models.Participant)
	SetBots(bots []models.Participant)
	ResetProgress()
}

// Simulation drives bots and the ghost. *sim.Runner satisfies it.
type Simulation interface {
	Start(ctx context.Context, env sim.Env)
	Stop()
	SetEnv(env sim.Env)
	SetFrozen(frozen bool)
	SetSlowed(slowed bool)
}

// Coach writes the post-race note. It must not fail.
type Coach interface {
	Note(ctx context.Context, req textgen.CoachRequest) string
}

// ResultStore persists finished attempts for signed in users.
type ResultStore interface {
	RecordAttempt(ctx context.Context, result models.TypingResult) error
}

// PersonalBests holds the per difficulty and mode best WPM.
type PersonalBests interface {
	Get(d models.Difficulty, m models.GameMode) (int, bool, error)
	UpdateIfBetter(d models.Difficulty, m models.GameMode, wpm int) (bool, error)
}

// SoloUsage tracks the one free solo attempt a guest gets.
type SoloUsage interface {
	HasUsed(ctx context.Context) (bool, error)
	Record(ctx context.Context) error
}

// Rand picks awarded power-ups.
type Rand interface {
	Float64() float64
}

// Deps are the collaborators a session talks to. Only Clock and Texts are
// required; everything else is skipped when nil.
type Deps struct {
	Clock   clockwork.Clock
	Rand    Rand
	Texts   TextSource
	Daily   TextSource
	Roster  Roster
	Sim     Simulation
	Coach   Coach
	Results ResultStore
	Bests   PersonalBests
	Usage   SoloUsage

	// OnProgress is called after every accepted keystroke, outside the
	// session lock. Multiplayer clients relay it to the room.
	OnProgress func(index, errCount int)
	// OnComplete is called once per finished attempt after side effects ran.
	OnComplete func(Result)
}
