package session

import (
	"errors"

	"github.com/mcdev12/zippy/go/internal/textgen"
)

var (
	// ErrInvalidTransition is returned when an action does not apply to the
	// current state.
	ErrInvalidTransition = errors.New("invalid session transition")
	// ErrInputRejected is returned for keystrokes outside a running attempt.
	ErrInputRejected = errors.New("input rejected")
	// ErrGenerationUnavailable aliases the text generation failure so callers
	// can match it without importing textgen.
	ErrGenerationUnavailable = textgen.ErrGenerationUnavailable
	// ErrNetworkedStart is returned when a multiplayer attempt is started
	// locally instead of by the room's game-starting event.
	ErrNetworkedStart = errors.New("multiplayer races start from the room")
	// ErrAttemptRestricted is returned when a guest has used the free solo
	// attempt or picks a mode that needs an account.
	ErrAttemptRestricted = errors.New("sign in to keep playing")
	// ErrNoPowerUp is returned when using a power-up that is not held.
	ErrNoPowerUp = errors.New("power-up not held")
)
