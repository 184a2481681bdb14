package textgen

import "errors"

var (
	// ErrGenerationUnavailable means no provider produced text. Callers must
	// surface it rather than substitute placeholder text.
	ErrGenerationUnavailable = errors.New("text generation unavailable")
	// ErrNoProviders is returned by a Fallback with nothing configured.
	ErrNoProviders = errors.New("no text providers configured")
)
