package textgen

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

const textSystemPrompt = "You are a helpful assistant providing typing practice sentences."

// Provider generates race text with one model.
type Provider struct {
	Name  string
	Model Model
}

// Generate asks the model for a sentence and cleans it up.
func (p Provider) Generate(ctx context.Context, req Request) (string, error) {
	text, err := p.Model.Complete(ctx, textSystemPrompt, Prompt(req))
	if err != nil {
		return "", fmt.Errorf("%s: %w", p.Name, err)
	}
	text = Clean(text)
	if text == "" {
		return "", fmt.Errorf("%s: empty text", p.Name)
	}
	return text, nil
}

// Fallback tries each generator in order and returns the first text.
type Fallback struct {
	generators []Generator
}

// NewFallback chains generators, first preferred.
func NewFallback(generators ...Generator) *Fallback {
	return &Fallback{generators: generators}
}

// Generate implements Generator. When every generator fails the error wraps
// ErrGenerationUnavailable along with each failure.
func (f *Fallback) Generate(ctx context.Context, req Request) (string, error) {
	if len(f.generators) == 0 {
		return "", fmt.Errorf("%w: %w", ErrGenerationUnavailable, ErrNoProviders)
	}

	var errs []error
	for i, g := range f.generators {
		text, err := g.Generate(ctx, req)
		if err == nil {
			return text, nil
		}
		log.Warn().
			Err(err).
			Int("provider_index", i).
			Str("difficulty", string(req.Difficulty)).
			Msg("text provider failed")
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return "", fmt.Errorf("%w: %w", ErrGenerationUnavailable, errors.Join(errs...))
}
