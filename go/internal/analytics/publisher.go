package analytics

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Publisher ships lifecycle events somewhere durable.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Noop logs events at debug and drops them. It is the default when no
// message bus is configured.
type Noop struct{}

func (Noop) Publish(_ context.Context, event Event) error {
	log.Debug().
		Str("event_id", event.ID.String()).
		Str("event_type", string(event.Type)).
		Str("room_id", event.RoomID).
		Msg("analytics disabled, dropping event")
	return nil
}

func (Noop) Close() error { return nil }
