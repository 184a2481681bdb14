package registry

import "errors"

var (
	// ErrRoomNotFound is returned when a room id does not name a live room.
	ErrRoomNotFound = errors.New("room not found")
	// ErrNotHost is returned under the strict policy when a non-host starts a race.
	ErrNotHost = errors.New("only the host can start the race")
	// ErrNotOwner is returned under the strict policy when a connection reports
	// progress for a participant it does not own.
	ErrNotOwner = errors.New("participant is not owned by this connection")
	// ErrEmptyText is returned when a race is started without text.
	ErrEmptyText = errors.New("race text is empty")
)
