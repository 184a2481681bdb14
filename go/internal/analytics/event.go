package analytics

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType names a room lifecycle edge.
type EventType string

const (
	EventRoomCreated EventType = "room_created"
	EventRoomClosed  EventType = "room_closed"
	EventRaceStarted EventType = "race_started"
)

// Event is one published lifecycle record.
type Event struct {
	ID        uuid.UUID       `json:"event_id"`
	Type      EventType       `json:"event_type"`
	RoomID    string          `json:"room_id"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"timestamp"`
}

// RoomPayload summarizes a room without its race text.
type RoomPayload struct {
	HostID       string   `json:"host_id"`
	Participants []string `json:"participants"`
	Status       string   `json:"status"`
	TextLength   int      `json:"text_length,omitempty"`
}
