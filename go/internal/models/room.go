package models

// RoomStatus defines the status of a multiplayer room.
type RoomStatus string

const (
	RoomStatusWaiting RoomStatus = "WAITING"
	RoomStatusRunning RoomStatus = "RUNNING"
)

// RoomSnapshot is a read-only copy of a room handed out by the registry.
type RoomSnapshot struct {
	ID           string        `json:"id"`
	HostID       string        `json:"hostId"`
	Participants []Participant `json:"participants"`
	RaceText     string        `json:"text"`
	Status       RoomStatus    `json:"status"`
}

// HasParticipant reports whether id is on the roster.
func (s RoomSnapshot) HasParticipant(id string) bool {
	for _, p := range s.Participants {
		if p.ID == id {
			return true
		}
	}
	return false
}
