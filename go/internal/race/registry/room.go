package registry

import (
	"sync"

	"github.com/mcdev12/zippy/go/internal/models"
	"github.com/mcdev12/zippy/go/internal/race/events"
)

// ConnID identifies one transport connection.
type ConnID string

// Room is the server side aggregate for one race room. All fields are guarded
// by mu and only the Registry touches them.
type Room struct {
	id           string
	hostID       string
	participants []models.Participant
	// owners binds each participant id to the connection that registered it
	owners map[string]ConnID
	text   string
	status models.RoomStatus
	// closed is set once the roster empties; a closed room is never reused
	closed bool

	mu sync.Mutex
}

func newRoom(id string, conn ConnID, creator models.Participant) *Room {
	return &Room{
		id:           id,
		hostID:       creator.ID,
		participants: []models.Participant{creator},
		owners:       map[string]ConnID{creator.ID: conn},
		status:       models.RoomStatusWaiting,
	}
}

func (r *Room) snapshot() models.RoomSnapshot {
	participants := make([]models.Participant, len(r.participants))
	copy(participants, r.participants)
	return models.RoomSnapshot{
		ID:           r.id,
		HostID:       r.hostID,
		Participants: participants,
		RaceText:     r.text,
		Status:       r.status,
	}
}

func (r *Room) update() events.RoomUpdate {
	snap := r.snapshot()
	return events.RoomUpdate{
		RoomID:       snap.ID,
		HostID:       snap.HostID,
		Participants: snap.Participants,
	}
}

// upsert replaces the participant with the same id in place or appends it.
// It returns the connection that previously owned the id, if any.
func (r *Room) upsert(conn ConnID, p models.Participant) (ConnID, bool) {
	prev, had := r.owners[p.ID]
	r.owners[p.ID] = conn
	for i := range r.participants {
		if r.participants[i].ID == p.ID {
			r.participants[i] = p
			return prev, had
		}
	}
	r.participants = append(r.participants, p)
	return prev, had
}

// removeConn drops every participant bound to conn and reports how many went.
func (r *Room) removeConn(conn ConnID) int {
	kept := r.participants[:0]
	removed := 0
	for _, p := range r.participants {
		if r.owners[p.ID] == conn {
			delete(r.owners, p.ID)
			removed++
			continue
		}
		kept = append(kept, p)
	}
	// clear the tail so dropped records are not retained by the backing array
	for i := len(kept); i < len(r.participants); i++ {
		r.participants[i] = models.Participant{}
	}
	r.participants = kept
	return removed
}

func (r *Room) hasConn(conn ConnID) bool {
	for _, owner := range r.owners {
		if owner == conn {
			return true
		}
	}
	return false
}

func (r *Room) hasParticipant(id string) bool {
	for _, p := range r.participants {
		if p.ID == id {
			return true
		}
	}
	return false
}

// members lists the distinct connections in roster order, skipping except.
func (r *Room) members(except ConnID) []ConnID {
	seen := make(map[ConnID]struct{}, len(r.participants))
	conns := make([]ConnID, 0, len(r.participants))
	for _, p := range r.participants {
		conn := r.owners[p.ID]
		if conn == except {
			continue
		}
		if _, ok := seen[conn]; ok {
			continue
		}
		seen[conn] = struct{}{}
		conns = append(conns, conn)
	}
	return conns
}
