package reconcile

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/zippy/go/internal/models"
	"github.com/mcdev12/zippy/go/internal/race/events"
)

const (
	unknownOpponentName   = "Opponent"
	unknownOpponentAvatar = "👤"
)

// Reconciler owns a client's display list and rebuilds it whenever one of
// its sources changes. It never returns errors; bad input is dropped.
type Reconciler struct {
	mu sync.Mutex

	selfID string
	hostID string
	local  *models.Participant
	ghost  *models.Participant
	bots   []models.Participant
	roster []models.Participant

	list []models.Participant
}

// New creates a reconciler for the given effective self id.
func New(selfID string) *Reconciler {
	return &Reconciler{selfID: selfID}
}

// SetSelfID changes the effective id, for example after signing in.
func (r *Reconciler) SetSelfID(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selfID = id
	r.rebuild()
}

// SelfID returns the effective id of the local player.
func (r *Reconciler) SelfID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selfID
}

// SetLocal replaces the local player's record.
func (r *Reconciler) SetLocal(p models.Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.local = &p
	r.rebuild()
}

// SetLocalProgress updates the local player's index and error count.
func (r *Reconciler) SetLocalProgress(index, errCount int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.local == nil {
		return
	}
	r.local.Index = index
	r.local.Errors = errCount
	r.rebuild()
}

// SetGhost installs the ghost, or removes it when g is nil.
func (r *Reconciler) SetGhost(g *models.Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g == nil {
		r.ghost = nil
	} else {
		ghost := *g
		r.ghost = &ghost
	}
	r.rebuild()
}

// SetBots replaces the locally simulated opponents.
func (r *Reconciler) SetBots(bots []models.Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bots = append([]models.Participant(nil), bots...)
	r.rebuild()
}

// UpdateSimulated hands the ghost and bots to fn and stores what it returns,
// matched back by id. Used by the simulator on every tick.
func (r *Reconciler) UpdateSimulated(fn func([]models.Participant) []models.Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var simulated []models.Participant
	if r.ghost != nil {
		simulated = append(simulated, *r.ghost)
	}
	simulated = append(simulated, r.bots...)
	if len(simulated) == 0 {
		return
	}

	for _, p := range fn(simulated) {
		if r.ghost != nil && p.ID == r.ghost.ID {
			ghost := p
			r.ghost = &ghost
			continue
		}
		for i := range r.bots {
			if r.bots[i].ID == p.ID {
				r.bots[i] = p
				break
			}
		}
	}
	r.rebuild()
}

// ApplyRoomUpdate folds a server roster in. A roster without any usable
// entry leaves the previous list in place. Progress already known for a
// participant survives the roster swap.
func (r *Reconciler) ApplyRoomUpdate(u events.RoomUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roster := make([]models.Participant, 0, len(u.Participants))
	for _, p := range u.Participants {
		if p.ID == "" {
			continue
		}
		p.IsBot = false
		p.IsGhost = false
		roster = append(roster, p)
	}
	if len(roster) == 0 {
		log.Debug().
			Str("room_id", u.RoomID).
			Int("raw_participants", len(u.Participants)).
			Msg("ignoring room update without usable participants")
		return
	}

	for i := range roster {
		for _, prev := range r.roster {
			if prev.ID == roster[i].ID {
				if prev.Index > roster[i].Index {
					roster[i].Index = prev.Index
				}
				if prev.Errors > roster[i].Errors {
					roster[i].Errors = prev.Errors
				}
				break
			}
		}
	}

	r.roster = roster
	if u.HostID != "" {
		r.hostID = u.HostID
	}
	r.rebuild()
}

// ApplyProgress folds a relayed progress tuple in. Progress for the local
// player is ignored since local state is authoritative for it.
func (r *Reconciler) ApplyProgress(p events.PlayerProgress) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.PlayerID == "" || p.PlayerID == r.selfID {
		return
	}
	for i := range r.roster {
		if r.roster[i].ID == p.PlayerID {
			r.roster[i].Index = p.Index
			r.roster[i].Errors = p.Errors
			r.rebuild()
			return
		}
	}
	r.roster = append(r.roster, models.Participant{
		ID:     p.PlayerID,
		Name:   unknownOpponentName,
		Avatar: unknownOpponentAvatar,
		Index:  p.Index,
		Errors: p.Errors,
	})
	r.rebuild()
}

// ResetProgress zeroes every index and error count, keeping membership.
func (r *Reconciler) ResetProgress() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.local != nil {
		r.local.Index, r.local.Errors = 0, 0
	}
	if r.ghost != nil {
		r.ghost.Index, r.ghost.Errors = 0, 0
	}
	for i := range r.bots {
		r.bots[i].Index, r.bots[i].Errors = 0, 0
	}
	for i := range r.roster {
		r.roster[i].Index, r.roster[i].Errors = 0, 0
	}
	r.rebuild()
}

// ClearRoom forgets the server roster, for example after leaving a room.
func (r *Reconciler) ClearRoom() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roster = nil
	r.hostID = ""
	r.rebuild()
}

// HostID is the host named by the last room update.
func (r *Reconciler) HostID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hostID
}

// List returns a copy of the current display list.
func (r *Reconciler) List() []models.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Participant, len(r.list))
	copy(out, r.list)
	return out
}

// rebuild recomputes the list. Caller holds r.mu.
func (r *Reconciler) rebuild() {
	r.list = Merge(Inputs{
		SelfID: r.selfID,
		Local:  r.local,
		Ghost:  r.ghost,
		Bots:   r.bots,
		Roster: r.roster,
	})
}
