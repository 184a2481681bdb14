package reconcile

import "github.com/mcdev12/zippy/go/internal/models"

// Inputs is everything one merge pass looks at.
type Inputs struct {
	// SelfID is the signed in user id, or the connection's guest id.
	SelfID string
	// Local is this client's own live record, if it has one yet.
	Local *models.Participant
	// Ghost is the personal-best replay, present only when a PB exists.
	Ghost *models.Participant
	// Bots are locally simulated opponents.
	Bots []models.Participant
	// Roster is the last room-update roster from the server.
	Roster []models.Participant
}

// Merge builds the display list: the local player, then the ghost, then
// local bots, then every roster entry not already listed. The first record
// for an id wins, so the local player's own networked copy never shows twice.
func Merge(in Inputs) []models.Participant {
	size := len(in.Bots) + len(in.Roster) + 2
	out := make([]models.Participant, 0, size)
	seen := make(map[string]struct{}, size)

	add := func(p models.Participant) {
		if p.ID == "" {
			return
		}
		if _, dup := seen[p.ID]; dup {
			return
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}

	if in.Local != nil {
		local := *in.Local
		if in.SelfID != "" {
			local.ID = in.SelfID
		}
		add(local)
	}
	if in.Ghost != nil {
		add(*in.Ghost)
	}
	for _, b := range in.Bots {
		add(b)
	}
	for _, p := range in.Roster {
		add(p)
	}
	return out
}
