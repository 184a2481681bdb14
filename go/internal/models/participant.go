package models

// Participant is one racer as seen by a room roster or a client's display list.
// Bots and ghosts only ever exist in a client's local view.
type Participant struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Avatar  string `json:"avatar"`
	Index   int    `json:"index"`
	Errors  int    `json:"errors"`
	IsBot   bool   `json:"isBot"`
	IsGhost bool   `json:"isGhost,omitempty"`
}

// Networked reports whether the participant is a real peer rather than a
// locally simulated entity.
func (p Participant) Networked() bool {
	return !p.IsBot && !p.IsGhost
}

// GuestID builds the connection-scoped identifier used for unauthenticated racers.
func GuestID(connectionID string) string {
	return "guest-" + connectionID
}
