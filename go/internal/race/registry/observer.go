package registry

import "github.com/mcdev12/zippy/go/internal/models"

// Observer is told about room lifecycle edges. Calls happen while the room
// lock is held, so events for one room arrive in lifecycle order.
// Implementations must not block or call back into the registry.
type Observer interface {
	RoomCreated(snapshot models.RoomSnapshot)
	RoomClosed(roomID string)
	RaceStarted(snapshot models.RoomSnapshot)
}

type noopObserver struct{}

func (noopObserver) RoomCreated(models.RoomSnapshot) {}
func (noopObserver) RoomClosed(string)               {}
func (noopObserver) RaceStarted(models.RoomSnapshot) {}
