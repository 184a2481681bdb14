package analytics

import (
	"encoding/json"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/zippy/go/internal/models"
)

// Observer turns registry lifecycle callbacks into queued events.
type Observer struct {
	worker *Worker
	clock  clockwork.Clock
}

func NewObserver(worker *Worker, clock clockwork.Clock) *Observer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Observer{worker: worker, clock: clock}
}

func (o *Observer) RoomCreated(snapshot models.RoomSnapshot) {
	o.emit(EventRoomCreated, snapshot.ID, roomPayload(snapshot))
}

func (o *Observer) RoomClosed(roomID string) {
	o.emit(EventRoomClosed, roomID, nil)
}

func (o *Observer) RaceStarted(snapshot models.RoomSnapshot) {
	o.emit(EventRaceStarted, snapshot.ID, roomPayload(snapshot))
}

func (o *Observer) emit(t EventType, roomID string, payload *RoomPayload) {
	event := Event{
		ID:        uuid.New(),
		Type:      t,
		RoomID:    roomID,
		CreatedAt: o.clock.Now().UTC(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err == nil {
			event.Payload = data
		}
	}
	o.worker.Enqueue(event)
}

func roomPayload(s models.RoomSnapshot) *RoomPayload {
	ids := make([]string, 0, len(s.Participants))
	for _, p := range s.Participants {
		ids = append(ids, p.ID)
	}
	return &RoomPayload{
		HostID:       s.HostID,
		Participants: ids,
		Status:       string(s.Status),
		TextLength:   utf8.RuneCountInString(s.RaceText),
	}
}
