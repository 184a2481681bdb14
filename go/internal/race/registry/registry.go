package registry

import (
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/zippy/go/internal/models"
	"github.com/mcdev12/zippy/go/internal/race/events"
)

// Broadcaster delivers server events to a single connection. The registry
// calls Send while holding the target room's lock, so implementations must
// queue in call order and must not call back into the registry.
type Broadcaster interface {
	Send(conn ConnID, msg events.ServerMessage)
}

// Stats summarises what the registry currently holds.
type Stats struct {
	Rooms        int `json:"rooms"`
	Participants int `json:"participants"`
	Running      int `json:"running"`
}

// Registry is the single writer for every live room.
//
// Lock order is Registry.mu before Room.mu before Registry.connMu.
type Registry struct {
	rooms map[string]*Room
	mu    sync.RWMutex

	// rooms each connection currently owns at least one participant in
	connRooms map[ConnID]map[string]struct{}
	connMu    sync.Mutex

	broadcaster Broadcaster
	observer    Observer
	ids         IDGenerator
	policy      Policy
}

// Option configures a Registry.
type Option func(*Registry)

// WithPolicy sets the authorization policy. The default is PolicyPermissive.
func WithPolicy(p Policy) Option {
	return func(r *Registry) { r.policy = p }
}

// WithObserver registers lifecycle hooks.
func WithObserver(o Observer) Option {
	return func(r *Registry) {
		if o != nil {
			r.observer = o
		}
	}
}

// WithIDGenerator replaces the random room code generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(r *Registry) {
		if g != nil {
			r.ids = g
		}
	}
}

// New creates an empty registry that sends its events through bc.
func New(bc Broadcaster, opts ...Option) *Registry {
	r := &Registry{
		rooms:       make(map[string]*Room),
		connRooms:   make(map[ConnID]map[string]struct{}),
		broadcaster: bc,
		observer:    noopObserver{},
		ids:         RandomIDGenerator{},
		policy:      PolicyPermissive,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the authorization policy in force.
func (r *Registry) Policy() Policy {
	return r.policy
}

// CreateRoom opens a room with p as its only member and host.
func (r *Registry) CreateRoom(conn ConnID, p models.Participant) string {
	r.mu.Lock()
	id := r.ids.Generate()
	for {
		if _, taken := r.rooms[id]; !taken {
			break
		}
		id = r.ids.Generate()
	}
	room := newRoom(id, conn, p)
	r.rooms[id] = room
	room.mu.Lock()
	r.mu.Unlock()

	r.bind(conn, id)
	r.broadcaster.Send(conn, events.RoomCreated{RoomID: id})
	r.broadcast(room, room.update(), "")
	r.observer.RoomCreated(room.snapshot())
	room.mu.Unlock()

	log.Info().
		Str("room_id", id).
		Str("connection_id", string(conn)).
		Str("participant_id", p.ID).
		Msg("room created")
	return id
}

// JoinRoom adds p to the room, replacing any participant with the same id.
// A missing room is reported to the caller only.
func (r *Registry) JoinRoom(conn ConnID, roomID string, p models.Participant) error {
	roomID = NormalizeRoomID(roomID)
	room, err := r.lockRoom(roomID)
	if err != nil {
		r.reject(conn, err)
		return err
	}
	defer room.mu.Unlock()

	prev, replaced := room.upsert(conn, p)
	if replaced && prev != conn && !room.hasConn(prev) {
		// the id moved to a new connection; the old one no longer receives this room
		r.unbind(prev, roomID)
	}
	r.bind(conn, roomID)

	r.broadcaster.Send(conn, events.RoomJoined{RoomID: roomID})
	r.broadcast(room, room.update(), "")

	log.Info().
		Str("room_id", roomID).
		Str("connection_id", string(conn)).
		Str("participant_id", p.ID).
		Bool("rejoin", replaced).
		Int("participants", len(room.participants)).
		Msg("participant joined room")
	return nil
}

// LeaveRoom removes every participant conn registered in the room.
func (r *Registry) LeaveRoom(conn ConnID, roomID string) {
	roomID = NormalizeRoomID(roomID)
	r.mu.RLock()
	room, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return
	}
	r.leave(conn, room)
}

// Disconnect leaves every room the connection belongs to.
func (r *Registry) Disconnect(conn ConnID) {
	r.connMu.Lock()
	roomIDs := make([]string, 0, len(r.connRooms[conn]))
	for id := range r.connRooms[conn] {
		roomIDs = append(roomIDs, id)
	}
	r.connMu.Unlock()

	for _, id := range roomIDs {
		r.LeaveRoom(conn, id)
	}

	log.Debug().
		Str("connection_id", string(conn)).
		Int("rooms", len(roomIDs)).
		Msg("connection disconnected from registry")
}

// StartRace stores the race text, marks the room running and tells every
// member the race is starting.
func (r *Registry) StartRace(conn ConnID, roomID, text string) error {
	roomID = NormalizeRoomID(roomID)
	room, err := r.lockRoom(roomID)
	if err != nil {
		r.reject(conn, err)
		return err
	}

	if text == "" {
		room.mu.Unlock()
		r.reject(conn, ErrEmptyText)
		return ErrEmptyText
	}
	if r.policy == PolicyStrict && room.owners[room.hostID] != conn {
		room.mu.Unlock()
		r.reject(conn, ErrNotHost)
		return ErrNotHost
	}

	room.text = text
	room.status = models.RoomStatusRunning
	r.broadcast(room, events.GameStarting{Text: text}, "")
	snap := room.snapshot()
	r.observer.RaceStarted(snap)
	room.mu.Unlock()

	log.Info().
		Str("room_id", roomID).
		Str("connection_id", string(conn)).
		Int("text_length", len([]rune(text))).
		Int("participants", len(snap.Participants)).
		Msg("race started")
	return nil
}

// RecordProgress relays a progress tuple to every other member of the room.
// Nothing is stored and failures are never reported to the sender.
func (r *Registry) RecordProgress(conn ConnID, roomID, playerID string, index, errCount int) error {
	roomID = NormalizeRoomID(roomID)
	room, err := r.lockRoom(roomID)
	if err != nil {
		return err
	}
	defer room.mu.Unlock()

	if r.policy == PolicyStrict && room.owners[playerID] != conn {
		return ErrNotOwner
	}

	r.broadcast(room, events.PlayerProgress{
		PlayerID: playerID,
		Index:    index,
		Errors:   errCount,
	}, conn)
	return nil
}

// Snapshot returns a copy of the room's current state.
func (r *Registry) Snapshot(roomID string) (models.RoomSnapshot, bool) {
	room, err := r.lockRoom(NormalizeRoomID(roomID))
	if err != nil {
		return models.RoomSnapshot{}, false
	}
	defer room.mu.Unlock()
	return room.snapshot(), true
}

// Stats counts rooms and participants across the registry.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	rooms := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	r.mu.RUnlock()

	var s Stats
	for _, room := range rooms {
		room.mu.Lock()
		if !room.closed {
			s.Rooms++
			s.Participants += len(room.participants)
			if room.status == models.RoomStatusRunning {
				s.Running++
			}
		}
		room.mu.Unlock()
	}
	return s
}

// NormalizeRoomID upper-cases and trims a user supplied room code.
func NormalizeRoomID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// ErrorMessage maps a registry error to the text sent in an error event.
func ErrorMessage(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return "Room not found"
	case errors.Is(err, ErrNotHost):
		return "Only the host can start the race"
	case errors.Is(err, ErrNotOwner):
		return "Cannot report progress for another player"
	case errors.Is(err, ErrEmptyText):
		return "Race text is required"
	default:
		return err.Error()
	}
}

// lockRoom returns the live room with its lock held.
func (r *Registry) lockRoom(id string) (*Room, error) {
	r.mu.RLock()
	room, ok := r.rooms[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrRoomNotFound
	}

	room.mu.Lock()
	if room.closed {
		room.mu.Unlock()
		return nil, ErrRoomNotFound
	}
	return room, nil
}

func (r *Registry) leave(conn ConnID, room *Room) {
	room.mu.Lock()
	if room.closed {
		room.mu.Unlock()
		return
	}
	if room.removeConn(conn) == 0 {
		room.mu.Unlock()
		return
	}
	r.unbind(conn, room.id)

	if len(room.participants) == 0 {
		room.closed = true
		r.observer.RoomClosed(room.id)
		room.mu.Unlock()

		r.mu.Lock()
		if r.rooms[room.id] == room {
			delete(r.rooms, room.id)
		}
		r.mu.Unlock()

		log.Info().
			Str("room_id", room.id).
			Str("connection_id", string(conn)).
			Msg("room closed")
		return
	}

	if !room.hasParticipant(room.hostID) {
		previous := room.hostID
		room.hostID = room.participants[0].ID
		log.Info().
			Str("room_id", room.id).
			Str("previous_host_id", previous).
			Str("host_id", room.hostID).
			Msg("room host migrated")
	}
	r.broadcast(room, room.update(), "")
	room.mu.Unlock()

	log.Debug().
		Str("room_id", room.id).
		Str("connection_id", string(conn)).
		Msg("connection left room")
}

// broadcast sends msg to every member connection except one. Caller holds room.mu.
func (r *Registry) broadcast(room *Room, msg events.ServerMessage, except ConnID) {
	for _, conn := range room.members(except) {
		r.broadcaster.Send(conn, msg)
	}
}

func (r *Registry) reject(conn ConnID, err error) {
	log.Debug().
		Err(err).
		Str("connection_id", string(conn)).
		Msg("registry operation rejected")
	r.broadcaster.Send(conn, events.Error{Message: ErrorMessage(err)})
}

func (r *Registry) bind(conn ConnID, roomID string) {
	r.connMu.Lock()
	defer r.connMu.Unlock()
	if r.connRooms[conn] == nil {
		r.connRooms[conn] = make(map[string]struct{})
	}
	r.connRooms[conn][roomID] = struct{}{}
}

func (r *Registry) unbind(conn ConnID, roomID string) {
	r.connMu.Lock()
	defer r.connMu.Unlock()
	rooms, ok := r.connRooms[conn]
	if !ok {
		return
	}
	delete(rooms, roomID)
	if len(rooms) == 0 {
		delete(r.connRooms, conn)
	}
}
