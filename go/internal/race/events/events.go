package events

import (
	"encoding/json"
	"fmt"

	"github.com/mcdev12/zippy/go/internal/models"
)

// EventType names a realtime event on the wire
type EventType string

const (
	// client -> server
	EventTypeCreateRoom     EventType = "create-room"
	EventTypeJoinRoom       EventType = "join-room"
	EventTypeStartGame      EventType = "start-game"
	EventTypeUpdateProgress EventType = "update-progress"
	EventTypeLeaveRoom      EventType = "leave-room"

	// server -> client
	EventTypeRoomCreated    EventType = "room-created"
	EventTypeRoomJoined     EventType = "room-joined"
	EventTypeRoomUpdate     EventType = "room-update"
	EventTypeError          EventType = "error"
	EventTypeGameStarting   EventType = "game-starting"
	EventTypePlayerProgress EventType = "player-progress"
)

// Envelope is the frame every event travels in
type Envelope struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ClientMessage is implemented by every event a client may send.
// The unexported method keeps the set closed to this package.
type ClientMessage interface {
	Type() EventType
	clientMessage()
}

// ServerMessage is implemented by every event the server may send.
type ServerMessage interface {
	Type() EventType
	serverMessage()
}

// CreateRoom asks the server for a new room with the sender as host
type CreateRoom struct {
	Participant models.Participant `json:"player"`
}

// JoinRoom asks to enter an existing room
type JoinRoom struct {
	RoomID      string             `json:"roomId"`
	Participant models.Participant `json:"player"`
}

// StartGame asks the server to start the race with the given text
type StartGame struct {
	RoomID string `json:"roomId"`
	Text   string `json:"text"`
}

// UpdateProgress reports the sender's progress for relay to peers
type UpdateProgress struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
	Index    int    `json:"index"`
	Errors   int    `json:"errors"`
}

// LeaveRoom is an explicit leave
type LeaveRoom struct {
	RoomID string `json:"roomId"`
}

// RoomCreated acknowledges CreateRoom to its sender
type RoomCreated struct {
	RoomID string `json:"roomId"`
}

// RoomJoined acknowledges JoinRoom to its sender
type RoomJoined struct {
	RoomID string `json:"roomId"`
}

// RoomUpdate is a full roster snapshot sent on every membership or host change
type RoomUpdate struct {
	RoomID       string               `json:"id"`
	HostID       string               `json:"hostId"`
	Participants []models.Participant `json:"players"`
}

// Error reports a failed operation to the caller only
type Error struct {
	Message string `json:"message"`
}

// GameStarting carries the race text to every member
type GameStarting struct {
	Text string `json:"text"`
}

// PlayerProgress is a relayed UpdateProgress
type PlayerProgress struct {
	PlayerID string `json:"playerId"`
	Index    int    `json:"index"`
	Errors   int    `json:"errors"`
}

func (CreateRoom) Type() EventType     { return EventTypeCreateRoom }
func (JoinRoom) Type() EventType       { return EventTypeJoinRoom }
func (StartGame) Type() EventType      { return EventTypeStartGame }
func (UpdateProgress) Type() EventType { return EventTypeUpdateProgress }
func (LeaveRoom) Type() EventType      { return EventTypeLeaveRoom }
func (RoomCreated) Type() EventType    { return EventTypeRoomCreated }
func (RoomJoined) Type() EventType     { return EventTypeRoomJoined }
func (RoomUpdate) Type() EventType     { return EventTypeRoomUpdate }
func (Error) Type() EventType          { return EventTypeError }
func (GameStarting) Type() EventType   { return EventTypeGameStarting }
func (PlayerProgress) Type() EventType { return EventTypePlayerProgress }

func (CreateRoom) clientMessage()     {}
func (JoinRoom) clientMessage()       {}
func (StartGame) clientMessage()      {}
func (UpdateProgress) clientMessage() {}
func (LeaveRoom) clientMessage()      {}

func (RoomCreated) serverMessage()    {}
func (RoomJoined) serverMessage()     {}
func (RoomUpdate) serverMessage()     {}
func (Error) serverMessage()          {}
func (GameStarting) serverMessage()   {}
func (PlayerProgress) serverMessage() {}

// Encode wraps a message in its envelope
func Encode(msg interface{ Type() EventType }) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msg.Type(), err)
	}
	return json.Marshal(Envelope{Type: msg.Type(), Data: data})
}

// DecodeClient parses a frame sent by a client
func DecodeClient(raw []byte) (ClientMessage, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch env.Type {
	case EventTypeCreateRoom:
		return asClient[CreateRoom](env)
	case EventTypeJoinRoom:
		return asClient[JoinRoom](env)
	case EventTypeStartGame:
		return asClient[StartGame](env)
	case EventTypeUpdateProgress:
		return asClient[UpdateProgress](env)
	case EventTypeLeaveRoom:
		return asClient[LeaveRoom](env)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Type)
	}
}

// DecodeServer parses a frame sent by the server
func DecodeServer(raw []byte) (ServerMessage, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch env.Type {
	case EventTypeRoomCreated:
		return asServer[RoomCreated](env)
	case EventTypeRoomJoined:
		return asServer[RoomJoined](env)
	case EventTypeRoomUpdate:
		return asServer[RoomUpdate](env)
	case EventTypeError:
		return asServer[Error](env)
	case EventTypeGameStarting:
		return asServer[GameStarting](env)
	case EventTypePlayerProgress:
		return asServer[PlayerProgress](env)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Type)
	}
}

func decodeAs[T any](env Envelope) (T, error) {
	var payload T
	if len(env.Data) == 0 {
		return payload, fmt.Errorf("%w: %s has no data", ErrMalformed, env.Type)
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return payload, fmt.Errorf("%w: %s: %v", ErrMalformed, env.Type, err)
	}
	return payload, nil
}

func asClient[T ClientMessage](env Envelope) (ClientMessage, error) {
	payload, err := decodeAs[T](env)
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func asServer[T ServerMessage](env Envelope) (ServerMessage, error) {
	payload, err := decodeAs[T](env)
	if err != nil {
		return nil, err
	}
	return payload, nil
}
