package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/zippy/go/internal/models"
	"github.com/mcdev12/zippy/go/internal/race/events"
	"github.com/mcdev12/zippy/go/internal/race/reconcile"
)

var (
	// ErrServer wraps error events sent by the gateway.
	ErrServer = errors.New("server error")
	// ErrNotInRoom is returned for room intents before a room was created or joined.
	ErrNotInRoom = errors.New("not in a room")
	// ErrClosed is returned once the connection is gone.
	ErrClosed = errors.New("connection closed")
)

// Config controls how the client talks to the gateway.
type Config struct {
	// URL is the websocket endpoint, e.g. ws://localhost:3001/ws/race.
	URL string
	// AccessToken is optional; when set the server binds the player id to
	// the verified account.
	AccessToken  string
	WriteTimeout time.Duration
	PingInterval time.Duration
	SendBuffer   int
}

// DefaultConfig returns defaults for the endpoint at rawURL.
func DefaultConfig(rawURL string) Config {
	return Config{
		URL:          rawURL,
		WriteTimeout: 10 * time.Second,
		PingInterval: 30 * time.Second,
		SendBuffer:   64,
	}
}

// RaceStarter begins a multiplayer attempt. *session.Session satisfies it.
type RaceStarter interface {
	BeginNetworked(ctx context.Context, text string) error
}

// Client is one networked racer. It sends room intents and routes inbound
// events to the display list and the bound session.
type Client struct {
	cfg    Config
	conn   *websocket.Conn
	self   models.Participant
	roster *reconcile.Reconciler

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	roomID  string
	racer   RaceStarter
	onStart func(text string)

	send      chan []byte
	errs      chan error
	joined    chan string
	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects to the gateway as self. The roster's self id is set to
// self.ID so the local player and its network record merge.
func Dial(ctx context.Context, cfg Config, self models.Participant, roster *reconcile.Reconciler) (*Client, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse gateway url: %w", err)
	}
	if cfg.AccessToken != "" {
		q := u.Query()
		q.Set("access_token", cfg.AccessToken)
		u.RawQuery = q.Encode()
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", cfg.URL, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", cfg.URL, err)
	}

	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = DefaultConfig("").SendBuffer
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultConfig("").WriteTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultConfig("").PingInterval
	}
	if self.ID != "" {
		roster.SetSelfID(self.ID)
	}

	cctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		cfg:    cfg,
		conn:   conn,
		self:   self,
		roster: roster,
		ctx:    cctx,
		cancel: cancel,
		send:   make(chan []byte, cfg.SendBuffer),
		errs:   make(chan error, 16),
		joined: make(chan string, 4),
		done:   make(chan struct{}),
	}

	go c.writeLoop()
	go c.readLoop()

	log.Info().Str("participant_id", self.ID).Str("url", cfg.URL).Msg("connected to race gateway")
	return c, nil
}

// Bind sets the session started by game-starting events.
func (c *Client) Bind(r RaceStarter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.racer = r
}

// OnGameStart registers a hook run after the bound session began a race.
func (c *Client) OnGameStart(fn func(text string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStart = fn
}

// Errors delivers server error events and local failures. Full buffer drops.
func (c *Client) Errors() <-chan error {
	return c.errs
}

// Joined delivers the room id whenever a create or join was acknowledged.
func (c *Client) Joined() <-chan string {
	return c.joined
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// RoomID returns the current room or "".
func (c *Client) RoomID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID
}

// CreateRoom asks for a new room with this player as host.
func (c *Client) CreateRoom() error {
	return c.enqueue(events.CreateRoom{Participant: c.self})
}

// JoinRoom asks to enter roomID.
func (c *Client) JoinRoom(roomID string) error {
	return c.enqueue(events.JoinRoom{RoomID: roomID, Participant: c.self})
}

// LeaveRoom leaves the current room and drops its roster locally.
func (c *Client) LeaveRoom() error {
	c.mu.Lock()
	roomID := c.roomID
	c.roomID = ""
	c.mu.Unlock()

	if roomID == "" {
		return ErrNotInRoom
	}
	c.roster.ClearRoom()
	return c.enqueue(events.LeaveRoom{RoomID: roomID})
}

// StartGame asks the server to start the current room's race with text.
func (c *Client) StartGame(text string) error {
	roomID := c.RoomID()
	if roomID == "" {
		return ErrNotInRoom
	}
	return c.enqueue(events.StartGame{RoomID: roomID, Text: text})
}

// ReportProgress relays the local player's progress. It never blocks; a
// full buffer or missing room drops the update. Its signature matches the
// session progress hook.
func (c *Client) ReportProgress(index, errCount int) {
	roomID := c.RoomID()
	if roomID == "" {
		return
	}
	data, err := events.Encode(events.UpdateProgress{
		RoomID:   roomID,
		PlayerID: c.roster.SelfID(),
		Index:    index,
		Errors:   errCount,
	})
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	case <-c.done:
	default:
		log.Debug().Str("room_id", roomID).Msg("progress dropped, send buffer full")
	}
}

// Close leaves the connection. It is safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.done)
		deadline := time.Now().Add(time.Second)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		err = c.conn.Close()
	})
	return err
}

func (c *Client) enqueue(msg events.ClientMessage) error {
	data, err := events.Encode(msg)
	if err != nil {
		return err
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

func (c *Client) report(err error) {
	select {
	case c.errs <- err:
	default:
		log.Warn().Err(err).Msg("error dropped, nobody is listening")
	}
}

func (c *Client) setRoom(roomID string) {
	c.mu.Lock()
	c.roomID = roomID
	c.mu.Unlock()

	select {
	case c.joined <- roomID:
	default:
	}
}

func (c *Client) writeLoop() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.report(fmt.Errorf("write: %w", err))
				c.Close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}

func (c *Client) readLoop() {
	defer c.Close()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.report(fmt.Errorf("%w: %v", ErrClosed, err))
			}
			return
		}
		c.handle(raw)
	}
}

func (c *Client) handle(raw []byte) {
	msg, err := events.DecodeServer(raw)
	if err != nil {
		log.Debug().Err(err).Msg("dropping undecodable server frame")
		return
	}

	switch m := msg.(type) {
	case events.RoomCreated:
		c.setRoom(m.RoomID)
	case events.RoomJoined:
		c.setRoom(m.RoomID)
	case events.RoomUpdate:
		c.roster.ApplyRoomUpdate(m)
	case events.PlayerProgress:
		c.roster.ApplyProgress(m)
	case events.GameStarting:
		c.gameStarting(m.Text)
	case events.Error:
		c.report(fmt.Errorf("%w: %s", ErrServer, m.Message))
	}
}

func (c *Client) gameStarting(text string) {
	c.mu.Lock()
	racer, onStart := c.racer, c.onStart
	c.mu.Unlock()

	if racer != nil {
		if err := racer.BeginNetworked(c.ctx, text); err != nil {
			c.report(fmt.Errorf("begin race: %w", err))
			return
		}
	}
	if onStart != nil {
		onStart(text)
	}
}
