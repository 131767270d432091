package client

import (
	"collab-live/domain"
	"collab-live/domain/event"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Client is a websocket peer of the live layer. Room events feed one
// Reconciler per room; presence and direct messages feed the lobby.
type Client struct {
	log  *slog.Logger
	conn *websocket.Conn

	mu       sync.Mutex
	state    domain.ConnState
	joined   map[domain.RoomID]struct{}
	views    map[domain.RoomID]*Reconciler
	lobby    *Reconciler
	received map[event.Type]int
	errors   []string

	closeOnce sync.Once
}

// Endpoint builds the websocket address for an identity. An empty userID
// connects anonymously.
func Endpoint(base, userID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	if userID != "" {
		q := u.Query()
		q.Set("userId", userID)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func Dial(ctx context.Context, endpoint string, log *slog.Logger) (*Client, error) {
	c := &Client{
		log:      log,
		state:    domain.Disconnected,
		joined:   make(map[domain.RoomID]struct{}),
		views:    make(map[domain.RoomID]*Reconciler),
		lobby:    NewReconciler(),
		received: make(map[event.Type]int),
	}
	c.transition(domain.Connecting)

	conn, _, err := websocket.Dial(ctx, endpoint, nil)
	if err != nil {
		c.transition(domain.Disconnected)
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	c.conn = conn
	c.transition(domain.Connected)
	return c, nil
}

func (c *Client) Join(ctx context.Context, room domain.RoomID) error {
	return wsjson.Write(ctx, c.conn, domain.Command{Type: domain.JoinCommand, Room: room})
}

func (c *Client) Leave(ctx context.Context, room domain.RoomID) error {
	return wsjson.Write(ctx, c.conn, domain.Command{Type: domain.LeaveCommand, Room: room})
}

// Send writes a raw frame. Used to check how the server treats commands it
// does not know.
func (c *Client) Send(ctx context.Context, frame any) error {
	return wsjson.Write(ctx, c.conn, frame)
}

// Run reads frames until the connection ends. A normal closure returns nil.
func (c *Client) Run(ctx context.Context) error {
	defer c.Close()
	for {
		var env event.Envelope
		if err := wsjson.Read(ctx, c.conn, &env); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure || stderrors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		c.handle(env)
	}
}

func (c *Client) handle(env event.Envelope) {
	c.mu.Lock()
	c.received[env.Type]++
	c.mu.Unlock()

	switch env.Type {
	case event.JoinedType, event.LeftType:
		var ack event.RoomAck
		if err := env.Decode(&ack); err != nil {
			c.log.Warn("Malformed acknowledgement", "error", err)
			return
		}
		c.acknowledge(env.Type, ack.Room)
		return
	case event.ErrorType:
		var payload event.ErrorPayload
		_ = env.Decode(&payload)
		c.mu.Lock()
		c.errors = append(c.errors, payload.Message)
		c.mu.Unlock()
		c.log.Debug("Server rejected a frame", "message", payload.Message)
		return
	}

	target := c.lobby
	if env.Scope.Kind == event.RoomScope && env.Type.IsRoomEvent() {
		target = c.View(env.Scope.Room)
	}
	if known, err := target.Apply(env); err != nil {
		c.log.Warn("Event not applied", "type", env.Type, "error", err)
	} else if !known {
		c.log.Debug("Ignoring unknown event", "type", env.Type)
	}
}

func (c *Client) acknowledge(t event.Type, room domain.RoomID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t == event.JoinedType {
		c.joined[room] = struct{}{}
	} else {
		delete(c.joined, room)
	}
	next := domain.JoinedRooms
	if len(c.joined) == 0 {
		next = domain.Connected
	}
	if state, err := c.state.Next(next); err == nil {
		c.state = state
	}
}

func (c *Client) transition(to domain.ConnState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, err := c.state.Next(to)
	if err != nil {
		c.log.Warn("Ignoring state change", "error", err)
		return
	}
	c.state = state
}

// View returns the reconciler of a room, creating it on first use.
func (c *Client) View(room domain.RoomID) *Reconciler {
	c.mu.Lock()
	defer c.mu.Unlock()
	view, ok := c.views[room]
	if !ok {
		view = NewReconciler()
		c.views[room] = view
	}
	return view
}

func (c *Client) Presence() []domain.IdentityID { return c.lobby.Presence() }

func (c *Client) DirectMessages() []domain.DirectMessage { return c.lobby.DirectMessages() }

func (c *Client) Joined(room domain.RoomID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.joined[room]
	return ok
}

// Received counts the frames of a type seen so far.
func (c *Client) Received(t event.Type) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.received[t]
}

func (c *Client) Errors() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.errors...)
}

func (c *Client) State() domain.ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close is safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.transition(domain.Disconnected)
		if c.conn != nil {
			_ = c.conn.Close(websocket.StatusNormalClosure, "bye")
		}
	})
}
