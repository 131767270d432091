package websocket

import (
	"collab-live/contract"
	"collab-live/domain"
	"collab-live/domain/event"
	"collab-live/errors"
	"collab-live/sink"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// session is one live connection. Its reader handles commands, its writer
// drains the sink; whichever stops first tears the session down.
type session struct {
	log          *slog.Logger
	hub          contract.IHub
	conn         *websocket.Conn
	info         domain.Connection
	sink         *sink.ConnectionSink
	writeTimeout time.Duration

	cancel   context.CancelFunc
	teardown sync.Once
}

func newSession(log *slog.Logger, hub contract.IHub, conn *websocket.Conn, info domain.Connection,
	bufferSize int, writeTimeout time.Duration) *session {
	return &session{
		log:          log,
		hub:          hub,
		conn:         conn,
		info:         info,
		sink:         sink.NewConnectionSink(info.ID, bufferSize),
		writeTimeout: writeTimeout,
	}
}

func (s *session) serve(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	defer s.close("read loop ended", websocket.StatusNormalClosure)

	s.hub.Connect(s.info, s.sink)
	go s.writeLoop(ctx)
	s.readLoop(ctx)
}

func (s *session) readLoop(ctx context.Context) {
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			s.log.Debug("Websocket read ended", "error", err)
			return
		}

		var cmd domain.Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			s.reply(event.ErrorType, event.ErrorPayload{Message: errors.ErrInvalidPayload.Error()})
			continue
		}
		s.handle(cmd)
	}
}

func (s *session) handle(cmd domain.Command) {
	if !cmd.IsKnown() {
		s.log.Debug("Rejected client command", "type", cmd.Type)
		s.reply(event.ErrorType, event.ErrorPayload{
			Message: fmt.Sprintf("%s: %q", errors.ErrUnknownCommand, cmd.Type),
		})
		return
	}

	room := cmd.RoomID()
	ack := event.JoinedType
	apply := s.hub.Join
	if cmd.Type == domain.LeaveCommand {
		ack, apply = event.LeftType, s.hub.Leave
	}
	if err := apply(s.info.ID, room); err != nil {
		s.reply(event.ErrorType, event.ErrorPayload{Message: err.Error()})
		return
	}
	s.reply(ack, event.RoomAck{Room: room})
}

// reply goes through the sink so acknowledgements keep their order
// relative to routed events.
func (s *session) reply(t event.Type, payload any) {
	if err := s.sink.Consume(context.Background(), event.New(t, event.ToConnection(), payload)); err != nil {
		s.log.Debug("Reply dropped", "type", t, "error", err)
	}
}

func (s *session) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.sink.Done():
			return
		case evt := <-s.sink.Outbound:
			if err := s.write(ctx, evt); err != nil {
				s.log.Debug("Websocket write failed", "type", evt.Type, "error", err)
				s.close("write failed", websocket.StatusGoingAway)
				return
			}
		}
	}
}

func (s *session) write(ctx context.Context, evt event.DomainEvent) error {
	ctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, s.conn, evt)
}

// close funnels every end of the session into a single teardown.
func (s *session) close(reason string, status websocket.StatusCode) {
	s.teardown.Do(func() {
		s.cancel()
		s.hub.Disconnect(s.info.ID)
		s.sink.Close()
		_ = s.conn.Close(status, reason)
		s.log.Info("Session closed", "reason", reason)
	})
}
