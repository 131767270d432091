package domain

import "strings"

type CommandType string

const (
	JoinCommand  CommandType = "join"
	LeaveCommand CommandType = "leave"
)

// Command is the only thing a client may send over the real-time channel.
// Resource changes never travel this way, they go through the REST surface.
type Command struct {
	Type CommandType `json:"type"`
	Room RoomID      `json:"room"`
}

func (c Command) RoomID() RoomID {
	return RoomID(strings.TrimSpace(string(c.Room)))
}

func (c Command) IsKnown() bool {
	return c.Type == JoinCommand || c.Type == LeaveCommand
}
