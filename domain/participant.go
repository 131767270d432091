// Package domain contains core concepts of the collaboration system.
// This file defines Connection entities, identities and their lifecycle.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"fmt"
	"time"
)

// ConnectionID identifies one live transport session.
type ConnectionID string

// IdentityID is the logical user behind a connection.
// The zero value means the connection presented no valid identity.
type IdentityID string

func (i IdentityID) IsAnonymous() bool { return i == "" }

// Connection is owned by the registry from transport open to transport close.
type Connection struct {
	ID          ConnectionID
	Identity    IdentityID
	ConnectedAt time.Time
}

// ConnState follows Disconnected -> Connecting -> Connected -> JoinedRooms -> Disconnected.
type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Connected
	JoinedRooms
)

func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "DISCONNECTED"
	case Connecting:
		return "CONNECTING"
	case Connected:
		return "CONNECTED"
	case JoinedRooms:
		return "JOINED_ROOMS"
	default:
		return "UNKNOWN"
	}
}

// Next returns the state reached after a transition, or an error when the
// transition is not allowed. Any state may collapse to Disconnected.
func (s ConnState) Next(to ConnState) (ConnState, error) {
	if to == Disconnected {
		return Disconnected, nil
	}
	switch {
	case s == Disconnected && to == Connecting,
		s == Connecting && to == Connected,
		s == Connected && to == JoinedRooms,
		s == JoinedRooms && to == JoinedRooms,
		s == JoinedRooms && to == Connected:
		return to, nil
	}
	return s, fmt.Errorf("illegal transition %s -> %s", s, to)
}
