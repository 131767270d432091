package runtime

import (
	"collab-live/domain"
	"slices"
	"sync"
)

// RoomDirectory maps rooms to the connections watching them.
// A reverse index keeps Purge proportional to the rooms a connection joined.
type RoomDirectory struct {
	mu     sync.RWMutex
	rooms  map[domain.RoomID]*domain.Room
	joined map[domain.ConnectionID]map[domain.RoomID]struct{}
}

func NewRoomDirectory() *RoomDirectory {
	return &RoomDirectory{
		rooms:  make(map[domain.RoomID]*domain.Room),
		joined: make(map[domain.ConnectionID]map[domain.RoomID]struct{}),
	}
}

// Join adds the connection to the room, creating the room on the fly.
// Joining twice is the same as joining once; the result reports a change.
func (d *RoomDirectory) Join(roomID domain.RoomID, connID domain.ConnectionID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	room, ok := d.rooms[roomID]
	if !ok {
		room = domain.NewRoom(roomID)
		d.rooms[roomID] = room
	}
	if !room.Add(connID) {
		return false
	}

	if _, ok := d.joined[connID]; !ok {
		d.joined[connID] = make(map[domain.RoomID]struct{})
	}
	d.joined[connID][roomID] = struct{}{}
	return true
}

// Leave is a no-op for a room the connection is not in.
func (d *RoomDirectory) Leave(roomID domain.RoomID, connID domain.ConnectionID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.leave(roomID, connID)
}

func (d *RoomDirectory) leave(roomID domain.RoomID, connID domain.ConnectionID) bool {
	room, ok := d.rooms[roomID]
	if !ok || !room.Remove(connID) {
		return false
	}
	// If no one is left in the room, remove the room entry entirely
	if room.IsEmpty() {
		delete(d.rooms, roomID)
	}
	if rooms, ok := d.joined[connID]; ok {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(d.joined, connID)
		}
	}
	return true
}

// MembersOf returns a sorted copy of the room's member set.
// An unknown room has no members.
func (d *RoomDirectory) MembersOf(roomID domain.RoomID) []domain.ConnectionID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	room, ok := d.rooms[roomID]
	if !ok {
		return nil
	}
	members := room.Snapshot()
	slices.Sort(members)
	return members
}

// Purge removes the connection from every room and returns the rooms it left.
// After Purge no room contains the connection.
func (d *RoomDirectory) Purge(connID domain.ConnectionID) []domain.RoomID {
	d.mu.Lock()
	defer d.mu.Unlock()

	rooms := d.roomsOf(connID)
	for _, roomID := range rooms {
		d.leave(roomID, connID)
	}
	return rooms
}

func (d *RoomDirectory) RoomsOf(connID domain.ConnectionID) []domain.RoomID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.roomsOf(connID)
}

func (d *RoomDirectory) roomsOf(connID domain.ConnectionID) []domain.RoomID {
	rooms := make([]domain.RoomID, 0, len(d.joined[connID]))
	for roomID := range d.joined[connID] {
		rooms = append(rooms, roomID)
	}
	slices.Sort(rooms)
	return rooms
}

// Len returns the number of non-empty rooms.
func (d *RoomDirectory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms)
}
