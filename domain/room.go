package domain

// RoomID names a broadcast scope. Project rooms use the project id.
type RoomID string

// Set is a membership set of connections.
type Set map[ConnectionID]struct{}

// Room is created lazily on first join and dropped by the directory once empty.
type Room struct {
	ID      RoomID
	Members Set
}

func NewRoom(id RoomID) *Room {
	return &Room{ID: id, Members: make(Set)}
}

// Add reports whether the connection was not already a member.
func (r *Room) Add(id ConnectionID) bool {
	if _, ok := r.Members[id]; ok {
		return false
	}
	r.Members[id] = struct{}{}
	return true
}

// Remove reports whether the connection was a member.
func (r *Room) Remove(id ConnectionID) bool {
	if _, ok := r.Members[id]; !ok {
		return false
	}
	delete(r.Members, id)
	return true
}

func (r *Room) Has(id ConnectionID) bool {
	_, ok := r.Members[id]
	return ok
}

func (r *Room) IsEmpty() bool { return len(r.Members) == 0 }

// Snapshot returns a copy of the member set as a slice.
func (r *Room) Snapshot() []ConnectionID {
	out := make([]ConnectionID, 0, len(r.Members))
	for id := range r.Members {
		out = append(out, id)
	}
	return out
}
