package room

// Entry is a room tagged with the pool it belongs to.
type Entry struct {
	Room  Room
	State State
}

// Registry is the ordered collection of rooms known to the broker. Waiting
// and accepting rooms share one slice and are told apart by their State, so
// a channel id can never sit in both pools. Registry is not safe for
// concurrent use.
type Registry struct {
	entries []Entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Append adds room at the end. An existing entry for the same channel is
// replaced in place.
func (r *Registry) Append(room Room, state State) {
	if i := r.index(room.ChannelID); i >= 0 {
		r.entries[i].State = state
		return
	}
	r.entries = append(r.entries, Entry{Room: room, State: state})
}

// InsertSorted removes any entry for room's channel and reinserts it ordered
// by creation time, after entries created at the same instant.
func (r *Registry) InsertSorted(room Room, state State) {
	r.Remove(room.ChannelID)

	created := room.CreatedAt()
	pos := len(r.entries)
	for i, e := range r.entries {
		if e.Room.CreatedAt().After(created) {
			pos = i
			break
		}
	}

	r.entries = append(r.entries, Entry{})
	copy(r.entries[pos+1:], r.entries[pos:])
	r.entries[pos] = Entry{Room: room, State: state}
}

// Remove deletes the entry for channelID and reports whether one existed.
func (r *Registry) Remove(channelID string) bool {
	i := r.index(channelID)
	if i < 0 {
		return false
	}
	r.entries = append(r.entries[:i], r.entries[i+1:]...)
	return true
}

// Find returns the entry for channelID.
func (r *Registry) Find(channelID string) (Entry, bool) {
	i := r.index(channelID)
	if i < 0 {
		return Entry{}, false
	}
	return r.entries[i], true
}

// SetState moves the entry for channelID to state without changing its
// position.
func (r *Registry) SetState(channelID string, state State) bool {
	i := r.index(channelID)
	if i < 0 {
		return false
	}
	r.entries[i].State = state
	return true
}

// Filter returns the rooms of gameID in state, oldest first.
func (r *Registry) Filter(gameID string, state State) []Room {
	var out []Room
	for _, e := range r.entries {
		if e.Room.GameID == gameID && e.State == state {
			out = append(out, e.Room)
		}
	}
	return out
}

// ByState returns every room in state, in registry order.
func (r *Registry) ByState(state State) []Room {
	var out []Room
	for _, e := range r.entries {
		if e.State == state {
			out = append(out, e.Room)
		}
	}
	return out
}

// All returns a copy of every entry in registry order.
func (r *Registry) All() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Count returns the number of rooms in state.
func (r *Registry) Count(state State) int {
	n := 0
	for _, e := range r.entries {
		if e.State == state {
			n++
		}
	}
	return n
}

// Len returns the number of rooms in both pools.
func (r *Registry) Len() int {
	return len(r.entries)
}

func (r *Registry) index(channelID string) int {
	for i, e := range r.entries {
		if e.Room.ChannelID == channelID {
			return i
		}
	}
	return -1
}
