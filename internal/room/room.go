// Package room models a joinable game slot: its host, ordered member list,
// and the two opaque strings (description, info) the client round-trips
// through the lobby without the server ever validating their structure.
package room

// Room is keyed in the lobby's registry by its current host's client ID.
// HostID is set at creation and not reassigned: when the host leaves, the
// lobby deletes the room, and after a host migration the new host registers
// a fresh one. Description is immutable once created. Members holds every player currently in the
// room, host included, in an order that matters: new joiners append, and a
// departing host's successor is whichever member is last in the slice.
type Room struct {
	HostID      uint32
	Description string // immutable: "name"\t"password"\t[0|h]BUILD
	Info        string // mutable: status|humans|ais|closed|_|_, unvalidated
	Magic       uint32 // opaque value from 0x19c's creation request, echoed back verbatim
	Members     []uint32
	Hidden      bool // set when the game starts; suppresses the room from 0x19b listings
}

// New creates an empty room keyed by hostID. The host is not added as a
// member automatically, the caller joins it exactly the way any member
// joins, via AddMember, so a single code path establishes the Player <->
// Room link for hosts and guests alike.
func New(hostID uint32, description string) *Room {
	return &Room{
		HostID:      hostID,
		Description: description,
		Info:        "0",
	}
}

// AddMember appends id to the member list. New joiners always go to the
// end, the ordering is what makes host migration's "last entry becomes
// host" rule well-defined.
func (r *Room) AddMember(id uint32) {
	r.Members = append(r.Members, id)
}

// RemoveMember deletes id from the member list, preserving the order of
// the rest.
func (r *Room) RemoveMember(id uint32) {
	out := r.Members[:0]
	for _, m := range r.Members {
		if m != id {
			out = append(out, m)
		}
	}
	r.Members = out
}

// LastMember returns the last entry in the member list, the designated
// successor when the current host leaves mid-game. ok is false for an
// empty room.
func (r *Room) LastMember() (id uint32, ok bool) {
	if len(r.Members) == 0 {
		return 0, false
	}
	return r.Members[len(r.Members)-1], true
}

// ReversedMembers returns a copy of Members in reverse order, the form
// several notifications (0x19b listings, 0x1a3 game-start, 0x1a5 room
// update) require.
func (r *Room) ReversedMembers() []uint32 {
	out := make([]uint32, len(r.Members))
	for i, id := range r.Members {
		out[len(r.Members)-1-i] = id
	}
	return out
}
