// Package player models the per-logged-in-client state the lobby tracks
// between a successful login (0x19a) and disconnect: identity, the two
// version strings the client reports, the free-form properties string, and
// the player's current room link.
package player

import "strings"

// Status byte values. The wire protocol packs these into a single byte
// wherever a player's state is reported to clients; the values themselves
// are client-defined and must not be renumbered.
const (
	StatusLobby      byte = 0x01 // not in any room
	StatusRoomMember byte = 0x03 // joined a room, not the host
	StatusRoomHost   byte = 0x05 // hosting a room, game not started
	StatusInGame     byte = 0x0b // in-game, not the host
	StatusInGameHost byte = 0x0f // in-game, host
)

// DefaultProps is the properties string assigned to every new player until
// they send 0x1b3 to set their own.
const DefaultProps = "pur|0|dlc|0|ram|4"

const (
	nameMinLen = 4
	nameMaxLen = 16
)

// nameCharOK reports whether r is one of the characters the client's own
// name field accepts: [a-zA-Z0-9()+\-_.\[\]].
func nameCharOK(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case strings.ContainsRune(`()+-_.[]`, r):
		return true
	}
	return false
}

// NormalizeName converts an arbitrary client-supplied nickname (taken from
// the game_key login field, see DESIGN.md) into the 4-16 character form the
// client's UI expects: disallowed characters become '_', and the result is
// right-padded with '_' up to the minimum length or truncated to the
// maximum.
func NormalizeName(raw string) string {
	runes := []rune(raw)
	for i, r := range runes {
		if !nameCharOK(r) {
			runes[i] = '_'
		}
	}
	if len(runes) > nameMaxLen {
		runes = runes[:nameMaxLen]
	}
	for len(runes) < nameMinLen {
		runes = append(runes, '_')
	}
	return string(runes)
}

// Player is the logged-in persona behind a connected client. ID is the
// client's connection ID and never changes; RoomHostID tracks the current
// room only by its key (the host's client ID) rather than holding a direct
// reference, so a Room can be removed (host migration) while players who
// used to belong to it still exist, resolve through Lobby's room registry
// at use sites.
type Player struct {
	ID     uint32
	Name   string
	Ver1   string // four-component version string, purpose unclear to the client
	Ver2   string // three-component version string, shown in the client's menu
	Props  string
	Status byte

	// RoomHostID is the key of the player's current room in the lobby's
	// room registry, or nil if the player isn't in one.
	RoomHostID *uint32
}

// New builds a freshly logged-in player: lobby status, default properties,
// no room.
func New(id uint32, rawName, ver1, ver2 string) *Player {
	return &Player{
		ID:     id,
		Name:   NormalizeName(rawName),
		Ver1:   ver1,
		Ver2:   ver2,
		Props:  DefaultProps,
		Status: StatusLobby,
	}
}

// InRoom reports whether the player currently belongs to a room.
func (p *Player) InRoom() bool { return p.RoomHostID != nil }

// IsHost reports whether the player is the host of its current room.
// Callers must pass the room's current host ID (player.RoomHostID only
// names the room, not who's presently hosting it after migration).
func (p *Player) IsHost(roomHostID uint32) bool {
	return p.InRoom() && *p.RoomHostID == roomHostID && (p.Status == StatusRoomHost || p.Status == StatusInGameHost)
}

// JoinRoom links the player to the room keyed by roomKey, setting status to
// host or plain member depending on whether the player's own ID is that key.
// Callers are responsible for the matching Room.AddMember call; the two
// always happen together.
func (p *Player) JoinRoom(roomKey uint32) {
	if roomKey == p.ID {
		p.Status = StatusRoomHost
	} else {
		p.Status = StatusRoomMember
	}
	id := roomKey
	p.RoomHostID = &id
}

// LeaveRoom clears the player's room link and resets status to lobby.
// Callers are responsible for the matching Room.RemoveMember call. Host
// migration uses this too: every member of a dissolving room, survivors
// included, is reset to lobby status rather than having any in-game tier
// carried across the move.
func (p *Player) LeaveRoom() {
	p.Status = StatusLobby
	p.RoomHostID = nil
}
