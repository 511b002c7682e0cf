// Package lobby implements the single source of truth for connected
// players and open rooms. It owns every mutation to that state behind one
// goroutine's mailbox, so the fan-out router and every command handler in
// dispatch.go can read and write l.clients/l.players/l.rooms directly
// without locks: only the mailbox goroutine ever touches them.
package lobby

import (
	"context"

	"github.com/phuslu/log"

	"github.com/ereb-thanatos/cossacks3-lan-server/internal/debug"
	"github.com/ereb-thanatos/cossacks3-lan-server/internal/player"
	"github.com/ereb-thanatos/cossacks3-lan-server/internal/protocol"
	"github.com/ereb-thanatos/cossacks3-lan-server/internal/room"
	"github.com/ereb-thanatos/cossacks3-lan-server/internal/session"
)

// Lobby tracks every connected client, every logged-in player, and every
// open room. clients/players/rooms are read and written only from Run, the
// mailbox goroutine; every other method just posts a message and, where a
// reply is needed, waits on a channel for it.
type Lobby struct {
	logger *log.Logger

	mailbox chan func()

	nextClientID uint32

	clients map[uint32]session.Client
	players map[uint32]*player.Player
	rooms   map[uint32]*room.Room
}

// New builds an empty lobby. Call Run in its own goroutine before any
// Session starts calling Connect/ProcessBuf/Disconnect.
func New(logger *log.Logger) *Lobby {
	return &Lobby{
		logger:       logger,
		mailbox:      make(chan func(), 256),
		nextClientID: 1,
		clients:      make(map[uint32]session.Client),
		players:      make(map[uint32]*player.Player),
		rooms:        make(map[uint32]*room.Room),
	}
}

// Run drains the mailbox until ctx is cancelled. Every state mutation in
// this package reaches l.clients/l.players/l.rooms only through a closure
// submitted here, which is what lets dispatch.go and router.go treat those
// maps as if they were single-threaded.
func (l *Lobby) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-l.mailbox:
			fn()
		}
	}
}

// post submits fn to the mailbox and blocks until it has run. Every
// Registry method is a thin post() call, which is what serializes Connect,
// ProcessBuf, and Disconnect against each other and against the dispatch
// table regardless of how many Sessions call them concurrently.
func (l *Lobby) post(fn func()) {
	done := make(chan struct{})
	l.mailbox <- func() {
		fn()
		close(done)
	}
	<-done
}

// Connect implements session.Registry: it assigns the next client ID and
// registers c in the client table. The player record is created later, on
// a successful 0x19a login.
func (l *Lobby) Connect(c session.Client) uint32 {
	var id uint32
	l.post(func() {
		id = l.nextClientID
		l.nextClientID++
		c.SetID(id)
		l.clients[id] = c
		l.logger.Info().Uint32("client", id).Str("addr", c.Address()).Msg("client connected")
	})
	return id
}

// ProcessBuf implements session.Registry: it parses buf as a packet from
// clientID and runs it through the dispatch table. A zero-length buf (just
// the 14-byte header, Size()==0) decodes to a valid Packet whose dispatch is
// simply a no-op for every command that expects a body, which matches the
// reference server's behavior of never special-casing empty packets.
func (l *Lobby) ProcessBuf(clientID uint32, buf []byte) {
	l.post(func() {
		p := protocol.Parse(buf, clientID)
		l.dispatch(p)
	})
}

// Disconnect implements session.Registry: it tears down everything a
// departed client left behind, including re-dispatching a synthesized
// leave-room packet before the player record itself is removed, so a
// host's departure still triggers ordinary host migration.
func (l *Lobby) Disconnect(clientID uint32) {
	l.post(func() {
		l.disconnect(clientID)
	})
}

func (l *Lobby) disconnect(clientID uint32) {
	c, ok := l.clients[clientID]
	if !ok {
		return
	}
	delete(l.clients, clientID)

	pl, ok := l.players[clientID]
	if !ok {
		// Never logged in: nothing else to clean up or announce.
		return
	}

	if pl.InRoom() {
		// Synthesize the same 0x1a0 a client would have sent on a
		// deliberate leave, and run it through the real handler so
		// host migration, room deletion, and the 0x1a1 broadcast all
		// happen exactly the way they would for a voluntary leave.
		// The client's own buffer is still ours to write into; it's
		// about to be thrown away along with the client itself.
		p := protocol.Parse(c.Buf(), clientID)
		l.handleLeaveRoom(p)
	}

	delete(l.players, clientID)

	l.broadcastClientGone(clientID)
	l.logger.Info().Uint32("client", clientID).Msg("client disconnected")
}

func (l *Lobby) broadcastClientGone(clientID uint32) {
	buf := make([]byte, protocol.HeaderSize)
	p := protocol.Parse(buf, clientID)
	p.WriteHeader(protocol.CmdClientGone, clientID, 0)
	l.send(p, targetEveryone)
}

// player looks up the logged-in player behind clientID. Every command that
// requires an established login (anything past 0x19a) uses this instead of
// touching l.players directly, so the warn-and-drop policy for a missing
// sender is applied in exactly one place.
func (l *Lobby) player(clientID uint32) (*player.Player, bool) {
	pl, ok := l.players[clientID]
	if !ok {
		l.logger.Warn().Uint32("client", clientID).Msg("dispatch: no player for client, dropping packet")
	}
	return pl, ok
}

// roomOf resolves the room clientID currently belongs to, or an error if
// the client has no player or the player isn't in a room. A player still
// linked to a room that is no longer registered is a broken invariant and
// panics via debug.Assertf.
func (l *Lobby) roomOf(clientID uint32) (*room.Room, error) {
	pl, ok := l.players[clientID]
	if !ok || !pl.InRoom() {
		return nil, errNoActiveRoom(clientID)
	}
	r, ok := l.rooms[*pl.RoomHostID]
	if !ok {
		debug.Assertf(false, "room %d missing for client %d still linked to it", *pl.RoomHostID, clientID)
	}
	return r, nil
}

// Stats is a point-in-time snapshot of the lobby's size, for the operator
// status surface. It carries no player-identifying data.
type Stats struct {
	Clients int
	Players int
	Rooms   int
}

// Stats reports the current client/player/room counts. Safe to call
// concurrently with normal dispatch; it goes through the same mailbox as
// every other mutation.
func (l *Lobby) Stats() Stats {
	var s Stats
	l.post(func() {
		s = Stats{Clients: len(l.clients), Players: len(l.players), Rooms: len(l.rooms)}
	})
	return s
}
