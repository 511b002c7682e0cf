package lobby

import (
	"github.com/ereb-thanatos/cossacks3-lan-server/internal/player"
	"github.com/ereb-thanatos/cossacks3-lan-server/internal/protocol"
	"github.com/ereb-thanatos/cossacks3-lan-server/internal/room"
)

// hostMigrationSession is the session identifier sent in every 0x1bd
// payload. The reference server hardcodes it rather than minting a fresh
// value per room; see DESIGN.md for the open question this resolves.
const hostMigrationSession = "1337"

// roomEntryKind and roomCreatedFlag are unexplained constants the reference
// server writes into room-related payloads: roomEntryKind into the login
// listing, the room-created notification and the room-update notification,
// roomCreatedFlag into the room-created notification only. Their meaning was never
// recovered; they are forwarded verbatim because every known client build
// expects to see them.
const (
	roomEntryKind   uint32 = 8
	roomCreatedFlag byte   = 7
)

// passthroughRule describes a command that carries no state the lobby
// needs to inspect: re-tag it (sometimes under the same code) and route
// it, without touching the data section at all.
type passthroughRule struct {
	retag  uint16
	target sendTarget
}

var passthroughRules = map[uint16]passthroughRule{
	protocol.CmdRoomChat:          {protocol.CmdRoomChat, targetEveryoneInRoomButSource},
	protocol.CmdGameDataToHostA:   {protocol.CmdGameDataToHostA, targetRoomHost},
	protocol.CmdGameDataToHostB:   {protocol.CmdGameDataToHostB, targetRoomHost},
	protocol.CmdGameDataEcho:      {protocol.CmdGameDataEcho, targetSource},
	protocol.CmdLobbyChat:         {protocol.CmdLobbyChat, targetEveryoneButSource},
	protocol.CmdDirectMessage:     {protocol.CmdDirectMessage, targetID2},
	protocol.CmdPing:              {protocol.CmdPingAck, targetEveryoneInRoom},
	protocol.CmdClientStatus:      {protocol.CmdClientStatusAck, targetEveryone},
	protocol.CmdBroadcastMisc:     {protocol.CmdBroadcastMisc, targetEveryone},
	protocol.CmdVoiceData:         {protocol.CmdVoiceDataAck, targetEveryoneInRoom},
	protocol.CmdSimDataA:          {protocol.CmdSimDataA, targetPropagateInRoom},
	protocol.CmdSimDataB:          {protocol.CmdSimDataB, targetEveryoneInRoomButSource},
	protocol.CmdSimDataC:          {protocol.CmdSimDataC, targetRoomHost},
	protocol.CmdSimDataD:          {protocol.CmdSimDataD, targetEveryoneInRoomButSource},
	protocol.CmdSimDataPropagated: {protocol.CmdSimDataPropagated, targetPropagateInRoom},
}

// dispatch routes a freshly parsed packet to its handler. Table-driven
// pass-throughs are checked first since they're the overwhelming majority
// of traffic once a game is running (simulation data, chat, voice); every
// command that actually reads or mutates lobby state gets its own handler
// below.
func (l *Lobby) dispatch(p *protocol.Packet) {
	if rule, ok := passthroughRules[p.Cmd()]; ok {
		p.KeepWholeMessage(rule.retag)
		l.send(p, rule.target)
		return
	}

	switch p.Cmd() {
	case protocol.CmdRegistrationForm:
		// No account system on a LAN server; the client only needs to
		// see the connection stay open.
	case protocol.CmdLogin:
		l.handleLogin(p)
	case protocol.CmdEmailProbe:
		l.handleEmailProbe(p)
	case protocol.CmdPeerInfoReq:
		l.handlePeerInfoReq(p)
	case protocol.CmdVersionEcho:
		l.handleVersionEcho(p)
	case protocol.CmdSetOwnProps:
		l.handleSetOwnProps(p)
	case protocol.CmdCreateRoom:
		l.handleCreateRoom(p)
	case protocol.CmdJoinRoom:
		l.handleJoinRoom(p)
	case protocol.CmdLeaveRoom:
		l.handleLeaveRoom(p)
	case protocol.CmdStartGame:
		l.handleStartGame(p)
	case protocol.CmdRoomUpdate:
		l.handleRoomUpdate(p)
	case protocol.CmdKick:
		l.handleKick(p)
	case protocol.CmdRelay:
		l.handleRelay(p)
	default:
		l.logger.Debug().
			Uint16("cmd", p.Cmd()).
			Str("cmd_name", protocol.CmdName(p.Cmd())).
			Uint32("source", p.Source()).
			Msg("dispatch: unhandled command")
	}
}

func (l *Lobby) handleLogin(p *protocol.Packet) {
	fields, err := readStrings(p, 5)
	if err != nil {
		l.logger.Warn().Err(err).Uint32("client", p.Source()).Msg("malformed login packet")
		return
	}
	ver1, ver2, _ /* email */, _ /* password */, gameKey := fields[0], fields[1], fields[2], fields[3], fields[4]

	pl := player.New(p.Source(), gameKey, ver1, ver2)
	l.players[p.Source()] = pl

	l.sendLoginAck(p, pl)
	l.sendNewPlayer(pl)
}

func (l *Lobby) sendLoginAck(p *protocol.Packet, self *player.Player) {
	p.SeekToStart()
	c := newComposer(p)

	c.byte(0)
	c.str(self.Name, protocol.LenByte)
	c.byte(0)
	for i := 0; i < 5; i++ {
		c.u32(0) // score, then four more u32 fields, all zero for a LAN game
	}
	c.str(self.Props, protocol.LenByte)

	for id, other := range l.players {
		c.u32(id)
		c.byte(other.Status)
		c.str(other.Name, protocol.LenByte)
		c.byte(0)
		c.str(other.Props, protocol.LenByte)
	}
	c.u32(0) // terminates the player list

	for hostID, r := range l.rooms {
		if r.Hidden {
			continue
		}
		c.u32(hostID)
		c.u32(roomEntryKind)
		c.str(r.Description, protocol.LenByte)
		c.str(r.Info, protocol.LenByte)
		c.u32(r.Magic)
		c.u16(0)
		c.u32(uint32(len(r.Members)))
		for _, memberID := range r.ReversedMembers() {
			c.u32(memberID)
		}
	}
	c.u32(0) // terminates the room list

	if c.err != nil {
		l.logger.Error().Err(c.err).Uint32("client", self.ID).Msg("compose login ack overflowed, disconnecting")
		if cl, ok := l.clients[self.ID]; ok {
			cl.Close()
		}
		return
	}

	p.WriteHeader(protocol.CmdLoginAck, self.ID, self.ID)
	l.send(p, targetSource)
}

// sendNewPlayer tells everyone already connected (the new player included;
// it's cheaper to let them learn their own arrival this way than to special
// case it) that self just logged in.
func (l *Lobby) sendNewPlayer(self *player.Player) {
	buf := make([]byte, protocol.MaxPacketSize)
	p := protocol.Parse(buf, self.ID)
	c := newComposer(p)
	c.u32(self.ID)
	c.byte(self.Status)
	c.str(self.Name, protocol.LenByte)
	c.byte(0)
	c.str(self.Props, protocol.LenByte)
	if c.err != nil {
		l.logger.Error().Err(c.err).Msg("compose new-player overflowed")
		return
	}
	p.WriteHeader(protocol.CmdNewPlayer, self.ID, 0)
	l.send(p, targetEveryone)
}

// handleEmailProbe echoes the probed address back with a trailing
// "known" flag; a LAN server never actually has an account to check
// against, so every address is reported known.
func (l *Lobby) handleEmailProbe(p *protocol.Packet) {
	email, err := p.ReadString(protocol.LenByte)
	if err != nil {
		l.logger.Warn().Err(err).Uint32("client", p.Source()).Msg("malformed email-probe packet")
		return
	}
	p.SeekToStart()
	c := newComposer(p)
	c.str(email, protocol.LenByte)
	c.byte(1)
	if c.err != nil {
		l.logger.Error().Err(c.err).Msg("compose email ack overflowed")
		return
	}
	p.WriteHeader(protocol.CmdEmailAck, p.Source(), 0)
	l.send(p, targetSource)
}

func (l *Lobby) handlePeerInfoReq(p *protocol.Packet) {
	peerID, err := p.ReadU32()
	if err != nil {
		l.logger.Warn().Err(err).Uint32("client", p.Source()).Msg("malformed peer-info packet")
		return
	}
	peer, ok := l.players[peerID]
	if !ok {
		l.logger.Warn().Uint32("peer", peerID).Msg("peer-info request for unknown client, dropping")
		return
	}
	p.SeekToStart()
	c := newComposer(p)
	c.byte(peer.Status)
	c.str(peer.Name, protocol.LenByte)
	c.str("", protocol.LenByte) // score, an empty length-prefixed string on a LAN game
	for i := 0; i < 5; i++ {
		c.u32(0)
	}
	c.str(peer.Props, protocol.LenByte)
	if c.err != nil {
		l.logger.Error().Err(c.err).Msg("compose peer-info ack overflowed")
		return
	}
	p.WriteHeader(protocol.CmdPeerInfoAck, peerID, p.Source())
	l.send(p, targetSource)
}

// handleVersionEcho replies with the requester's own stored version
// strings, not the packet's body: the inbound 0x1ad carries a single
// version string that this command doesn't even need to read, and the
// reply is always the two values captured at login.
func (l *Lobby) handleVersionEcho(p *protocol.Packet) {
	pl, ok := l.player(p.Source())
	if !ok {
		return
	}
	p.SeekToStart()
	c := newComposer(p)
	c.str(pl.Ver1, protocol.LenByte)
	c.str(pl.Ver2, protocol.LenByte)
	c.u32(0)
	if c.err != nil {
		l.logger.Error().Err(c.err).Msg("compose version-echo ack overflowed")
		return
	}
	p.WriteHeader(protocol.CmdVersionEchoAck, 0, pl.ID)
	l.send(p, targetSource)
}

func (l *Lobby) handleSetOwnProps(p *protocol.Packet) {
	pl, ok := l.player(p.Source())
	if !ok {
		return
	}
	// password and name are read to stay aligned with the wire format but
	// only props is ever persisted, the client's own login/rename flow
	// owns name changes, not this command.
	fields, err := readStrings(p, 2) // password, name
	if err != nil {
		l.logger.Warn().Err(err).Uint32("client", p.Source()).Msg("malformed set-props packet")
		return
	}
	_ = fields
	if _, err := p.ReadU32(); err != nil { // score, discarded
		l.logger.Warn().Err(err).Uint32("client", p.Source()).Msg("malformed set-props packet")
		return
	}
	props, err := p.ReadString(protocol.LenByte)
	if err != nil {
		l.logger.Warn().Err(err).Uint32("client", p.Source()).Msg("malformed set-props packet")
		return
	}
	pl.Props = props
}

func (l *Lobby) handleCreateRoom(p *protocol.Packet) {
	pl, ok := l.player(p.Source())
	if !ok {
		return
	}
	p.Seek(5) // unidentified fixed prefix, discarded
	description, err := p.ReadString(protocol.LenByte)
	if err != nil {
		l.logger.Warn().Err(err).Uint32("client", p.Source()).Msg("malformed create-room packet")
		return
	}
	info, err := p.ReadString(protocol.LenByte)
	if err != nil {
		l.logger.Warn().Err(err).Uint32("client", p.Source()).Msg("malformed create-room packet")
		return
	}
	magic, err := p.ReadU32()
	if err != nil {
		l.logger.Warn().Err(err).Uint32("client", p.Source()).Msg("malformed create-room packet")
		return
	}

	r := room.New(p.Source(), description)
	r.Info = info
	r.Magic = magic
	l.rooms[p.Source()] = r
	pl.JoinRoom(p.Source())
	r.AddMember(p.Source())

	p.SeekToStart()
	c := newComposer(p)
	c.byte(roomCreatedFlag)
	c.u32(roomEntryKind)
	c.str(description, protocol.LenByte)
	c.str(info, protocol.LenByte)
	c.u32(magic)
	c.u16(0)
	if c.err != nil {
		l.logger.Error().Err(c.err).Msg("compose room-created overflowed")
		return
	}
	p.WriteHeader(protocol.CmdRoomCreated, p.Source(), 0)
	l.send(p, targetEveryone)
}

func (l *Lobby) handleJoinRoom(p *protocol.Packet) {
	pl, ok := l.player(p.Source())
	if !ok {
		return
	}
	roomKey, err := p.ReadU32()
	if err != nil {
		l.logger.Warn().Err(err).Uint32("client", p.Source()).Msg("malformed join-room packet")
		return
	}
	r, ok := l.rooms[roomKey]
	if !ok {
		l.logger.Warn().Uint32("client", p.Source()).Uint32("room", roomKey).Msg("join-room: room not found, dropping")
		return
	}

	pl.JoinRoom(roomKey)
	r.AddMember(p.Source())

	p.SeekToStart()
	c := newComposer(p)
	c.u32(roomKey)
	c.byte(pl.Status)
	if c.err != nil {
		l.logger.Error().Err(c.err).Msg("compose player-joined overflowed")
		return
	}
	p.WriteHeader(protocol.CmdPlayerJoined, p.Source(), 0)
	l.send(p, targetEveryone)
}

// handleLeaveRoom implements the leave/disconnect-surrogate semantics: a
// host leaving always dissolves the whole room (every member's link is
// cleared and the room entry is deleted), and only additionally triggers
// host migration when the host was mid-game and other members remain. A
// non-host leaving only ever removes itself.
func (l *Lobby) handleLeaveRoom(p *protocol.Packet) {
	pl, ok := l.player(p.Source())
	if !ok {
		return
	}
	r, err := l.roomOf(p.Source())
	if err != nil {
		l.logger.Warn().Err(err).Uint32("client", p.Source()).Msg("leave-room: not in a room, dropping")
		return
	}

	hostLeaving := pl.IsHost(r.HostID)
	transferNeeded := hostLeaving && pl.Status == player.StatusInGameHost && len(r.Members) > 1
	newHostID, hasSuccessor := r.LastMember()

	var leavers []uint32
	if hostLeaving {
		leavers = append([]uint32(nil), r.Members...)
		for _, id := range leavers {
			if mp, ok := l.players[id]; ok {
				mp.LeaveRoom()
			}
		}
		r.Members = nil
		delete(l.rooms, r.HostID)
	} else {
		leavers = []uint32{p.Source()}
		pl.LeaveRoom()
		r.RemoveMember(p.Source())
	}

	l.sendPlayersLeft(p.Source(), hostLeaving, leavers)

	if transferNeeded && hasSuccessor {
		// clientIDs is every member except the leaving host itself (the
		// new host included): that's the roster the 0x1bd dictionary
		// carries. The individual 0x1be nudges then go to everyone in
		// that list except the new host, who already has the dictionary.
		clientIDs := make([]uint32, 0, len(leavers))
		for _, id := range leavers {
			if id != p.Source() {
				clientIDs = append(clientIDs, id)
			}
		}
		l.sendHostMigration(r, newHostID, clientIDs)
	}
}

// sendPlayersLeft composes a 0x1a1 notification and broadcasts it to
// Everyone. hostLeaving selects the wire flag; every departing player is
// reported at StatusLobby, its value once LeaveRoom has cleared it.
func (l *Lobby) sendPlayersLeft(source uint32, hostLeaving bool, leavers []uint32) {
	buf := make([]byte, protocol.MaxPacketSize)
	np := protocol.Parse(buf, source)
	c := newComposer(np)
	if hostLeaving {
		c.byte(1)
	} else {
		c.byte(0)
	}
	c.u32(uint32(len(leavers)))
	for _, id := range leavers {
		c.u32(id)
		c.byte(player.StatusLobby)
	}
	if c.err != nil {
		l.logger.Error().Err(c.err).Msg("compose players-left overflowed")
		return
	}
	np.WriteHeader(protocol.CmdPlayersLeft, source, 0)
	l.send(np, targetEveryone)
}

// sendHostMigration delivers the 0x1bd dictionary (listing every member
// except the leaving host, clientIDs, to the newly promoted host, then a
// separate header-only 0x1be to each of clientIDs other than the new host
// itself, with that survivor's own ID in id2.
func (l *Lobby) sendHostMigration(r *room.Room, newHostID uint32, clientIDs []uint32) {
	buf := make([]byte, protocol.MaxPacketSize)
	np := protocol.Parse(buf, newHostID)
	fields := protocol.HostMigrationFields{
		GameName:  r.Description,
		MapName:   r.Info,
		MasterID:  newHostID,
		Session:   hostMigrationSession,
		ClientIDs: clientIDs,
	}
	if err := protocol.EncodeHostMigration(np, fields); err != nil {
		l.logger.Error().Err(err).Uint32("room", newHostID).Msg("compose host migration overflowed")
		return
	}
	l.sendToIDs(np.Bytes(), []uint32{newHostID})

	for _, memberID := range clientIDs {
		if memberID == newHostID {
			continue
		}
		nudgeBuf := make([]byte, protocol.HeaderSize)
		nudge := protocol.Parse(nudgeBuf, newHostID)
		nudge.WriteHeader(protocol.CmdHostMigrationDone, newHostID, memberID)
		l.sendToIDs(nudge.Bytes(), []uint32{memberID})
	}
}

func (l *Lobby) handleStartGame(p *protocol.Packet) {
	pl, ok := l.player(p.Source())
	if !ok {
		return
	}
	r, err := l.roomOf(p.Source())
	if err != nil {
		l.logger.Warn().Err(err).Uint32("client", p.Source()).Msg("start-game: not in a room, dropping")
		return
	}
	if !pl.IsHost(r.HostID) {
		l.logger.Warn().Uint32("client", p.Source()).Msg("start-game: non-host tried to start, dropping")
		return
	}

	r.Hidden = true
	for _, id := range r.Members {
		mp, ok := l.players[id]
		if !ok {
			continue
		}
		if id == r.HostID {
			mp.Status = player.StatusInGameHost
		} else {
			mp.Status = player.StatusInGame
		}
	}

	p.SeekToStart()
	c := newComposer(p)
	c.u32(uint32(len(r.Members)))
	for _, id := range r.ReversedMembers() {
		mp := l.players[id]
		c.u32(id)
		c.byte(mp.Status)
	}
	if c.err != nil {
		l.logger.Error().Err(c.err).Msg("compose game-started overflowed")
		return
	}
	p.WriteHeader(protocol.CmdGameStarted, p.Source(), 0)
	l.send(p, targetEveryone)
}

func (l *Lobby) handleRoomUpdate(p *protocol.Packet) {
	pl, ok := l.player(p.Source())
	if !ok {
		return
	}
	r, err := l.roomOf(p.Source())
	if err != nil {
		l.logger.Warn().Err(err).Uint32("client", p.Source()).Msg("room-update: not in a room, dropping")
		return
	}
	if !pl.IsHost(r.HostID) {
		l.logger.Warn().Uint32("client", p.Source()).Msg("room-update: non-host tried to update, dropping")
		return
	}

	if _, err := p.ReadString(protocol.LenByte); err != nil { // description, immutable, discarded
		l.logger.Warn().Err(err).Uint32("client", p.Source()).Msg("malformed room-update packet")
		return
	}
	info, err := p.ReadString(protocol.LenByte)
	if err != nil {
		l.logger.Warn().Err(err).Uint32("client", p.Source()).Msg("malformed room-update packet")
		return
	}
	r.Info = info

	p.SeekToStart()
	c := newComposer(p)
	c.u32(roomEntryKind)
	c.str(r.Description, protocol.LenByte)
	c.str(r.Info, protocol.LenByte)
	c.u32(0)
	c.u16(0)
	c.u32(uint32(len(r.Members)))
	for _, id := range r.ReversedMembers() {
		status := byte(player.StatusLobby)
		if mp, ok := l.players[id]; ok {
			status = mp.Status
		}
		c.u32(id)
		c.byte(status)
	}
	if c.err != nil {
		l.logger.Error().Err(c.err).Msg("compose room-update ack overflowed")
		return
	}
	p.WriteHeader(protocol.CmdRoomUpdateAck, p.Source(), 0)
	l.send(p, targetEveryone)
}

// handleKick forwards the kick command verbatim, then announces the kicked
// player's departure exactly as a 0x1a0 would. It does not itself mutate
// room membership, the kicked client's own subsequent leave-room packet
// is what actually drives that cleanup, same as any other departure.
func (l *Lobby) handleKick(p *protocol.Packet) {
	pl, ok := l.player(p.Source())
	if !ok {
		return
	}
	r, err := l.roomOf(p.Source())
	if err != nil {
		l.logger.Warn().Err(err).Uint32("client", p.Source()).Msg("kick: not in a room, dropping")
		return
	}
	if !pl.IsHost(r.HostID) {
		l.logger.Warn().Uint32("client", p.Source()).Msg("kick: non-host tried to kick, dropping")
		return
	}
	kickID, err := p.ReadU32()
	if err != nil {
		l.logger.Warn().Err(err).Uint32("client", p.Source()).Msg("malformed kick packet")
		return
	}

	p.KeepWholeMessage(protocol.CmdKickAck)
	l.send(p, targetEveryone)

	l.sendPlayersLeft(p.Source(), false, []uint32{kickID})
}

func (l *Lobby) handleRelay(p *protocol.Packet) {
	p.KeepWholeMessage(protocol.CmdRelayAck)
	switch {
	case p.ID2() == 0:
		l.send(p, targetEveryone)
	case p.ID1() == p.ID2():
		l.send(p, targetSource)
	default:
		l.sendToIDs(p.Bytes(), []uint32{p.Source(), p.ID2()})
	}
}

// readStrings reads n consecutive byte-length-prefixed strings, the shape
// every fixed-arity command body in this protocol uses for its text
// fields.
func readStrings(p *protocol.Packet, n int) ([]string, error) {
	out := make([]string, n)
	for i := range out {
		s, err := p.ReadString(protocol.LenByte)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}
