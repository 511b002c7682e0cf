package lobby

import (
	"github.com/hashicorp/go-multierror"

	"github.com/ereb-thanatos/cossacks3-lan-server/internal/debug"
	"github.com/ereb-thanatos/cossacks3-lan-server/internal/protocol"
)

// sendTarget names one of the eight fan-out shapes a dispatch handler can
// route its outbound packet to. Every handler picks exactly one after
// composing.
type sendTarget int

const (
	targetSource sendTarget = iota
	targetID2
	targetEveryone
	targetEveryoneButSource
	targetRoomHost
	targetEveryoneInRoom
	targetEveryoneInRoomButSource
	targetPropagateInRoom
)

// send resolves target against live player/room state and enqueues p's
// finished bytes to every resolved recipient. The bytes are copied out of
// p's buffer exactly once and shared (read-only) across every QueueBuf
// call, rather than re-copied per recipient.
//
// A lookup miss for an individual recipient (client ID no longer connected)
// is logged and skipped; it never aborts delivery to the rest of the
// recipients. The aggregated misses are returned as a *multierror.Error so
// callers that care (none currently do) can inspect them.
func (l *Lobby) send(p *protocol.Packet, target sendTarget) error {
	ids, err := l.recipients(p, target)
	if err != nil {
		l.logger.Warn().Err(err).Uint16("cmd", p.Cmd()).Str("cmd_name", protocol.CmdName(p.Cmd())).Msg("dispatch: could not resolve send target, dropping")
		return err
	}
	return l.sendToIDs(p.Bytes(), ids)
}

// sendToIDs shares one copy of bytes across every id in ids, skipping (with
// a warning) any id no longer in the client table. Handlers that must
// compute their recipient list themselves, chiefly leave-room, which
// mutates room membership before the notification goes out, call this
// directly instead of going through send's target resolution.
func (l *Lobby) sendToIDs(bytes []byte, ids []uint32) error {
	if len(ids) == 0 {
		return nil
	}
	cp := append([]byte(nil), bytes...)

	var errs error
	for _, id := range ids {
		c, ok := l.clients[id]
		if !ok {
			l.logger.Warn().Uint32("client", id).Msg("dispatch: recipient no longer connected, dropping delivery")
			errs = multierror.Append(errs, errClientNotConnected(id))
			continue
		}
		c.QueueBuf(cp)
	}
	return errs
}

// recipients computes the client ID list for target. Only the room-scoped
// targets (RoomHost, EveryoneInRoom, EveryoneInRoomButSource,
// PropagateInRoom) can fail here, when the sender is not in a room.
// Source/Id2 always resolve to an ID; a miss for them shows up later in
// sendToIDs. Everyone/EveryoneButSource just walk l.clients directly.
func (l *Lobby) recipients(p *protocol.Packet, target sendTarget) ([]uint32, error) {
	switch target {
	case targetSource:
		return []uint32{p.Source()}, nil

	case targetID2:
		return []uint32{p.ID2()}, nil

	case targetEveryone:
		out := make([]uint32, 0, len(l.clients))
		for id := range l.clients {
			out = append(out, id)
		}
		return out, nil

	case targetEveryoneButSource:
		out := make([]uint32, 0, len(l.clients))
		for id := range l.clients {
			if id != p.Source() {
				out = append(out, id)
			}
		}
		return out, nil

	case targetRoomHost:
		r, err := l.roomOf(p.Source())
		if err != nil {
			return nil, err
		}
		return []uint32{r.HostID}, nil

	case targetEveryoneInRoom:
		r, err := l.roomOf(p.Source())
		if err != nil {
			return nil, err
		}
		return append([]uint32(nil), r.Members...), nil

	case targetEveryoneInRoomButSource:
		r, err := l.roomOf(p.Source())
		if err != nil {
			return nil, err
		}
		out := make([]uint32, 0, len(r.Members))
		for _, id := range r.Members {
			if id != p.Source() {
				out = append(out, id)
			}
		}
		return out, nil

	case targetPropagateInRoom:
		// Asymmetric: the host fans simulation data out to every other
		// member, but a non-host member's update always funnels back
		// through the host rather than to its peers directly.
		r, err := l.roomOf(p.Source())
		if err != nil {
			return nil, err
		}
		pl, ok := l.players[p.Source()]
		if ok && pl.IsHost(r.HostID) {
			out := make([]uint32, 0, len(r.Members))
			for _, id := range r.Members {
				if id != p.Source() {
					out = append(out, id)
				}
			}
			return out, nil
		}
		return []uint32{r.HostID}, nil

	default:
		debug.Assertf(false, "unhandled send target %d", target)
		return nil, nil
	}
}
