package lobby

import "github.com/ereb-thanatos/cossacks3-lan-server/internal/protocol"

// composer wraps a Packet's Write* calls so dispatch handlers can compose a
// multi-field outbound payload without checking an error after every field.
// The first error wins; subsequent writes become no-ops. err reports whether
// composition failed, in which case the packet must not be sent.
//
// A real failure here means the composed payload (room list, player roster,
// member list) grew past MaxPacketSize. On a LAN lobby with realistic
// player/room counts this is not expected to happen. Callers check err and
// never send a truncated packet: sendLoginAck also force-disconnects the
// client, while the other handlers only log the error and drop the reply,
// leaving the session connected.
type composer struct {
	p   *protocol.Packet
	err error
}

func newComposer(p *protocol.Packet) *composer { return &composer{p: p} }

func (c *composer) byte(b byte) *composer {
	if c.err == nil {
		c.err = c.p.WriteByte(b)
	}
	return c
}

func (c *composer) u16(v uint16) *composer {
	if c.err == nil {
		c.err = c.p.WriteU16(v)
	}
	return c
}

func (c *composer) u32(v uint32) *composer {
	if c.err == nil {
		c.err = c.p.WriteU32(v)
	}
	return c
}

func (c *composer) str(s string, lt protocol.LengthType) *composer {
	if c.err == nil {
		c.err = c.p.WriteString(s, lt)
	}
	return c
}
