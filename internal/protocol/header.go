package protocol

import "github.com/ereb-thanatos/cossacks3-lan-server/internal/byteorder"

const (
	// HeaderSize is the fixed 14-byte header every packet carries ahead
	// of its data section: u32 size, u16 cmd, u32 id1, u32 id2.
	HeaderSize = 14

	// MaxPacketSize is the largest packet a Session will ever hold,
	// header included. An announced data size that would push a packet
	// past this is a fatal error for that session.
	MaxPacketSize = 0x100000 // 1 MiB

	// MaxDataSize is the largest legal value for the header's size
	// field: everything left in the buffer after the header.
	MaxDataSize = MaxPacketSize - HeaderSize
)

// Header is the 14-byte envelope wrapping every packet's data section.
type Header struct {
	Size uint32 // length of data, excluding this header
	Cmd  uint16
	ID1  uint32
	ID2  uint32
}

// Encode writes h into buf[0:HeaderSize]. buf must have room.
func (h Header) Encode(buf []byte) {
	byteorder.PutU32(buf[0:4], h.Size)
	byteorder.PutU16(buf[4:6], h.Cmd)
	byteorder.PutU32(buf[6:10], h.ID1)
	byteorder.PutU32(buf[10:14], h.ID2)
}

// Decode reads a Header out of buf[0:HeaderSize].
func Decode(buf []byte) Header {
	return Header{
		Size: byteorder.U32(buf[0:4]),
		Cmd:  byteorder.U16(buf[4:6]),
		ID1:  byteorder.U32(buf[6:10]),
		ID2:  byteorder.U32(buf[10:14]),
	}
}
