package protocol

import (
	"errors"
	"fmt"

	"github.com/ereb-thanatos/cossacks3-lan-server/internal/byteorder"
)

// ErrOverflow is returned by any read that would run past the buffer's
// logical end or any write that would run past its physical end. The
// dispatch handlers in internal/lobby log it and drop the packet being read
// or composed; the session stays connected, except when composing the login
// acknowledgement overflows, which force-closes that client.
var ErrOverflow = errors.New("protocol: buffer overflow")

// LengthType selects the width of a length-prefixed string's size field.
type LengthType int

const (
	LenByte  LengthType = 1
	LenShort LengthType = 2
	LenInt   LengthType = 4
)

// Packet is a cursor-based view over a Session's receive/compose buffer. It
// never copies the buffer: it is parsed in place from an inbound packet and,
// typically in the same call, overwritten in place to become the outbound
// response. Bytes() aliases the buffer; the lobby's fan-out router copies
// it once before queueing it to recipients.
type Packet struct {
	buf     []byte
	readEnd int
	source  uint32
	header  Header

	pos      int
	sendSize int
}

// Parse decodes the 14-byte header at the front of buf and positions the
// cursor at the start of the data section. buf must already contain a full
// packet (header + declared data size); the Session's receive state machine
// guarantees this before handing the buffer to the lobby. Reads stop at
// len(buf); writes may use the buffer's whole capacity, so a reply can be
// composed in place even when it is longer than the packet it answers.
func Parse(buf []byte, sourceID uint32) *Packet {
	return &Packet{
		buf:     buf[:cap(buf)],
		readEnd: len(buf),
		source:  sourceID,
		header:  Decode(buf),
		pos:     HeaderSize,
	}
}

func (p *Packet) Source() uint32 { return p.source }
func (p *Packet) Cmd() uint16    { return p.header.Cmd }
func (p *Packet) ID1() uint32    { return p.header.ID1 }
func (p *Packet) ID2() uint32    { return p.header.ID2 }
func (p *Packet) Size() uint32   { return p.header.Size }

// Buf exposes the raw underlying buffer, extended to its full capacity.
func (p *Packet) Buf() []byte { return p.buf }

// Seek moves the cursor forward by offset bytes without reading them.
func (p *Packet) Seek(offset int) { p.pos += offset }

// SeekToStart rewinds the cursor to the beginning of the data section.
func (p *Packet) SeekToStart() { p.pos = HeaderSize }

// SeekToEnd moves the cursor past the end of the declared data section,
// for handlers that forward a packet's trailing bytes unexamined.
func (p *Packet) SeekToEnd() { p.pos = HeaderSize + int(p.header.Size) }

func (p *Packet) checkRead(n int) error {
	if p.pos+n > p.readEnd {
		return fmt.Errorf("%w: read %d bytes at %d, buffer is %d", ErrOverflow, n, p.pos, p.readEnd)
	}
	return nil
}

func (p *Packet) checkWrite(n int) error {
	if p.pos+n > len(p.buf) {
		return fmt.Errorf("%w: write %d bytes at %d, buffer is %d", ErrOverflow, n, p.pos, len(p.buf))
	}
	return nil
}

func (p *Packet) ReadByte() (byte, error) {
	if err := p.checkRead(1); err != nil {
		return 0, err
	}
	b := p.buf[p.pos]
	p.pos++
	return b, nil
}

func (p *Packet) ReadU16() (uint16, error) {
	if err := p.checkRead(2); err != nil {
		return 0, err
	}
	v := byteorder.U16(p.buf[p.pos : p.pos+2])
	p.pos += 2
	return v, nil
}

func (p *Packet) ReadU32() (uint32, error) {
	if err := p.checkRead(4); err != nil {
		return 0, err
	}
	v := byteorder.U32(p.buf[p.pos : p.pos+4])
	p.pos += 4
	return v, nil
}

// ReadString reads a length-prefixed string. lt selects whether the prefix
// is a byte, a short, or an int; the prefix value is always a byte count,
// never a rune or character count.
func (p *Packet) ReadString(lt LengthType) (string, error) {
	n, err := p.readLen(lt)
	if err != nil {
		return "", err
	}
	if err := p.checkRead(n); err != nil {
		return "", err
	}
	s := string(p.buf[p.pos : p.pos+n])
	p.pos += n
	return s, nil
}

func (p *Packet) readLen(lt LengthType) (int, error) {
	switch lt {
	case LenByte:
		b, err := p.ReadByte()
		return int(b), err
	case LenShort:
		s, err := p.ReadU16()
		return int(s), err
	case LenInt:
		i, err := p.ReadU32()
		return int(i), err
	default:
		return 0, fmt.Errorf("protocol: invalid length prefix width %d", lt)
	}
}

func (p *Packet) WriteByte(b byte) error {
	if err := p.checkWrite(1); err != nil {
		return err
	}
	p.buf[p.pos] = b
	p.pos++
	return nil
}

func (p *Packet) WriteU16(v uint16) error {
	if err := p.checkWrite(2); err != nil {
		return err
	}
	byteorder.PutU16(p.buf[p.pos:p.pos+2], v)
	p.pos += 2
	return nil
}

func (p *Packet) WriteU32(v uint32) error {
	if err := p.checkWrite(4); err != nil {
		return err
	}
	byteorder.PutU32(p.buf[p.pos:p.pos+4], v)
	p.pos += 4
	return nil
}

// WriteString writes s with a length prefix of width lt. The prefix is the
// raw byte length of s, truncated silently if it doesn't fit the prefix
// width, callers control string lengths (names, descriptions) well within
// any of the three widths in practice.
func (p *Packet) WriteString(s string, lt LengthType) error {
	n := len(s)
	switch lt {
	case LenByte:
		if err := p.WriteByte(byte(n)); err != nil {
			return err
		}
	case LenShort:
		if err := p.WriteU16(uint16(n)); err != nil {
			return err
		}
	case LenInt:
		if err := p.WriteU32(uint32(n)); err != nil {
			return err
		}
	default:
		return fmt.Errorf("protocol: invalid length prefix width %d", lt)
	}
	if err := p.checkWrite(n); err != nil {
		return err
	}
	copy(p.buf[p.pos:p.pos+n], s)
	p.pos += n
	return nil
}

// WriteHeader must be called once the data section has been fully composed.
// It snapshots the cursor as the packet's send length and backpatches the
// header at the front of the buffer. After this call SendSize and Bytes
// report the finished wire packet.
func (p *Packet) WriteHeader(cmd uint16, id1, id2 uint32) {
	p.sendSize = p.pos
	p.header = Header{
		Size: uint32(p.sendSize - HeaderSize),
		Cmd:  cmd,
		ID1:  id1,
		ID2:  id2,
	}
	p.header.Encode(p.buf[0:HeaderSize])
	// Mirrors the reference encoder: the cursor lands back at the start
	// of the data section, not at sendSize. The one caller that cares
	// (the 0x1bd dict encoder) relies on this to backpatch a
	// length-of-following placeholder it left at the front of the data
	// it just finished composing.
	p.pos = HeaderSize
}

// KeepWholeMessage re-tags an inbound packet as an outbound one without
// touching its data section: it seeks past whatever's left of the body and
// re-calls WriteHeader with the original id1/id2 under the new command. Used
// by every pass-through handler in the dispatch table.
func (p *Packet) KeepWholeMessage(cmd uint16) {
	origID1, origID2 := p.header.ID1, p.header.ID2
	p.SeekToEnd()
	p.WriteHeader(cmd, origID1, origID2)
}

// SendSize is the number of bytes, header included, that make up the
// finished outbound packet. Valid only after WriteHeader.
func (p *Packet) SendSize() int { return p.sendSize }

// Bytes returns the finished wire packet. The returned slice aliases the
// underlying buffer, which may be overwritten by the very next dispatch;
// the fan-out router (sendToIDs in internal/lobby) copies it before
// queueing.
func (p *Packet) Bytes() []byte { return p.buf[:p.sendSize] }
