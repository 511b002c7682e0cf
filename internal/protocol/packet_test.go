package protocol_test

import (
	"testing"

	"github.com/matryer/is"

	"github.com/ereb-thanatos/cossacks3-lan-server/internal/protocol"
)

func TestHeaderRoundTrip(t *testing.T) {
	is := is.New(t)

	original := protocol.Header{Size: 42, Cmd: 0x19a, ID1: 7, ID2: 9}
	buf := make([]byte, protocol.HeaderSize)
	original.Encode(buf)

	decoded := protocol.Decode(buf)
	is.Equal(original, decoded)
}

func TestPacketWriteThenReadRoundTrip(t *testing.T) {
	is := is.New(t)

	buf := make([]byte, protocol.MaxPacketSize)
	p := protocol.Parse(buf, 1)

	is.NoErr(p.WriteByte(7))
	is.NoErr(p.WriteU16(1234))
	is.NoErr(p.WriteU32(0xdeadbeef))
	is.NoErr(p.WriteString("hello", protocol.LenByte))
	p.WriteHeader(protocol.CmdLogin, 11, 22)

	is.Equal(p.Cmd(), protocol.CmdLogin)
	is.Equal(p.ID1(), uint32(11))
	is.Equal(p.ID2(), uint32(22))

	// Re-parse the finished wire bytes and read every field back.
	reread := protocol.Parse(p.Bytes(), 1)
	b, err := reread.ReadByte()
	is.NoErr(err)
	is.Equal(b, byte(7))

	u16, err := reread.ReadU16()
	is.NoErr(err)
	is.Equal(u16, uint16(1234))

	u32, err := reread.ReadU32()
	is.NoErr(err)
	is.Equal(u32, uint32(0xdeadbeef))

	s, err := reread.ReadString(protocol.LenByte)
	is.NoErr(err)
	is.Equal(s, "hello")
}

func TestPacketReadOverflow(t *testing.T) {
	is := is.New(t)

	buf := make([]byte, protocol.HeaderSize+2)
	header := protocol.Header{Size: 2, Cmd: 1}
	header.Encode(buf)

	p := protocol.Parse(buf, 1)
	_, err := p.ReadU32() // only 2 bytes of body available
	is.True(err != nil)
}

func TestKeepWholeMessagePreservesIDs(t *testing.T) {
	is := is.New(t)

	buf := make([]byte, protocol.MaxPacketSize)
	header := protocol.Header{Size: 0, Cmd: protocol.CmdRoomChat, ID1: 5, ID2: 6}
	header.Encode(buf)

	p := protocol.Parse(buf, 5)
	p.KeepWholeMessage(protocol.CmdRoomChat)

	is.Equal(p.Cmd(), protocol.CmdRoomChat)
	is.Equal(p.ID1(), uint32(5))
	is.Equal(p.ID2(), uint32(6))
}

func TestEncodeHostMigration(t *testing.T) {
	is := is.New(t)

	buf := make([]byte, protocol.MaxPacketSize)
	p := protocol.Parse(buf, 0)

	fields := protocol.HostMigrationFields{
		GameName:  "game",
		MapName:   "0",
		MasterID:  42,
		Session:   "1337",
		ClientIDs: []uint32{1, 2, 3},
	}
	is.NoErr(protocol.EncodeHostMigration(p, fields))

	is.Equal(p.Cmd(), protocol.CmdHostMigration)
	is.Equal(p.ID1(), uint32(42))
	is.Equal(p.ID2(), uint32(42))
	is.True(p.Size() > 0)

	reread := protocol.Parse(p.Bytes(), 0)
	totalLen, err := reread.ReadU32()
	is.NoErr(err)
	is.Equal(totalLen, p.Size()-4)
}
