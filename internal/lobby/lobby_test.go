package lobby_test

import (
	"context"
	"io"
	"testing"

	"github.com/matryer/is"
	"github.com/phuslu/log"

	"github.com/ereb-thanatos/cossacks3-lan-server/internal/lobby"
	"github.com/ereb-thanatos/cossacks3-lan-server/internal/protocol"
)

func silentLogger() *log.Logger {
	logger := log.DefaultLogger
	logger.Writer = &log.IOWriter{Writer: io.Discard}
	return &logger
}

// fakeClient is a session.Client that records outbound bytes in memory
// instead of writing them to a socket, so dispatch behavior can be
// asserted directly against what each connected client would have
// received.
type fakeClient struct {
	id     uint32
	addr   string
	buf    []byte
	queued [][]byte
	closed bool
}

func newFakeClient(addr string) *fakeClient {
	return &fakeClient{addr: addr, buf: make([]byte, protocol.MaxPacketSize)}
}

func (c *fakeClient) ID() uint32      { return c.id }
func (c *fakeClient) SetID(id uint32) { c.id = id }
func (c *fakeClient) Address() string { return c.addr }
func (c *fakeClient) Buf() []byte     { return c.buf }
func (c *fakeClient) QueueBuf(b []byte) {
	c.queued = append(c.queued, b)
}
func (c *fakeClient) Close() { c.closed = true }

func (c *fakeClient) cmds() []uint16 {
	out := make([]uint16, len(c.queued))
	for i, b := range c.queued {
		out[i] = protocol.Decode(b).Cmd
	}
	return out
}

func containsCmd(cmds []uint16, want uint16) bool {
	for _, c := range cmds {
		if c == want {
			return true
		}
	}
	return false
}

func newTestLobby(t *testing.T) (*lobby.Lobby, func()) {
	t.Helper()
	l := lobby.New(silentLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	return l, cancel
}

func buildLogin(clientID uint32, name string) []byte {
	buf := make([]byte, protocol.MaxPacketSize)
	p := protocol.Parse(buf, clientID)
	_ = p.WriteString("1.0.0.0", protocol.LenByte)
	_ = p.WriteString("1.0", protocol.LenByte)
	_ = p.WriteString("", protocol.LenByte)
	_ = p.WriteString("", protocol.LenByte)
	_ = p.WriteString(name, protocol.LenByte)
	p.WriteHeader(protocol.CmdLogin, clientID, 0)
	return p.Bytes()
}

func buildCreateRoom(clientID uint32, description, info string, magic uint32) []byte {
	buf := make([]byte, protocol.MaxPacketSize)
	p := protocol.Parse(buf, clientID)
	p.Seek(5)
	_ = p.WriteString(description, protocol.LenByte)
	_ = p.WriteString(info, protocol.LenByte)
	_ = p.WriteU32(magic)
	p.WriteHeader(protocol.CmdCreateRoom, clientID, 0)
	return p.Bytes()
}

func buildJoinRoom(clientID, roomKey uint32) []byte {
	buf := make([]byte, protocol.MaxPacketSize)
	p := protocol.Parse(buf, clientID)
	_ = p.WriteU32(roomKey)
	p.WriteHeader(protocol.CmdJoinRoom, clientID, 0)
	return p.Bytes()
}

func buildHeaderOnly(clientID uint32, cmd uint16, id1, id2 uint32) []byte {
	buf := make([]byte, protocol.MaxPacketSize)
	p := protocol.Parse(buf, clientID)
	p.WriteHeader(cmd, id1, id2)
	return p.Bytes()
}

func TestLoginBroadcastsNewPlayer(t *testing.T) {
	is := is.New(t)
	l, cancel := newTestLobby(t)
	defer cancel()

	c1 := newFakeClient("a")
	id1 := l.Connect(c1)
	c2 := newFakeClient("b")
	id2 := l.Connect(c2)

	l.ProcessBuf(id1, buildLogin(id1, "PlayerOne"))

	is.True(containsCmd(c1.cmds(), protocol.CmdLoginAck))
	is.True(containsCmd(c1.cmds(), protocol.CmdNewPlayer))
	is.True(containsCmd(c2.cmds(), protocol.CmdNewPlayer))
	is.True(!containsCmd(c2.cmds(), protocol.CmdLoginAck))
	_ = id2
}

func TestCreateAndJoinRoom(t *testing.T) {
	is := is.New(t)
	l, cancel := newTestLobby(t)
	defer cancel()

	c1 := newFakeClient("a")
	id1 := l.Connect(c1)
	c2 := newFakeClient("b")
	id2 := l.Connect(c2)
	c3 := newFakeClient("c")
	id3 := l.Connect(c3)

	l.ProcessBuf(id1, buildLogin(id1, "host"))
	l.ProcessBuf(id2, buildLogin(id2, "member"))
	l.ProcessBuf(id3, buildLogin(id3, "bystander"))

	l.ProcessBuf(id1, buildCreateRoom(id1, "room", "info", 0))
	is.True(containsCmd(c1.cmds(), protocol.CmdRoomCreated))
	is.True(containsCmd(c3.cmds(), protocol.CmdRoomCreated)) // room creation is lobby-wide

	l.ProcessBuf(id2, buildJoinRoom(id2, id1))
	is.True(containsCmd(c1.cmds(), protocol.CmdPlayerJoined))
	is.True(containsCmd(c2.cmds(), protocol.CmdPlayerJoined))
	is.True(containsCmd(c3.cmds(), protocol.CmdPlayerJoined)) // room roster is lobby-wide too
}

func TestHostMigrationOnHostDisconnect(t *testing.T) {
	is := is.New(t)
	l, cancel := newTestLobby(t)
	defer cancel()

	c1 := newFakeClient("a")
	id1 := l.Connect(c1)
	c2 := newFakeClient("b")
	id2 := l.Connect(c2)
	c3 := newFakeClient("c")
	id3 := l.Connect(c3)

	l.ProcessBuf(id1, buildLogin(id1, "host"))
	l.ProcessBuf(id2, buildLogin(id2, "member2"))
	l.ProcessBuf(id3, buildLogin(id3, "member3"))

	l.ProcessBuf(id1, buildCreateRoom(id1, "room", "info", 0))
	l.ProcessBuf(id2, buildJoinRoom(id2, id1))
	l.ProcessBuf(id3, buildJoinRoom(id3, id1))

	// Migration only fires for a host that disconnects mid-game; a host
	// leaving before start just dissolves the room outright.
	l.ProcessBuf(id1, buildHeaderOnly(id1, protocol.CmdStartGame, id1, 0))

	l.Disconnect(id1)

	// id3 joined last, so it becomes the successor host.
	is.True(containsCmd(c3.cmds(), protocol.CmdHostMigration))
	is.True(containsCmd(c2.cmds(), protocol.CmdHostMigrationDone))
	is.True(containsCmd(c2.cmds(), protocol.CmdPlayersLeft))
	is.True(containsCmd(c3.cmds(), protocol.CmdPlayersLeft))
}

func TestChatPassthroughReachesOnlyRoomButSource(t *testing.T) {
	is := is.New(t)
	l, cancel := newTestLobby(t)
	defer cancel()

	c1 := newFakeClient("a")
	id1 := l.Connect(c1)
	c2 := newFakeClient("b")
	id2 := l.Connect(c2)
	c3 := newFakeClient("c")
	id3 := l.Connect(c3)

	l.ProcessBuf(id1, buildLogin(id1, "host"))
	l.ProcessBuf(id2, buildLogin(id2, "member"))
	l.ProcessBuf(id3, buildLogin(id3, "bystander"))

	l.ProcessBuf(id1, buildCreateRoom(id1, "room", "info", 0))
	l.ProcessBuf(id2, buildJoinRoom(id2, id1))

	before1, before2, before3 := len(c1.queued), len(c2.queued), len(c3.queued)

	l.ProcessBuf(id1, buildHeaderOnly(id1, protocol.CmdRoomChat, id1, 0))

	is.Equal(len(c1.queued), before1)     // source never gets its own chat echoed back
	is.Equal(len(c2.queued), before2+1)   // fellow room member does
	is.Equal(len(c3.queued), before3)     // bystander outside the room does not
}

func TestStats(t *testing.T) {
	is := is.New(t)
	l, cancel := newTestLobby(t)
	defer cancel()

	is.Equal(l.Stats(), lobby.Stats{Clients: 0, Players: 0, Rooms: 0})

	c1 := newFakeClient("a")
	id1 := l.Connect(c1)
	c2 := newFakeClient("b")
	id2 := l.Connect(c2)

	is.Equal(l.Stats(), lobby.Stats{Clients: 2, Players: 0, Rooms: 0})

	l.ProcessBuf(id1, buildLogin(id1, "host"))
	l.ProcessBuf(id2, buildLogin(id2, "member"))
	l.ProcessBuf(id1, buildCreateRoom(id1, "room", "info", 0))

	is.Equal(l.Stats(), lobby.Stats{Clients: 2, Players: 2, Rooms: 1})

	l.Disconnect(id1)
	is.Equal(l.Stats(), lobby.Stats{Clients: 1, Players: 1, Rooms: 0})
}

func TestEmptyPacketDispatchesHarmlessly(t *testing.T) {
	// Size enforcement is the session's receive state machine's job (see
	// session_test.go); this just confirms a zero-length, pre-login
	// packet doesn't panic or produce any reply.
	is := is.New(t)
	l, cancel := newTestLobby(t)
	defer cancel()

	c1 := newFakeClient("a")
	id1 := l.Connect(c1)

	empty := make([]byte, protocol.HeaderSize)
	header := protocol.Header{Size: 0, Cmd: protocol.CmdRegistrationForm}
	header.Encode(empty)

	l.ProcessBuf(id1, empty)
	is.Equal(len(c1.queued), 0)
}
