package session_test

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/phuslu/log"

	"github.com/ereb-thanatos/cossacks3-lan-server/internal/protocol"
	"github.com/ereb-thanatos/cossacks3-lan-server/internal/session"
)

func silentLogger() *log.Logger {
	logger := log.DefaultLogger
	logger.Writer = &log.IOWriter{Writer: io.Discard}
	return &logger
}

// fakeRegistry stands in for the lobby: it records every ProcessBuf call and
// lets a test script a reply to send back through QueueBuf.
type fakeRegistry struct {
	connected    chan session.Client
	processed    chan []byte
	disconnected chan uint32
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		connected:    make(chan session.Client, 4),
		processed:    make(chan []byte, 16),
		disconnected: make(chan uint32, 4),
	}
}

func (r *fakeRegistry) Connect(c session.Client) uint32 {
	r.connected <- c
	return 1
}

func (r *fakeRegistry) ProcessBuf(clientID uint32, buf []byte) {
	cp := append([]byte(nil), buf...)
	r.processed <- cp
}

func (r *fakeRegistry) Disconnect(clientID uint32) {
	r.disconnected <- clientID
}

func TestSessionFramesAPacket(t *testing.T) {
	is := is.New(t)

	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()

	reg := newFakeRegistry()
	s := session.New(serverConn, reg, silentLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	<-reg.connected

	buf := make([]byte, protocol.HeaderSize+5)
	header := protocol.Header{Size: 5, Cmd: protocol.CmdLogin}
	header.Encode(buf)
	copy(buf[protocol.HeaderSize:], "hello")

	clientConn.SetWriteDeadline(time.Now().Add(time.Second))
	_, err := clientConn.Write(buf)
	is.NoErr(err)

	select {
	case got := <-reg.processed:
		is.Equal(len(got), len(buf))
		is.Equal(protocol.Decode(got).Cmd, protocol.CmdLogin)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ProcessBuf")
	}
}

func TestSessionDisconnectsOnOversizePacket(t *testing.T) {
	is := is.New(t)

	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()

	reg := newFakeRegistry()
	s := session.New(serverConn, reg, silentLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	<-reg.connected

	buf := make([]byte, protocol.HeaderSize)
	header := protocol.Header{Size: protocol.MaxDataSize + 1, Cmd: protocol.CmdLogin}
	header.Encode(buf)

	clientConn.SetWriteDeadline(time.Now().Add(time.Second))
	_, err := clientConn.Write(buf)
	is.NoErr(err)

	select {
	case id := <-reg.disconnected:
		is.Equal(id, uint32(1))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Disconnect")
	}
}

func TestSessionQueueBufDeliversBytes(t *testing.T) {
	is := is.New(t)

	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()

	reg := newFakeRegistry()
	s := session.New(serverConn, reg, silentLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	client := <-reg.connected

	out := make([]byte, protocol.HeaderSize)
	header := protocol.Header{Size: 0, Cmd: protocol.CmdPingAck}
	header.Encode(out)
	client.QueueBuf(out)

	clientConn.SetReadDeadline(time.Now().Add(time.Second))
	got := make([]byte, protocol.HeaderSize)
	_, err := io.ReadFull(clientConn, got)
	is.NoErr(err)
	is.Equal(protocol.Decode(got).Cmd, protocol.CmdPingAck)
}
