// Package session implements the per-TCP-connection I/O machine that backs
// a lobby Client: it frames inbound packets with a small header/body
// receive state machine, owns a strictly-ordered outbound send queue, and
// hands every framed packet to a Registry (the lobby) for dispatch.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/phuslu/log"

	"github.com/ereb-thanatos/cossacks3-lan-server/internal/debug"
	"github.com/ereb-thanatos/cossacks3-lan-server/internal/protocol"
)

// Client is the lobby's view of a connected session: just enough surface
// to assign an ID, identify the connection in logs, compose outbound
// packets directly in the session's buffer, and enqueue finished ones for
// send. Session implements this; the lobby package only ever sees the
// interface, never the concrete type.
type Client interface {
	ID() uint32
	SetID(id uint32)
	Address() string
	Buf() []byte
	QueueBuf(b []byte)
	// Close force-disconnects the session. The lobby calls this only on a
	// compose-side ErrOverflow, a fault in its own output rather than the
	// client's input, which the normal disconnect path (driven by the
	// session's own read loop) never observes on its own.
	Close()
}

// Registry is the lobby's narrow surface as seen by a Session. A fresh
// connection calls Connect once to obtain its ID; every framed packet
// after that goes through ProcessBuf; a dropped connection calls
// Disconnect exactly once.
type Registry interface {
	Connect(c Client) uint32
	ProcessBuf(clientID uint32, buf []byte)
	Disconnect(clientID uint32)
}

// recvState is the Session's receive-side state machine: read exactly 14
// header bytes, decide how much body follows, then read exactly that much
// before handing the whole buffer to the lobby.
type recvState int

const (
	stateReadHeader recvState = iota
	stateReadBody
)

// Session owns one TCP connection: the socket, the lobby-assigned client
// ID, the peer's printable address, a single MaxPacketSize receive/compose
// buffer the lobby parses and rewrites in place, and a FIFO of
// reference-counted ([]byte, already a Go reference type) outbound slices.
type Session struct {
	conn     net.Conn
	address  string
	connHash uint64

	id       uint32
	registry Registry
	logger   *log.Logger

	buf []byte

	sendCh chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

// New wires a freshly accepted connection to registry. Call Run to start
// the session's I/O loops.
func New(conn net.Conn, registry Registry, logger *log.Logger) *Session {
	addr := conn.RemoteAddr().String()
	return &Session{
		conn:     conn,
		address:  addr,
		connHash: xxhash.Sum64String(addr),
		registry: registry,
		logger:   logger,
		buf:      make([]byte, protocol.MaxPacketSize),
		sendCh:   make(chan []byte, 64),
		closed:   make(chan struct{}),
	}
}

func (s *Session) ID() uint32      { return s.id }
func (s *Session) SetID(id uint32) { s.id = id }
func (s *Session) Address() string { return s.address }
func (s *Session) Buf() []byte     { return s.buf }

// QueueBuf enqueues an immutable, shared byte slice for send. It never
// blocks the caller's dispatch: the channel is generously buffered, and a
// session slow enough to fill it is already disconnecting.
func (s *Session) QueueBuf(b []byte) {
	select {
	case s.sendCh <- b:
	case <-s.closed:
	default:
		s.logger.Warn().
			Uint32("client", s.id).
			Msg("send queue full, dropping session")
		s.disconnect()
	}
}

// Close force-disconnects the session; see Client.
func (s *Session) Close() { s.disconnect() }

func (s *Session) log() *log.Entry {
	return s.logger.Info().Uint32("client", s.id).Uint64("conn", s.connHash).Str("addr", s.address)
}

// Run drives both the receive and send loops until the connection ends,
// either because the peer went away or because ctx was cancelled. It
// always notifies the registry exactly once via Disconnect before
// returning.
func (s *Session) Run(ctx context.Context) {
	id := s.registry.Connect(s)
	s.id = id

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			s.disconnect()
		case <-done:
		}
	}()

	s.log().Msg("session connected")
	s.runSend()
	close(done)

	s.registry.Disconnect(s.id)
	s.log().Msg("session disconnected")
}

// runSend drains the send queue (its own goroutine lets reads and writes
// proceed independently) while runRecv blocks this goroutine on framing
// inbound packets; the two stop together because closing the socket
// unblocks whichever one is parked in a syscall.
func (s *Session) runSend() {
	go s.drainSendQueue()
	s.runRecv()
	// runRecv only returns once the connection is done for; make sure
	// the socket is actually closed so drainSendQueue unblocks too.
	s.disconnect()
}

func (s *Session) drainSendQueue() {
	for {
		select {
		case b, ok := <-s.sendCh:
			if !ok {
				return
			}
			if err := s.writeAll(b); err != nil {
				s.logger.Error().Err(err).Uint32("client", s.id).Msg("write failed")
				s.disconnect()
				return
			}
		case <-s.closed:
			return
		}
	}
}

func (s *Session) writeAll(b []byte) error {
	for len(b) > 0 {
		n, err := s.conn.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

// runRecv implements the ReadHeader / ReadBody(n) receive state machine.
// It owns the session's single buffer exclusively except for the duration
// of each ProcessBuf call, during which the lobby is free to both read and
// overwrite it.
func (s *Session) runRecv() {
	state := stateReadHeader
	var bodySize uint32

	for {
		switch state {
		case stateReadHeader:
			if err := s.readFull(s.buf[:protocol.HeaderSize]); err != nil {
				s.handleReadErr(err)
				return
			}
			size := protocol.Decode(s.buf[:protocol.HeaderSize]).Size
			switch {
			case size == 0:
				s.registry.ProcessBuf(s.id, s.buf[:protocol.HeaderSize])
				state = stateReadHeader
			case size > protocol.MaxDataSize:
				s.logger.Error().
					Uint32("client", s.id).
					Uint32("size", size).
					Msg("oversize packet announced, disconnecting")
				s.disconnect()
				return
			default:
				bodySize = size
				state = stateReadBody
			}
		case stateReadBody:
			end := protocol.HeaderSize + int(bodySize)
			if err := s.readFull(s.buf[protocol.HeaderSize:end]); err != nil {
				s.handleReadErr(err)
				return
			}
			s.registry.ProcessBuf(s.id, s.buf[:end])
			state = stateReadHeader
		default:
			debug.Assertf(false, "unreachable recv state %d", state)
		}
	}
}

// readFull reads exactly len(buf) bytes, retrying on short reads (a warning,
// not a failure) and surfacing io.EOF and any other I/O error to the
// caller, which maps them to silent vs. warned disconnects respectively.
func (s *Session) readFull(buf []byte) error {
	got := 0
	for got < len(buf) {
		n, err := s.conn.Read(buf[got:])
		got += n
		if err != nil {
			if errors.Is(err, io.EOF) {
				return io.EOF
			}
			return err
		}
		if got < len(buf) {
			s.logger.Warn().
				Uint32("client", s.id).
				Msgf("short read: got %d of %d bytes", got, len(buf))
		}
	}
	return nil
}

func (s *Session) handleReadErr(err error) {
	if errors.Is(err, io.EOF) {
		// Silent: a clean close is the ordinary way a game session ends.
		return
	}
	s.logger.Warn().
		Err(err).
		Uint32("client", s.id).
		Msg("socket error, disconnecting")
}

// disconnect is reachable concurrently from the accept-ctx watcher,
// drainSendQueue, runRecv, and a full QueueBuf, so closing s.closed and the
// socket must happen exactly once regardless of how many of them race here.
func (s *Session) disconnect() {
	s.closeOnce.Do(func() {
		close(s.closed)
		if err := s.conn.Close(); err != nil {
			s.logger.Warn().Err(fmt.Errorf("closing socket: %w", err)).Uint32("client", s.id).Msg("")
		}
	})
}
