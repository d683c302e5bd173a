package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/coevolve/coevolve/coeerr"
	"github.com/coevolve/coevolve/wire"
)

// TCPConfig configures a real multi-process TCP Transport. The
// topology is the star the spec requires: rank 0 (the coordinator)
// listens on CoordinatorAddr and accepts Size-1 inbound connections,
// one per worker; every worker dials CoordinatorAddr once. Workers
// never connect to each other.
type TCPConfig struct {
	// Rank is this process's own rank.
	Rank int
	// Size is the total rank count (1 coordinator + N-1 workers).
	Size int
	// CoordinatorAddr is the coordinator's listen address, e.g.
	// "127.0.0.1:7373". Rank 0 binds it; every other rank dials it.
	CoordinatorAddr string
}

// NewTCP constructs a Transport bound to cfg. For rank 0 it blocks
// until all Size-1 workers have connected and completed their rank
// handshake. For rank > 0 it dials the coordinator and sends its own
// rank as a one-time handshake.
func NewTCP(ctx context.Context, cfg TCPConfig) (Transport, error) {
	if cfg.Size < 1 {
		return nil, coeerr.New(coeerr.KindConfiguration, "transport.NewTCP", fmt.Errorf("size must be >= 1"))
	}
	if cfg.Rank < 0 || cfg.Rank >= cfg.Size {
		return nil, coeerr.New(coeerr.KindConfiguration, "transport.NewTCP", fmt.Errorf("rank %d out of range [0,%d)", cfg.Rank, cfg.Size))
	}

	e := &tcpEndpoint{
		rank:  cfg.Rank,
		size:  cfg.Size,
		inbox: newInbox(),
		conns: make(map[int]*tcpConn),
	}

	if cfg.Rank == 0 {
		if err := e.listenAndAccept(ctx, cfg.CoordinatorAddr); err != nil {
			return nil, err
		}
	} else {
		if err := e.dial(ctx, cfg.CoordinatorAddr); err != nil {
			return nil, err
		}
	}
	return e, nil
}

type tcpConn struct {
	conn net.Conn
	wmu  sync.Mutex
}

// writeFrame writes one [tag:1][length:8][payload] frame. wmu
// serializes concurrent Send calls to the same peer, preserving this
// endpoint's send-order guarantee to that destination.
func (c *tcpConn) writeFrame(tag wire.Tag, payload []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	hdr := make([]byte, 9)
	hdr[0] = byte(tag)
	binary.BigEndian.PutUint64(hdr[1:], uint64(len(payload)))
	if _, err := c.conn.Write(hdr); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := c.conn.Write(payload); err != nil {
			return err
		}
	}
	return nil
}

func readFrame(r io.Reader) (wire.Tag, []byte, error) {
	hdr := make([]byte, 9)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return 0, nil, err
	}
	tag := wire.Tag(hdr[0])
	n := binary.BigEndian.Uint64(hdr[1:])
	payload := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return 0, nil, err
		}
	}
	return tag, payload, nil
}

type tcpEndpoint struct {
	rank  int
	size  int
	inbox *inbox

	connsMu sync.RWMutex
	conns   map[int]*tcpConn

	listener net.Listener
}

func (e *tcpEndpoint) Rank() int { return e.rank }
func (e *tcpEndpoint) Size() int { return e.size }

func (e *tcpEndpoint) listenAndAccept(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return coeerr.New(coeerr.KindProtocol, "transport.listenAndAccept", err)
	}
	e.listener = ln

	for i := 0; i < e.size-1; i++ {
		conn, err := ln.Accept()
		if err != nil {
			return coeerr.New(coeerr.KindProtocol, "transport.listenAndAccept", err)
		}
		hdr := make([]byte, 8)
		if _, err := io.ReadFull(conn, hdr); err != nil {
			conn.Close()
			return coeerr.New(coeerr.KindProtocol, "transport.listenAndAccept", err)
		}
		peerRank, err := wire.DecodeUint64(hdr)
		if err != nil {
			conn.Close()
			return coeerr.New(coeerr.KindProtocol, "transport.listenAndAccept", err)
		}
		tc := &tcpConn{conn: conn}
		e.connsMu.Lock()
		e.conns[int(peerRank)] = tc
		e.connsMu.Unlock()
		go e.readLoop(int(peerRank), conn)
	}
	return nil
}

func (e *tcpEndpoint) dial(ctx context.Context, addr string) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return coeerr.New(coeerr.KindProtocol, "transport.dial", err)
	}
	if _, err := conn.Write(wire.EncodeUint64(uint64(e.rank))); err != nil {
		conn.Close()
		return coeerr.New(coeerr.KindProtocol, "transport.dial", err)
	}
	tc := &tcpConn{conn: conn}
	e.connsMu.Lock()
	e.conns[0] = tc
	e.connsMu.Unlock()
	go e.readLoop(0, conn)
	return nil
}

// readLoop demultiplexes frames arriving from peerRank's connection
// into this endpoint's single inbox. It exits silently on connection
// loss or a malformed frame: per the spec's non-goals, there is no
// fault tolerance for a lost worker, so any Recv still pinned to
// peerRank simply blocks until the caller's context is canceled.
func (e *tcpEndpoint) readLoop(peerRank int, conn net.Conn) {
	for {
		tag, payload, err := readFrame(conn)
		if err != nil {
			return
		}
		if e.inbox.push(envelope{from: peerRank, tag: tag, payload: payload}) != nil {
			return
		}
	}
}

func (e *tcpEndpoint) Send(ctx context.Context, dest int, tag wire.Tag, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.connsMu.RLock()
	tc, ok := e.conns[dest]
	e.connsMu.RUnlock()
	if !ok {
		return coeerr.New(coeerr.KindProtocol, "transport.Send", fmt.Errorf("no connection to rank %d", dest))
	}
	if err := tc.writeFrame(tag, payload); err != nil {
		return coeerr.New(coeerr.KindProtocol, "transport.Send", err)
	}
	return nil
}

func (e *tcpEndpoint) Recv(ctx context.Context, source int, tag wire.Tag) ([]byte, error) {
	return e.inbox.recv(ctx, source, tag)
}

func (e *tcpEndpoint) RecvAny(ctx context.Context, source int) (wire.Tag, []byte, error) {
	return e.inbox.recvAny(ctx, source)
}

func (e *tcpEndpoint) Probe(ctx context.Context) (int, wire.Tag, bool, error) {
	return e.inbox.probeHead(ctx)
}

func (e *tcpEndpoint) Close() error {
	e.inbox.close()
	e.connsMu.Lock()
	defer e.connsMu.Unlock()
	for _, tc := range e.conns {
		tc.conn.Close()
	}
	if e.listener != nil {
		e.listener.Close()
	}
	return nil
}
