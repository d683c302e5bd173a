package transport

import (
	"context"
	"sync"

	"github.com/coevolve/coevolve/coeerr"
	"github.com/coevolve/coevolve/wire"
)

// envelope is one message in flight, queued on its destination's inbox.
type envelope struct {
	from    int
	tag     wire.Tag
	payload []byte
}

// inbox is the shared receive-side queue backing both the in-process
// Hub (inproc.go) and the TCP fabric (tcp.go): a mutex-protected FIFO
// per recipient, with a replace-and-close "ready" channel used to wake
// blocked waiters. This is the same broadcast-wakeup idiom as a
// longpoll-style blocking receive, generalized to support Probe's
// non-blocking peek as well as Recv's pinned-source blocking wait.
type inbox struct {
	mu      sync.Mutex
	pending []envelope
	ready   chan struct{}
	closed  bool
}

func newInbox() *inbox {
	return &inbox{ready: make(chan struct{})}
}

// wake closes and replaces the ready channel, releasing every goroutine
// currently blocked on it; must be called with mu held.
func (ib *inbox) wake() {
	close(ib.ready)
	ib.ready = make(chan struct{})
}

// push enqueues env and wakes any waiters. Safe for concurrent callers.
func (ib *inbox) push(env envelope) error {
	ib.mu.Lock()
	defer ib.mu.Unlock()
	if ib.closed {
		return coeerr.New(coeerr.KindProtocol, "transport.push", errClosed)
	}
	ib.pending = append(ib.pending, env)
	ib.wake()
	return nil
}

func (ib *inbox) close() {
	ib.mu.Lock()
	defer ib.mu.Unlock()
	if !ib.closed {
		ib.closed = true
		ib.wake()
	}
}

// recv blocks until a pending envelope from source is available, then
// removes and returns its payload. If the first queued envelope from
// source carries an unexpected tag, recv reports a protocol error
// rather than skipping or silently accepting it.
func (ib *inbox) recv(ctx context.Context, source int, tag wire.Tag) ([]byte, error) {
	for {
		ib.mu.Lock()
		if ib.closed {
			ib.mu.Unlock()
			return nil, coeerr.New(coeerr.KindProtocol, "transport.Recv", errClosed)
		}
		for i, env := range ib.pending {
			if env.from != source {
				continue
			}
			if env.tag != tag {
				ib.mu.Unlock()
				return nil, coeerr.New(coeerr.KindProtocol, "transport.Recv",
					mismatchError{want: tag, got: env.tag})
			}
			ib.pending = append(ib.pending[:i], ib.pending[i+1:]...)
			ib.mu.Unlock()
			return env.payload, nil
		}
		ready := ib.ready
		ib.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ready:
		}
	}
}

// recvAny blocks until any envelope from source is available, then
// removes and returns it regardless of tag. Used where the source is
// already known (a worker only ever talks to rank 0) but the next
// tag is not, e.g. a worker's Idle state waiting to learn whether the
// next header is NbIndividuals, MessageSize, or EvolutionEnd.
func (ib *inbox) recvAny(ctx context.Context, source int) (wire.Tag, []byte, error) {
	for {
		ib.mu.Lock()
		if ib.closed {
			ib.mu.Unlock()
			return 0, nil, coeerr.New(coeerr.KindProtocol, "transport.RecvAny", errClosed)
		}
		for i, env := range ib.pending {
			if env.from != source {
				continue
			}
			ib.pending = append(ib.pending[:i], ib.pending[i+1:]...)
			ib.mu.Unlock()
			return env.tag, env.payload, nil
		}
		ready := ib.ready
		ib.mu.Unlock()

		select {
		case <-ctx.Done():
			return 0, nil, ctx.Err()
		case <-ready:
		}
	}
}

// probeHead peeks at the first pending envelope (from any source)
// without consuming it.
func (ib *inbox) probeHead(ctx context.Context) (int, wire.Tag, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, false, err
	}
	ib.mu.Lock()
	defer ib.mu.Unlock()
	if ib.closed {
		return 0, 0, false, coeerr.New(coeerr.KindProtocol, "transport.Probe", errClosed)
	}
	if len(ib.pending) == 0 {
		return 0, 0, false, nil
	}
	head := ib.pending[0]
	return head.from, head.tag, true, nil
}
