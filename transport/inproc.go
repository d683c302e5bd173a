package transport

import (
	"context"

	"github.com/coevolve/coevolve/coeerr"
	"github.com/coevolve/coevolve/wire"
)

// Hub is an in-process message fabric connecting Size() ranks by
// per-destination inboxes. It is the Transport used for single-process
// runs (including the N==1 direct-evaluation fallback's sibling tests)
// and for exercising the dispatch engine, rendezvous, and driver
// without a network.
type Hub struct {
	size   int
	inboxs []*inbox
}

// NewHub creates an in-process fabric for size ranks (1 coordinator at
// rank 0, plus size-1 workers).
func NewHub(size int) *Hub {
	if size < 1 {
		panic("transport: NewHub: size must be >= 1")
	}
	h := &Hub{size: size, inboxs: make([]*inbox, size)}
	for i := range h.inboxs {
		h.inboxs[i] = newInbox()
	}
	return h
}

// Endpoint returns the Transport view of the fabric for the given
// rank.
func (h *Hub) Endpoint(rank int) Transport {
	if rank < 0 || rank >= h.size {
		panic("transport: Endpoint: rank out of range")
	}
	return &inprocEndpoint{hub: h, rank: rank}
}

// Close shuts down every inbox, causing any blocked Recv/Probe calls to
// return an error; used for test teardown.
func (h *Hub) Close() {
	for _, ib := range h.inboxs {
		ib.close()
	}
}

type inprocEndpoint struct {
	hub  *Hub
	rank int
}

func (e *inprocEndpoint) Rank() int { return e.rank }
func (e *inprocEndpoint) Size() int { return e.hub.size }

func (e *inprocEndpoint) Send(ctx context.Context, dest int, tag wire.Tag, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if dest < 0 || dest >= e.hub.size {
		return coeerr.New(coeerr.KindProtocol, "transport.Send", errOutOfRange)
	}
	body := make([]byte, len(payload))
	copy(body, payload)
	return e.hub.inboxs[dest].push(envelope{from: e.rank, tag: tag, payload: body})
}

func (e *inprocEndpoint) Recv(ctx context.Context, source int, tag wire.Tag) ([]byte, error) {
	return e.hub.inboxs[e.rank].recv(ctx, source, tag)
}

func (e *inprocEndpoint) RecvAny(ctx context.Context, source int) (wire.Tag, []byte, error) {
	return e.hub.inboxs[e.rank].recvAny(ctx, source)
}

func (e *inprocEndpoint) Probe(ctx context.Context) (int, wire.Tag, bool, error) {
	return e.hub.inboxs[e.rank].probeHead(ctx)
}

func (e *inprocEndpoint) Close() error { return nil }
