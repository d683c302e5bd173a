// Package transport implements ordered, tagged message passing between
// the coordinator (rank 0) and its workers: a blocking, reliable Send,
// a blocking Recv pinned to a source, and a non-blocking Probe for any
// source.
//
// Two implementations are provided: an in-process fabric (package-local
// type Hub, useful for single-process runs and tests) and a TCP fabric
// (see tcp.go) for real multi-process deployment.
//
// Ordering guarantee: messages from source A to destination B are
// delivered in send order. No cross-source ordering is assumed or
// required.
package transport

import (
	"context"

	"github.com/coevolve/coevolve/wire"
)

// Transport is the messaging boundary between ranks. Rank 0 is always
// the coordinator; ranks [1, Size) are workers. Workers never send to
// each other.
type Transport interface {
	// Rank returns this endpoint's own rank.
	Rank() int
	// Size returns the total number of ranks (1 coordinator + N-1
	// workers).
	Size() int
	// Send reliably delivers payload to dest, tagged tag. Send is
	// ordered relative to other sends from this same rank to the same
	// dest. Send blocks at the application level until the message is
	// handed off (not necessarily until the destination reads it).
	Send(ctx context.Context, dest int, tag wire.Tag, payload []byte) error
	// Recv blocks until a message from source arrives, then returns
	// its payload. If the message at the head of source's queue
	// carries a different tag than tag, Recv returns a protocol error
	// (coeerr.Protocol) rather than silently accepting it: callers are
	// expected to already know, from the protocol's framing sequence,
	// which tag comes next.
	Recv(ctx context.Context, source int, tag wire.Tag) ([]byte, error)
	// RecvAny blocks until a message from source arrives, then returns
	// it regardless of tag. Unlike an any-source receive, source is
	// always pinned here. Only the tag is unknown to the caller, which is exactly a
	// worker's situation at the top of its service loop, where the
	// next header could be NbIndividuals, MessageSize, or
	// EvolutionEnd.
	RecvAny(ctx context.Context, source int) (tag wire.Tag, payload []byte, err error)
	// Probe performs a non-blocking poll for a message from any
	// source, without consuming it. ok is false if nothing is
	// currently pending. Probe exists specifically so the dispatch
	// engine can discover which worker to Recv from next, without
	// guessing or blocking; Recv itself is always pinned to an
	// explicit source.
	Probe(ctx context.Context) (source int, tag wire.Tag, ok bool, err error)
	// Close releases any resources associated with this endpoint. It
	// does not send or wait for any protocol-level shutdown message;
	// see package driver for that.
	Close() error
}
