// Package evalworker implements the Worker Service Loop that runs on
// every non-coordinator rank: receive a work unit, decode it, invoke
// the user-supplied evaluator, and reply with the encoded fitness,
// until the coordinator's shutdown tag arrives.
package evalworker

import (
	"context"
	"fmt"

	"github.com/coevolve/coevolve/codec"
	"github.com/coevolve/coevolve/coeerr"
	"github.com/coevolve/coevolve/deme"
	"github.com/coevolve/coevolve/transport"
	"github.com/coevolve/coevolve/wire"
)

// Evaluator computes the fitness of one individual in plain mode, or
// of a whole group in co-evolution mode (group has len 1 in plain
// mode). Any error returned is treated as fail-fast: the worker logs
// it and the process exits nonzero.
type Evaluator func(ctx context.Context, group []deme.Individual) (deme.Fitness, error)

// OnError is invoked once, with the triggering error, immediately
// before the Worker's Run returns it. Callers typically log and
// os.Exit(1) from here, matching spec's fail-fast policy; Worker
// itself never calls os.Exit so it stays testable.
type OnError func(err error)

// Worker runs the service loop for one non-coordinator rank.
type Worker struct {
	t    transport.Transport
	c    codec.Codec
	eval Evaluator
	ctx  *deme.Context
}

// New constructs a Worker. t must be this rank's own endpoint (rank >
// 0); the coordinator is always rank 0.
func New(t transport.Transport, c codec.Codec, eval Evaluator) *Worker {
	return &Worker{t: t, c: c, eval: eval, ctx: deme.NewContext(0)}
}

// Context returns the worker's local per-generation scratch state.
func (w *Worker) Context() *deme.Context { return w.ctx }

// Run drives the Idle → Receiving → Evaluating → Replying state
// machine until an EvolutionEnd message arrives (returns nil) or an
// unrecoverable error occurs (returns non-nil, after invoking onErr if
// non-nil).
func (w *Worker) Run(ctx context.Context, onErr OnError) error {
	for {
		if err := w.step(ctx); err != nil {
			if err == errShutdown {
				return nil
			}
			if onErr != nil {
				onErr(err)
			}
			return err
		}
	}
}

var errShutdown = fmt.Errorf("evalworker: shutdown")

// step runs one full Idle→...→Replying cycle, or returns errShutdown
// once EvolutionEnd is observed.
func (w *Worker) step(ctx context.Context) error {
	headerTag, headerBody, err := w.t.RecvAny(ctx, 0)
	if err != nil {
		return coeerr.New(coeerr.KindProtocol, "evalworker.step", err)
	}

	switch headerTag {
	case wire.TagEvolutionEnd:
		return errShutdown
	case wire.TagNbIndividuals:
		n, err := wire.DecodeUint64(headerBody)
		if err != nil {
			return coeerr.New(coeerr.KindDecode, "evalworker.step", err)
		}
		return w.receiveAndEvaluate(ctx, int(n))
	case wire.TagMessageSize:
		// Plain mode: the header we just read IS the first
		// MessageSize, not a count; rewind by treating it as the
		// length of the one individual to follow.
		return w.receivePlain(ctx, headerBody)
	default:
		return coeerr.New(coeerr.KindProtocol, "evalworker.step",
			fmt.Errorf("unexpected header tag %s", headerTag))
	}
}

func (w *Worker) receivePlain(ctx context.Context, sizeBody []byte) error {
	n, err := wire.DecodeUint64(sizeBody)
	if err != nil {
		return coeerr.New(coeerr.KindDecode, "evalworker.receivePlain", err)
	}
	payload, err := w.recvExact(ctx, wire.TagIndividual, int(n))
	if err != nil {
		return err
	}
	ind, err := w.c.DecodeIndividual(payload)
	if err != nil {
		return coeerr.New(coeerr.KindDecode, "evalworker.receivePlain", err)
	}
	gen, err := w.recvGeneration(ctx)
	if err != nil {
		return err
	}
	w.ctx.SetGeneration(gen)
	return w.evaluateAndReply(ctx, []deme.Individual{ind})
}

func (w *Worker) receiveAndEvaluate(ctx context.Context, k int) error {
	group := make([]deme.Individual, 0, k)
	for i := 0; i < k; i++ {
		sizeBody, err := w.t.Recv(ctx, 0, wire.TagMessageSize)
		if err != nil {
			return coeerr.New(coeerr.KindProtocol, "evalworker.receiveAndEvaluate", err)
		}
		n, err := wire.DecodeUint64(sizeBody)
		if err != nil {
			return coeerr.New(coeerr.KindDecode, "evalworker.receiveAndEvaluate", err)
		}
		payload, err := w.recvExact(ctx, wire.TagIndividual, int(n))
		if err != nil {
			return err
		}
		ind, err := w.c.DecodeIndividual(payload)
		if err != nil {
			return coeerr.New(coeerr.KindDecode, "evalworker.receiveAndEvaluate", err)
		}
		group = append(group, ind)
	}
	gen, err := w.recvGeneration(ctx)
	if err != nil {
		return err
	}
	w.ctx.SetGeneration(gen)
	return w.evaluateAndReply(ctx, group)
}

// recvExact reads a payload announced as n bytes. A sender may count
// a trailing null in the announced length (n = body size + 1), so a
// payload of n or n-1 bytes is accepted; the received payload's own
// length is authoritative.
func (w *Worker) recvExact(ctx context.Context, tag wire.Tag, n int) ([]byte, error) {
	b, err := w.t.Recv(ctx, 0, tag)
	if err != nil {
		return nil, coeerr.New(coeerr.KindProtocol, "evalworker.recvExact", err)
	}
	if len(b) != n && len(b)+1 != n {
		return nil, coeerr.New(coeerr.KindProtocol, "evalworker.recvExact",
			fmt.Errorf("announced length %d, got %d bytes", n, len(b)))
	}
	return b, nil
}

func (w *Worker) recvGeneration(ctx context.Context) (int, error) {
	b, err := w.t.Recv(ctx, 0, wire.TagMessageSize)
	if err != nil {
		return 0, coeerr.New(coeerr.KindProtocol, "evalworker.recvGeneration", err)
	}
	gen, err := wire.DecodeUint64(b)
	if err != nil {
		return 0, coeerr.New(coeerr.KindDecode, "evalworker.recvGeneration", err)
	}
	return int(gen), nil
}

func (w *Worker) evaluateAndReply(ctx context.Context, group []deme.Individual) error {
	fitness, err := w.eval(ctx, group)
	if err != nil {
		return coeerr.New(coeerr.KindEvaluator, "evalworker.evaluateAndReply", err)
	}
	body, err := w.c.EncodeFitness(fitness)
	if err != nil {
		return coeerr.New(coeerr.KindEvaluator, "evalworker.evaluateAndReply", err)
	}
	if err := w.t.Send(ctx, 0, wire.TagMessageSize, wire.EncodeUint64(uint64(len(body)))); err != nil {
		return coeerr.New(coeerr.KindProtocol, "evalworker.evaluateAndReply", err)
	}
	if err := w.t.Send(ctx, 0, wire.TagFitness, body); err != nil {
		return coeerr.New(coeerr.KindProtocol, "evalworker.evaluateAndReply", err)
	}
	return nil
}
