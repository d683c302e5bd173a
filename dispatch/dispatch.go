// Package dispatch implements the coordinator-side Dispatch Engine:
// an overlapped send/receive loop that streams individuals (or, in
// co-evolution mode, evaluation sets) out to idle workers and maps
// replies back to their origin by a slot table, regardless of the
// order workers reply in.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/coevolve/coevolve/codec"
	"github.com/coevolve/coevolve/coeerr"
	"github.com/coevolve/coevolve/deme"
	"github.com/coevolve/coevolve/transport"
	"github.com/coevolve/coevolve/wire"
)

// Evaluator computes the fitness of one individual (plain mode) or one
// evaluation set's group (co-evolution mode). It has the same shape as
// evalworker.Evaluator; it is redeclared here rather than imported so
// the coordinator-side and worker-side packages stay independent of
// each other. Used only for the N==1 direct-evaluation fallback.
type Evaluator func(ctx context.Context, group []deme.Individual) (deme.Fitness, error)

const idle = -1
const self = -2

// defaultPollInterval bounds how long the main loop sleeps between
// probes when neither a send nor a receive made progress. It emulates
// a blocking probe on top of Transport's true non-blocking one, kept
// well below typical evaluator latency so overlap is preserved.
const defaultPollInterval = 200 * time.Microsecond

// Engine drives one coordinator-side dispatch pass at a time. It is
// not safe for concurrent Dispatch calls; the coordinator's dispatch
// thread is single-threaded per spec.
type Engine struct {
	t        transport.Transport
	c        codec.Codec
	fallback Evaluator
	slot     []int

	// PollInterval overrides defaultPollInterval if nonzero.
	PollInterval time.Duration
}

// NewEngine constructs an Engine bound to t (t.Rank() must be 0) and
// c. fallback is used only when t.Size() == 1, for the direct
// in-process evaluation fallback; it may be nil if the engine will
// never run with a single rank.
func NewEngine(t transport.Transport, c codec.Codec, fallback Evaluator) (*Engine, error) {
	if t.Size() < 1 {
		return nil, coeerr.New(coeerr.KindConfiguration, "dispatch.NewEngine", fmt.Errorf("size must be >= 1"))
	}
	if t.Rank() != 0 {
		return nil, coeerr.New(coeerr.KindConfiguration, "dispatch.NewEngine", fmt.Errorf("dispatch engine must run on rank 0, got rank %d", t.Rank()))
	}
	slot := make([]int, t.Size())
	for i := range slot {
		slot[i] = idle
	}
	slot[0] = self
	return &Engine{t: t, c: c, fallback: fallback, slot: slot}, nil
}

// DispatchDeme runs one plain-mode dispatch pass over d: individuals
// already carrying a valid fitness are skipped (never sent), and
// dctx's Processed/TotalProcessed counters advance by exactly the
// number actually (re-)evaluated.
func (e *Engine) DispatchDeme(ctx context.Context, d *deme.Deme, dctx *deme.Context, generation int) error {
	return e.run(ctx, demeUnits{d: d}, dctx, generation)
}

// DispatchSets runs one co-evolution dispatch pass over sets: every
// set is always sent (there is no valid-fitness skip in co-evolution
// mode), and each reply's fitness is installed via the set's own
// Assignment semantics.
func (e *Engine) DispatchSets(ctx context.Context, sets []*deme.EvaluationSet, dctx *deme.Context, generation int) error {
	return e.run(ctx, setUnits{sets: sets}, dctx, generation)
}

func (e *Engine) run(ctx context.Context, u units, dctx *deme.Context, generation int) error {
	if u.len() == 0 {
		return nil
	}
	if len(e.slot) == 1 {
		return e.runFallback(ctx, u, dctx)
	}

	cursor := 0
	sent, received := 0, 0
	allSent := false

	for {
		progressed := false

		if !allSent {
			for cursor < u.len() && !u.needsEval(cursor) {
				cursor++
			}
			if cursor >= u.len() {
				allSent = true
			} else if w := e.firstIdleSlot(); w != idle {
				if err := e.sendUnit(ctx, u, cursor, w, generation); err != nil {
					return err
				}
				e.slot[w] = cursor
				sent++
				cursor++
				progressed = true
				if cursor >= u.len() {
					for cursor < u.len() && !u.needsEval(cursor) {
						cursor++
					}
					if cursor >= u.len() {
						allSent = true
					}
				}
			}
		}

		source, tag, ok, err := e.t.Probe(ctx)
		if err != nil {
			return coeerr.New(coeerr.KindProtocol, "dispatch.run", err)
		}
		if ok {
			if err := e.receiveOne(ctx, u, dctx, source, tag); err != nil {
				return err
			}
			received++
			progressed = true
		}

		if received >= sent && allSent {
			return nil
		}
		if !progressed {
			if err := sleepOrCancel(ctx, e.pollInterval()); err != nil {
				return err
			}
		}
	}
}

func (e *Engine) pollInterval() time.Duration {
	if e.PollInterval > 0 {
		return e.PollInterval
	}
	return defaultPollInterval
}

func sleepOrCancel(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// firstIdleSlot returns the lowest-indexed worker rank whose slot is
// idle, or idle (-1) if every worker is busy.
func (e *Engine) firstIdleSlot() int {
	for w := 1; w < len(e.slot); w++ {
		if e.slot[w] == idle {
			return w
		}
	}
	return idle
}

func (e *Engine) sendUnit(ctx context.Context, u units, i, dest, generation int) error {
	un, err := u.encode(e.c, i)
	if err != nil {
		return coeerr.New(coeerr.KindEvaluator, "dispatch.sendUnit", err)
	}
	if err := e.t.Send(ctx, dest, un.headerTag, un.headerBody); err != nil {
		return coeerr.New(coeerr.KindProtocol, "dispatch.sendUnit", err)
	}
	if err := un.send(ctx, e.t, dest); err != nil {
		return coeerr.New(coeerr.KindProtocol, "dispatch.sendUnit", err)
	}
	if err := e.t.Send(ctx, dest, wire.TagMessageSize, wire.EncodeUint64(uint64(generation))); err != nil {
		return coeerr.New(coeerr.KindProtocol, "dispatch.sendUnit", err)
	}
	return nil
}

func (e *Engine) receiveOne(ctx context.Context, u units, dctx *deme.Context, source int, tag wire.Tag) error {
	if tag != wire.TagMessageSize {
		return coeerr.New(coeerr.KindProtocol, "dispatch.receiveOne",
			fmt.Errorf("unexpected reply header tag %s from rank %d", tag, source))
	}
	sizeBody, err := e.t.Recv(ctx, source, wire.TagMessageSize)
	if err != nil {
		return coeerr.New(coeerr.KindProtocol, "dispatch.receiveOne", err)
	}
	n, err := wire.DecodeUint64(sizeBody)
	if err != nil {
		return coeerr.New(coeerr.KindDecode, "dispatch.receiveOne", err)
	}
	body, err := e.t.Recv(ctx, source, wire.TagFitness)
	if err != nil {
		return coeerr.New(coeerr.KindProtocol, "dispatch.receiveOne", err)
	}
	// The announced length may count a trailing null (body size + 1).
	if len(body) != int(n) && len(body)+1 != int(n) {
		return coeerr.New(coeerr.KindProtocol, "dispatch.receiveOne",
			fmt.Errorf("announced fitness length %d, got %d bytes", n, len(body)))
	}

	origin := e.slot[source]
	e.slot[source] = idle

	count, err := u.assignBytes(origin, e.c, body)
	if err != nil {
		return coeerr.New(coeerr.KindDecode, "dispatch.receiveOne", err)
	}
	for i := 0; i < count; i++ {
		dctx.IncrementProcessed()
	}
	return nil
}

func (e *Engine) runFallback(ctx context.Context, u units, dctx *deme.Context) error {
	if e.fallback == nil {
		return coeerr.New(coeerr.KindConfiguration, "dispatch.runFallback",
			fmt.Errorf("no fallback evaluator configured for a single-rank run"))
	}
	for i := 0; i < u.len(); i++ {
		if !u.needsEval(i) {
			continue
		}
		f, err := e.fallback(ctx, u.group(i))
		if err != nil {
			return coeerr.New(coeerr.KindEvaluator, "dispatch.runFallback", err)
		}
		count := u.assignValue(i, f)
		for j := 0; j < count; j++ {
			dctx.IncrementProcessed()
		}
	}
	return nil
}
