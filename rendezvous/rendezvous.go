// Package rendezvous implements the co-evolution rendezvous point: a
// shared buffer that blocks concurrent producer ("deme") goroutines
// until exactly trigger evaluation sets have arrived, then atomically
// triggers a joint evaluation and releases every waiter.
//
// The buffer is the only shared mutable state in this system; all
// access is serialized by its own mutex. Unlike the Dispatch Engine,
// which is driven by a single goroutine, AddSet is meant to be called
// concurrently by one goroutine per co-evolving subpopulation.
package rendezvous

import (
	"context"
	"fmt"
	"sync"

	"github.com/coevolve/coevolve/coeerr"
	"github.com/coevolve/coevolve/deme"
)

// EvaluateFunc performs the joint evaluation of sets once the buffer
// has accumulated exactly trigger of them: it fills in each set's
// fitness (typically by driving package dispatch's Engine.DispatchSets)
// and reports any failure. It is supplied by the caller; this package
// treats it as an opaque collaborator.
type EvaluateFunc func(ctx context.Context, sets []*deme.EvaluationSet) error

// Buffer is the rendezvous barrier for one trigger value. Use New for
// an explicit, unshared instance, or Get for the process-wide
// singleton.
type Buffer struct {
	trigger  int
	evaluate EvaluateFunc

	mu      sync.Mutex
	pending []*deme.EvaluationSet
	ready   chan struct{}
}

// New constructs an explicit, unshared rendezvous buffer. trigger must
// be set once here and never changes for the life of the buffer.
func New(trigger int, evaluate EvaluateFunc) *Buffer {
	return &Buffer{trigger: trigger, evaluate: evaluate, ready: make(chan struct{})}
}

// Trigger returns the number of evaluation sets this buffer waits for
// before firing a joint evaluation.
func (b *Buffer) Trigger() int { return b.trigger }

var (
	singletonMu sync.Mutex
	singleton   *Buffer
)

// Get returns the process-wide singleton Buffer, constructing it on
// the first call. Every later call must pass the same trigger or 0; a call with
// a different nonzero trigger than the one the singleton was first
// constructed with is a Configuration error. evaluate from later calls
// is ignored once the singleton exists: first-caller-wins covers the
// whole buffer identity, not just its trigger.
func Get(trigger int, evaluate EvaluateFunc) (*Buffer, error) {
	singletonMu.Lock()
	defer singletonMu.Unlock()
	if singleton == nil {
		singleton = New(trigger, evaluate)
		return singleton, nil
	}
	if trigger != 0 && singleton.trigger != trigger {
		return nil, coeerr.New(coeerr.KindConfiguration, "rendezvous.Get",
			fmt.Errorf("singleton already initialized with trigger %d, got %d", singleton.trigger, trigger))
	}
	return singleton, nil
}

// ResetSingleton discards the process-wide singleton. Intended for
// test isolation between independent simulated runs within the same
// process; production code has no reason to call it.
func ResetSingleton() {
	singletonMu.Lock()
	defer singletonMu.Unlock()
	singleton = nil
}

// wake releases every goroutine currently blocked in AddSet on this
// buffer; must be called with mu held. Uses the same replace-and-close
// broadcast idiom as package transport's inbox, since a plain
// sync.Cond cannot be selected on alongside ctx.Done.
func (b *Buffer) wake() {
	close(b.ready)
	b.ready = make(chan struct{})
}

// AddSet appends set to the buffer. If this call fills the buffer to
// exactly Trigger, it invokes evaluate on the whole accumulated batch,
// clears the buffer, and wakes every waiter; it returns whatever
// evaluate returned. Otherwise, if blocking is true,
// AddSet waits until some other caller's AddSet drains the buffer
// before returning; if blocking is false, it returns immediately,
// leaving its set queued for a future trigger.
func (b *Buffer) AddSet(ctx context.Context, set *deme.EvaluationSet, blocking bool) error {
	b.mu.Lock()
	if b.trigger == 0 {
		b.mu.Unlock()
		return coeerr.New(coeerr.KindConfiguration, "rendezvous.AddSet",
			fmt.Errorf("trigger is 0"))
	}
	if len(b.pending) >= b.trigger {
		b.mu.Unlock()
		return coeerr.New(coeerr.KindInvariant, "rendezvous.AddSet",
			fmt.Errorf("oversubscribed: buffer already holds %d of trigger %d", len(b.pending), b.trigger))
	}

	b.pending = append(b.pending, set)
	if len(b.pending) < b.trigger {
		if !blocking {
			b.mu.Unlock()
			return nil
		}
		ready := b.ready
		b.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ready:
			return nil
		}
	}

	sets := b.pending
	b.pending = nil
	err := b.evaluate(ctx, sets)
	b.wake()
	b.mu.Unlock()
	if err != nil {
		return coeerr.New(coeerr.KindEvaluator, "rendezvous.AddSet", err)
	}
	return nil
}
