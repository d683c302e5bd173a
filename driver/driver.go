// Package driver implements the Generational Driver (rank 0 only) and
// the run-end shutdown broadcast. It owns the single deme cursor and
// generation counter for the life of a run and decides, after every
// operator, whether to keep applying the current pipeline, pivot to a
// different deme, advance the generation, or stop.
package driver

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/coevolve/coevolve/coeerr"
	"github.com/coevolve/coevolve/deme"
	"github.com/coevolve/coevolve/operator"
	"github.com/coevolve/coevolve/transport"
	"github.com/coevolve/coevolve/wire"
)

// Driver runs the generational loop on rank 0: generation 0 applies
// Bootstrap to each deme in turn, every later generation applies
// MainLoop. Population initialization, selection, mutation, migration,
// and termination tests are supplied by the caller as operators within
// those pipelines; this package only implements the cursor/generation
// bookkeeping and the three early-exit signals.
type Driver struct {
	Transport transport.Transport
	Bootstrap operator.Pipeline
	MainLoop  operator.Pipeline
}

// New constructs a Driver bound to t (t.Rank() must be 0).
func New(t transport.Transport, bootstrap, mainLoop operator.Pipeline) *Driver {
	return &Driver{Transport: t, Bootstrap: bootstrap, MainLoop: mainLoop}
}

// ResizeVivarium returns a Vivarium with one Deme per entry in sizes,
// each deme holding sizes[i] individuals. The individuals themselves
// start nil; population initialization is a pipeline concern (an
// application-supplied bootstrap operator), not this package's.
func ResizeVivarium(sizes []int) *deme.Vivarium {
	demes := make([]*deme.Deme, len(sizes))
	for i, n := range sizes {
		demes[i] = deme.NewDeme(make([]deme.Individual, n))
	}
	return deme.NewVivarium(demes)
}

// Run drives v through generations until an operator clears
// dctx.Continue or ctx is canceled, then broadcasts shutdown to every
// worker rank regardless of how the loop ended.
func (d *Driver) Run(ctx context.Context, v *deme.Vivarium, dctx *deme.Context) error {
	if d.Transport.Rank() != 0 {
		return coeerr.New(coeerr.KindConfiguration, "driver.Run",
			fmt.Errorf("generational driver must run on rank 0, got rank %d", d.Transport.Rank()))
	}

	runErr := d.runLoop(ctx, v, dctx)
	shutdownErr := d.Shutdown(ctx)
	if runErr != nil {
		return runErr
	}
	return shutdownErr
}

func (d *Driver) runLoop(ctx context.Context, v *deme.Vivarium, dctx *deme.Context) error {
	if v.Len() == 0 {
		return nil
	}
	for dctx.Continue {
		if err := ctx.Err(); err != nil {
			return err
		}

		pipeline := d.MainLoop
		if dctx.Generation == 0 {
			pipeline = d.Bootstrap
		}

		reason, err := pipeline.Apply(ctx, v.Demes[dctx.DemeIndex], dctx)
		if err != nil {
			return err
		}

		switch reason {
		case operator.ExitStopped:
			dctx.Continue = false
		case operator.ExitGenerationChanged:
			dctx.DemeIndex = 0
		case operator.ExitDemeChanged:
			// the operator already set dctx.DemeIndex; nothing to do.
		case operator.ExitNone:
			if dctx.DemeIndex == v.Len()-1 {
				dctx.Generation++
				dctx.DemeIndex = 0
			} else {
				dctx.DemeIndex++
			}
		}
	}
	return nil
}

// Shutdown sends one zero-length EvolutionEnd message to every worker
// rank [1..Size()). It is fire-and-forget: no acknowledgement is
// awaited, and a worker mid-evaluation at shutdown time simply has its
// final reply discarded (no slot is waiting for it on the coordinator
// side once DispatchDeme/DispatchSets has returned).
func (d *Driver) Shutdown(ctx context.Context) error {
	size := d.Transport.Size()
	if size <= 1 {
		return nil
	}
	g, ctx := errgroup.WithContext(ctx)
	for r := 1; r < size; r++ {
		r := r
		g.Go(func() error {
			if err := d.Transport.Send(ctx, r, wire.TagEvolutionEnd, nil); err != nil {
				return coeerr.New(coeerr.KindProtocol, "driver.Shutdown", err)
			}
			return nil
		})
	}
	return g.Wait()
}
