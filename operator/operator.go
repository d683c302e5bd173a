// Package operator flattens the deep operator-class inheritance the
// source models (selector, mutator, migration step, stats calculator,
// termination test, milestone writer, fitness evaluator) into one
// tagged variant: every operator is anything with an Apply method, and
// a Pipeline is just an ordered sequence of them.
package operator

import (
	"context"
	"fmt"

	"github.com/coevolve/coevolve/deme"
)

// Operator is one step of a bootstrap or main-loop pipeline. Apply may
// mutate d and dctx, including dctx.Continue (to signal run
// termination), dctx.DemeIndex (to pivot to a different deme), or
// dctx.Generation (to advance time) — the driver honors all three as
// early-exit signals after every operator (see ExitReason).
type Operator interface {
	Name() string
	Apply(ctx context.Context, d *deme.Deme, dctx *deme.Context) error
}

// ExitReason reports why a Pipeline.Apply returned before running
// every operator.
type ExitReason int

const (
	// ExitNone means every operator in the pipeline ran.
	ExitNone ExitReason = iota
	// ExitStopped means an operator cleared dctx.Continue.
	ExitStopped
	// ExitDemeChanged means an operator changed dctx.DemeIndex.
	ExitDemeChanged
	// ExitGenerationChanged means an operator changed dctx.Generation.
	ExitGenerationChanged
)

func (r ExitReason) String() string {
	switch r {
	case ExitNone:
		return "none"
	case ExitStopped:
		return "stopped"
	case ExitDemeChanged:
		return "deme-changed"
	case ExitGenerationChanged:
		return "generation-changed"
	default:
		return fmt.Sprintf("ExitReason(%d)", int(r))
	}
}

// Pipeline is an ordered sequence of operators, run once per deme per
// generation by the driver.
type Pipeline []Operator

// Apply runs each operator in order against d and dctx, honoring the
// three early-exit signals after every operator: Continue cleared,
// DemeIndex changed, or Generation changed. It returns which signal (if
// any) caused it to stop short of the end of the pipeline.
func (p Pipeline) Apply(ctx context.Context, d *deme.Deme, dctx *deme.Context) (ExitReason, error) {
	for _, op := range p {
		demeIndexBefore, genBefore := dctx.DemeIndex, dctx.Generation
		if err := op.Apply(ctx, d, dctx); err != nil {
			return ExitNone, fmt.Errorf("operator: %s: %w", op.Name(), err)
		}
		if !dctx.Continue {
			return ExitStopped, nil
		}
		if dctx.DemeIndex != demeIndexBefore {
			return ExitDemeChanged, nil
		}
		if dctx.Generation != genBefore {
			return ExitGenerationChanged, nil
		}
	}
	return ExitNone, nil
}

// FuncOperator adapts a plain function to Operator, for pipelines
// assembled from simple closures (selection, mutation, migration, and
// termination-test steps are genetic-algorithm-specific and out of
// scope here; callers supply their own via FuncOperator).
type FuncOperator struct {
	OpName string
	Fn     func(ctx context.Context, d *deme.Deme, dctx *deme.Context) error
}

func (f FuncOperator) Name() string { return f.OpName }

func (f FuncOperator) Apply(ctx context.Context, d *deme.Deme, dctx *deme.Context) error {
	return f.Fn(ctx, d, dctx)
}

// StatsOperator is a no-op placeholder for a per-generation statistics
// calculator, kept so bootstrap/main-loop pipelines can be composed and
// tested end-to-end without a real stats backend (persistence is out
// of scope).
type StatsOperator struct{}

func (StatsOperator) Name() string { return "stats" }
func (StatsOperator) Apply(context.Context, *deme.Deme, *deme.Context) error {
	return nil
}

// MilestoneOperator is a no-op placeholder for a generation-persistence
// step; real milestone writing is out of scope.
type MilestoneOperator struct{}

func (MilestoneOperator) Name() string { return "milestone" }
func (MilestoneOperator) Apply(context.Context, *deme.Deme, *deme.Context) error {
	return nil
}
