package operator

import (
	"context"

	"github.com/coevolve/coevolve/deme"
	"github.com/coevolve/coevolve/dispatch"
)

// EvaluatorOperator runs one plain-mode dispatch pass over the current
// deme, via a *dispatch.Engine. It is the pipeline step that actually
// fans individuals out to workers (or the single-rank fallback);
// selection, mutation, migration, and termination-test steps are
// composed around it by the caller.
type EvaluatorOperator struct {
	Engine *dispatch.Engine
}

func (e *EvaluatorOperator) Name() string { return "evaluator" }

func (e *EvaluatorOperator) Apply(ctx context.Context, d *deme.Deme, dctx *deme.Context) error {
	dctx.ResetProcessed()
	return e.Engine.DispatchDeme(ctx, d, dctx, dctx.Generation)
}
