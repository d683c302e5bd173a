package operator_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/coevolve/coevolve/codec"
	"github.com/coevolve/coevolve/deme"
	"github.com/coevolve/coevolve/dispatch"
	"github.com/coevolve/coevolve/evalworker"
	"github.com/coevolve/coevolve/operator"
	"github.com/coevolve/coevolve/transport"
	"github.com/coevolve/coevolve/wire"
)

func noop(name string) operator.FuncOperator {
	return operator.FuncOperator{OpName: name, Fn: func(context.Context, *deme.Deme, *deme.Context) error { return nil }}
}

func TestPipeline_Apply_RunsAllOperators(t *testing.T) {
	var ran []string
	record := func(name string) operator.FuncOperator {
		return operator.FuncOperator{OpName: name, Fn: func(context.Context, *deme.Deme, *deme.Context) error {
			ran = append(ran, name)
			return nil
		}}
	}
	p := operator.Pipeline{record("a"), record("b"), record("c")}
	dctx := deme.NewContext(0)

	reason, err := p.Apply(context.Background(), deme.NewDeme(nil), dctx)
	require.NoError(t, err)
	assert.Equal(t, operator.ExitNone, reason)
	assert.Equal(t, []string{"a", "b", "c"}, ran)
}

func TestPipeline_Apply_StopsOnContinueFalse(t *testing.T) {
	stop := operator.FuncOperator{OpName: "stop", Fn: func(_ context.Context, _ *deme.Deme, dctx *deme.Context) error {
		dctx.Continue = false
		return nil
	}}
	after := false
	afterOp := operator.FuncOperator{OpName: "after", Fn: func(context.Context, *deme.Deme, *deme.Context) error {
		after = true
		return nil
	}}
	p := operator.Pipeline{noop("before"), stop, afterOp}
	dctx := deme.NewContext(0)

	reason, err := p.Apply(context.Background(), deme.NewDeme(nil), dctx)
	require.NoError(t, err)
	assert.Equal(t, operator.ExitStopped, reason)
	assert.False(t, after)
}

func TestPipeline_Apply_StopsOnDemeIndexChanged(t *testing.T) {
	pivot := operator.FuncOperator{OpName: "pivot", Fn: func(_ context.Context, _ *deme.Deme, dctx *deme.Context) error {
		dctx.DemeIndex = 1
		return nil
	}}
	p := operator.Pipeline{pivot, noop("unreached")}
	dctx := deme.NewContext(0)

	reason, err := p.Apply(context.Background(), deme.NewDeme(nil), dctx)
	require.NoError(t, err)
	assert.Equal(t, operator.ExitDemeChanged, reason)
}

func TestPipeline_Apply_StopsOnGenerationChanged(t *testing.T) {
	advance := operator.FuncOperator{OpName: "advance", Fn: func(_ context.Context, _ *deme.Deme, dctx *deme.Context) error {
		dctx.Generation++
		return nil
	}}
	p := operator.Pipeline{advance, noop("unreached")}
	dctx := deme.NewContext(0)

	reason, err := p.Apply(context.Background(), deme.NewDeme(nil), dctx)
	require.NoError(t, err)
	assert.Equal(t, operator.ExitGenerationChanged, reason)
}

func TestPipeline_Apply_PropagatesError(t *testing.T) {
	wantErr := errors.New("boom")
	failing := operator.FuncOperator{OpName: "failing", Fn: func(context.Context, *deme.Deme, *deme.Context) error {
		return wantErr
	}}
	p := operator.Pipeline{failing}
	dctx := deme.NewContext(0)

	_, err := p.Apply(context.Background(), deme.NewDeme(nil), dctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, wantErr)
}

func TestEvaluatorOperator_DispatchesAndResetsProcessed(t *testing.T) {
	hub := transport.NewHub(2)
	defer hub.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		w := evalworker.New(hub.Endpoint(1), codec.JSON[int]{}, func(_ context.Context, group []deme.Individual) (deme.Fitness, error) {
			return group[0].(*deme.Generic[int]).Genotype * 2, nil
		})
		return w.Run(gctx, nil)
	})

	engine, err := dispatch.NewEngine(hub.Endpoint(0), codec.JSON[int]{}, nil)
	require.NoError(t, err)
	op := &operator.EvaluatorOperator{Engine: engine}

	d := deme.NewDeme([]deme.Individual{deme.NewGeneric(5), deme.NewGeneric(7)})
	dctx := deme.NewContext(0)
	dctx.Processed = 99

	require.NoError(t, op.Apply(ctx, d, dctx))
	assert.Equal(t, 2, dctx.Processed)
	assert.EqualValues(t, 10, d.At(0).Fitness())
	assert.EqualValues(t, 14, d.At(1).Fitness())

	require.NoError(t, hub.Endpoint(0).Send(ctx, 1, wire.TagEvolutionEnd, nil))
	require.NoError(t, g.Wait())
}

func TestStatsAndMilestoneOperators_AreNoOps(t *testing.T) {
	p := operator.Pipeline{operator.StatsOperator{}, operator.MilestoneOperator{}}
	dctx := deme.NewContext(0)
	d := deme.NewDeme([]deme.Individual{deme.NewGeneric(1)})

	reason, err := p.Apply(context.Background(), d, dctx)
	require.NoError(t, err)
	assert.Equal(t, operator.ExitNone, reason)
	assert.False(t, d.At(0).FitnessValid())
}
