package driver_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/coevolve/coevolve/codec"
	"github.com/coevolve/coevolve/deme"
	"github.com/coevolve/coevolve/dispatch"
	"github.com/coevolve/coevolve/driver"
	"github.com/coevolve/coevolve/evalworker"
	"github.com/coevolve/coevolve/operator"
	"github.com/coevolve/coevolve/transport"
	"github.com/coevolve/coevolve/wire"
)

func doubleEval(_ context.Context, group []deme.Individual) (deme.Fitness, error) {
	return group[0].(*deme.Generic[int]).Genotype * 2, nil
}

func populate(v *deme.Vivarium, values [][]int) {
	for i, vals := range values {
		inds := make([]deme.Individual, len(vals))
		for j, n := range vals {
			inds[j] = deme.NewGeneric(n)
		}
		v.Demes[i] = deme.NewDeme(inds)
	}
}

func TestResizeVivarium_Shape(t *testing.T) {
	v := driver.ResizeVivarium([]int{2, 3, 1})
	require.Equal(t, 3, v.Len())
	assert.Equal(t, 2, v.Demes[0].Len())
	assert.Equal(t, 3, v.Demes[1].Len())
	assert.Equal(t, 1, v.Demes[2].Len())
}

func TestDriver_Run_StopsAfterTerminationTest(t *testing.T) {
	hub := transport.NewHub(2)
	defer hub.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		w := evalworker.New(hub.Endpoint(1), codec.JSON[int]{}, doubleEval)
		return w.Run(gctx, nil)
	})

	engine, err := dispatch.NewEngine(hub.Endpoint(0), codec.JSON[int]{}, nil)
	require.NoError(t, err)

	terminationTest := operator.FuncOperator{OpName: "termination-test", Fn: func(_ context.Context, _ *deme.Deme, dctx *deme.Context) error {
		if dctx.Generation >= 2 {
			dctx.Continue = false
		}
		return nil
	}}
	mainLoop := operator.Pipeline{&operator.EvaluatorOperator{Engine: engine}, terminationTest}
	bootstrap := operator.Pipeline{&operator.EvaluatorOperator{Engine: engine}}

	v := driver.ResizeVivarium([]int{2, 2})
	populate(v, [][]int{{1, 2}, {3, 4}})

	d := driver.New(hub.Endpoint(0), bootstrap, mainLoop)
	dctx := deme.NewContext(0)

	require.NoError(t, d.Run(ctx, v, dctx))
	assert.Equal(t, 2, dctx.Generation)
	assert.False(t, dctx.Continue)

	for _, dm := range v.Demes {
		for _, ind := range dm.Individuals {
			assert.True(t, ind.FitnessValid())
		}
	}

	select {
	case <-gctx.Done():
	case <-time.After(time.Second):
	}
	assert.NoError(t, g.Wait())
}

func TestDriver_Run_AdvancesGenerationAfterLastDeme(t *testing.T) {
	hub := transport.NewHub(1)
	defer hub.Close()

	engine, err := dispatch.NewEngine(hub.Endpoint(0), codec.JSON[int]{}, doubleEval)
	require.NoError(t, err)

	var seenDemes []int
	record := operator.FuncOperator{OpName: "record", Fn: func(_ context.Context, _ *deme.Deme, dctx *deme.Context) error {
		seenDemes = append(seenDemes, dctx.DemeIndex)
		if dctx.Generation >= 1 {
			dctx.Continue = false
		}
		return nil
	}}
	pipeline := operator.Pipeline{&operator.EvaluatorOperator{Engine: engine}, record}

	v := driver.ResizeVivarium([]int{1, 1, 1})
	populate(v, [][]int{{1}, {2}, {3}})

	d := driver.New(hub.Endpoint(0), pipeline, pipeline)
	dctx := deme.NewContext(0)

	require.NoError(t, d.Run(context.Background(), v, dctx))
	assert.Equal(t, []int{0, 1, 2, 0}, seenDemes)
	assert.Equal(t, 1, dctx.Generation)
}

func TestDriver_Run_RejectsNonZeroRank(t *testing.T) {
	hub := transport.NewHub(2)
	defer hub.Close()
	d := driver.New(hub.Endpoint(1), nil, nil)
	err := d.Run(context.Background(), driver.ResizeVivarium([]int{1}), deme.NewContext(0))
	require.Error(t, err)
}

func TestDriver_Shutdown_SendsToEveryWorker(t *testing.T) {
	hub := transport.NewHub(3)
	defer hub.Close()
	d := driver.New(hub.Endpoint(0), nil, nil)
	require.NoError(t, d.Shutdown(context.Background()))

	for r := 1; r < 3; r++ {
		tag, _, err := hub.Endpoint(r).RecvAny(context.Background(), 0)
		require.NoError(t, err)
		assert.Equal(t, wire.TagEvolutionEnd, tag)
	}
}
