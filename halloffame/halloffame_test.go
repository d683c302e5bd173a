package halloffame_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coevolve/coevolve/codec"
	"github.com/coevolve/coevolve/deme"
	"github.com/coevolve/coevolve/halloffame"
)

func byFitnessDescending(a, b deme.Individual) int {
	af, bf := a.Fitness().(float64), b.Fitness().(float64)
	switch {
	case af > bf:
		return -1
	case af < bf:
		return 1
	default:
		return 0
	}
}

func scored(genotype int, fitness float64) *deme.Generic[int] {
	g := deme.NewGeneric(genotype)
	g.SetFitness(fitness)
	return g
}

func TestArchive_KeepsBestCapacity(t *testing.T) {
	a := halloffame.NewArchive(2, codec.JSON[int]{}, byFitnessDescending)

	require.NoError(t, a.Update([]deme.Individual{
		scored(1, 3.0), scored(2, 1.0), scored(3, 5.0),
	}))
	best := a.Best()
	require.Len(t, best, 2)
	assert.EqualValues(t, 5.0, best[0].Fitness())
	assert.EqualValues(t, 3.0, best[1].Fitness())

	require.NoError(t, a.Update([]deme.Individual{scored(4, 4.0)}))
	best = a.Best()
	require.Len(t, best, 2)
	assert.EqualValues(t, 5.0, best[0].Fitness())
	assert.EqualValues(t, 4.0, best[1].Fitness())
}

func TestArchive_SkipsInvalidFitness(t *testing.T) {
	a := halloffame.NewArchive(5, codec.JSON[int]{}, byFitnessDescending)
	invalid := deme.NewGeneric(9)
	require.NoError(t, a.Update([]deme.Individual{invalid, scored(1, 1.0)}))
	assert.Equal(t, 1, a.Len())
}

func TestArchive_ZeroCapacityDisabled(t *testing.T) {
	a := halloffame.NewArchive(0, codec.JSON[int]{}, byFitnessDescending)
	require.NoError(t, a.Update([]deme.Individual{scored(1, 100.0)}))
	assert.Equal(t, 0, a.Len())
}

func TestArchive_SnapshotIsolatesFutureMutation(t *testing.T) {
	a := halloffame.NewArchive(1, codec.JSON[int]{}, byFitnessDescending)
	ind := scored(1, 1.0)
	require.NoError(t, a.Update([]deme.Individual{ind}))

	ind.SetFitness(999.0)

	best := a.Best()
	require.Len(t, best, 1)
	assert.EqualValues(t, 1.0, best[0].Fitness())
}

func TestHallOfFame_UpdatesPerDemeAndGlobal(t *testing.T) {
	h := halloffame.New(2, 3, 2, codec.JSON[int]{}, byFitnessDescending)

	require.NoError(t, h.Update(0, []deme.Individual{scored(1, 1.0), scored(2, 2.0)}))
	require.NoError(t, h.Update(1, []deme.Individual{scored(3, 5.0)}))

	assert.Equal(t, 2, h.PerDeme[0].Len())
	assert.Equal(t, 1, h.PerDeme[1].Len())
	assert.Equal(t, 3, h.Global.Len())
	assert.EqualValues(t, 5.0, h.Global.Best()[0].Fitness())
}
