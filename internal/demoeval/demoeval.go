// Package demoeval supplies a reference fitness function and
// population initializer so cmd/coevolve-coordinator and
// cmd/coevolve-worker are runnable end to end without an
// application-supplied genetic algorithm plugged in. Selection,
// mutation, migration, and termination tests are genetic-algorithm
// internals the core module leaves to the caller (spec.md §1
// Non-goals); this package is that caller, trimmed to the smallest
// evaluator that still exercises the whole pipeline: the sphere
// function, minimized at the zero vector.
package demoeval

import (
	"context"
	"math/rand"

	"github.com/coevolve/coevolve/deme"
)

// Genotype is the candidate representation this reference evaluator
// operates on: a fixed-length vector of real numbers.
type Genotype = []float64

// Sphere computes the sphere function: the sum of squares of group's
// single individual's genotype. It is the Evaluator both
// cmd/coevolve-coordinator (single-rank fallback) and
// cmd/coevolve-worker wire in.
func Sphere(_ context.Context, group []deme.Individual) (deme.Fitness, error) {
	g := group[0].(*deme.Generic[Genotype]).Genotype
	sum := 0.0
	for _, x := range g {
		sum += x * x
	}
	return sum, nil
}

// SeedDeme fills every nil individual slot in d with a random
// dimension-length vector in [-5, 5], giving the bootstrap pipeline a
// starting population.
func SeedDeme(d *deme.Deme, dimension int, rng *rand.Rand) {
	for i := 0; i < d.Len(); i++ {
		if d.At(i) != nil {
			continue
		}
		g := make(Genotype, dimension)
		for j := range g {
			g[j] = rng.Float64()*10 - 5
		}
		d.Individuals[i] = deme.NewGeneric(g)
	}
}
