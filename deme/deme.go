// Package deme implements the data model: Individual, Fitness, Deme,
// Vivarium, Context, and EvaluationSet, per the system's data model.
//
// Individual and Fitness are intentionally opaque to this package: the
// engine only relies on a fitness-valid flag and round-trippability via
// a Codec (see package codec). Application-specific genotype and
// fitness representations are supplied by callers.
package deme

// Fitness is an opaque value produced by evaluation. The only property
// the core relies on is round-trippability (via a Codec) and the
// valid/invalid flag tracked on the owning Individual.
type Fitness any

// Individual is implemented by user-defined candidate-solution types.
// Every Individual carries a fitness-valid flag; genotype access is
// entirely up to the application and is not modeled here.
type Individual interface {
	// FitnessValid reports whether Fitness returns a value installed by
	// a prior evaluation, as opposed to a zero/placeholder value.
	FitnessValid() bool
	// Fitness returns the currently installed fitness value, or nil if
	// FitnessValid is false.
	Fitness() Fitness
	// SetFitness installs f and marks the fitness valid.
	SetFitness(f Fitness)
	// ClearFitness marks the fitness invalid, e.g. after mutation.
	ClearFitness()
}

// Deme is one ordered subpopulation. Indices are stable within a
// generation between dispatch and receive; size does not change during
// a dispatch pass.
type Deme struct {
	Individuals []Individual
}

// NewDeme wraps individuals as a Deme. The slice is used directly
// (not copied); callers should not mutate its length while a dispatch
// pass is in flight.
func NewDeme(individuals []Individual) *Deme {
	return &Deme{Individuals: individuals}
}

// Len returns the number of individuals in the deme.
func (d *Deme) Len() int { return len(d.Individuals) }

// At returns the individual at index i.
func (d *Deme) At(i int) Individual { return d.Individuals[i] }

// Vivarium is the ordered set of all demes for a run. Deme count is
// fixed for the run.
type Vivarium struct {
	Demes []*Deme
}

// NewVivarium wraps demes as a Vivarium.
func NewVivarium(demes []*Deme) *Vivarium {
	return &Vivarium{Demes: demes}
}

// Len returns the number of demes in the vivarium.
func (v *Vivarium) Len() int { return len(v.Demes) }

// Context is per-generation scratch state, owned exclusively by the
// generational driver's dispatch thread (and, for workers, by the
// worker's own local copy). It is not safe for concurrent use by
// multiple goroutines without external synchronization.
type Context struct {
	// Generation is the current generation number.
	Generation int
	// DemeIndex is the index of the deme currently being processed.
	DemeIndex int
	// Processed counts fitness assignments since the last call to
	// ResetProcessed, i.e. within the current deme-evaluation pass.
	Processed int
	// TotalProcessed counts fitness assignments across all generations
	// since generation 0; it is carried forward across generations and
	// is never reset by ResetProcessed.
	TotalProcessed int
	// Continue is cleared by a termination-test operator to signal the
	// generational driver to stop after the current operator.
	Continue bool
}

// NewContext returns a Context with Continue set true and
// TotalProcessed seeded from priorTotalProcessed (0 if this is the
// first generation, or the value carried from prior run stats).
func NewContext(priorTotalProcessed int) *Context {
	return &Context{Continue: true, TotalProcessed: priorTotalProcessed}
}

// ResetProcessed zeroes Processed at the start of a new
// deme-evaluation pass. TotalProcessed is untouched.
func (c *Context) ResetProcessed() { c.Processed = 0 }

// IncrementProcessed increments both Processed and TotalProcessed by
// exactly one; callers must call this exactly once per individual
// fitness assignment.
func (c *Context) IncrementProcessed() {
	c.Processed++
	c.TotalProcessed++
}

// SetGeneration updates Generation, e.g. when a worker receives a new
// work unit's trailing generation number.
func (c *Context) SetGeneration(gen int) { c.Generation = gen }

// EvaluationSet is one subpopulation's contribution to a
// co-evolutionary joint fitness evaluation.
type EvaluationSet struct {
	// Individuals is the ordered sequence contributed by one producer.
	Individuals []Individual
	// Assignment selects which individual(s) receive the joint fitness:
	// 0 assigns to every individual in the set; k>0 assigns only to the
	// k-th individual (1-based).
	Assignment int
	// ProducerDemeID identifies the deme (subpopulation) that produced
	// this set. Insertion order into the rendezvous buffer is
	// unspecified; evaluators must use ProducerDemeID, not position, to
	// tell sets apart.
	ProducerDemeID int
}

// AssignFitness installs f on the individual(s) selected by Assignment,
// per spec: Assignment==0 clones f to every individual in the set;
// Assignment==k>0 assigns only to the k-th (1-based) individual.
func (s *EvaluationSet) AssignFitness(f Fitness) {
	if s.Assignment == 0 {
		for _, ind := range s.Individuals {
			ind.SetFitness(f)
		}
		return
	}
	s.Individuals[s.Assignment-1].SetFitness(f)
}
