// Package halloffame maintains per-deme and global archives of the
// best-ever individuals observed during a run, updated after every
// evaluation batch.
package halloffame

import (
	"sync"

	"golang.org/x/exp/slices"

	"github.com/coevolve/coevolve/codec"
	"github.com/coevolve/coevolve/deme"
)

// Compare orders two individuals by fitness quality: it must return a
// negative number if a is strictly better than b, zero if they are
// equivalent, and a positive number if b is better, matching the
// convention slices.SortFunc expects. Direction (is bigger fitness
// better?) is entirely up to the caller's application; this package
// has no opinion on it.
type Compare func(a, b deme.Individual) int

// Archive keeps the best Capacity individuals seen so far, ordered
// best-first. A Capacity of 0 disables the archive: Update becomes a
// no-op, matching the vivarium-hall-of-fame-size / deme-hall-of-fame-
// size configuration option semantics ("0 disables").
type Archive struct {
	Capacity int
	codec    codec.Codec
	compare  Compare

	mu      sync.Mutex
	entries []deme.Individual
}

// NewArchive constructs an Archive. c is used to snapshot individuals
// at insertion time (via an encode/decode round trip), so later
// mutation of the live population does not retroactively change an
// archived entry.
func NewArchive(capacity int, c codec.Codec, compare Compare) *Archive {
	return &Archive{Capacity: capacity, codec: c, compare: compare}
}

// Update considers every individual with a valid fitness in
// candidates for inclusion, then trims the archive back down to
// Capacity, keeping only the best entries by compare.
func (a *Archive) Update(candidates []deme.Individual) error {
	if a.Capacity <= 0 {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, ind := range candidates {
		if !ind.FitnessValid() {
			continue
		}
		snap, err := a.snapshot(ind)
		if err != nil {
			return err
		}
		a.entries = append(a.entries, snap)
	}
	slices.SortFunc(a.entries, a.compare)
	if len(a.entries) > a.Capacity {
		a.entries = a.entries[:a.Capacity]
	}
	return nil
}

func (a *Archive) snapshot(ind deme.Individual) (deme.Individual, error) {
	body, err := a.codec.EncodeIndividual(ind)
	if err != nil {
		return nil, err
	}
	return a.codec.DecodeIndividual(body)
}

// Best returns a copy of the archive's current contents, best first.
func (a *Archive) Best() []deme.Individual {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]deme.Individual, len(a.entries))
	copy(out, a.entries)
	return out
}

// Len reports the archive's current size.
func (a *Archive) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

// HallOfFame pairs one global Archive with one Archive per deme.
type HallOfFame struct {
	Global  *Archive
	PerDeme []*Archive
}

// New constructs a HallOfFame sized for demeCount demes. globalSize
// and perDemeSize are each 0 to disable that archive.
func New(demeCount, globalSize, perDemeSize int, c codec.Codec, compare Compare) *HallOfFame {
	perDeme := make([]*Archive, demeCount)
	for i := range perDeme {
		perDeme[i] = NewArchive(perDemeSize, c, compare)
	}
	return &HallOfFame{
		Global:  NewArchive(globalSize, c, compare),
		PerDeme: perDeme,
	}
}

// Update records one deme's evaluation batch in both that deme's
// archive and the global archive.
func (h *HallOfFame) Update(demeIndex int, candidates []deme.Individual) error {
	if err := h.PerDeme[demeIndex].Update(candidates); err != nil {
		return err
	}
	return h.Global.Update(candidates)
}
