package codec

import (
	"encoding/json"
	"fmt"

	"github.com/coevolve/coevolve/deme"
)

// JSON is a default Codec for deme.Generic[G] individuals, using
// encoding/json. It is a reference implementation only: the engine
// treats all codecs as opaque, so applications with performance or
// type-fidelity requirements (e.g. preserving exact numeric types
// through a Fitness round trip) should supply their own.
type JSON[G any] struct{}

// jsonIndividual is the wire shape for a deme.Generic[G].
type jsonIndividual[G any] struct {
	Genotype G    `json:"genotype"`
	Fitness  any  `json:"fitness,omitempty"`
	Valid    bool `json:"valid"`
}

func (JSON[G]) EncodeIndividual(ind deme.Individual) ([]byte, error) {
	g, ok := ind.(*deme.Generic[G])
	if !ok {
		return nil, fmt.Errorf("codec: JSON.EncodeIndividual: unsupported individual type %T", ind)
	}
	wire := jsonIndividual[G]{Genotype: g.Genotype, Valid: g.FitnessValid()}
	if wire.Valid {
		wire.Fitness = g.Fitness()
	}
	return json.Marshal(wire)
}

func (JSON[G]) DecodeIndividual(b []byte) (deme.Individual, error) {
	var wire jsonIndividual[G]
	if err := json.Unmarshal(b, &wire); err != nil {
		return nil, fmt.Errorf("codec: JSON.DecodeIndividual: %w", err)
	}
	g := deme.NewGeneric(wire.Genotype)
	if wire.Valid {
		g.SetFitness(wire.Fitness)
	}
	return g, nil
}

func (JSON[G]) EncodeFitness(f deme.Fitness) ([]byte, error) {
	return json.Marshal(f)
}

func (JSON[G]) DecodeFitness(b []byte) (deme.Fitness, error) {
	var f any
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("codec: JSON.DecodeFitness: %w", err)
	}
	return f, nil
}
