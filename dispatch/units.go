package dispatch

import (
	"context"

	"github.com/coevolve/coevolve/codec"
	"github.com/coevolve/coevolve/deme"
	"github.com/coevolve/coevolve/transport"
	"github.com/coevolve/coevolve/wire"
)

// unit is one encoded work item ready to send: a header (MessageSize
// in plain mode, NbIndividuals in co-evolution mode) followed by
// whatever per-individual MessageSize/Individual pairs send emits.
type unit struct {
	headerTag  wire.Tag
	headerBody []byte
	send       func(ctx context.Context, t transport.Transport, dest int) error
}

// units abstracts over a plain deme and a co-evolution set list so the
// Engine's overlap loop (dispatch.go) is written once.
type units interface {
	len() int
	// needsEval reports whether item i must be sent at all; plain mode
	// skips individuals with an already-valid fitness, co-evolution
	// mode always returns true.
	needsEval(i int) bool
	// group returns the individual(s) item i represents, for the
	// N==1 direct-evaluation fallback.
	group(i int) []deme.Individual
	encode(c codec.Codec, i int) (unit, error)
	// assignBytes decodes fitnessBody and installs it on item i,
	// returning how many individual fitness assignments that counted
	// as (for Context.Processed/TotalProcessed bookkeeping).
	assignBytes(i int, c codec.Codec, fitnessBody []byte) (int, error)
	// assignValue is assignBytes's in-process counterpart, used by the
	// N==1 fallback where there is no codec round trip.
	assignValue(i int, f deme.Fitness) int
}

type demeUnits struct{ d *deme.Deme }

func (u demeUnits) len() int             { return u.d.Len() }
func (u demeUnits) needsEval(i int) bool { return !u.d.At(i).FitnessValid() }
func (u demeUnits) group(i int) []deme.Individual {
	return []deme.Individual{u.d.At(i)}
}

func (u demeUnits) encode(c codec.Codec, i int) (unit, error) {
	body, err := c.EncodeIndividual(u.d.At(i))
	if err != nil {
		return unit{}, err
	}
	return unit{
		headerTag:  wire.TagMessageSize,
		headerBody: wire.EncodeUint64(uint64(len(body))),
		send: func(ctx context.Context, t transport.Transport, dest int) error {
			return t.Send(ctx, dest, wire.TagIndividual, body)
		},
	}, nil
}

func (u demeUnits) assignValue(i int, f deme.Fitness) int {
	u.d.At(i).SetFitness(f)
	return 1
}

func (u demeUnits) assignBytes(i int, c codec.Codec, fitnessBody []byte) (int, error) {
	f, err := c.DecodeFitness(fitnessBody)
	if err != nil {
		return 0, err
	}
	return u.assignValue(i, f), nil
}

type setUnits struct{ sets []*deme.EvaluationSet }

func (u setUnits) len() int          { return len(u.sets) }
func (u setUnits) needsEval(int) bool { return true }
func (u setUnits) group(i int) []deme.Individual {
	return u.sets[i].Individuals
}

func (u setUnits) encode(c codec.Codec, i int) (unit, error) {
	set := u.sets[i]
	bodies := make([][]byte, len(set.Individuals))
	for j, ind := range set.Individuals {
		body, err := c.EncodeIndividual(ind)
		if err != nil {
			return unit{}, err
		}
		bodies[j] = body
	}
	return unit{
		headerTag:  wire.TagNbIndividuals,
		headerBody: wire.EncodeUint64(uint64(len(bodies))),
		send: func(ctx context.Context, t transport.Transport, dest int) error {
			for _, body := range bodies {
				if err := t.Send(ctx, dest, wire.TagMessageSize, wire.EncodeUint64(uint64(len(body)))); err != nil {
					return err
				}
				if err := t.Send(ctx, dest, wire.TagIndividual, body); err != nil {
					return err
				}
			}
			return nil
		},
	}, nil
}

func (u setUnits) assignValue(i int, f deme.Fitness) int {
	set := u.sets[i]
	set.AssignFitness(f)
	if set.Assignment == 0 {
		return len(set.Individuals)
	}
	return 1
}

func (u setUnits) assignBytes(i int, c codec.Codec, fitnessBody []byte) (int, error) {
	f, err := c.DecodeFitness(fitnessBody)
	if err != nil {
		return 0, err
	}
	return u.assignValue(i, f), nil
}
