// Package wire defines the closed set of message tags and the
// fixed-width integer encoding used for header/count/length/generation
// fields on the wire between the coordinator and its workers.
//
// Individual and Fitness bodies themselves remain opaque (see package
// codec); only the framing primitives live here.
package wire

import (
	"encoding/binary"
	"fmt"
)

// Tag identifies the kind of a message. The set is closed: no other
// tag values are valid on this wire.
type Tag uint8

const (
	// TagNbIndividuals carries one integer: the count k of individuals
	// to follow, sent coordinator to worker, in co-evolution mode.
	TagNbIndividuals Tag = iota + 1
	// TagMessageSize carries one integer: the byte length of the next
	// payload, sent in both directions.
	TagMessageSize
	// TagIndividual carries opaque bytes, coordinator to worker.
	TagIndividual
	// TagFitness carries opaque bytes, worker to coordinator.
	TagFitness
	// TagEvolutionEnd carries an empty body and signals termination,
	// coordinator to worker.
	TagEvolutionEnd
)

func (t Tag) String() string {
	switch t {
	case TagNbIndividuals:
		return "NbIndividuals"
	case TagMessageSize:
		return "MessageSize"
	case TagIndividual:
		return "Individual"
	case TagFitness:
		return "Fitness"
	case TagEvolutionEnd:
		return "EvolutionEnd"
	default:
		return fmt.Sprintf("Tag(%d)", uint8(t))
	}
}

// Valid reports whether t is a member of the closed tag set.
func (t Tag) Valid() bool {
	return t >= TagNbIndividuals && t <= TagEvolutionEnd
}

// EncodeUint64 encodes v as an 8-byte big-endian payload, the wire
// representation used for NbIndividuals counts, MessageSize lengths,
// and generation numbers.
func EncodeUint64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// DecodeUint64 decodes an 8-byte big-endian payload produced by
// EncodeUint64. Size is authoritative: implementations must not rely
// on any trailing-null convention some callers may use when reporting
// lengths (e.g. len = body.size()+1); DecodeUint64 itself only ever
// reads exactly 8 bytes and reports an error for anything else.
func DecodeUint64(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("wire: DecodeUint64: want 8 bytes, got %d", len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}
