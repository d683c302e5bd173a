// Package codec defines the opaque serialize/deserialize boundary
// between the engine and application-specific individual/fitness
// representations, and provides a default JSON-backed implementation.
//
// The engine never inspects encoded bytes; it only requires that
// decode(encode(x)) produce a value that behaves identically to x
// under subsequent evaluation. A trailing null byte in a reported
// length is permitted; callers that produce length = body.size()+1
// must still be handled, since size is authoritative for framing (see
// package wire), not a terminator convention.
package codec

import "github.com/coevolve/coevolve/deme"

// Codec is the opaque serialize/deserialize boundary for individuals
// and fitness values.
type Codec interface {
	// EncodeIndividual serializes ind to bytes.
	EncodeIndividual(ind deme.Individual) ([]byte, error)
	// DecodeIndividual deserializes b into a new Individual.
	DecodeIndividual(b []byte) (deme.Individual, error)
	// EncodeFitness serializes f to bytes.
	EncodeFitness(f deme.Fitness) ([]byte, error)
	// DecodeFitness deserializes b into a Fitness value.
	DecodeFitness(b []byte) (deme.Fitness, error)
}
