// Package rng derives deterministic per-patient random streams.
//
// Every patient gets its own stream, derived purely from the run seed, the
// patient ordinal and a retry attempt counter. Derivation never touches
// shared state, so streams can be created from any goroutine in any order
// and still replay identically.
package rng

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	randv2 "math/rand/v2"
	"time"
)

// Stream is a deterministic random source owned by exactly one patient
// simulation. It is not safe for concurrent use; it is never shared.
type Stream struct {
	src *randv2.Rand
}

// Derive returns the stream for (seed, ordinal, attempt). It is a pure
// function: the same inputs always yield a stream producing the identical
// sequence of draws, regardless of call order or goroutine.
func Derive(seed uint64, ordinal, attempt int) *Stream {
	h := fnv.New64a()
	_, _ = fmt.Fprintf(h, "%d_patient_%d_attempt_%d", seed, ordinal, attempt)
	s := h.Sum64()
	return &Stream{src: randv2.New(randv2.NewPCG(s, s))}
}

// NewSeed returns a non-deterministic master seed for runs without an
// explicit seed. The caller is expected to log it so the run can still be
// reproduced after the fact.
func NewSeed() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failing is effectively fatal elsewhere; fall back to
		// the wall clock rather than aborting a batch run.
		return uint64(time.Now().UnixNano())
	}
	return binary.LittleEndian.Uint64(b[:])
}

// Uniform returns a draw in [0, 1).
func (s *Stream) Uniform() float64 {
	return s.src.Float64()
}

// IntBetween returns a draw in [lo, hi], both bounds inclusive.
// lo > hi is a programming error and panics.
func (s *Stream) IntBetween(lo, hi int) int {
	if lo > hi {
		panic(fmt.Sprintf("rng: IntBetween bounds inverted: [%d, %d]", lo, hi))
	}
	return lo + s.src.IntN(hi-lo+1)
}

// Choice draws once and selects an index from weighted buckets. Weights are
// normalized at evaluation time; they must sum to a positive total but need
// not sum to 1. Selection takes the first bucket whose cumulative normalized
// weight exceeds the draw, so ties resolve in declaration order.
func (s *Stream) Choice(weights []float64) int {
	return pick(s.src.Float64(), weights)
}

func pick(draw float64, weights []float64) int {
	var total float64
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		panic("rng: Choice requires a positive weight total")
	}
	var cum float64
	for i, w := range weights {
		cum += w / total
		if draw < cum {
			return i
		}
	}
	// Floating point can leave cum marginally below 1; the last bucket wins.
	return len(weights) - 1
}

// Time returns a draw uniformly distributed in [lo, hi).
func (s *Stream) Time(lo, hi time.Time) time.Time {
	if !hi.After(lo) {
		return lo
	}
	span := hi.Sub(lo)
	return lo.Add(time.Duration(s.src.Int64N(int64(span))))
}

// Read fills b with deterministic bytes, satisfying io.Reader. It exists so
// record UUIDs can be drawn from the patient stream via
// uuid.NewRandomFromReader and stay reproducible.
func (s *Stream) Read(b []byte) (int, error) {
	for i := range b {
		b[i] = byte(s.src.Uint64())
	}
	return len(b), nil
}
