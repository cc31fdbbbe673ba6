// Package rng provides reproducible pseudo-random streams for
// server-authoritative outcomes. A stream seeded with the same string
// yields the same sequence forever, across processes and restarts, so
// bot moves and puzzle deals can be replayed and audited from the seed
// alone.
package rng

import (
	"encoding/binary"
	"math/rand/v2"

	"golang.org/x/crypto/blake2b"
)

// Stream draws from a PCG generator seeded by hashing the seed string.
// It never touches wall-clock time or OS entropy after construction.
// A Stream is not safe for concurrent use; streams are cheap, make one
// per seed.
type Stream struct {
	r *rand.Rand
}

func NewStream(seed string) *Stream {
	sum := blake2b.Sum256([]byte(seed))
	return &Stream{r: rand.New(rand.NewPCG(
		binary.LittleEndian.Uint64(sum[0:8]),
		binary.LittleEndian.Uint64(sum[8:16]),
	))}
}

// Float64 returns the next draw in [0, 1).
func (s *Stream) Float64() float64 { return s.r.Float64() }

// IntN returns the next draw in [0, n). Panics if n <= 0.
func (s *Stream) IntN(n int) int { return s.r.IntN(n) }

func (s *Stream) Shuffle(n int, swap func(i, j int)) { s.r.Shuffle(n, swap) }

// Derive reduces a seed string to a stable 64-bit value for seeding
// generators that take an integer seed.
func Derive(seed string) int64 {
	sum := blake2b.Sum256([]byte(seed))
	return int64(binary.LittleEndian.Uint64(sum[0:8]))
}
