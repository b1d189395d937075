// Package entropy supplies the random draws behind seller markups and buyer
// opening offers. Streams are seeded so a session can be replayed; a zero seed
// is replaced with one read from crypto/rand.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	"log/slog"
	mrand "math/rand"
	"sync"
)

// Stream is a seeded random source safe for concurrent use.
type Stream struct {
	seed int64

	mu  sync.Mutex
	rng *mrand.Rand
}

// NewStream creates a stream. Seed 0 draws a fresh seed from crypto/rand.
func NewStream(seed int64) *Stream {
	if seed == 0 {
		seed = cryptoSeed()
		slog.Debug("entropy seeded from crypto/rand", "seed", seed)
	}
	return &Stream{seed: seed, rng: mrand.New(mrand.NewSource(seed))}
}

// Seed returns the seed the stream was created with.
func (s *Stream) Seed() int64 { return s.seed }

// Derive returns an independent stream seeded at offset from this one.
// Agents each get their own so draws do not depend on goroutine order.
func (s *Stream) Derive(offset int64) *Stream {
	return NewStream(s.seed + offset)
}

// Float returns a value in [0, 1).
func (s *Stream) Float() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// Uniform returns a value in [lo, hi).
func (s *Stream) Uniform(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + s.Float()*(hi-lo)
}

// PerMille draws an integer in [lo, hi] and returns it divided by 1000.
func (s *Stream) PerMille(lo, hi int) float64 {
	if hi <= lo {
		return float64(lo) / 1000
	}
	s.mu.Lock()
	n := lo + s.rng.Intn(hi-lo+1)
	s.mu.Unlock()
	return float64(n) / 1000
}

// Intn returns a value in [0, n).
func (s *Stream) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

// cryptoSeed reads a non-zero seed from crypto/rand.
func cryptoSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// This should never happen; any fixed non-zero seed keeps things running.
		return 1
	}
	n := int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
	if n == 0 {
		n = 1
	}
	return n
}
