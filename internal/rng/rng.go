// Package rng owns the deterministic random hierarchy for a run: one root
// seed, hashed to a 32-bit value, from which independent named streams are
// derived. The bit layout is a wire contract — replays and seed-sharing
// between builds only work if every draw reproduces the exact mulberry32
// sequence — so the hashing and mixing steps here must never change.
package rng

import (
	"strconv"
	"strings"
)

const (
	fnvOffset32 = 2166136261
	fnvPrime32  = 16777619

	mulberryStep = 0x6D2B79F5
)

// Source manages the root seed and hands out derived streams. It keeps both
// the original seed text (for display and sharing) and the hashed 32-bit
// value that actually drives generation.
type Source struct {
	original string
	value    uint32
	root     *Stream
}

// NewSource builds a source seeded from the provided text. Integer text is
// masked to 32 bits so numeric run codes behave the same across platforms;
// anything else is hashed with FNV-1a. Empty text is valid and hashes like
// any other string.
func NewSource(seed string) *Source {
	s := &Source{}
	s.Reseed(seed)
	return s
}

// Reseed replaces the root seed and reinitializes the default stream.
// Previously derived streams keep their old state; callers that need a
// coherent replay derive fresh streams after reseeding.
func (s *Source) Reseed(seed string) {
	if s == nil {
		return
	}
	s.original = seed
	s.value = seedValue(seed)
	s.root = NewStream(s.value)
}

// ReseedInt seeds directly from an integer, masking to 32 bits. Negative
// values wrap via two's complement, matching the string path for the same
// decimal text.
func (s *Source) ReseedInt(seed int64) {
	if s == nil {
		return
	}
	s.original = strconv.FormatInt(seed, 10)
	s.value = uint32(seed)
	s.root = NewStream(s.value)
}

// Value reports the hashed 32-bit seed driving generation.
func (s *Source) Value() uint32 {
	if s == nil {
		return 0
	}
	return s.value
}

// Original reports the seed text as supplied by the caller.
func (s *Source) Original() string {
	if s == nil {
		return ""
	}
	return s.original
}

// Float64 draws from the default stream in [0, 1).
func (s *Source) Float64() float64 {
	if s == nil {
		return 0
	}
	if s.root == nil {
		s.root = NewStream(s.value)
	}
	return s.root.Float64()
}

// Stream derives an independent generator identified by name. The derivation
// is pure: calling Stream twice with the same name before any reseed returns
// two streams that produce identical future output, and distinct names never
// share state.
func (s *Source) Stream(name string) *Stream {
	if s == nil {
		return NewStream(deriveSeed(0, name))
	}
	return NewStream(deriveSeed(s.value, name))
}

// Stream is a mulberry32 generator. The zero value is usable and produces
// the sequence for seed 0.
type Stream struct {
	state uint32
}

// NewStream returns a generator starting from the provided 32-bit state.
func NewStream(seed uint32) *Stream {
	return &Stream{state: seed}
}

// Float64 advances the stream and returns the next value in [0, 1).
// mulberry32: the additive constant, shift-xor-multiply mixing, and final
// divide by 2^32 reproduce the reference sequence bit for bit. Go's uint32
// arithmetic wraps, which matches the required 32-bit behavior exactly.
func (st *Stream) Float64() float64 {
	if st == nil {
		return 0
	}
	st.state += mulberryStep
	t := st.state
	t = (t ^ (t >> 15)) * (t | 1)
	t ^= t + (t^(t>>7))*(t|61)
	return float64(t^(t>>14)) / 4294967296.0
}

// seedValue converts seed text to the 32-bit root value: base-10 integers
// (after trimming whitespace) mask to 32 bits, everything else hashes.
func seedValue(seed string) uint32 {
	trimmed := strings.TrimSpace(seed)
	if trimmed != "" {
		if parsed, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return uint32(parsed)
		}
	}
	return hashString(seed)
}

// deriveSeed folds the root value and a stream name into a child seed. The
// zero byte separates the two parts so ("ab","c") and ("a","bc") cannot
// collide on the same derived state.
func deriveSeed(value uint32, name string) uint32 {
	h := uint32(fnvOffset32)
	h = hashByte(h, byte(value>>24))
	h = hashByte(h, byte(value>>16))
	h = hashByte(h, byte(value>>8))
	h = hashByte(h, byte(value))
	h = hashByte(h, 0)
	for i := 0; i < len(name); i++ {
		h = hashByte(h, name[i])
	}
	return h
}

// hashString is FNV-1a over the raw bytes of s.
func hashString(s string) uint32 {
	h := uint32(fnvOffset32)
	for i := 0; i < len(s); i++ {
		h = hashByte(h, s[i])
	}
	return h
}

func hashByte(h uint32, b byte) uint32 {
	h ^= uint32(b)
	h *= fnvPrime32
	return h
}
