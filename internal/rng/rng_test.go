package rng

import "testing"

func TestSeedHashingMatchesKnownVectors(t *testing.T) {
	// Published FNV-1a 32-bit vectors.
	cases := []struct {
		seed string
		want uint32
	}{
		{"", 2166136261},
		{"a", 0xe40c292c},
		{"foobar", 0xbf9cf968},
	}
	for _, tc := range cases {
		src := NewSource(tc.seed)
		if got := src.Value(); got != tc.want {
			t.Fatalf("expected seed %q to hash to %#x, got %#x", tc.seed, tc.want, got)
		}
	}
}

func TestIntegerSeedsMaskInsteadOfHashing(t *testing.T) {
	src := NewSource("12345")
	if got := src.Value(); got != 12345 {
		t.Fatalf("expected integer seed to mask to 12345, got %d", got)
	}
	if src.Original() != "12345" {
		t.Fatalf("expected original seed text preserved, got %q", src.Original())
	}

	src.Reseed("  42 ")
	if got := src.Value(); got != 42 {
		t.Fatalf("expected trimmed integer seed to mask to 42, got %d", got)
	}
	if src.Original() != "  42 " {
		t.Fatalf("expected original text to keep caller formatting, got %q", src.Original())
	}

	src.ReseedInt(-1)
	if got := src.Value(); got != 0xFFFFFFFF {
		t.Fatalf("expected -1 to mask to 0xFFFFFFFF, got %#x", got)
	}

	big := NewSource("4294967297") // 2^32 + 1
	if got := big.Value(); got != 1 {
		t.Fatalf("expected overflowing integer seed to wrap to 1, got %d", got)
	}
}

func TestSameSeedProducesIdenticalSequences(t *testing.T) {
	a := NewSource("tidal-vault")
	b := NewSource("tidal-vault")
	for i := 0; i < 256; i++ {
		if av, bv := a.Float64(), b.Float64(); av != bv {
			t.Fatalf("expected identical draw %d, got %v vs %v", i, av, bv)
		}
	}
}

func TestDerivedStreamsAreDeterministicPerName(t *testing.T) {
	src := NewSource("tidal-vault")
	first := src.Stream("drops")
	second := src.Stream("drops")
	for i := 0; i < 64; i++ {
		if fv, sv := first.Float64(), second.Float64(); fv != sv {
			t.Fatalf("expected streams with the same name to agree at draw %d, got %v vs %v", i, fv, sv)
		}
	}
}

func TestDistinctNamesDoNotShareState(t *testing.T) {
	src := NewSource("tidal-vault")

	drops := src.Stream("drops")
	baseline := make([]float64, 32)
	for i := range baseline {
		baseline[i] = drops.Float64()
	}

	// Burn through another stream, then re-derive and confirm the drops
	// sequence is unchanged: consuming stream A never advances stream B.
	events := src.Stream("events")
	for i := 0; i < 1000; i++ {
		events.Float64()
	}

	fresh := src.Stream("drops")
	for i, want := range baseline {
		if got := fresh.Float64(); got != want {
			t.Fatalf("expected drops draw %d to stay %v after consuming events, got %v", i, want, got)
		}
	}
}

func TestReseedReplacesDefaultStream(t *testing.T) {
	src := NewSource("alpha")
	first := src.Float64()
	src.Float64()
	src.Float64()

	src.Reseed("alpha")
	if got := src.Float64(); got != first {
		t.Fatalf("expected reseed to restart the default stream at %v, got %v", first, got)
	}
}

func TestDrawsStayInUnitInterval(t *testing.T) {
	stream := NewStream(0)
	for i := 0; i < 10000; i++ {
		v := stream.Float64()
		if v < 0 || v >= 1 {
			t.Fatalf("expected draw %d in [0,1), got %v", i, v)
		}
	}
}

func TestDrawsAreRoughlyUniform(t *testing.T) {
	stream := NewSource("uniformity-check").Stream("sample")
	const draws = 50000
	var sum float64
	var low int
	for i := 0; i < draws; i++ {
		v := stream.Float64()
		sum += v
		if v < 0.5 {
			low++
		}
	}
	mean := sum / draws
	if mean < 0.49 || mean > 0.51 {
		t.Fatalf("expected mean near 0.5, got %v", mean)
	}
	ratio := float64(low) / draws
	if ratio < 0.48 || ratio > 0.52 {
		t.Fatalf("expected about half the draws below 0.5, got %v", ratio)
	}
}
