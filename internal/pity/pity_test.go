package pity

import (
	"math"
	"testing"
)

func TestStreakAccumulatesAndResets(t *testing.T) {
	var c Counter
	for i := 1; i <= 4; i++ {
		if got := c.Miss(); got != i {
			t.Fatalf("expected streak %d after %d misses, got %d", i, i, got)
		}
	}
	c.Hit()
	if got := c.Streak(); got != 0 {
		t.Fatalf("expected reset streak, got %d", got)
	}
	if got := c.Miss(); got != 1 {
		t.Fatalf("expected streak to restart at 1, got %d", got)
	}
}

func TestLuckBonusStepsPerWindow(t *testing.T) {
	var c Counter
	for i := 0; i < 4; i++ {
		c.Miss()
	}
	if got := c.LuckBonus(5); got != 0 {
		t.Fatalf("four misses should grant no bonus yet, got %v", got)
	}
	c.Miss()
	if got := c.LuckBonus(5); got != 1 {
		t.Fatalf("five misses should grant one bonus point, got %v", got)
	}
	for i := 0; i < 7; i++ {
		c.Miss()
	}
	if got := c.LuckBonus(5); got != 2 {
		t.Fatalf("twelve misses should grant two bonus points, got %v", got)
	}
	if got := c.LuckBonus(0); got != 0 {
		t.Fatalf("non-positive window must grant nothing, got %v", got)
	}
}

func TestChanceBonusScalesLinearly(t *testing.T) {
	var c Counter
	c.Set(30)
	if got := c.ChanceBonus(0.001); math.Abs(got-0.03) > 1e-12 {
		t.Fatalf("expected 0.03 bonus at streak 30, got %v", got)
	}
	c.Hit()
	if got := c.ChanceBonus(0.001); got != 0 {
		t.Fatalf("expected zero bonus after reset, got %v", got)
	}
}

func TestSetClampsNegativeStreaks(t *testing.T) {
	var c Counter
	c.Set(-4)
	if got := c.Streak(); got != 0 {
		t.Fatalf("expected clamp to zero, got %d", got)
	}
}

func TestNilCounterIsInert(t *testing.T) {
	var c *Counter
	if got := c.Miss(); got != 0 {
		t.Fatalf("nil counter miss should report 0, got %d", got)
	}
	c.Hit()
	c.Set(9)
	if got := c.Streak(); got != 0 {
		t.Fatalf("nil counter streak should be 0, got %d", got)
	}
	if got := c.LuckBonus(5); got != 0 {
		t.Fatalf("nil counter luck bonus should be 0, got %v", got)
	}
	if got := c.ChanceBonus(0.001); got != 0 {
		t.Fatalf("nil counter chance bonus should be 0, got %v", got)
	}
}
