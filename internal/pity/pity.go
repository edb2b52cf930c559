// Package pity tracks unlucky streaks and converts them into escalating
// compensation. Counters are plain state owned by whichever system records
// the streak: the selector feeds misses back as a luck bonus, the event
// scheduler as a flat chance bonus. Both decay to zero the moment the
// favorable outcome lands.
package pity

// Counter counts consecutive unfavorable outcomes.
type Counter struct {
	streak int
}

// Miss records an unfavorable outcome and returns the new streak length.
func (c *Counter) Miss() int {
	if c == nil {
		return 0
	}
	c.streak++
	return c.streak
}

// Hit resets the streak after a favorable outcome.
func (c *Counter) Hit() {
	if c == nil {
		return
	}
	c.streak = 0
}

// Streak reports the current run of misses.
func (c *Counter) Streak() int {
	if c == nil {
		return 0
	}
	return c.streak
}

// Set restores a streak captured elsewhere (journal replay, diagnostics).
// Negative values clamp to zero.
func (c *Counter) Set(streak int) {
	if c == nil {
		return
	}
	if streak < 0 {
		streak = 0
	}
	c.streak = streak
}

// LuckBonus converts the streak into whole bonus luck points, one per full
// window of misses. A non-positive window yields no bonus.
func (c *Counter) LuckBonus(window int) float64 {
	if c == nil || window <= 0 {
		return 0
	}
	return float64(c.streak / window)
}

// ChanceBonus converts the streak into an additive probability bonus of
// step per miss.
func (c *Counter) ChanceBonus(step float64) float64 {
	if c == nil || step <= 0 {
		return 0
	}
	return float64(c.streak) * step
}
