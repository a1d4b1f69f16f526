package scoring

import "math"

// LevelOf maps cumulative EXP to a level: floor(1 + log2(1 + exp/100)).
// Level 1 covers 0-99 EXP, level 2 covers 100-299, with the required
// increment doubling each level.
func LevelOf(exp int) int {
	if exp <= 0 {
		return 1
	}
	return int(math.Floor(1 + math.Log2(1+float64(exp)/100)))
}

// LevelsCrossed enumerates every level boundary crossed when a player's
// EXP moves from oldExp to newExp, in ascending order. A single large
// award can cross several levels; each gets its own entry. The result is
// empty when no boundary is crossed.
func LevelsCrossed(oldExp, newExp int) []int {
	from := LevelOf(oldExp)
	to := LevelOf(newExp)
	if to <= from {
		return nil
	}
	levels := make([]int, 0, to-from)
	for l := from + 1; l <= to; l++ {
		levels = append(levels, l)
	}
	return levels
}
