// Package scoring computes EXP awards for completed tasks and maps
// cumulative EXP to levels. All functions are pure and deterministic.
package scoring

import (
	"math"
	"time"
)

const (
	// lateDecay is the per-day multiplier applied to overdue tasks.
	lateDecay = 0.8

	// lateFloorDays is the lateness threshold after which the award
	// becomes the flat lateFloorMin penalty and the usual minimum of 1
	// no longer applies. The award can go negative only on this path.
	lateFloorDays = 21
	lateFloorMin  = -10
)

// Config holds the admin-tunable scoring multipliers. The per-minute time
// bonus is a flat +1 and is deliberately not configurable.
type Config struct {
	BaseMultiplier    int `json:"base_multiplier"`
	UrgencyMultiplier int `json:"urgency_multiplier"`
	EarlyBonus        int `json:"early_bonus"`
}

// DefaultConfig returns the multipliers used when no settings are stored.
func DefaultConfig() Config {
	return Config{
		BaseMultiplier:    10,
		UrgencyMultiplier: 5,
		EarlyBonus:        20,
	}
}

// Input carries the task attributes that feed the EXP formula.
type Input struct {
	Difficulty    int
	Urgency       int
	MinutesWorked int
	DueDate       *time.Time
	CompletedAt   time.Time
}

// ComputeExp computes the EXP award for a completed task.
//
// The steps run in a fixed order: difficulty base, urgency bonus, +1 per
// minute worked, early-completion bonus, late penalty (0.8^daysLate, or a
// flat -10 once the task is lateFloorDays overdue), then halving for
// non-urgent tasks. The result is clamped to a minimum of 1 unless the
// extreme-lateness penalty applied, in which case the -10 floor governs.
func ComputeExp(in Input, cfg Config) int {
	difficulty := in.Difficulty
	if difficulty <= 0 {
		difficulty = 1
	}
	urgency := in.Urgency
	if urgency < 0 {
		urgency = 0
	}
	minutes := in.MinutesWorked
	if minutes < 0 {
		minutes = 0
	}

	exp := cfg.BaseMultiplier * difficulty
	if urgency > 0 {
		exp += cfg.UrgencyMultiplier * urgency
	}
	exp += minutes

	lateFloor := false
	if in.DueDate != nil {
		if in.CompletedAt.After(*in.DueDate) {
			days := daysLate(*in.DueDate, in.CompletedAt)
			if days >= lateFloorDays {
				exp = lateFloorMin
				lateFloor = true
			} else {
				exp = int(math.Floor(float64(exp) * math.Pow(lateDecay, float64(days))))
			}
		} else if urgency > 0 {
			exp += cfg.EarlyBonus
		}
	}

	// Halving applies after the late penalty.
	if urgency == 0 {
		exp = int(math.Floor(float64(exp) * 0.5))
	}

	if lateFloor {
		if exp < lateFloorMin {
			exp = lateFloorMin
		}
		return exp
	}
	if exp < 1 {
		exp = 1
	}
	return exp
}

// daysLate counts whole-or-partial days between the due date and the
// completion time: ceil((completed - due) / 24h).
func daysLate(due, completed time.Time) int {
	late := completed.Sub(due)
	days := int(math.Ceil(late.Hours() / 24))
	if days < 1 {
		days = 1
	}
	return days
}
