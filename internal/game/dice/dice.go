// Package dice provides the randomness abstraction behind every roll and
// the conversion from a uniform draw to a 0.00–100.00 dice roll.
package dice

import "math"

// Outcomes is the number of distinct rolls: 0.00, 0.01, ..., 100.00.
const Outcomes = 10001

// Source is the randomness provider for rolls.
//
// Implementations MUST be safe for concurrent use.
type Source interface {
	// Float64 returns a uniformly distributed value in [0, 1).
	Float64() float64
}

// RollFromFloat converts a uniform draw into a roll with two decimals.
//
// Precondition: f is in [0, 1).
// Postcondition: result is in [0, 100] and a multiple of 0.01.
func RollFromFloat(f float64) float64 {
	f = math.Min(math.Max(f, 0), math.Nextafter(1, 0))
	return math.Floor(f*Outcomes) / 100
}
