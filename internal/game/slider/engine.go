package slider

import (
	"math"
	"slices"
)

// Segment is a contiguous stretch of the value range classified win or lose.
type Segment struct {
	Start float64
	End   float64
	Win   bool
}

// Engine holds the handle values and roll mode and derives win chance,
// multiplier and win/loss classification from them. It has no side effects
// beyond its own state.
//
// Invariant: len(values) == mode.HandleCount() and values is non-decreasing.
// Invariant: every value lies within [MinValue, MaxValue].
type Engine struct {
	mapper         *Mapper
	mode           RollMode
	values         []float64
	defaultMode    RollMode
	insideDefault  []float64
	betweenDefault []float64
}

// NewEngine creates an Engine in cfg.DefaultMode with that mode's default handles.
//
// Precondition: cfg.Validate() == nil.
func NewEngine(cfg Config, mapper *Mapper) *Engine {
	e := &Engine{
		mapper:      mapper,
		defaultMode: ParseRollMode(string(cfg.DefaultMode)),
	}
	e.insideDefault = e.normalize(cfg.InsideOutsideDefaults, 2)
	e.betweenDefault = e.normalize(cfg.BetweenDefaults, 4)
	e.mode = e.defaultMode
	e.values = e.DefaultValues(e.mode)
	return e
}

// Mapper returns the value mapper the engine clamps with.
func (e *Engine) Mapper() *Mapper { return e.mapper }

// Mode returns the current roll mode.
func (e *Engine) Mode() RollMode { return e.mode }

// DefaultMode returns the mode restored by Reset.
func (e *Engine) DefaultMode() RollMode { return e.defaultMode }

// HandleCount returns the number of active handles.
func (e *Engine) HandleCount() int { return len(e.values) }

// Values returns a copy of the active handle values.
func (e *Engine) Values() []float64 { return slices.Clone(e.values) }

// DefaultValues returns a copy of the default handle values for mode.
func (e *Engine) DefaultValues(mode RollMode) []float64 {
	if ParseRollMode(string(mode)) == Between {
		return slices.Clone(e.betweenDefault)
	}
	return slices.Clone(e.insideDefault)
}

// SetMode switches the roll mode. When the handle count changes the handles
// are replaced with the new mode's defaults; inside and outside share handles.
//
// Postcondition: returns the resulting mode and whether it changed.
func (e *Engine) SetMode(mode RollMode) (RollMode, bool) {
	next := ParseRollMode(string(mode))
	if next == e.mode {
		return e.mode, false
	}
	countChanged := next.HandleCount() != e.mode.HandleCount()
	e.mode = next
	if countChanged {
		e.values = e.DefaultValues(next)
	}
	return e.mode, true
}

// Reset restores the default mode and its default handles.
//
// Postcondition: returns true if any state changed.
func (e *Engine) Reset() bool {
	_, modeChanged := e.SetMode(e.defaultMode)
	valuesChanged := e.SetValues(e.DefaultValues(e.defaultMode), false)
	return modeChanged || valuesChanged
}

// SetHandleValue stores raw at index, optionally snapped, clamped between
// its neighbours (or the interaction bounds at either end) and rounded to
// two decimals. Out-of-range indices and non-finite values leave state
// unchanged.
//
// Postcondition: returns the stored value and whether it differs from the previous one.
func (e *Engine) SetHandleValue(index int, raw float64, snap bool) (float64, bool) {
	if index < 0 || index >= len(e.values) {
		return math.NaN(), false
	}
	prev := e.values[index]
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return prev, false
	}
	v := raw
	if snap {
		v = e.mapper.Snap(v)
	}
	v = round(e.clampHandle(index, v), 2)
	e.values[index] = v
	return v, v != prev
}

func (e *Engine) clampHandle(index int, v float64) float64 {
	lo := e.mapper.minValue
	if index > 0 {
		lo = e.values[index-1]
	}
	hi := e.mapper.maxValue
	if index < len(e.values)-1 {
		hi = e.values[index+1]
	}
	return math.Min(hi, math.Max(lo, v))
}

// SetValues orders values and applies them to the active handles. Missing or
// non-finite entries keep the current handle value; extras are ignored.
//
// Postcondition: returns true if any handle changed.
func (e *Engine) SetValues(values []float64, snap bool) bool {
	target := make([]float64, len(e.values))
	for i := range target {
		target[i] = e.values[i]
		if i < len(values) && !math.IsNaN(values[i]) && !math.IsInf(values[i], 0) {
			target[i] = values[i]
		}
	}
	target = e.normalize(target, len(target))

	changed := false
	// The ascending pass places every handle that moves down or is
	// unobstructed; the descending pass places the ones blocked from above.
	for i := range target {
		if _, c := e.SetHandleValue(i, target[i], snap); c {
			changed = true
		}
	}
	for i := len(target) - 1; i >= 0; i-- {
		if _, c := e.SetHandleValue(i, target[i], snap); c {
			changed = true
		}
	}
	return changed
}

// normalize clamps values to the interaction bounds and orders them.
func (e *Engine) normalize(values []float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		v := e.mapper.minValue
		if i < len(values) {
			v = values[i]
		}
		out[i] = e.mapper.ClampBounds(v)
	}
	slices.Sort(out)
	for i := 1; i < len(out); i++ {
		if out[i] < out[i-1] {
			out[i] = out[i-1]
		}
	}
	for i := len(out) - 2; i >= 0; i-- {
		if out[i] > out[i+1] {
			out[i] = out[i+1]
		}
	}
	return out
}

// WinChance returns the percentage of the range that currently wins.
//
// Postcondition: result >= 0, rounded to 4 decimals.
func (e *Engine) WinChance() float64 {
	return WinChanceOf(e.mode, e.values, e.mapper.rangeMin, e.mapper.rangeMax)
}

// WinChanceOf computes the winning length of targets under mode on the range
// [lo, hi]. Targets must hold mode.HandleCount() ascending values; otherwise
// the result is 0.
//
// Postcondition: result >= 0, rounded to 4 decimals.
func WinChanceOf(mode RollMode, targets []float64, lo, hi float64) float64 {
	v := targets
	if len(v) != mode.HandleCount() {
		return 0
	}
	var total float64
	switch mode {
	case Outside:
		total = math.Max(0, v[0]-lo) + math.Max(0, hi-v[1])
	case Between:
		total = math.Max(0, v[1]-v[0]) + math.Max(0, v[3]-v[2])
	default:
		total = math.Max(0, v[1]-v[0])
	}
	return round(total, 4)
}

// MultiplierOf returns HouseEdge / chance rounded to 4 decimals, or +Inf
// when chance is not positive.
func MultiplierOf(chance float64) float64 {
	if !(chance > 0) {
		return math.Inf(1)
	}
	return round(HouseEdge/chance, 4)
}

// SetWinChance moves the handles so the winning region covers chance
// percent. Inside and outside keep the current midpoint and resize
// symmetrically; between scales both sub-ranges about their own midpoints by
// the same ratio. Results are clamped to the interaction bounds, so targets
// beyond what the bounds allow produce the nearest reachable region.
//
// Postcondition: returns true if any handle changed.
func (e *Engine) SetWinChance(chance float64) bool {
	if math.IsNaN(chance) || math.IsInf(chance, 0) {
		return false
	}
	chance = math.Max(0, math.Min(e.mapper.Span(), chance))
	v := e.values

	if e.mode == Between {
		ratio := chance / math.Max(0.0001, e.WinChance())
		midOne := (v[0] + v[1]) / 2
		midTwo := (v[2] + v[3]) / 2
		halfOne := math.Max(0, (v[1]-v[0])*ratio) / 2
		halfTwo := math.Max(0, (v[3]-v[2])*ratio) / 2
		return e.SetValues([]float64{midOne - halfOne, midOne + halfOne, midTwo - halfTwo, midTwo + halfTwo}, false)
	}

	mid := (v[0] + v[1]) / 2
	span := chance
	if e.mode == Outside {
		span = e.mapper.Span() - chance
	}
	return e.SetValues([]float64{mid - span/2, mid + span/2}, false)
}

// Multiplier returns HouseEdge / WinChance rounded to 4 decimals, or +Inf
// when nothing wins.
func (e *Engine) Multiplier() float64 {
	return MultiplierOf(e.WinChance())
}

// SetMultiplier sets the win chance to HouseEdge / m. Non-finite or
// non-positive multipliers are ignored.
//
// Postcondition: returns true if any handle changed.
func (e *Engine) SetMultiplier(m float64) bool {
	if math.IsNaN(m) || math.IsInf(m, 0) || m <= 0 {
		return false
	}
	return e.SetWinChance(HouseEdge / m)
}

// IsWin reports whether roll falls in the winning region. Boundaries are
// inclusive on every side.
func (e *Engine) IsWin(roll float64) bool {
	return Wins(e.mode, e.values, roll)
}

// Wins reports whether roll falls in the region targets define under mode.
// Boundaries are inclusive. Non-finite rolls and malformed target sets lose.
func Wins(mode RollMode, targets []float64, roll float64) bool {
	v := targets
	if len(v) != mode.HandleCount() || math.IsNaN(roll) || math.IsInf(roll, 0) {
		return false
	}
	switch mode {
	case Outside:
		return roll <= v[0] || roll >= v[1]
	case Between:
		return (roll >= v[0] && roll <= v[1]) || (roll >= v[2] && roll <= v[3])
	default:
		return roll >= v[0] && roll <= v[1]
	}
}

// ClosestHandle returns the index of the handle nearest to value. Ties go to
// the handle on the side value lies on, so coincident handles can be pulled
// apart in either direction.
func (e *Engine) ClosestHandle(value float64) int {
	closest := 0
	best := math.Inf(1)
	for i, v := range e.values {
		d := math.Abs(v - value)
		if d < best || (d == best && value > v) {
			best = d
			closest = i
		}
	}
	return closest
}

// Segments returns the track split into win and lose stretches in ascending order.
func (e *Engine) Segments() []Segment {
	lo, hi := e.mapper.rangeMin, e.mapper.rangeMax
	v := e.values
	switch e.mode {
	case Outside:
		return []Segment{{lo, v[0], true}, {v[0], v[1], false}, {v[1], hi, true}}
	case Between:
		return []Segment{
			{lo, v[0], false}, {v[0], v[1], true}, {v[1], v[2], false}, {v[2], v[3], true}, {v[3], hi, false},
		}
	default:
		return []Segment{{lo, v[0], false}, {v[0], v[1], true}, {v[1], hi, false}}
	}
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
