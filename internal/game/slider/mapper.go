package slider

import "math"

// Mapper converts between slider values and track positions. It is the only
// place that knows about pixel space: pointer coordinates enter through
// GlobalToTrack and rendered coordinates leave through ScalePosition.
type Mapper struct {
	rangeMin   float64
	rangeMax   float64
	minValue   float64
	maxValue   float64
	step       float64
	trackStart float64
	trackEnd   float64

	originX float64
	scale   float64
}

// NewMapper builds a Mapper from cfg with an identity global transform.
//
// Precondition: cfg.Validate() == nil.
func NewMapper(cfg Config) *Mapper {
	return &Mapper{
		rangeMin:   cfg.RangeMin,
		rangeMax:   cfg.RangeMax,
		minValue:   cfg.MinValue,
		maxValue:   cfg.MaxValue,
		step:       cfg.Step,
		trackStart: cfg.TrackStart,
		trackEnd:   cfg.TrackEnd,
		scale:      1,
	}
}

// RangeMin returns the lowest displayable value.
func (m *Mapper) RangeMin() float64 { return m.rangeMin }

// RangeMax returns the highest displayable value.
func (m *Mapper) RangeMax() float64 { return m.rangeMax }

// Span returns RangeMax - RangeMin, never less than 1e-4.
func (m *Mapper) Span() float64 { return math.Max(1e-4, m.rangeMax-m.rangeMin) }

// ClampRange clamps v to the display range.
func (m *Mapper) ClampRange(v float64) float64 {
	return math.Min(m.rangeMax, math.Max(m.rangeMin, v))
}

// ClampBounds clamps v to the interaction bounds.
func (m *Mapper) ClampBounds(v float64) float64 {
	return math.Min(m.maxValue, math.Max(m.minValue, v))
}

// Snap rounds v to the nearest multiple of the configured step.
func (m *Mapper) Snap(v float64) float64 {
	if m.step <= 0 {
		return v
	}
	return math.Round(v/m.step) * m.step
}

// ValueToPosition maps a value onto the track after clamping it to the range.
func (m *Mapper) ValueToPosition(v float64) float64 {
	ratio := (m.ClampRange(v) - m.rangeMin) / m.Span()
	return m.trackStart + ratio*(m.trackEnd-m.trackStart)
}

// PositionToValue maps a track position back onto the value range.
//
// Postcondition: the result is within [RangeMin, RangeMax].
func (m *Mapper) PositionToValue(x float64) float64 {
	ratio := (x - m.trackStart) / (m.trackEnd - m.trackStart)
	return m.ClampRange(m.rangeMin + ratio*m.Span())
}

// SetTransform places the track in global space: track-local 0 sits at
// originX and track units are multiplied by scale. A non-positive or
// non-finite scale is treated as 1.
func (m *Mapper) SetTransform(originX, scale float64) {
	if math.IsNaN(originX) || math.IsInf(originX, 0) {
		originX = 0
	}
	if !(scale > 0) || math.IsInf(scale, 0) {
		scale = 1
	}
	m.originX = originX
	m.scale = scale
}

// Scale returns the current track scale factor.
func (m *Mapper) Scale() float64 { return m.scale }

// GlobalToTrack converts a pointer x coordinate to track-local space.
func (m *Mapper) GlobalToTrack(globalX float64) float64 {
	return (globalX - m.originX) / m.scale
}

// ScalePosition converts a track-local position to rendered space.
func (m *Mapper) ScalePosition(x float64) float64 {
	return x * m.scale
}

// UnscalePosition is the inverse of ScalePosition.
func (m *Mapper) UnscalePosition(x float64) float64 {
	return x / m.scale
}
