package tween

// Ease maps linear progress in [0, 1] onto an eased progress value.
type Ease func(t float64) float64

// Linear returns t unchanged.
func Linear(t float64) float64 { return t }

// EaseInQuad accelerates from zero velocity.
func EaseInQuad(t float64) float64 { return t * t }

// EaseOutQuad decelerates to zero velocity.
func EaseOutQuad(t float64) float64 { return t * (2 - t) }

// EaseInOutQuad accelerates until halfway, then decelerates.
func EaseInOutQuad(t float64) float64 {
	if t < 0.5 {
		return 2 * t * t
	}
	return -1 + (4-2*t)*t
}

// Lerp interpolates linearly between from and to.
func Lerp(from, to, t float64) float64 {
	return from + (to-from)*t
}

// LerpColor interpolates each 8-bit channel of two 0xRRGGBB colours.
//
// Postcondition: LerpColor(a, b, 0) == a&0xffffff and LerpColor(a, b, 1) == b&0xffffff.
func LerpColor(from, to uint32, t float64) uint32 {
	if t <= 0 {
		return from & 0xffffff
	}
	if t >= 1 {
		return to & 0xffffff
	}
	channel := func(shift uint) uint32 {
		a := float64((from >> shift) & 0xff)
		b := float64((to >> shift) & 0xff)
		v := a + (b-a)*t + 0.5
		if v > 255 {
			v = 255
		}
		return uint32(v) << shift
	}
	return channel(16) | channel(8) | channel(0)
}
