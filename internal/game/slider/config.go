package slider

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// HouseEdge is the numerator of the payout multiplier: multiplier = HouseEdge / winChance.
const HouseEdge = 99.0

// SoundConfig tunes drag feedback.
type SoundConfig struct {
	// DragMinPitch is the playback speed for a stationary drag.
	DragMinPitch float64 `mapstructure:"drag_min_pitch"`
	// DragMaxPitch is the playback speed at or above DragMaxSpeed.
	DragMaxPitch float64 `mapstructure:"drag_max_pitch"`
	// DragMaxSpeed is the drag speed, in pixels per millisecond, that maps to DragMaxPitch.
	DragMaxSpeed float64 `mapstructure:"drag_max_speed"`
	// DragCooldown is the minimum interval between two drag sounds.
	DragCooldown time.Duration `mapstructure:"drag_cooldown"`
}

// Config holds the value range, track geometry and default handles of the slider.
type Config struct {
	RangeMin float64 `mapstructure:"range_min"`
	RangeMax float64 `mapstructure:"range_max"`
	// MinValue and MaxValue bound every handle; they are tighter than the display range.
	MinValue float64 `mapstructure:"min_value"`
	MaxValue float64 `mapstructure:"max_value"`
	// Step is the snapping increment for interactive input. 0 disables snapping.
	Step float64 `mapstructure:"step"`
	// TrackStart and TrackEnd are the track-local pixel positions of RangeMin and RangeMax.
	TrackStart float64 `mapstructure:"track_start"`
	TrackEnd   float64 `mapstructure:"track_end"`

	DefaultMode           RollMode  `mapstructure:"default_mode"`
	InsideOutsideDefaults []float64 `mapstructure:"inside_outside_defaults"`
	BetweenDefaults       []float64 `mapstructure:"between_defaults"`

	Sound SoundConfig `mapstructure:"sound"`
}

// DefaultConfig returns the stock slider configuration.
func DefaultConfig() Config {
	return Config{
		RangeMin:              0,
		RangeMax:              100,
		MinValue:              2,
		MaxValue:              98,
		Step:                  1,
		TrackStart:            -260,
		TrackEnd:              260,
		DefaultMode:           Inside,
		InsideOutsideDefaults: []float64{25, 75},
		BetweenDefaults:       []float64{25, 50, 62.5, 87.5},
		Sound: SoundConfig{
			DragMinPitch: 0.9,
			DragMaxPitch: 1.4,
			DragMaxSpeed: 0.8,
			DragCooldown: 50 * time.Millisecond,
		},
	}
}

// Validate checks the configuration invariants.
//
// Postcondition: Returns nil if the configuration is usable, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string
	finite := func(name string, v float64) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			errs = append(errs, fmt.Sprintf("slider.%s must be finite", name))
		}
	}
	finite("range_min", c.RangeMin)
	finite("range_max", c.RangeMax)
	finite("min_value", c.MinValue)
	finite("max_value", c.MaxValue)
	finite("track_start", c.TrackStart)
	finite("track_end", c.TrackEnd)

	if c.RangeMax <= c.RangeMin {
		errs = append(errs, "slider.range_max must exceed slider.range_min")
	}
	if c.MinValue < c.RangeMin || c.MaxValue > c.RangeMax || c.MinValue > c.MaxValue {
		errs = append(errs, fmt.Sprintf("slider handle bounds [%g, %g] must be ordered and inside [%g, %g]",
			c.MinValue, c.MaxValue, c.RangeMin, c.RangeMax))
	}
	if c.Step < 0 {
		errs = append(errs, "slider.step must not be negative")
	}
	if c.TrackEnd <= c.TrackStart {
		errs = append(errs, "slider.track_end must exceed slider.track_start")
	}
	if _, ok := parseRollMode(string(c.DefaultMode)); !ok {
		errs = append(errs, fmt.Sprintf("slider.default_mode must be one of [inside, outside, between], got %q", c.DefaultMode))
	}
	if len(c.InsideOutsideDefaults) != 2 {
		errs = append(errs, fmt.Sprintf("slider.inside_outside_defaults must have 2 values, got %d", len(c.InsideOutsideDefaults)))
	}
	if len(c.BetweenDefaults) != 4 {
		errs = append(errs, fmt.Sprintf("slider.between_defaults must have 4 values, got %d", len(c.BetweenDefaults)))
	}
	if c.Sound.DragCooldown < 0 {
		errs = append(errs, "slider.sound.drag_cooldown must not be negative")
	}
	if c.Sound.DragMaxPitch < c.Sound.DragMinPitch {
		errs = append(errs, "slider.sound.drag_max_pitch must not be below drag_min_pitch")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}
