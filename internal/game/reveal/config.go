package reveal

import (
	"errors"
	"strings"
	"time"
)

// Colors are 0xRRGGBB label colours for the roll marker.
type Colors struct {
	Default       uint32 `mapstructure:"default"`
	Win           uint32 `mapstructure:"win"`
	Loss          uint32 `mapstructure:"loss"`
	ShadowDefault uint32 `mapstructure:"shadow_default"`
	ShadowTarget  uint32 `mapstructure:"shadow_target"`
}

// Config tunes the reveal sequence.
type Config struct {
	FadeInDuration  time.Duration `mapstructure:"fade_in_duration"`
	FadeOutDuration time.Duration `mapstructure:"fade_out_duration"`
	// FadeOutDelay is how long a revealed marker stays before fading out.
	FadeOutDelay time.Duration `mapstructure:"fade_out_delay"`
	// EnterScale is the scale the marker grows from when it first appears.
	EnterScale float64 `mapstructure:"enter_scale"`
	// ExitScale is the scale the marker shrinks to while fading out.
	ExitScale    float64       `mapstructure:"exit_scale"`
	BumpScale    float64       `mapstructure:"bump_scale"`
	BumpDuration time.Duration `mapstructure:"bump_duration"`
	// LabelColorDuration is the length of the default-to-result colour transition.
	LabelColorDuration time.Duration `mapstructure:"label_color_duration"`
	// PortraitScale multiplies the rendered marker scale in portrait layouts.
	PortraitScale float64 `mapstructure:"portrait_scale"`
	Colors        Colors  `mapstructure:"colors"`
}

// DefaultConfig returns the stock reveal timings and colours.
func DefaultConfig() Config {
	return Config{
		FadeInDuration:     400 * time.Millisecond,
		FadeOutDuration:    400 * time.Millisecond,
		FadeOutDelay:       4 * time.Second,
		EnterScale:         0.7,
		ExitScale:          0.7,
		BumpScale:          1.2,
		BumpDuration:       300 * time.Millisecond,
		LabelColorDuration: 150 * time.Millisecond,
		PortraitScale:      0.85,
		Colors: Colors{
			Default:       0x0b212b,
			Win:           0xf0ff31,
			Loss:          0xf40029,
			ShadowDefault: 0xcfd9eb,
			ShadowTarget:  0x000000,
		},
	}
}

// Validate reports every invalid field.
//
// Postcondition: Returns nil if the configuration is usable.
func (c Config) Validate() error {
	var errs []string
	if c.FadeInDuration < 0 || c.FadeOutDuration < 0 || c.FadeOutDelay < 0 {
		errs = append(errs, "reveal durations must not be negative")
	}
	if c.BumpDuration < 0 || c.LabelColorDuration < 0 {
		errs = append(errs, "reveal bump_duration and label_color_duration must not be negative")
	}
	if c.EnterScale <= 0 || c.ExitScale <= 0 {
		errs = append(errs, "reveal enter_scale and exit_scale must be positive")
	}
	if c.PortraitScale <= 0 {
		errs = append(errs, "reveal.portrait_scale must be positive")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}
