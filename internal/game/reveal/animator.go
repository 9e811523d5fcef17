// Package reveal animates a resolved dice roll onto the slider track and
// classifies it as a win or a loss.
package reveal

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/cory-johannsen/crashdice/internal/game/slider"
	"github.com/cory-johannsen/crashdice/internal/game/sound"
	"github.com/cory-johannsen/crashdice/internal/game/tween"
)

// Judge classifies rolls against the current targets.
type Judge interface {
	IsWin(roll float64) bool
	Values() []float64
}

// Request is one roll to reveal. An empty Label displays the roll with one decimal.
type Request struct {
	Roll  float64
	Label string
}

// Outcome is the result of a reveal, handed on to the history ledger.
type Outcome struct {
	Label   string
	IsWin   bool
	Roll    float64
	Targets []float64
}

// Marker is a render snapshot of the roll marker.
type Marker struct {
	// X is the rendered x coordinate (track position times track scale).
	X       float64
	Alpha   float64
	Scale   float64
	Visible bool
	Label   string
	// LabelColor and ShadowColor are 0xRRGGBB.
	LabelColor  uint32
	ShadowColor uint32
}

type lastOutcome struct {
	outcome  Outcome
	position float64
	color    uint32
}

// Animator runs the reveal sequence: travel and fade in, bump, label colour
// transition, then a delayed fade out. Every step is scheduled on a
// tween.Host and every pending step is cancelled before a new reveal.
//
// An Animator is not safe for concurrent use.
type Animator struct {
	cfg    Config
	host   tween.Host
	mapper *slider.Mapper
	judge  Judge
	player sound.Player
	logger *zap.Logger

	enabled     bool
	hasShown    bool
	orientation float64
	last        *lastOutcome

	position    float64
	alpha       float64
	scale       float64
	visible     bool
	label       string
	labelColor  uint32
	shadowColor uint32

	moveCancel   tween.CancelFunc
	bumpCancel   func()
	fadeTimer    tween.CancelFunc
	fadeCancel   tween.CancelFunc
	colourCancel tween.CancelFunc
}

// NewAnimator returns an Animator with animations enabled and the marker hidden.
//
// Precondition: cfg.Validate() == nil; host, mapper and judge are non-nil.
func NewAnimator(cfg Config, host tween.Host, mapper *slider.Mapper, judge Judge, player sound.Player, logger *zap.Logger) *Animator {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Animator{
		cfg:         cfg,
		host:        host,
		mapper:      mapper,
		judge:       judge,
		player:      sound.Guard(player, logger),
		logger:      logger,
		enabled:     true,
		orientation: 1,
	}
	a.Reset()
	return a
}

// Reveal cancels any reveal in flight and starts a new one for req.
// A non-finite roll is shown at the range minimum and always loses.
func (a *Animator) Reveal(req Request) Outcome {
	finite := !math.IsNaN(req.Roll) && !math.IsInf(req.Roll, 0)
	roll := a.mapper.RangeMin()
	if finite {
		roll = req.Roll
	}
	clamped := a.mapper.ClampRange(roll)
	label := req.Label
	if label == "" {
		label = fmt.Sprintf("%.1f", roll)
	}
	isWin := finite && a.judge.IsWin(clamped)

	startValue := a.mapper.RangeMin()
	if a.hasShown {
		startValue = a.mapper.PositionToValue(a.position)
	}
	startPos := a.mapper.ValueToPosition(startValue)
	endPos := a.mapper.ValueToPosition(clamped)
	wasVisible := a.hasShown && a.visible && a.alpha > 0

	target := a.cfg.Colors.Loss
	if isWin {
		target = a.cfg.Colors.Win
	}
	outcome := Outcome{Label: label, IsWin: isWin, Roll: clamped, Targets: a.judge.Values()}
	a.last = &lastOutcome{outcome: outcome, position: endPos, color: target}

	a.cancelAll()
	a.label = label
	a.visible = true
	a.logger.Debug("revealing roll",
		zap.Float64("roll", clamped),
		zap.Bool("win", isWin),
		zap.Bool("animated", a.enabled),
	)

	if !a.enabled {
		a.applyInstant()
		a.hasShown = true
		a.scheduleFadeOut()
		a.playResult(isWin)
		return outcome
	}

	a.labelColor = a.cfg.Colors.Default
	a.shadowColor = a.cfg.Colors.ShadowDefault
	a.position = startPos
	startAlpha, startScale := 0.0, a.cfg.EnterScale
	if wasVisible {
		startAlpha, startScale = 1, 1
	}
	a.alpha = startAlpha
	a.scale = startScale

	a.moveCancel = a.host.Tween(tween.Options{
		Duration: a.cfg.FadeInDuration,
		Ease:     tween.EaseInOutQuad,
		Update: func(p float64) {
			a.alpha = tween.Lerp(startAlpha, 1, p)
			a.position = tween.Lerp(startPos, endPos, p)
			a.scale = tween.Lerp(startScale, 1, p)
		},
		Complete: func() {
			a.moveCancel = nil
			a.hasShown = true
			a.position = endPos
			a.scale = 1
			a.scheduleFadeOut()
			a.playBump()
			a.playResult(isWin)
			a.animateLabelColour(target)
		},
	})
	return outcome
}

func (a *Animator) animateLabelColour(target uint32) {
	from, fromShadow := a.labelColor, a.shadowColor
	a.colourCancel = a.host.Tween(tween.Options{
		Duration: a.cfg.LabelColorDuration,
		Update: func(p float64) {
			a.labelColor = tween.LerpColor(from, target, p)
			a.shadowColor = tween.LerpColor(fromShadow, a.cfg.Colors.ShadowTarget, p)
		},
		Complete: func() {
			a.colourCancel = nil
			a.labelColor = target
			a.shadowColor = a.cfg.Colors.ShadowTarget
		},
	})
}

// playBump pulses the scale up to BumpScale and back to 1 in two eased halves.
func (a *Animator) playBump() {
	a.stopBump()
	if !a.enabled || a.cfg.BumpDuration <= 0 || a.cfg.BumpScale <= 0 {
		a.scale = 1
		return
	}
	up := a.cfg.BumpDuration / 2
	down := a.cfg.BumpDuration - up

	var active tween.CancelFunc
	finish := func() {
		if active != nil {
			active()
			active = nil
		}
		a.scale = 1
		a.bumpCancel = nil
	}
	a.bumpCancel = finish

	startDown := func() {
		from := a.scale
		if down <= 0 {
			finish()
			return
		}
		active = a.host.Tween(tween.Options{
			Duration: down,
			Ease:     tween.EaseInQuad,
			Update:   func(p float64) { a.scale = tween.Lerp(from, 1, p) },
			Complete: func() {
				active = nil
				finish()
			},
		})
	}

	from := a.scale
	if up <= 0 {
		a.scale = a.cfg.BumpScale
		startDown()
		return
	}
	active = a.host.Tween(tween.Options{
		Duration: up,
		Ease:     tween.EaseOutQuad,
		Update:   func(p float64) { a.scale = tween.Lerp(from, a.cfg.BumpScale, p) },
		Complete: func() {
			active = nil
			startDown()
		},
	})
}

func (a *Animator) stopBump() {
	if a.bumpCancel != nil {
		a.bumpCancel()
	}
}

// scheduleFadeOut replaces any pending fade-out timer. When the timer fires
// the marker fades out, or hides at once if animations are off by then.
func (a *Animator) scheduleFadeOut() {
	if a.fadeTimer != nil {
		a.fadeTimer()
	}
	a.fadeTimer = a.host.After(a.cfg.FadeOutDelay, func() {
		a.fadeTimer = nil
		a.stopBump()
		if !a.enabled {
			a.hide()
			return
		}
		from := a.scale
		a.fadeCancel = a.host.Tween(tween.Options{
			Duration: a.cfg.FadeOutDuration,
			Ease:     tween.EaseOutQuad,
			Update: func(p float64) {
				a.alpha = 1 - p
				a.scale = tween.Lerp(from, a.cfg.ExitScale, p)
			},
			Complete: func() {
				a.fadeCancel = nil
				a.hide()
			},
		})
	})
}

func (a *Animator) cancelAll() {
	for _, c := range []*tween.CancelFunc{&a.moveCancel, &a.fadeCancel, &a.fadeTimer, &a.colourCancel} {
		if *c != nil {
			(*c)()
			*c = nil
		}
	}
	a.stopBump()
}

func (a *Animator) hide() {
	a.visible = false
	a.alpha = 0
	a.scale = a.cfg.EnterScale
}

func (a *Animator) applyInstant() {
	if a.last == nil {
		return
	}
	a.visible = true
	a.position = a.last.position
	a.alpha = 1
	a.scale = 1
	a.label = a.last.outcome.Label
	a.labelColor = a.last.color
	a.shadowColor = a.cfg.Colors.ShadowTarget
}

func (a *Animator) playResult(win bool) {
	if win {
		_ = a.player.Play(sound.Win, 1)
		return
	}
	_ = a.player.Play(sound.Lose, 1)
}

// Reset cancels everything in flight, hides the marker and forgets the last
// position so the next reveal travels from the range minimum.
func (a *Animator) Reset() {
	a.cancelAll()
	a.hasShown = false
	a.last = nil
	a.hide()
	a.label = ""
	a.labelColor = a.cfg.Colors.Default
	a.shadowColor = a.cfg.Colors.ShadowDefault
	a.position = a.mapper.ValueToPosition(a.mapper.RangeMin())
}

// SetAnimationsEnabled toggles animation. Disabling mid-reveal jumps the
// marker to its final state, or hides it if it was already fading out.
//
// Postcondition: returns the resulting setting.
func (a *Animator) SetAnimationsEnabled(enabled bool) bool {
	if a.enabled == enabled {
		return a.enabled
	}
	wasVisible := a.visible && a.alpha > 0
	wasFading := a.fadeCancel != nil
	a.enabled = enabled
	if enabled {
		return true
	}
	a.cancelAll()
	switch {
	case wasFading:
		a.hide()
	case wasVisible && a.last != nil:
		a.applyInstant()
		a.hasShown = true
		a.scheduleFadeOut()
	default:
		a.hide()
	}
	return false
}

// AnimationsEnabled reports the current setting.
func (a *Animator) AnimationsEnabled() bool { return a.enabled }

// SetPortrait applies the portrait scale factor to the rendered marker.
func (a *Animator) SetPortrait(portrait bool) {
	a.orientation = 1
	if portrait {
		a.orientation = a.cfg.PortraitScale
	}
}

// Animating reports whether any reveal step is still scheduled.
func (a *Animator) Animating() bool {
	return a.moveCancel != nil || a.bumpCancel != nil || a.fadeTimer != nil ||
		a.fadeCancel != nil || a.colourCancel != nil
}

// Marker returns the current render state of the marker.
func (a *Animator) Marker() Marker {
	return Marker{
		X:           a.mapper.ScalePosition(a.position),
		Alpha:       a.alpha,
		Scale:       a.scale * a.orientation,
		Visible:     a.visible,
		Label:       a.label,
		LabelColor:  a.labelColor,
		ShadowColor: a.shadowColor,
	}
}

// LastOutcome returns the most recent outcome since the last Reset.
func (a *Animator) LastOutcome() (Outcome, bool) {
	if a.last == nil {
		return Outcome{}, false
	}
	return a.last.outcome, true
}
