// Package sound names the effects the game triggers and adapts an external
// playback capability so that a failing player never interrupts gameplay.
package sound

import (
	"fmt"

	"go.uber.org/zap"
)

// Effect identifies a sound effect by role.
type Effect string

const (
	Win            Effect = "game.win"
	Lose           Effect = "game.lose"
	DiceRoll       Effect = "game.diceRoll"
	SliderDown     Effect = "game.sliderDown"
	SliderUp       Effect = "game.sliderUp"
	SliderDrag     Effect = "game.sliderDrag"
	RollModeToggle Effect = "game.rollModeToggle"
)

// Player plays a named effect at the given playback speed (1 = normal pitch).
type Player interface {
	Play(effect Effect, speed float64) error
}

// PlayerFunc adapts a function to the Player interface.
type PlayerFunc func(effect Effect, speed float64) error

// Play calls f.
func (f PlayerFunc) Play(effect Effect, speed float64) error { return f(effect, speed) }

// Nop is a Player that discards every effect.
var Nop Player = PlayerFunc(func(Effect, float64) error { return nil })

// Guard wraps p so that errors and panics from playback are logged at Warn
// and swallowed. A nil p yields Nop.
//
// Postcondition: the returned Player never returns an error and never panics.
func Guard(p Player, logger *zap.Logger) Player {
	if p == nil {
		return Nop
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return PlayerFunc(func(effect Effect, speed float64) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Warn("sound playback panicked",
					zap.String("effect", string(effect)),
					zap.String("panic", fmt.Sprint(r)),
				)
			}
		}()
		if playErr := p.Play(effect, speed); playErr != nil {
			logger.Warn("sound playback failed",
				zap.String("effect", string(effect)),
				zap.Error(playErr),
			)
		}
		return nil
	})
}
