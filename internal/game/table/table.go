// Package table assembles the slider, the dice reveal, the bet history and
// the win popup into the game surface the betting loop drives.
package table

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cory-johannsen/crashdice/internal/game/history"
	"github.com/cory-johannsen/crashdice/internal/game/reveal"
	"github.com/cory-johannsen/crashdice/internal/game/slider"
	"github.com/cory-johannsen/crashdice/internal/game/sound"
	"github.com/cory-johannsen/crashdice/internal/game/tween"
)

// Config groups the component configurations and the table layout.
type Config struct {
	Slider  slider.Config  `mapstructure:"slider"`
	Reveal  reveal.Config  `mapstructure:"reveal"`
	History history.Config `mapstructure:"history"`
	// BaseWidth is the unscaled slider width; narrower viewports shrink the track.
	BaseWidth         float64       `mapstructure:"base_width"`
	PopupShowDuration time.Duration `mapstructure:"popup_show_duration"`
	AnimationsEnabled bool          `mapstructure:"animations_enabled"`
}

// DefaultConfig returns the stock table configuration.
func DefaultConfig() Config {
	return Config{
		Slider:            slider.DefaultConfig(),
		Reveal:            reveal.DefaultConfig(),
		History:           history.DefaultConfig(),
		BaseWidth:         520,
		PopupShowDuration: 260 * time.Millisecond,
		AnimationsEnabled: true,
	}
}

// Validate checks every component configuration.
func (c Config) Validate() error {
	var errs []string
	if err := c.Slider.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.Reveal.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.History.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.BaseWidth <= 0 {
		errs = append(errs, "table.base_width must be positive")
	}
	if c.PopupShowDuration < 0 {
		errs = append(errs, "table.popup_show_duration must not be negative")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// WinPopup is a render snapshot of the win popup.
type WinPopup struct {
	Visible    bool
	Scale      float64
	Multiplier string
	Amount     string
	X, Y       float64
}

// State is a render snapshot of the whole table.
type State struct {
	Width, Height     float64
	Portrait          bool
	SliderScale       float64
	AnimationsEnabled bool
	Slider            slider.ChangeDetails
	Segments          []slider.Segment
	Dice              reveal.Marker
	History           []history.Bubble
	WinPopup          WinPopup
}

// Table owns the game surface components. All methods must run on the
// frame goroutine that drives the tween.Host.
type Table struct {
	cfg    Config
	host   tween.Host
	player sound.Player
	logger *zap.Logger

	slider  *slider.Controller
	dice    *reveal.Animator
	history *history.Ledger

	width, height float64
	portrait      bool
	animated      bool

	popup       WinPopup
	popupCancel tween.CancelFunc
}

// New builds a Table sized width x height.
//
// Precondition: cfg.Validate() == nil; host is non-nil.
func New(cfg Config, host tween.Host, player sound.Player, logger *zap.Logger, width, height float64) *Table {
	if logger == nil {
		logger = zap.NewNop()
	}
	player = sound.Guard(player, logger)
	t := &Table{
		cfg:      cfg,
		host:     host,
		player:   player,
		logger:   logger,
		animated: true,
		width:    width,
		height:   height,
	}
	t.slider = slider.NewController(cfg.Slider, player, logger.Named("slider"), nil)
	t.dice = reveal.NewAnimator(cfg.Reveal, host, t.slider.Mapper(), t.slider, player, logger.Named("reveal"))
	t.history = history.NewLedger(cfg.History, host, history.ViewportFunc(func() float64 { return t.width }), logger.Named("history"))
	t.Resize(width, height)
	if !cfg.AnimationsEnabled {
		t.SetAnimationsEnabled(false)
	}
	return t
}

// Slider returns the slider controller.
func (t *Table) Slider() *slider.Controller { return t.slider }

// Dice returns the reveal animator.
func (t *Table) Dice() *reveal.Animator { return t.dice }

// History returns the bet history ledger.
func (t *Table) History() *history.Ledger { return t.history }

// RollMode returns the slider roll mode.
func (t *Table) RollMode() slider.RollMode { return t.slider.RollMode() }

// SetRollMode switches the slider roll mode.
func (t *Table) SetRollMode(mode slider.RollMode) slider.RollMode { return t.slider.SetRollMode(mode) }

// WinChance returns the slider win chance.
func (t *Table) WinChance() float64 { return t.slider.WinChance() }

// RevealDiceOutcome plays the roll sound, reveals the roll and records it in the history.
func (t *Table) RevealDiceOutcome(req reveal.Request) reveal.Outcome {
	_ = t.player.Play(sound.DiceRoll, 1)
	out := t.dice.Reveal(req)
	t.history.AddEntry(out.Label, out.IsWin)
	return out
}

// ShowWinPopup displays the popup centred in the viewport and scales it in.
func (t *Table) ShowWinPopup(multiplier float64, amount decimal.Decimal) {
	t.stopPopup()
	t.popup = WinPopup{
		Visible:    true,
		Multiplier: FormatMultiplier(multiplier),
		Amount:     FormatAmount(amount),
		X:          t.width / 2,
		Y:          t.height / 2,
	}
	if !t.animated || t.cfg.PopupShowDuration <= 0 {
		t.popup.Scale = 1
		return
	}
	t.popupCancel = t.host.Tween(tween.Options{
		Duration: t.cfg.PopupShowDuration,
		Ease:     tween.EaseOutQuad,
		Update:   func(p float64) { t.popup.Scale = p },
		Complete: func() { t.popupCancel = nil },
	})
}

// HideWinPopup hides the popup immediately.
func (t *Table) HideWinPopup() {
	t.stopPopup()
	t.popup.Visible = false
	t.popup.Scale = 0
}

func (t *Table) stopPopup() {
	if t.popupCancel != nil {
		t.popupCancel()
		t.popupCancel = nil
	}
}

// Resize lays every component out for a width x height viewport. The slider
// is centred and shrinks to 90% of narrow viewports; the layout counts as
// portrait when it is at least as tall as it is wide.
func (t *Table) Resize(width, height float64) {
	if math.IsNaN(width) || math.IsInf(width, 0) || width < 1 {
		width = 1
	}
	if math.IsNaN(height) || math.IsInf(height, 0) || height < 1 {
		height = 1
	}
	t.width, t.height = width, height

	scale := math.Min(1, width*0.9/t.cfg.BaseWidth)
	t.slider.Mapper().SetTransform(width/2, scale)
	t.portrait = height >= width
	t.dice.SetPortrait(t.portrait)
	t.history.Layout(false)
	t.popup.X, t.popup.Y = width/2, height/2
}

// Reset hides the popup, clears the history, restores the slider defaults
// and resets the dice.
func (t *Table) Reset() {
	t.HideWinPopup()
	t.history.Clear()
	t.history.Layout(false)
	t.slider.ResetState()
	t.dice.Reset()
	t.logger.Debug("table reset")
}

// SetAnimationsEnabled propagates the setting to the dice and the history.
//
// Postcondition: returns the resulting setting.
func (t *Table) SetAnimationsEnabled(enabled bool) bool {
	if t.animated == enabled {
		return t.animated
	}
	t.animated = enabled
	t.dice.SetAnimationsEnabled(enabled)
	t.history.SetAnimationsEnabled(enabled)
	if !enabled && t.popupCancel != nil {
		t.stopPopup()
		t.popup.Scale = 1
	}
	return t.animated
}

// State returns a render snapshot of the table.
func (t *Table) State() State {
	return State{
		Width:             t.width,
		Height:            t.height,
		Portrait:          t.portrait,
		SliderScale:       t.slider.Mapper().Scale(),
		AnimationsEnabled: t.animated,
		Slider:            t.slider.ChangeDetails(),
		Segments:          t.slider.Engine().Segments(),
		Dice:              t.dice.Marker(),
		History:           t.history.Bubbles(),
		WinPopup:          t.popup,
	}
}
