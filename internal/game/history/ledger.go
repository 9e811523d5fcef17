// Package history keeps the bounded ribbon of recent bet outcomes.
package history

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/crashdice/internal/game/tween"
)

// EmptyLabel is displayed for entries added without a label.
const EmptyLabel = "—"

// Viewport reports the width available to the ribbon.
type Viewport interface {
	Width() float64
}

// ViewportFunc adapts a function to Viewport.
type ViewportFunc func() float64

// Width calls f.
func (f ViewportFunc) Width() float64 { return f() }

// Colors are 0xRRGGBB bubble colours.
type Colors struct {
	WinFill  uint32 `mapstructure:"win_fill"`
	WinText  uint32 `mapstructure:"win_text"`
	LossFill uint32 `mapstructure:"loss_fill"`
	LossText uint32 `mapstructure:"loss_text"`
}

// Config holds ribbon geometry and timing.
type Config struct {
	TopPadding   float64 `mapstructure:"top_padding"`
	LeftPadding  float64 `mapstructure:"left_padding"`
	RightPadding float64 `mapstructure:"right_padding"`
	// HeightRatio is bubble height as a fraction of viewport width, before clamping.
	HeightRatio     float64       `mapstructure:"height_ratio"`
	MinBubbleHeight float64       `mapstructure:"min_bubble_height"`
	MaxBubbleHeight float64       `mapstructure:"max_bubble_height"`
	AspectRatio     float64       `mapstructure:"aspect_ratio"`
	SpacingRatio    float64       `mapstructure:"spacing_ratio"`
	FontSizeRatio   float64       `mapstructure:"font_size_ratio"`
	FadeInDuration  time.Duration `mapstructure:"fade_in_duration"`
	FadeOutDuration time.Duration `mapstructure:"fade_out_duration"`
	Colors          Colors        `mapstructure:"colors"`
}

// DefaultConfig returns the stock ribbon configuration.
func DefaultConfig() Config {
	return Config{
		TopPadding:      25,
		RightPadding:    28,
		HeightRatio:     0.09,
		MinBubbleHeight: 26,
		MaxBubbleHeight: 36,
		AspectRatio:     2,
		SpacingRatio:    0.13,
		FontSizeRatio:   0.4,
		FadeInDuration:  320 * time.Millisecond,
		FadeOutDuration: 260 * time.Millisecond,
		Colors: Colors{
			WinFill:  0xf0ff31,
			WinText:  0x000000,
			LossFill: 0x223845,
			LossText: 0xffffff,
		},
	}
}

// Validate reports every unusable geometry or timing value.
//
// Postcondition: Returns nil if the configuration is usable, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string
	for name, v := range map[string]float64{
		"top_padding":   c.TopPadding,
		"left_padding":  c.LeftPadding,
		"right_padding": c.RightPadding,
		"spacing_ratio": c.SpacingRatio,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			errs = append(errs, fmt.Sprintf("history.%s must be a non-negative number", name))
		}
	}
	for name, v := range map[string]float64{
		"height_ratio":      c.HeightRatio,
		"min_bubble_height": c.MinBubbleHeight,
		"max_bubble_height": c.MaxBubbleHeight,
		"aspect_ratio":      c.AspectRatio,
		"font_size_ratio":   c.FontSizeRatio,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			errs = append(errs, fmt.Sprintf("history.%s must be positive", name))
		}
	}
	if c.MaxBubbleHeight < c.MinBubbleHeight {
		errs = append(errs, fmt.Sprintf("history.max_bubble_height (%g) must not be below history.min_bubble_height (%g)",
			c.MaxBubbleHeight, c.MinBubbleHeight))
	}
	if c.FadeInDuration < 0 || c.FadeOutDuration < 0 {
		errs = append(errs, "history fade durations must not be negative")
	}
	if len(errs) > 0 {
		slices.Sort(errs)
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Metrics is the geometry derived from the viewport on the last layout pass.
type Metrics struct {
	BubbleWidth  float64
	BubbleHeight float64
	Spacing      float64
	FontSize     float64
	Capacity     int
	// AnchorX and AnchorY place slot 0 in viewport coordinates.
	AnchorX float64
	AnchorY float64
}

// Bubble is a render snapshot of one entry.
type Bubble struct {
	ID    uuid.UUID
	Label string
	IsWin bool
	// X is the offset from the anchor; retained entries rest at -slot*(width+spacing).
	X         float64
	Alpha     float64
	Fill      uint32
	TextColor uint32
	// Exiting marks an evicted entry still playing its exit animation.
	Exiting bool
}

type entry struct {
	id      uuid.UUID
	label   string
	isWin   bool
	x       float64
	alpha   float64
	exiting bool
	cancel  tween.CancelFunc
}

func (e *entry) stop() {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

// Ledger is the newest-first list of recent outcomes. Entries beyond the
// capacity the viewport allows are evicted with an exit animation.
//
// Invariant: len(Entries()) <= Metrics().Capacity and Capacity >= 1.
//
// A Ledger is not safe for concurrent use.
type Ledger struct {
	cfg      Config
	host     tween.Host
	viewport Viewport
	logger   *zap.Logger

	entries  []*entry
	exiting  []*entry
	metrics  Metrics
	animated bool
}

// NewLedger returns an empty Ledger with animations enabled.
//
// Precondition: host and viewport are non-nil.
func NewLedger(cfg Config, host tween.Host, viewport Viewport, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Ledger{cfg: cfg, host: host, viewport: viewport, logger: logger, animated: true}
	l.computeMetrics()
	return l
}

func (l *Ledger) computeMetrics() {
	width := l.viewport.Width()
	if math.IsNaN(width) || math.IsInf(width, 0) || width < 0 {
		width = 0
	}
	c := l.cfg
	h := math.Max(c.MinBubbleHeight, math.Min(c.MaxBubbleHeight, width*c.HeightRatio))
	w := h * c.AspectRatio
	sp := math.Max(8, w*c.SpacingRatio)
	avail := math.Max(w, width-(c.LeftPadding+c.RightPadding))
	capacity := int(math.Floor((avail + sp) / (w + sp)))
	l.metrics = Metrics{
		BubbleWidth:  w,
		BubbleHeight: h,
		Spacing:      sp,
		FontSize:     math.Round(math.Max(12, h*c.FontSizeRatio)),
		Capacity:     max(1, capacity),
		AnchorX:      width - c.RightPadding - w/2,
		AnchorY:      c.TopPadding + h/2,
	}
}

func (l *Ledger) slotX(i int) float64 {
	return -float64(i) * (l.metrics.BubbleWidth + l.metrics.Spacing)
}

func (l *Ledger) offscreenX() float64 {
	m := l.metrics
	return -(float64(m.Capacity)*(m.BubbleWidth+m.Spacing) + m.BubbleWidth + m.Spacing)
}

// AddEntry puts a new outcome at the front, shifts older entries back one
// slot and evicts whatever no longer fits.
func (l *Ledger) AddEntry(label string, isWin bool) uuid.UUID {
	l.computeMetrics()
	if label == "" {
		label = EmptyLabel
	}
	e := &entry{
		id:    uuid.New(),
		label: label,
		isWin: isWin,
		x:     l.metrics.BubbleWidth + l.metrics.Spacing,
	}
	l.entries = append([]*entry{e}, l.entries...)
	for i, existing := range l.entries {
		l.move(existing, l.slotX(i), l.animated)
	}
	l.evict(l.animated)
	return e.id
}

// Layout recomputes geometry from the viewport, repositions retained entries
// and evicts any beyond the new capacity.
func (l *Ledger) Layout(animate bool) {
	l.computeMetrics()
	animate = animate && l.animated
	for i, e := range l.entries {
		l.move(e, l.slotX(i), animate)
	}
	l.evict(animate)
}

func (l *Ledger) evict(animate bool) {
	if len(l.entries) <= l.metrics.Capacity {
		return
	}
	overflow := l.entries[l.metrics.Capacity:]
	l.entries = l.entries[:l.metrics.Capacity:l.metrics.Capacity]
	l.logger.Debug("evicting history entries", zap.Int("count", len(overflow)))
	for _, e := range overflow {
		l.remove(e, animate)
	}
}

func (l *Ledger) move(e *entry, targetX float64, animate bool) {
	e.stop()
	if !animate {
		e.x, e.alpha = targetX, 1
		return
	}
	startX, startAlpha := e.x, e.alpha
	e.cancel = l.host.Tween(tween.Options{
		Duration: l.cfg.FadeInDuration,
		Ease:     tween.EaseOutQuad,
		Update: func(p float64) {
			e.x = tween.Lerp(startX, targetX, p)
			e.alpha = tween.Lerp(startAlpha, 1, p)
		},
		Complete: func() {
			e.x, e.alpha = targetX, 1
			e.cancel = nil
		},
	})
}

func (l *Ledger) remove(e *entry, animate bool) {
	e.stop()
	e.exiting = true
	target := l.offscreenX()
	if !animate {
		e.x, e.alpha = target, 0
		return
	}
	l.exiting = append(l.exiting, e)
	startX, startAlpha := e.x, e.alpha
	e.cancel = l.host.Tween(tween.Options{
		Duration: l.cfg.FadeOutDuration,
		Ease:     tween.EaseInQuad,
		Update: func(p float64) {
			e.x = tween.Lerp(startX, target, p)
			e.alpha = startAlpha * (1 - p)
		},
		Complete: func() {
			e.alpha = 0
			e.cancel = nil
			l.dropExiting(e)
		},
	})
}

func (l *Ledger) dropExiting(e *entry) {
	for i, x := range l.exiting {
		if x == e {
			l.exiting = append(l.exiting[:i:i], l.exiting[i+1:]...)
			return
		}
	}
}

// Clear removes every entry at once, without animation.
func (l *Ledger) Clear() {
	for _, e := range l.entries {
		e.stop()
	}
	for _, e := range l.exiting {
		e.stop()
	}
	l.entries = nil
	l.exiting = nil
}

// SetAnimationsEnabled toggles animation. Disabling stops every entry tween,
// drops entries mid-exit and snaps the rest to a static layout.
//
// Postcondition: returns the resulting setting.
func (l *Ledger) SetAnimationsEnabled(enabled bool) bool {
	if l.animated == enabled {
		return l.animated
	}
	l.animated = enabled
	if !enabled {
		for _, e := range l.exiting {
			e.stop()
		}
		l.exiting = nil
		l.Layout(false)
	}
	return l.animated
}

// AnimationsEnabled reports the current setting.
func (l *Ledger) AnimationsEnabled() bool { return l.animated }

// Entries returns the retained entries, newest first.
func (l *Ledger) Entries() []Bubble {
	out := make([]Bubble, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, l.bubble(e))
	}
	return out
}

// Bubbles returns every entry to draw: retained entries newest first, then
// entries still playing their exit animation.
func (l *Ledger) Bubbles() []Bubble {
	out := l.Entries()
	for _, e := range l.exiting {
		out = append(out, l.bubble(e))
	}
	return out
}

func (l *Ledger) bubble(e *entry) Bubble {
	fill, text := l.cfg.Colors.LossFill, l.cfg.Colors.LossText
	if e.isWin {
		fill, text = l.cfg.Colors.WinFill, l.cfg.Colors.WinText
	}
	return Bubble{
		ID:        e.id,
		Label:     e.label,
		IsWin:     e.isWin,
		X:         e.x,
		Alpha:     e.alpha,
		Fill:      fill,
		TextColor: text,
		Exiting:   e.exiting,
	}
}

// Capacity returns the number of entries that fit the viewport at the last layout.
func (l *Ledger) Capacity() int { return l.metrics.Capacity }

// Metrics returns the geometry from the last layout pass.
func (l *Ledger) Metrics() Metrics { return l.metrics }
