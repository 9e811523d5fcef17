package slider

import (
	"fmt"
	"math"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/crashdice/internal/game/sound"
)

// Controller is the pointer-driven drag state machine over an Engine. It is
// the only writer of handle state; everything else reads ChangeDetails.
//
// A Controller is not safe for concurrent use. All calls belong on the frame
// goroutine.
type Controller struct {
	cfg    Config
	mapper *Mapper
	engine *Engine
	player sound.Player
	logger *zap.Logger
	clock  func() time.Duration

	observers []*observerSlot

	dragging      bool
	activeHandle  int
	lastPositions []float64
	lastUpdate    time.Duration
	lastDragSound time.Duration
	muted         bool
}

type observerSlot struct {
	o Observer
}

// NewController creates a Controller in the configured default state.
//
// Precondition: cfg.Validate() == nil.
// Postcondition: clock, if non-nil, supplies monotonic timestamps for drag sound gating;
// a nil player plays nothing and a nil logger discards output.
func NewController(cfg Config, player sound.Player, logger *zap.Logger, clock func() time.Duration) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		start := time.Now()
		clock = func() time.Duration { return time.Since(start) }
	}
	mapper := NewMapper(cfg)
	c := &Controller{
		cfg:           cfg,
		mapper:        mapper,
		engine:        NewEngine(cfg, mapper),
		player:        sound.Guard(player, logger),
		logger:        logger,
		clock:         clock,
		activeHandle:  -1,
		lastDragSound: -cfg.Sound.DragCooldown,
	}
	c.syncPositions()
	return c
}

// Mapper returns the value/position mapper. Callers may update its transform.
func (c *Controller) Mapper() *Mapper { return c.mapper }

// Engine exposes read access to the engine for renderers; mutate only through the Controller.
func (c *Controller) Engine() *Engine { return c.engine }

// AddObserver registers o and returns a function that removes it.
func (c *Controller) AddObserver(o Observer) (remove func()) {
	slot := &observerSlot{o: o}
	c.observers = append(c.observers, slot)
	return func() {
		for i, s := range c.observers {
			if s == slot {
				c.observers = append(c.observers[:i:i], c.observers[i+1:]...)
				return
			}
		}
	}
}

// Dragging reports whether a drag is in progress.
func (c *Controller) Dragging() bool { return c.dragging }

// ActiveHandle returns the index being dragged, or -1 when idle.
func (c *Controller) ActiveHandle() int { return c.activeHandle }

// PointerDown starts a drag. handle is the index pressed directly, or
// negative for a press on the bare track, in which case the handle closest
// to the pointer is taken.
func (c *Controller) PointerDown(globalX float64, handle int) {
	c.dragging = true
	c.activeHandle = -1
	if handle >= 0 && handle < c.engine.HandleCount() {
		c.activeHandle = handle
	}
	c.play(sound.SliderDown, 1)
	c.updateFromPointer(globalX)
}

// PointerMove updates the active handle while dragging. It is a no-op when idle.
func (c *Controller) PointerMove(globalX float64) {
	if !c.dragging {
		return
	}
	c.updateFromPointer(globalX)
}

// PointerUp ends a drag, including releases outside the track.
func (c *Controller) PointerUp() {
	if !c.dragging {
		return
	}
	c.dragging = false
	c.activeHandle = -1
	c.play(sound.SliderUp, 1)
	c.logger.Debug("targets updated", zap.Float64s("values", c.engine.Values()))
	c.emitRelease()
}

func (c *Controller) updateFromPointer(globalX float64) {
	if math.IsNaN(globalX) || math.IsInf(globalX, 0) {
		return
	}
	raw := c.mapper.PositionToValue(c.mapper.GlobalToTrack(globalX))
	if c.activeHandle < 0 {
		c.activeHandle = c.engine.ClosestHandle(c.mapper.ClampBounds(raw))
	}
	index := c.activeHandle
	_, changed := c.engine.SetHandleValue(index, raw, true)
	now := c.clock()
	if changed {
		c.emitChange()
		c.dragFeedback(index, now)
	}
	c.lastPositions[index] = c.mapper.ValueToPosition(c.engine.values[index])
	c.lastUpdate = now
}

// dragFeedback plays the drag sound with a pitch derived from how fast the
// handle moved, at most once per cooldown window.
func (c *Controller) dragFeedback(index int, now time.Duration) {
	s := c.cfg.Sound
	pos := c.mapper.ValueToPosition(c.engine.values[index])
	delta := math.Abs(pos-c.lastPositions[index]) * c.mapper.Scale()
	elapsedMs := math.Max(1, float64(now-c.lastUpdate)/float64(time.Millisecond))
	speed := delta / elapsedMs

	normalized := 0.0
	if s.DragMaxSpeed > 0 {
		normalized = math.Min(1, speed/s.DragMaxSpeed)
	}
	pitch := s.DragMinPitch + math.Max(0, s.DragMaxPitch-s.DragMinPitch)*normalized
	if math.IsNaN(pitch) || math.IsInf(pitch, 0) {
		pitch = s.DragMinPitch
	}
	if now-c.lastDragSound >= s.DragCooldown {
		c.play(sound.SliderDrag, pitch)
		c.lastDragSound = now
	}
}

// Values returns the active handle values in order.
func (c *Controller) Values() []float64 { return c.engine.Values() }

// SetValues orders values and applies them snapped to the step.
func (c *Controller) SetValues(values []float64) []float64 {
	return c.applyValues(values, true)
}

func (c *Controller) applyValues(values []float64, snap bool) []float64 {
	if c.engine.SetValues(values, snap) {
		c.syncPositions()
		c.emitChange()
	}
	return c.engine.Values()
}

// SetValueAt sets a single handle, snapped to the step, and returns the
// stored value. Indices outside the active handle set are ignored and yield NaN.
func (c *Controller) SetValueAt(index int, value float64) float64 {
	v, changed := c.engine.SetHandleValue(index, value, true)
	if changed {
		c.syncPositions()
		c.emitChange()
	}
	return v
}

// RollMode returns the current roll mode.
func (c *Controller) RollMode() RollMode { return c.engine.Mode() }

// SetRollMode switches the roll mode, emitting a roll mode change followed by
// a change. Setting the current mode does nothing.
func (c *Controller) SetRollMode(mode RollMode) RollMode {
	next, changed := c.engine.SetMode(mode)
	if !changed {
		return next
	}
	c.activeHandle = -1
	c.syncPositions()
	c.play(sound.RollModeToggle, 1)
	c.emitRollModeChange(next)
	c.emitChange()
	return next
}

// WinChance returns the current win chance in percent.
func (c *Controller) WinChance() float64 { return c.engine.WinChance() }

// SetWinChance resizes the winning region to chance percent.
func (c *Controller) SetWinChance(chance float64) []float64 {
	if c.engine.SetWinChance(chance) {
		c.syncPositions()
		c.emitChange()
	}
	return c.engine.Values()
}

// Multiplier returns the payout multiplier for the current targets.
func (c *Controller) Multiplier() float64 { return c.engine.Multiplier() }

// SetMultiplier resizes the winning region to match multiplier m.
func (c *Controller) SetMultiplier(m float64) []float64 {
	if c.engine.SetMultiplier(m) {
		c.syncPositions()
		c.emitChange()
	}
	return c.engine.Values()
}

// IsWin classifies roll against the current targets.
func (c *Controller) IsWin(roll float64) bool { return c.engine.IsWin(roll) }

// ChangeDetails returns a snapshot of the derived slider state.
func (c *Controller) ChangeDetails() ChangeDetails {
	return ChangeDetails{
		Values:     c.engine.Values(),
		RollMode:   c.engine.Mode(),
		WinChance:  c.engine.WinChance(),
		Multiplier: c.engine.Multiplier(),
	}
}

// ResetState ends any drag and restores the default mode and handles. No
// sounds play during the reset.
func (c *Controller) ResetState() {
	c.dragging = false
	c.activeHandle = -1
	c.lastDragSound = c.clock()
	c.muted = true
	defer func() { c.muted = false }()

	c.SetRollMode(c.engine.DefaultMode())
	c.applyValues(c.engine.DefaultValues(c.engine.DefaultMode()), false)
}

func (c *Controller) syncPositions() {
	if len(c.lastPositions) != c.engine.HandleCount() {
		c.lastPositions = make([]float64, c.engine.HandleCount())
	}
	for i, v := range c.engine.values {
		c.lastPositions[i] = c.mapper.ValueToPosition(v)
	}
}

func (c *Controller) play(e sound.Effect, speed float64) {
	if c.muted {
		return
	}
	_ = c.player.Play(e, speed)
}

// Each observer gets its own copy of the values.
func (c *Controller) emitChange() {
	d := c.ChangeDetails()
	for _, s := range c.snapshot() {
		own := d
		own.Values = slices.Clone(d.Values)
		c.notify("change", func() { s.o.OnChange(own) })
	}
}

func (c *Controller) emitRelease() {
	d := c.ChangeDetails()
	for _, s := range c.snapshot() {
		own := d
		own.Values = slices.Clone(d.Values)
		c.notify("release", func() { s.o.OnRelease(own) })
	}
}

func (c *Controller) emitRollModeChange(m RollMode) {
	for _, s := range c.snapshot() {
		c.notify("roll mode change", func() { s.o.OnRollModeChange(m) })
	}
}

func (c *Controller) snapshot() []*observerSlot {
	return append([]*observerSlot(nil), c.observers...)
}

func (c *Controller) notify(event string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("slider observer failed",
				zap.String("event", event),
				zap.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	fn()
}
