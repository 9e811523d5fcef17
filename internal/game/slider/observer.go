package slider

// ChangeDetails is the derived slider state delivered with every event.
type ChangeDetails struct {
	Values     []float64
	RollMode   RollMode
	WinChance  float64
	Multiplier float64
}

// Observer receives slider events. Implementations run on the caller's
// goroutine and must not block.
type Observer interface {
	// OnChange fires after any handle value changes, interactively or programmatically.
	OnChange(details ChangeDetails)
	// OnRelease fires when a drag ends.
	OnRelease(details ChangeDetails)
	// OnRollModeChange fires after the roll mode switches.
	OnRollModeChange(mode RollMode)
}

// ObserverFuncs adapts optional functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Change         func(ChangeDetails)
	Release        func(ChangeDetails)
	RollModeChange func(RollMode)
}

// OnChange calls f.Change if set.
func (f ObserverFuncs) OnChange(d ChangeDetails) {
	if f.Change != nil {
		f.Change(d)
	}
}

// OnRelease calls f.Release if set.
func (f ObserverFuncs) OnRelease(d ChangeDetails) {
	if f.Release != nil {
		f.Release(d)
	}
}

// OnRollModeChange calls f.RollModeChange if set.
func (f ObserverFuncs) OnRollModeChange(m RollMode) {
	if f.RollModeChange != nil {
		f.RollModeChange(m)
	}
}
