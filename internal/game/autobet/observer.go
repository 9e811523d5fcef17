package autobet

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/crashdice/internal/game/reveal"
)

// Observer receives session events on the frame goroutine.
type Observer interface {
	// OnRound fires after every settled bet, manual or automatic.
	OnRound(r Round, outcome reveal.Outcome)
	// OnStop fires when an automatic run ends, or when a manual bet fails.
	OnStop(reason StopReason, err error)
}

// ObserverFuncs adapts optional functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Round func(Round, reveal.Outcome)
	Stop  func(StopReason, error)
}

// OnRound calls f.Round if set.
func (f ObserverFuncs) OnRound(r Round, o reveal.Outcome) {
	if f.Round != nil {
		f.Round(r, o)
	}
}

// OnStop calls f.Stop if set.
func (f ObserverFuncs) OnStop(reason StopReason, err error) {
	if f.Stop != nil {
		f.Stop(reason, err)
	}
}

type observerSlot struct{ o Observer }

// AddObserver registers o and returns a function that removes it.
func (s *Session) AddObserver(o Observer) (remove func()) {
	slot := &observerSlot{o: o}
	s.observers = append(s.observers, slot)
	return func() {
		for i, os := range s.observers {
			if os == slot {
				s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

func (s *Session) notifyRound(r Round, o reveal.Outcome) {
	for _, slot := range append([]*observerSlot(nil), s.observers...) {
		s.notify("round", func() { slot.o.OnRound(r, o) })
	}
}

func (s *Session) notifyStop(reason StopReason, err error) {
	for _, slot := range append([]*observerSlot(nil), s.observers...) {
		s.notify("stop", func() { slot.o.OnStop(reason, err) })
	}
}

func (s *Session) notify(event string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("autobet observer failed",
				zap.String("event", event),
				zap.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	fn()
}
