// Package tween provides the frame-driven scheduling primitive used by every
// animated component: progress tweens, delayed callbacks and cancel handles.
// Nothing in this package reads the wall clock except Start; tests drive the
// Scheduler synchronously through Advance.
package tween

import (
	"context"
	"sync"
	"time"
)

// CancelFunc stops a scheduled tween or delayed callback.
// Calling it more than once is a no-op.
type CancelFunc func()

// Options describes a single tween.
type Options struct {
	// Duration is the tween length. Durations <= 0 complete on the next frame.
	Duration time.Duration
	// Ease shapes progress. nil means Linear.
	Ease Ease
	// Update receives eased progress in [0, 1] once per frame.
	Update func(progress float64)
	// Complete runs once after the final Update unless cancelled.
	Complete func()
}

// Host schedules tweens and delayed callbacks against a frame clock.
type Host interface {
	Tween(opts Options) CancelFunc
	After(delay time.Duration, fn func()) CancelFunc
}

type entry struct {
	start     time.Duration
	duration  time.Duration
	ease      Ease
	update    func(float64)
	complete  func()
	fire      func()
	done      bool
	cancelled bool
}

// Scheduler is a cooperative frame scheduler. Callbacks always run on the
// goroutine that calls Advance, never while the internal lock is held, so a
// callback may freely schedule or cancel other work.
//
// Invariant: a callback whose CancelFunc returned before the callback was
// reached is never invoked.
type Scheduler struct {
	mu     sync.Mutex
	now    time.Duration
	active []*entry
	posted []func()
}

// NewScheduler returns an idle Scheduler whose clock starts at zero.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Now returns the scheduler clock: the total duration advanced so far.
func (s *Scheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Pending returns the number of tweens and delayed callbacks that have not
// completed or been cancelled.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.active {
		if !e.done {
			n++
		}
	}
	return n
}

// Tween registers a progress tween starting at the current frame.
//
// Postcondition: opts.Update is first called on the next Advance.
func (s *Scheduler) Tween(opts Options) CancelFunc {
	ease := opts.Ease
	if ease == nil {
		ease = Linear
	}
	e := &entry{
		duration: opts.Duration,
		ease:     ease,
		update:   opts.Update,
		complete: opts.Complete,
	}
	return s.add(e)
}

// After registers fn to run once delay has elapsed on the scheduler clock.
func (s *Scheduler) After(delay time.Duration, fn func()) CancelFunc {
	if fn == nil {
		return func() {}
	}
	return s.add(&entry{duration: delay, fire: fn})
}

// Post queues fn to run at the start of the next frame. It is the only
// Scheduler method intended to be called from goroutines other than the
// frame goroutine while Start is running.
func (s *Scheduler) Post(fn func()) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.posted = append(s.posted, fn)
	s.mu.Unlock()
}

func (s *Scheduler) add(e *entry) CancelFunc {
	s.mu.Lock()
	e.start = s.now
	s.active = append(s.active, e)
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		e.cancelled = true
		e.done = true
		s.mu.Unlock()
	}
}

// Advance moves the clock forward by dt and runs one frame: posted work
// first, then every entry that was live when the frame began.
func (s *Scheduler) Advance(dt time.Duration) {
	s.mu.Lock()
	if dt > 0 {
		s.now += dt
	}
	now := s.now
	posted := s.posted
	s.posted = nil
	frame := make([]*entry, 0, len(s.active))
	for _, e := range s.active {
		if !e.done {
			frame = append(frame, e)
		}
	}
	s.active = append([]*entry(nil), frame...)
	s.mu.Unlock()

	for _, fn := range posted {
		fn()
	}
	for _, e := range frame {
		s.step(e, now)
	}
}

func (s *Scheduler) step(e *entry, now time.Duration) {
	s.mu.Lock()
	if e.done {
		s.mu.Unlock()
		return
	}
	elapsed := now - e.start

	if e.fire != nil {
		if elapsed < e.duration {
			s.mu.Unlock()
			return
		}
		e.done = true
		s.mu.Unlock()
		e.fire()
		return
	}

	t := 1.0
	if e.duration > 0 {
		t = min(1, float64(elapsed)/float64(e.duration))
	}
	finished := t >= 1
	if finished {
		e.done = true
	}
	s.mu.Unlock()

	if e.update != nil {
		e.update(e.ease(t))
	}
	if !finished || e.complete == nil {
		return
	}
	s.mu.Lock()
	cancelled := e.cancelled
	s.mu.Unlock()
	if !cancelled {
		e.complete()
	}
}

// Start drives the scheduler from the wall clock, one frame per interval,
// until ctx is cancelled.
//
// Precondition: interval > 0.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		panic("tween.Scheduler.Start: interval must be > 0")
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		last := time.Now()
		for {
			select {
			case <-ctx.Done():
				return
			case tick := <-ticker.C:
				s.Advance(tick.Sub(last))
				last = tick
			}
		}
	}()
}
