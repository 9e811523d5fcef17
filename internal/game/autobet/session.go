package autobet

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cory-johannsen/crashdice/internal/game/reveal"
	"github.com/cory-johannsen/crashdice/internal/game/table"
	"github.com/cory-johannsen/crashdice/internal/game/tween"
	"github.com/cory-johannsen/crashdice/internal/relay"
)

var (
	// ErrBusy is returned when a bet or run is requested while one is in progress.
	ErrBusy = errors.New("autobet: session busy")
	// ErrInvalidAmount is returned for non-positive stakes.
	ErrInvalidAmount = errors.New("autobet: invalid bet amount")
)

// StopReason says why an automatic run ended.
type StopReason string

const (
	StopRequested  StopReason = "requested"
	StopBetsDone   StopReason = "bets-done"
	StopProfit     StopReason = "profit-target"
	StopLoss       StopReason = "loss-limit"
	StopStrategy   StopReason = "strategy"
	StopError      StopReason = "error"
	StopInvalidBet StopReason = "invalid-bet"
)

// State is the session's betting state.
type State string

const (
	Idle State = "idle"
	// Awaiting means a bet has been sent and its outcome is pending.
	Awaiting State = "awaiting"
	// Waiting means an automatic run is paused between rounds.
	Waiting State = "waiting"
)

// Scheduler is the frame host a Session schedules on.
type Scheduler interface {
	tween.Host
	Post(fn func())
}

// Stats accumulates the results of the current run.
type Stats struct {
	Bets       int
	Wins       int
	Losses     int
	WinStreak  int
	LoseStreak int
	Wagered    decimal.Decimal
	Profit     decimal.Decimal
	LastRoll   float64
}

func (s *Stats) record(req relay.BetRequest, res relay.BetResult) {
	s.Bets++
	s.Wagered = s.Wagered.Add(req.Amount)
	s.Profit = s.Profit.Add(res.Profit)
	s.LastRoll = res.Roll
	if res.IsWin {
		s.Wins++
		s.WinStreak++
		s.LoseStreak = 0
	} else {
		s.Losses++
		s.LoseStreak++
		s.WinStreak = 0
	}
}

// Option customizes a Session.
type Option func(*Session)

// WithDispatch replaces the goroutine launcher used for relay calls.
func WithDispatch(fn func(func())) Option {
	return func(s *Session) { s.dispatch = fn }
}

// Session drives betting rounds. Each round reads the table's targets, settles
// through the relay on a separate goroutine, then reveals the roll and applies
// the plan back on the frame goroutine.
//
// All methods must be called on the frame goroutine.
type Session struct {
	table    *table.Table
	sched    Scheduler
	relay    relay.Relay
	logger   *zap.Logger
	dispatch func(func())

	observers []*observerSlot

	state       State
	auto        bool
	plan        Plan
	strategy    Strategy
	remaining   int
	stopPending bool
	baseBet     decimal.Decimal
	currentBet  decimal.Decimal
	stats       Stats
	round       int
	generation  uint64
	ctx         context.Context
	cancel      context.CancelFunc
	cancelDelay tween.CancelFunc
}

// NewSession returns an idle Session staking baseBet.
//
// Precondition: tbl, sched and r must be non-nil.
func NewSession(tbl *table.Table, sched Scheduler, r relay.Relay, baseBet decimal.Decimal, logger *zap.Logger, opts ...Option) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		table:      tbl,
		sched:      sched,
		relay:      r,
		logger:     logger,
		dispatch:   func(fn func()) { go fn() },
		state:      Idle,
		baseBet:    baseBet,
		currentBet: baseBet,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current betting state.
func (s *Session) State() State { return s.state }

// Auto reports whether an automatic run is active.
func (s *Session) Auto() bool { return s.auto }

// StopPending reports whether a stop was requested while awaiting an outcome.
func (s *Session) StopPending() bool { return s.stopPending }

// Stats returns the statistics of the current or last run.
func (s *Session) Stats() Stats { return s.stats }

// CurrentBet returns the stake of the next round.
func (s *Session) CurrentBet() decimal.Decimal { return s.currentBet }

// Remaining returns the rounds left in the current run; 0 means unbounded.
func (s *Session) Remaining() int { return s.remaining }

// DemoMode reports whether the relay simulates bets locally.
func (s *Session) DemoMode() bool { return s.relay.DemoMode() }

// SetBet sets the stake of the next round.
func (s *Session) SetBet(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	s.currentBet = amount.Round(BetPlaces)
	if !s.auto {
		s.baseBet = s.currentBet
	}
	return nil
}

// PlaceBet sends one manual bet with the current stake.
func (s *Session) PlaceBet(ctx context.Context) error {
	if s.state != Idle {
		return ErrBusy
	}
	if !s.currentBet.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, s.currentBet)
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.auto = false
	s.send()
	return nil
}

// StartAuto begins an automatic run. Stats reset at the start of every run.
func (s *Session) StartAuto(ctx context.Context, plan Plan) error {
	if s.state != Idle {
		return ErrBusy
	}
	if err := plan.Validate(); err != nil {
		return fmt.Errorf("starting auto bet: %w", err)
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.auto = true
	s.plan = plan
	s.strategy = plan.strategy()
	s.remaining = plan.Bets
	s.stopPending = false
	s.stats = Stats{}
	s.baseBet = plan.BaseBet.Round(BetPlaces)
	s.currentBet = s.baseBet
	s.logger.Info("auto bet started",
		zap.Int("bets", plan.Bets),
		zap.String("base_bet", s.baseBet.String()),
		zap.Bool("demo", s.relay.DemoMode()),
	)
	s.send()
	return nil
}

// RequestStop ends an automatic run gracefully: immediately when waiting
// between rounds, after the outcome arrives when a bet is in flight.
func (s *Session) RequestStop() {
	if !s.auto {
		return
	}
	if s.state == Awaiting {
		s.stopPending = true
		return
	}
	s.finish(StopRequested, nil)
}

// Stop ends any activity at once. An in-flight outcome is discarded.
func (s *Session) Stop() {
	if s.state == Idle {
		return
	}
	s.finish(StopRequested, nil)
}

// send builds a request from the table and settles it off the frame goroutine.
func (s *Session) send() {
	s.cancelDelay = nil
	req := relay.BetRequest{
		ID:         uuid.New(),
		Amount:     s.currentBet,
		RollMode:   s.table.RollMode(),
		Targets:    s.table.Slider().Values(),
		WinChance:  s.table.WinChance(),
		Multiplier: s.table.Slider().Multiplier(),
	}
	s.state = Awaiting
	s.round++
	s.generation++
	gen, ctx, r := s.generation, s.ctx, s.relay
	s.table.HideWinPopup()

	s.logger.Debug("bet sent",
		zap.String("bet_id", req.ID.String()),
		zap.Bool("auto", s.auto),
		zap.String("amount", req.Amount.String()),
		zap.String("mode", req.RollMode.String()),
		zap.Float64s("targets", req.Targets),
	)
	s.dispatch(func() {
		res, err := r.PlaceBet(ctx, req)
		s.sched.Post(func() { s.settled(gen, req, res, err) })
	})
}

func (s *Session) settled(gen uint64, req relay.BetRequest, res relay.BetResult, err error) {
	if gen != s.generation || s.state != Awaiting {
		return
	}
	if err != nil {
		s.logger.Warn("bet failed", zap.String("bet_id", req.ID.String()), zap.Error(err))
		reason := StopError
		if errors.Is(err, relay.ErrInvalidBet) {
			reason = StopInvalidBet
		}
		s.finish(reason, err)
		return
	}

	outcome := s.table.RevealDiceOutcome(reveal.Request{Roll: res.Roll})
	if res.IsWin {
		s.table.ShowWinPopup(req.Multiplier, res.Payout)
	}
	s.stats.record(req, res)
	round := Round{
		Number:  s.round,
		Auto:    s.auto,
		Request: req,
		Result:  res,
		Stats:   s.stats,
		BaseBet: s.baseBet,
	}
	s.logger.Info("bet settled",
		zap.Int("round", s.round),
		zap.Float64("roll", res.Roll),
		zap.Bool("win", res.IsWin),
		zap.String("profit", res.Profit.String()),
		zap.String("session_profit", s.stats.Profit.String()),
	)
	s.notifyRound(round, outcome)

	if !s.auto {
		s.state = Idle
		s.cancel()
		return
	}
	s.advance(round)
}

// advance applies the strategy and stop conditions after an automatic round.
func (s *Session) advance(round Round) {
	decision, err := s.strategy.Next(round)
	if err != nil {
		s.logger.Warn("strategy failed", zap.Error(err))
		s.finish(StopStrategy, err)
		return
	}
	if decision.NextBet.IsPositive() {
		s.currentBet = decision.NextBet.Round(BetPlaces)
	}
	if decision.WinChance > 0 {
		s.table.Slider().SetWinChance(decision.WinChance)
	}

	switch {
	case decision.Stop:
		s.finish(StopStrategy, nil)
		return
	case s.plan.StopOnProfit.IsPositive() && s.stats.Profit.GreaterThanOrEqual(s.plan.StopOnProfit):
		s.finish(StopProfit, nil)
		return
	case s.plan.StopOnLoss.IsPositive() && s.stats.Profit.Neg().GreaterThanOrEqual(s.plan.StopOnLoss):
		s.finish(StopLoss, nil)
		return
	}

	if s.plan.Bets > 0 {
		s.remaining--
		if s.remaining <= 0 {
			s.finish(StopBetsDone, nil)
			return
		}
	}
	if s.stopPending {
		s.finish(StopRequested, nil)
		return
	}

	s.state = Waiting
	s.cancelDelay = s.sched.After(s.plan.delay(), func() {
		if s.state != Waiting {
			return
		}
		if s.ctx.Err() != nil {
			s.finish(StopError, s.ctx.Err())
			return
		}
		s.send()
	})
}

func (s *Session) finish(reason StopReason, err error) {
	wasAuto := s.auto
	if s.cancelDelay != nil {
		s.cancelDelay()
		s.cancelDelay = nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.generation++
	s.state = Idle
	s.auto = false
	s.stopPending = false
	s.remaining = 0
	if !wasAuto {
		if err != nil {
			s.notifyStop(reason, err)
		}
		return
	}
	s.logger.Info("auto bet stopped",
		zap.String("reason", string(reason)),
		zap.Int("bets", s.stats.Bets),
		zap.String("profit", s.stats.Profit.String()),
		zap.Error(err),
	)
	s.notifyStop(reason, err)
}
