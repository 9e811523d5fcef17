package autobet_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/crashdice/internal/game/autobet"
	"github.com/cory-johannsen/crashdice/internal/game/reveal"
	"github.com/cory-johannsen/crashdice/internal/game/table"
	"github.com/cory-johannsen/crashdice/internal/game/tween"
	"github.com/cory-johannsen/crashdice/internal/relay"
)

type scriptedRelay struct {
	rolls []float64
	calls []relay.BetRequest
	err   error
}

func (r *scriptedRelay) PlaceBet(_ context.Context, req relay.BetRequest) (relay.BetResult, error) {
	if r.err != nil {
		return relay.BetResult{}, r.err
	}
	r.calls = append(r.calls, req)
	roll := r.rolls[(len(r.calls)-1)%len(r.rolls)]
	return relay.Settle(req, roll), nil
}

func (r *scriptedRelay) DemoMode() bool { return true }

func (r *scriptedRelay) amounts() []string {
	out := make([]string, len(r.calls))
	for i, c := range r.calls {
		out[i] = c.Amount.String()
	}
	return out
}

type recorder struct {
	rounds  []autobet.Round
	reasons []autobet.StopReason
	errs    []error
}

func (r *recorder) observer() autobet.Observer {
	return autobet.ObserverFuncs{
		Round: func(round autobet.Round, _ reveal.Outcome) { r.rounds = append(r.rounds, round) },
		Stop: func(reason autobet.StopReason, err error) {
			r.reasons = append(r.reasons, reason)
			r.errs = append(r.errs, err)
		},
	}
}

type fixture struct {
	sched   *tween.Scheduler
	table   *table.Table
	relay   *scriptedRelay
	session *autobet.Session
	events  *recorder
	logs    *observer.ObservedLogs
}

func newFixture(rolls ...float64) *fixture {
	core, logs := observer.New(zap.InfoLevel)
	sched := tween.NewScheduler()
	tbl := table.New(table.DefaultConfig(), sched, nil, nil, 400, 800)
	r := &scriptedRelay{rolls: rolls}
	s := autobet.NewSession(tbl, sched, r, decimal.NewFromInt(1), zap.New(core),
		autobet.WithDispatch(func(fn func()) { fn() }))
	events := &recorder{}
	s.AddObserver(events.observer())
	return &fixture{sched: sched, table: tbl, relay: r, session: s, events: events, logs: logs}
}

// settle delivers the posted outcome.
func (f *fixture) settle() { f.sched.Advance(0) }

// nextRound waits out the round delay and delivers the following outcome.
func (f *fixture) nextRound() {
	f.sched.Advance(time.Second)
	f.sched.Advance(0)
}

func plan(base string) autobet.Plan {
	return autobet.Plan{BaseBet: decimal.RequireFromString(base)}
}

func TestSession_ManualBet(t *testing.T) {
	f := newFixture(50)
	require.NoError(t, f.session.SetBet(decimal.NewFromInt(10)))

	require.NoError(t, f.session.PlaceBet(context.Background()))
	assert.Equal(t, autobet.Awaiting, f.session.State())
	assert.ErrorIs(t, f.session.PlaceBet(context.Background()), autobet.ErrBusy)

	f.settle()
	assert.Equal(t, autobet.Idle, f.session.State())
	stats := f.session.Stats()
	assert.Equal(t, 1, stats.Bets)
	assert.Equal(t, 1, stats.Wins)
	assert.Equal(t, "9.8", stats.Profit.String())

	require.Len(t, f.events.rounds, 1)
	assert.False(t, f.events.rounds[0].Auto)
	assert.Empty(t, f.events.reasons)

	state := f.table.State()
	assert.True(t, state.WinPopup.Visible)
	assert.Equal(t, "19.80", state.WinPopup.Amount)
	require.Len(t, state.History, 1)
	assert.True(t, state.History[0].IsWin)
}

func TestSession_ManualBetUsesTableTargets(t *testing.T) {
	f := newFixture(10)
	f.table.Slider().SetValues([]float64{5, 20})

	require.NoError(t, f.session.PlaceBet(context.Background()))
	f.settle()

	require.Len(t, f.relay.calls, 1)
	req := f.relay.calls[0]
	assert.Equal(t, []float64{5, 20}, req.Targets)
	assert.Equal(t, 15.0, req.WinChance)
	assert.Equal(t, 6.6, req.Multiplier)
	assert.Equal(t, 1, f.session.Stats().Wins)
}

func TestSession_SetBetRejectsNonPositive(t *testing.T) {
	f := newFixture(50)
	assert.ErrorIs(t, f.session.SetBet(decimal.Zero), autobet.ErrInvalidAmount)
	assert.ErrorIs(t, f.session.SetBet(decimal.NewFromInt(-1)), autobet.ErrInvalidAmount)
	assert.Equal(t, "1", f.session.CurrentBet().String())
}

func TestSession_AutoRunsFixedNumberOfBets(t *testing.T) {
	f := newFixture(50, 90, 10)
	p := plan("1")
	p.Bets = 3

	require.NoError(t, f.session.StartAuto(context.Background(), p))
	assert.True(t, f.session.Auto())
	f.settle()
	assert.Equal(t, 2, f.session.Remaining())
	assert.Equal(t, autobet.Waiting, f.session.State())

	f.nextRound()
	f.nextRound()
	assert.Equal(t, autobet.Idle, f.session.State())
	assert.False(t, f.session.Auto())
	assert.Equal(t, []autobet.StopReason{autobet.StopBetsDone}, f.events.reasons)
	assert.Len(t, f.relay.calls, 3)

	f.nextRound()
	assert.Len(t, f.relay.calls, 3, "no rounds after the run ends")

	stats := f.session.Stats()
	assert.Equal(t, 1, stats.Wins)
	assert.Equal(t, 2, stats.Losses)
	assert.Equal(t, 2, stats.LoseStreak)
	assert.Equal(t, "-1.02", stats.Profit.String())
}

func TestSession_AutoRoundDelay(t *testing.T) {
	f := newFixture(50)
	p := plan("1")
	p.RoundDelay = 250 * time.Millisecond

	require.NoError(t, f.session.StartAuto(context.Background(), p))
	f.settle()
	f.sched.Advance(200 * time.Millisecond)
	assert.Len(t, f.relay.calls, 1)
	f.sched.Advance(50 * time.Millisecond)
	assert.Len(t, f.relay.calls, 2)
}

func TestSession_IncreaseOnLossResetOnWin(t *testing.T) {
	f := newFixture(90, 90, 50, 90)
	p := plan("1")
	p.Bets = 4
	p.OnWin = autobet.Adjust{Action: autobet.Reset}
	p.OnLoss = autobet.Adjust{Action: autobet.Increase, Percent: decimal.NewFromInt(100)}

	require.NoError(t, f.session.StartAuto(context.Background(), p))
	f.settle()
	f.nextRound()
	f.nextRound()
	f.nextRound()

	assert.Equal(t, []string{"1", "2", "4", "1"}, f.relay.amounts())
	assert.Equal(t, []autobet.StopReason{autobet.StopBetsDone}, f.events.reasons)
}

func TestSession_StopOnProfit(t *testing.T) {
	f := newFixture(50)
	p := plan("10")
	p.StopOnProfit = decimal.NewFromInt(5)

	require.NoError(t, f.session.StartAuto(context.Background(), p))
	f.settle()

	assert.Equal(t, autobet.Idle, f.session.State())
	assert.Equal(t, []autobet.StopReason{autobet.StopProfit}, f.events.reasons)
	assert.Len(t, f.logs.FilterMessage("auto bet stopped").All(), 1)
}

func TestSession_StopOnLoss(t *testing.T) {
	f := newFixture(90)
	p := plan("1")
	p.StopOnLoss = decimal.RequireFromString("2.5")

	require.NoError(t, f.session.StartAuto(context.Background(), p))
	f.settle()
	f.nextRound()
	assert.Equal(t, autobet.Waiting, f.session.State())
	f.nextRound()

	assert.Len(t, f.relay.calls, 3)
	assert.Equal(t, []autobet.StopReason{autobet.StopLoss}, f.events.reasons)
	assert.Equal(t, "-3", f.session.Stats().Profit.String())
}

func TestSession_RequestStopWhileAwaitingFinishesAfterOutcome(t *testing.T) {
	f := newFixture(50)
	require.NoError(t, f.session.StartAuto(context.Background(), plan("1")))

	f.session.RequestStop()
	assert.True(t, f.session.StopPending())
	assert.Equal(t, autobet.Awaiting, f.session.State())

	f.settle()
	assert.Equal(t, autobet.Idle, f.session.State())
	assert.False(t, f.session.StopPending())
	assert.Len(t, f.events.rounds, 1, "the in-flight outcome is still revealed")
	assert.Equal(t, []autobet.StopReason{autobet.StopRequested}, f.events.reasons)

	f.nextRound()
	assert.Len(t, f.relay.calls, 1)
}

func TestSession_RequestStopWhileWaitingIsImmediate(t *testing.T) {
	f := newFixture(50)
	require.NoError(t, f.session.StartAuto(context.Background(), plan("1")))
	f.settle()
	require.Equal(t, autobet.Waiting, f.session.State())

	f.session.RequestStop()
	assert.Equal(t, autobet.Idle, f.session.State())
	f.nextRound()
	assert.Len(t, f.relay.calls, 1)
}

func TestSession_UnboundedRunContinuesUntilStopped(t *testing.T) {
	f := newFixture(50, 90)
	require.NoError(t, f.session.StartAuto(context.Background(), plan("1")))
	f.settle()
	for i := 0; i < 9; i++ {
		f.nextRound()
	}
	assert.Len(t, f.relay.calls, 10)
	assert.True(t, f.session.Auto())
	assert.Zero(t, f.session.Remaining())

	f.session.RequestStop()
	assert.False(t, f.session.Auto())
}

func TestSession_StopDiscardsInFlightOutcome(t *testing.T) {
	f := newFixture(50)
	require.NoError(t, f.session.PlaceBet(context.Background()))
	f.session.Stop()
	f.settle()

	assert.Equal(t, autobet.Idle, f.session.State())
	assert.Zero(t, f.session.Stats().Bets)
	assert.Empty(t, f.table.History().Entries())
}

func TestSession_RelayErrorEndsRun(t *testing.T) {
	f := newFixture(50)
	boom := errors.New("connection reset")
	f.relay.err = boom

	require.NoError(t, f.session.StartAuto(context.Background(), plan("1")))
	f.settle()

	assert.Equal(t, autobet.Idle, f.session.State())
	require.Equal(t, []autobet.StopReason{autobet.StopError}, f.events.reasons)
	assert.ErrorIs(t, f.events.errs[0], boom)
}

func TestSession_InvalidTargetsStopRun(t *testing.T) {
	f := newFixture(50)
	f.relay.err = relay.ErrInvalidBet

	require.NoError(t, f.session.PlaceBet(context.Background()))
	f.settle()
	assert.Equal(t, []autobet.StopReason{autobet.StopInvalidBet}, f.events.reasons)
}

func TestSession_StartAutoValidatesPlan(t *testing.T) {
	f := newFixture(50)
	bad := []autobet.Plan{
		{BaseBet: decimal.Zero},
		{BaseBet: decimal.NewFromInt(1), Bets: -1},
		{BaseBet: decimal.NewFromInt(1), OnWin: autobet.Adjust{Action: "double"}},
		{BaseBet: decimal.NewFromInt(1), StopOnLoss: decimal.NewFromInt(-1)},
	}
	for _, p := range bad {
		assert.Error(t, f.session.StartAuto(context.Background(), p))
	}
	assert.Equal(t, autobet.Idle, f.session.State())
	assert.Empty(t, f.relay.calls)
}

type stubStrategy struct {
	decisions []autobet.Decision
	seen      []autobet.Round
}

func (s *stubStrategy) Next(r autobet.Round) (autobet.Decision, error) {
	s.seen = append(s.seen, r)
	d := s.decisions[0]
	s.decisions = s.decisions[1:]
	return d, nil
}

func TestSession_StrategyControlsBetAndChance(t *testing.T) {
	f := newFixture(50, 50)
	strat := &stubStrategy{decisions: []autobet.Decision{
		{NextBet: decimal.RequireFromString("2.5"), WinChance: 20},
		{Stop: true},
	}}
	p := plan("1")
	p.Strategy = strat

	require.NoError(t, f.session.StartAuto(context.Background(), p))
	f.settle()
	assert.Equal(t, 20.0, f.table.WinChance())
	f.nextRound()

	require.Len(t, f.relay.calls, 2)
	assert.Equal(t, "2.5", f.relay.calls[1].Amount.String())
	assert.Equal(t, 20.0, f.relay.calls[1].WinChance)
	assert.Equal(t, []autobet.StopReason{autobet.StopStrategy}, f.events.reasons)
	assert.Equal(t, 2, strat.seen[1].Stats.Bets)
}

func TestSession_ObserverPanicIsRecovered(t *testing.T) {
	f := newFixture(50)
	f.session.AddObserver(autobet.ObserverFuncs{Round: func(autobet.Round, reveal.Outcome) { panic("boom") }})

	require.NoError(t, f.session.PlaceBet(context.Background()))
	assert.NotPanics(t, f.settle)
	assert.Len(t, f.events.rounds, 1)
}
