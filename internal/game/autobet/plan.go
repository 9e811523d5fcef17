// Package autobet orchestrates manual and automatic betting rounds between a
// table and a relay.
package autobet

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cory-johannsen/crashdice/internal/relay"
)

// BetPlaces is the precision bet amounts are rounded to.
const BetPlaces = 8

// DefaultRoundDelay is the pause between automatic rounds.
const DefaultRoundDelay = time.Second

// Action is what an automatic run does to the bet after a round.
type Action string

const (
	// Reset returns the bet to the base bet.
	Reset Action = "reset"
	// Increase multiplies the current bet by 1 + Percent/100.
	Increase Action = "increase"
)

// Adjust configures the reaction to a win or a loss.
type Adjust struct {
	Action  Action          `yaml:"action"`
	Percent decimal.Decimal `yaml:"percent"`
}

// Apply returns the bet following this adjustment.
//
// Postcondition: result >= 0 and rounded to BetPlaces.
func (a Adjust) Apply(current, base decimal.Decimal) decimal.Decimal {
	if a.Action != Increase {
		return base
	}
	pct := decimal.Max(decimal.Zero, a.Percent)
	factor := decimal.NewFromInt(1).Add(pct.Div(decimal.NewFromInt(100)))
	return current.Mul(factor).Round(BetPlaces)
}

// Validate rejects unknown actions and negative percentages.
func (a Adjust) Validate() error {
	switch a.Action {
	case "", Reset, Increase:
	default:
		return fmt.Errorf("unknown action %q", a.Action)
	}
	if a.Percent.IsNegative() {
		return fmt.Errorf("percent must not be negative, got %s", a.Percent)
	}
	return nil
}

// Round is what a Strategy sees after each settled bet.
type Round struct {
	Number  int
	Auto    bool
	Request relay.BetRequest
	Result  relay.BetResult
	Stats   Stats
	BaseBet decimal.Decimal
}

// Decision is a Strategy's answer for the next round.
type Decision struct {
	// NextBet is the stake of the next round.
	NextBet decimal.Decimal
	// WinChance, when positive, is applied to the table before the next round.
	WinChance float64
	// Stop ends the run after this round.
	Stop bool
}

// Strategy decides the next bet of an automatic run.
type Strategy interface {
	Next(r Round) (Decision, error)
}

// AdjustStrategy applies one Adjust on wins and another on losses.
type AdjustStrategy struct {
	OnWin  Adjust
	OnLoss Adjust
}

// Next implements Strategy.
func (s AdjustStrategy) Next(r Round) (Decision, error) {
	adj := s.OnLoss
	if r.Result.IsWin {
		adj = s.OnWin
	}
	return Decision{NextBet: adj.Apply(r.Request.Amount, r.BaseBet)}, nil
}

// Plan configures one automatic run.
type Plan struct {
	// Bets is the number of rounds; 0 runs until stopped.
	Bets int
	// BaseBet is the first stake and the target of Reset.
	BaseBet decimal.Decimal
	OnWin   Adjust
	OnLoss  Adjust
	// StopOnProfit ends the run once session profit reaches it; 0 disables.
	StopOnProfit decimal.Decimal
	// StopOnLoss ends the run once session loss reaches it; 0 disables.
	StopOnLoss decimal.Decimal
	// RoundDelay is the pause between rounds; 0 means DefaultRoundDelay.
	RoundDelay time.Duration
	// Strategy overrides OnWin and OnLoss when set.
	Strategy Strategy
}

// Validate reports every problem with the plan.
func (p Plan) Validate() error {
	if p.Bets < 0 {
		return fmt.Errorf("bets must not be negative, got %d", p.Bets)
	}
	if !p.BaseBet.IsPositive() {
		return fmt.Errorf("base bet must be positive, got %s", p.BaseBet)
	}
	if err := p.OnWin.Validate(); err != nil {
		return fmt.Errorf("on win: %w", err)
	}
	if err := p.OnLoss.Validate(); err != nil {
		return fmt.Errorf("on loss: %w", err)
	}
	if p.StopOnProfit.IsNegative() || p.StopOnLoss.IsNegative() {
		return fmt.Errorf("stop thresholds must not be negative")
	}
	if p.RoundDelay < 0 {
		return fmt.Errorf("round delay must not be negative")
	}
	return nil
}

func (p Plan) strategy() Strategy {
	if p.Strategy != nil {
		return p.Strategy
	}
	return AdjustStrategy{OnWin: p.OnWin, OnLoss: p.OnLoss}
}

func (p Plan) delay() time.Duration {
	if p.RoundDelay <= 0 {
		return DefaultRoundDelay
	}
	return p.RoundDelay
}
