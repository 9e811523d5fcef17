// Package relay settles bets either locally (demo) or against a remote game
// server over HTTP.
package relay

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cory-johannsen/crashdice/internal/game/slider"
)

// Range bounds every roll and target.
const (
	RangeMin = 0.0
	RangeMax = 100.0
)

// PayoutPlaces is the number of decimal places payouts are rounded to.
const PayoutPlaces = 8

var (
	// ErrNoSession is returned when a remote bet is attempted before Connect succeeded.
	ErrNoSession = errors.New("relay: no session")
	// ErrInvalidBet is returned for requests that can never settle.
	ErrInvalidBet = errors.New("relay: invalid bet")
	// ErrRejected is returned when the remote server answers IsSuccess=false.
	ErrRejected = errors.New("relay: rejected by server")
)

// BetRequest describes one wager against the current table targets.
type BetRequest struct {
	ID       uuid.UUID
	Amount   decimal.Decimal
	RollMode slider.RollMode
	// Targets holds RollMode.HandleCount() ascending values.
	Targets []float64
	// WinChance and Multiplier are the client's view; settlement recomputes both from Targets.
	WinChance  float64
	Multiplier float64
}

// Validate reports why req cannot be settled, wrapping ErrInvalidBet.
func (req BetRequest) Validate() error {
	if !req.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive, got %s", ErrInvalidBet, req.Amount)
	}
	if len(req.Targets) != req.RollMode.HandleCount() {
		return fmt.Errorf("%w: %s needs %d targets, got %d", ErrInvalidBet, req.RollMode, req.RollMode.HandleCount(), len(req.Targets))
	}
	prev := RangeMin
	for i, v := range req.Targets {
		if math.IsNaN(v) || v < prev || v > RangeMax {
			return fmt.Errorf("%w: target %d (%v) out of order or range", ErrInvalidBet, i, v)
		}
		prev = v
	}
	if slider.WinChanceOf(req.RollMode, req.Targets, RangeMin, RangeMax) <= 0 {
		return fmt.Errorf("%w: win chance is zero", ErrInvalidBet)
	}
	return nil
}

// BetResult is the settled outcome of a BetRequest.
type BetResult struct {
	ID    uuid.UUID
	Roll  float64
	IsWin bool
	// Payout is the amount returned on a win, stake included; zero on a loss.
	Payout decimal.Decimal
	// Profit is Payout minus the stake.
	Profit decimal.Decimal
	// Nonce and ServerSeedHash identify the provably fair draw when the settler exposes one.
	Nonce          uint64
	ServerSeedHash string
}

// Settle applies the win rules to roll.
//
// Precondition: req.Validate() returned nil.
// Postcondition: Profit == Payout - Amount.
func Settle(req BetRequest, roll float64) BetResult {
	res := BetResult{ID: req.ID, Roll: roll, Payout: decimal.Zero}
	if slider.Wins(req.RollMode, req.Targets, roll) {
		res.IsWin = true
		m := slider.MultiplierOf(slider.WinChanceOf(req.RollMode, req.Targets, RangeMin, RangeMax))
		res.Payout = req.Amount.Mul(decimal.NewFromFloat(m)).Round(PayoutPlaces)
	}
	res.Profit = res.Payout.Sub(req.Amount)
	return res
}

// Relay settles bets.
//
// Implementations MUST be safe for use from a goroutine other than the frame goroutine.
type Relay interface {
	// PlaceBet settles req, blocking until the outcome is known or ctx ends.
	PlaceBet(ctx context.Context, req BetRequest) (BetResult, error)
	// DemoMode reports whether bets are simulated locally.
	DemoMode() bool
}
