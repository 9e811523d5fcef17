package relay

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/crashdice/internal/game/dice"
	"github.com/cory-johannsen/crashdice/internal/observability"
)

// DemoRelay settles bets locally from a dice roller.
type DemoRelay struct {
	roller  *dice.Roller
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewDemoRelay returns a DemoRelay rolling with roller.
//
// Precondition: roller must be non-nil. metrics and logger may be nil.
func NewDemoRelay(roller *dice.Roller, metrics *observability.Metrics, logger *zap.Logger) *DemoRelay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DemoRelay{roller: roller, metrics: metrics, logger: logger}
}

// DemoMode always reports true.
func (d *DemoRelay) DemoMode() bool { return true }

// PlaceBet validates req, rolls and settles.
func (d *DemoRelay) PlaceBet(ctx context.Context, req BetRequest) (BetResult, error) {
	if err := ctx.Err(); err != nil {
		return BetResult{}, fmt.Errorf("placing demo bet: %w", err)
	}
	if err := req.Validate(); err != nil {
		return BetResult{}, err
	}
	res := Settle(req, d.roller.Roll())
	d.metrics.ObserveBet(req.RollMode.String(), res.IsWin, req.Amount.InexactFloat64())
	d.logger.Debug("demo bet settled",
		zap.String("bet_id", req.ID.String()),
		zap.String("mode", req.RollMode.String()),
		zap.Float64("roll", res.Roll),
		zap.Bool("win", res.IsWin),
		zap.String("profit", res.Profit.String()),
	)
	return res, nil
}
