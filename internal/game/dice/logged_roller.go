package dice

import "go.uber.org/zap"

// Roller wraps a Source and logger to provide logged dice rolling.
// All rolls are logged at debug level with the raw draw and the roll.
type Roller struct {
	src    Source
	logger *zap.Logger
}

// NewLoggedRoller creates a Roller that rolls with src and logs each roll to logger.
//
// Precondition: src must be non-nil. A nil logger discards output.
func NewLoggedRoller(src Source, logger *zap.Logger) *Roller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Roller{src: src, logger: logger}
}

// Roll draws from the source and converts the draw into a roll.
//
// Postcondition: result is in [0, 100] with two decimals; the roll is logged.
func (r *Roller) Roll() float64 {
	f := r.src.Float64()
	roll := RollFromFloat(f)
	r.logger.Debug("dice roll",
		zap.Float64("raw_float", f),
		zap.Float64("roll", roll),
	)
	return roll
}
