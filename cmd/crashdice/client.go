package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cory-johannsen/crashdice/internal/config"
	"github.com/cory-johannsen/crashdice/internal/game/autobet"
	"github.com/cory-johannsen/crashdice/internal/game/dice"
	"github.com/cory-johannsen/crashdice/internal/game/reveal"
	"github.com/cory-johannsen/crashdice/internal/game/slider"
	"github.com/cory-johannsen/crashdice/internal/game/sound"
	"github.com/cory-johannsen/crashdice/internal/game/table"
	"github.com/cory-johannsen/crashdice/internal/game/tween"
	"github.com/cory-johannsen/crashdice/internal/observability"
	"github.com/cory-johannsen/crashdice/internal/relay"
	"github.com/cory-johannsen/crashdice/internal/scripting"
)

// options are the command-line overrides applied on top of configuration.
type options struct {
	Bets      int
	Manual    bool
	Demo      bool
	Preset    string
	Script    string
	RollMode  string
	WinChance float64
}

// newRelay returns a demo relay or a connected remote relay. A remote relay
// that fails to connect falls back to demo when the configuration allows it.
func newRelay(ctx context.Context, cfg config.RelayConfig, forceDemo bool, metrics *observability.Metrics, logger *zap.Logger) (relay.Relay, error) {
	if forceDemo || cfg.Mode != config.RelayRemote {
		return demoRelay(metrics, logger), nil
	}

	remote := relay.NewRemoteRelay(relay.RemoteConfig{
		BaseURL:         cfg.URL,
		GameID:          cfg.GameID,
		ProtocolVersion: cfg.ProtocolVersion,
		Timeout:         cfg.Timeout,
		Tap: func(m relay.Message) {
			logger.Debug("relay traffic",
				zap.String("direction", string(m.Direction)),
				zap.String("event", m.Event),
				zap.Error(m.Err),
			)
		},
	}, metrics, logger)

	joined, err := remote.Connect(ctx)
	if err != nil {
		if !cfg.FallbackToDemo {
			return nil, fmt.Errorf("connecting to %s: %w", cfg.URL, err)
		}
		logger.Warn("remote relay unavailable, falling back to demo mode",
			zap.String("url", cfg.URL),
			zap.Error(err),
		)
		return demoRelay(metrics, logger), nil
	}

	fields := []zap.Field{
		zap.String("session_id", remote.SessionID()),
		zap.Strings("games", joined.GameIDs),
	}
	if joined.UserData != nil {
		fields = append(fields,
			zap.String("balance", joined.UserData.Balance.String()),
			zap.String("currency", joined.UserData.Currency),
		)
	}
	logger.Info("joined remote game", fields...)
	return remote, nil
}

func demoRelay(metrics *observability.Metrics, logger *zap.Logger) *relay.DemoRelay {
	roller := dice.NewLoggedRoller(dice.NewCryptoSource(), logger)
	return relay.NewDemoRelay(roller, metrics, logger)
}

// newTable builds a headless table on host from the loaded table tunables.
// Sound effects go to the debug log.
func newTable(cfg config.TableConfig, host tween.Host, logger *zap.Logger) (*table.Table, error) {
	if err := cfg.Config.Validate(); err != nil {
		return nil, err
	}
	player := sound.PlayerFunc(func(effect sound.Effect, speed float64) error {
		logger.Debug("sound", zap.String("effect", string(effect)), zap.Float64("speed", speed))
		return nil
	})
	tbl := table.New(cfg.Config, host, sound.Guard(player, logger), logger, cfg.Width, cfg.Height)
	tbl.SetRollMode(slider.ParseRollMode(cfg.RollMode))
	return tbl, nil
}

// buildPlan resolves the auto-bet plan from configuration, an optional preset
// and an optional Lua script. The returned closer releases the script.
func buildPlan(cfg config.AutoBetConfig, opts options, tbl *table.Table, logger *zap.Logger) (autobet.Plan, func(), error) {
	noop := func() {}
	base, err := cfg.BaseBetAmount()
	if err != nil {
		return autobet.Plan{}, noop, err
	}
	plan := autobet.Plan{BaseBet: base, RoundDelay: cfg.RoundDelay}
	script := cfg.Script

	presetPath := cfg.Preset
	if opts.Preset != "" {
		presetPath = opts.Preset
	}
	if presetPath != "" {
		p, err := autobet.LoadPreset(presetPath)
		if err != nil {
			return autobet.Plan{}, noop, err
		}
		plan = p.Plan()
		if plan.RoundDelay == 0 {
			plan.RoundDelay = cfg.RoundDelay
		}
		if p.RollMode != "" {
			tbl.SetRollMode(p.Mode())
		}
		if p.WinChance > 0 {
			tbl.Slider().SetWinChance(p.WinChance)
		}
		if p.Script != "" {
			script = p.Script
		}
		logger.Info("preset loaded", zap.String("preset", p.Name), zap.String("description", p.Description))
	}

	if opts.Script != "" {
		script = opts.Script
	}
	if opts.Bets > 0 {
		plan.Bets = opts.Bets
	}
	if opts.RollMode != "" {
		tbl.SetRollMode(slider.ParseRollMode(opts.RollMode))
	}
	if opts.WinChance > 0 {
		tbl.Slider().SetWinChance(opts.WinChance)
	}

	closer := noop
	if script != "" {
		s, err := scripting.LoadStrategy(script, cfg.ScriptInstructionLimit, logger)
		if err != nil {
			return autobet.Plan{}, noop, err
		}
		plan.Strategy = s
		closer = s.Close
	}
	if err := plan.Validate(); err != nil {
		closer()
		return autobet.Plan{}, noop, err
	}
	return plan, closer, nil
}

// report prints one line per round and a summary when the run ends.
type report struct {
	out  io.Writer
	once sync.Once
	done chan struct{}

	mu     sync.Mutex
	reason autobet.StopReason
	err    error
	stats  autobet.Stats
}

func newReport(out io.Writer) *report {
	return &report{out: out, done: make(chan struct{})}
}

func (r *report) OnRound(round autobet.Round, outcome reveal.Outcome) {
	result := "lose"
	if outcome.IsWin {
		result = "WIN "
	}
	fmt.Fprintf(r.out, "#%-4d %s roll %6.2f  %-8s  bet %s  %s  profit %s  total %s\n",
		round.Number,
		result,
		round.Result.Roll,
		round.Request.RollMode,
		table.FormatAmount(round.Request.Amount),
		table.FormatMultiplier(round.Request.Multiplier),
		signed(round.Result.Profit),
		signed(round.Stats.Profit),
	)
	r.mu.Lock()
	r.stats = round.Stats
	r.mu.Unlock()
	if !round.Auto {
		r.finish("", nil)
	}
}

func (r *report) OnStop(reason autobet.StopReason, err error) {
	r.finish(reason, err)
}

func (r *report) finish(reason autobet.StopReason, err error) {
	r.once.Do(func() {
		r.mu.Lock()
		r.reason, r.err = reason, err
		r.mu.Unlock()
		close(r.done)
	})
}

// Done is closed after the first finished manual bet or auto run.
func (r *report) Done() <-chan struct{} { return r.done }

// Summary prints the run statistics and returns the error that ended it.
func (r *report) Summary() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.stats
	if r.reason != "" {
		fmt.Fprintf(r.out, "stopped: %s\n", r.reason)
	}
	fmt.Fprintf(r.out, "bets %d  wins %d  losses %d  wagered %s  profit %s\n",
		s.Bets, s.Wins, s.Losses, table.FormatAmount(s.Wagered), signed(s.Profit))
	return r.err
}

func signed(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-" + table.FormatAmount(d.Neg())
	}
	return "+" + table.FormatAmount(d)
}
