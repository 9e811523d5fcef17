package scripting

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/shopspring/decimal"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/crashdice/internal/game/autobet"
)

// Hook is the global function a strategy script must define.
const Hook = "dobet"

// ErrNoHook is returned when a script does not define dobet().
var ErrNoHook = errors.New("scripting: script does not define " + Hook)

// Strategy is an autobet.Strategy backed by a Lua script. Before every call
// to dobet() the round is published as globals:
//
//	nextbet, previousbet  stake of the settled round
//	basebet               base stake of the run
//	win                   whether the round won
//	roll                  the revealed roll
//	chance                win chance of the settled round
//	profit, bets, wins, losses, winstreak, losestreak  run statistics
//	running               true
//
// After the call nextbet, chance and running are read back. Calling stop()
// or assigning running = false ends the run after this round.
//
// Strategy is safe for concurrent use; calls are serialized.
type Strategy struct {
	mu      sync.Mutex
	name    string
	L       *lua.LState
	limit   int
	logger  *zap.Logger
	stopped bool
}

var _ autobet.Strategy = (*Strategy)(nil)

// NewStrategy compiles source in a fresh sandbox and checks it defines dobet().
//
// Precondition: instLimit >= 0; 0 uses DefaultInstructionLimit.
// Postcondition: Returns a Strategy owning its LState, or a non-nil error.
func NewStrategy(name, source string, instLimit int, logger *zap.Logger) (*Strategy, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := normalizeLimit(instLimit)
	L, cancel := NewSandboxedState(limit)
	err := L.DoString(source)
	cancel()
	L.RemoveContext()
	if err != nil {
		L.Close()
		return nil, fmt.Errorf("scripting: loading %q: %w", name, err)
	}
	if _, ok := L.GetGlobal(Hook).(*lua.LFunction); !ok {
		L.Close()
		return nil, fmt.Errorf("%w: %q", ErrNoHook, name)
	}

	s := &Strategy{name: name, L: L, limit: limit, logger: logger}
	L.SetGlobal("stop", L.NewFunction(s.luaStop))
	return s, nil
}

// LoadStrategy reads a Lua file and compiles it with NewStrategy.
func LoadStrategy(path string, instLimit int, logger *zap.Logger) (*Strategy, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scripting: reading %q: %w", path, err)
	}
	return NewStrategy(filepath.Base(path), string(src), instLimit, logger)
}

// Name returns the script's name.
func (s *Strategy) Name() string { return s.name }

// Close releases the Lua state.
func (s *Strategy) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.L.Close()
}

func (s *Strategy) luaStop(L *lua.LState) int {
	s.stopped = true
	L.SetGlobal("running", lua.LFalse)
	return 0
}

// Next implements autobet.Strategy by calling dobet().
func (s *Strategy) Next(r autobet.Round) (autobet.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = false
	s.publish(r)

	disarm := arm(s.L, s.limit)
	err := s.L.CallByParam(lua.P{
		Fn:      s.L.GetGlobal(Hook),
		NRet:    0,
		Protect: true,
	})
	disarm()
	if err != nil {
		s.logger.Warn("scripting: Lua runtime error",
			zap.String("script", s.name),
			zap.String("hook", Hook),
			zap.Error(err),
		)
		return autobet.Decision{}, fmt.Errorf("scripting: %s %s: %w", s.name, Hook, err)
	}
	return s.collect(r)
}

func (s *Strategy) publish(r autobet.Round) {
	L := s.L
	stake := lua.LNumber(r.Request.Amount.InexactFloat64())
	L.SetGlobal("nextbet", stake)
	L.SetGlobal("previousbet", stake)
	L.SetGlobal("basebet", lua.LNumber(r.BaseBet.InexactFloat64()))
	L.SetGlobal("win", lua.LBool(r.Result.IsWin))
	L.SetGlobal("roll", lua.LNumber(r.Result.Roll))
	L.SetGlobal("chance", lua.LNumber(r.Request.WinChance))
	L.SetGlobal("profit", lua.LNumber(r.Stats.Profit.InexactFloat64()))
	L.SetGlobal("bets", lua.LNumber(r.Stats.Bets))
	L.SetGlobal("wins", lua.LNumber(r.Stats.Wins))
	L.SetGlobal("losses", lua.LNumber(r.Stats.Losses))
	L.SetGlobal("winstreak", lua.LNumber(r.Stats.WinStreak))
	L.SetGlobal("losestreak", lua.LNumber(r.Stats.LoseStreak))
	L.SetGlobal("running", lua.LTrue)
}

func (s *Strategy) collect(r autobet.Round) (autobet.Decision, error) {
	L := s.L
	var d autobet.Decision

	next, err := toDecimal(L.GetGlobal("nextbet"))
	if err != nil {
		return d, fmt.Errorf("scripting: %s: nextbet: %w", s.name, err)
	}
	if !next.IsPositive() {
		return d, fmt.Errorf("scripting: %s: nextbet must be positive, got %s", s.name, next)
	}
	d.NextBet = next.Round(autobet.BetPlaces)

	chance, ok := L.GetGlobal("chance").(lua.LNumber)
	if !ok {
		return d, fmt.Errorf("scripting: %s: chance must be a number", s.name)
	}
	if c := float64(chance); c != r.Request.WinChance {
		if math.IsNaN(c) || c <= 0 || c > 100 {
			return d, fmt.Errorf("scripting: %s: chance must be within (0, 100], got %v", s.name, c)
		}
		d.WinChance = c
	}

	d.Stop = s.stopped || !lua.LVAsBool(L.GetGlobal("running"))
	return d, nil
}

func toDecimal(v lua.LValue) (decimal.Decimal, error) {
	switch n := v.(type) {
	case lua.LNumber:
		f := float64(n)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Zero, fmt.Errorf("not a finite number: %v", f)
		}
		return decimal.NewFromFloat(f), nil
	case lua.LString:
		return decimal.NewFromString(string(n))
	default:
		return decimal.Zero, fmt.Errorf("expected a number, got %s", v.Type())
	}
}
