package autobet

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/crashdice/internal/game/slider"
)

// Preset is a named auto-bet configuration stored as YAML.
type Preset struct {
	Name         string          `yaml:"name"`
	Description  string          `yaml:"description"`
	BaseBet      decimal.Decimal `yaml:"base_bet"`
	RollMode     string          `yaml:"roll_mode"`
	WinChance    float64         `yaml:"win_chance"`
	Bets         int             `yaml:"bets"`
	OnWin        Adjust          `yaml:"on_win"`
	OnLoss       Adjust          `yaml:"on_loss"`
	StopOnProfit decimal.Decimal `yaml:"stop_on_profit"`
	StopOnLoss   decimal.Decimal `yaml:"stop_on_loss"`
	RoundDelay   time.Duration   `yaml:"round_delay"`
	// Script is a Lua file, relative to the preset file, defining dobet().
	Script string `yaml:"script"`
}

// Mode returns the preset's roll mode, Inside when unset.
func (p Preset) Mode() slider.RollMode { return slider.ParseRollMode(p.RollMode) }

// Plan converts the preset into a Plan. The script, if any, is not loaded.
func (p Preset) Plan() Plan {
	return Plan{
		Bets:         p.Bets,
		BaseBet:      p.BaseBet,
		OnWin:        p.OnWin,
		OnLoss:       p.OnLoss,
		StopOnProfit: p.StopOnProfit,
		StopOnLoss:   p.StopOnLoss,
		RoundDelay:   p.RoundDelay,
	}
}

// Validate checks the preset and its plan.
func (p Preset) Validate() error {
	var errs []error
	if p.Name == "" {
		errs = append(errs, errors.New("name must not be empty"))
	}
	if p.WinChance < 0 || p.WinChance > 100 {
		errs = append(errs, fmt.Errorf("win_chance must be within [0, 100], got %v", p.WinChance))
	}
	if err := p.Plan().Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// LoadPreset parses and validates one YAML preset. A relative Script is
// resolved against the preset's directory.
//
// Postcondition: Returns a valid Preset or a non-nil error.
func LoadPreset(path string) (Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Preset{}, fmt.Errorf("reading preset %s: %w", path, err)
	}
	var p Preset
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Preset{}, fmt.Errorf("parsing preset %s: %w", path, err)
	}
	if p.Script != "" && !filepath.IsAbs(p.Script) {
		p.Script = filepath.Join(filepath.Dir(path), p.Script)
	}
	if err := p.Validate(); err != nil {
		return Preset{}, fmt.Errorf("validating preset %s: %w", path, err)
	}
	return p, nil
}

// LoadPresets loads every *.yaml file in dir, sorted by name.
func LoadPresets(dir string) ([]Preset, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("listing presets in %s: %w", dir, err)
	}
	presets := make([]Preset, 0, len(matches))
	seen := make(map[string]string, len(matches))
	for _, path := range matches {
		p, err := LoadPreset(path)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[p.Name]; dup {
			return nil, fmt.Errorf("duplicate preset %q in %s and %s", p.Name, prev, path)
		}
		seen[p.Name] = path
		presets = append(presets, p)
	}
	sort.Slice(presets, func(i, j int) bool { return presets[i].Name < presets[j].Name })
	return presets, nil
}
