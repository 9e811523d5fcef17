package table_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/crashdice/internal/game/reveal"
	"github.com/cory-johannsen/crashdice/internal/game/slider"
	"github.com/cory-johannsen/crashdice/internal/game/sound"
	"github.com/cory-johannsen/crashdice/internal/game/table"
	"github.com/cory-johannsen/crashdice/internal/game/tween"
)

func newTable(t *testing.T, w, h float64) (*table.Table, *tween.Scheduler, *[]sound.Effect) {
	t.Helper()
	require.NoError(t, table.DefaultConfig().Validate())
	sched := tween.NewScheduler()
	var heard []sound.Effect
	player := sound.PlayerFunc(func(e sound.Effect, _ float64) error {
		heard = append(heard, e)
		return nil
	})
	return table.New(table.DefaultConfig(), sched, player, nil, w, h), sched, &heard
}

func TestTable_RevealRecordsHistory(t *testing.T) {
	tb, sched, heard := newTable(t, 400, 800)

	out := tb.RevealDiceOutcome(reveal.Request{Roll: 50})
	assert.True(t, out.IsWin)
	assert.Equal(t, []sound.Effect{sound.DiceRoll}, *heard)

	tb.SetRollMode(slider.Between)
	out = tb.RevealDiceOutcome(reveal.Request{Roll: 55})
	assert.False(t, out.IsWin)

	entries := tb.History().Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "55.0", entries[0].Label)
	assert.False(t, entries[0].IsWin)
	assert.True(t, entries[1].IsWin)

	sched.Advance(time.Second)
	assert.Contains(t, *heard, sound.Lose)
}

func TestTable_Resize(t *testing.T) {
	tb, _, _ := newTable(t, 400, 800)

	s := tb.State()
	assert.True(t, s.Portrait)
	assert.InDelta(t, 360.0/520, s.SliderScale, 1e-9)
	assert.Equal(t, 4, tb.History().Capacity())

	tb.Resize(1000, 500)
	s = tb.State()
	assert.False(t, s.Portrait)
	assert.Equal(t, 1.0, s.SliderScale)
	assert.Equal(t, 12, tb.History().Capacity())

	tb.Resize(-5, 0)
	assert.Equal(t, 1.0, tb.State().Width, "degenerate sizes clamp to one pixel")
}

func TestTable_WinPopup(t *testing.T) {
	tb, sched, _ := newTable(t, 400, 800)

	tb.ShowWinPopup(1.98, decimal.RequireFromString("1234.5"))
	p := tb.State().WinPopup
	assert.True(t, p.Visible)
	assert.Equal(t, 0.0, p.Scale)
	assert.Equal(t, "1.98×", p.Multiplier)
	assert.Equal(t, "1,234.50", p.Amount)
	assert.Equal(t, 200.0, p.X)
	assert.Equal(t, 400.0, p.Y)

	sched.Advance(260 * time.Millisecond)
	assert.Equal(t, 1.0, tb.State().WinPopup.Scale)

	tb.HideWinPopup()
	assert.False(t, tb.State().WinPopup.Visible)
}

func TestTable_Reset(t *testing.T) {
	tb, sched, _ := newTable(t, 400, 800)
	tb.SetRollMode(slider.Outside)
	tb.RevealDiceOutcome(reveal.Request{Roll: 10})
	tb.ShowWinPopup(2, decimal.NewFromInt(3))

	tb.Reset()
	s := tb.State()
	assert.False(t, s.WinPopup.Visible)
	assert.Empty(t, s.History)
	assert.Equal(t, slider.Inside, s.Slider.RollMode)
	assert.Equal(t, []float64{25, 75}, s.Slider.Values)
	assert.False(t, s.Dice.Visible)
	assert.Zero(t, sched.Pending())
}

func TestTable_SetAnimationsEnabled(t *testing.T) {
	tb, sched, _ := newTable(t, 400, 800)
	tb.ShowWinPopup(2, decimal.NewFromInt(3))

	assert.False(t, tb.SetAnimationsEnabled(false))
	assert.False(t, tb.Dice().AnimationsEnabled())
	assert.False(t, tb.History().AnimationsEnabled())
	assert.Equal(t, 1.0, tb.State().WinPopup.Scale)

	tb.RevealDiceOutcome(reveal.Request{Roll: 30})
	assert.Equal(t, 1, sched.Pending(), "only the dice fade-out timer remains")
}

func TestFormatAmount(t *testing.T) {
	cases := map[string]string{
		"0":             "0.00",
		"12.5":          "12.50",
		"-12.5":         "-12.50",
		"1000000":       "1,000,000.00",
		"0.123456789":   "0.12345679",
		"999.000000001": "999.00",
	}
	for in, want := range cases {
		assert.Equal(t, want, table.FormatAmount(decimal.RequireFromString(in)), in)
	}
}

func TestFormatMultiplier(t *testing.T) {
	assert.Equal(t, "1.98×", table.FormatMultiplier(1.98))
	assert.Equal(t, "49.50×", table.FormatMultiplier(49.5))
}

func TestConfig_ValidateIncludesHistory(t *testing.T) {
	cfg := table.DefaultConfig()
	cfg.History.AspectRatio = -2
	assert.ErrorContains(t, cfg.Validate(), "history.aspect_ratio")
}
