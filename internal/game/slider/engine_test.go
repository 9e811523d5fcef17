package slider_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/crashdice/internal/game/slider"
)

func newEngine() *slider.Engine {
	cfg := slider.DefaultConfig()
	return slider.NewEngine(cfg, slider.NewMapper(cfg))
}

func TestEngine_Defaults(t *testing.T) {
	e := newEngine()
	assert.Equal(t, slider.Inside, e.Mode())
	assert.Equal(t, []float64{25, 75}, e.Values())
	assert.Equal(t, 50.0, e.WinChance())
	assert.Equal(t, 1.98, e.Multiplier())
}

func TestEngine_SetMultiplier_RecentersSymmetrically(t *testing.T) {
	e := newEngine()
	require.True(t, e.SetMultiplier(2))
	assert.Equal(t, 49.5, e.WinChance())
	assert.Equal(t, []float64{25.25, 74.75}, e.Values())
}

func TestEngine_SetMultiplier_RejectsInvalid(t *testing.T) {
	e := newEngine()
	for _, m := range []float64{0, -2, math.NaN(), math.Inf(1)} {
		assert.False(t, e.SetMultiplier(m), "multiplier %v", m)
	}
	assert.Equal(t, []float64{25, 75}, e.Values())
}

func TestEngine_SetMode(t *testing.T) {
	e := newEngine()
	require.True(t, e.SetValues([]float64{10, 90}, false))

	mode, changed := e.SetMode(slider.Outside)
	assert.True(t, changed)
	assert.Equal(t, slider.Outside, mode)
	assert.Equal(t, []float64{10, 90}, e.Values(), "inside and outside share handles")
	assert.Equal(t, 20.0, e.WinChance())

	mode, changed = e.SetMode(slider.Outside)
	assert.False(t, changed)
	assert.Equal(t, slider.Outside, mode)

	_, changed = e.SetMode(slider.Between)
	assert.True(t, changed)
	assert.Equal(t, []float64{25, 50, 62.5, 87.5}, e.Values())

	mode, _ = e.SetMode("diagonal")
	assert.Equal(t, slider.Inside, mode, "unknown modes normalize to inside")
	assert.Equal(t, []float64{25, 75}, e.Values())
}

func TestEngine_SetHandleValue_IgnoresInvalidInput(t *testing.T) {
	e := newEngine()

	_, changed := e.SetHandleValue(2, 50, true)
	assert.False(t, changed)
	_, changed = e.SetHandleValue(-1, 50, true)
	assert.False(t, changed)

	v, changed := e.SetHandleValue(0, math.NaN(), true)
	assert.False(t, changed)
	assert.Equal(t, 25.0, v)
	assert.Equal(t, []float64{25, 75}, e.Values())
}

func TestEngine_SetHandleValue_ClampsBetweenNeighbours(t *testing.T) {
	e := newEngine()

	v, _ := e.SetHandleValue(0, 90, true)
	assert.Equal(t, 75.0, v, "low handle cannot pass the high handle")

	v, _ = e.SetHandleValue(1, 100, true)
	assert.Equal(t, 98.0, v, "last handle stops at the upper bound")

	v, _ = e.SetHandleValue(0, -10, false)
	assert.Equal(t, 2.0, v)

	v, _ = e.SetHandleValue(0, 33.337, false)
	assert.Equal(t, 33.34, v, "stored values are rounded to two decimals")
}

func TestEngine_SetValues_OrdersAndFills(t *testing.T) {
	e := newEngine()

	assert.True(t, e.SetValues([]float64{80, 20}, false))
	assert.Equal(t, []float64{20, 80}, e.Values())

	e.SetValues([]float64{30}, false)
	assert.Equal(t, []float64{30, 80}, e.Values(), "missing entries keep the current value")

	e.SetValues([]float64{math.NaN(), 60, 99}, false)
	assert.Equal(t, []float64{30, 60}, e.Values(), "non-finite entries keep the current value and extras are ignored")
}

func TestEngine_SetValues_ReachesTargetPastBlockingNeighbour(t *testing.T) {
	e := newEngine()
	require.True(t, e.SetValues([]float64{80, 90}, false))
	assert.Equal(t, []float64{80, 90}, e.Values())

	require.True(t, e.SetValues([]float64{5, 10}, false))
	assert.Equal(t, []float64{5, 10}, e.Values())
}

func TestEngine_SetWinChance_Degenerate(t *testing.T) {
	e := newEngine()

	e.SetWinChance(0)
	assert.Equal(t, []float64{50, 50}, e.Values())
	assert.Equal(t, 0.0, e.WinChance())
	assert.True(t, math.IsInf(e.Multiplier(), 1))

	e.SetWinChance(100)
	assert.Equal(t, []float64{2, 98}, e.Values(), "full width is limited by the handle bounds")

	e.SetMode(slider.Outside)
	e.SetWinChance(250)
	assert.Equal(t, []float64{50, 50}, e.Values())
	assert.Equal(t, 100.0, e.WinChance())

	assert.False(t, e.SetWinChance(math.NaN()))
}

func TestEngine_IsWin_Examples(t *testing.T) {
	e := newEngine()
	e.SetMode(slider.Between)
	assert.False(t, e.IsWin(55))
	assert.True(t, e.IsWin(30))
	assert.True(t, e.IsWin(62.5))

	e.SetMode(slider.Outside)
	e.SetValues([]float64{10, 90}, false)
	assert.True(t, e.IsWin(10))
	assert.True(t, e.IsWin(90))
	assert.False(t, e.IsWin(50))
}

func TestWins_StatelessRules(t *testing.T) {
	assert.True(t, slider.Wins(slider.Inside, []float64{25, 75}, 25))
	assert.False(t, slider.Wins(slider.Inside, []float64{25, 75}, 75.01))
	assert.True(t, slider.Wins(slider.Outside, []float64{25, 75}, 80))
	assert.True(t, slider.Wins(slider.Between, []float64{10, 20, 60, 70}, 65))
	assert.False(t, slider.Wins(slider.Between, []float64{10, 20}, 15), "wrong handle count loses")
	assert.False(t, slider.Wins(slider.Outside, []float64{25, 75}, math.NaN()))

	assert.Equal(t, 50.0, slider.WinChanceOf(slider.Outside, []float64{25, 75}, 0, 100))
	assert.Equal(t, 20.0, slider.WinChanceOf(slider.Between, []float64{10, 20, 60, 70}, 0, 100))
	assert.Zero(t, slider.WinChanceOf(slider.Between, []float64{10, 20}, 0, 100))
	assert.Equal(t, 1.98, slider.MultiplierOf(50))
	assert.True(t, math.IsInf(slider.MultiplierOf(0), 1))
}

func TestEngine_ClosestHandle_TiesFollowPointer(t *testing.T) {
	e := newEngine()
	e.SetValues([]float64{50, 50}, false)

	assert.Equal(t, 1, e.ClosestHandle(60))
	assert.Equal(t, 0, e.ClosestHandle(40))

	e.SetValues([]float64{20, 80}, false)
	assert.Equal(t, 0, e.ClosestHandle(49))
	assert.Equal(t, 1, e.ClosestHandle(51))
}

func TestEngine_Segments(t *testing.T) {
	e := newEngine()
	assert.Equal(t, []slider.Segment{
		{Start: 0, End: 25, Win: false},
		{Start: 25, End: 75, Win: true},
		{Start: 75, End: 100, Win: false},
	}, e.Segments())

	e.SetMode(slider.Outside)
	segs := e.Segments()
	require.Len(t, segs, 3)
	assert.True(t, segs[0].Win)
	assert.False(t, segs[1].Win)

	e.SetMode(slider.Between)
	assert.Len(t, e.Segments(), 5)
}

func TestEngine_Reset(t *testing.T) {
	e := newEngine()
	e.SetMode(slider.Between)
	e.SetValues([]float64{3, 4, 5, 6}, false)

	assert.True(t, e.Reset())
	assert.Equal(t, slider.Inside, e.Mode())
	assert.Equal(t, []float64{25, 75}, e.Values())
	assert.False(t, e.Reset(), "reset from the default state changes nothing")
}

func TestEngine_Ordering_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		e := newEngine()
		e.SetMode(rapid.SampledFrom([]slider.RollMode{slider.Inside, slider.Outside, slider.Between}).Draw(rt, "mode"))
		steps := rapid.IntRange(1, 40).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			idx := rapid.IntRange(-1, 4).Draw(rt, "index")
			raw := rapid.Float64Range(-50, 150).Draw(rt, "raw")
			snap := rapid.Bool().Draw(rt, "snap")
			e.SetHandleValue(idx, raw, snap)

			vals := e.Values()
			require.Len(rt, vals, e.Mode().HandleCount())
			for j := range vals {
				require.GreaterOrEqual(rt, vals[j], 2.0)
				require.LessOrEqual(rt, vals[j], 98.0)
				if j > 0 {
					require.LessOrEqual(rt, vals[j-1], vals[j], "handles must never cross: %v", vals)
				}
			}
		}
	})
}

func TestEngine_WinChanceRoundTrip_Property(t *testing.T) {
	cases := []struct {
		mode      slider.RollMode
		min, max  int
		tolerance float64
	}{
		// Ranges are the targets reachable from the default handles inside [2, 98].
		{slider.Inside, 1, 960, 1e-6},
		{slider.Outside, 40, 1000, 1e-6},
		{slider.Between, 1, 740, 0.021},
	}
	for _, tc := range cases {
		t.Run(string(tc.mode), func(t *testing.T) {
			rapid.Check(t, func(rt *rapid.T) {
				x := float64(rapid.IntRange(tc.min, tc.max).Draw(rt, "tenths")) / 10
				e := newEngine()
				e.SetMode(tc.mode)

				e.SetWinChance(x)
				got := e.WinChance()
				require.InDelta(rt, x, got, tc.tolerance)

				before := e.Values()
				e.SetWinChance(got)
				require.InDeltaSlice(rt, before, e.Values(), 0.011, "reapplying the derived chance is stable")
			})
		})
	}
}

func TestEngine_MultiplierIdentity_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		e := newEngine()
		mode := rapid.SampledFrom([]slider.RollMode{slider.Inside, slider.Outside, slider.Between}).Draw(rt, "mode")
		e.SetMode(mode)
		vals := rapid.SliceOfN(rapid.Float64Range(2, 98), mode.HandleCount(), mode.HandleCount()).Draw(rt, "values")
		e.SetValues(vals, false)

		chance := e.WinChance()
		if chance <= 0 {
			require.True(rt, math.IsInf(e.Multiplier(), 1))
			return
		}
		require.InDelta(rt, slider.HouseEdge, e.Multiplier()*chance, 0.01)
	})
}

func TestEngine_ModeSwitchDefaults_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		e := newEngine()
		e.SetValues(rapid.SliceOfN(rapid.Float64Range(0, 100), 2, 2).Draw(rt, "values"), rapid.Bool().Draw(rt, "snap"))

		e.SetMode(slider.Between)
		vals := e.Values()
		require.Len(rt, vals, 4)
		require.True(rt, vals[0] <= vals[1] && vals[1] <= vals[2] && vals[2] <= vals[3])

		e.SetMode(slider.Inside)
		require.Len(rt, e.Values(), 2)
	})
}

func TestEngine_InclusiveBoundaries_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		e := newEngine()
		e.SetValues([]float64{
			rapid.Float64Range(2, 98).Draw(rt, "a"),
			rapid.Float64Range(2, 98).Draw(rt, "b"),
		}, false)
		low, high := e.Values()[0], e.Values()[1]

		require.True(rt, e.IsWin(low))
		require.True(rt, e.IsWin(high))

		e.SetMode(slider.Outside)
		require.True(rt, e.IsWin(low))
		require.True(rt, e.IsWin(high))
	})
}
