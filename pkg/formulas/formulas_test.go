package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestATRPercent(t *testing.T) {
	t.Run("insufficient data returns nil", func(t *testing.T) {
		bars := []Bar{{High: 11, Low: 9, Close: 10}}
		assert.Nil(t, ATRPercent(bars, 14))
	})

	t.Run("constant range series", func(t *testing.T) {
		// Every day has the same 2-point true range around a 100 close,
		// so ATR% converges to 2%.
		bars := make([]Bar, 50)
		for i := range bars {
			bars[i] = Bar{High: 101, Low: 99, Close: 100}
		}
		got := ATRPercent(bars, 14)
		require.NotNil(t, got)
		assert.InDelta(t, 2.0, *got, 0.01)
	})

	t.Run("zero period uses default", func(t *testing.T) {
		bars := make([]Bar, 30)
		for i := range bars {
			bars[i] = Bar{High: 102, Low: 98, Close: 100}
		}
		got := ATRPercent(bars, 0)
		require.NotNil(t, got)
		assert.Greater(t, *got, 0.0)
	})
}

func TestAverageDailyValue(t *testing.T) {
	assert.Equal(t, 0.0, AverageDailyValue(nil))

	bars := []Bar{
		{Close: 10, Volume: 1000},
		{Close: 20, Volume: 500},
	}
	// (10*1000 + 20*500) / 2 = 10000
	assert.InDelta(t, 10000.0, AverageDailyValue(bars), 1e-9)
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0.0, ClampScore(-20))
	assert.Equal(t, 100.0, ClampScore(150))
	assert.Equal(t, 55.5, ClampScore(55.5))
}

func TestDailyReturns(t *testing.T) {
	assert.Nil(t, DailyReturns([]float64{100}))

	returns := DailyReturns([]float64{100, 110, 99})
	require.Len(t, returns, 2)
	assert.InDelta(t, 0.10, returns[0], 1e-9)
	assert.InDelta(t, -0.10, returns[1], 1e-9)
}

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.InDelta(t, 20.0, Mean([]float64{10, 20, 30}), 1e-9)
}

func TestStdDev(t *testing.T) {
	assert.Equal(t, 0.0, StdDev([]float64{5}))
	// Sample stddev of {2,4,4,4,5,5,7,9} is sqrt(32/7).
	got := StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, 2.13809, got, 1e-4)
}

func TestHerfindahl(t *testing.T) {
	t.Run("single bucket is fully concentrated", func(t *testing.T) {
		hhi := Herfindahl(map[string]float64{"Technology": 5000})
		assert.InDelta(t, 1.0, hhi, 1e-9)
		assert.InDelta(t, 0.0, DiversificationScore(hhi), 1e-9)
	})

	t.Run("equal spread approaches zero", func(t *testing.T) {
		amounts := map[string]float64{}
		for _, s := range []string{"a", "b", "c", "d", "e"} {
			amounts[s] = 100
		}
		hhi := Herfindahl(amounts)
		assert.InDelta(t, 0.2, hhi, 1e-9)
		assert.InDelta(t, 80.0, DiversificationScore(hhi), 1e-9)
	})

	t.Run("empty input counts as concentrated", func(t *testing.T) {
		assert.Equal(t, 1.0, Herfindahl(nil))
	})
}
