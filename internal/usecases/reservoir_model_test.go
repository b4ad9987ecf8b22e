package usecases

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/abelzeko/reservoir-sim/internal/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2025, time.April, 18, 8, 0, 0, 0, time.Local)

func fixedClock() time.Time { return fixedTime }

// scriptedSampler replays a fixed list of draws, then repeats the last one
type scriptedSampler struct {
	draws []FlowDraw
	next  int
}

func (s *scriptedSampler) Draw() FlowDraw {
	d := s.draws[s.next]
	if s.next < len(s.draws)-1 {
		s.next++
	}
	return d
}

func inflow(rate float64) FlowDraw  { return FlowDraw{Direction: entities.DirectionInflow, Rate: rate} }
func outflow(rate float64) FlowDraw { return FlowDraw{Direction: entities.DirectionOutflow, Rate: rate} }

func newModel(t *testing.T, level float64, draws ...FlowDraw) *ReservoirModel {
	t.Helper()
	cfg := DefaultReservoirConfig()
	cfg.InitialLevel = level
	var sampler FlowSampler
	if len(draws) > 0 {
		sampler = &scriptedSampler{draws: draws}
	}
	m, err := NewReservoirModel(cfg, sampler, fixedClock)
	require.NoError(t, err)
	return m
}

func TestNewReservoirModel_RejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ReservoirConfig)
	}{
		{"zero capacity", func(c *ReservoirConfig) { c.Capacity = 0 }},
		{"negative capacity", func(c *ReservoirConfig) { c.Capacity = -10 }},
		{"low equals high", func(c *ReservoirConfig) { c.LowThreshold = c.HighThreshold }},
		{"low above high", func(c *ReservoirConfig) { c.LowThreshold = 900; c.HighThreshold = 100 }},
		{"negative low", func(c *ReservoirConfig) { c.LowThreshold = -1 }},
		{"high above capacity", func(c *ReservoirConfig) { c.HighThreshold = 1200 }},
		{"initial level above capacity", func(c *ReservoirConfig) { c.InitialLevel = 1001 }},
		{"negative initial level", func(c *ReservoirConfig) { c.InitialLevel = -1 }},
		{"inverted rate range", func(c *ReservoirConfig) { c.MinRate = 90 }},
		{"zero step", func(c *ReservoirConfig) { c.StepMinutes = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultReservoirConfig()
			tt.mutate(&cfg)

			m, err := NewReservoirModel(cfg, nil, nil)
			assert.Nil(t, m)
			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr), "expected ConfigError, got %v", err)
			assert.NotEmpty(t, cfgErr.Problems)
		})
	}
}

func TestNewReservoirModel_Defaults(t *testing.T) {
	m, err := NewReservoirModel(DefaultReservoirConfig(), nil, nil)
	require.NoError(t, err)

	want := entities.ReservoirState{
		Capacity:      1000,
		Level:         500,
		LowThreshold:  200,
		HighThreshold: 800,
	}
	assert.Equal(t, want, m.State())
	assert.InDelta(t, 50.0, m.State().Percent(), 1e-9)
}

func TestStep_NoopWhenStopped(t *testing.T) {
	m := newModel(t, 500, inflow(50))
	assert.Nil(t, m.Step())
	assert.Equal(t, 500.0, m.State().Level)
}

func TestApply_InflowClampsAtCapacity(t *testing.T) {
	m := newModel(t, 950)

	ev := m.Apply(inflow(80))
	require.NotNil(t, ev)
	assert.Equal(t, entities.DirectionInflow, ev.Direction)
	assert.InDelta(t, 50.0, ev.Volume, 1e-9)
	assert.Equal(t, 1000.0, ev.ResultingLevel)
	assert.Equal(t, fixedTime, ev.Timestamp)
	assert.Equal(t, entities.AlertOverflow, m.CheckThresholds())
	assert.Equal(t, 1, m.State().AlertCount)
}

func TestApply_OutflowClampsAtEmpty(t *testing.T) {
	m := newModel(t, 30)

	ev := m.Apply(outflow(50))
	require.NotNil(t, ev)
	assert.Equal(t, entities.DirectionOutflow, ev.Direction)
	assert.InDelta(t, 30.0, ev.Volume, 1e-9)
	assert.Equal(t, 0.0, ev.ResultingLevel)
	assert.Equal(t, entities.AlertUnderflow, m.CheckThresholds())
}

func TestApply_NoEventAtBounds(t *testing.T) {
	full := newModel(t, 1000)
	assert.Nil(t, full.Apply(inflow(60)))
	assert.Equal(t, 1000.0, full.State().Level)
	assert.Zero(t, full.State().CumulativeInflow)

	empty := newModel(t, 0)
	assert.Nil(t, empty.Apply(outflow(60)))
	assert.Equal(t, 0.0, empty.State().Level)
	assert.Zero(t, empty.State().CumulativeOutflow)
}

func TestApply_UsesStepMinutes(t *testing.T) {
	cfg := DefaultReservoirConfig()
	cfg.StepMinutes = 2
	m, err := NewReservoirModel(cfg, nil, fixedClock)
	require.NoError(t, err)

	ev := m.Apply(inflow(40))
	require.NotNil(t, ev)
	assert.InDelta(t, 80.0, ev.Volume, 1e-9)
	assert.InDelta(t, 580.0, m.State().Level, 1e-9)
}

func TestCheckThresholds(t *testing.T) {
	tests := []struct {
		level float64
		want  entities.AlertKind
	}{
		{500, entities.AlertNone},
		{800, entities.AlertNone},
		{200, entities.AlertNone},
		{800.5, entities.AlertOverflow},
		{199.9, entities.AlertUnderflow},
		{0, entities.AlertUnderflow},
		{1000, entities.AlertOverflow},
	}
	for _, tt := range tests {
		m := newModel(t, tt.level)
		assert.Equal(t, tt.want, m.CheckThresholds(), "level %v", tt.level)
	}
}

func TestCheckThresholds_RealertsEveryCall(t *testing.T) {
	m := newModel(t, 900)
	for i := 0; i < 3; i++ {
		assert.Equal(t, entities.AlertOverflow, m.CheckThresholds())
	}
	assert.Equal(t, 3, m.State().AlertCount)
}

func TestRandomWalk_StaysWithinBoundsAndConserves(t *testing.T) {
	for _, seed := range []int64{1, 7, 42, 1234} {
		cfg := DefaultReservoirConfig()
		sampler := NewRandomSampler(rand.New(rand.NewSource(seed)), cfg.MinRate, cfg.MaxRate)
		m, err := NewReservoirModel(cfg, sampler, fixedClock)
		require.NoError(t, err)
		m.SetRunning(true)

		for i := 0; i < 2000; i++ {
			ev := m.Step()
			s := m.State()
			require.GreaterOrEqual(t, s.Level, 0.0)
			require.LessOrEqual(t, s.Level, s.Capacity)
			if ev != nil {
				require.Greater(t, ev.Volume, 0.0)
				require.Equal(t, s.Level, ev.ResultingLevel)
			}
			assert.InDelta(t, s.Level, cfg.InitialLevel+s.CumulativeInflow-s.CumulativeOutflow, 1e-6)
		}
	}
}

func TestRandomSampler_DrawsWithinRange(t *testing.T) {
	s := NewRandomSampler(rand.New(rand.NewSource(42)), 20, 80)
	seen := map[entities.Direction]int{}
	for i := 0; i < 1000; i++ {
		d := s.Draw()
		assert.GreaterOrEqual(t, d.Rate, 20.0)
		assert.Less(t, d.Rate, 80.0)
		seen[d.Direction]++
	}
	assert.Greater(t, seen[entities.DirectionInflow], 0)
	assert.Greater(t, seen[entities.DirectionOutflow], 0)
}

func TestRandomSampler_Deterministic(t *testing.T) {
	a := NewRandomSampler(rand.New(rand.NewSource(99)), 20, 80)
	b := NewRandomSampler(rand.New(rand.NewSource(99)), 20, 80)
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Draw(), b.Draw())
	}
}

func TestReset(t *testing.T) {
	tests := []struct {
		name        string
		resetTotals bool
	}{
		{"keeps totals", false},
		{"zeroes totals", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultReservoirConfig()
			cfg.ResetTotals = tt.resetTotals
			m, err := NewReservoirModel(cfg, &scriptedSampler{draws: []FlowDraw{inflow(80)}}, fixedClock)
			require.NoError(t, err)
			m.SetRunning(true)
			for i := 0; i < 5; i++ {
				m.Step()
				m.CheckThresholds()
			}
			require.Greater(t, m.State().AlertCount, 0)

			m.Reset()
			s := m.State()
			assert.False(t, s.Running)
			assert.Zero(t, s.AlertCount)
			assert.Equal(t, cfg.InitialLevel, s.Level)
			assert.Equal(t, cfg.LowThreshold, s.LowThreshold)
			assert.Equal(t, cfg.HighThreshold, s.HighThreshold)
			if tt.resetTotals {
				assert.Zero(t, s.CumulativeInflow)
				assert.InDelta(t, s.Level, cfg.InitialLevel+s.CumulativeInflow-s.CumulativeOutflow, 1e-9)
			} else {
				assert.InDelta(t, 400.0, s.CumulativeInflow, 1e-9)
			}
		})
	}
}
