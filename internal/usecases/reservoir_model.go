// Package usecases contains the simulation's business logic
package usecases

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/abelzeko/reservoir-sim/internal/entities"
)

// ReservoirConfig holds the physical limits and flow parameters of a reservoir
type ReservoirConfig struct {
	Capacity      float64 `yaml:"capacity"`
	InitialLevel  float64 `yaml:"initial_level"`
	LowThreshold  float64 `yaml:"low_threshold"`
	HighThreshold float64 `yaml:"high_threshold"`
	MinRate       float64 `yaml:"min_rate"`     // litres per simulated minute
	MaxRate       float64 `yaml:"max_rate"`     // litres per simulated minute
	StepMinutes   float64 `yaml:"step_minutes"` // simulated minutes per step
	ResetTotals   bool    `yaml:"reset_totals"` // also zero cumulative in/out on reset
}

// DefaultReservoirConfig returns the reference reservoir: 1000 L, half full
func DefaultReservoirConfig() ReservoirConfig {
	return ReservoirConfig{
		Capacity:      1000,
		InitialLevel:  500,
		LowThreshold:  200,
		HighThreshold: 800,
		MinRate:       20,
		MaxRate:       80,
		StepMinutes:   1,
	}
}

// ConfigError reports reservoir parameters that cannot describe a valid reservoir
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return "invalid reservoir configuration: " + strings.Join(e.Problems, "; ")
}

// Validate checks the bounds relations between the parameters
func (c ReservoirConfig) Validate() error {
	var problems []string
	if !(c.Capacity > 0) {
		problems = append(problems, fmt.Sprintf("capacity must be > 0, got %v", c.Capacity))
	}
	if c.LowThreshold < 0 {
		problems = append(problems, fmt.Sprintf("low threshold must be >= 0, got %v", c.LowThreshold))
	}
	if !(c.LowThreshold < c.HighThreshold) {
		problems = append(problems, fmt.Sprintf("low threshold %v must be below high threshold %v", c.LowThreshold, c.HighThreshold))
	}
	if c.HighThreshold > c.Capacity {
		problems = append(problems, fmt.Sprintf("high threshold %v exceeds capacity %v", c.HighThreshold, c.Capacity))
	}
	if c.InitialLevel < 0 || c.InitialLevel > c.Capacity {
		problems = append(problems, fmt.Sprintf("initial level %v outside [0, %v]", c.InitialLevel, c.Capacity))
	}
	if c.MinRate < 0 || c.MaxRate < c.MinRate {
		problems = append(problems, fmt.Sprintf("flow rate range [%v, %v] is invalid", c.MinRate, c.MaxRate))
	}
	if !(c.StepMinutes > 0) {
		problems = append(problems, fmt.Sprintf("step minutes must be > 0, got %v", c.StepMinutes))
	}
	if len(problems) > 0 {
		return &ConfigError{Problems: problems}
	}
	return nil
}

// FlowDraw is one random choice of direction and flow rate
type FlowDraw struct {
	Direction entities.Direction
	Rate      float64
}

// FlowSampler produces the random flow applied on each step
type FlowSampler interface {
	Draw() FlowDraw
}

// RandomSampler draws a direction with equal odds and a uniform rate in [min, max)
type RandomSampler struct {
	rng      *rand.Rand
	min, max float64
}

// NewRandomSampler creates a sampler. A nil rng is seeded from the clock.
func NewRandomSampler(rng *rand.Rand, min, max float64) *RandomSampler {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &RandomSampler{rng: rng, min: min, max: max}
}

// Draw implements FlowSampler
func (s *RandomSampler) Draw() FlowDraw {
	dir := entities.DirectionInflow
	if s.rng.Intn(2) == 1 {
		dir = entities.DirectionOutflow
	}
	return FlowDraw{
		Direction: dir,
		Rate:      s.min + s.rng.Float64()*(s.max-s.min),
	}
}

// ReservoirModel holds the reservoir state and applies flow steps to it.
// It is not safe for concurrent use; SimulationController serializes access.
type ReservoirModel struct {
	cfg     ReservoirConfig
	sampler FlowSampler
	clock   func() time.Time

	level      float64
	inflow     float64
	outflow    float64
	alertCount int
	running    bool
}

// NewReservoirModel validates cfg and returns a stopped model at the initial level
func NewReservoirModel(cfg ReservoirConfig, sampler FlowSampler, clock func() time.Time) (*ReservoirModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sampler == nil {
		sampler = NewRandomSampler(nil, cfg.MinRate, cfg.MaxRate)
	}
	if clock == nil {
		clock = time.Now
	}
	return &ReservoirModel{
		cfg:     cfg,
		sampler: sampler,
		clock:   clock,
		level:   cfg.InitialLevel,
	}, nil
}

// Config returns the parameters the model was built with
func (m *ReservoirModel) Config() ReservoirConfig {
	return m.cfg
}

// Step applies one random flow if the model is running
func (m *ReservoirModel) Step() *entities.FlowEvent {
	if !m.running {
		return nil
	}
	return m.Apply(m.sampler.Draw())
}

// Apply moves water according to draw, clamped to the physical bounds.
// It returns nil when no water could move.
func (m *ReservoirModel) Apply(draw FlowDraw) *entities.FlowEvent {
	requested := draw.Rate * m.cfg.StepMinutes
	if !(requested > 0) {
		return nil
	}

	var actual float64
	switch draw.Direction {
	case entities.DirectionInflow:
		actual = math.Min(requested, m.cfg.Capacity-m.level)
		m.level += actual
		m.inflow += actual
	case entities.DirectionOutflow:
		actual = math.Min(requested, m.level)
		m.level -= actual
		m.outflow += actual
	default:
		return nil
	}
	// Float rounding must never leave the level outside [0, capacity].
	m.level = math.Max(0, math.Min(m.level, m.cfg.Capacity))

	if actual <= 0 {
		return nil
	}
	return &entities.FlowEvent{
		Timestamp:      m.clock(),
		Direction:      draw.Direction,
		Volume:         actual,
		ResultingLevel: m.level,
	}
}

// CheckThresholds reports a crossed soft threshold and counts it.
// Every call that finds the level out of band counts again.
func (m *ReservoirModel) CheckThresholds() entities.AlertKind {
	var alert entities.AlertKind
	switch {
	case m.level > m.cfg.HighThreshold:
		alert = entities.AlertOverflow
	case m.level < m.cfg.LowThreshold:
		alert = entities.AlertUnderflow
	default:
		return entities.AlertNone
	}
	m.alertCount++
	return alert
}

// Reset restores the initial level, clears alerts and stops the model.
// Cumulative totals survive unless ResetTotals is configured.
func (m *ReservoirModel) Reset() {
	m.level = m.cfg.InitialLevel
	m.alertCount = 0
	m.running = false
	if m.cfg.ResetTotals {
		m.inflow = 0
		m.outflow = 0
	}
}

// SetRunning toggles whether Step applies flows
func (m *ReservoirModel) SetRunning(running bool) {
	m.running = running
}

// Running reports whether Step applies flows
func (m *ReservoirModel) Running() bool {
	return m.running
}

// State returns a snapshot of the reservoir
func (m *ReservoirModel) State() entities.ReservoirState {
	return entities.ReservoirState{
		Capacity:          m.cfg.Capacity,
		Level:             m.level,
		LowThreshold:      m.cfg.LowThreshold,
		HighThreshold:     m.cfg.HighThreshold,
		CumulativeInflow:  m.inflow,
		CumulativeOutflow: m.outflow,
		AlertCount:        m.alertCount,
		Running:           m.running,
	}
}
