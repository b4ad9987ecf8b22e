package usecases

import (
	"context"
	"sync"

	"github.com/abelzeko/reservoir-sim/internal/entities"
	"github.com/abelzeko/reservoir-sim/internal/repository"
	"github.com/sirupsen/logrus"
)

// Scheduler fires tick periodically until stopped.
// Stop must not wait for a running tick; the returned channel is closed once
// none is left.
type Scheduler interface {
	Start(tick func()) error
	Stop() <-chan struct{}
}

// Subscriber receives the outcome of every tick
type Subscriber func(entities.TickResult)

// ControllerOption customizes a SimulationController
type ControllerOption func(*SimulationController)

// WithHistoryLimit bounds the cached recent-history view
func WithHistoryLimit(n int) ControllerOption {
	return func(c *SimulationController) {
		if n > 0 {
			c.historyLimit = n
		}
	}
}

// WithLogger sets the logger used by the controller
func WithLogger(entry *logrus.Entry) ControllerOption {
	return func(c *SimulationController) {
		if entry != nil {
			c.log = entry
		}
	}
}

// SimulationController runs the start/pause/reset state machine around a ReservoirModel
type SimulationController struct {
	mu           sync.Mutex
	model        *ReservoirModel
	events       repository.EventLog
	scheduler    Scheduler
	subscribers  []Subscriber
	recent       []entities.FlowEvent
	historyLimit int
	generation   uint64 // bumped on every start and stop; stale scheduler ticks are ignored
	log          *logrus.Entry
}

// NewSimulationController wires a model to its event log and tick scheduler
func NewSimulationController(model *ReservoirModel, events repository.EventLog, scheduler Scheduler, opts ...ControllerOption) *SimulationController {
	c := &SimulationController{
		model:        model,
		events:       events,
		scheduler:    scheduler,
		historyLimit: repository.DefaultHistoryLimit,
		log:          logrus.WithField("component", "controller"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe registers fn to be called after every tick and after reset
func (c *SimulationController) Subscribe(fn Subscriber) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

// LoadHistory fills the cached view from the persisted log
func (c *SimulationController) LoadHistory(ctx context.Context) error {
	events, err := c.events.Recent(ctx, c.historyLimit)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.recent = events
	c.mu.Unlock()
	c.log.Infof("Loaded %d history entries", len(events))
	return nil
}

// Start moves the simulation to Running, arms the scheduler and ticks once.
// Scheduler state only changes under mu, together with the running flag.
func (c *SimulationController) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.model.Running() {
		c.mu.Unlock()
		return nil
	}
	gen := c.generation + 1
	if c.scheduler != nil {
		if err := c.scheduler.Start(func() { c.tick(ctx, gen) }); err != nil {
			c.mu.Unlock()
			return err
		}
	}
	c.generation = gen
	c.model.SetRunning(true)
	c.mu.Unlock()

	c.log.Info("Simulation started")
	c.tick(ctx, gen)
	return nil
}

// Pause moves the simulation to Stopped. No step is applied once it returns.
// It may be called from a subscriber.
func (c *SimulationController) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.model.Running() {
		return
	}
	c.halt()
	c.log.Info("Simulation paused")
}

// Reset stops the simulation, restores the model and clears the cached view.
// Persisted history is not touched.
func (c *SimulationController) Reset(ctx context.Context) {
	c.mu.Lock()
	if c.model.Running() {
		c.halt()
	}
	c.model.Reset()
	c.recent = nil
	result := entities.TickResult{State: c.model.State()}
	subs := append([]Subscriber(nil), c.subscribers...)
	c.mu.Unlock()

	c.log.Info("Simulator reset")
	notify(subs, result)
}

// halt stops the scheduler and invalidates its pending ticks; caller holds mu
func (c *SimulationController) halt() {
	c.model.SetRunning(false)
	c.generation++
	if c.scheduler != nil {
		c.scheduler.Stop()
	}
}

// Tick applies one step when running, logs the event and notifies subscribers
func (c *SimulationController) Tick(ctx context.Context) {
	c.tick(ctx, 0)
}

// tick runs one step for generation gen; 0 means the current one
func (c *SimulationController) tick(ctx context.Context, gen uint64) {
	c.mu.Lock()
	if !c.model.Running() || (gen != 0 && gen != c.generation) {
		c.mu.Unlock()
		return
	}

	var result entities.TickResult
	if ev := c.model.Step(); ev != nil {
		if err := c.events.Append(ctx, ev); err != nil {
			// The in-memory level stays authoritative.
			c.log.Warnf("Warning: failed to log flow event: %v", err)
			result.StorageErr = err
		}
		c.remember(*ev)
		result.Event = ev
	}

	result.Alert = c.model.CheckThresholds()
	result.State = c.model.State()
	subs := append([]Subscriber(nil), c.subscribers...)
	c.mu.Unlock()

	if result.Event != nil {
		c.log.Debugf("%s of %.1f L, level now %.1f L", result.Event.Direction.Label(), result.Event.Volume, result.State.Level)
	}
	if result.Alert != entities.AlertNone {
		c.log.Warn(result.Alert.Message(result.State.Level))
	}
	notify(subs, result)
}

// State returns a snapshot of the reservoir
func (c *SimulationController) State() entities.ReservoirState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model.State()
}

// RecentView returns the cached history shown by displays, newest first
func (c *SimulationController) RecentView() []entities.FlowEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]entities.FlowEvent(nil), c.recent...)
}

// remember prepends ev to the cached view; caller holds mu
func (c *SimulationController) remember(ev entities.FlowEvent) {
	c.recent = append([]entities.FlowEvent{ev}, c.recent...)
	if len(c.recent) > c.historyLimit {
		c.recent = c.recent[:c.historyLimit]
	}
}

func notify(subs []Subscriber, result entities.TickResult) {
	for _, fn := range subs {
		fn(result)
	}
}
