// Package integration handles timers and external service interactions
package integration

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// DefaultTickInterval is the wall-clock time between two simulation ticks
const DefaultTickInterval = 2 * time.Second

// CronScheduler fires a tick function on a fixed interval using a cron runner.
// A tick that is still running when the next one is due causes that one to be skipped.
type CronScheduler struct {
	interval time.Duration
	mu       sync.Mutex
	runner   *cron.Cron
	done     <-chan struct{} // closed once the last stopped runner has no tick in flight
	log      *logrus.Entry
}

// NewCronScheduler creates a scheduler. Cron cannot fire faster than once per second.
func NewCronScheduler(interval time.Duration) *CronScheduler {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &CronScheduler{
		interval: interval,
		log:      logrus.WithField("component", "scheduler"),
	}
}

// Interval returns the configured tick period
func (s *CronScheduler) Interval() time.Duration {
	return s.interval
}

// Start begins firing tick every interval
func (s *CronScheduler) Start(tick func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runner != nil {
		return fmt.Errorf("scheduler already running")
	}

	logger := cron.PrintfLogger(s.log)
	c := cron.New(cron.WithChain(
		cron.Recover(logger),
		cron.SkipIfStillRunning(logger),
	))
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", s.interval), tick); err != nil {
		return fmt.Errorf("failed to set up tick job: %w", err)
	}

	c.Start()
	s.runner = c
	s.log.Debugf("Ticking every %s", s.interval)
	return nil
}

// Stop cancels future ticks without waiting for a running one, so it is safe
// to call from inside a tick. The returned channel is closed once no tick of
// the stopped runner is still running.
func (s *CronScheduler) Stop() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runner != nil {
		s.done = s.runner.Stop().Done()
		s.runner = nil
		s.log.Debug("Ticker stopped")
	}
	if s.done == nil {
		closed := make(chan struct{})
		close(closed)
		s.done = closed
	}
	return s.done
}
