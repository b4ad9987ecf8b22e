// Package app wires the simulator's components together
package app

import (
	"context"
	"math/rand"
	"os"
	"time"

	"github.com/abelzeko/reservoir-sim/internal/config"
	"github.com/abelzeko/reservoir-sim/internal/integration"
	"github.com/abelzeko/reservoir-sim/internal/repository"
	"github.com/abelzeko/reservoir-sim/internal/usecases"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// App holds all simulator dependencies
type App struct {
	Config     *config.Config
	RunID      string
	Repo       *repository.SQLiteEventRepository
	Model      *usecases.ReservoirModel
	Scheduler  *integration.CronScheduler
	Controller *usecases.SimulationController
	Log        *logrus.Entry
}

// SetupLogging configures the standard logrus logger
func SetupLogging(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logrus.SetLevel(lvl)
	return nil
}

// NewApp opens the event log and builds the model and controller.
// An invalid reservoir configuration is returned as *usecases.ConfigError.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{
		Config: cfg,
		RunID:  uuid.New().String(),
	}
	a.Log = logrus.WithField("run", a.RunID[:8])

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	a.Log.Infof("Configuration loaded (seed=%d)", seed)

	sampler := usecases.NewRandomSampler(rand.New(rand.NewSource(seed)), cfg.Reservoir.MinRate, cfg.Reservoir.MaxRate)
	model, err := usecases.NewReservoirModel(cfg.Reservoir, sampler, time.Now)
	if err != nil {
		return nil, err
	}
	a.Model = model

	repo, err := repository.NewSQLiteEventRepository(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	a.Repo = repo
	a.Log.Info("Event log initialized")

	if cfg.PurgeLog {
		if err := repo.Purge(ctx); err != nil {
			a.Log.Warnf("Warning: failed to purge event log: %v", err)
		}
	}

	a.Scheduler = integration.NewCronScheduler(cfg.TickInterval)
	a.Controller = usecases.NewSimulationController(model, repo, a.Scheduler,
		usecases.WithHistoryLimit(cfg.HistoryLimit),
		usecases.WithLogger(a.Log.WithField("component", "controller")),
	)

	if err := a.Controller.LoadHistory(ctx); err != nil {
		a.Log.Warnf("Warning: failed to load history: %v", err)
	}
	return a, nil
}

// Close stops ticking, waits for a tick in flight and closes the event log
func (a *App) Close() error {
	a.Controller.Pause()
	<-a.Scheduler.Stop()
	return a.Repo.Close()
}
