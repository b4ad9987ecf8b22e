package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/abelzeko/reservoir-sim/internal/api"
	"github.com/abelzeko/reservoir-sim/internal/app"
	"github.com/abelzeko/reservoir-sim/internal/config"
	"github.com/abelzeko/reservoir-sim/internal/entities"
	"github.com/abelzeko/reservoir-sim/internal/integration"
	"github.com/abelzeko/reservoir-sim/internal/repository"
	"github.com/abelzeko/reservoir-sim/internal/usecases"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string // Optional YAML config file
	logLevel   string // Log verbosity level

	// run flags
	capacity      float64
	initialLevel  float64
	lowThreshold  float64
	highThreshold float64
	minRate       float64
	maxRate       float64
	resetTotals   bool
	tickInterval  string
	seed          int64
	dbPath        string
	purgeLog      bool
	dashboardPath string
	autostart     bool

	// history/export flags
	limit   int
	outPath string
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "reservoir-sim",
	Short: "Water reservoir fill-level simulator",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return app.SetupLogging(logLevel)
	},
	SilenceUsage: true,
}

// runCmd runs the interactive simulation
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the simulation with a terminal gauge",
	Long:  "Run the simulation. Type 's' + Enter to start or pause, 'r' to reset, 'q' to quit.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := app.NewApp(ctx, cfg)
		if err != nil {
			var cfgErr *usecases.ConfigError
			if errors.As(err, &cfgErr) {
				logrus.Fatalf("Invalid reservoir configuration: %v", err)
			}
			return fmt.Errorf("failed to initialize simulator: %w", err)
		}
		defer a.Close()

		display := api.NewConsoleDisplay(os.Stdout, a.Controller.State())
		a.Controller.Subscribe(display.HandleTick)

		if cfg.DashboardPath != "" {
			dashboard := api.NewDashboardWriter(cfg.DashboardPath, a.RunID, a.Controller.RecentView)
			a.Controller.Subscribe(dashboard.HandleTick)
			dashboard.HandleTick(entities.TickResult{State: a.Controller.State()})
			a.Log.Infof("Writing dashboard to %s", cfg.DashboardPath)
		}

		if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
			bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
			if err != nil {
				a.Log.Warnf("Warning: Telegram alerts disabled: %v", err)
			} else {
				notifier := integration.NewTelegramNotifier(bot, cfg.TelegramChatID)
				a.Controller.Subscribe(notifier.HandleTick)
				a.Log.Info("Telegram alerts enabled")
			}
		}

		if autostart {
			if err := a.Controller.Start(ctx); err != nil {
				return fmt.Errorf("failed to start simulation: %w", err)
			}
		}

		commands := readCommands(os.Stdin)
		for {
			select {
			case <-ctx.Done():
				a.Log.Info("Shutting down")
				return nil
			case c, ok := <-commands:
				if !ok {
					// stdin closed: keep running until interrupted
					commands = nil
					continue
				}
				switch c {
				case "s", "start", "pause":
					if a.Controller.State().Running {
						a.Controller.Pause()
						display.Notice("Paused. Type 's' to resume.")
					} else if err := a.Controller.Start(ctx); err != nil {
						a.Log.Errorf("Failed to start simulation: %v", err)
					}
				case "r", "reset":
					a.Controller.Reset(ctx)
					display.Notice("Simulator reset.")
				case "q", "quit":
					return nil
				case "":
				default:
					display.Notice("Commands: s = start/pause, r = reset, q = quit")
				}
			}
		}
	},
}

// historyCmd prints the most recent logged flow events
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the latest logged flow events",
	RunE: func(cmd *cobra.Command, args []string) error {
		events, err := recentEvents(cmd)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Println("No history yet.")
			return nil
		}

		fmt.Println(api.HistoryTable(events))
		return nil
	},
}

// exportCmd writes the latest logged flow events to a spreadsheet
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the latest logged flow events to an .xlsx file",
	RunE: func(cmd *cobra.Command, args []string) error {
		events, err := recentEvents(cmd)
		if err != nil {
			return err
		}
		if err := repository.ExportXLSX(events, outPath); err != nil {
			return err
		}
		logrus.Infof("Exported %d events to %s", len(events), outPath)
		return nil
	},
}

// loadConfig reads the config file and environment, applies flags that were
// set explicitly, then validates the result
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Read(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	r := &cfg.Reservoir
	if flags.Changed("capacity") {
		r.Capacity = capacity
	}
	if flags.Changed("initial-level") {
		r.InitialLevel = initialLevel
	}
	if flags.Changed("low") {
		r.LowThreshold = lowThreshold
	}
	if flags.Changed("high") {
		r.HighThreshold = highThreshold
	}
	if flags.Changed("min-rate") {
		r.MinRate = minRate
	}
	if flags.Changed("max-rate") {
		r.MaxRate = maxRate
	}
	if flags.Changed("reset-totals") {
		r.ResetTotals = resetTotals
	}
	if flags.Changed("interval") {
		d, err := time.ParseDuration(tickInterval)
		if err != nil {
			return nil, err
		}
		cfg.TickInterval = d
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("db") {
		cfg.DBPath = dbPath
	}
	if flags.Changed("purge-log") {
		cfg.PurgeLog = purgeLog
	}
	if flags.Changed("dashboard") {
		cfg.DashboardPath = dashboardPath
	}
	if flags.Changed("limit") {
		cfg.HistoryLimit = limit
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := app.SetupLogging(cfg.LogLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}

func recentEvents(cmd *cobra.Command) ([]entities.FlowEvent, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	repo, err := repository.NewSQLiteEventRepository(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	defer repo.Close()
	return repo.Recent(cmd.Context(), cfg.HistoryLimit)
}

// readCommands forwards trimmed stdin lines until EOF
func readCommands(r io.Reader) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			out <- strings.ToLower(strings.TrimSpace(scanner.Text()))
		}
	}()
	return out
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the SQLite history database (default data/reservoir_data.db)")

	defaults := usecases.DefaultReservoirConfig()
	runCmd.Flags().Float64Var(&capacity, "capacity", defaults.Capacity, "Reservoir capacity in litres")
	runCmd.Flags().Float64Var(&initialLevel, "initial-level", defaults.InitialLevel, "Level at start and after reset")
	runCmd.Flags().Float64Var(&lowThreshold, "low", defaults.LowThreshold, "Low level alert threshold")
	runCmd.Flags().Float64Var(&highThreshold, "high", defaults.HighThreshold, "High level alert threshold")
	runCmd.Flags().Float64Var(&minRate, "min-rate", defaults.MinRate, "Minimum flow rate in litres per minute")
	runCmd.Flags().Float64Var(&maxRate, "max-rate", defaults.MaxRate, "Maximum flow rate in litres per minute")
	runCmd.Flags().BoolVar(&resetTotals, "reset-totals", false, "Also clear cumulative inflow/outflow on reset")
	runCmd.Flags().StringVar(&tickInterval, "interval", "2s", "Wall-clock time between ticks")
	runCmd.Flags().Int64Var(&seed, "seed", 0, "Random seed (0 seeds from the clock)")
	runCmd.Flags().BoolVar(&purgeLog, "purge-log", false, "Delete stored history before starting")
	runCmd.Flags().StringVar(&dashboardPath, "dashboard", "", "Write an HTML dashboard to this file after every tick")
	runCmd.Flags().BoolVar(&autostart, "autostart", false, "Start the simulation immediately")
	runCmd.Flags().IntVar(&limit, "limit", repository.DefaultHistoryLimit, "Rows kept in the recent history view")

	historyCmd.Flags().IntVarP(&limit, "limit", "n", repository.DefaultHistoryLimit, "Number of rows to show")

	exportCmd.Flags().IntVarP(&limit, "limit", "n", repository.DefaultHistoryLimit, "Number of rows to export")
	exportCmd.Flags().StringVarP(&outPath, "out", "o", "historique.xlsx", "Output spreadsheet path")

	rootCmd.AddCommand(runCmd, historyCmd, exportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
