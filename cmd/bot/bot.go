package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/abelzeko/reservoir-sim/internal/api"
	"github.com/abelzeko/reservoir-sim/internal/app"
	"github.com/abelzeko/reservoir-sim/internal/config"
	"github.com/abelzeko/reservoir-sim/internal/integration"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load(os.Getenv("RESERVOIR_CONFIG"))
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if err := app.SetupLogging(cfg.LogLevel); err != nil {
		logrus.Fatalf("Failed to configure logging: %v", err)
	}
	logrus.Info("Starting Reservoir Bot...")

	if cfg.TelegramToken == "" {
		logrus.Fatal("TELEGRAM_BOT_TOKEN environment variable is not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.NewApp(ctx, cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize simulator: %v", err)
	}
	defer a.Close()

	botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		logrus.Fatalf("Failed to initialize Telegram bot: %v", err)
	}

	if cfg.TelegramChatID != 0 {
		notifier := integration.NewTelegramNotifier(botAPI, cfg.TelegramChatID)
		a.Controller.Subscribe(notifier.HandleTick)
		a.Log.Infof("Alerts will be sent to chat %d", cfg.TelegramChatID)
	} else {
		a.Log.Warn("TELEGRAM_CHAT_ID not set: alerts are only logged and any chat may send commands")
	}

	if cfg.DashboardPath != "" {
		dashboard := api.NewDashboardWriter(cfg.DashboardPath, a.RunID, a.Controller.RecentView)
		a.Controller.Subscribe(dashboard.HandleTick)
	}

	bot := api.NewTelegramBot(botAPI, a.Controller, cfg.TelegramChatID)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return bot.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		a.Controller.Pause()
		a.Log.Info("Simulation stopped")
		return nil
	})

	if err := g.Wait(); err != nil {
		logrus.Errorf("Bot stopped with error: %v", err)
	}
}
