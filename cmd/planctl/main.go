package main

import (
	"alcyxob/workout-planner/internal/app"
	"alcyxob/workout-planner/internal/cli"
	"alcyxob/workout-planner/internal/config"
	"alcyxob/workout-planner/internal/logging"
	"alcyxob/workout-planner/internal/timer"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	log "github.com/sirupsen/logrus"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configDir := os.Getenv("PLANCTL_CONFIG")
	if configDir == "" {
		configDir = "."
	}
	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logging.Setup(logging.SetupParams{
		LogFileName:   cfg.Log.File,
		LogToStdout:   false,
		LogLevel:      cfg.Log.Level,
		LogFormatJSON: cfg.Log.JSON,
	})
	// stdout belongs to the command output
	if cfg.Log.File == "" {
		log.SetOutput(os.Stderr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, "cli")
	if err != nil {
		return fmt.Errorf("initializing: %w", err)
	}
	defer func() {
		if err := application.Close(); err != nil {
			log.Errorf("failed to close resources: %s", err)
		}
	}()

	cliApp := &cli.App{
		Plans:         application.Plans,
		Schedule:      application.Schedule,
		Sessions:      application.Sessions,
		Progress:      application.Progress,
		ResolveUser:   application.UserByEmail,
		TimePerSeries: cfg.Timer.TimePerSeries,
		Timer: timer.RunnerConfig{
			ReportAttempts: cfg.Timer.ReportAttempts,
			ReportBackoff:  cfg.Timer.ReportBackoff,
		},
		In:  os.Stdin,
		Out: os.Stdout,
		IsInteractive: func() bool {
			return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
		},
	}

	return cli.NewRootCmd(cliApp).ExecuteContext(ctx)
}
