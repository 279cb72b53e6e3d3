package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/chaoslab/internal/control"
	"github.com/vietddude/chaoslab/internal/core/config"
)

var (
	cfgPath      string
	isDebug      bool
	seedPlaybook bool
)

var rootCmd = &cobra.Command{
	Use:   "chaoslab",
	Short: "Chaoslab resilience experiment harness",
	Long:  `Chaoslab runs deterministic failure-injection experiments against a simulated order workflow and compares recovery strategies.`,
	Run:   runSweep,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
	rootCmd.Flags().BoolVar(&seedPlaybook, "seed-playbook", true, "seed default recovery procedures before the sweep")
}

func runSweep(cmd *cobra.Command, args []string) {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	initLogging(cfg)

	controlCfg := control.Config{
		Port:           cfg.Server.Port,
		ServerEnabled:  cfg.Server.Enabled,
		OutputDir:      cfg.Output.Dir,
		Experiment:     cfg.Experiment,
		Injection:      cfg.Injection,
		Breaker:        cfg.Breaker,
		Playbook:       cfg.Playbook,
		Redis:          cfg.Redis,
		Database:       cfg.Database,
		SeedProcedures: seedPlaybook,
	}

	app, err := control.NewHarness(controlCfg)
	if err != nil {
		slog.Error("Failed to initialize harness", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		slog.Info("Received signal, stopping sweep...", "signal", sig)
		cancel()
	}()

	slog.Info("Sweep started", "config", cfgPath,
		"rates", cfg.Experiment.FailureRates,
		"repetitions", cfg.Experiment.RepetitionsPerRate)

	runErr := app.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("Sweep failed", "error", runErr)
		os.Exit(1)
	}
	slog.Info("Sweep finished")
}

func initLogging(cfg *config.AppConfig) {
	slogLevel := slog.LevelInfo
	if isDebug || cfg.Logging.Level == "debug" {
		slogLevel = slog.LevelDebug
	}

	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})
}
