package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vietddude/chaoslab/internal/chaos/playbook"
	"github.com/vietddude/chaoslab/internal/core/config"
	redisclient "github.com/vietddude/chaoslab/internal/infra/redis"
)

var playbookCmd = &cobra.Command{
	Use:   "playbook",
	Short: "Inspect and manage the recovery playbook",
}

var playbookListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored recovery procedures",
	Run:   runPlaybookList,
}

var playbookSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed default recovery procedures for the order workflow",
	Run:   runPlaybookSeed,
}

func init() {
	playbookCmd.AddCommand(playbookListCmd)
	playbookCmd.AddCommand(playbookSeedCmd)
	rootCmd.AddCommand(playbookCmd)
}

// openStore builds the configured playbook store. The returned closer is nil
// for the file backend.
func openStore(cfg *config.AppConfig) (playbook.Store, func() error, error) {
	if cfg.Playbook.Backend == "redis" {
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return redisclient.NewPlaybookStore(client), client.Close, nil
	}
	store, err := playbook.Load(cfg.Playbook.Path)
	if err != nil {
		slog.Warn("Playbook load degraded", "path", cfg.Playbook.Path, "error", err)
	}
	return store, nil, nil
}

func runPlaybookList(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	initLogging(cfg)

	store, closer, err := openStore(cfg)
	if err != nil {
		slog.Error("Failed to open playbook store", "error", err)
		os.Exit(1)
	}
	if closer != nil {
		defer func() {
			_ = closer()
		}()
	}

	procedures, err := store.All(context.Background())
	if err != nil {
		slog.Error("Failed to read playbook", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "CALL\tKIND\tCONFIDENCE\tATTEMPTS\tUSED\tSTEPS")

	for _, p := range procedures {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%.2f\t%d\t%d\t%s\n",
			p.Pattern.CallIdentity,
			p.Pattern.FailureKind,
			p.Confidence,
			p.MaxAttempts,
			p.UsageCount,
			strings.Join(p.Steps, " -> "),
		)
	}
	_ = w.Flush()
}

func runPlaybookSeed(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	initLogging(cfg)

	store, closer, err := openStore(cfg)
	if err != nil {
		slog.Error("Failed to open playbook store", "error", err)
		os.Exit(1)
	}
	if closer != nil {
		defer func() {
			_ = closer()
		}()
	}

	n, err := playbook.SeedDefaults(context.Background(), store)
	if err != nil {
		slog.Error("Failed to seed playbook", "error", err)
		os.Exit(1)
	}

	if fs, ok := store.(*playbook.FileStore); ok {
		if err := fs.Flush(); err != nil {
			slog.Error("Failed to persist playbook", "error", err)
			os.Exit(1)
		}
	}
	slog.Info("Playbook seeded", "added", n)
}
