package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/vietddude/chaoslab/internal/chaos/breaker"
	"github.com/vietddude/chaoslab/internal/chaos/inject"
	"github.com/vietddude/chaoslab/internal/chaos/playbook"
	"github.com/vietddude/chaoslab/internal/experiment"
	"github.com/vietddude/chaoslab/internal/experiment/sink"
	"github.com/vietddude/chaoslab/internal/experiment/stats"
	redisclient "github.com/vietddude/chaoslab/internal/infra/redis"
	"github.com/vietddude/chaoslab/internal/infra/storage/postgres"
)

// Config holds the harness configuration.
type Config struct {
	Port           int
	ServerEnabled  bool
	OutputDir      string
	MigrationsDir  string
	Experiment     experiment.Config
	Injection      inject.Config
	Breaker        breaker.Config
	Playbook       playbook.Config
	Redis          redisclient.Config
	Database       postgres.Config
	SeedProcedures bool // CLI flag
}

// Harness wires the playbook store, result sinks, aggregator and runner
// together and owns their lifecycle.
type Harness struct {
	cfg         Config
	store       playbook.Store
	fileStore   *playbook.FileStore
	out         sink.Sink
	agg         *stats.Aggregator
	runner      *experiment.Runner
	server      *Server
	db          *postgres.DB
	redisClient *redisclient.Client
	log         *slog.Logger
}

// NewHarness creates a Harness with all dependencies initialized.
func NewHarness(cfg Config) (*Harness, error) {
	log := slog.Default()

	// 1. Playbook store
	var store playbook.Store
	var fileStore *playbook.FileStore
	var redisClient *redisclient.Client

	switch cfg.Playbook.Backend {
	case "redis":
		var err error
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		store = redisclient.NewPlaybookStore(redisClient)
		log.Info("Using Redis playbook store")
	case "", "file":
		var err error
		fileStore, err = playbook.Load(cfg.Playbook.Path)
		if err != nil {
			// A corrupt playbook degrades to an empty store rather than
			// blocking the whole run.
			log.Warn("Playbook load degraded", "path", cfg.Playbook.Path, "error", err)
		}
		store = fileStore
		log.Info("Using file playbook store", "path", cfg.Playbook.Path)
	default:
		return nil, fmt.Errorf("unknown playbook backend %q", cfg.Playbook.Backend)
	}

	if cfg.SeedProcedures {
		n, err := playbook.SeedDefaults(context.Background(), store)
		if err != nil {
			return nil, fmt.Errorf("failed to seed playbook: %w", err)
		}
		if n > 0 {
			log.Info("Seeded default recovery procedures", "count", n)
		}
	}

	// 2. Result sinks
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	jsonl, err := sink.NewJSONL(filepath.Join(cfg.OutputDir, "results.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("failed to open result sink: %w", err)
	}

	var out sink.Sink = jsonl
	var db *postgres.DB
	if cfg.Database.URL != "" {
		db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		dir := cfg.MigrationsDir
		if dir == "" {
			dir = "migrations"
		}
		if err := db.Migrate(dir); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}
		out = sink.NewMulti(jsonl, postgres.NewResultRepo(db))
		log.Info("Persisting results to PostgreSQL")
	}

	// 3. Aggregator and runner
	agg := stats.New()
	runner, err := experiment.NewRunner(
		cfg.Experiment,
		cfg.Injection,
		cfg.Breaker,
		store,
		out,
		agg,
		nil,
		log,
	)
	if err != nil {
		return nil, err
	}

	var server *Server
	if cfg.ServerEnabled {
		server = NewServer(agg, cfg.Port)
	}

	return &Harness{
		cfg:         cfg,
		store:       store,
		fileStore:   fileStore,
		out:         out,
		agg:         agg,
		runner:      runner,
		server:      server,
		db:          db,
		redisClient: redisClient,
		log:         log,
	}, nil
}

// Run executes the full experiment matrix and writes the summary document.
// It blocks until the sweep finishes or ctx is cancelled.
func (h *Harness) Run(ctx context.Context) error {
	if h.server != nil {
		go func() {
			if err := h.server.Start(); err != nil {
				h.log.Error("Metrics server failed", "error", err)
			}
		}()
	}

	runErr := h.runner.Run(ctx)

	// Partial results are still worth summarizing on cancellation.
	if err := h.writeSummary(); err != nil {
		h.log.Error("Failed to write summary", "error", err)
		if runErr == nil {
			runErr = err
		}
	}
	return runErr
}

// writeSummary renders the aggregator document to summary.json.
func (h *Harness) writeSummary() error {
	doc := h.agg.Document()
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	path := filepath.Join(h.cfg.OutputDir, "summary.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	h.log.Info("Summary written", "path", path)
	return nil
}

// Summary returns the current aggregate document.
func (h *Harness) Summary() map[string]map[string]stats.Summary {
	return h.agg.Document()
}

// Stop flushes state and releases connections.
func (h *Harness) Stop(ctx context.Context) error {
	if h.fileStore != nil {
		if err := h.fileStore.Flush(); err != nil {
			h.log.Warn("Failed to flush playbook", "error", err)
		}
	}
	if err := h.out.Close(); err != nil {
		h.log.Warn("Failed to close result sink", "error", err)
	}
	if h.db != nil {
		if err := h.db.Close(); err != nil {
			h.log.Warn("Failed to close database", "error", err)
		}
	}
	if h.redisClient != nil {
		if err := h.redisClient.Close(); err != nil {
			h.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if h.server != nil {
		return h.server.Stop(ctx)
	}
	return nil
}
