package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"

	"github.com/goran-ethernal/CardanoIndexor/internal/common"
	"github.com/goran-ethernal/CardanoIndexor/internal/config"
	"github.com/goran-ethernal/CardanoIndexor/internal/db"
	"github.com/goran-ethernal/CardanoIndexor/internal/executor"
	"github.com/goran-ethernal/CardanoIndexor/internal/ledger"
	"github.com/goran-ethernal/CardanoIndexor/internal/logger"
	"github.com/goran-ethernal/CardanoIndexor/internal/metrics"
	"github.com/goran-ethernal/CardanoIndexor/internal/migrations"
	"github.com/goran-ethernal/CardanoIndexor/internal/pipeline"
	"github.com/goran-ethernal/CardanoIndexor/internal/resolve"
	"github.com/goran-ethernal/CardanoIndexor/internal/source"
	"github.com/goran-ethernal/CardanoIndexor/internal/store"
	// Register the built-in indexing tasks
	_ "github.com/goran-ethernal/CardanoIndexor/internal/tasks"
	"github.com/goran-ethernal/CardanoIndexor/pkg/api"
	pkgconfig "github.com/goran-ethernal/CardanoIndexor/pkg/config"
	"github.com/goran-ethernal/CardanoIndexor/pkg/task"
)

const (
	version = "1.0.0"
	banner  = `
╔═══════════════════════════════════════════╗
║         CardanoIndexor v%s             ║
║   Cardano UTXO and DEX Event Indexer      ║
╚═══════════════════════════════════════════╝
`
)

var (
	configPath string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "indexer",
	Short: "CardanoIndexor - Cardano UTXO indexer",
	Long: `CardanoIndexor indexes Cardano blocks into a relational store: transactions,
outputs, spent inputs, native asset transfers and DEX price and swap events.
Every block is written atomically, so an interrupted run resumes at the next block.`,
	Version: version,
	RunE:    runIndexer,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexing tasks",
	Long: `List the registered indexing tasks in the order they run for every block.
With --config the task selection and DEX protocols of that file are applied.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := task.Options{Log: logger.NewNopLogger()}
		var names []string
		if cmd.Flags().Changed("config") {
			cfg, err := config.LoadFromFile(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			opts.Config = cfg
			names = cfg.Tasks.Enabled
		}

		graph, err := task.BuildGraph(names, opts)
		if err != nil {
			return fmt.Errorf("failed to build task graph: %w", err)
		}

		fmt.Println("Indexing tasks, in execution order:")
		for i, t := range graph.Tasks() {
			fmt.Printf("  %2d. %s\n", i+1, t.Name)
		}
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the index schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadFromFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := migrations.RunMigrations(cfg.Database); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		fmt.Printf("Schema of %s is up to date\n", cfg.Database.Path)
		return nil
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of the configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		r := &jsonschema.Reflector{FieldNameTag: "json"}
		out, err := json.MarshalIndent(r.Reflect(&pkgconfig.Config{}), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode schema: %w", err)
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to configuration file")
	rootCmd.AddCommand(listCmd, migrateCmd, schemaCmd)
}

func runIndexer(cmd *cobra.Command, args []string) error {
	fmt.Printf(banner, version)

	// Load configuration
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\n\nShutting down gracefully...")
		cancel()
	}()

	log := logger.NewComponentLoggerFromConfig(common.ComponentPipeline, cfg.Logging)
	logger.SetDefaultLogger(log)

	// Initialize metrics server if enabled
	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(cfg.Metrics, log)
		if err := metricsServer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer func() {
			if err := metricsServer.Stop(context.Background()); err != nil {
				log.Warnf("Failed to stop metrics server: %v", err)
			}
		}()
		log.Infof("Metrics server started on %s%s", cfg.Metrics.ListenAddress, cfg.Metrics.Path)
	}

	log.Info("Running database migrations...")
	if err := migrations.RunMigrations(cfg.Database); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	database, err := db.NewSQLiteDBFromConfig(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer database.Close()

	dbMaintenance := db.NewMaintenanceCoordinator(
		cfg.Database.Path,
		database,
		cfg.Maintenance,
		logger.NewComponentLoggerFromConfig(common.ComponentMaintenance, cfg.Logging),
	)
	if err := dbMaintenance.Start(ctx); err != nil {
		return fmt.Errorf("failed to start database maintenance: %w", err)
	}
	defer func() {
		if err := dbMaintenance.Stop(); err != nil {
			log.Warnf("Failed to stop database maintenance: %v", err)
		}
	}()

	graph, err := task.BuildGraph(cfg.Tasks.Enabled, task.Options{
		Config: cfg,
		Log:    logger.NewComponentLoggerFromConfig(common.ComponentTasks, cfg.Logging),
	})
	if err != nil {
		return fmt.Errorf("failed to build task graph: %w", err)
	}
	log.Infof("Running %d task(s): %v", graph.Len(), graph.Names())

	decoder := ledger.NewDecoder()
	resolver := resolve.New(
		cfg.Resolver,
		decoder,
		logger.NewComponentLoggerFromConfig(common.ComponentResolver, cfg.Logging),
	)
	exec := executor.New(
		database,
		graph,
		resolver,
		cfg.Database.BatchRows,
		logger.NewComponentLoggerFromConfig(common.ComponentExecutor, cfg.Logging),
	)

	src, err := source.NewFileSource(
		cfg.Source,
		logger.NewComponentLoggerFromConfig(common.ComponentSource, cfg.Logging),
	)
	if err != nil {
		return fmt.Errorf("failed to open block source: %w", err)
	}
	defer src.Close()

	reader := store.New(database, cfg.Database.BatchRows)

	// Start API server if enabled
	if cfg.API != nil && cfg.API.Enabled {
		apiServer := api.NewServer(
			cfg.API,
			reader,
			logger.NewComponentLoggerFromConfig(common.ComponentAPI, cfg.Logging),
		)
		go func() {
			if err := apiServer.Start(ctx); err != nil {
				log.Errorf("API server error: %v", err)
			}
		}()
	}

	p := pipeline.New(
		cfg.Source.DecodeWorkers,
		cfg.Retry,
		src,
		decoder,
		exec,
		reader,
		logger.NewComponentLoggerFromConfig(common.ComponentPipeline, cfg.Logging),
	).WithOperationLock(dbMaintenance.AcquireOperationLock)

	log.Info("Starting CardanoIndexor...")

	stats, err := p.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("indexing failed: %w", err)
	}

	if stats != nil && stats.Last != nil {
		log.Infof("Indexed %d block(s) up to height %d", stats.Indexed, stats.Last.Height)
	}
	log.Info("CardanoIndexor stopped successfully")
	return nil
}
