package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/acme-corp/personload/internal/driver"
	"github.com/acme-corp/personload/internal/inbox"
	"github.com/acme-corp/personload/internal/journal"
	"github.com/acme-corp/personload/internal/metrics"
	"github.com/acme-corp/personload/internal/reader"
	"github.com/acme-corp/personload/internal/server"
	"github.com/acme-corp/personload/internal/writer"
)

func main() {
	var (
		configPath string
		chunkSize  int
		sinkName   string
	)

	rootCmd := &cobra.Command{
		Use:   "personload",
		Short: "Chunked CSV-to-PostgreSQL person loader",
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().IntVar(&chunkSize, "chunk-size", 0, "Records per transactional chunk (overrides config)")
	rootCmd.PersistentFlags().StringVar(&sinkName, "sink", "", "Output sink: postgres or stdout (overrides config)")

	// ----- init-db command -----
	initCmd := &cobra.Command{
		Use:   "init-db",
		Short: "Initialize database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if err := requireDatabase(cfg); err != nil {
				return err
			}
			db, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := runInitDB(db); err != nil {
				return err
			}
			fmt.Println("Database schema created.")
			return nil
		},
	}

	// ----- run command -----
	var inputPath string
	var resume, dryRun bool

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "One-shot execution of the pipeline against a single input file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			applyOverrides(cfg, chunkSize, sinkName)
			if dryRun {
				cfg.Pipeline.Sink = "stdout"
			}

			step := driver.Step{
				Source:    inputPath,
				ChunkSize: cfg.Pipeline.ChunkSize,
			}

			if cfg.Pipeline.Sink == "postgres" {
				if err := requireDatabase(cfg); err != nil {
					return err
				}
				db, err := openDatabase(cfg)
				if err != nil {
					return err
				}
				defer db.Close()

				step.Writer, err = writer.Open("postgres", map[string]interface{}{"db": db})
				if err != nil {
					return err
				}
				step.Listener = &completionListener{db: db}
				if resume {
					step.Journal = journal.New(db)
				}
			} else {
				step.Writer, err = writer.Open(cfg.Pipeline.Sink, nil)
				if err != nil {
					return err
				}
			}
			defer step.Writer.Close()

			step.Reader, err = reader.Open(inputPath)
			if err != nil {
				return err
			}

			start := time.Now()
			exec, err := step.Run(cmd.Context())
			if err != nil {
				if exec.Status == driver.StatusCompleted {
					// The data is durable; only the post-run reporting broke.
					return fmt.Errorf("run completed but reporting failed: %w", err)
				}
				return fmt.Errorf("run %s: %w", exec.Status, err)
			}
			log.Printf("Done. %d records written in %d chunks. Elapsed: %v",
				exec.RecordsWritten, exec.ChunksCommitted, time.Since(start).Truncate(time.Millisecond))
			return nil
		},
	}
	runCmd.Flags().StringVar(&inputPath, "input", "", "Input CSV file (plain, .gz, or .bz2)")
	runCmd.Flags().BoolVar(&resume, "resume", false, "Skip chunks the journal records as committed")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print transformed records instead of writing to the database")
	runCmd.MarkFlagRequired("input")

	// ----- serve command -----
	var httpAddr string
	var inboxDir string
	var doneDir string
	var pollInterval time.Duration
	var filePatterns string
	var workers int

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP upload server and inbox watcher (continuous ingestion mode)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			applyOverrides(cfg, chunkSize, sinkName)
			if httpAddr != "" {
				cfg.Server.ListenAddr = httpAddr
			}
			if inboxDir != "" {
				cfg.Processing.InboxDir = inboxDir
			}
			if doneDir != "" {
				cfg.Processing.DoneDir = doneDir
			}
			if pollInterval > 0 {
				cfg.Processing.InboxPollInterval = pollInterval
			}
			if filePatterns != "" {
				cfg.Processing.InboxPatterns = filePatterns
			}
			if workers > 0 {
				cfg.Processing.Workers = workers
			}
			if cfg.Processing.InboxDir == "" {
				return fmt.Errorf("serve requires an inbox directory (--inbox or processing.inbox_dir)")
			}
			if err := requireDatabase(cfg); err != nil {
				return err
			}

			db, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			m := metrics.New()
			m.Start()

			// Graceful shutdown on SIGINT/SIGTERM.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			patterns := strings.Split(cfg.Processing.InboxPatterns, ",")
			watcher := inbox.NewWatcher(cfg.Processing.InboxDir, cfg.Processing.DoneDir, patterns, cfg.Processing.InboxPollInterval)
			jobs := make(chan inbox.Job, 4*cfg.Processing.Workers)

			g, gctx := errgroup.WithContext(ctx)

			g.Go(func() error {
				defer close(jobs)
				return watcher.Run(gctx, jobs)
			})

			if cfg.Server.ListenAddr != "" {
				g.Go(func() error {
					return server.Run(gctx, cfg.Server.ListenAddr, cfg.Processing.InboxDir, m)
				})
			}

			log.Printf("Inbox watcher started on %s (%d workers)", cfg.Processing.InboxDir, cfg.Processing.Workers)
			for i := 0; i < cfg.Processing.Workers; i++ {
				g.Go(func() error {
					fileWorker(gctx, db, cfg, watcher, jobs, m)
					return nil
				})
			}

			err = g.Wait()
			log.Printf("Done. %s", m)
			return err
		},
	}
	serveCmd.Flags().StringVar(&httpAddr, "http", "", "Serve HTTP upload endpoint at this address")
	serveCmd.Flags().StringVar(&inboxDir, "inbox", "", "Inbox directory to watch for uploads")
	serveCmd.Flags().StringVar(&doneDir, "done", "", "Directory to move processed files to (default: delete after processing)")
	serveCmd.Flags().DurationVar(&pollInterval, "poll", 0, "Inbox watcher poll interval")
	serveCmd.Flags().StringVar(&filePatterns, "patterns", "", "Comma-separated file patterns for inbox watcher")
	serveCmd.Flags().IntVar(&workers, "workers", 0, "Number of concurrent pipeline workers")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Fatalf("personload error: %v", err)
	}
}

// applyOverrides lets persistent flags win over file/env config.
func applyOverrides(cfg *Config, chunkSize int, sinkName string) {
	if chunkSize > 0 {
		cfg.Pipeline.ChunkSize = chunkSize
	}
	if sinkName != "" {
		cfg.Pipeline.Sink = sinkName
	}
}
