package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/Ashfaaq98/secwatch-console/internal/api"
	"github.com/Ashfaaq98/secwatch-console/internal/bus"
	"github.com/Ashfaaq98/secwatch-console/internal/ingest"
	"github.com/Ashfaaq98/secwatch-console/internal/store"
)

var (
	serveNoIngest      bool
	serveStatsInterval time.Duration
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the backend API and folder ingestion",
	Long: `Start the SecWatch backend which includes:

1. HTTP API serving alerts, logins and users for a date range
   (GET /api/<view>/?start=...&end=..., GET /alerts/get_alerts)
2. HTTP ingestion (POST /ingest/<view>) with bearer token and rate limit
3. Folder ingestion of <view>-*.json and <view>-*.jsonl files (watch mode)
4. Redis Streams notifications so running consoles refresh

The serve command runs until interrupted (Ctrl+C).

Examples:
  # Start on the default address
  secwatch serve

  # Custom bind address and token
  secwatch serve --bind 0.0.0.0:8080 --token s3cret

  # API only, no folder watch
  secwatch serve --no-ingest`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("bind", "127.0.0.1:8080", "Bind address for the API")
	serveCmd.Flags().String("token", "", "Bearer token required by the API (optional)")
	serveCmd.Flags().Float64("rps", 20, "Max API requests per second (0 disables limiting)")
	serveCmd.Flags().Int("burst", 40, "Burst size for the API rate limiter")
	serveCmd.Flags().String("ingest-dir", "data/incoming", "Directory watched for record files")
	serveCmd.Flags().BoolVar(&serveNoIngest, "no-ingest", false, "Disable folder ingestion")
	serveCmd.Flags().DurationVar(&serveStatsInterval, "stats-interval", time.Minute, "How often to log store and bus statistics (0 disables)")

	viper.BindPFlag("api.bind", serveCmd.Flags().Lookup("bind"))
	viper.BindPFlag("api.token", serveCmd.Flags().Lookup("token"))
	viper.BindPFlag("api.rps", serveCmd.Flags().Lookup("rps"))
	viper.BindPFlag("api.burst", serveCmd.Flags().Lookup("burst"))
	viper.BindPFlag("ingest.dir", serveCmd.Flags().Lookup("ingest-dir"))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := GetConfig()
	logger := newLogger("serve")
	logger.Println("Starting SecWatch backend")

	views, err := loadViews(viper.GetViper())
	if err != nil {
		return err
	}

	st, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	logger.Println("Connecting to update bus...")
	updates := bus.NewBus(cfg.Redis.URL, newLogger("bus"))
	defer updates.Close()

	sink := ingest.NewSink(st, updates, views, newLogger("ingest"))
	srv := api.New(st, sink, updates, views, api.Options{
		Bind:       cfg.API.Bind,
		Token:      cfg.API.Token,
		RPS:        cfg.API.RPS,
		Burst:      cfg.API.Burst,
		MaxRecords: cfg.API.MaxRecords,
		Logger:     newLogger("api"),
	})

	g, gctx := errgroup.WithContext(ctx)
	if err := srv.Start(gctx); err != nil {
		return fmt.Errorf("failed to start api: %w", err)
	}

	if !serveNoIngest {
		dir := resolvePathRelativeToBase(getWorkingDir(), cfg.Ingest.Dir)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create ingest dir %s: %w", dir, err)
		}
		fi := ingest.NewFolderIngestor(sink, ingest.FolderOptions{
			Dir:         dir,
			Watch:       true,
			Patterns:    []string{"*.jsonl", "*.json"},
			Logger:      newLogger("ingest-folder"),
			TailFromEnd: true,
		})
		g.Go(func() error {
			err := fi.Run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if serveStatsInterval > 0 {
		g.Go(func() error {
			runStatsLogger(gctx, st, updates, serveStatsInterval, logger)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	err = g.Wait()
	logger.Println("SecWatch backend stopped")
	return err
}

// runStatsLogger periodically logs record counts and bus health.
func runStatsLogger(ctx context.Context, st *store.Store, b bus.Bus, every time.Duration, logger *log.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		counts, err := st.CountByKind(ctx)
		if err != nil {
			logger.Printf("stats: count records failed: %v", err)
			continue
		}
		busStats, err := b.GetStats(ctx)
		if err != nil {
			logger.Printf("stats: bus stats failed: %v", err)
		}
		if err := b.HealthCheck(ctx); err != nil {
			logger.Printf("stats: bus health check failed: %v", err)
		}
		logger.Printf("stats: records=%v bus=%v", counts, busStats)
	}
}
