package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Ashfaaq98/secwatch-console/internal/bus"
	"github.com/Ashfaaq98/secwatch-console/internal/ingest"
)

var (
	folderDir      string
	folderWatch    bool
	folderPatterns string
)

// ingestFolderCmd represents the ingest-folder command
var ingestFolderCmd = &cobra.Command{
	Use:   "ingest-folder",
	Short: "Ingest record files from a directory (optionally watch for changes)",
	Long: `Ingest alerts, logins and users from a directory. Files are named after
the view they feed: alerts-*.jsonl, logins.json, users-2024.json and so on.
JSON files hold an array or a single object; JSONL files hold one record per
line.

Examples:
  # One-shot: ingest existing files and exit
  secwatch ingest-folder --dir ./incoming

  # Watch mode: tail JSONL appends and reprocess JSON changes
  secwatch ingest-folder --dir ./incoming --watch

  # Only JSONL files
  secwatch ingest-folder --dir ./incoming --pattern "*.jsonl"`,
	RunE: runIngestFolder,
}

func init() {
	rootCmd.AddCommand(ingestFolderCmd)

	ingestFolderCmd.Flags().StringVar(&folderDir, "dir", "", "Directory to read files from (required)")
	ingestFolderCmd.MarkFlagRequired("dir")
	ingestFolderCmd.Flags().BoolVar(&folderWatch, "watch", false, "Watch directory for changes and tail JSONL files")
	ingestFolderCmd.Flags().StringVar(&folderPatterns, "pattern", "*.jsonl,*.json", "Comma-separated glob patterns to match (e.g. \"*.jsonl,*.json\")")
}

func runIngestFolder(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := GetConfig()
	logger := newLogger("ingest-folder")

	views, err := loadViews(viper.GetViper())
	if err != nil {
		return err
	}
	st, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	updates := bus.NewBus(cfg.Redis.URL, logger)
	defer updates.Close()

	patterns := splitList(folderPatterns)
	if len(patterns) == 0 {
		patterns = []string{"*.jsonl", "*.json"}
	}
	opts := ingest.FolderOptions{
		Dir:      folderDir,
		Watch:    folderWatch,
		Patterns: patterns,
		Logger:   logger,
	}
	logger.Printf("Starting ingest-folder dir=%s watch=%v patterns=%v", opts.Dir, opts.Watch, opts.Patterns)

	sink := ingest.NewSink(st, updates, views, logger)
	ingestor := ingest.NewFolderIngestor(sink, opts)
	if err := ingestor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("ingest-folder error: %w", err)
	}

	s := ingestor.Stats()
	logger.Printf("ingest-folder completed: files=%d ingested=%d skipped=%d errors=%d (kinds: %s)",
		s.Files, s.Ingested, s.Skipped, s.Errors, strings.Join(sink.Kinds(), ", "))
	return nil
}
