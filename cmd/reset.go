package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"

	"github.com/Ashfaaq98/secwatch-console/internal/bus"
)

var (
	confirmReset bool
	resetRedis   bool
	resetDB      bool
	resetKinds   []string
)

// resetCmd represents the reset command
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete stored records and/or the Redis update stream",
	Long: `Reset deletes stored records and the ingest log from the SQLite database
and removes the Redis update stream.

By default both are reset. Use --redis-only or --db-only to pick one, and
--kind to delete only some views' records (the ingest log is kept then).

WARNING: This operation is irreversible and will permanently delete data.

Examples:
  # Reset both Redis and database (requires confirmation)
  secwatch reset

  # Reset with automatic confirmation
  secwatch reset --yes

  # Delete only stored logins
  secwatch reset --db-only --kind logins`,
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().BoolVarP(&confirmReset, "yes", "y", false, "Automatically confirm reset operation")
	resetCmd.Flags().BoolVar(&resetRedis, "redis-only", false, "Reset only Redis data")
	resetCmd.Flags().BoolVar(&resetDB, "db-only", false, "Reset only database")
	resetCmd.Flags().StringSliceVar(&resetKinds, "kind", nil, "Only delete records of these views")
}

func runReset(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if !resetRedis && !resetDB {
		resetRedis = true
		resetDB = true
	}

	var targets []string
	if resetRedis {
		targets = append(targets, "Redis update stream")
	}
	if resetDB {
		if len(resetKinds) > 0 {
			targets = append(targets, "stored "+strings.Join(resetKinds, ", "))
		} else {
			targets = append(targets, "all stored records and the ingest log")
		}
	}
	fmt.Fprintf(out, "This will permanently delete: %s\n", strings.Join(targets, " and "))

	if !confirmReset {
		fmt.Fprint(out, "Are you sure you want to continue? (y/N): ")
		var response string
		fmt.Fscanln(cmd.InOrStdin(), &response)
		if r := strings.ToLower(response); r != "y" && r != "yes" {
			fmt.Fprintln(out, "Reset operation cancelled.")
			return nil
		}
	}

	if resetRedis {
		if err := resetRedisData(ctx); err != nil {
			if !resetDB {
				return fmt.Errorf("failed to reset Redis data: %w", err)
			}
			fmt.Fprintf(out, "Warning: Failed to reset Redis data: %v\n", err)
		} else {
			fmt.Fprintln(out, "✓ Redis update stream cleared")
		}
	}

	if resetDB {
		n, err := resetDatabase(ctx, resetKinds)
		if err != nil {
			return fmt.Errorf("failed to reset database: %w", err)
		}
		fmt.Fprintf(out, "✓ Deleted %d records\n", n)
	}

	fmt.Fprintln(out, "Reset operation completed successfully!")
	return nil
}

func resetRedisData(ctx context.Context) error {
	redisURL := GetConfig().Redis.URL
	if redisURL == "" {
		return fmt.Errorf("redis.url is not configured")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	defer client.Close()

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	if err := client.Del(ctx, bus.RecordsStream).Err(); err != nil {
		return fmt.Errorf("failed to delete stream %s: %w", bus.RecordsStream, err)
	}
	return nil
}

func resetDatabase(ctx context.Context, kinds []string) (int64, error) {
	cfg := GetConfig()
	st, err := openStore(cfg, newLogger("reset"))
	if err != nil {
		return 0, err
	}
	defer st.Close()

	n, err := st.DeleteRecords(ctx, kinds...)
	if err != nil {
		return 0, err
	}
	if len(kinds) == 0 {
		if err := st.ClearIngestLog(ctx); err != nil {
			return n, err
		}
	}
	if err := st.Vacuum(ctx); err != nil {
		return n, err
	}
	return n, nil
}
