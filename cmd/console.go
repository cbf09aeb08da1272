package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Ashfaaq98/secwatch-console/internal/bus"
	"github.com/Ashfaaq98/secwatch-console/internal/daterange"
	"github.com/Ashfaaq98/secwatch-console/internal/facet"
	"github.com/Ashfaaq98/secwatch-console/internal/store"
	"github.com/Ashfaaq98/secwatch-console/internal/ui"
)

var (
	consoleLocal    bool
	consoleForceTUI bool
	consoleViews    string
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Open the terminal dashboard",
	Long: `Open the SecWatch terminal dashboard. Each view (alerts, logins, users)
fetches its records for the shared date range and is narrowed with the
filter controls on the left. The active filters are listed above the table;
each can be removed on its own.

Records come from the backend API (--backend) or, with --local, straight
from the SQLite database. When Redis is reachable the dashboard refreshes
a view whenever new records of that kind are ingested.

Examples:
  secwatch console
  secwatch console --backend http://10.0.0.5:8080/
  secwatch console --local --views alerts,logins`,
	RunE: runConsole,
}

func init() {
	rootCmd.AddCommand(consoleCmd)

	consoleCmd.Flags().BoolVar(&consoleLocal, "local", false, "Read records from the local database instead of the backend")
	consoleCmd.Flags().BoolVar(&consoleForceTUI, "force-tui", false, "Force TUI mode even in unsupported terminals")
	consoleCmd.Flags().StringVar(&consoleViews, "views", strings.Join(facet.ViewNames(), ","), "Comma-separated views to open")
	consoleCmd.Flags().String("theme", "neon", "Color theme (neon, dark, light)")
	consoleCmd.Flags().Int("days", 7, "Initial date range in days, ending now")

	viper.BindPFlag("ui.theme", consoleCmd.Flags().Lookup("theme"))
	viper.BindPFlag("daterange.default_days", consoleCmd.Flags().Lookup("days"))
}

func runConsole(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := GetConfig()

	if !consoleForceTUI && !canInitializeTUI() {
		if needsPseudoTTY() {
			return runWithPseudoTTY(os.Args[1:])
		}
		return fmt.Errorf("TUI cannot be initialized in this terminal (%s); use `secwatch query` instead", getTerminalInfo())
	}

	// Logs go to a file so they never corrupt the screen; errors still reach stderr.
	var logger *log.Logger
	uiLog := io.Discard
	if f := openLogFile("secwatch-ui.log"); f != nil {
		defer f.Close()
		uiLog = f
		logger = log.New(io.MultiWriter(f, &errorFilterWriter{os.Stderr}), "[console] ", log.LstdFlags)
	} else {
		logger = log.New(os.Stderr, "[console] ", log.LstdFlags)
	}
	component := func(name string) *log.Logger {
		return log.New(uiLog, "["+name+"] ", log.LstdFlags)
	}
	logger.Printf("Terminal info: %s", getTerminalInfo())

	views, err := loadViews(viper.GetViper())
	if err != nil {
		return err
	}

	var src fetcherSource
	if consoleLocal {
		var st *store.Store
		st, err = openStore(cfg, component("store"))
		if err != nil {
			return err
		}
		defer st.Close()
		src = localSource(st)
	} else {
		src, err = backendSource(cfg, component("client"))
		if err != nil {
			return err
		}
	}

	engines, err := buildEngines(views, splitList(consoleViews), src, component)
	if err != nil {
		return err
	}

	updates := bus.NewBus(cfg.Redis.URL, component("bus"))
	defer updates.Close()

	rc := daterange.NewContext(defaultRange(cfg))
	dash, err := ui.NewUI(ctx, engines, rc, ui.Options{
		Logger: component("UI"),
		Bus:    updates,
		Theme:  cfg.UI.Theme,
	})
	if err != nil {
		return err
	}
	if err := dash.Start(ctx); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	logger.Println("console exited")
	return nil
}

// splitList splits a comma-separated flag value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
