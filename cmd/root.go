package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Ashfaaq98/secwatch-console/internal/facet"
)

var (
	cfgFile    string
	dbPath     string
	redisURL   string
	logLevel   string
	backendURL string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "secwatch",
	Short: "Terminal security-monitoring console with faceted filtering",
	Long: `SecWatch is a terminal-first security monitoring console. It fetches
alerts, logins and users for a shared date range and narrows them with
search, category, yes/no and date filters.

Features:
- Console TUI with per-view filter controls and an active-filters bar
- Backend API serving record collections for a date range
- SQLite storage of ingested records
- Redis Streams notifications so consoles refresh on new data
- Folder ingestion of JSON and JSONL record files`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.secwatch.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "./data/secwatch.db", "SQLite database path")
	rootCmd.PersistentFlags().StringVar(&redisURL, "redis", "redis://localhost:6379", "Redis connection URL (empty disables notifications)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, error)")
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend", "http://127.0.0.1:8080/", "Backend base URL for console and query")

	// Bind flags to viper
	viper.BindPFlag("database.path", rootCmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag("redis.url", rootCmd.PersistentFlags().Lookup("redis"))
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("backend.url", rootCmd.PersistentFlags().Lookup("backend"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory and cwd with name ".secwatch" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".secwatch")
	}

	viper.SetEnvPrefix("secwatch")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	setDefaults(viper.GetViper())
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "./data/secwatch.db")
	v.SetDefault("redis.url", "redis://localhost:6379")
	v.SetDefault("log.level", "info")
	v.SetDefault("backend.url", "http://127.0.0.1:8080/")
	v.SetDefault("backend.token", "")
	v.SetDefault("backend.rps", 5.0)
	v.SetDefault("backend.timeout", 15*time.Second)
	v.SetDefault("api.bind", "127.0.0.1:8080")
	v.SetDefault("api.token", "")
	v.SetDefault("api.rps", 20.0)
	v.SetDefault("api.burst", 40)
	v.SetDefault("api.max_records", 0)
	v.SetDefault("ingest.dir", "data/incoming")
	v.SetDefault("daterange.default_days", 7)
	v.SetDefault("ui.theme", "neon")
}

// GetConfig returns the current configuration values
func GetConfig() Config {
	return configFrom(viper.GetViper())
}

func configFrom(v *viper.Viper) Config {
	return Config{
		Database: DatabaseConfig{Path: v.GetString("database.path")},
		Redis:    RedisConfig{URL: v.GetString("redis.url")},
		Log:      LogConfig{Level: v.GetString("log.level")},
		Backend: BackendConfig{
			URL:     v.GetString("backend.url"),
			Token:   v.GetString("backend.token"),
			RPS:     v.GetFloat64("backend.rps"),
			Timeout: v.GetDuration("backend.timeout"),
		},
		API: APIConfig{
			Bind:       v.GetString("api.bind"),
			Token:      v.GetString("api.token"),
			RPS:        v.GetFloat64("api.rps"),
			Burst:      v.GetInt("api.burst"),
			MaxRecords: v.GetInt("api.max_records"),
		},
		Ingest:    IngestConfig{Dir: v.GetString("ingest.dir")},
		DateRange: DateRangeConfig{DefaultDays: v.GetInt("daterange.default_days")},
		UI:        UIConfig{Theme: v.GetString("ui.theme")},
	}
}

// Config represents the application configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	Backend   BackendConfig   `mapstructure:"backend"`
	API       APIConfig       `mapstructure:"api"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	DateRange DateRangeConfig `mapstructure:"daterange"`
	UI        UIConfig        `mapstructure:"ui"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type BackendConfig struct {
	URL     string        `mapstructure:"url"`
	Token   string        `mapstructure:"token"`
	RPS     float64       `mapstructure:"rps"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type APIConfig struct {
	Bind       string  `mapstructure:"bind"`
	Token      string  `mapstructure:"token"`
	RPS        float64 `mapstructure:"rps"`
	Burst      int     `mapstructure:"burst"`
	MaxRecords int     `mapstructure:"max_records"`
}

type IngestConfig struct {
	Dir string `mapstructure:"dir"`
}

type DateRangeConfig struct {
	DefaultDays int `mapstructure:"default_days"`
}

type UIConfig struct {
	Theme string `mapstructure:"theme"`
}

// facetConfig is one entry of views.<view>.facets.
type facetConfig struct {
	ID    string `mapstructure:"id"`
	Kind  string `mapstructure:"kind"`
	Field string `mapstructure:"field"`
	Label string `mapstructure:"label"`
}

// loadViews returns the built-in views with any views.<name>.facets override
// from config applied. Overrides replace the whole descriptor list.
func loadViews(v *viper.Viper) (map[string]facet.View, error) {
	views := facet.DefaultViews()
	for name, view := range views {
		key := "views." + name + ".facets"
		if !v.IsSet(key) {
			continue
		}
		var raw []facetConfig
		if err := v.UnmarshalKey(key, &raw); err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		set := make(facet.Set, 0, len(raw))
		for i, fc := range raw {
			kind, err := facet.ParseKind(fc.Kind)
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", key, i, err)
			}
			set = append(set, facet.Descriptor{ID: fc.ID, Kind: kind, FieldPath: fc.Field, Label: fc.Label})
		}
		if err := set.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		view.Facets = set
		views[name] = view
	}
	return views, nil
}

// newLogger returns a component logger on stderr honoring log.level; "error"
// keeps the logger but sends it to io.Discard.
func newLogger(prefix string) *log.Logger {
	if strings.EqualFold(viper.GetString("log.level"), "error") {
		return log.New(io.Discard, "", 0)
	}
	return log.New(os.Stderr, "["+prefix+"] ", log.LstdFlags)
}
