// Package main provides the addrlens command line: page annotation, the HTTP API,
// live page watching and tag store maintenance.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/jonathan/addrlens/internal/adapters"
	"github.com/jonathan/addrlens/internal/config"
	"github.com/jonathan/addrlens/internal/db"
	"github.com/jonathan/addrlens/internal/logger"
	"github.com/jonathan/addrlens/internal/tags"
)

var rootCmd = &cobra.Command{
	Use:           "addrlens",
	Short:         "Annotate account addresses in web pages with known labels",
	Long:          "addrlens finds account addresses in HTML pages, replaces them with labelled elements from the tag store and keeps live pages annotated as they change.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		c, err := loadConfig(configPath, os.Getenv)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			c.LogLevel = logLevel
		}
		cfg = c
		logger.Init(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
		return nil
	},
}

var (
	configPath string
	logLevel   string
	noColor    bool

	cfg *config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a JSON or YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error, off)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored report output")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the optional config file, fills defaults and applies the
// environment on top.
func loadConfig(path string, getenv func(string) string) (*config.Config, error) {
	defaults := config.Default()
	c := defaults
	if path != "" {
		fileCfg, err := config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		c = fileCfg.MergeWithDefaults(defaults)
	}
	if err := c.ApplyEnv(getenv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// colorOutput reports whether reports on f should be colored.
func colorOutput(f *os.File) bool {
	return !noColor && isatty.IsTerminal(f.Fd())
}

// openDB connects to the configured database.
func openDB(ctx context.Context) (*db.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("database URL required: set database_url in the config file or DATABASE_URL")
	}
	return db.Connect(ctx, cfg.DatabaseURL,
		db.WithResolver(tags.NewResolver(cfg.CanonicalSource)),
		db.WithLogger(logger.Named("db")))
}

// openStore returns the database store when one is configured, otherwise an
// in-memory store seeded from tag files. The returned func releases it.
func openStore(ctx context.Context, tagFiles []string) (tags.Store, func(), error) {
	if cfg.DatabaseURL != "" {
		database, err := openDB(ctx)
		if err != nil {
			return nil, nil, err
		}
		return database, database.Close, nil
	}

	store := tags.NewMemoryStore(tags.NewResolver(cfg.CanonicalSource))
	if len(tagFiles) > 0 {
		producers := make([]adapters.Producer, 0, len(tagFiles))
		for _, f := range tagFiles {
			producers = append(producers, adapters.NewStaticProducer(f, "file"))
		}
		for _, res := range adapters.ImportAll(ctx, store, producers, logger.Named("import")) {
			if res.Err != nil {
				return nil, nil, res.Err
			}
		}
	}
	return store, func() {}, nil
}
