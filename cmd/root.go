package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Devon-White/sitemap-resolver/internal/config"
	"github.com/Devon-White/sitemap-resolver/internal/logger"
	"github.com/Devon-White/sitemap-resolver/internal/pipeline"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "sitemap-resolver <source>",
	Short: "Flatten a sitemap or sitemap index into its page entries",
	Long: `sitemap-resolver reads an XML sitemap from a URL or a local file and
prints every page entry it lists. Sitemap indexes are followed recursively,
depth-first and in document order.

Examples:
  sitemap-resolver https://example.com/sitemap.xml
  sitemap-resolver -f json -o entries.json --concurrency 8 https://example.com/sitemap_index.xml
  sitemap-resolver --partial ./sitemap.xml`,
	Args: cobra.ExactArgs(1),
	RunE: run,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (yaml, json or toml)")
	config.RegisterFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(serveCmd)
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Source = args[0]
	cmd.SilenceUsage = true

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return pipeline.Run(ctx, cfg, os.Stdout, os.Stderr)
}

// loadConfig merges flags, environment and the config file, then installs
// the logger the rest of the run uses.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.Flags(), configFile)
	if err != nil {
		return nil, err
	}

	level := logger.ParseLevel(cfg.LogLevel)
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger.Init(os.Stderr, level, cfg.LogFormat)
	return cfg, nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
