package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. SITEMAP_RESOLVER_TIMEOUT.
const EnvPrefix = "SITEMAP_RESOLVER"

// Config holds all options for a sitemap-resolver run.
type Config struct {
	Source      string        `mapstructure:"-"`
	Output      string        `mapstructure:"output"`      // file path; empty = stdout
	Format      string        `mapstructure:"format"`      // text, json, csv or markdown
	Concurrency int           `mapstructure:"concurrency"` // parallel sibling fetches
	Timeout     time.Duration `mapstructure:"timeout"`     // per-fetch timeout
	UserAgent   string        `mapstructure:"user-agent"`
	Partial     bool          `mapstructure:"partial"`   // keep going when child sitemaps fail
	MaxDepth    int           `mapstructure:"max-depth"` // 0 = unlimited
	LogFormat   string        `mapstructure:"log-format"`
	LogLevel    string        `mapstructure:"log-level"`
	Verbose     bool          `mapstructure:"verbose"`
	Addr        string        `mapstructure:"addr"` // serve mode listen address
}

// Defaults are applied before flags, environment and config file.
var Defaults = map[string]any{
	"format":      "text",
	"concurrency": 1,
	"timeout":     30 * time.Second,
	"user-agent":  "sitemap-resolver/1.0",
	"max-depth":   0,
	"log-format":  "text",
	"log-level":   "info",
	"addr":        ":8080",
}

// RegisterFlags defines the resolver flags. Defaults shown in help mirror
// Defaults.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.StringP("output", "o", "", "write results to this file instead of stdout")
	flags.StringP("format", "f", "text", "output format: text, json, csv or markdown")
	flags.IntP("concurrency", "c", 1, "number of child sitemaps fetched in parallel")
	flags.Duration("timeout", 30*time.Second, "timeout for a single sitemap fetch")
	flags.String("user-agent", "sitemap-resolver/1.0", "custom User-Agent string")
	flags.Bool("partial", false, "keep going when a child sitemap fails and report it at the end")
	flags.Int("max-depth", 0, "maximum nesting of sitemap indexes to follow (0 = unlimited)")
	flags.String("log-format", "text", "log format: text or json")
	flags.String("log-level", "info", "log level: debug, info, warn or error")
	flags.BoolP("verbose", "v", false, "verbose logging (same as --log-level debug)")
}

// Load merges, in increasing priority: defaults, an optional config file,
// environment variables (after loading .env if present) and flags that
// were set explicitly.
func Load(flags *pflag.FlagSet, configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	for key, value := range Defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", configFile, err)
		}
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("binding flags: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks option ranges.
func (c *Config) Validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("max-depth must be non-negative")
	}
	switch c.Format {
	case "text", "json", "csv", "markdown":
	default:
		return fmt.Errorf("unknown format %q (want text, json, csv or markdown)", c.Format)
	}
	return nil
}
