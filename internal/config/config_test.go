package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(newFlags(t), "")
	require.NoError(t, err)

	assert.Equal(t, "text", cfg.Format)
	assert.Equal(t, 1, cfg.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, "sitemap-resolver/1.0", cfg.UserAgent)
	assert.False(t, cfg.Partial)
	assert.Equal(t, 0, cfg.MaxDepth)
	assert.Equal(t, ":8080", cfg.Addr)
}

func TestLoad_FlagsOverrideEnvAndFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte("format: csv\nconcurrency: 3\ntimeout: 5s\npartial: true\n"), 0644))
	t.Setenv("SITEMAP_RESOLVER_CONCURRENCY", "6")
	t.Setenv("SITEMAP_RESOLVER_USER_AGENT", "env-agent")

	cfg, err := Load(newFlags(t, "--format", "json", "--max-depth", "4"), file)
	require.NoError(t, err)

	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, 6, cfg.Concurrency)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, "env-agent", cfg.UserAgent)
	assert.True(t, cfg.Partial)
	assert.Equal(t, 4, cfg.MaxDepth)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load(newFlags(t), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string][]string{
		"concurrency": {"--concurrency", "0"},
		"timeout":     {"--timeout", "0s"},
		"max-depth":   {"--max-depth", "-1"},
		"format":      {"--format", "xml"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(newFlags(t, args...), "")
			assert.ErrorContains(t, err, name)
		})
	}
}
