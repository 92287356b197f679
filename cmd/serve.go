package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/Devon-White/sitemap-resolver/internal/api"
	"github.com/Devon-White/sitemap-resolver/internal/metrics"
	"github.com/Devon-White/sitemap-resolver/internal/pipeline"
	"github.com/Devon-White/sitemap-resolver/internal/resolver"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve sitemap resolution over HTTP",
	Long: `serve starts an HTTP API:

  GET /api/health
  GET /api/resolve?source=<url>[&partial=true]
  GET /metrics

Only http(s) sources are accepted; local files are never read in this mode.`,
	Args: cobra.NoArgs,
	RunE: serve,
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "listen address")
}

func serve(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	if !cfg.Verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	opts := []resolver.Option{resolver.WithLogger(slog.Default()), resolver.WithMetrics(m)}
	strictCfg, partialCfg := *cfg, *cfg
	strictCfg.Partial = false
	partialCfg.Partial = true

	handler := api.NewHandler(
		pipeline.NewResolver(&strictCfg, false, opts...),
		pipeline.NewResolver(&partialCfg, false, opts...),
	)
	server := api.NewServer(cfg.Addr, handler, reg)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	slog.Info("server shut down gracefully")
	return nil
}
