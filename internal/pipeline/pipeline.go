package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/fatih/color"

	"github.com/Devon-White/sitemap-resolver/internal/config"
	"github.com/Devon-White/sitemap-resolver/internal/fetcher"
	"github.com/Devon-White/sitemap-resolver/internal/resolver"
	"github.com/Devon-White/sitemap-resolver/internal/writer"
)

// NewResolver wires a fetcher and resolver from cfg.
func NewResolver(cfg *config.Config, allowLocal bool, opts ...resolver.Option) *resolver.Resolver {
	f := fetcher.New(fetcher.Options{
		UserAgent:  cfg.UserAgent,
		Timeout:    cfg.Timeout,
		AllowLocal: allowLocal,
	})

	base := []resolver.Option{
		resolver.WithConcurrency(cfg.Concurrency),
		resolver.WithPartialSuccess(cfg.Partial),
		resolver.WithMaxDepth(cfg.MaxDepth),
	}
	return resolver.New(f, append(base, opts...)...)
}

// Run executes one CLI resolution: resolve cfg.Source, then write the
// entries to cfg.Output (or stdout) in cfg.Format. A summary goes to stderr.
func Run(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) error {
	logger := slog.Default()
	r := NewResolver(cfg, true, resolver.WithLogger(logger))

	logger.Info("resolving sitemap", "source", cfg.Source)
	start := time.Now()
	res, err := r.Resolve(ctx, cfg.Source)
	if err != nil {
		return fmt.Errorf("sitemap: %w", err)
	}
	logger.Info("resolved sitemap",
		"source", cfg.Source,
		"entries", len(res.Entries),
		"failures", len(res.Failures),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	report := writer.NewReport(cfg.Source, res, time.Now())
	if cfg.Output != "" {
		if err := writer.WriteFile(cfg.Output, cfg.Format, report); err != nil {
			return fmt.Errorf("output: %w", err)
		}
		logger.Info("wrote results", "path", cfg.Output, "format", cfg.Format)
	} else if err := writer.Write(stdout, cfg.Format, report); err != nil {
		return fmt.Errorf("output: %w", err)
	}

	printSummary(stderr, res)
	return nil
}

func printSummary(w io.Writer, res *resolver.Result) {
	if len(res.Failures) == 0 {
		fmt.Fprintf(w, "%s %d entries\n", color.GreenString("Done."), len(res.Entries))
		return
	}

	fmt.Fprintf(w, "%s %d entries, %s\n",
		color.YellowString("Done with errors."),
		len(res.Entries),
		color.RedString("%d failed sitemaps", len(res.Failures)),
	)
	for _, f := range res.Failures {
		fmt.Fprintf(w, "  %s %v\n", color.RedString("FAILED"), f)
	}
}
