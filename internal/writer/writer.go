package writer

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/Devon-White/sitemap-resolver/internal/resolver"
	"github.com/Devon-White/sitemap-resolver/internal/sitemap"
)

// Report is everything rendered for one resolution.
type Report struct {
	Source     string
	Session    string
	ResolvedAt time.Time
	Entries    []sitemap.Entry
	Failures   []*resolver.SourceError
}

// NewReport builds a Report from a resolver result.
func NewReport(source string, res *resolver.Result, resolvedAt time.Time) Report {
	return Report{
		Source:     source,
		Session:    res.Session,
		ResolvedAt: resolvedAt,
		Entries:    res.Entries,
		Failures:   res.Failures,
	}
}

type failureJSON struct {
	Source string `json:"source"`
	Parent string `json:"parent"`
	Error  string `json:"error"`
}

type reportJSON struct {
	Source     string          `json:"source"`
	Session    string          `json:"session"`
	ResolvedAt time.Time       `json:"resolvedAt"`
	Count      int             `json:"count"`
	Entries    []sitemap.Entry `json:"entries"`
	Failures   []failureJSON   `json:"failures,omitempty"`
}

// Write renders r to w in the given format: text, json, csv or markdown.
func Write(w io.Writer, format string, r Report) error {
	switch format {
	case "", "text":
		return writeText(w, r)
	case "json":
		return writeJSON(w, r)
	case "csv":
		return writeCSV(w, r)
	case "markdown", "md":
		return writeMarkdown(w, r)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// WriteFile renders r into path, creating parent directories as needed.
func WriteFile(path, format string, r Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	if err := Write(f, format, r); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// writeText prints one entry per line, tab-separated from its lastmod.
func writeText(w io.Writer, r Report) error {
	var sb strings.Builder
	for _, e := range r.Entries {
		sb.WriteString(e.Location)
		if e.LastModified != "" {
			sb.WriteByte('\t')
			sb.WriteString(e.LastModified)
		}
		sb.WriteByte('\n')
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func writeJSON(w io.Writer, r Report) error {
	entries := r.Entries
	if entries == nil {
		entries = []sitemap.Entry{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(reportJSON{
		Source:     r.Source,
		Session:    r.Session,
		ResolvedAt: r.ResolvedAt.UTC(),
		Count:      len(entries),
		Entries:    entries,
		Failures: lo.Map(r.Failures, func(f *resolver.SourceError, _ int) failureJSON {
			return failureJSON{Source: f.Source, Parent: f.Parent, Error: f.Err.Error()}
		}),
	})
}

func writeCSV(w io.Writer, r Report) error {
	cw := csv.NewWriter(w)
	rows := [][]string{{"location", "lastModified"}}
	rows = append(rows, lo.Map(r.Entries, func(e sitemap.Entry, _ int) []string {
		return []string{e.Location, e.LastModified}
	})...)
	return cw.WriteAll(rows)
}

func writeMarkdown(w io.Writer, r Report) error {
	var sb strings.Builder
	sb.WriteString(Frontmatter(r))

	sb.WriteString("# Sitemap entries\n\n")
	if len(r.Entries) == 0 {
		sb.WriteString("_No entries found._\n")
	} else {
		sb.WriteString("| Location | Last modified |\n|---|---|\n")
		for _, e := range r.Entries {
			sb.WriteString(fmt.Sprintf("| %s | %s |\n", escapeCell(e.Location), escapeCell(e.LastModified)))
		}
	}

	if len(r.Failures) > 0 {
		sb.WriteString("\n## Failed sitemaps\n\n")
		for _, f := range r.Failures {
			sb.WriteString(fmt.Sprintf("- `%s` (from `%s`): %s\n", f.Source, f.Parent, f.Err))
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// Frontmatter returns a YAML frontmatter block describing the report.
func Frontmatter(r Report) string {
	return fmt.Sprintf("---\nsource: %s\nsession: %s\nresolved_at: %s\nentries: %d\nfailures: %d\n---\n\n",
		escapeYAML(r.Source),
		escapeYAML(r.Session),
		r.ResolvedAt.UTC().Format(time.RFC3339),
		len(r.Entries),
		len(r.Failures),
	)
}

// escapeYAML wraps a string in double quotes if it contains characters that
// could break YAML parsing.
func escapeYAML(s string) string {
	if s == "" {
		return `""`
	}
	needsQuoting := strings.ContainsAny(s, `:#"'{}[]|>&*!%@`+"`") ||
		strings.HasPrefix(s, " ") ||
		strings.HasPrefix(s, "-")
	if needsQuoting {
		escaped := strings.ReplaceAll(s, `\`, `\\`)
		escaped = strings.ReplaceAll(escaped, `"`, `\"`)
		return `"` + escaped + `"`
	}
	return s
}

// escapeCell keeps a value from breaking out of a markdown table cell.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.NewReplacer("\r\n", " ", "\n", " ").Replace(s)
}
