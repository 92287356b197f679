package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// DefaultTimeout bounds a single fetch when no timeout is configured.
const DefaultTimeout = 30 * time.Second

var (
	// ErrNotFound is returned when a local sitemap file is missing.
	// The message text is kept for callers that match on it.
	ErrNotFound = errors.New("Sitemap file does not exist")

	// ErrFetch covers transport failures and non-2xx responses.
	ErrFetch = errors.New("fetch failed")

	// ErrUnsupportedFormat is returned before any I/O for sources that
	// are not .xml documents, or local paths when local reads are disabled.
	ErrUnsupportedFormat = errors.New("unsupported sitemap source")
)

// Options configures a Fetcher.
type Options struct {
	UserAgent  string
	Timeout    time.Duration
	AllowLocal bool
	Client     *http.Client // overrides the default client; Timeout is ignored when set
}

// Fetcher reads sitemap documents from HTTP(S) URLs or the local filesystem.
type Fetcher struct {
	client     *http.Client
	userAgent  string
	allowLocal bool
}

// New creates a Fetcher. A zero Timeout falls back to DefaultTimeout.
func New(opts Options) *Fetcher {
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Fetcher{
		client:     client,
		userAgent:  opts.UserAgent,
		allowLocal: opts.AllowLocal,
	}
}

// Fetch returns the raw bytes behind source. Absolute URLs are fetched with
// a GET (redirects followed), anything else is read as a local path.
// Exactly one read happens per call.
func (f *Fetcher) Fetch(ctx context.Context, source string) ([]byte, error) {
	if u, ok := ParseURL(source); ok {
		if !HasXMLExtension(source) {
			return nil, fmt.Errorf("%w: %s is not an .xml document", ErrUnsupportedFormat, source)
		}
		return f.fetchURL(ctx, u.String())
	}

	if !f.allowLocal {
		return nil, fmt.Errorf("%w: local sources are disabled (%s)", ErrUnsupportedFormat, source)
	}
	if !HasXMLExtension(source) {
		return nil, fmt.Errorf("%w: %s is not an .xml document", ErrUnsupportedFormat, source)
	}
	return f.readFile(ctx, source)
}

func (f *Fetcher) fetchURL(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", ErrFetch, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: fetching %s: %v", ErrFetch, rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: HTTP %d for %s", ErrFetch, resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body from %s: %v", ErrFetch, rawURL, err)
	}

	return body, nil
}

func (f *Fetcher) readFile(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	body, err := os.ReadFile(filepath.Clean(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return body, nil
}

// ParseURL reports whether source is an absolute URL (scheme and host).
func ParseURL(source string) (*url.URL, bool) {
	u, err := url.Parse(source)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, false
	}
	return u, true
}

// HasXMLExtension reports whether source names an .xml document. For URLs
// only the path is inspected, so query strings and fragments are ignored.
func HasXMLExtension(source string) bool {
	p := source
	if u, ok := ParseURL(source); ok {
		p = u.Path
	}
	return strings.EqualFold(path.Ext(p), ".xml")
}
