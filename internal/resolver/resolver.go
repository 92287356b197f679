package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/Devon-White/sitemap-resolver/internal/fetcher"
	"github.com/Devon-White/sitemap-resolver/internal/metrics"
	"github.com/Devon-White/sitemap-resolver/internal/sitemap"
)

var (
	// ErrCycle is returned when a sitemap references one of its own ancestors.
	ErrCycle = errors.New("sitemap cycle detected")

	// ErrMaxDepth is returned when nesting exceeds the configured depth.
	ErrMaxDepth = errors.New("maximum sitemap depth exceeded")
)

// Fetcher returns the raw bytes behind a source identifier.
type Fetcher interface {
	Fetch(ctx context.Context, source string) ([]byte, error)
}

// SourceError identifies the nested sitemap that failed and the sitemap
// that referenced it.
type SourceError struct {
	Source string
	Parent string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("sitemap %s (from %s): %v", e.Source, e.Parent, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// Result is the outcome of one resolution session.
type Result struct {
	Session string
	Entries []sitemap.Entry
	// Failures lists child sitemaps that could not be resolved. It is only
	// populated in partial-success mode.
	Failures []*SourceError
}

// Resolver expands sitemap indexes into page entries. It keeps no state
// between calls and is safe for concurrent use.
type Resolver struct {
	fetcher     Fetcher
	concurrency int
	partial     bool
	maxDepth    int
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithConcurrency resolves up to n sibling sitemaps at once. The total
// number of in-flight fetches per session is also capped at n.
func WithConcurrency(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithPartialSuccess records failing child sitemaps in Result.Failures
// instead of aborting the whole resolution.
func WithPartialSuccess(enabled bool) Option {
	return func(r *Resolver) { r.partial = enabled }
}

// WithMaxDepth limits how many levels of nested indexes are followed.
// Zero means unlimited.
func WithMaxDepth(depth int) Option {
	return func(r *Resolver) {
		if depth >= 0 {
			r.maxDepth = depth
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// New creates a Resolver reading documents through f.
func New(f Fetcher, opts ...Option) *Resolver {
	r := &Resolver{
		fetcher:     f,
		concurrency: 1,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve fetches source and recursively expands it into page entries in
// depth-first document order. Any failure aborts the resolution unless
// partial success is enabled, in which case only a failure of source
// itself is returned as an error.
func (r *Resolver) Resolve(ctx context.Context, source string) (*Result, error) {
	s := r.newSession(source)
	start := time.Now()

	res, err := s.resolve(ctx, source, nil)
	if err != nil {
		r.metrics.ObserveResolution("error", time.Since(start))
		s.logger.Debug("resolution failed", "error", err)
		return nil, rootError(source, err)
	}

	r.metrics.ObserveResolution("ok", time.Since(start))
	r.metrics.AddEntries(len(res.entries))
	s.logger.Debug("resolution finished",
		"entries", len(res.entries),
		"failures", len(res.failures),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	entries := res.entries
	if entries == nil {
		entries = []sitemap.Entry{}
	}
	return &Result{
		Session:  s.id,
		Entries:  entries,
		Failures: res.failures,
	}, nil
}

// session is the state of one top-level Resolve call.
type session struct {
	*Resolver
	id     string
	logger *slog.Logger
	sem    *semaphore.Weighted

	mu   sync.Mutex
	memo map[string]*node
}

// node is the resolved subtree of one sitemap.
type node struct {
	entries  []sitemap.Entry
	failures []*SourceError
	// height is the number of nested levels fetched below this node.
	height int
	// pathDependent is set when a cycle or depth failure was recorded
	// below this node, so its result cannot be reused elsewhere.
	pathDependent bool
}

func (r *Resolver) newSession(source string) *session {
	id := uuid.NewString()
	return &session{
		Resolver: r,
		id:       id,
		logger:   r.logger.With("session", id, "root", source),
		sem:      semaphore.NewWeighted(int64(r.concurrency)),
		memo:     make(map[string]*node),
	}
}

// resolve expands one sitemap. ancestors holds the canonical keys of the
// sitemaps on the path from the root down to the caller.
func (s *session) resolve(ctx context.Context, source string, ancestors []string) (*node, error) {
	key := canonical(source)
	if lo.Contains(ancestors, key) {
		return nil, ErrCycle
	}
	if s.maxDepth > 0 && len(ancestors) > s.maxDepth {
		return nil, fmt.Errorf("%w (%d)", ErrMaxDepth, s.maxDepth)
	}

	if n, ok := s.cached(key); ok && s.fits(n, len(ancestors)) {
		s.logger.Debug("reusing resolved sitemap", "source", source)
		return n, nil
	}

	data, err := s.fetch(ctx, source)
	if err != nil {
		return nil, err
	}

	doc, err := sitemap.Parse(data)
	if err != nil {
		return nil, err
	}

	var n *node
	switch doc := doc.(type) {
	case *sitemap.URLSetDocument:
		n = &node{entries: s.leaves(source, doc.URLs)}
	case *sitemap.IndexDocument:
		n, err = s.expand(ctx, source, doc.Refs, append(slices.Clip(ancestors), key))
		if err != nil {
			return nil, err
		}
	case *sitemap.EmptyDocument:
		if doc.Title != "" {
			s.logger.Warn("document is an HTML page, not a sitemap", "source", source, "title", doc.Title)
		} else {
			s.logger.Debug("sitemap has no locations", "source", source, "root", doc.Root)
		}
		n = &node{}
	default:
		return nil, fmt.Errorf("unexpected document type %T", doc)
	}

	if !n.pathDependent {
		s.store(key, n)
	}
	return n, nil
}

func (s *session) fetch(ctx context.Context, source string) ([]byte, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	start := time.Now()
	data, err := s.fetcher.Fetch(ctx, source)
	s.metrics.ObserveFetch(sourceKind(source), err, time.Since(start))
	if err != nil {
		return nil, err
	}
	s.logger.Debug("fetched sitemap", "source", source, "bytes", len(data))
	return data, nil
}

func (s *session) leaves(source string, refs []sitemap.Ref) []sitemap.Entry {
	entries := make([]sitemap.Entry, 0, len(refs))
	for _, ref := range refs {
		if ref.Loc == "" {
			s.logger.Debug("skipping entry without <loc>", "source", source)
			continue
		}
		entries = append(entries, sitemap.Entry{Location: ref.Loc, LastModified: ref.LastMod})
	}
	return entries
}

// expand resolves the children of an index. Children whose location is
// not an .xml document are emitted as leaf entries. Per-child results are
// gathered into slots and concatenated in document order.
func (s *session) expand(ctx context.Context, parent string, refs []sitemap.Ref, ancestors []string) (*node, error) {
	slots := make([]*node, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, ref := range refs {
		if ref.Loc == "" || !fetcher.HasXMLExtension(ref.Loc) {
			slots[i] = &node{entries: s.leaves(parent, []sitemap.Ref{ref}), height: -1}
			continue
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			child, err := s.child(gctx, parent, ref.Loc, ancestors)
			if err == nil {
				slots[i] = child
				return nil
			}

			serr := &SourceError{Source: ref.Loc, Parent: parent, Err: err}
			if !s.partial || ctx.Err() != nil || isContextErr(err) {
				return serr
			}

			s.logger.Warn("sub-sitemap failed", "source", ref.Loc, "parent", parent, "error", err)
			slots[i] = &node{
				failures:      []*SourceError{serr},
				height:        -1,
				pathDependent: errors.Is(err, ErrCycle) || errors.Is(err, ErrMaxDepth),
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	n := &node{}
	n.entries = lo.Flatten(lo.Map(slots, func(c *node, _ int) []sitemap.Entry { return c.entries }))
	n.failures = lo.Flatten(lo.Map(slots, func(c *node, _ int) []*SourceError { return c.failures }))
	n.pathDependent = lo.SomeBy(slots, func(c *node) bool { return c.pathDependent })
	if len(slots) > 0 {
		n.height = max(0, 1+lo.Max(lo.Map(slots, func(c *node, _ int) int { return c.height })))
	}
	return n, nil
}

// child resolves one index reference. A remote index may only point at
// remote sitemaps, never at paths on the local filesystem.
func (s *session) child(ctx context.Context, parent, loc string, ancestors []string) (*node, error) {
	if isRemote(parent) && !isRemote(loc) {
		return nil, fmt.Errorf("%w: remote sitemap references local path %s", fetcher.ErrUnsupportedFormat, loc)
	}
	return s.resolve(ctx, loc, ancestors)
}

// fits reports whether a cached subtree can be reused at depth without
// exceeding the depth limit.
func (s *session) fits(n *node, depth int) bool {
	return s.maxDepth == 0 || depth+n.height <= s.maxDepth
}

func (s *session) cached(key string) (*node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.memo[key]
	return n, ok
}

func (s *session) store(key string, n *node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memo[key] = n
}

// canonical returns the identity used for cycle detection and reuse.
// URL hosts are case-insensitive and fragments are never sent to a server.
func canonical(source string) string {
	if u, ok := fetcher.ParseURL(source); ok {
		c := *u
		c.Host = strings.ToLower(c.Host)
		c.Scheme = strings.ToLower(c.Scheme)
		c.Fragment = ""
		return c.String()
	}
	return filepath.Clean(source)
}

func isRemote(source string) bool {
	_, ok := fetcher.ParseURL(source)
	return ok
}

func sourceKind(source string) string {
	if isRemote(source) {
		return "url"
	}
	return "file"
}

// rootError adds the root source to a failure of the root document itself.
// A missing local file keeps its bare message and nested failures already
// name their source.
func rootError(source string, err error) error {
	var serr *SourceError
	if errors.Is(err, fetcher.ErrNotFound) || errors.As(err, &serr) {
		return err
	}
	return fmt.Errorf("%s: %w", source, err)
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
