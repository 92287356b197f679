package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const urlset = `<urlset><url><loc>https://example.com/a</loc></url></urlset>`

func newTestServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(urlset))
	})
	mux.HandleFunc("/moved.xml", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		http.Redirect(w, r, "/sitemap.xml", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/moved-to-missing.xml", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		http.Redirect(w, r, "/missing.xml", http.StatusFound)
	})
	mux.HandleFunc("/ua.xml", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		_, _ = w.Write([]byte(r.Header.Get("User-Agent")))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch_URL(t *testing.T) {
	var hits int32
	srv := newTestServer(t, &hits)
	f := New(Options{})

	body, err := f.Fetch(context.Background(), srv.URL+"/sitemap.xml")
	require.NoError(t, err)
	assert.Equal(t, urlset, string(body))
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestFetch_FollowsRedirects(t *testing.T) {
	var hits int32
	srv := newTestServer(t, &hits)
	f := New(Options{})

	body, err := f.Fetch(context.Background(), srv.URL+"/moved.xml")
	require.NoError(t, err)
	assert.Equal(t, urlset, string(body))

	_, err = f.Fetch(context.Background(), srv.URL+"/moved-to-missing.xml")
	assert.ErrorIs(t, err, ErrFetch)
}

func TestFetch_NotFoundStatus(t *testing.T) {
	var hits int32
	srv := newTestServer(t, &hits)
	f := New(Options{})

	body, err := f.Fetch(context.Background(), srv.URL+"/missing.xml")
	assert.Nil(t, body)
	require.ErrorIs(t, err, ErrFetch)
	assert.Contains(t, err.Error(), "HTTP 404")
}

func TestFetch_UserAgent(t *testing.T) {
	var hits int32
	srv := newTestServer(t, &hits)
	f := New(Options{UserAgent: "sitemap-resolver/test"})

	body, err := f.Fetch(context.Background(), srv.URL+"/ua.xml")
	require.NoError(t, err)
	assert.Equal(t, "sitemap-resolver/test", string(body))
}

func TestFetch_UnreachableHost(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := New(Options{}).Fetch(context.Background(), addr+"/sitemap.xml")
	assert.ErrorIs(t, err, ErrFetch)
}

func TestFetch_RejectsNonXMLBeforeReading(t *testing.T) {
	var hits int32
	srv := newTestServer(t, &hits)
	f := New(Options{AllowLocal: true})

	_, err := f.Fetch(context.Background(), srv.URL+"/sitemap?page=2")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = f.Fetch(context.Background(), filepath.Join(t.TempDir(), "sitemap.txt"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	assert.EqualValues(t, 0, atomic.LoadInt32(&hits))
}

func TestFetch_LocalFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), "sitemap.xml")
	require.NoError(t, os.WriteFile(name, []byte(urlset), 0644))

	body, err := New(Options{AllowLocal: true}).Fetch(context.Background(), name)
	require.NoError(t, err)
	assert.Equal(t, urlset, string(body))
}

func TestFetch_MissingLocalFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), "nonexistent.xml")

	_, err := New(Options{AllowLocal: true}).Fetch(context.Background(), name)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "Sitemap file does not exist", err.Error())
}

func TestFetch_LocalDisabled(t *testing.T) {
	name := filepath.Join(t.TempDir(), "sitemap.xml")
	require.NoError(t, os.WriteFile(name, []byte(urlset), 0644))

	_, err := New(Options{}).Fetch(context.Background(), name)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestFetch_CanceledContext(t *testing.T) {
	var hits int32
	srv := newTestServer(t, &hits)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Options{}).Fetch(ctx, srv.URL+"/sitemap.xml")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHasXMLExtension(t *testing.T) {
	tests := []struct {
		source string
		want   bool
	}{
		{"https://example.com/sitemap.xml", true},
		{"https://example.com/sitemap.XML", true},
		{"https://example.com/sitemap.xml?page=2", true},
		{"https://example.com/sitemap.php?format=xml", false},
		{"https://example.com/", false},
		{"/var/www/sitemap.xml", true},
		{"sitemap.xml.gz", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			assert.Equal(t, tt.want, HasXMLExtension(tt.source))
		})
	}
}
