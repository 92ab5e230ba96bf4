package epubzip

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/meigma/epubzip/cache"
	"github.com/meigma/epubzip/internal/testutil"
)

// newTestBook writes the sample book with extra files merged in.
func newTestBook(t *testing.T, extra map[string][]byte) string {
	t.Helper()
	files := testutil.SampleFiles()
	for name, data := range extra {
		files[name] = data
	}
	return testutil.WriteEPUB(t, t.TempDir(), "book.epub", files)
}

func newTestWorker(t *testing.T, opts ...Option) (*Reader, *Worker) {
	t.Helper()
	r := New(opts...)
	w := r.NewWorker()
	t.Cleanup(func() { _ = w.Close() })
	return r, w
}

func TestNewIdentity(t *testing.T) {
	t.Parallel()

	wd, err := os.Getwd()
	require.NoError(t, err)

	tests := []struct {
		name string
		path string
		want string
	}{
		{"absolute", "/tmp/books/a.epub", "/tmp/books/a.epub"},
		{"dot segments", "/tmp/books/../books/./a.epub", "/tmp/books/a.epub"},
		{"relative", "a.epub", filepath.Join(wd, "a.epub")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			id, err := NewIdentity(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, id.String())
		})
	}
}

func TestReaderSharesRegistryAcrossWorkers(t *testing.T) {
	t.Parallel()

	path := newTestBook(t, nil)
	r := New()
	w1 := r.NewWorker()
	defer w1.Close()
	w2 := r.NewWorker()
	defer w2.Close()

	_, ok, err := w1.ReadText(path, "OEBPS/toc.ncx")
	require.NoError(t, err)
	require.True(t, ok)

	text, ok, err := w2.ReadText(path, "OEBPS/toc.ncx")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "<ncx><navMap/></ncx>", text)

	stats := r.Stats()
	assert.Equal(t, int64(1), stats.Opens)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(1), stats.CacheMisses)
	assert.InDelta(t, 0.5, stats.HitRatio(), 1e-9)
}

func TestReaderWithRegistry(t *testing.T) {
	t.Parallel()

	path := newTestBook(t, nil)
	registry := cache.NewRegistry()
	_, w := newTestWorker(t, WithRegistry(registry))

	_, _, err := w.ReadText(path, "mimetype")
	require.NoError(t, err)

	id, err := NewIdentity(path)
	require.NoError(t, err)
	content, ok := registry.Lookup(id.String())
	require.True(t, ok)
	text, ok := content.Text("mimetype")
	require.True(t, ok)
	assert.Equal(t, testutil.Mimetype, text)
}

func TestReaderCacheIsSharedWithHigherLayers(t *testing.T) {
	t.Parallel()

	path := newTestBook(t, nil)
	r, _ := newTestWorker(t)

	first, err := r.Cache(path)
	require.NoError(t, err)
	first.SetParsed("package", 42)

	second, err := r.Cache(path)
	require.NoError(t, err)
	assert.Same(t, first, second)
	v, ok := second.Parsed("package")
	require.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestReaderEvict(t *testing.T) {
	t.Parallel()

	path := newTestBook(t, nil)
	r, w := newTestWorker(t)

	_, _, err := w.ReadText(path, "mimetype")
	require.NoError(t, err)
	require.NoError(t, r.Evict(path))
	_, _, err = w.ReadText(path, "mimetype")
	require.NoError(t, err)

	stats := r.Stats()
	assert.Equal(t, int64(0), stats.CacheHits)
	assert.Equal(t, int64(2), stats.CacheMisses)
	assert.Equal(t, int64(2), stats.Opens)

	r.EvictAll()
	assert.Equal(t, 0, r.Registry().Len())
}

func TestReaderPruneMissingFiles(t *testing.T) {
	t.Parallel()

	kept := newTestBook(t, nil)
	removed := newTestBook(t, nil)
	r, w := newTestWorker(t)

	for _, path := range []string{kept, removed} {
		_, _, err := w.ReadText(path, "mimetype")
		require.NoError(t, err)
	}
	require.Equal(t, 2, r.Registry().Len())

	require.NoError(t, os.Remove(removed))
	assert.Equal(t, 1, r.PruneMissingFiles())
	assert.Equal(t, 1, r.Registry().Len())
	assert.Equal(t, 0, r.PruneMissingFiles())
}

func TestWorkersReadConcurrently(t *testing.T) {
	t.Parallel()

	path := newTestBook(t, nil)
	r := New()
	const workers = 8

	var g errgroup.Group
	results := make([]string, workers)
	for i := range workers {
		g.Go(func() error {
			w := r.NewWorker()
			defer w.Close()
			text, _, err := w.ReadText(path, "OEBPS/text/ch1.xhtml")
			results[i] = text
			return err
		})
	}
	require.NoError(t, g.Wait())

	for _, text := range results {
		assert.Equal(t, "<html><body><p>Chapter one</p></body></html>", text)
	}
	stats := r.Stats()
	assert.Equal(t, int64(workers), stats.CacheHits+stats.CacheMisses)
	assert.GreaterOrEqual(t, stats.Opens, int64(1))
	assert.Equal(t, stats.Opens, stats.Closes)
}

func TestStatsHitRatioEmpty(t *testing.T) {
	t.Parallel()
	assert.Zero(t, Stats{}.HitRatio())
}
