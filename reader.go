package epubzip

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"

	"github.com/meigma/epubzip/cache"
	"github.com/meigma/epubzip/internal/handle"
)

// DefaultMaxEntrySize is the default maximum decompressed entry size (256MB).
const DefaultMaxEntrySize = 256 << 20

// Reader is the shared half of the archive access layer.
//
// It owns the cache registry and the handle pool and is safe for concurrent
// use. Reads go through a Worker obtained from NewWorker.
type Reader struct {
	registry     *cache.Registry
	pool         *handle.Pool
	opener       Opener
	logger       *slog.Logger
	maxEntrySize int64
	encoding     encoding.Encoding
	encodingSet  bool
	textTag      string
	foldCase     bool
	group        singleflight.Group // zero value is valid
	hits         atomic.Int64
	misses       atomic.Int64
}

// New creates a Reader.
func New(opts ...Option) *Reader {
	r := &Reader{
		maxEntrySize: DefaultMaxEntrySize,
		opener:       OpenZip,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.registry == nil {
		r.registry = cache.NewRegistry(cache.WithLogger(r.logger))
	}
	if r.opener == nil {
		r.opener = OpenZip
	}
	if r.encodingSet {
		r.textTag = fmt.Sprintf("%T:%v", r.encoding, r.encoding)
	}
	r.pool = handle.NewPool(
		handle.WithOpener(r.opener),
		handle.WithLogger(r.logger),
	)
	return r
}

// log returns the logger, falling back to a discard logger if nil.
func (r *Reader) log() *slog.Logger {
	if r.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.logger
}

// NewWorker returns a Worker with its own handle slot.
func (r *Reader) NewWorker() *Worker {
	return &Worker{r: r, slot: r.pool.Slot()}
}

// Registry returns the cache registry used by the Reader.
func (r *Reader) Registry() *cache.Registry {
	return r.registry
}

// Cache returns the cached content of the archive at path, creating an empty
// one if needed. Higher layers use it to store their own parsed results.
func (r *Reader) Cache(path string) (*cache.Content, error) {
	id, err := NewIdentity(path)
	if err != nil {
		return nil, err
	}
	return r.registry.Get(string(id)), nil
}

// Evict drops everything cached for the archive at path.
func (r *Reader) Evict(path string) error {
	id, err := NewIdentity(path)
	if err != nil {
		return err
	}
	r.registry.Evict(string(id))
	return nil
}

// EvictAll drops everything cached for every archive.
func (r *Reader) EvictAll() {
	r.registry.EvictAll()
}

// PruneMissingFiles drops the cache of every archive whose file no longer
// exists and returns how many were dropped.
func (r *Reader) PruneMissingFiles() int {
	n := r.registry.PruneMissingFiles()
	if n > 0 {
		r.log().Debug("pruned caches of missing archives", "count", n)
	}
	return n
}

// Stats returns a snapshot of the Reader counters.
func (r *Reader) Stats() Stats {
	return Stats{
		Opens:       r.pool.Opens(),
		Closes:      r.pool.Closes(),
		CacheHits:   r.hits.Load(),
		CacheMisses: r.misses.Load(),
	}
}

// textKey returns the key under which decoded text of entry is cached.
// Text decoded with the default encoding is cached under the entry name.
func (r *Reader) textKey(entry string) string {
	if r.textTag == "" {
		return entry
	}
	return entry + "\x00" + r.textTag
}

// decode converts entry bytes to text.
func (r *Reader) decode(data []byte) (string, error) {
	if !r.encodingSet {
		if utf8.Valid(data) {
			return string(data), nil
		}
		out, err := unicode.UTF8.NewDecoder().Bytes(data)
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
	out, err := r.encoding.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
