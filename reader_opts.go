package epubzip

import (
	"log/slog"

	"golang.org/x/text/encoding"

	"github.com/meigma/epubzip/cache"
)

// Option configures a Reader.
type Option func(*Reader)

// WithRegistry shares an existing cache registry. By default each Reader
// creates its own.
func WithRegistry(registry *cache.Registry) Option {
	return func(r *Reader) {
		r.registry = registry
	}
}

// WithLogger sets the logger for cache and handle events.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reader) {
		r.logger = logger
	}
}

// WithMaxEntrySize limits the decompressed size of entries read into memory
// (default: 256MB). Set limit to 0 to disable the limit. Streams are not
// limited.
func WithMaxEntrySize(limit int64) Option {
	return func(r *Reader) {
		if limit < 0 {
			limit = 0
		}
		r.maxEntrySize = limit
	}
}

// WithTextEncoding sets the encoding used to decode text entries
// (default: UTF-8, with invalid bytes replaced by U+FFFD).
func WithTextEncoding(enc encoding.Encoding) Option {
	return func(r *Reader) {
		r.encoding = enc
		r.encodingSet = enc != nil
	}
}

// WithCaseInsensitiveLookup makes entry lookup fall back to a
// case-insensitive match when no entry has the exact name.
func WithCaseInsensitiveLookup(enabled bool) Option {
	return func(r *Reader) {
		r.foldCase = enabled
	}
}

// WithOpener replaces the function used to open archives (default: OpenZip).
func WithOpener(opener Opener) Option {
	return func(r *Reader) {
		r.opener = opener
	}
}
