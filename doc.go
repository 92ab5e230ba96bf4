// Package epubzip provides safe, cached access to the entries of EPUB files.
//
// An EPUB is a ZIP container. This package turns one into a set of named text
// and byte resources that higher layers (package document and navigation
// parsers, content renderers) can read without caring about open files,
// caching, or path traversal.
//
// A [Reader] holds what is shared across goroutines: the cache [cache.Registry]
// and the handle pool. Each goroutine that reads takes its own [Worker]:
//
//	r := epubzip.New(epubzip.WithLogger(logger))
//	w := r.NewWorker()
//	defer w.Close()
//
//	mimetype, ok, err := w.ReadText("book.epub", "mimetype")
//
// # Handles
//
// A Worker keeps at most one archive open. Reads of the same archive that
// overlap in time (a batch, a stream held open while other entries are read)
// share that handle; it is closed once its last user releases it, or as soon
// as the worker moves on to a different archive. Workers never share handles.
//
// # Caching
//
// [Worker.ReadText] and [Worker.ReadBinary] cache by archive and entry name.
// Byte slices are copied into and out of the cache. The batch and streaming
// operations always read from the archive. There is no automatic eviction;
// call [Reader.Evict], [Reader.EvictAll] or [Reader.PruneMissingFiles].
//
// # Paths
//
// Every entry name is checked with [entrypath.IsPathSafe] before the archive
// is opened; unsafe names fail with [ErrUnsafePath]. Use [entrypath.Resolve]
// to turn manifest and navigation hrefs into entry names.
package epubzip
