package epubzip

import (
	"io"
	"io/fs"
	"sync"

	"github.com/klauspost/compress/zip"

	"github.com/meigma/epubzip/internal/handle"
)

// OpenStream opens the named entry for streaming.
//
// The archive handle stays leased until the returned stream is closed, so
// callers must Close it. ok is false, with no stream, when the archive has
// no such entry. Streams are not subject to the maximum entry size.
//
// Reading another archive with the same Worker, or closing the Worker,
// closes the archive under an open stream: further reads fail, and Close
// returns nil.
func (w *Worker) OpenStream(path, name string) (rc io.ReadCloser, ok bool, err error) {
	const op = "openstream"
	id, err := w.prepare(op, path, name)
	if err != nil {
		return nil, false, err
	}

	lease, err := w.slot.Acquire(string(id))
	if err != nil {
		return nil, false, err
	}
	f, found := lease.Handle().Lookup(name, w.r.foldCase)
	if !found {
		lease.Release()
		return nil, false, nil
	}
	src, err := lease.Handle().Open(f)
	if err != nil {
		lease.Release()
		return nil, false, &fs.PathError{Op: op, Path: name, Err: err}
	}
	return &entryStream{ReadCloser: src, lease: lease}, true, nil
}

// entryStream releases its lease the first time it is closed.
type entryStream struct {
	io.ReadCloser
	lease *handle.Lease
	once  sync.Once
	err   error
}

// Close closes the entry reader and releases the lease. When the worker has
// already closed the archive, closing the entry is a no-op and returns nil.
func (s *entryStream) Close() error {
	s.once.Do(func() {
		stale := s.lease.Closed()
		s.err = s.ReadCloser.Close()
		s.lease.Release()
		if stale {
			s.err = nil
		}
	})
	return s.err
}

// ProcessEntry streams the named entry to fn. found is false, and fn is not
// called, when the archive has no such entry. An error from fn is returned
// unchanged. The lease is released when fn returns or panics.
func (w *Worker) ProcessEntry(path, name string, fn func(io.Reader) error) (found bool, err error) {
	const op = "processentry"
	id, err := w.prepare(op, path, name)
	if err != nil {
		return false, err
	}

	err = w.slot.With(string(id), func(h *handle.Handle) error {
		f, ok := h.Lookup(name, w.r.foldCase)
		if !ok {
			return nil
		}
		found = true
		return consume(h, op, name, f, fn)
	})
	return found, err
}

// ProcessMultiple streams each named entry to fn in order, under a single
// lease. Missing names are skipped. Processing stops at the first error,
// which is returned unchanged when it comes from fn.
func (w *Worker) ProcessMultiple(path string, names []string, fn func(name string, r io.Reader) error) error {
	const op = "processmultiple"
	id, err := w.prepareBatch(op, path, names)
	if err != nil {
		return err
	}

	return w.slot.With(string(id), func(h *handle.Handle) error {
		for _, name := range names {
			f, ok := h.Lookup(name, w.r.foldCase)
			if !ok {
				w.r.log().Debug("skipping missing entry", "archive", id, "entry", name)
				continue
			}
			err := consume(h, op, name, f, func(r io.Reader) error {
				return fn(name, r)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func consume(h *handle.Handle, op, name string, f *zip.File, fn func(io.Reader) error) error {
	rc, err := h.Open(f)
	if err != nil {
		return &fs.PathError{Op: op, Path: name, Err: err}
	}
	defer rc.Close()
	return fn(rc)
}
