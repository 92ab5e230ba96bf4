package epubzip

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"

	"github.com/klauspost/compress/zip"

	"github.com/meigma/epubzip/entrypath"
	"github.com/meigma/epubzip/internal/handle"
)

// Worker reads archive entries on behalf of one goroutine.
//
// A Worker holds at most one open archive handle and is not safe for
// concurrent use; give each goroutine its own. Close releases the handle.
type Worker struct {
	r      *Reader
	slot   *handle.Slot
	closed bool
}

// Close closes the worker's archive handle, whatever its usage, and marks
// the worker unusable. Streams still open become unreadable. Close always
// returns nil.
func (w *Worker) Close() error {
	w.closed = true
	w.slot.Close()
	return nil
}

// ListEntries returns the names of every entry in the archive at path, in
// archive order. Directory entries are included.
func (w *Worker) ListEntries(path string) ([]string, error) {
	const op = "listentries"
	if w.closed {
		return nil, &fs.PathError{Op: op, Path: path, Err: ErrWorkerClosed}
	}
	id, err := NewIdentity(path)
	if err != nil {
		return nil, err
	}

	var names []string
	err = w.slot.With(string(id), func(h *handle.Handle) error {
		names = h.Names()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// ReadText returns the text of the named entry, decoded with the Reader's
// text encoding. ok is false when the archive has no such entry.
//
// Results are cached per archive under the matched entry name and the
// Reader's text encoding, so Readers sharing a registry with different
// options never see each other's decodings. Concurrent misses for the same
// entry on the same Reader are collapsed into one archive read.
func (w *Worker) ReadText(path, name string) (text string, ok bool, err error) {
	const op = "readtext"
	id, err := w.prepare(op, path, name)
	if err != nil {
		return "", false, err
	}

	content := w.r.registry.Get(string(id))
	if cached, ok := content.Text(w.r.textKey(name)); ok {
		w.r.hits.Add(1)
		w.r.log().Debug("text cache hit", "archive", id, "entry", name)
		return cached, true, nil
	}
	w.r.misses.Add(1)
	w.r.log().Debug("text cache miss", "archive", id, "entry", name)

	result, err, _ := w.r.group.Do(flightKey("text", id, name), func() (any, error) {
		if cached, ok := content.Text(w.r.textKey(name)); ok {
			return &cached, nil
		}
		var (
			cached string
			hit    bool
		)
		entry, data, ok, err := w.readEntry(id, name, func(entry string) bool {
			cached, hit = content.Text(w.r.textKey(entry))
			return hit
		})
		if err != nil || !ok {
			return (*string)(nil), err
		}
		if hit {
			return &cached, nil
		}
		decoded, err := w.r.decode(data)
		if err != nil {
			return (*string)(nil), fmt.Errorf("decode: %w", err)
		}
		content.SetText(w.r.textKey(entry), decoded)
		return &decoded, nil
	})
	if err != nil {
		return "", false, &fs.PathError{Op: op, Path: name, Err: err}
	}
	p := result.(*string) //nolint:errcheck // type assertion always succeeds
	if p == nil {
		return "", false, nil
	}
	return *p, true, nil
}

// ReadBinary returns the raw content of the named entry. ok is false when
// the archive has no such entry. The returned slice belongs to the caller.
//
// Results are cached per archive, as for ReadText.
func (w *Worker) ReadBinary(path, name string) (data []byte, ok bool, err error) {
	const op = "readbinary"
	id, err := w.prepare(op, path, name)
	if err != nil {
		return nil, false, err
	}

	content := w.r.registry.Get(string(id))
	if cached, ok := content.Binary(name); ok {
		w.r.hits.Add(1)
		w.r.log().Debug("binary cache hit", "archive", id, "entry", name)
		return cached, true, nil
	}
	w.r.misses.Add(1)
	w.r.log().Debug("binary cache miss", "archive", id, "entry", name)

	result, err, shared := w.r.group.Do(flightKey("binary", id, name), func() (any, error) {
		if cached, ok := content.Binary(name); ok {
			return cached, nil
		}
		var cached []byte
		entry, data, ok, err := w.readEntry(id, name, func(entry string) bool {
			var hit bool
			cached, hit = content.Binary(entry)
			return hit
		})
		if err != nil || !ok {
			return []byte(nil), err
		}
		if cached != nil {
			return cached, nil
		}
		content.SetBinary(entry, data)
		return data, nil
	})
	if err != nil {
		return nil, false, &fs.PathError{Op: op, Path: name, Err: err}
	}
	data = result.([]byte) //nolint:errcheck // type assertion always succeeds
	if data == nil {
		return nil, false, nil
	}
	if shared {
		data = bytes.Clone(data)
	}
	return data, true, nil
}

// ReadMultipleText reads several entries with a single archive handle.
//
// Every name is validated before the archive is opened; one unsafe name
// fails the whole batch. The cache is neither consulted nor filled. Missing
// entries are present in the result with a nil value.
func (w *Worker) ReadMultipleText(path string, names []string) (map[string]*string, error) {
	const op = "readmultipletext"
	id, err := w.prepareBatch(op, path, names)
	if err != nil {
		return nil, err
	}

	result := make(map[string]*string, len(names))
	err = w.slot.With(string(id), func(h *handle.Handle) error {
		for _, name := range names {
			data, ok, err := w.readFrom(h, name)
			if err != nil {
				return &fs.PathError{Op: op, Path: name, Err: err}
			}
			if !ok {
				result[name] = nil
				continue
			}
			text, err := w.r.decode(data)
			if err != nil {
				return &fs.PathError{Op: op, Path: name, Err: fmt.Errorf("decode: %w", err)}
			}
			result[name] = &text
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ReadMultipleBinary is ReadMultipleText for raw bytes. Missing entries map
// to a nil slice; present but empty entries map to an empty, non-nil slice.
func (w *Worker) ReadMultipleBinary(path string, names []string) (map[string][]byte, error) {
	const op = "readmultiplebinary"
	id, err := w.prepareBatch(op, path, names)
	if err != nil {
		return nil, err
	}

	result := make(map[string][]byte, len(names))
	err = w.slot.With(string(id), func(h *handle.Handle) error {
		for _, name := range names {
			data, ok, err := w.readFrom(h, name)
			if err != nil {
				return &fs.PathError{Op: op, Path: name, Err: err}
			}
			if !ok {
				result[name] = nil
				continue
			}
			result[name] = data
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// prepare checks the worker and entry name and resolves the archive identity.
// Nothing is opened until prepare succeeds.
func (w *Worker) prepare(op, path, name string) (Identity, error) {
	if w.closed {
		return "", &fs.PathError{Op: op, Path: name, Err: ErrWorkerClosed}
	}
	if !entrypath.IsPathSafe("", name) {
		return "", &fs.PathError{Op: op, Path: name, Err: ErrUnsafePath}
	}
	return NewIdentity(path)
}

// prepareBatch is prepare for a list of names.
func (w *Worker) prepareBatch(op, path string, names []string) (Identity, error) {
	if w.closed {
		return "", &fs.PathError{Op: op, Path: path, Err: ErrWorkerClosed}
	}
	for _, name := range names {
		if !entrypath.IsPathSafe("", name) {
			return "", &fs.PathError{Op: op, Path: name, Err: ErrUnsafePath}
		}
	}
	return NewIdentity(path)
}

// readEntry reads one entry under its own lease and returns the name of the
// entry that matched. When that name differs from the requested one, because
// the lookup folded case, cached is asked first and a true result skips the
// read, leaving data nil.
func (w *Worker) readEntry(id Identity, name string, cached func(entry string) bool) (entry string, data []byte, ok bool, err error) {
	lease, err := w.slot.Acquire(string(id))
	if err != nil {
		return "", nil, false, err
	}
	defer lease.Release()

	h := lease.Handle()
	f, ok := h.Lookup(name, w.r.foldCase)
	if !ok {
		return "", nil, false, nil
	}
	if f.Name != name && cached(f.Name) {
		return f.Name, nil, true, nil
	}
	data, err = w.readFile(h, f)
	return f.Name, data, true, err
}

// readFrom reads the named entry from h, enforcing the maximum entry size.
func (w *Worker) readFrom(h *handle.Handle, name string) ([]byte, bool, error) {
	f, ok := h.Lookup(name, w.r.foldCase)
	if !ok {
		return nil, false, nil
	}
	data, err := w.readFile(h, f)
	return data, true, err
}

func (w *Worker) readFile(h *handle.Handle, f *zip.File) ([]byte, error) {
	limit := w.r.maxEntrySize
	if err := checkSize(f, limit); err != nil {
		return nil, err
	}

	rc, err := h.Open(f)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var src io.Reader = rc
	if limit > 0 {
		// Read one byte past the limit: the declared size may be forged.
		src = io.LimitReader(rc, limit+1)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrEntryTooLarge, limit)
	}
	return data, nil
}

func checkSize(f *zip.File, limit int64) error {
	if limit > 0 && f.UncompressedSize64 > uint64(limit) {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrEntryTooLarge, f.UncompressedSize64, limit)
	}
	return nil
}

func flightKey(kind string, id Identity, name string) string {
	return kind + "\x00" + string(id) + "\x00" + name
}
