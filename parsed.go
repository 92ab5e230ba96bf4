package epubzip

import (
	"fmt"
	"io/fs"
)

// ReadParsed returns the named entry parsed by parse.
//
// The text is read through w.ReadText, so the entry must exist for this
// Worker's lookup rules. The parsed value is memoised in the archive's
// parsed tier under the entry name and text encoding, so parse runs once per
// entry until the cache is evicted. A cached value of another type is
// replaced. ok is false when the archive has no such entry.
func ReadParsed[T any](w *Worker, path, name string, parse func(string) (T, error)) (value T, ok bool, err error) {
	const op = "readparsed"
	text, ok, err := w.ReadText(path, name)
	if err != nil || !ok {
		return value, ok, err
	}
	id, err := NewIdentity(path)
	if err != nil {
		return value, true, err
	}
	content := w.r.registry.Get(string(id))
	key := w.r.textKey(name)
	if cached, found := content.Parsed(key); found {
		if v, isT := cached.(T); isT {
			return v, true, nil
		}
	}

	value, err = parse(text)
	if err != nil {
		return value, true, &fs.PathError{Op: op, Path: name, Err: fmt.Errorf("parse: %w", err)}
	}
	content.SetParsed(key, value)
	return value, true, nil
}
