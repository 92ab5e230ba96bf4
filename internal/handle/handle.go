package handle

import (
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/zip"
)

// Handle is one open archive owned by a Slot.
//
// The usage counter and closed flag are guarded by the owning Slot. Once
// closed, a Handle is never reopened; the Slot opens a new one instead.
type Handle struct {
	archive  Archive
	identity string
	seq      uint64
	refs     int
	closed   bool

	indexOnce sync.Once
	index     map[string]*zip.File
	foldOnce  sync.Once
	folded    map[string]*zip.File
}

// Identity returns the archive path this handle was opened for.
func (h *Handle) Identity() string {
	return h.identity
}

// Seq returns the pool-wide sequence number of this handle. Distinct opens
// always have distinct sequence numbers.
func (h *Handle) Seq() uint64 {
	return h.seq
}

// Names returns every entry name, directories included, in archive order.
func (h *Handle) Names() []string {
	entries := h.archive.Entries()
	names := make([]string, 0, len(entries))
	for _, f := range entries {
		names = append(names, f.Name)
	}
	return names
}

// Lookup returns the entry with the given name. When foldCase is set and no
// exact match exists, a case-insensitive match is tried; EPUBs built on
// case-insensitive file systems often disagree with their own manifests.
func (h *Handle) Lookup(name string, foldCase bool) (*zip.File, bool) {
	h.indexOnce.Do(func() {
		h.index = buildIndex(h.archive.Entries(), func(s string) string { return s })
	})
	if f, ok := h.index[name]; ok {
		return f, true
	}
	if !foldCase {
		return nil, false
	}

	h.foldOnce.Do(func() {
		h.folded = buildIndex(h.archive.Entries(), strings.ToLower)
	})
	f, ok := h.folded[strings.ToLower(name)]
	return f, ok
}

// buildIndex maps key(name) to its entry. The first entry wins when an
// archive repeats a name.
func buildIndex(entries []*zip.File, key func(string) string) map[string]*zip.File {
	index := make(map[string]*zip.File, len(entries))
	for _, f := range entries {
		k := key(f.Name)
		if _, dup := index[k]; !dup {
			index[k] = f
		}
	}
	return index
}

// Open returns a reader for the decompressed content of f.
func (h *Handle) Open(f *zip.File) (io.ReadCloser, error) {
	return f.Open()
}
