package epubzip

import (
	"fmt"
	"path/filepath"

	"github.com/meigma/epubzip/internal/handle"
)

// Re-exported from internal/handle for use with WithOpener.
type (
	// Archive is an open ZIP container.
	Archive = handle.Archive

	// Opener opens the archive stored at a path.
	Opener = handle.Opener
)

// OpenZip is the default Opener. It reads stored, deflated and zstd entries.
var OpenZip = handle.OpenZip

// Identity distinguishes one archive from another for caching and handle
// reuse. It is the archive's absolute, cleaned file-system path.
type Identity string

// NewIdentity returns the Identity of the archive at path.
func NewIdentity(path string) (Identity, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve archive path %s: %w", path, err)
	}
	return Identity(filepath.Clean(abs)), nil
}

// String returns the path of the identity.
func (id Identity) String() string {
	return string(id)
}

// Stats is a snapshot of Reader counters.
type Stats struct {
	// Opens is the number of archive handles opened.
	Opens int64
	// Closes is the number of archive handles closed.
	Closes int64
	// CacheHits counts ReadText and ReadBinary calls served from the cache.
	CacheHits int64
	// CacheMisses counts ReadText and ReadBinary calls that went to the archive.
	CacheMisses int64
}

// HitRatio returns the fraction of cached reads served from the cache, in [0, 1].
func (s Stats) HitRatio() float64 {
	total := s.CacheHits + s.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(total)
}
