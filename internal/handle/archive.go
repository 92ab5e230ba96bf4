// Package handle manages open ZIP handles for EPUB archives.
//
// A [Pool] holds what every worker shares: the function that opens archives
// and the open/close counters. Each worker takes its own [Slot] from the pool.
// A Slot keeps at most one open [Handle] and hands out counted [Lease]s on it,
// so sequential reads of one archive within a worker reuse a single open
// file. Slots are never shared between workers, and two workers reading the
// same archive each open it independently.
package handle

import (
	"errors"
	"io"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

// ErrOpen is returned when an archive cannot be opened: the file is missing,
// unreadable, or not a ZIP container.
var ErrOpen = errors.New("epubzip: cannot open archive")

// Archive is an open ZIP container.
type Archive interface {
	io.Closer

	// Entries returns the entries in central directory order.
	Entries() []*zip.File
}

// Opener opens the archive stored at path.
type Opener func(path string) (Archive, error)

// OpenZip opens path with the klauspost ZIP reader. Entries compressed with
// zstd (ZIP method 93) are readable alongside stored and deflated ones.
func OpenZip(path string) (Archive, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	rc.RegisterDecompressor(zstd.ZipMethodWinZip, zstd.ZipDecompressor())
	return zipArchive{rc}, nil
}

type zipArchive struct {
	*zip.ReadCloser
}

func (a zipArchive) Entries() []*zip.File {
	return a.File
}
