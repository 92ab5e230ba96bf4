package epubzip

import (
	"errors"

	"github.com/meigma/epubzip/internal/handle"
)

var (
	// ErrUnsafePath is returned when an entry name could escape the archive
	// root. It is reported before the archive is opened.
	ErrUnsafePath = errors.New("epubzip: unsafe entry path")

	// ErrOpen is returned when an archive is missing, unreadable, or not a
	// ZIP container.
	ErrOpen = handle.ErrOpen

	// ErrEntryTooLarge is returned when an entry exceeds the configured
	// maximum entry size.
	ErrEntryTooLarge = errors.New("epubzip: entry too large")

	// ErrNotEPUB is returned when a file does not carry the EPUB signature.
	ErrNotEPUB = errors.New("epubzip: not an epub")

	// ErrWorkerClosed is returned when a closed Worker is used.
	ErrWorkerClosed = errors.New("epubzip: worker closed")
)
