package epubzip

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
)

// MimeType is the media type an EPUB's mimetype entry must carry.
const MimeType = "application/epub+zip"

// MimetypeEntry is the name of the entry holding the media type.
const MimetypeEntry = "mimetype"

// Offsets of the OCF signature: a local file header whose file name is
// "mimetype", stored uncompressed, immediately followed by its content.
const (
	localHeaderSig     = "PK\x03\x04"
	mimetypeNameOff    = 30
	mimetypeContentOff = mimetypeNameOff + len(MimetypeEntry)
	signatureLen       = mimetypeContentOff + len(MimeType)
)

// CheckSignature reports whether the file at path starts with the EPUB OCF
// signature. It returns an error wrapping ErrNotEPUB when the leading bytes
// do not match, and other errors when the file cannot be read.
//
// Only the first bytes of the file are read; the archive is not opened.
func CheckSignature(path string) error {
	const op = "checksignature"
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	head := make([]byte, signatureLen)
	if _, err := io.ReadFull(f, head); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return &fs.PathError{Op: op, Path: path, Err: fmt.Errorf("%w: file too short", ErrNotEPUB)}
		}
		return &fs.PathError{Op: op, Path: path, Err: err}
	}

	switch {
	case !bytes.Equal(head[:len(localHeaderSig)], []byte(localHeaderSig)):
		return &fs.PathError{Op: op, Path: path, Err: fmt.Errorf("%w: not a zip archive", ErrNotEPUB)}
	case string(head[mimetypeNameOff:mimetypeContentOff]) != MimetypeEntry:
		return &fs.PathError{Op: op, Path: path, Err: fmt.Errorf("%w: first entry is not %s", ErrNotEPUB, MimetypeEntry)}
	case string(head[mimetypeContentOff:]) != MimeType:
		return &fs.PathError{Op: op, Path: path, Err: fmt.Errorf("%w: unexpected media type", ErrNotEPUB)}
	}
	return nil
}

// CheckMimetype reads the mimetype entry of the archive at path and reports
// whether it names the EPUB media type. Surrounding white space is ignored.
func (w *Worker) CheckMimetype(path string) error {
	text, ok, err := w.ReadText(path, MimetypeEntry)
	if err != nil {
		return err
	}
	if !ok {
		return &fs.PathError{Op: "checkmimetype", Path: path, Err: fmt.Errorf("%w: no %s entry", ErrNotEPUB, MimetypeEntry)}
	}
	if got := strings.TrimSpace(text); got != MimeType {
		return &fs.PathError{Op: "checkmimetype", Path: path, Err: fmt.Errorf("%w: media type %q", ErrNotEPUB, got)}
	}
	return nil
}
