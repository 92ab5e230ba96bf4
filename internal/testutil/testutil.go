// Package testutil builds ZIP and EPUB fixtures for tests.
package testutil

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

// MethodZstd is the ZIP method number used for zstd-compressed entries.
const MethodZstd = zstd.ZipMethodWinZip

// Entry is one file written into a fixture archive.
type Entry struct {
	Name   string
	Data   []byte
	Method uint16 // zip.Store, zip.Deflate or MethodZstd
}

// WriteZip writes entries, in order, to a new ZIP file at path.
func WriteZip(tb testing.TB, path string, entries []Entry) {
	tb.Helper()

	f, err := os.Create(path) //nolint:gosec // test fixture path
	if err != nil {
		tb.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	w.RegisterCompressor(MethodZstd, zstd.ZipCompressor())
	for _, e := range entries {
		fw, err := w.CreateHeader(&zip.FileHeader{Name: e.Name, Method: e.Method})
		if err != nil {
			tb.Fatalf("create entry %s: %v", e.Name, err)
		}
		if _, err := fw.Write(e.Data); err != nil {
			tb.Fatalf("write entry %s: %v", e.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		tb.Fatalf("close zip writer: %v", err)
	}
	if err := f.Close(); err != nil {
		tb.Fatalf("close %s: %v", path, err)
	}
}

// Mimetype is the content of the mimetype entry of every EPUB.
const Mimetype = "application/epub+zip"

// ContainerXML is a minimal META-INF/container.xml pointing at OEBPS/content.opf.
const ContainerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>
`

// WriteEPUB writes an EPUB named name into dir and returns its path.
//
// The stored mimetype entry comes first, as the OCF container format
// requires, followed by META-INF/container.xml and then files in name order,
// deflated. Files may override the container document.
func WriteEPUB(tb testing.TB, dir, name string, files map[string][]byte) string {
	tb.Helper()

	entries := []Entry{{Name: "mimetype", Data: []byte(Mimetype), Method: zip.Store}}
	if _, ok := files["META-INF/container.xml"]; !ok {
		entries = append(entries, Entry{
			Name:   "META-INF/container.xml",
			Data:   []byte(ContainerXML),
			Method: zip.Deflate,
		})
	}
	names := make([]string, 0, len(files))
	for n := range files {
		names = append(names, n)
	}
	slices.Sort(names)
	for _, n := range names {
		entries = append(entries, Entry{Name: n, Data: files[n], Method: zip.Deflate})
	}

	path := filepath.Join(dir, name)
	WriteZip(tb, path, entries)
	return path
}

// SampleFiles returns the content files of a small two-chapter book.
func SampleFiles() map[string][]byte {
	return map[string][]byte{
		"OEBPS/content.opf":      []byte(`<package version="3.0"><manifest/><spine/></package>`),
		"OEBPS/toc.ncx":          []byte(`<ncx><navMap/></ncx>`),
		"OEBPS/text/ch1.xhtml":   []byte(`<html><body><p>Chapter one</p></body></html>`),
		"OEBPS/text/ch2.xhtml":   []byte(`<html><body><p>Chapter two</p></body></html>`),
		"OEBPS/images/cover.png": {0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0xff},
		"OEBPS/styles/main.css":  []byte(`body { margin: 0 }`),
	}
}

// WriteFile writes raw bytes to dir/name and returns the path.
func WriteFile(tb testing.TB, dir, name string, data []byte) string {
	tb.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		tb.Fatalf("write %s: %v", path, err)
	}
	return path
}
