package handle

import (
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/epubzip/internal/testutil"
)

func writeSample(t *testing.T, name string) string {
	t.Helper()
	return testutil.WriteEPUB(t, t.TempDir(), name, testutil.SampleFiles())
}

func TestSlotReusesHandleForSameIdentity(t *testing.T) {
	t.Parallel()

	path := writeSample(t, "book.epub")
	pool := NewPool()
	slot := pool.Slot()
	defer slot.Close()

	first, err := slot.Acquire(path)
	require.NoError(t, err)
	second, err := slot.Acquire(path)
	require.NoError(t, err)

	assert.Same(t, first.Handle(), second.Handle())
	assert.Equal(t, 2, slot.Refs())
	assert.Equal(t, int64(1), pool.Opens())

	second.Release()
	assert.Equal(t, 1, slot.Refs())
	assert.Same(t, first.Handle(), slot.Current())
	first.Release()
}

func TestSlotClosesHandleOnIdentityChange(t *testing.T) {
	t.Parallel()

	pathA := writeSample(t, "a.epub")
	pathB := writeSample(t, "b.epub")
	pool := NewPool()
	slot := pool.Slot()
	defer slot.Close()

	leaseA, err := slot.Acquire(pathA)
	require.NoError(t, err)
	_, err = slot.Acquire(pathA)
	require.NoError(t, err)
	require.Equal(t, 2, slot.Refs())

	leaseB, err := slot.Acquire(pathB)
	require.NoError(t, err)

	assert.True(t, leaseA.Handle().closed, "prior handle is closed regardless of its counter")
	assert.NotSame(t, leaseA.Handle(), leaseB.Handle())
	assert.Equal(t, pathB, slot.Current().Identity())
	assert.Equal(t, int64(2), pool.Opens())

	// Releasing a stale lease leaves the new handle alone.
	leaseA.Release()
	assert.Equal(t, 1, slot.Refs())
	leaseB.Release()
}

func TestSlotOpensFreshHandleAfterReleaseToZero(t *testing.T) {
	t.Parallel()

	path := writeSample(t, "book.epub")
	pool := NewPool()
	slot := pool.Slot()
	defer slot.Close()

	first, err := slot.Acquire(path)
	require.NoError(t, err)
	firstHandle := first.Handle()
	first.Release()

	assert.True(t, firstHandle.closed)
	assert.Nil(t, slot.Current())

	second, err := slot.Acquire(path)
	require.NoError(t, err)
	defer second.Release()

	assert.NotSame(t, firstHandle, second.Handle())
	assert.NotEqual(t, firstHandle.Seq(), second.Handle().Seq())
	assert.Equal(t, int64(2), pool.Opens())
	assert.Equal(t, int64(1), pool.Closes())
}

func TestLeaseReleaseIsIdempotent(t *testing.T) {
	t.Parallel()

	path := writeSample(t, "book.epub")
	slot := NewPool().Slot()
	defer slot.Close()

	keep, err := slot.Acquire(path)
	require.NoError(t, err)
	extra, err := slot.Acquire(path)
	require.NoError(t, err)

	extra.Release()
	extra.Release()
	extra.Release()

	assert.Equal(t, 1, slot.Refs())
	assert.False(t, keep.Handle().closed)
	keep.Release()
}

func TestSlotCloseForcesCleanup(t *testing.T) {
	t.Parallel()

	path := writeSample(t, "book.epub")
	pool := NewPool()
	slot := pool.Slot()

	lease, err := slot.Acquire(path)
	require.NoError(t, err)
	_, err = slot.Acquire(path)
	require.NoError(t, err)

	slot.Close()
	assert.True(t, lease.Handle().closed)
	assert.Nil(t, slot.Current())
	assert.Zero(t, slot.Refs())

	// Outstanding leases are harmless after cleanup.
	lease.Release()
	assert.Equal(t, int64(1), pool.Closes())

	// The slot can be used again.
	again, err := slot.Acquire(path)
	require.NoError(t, err)
	assert.NotSame(t, lease.Handle(), again.Handle())
	again.Release()
}

func TestSlotWithReleasesOnError(t *testing.T) {
	t.Parallel()

	path := writeSample(t, "book.epub")
	slot := NewPool().Slot()
	defer slot.Close()

	boom := errors.New("boom")
	err := slot.With(path, func(h *Handle) error {
		assert.Equal(t, path, h.Identity())
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Nil(t, slot.Current())
}

func TestSlotWithReleasesOnPanic(t *testing.T) {
	t.Parallel()

	path := writeSample(t, "book.epub")
	slot := NewPool().Slot()
	defer slot.Close()

	assert.Panics(t, func() {
		_ = slot.With(path, func(*Handle) error {
			panic("consumer failed")
		})
	})
	assert.Nil(t, slot.Current())
	assert.Zero(t, slot.Refs())
}

func TestSlotAcquireOpenFailures(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tests := []struct {
		name string
		path string
	}{
		{"missing", filepath.Join(dir, "missing.epub")},
		{"not a zip", testutil.WriteFile(t, dir, "corrupt.epub", []byte("definitely not a zip archive"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			pool := NewPool()
			slot := pool.Slot()

			lease, err := slot.Acquire(tt.path)
			require.ErrorIs(t, err, ErrOpen)
			assert.Nil(t, lease)
			assert.Nil(t, slot.Current())
			assert.Zero(t, pool.Opens())
		})
	}
}

type failingArchive struct {
	closeCalls int
}

func (a *failingArchive) Entries() []*zip.File { return nil }

func (a *failingArchive) Close() error {
	a.closeCalls++
	return errors.New("close failed")
}

func TestCloseErrorsAreSuppressed(t *testing.T) {
	t.Parallel()

	archive := &failingArchive{}
	pool := NewPool(WithOpener(func(string) (Archive, error) { return archive, nil }))
	slot := pool.Slot()

	lease, err := slot.Acquire("fake.epub")
	require.NoError(t, err)
	assert.NotPanics(t, lease.Release)
	assert.Equal(t, 1, archive.closeCalls)

	_, err = slot.Acquire("fake.epub")
	require.NoError(t, err)
	assert.NotPanics(t, slot.Close)
	assert.Equal(t, 2, archive.closeCalls)
}

func TestHandleNamesAndLookup(t *testing.T) {
	t.Parallel()

	path := writeSample(t, "book.epub")
	slot := NewPool().Slot()
	defer slot.Close()

	err := slot.With(path, func(h *Handle) error {
		names := h.Names()
		require.NotEmpty(t, names)
		assert.Equal(t, "mimetype", names[0])
		assert.Contains(t, names, "OEBPS/text/ch1.xhtml")

		_, ok := h.Lookup("OEBPS/text/ch1.xhtml", false)
		assert.True(t, ok)
		_, ok = h.Lookup("oebps/TEXT/ch1.xhtml", false)
		assert.False(t, ok)
		f, ok := h.Lookup("oebps/TEXT/ch1.xhtml", true)
		require.True(t, ok)
		assert.Equal(t, "OEBPS/text/ch1.xhtml", f.Name)
		_, ok = h.Lookup("missing.xhtml", true)
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)
}

func TestHandleReadsZstdEntries(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "zstd.epub")
	body := []byte("zstd compressed chapter text, repeated; zstd compressed chapter text")
	testutil.WriteZip(t, path, []testutil.Entry{
		{Name: "mimetype", Data: []byte(testutil.Mimetype), Method: zip.Store},
		{Name: "OEBPS/ch1.xhtml", Data: body, Method: testutil.MethodZstd},
	})

	slot := NewPool().Slot()
	defer slot.Close()
	err := slot.With(path, func(h *Handle) error {
		f, ok := h.Lookup("OEBPS/ch1.xhtml", false)
		require.True(t, ok)
		rc, err := h.Open(f)
		require.NoError(t, err)
		defer rc.Close()
		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, body, got)
		return nil
	})
	require.NoError(t, err)
}

func TestSlotsDoNotShareHandles(t *testing.T) {
	t.Parallel()

	path := writeSample(t, "book.epub")
	pool := NewPool()
	a, b := pool.Slot(), pool.Slot()
	defer a.Close()
	defer b.Close()

	la, err := a.Acquire(path)
	require.NoError(t, err)
	lb, err := b.Acquire(path)
	require.NoError(t, err)

	assert.NotSame(t, la.Handle(), lb.Handle())
	assert.Equal(t, int64(2), pool.Opens())
	la.Release()
	lb.Release()
}

func TestLeaseClosedAfterIdentityChange(t *testing.T) {
	t.Parallel()

	pathA := writeSample(t, "a.epub")
	pathB := writeSample(t, "b.epub")
	slot := NewPool().Slot()
	defer slot.Close()

	held, err := slot.Acquire(pathA)
	require.NoError(t, err)
	assert.False(t, held.Closed())

	other, err := slot.Acquire(pathB)
	require.NoError(t, err)
	assert.True(t, held.Closed())
	assert.False(t, other.Closed())

	held.Release()
	assert.Equal(t, 1, slot.Refs())
	other.Release()
	assert.True(t, other.Closed())
}
