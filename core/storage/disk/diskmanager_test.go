package disk

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/framedb/framedb/core/storage/page"
)

const testPageSize = 256

// setupDiskManager creates a fresh heap file in a temporary directory.
func setupDiskManager(t *testing.T) (*DiskManager, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	log, err := zap.NewDevelopment()
	require.NoError(t, err)

	dm, err := Open(dbPath, testPageSize, true, log)
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })
	return dm, dbPath
}

func TestOpenCreateAndReopen(t *testing.T) {
	dm, dbPath := setupDiskManager(t)

	// Page 0 is the header, so a fresh file spans one page.
	require.Equal(t, uint64(1), dm.NumPages())
	require.Equal(t, testPageSize, dm.PageSize())

	// Creating over an existing file fails.
	_, err := Open(dbPath, testPageSize, true, zap.NewNop())
	require.ErrorIs(t, err, ErrDBFileExists)

	// Opening a missing file without create fails.
	_, err = Open(filepath.Join(t.TempDir(), "missing.db"), testPageSize, false, zap.NewNop())
	require.ErrorIs(t, err, ErrDBFileNotFound)
}

func TestOpenRejectsPageSizeMismatch(t *testing.T) {
	dm, dbPath := setupDiskManager(t)
	require.NoError(t, dm.Close())

	_, err := Open(dbPath, testPageSize*2, false, zap.NewNop())
	require.Error(t, err)
	require.Contains(t, err.Error(), "page size")
}

func TestAllocateWriteReadRoundTrip(t *testing.T) {
	dm, _ := setupDiskManager(t)

	id, err := dm.AllocatePage()
	require.NoError(t, err)
	require.Equal(t, page.PageID(1), id)
	require.Equal(t, uint64(2), dm.NumPages())

	data := bytes.Repeat([]byte{0xAB}, testPageSize)
	require.NoError(t, dm.WritePage(id, data))

	got := make([]byte, testPageSize)
	require.NoError(t, dm.ReadPage(id, got))
	require.Equal(t, data, got)
}

func TestFreeListReuse(t *testing.T) {
	dm, _ := setupDiskManager(t)

	var ids []page.PageID
	for i := 0; i < 3; i++ {
		id, err := dm.AllocatePage()
		require.NoError(t, err)
		ids = append(ids, id)
	}

	require.NoError(t, dm.DeallocatePage(ids[1]))
	require.NoError(t, dm.DeallocatePage(ids[2]))

	// Reuse pops the free list (most recently freed first) before the file
	// grows again.
	id, err := dm.AllocatePage()
	require.NoError(t, err)
	require.Equal(t, ids[2], id)
	id, err = dm.AllocatePage()
	require.NoError(t, err)
	require.Equal(t, ids[1], id)
	require.Equal(t, uint64(4), dm.NumPages(), "no growth while the free list has pages")

	// A reused page comes back zeroed.
	got := make([]byte, testPageSize)
	require.NoError(t, dm.ReadPage(id, got))
	require.Equal(t, make([]byte, testPageSize), got)

	id, err = dm.AllocatePage()
	require.NoError(t, err)
	require.Equal(t, page.PageID(4), id, "an empty free list extends the file")
}

func TestHeaderPersistsAcrossReopen(t *testing.T) {
	dm, dbPath := setupDiskManager(t)

	id1, err := dm.AllocatePage()
	require.NoError(t, err)
	_, err = dm.AllocatePage()
	require.NoError(t, err)
	require.NoError(t, dm.DeallocatePage(id1))

	data := bytes.Repeat([]byte{0x5C}, testPageSize)
	require.NoError(t, dm.WritePage(page.PageID(2), data))
	require.NoError(t, dm.Close())

	dm2, err := Open(dbPath, testPageSize, false, zap.NewNop())
	require.NoError(t, err)
	defer dm2.Close()

	require.Equal(t, uint64(3), dm2.NumPages())

	// The free list survived: the freed page is handed out again.
	id, err := dm2.AllocatePage()
	require.NoError(t, err)
	require.Equal(t, id1, id)

	got := make([]byte, testPageSize)
	require.NoError(t, dm2.ReadPage(page.PageID(2), got))
	require.Equal(t, data, got)
}

func TestPageIDValidation(t *testing.T) {
	dm, _ := setupDiskManager(t)

	buf := make([]byte, testPageSize)

	// The header page and out-of-range pages are rejected.
	require.ErrorIs(t, dm.ReadPage(page.InvalidPageID, buf), ErrInvalidPage)
	require.ErrorIs(t, dm.ReadPage(page.PageID(99), buf), ErrInvalidPage)
	require.ErrorIs(t, dm.WritePage(page.PageID(99), buf), ErrInvalidPage)
	require.ErrorIs(t, dm.DeallocatePage(page.PageID(99)), ErrInvalidPage)

	// Mis-sized buffers are rejected before any I/O.
	id, err := dm.AllocatePage()
	require.NoError(t, err)
	require.ErrorIs(t, dm.ReadPage(id, make([]byte, testPageSize/2)), ErrBadPageBuffer)
	require.ErrorIs(t, dm.WritePage(id, make([]byte, testPageSize*2)), ErrBadPageBuffer)
}

func TestFileIDsAreUnique(t *testing.T) {
	dm1, _ := setupDiskManager(t)
	dm2, _ := setupDiskManager(t)
	require.NotEqual(t, dm1.ID(), dm2.ID())
}
