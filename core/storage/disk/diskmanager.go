// Package disk implements the on-disk file collaborator the buffer pool
// reads and writes pages through. Each DiskManager owns one heap file laid
// out as fixed-size pages, with page 0 reserved for the file header and
// deallocated pages chained into an on-disk free list.
package disk

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/framedb/framedb/core/storage/page"
)

const (
	fileMagic   uint32 = 0x46724442 // "FrDB"
	fileVersion uint32 = 1

	// headerSize is the serialized size of fileHeader at the start of page 0.
	headerSize = 32

	// freeLinkSize is the number of bytes at the start of a freed page that
	// hold the id of the next page on the free list.
	freeLinkSize = 8
)

// fileHeader is persisted at offset 0 of every FrameDB file. All fields are
// fixed-size so binary.Read/Write lay them out identically everywhere.
type fileHeader struct {
	Magic        uint32
	Version      uint32
	PageSize     uint32
	_            uint32 // padding, keeps the 64-bit fields aligned
	NumPages     uint64
	FreeListHead page.PageID
}

// nextFileID hands out process-unique file identities, so an open file can
// serve as a page-table key component in the buffer pool.
var nextFileID atomic.Uint64

// DiskManager owns one FrameDB heap file and implements the buffer pool's
// page I/O contract: ReadPage, WritePage, AllocatePage, DeallocatePage.
type DiskManager struct {
	id       uint64
	filePath string
	file     *os.File
	pageSize int
	header   fileHeader
	log      *zap.Logger
	mu       sync.Mutex
}

// Open opens the heap file at filePath, creating it when create is true.
// Opening an existing file validates its header against pageSize; creating
// one writes a fresh header and reserves page 0 for it.
func Open(filePath string, pageSize int, create bool, log *zap.Logger) (*DiskManager, error) {
	if pageSize <= headerSize {
		return nil, fmt.Errorf("page size %d too small, must exceed %d", pageSize, headerSize)
	}
	if log == nil {
		log = zap.NewNop()
	}

	dm := &DiskManager{
		id:       nextFileID.Add(1),
		filePath: filePath,
		pageSize: pageSize,
		log:      log.With(zap.String("file", filePath)),
	}

	_, statErr := os.Stat(filePath)
	switch {
	case os.IsNotExist(statErr):
		if !create {
			return nil, fmt.Errorf("%w: %s", ErrDBFileNotFound, filePath)
		}
		file, err := os.OpenFile(filePath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0666)
		if err != nil {
			return nil, fmt.Errorf("%w: creating file %s: %v", ErrIO, filePath, err)
		}
		dm.file = file
		dm.header = fileHeader{
			Magic:        fileMagic,
			Version:      fileVersion,
			PageSize:     uint32(pageSize),
			NumPages:     1, // page 0 is the header
			FreeListHead: page.InvalidPageID,
		}
		if err := dm.writeHeader(); err != nil {
			dm.file.Close()
			_ = os.Remove(filePath)
			return nil, err
		}

	case statErr == nil:
		if create {
			return nil, fmt.Errorf("%w: %s", ErrDBFileExists, filePath)
		}
		file, err := os.OpenFile(filePath, os.O_RDWR, 0666)
		if err != nil {
			return nil, fmt.Errorf("%w: opening file %s: %v", ErrIO, filePath, err)
		}
		dm.file = file
		if err := dm.readHeader(); err != nil {
			dm.file.Close()
			return nil, err
		}
		if dm.header.Magic != fileMagic {
			dm.file.Close()
			return nil, fmt.Errorf("%s is not a FrameDB file (magic 0x%x)", filePath, dm.header.Magic)
		}
		if dm.header.Version != fileVersion {
			dm.file.Close()
			return nil, fmt.Errorf("unsupported file version %d in %s", dm.header.Version, filePath)
		}
		if dm.header.PageSize != uint32(pageSize) {
			dm.file.Close()
			return nil, fmt.Errorf("file page size (%d) does not match configured page size (%d)", dm.header.PageSize, pageSize)
		}

	default:
		return nil, fmt.Errorf("%w: stating file %s: %v", ErrIO, filePath, statErr)
	}

	dm.log.Debug("opened heap file",
		zap.Uint64("file_id", dm.id),
		zap.Uint64("num_pages", dm.header.NumPages),
		zap.Bool("created", create))
	return dm, nil
}

// ID returns the process-unique identity of this open file.
func (dm *DiskManager) ID() uint64 { return dm.id }

// PageSize returns the fixed page size of the file in bytes.
func (dm *DiskManager) PageSize() int { return dm.pageSize }

// NumPages returns the number of pages the file spans, the header included.
func (dm *DiskManager) NumPages() uint64 {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.header.NumPages
}

// Path returns the path the file was opened with.
func (dm *DiskManager) Path() string { return dm.filePath }

// ReadPage reads the page's bytes from disk into buf, which must be exactly
// one page long.
func (dm *DiskManager) ReadPage(pageID page.PageID, buf []byte) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if err := dm.checkPageID(pageID); err != nil {
		return err
	}
	if len(buf) != dm.pageSize {
		return fmt.Errorf("%w: got %d, want %d", ErrBadPageBuffer, len(buf), dm.pageSize)
	}

	offset := int64(pageID) * int64(dm.pageSize)
	n, err := dm.file.ReadAt(buf, offset)
	if err != nil {
		if err == io.EOF {
			return fmt.Errorf("%w: EOF reading page %d at offset %d", ErrIO, pageID, offset)
		}
		return fmt.Errorf("%w: reading page %d at offset %d: %v", ErrIO, pageID, offset, err)
	}
	if n != dm.pageSize {
		return fmt.Errorf("%w: short read for page %d, expected %d, got %d", ErrIO, pageID, dm.pageSize, n)
	}
	return nil
}

// WritePage writes buf to the page's location on disk. The write is not
// synced here; durability points are chosen by the caller via Sync.
func (dm *DiskManager) WritePage(pageID page.PageID, buf []byte) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if err := dm.checkPageID(pageID); err != nil {
		return err
	}
	if len(buf) != dm.pageSize {
		return fmt.Errorf("%w: got %d, want %d", ErrBadPageBuffer, len(buf), dm.pageSize)
	}

	offset := int64(pageID) * int64(dm.pageSize)
	if _, err := dm.file.WriteAt(buf, offset); err != nil {
		return fmt.Errorf("%w: writing page %d at offset %d: %v", ErrIO, pageID, offset, err)
	}
	return nil
}

// AllocatePage returns a fresh page number, reusing the free list head when
// one exists and extending the file otherwise. The page is zeroed on disk.
func (dm *DiskManager) AllocatePage() (page.PageID, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if head := dm.header.FreeListHead; head != page.InvalidPageID {
		next, err := dm.readFreeLink(head)
		if err != nil {
			return page.InvalidPageID, err
		}
		if err := dm.zeroPage(head); err != nil {
			return page.InvalidPageID, err
		}
		dm.header.FreeListHead = next
		if err := dm.writeHeader(); err != nil {
			return page.InvalidPageID, err
		}
		return head, nil
	}

	newID := page.PageID(dm.header.NumPages)
	if err := dm.zeroPage(newID); err != nil {
		return page.InvalidPageID, err
	}
	dm.header.NumPages++
	if err := dm.writeHeader(); err != nil {
		dm.header.NumPages--
		return page.InvalidPageID, err
	}
	return newID, nil
}

// DeallocatePage returns the page number to the file's free list. The page's
// contents are discarded; its first bytes become the free-list link.
func (dm *DiskManager) DeallocatePage(pageID page.PageID) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if err := dm.checkPageID(pageID); err != nil {
		return err
	}

	link := make([]byte, dm.pageSize)
	binary.LittleEndian.PutUint64(link[:freeLinkSize], uint64(dm.header.FreeListHead))
	offset := int64(pageID) * int64(dm.pageSize)
	if _, err := dm.file.WriteAt(link, offset); err != nil {
		return fmt.Errorf("%w: linking freed page %d: %v", ErrIO, pageID, err)
	}
	dm.header.FreeListHead = pageID
	return dm.writeHeader()
}

// Sync flushes all buffered writes to stable storage.
func (dm *DiskManager) Sync() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.file == nil {
		return nil
	}
	if err := dm.file.Sync(); err != nil {
		return fmt.Errorf("%w: syncing %s: %v", ErrIO, dm.filePath, err)
	}
	return nil
}

// Close syncs and closes the underlying file handle.
func (dm *DiskManager) Close() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.file == nil {
		return nil
	}
	if err := dm.file.Sync(); err != nil {
		dm.log.Warn("sync on close failed", zap.Error(err))
	}
	closeErr := dm.file.Close()
	dm.file = nil
	return closeErr
}

// checkPageID rejects the header page and pages beyond the end of the file.
// Caller must hold dm.mu.
func (dm *DiskManager) checkPageID(pageID page.PageID) error {
	if dm.file == nil {
		return fmt.Errorf("%w: file %s is closed", ErrIO, dm.filePath)
	}
	if pageID == page.InvalidPageID || uint64(pageID) >= dm.header.NumPages {
		return fmt.Errorf("%w: page %d (file has %d pages)", ErrInvalidPage, pageID, dm.header.NumPages)
	}
	return nil
}

// readFreeLink reads the next-free pointer stored in a freed page.
func (dm *DiskManager) readFreeLink(pageID page.PageID) (page.PageID, error) {
	buf := make([]byte, freeLinkSize)
	offset := int64(pageID) * int64(dm.pageSize)
	if _, err := dm.file.ReadAt(buf, offset); err != nil {
		return page.InvalidPageID, fmt.Errorf("%w: reading free link of page %d: %v", ErrIO, pageID, err)
	}
	return page.PageID(binary.LittleEndian.Uint64(buf)), nil
}

// zeroPage writes an all-zero page at the page's offset, extending the file
// when the page lies at its current end.
func (dm *DiskManager) zeroPage(pageID page.PageID) error {
	empty := make([]byte, dm.pageSize)
	offset := int64(pageID) * int64(dm.pageSize)
	if _, err := dm.file.WriteAt(empty, offset); err != nil {
		return fmt.Errorf("%w: zeroing page %d: %v", ErrIO, pageID, err)
	}
	return nil
}

// writeHeader serializes the header into the start of page 0 and syncs it.
// Caller must hold dm.mu.
func (dm *DiskManager) writeHeader() error {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, &dm.header); err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	if buf.Len() != headerSize {
		return fmt.Errorf("%w: header is %d bytes, want %d", ErrSerialization, buf.Len(), headerSize)
	}
	if _, err := dm.file.WriteAt(buf.Bytes(), 0); err != nil {
		return fmt.Errorf("%w: writing header: %v", ErrIO, err)
	}
	if err := dm.file.Sync(); err != nil {
		return fmt.Errorf("%w: syncing header: %v", ErrIO, err)
	}
	return nil
}

// readHeader deserializes the header from the start of page 0.
// Caller must hold dm.mu.
func (dm *DiskManager) readHeader() error {
	data := make([]byte, headerSize)
	n, err := dm.file.ReadAt(data, 0)
	if err != nil {
		if err == io.EOF && n < headerSize {
			return fmt.Errorf("%w: file too short to hold a header", ErrDeserialization)
		}
		return fmt.Errorf("%w: reading header: %v", ErrIO, err)
	}
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &dm.header); err != nil {
		return fmt.Errorf("%w: %v", ErrDeserialization, err)
	}
	return nil
}
