package buffer

import (
	"fmt"

	"github.com/framedb/framedb/core/storage/page"
)

// memFile is an in-memory File for the pool tests. Read and write failures
// can be injected, and all I/O is counted so tests can tell a cache hit from
// a re-read.
type memFile struct {
	id       uint64
	pageSize int
	pages    map[page.PageID][]byte
	nextID   page.PageID

	readErr  error
	writeErr error

	readCalls  int
	writeCalls int
	deallocs   []page.PageID
}

func newMemFile(id uint64, pageSize int) *memFile {
	return &memFile{
		id:       id,
		pageSize: pageSize,
		pages:    make(map[page.PageID][]byte),
		nextID:   1,
	}
}

func (f *memFile) ID() uint64 { return f.id }

func (f *memFile) ReadPage(pageID page.PageID, buf []byte) error {
	f.readCalls++
	if f.readErr != nil {
		return f.readErr
	}
	data, ok := f.pages[pageID]
	if !ok {
		return fmt.Errorf("page %d not allocated in file %d", pageID, f.id)
	}
	copy(buf, data)
	return nil
}

func (f *memFile) WritePage(pageID page.PageID, buf []byte) error {
	f.writeCalls++
	if f.writeErr != nil {
		return f.writeErr
	}
	if _, ok := f.pages[pageID]; !ok {
		return fmt.Errorf("page %d not allocated in file %d", pageID, f.id)
	}
	data := make([]byte, len(buf))
	copy(data, buf)
	f.pages[pageID] = data
	return nil
}

func (f *memFile) AllocatePage() (page.PageID, error) {
	id := f.nextID
	f.nextID++
	f.pages[id] = make([]byte, f.pageSize)
	return id, nil
}

func (f *memFile) DeallocatePage(pageID page.PageID) error {
	delete(f.pages, pageID)
	f.deallocs = append(f.deallocs, pageID)
	return nil
}
