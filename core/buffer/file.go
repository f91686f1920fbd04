package buffer

import "github.com/framedb/framedb/core/storage/page"

// File is the storage collaborator the pool performs page I/O through.
// disk.DiskManager is the production implementation; tests substitute an
// in-memory one. The pool does not retry failed I/O; retry policy belongs to
// the caller or the collaborator.
type File interface {
	// ID returns an identity unique among the files the pool may see for the
	// lifetime of the process. It is used as a page-table key component.
	ID() uint64

	// ReadPage reads the page's bytes into buf, which is exactly one page long.
	ReadPage(pageID page.PageID, buf []byte) error

	// WritePage writes buf back to the page's location in the file.
	WritePage(pageID page.PageID, buf []byte) error

	// AllocatePage reserves a fresh page number within the file.
	AllocatePage() (page.PageID, error)

	// DeallocatePage releases a page number back to the file.
	DeallocatePage(pageID page.PageID) error
}
