package buffer

import "errors"

var (
	// ErrPoolExhausted means the clock scan completed its full bound without
	// finding an eligible frame: every frame is pinned. Callers can recover
	// by unpinning something and retrying; the pool never retries itself.
	ErrPoolExhausted = errors.New("buffer pool exhausted, all frames are pinned")

	// ErrPageNotFound means the operation referenced a page that is not
	// currently resident where residency was required.
	ErrPageNotFound = errors.New("page not resident in buffer pool")

	// ErrPageNotPinned means an unpin had no matching outstanding pin.
	ErrPageNotPinned = errors.New("page has no outstanding pins")

	// ErrPagePinned means a flush or dispose targeted a page whose pin count
	// is nonzero.
	ErrPagePinned = errors.New("page is pinned")

	// ErrBadBuffer means a frame descriptor and the page table disagree.
	// This is a defect signal, not a normal runtime condition.
	ErrBadBuffer = errors.New("buffer descriptor and page table disagree")

	// ErrInvalidConfig means the pool was constructed with a frame count or
	// page size that cannot work.
	ErrInvalidConfig = errors.New("invalid buffer pool configuration")
)
