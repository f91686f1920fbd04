// Package buffer implements FrameDB's page cache: a fixed set of page-size
// frames, a page table mapping (file, page) to frames, and a clock
// (second-chance) allocator choosing eviction victims. Every page access of
// the storage layer goes through the BufferPool, which guarantees that no
// pinned page is evicted and no dirty page is dropped without a write-back.
package buffer

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/framedb/framedb/core/storage/page"
)

// Config controls pool construction. Both values are fixed for the pool's
// lifetime.
type Config struct {
	// PoolSize is the number of frames. Must be at least 1; a pool of size 1
	// works but every miss evicts the sole frame.
	PoolSize int `yaml:"pool_size"`
	// PageSize is the size of every frame in bytes and must match the page
	// size of every file fetched through the pool.
	PageSize int `yaml:"page_size"`
}

// BufferPool is the buffer pool manager. A single mutex serializes all
// operations, so a shared pool is safe for concurrent embedders while frame
// selection stays atomic with respect to descriptor mutation.
type BufferPool struct {
	mu          sync.Mutex
	frames      []*page.Page
	descriptors []frameDescriptor
	table       *pageTable
	clockHand   int
	poolSize    int
	pageSize    int

	log     *zap.Logger
	metrics *poolMetrics
	stats   poolStats
}

// NewBufferPool allocates the frame and descriptor arrays at their fixed
// capacity, all descriptors invalid. A nil logger or meter disables the
// corresponding output.
func NewBufferPool(cfg Config, log *zap.Logger, meter metric.Meter) (*BufferPool, error) {
	if cfg.PoolSize < 1 {
		return nil, fmt.Errorf("%w: pool size %d, need at least 1 frame", ErrInvalidConfig, cfg.PoolSize)
	}
	if cfg.PageSize < 1 {
		return nil, fmt.Errorf("%w: page size %d", ErrInvalidConfig, cfg.PageSize)
	}
	if log == nil {
		log = zap.NewNop()
	}
	metrics, err := newPoolMetrics(meter)
	if err != nil {
		return nil, err
	}

	bp := &BufferPool{
		frames:      make([]*page.Page, cfg.PoolSize),
		descriptors: make([]frameDescriptor, cfg.PoolSize),
		table:       newPageTable(cfg.PoolSize),
		// Start the hand on the last frame so the first advance lands on 0.
		clockHand: cfg.PoolSize - 1,
		poolSize:  cfg.PoolSize,
		pageSize:  cfg.PageSize,
		log:       log.With(zap.String("pool_id", uuid.NewString())),
		metrics:   metrics,
	}
	for i := range bp.frames {
		bp.frames[i] = page.New(cfg.PageSize)
	}

	bp.log.Info("buffer pool initialized",
		zap.Int("pool_size", cfg.PoolSize),
		zap.Int("page_size", cfg.PageSize))
	return bp, nil
}

// PoolSize returns the fixed number of frames.
func (bp *BufferPool) PoolSize() int { return bp.poolSize }

// PageSize returns the fixed frame size in bytes.
func (bp *BufferPool) PageSize() int { return bp.pageSize }

// FetchPage returns the page pinned in a frame, reading it through the file
// collaborator on a miss. Every successful fetch leaves the pin count one
// higher; the caller owes a matching UnpinPage.
func (bp *BufferPool) FetchPage(f File, pageID page.PageID) (*page.Page, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	tag := pageTag{fileID: f.ID(), pageID: pageID}
	if frame, ok := bp.table.lookup(tag); ok {
		d := &bp.descriptors[frame]
		d.refBit = true
		d.pinCount++
		bp.stats.hits.Add(1)
		bp.stats.reads.Add(1)
		bp.metrics.hits.Add(context.Background(), 1)
		bp.metrics.reads.Add(context.Background(), 1)
		return bp.frames[frame], nil
	}

	frame, err := bp.allocateFrame()
	if err != nil {
		return nil, err
	}
	if err := f.ReadPage(pageID, bp.frames[frame].Data()); err != nil {
		// The frame stays invalid and unmapped: no page-table entry is
		// published for data that failed to load, and the read counter only
		// moves on confirmed success.
		return nil, err
	}
	bp.table.insert(tag, frame)
	bp.descriptors[frame].set(f, pageID)

	bp.stats.misses.Add(1)
	bp.stats.reads.Add(1)
	bp.metrics.misses.Add(context.Background(), 1)
	bp.metrics.reads.Add(context.Background(), 1)
	return bp.frames[frame], nil
}

// UnpinPage releases one pin on a resident page. markDirty records that the
// caller modified the contents; the dirty bit is sticky and only a successful
// write-back clears it.
func (bp *BufferPool) UnpinPage(f File, pageID page.PageID, markDirty bool) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	frame, ok := bp.table.lookup(pageTag{fileID: f.ID(), pageID: pageID})
	if !ok {
		return fmt.Errorf("%w: file %d page %d", ErrPageNotFound, f.ID(), pageID)
	}
	d := &bp.descriptors[frame]
	if d.pinCount == 0 {
		return fmt.Errorf("%w: file %d page %d", ErrPageNotPinned, f.ID(), pageID)
	}
	d.pinCount--
	if markDirty {
		d.dirty = true
	}
	return nil
}

// NewPage allocates a fresh page number in the file and pins it in a frame
// with zeroed contents. No read is performed: this is newly allocated
// storage, not existing data.
func (bp *BufferPool) NewPage(f File) (page.PageID, *page.Page, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	newID, err := f.AllocatePage()
	if err != nil {
		return page.InvalidPageID, nil, err
	}

	frame, err := bp.allocateFrame()
	if err != nil {
		// Give the fresh page number back rather than orphaning it.
		if derr := f.DeallocatePage(newID); derr != nil {
			bp.log.Warn("failed to return orphaned page",
				zap.Uint64("file_id", f.ID()),
				zap.Uint64("page_id", uint64(newID)),
				zap.Error(derr))
		}
		return page.InvalidPageID, nil, err
	}

	bp.frames[frame].Zero()
	bp.table.insert(pageTag{fileID: f.ID(), pageID: newID}, frame)
	bp.descriptors[frame].set(f, newID)
	return newID, bp.frames[frame], nil
}

// DisposePage drops a page from the pool and deallocates its page number in
// the file. Disposing a pinned page is rejected with ErrPagePinned and the
// on-disk page is left alone, so outstanding holders keep a consistent view.
func (bp *BufferPool) DisposePage(f File, pageID page.PageID) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	tag := pageTag{fileID: f.ID(), pageID: pageID}
	if frame, ok := bp.table.lookup(tag); ok {
		d := &bp.descriptors[frame]
		if d.pinCount > 0 {
			return fmt.Errorf("%w: file %d page %d has %d pins", ErrPagePinned, f.ID(), pageID, d.pinCount)
		}
		bp.table.remove(tag)
		d.reset()
	}
	// Deallocation happens whether or not the page was resident.
	return f.DeallocatePage(pageID)
}

// FlushFile writes back every dirty resident page of the file and drops all
// of the file's pages from the pool. Hitting a pinned page stops the call
// with ErrPagePinned; frames flushed earlier in the call remain flushed, the
// operation is not atomic across the file.
func (bp *BufferPool) FlushFile(f File) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	fileID := f.ID()
	for i := range bp.descriptors {
		d := &bp.descriptors[i]
		if !d.valid {
			if d.owner != nil && d.owner.ID() == fileID {
				// Invalid frames never keep an owner; reaching here means the
				// descriptor array no longer agrees with itself.
				return fmt.Errorf("%w: frame %d claims file %d while invalid", ErrBadBuffer, i, fileID)
			}
			continue
		}
		if d.owner.ID() != fileID {
			continue
		}
		if d.pinCount > 0 {
			return fmt.Errorf("%w: file %d page %d has %d pins", ErrPagePinned, fileID, d.pageID, d.pinCount)
		}
		if d.dirty {
			if err := f.WritePage(d.pageID, bp.frames[i].Data()); err != nil {
				return err
			}
			d.dirty = false
			bp.stats.writeBacks.Add(1)
			bp.metrics.writeBacks.Add(context.Background(), 1)
		}
		bp.table.remove(pageTag{fileID: fileID, pageID: d.pageID})
		d.reset()
	}

	bp.stats.flushes.Add(1)
	bp.log.Debug("flushed file", zap.Uint64("file_id", fileID))
	return nil
}

// Close writes back every dirty resident page, ignoring pin counts since the
// pool is going away, then releases all mappings. Write failures are logged
// and the first one is returned, but they do not stop the teardown.
func (bp *BufferPool) Close() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	var firstErr error
	for i := range bp.descriptors {
		d := &bp.descriptors[i]
		if d.valid && d.dirty {
			if err := d.owner.WritePage(d.pageID, bp.frames[i].Data()); err != nil {
				bp.log.Warn("write-back failed during shutdown",
					zap.Uint64("file_id", d.owner.ID()),
					zap.Uint64("page_id", uint64(d.pageID)),
					zap.Error(err))
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			d.dirty = false
			bp.stats.writeBacks.Add(1)
			bp.metrics.writeBacks.Add(context.Background(), 1)
		}
	}
	for i := range bp.descriptors {
		bp.descriptors[i].reset()
	}
	bp.table = newPageTable(0)

	bp.log.Info("buffer pool closed", zap.Uint64("write_backs", bp.stats.writeBacks.Load()))
	return firstErr
}

// Stats returns a snapshot of the pool's activity counters.
func (bp *BufferPool) Stats() Stats {
	return Stats{
		Reads:      bp.stats.reads.Load(),
		Hits:       bp.stats.hits.Load(),
		Misses:     bp.stats.misses.Load(),
		Evictions:  bp.stats.evictions.Load(),
		WriteBacks: bp.stats.writeBacks.Load(),
		Flushes:    bp.stats.flushes.Load(),
	}
}
