package buffer

import (
	"context"

	"go.uber.org/zap"
)

// allocateFrame runs the second-chance scan and returns the index of a frame
// that holds no in-use data, evicting (and if necessary writing back) a
// resident page first. The caller must hold bp.mu.
//
// The hand advances one step before each inspection, so the frame returned by
// the previous call is reconsidered last. One full sweep clears every ref bit
// it passes over, so within two sweeps either some frame has become eligible
// or every frame is pinned and the pool is exhausted.
func (bp *BufferPool) allocateFrame() (int, error) {
	for visits := 0; visits < 2*bp.poolSize; visits++ {
		bp.clockHand = (bp.clockHand + 1) % bp.poolSize
		d := &bp.descriptors[bp.clockHand]

		if !d.valid {
			// An invalid frame is immediately eligible; a stale ref bit left
			// over from a previous occupant does not defer its reuse.
			return bp.clockHand, nil
		}
		if d.refBit {
			d.refBit = false // second chance
			continue
		}
		if d.pinCount > 0 {
			continue
		}
		if err := bp.evict(bp.clockHand); err != nil {
			return -1, err
		}
		return bp.clockHand, nil
	}
	return -1, ErrPoolExhausted
}

// evict writes back a dirty victim and releases its mapping. On write-back
// failure the descriptor and page table are left untouched, so the
// modification is not lost and the pool's metadata stays consistent.
// The caller must hold bp.mu.
func (bp *BufferPool) evict(frame int) error {
	d := &bp.descriptors[frame]
	if d.dirty {
		if err := d.owner.WritePage(d.pageID, bp.frames[frame].Data()); err != nil {
			return err
		}
		d.dirty = false
		bp.stats.writeBacks.Add(1)
		bp.metrics.writeBacks.Add(context.Background(), 1)
	}

	bp.log.Debug("evicting page",
		zap.Uint64("file_id", d.owner.ID()),
		zap.Uint64("page_id", uint64(d.pageID)),
		zap.Int("frame", frame))

	bp.table.remove(pageTag{fileID: d.owner.ID(), pageID: d.pageID})
	d.reset()
	bp.stats.evictions.Add(1)
	bp.metrics.evictions.Add(context.Background(), 1)
	return nil
}
