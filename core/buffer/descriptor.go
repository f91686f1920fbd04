package buffer

import "github.com/framedb/framedb/core/storage/page"

// frameDescriptor is the per-frame metadata, index-parallel to the frame
// array. owner and pageID are meaningful only while valid is set.
type frameDescriptor struct {
	owner    File
	pageID   page.PageID
	valid    bool
	dirty    bool
	refBit   bool
	pinCount int
}

// set installs a fresh mapping as the side effect of a successful fetch miss
// or page allocation: clean, recently referenced, pinned once.
func (d *frameDescriptor) set(owner File, pageID page.PageID) {
	d.owner = owner
	d.pageID = pageID
	d.valid = true
	d.dirty = false
	d.refBit = true
	d.pinCount = 1
}

// reset returns the descriptor to the invalid, unowned state.
func (d *frameDescriptor) reset() {
	d.owner = nil
	d.pageID = page.InvalidPageID
	d.valid = false
	d.dirty = false
	d.refBit = false
	d.pinCount = 0
}
