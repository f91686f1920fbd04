package buffer

import "github.com/framedb/framedb/core/storage/page"

// pageTag identifies a page across files: the owning file's identity plus the
// page number within it.
type pageTag struct {
	fileID uint64
	pageID page.PageID
}

// pageTable maps resident pages to their frame index. At most one tag maps to
// a given frame at a time, and that frame's descriptor reports the same tag;
// the mapping and the descriptor are two views of one fact.
type pageTable struct {
	frames map[pageTag]int
}

func newPageTable(capacity int) *pageTable {
	return &pageTable{frames: make(map[pageTag]int, capacity)}
}

func (t *pageTable) lookup(tag pageTag) (int, bool) {
	frame, ok := t.frames[tag]
	return frame, ok
}

func (t *pageTable) insert(tag pageTag, frame int) {
	t.frames[tag] = frame
}

func (t *pageTable) remove(tag pageTag) {
	delete(t.frames, tag)
}

func (t *pageTable) len() int {
	return len(t.frames)
}
