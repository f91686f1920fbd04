package page

// PageID is the logical number of a page within its owning file.
// Page 0 of every FrameDB file holds the file header, so InvalidPageID
// doubles as the "no page" marker.
type PageID uint64

const InvalidPageID PageID = 0

// Page is one fixed-size frame's worth of file content. The buffer pool
// allocates the backing array once at construction and hands out the same
// Page for the lifetime of the frame; its contents are meaningful only while
// the frame's descriptor is valid.
type Page struct {
	data []byte
}

// New returns a zeroed page of the given size in bytes.
func New(size int) *Page {
	return &Page{data: make([]byte, size)}
}

// Data returns the page contents. The slice aliases the frame, so mutations
// are visible to the pool and must be followed by an unpin with
// markDirty=true or they may be lost on eviction.
func (p *Page) Data() []byte { return p.data }

// Size returns the fixed page size in bytes.
func (p *Page) Size() int { return len(p.data) }

// Zero clears the page contents, e.g. before handing out newly allocated
// storage that was never read from disk.
func (p *Page) Zero() {
	for i := range p.data {
		p.data[i] = 0
	}
}
