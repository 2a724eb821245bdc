package catalog

// slot is one fixed cache line. Its page is meaningful only while
// valid is set and addr matches the queried address.
type slot struct {
	valid bool
	addr  int
	page  Page
}

// ReadCache is a direct-mapped read-through cache of fetched pages.
// An address always maps to slot addr % size; two addresses with the
// same residue evict each other and there is no recency policy. The
// slot count is fixed for the cache's lifetime and a single Crawler
// owns the cache exclusively, so no locking is done here.
type ReadCache struct {
	slots []slot
}

// NewReadCache creates a cache with the given fixed slot count
func NewReadCache(size int) *ReadCache {
	return &ReadCache{slots: make([]slot, size)}
}

// Load returns the page stored for addr on a hit. On a miss it invokes
// miss, stores the result under addr and returns it. A miss failure
// propagates and leaves the slot untouched, so no partial page is ever
// stored.
func (c *ReadCache) Load(addr int, miss func() (Page, error)) (Page, error) {
	s := &c.slots[addr%len(c.slots)]
	if s.valid && s.addr == addr {
		return s.page, nil
	}
	page, err := miss()
	if err != nil {
		return nil, err
	}
	s.valid = true
	s.addr = addr
	s.page = page
	return page, nil
}

// Invalidate marks the slot for addr invalid if it currently holds
// exactly that address. No-op otherwise.
func (c *ReadCache) Invalidate(addr int) {
	s := &c.slots[addr%len(c.slots)]
	if s.valid && s.addr == addr {
		*s = slot{}
	}
}

// Reset marks every slot invalid, discarding all cached pages
func (c *ReadCache) Reset() {
	for i := range c.slots {
		c.slots[i] = slot{}
	}
}
