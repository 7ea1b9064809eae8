// Package slab implements the kernel's heap allocator: object caches
// built on top of page-granular regions obtained from the vmm package.
// Each cache serves fixed-size objects out of slabs -- one or more
// contiguous pages carved into equal slots -- and keeps every slab on
// exactly one of a full/partial/empty list depending on how many of
// its slots are in use.
package slab

import (
	"runeos/kernel"
	"runeos/kernel/mem"
	"runeos/kernel/mem/pmm"
	"runeos/kernel/mem/vmm"
)

// maxObjectCount is the on-slab free-list sentinel value that marks the
// end of the free-slot chain; it also bounds how many objects a single
// slab may hold.
const maxObjectCount = 0xff

// Layout describes where a slab's bookkeeping (the Slab struct itself
// plus its free-slot list) lives relative to the page(s) it carves up.
type Layout uint8

const (
	// OnSlab keeps the free-list as a byte-per-slot array held in the
	// Slab record; nothing is stored inside the slab's pages, which
	// are carved into objects end to end. Used when the object size
	// is small enough that the bookkeeping overhead is negligible.
	OnSlab Layout = iota
	// OffSlab stores the free-list and the Slab struct itself outside
	// the slab's pages, in a separate bufferNode tracked through a
	// hashmap keyed by object address. Used for objects large enough
	// that on-slab bookkeeping would waste a meaningful fraction of
	// the slab.
	OffSlab
)

// onSlabThresholdDivisor implements the cache sizing rule: a cache uses
// an on-slab layout when object size < PageSize/8.
const onSlabThresholdDivisor = 8

var (
	// frameAllocator supplies physical frames backing newly grown
	// slabs. It must be registered via SetFrameAllocator before any
	// cache allocates its first slab.
	frameAllocator func() (pmm.Frame, *kernel.Error)

	// mapFn and earlyReserveRegionFn are used by tests to mock the vmm
	// dependency; in the kernel build they are automatically inlined.
	mapFn                = vmm.Map
	earlyReserveRegionFn = vmm.EarlyReserveRegion

	// ErrHeapNotMapped is returned when SetFrameAllocator has not been
	// called yet.
	ErrHeapNotMapped = &kernel.Error{Module: "slab", Message: "kernel heap backing store is not mapped", Kind: kernel.KindAlloc}

	errGPCache  = &kernel.Error{Module: "slab", Message: "general-purpose cache allocation failed", Kind: kernel.KindAlloc}
	errDMACache = &kernel.Error{Module: "slab", Message: "DMA cache allocation failed", Kind: kernel.KindAlloc}
)

// SetFrameAllocator registers the physical frame allocator that backs
// every cache's slab growth.
func SetFrameAllocator(fn func() (pmm.Frame, *kernel.Error)) {
	frameAllocator = fn
}

// bufferNode is the off-slab bookkeeping record for a single slot: it
// chains free slots together and, while its object is allocated,
// anchors the entry in a cache's buffer-node hashmap.
type bufferNode struct {
	object uintptr
	next   *bufferNode
}

// ObjectCache serves fixed-size objects out of a growing set of slabs.
type ObjectCache struct {
	name       string
	objectSize uintptr
	align      uintptr
	layout     Layout
	mapFlags   vmm.PageTableEntryFlag
	pageCount  int // pages per slab

	full, partial, empty []*Slab

	// bufferNodes maps an allocated object's address to its off-slab
	// bufferNode; only populated for OffSlab caches.
	bufferNodes map[uintptr]*bufferNode

	// pageOwner maps a page's virtual address to the Slab that owns
	// it, used by the package-level Free to recover an object's
	// owning cache without scanning every cache.
	pageOwner map[uintptr]*Slab
}

// Slab is a contiguous run of pages carved into cache.objectSize slots.
type Slab struct {
	cache          *ObjectCache
	pageAddr       uintptr
	objectCount    uint8
	allocatedCount uint8

	// onSlabFree is the OnSlab free-slot list: a byte per slot,
	// chained via slot index, terminated by maxObjectCount.
	onSlabFree []byte
	nextFree   uint8

	// offSlabFree is the OffSlab free-slot chain head.
	offSlabFree *bufferNode
}

// layoutFor applies the cache sizing rule.
func layoutFor(objectSize uintptr) Layout {
	if objectSize < uintptr(mem.PageSize)/onSlabThresholdDivisor {
		return OnSlab
	}
	return OffSlab
}

// NewCache creates an object cache for objects of the given size and
// alignment. dma requests the DMA-safe page flags (CacheDisable |
// WriteThrough) for every page this cache maps; general-purpose
// pools pass false.
func NewCache(name string, objectSize, align uintptr, dma bool) *ObjectCache {
	if align == 0 {
		align = 1
	}
	objectSize = alignUp(objectSize, align)

	flags := vmm.FlagPresent | vmm.FlagRW
	if dma {
		flags |= vmm.FlagCacheDisable | vmm.FlagWriteThrough
	}

	c := &ObjectCache{
		name:       name,
		objectSize: objectSize,
		align:      align,
		layout:     layoutFor(objectSize),
		mapFlags:   flags,
		pageCount:  pagesPerSlab(objectSize),
		pageOwner:  make(map[uintptr]*Slab),
	}
	if c.layout == OffSlab {
		c.bufferNodes = make(map[uintptr]*bufferNode)
	}
	return c
}

func alignUp(v, align uintptr) uintptr {
	return (v + align - 1) &^ (align - 1)
}

// pagesPerSlab returns how many pages a slab needs to host at least
// one object of the given size: one page for any object that fits in
// a page, or enough consecutive pages to hold exactly one object
// otherwise.
func pagesPerSlab(objectSize uintptr) int {
	pageSize := uintptr(mem.PageSize)
	if objectSize <= pageSize {
		return 1
	}
	return int((objectSize + pageSize - 1) / pageSize)
}

// Name returns the cache's diagnostic name.
func (c *ObjectCache) Name() string { return c.name }

// ObjectSize returns the (alignment-rounded) size of objects this cache serves.
func (c *ObjectCache) ObjectSize() uintptr { return c.objectSize }

// Layout reports whether this cache uses on-slab or off-slab bookkeeping.
func (c *ObjectCache) Layout() Layout { return c.layout }

// Alloc reserves and returns the address of a new object, growing the
// cache with a freshly mapped slab if every existing slab is full.
func (c *ObjectCache) Alloc() (uintptr, *kernel.Error) {
	var s *Slab
	switch {
	case len(c.partial) > 0:
		s = c.partial[len(c.partial)-1]
	case len(c.empty) > 0:
		s = c.empty[len(c.empty)-1]
		c.empty = c.empty[:len(c.empty)-1]
		c.partial = append(c.partial, s)
	default:
		var err *kernel.Error
		s, err = c.grow()
		if err != nil {
			return 0, err
		}
		c.empty = append(c.empty, s)
		s = c.empty[len(c.empty)-1]
		c.empty = c.empty[:len(c.empty)-1]
		c.partial = append(c.partial, s)
	}

	obj := s.take(c)
	c.reclassify(s)
	return obj, nil
}

// Free releases an object back to its slab. Freeing an address that
// does not belong to any slab of this cache is a no-op.
func (c *ObjectCache) Free(obj uintptr) {
	var s *Slab
	if c.layout == OffSlab {
		bn, ok := c.bufferNodes[obj]
		if !ok {
			return
		}
		s = c.slabForBufferNode(bn)
		delete(c.bufferNodes, obj)
	} else {
		pageAddr := obj &^ uintptr(mem.PageSize-1)
		var ok bool
		s, ok = c.pageOwner[pageAddr]
		if !ok {
			return
		}
	}

	s.release(c, obj)
	c.reclassify(s)
}

// slabForBufferNode is a thin helper kept separate so off-slab
// bookkeeping stays readable; the bufferNode already knows which
// object it guards, so the owning slab is found via pageOwner using
// the page that holds that object.
func (c *ObjectCache) slabForBufferNode(bn *bufferNode) *Slab {
	pageAddr := bn.object &^ uintptr(mem.PageSize-1)
	return c.pageOwner[pageAddr]
}

// reclassify moves s between the full/partial/empty lists so that its
// list membership matches its current allocatedCount.
func (c *ObjectCache) reclassify(s *Slab) {
	c.removeFrom(&c.full, s)
	c.removeFrom(&c.partial, s)
	c.removeFrom(&c.empty, s)

	switch {
	case s.allocatedCount == 0:
		c.empty = append(c.empty, s)
	case s.allocatedCount == s.objectCount:
		c.full = append(c.full, s)
	default:
		c.partial = append(c.partial, s)
	}
}

func (c *ObjectCache) removeFrom(list *[]*Slab, s *Slab) {
	for i, entry := range *list {
		if entry == s {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return
		}
	}
}

// LiveObjects returns the total number of currently-allocated objects
// across every slab owned by this cache; used to check the slab
// conservation invariant.
func (c *ObjectCache) LiveObjects() int {
	total := 0
	for _, lst := range [][]*Slab{c.full, c.partial, c.empty} {
		for _, s := range lst {
			total += int(s.allocatedCount)
		}
	}
	return total
}

// SlabCount returns the number of slabs currently owned by this cache.
func (c *ObjectCache) SlabCount() int {
	return len(c.full) + len(c.partial) + len(c.empty)
}

// Destroy unmaps every page of every slab owned by this cache and
// drops its slab lists and buffer-node map. The physical frames behind
// those pages and the virtual regions reserved for them are not
// released.
func (c *ObjectCache) Destroy() {
	for _, lst := range [][]*Slab{c.full, c.partial, c.empty} {
		for _, s := range lst {
			for page := 0; page < c.pageCount; page++ {
				_ = vmm.Unmap(vmm.PageFromAddress(s.pageAddr + uintptr(page)*uintptr(mem.PageSize)))
				delete(c.pageOwner, s.pageAddr+uintptr(page)*uintptr(mem.PageSize))
			}
		}
	}
	c.full, c.partial, c.empty = nil, nil, nil
	c.bufferNodes = nil
}

// grow maps a fresh slab's worth of pages and carves them into slots.
// New slabs always start in the empty list.
func (c *ObjectCache) grow() (*Slab, *kernel.Error) {
	if frameAllocator == nil {
		return nil, ErrHeapNotMapped
	}

	size := mem.Size(c.pageCount) * mem.PageSize
	regionAddr, err := earlyReserveRegionFn(size)
	if err != nil {
		return nil, err
	}

	for i := 0; i < c.pageCount; i++ {
		frame, ferr := frameAllocator()
		if ferr != nil {
			return nil, ferr
		}
		page := vmm.PageFromAddress(regionAddr + uintptr(i)*uintptr(mem.PageSize))
		if merr := mapFn(page, frame, c.mapFlags); merr != nil {
			return nil, merr
		}
	}

	slabBytes := uintptr(c.pageCount) * uintptr(mem.PageSize)
	objectCount := slabBytes / c.objectSize
	if objectCount > maxObjectCount {
		objectCount = maxObjectCount
	}

	s := &Slab{cache: c, pageAddr: regionAddr, objectCount: uint8(objectCount)}
	if c.layout == OnSlab {
		s.onSlabFree = make([]byte, objectCount)
		for i := range s.onSlabFree {
			s.onSlabFree[i] = byte(i + 1)
		}
		s.onSlabFree[objectCount-1] = maxObjectCount
		s.nextFree = 0
	} else {
		var head *bufferNode
		for i := int(objectCount) - 1; i >= 0; i-- {
			head = &bufferNode{object: regionAddr + uintptr(i)*c.objectSize, next: head}
		}
		s.offSlabFree = head
	}

	for i := 0; i < c.pageCount; i++ {
		c.pageOwner[regionAddr+uintptr(i)*uintptr(mem.PageSize)] = s
	}

	return s, nil
}

// take pops a free slot from s and returns its object address.
func (s *Slab) take(c *ObjectCache) uintptr {
	s.allocatedCount++
	if c.layout == OnSlab {
		idx := s.nextFree
		s.nextFree = s.onSlabFree[idx]
		return s.pageAddr + uintptr(idx)*c.objectSize
	}

	bn := s.offSlabFree
	s.offSlabFree = bn.next
	c.bufferNodes[bn.object] = bn
	return bn.object
}

// release pushes obj back onto s's free-slot list.
func (s *Slab) release(c *ObjectCache, obj uintptr) {
	s.allocatedCount--
	if c.layout == OnSlab {
		idx := uint8((obj - s.pageAddr) / c.objectSize)
		s.onSlabFree[idx] = s.nextFree
		s.nextFree = idx
		return
	}

	bn := &bufferNode{object: obj, next: s.offSlabFree}
	s.offSlabFree = bn
}
