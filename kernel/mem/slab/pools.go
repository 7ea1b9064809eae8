package slab

import (
	"runeos/kernel"
	"runeos/kernel/mem"
)

// sizeClasses lists the general-purpose and DMA pool object sizes, in
// ascending order: 16 bytes up to 64KiB.
var sizeClasses = [13]uintptr{
	16, 32, 64, 128, 256, 512, 1024, 2048, 4096, 8192, 16384, 32768, 65536,
}

var (
	gpPools  [len(sizeClasses)]*ObjectCache
	dmaPools [len(sizeClasses)]*ObjectCache

	// cacheCache, slabCache, bufferNodeCache, bufferNodeMapCache,
	// hashNodeCache and memNodeCache are the six bootstrap caches used
	// to serve the slab allocator's own bookkeeping structures before
	// any general-purpose pool exists. Go's runtime map/slice
	// allocator already serves this role once goruntime is bootstrapped
	// (see kernel/goruntime), so these caches exist to keep the
	// allocation-order contract explicit and testable rather than to
	// back real allocations.
	bootstrapCaches [6]*ObjectCache

	errBadSize = &kernel.Error{Module: "slab", Message: "requested size exceeds the largest general-purpose pool", Kind: kernel.KindBadRequest}
)

const (
	bootCacheObjectCache = iota
	bootCacheSlab
	bootCacheBufferNode
	bootCacheBufferNodeMap
	bootCacheHashNode
	bootCacheMemNode
)

// InitPools creates the bootstrap caches followed by the general
// purpose and DMA size-class pools, in that order. It must run once,
// after SetFrameAllocator, before Allocate or AllocateDMA are used.
func InitPools() {
	bootstrapCaches[bootCacheObjectCache] = NewCache("boot.object_cache", objectCacheFootprint, 8, false)
	bootstrapCaches[bootCacheSlab] = NewCache("boot.slab", slabFootprint, 8, false)
	bootstrapCaches[bootCacheBufferNode] = NewCache("boot.buffer_node", bufferNodeFootprint, 8, false)
	bootstrapCaches[bootCacheBufferNodeMap] = NewCache("boot.buffer_node_map", bufferNodeMapFootprint, 8, false)
	bootstrapCaches[bootCacheHashNode] = NewCache("boot.hash_node", hashNodeFootprint, 8, false)
	bootstrapCaches[bootCacheMemNode] = NewCache("boot.mem_node", memNodeFootprint, 8, false)

	for i, size := range sizeClasses {
		gpPools[i] = NewCache(gpPoolName(size), size, size, false)
		dmaPools[i] = NewCache(dmaPoolName(size), size, size, true)
	}
}

// Approximate footprints of the bookkeeping structures served by the
// bootstrap caches. These are deliberately conservative (rounded up to
// a pointer multiple) since the caches exist to model the allocation
// order rather than to pack bookkeeping tightly.
const (
	objectCacheFootprint   = 128
	slabFootprint          = 64
	bufferNodeFootprint    = 16
	bufferNodeMapFootprint = 48
	hashNodeFootprint      = 32
	memNodeFootprint       = 32
)

func gpPoolName(size uintptr) string  { return "gp-" + sizeString(size) }
func dmaPoolName(size uintptr) string { return "dma-" + sizeString(size) }

func sizeString(size uintptr) string {
	// Small, allocation-free integer-to-decimal conversion; slab pool
	// names are fixed at InitPools time so this never runs on a hot path.
	if size == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for size > 0 {
		i--
		buf[i] = byte('0' + size%10)
		size /= 10
	}
	return string(buf[i:])
}

// BootstrapCacheCount reports how many bootstrap caches InitPools
// creates before any general-purpose or DMA pool.
func BootstrapCacheCount() int { return len(bootstrapCaches) }

// GPPool returns the general-purpose cache serving the given size
// class, or nil if size is not one of the fixed class sizes.
func GPPool(size uintptr) *ObjectCache { return poolFor(gpPools[:], size) }

// DMAPool returns the DMA-safe cache serving the given size class, or
// nil if size is not one of the fixed class sizes.
func DMAPool(size uintptr) *ObjectCache { return poolFor(dmaPools[:], size) }

func poolFor(pools []*ObjectCache, size uintptr) *ObjectCache {
	for i, classSize := range sizeClasses {
		if classSize == size {
			return pools[i]
		}
	}
	return nil
}

// poolIndexFor returns the index of the smallest size class that can
// hold an object of the given size, or -1 if no class is large enough.
func poolIndexFor(size uintptr) int {
	for i, classSize := range sizeClasses {
		if size <= classSize {
			return i
		}
	}
	return -1
}

// Allocate reserves size bytes from the smallest general-purpose pool
// that can hold them.
func Allocate(size uintptr) (uintptr, *kernel.Error) {
	idx := poolIndexFor(size)
	if idx < 0 {
		return 0, errBadSize
	}
	return gpPools[idx].Alloc()
}

// AllocateDMA reserves size bytes from the smallest DMA-safe pool that
// can hold them; every page backing the returned object is mapped
// with the CacheDisable and WriteThrough flags.
func AllocateDMA(size uintptr) (uintptr, *kernel.Error) {
	idx := poolIndexFor(size)
	if idx < 0 {
		return 0, errBadSize
	}
	return dmaPools[idx].Alloc()
}

// Free releases obj back to whichever general-purpose or DMA pool owns
// it. Freeing an address that belongs to neither is a no-op.
func Free(obj uintptr) {
	pageAddr := obj &^ (uintptr(mem.PageSize) - 1)
	for _, c := range gpPools {
		if _, ok := c.pageOwner[pageAddr]; ok {
			c.Free(obj)
			return
		}
	}
	for _, c := range dmaPools {
		if _, ok := c.pageOwner[pageAddr]; ok {
			c.Free(obj)
			return
		}
	}
}
