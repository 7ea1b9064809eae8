package vmm

// Page table layout constants for the amd64 4-level paging scheme
// (PML4 -> PDPT -> PD -> PT), each level indexed by 9 bits of the
// virtual address with a 12-bit page offset.
const (
	pageLevels = 4

	// pdtVirtualAddr is the canonical-form virtual address produced by
	// recursively mapping the last PML4 entry (index 510) to the PML4
	// table itself. Dereferencing it (and shifting in further entry
	// indices, see walk()) lets the kernel address any page table in
	// the active address space without a separate identity map.
	pdtVirtualAddr = 0xffffff7fbfdfe000

	// tempMappingAddr is the fixed virtual address used by
	// MapTemporary to expose an arbitrary physical frame for
	// short-lived access (e.g. initializing a freshly allocated page
	// table before it is linked into the active hierarchy).
	tempMappingAddr = 0xffffff8000000000
)

// pageLevelBits holds, for each paging level (0 = PML4 .. 3 = PT), the
// number of virtual address bits used as that level's table index.
var pageLevelBits = [pageLevels]uint8{9, 9, 9, 9}

// pageLevelShifts holds, for each paging level, the bit offset of that
// level's index field within a virtual address.
var pageLevelShifts = [pageLevels]uint8{39, 30, 21, 12}

// ptePhysPageMask isolates the physical frame address bits (12..M-1) of
// a page table entry, excluding the flag bits below bit 12.
const ptePhysPageMask = 0x000ffffffffff000

// PageTableEntryFlag bit positions follow the amd64 page-table entry
// wire format: Present, Writable, User, WriteThrough, CacheDisable,
// Accessed, Dirty occupy bits 0-6. NoExecute is the amd64 NX bit (63),
// and HugePage/CopyOnWrite are kernel-reserved bits 7 and 9, used only
// while a page table entry is not Present (CoW) or encodes a huge leaf.
const (
	FlagPresent      PageTableEntryFlag = 1 << 0
	FlagRW           PageTableEntryFlag = 1 << 1
	FlagUser         PageTableEntryFlag = 1 << 2
	FlagWriteThrough PageTableEntryFlag = 1 << 3
	FlagCacheDisable PageTableEntryFlag = 1 << 4
	FlagAccessed     PageTableEntryFlag = 1 << 5
	FlagDirty        PageTableEntryFlag = 1 << 6
	FlagHugePage     PageTableEntryFlag = 1 << 7
	FlagCopyOnWrite  PageTableEntryFlag = 1 << 9
	FlagNoExecute    PageTableEntryFlag = 1 << 63
)
