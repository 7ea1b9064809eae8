package vmm

import (
	"runeos/kernel"
	"runeos/kernel/cpu"
	"runeos/kernel/mem"
	"runeos/kernel/mem/pmm"
	"unsafe"
)

// recursiveIndex is the PML4 slot that every address space maps back to
// itself, giving pdtVirtualAddr (see flags_amd64.go) access to its own
// page tables without a separate identity map.
const recursiveIndex = 510

// kernelHalfFirstIndex is the first PML4 index considered part of the
// shared, higher-half kernel mapping; every address space must carry
// an identical copy of entries [kernelHalfFirstIndex, 512) (except the
// recursive slot, which always points at the table itself).
const kernelHalfFirstIndex = 256

// UserSpaceEnd is the first virtual address considered part of the
// kernel half, i.e. kernelHalfFirstIndex's PML4 entry boundary
// (256 << 39). No user segment or bootstrap allocation may reach or
// cross this address.
const UserSpaceEnd = uintptr(kernelHalfFirstIndex) << 39

var (
	activePDTFn = cpu.ActivePDT
	switchPDTFn = cpu.SwitchPDT
)

// PageDirectoryTable wraps the physical address of a PML4 table,
// i.e. a virtual address space.
type PageDirectoryTable struct {
	pdtFrame pmm.Frame
}

// Init prepares pdtFrame to act as a page directory table. If the
// frame is already the active one, there is nothing to do. Otherwise
// the frame's contents are cleared and its recursive entry is set up
// so that the rest of the vmm package can operate on it once it is
// loaded.
func (pdt *PageDirectoryTable) Init(pdtFrame pmm.Frame) *kernel.Error {
	pdt.pdtFrame = pdtFrame

	if pdtFrame.Address() == activePDTFn() {
		return nil
	}

	pdtPage, err := mapTemporaryFn(pdtFrame)
	if err != nil {
		return err
	}
	defer unmapFn(pdtPage)

	mem.Memset(pdtPage.Address(), 0, mem.PageSize)

	recEntry := (*pageTableEntry)(unsafe.Pointer(pdtPage.Address() + recursiveIndex<<mem.PointerShift))
	*recEntry = 0
	recEntry.SetFlags(FlagPresent | FlagRW)
	recEntry.SetFrame(pdtFrame)

	return nil
}

// Map establishes a page mapping using this page directory table. It
// is only valid to call while pdt is the active address space.
func (pdt *PageDirectoryTable) Map(page Page, frame pmm.Frame, flags PageTableEntryFlag) *kernel.Error {
	return mapFn(page, frame, flags)
}

// Activate loads this page directory table as the active address
// space, flushing the TLB.
func (pdt *PageDirectoryTable) Activate() {
	switchPDTFn(pdt.pdtFrame.Address())
}

// Address returns the physical address identifying this address space.
func (pdt *PageDirectoryTable) Address() uintptr {
	return pdt.pdtFrame.Address()
}

// pml4EntryAddr returns the virtual address at which the data (not the
// table it points to) of PML4 entry idx can be read, using the
// recursive self-mapping of the currently active address space.
func pml4EntryAddr(idx uintptr) uintptr {
	return pdtVirtualAddr + idx<<mem.PointerShift
}

// NewAddressSpace allocates a fresh PML4 frame, copies the shared
// kernel half of the currently active address space into it, zeroes
// the user half, and returns its physical address.
func NewAddressSpace() (pmm.Frame, *kernel.Error) {
	newFrame, err := frameAllocator()
	if err != nil {
		return pmm.InvalidFrame, err
	}

	newPage, err := mapTemporaryFn(newFrame)
	if err != nil {
		return pmm.InvalidFrame, err
	}
	defer unmapFn(newPage)

	mem.Memset(newPage.Address(), 0, mem.PageSize)

	const pml4EntryCount = uintptr(mem.PageSize) / (1 << mem.PointerShift)
	for i := uintptr(kernelHalfFirstIndex); i < pml4EntryCount; i++ {
		if i == recursiveIndex {
			continue
		}
		srcEntry := *(*pageTableEntry)(unsafe.Pointer(pml4EntryAddr(i)))
		dstEntry := (*pageTableEntry)(unsafe.Pointer(newPage.Address() + i<<mem.PointerShift))
		*dstEntry = srcEntry
	}

	recEntry := (*pageTableEntry)(unsafe.Pointer(newPage.Address() + recursiveIndex<<mem.PointerShift))
	*recEntry = 0
	recEntry.SetFlags(FlagPresent | FlagRW)
	recEntry.SetFrame(newFrame)

	return newFrame, nil
}

// LoadAddressSpace activates the address space identified by pdtFrame.
func LoadAddressSpace(pdtFrame pmm.Frame) {
	switchPDTFn(pdtFrame.Address())
}

// FreeAddressSpace releases the user half of the address space
// identified by pdtFrame -- every PDPT, PD and PT frame reachable from
// PML4 entries [0, kernelHalfFirstIndex), plus the data frames they map --
// and finally returns the PML4 frame itself to the frame allocator, all
// via freeFrameFn. The shared kernel half is never touched: its frames
// outlive any single address space.
func FreeAddressSpace(pdtFrame pmm.Frame, freeFrameFn func(pmm.Frame)) {
	freeUserSubtree(pdtFrame, 0, freeFrameFn)
	freeFrameFn(pdtFrame)
}

// freeUserSubtree walks the page table rooted at tableFrame, which sits
// at the given paging level (0 = PML4 .. 3 = PT), and frees every frame
// it finds present: child tables are recursed into and freed after
// their own contents, and PT-level entries are freed as the data
// frames they are. At level 0 only the user-half indices are visited,
// since the kernel half's frames are shared and must survive. If
// tableFrame cannot be mapped, its subtree is silently skipped and
// those frames leak, the same limitation freePhysicalFrame callers
// already accept for the boot-time allocator.
func freeUserSubtree(tableFrame pmm.Frame, level int, freeFrameFn func(pmm.Frame)) {
	page, err := mapTemporaryFn(tableFrame)
	if err != nil {
		return
	}
	defer unmapFn(page)

	entryCount := uintptr(kernelHalfFirstIndex)
	if level != 0 {
		entryCount = uintptr(mem.PageSize) / (1 << mem.PointerShift)
	}

	for i := uintptr(0); i < entryCount; i++ {
		entry := (*pageTableEntry)(unsafe.Pointer(page.Address() + i<<mem.PointerShift))
		if !entry.HasFlags(FlagPresent) {
			continue
		}

		childFrame := entry.Frame()
		if level < pageLevels-1 {
			freeUserSubtree(childFrame, level+1, freeFrameFn)
		}
		freeFrameFn(childFrame)
	}
}
