package elf

import (
	"encoding/binary"
	"unsafe"

	"runeos/kernel/cpu"
	"runeos/kernel/mem"
	"runeos/kernel/mem/pmm"
	"runeos/kernel/mem/pmm/allocator"
	"runeos/kernel/mem/vmm"
	"runeos/kernel/sched"
)

// BufSize is the chunk size used when copying a LOAD segment's file
// contents into its mapped pages.
const BufSize = 4096

// stackSize is the fixed size of the user stack the bootstrap area
// reserves below the argv/StartInfo block.
const stackSize = 16 * 1024

var (
	frameAllocFn       = allocator.AllocFrame
	mapFn              = vmm.Map
	unmapFn            = vmm.Unmap
	translateFn        = vmm.Translate
	newAddressSpaceFn  = vmm.NewAddressSpace
	loadAddressSpaceFn = vmm.LoadAddressSpace
	activePDTFn        = cpu.ActivePDT
	currentTickFn      = sched.CurrentTick
)

var (
	sizeofStartInfo       = unsafe.Sizeof(StartInfo{})
	sizeofProgramHeader64 = unsafe.Sizeof(ProgramHeader64{})
)

// StartInfo is the fixed-layout structure the loader writes at the
// top of the user address space; the entry point's runtime reads it
// to locate argv, the program header copy, and a PRNG seed.
type StartInfo struct {
	Main                 uintptr
	ProgramHeaderAddr    uintptr
	ProgramHeaderCount   uint16
	ProgramHeaderEntSize uint16
	ArgC                 int32
	ArgV                 uintptr
	Random               [2]uint64
}

// StackInfo describes the user stack the loader reserves.
type StackInfo struct {
	Bottom, Top uintptr
}

// Result is what a successful Load returns: everything the App
// manager needs to hand control to the new program.
type Result struct {
	Entry         uintptr
	BasePageTable pmm.Frame
	HeapStart     uintptr
	Stack         StackInfo
	StartInfoAddr uintptr
	Vendor        VendorInfo
	HasVendor     bool
}

// segment is a scanned and validated PT_LOAD entry awaiting
// allocation.
type segment struct {
	ph        ProgramHeader64
	pageStart uintptr
	pageCount uintptr
}

// Load validates image as an ELF64 executable, allocates and populates
// a fresh address space (or reuses the currently active one when
// reuseCurrentVAS is set, as the system loader does), and constructs
// the bootstrap area the entry point expects. argv is packed into the
// bootstrap area verbatim; argv[0] conventionally names the program.
func Load(image []byte, argv []string, reuseCurrentVAS bool) (Result, Status) {
	hdr, st := parseHeader(image)
	if st != Loaded {
		return Result{}, st
	}
	if uintptr(hdr.Entry) >= vmm.UserSpaceEnd {
		return Result{}, StatusBadHeader
	}

	order := byteOrderOf(hdr.Ident)
	segments, vendor, hasVendor, st := scanProgramHeaders(image, hdr, order)
	if st != Loaded {
		return Result{}, st
	}
	if len(segments) == 0 {
		return Result{}, StatusBadSegment
	}

	prevVAS := activePDTFn()
	var basePT pmm.Frame
	if reuseCurrentVAS {
		basePT = pmm.Frame(prevVAS >> mem.PageShift)
	} else {
		basePT, st = newAddressSpace()
		if st != Loaded {
			return Result{}, st
		}
		loadAddressSpaceFn(basePT)
	}
	defer func() {
		if !reuseCurrentVAS {
			loadAddressSpaceFn(pmm.Frame(prevVAS >> mem.PageShift))
		}
	}()

	heapStart, st := allocateSegments(segments)
	if st != Loaded {
		return Result{}, st
	}

	if st = copySegments(image, segments); st != Loaded {
		return Result{}, st
	}

	startInfoAddr, stack, st := buildBootstrapArea(hdr, image, order, argv)
	if st != Loaded {
		return Result{}, st
	}

	return Result{
		Entry:         uintptr(hdr.Entry),
		BasePageTable: basePT,
		HeapStart:     heapStart,
		Stack:         stack,
		StartInfoAddr: startInfoAddr,
		Vendor:        vendor,
		HasVendor:     hasVendor,
	}, Loaded
}

func newAddressSpace() (pmm.Frame, Status) {
	frame, err := newAddressSpaceFn()
	if err != nil {
		return pmm.InvalidFrame, StatusMemoryError
	}
	return frame, Loaded
}

// scanProgramHeaders walks every program header entry, classifying
// LOAD segments (page-rounded and validated against kernel space) and
// decoding the first NOTE segment's vendor info, if present.
func scanProgramHeaders(image []byte, hdr Header64, order binary.ByteOrder) ([]segment, VendorInfo, bool, Status) {
	var (
		segments  []segment
		vendor    VendorInfo
		hasVendor bool
	)

	phOff := uintptr(hdr.PHOff)
	phEntSize := uintptr(hdr.PHEntSize)
	for i := uintptr(0); i < uintptr(hdr.PHNum); i++ {
		start := phOff + i*phEntSize
		if start+56 > uintptr(len(image)) {
			return nil, vendor, false, StatusBadSegment
		}
		ph, st := parseProgramHeader(image[start:start+56], order)
		if st != Loaded {
			return nil, vendor, false, st
		}

		switch ph.Type {
		case ptLoad:
			pageStart := uintptr(ph.VAddr) &^ (uintptr(mem.PageSize) - 1)
			pageEnd := (uintptr(ph.VAddr) + uintptr(ph.MemSz) + uintptr(mem.PageSize) - 1) &^ (uintptr(mem.PageSize) - 1)
			if pageEnd > vmm.UserSpaceEnd || pageEnd < pageStart {
				return nil, vendor, false, StatusBadSegment
			}
			segments = append(segments, segment{
				ph:        ph,
				pageStart: pageStart,
				pageCount: (pageEnd - pageStart) >> mem.PageShift,
			})
		case ptNote:
			if uintptr(ph.Offset)+uintptr(ph.FileSz) > uintptr(len(image)) {
				return nil, vendor, false, StatusBadVendorInfo
			}
			vi, st := parseVendorNote(image[ph.Offset:ph.Offset+ph.FileSz], order)
			if st == Loaded {
				vendor = vi
				hasVendor = true
			}
		}
	}

	return segments, vendor, hasVendor, Loaded
}

// allocateSegments maps every scanned LOAD segment's pages with
// {Present, Writable, User} -- writable temporarily, regardless of the
// segment's own flags, so that copySegments can populate them -- and
// returns the running heap_start (the highest va+memsz rounded up to
// a page). On failure at segment i, every page mapped for segments
// 0..i-1 is unmapped before returning.
func allocateSegments(segments []segment) (uintptr, Status) {
	var heapStart uintptr

	for i, seg := range segments {
		for p := uintptr(0); p < seg.pageCount; p++ {
			page := vmm.PageFromAddress(seg.pageStart + p*uintptr(mem.PageSize))
			frame, err := frameAllocFn()
			if err != nil {
				freeSegments(segments[:i])
				return 0, StatusMemoryError
			}
			if mapErr := mapFn(page, frame, vmm.FlagPresent|vmm.FlagRW|vmm.FlagUser); mapErr != nil {
				freeSegments(segments[:i])
				return 0, StatusMemoryError
			}
		}

		segEnd := uintptr(seg.ph.VAddr) + uintptr(seg.ph.MemSz)
		segEnd = (segEnd + uintptr(mem.PageSize) - 1) &^ (uintptr(mem.PageSize) - 1)
		if segEnd > heapStart {
			heapStart = segEnd
		}
	}

	return heapStart, Loaded
}

// freeSegments unmaps every page belonging to the given segments. The
// boot-time frame allocator cannot return frames to a free pool yet
// (see allocator.bootMemAllocator), so this only tears down the page
// table mappings raised during a failed load; the underlying frames
// are leaked until a freeing allocator replaces it.
func freeSegments(segments []segment) {
	for _, seg := range segments {
		for p := uintptr(0); p < seg.pageCount; p++ {
			page := vmm.PageFromAddress(seg.pageStart + p*uintptr(mem.PageSize))
			unmapFn(page)
		}
	}
}

// copySegments reads each LOAD segment's file-backed bytes in BufSize
// chunks into its mapped pages, zero-filling the remainder up to
// memsz, then downgrades the temporary Writable bit unless the
// segment's own ELF flags requested write access.
func copySegments(image []byte, segments []segment) Status {
	for _, seg := range segments {
		dst := uintptr(seg.ph.VAddr)
		src := uintptr(seg.ph.Offset)
		remaining := uintptr(seg.ph.FileSz)

		if src+remaining > uintptr(len(image)) {
			return StatusIOError
		}

		for remaining > 0 {
			n := uintptr(BufSize)
			if n > remaining {
				n = remaining
			}
			copyBytes(dst, image[src:src+n])
			dst += n
			src += n
			remaining -= n
		}

		bssLen := uintptr(seg.ph.MemSz) - uintptr(seg.ph.FileSz)
		if bssLen > 0 {
			mem.Memset(dst, 0, mem.Size(bssLen))
		}

		if seg.ph.Flags&pfWrite == 0 {
			downgradeSegmentFlags(seg)
		}
	}
	return Loaded
}

// downgradeSegmentFlags re-maps every page of seg without the
// temporary Writable bit the loader used to populate it, honoring
// the segment's own ELF flags.
func downgradeSegmentFlags(seg segment) {
	flags := vmm.FlagPresent | vmm.FlagUser
	if seg.ph.Flags&pfExecute == 0 {
		flags |= vmm.FlagNoExecute
	}
	for p := uintptr(0); p < seg.pageCount; p++ {
		page := vmm.PageFromAddress(seg.pageStart + p*uintptr(mem.PageSize))
		physAddr, err := translateFn(page.Address())
		if err != nil {
			continue
		}
		_ = mapFn(page, pmm.Frame(physAddr>>mem.PageShift), flags)
	}
}

// buildBootstrapArea lays out, immediately below a stackSize-byte user
// stack at the top of user address space, the StartInfo struct, a
// null-terminated argv pointer array, the packed argv strings, and a
// packed copy of every program header -- in that order, per the
// layout the entry point's runtime expects.
func buildBootstrapArea(hdr Header64, image []byte, order binary.ByteOrder, argv []string) (uintptr, StackInfo, Status) {
	stackTop := vmm.UserSpaceEnd - uintptr(mem.PageSize)
	stackBottom := stackTop - stackSize

	if st := mapRange(stackBottom, stackSize, vmm.FlagPresent|vmm.FlagRW|vmm.FlagUser|vmm.FlagNoExecute); st != Loaded {
		return 0, StackInfo{}, st
	}

	phTotalSize := uintptr(hdr.PHNum) * sizeofProgramHeader64
	var argvBytes uintptr
	for _, a := range argv {
		argvBytes += uintptr(len(a)) + 1
	}
	argvPtrBytes := uintptr(len(argv)+1) * 8

	bootstrapSize := sizeofStartInfo + argvPtrBytes + argvBytes + phTotalSize
	bootstrapSize = (bootstrapSize + uintptr(mem.PageSize) - 1) &^ (uintptr(mem.PageSize) - 1)

	bootstrapStart := stackBottom - bootstrapSize
	if st := mapRange(bootstrapStart, bootstrapSize, vmm.FlagPresent|vmm.FlagRW|vmm.FlagUser|vmm.FlagNoExecute); st != Loaded {
		return 0, StackInfo{}, st
	}

	startInfoAddr := bootstrapStart
	argvArrayAddr := startInfoAddr + sizeofStartInfo
	argvStringsAddr := argvArrayAddr + argvPtrBytes
	phCopyAddr := argvStringsAddr + argvBytes

	si := (*StartInfo)(unsafe.Pointer(startInfoAddr))
	si.Main = uintptr(hdr.Entry)
	si.ProgramHeaderAddr = phCopyAddr
	si.ProgramHeaderCount = hdr.PHNum
	si.ProgramHeaderEntSize = hdr.PHEntSize
	si.ArgC = int32(len(argv))
	si.ArgV = argvArrayAddr
	si.Random = seedRandom()

	argvPtrs := (*[1 << 16]uintptr)(unsafe.Pointer(argvArrayAddr))[:len(argv)+1]
	cursor := argvStringsAddr
	for i, a := range argv {
		argvPtrs[i] = cursor
		copyString(cursor, a)
		cursor += uintptr(len(a)) + 1
	}
	argvPtrs[len(argv)] = 0

	writeProgramHeaderCopy(phCopyAddr, image, hdr, order)

	return startInfoAddr, StackInfo{Bottom: stackBottom, Top: stackTop}, Loaded
}

// mapRange maps size bytes' worth of pages starting at addr (both
// assumed page-aligned already by the caller).
func mapRange(addr uintptr, size uintptr, flags vmm.PageTableEntryFlag) Status {
	pageCount := size >> mem.PageShift
	for p := uintptr(0); p < pageCount; p++ {
		frame, err := frameAllocFn()
		if err != nil {
			return StatusMemoryError
		}
		page := vmm.PageFromAddress(addr + p*uintptr(mem.PageSize))
		if mapErr := mapFn(page, frame, flags); mapErr != nil {
			return StatusMemoryError
		}
	}
	return Loaded
}

// writeProgramHeaderCopy copies every program header entry of image
// (LOAD, NOTE and any other type, hdr.PHNum in all) back-to-back at dst,
// preserving the file's field widths. The entries were already bounds
// checked by scanProgramHeaders.
func writeProgramHeaderCopy(dst uintptr, image []byte, hdr Header64, order binary.ByteOrder) {
	for i := uintptr(0); i < uintptr(hdr.PHNum); i++ {
		start := uintptr(hdr.PHOff) + i*uintptr(hdr.PHEntSize)
		ph, _ := parseProgramHeader(image[start:start+56], order)
		entry := (*ProgramHeader64)(unsafe.Pointer(dst + i*sizeofProgramHeader64))
		*entry = ph
	}
}

// copyBytes copies src into the raw memory starting at dst.
func copyBytes(dst uintptr, src []byte) {
	d := (*[1 << 30]byte)(unsafe.Pointer(dst))[:len(src):len(src)]
	copy(d, src)
}

// copyString writes s, followed by a null terminator, at dst.
func copyString(dst uintptr, s string) {
	copyBytes(dst, []byte(s))
	*(*byte)(unsafe.Pointer(dst + uintptr(len(s)))) = 0
}

// seedRandom produces a deterministic-but-nonzero two-word seed for
// StartInfo.Random using a xorshift64 step over the current scheduler
// tick count, so that two apps started on different ticks never
// observe the same seed.
func seedRandom() [2]uint64 {
	x := currentTickFn()*2 + 1
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	y := x ^ 0x9E3779B97F4A7C15
	y ^= y << 13
	y ^= y >> 7
	y ^= y << 17
	return [2]uint64{x, y}
}
