package cpu

// SegmentSelector identifies an entry in the GDT by its byte offset
// combined with the requested privilege level in its low two bits.
type SegmentSelector uint16

// Fixed GDT layout installed at boot. The ordering and byte offsets are
// load-bearing: the syscall MSR setup derives selectors for CS/SS by
// adding a constant offset to these values.
const (
	NullSelector       SegmentSelector = 0x00
	KernelCodeSelector SegmentSelector = 0x08
	KernelDataSelector SegmentSelector = 0x10
	UserDataSelector   SegmentSelector = 0x18 | 3
	UserCodeSelector   SegmentSelector = 0x20 | 3
	TSSSelector        SegmentSelector = 0x28
)

// segmentDescriptorFlag describes a bit in a GDT segment descriptor's
// access byte or flags nibble.
type segmentDescriptorFlag uint8

const (
	descPresent    segmentDescriptorFlag = 1 << 7
	descUserSeg    segmentDescriptorFlag = 1 << 4
	descExecutable segmentDescriptorFlag = 1 << 3
	descWritable   segmentDescriptorFlag = 1 << 1
	descDPL3       segmentDescriptorFlag = 3 << 5
)

// TaskStateSegment mirrors the fields of the amd64 TSS that this kernel
// actually uses. The only field mutated after boot is RSP0: it is
// rewritten on every context switch so that the next privilege-level
// transition (interrupt, exception or syscall) lands on the incoming
// thread's kernel stack.
type TaskStateSegment struct {
	_    uint32
	RSP0 uint64
	RSP1 uint64
	RSP2 uint64
	_    uint64
	IST  [7]uint64
	_    uint64
	_    uint16
	IOMapBase uint16
}

var activeTSS TaskStateSegment

// InitGDT installs the fixed null/kernel-code/kernel-data/user-data/
// user-code/TSS descriptor layout described above and loads the GDT and
// task register. It must run once, before any interrupt, exception or
// syscall can occur.
func InitGDT()

// SetKernelStack rewrites the active TSS's RSP0 field to point at the
// top of the given kernel stack. The scheduler calls this on every
// context switch so that the next privilege-level transition for the
// incoming thread lands on its own kernel stack rather than the stack
// of whichever thread ran previously.
func SetKernelStack(stackTop uintptr) {
	activeTSS.RSP0 = uint64(stackTop)
	flushTSS()
}

// flushTSS reloads the task register so that a subsequent privilege
// transition observes the updated RSP0. Implemented in assembly: it is
// a bare `ltr` of TSSSelector together with a write-back of RSP0 into
// the live TSS used by the CPU.
func flushTSS()

// SwapGS caches the running thread's user stack pointer in the GS base
// MSR and its kernel stack pointer in the KernelGSBase MSR, so that the
// syscall entry trampoline can recover both without touching memory
// that might not yet be mapped. Called by the scheduler immediately
// before resuming a thread in user mode.
func SwapGS(userStackPtr, kernelStackPtr uintptr)
