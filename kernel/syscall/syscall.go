// Package syscall implements the single user-to-kernel transport: MSR
// setup for the `syscall`/`sysret` fast path, a numeric dispatch
// table, and the interrupts-off, independent-stack entry contract
// described in spec.md §4.9/§6.
package syscall

import (
	"runeos/kernel/cpu"
)

// Context is the register snapshot available to a syscall handler.
// Unlike irq.Regs/irq.Frame (used for exceptions and hardware
// interrupts) this is the flat view the `syscall` instruction's entry
// trampoline assembles, since `syscall` does not push a full IRET
// frame the way an interrupt gate does.
type Context struct {
	UserRSP uintptr
	UserRIP uintptr
	RFlags  uint64
}

// Handler services a single syscall. It runs with interrupts disabled
// and must not block indefinitely; a handler may re-enable interrupts
// explicitly if it needs to perform a bounded wait.
type Handler func(ctx *Context, a1, a2, a3, a4, a5, a6 uint64) int64

// maxSyscallID bounds the dispatch table; spec.md does not fix a
// concrete ABI size, so this is a generous, cheaply-indexable table.
const maxSyscallID = 512

var (
	handlers [maxSyscallID]Handler

	// writeMSRFn/readMSRFn are mocked by tests; in the kernel build
	// they are implemented in assembly (wrmsr/rdmsr).
	writeMSRFn = writeMSR
	readMSRFn  = readMSR

	kernelCS = uint64(cpu.KernelCodeSelector)

	// userCS is STAR's user segment base: sysret loads SS from base+8
	// and CS from base+16, i.e. UserDataSelector and UserCodeSelector.
	userCS = uint64(cpu.UserDataSelector - 8)
)

// MSR addresses used to configure the syscall/sysret fast path.
const (
	msrEFER  = 0xC0000080
	msrSTAR  = 0xC0000081
	msrLSTAR = 0xC0000082
	msrFMASK = 0xC0000084

	eferSCE = 1 << 0

	// rflagsIF is the interrupt-enable bit; FMASK clears it on entry
	// so that syscall handlers always start with interrupts disabled.
	rflagsIF = 1 << 9
)

// Init programs STAR/LSTAR/FMASK and sets EFER.SCE, wiring the
// `syscall` instruction to entryTrampoline with the selector layout
// described in spec.md §4.4/§4.9: STAR packs the kernel CS (bits
// 32-47) and the base of the user segment run (bits 48-63) such that
// the CPU's hardware-computed SS selectors land on the GDT layout
// kernel/cpu.InitGDT installs.
func Init() {
	star := (userCS << 48) | (kernelCS << 32)
	writeMSRFn(msrSTAR, star)
	writeMSRFn(msrLSTAR, uint64(entryTrampolineAddr()))
	writeMSRFn(msrFMASK, rflagsIF)

	efer := readMSRFn(msrEFER)
	writeMSRFn(msrEFER, efer|eferSCE)
}

// Install registers handler for the given syscall id, replacing any
// previously installed handler.
func Install(id uint16, handler Handler) {
	if int(id) < len(handlers) {
		handlers[id] = handler
	}
}

// Uninstall removes the handler registered for id, if any.
func Uninstall(id uint16) {
	if int(id) < len(handlers) {
		handlers[id] = nil
	}
}

// Dispatch looks up id in the installed handler table and invokes it.
// An unregistered id returns -1, per spec.md §6's syscall ABI. This is
// called from the assembly entry trampoline after it has swapped onto
// the calling thread's kernel stack; Go code never needs to call it
// directly except from tests.
func Dispatch(ctx *Context, id uint16, a1, a2, a3, a4, a5, a6 uint64) int64 {
	if int(id) >= len(handlers) || handlers[id] == nil {
		return -1
	}
	return handlers[id](ctx, a1, a2, a3, a4, a5, a6)
}
