package kernel

import (
	"runeos/kernel/app"
	"runeos/kernel/cpu"
	"runeos/kernel/gate"
	"runeos/kernel/goruntime"
	"runeos/kernel/hal"
	"runeos/kernel/hal/multiboot"
	"runeos/kernel/irq"
	"runeos/kernel/kfmt"
	"runeos/kernel/mem"
	"runeos/kernel/mem/pmm"
	"runeos/kernel/mem/pmm/allocator"
	"runeos/kernel/mem/vmm"
	"runeos/kernel/sched"
	"runeos/kernel/syscall"
	"runeos/kernel/timer"
	"unsafe"
)

var errKmainReturned = &Error{Module: "kmain", Message: "Kmain returned"}

// timerFrequencyHz is the tick rate sched.Tick is driven at.
const timerFrequencyHz = timer.DefaultFrequencyHz

// bootStackSize is the kernel stack the main thread is recorded as
// running on once it is handed to sched.Init. The boot trampoline
// (outside this tree) hands Kmain an already-live stack; bootStack is
// a generously sized region reserved here so TSS.RSP0 has somewhere
// real to point once main ever yields and is switched back in.
const bootStackSize = 64 * 1024

var bootStack [bootStackSize]byte

// Kmain is the only Go symbol visible to the rt0 initialization code.
// It is invoked after the bootloader has handed off to protected/long
// mode and a minimal Go g0 is in place, with the multiboot info
// pointer and the kernel image's physical extent as arguments.
//
// Kmain is not expected to return. If it does, the rt0 code halts the
// CPU.
//
//go:noinline
func Kmain(multibootInfoPtr, kernelStart, kernelEnd uintptr) {
	multiboot.SetInfoPtr(multibootInfoPtr)

	cpu.InitGDT()
	gate.Init()

	// No concrete irq.PICDriver lives in this tree yet; without one,
	// Init has nothing to probe and hardware IRQ lines stay masked.
	// Exception handling (page faults, GPF, ...) does not depend on
	// the PIC and keeps working regardless.
	irq.Init(nil)

	allocator.Init(kernelStart, kernelEnd)

	// The kernel image is identity-mapped: virtual and physical
	// addresses coincide, so the page offset used to translate ELF
	// section addresses into physical frames is zero.
	if err := vmm.Init(0); err != nil {
		kfmt.Panic(err)
	}

	if err := goruntime.Init(); err != nil {
		kfmt.Panic(err)
	}

	hal.DetectHardware()

	mainStack := sched.StackInfo{
		Bottom: uintptr(unsafe.Pointer(&bootStack[0])),
		Top:    uintptr(unsafe.Pointer(&bootStack[bootStackSize-1])) + 1,
		Size:   bootStackSize,
	}
	sched.Init(mainStack, cpu.ActivePDT())

	timer.Init(timerFrequencyHz)
	syscall.Init()

	// No concrete vfs.Driver lives in this tree yet, so there is
	// nothing to mount at boot; the kernel pseudo-app starts out
	// owning no open nodes.
	bootThreads := []*sched.Thread{
		sched.Lookup(sched.IdleHandle),
		sched.Lookup(sched.TerminatorHandle),
		sched.Lookup(sched.MainHandle),
	}
	kernelBasePageTable := pmm.Frame(cpu.ActivePDT() >> mem.PageShift)
	app.Init(kernelBasePageTable, bootThreads, nil)

	// Use kfmt.Panic instead of panic so the compiler cannot treat the
	// call as dead code and eliminate it.
	kfmt.Panic(errKmainReturned)
}
