// Package sched implements the cooperative+preemptive kernel thread
// scheduler: a ready/sleep/terminated queue trio, the idle/terminator/
// main special threads, and the context-switch primitive that swaps
// kernel stack, user stack pointer and active address space between
// threads.
package sched

import "runeos/kernel/mem/pmm"

// Handle uniquely identifies a Thread for the lifetime of the kernel.
type Handle uint32

// State is a value in the thread state machine described by spec.md §4.6.
type State uint8

const (
	// None is the zero value; never observed on a thread returned by
	// ScheduleNewThread.
	None State = iota
	// Ready means the thread is sitting in the ready queue awaiting a
	// turn to run.
	Ready
	// Running means the thread is the one currently executing on the
	// (single) core.
	Running
	// Waiting means the thread is blocked on a mutex or a join target.
	Waiting
	// Sleeping means the thread is parked in the sleep queue until its
	// wake-up deadline.
	Sleeping
	// Terminated means the thread has exited or been terminated and is
	// awaiting cleanup by the terminator thread.
	Terminated
)

// Policy selects how a thread competes for the core against others in
// the ready queue.
type Policy uint8

const (
	// Normal is the default scheduling policy.
	Normal Policy = iota
	// LowLatency threads preempt a Normal thread at the head of the
	// ready queue.
	LowLatency
)

// StackInfo describes a contiguous stack region.
type StackInfo struct {
	Bottom uintptr
	Top    uintptr
	Size   uintptr
}

// Thread is a schedulable unit of execution. Its kernel stack is freed
// by the terminator thread once it reaches Terminated; its user stack
// lives inside the owning app's address space and is freed along with
// it.
type Thread struct {
	Handle   Handle
	Name     string
	State    State
	Policy   Policy
	AppHandle uint32

	// BasePageTable is the physical address of the L4/PML4 table of
	// the address space this thread runs in.
	BasePageTable uintptr

	KernelStack StackInfo
	UserStack   StackInfo

	// StartInfoPtr is the user-space address of the bootstrap
	// StartInfo block (0 for kernel threads).
	StartInfoPtr uintptr

	// JoinTarget is the app handle this thread is blocked joining, or
	// 0 if it is not waiting on a join.
	JoinTarget uint32

	// MutexID is the handle of the mutex this thread is enqueued on
	// while State == Waiting due to a lock() call.
	MutexID uint32

	// quantumRemaining counts down on each timer tick; reaching zero
	// triggers preemption.
	quantumRemaining uint32

	// wakeAtTick is the absolute tick count at which a Sleeping thread
	// should be promoted back to Ready.
	wakeAtTick uint64

	// kernelStackFrame/savedRSP are used by the context-switch
	// implementation; kernelStackFrame records the frame backing
	// KernelStack so the terminator can release it.
	kernelStackFrame pmm.Frame
	savedRSP         uintptr
}
