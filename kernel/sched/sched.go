package sched

import (
	"runeos/kernel/cpu"
	"runeos/kernel/sync"
)

// PlatformOps collects the assembly-backed primitives a context switch
// needs. Declared as a struct of function vars (rather than an
// interface) so the common case -- the real CPU package -- can be
// wired in with a single assignment, exactly like vmm's
// activePDTFn/switchPDTFn mockable vars.
type PlatformOps struct {
	// SwitchTo performs the actual machine-level context switch: save
	// the outgoing thread's stack pointer, load the incoming thread's
	// address space and kernel stack, and resume it. It returns when
	// some *other* thread switches back to the caller.
	SwitchTo func(from, to *Thread)
	SetKernelStack func(top uintptr)
	LoadAddressSpace func(physAddr uintptr)
}

var ops = PlatformOps{
	SwitchTo:         defaultSwitchTo,
	SetKernelStack:   cpu.SetKernelStack,
	LoadAddressSpace: cpu.SwitchPDT,
}

// SetPlatformOps overrides the platform primitives used by the
// scheduler. Tests substitute fakes here; production code leaves the
// cpu-backed defaults in place.
func SetPlatformOps(p PlatformOps) { ops = p }

// Reserved handles for the threads created at boot; spec.md §4.6.
const (
	IdleHandle       Handle = 1
	TerminatorHandle Handle = 2
	MainHandle       Handle = 3
)

var (
	lock sync.Spinlock

	threads    = map[Handle]*Thread{}
	nextHandle = Handle(MainHandle + 1)

	ready      []*Thread
	sleeping   []*Thread
	terminated []*Thread

	running *Thread

	// ticksPerMs is set by timer.Init and used to convert Sleep's
	// millisecond argument into absolute tick deadlines.
	ticksPerMs uint64 = 1
	curTick    uint64

	// defaultQuantum is the number of timer ticks a thread runs before
	// being preempted.
	defaultQuantum uint32 = 10
)

// SetTimerFrequency records how many ticks make up one millisecond so
// Sleep can convert its argument into an absolute wake tick. Called
// once by timer.Init.
func SetTimerFrequency(hz uint32) {
	if hz == 0 {
		hz = 1000
	}
	ticksPerMs = uint64(hz) / 1000
	if ticksPerMs == 0 {
		ticksPerMs = 1
	}
}

// Init creates the idle, terminator and main threads. main continues
// as the calling (boot) thread: its kernel stack and base page table
// are whatever is already active, it just gets a Thread record and
// becomes the initially Running thread.
func Init(mainKernelStack StackInfo, basePageTable uintptr) {
	idle := &Thread{Handle: IdleHandle, Name: "idle", State: Ready, Policy: Normal, BasePageTable: basePageTable, quantumRemaining: defaultQuantum}
	term := &Thread{Handle: TerminatorHandle, Name: "terminator", State: Ready, Policy: LowLatency, BasePageTable: basePageTable, quantumRemaining: defaultQuantum}
	main := &Thread{Handle: MainHandle, Name: "main", State: Running, Policy: Normal, BasePageTable: basePageTable, KernelStack: mainKernelStack, quantumRemaining: defaultQuantum}

	threads[idle.Handle] = idle
	threads[term.Handle] = term
	threads[main.Handle] = main

	ready = append(ready, idle, term)
	running = main

	sync.SetYieldFn(Yield)
}

// lockSched acquires the scheduler spinlock. Every function that
// mutates the queues or the running pointer must call this first.
func lockSched() { lock.Acquire() }

// Lock acquires the scheduler spinlock for a caller outside this
// package (kernel/sched/mutex) that needs to bracket a compound
// operation -- enqueue-and-switch -- atomically, per spec.md §4.6/4.7.
func Lock() { lockSched() }

// Unlock is the exported form of unlockSched, for the same callers
// that use Lock.
func Unlock() { unlockSched() }

// ExecuteNextThreadLocked is the lock-already-held form of
// ExecuteNextThread, for callers (kernel/sched/mutex) that perform
// their own queue mutation under Lock/Unlock and need the pending
// switch staged in the same critical section.
func ExecuteNextThreadLocked() {
	switchReason = "block"
	executeNextThreadLocked()
}

// EnqueueReadyLocked appends t to the ready queue. Caller must hold
// the scheduler lock (see Lock).
func EnqueueReadyLocked(t *Thread) { enqueueReady(t) }

// RegisterWaitQueueRemover adds a callback TerminateThread calls, for
// every Waiting thread it terminates, to pull it out of whichever
// queue holds it. Called once each by kernel/sched/mutex's and
// kernel/app's package init.
func RegisterWaitQueueRemover(fn func(t *Thread)) {
	waitQueueRemovers = append(waitQueueRemovers, fn)
}

// unlockSched releases the scheduler spinlock. If unlock chose a
// different thread to run (via execute_next_thread while locked) the
// platform context switch happens here, *after* the lock is dropped,
// matching spec.md §4.6's "unlock() may trigger a context switch"
// contract.
func unlockSched() {
	next := pendingSwitch
	pendingSwitch = nil
	lock.Release()

	if next != nil {
		doSwitch(next)
	}
}

var (
	pendingSwitch *Thread

	// switchReason records why the staged pendingSwitch was chosen, set by
	// whichever caller (Yield, Sleep, Tick, ExitCurrent, ...) triggers it
	// and consumed by doSwitch when it fires CONTEXT_SWITCH.
	switchReason = "schedule"
)

// doSwitch performs the actual platform switch from the previously
// running thread to next, firing the CONTEXT_SWITCH event once next's
// stack/VAS are loaded but before it resumes. Per spec.md §4.6 ordering
// guarantee, code after unlockSched() may run much later in a
// different address space -- callers must not assume continuity.
func doSwitch(next *Thread) {
	prev := running
	running = next
	next.State = Running

	reason := switchReason
	switchReason = "schedule"

	ops.LoadAddressSpace(next.BasePageTable)
	ops.SetKernelStack(next.KernelStack.Top)
	fireContextSwitch(prev, next, reason)
	ops.SwitchTo(prev, next)
}

func defaultSwitchTo(from, to *Thread) {
	// Real implementation is assembly: save `from`'s stack pointer,
	// load `to`.savedRSP, and return into whatever call frame `to` was
	// switched out from. The host-testable scheduler logic never
	// exercises this path directly; tests override PlatformOps.SwitchTo.
}

// RunningThread returns the currently executing thread.
func RunningThread() *Thread {
	return running
}

// Lookup returns the thread with the given handle, or nil.
func Lookup(h Handle) *Thread {
	lockSched()
	defer lock.Release()
	return threads[h]
}

// ScheduleNewThread transitions a freshly constructed Thread into the
// ready queue and assigns it a handle. It fires THREAD_CREATED.
func ScheduleNewThread(t *Thread) Handle {
	lockSched()
	t.Handle = nextHandle
	nextHandle++
	if t.quantumRemaining == 0 {
		t.quantumRemaining = defaultQuantum
	}
	t.State = Ready
	threads[t.Handle] = t
	enqueueReady(t)
	h := t.Handle
	unlockSched()

	fireThreadCreated(t)
	return h
}

// enqueueReady appends t to the ready queue respecting the FIFO rule;
// LowLatency preemption is applied when a thread is selected to run,
// not at enqueue time.
func enqueueReady(t *Thread) {
	t.State = Ready
	ready = append(ready, t)
}

// pickNext removes and returns the next thread that should run: the
// first LowLatency thread in the queue if one is present, else the
// queue head (FIFO).
func pickNext() *Thread {
	for i, t := range ready {
		if t.Policy == LowLatency {
			ready = append(ready[:i], ready[i+1:]...)
			return t
		}
	}
	if len(ready) == 0 {
		return nil
	}
	t := ready[0]
	ready = ready[1:]
	return t
}

// executeNextThreadLocked picks the next ready thread and stages it as
// the switch target for when the caller's unlockSched runs. Must be
// called with the scheduler lock held.
func executeNextThreadLocked() {
	next := pickNext()
	if next == nil {
		return
	}
	if running != nil && running.State == Running {
		enqueueReady(running)
	}
	pendingSwitch = next
}

// ExecuteNextThread is the public, lock-bracketed form used by callers
// (syscall handlers, the timer) that are not already holding the
// scheduler lock.
func ExecuteNextThread() {
	lockSched()
	executeNextThreadLocked()
	unlockSched()
}

// Yield voluntarily gives up the remainder of the running thread's
// quantum. It is wired into kernel/sync.Spinlock's yieldFn by Init so
// that spinlock contention degrades into a scheduler yield instead of
// a tight busy loop once threading exists.
func Yield() {
	switchReason = "yield"
	ExecuteNextThread()
}

// TerminateThread moves the thread identified by handle into the
// terminated queue from whichever queue currently holds it. Per
// spec.md §4.6, terminating the currently running thread is a no-op
// that reports success -- it will terminate naturally on its next
// exit. Terminating an unknown handle returns false.
func TerminateThread(h Handle) bool {
	lockSched()
	defer unlockSched()

	t, ok := threads[h]
	if !ok {
		return false
	}
	if t == running {
		return true
	}

	switch t.State {
	case Ready:
		removeFromSlice(&ready, t)
	case Sleeping:
		removeFromSlice(&sleeping, t)
	case Waiting:
		for _, remove := range waitQueueRemovers {
			remove(t)
		}
	}

	t.State = Terminated
	terminated = append(terminated, t)
	fireThreadTerminated(t, peekNextLocked())
	return true
}

func peekNextLocked() *Thread {
	for _, t := range ready {
		if t.Policy == LowLatency {
			return t
		}
	}
	if len(ready) > 0 {
		return ready[0]
	}
	return nil
}

func removeFromSlice(q *[]*Thread, t *Thread) {
	s := *q
	for i, x := range s {
		if x == t {
			*q = append(s[:i], s[i+1:]...)
			return
		}
	}
}

// waitQueueRemovers holds one callback per kind of Waiting queue a
// thread can sit on (mutex wait queues, app join_waiters, ...). A
// Waiting thread sits on exactly one such queue at a time, so each
// registered remover is a no-op for every queue it doesn't own.
var waitQueueRemovers []func(t *Thread)

// DrainTerminated removes and returns every thread currently in the
// terminated queue. Called by the terminator thread's loop.
func DrainTerminated() []*Thread {
	lockSched()
	defer lock.Release()
	drained := terminated
	terminated = nil
	return drained
}

// ReadyQueueHandles returns the handles currently sitting in the ready
// queue, head first. Exposed for tests asserting FIFO/fairness
// properties (spec.md §8.5/E1).
func ReadyQueueHandles() []Handle {
	lockSched()
	defer lock.Release()
	out := make([]Handle, len(ready))
	for i, t := range ready {
		out[i] = t.Handle
	}
	return out
}

// ExitCurrent terminates the running thread unconditionally and
// switches to the next ready thread. Used by the platform thread_exit
// primitive (kernel/app.ExitRunningApp's last step) -- unlike
// TerminateThread, which no-ops on the running thread because the
// caller is expected to exit naturally, ExitCurrent *is* that natural
// exit path.
func ExitCurrent() {
	lockSched()
	t := running
	t.State = Terminated
	terminated = append(terminated, t)
	next := peekNextLocked()
	switchReason = "exit"
	executeNextThreadLocked()
	fireThreadTerminated(t, next)
	unlockSched()
}

// CurrentTick returns the scheduler's view of elapsed timer ticks.
func CurrentTick() uint64 {
	return curTick
}

// Sleep parks the running thread in the sleep queue, sorted by wake
// tick, for approximately ms milliseconds, then yields. It returns
// once the thread has been woken and re-scheduled.
func Sleep(ms uint32) {
	lockSched()
	t := running
	t.State = Sleeping
	t.wakeAtTick = curTick + uint64(ms)*ticksPerMs
	insertSleeping(t)
	switchReason = "sleep"
	executeNextThreadLocked()
	unlockSched()
}

func insertSleeping(t *Thread) {
	i := 0
	for ; i < len(sleeping); i++ {
		if sleeping[i].wakeAtTick > t.wakeAtTick {
			break
		}
	}
	sleeping = append(sleeping, nil)
	copy(sleeping[i+1:], sleeping[i:])
	sleeping[i] = t
}

// Tick advances the scheduler's notion of time by one timer period.
// It wakes any sleepers whose deadline has passed, decrements the
// running thread's quantum, and preempts it (moving it to the tail of
// ready and switching to the next ready thread) if the quantum hit
// zero or a LowLatency sleeper was just promoted while a Normal
// thread is running. Called by kernel/timer on every periodic
// interrupt. Tick acquires the scheduler lock itself and releases it
// before returning, which is when any staged switch takes effect.
func Tick() {
	lockSched()
	curTick++

	preempt := false
	for len(sleeping) > 0 && sleeping[0].wakeAtTick <= curTick {
		woken := sleeping[0]
		sleeping = sleeping[1:]
		woken.wakeAtTick = 0
		enqueueReady(woken)
		if woken.Policy == LowLatency && running != nil && running.Policy != LowLatency {
			preempt = true
		}
	}

	if running != nil && running.State == Running {
		if running.quantumRemaining > 0 {
			running.quantumRemaining--
		}
		if running.quantumRemaining == 0 {
			running.quantumRemaining = defaultQuantum
			preempt = true
		}
	}

	if preempt {
		switchReason = "preempt"
		executeNextThreadLocked()
	}
	unlockSched()
}
