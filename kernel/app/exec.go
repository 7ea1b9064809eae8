package app

import (
	"strings"

	"runeos/kernel"
	"runeos/kernel/elf"
	"runeos/kernel/kfmt"
	"runeos/kernel/mem/pmm"
	"runeos/kernel/mem/slab"
	"runeos/kernel/mem/vmm"
	"runeos/kernel/sched"
	"runeos/kernel/vfs"
)

// JoinNoSuchApp is the sentinel Join returns when handle names no
// registered App, per spec.md §4.12.
const JoinNoSuchApp int32 = 1<<31 - 1

// kernelStackSize is the kernel-mode stack every app thread this
// package schedules gets; matches the largest convenient general
// purpose slab size class.
const kernelStackSize = 16 * 1024

var errSystemLoaderExit = &kernel.Error{Module: "app", Message: "the system loader app must not exit", Kind: kernel.KindBadRequest}

// allocateStackFn and elfLoadFn are mockable indirections over
// kernel/mem/slab and kernel/elf, the same fn-var idiom those packages
// and kernel/mem/vmm already use, so tests can exercise the App
// lifecycle without a real boot-time allocator or address space.
var (
	allocateStackFn = slab.Allocate
	elfLoadFn       = elf.Load
)

// KernelVersion is the version stamped on the boot-time kernel
// pseudo-app.
var KernelVersion = Version{Major: 0, Minor: 1, Patch: 0}

// Init installs the kernel pseudo-app that owns every pre-existing
// thread (idle, terminator, main) and every pre-existing open VFS
// node, per spec.md §4.12. Must run after sched.Init has created the
// boot threads and after the root filesystem has been mounted via
// vfs.Mount, so bootThreads and bootNodes describe real state.
func Init(kernelBasePageTable pmm.Frame, bootThreads []*sched.Thread, bootNodes []vfs.Handle) {
	kernelApp := &App{
		Handle:        newHandle(),
		Name:          "kernel",
		Vendor:        "runeos",
		Version:       KernelVersion,
		BasePageTable: kernelBasePageTable,
		Stdin:         NewVoidStream(),
		Stdout:        NewVoidStream(),
		Stderr:        NewVoidStream(),
	}
	apps[kernelApp.Handle] = kernelApp

	for _, t := range bootThreads {
		t.AppHandle = uint32(kernelApp.Handle)
		kernelApp.ThreadHandles = append(kernelApp.ThreadHandles, t.Handle)
	}
	kernelApp.NodeHandles = append(kernelApp.NodeHandles, bootNodes...)

	activeApp = kernelApp
}

// ResolvePath joins a relative executable/file path against cwd; an
// already-absolute path is returned unchanged.
func ResolvePath(cwd, p string) string {
	if strings.HasPrefix(p, "/") {
		return p
	}
	if cwd == "" || cwd == "/" {
		return "/" + p
	}
	return strings.TrimSuffix(cwd, "/") + "/" + p
}

func baseName(p string) string {
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

func newKernelStack() (sched.StackInfo, *kernel.Error) {
	base, err := allocateStackFn(kernelStackSize)
	if err != nil {
		return sched.StackInfo{}, err
	}
	return sched.StackInfo{Bottom: base, Top: base + kernelStackSize, Size: kernelStackSize}, nil
}

// newAppFromResult builds an App record from a successful elf.Load,
// naming it after execPath and, if the executable carried a PT_NOTE,
// stamping Vendor/Version from it.
func newAppFromResult(execPath, cwd string, result elf.Result) *App {
	a := &App{
		Handle:           newHandle(),
		Name:             baseName(execPath),
		WorkingDirectory: cwd,
		Location:         execPath,
		BasePageTable:    result.BasePageTable,
		EntryPoint:       result.Entry,
		HeapStart:        result.HeapStart,
		HeapLimit:        result.HeapStart,
	}
	if result.HasVendor {
		a.Vendor = result.Vendor.Name
		a.Version = Version{Major: result.Vendor.Major, Minor: result.Vendor.Minor, Patch: result.Vendor.Patch}
	}
	return a
}

// scheduleForStart allocates a kernel stack for target's first thread,
// schedules it and records it in target's thread list. Mirrors
// AppModule::schedule_for_start: the THREAD_CREATED hook stamps the
// new thread's app_handle with the *caller's* active app (target is
// not registered or active yet), so it is corrected here once the
// handle is known.
func scheduleForStart(target *App, result elf.Result) (sched.Handle, *kernel.Error) {
	kstack, err := newKernelStack()
	if err != nil {
		return 0, err
	}

	t := &sched.Thread{
		Name:          "main",
		Policy:        sched.Normal,
		BasePageTable: result.BasePageTable.Address(),
		KernelStack:   kstack,
		UserStack:     sched.StackInfo{Bottom: result.Stack.Bottom, Top: result.Stack.Top, Size: result.Stack.Top - result.Stack.Bottom},
		StartInfoPtr:  result.StartInfoAddr,
	}

	apps[target.Handle] = target
	th := sched.ScheduleNewThread(t)
	t.AppHandle = uint32(target.Handle)
	target.ThreadHandles = append(target.ThreadHandles, th)
	return th, nil
}

// StartSystemLoader loads image into the currently active (kernel)
// address space and schedules it, wiring its standard streams to the
// console/keyboard streams the platform provides, per spec.md §4.12.
// console and keyboard are passed in rather than constructed here,
// since the concrete terminal/keyboard drivers are out of scope.
func StartSystemLoader(image []byte, execPath, cwd string, console, keyboard Stream) (Handle, elf.Status) {
	result, st := elfLoadFn(image, nil, true)
	if st != elf.Loaded {
		return invalidHandle, st
	}

	a := newAppFromResult(execPath, cwd, result)
	a.Stdout = console
	a.Stderr = console
	a.Stdin = keyboard

	if _, err := scheduleForStart(a, result); err != nil {
		return invalidHandle, elf.StatusLoadError
	}

	systemLoaderHandle = a.Handle
	return a.Handle, elf.Running
}

// StartNewApp loads image into a fresh address space, wires its three
// standard streams per the stdio configs, and schedules it, per
// spec.md §4.12. caller is the App requesting the launch; its working
// directory and, for INHERIT targets, its own streams are used when
// resolving stdio.
func StartNewApp(caller *App, image []byte, execPath string, argv []string, cwd string, stdinCfg, stdoutCfg, stderrCfg StdIOConfig) (Handle, elf.Status) {
	result, st := elfLoadFn(image, argv, false)
	if st != elf.Loaded {
		return invalidHandle, st
	}

	a := newAppFromResult(execPath, cwd, result)

	stdin, stdout, stderr, ok := resolveStdio(caller, a, stdinCfg, stdoutCfg, stderrCfg)
	if !ok {
		return invalidHandle, elf.StatusBadStdio
	}
	a.Stdin, a.Stdout, a.Stderr = stdin, stdout, stderr

	if _, err := scheduleForStart(a, result); err != nil {
		return invalidHandle, elf.StatusLoadError
	}

	return a.Handle, elf.Running
}

// freeVAS releases caller's address space exactly once; guarded
// because both ExitRunningApp and the THREAD_TERMINATED hook can
// observe this App's thread list reaching empty.
func freeVAS(a *App) {
	if a.vasFreed {
		return
	}
	a.vasFreed = true
	vmm.FreeAddressSpace(a.BasePageTable, freePhysicalFrame)
}

// freePhysicalFrame is handed to vmm.FreeAddressSpace. The boot-time
// frame allocator (kernel/mem/pmm/allocator) has no free path yet, so
// this intentionally drops the frame rather than returning it to a
// pool -- the same limitation kernel/elf's freeSegments documents.
func freePhysicalFrame(f pmm.Frame) {
	_ = f
}

// ExitRunningApp terminates the active App: closes its std streams,
// frees its address space, terminates every other thread it owns,
// closes every node and directory stream it has open, wakes every
// thread parked in its join_waiters, and finally exits the calling
// thread. Per spec.md §4.12/§9, the system loader app may never exit.
func ExitRunningApp(code int32) {
	caller := activeApp
	if caller.Handle == systemLoaderHandle {
		kfmt.Panic(errSystemLoaderExit)
		return
	}

	caller.ExitCode = code
	caller.Stdin.Close()
	caller.Stdout.Close()
	caller.Stderr.Close()

	freeVAS(caller)

	others := append([]sched.Handle(nil), caller.ThreadHandles...)
	running := sched.RunningThread().Handle
	for _, h := range others {
		if h == running {
			continue
		}
		sched.TerminateThread(h)
	}

	nodes := append([]vfs.Handle(nil), caller.NodeHandles...)
	for _, h := range nodes {
		vfs.Close(h)
	}

	dirStreams := append([]vfs.Handle(nil), caller.DirectoryStreamHandles...)
	for _, h := range dirStreams {
		vfs.CloseDirectoryStream(h)
	}

	sched.Lock()
	waiters := caller.JoinWaiters
	caller.JoinWaiters = nil
	for _, w := range waiters {
		w.JoinTarget = 0
		sched.EnqueueReadyLocked(w)
	}
	sched.Unlock()

	sched.ExitCurrent()
}

// Join blocks the calling thread until the App identified by handle
// exits, then returns its exit code. Returns JoinNoSuchApp immediately
// if handle names no registered App. Holding target in a local
// variable for the duration of the wait keeps it reachable even after
// ExitRunningApp drops it from the App table, since Go's garbage
// collector -- unlike the reference-counted pointer the original
// implementation holds for the same reason -- only reclaims it once
// this function (and the stack frame the scheduler parked) lets go.
func Join(handle Handle) int32 {
	target, ok := apps[handle]
	if !ok {
		return JoinNoSuchApp
	}

	sched.Lock()
	caller := sched.RunningThread()
	caller.State = sched.Waiting
	caller.JoinTarget = uint32(handle)
	target.JoinWaiters = append(target.JoinWaiters, caller)
	sched.ExecuteNextThreadLocked()
	sched.Unlock()

	return target.ExitCode
}
