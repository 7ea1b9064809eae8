// Package app implements the App manager (spec.md §4.12): the App
// table, the boot-time kernel pseudo-app, event-hook wiring into
// kernel/sched and kernel/vfs that keeps each App's thread/node/
// directory-stream lists current, std-stream wiring, and the
// start/exit/join operations that load, run and tear down a process.
package app

import (
	"runeos/kernel/mem/pmm"
	"runeos/kernel/sched"
	"runeos/kernel/vfs"
)

// Handle uniquely identifies an App for the lifetime of the kernel.
type Handle uint32

const invalidHandle Handle = 0

// Version is the {major, minor, patch} triple carried by an
// executable's PT_NOTE vendor info, per spec.md §6.
type Version struct {
	Major, Minor, Patch uint32
}

// App is a running process: the owner of a set of threads, open VFS
// nodes and directory streams, and the three standard streams, per
// spec.md §3.
type App struct {
	Handle Handle
	Name   string

	Version Version
	Vendor  string

	WorkingDirectory string
	Location         string

	BasePageTable pmm.Frame
	EntryPoint    uintptr
	HeapStart     uintptr
	HeapLimit     uintptr

	ThreadHandles          []sched.Handle
	NodeHandles            []vfs.Handle
	DirectoryStreamHandles []vfs.Handle

	// JoinWaiters holds every thread parked in Join on this App,
	// per spec.md §4.12. Woken (state set Ready) in ExitRunningApp.
	JoinWaiters []*sched.Thread

	ExitCode int32

	Stdin, Stdout, Stderr Stream

	// vasFreed guards FreeVAS against running twice: both
	// ExitRunningApp and the THREAD_TERMINATED hook can observe this
	// App's thread list reaching empty (exiting terminates its own
	// other threads first, which empties the list one handle before
	// its own final termination does).
	vasFreed bool
}

var (
	apps       = map[Handle]*App{}
	nextHandle = Handle(1)

	// activeApp is the App owning the thread currently selected to
	// run, kept in sync by the THREAD_TERMINATED/CONTEXT_SWITCH hooks
	// in events.go, per spec.md §4.12.
	activeApp *App

	// systemLoaderHandle is recorded by StartSystemLoader; the system
	// loader app may never exit (spec.md §4.12, §9).
	systemLoaderHandle Handle
)

func newHandle() Handle {
	h := nextHandle
	nextHandle++
	return h
}

// Lookup returns the App with the given handle, or nil.
func Lookup(h Handle) *App {
	return apps[h]
}

// Active returns the App owning the currently scheduled thread.
func Active() *App {
	return activeApp
}

// SystemLoaderHandle returns the handle StartSystemLoader recorded.
func SystemLoaderHandle() Handle {
	return systemLoaderHandle
}

// Table returns every App currently registered, for diagnostics
// (spec.md's kernel-side equivalent of AppModule::dump_app_table).
func Table() []*App {
	out := make([]*App, 0, len(apps))
	for _, a := range apps {
		out = append(out, a)
	}
	return out
}
