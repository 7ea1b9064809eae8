package app

import (
	"runeos/kernel/sched"
	"runeos/kernel/vfs"
)

func init() {
	sched.OnThreadCreated(onThreadCreated)
	sched.OnThreadTerminated(onThreadTerminated)
	sched.OnContextSwitch(onContextSwitch)
	sched.RegisterWaitQueueRemover(removeFromJoinWaiters)

	vfs.OnNodeOpened(onNodeOpened)
	vfs.OnNodeClosed(onNodeClosed)
	vfs.OnDirectoryStreamOpened(onDirStreamOpened)
	vfs.OnDirectoryStreamClosed(onDirStreamClosed)
}

// onThreadCreated stamps the new thread's app_handle with the active
// app, per spec.md §4.12. A thread created as the first thread of a
// freshly loaded App has this corrected immediately afterwards by
// scheduleForStart, since the active app at creation time is still the
// caller that requested the load.
func onThreadCreated(t *sched.Thread) {
	if activeApp == nil {
		return
	}
	t.AppHandle = uint32(activeApp.Handle)
}

// onThreadTerminated removes the terminated thread from its owning
// App's thread list; if that empties the list, the App's address
// space is freed and the App is dropped from the table. It also
// applies the active-app switch rule shared with onContextSwitch.
func onThreadTerminated(ctx sched.ThreadTerminatedContext) {
	owner := apps[Handle(ctx.Terminated.AppHandle)]
	if owner != nil {
		removeThreadHandle(owner, ctx.Terminated.Handle)
		if len(owner.ThreadHandles) == 0 {
			freeVAS(owner)
			delete(apps, owner.Handle)
		}
	}

	if ctx.NextScheduled != nil {
		switchActiveApp(ctx.NextScheduled)
	}
}

func onContextSwitch(ctx sched.ContextSwitchContext) {
	if ctx.To != nil {
		switchActiveApp(ctx.To)
	}
}

func switchActiveApp(t *sched.Thread) {
	owner := apps[Handle(t.AppHandle)]
	if owner != nil {
		activeApp = owner
	}
}

func onNodeOpened(n *vfs.Node) {
	if activeApp != nil {
		activeApp.NodeHandles = append(activeApp.NodeHandles, n.Handle)
	}
}

func onNodeClosed(n *vfs.Node) {
	if activeApp != nil {
		removeNodeHandle(activeApp, n.Handle)
	}
}

func onDirStreamOpened(ds *vfs.DirectoryStream) {
	if activeApp != nil {
		activeApp.DirectoryStreamHandles = append(activeApp.DirectoryStreamHandles, ds.Handle)
	}
}

func onDirStreamClosed(ds *vfs.DirectoryStream) {
	if activeApp != nil {
		removeDirStreamHandle(activeApp, ds.Handle)
	}
}

// removeFromJoinWaiters is registered with the scheduler so that
// TerminateThread can pull a Waiting thread out of whichever App's
// join_waiters it sits on. t.JoinTarget identifies the App; a thread
// is never enqueued on more than one wait queue at a time.
func removeFromJoinWaiters(t *sched.Thread) {
	target, ok := apps[Handle(t.JoinTarget)]
	if !ok {
		return
	}
	for i, w := range target.JoinWaiters {
		if w == t {
			target.JoinWaiters = append(target.JoinWaiters[:i], target.JoinWaiters[i+1:]...)
			return
		}
	}
}

func removeThreadHandle(a *App, h sched.Handle) {
	for i, x := range a.ThreadHandles {
		if x == h {
			a.ThreadHandles = append(a.ThreadHandles[:i], a.ThreadHandles[i+1:]...)
			return
		}
	}
}

func removeNodeHandle(a *App, h vfs.Handle) {
	for i, x := range a.NodeHandles {
		if x == h {
			a.NodeHandles = append(a.NodeHandles[:i], a.NodeHandles[i+1:]...)
			return
		}
	}
}

func removeDirStreamHandle(a *App, h vfs.Handle) {
	for i, x := range a.DirectoryStreamHandles {
		if x == h {
			a.DirectoryStreamHandles = append(a.DirectoryStreamHandles[:i], a.DirectoryStreamHandles[i+1:]...)
			return
		}
	}
}
