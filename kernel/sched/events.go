package sched

// ThreadTerminatedContext is the payload published on THREAD_TERMINATED,
// matching the `{terminated, next_scheduled}` shape spec.md §6 names.
type ThreadTerminatedContext struct {
	Terminated    *Thread
	NextScheduled *Thread
}

// ContextSwitchContext is the payload published on CONTEXT_SWITCH.
type ContextSwitchContext struct {
	From   *Thread
	To     *Thread
	Reason string
}

var (
	threadCreatedHandlers    []func(*Thread)
	threadTerminatedHandlers []func(ThreadTerminatedContext)
	contextSwitchHandlers    []func(ContextSwitchContext)
)

// OnThreadCreated subscribes to the THREAD_CREATED event, fired once
// per call to ScheduleNewThread.
func OnThreadCreated(fn func(*Thread)) {
	threadCreatedHandlers = append(threadCreatedHandlers, fn)
}

// OnThreadTerminated subscribes to the THREAD_TERMINATED event, fired
// when a thread is moved into the terminated queue.
func OnThreadTerminated(fn func(ThreadTerminatedContext)) {
	threadTerminatedHandlers = append(threadTerminatedHandlers, fn)
}

// OnContextSwitch subscribes to the CONTEXT_SWITCH event, fired after
// the incoming thread's stack/VAS are loaded but before it resumes.
func OnContextSwitch(fn func(ContextSwitchContext)) {
	contextSwitchHandlers = append(contextSwitchHandlers, fn)
}

func fireThreadCreated(t *Thread) {
	for _, h := range threadCreatedHandlers {
		h(t)
	}
}

func fireThreadTerminated(terminated, next *Thread) {
	ctx := ThreadTerminatedContext{Terminated: terminated, NextScheduled: next}
	for _, h := range threadTerminatedHandlers {
		h(ctx)
	}
}

func fireContextSwitch(from, to *Thread, reason string) {
	ctx := ContextSwitchContext{From: from, To: to, Reason: reason}
	for _, h := range contextSwitchHandlers {
		h(ctx)
	}
}
