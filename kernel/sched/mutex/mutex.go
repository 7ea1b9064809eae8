// Package mutex implements a scheduler-integrated mutex: ownership
// plus a strict-FIFO wait queue, as specified in spec.md §4.7.
package mutex

import "runeos/kernel/sched"

// Handle uniquely identifies a Mutex.
type Handle uint32

// Mutex is a mutual-exclusion lock whose blocked waiters are parked in
// the scheduler's Waiting state rather than busy-waiting.
type Mutex struct {
	Handle Handle
	Name   string

	owner     *sched.Thread
	waitQueue []*sched.Thread
}

var (
	registry   = map[Handle]*Mutex{}
	nextHandle = Handle(1)
)

func init() {
	sched.RegisterWaitQueueRemover(removeFromAnyQueue)
}

// New creates and registers a named mutex, initially unowned.
func New(name string) *Mutex {
	m := &Mutex{Handle: nextHandle, Name: name}
	registry[m.Handle] = m
	nextHandle++
	return m
}

// Owner returns the thread currently holding m, or nil if it is free.
func (m *Mutex) Owner() *sched.Thread {
	return m.owner
}

// Lock acquires m. If m has no owner the caller becomes the owner
// immediately. Otherwise the caller is enqueued on m's wait queue,
// marked Waiting, and execute_next_thread() is invoked -- all under
// the scheduler lock, per spec.md §4.7. Lock returns once the caller
// has become the owner.
func (m *Mutex) Lock() {
	sched.Lock()

	if m.owner == nil {
		m.owner = sched.RunningThread()
		sched.Unlock()
		return
	}

	caller := sched.RunningThread()
	caller.State = sched.Waiting
	caller.MutexID = uint32(m.Handle)
	m.waitQueue = append(m.waitQueue, caller)
	sched.ExecuteNextThreadLocked()
	sched.Unlock()
}

// TryLock attempts to acquire m without blocking. It returns true if
// the caller became the owner.
func (m *Mutex) TryLock() bool {
	sched.Lock()
	defer sched.Unlock()

	if m.owner != nil {
		return false
	}
	m.owner = sched.RunningThread()
	return true
}

// Unlock releases m. It fails (returns false) if the caller is not the
// current owner. If the wait queue is non-empty, the head waiter
// (strict FIFO) becomes the new owner and is moved to Ready; otherwise
// m becomes unowned.
func (m *Mutex) Unlock() bool {
	sched.Lock()
	defer sched.Unlock()

	if m.owner != sched.RunningThread() {
		return false
	}

	if len(m.waitQueue) == 0 {
		m.owner = nil
		return true
	}

	next := m.waitQueue[0]
	m.waitQueue = m.waitQueue[1:]
	next.MutexID = 0
	m.owner = next
	sched.EnqueueReadyLocked(next)
	return true
}

// removeFromAnyQueue is registered with the scheduler so that
// TerminateThread can pull a Waiting thread out of whichever mutex's
// wait queue it sits on. t.MutexID identifies the mutex; a thread is
// never enqueued on more than one wait queue at a time.
func removeFromAnyQueue(t *sched.Thread) {
	m, ok := registry[Handle(t.MutexID)]
	if !ok {
		return
	}
	for i, w := range m.waitQueue {
		if w == t {
			m.waitQueue = append(m.waitQueue[:i], m.waitQueue[i+1:]...)
			return
		}
	}
}
