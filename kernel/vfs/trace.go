package vfs

import (
	"io"

	"runeos/kernel/kfmt"
)

// traceCapacity bounds the open/close ring buffer the same way
// kernel/sched's context-switch trace does.
const traceCapacity = 1024

type traceEvent struct {
	seq    uint64
	op     string
	handle Handle
	path   string
}

var (
	traceEnabled bool
	traceBuf     [traceCapacity]traceEvent
	traceHead    int
	traceLen     int
	traceSeq     uint64
)

// EnableTrace turns on open/close trace capture, feeding cmd/ktrace.
func EnableTrace() {
	if traceEnabled {
		return
	}
	traceEnabled = true
	traceHead, traceLen = 0, 0
	OnNodeOpened(func(n *Node) { recordTrace("open", n) })
	OnNodeClosed(func(n *Node) { recordTrace("close", n) })
}

// DisableTrace turns off open/close trace capture.
func DisableTrace() {
	traceEnabled = false
}

func recordTrace(op string, n *Node) {
	if !traceEnabled {
		return
	}

	traceSeq++
	traceBuf[traceHead] = traceEvent{seq: traceSeq, op: op, handle: n.Handle, path: n.AbsolutePath}
	traceHead = (traceHead + 1) % traceCapacity
	if traceLen < traceCapacity {
		traceLen++
	}
}

// DumpTrace writes every captured open/close event, oldest first, to w
// as one line each:
//
//	<op> seq=<n> handle=<handle> path=<path>
//
// cmd/ktrace parses this format to reconstruct a pprof profile.
func DumpTrace(w io.Writer) {
	start := traceHead - traceLen
	if start < 0 {
		start += traceCapacity
	}

	for i := 0; i < traceLen; i++ {
		ev := traceBuf[(start+i)%traceCapacity]
		kfmt.Fprintf(w, "%s seq=%d handle=%d path=%s\n", ev.op, ev.seq, uint32(ev.handle), ev.path)
	}
}
