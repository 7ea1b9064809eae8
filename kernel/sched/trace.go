package sched

import (
	"io"

	"runeos/kernel/kfmt"
)

// traceCapacity bounds the context-switch ring buffer. Once full, the
// oldest entry is overwritten -- the trace is a rolling window, not a
// complete log.
const traceCapacity = 1024

// traceEvent is one captured context switch.
type traceEvent struct {
	tick   uint64
	from   Handle
	to     Handle
	reason string
}

var (
	traceEnabled bool
	traceBuf     [traceCapacity]traceEvent
	traceHead    int
	traceLen     int
)

// EnableTrace turns on context-switch trace capture. Capture is off by
// default: the ring buffer exists only to feed cmd/ktrace and costs a
// subscriber call on every switch once enabled.
func EnableTrace() {
	if traceEnabled {
		return
	}
	traceEnabled = true
	traceHead, traceLen = 0, 0
	OnContextSwitch(recordSwitch)
}

// DisableTrace turns off trace capture. Previously recorded events are
// left in the ring until the next EnableTrace resets it.
func DisableTrace() {
	traceEnabled = false
}

func recordSwitch(ctx ContextSwitchContext) {
	if !traceEnabled {
		return
	}

	var from, to Handle
	if ctx.From != nil {
		from = ctx.From.Handle
	}
	if ctx.To != nil {
		to = ctx.To.Handle
	}

	traceBuf[traceHead] = traceEvent{tick: curTick, from: from, to: to, reason: ctx.Reason}
	traceHead = (traceHead + 1) % traceCapacity
	if traceLen < traceCapacity {
		traceLen++
	}
}

// DumpTrace writes every captured context switch, oldest first, to w as
// one line each:
//
//	switch tick=<n> from=<handle> to=<handle> reason=<reason>
//
// cmd/ktrace parses this format to reconstruct a pprof profile.
func DumpTrace(w io.Writer) {
	start := traceHead - traceLen
	if start < 0 {
		start += traceCapacity
	}

	for i := 0; i < traceLen; i++ {
		ev := traceBuf[(start+i)%traceCapacity]
		kfmt.Fprintf(w, "switch tick=%d from=%d to=%d reason=%s\n", ev.tick, uint32(ev.from), uint32(ev.to), ev.reason)
	}
}
