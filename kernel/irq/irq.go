package irq

import (
	"runeos/kernel/gate"
)

// firstIRQVector is the interrupt vector that IRQ line 0 is routed to.
// Vectors below this one are reserved for CPU exceptions.
const firstIRQVector = 32

// IRQLine identifies a hardware interrupt line (0-223), independent of
// whichever vector the active PIC driver happens to route it to.
type IRQLine uint8

// Result is returned by an installed IRQ handler to tell the dispatcher
// whether the interrupt was serviced.
type Result uint8

const (
	// Pending indicates that the handler did not recognize the
	// interrupt as belonging to its device; the next handler on the
	// line (if any) gets a chance to claim it.
	Pending Result = iota
	// Handled indicates that the handler serviced the interrupt;
	// dispatch for this line stops here.
	Handled
)

// Handler services an interrupt raised on an IRQLine.
type Handler func(line IRQLine, frame *Frame, regs *Regs) Result

// PICDriver abstracts over the interrupt controller hardware (8259 PIC,
// IOAPIC, ...). The core depends only on this contract; concrete
// drivers are out of scope.
type PICDriver interface {
	// Start attempts to bring up the controller. It returns false if
	// this driver does not apply to the detected hardware.
	Start() bool

	// Mask disables delivery of the given IRQ line.
	Mask(line IRQLine)

	// Unmask enables delivery of the given IRQ line.
	Unmask(line IRQLine)

	// SendEOI signals end-of-interrupt for the given line.
	SendEOI(line IRQLine)
}

type registeredHandler struct {
	deviceHandle uint32
	deviceName   string
	handler      Handler
}

type lineState struct {
	handlers      []registeredHandler
	pendingCount  uint64
	manualEOISent bool
}

var (
	activePIC PICDriver
	lines     [256 - firstIRQVector]lineState
)

// Init probes each registered PIC driver in order; the first one whose
// Start method succeeds becomes the active PIC driver. It returns false
// if none of the supplied drivers could be started.
func Init(drivers []PICDriver) bool {
	for _, drv := range drivers {
		if drv.Start() {
			activePIC = drv
			return true
		}
	}
	return false
}

// ActivePIC returns the PIC driver selected by Init, or nil if Init has
// not yet succeeded.
func ActivePIC() PICDriver {
	return activePIC
}

// InstallHandler registers handler as a consumer of the given IRQ line.
// Handlers for the same line are invoked in the order they were
// installed until one returns Handled. Installing the first handler
// for a line unmasks it on the active PIC and enables its IDT gate;
// repeated installs just append to the line's handler list.
func InstallHandler(line IRQLine, deviceHandle uint32, deviceName string, handler Handler) {
	st := &lines[line]
	firstHandler := len(st.handlers) == 0
	st.handlers = append(st.handlers, registeredHandler{deviceHandle, deviceName, handler})

	if firstHandler {
		vector := gate.InterruptNumber(firstIRQVector + uint8(line))
		handleInterruptFn(vector, 0, func(gr *gate.Registers) {
			dispatchIRQ(line, gr)
		})
		if activePIC != nil {
			activePIC.Unmask(line)
		}
	}
}

// UninstallHandler removes a previously installed handler for the given
// device on the given line. Removing the last handler for a line masks
// it back on the active PIC and disables its IDT gate, mirroring what
// InstallHandler does for the first handler, per spec.md §4.5.
func UninstallHandler(line IRQLine, deviceHandle uint32) {
	st := &lines[line]
	for i, rh := range st.handlers {
		if rh.deviceHandle == deviceHandle {
			st.handlers = append(st.handlers[:i], st.handlers[i+1:]...)
			break
		}
	}

	if len(st.handlers) == 0 {
		if activePIC != nil {
			activePIC.Mask(line)
		}
		vector := gate.InterruptNumber(firstIRQVector + uint8(line))
		clearInterruptFn(vector)
	}
}

// ManualEOI lets a handler signal that it already sent the
// end-of-interrupt itself, so dispatchIRQ should not send a second one
// once every handler has run.
func ManualEOI(line IRQLine) {
	lines[line].manualEOISent = true
}

func dispatchIRQ(line IRQLine, gr *gate.Registers) {
	st := &lines[line]
	st.manualEOISent = false

	frame := &Frame{RIP: gr.RIP, CS: gr.CS, RFlags: gr.RFlags, RSP: gr.RSP, SS: gr.SS}
	regs := &Regs{
		RAX: gr.RAX, RBX: gr.RBX, RCX: gr.RCX, RDX: gr.RDX,
		RSI: gr.RSI, RDI: gr.RDI, RBP: gr.RBP,
		R8: gr.R8, R9: gr.R9, R10: gr.R10, R11: gr.R11,
		R12: gr.R12, R13: gr.R13, R14: gr.R14, R15: gr.R15,
	}

	handled := false
	for _, rh := range st.handlers {
		if rh.handler(line, frame, regs) == Handled {
			handled = true
			break
		}
	}
	if !handled {
		st.pendingCount++
	}

	if !st.manualEOISent && activePIC != nil {
		activePIC.SendEOI(line)
	}
}

// PendingCount returns the number of dispatches for line that no
// installed handler claimed.
func PendingCount(line IRQLine) uint64 {
	return lines[line].pendingCount
}
