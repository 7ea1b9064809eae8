package irq

import (
	"runeos/kernel/gate"
	"runeos/kernel/kfmt"
)

// ExceptionNum defines an exception number that can be
// passed to the HandleException and HandleExceptionWithCode
// functions.
type ExceptionNum uint8

const (
	// DivideByZero occurs when dividing by zero using DIV/IDIV.
	DivideByZero = ExceptionNum(0)

	// DoubleFault occurs when an exception is unhandled
	// or when an exception occurs while the CPU is
	// trying to call an exception handler.
	DoubleFault = ExceptionNum(8)

	// GPFException is raised when a general protection fault occurs.
	GPFException = ExceptionNum(13)

	// PageFaultException is raised when a PDT or
	// PDT-entry is not present or when a privilege
	// and/or RW protection check fails.
	PageFaultException = ExceptionNum(14)
)

// exceptionsWithErrorCode lists the vectors for which the CPU
// automatically pushes an error code onto the exception stack frame.
var exceptionsWithErrorCode = map[ExceptionNum]bool{
	8: true, 10: true, 11: true, 12: true, 13: true, 14: true, 17: true, 30: true,
}

// ExceptionHandler is a function that handles an exception that does not push
// an error code to the stack. If the handler returns, any modifications to the
// supplied Frame and/or Regs pointers will be propagated back to the location
// where the exception occurred.
type ExceptionHandler func(*Frame, *Regs)

// ExceptionHandlerWithCode is a function that handles an exception that pushes
// an error code to the stack. If the handler returns, any modifications to the
// supplied Frame and/or Regs pointers will be propagated back to the location
// where the exception occurred.
type ExceptionHandlerWithCode func(uint64, *Frame, *Regs)

var (
	exceptionHandlers         [32]ExceptionHandler
	exceptionHandlersWithCode [32]ExceptionHandlerWithCode

	// handleInterruptFn is mocked by tests and is automatically inlined
	// by the compiler when building the kernel.
	handleInterruptFn = gate.HandleInterrupt

	// clearInterruptFn is mocked by tests; see handleInterruptFn.
	clearInterruptFn = gate.ClearInterrupt
)

// HandleException registers an exception handler (without an error code) for
// the given interrupt number.
func HandleException(exceptionNum ExceptionNum, handler ExceptionHandler) {
	exceptionHandlers[exceptionNum] = handler
	handleInterruptFn(gate.InterruptNumber(exceptionNum), 0, func(gr *gate.Registers) {
		dispatchException(exceptionNum, gr)
	})
}

// HandleExceptionWithCode registers an exception handler (with an error code)
// for the given interrupt number.
func HandleExceptionWithCode(exceptionNum ExceptionNum, handler ExceptionHandlerWithCode) {
	exceptionHandlersWithCode[exceptionNum] = handler
	handleInterruptFn(gate.InterruptNumber(exceptionNum), 0, func(gr *gate.Registers) {
		dispatchException(exceptionNum, gr)
	})
}

// dispatchException is installed as the gate-level handler for every
// exception vector that has a registered handler. It reassembles the
// split Frame/Regs view that the rest of this package (and vmm's page
// fault handler) depends on from the flat gate.Registers snapshot, and
// falls back to a fatal register dump when no handler recovers the
// fault -- per spec, an unhandled exception is always fatal.
func dispatchException(num ExceptionNum, gr *gate.Registers) {
	frame := &Frame{RIP: gr.RIP, CS: gr.CS, RFlags: gr.RFlags, RSP: gr.RSP, SS: gr.SS}
	regs := &Regs{
		RAX: gr.RAX, RBX: gr.RBX, RCX: gr.RCX, RDX: gr.RDX,
		RSI: gr.RSI, RDI: gr.RDI, RBP: gr.RBP,
		R8: gr.R8, R9: gr.R9, R10: gr.R10, R11: gr.R11,
		R12: gr.R12, R13: gr.R13, R14: gr.R14, R15: gr.R15,
	}

	if exceptionsWithErrorCode[num] {
		if h := exceptionHandlersWithCode[num]; h != nil {
			h(gr.Info, frame, regs)
			return
		}
	} else if h := exceptionHandlers[num]; h != nil {
		h(frame, regs)
		return
	}

	kfmt.Printf("\nunhandled exception %d\n", num)
	regs.Print()
	frame.Print()
	for {
		haltFn()
	}
}
