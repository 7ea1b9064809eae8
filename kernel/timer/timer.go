// Package timer drives preemption and sleep wake-ups from a periodic
// hardware interrupt, per spec.md §4.8.
package timer

import (
	"runeos/kernel/irq"
	"runeos/kernel/sched"
)

// DefaultFrequencyHz is the default periodic tick rate (1 kHz).
const DefaultFrequencyHz = 1000

// Line is the IRQ line the timer device raises. On the PC platform
// this is line 0 (the legacy PIT/HPET periodic interrupt); a
// reimplementation targeting APIC timers would route it elsewhere,
// which is why it is a var and not a const.
var Line irq.IRQLine = 0

const deviceHandle = 0xa11a5

// setTimerFrequencyFn, installHandlerFn and sleepFn are mockable
// indirections over kernel/sched and kernel/irq, the same fn-var idiom
// those packages' own tests already use, so Init and Sleep can be
// exercised without a real IDT/PIC or scheduler behind them.
var (
	frequencyHz = uint32(DefaultFrequencyHz)
	tickFn      = sched.Tick

	setTimerFrequencyFn = sched.SetTimerFrequency
	installHandlerFn    = irq.InstallHandler
	sleepFn             = sched.Sleep
)

// Init registers the timer's IRQ handler and records the configured
// frequency with the scheduler so that Sleep's millisecond argument
// converts correctly into tick counts.
func Init(hz uint32) {
	if hz == 0 {
		hz = DefaultFrequencyHz
	}
	frequencyHz = hz
	setTimerFrequencyFn(frequencyHz)
	installHandlerFn(Line, deviceHandle, "timer", handleTick)
}

// Frequency returns the configured tick rate.
func Frequency() uint32 {
	return frequencyHz
}

// handleTick is invoked by the IRQ dispatcher on every periodic
// interrupt. It always claims the interrupt (Handled): the timer is a
// single-purpose device and no other handler should see this line.
func handleTick(_ irq.IRQLine, _ *irq.Frame, _ *irq.Regs) irq.Result {
	tickFn()
	return irq.Handled
}

// Sleep parks the calling thread for approximately ms milliseconds.
// It is a thin pass-through to the scheduler's sleep-queue primitive;
// kept here (rather than only in kernel/sched) because spec.md §4.8
// specifies sleep(ms) as a Timer operation.
func Sleep(ms uint32) {
	sleepFn(ms)
}
