package timer

import (
	"testing"

	"runeos/kernel/irq"
)

// withMocks substitutes every hardware-adjacent indirection this
// package calls through, restoring the originals once the test ends,
// matching the defer-restore idiom kernel/irq's own tests use for
// handleInterruptFn.
func withMocks(t *testing.T) (frequencySeen *uint32, installedLine *irq.IRQLine, sleptMs *uint32) {
	t.Helper()
	origSetFreq := setTimerFrequencyFn
	origInstall := installHandlerFn
	origSleep := sleepFn
	origTick := tickFn
	t.Cleanup(func() {
		setTimerFrequencyFn = origSetFreq
		installHandlerFn = origInstall
		sleepFn = origSleep
		tickFn = origTick
	})

	frequencySeen = new(uint32)
	installedLine = new(irq.IRQLine)
	sleptMs = new(uint32)

	setTimerFrequencyFn = func(hz uint32) { *frequencySeen = hz }
	installHandlerFn = func(line irq.IRQLine, handle uint32, name string, h irq.Handler) {
		*installedLine = line
	}
	sleepFn = func(ms uint32) { *sleptMs = ms }

	return
}

func TestInitDefaultsZeroFrequency(t *testing.T) {
	freqSeen, lineSeen, _ := withMocks(t)

	Init(0)

	if Frequency() != DefaultFrequencyHz {
		t.Fatalf("expected Frequency() to report the default %d, got %d", DefaultFrequencyHz, Frequency())
	}
	if *freqSeen != DefaultFrequencyHz {
		t.Fatalf("expected sched.SetTimerFrequency called with the default, got %d", *freqSeen)
	}
	if *lineSeen != Line {
		t.Fatalf("expected the IRQ handler installed on %v, got %v", Line, *lineSeen)
	}
}

func TestInitHonorsExplicitFrequency(t *testing.T) {
	freqSeen, _, _ := withMocks(t)

	Init(500)

	if Frequency() != 500 {
		t.Fatalf("expected Frequency() to report 500, got %d", Frequency())
	}
	if *freqSeen != 500 {
		t.Fatalf("expected sched.SetTimerFrequency called with 500, got %d", *freqSeen)
	}
}

func TestSleepDelegatesToScheduler(t *testing.T) {
	_, _, sleptMs := withMocks(t)

	Sleep(250)

	if *sleptMs != 250 {
		t.Fatalf("expected Sleep to delegate 250ms to the scheduler, got %d", *sleptMs)
	}
}

func TestHandleTickInvokesTickFnAndClaimsInterrupt(t *testing.T) {
	origTick := tickFn
	t.Cleanup(func() { tickFn = origTick })

	called := false
	tickFn = func() { called = true }

	result := handleTick(Line, nil, nil)

	if !called {
		t.Fatal("expected handleTick to invoke tickFn")
	}
	if result != irq.Handled {
		t.Fatalf("expected handleTick to always claim the interrupt, got %v", result)
	}
}
