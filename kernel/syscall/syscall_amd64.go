package syscall

// writeMSR writes value to the model-specific register at addr
// (`wrmsr`).
func writeMSR(addr uint32, value uint64)

// readMSR reads the model-specific register at addr (`rdmsr`).
func readMSR(addr uint32) uint64

// entryTrampolineAddr returns the address of the assembly entry point
// installed as LSTAR: swap GS to reach the per-core cached kernel
// stack (kernel/cpu.SwapGS), switch onto it, push the user return
// address, call Dispatch, then pop back to the user stack, `swapgs`,
// `sysretq`.
func entryTrampolineAddr() uintptr
