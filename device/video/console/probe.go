package console

import "runeos/device"
import "runeos/kernel/cpu"
import "runeos/kernel/hal/multiboot"
import "runeos/kernel/mem/vmm"

var (
	getFramebufferInfoFn = multiboot.GetFramebufferInfo
	mapRegionFn          = vmm.MapRegion
	portWriteByteFn      = cpu.PortWriteByte

	// ProbeFuncs is a slice of device probe functions that is used by
	// the hal package to probe for console device hardware. Each driver
	// should use an init() block to append its probe function to this list.
	ProbeFuncs []device.ProbeFn
)
