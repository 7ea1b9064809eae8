package device

import (
	"io"
	"runeos/kernel"
)

// Driver is an interface implemented by all drivers.
type Driver interface {
	// DriverName returns the name of the driver.
	DriverName() string

	// DriverVersion returns the driver version.
	DriverVersion() (major uint16, minor uint16, patch uint16)

	// DriverInit initializes the device driver, writing progress and
	// diagnostic output to w.
	DriverInit(w io.Writer) *kernel.Error
}

// ProbeFn attempts to detect a particular piece of hardware, returning the
// Driver instance that can manage it or nil if the hardware is not present.
type ProbeFn func() Driver

// DetectOrder specifies the relative order in which a driver's ProbeFn is
// invoked during hardware detection. Drivers that other drivers depend on
// (e.g. a console needed for early boot output) use a lower order so that
// they are probed first.
type DetectOrder int

const (
	// DetectOrderEarly is used by drivers that must be probed before
	// everything else, such as the boot console.
	DetectOrderEarly DetectOrder = iota

	// DetectOrderBeforeACPI is used by drivers that must be probed before
	// ACPI tables are parsed.
	DetectOrderBeforeACPI

	// DetectOrderACPI is used by the ACPI driver itself.
	DetectOrderACPI

	// DetectOrderLast is used by drivers that should be probed after
	// everything else, such as drivers that attach themselves to an
	// already-detected console.
	DetectOrderLast
)

// DriverInfo associates a driver's ProbeFn with its detection order.
type DriverInfo struct {
	Order DetectOrder
	Probe ProbeFn
}

// DriverInfoList implements sort.Interface, ordering entries by Order.
type DriverInfoList []*DriverInfo

func (l DriverInfoList) Len() int           { return len(l) }
func (l DriverInfoList) Less(i, j int) bool { return l[i].Order < l[j].Order }
func (l DriverInfoList) Swap(i, j int)      { l[i], l[j] = l[j], l[i] }

// registeredDrivers holds every DriverInfo registered via RegisterDriver.
var registeredDrivers DriverInfoList

// RegisterDriver adds info to the set of drivers probed by DetectHardware.
// Drivers call this from an init() function.
func RegisterDriver(info *DriverInfo) {
	registeredDrivers = append(registeredDrivers, info)
}

// DriverList returns the full set of registered drivers.
func DriverList() DriverInfoList {
	return registeredDrivers
}
