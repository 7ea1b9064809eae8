package elf

// Status is the uniform result code for every elf package operation,
// covering both the success states (Loaded/Running) and the failure
// kinds spec.md §4.11/§7 lists together as one vocabulary.
type Status uint8

const (
	Loaded Status = iota
	Running
	StatusIOError
	StatusBadHeader
	StatusBadSegment
	StatusBadVendorInfo
	StatusMemoryError
	StatusLoadError
	StatusBadStdio
)
