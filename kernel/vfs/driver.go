// Package vfs implements the virtual file system core: mount-point
// resolution, a pluggable filesystem driver interface, the open-node
// table with its parallel node-reference-count table, and the
// directory-stream table, per spec.md §4.10.
package vfs

// IOStatus is the uniform status code the VFS core translates every
// driver result into, per spec.md §7.
type IOStatus uint8

const (
	StatusOK IOStatus = iota
	StatusFound
	StatusNotFound
	StatusBadPath
	StatusBadName
	StatusBadAttribute
	StatusExists
	StatusCreated
	StatusDeleted
	StatusOpened
	StatusAccessDenied
	StatusOutOfHandles
	StatusDevUnknown
	StatusDevError
	StatusDevOutOfMemory
)

// MountStatus is returned by Mount/Unmount.
type MountStatus uint8

const (
	Mounted MountStatus = iota
	AlreadyMounted
	NotMounted
	MountError
	NotSupported
	MountBadPath
	MountDevError
)

// FormatStatus is returned by Format.
type FormatStatus uint8

const (
	Formatted FormatStatus = iota
	FormatError
	UnknownDriver
	FormatDevError
)

// Attribute is a bitmask of node attribute flags, per spec.md §4.10.
type Attribute uint8

const (
	AttrFile Attribute = 1 << iota
	AttrDirectory
	AttrReadOnly
	AttrHidden
	AttrSystem
)

// Mode selects the access mode an Open call requests.
type Mode uint8

const (
	ModeRead Mode = iota
	ModeWrite
	ModeReadWrite
	ModeAppend
)

// NodeInfo is the metadata FindNode returns about a path, without
// opening it.
type NodeInfo struct {
	Name       string
	Attributes Attribute
	Size       uint64
}

// DeviceID identifies the storage device a mount is backed by; opaque
// to the VFS core, meaningful only to the owning Driver.
type DeviceID uint32

// OnCloseFn is handed to a Driver's Open/OpenDirectoryStream calls so
// that the driver can invoke it when its own resources backing the
// node are released; the VFS core's wrapper (see node.go) chains the
// ref-count/open-table bookkeeping around it.
type OnCloseFn func()

// Driver is the contract a concrete filesystem implementation (FAT,
// tmpfs, ...) satisfies. The core depends only on this interface --
// concrete drivers are out of scope per spec.md §1.
type Driver interface {
	Format(dev DeviceID) FormatStatus
	Mount(dev DeviceID) MountStatus
	Unmount(dev DeviceID) MountStatus
	IsValidFilePath(relative string) bool
	Create(dev DeviceID, relative string, attrs Attribute) IOStatus
	Open(dev DeviceID, mountPath, relative string, mode Mode, onClose OnCloseFn) (*Node, IOStatus)
	FindNode(dev DeviceID, relative string) (NodeInfo, IOStatus)
	DeleteNode(dev DeviceID, relative string) IOStatus
	OpenDirectoryStream(dev DeviceID, relative string, onClose OnCloseFn) (*DirectoryStream, IOStatus)
}
