package vfs

import "strings"

// Handle identifies an open Node or DirectoryStream.
type Handle uint32

// invalidHandle is returned alongside StatusOutOfHandles.
const invalidHandle Handle = 0

// MountPoint records where a storage device's root directory is
// spliced into the global namespace.
type MountPoint struct {
	Path     string
	Driver   string
	Device   DeviceID
}

var (
	drivers = map[string]Driver{}

	// mounts is kept both as a map (fast exact lookup) and, implicitly,
	// iterated for longest-prefix resolution; the first call to Mount
	// must target "/" so the root is always present after boot mounting.
	mounts = map[string]*MountPoint{}

	handleCounter Handle = 1
)

// RegisterDriver adds a named filesystem driver to the driver table.
// Re-registering an existing name replaces it.
func RegisterDriver(name string, d Driver) {
	drivers[name] = d
}

// Format asks driverName to format dev. Returns UnknownDriver if no
// such driver is registered.
func Format(driverName string, dev DeviceID) FormatStatus {
	d, ok := drivers[driverName]
	if !ok {
		return UnknownDriver
	}
	return d.Format(dev)
}

// Mount splices driverName's view of dev into the namespace at path.
// The first call must mount "/"; spec.md §3 requires the root to
// always be mounted first so that resolution never fails.
func Mount(path, driverName string, dev DeviceID) MountStatus {
	if !isAbsolute(path) {
		return MountBadPath
	}
	if len(mounts) == 0 && path != "/" {
		return MountBadPath
	}
	if _, exists := mounts[path]; exists {
		return AlreadyMounted
	}
	d, ok := drivers[driverName]
	if !ok {
		return MountDevError
	}
	if st := d.Mount(dev); st != Mounted {
		return st
	}
	mounts[path] = &MountPoint{Path: path, Driver: driverName, Device: dev}
	return Mounted
}

// Unmount removes the mount at path, asking its driver to flush first.
// Unmounting "/" is rejected: the root must always resolve.
func Unmount(path string) MountStatus {
	if path == "/" {
		return NotSupported
	}
	mp, ok := mounts[path]
	if !ok {
		return NotMounted
	}
	d := drivers[mp.Driver]
	if st := d.Unmount(mp.Device); st != Mounted {
		return st
	}
	delete(mounts, path)
	return Mounted
}

// resolveMount implements spec.md §4.10/§8.9's longest-prefix mount
// resolution: of every registered mount path that is a prefix of
// query, the longest one wins. Because "/" is
// always mounted, resolution never fails; the returned relative path
// is query with the winning mount's prefix stripped.
func resolveMount(query string) (*MountPoint, string) {
	var best *MountPoint
	bestLen := -1

	for path, mp := range mounts {
		if !isPrefix(path, query) {
			continue
		}
		if len(path) > bestLen {
			best = mp
			bestLen = len(path)
		}
	}

	relative := strings.TrimPrefix(query, best.Path)
	relative = strings.TrimPrefix(relative, "/")
	return best, relative
}

// isPrefix reports whether mountPath is a path-component prefix of
// query ("/" is a prefix of everything; "/a" is a prefix of "/a" and
// "/a/b" but not "/ab").
func isPrefix(mountPath, query string) bool {
	if mountPath == "/" {
		return true
	}
	if !strings.HasPrefix(query, mountPath) {
		return false
	}
	rest := query[len(mountPath):]
	return rest == "" || rest[0] == '/'
}

func isAbsolute(path string) bool {
	return strings.HasPrefix(path, "/")
}

// IsMountPoint reports whether path exactly names a registered mount.
func IsMountPoint(path string) bool {
	_, ok := mounts[path]
	return ok
}

func nextHandle() (Handle, IOStatus) {
	if handleCounter == 0 {
		return invalidHandle, StatusOutOfHandles
	}
	h := handleCounter
	handleCounter++
	return h, StatusOK
}

// Create resolves path to its owning mount and delegates creation to
// the driver. If path already names a mount point, Create fails with
// StatusFound rather than delegating.
func Create(path string, attrs Attribute) IOStatus {
	if !isAbsolute(path) {
		return StatusBadPath
	}
	if IsMountPoint(path) {
		return StatusFound
	}
	mp, relative := resolveMount(path)
	d := drivers[mp.Driver]
	if !d.IsValidFilePath(relative) {
		return StatusBadPath
	}
	return d.Create(mp.Device, relative, attrs)
}
