package vfs

// DirStreamState is the lazy-sequence cursor state a DirectoryStream
// can be in, per spec.md §3/§9 ("a lazy, non-restartable sequence
// interface: next() returns an item or end").
type DirStreamState uint8

const (
	DirStreamOK DirStreamState = iota
	DirStreamEnd
	DirStreamError
)

// DirEntry is a single item yielded by a DirectoryStream's Next call.
type DirEntry struct {
	Name       string
	Attributes Attribute
	Size       uint64
}

// DriverIterator is the narrow, non-restartable sequence a concrete
// driver yields entries through.
type DriverIterator interface {
	Next() (DirEntry, DirStreamState)
}

// DirectoryStream is an open handle over a directory's entries.
type DirectoryStream struct {
	Handle   Handle
	Name     string
	State    DirStreamState
	Iterator DriverIterator

	onClose OnCloseFn
}

// NewDirectoryStream constructs the DirectoryStream a Driver's
// OpenDirectoryStream method hands back to the VFS core.
func NewDirectoryStream(name string, it DriverIterator) *DirectoryStream {
	return &DirectoryStream{Name: name, Iterator: it}
}

var openDirStreams = map[Handle]*DirectoryStream{}

// OpenDirectoryStream resolves path, delegates to the owning driver,
// and on success registers the stream in the directory-stream table
// and fires DIRECTORY_STREAM_OPENED.
func OpenDirectoryStream(path string) (Handle, IOStatus) {
	if !isAbsolute(path) {
		return invalidHandle, StatusBadPath
	}

	h, st := nextHandle()
	if st != StatusOK {
		return invalidHandle, st
	}

	mp, relative := resolveMount(path)
	ds, st := drivers[mp.Driver].OpenDirectoryStream(mp.Device, relative, func() { closeDirStream(h) })
	if st != StatusOK && st != StatusOpened {
		return invalidHandle, st
	}

	ds.Handle = h
	ds.State = DirStreamOK
	ds.onClose = func() { closeDirStream(h) }
	openDirStreams[h] = ds
	fireDirStreamOpened(ds)
	return h, StatusOpened
}

// Next advances the stream identified by handle and returns its next
// entry, or an end/error state.
func Next(handle Handle) (DirEntry, DirStreamState) {
	ds, ok := openDirStreams[handle]
	if !ok {
		return DirEntry{}, DirStreamError
	}
	entry, state := ds.Iterator.Next()
	ds.State = state
	return entry, state
}

// CloseDirectoryStream releases the stream identified by handle.
func CloseDirectoryStream(handle Handle) IOStatus {
	ds, ok := openDirStreams[handle]
	if !ok {
		return StatusNotFound
	}
	if ds.onClose != nil {
		ds.onClose()
	} else {
		closeDirStream(handle)
	}
	return StatusOK
}

func closeDirStream(handle Handle) {
	ds, ok := openDirStreams[handle]
	if !ok {
		return
	}
	delete(openDirStreams, handle)
	fireDirStreamClosed(ds)
}
