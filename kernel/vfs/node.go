package vfs

// Node is an open file or directory handle, per spec.md §3. While a
// Node sits in the open-node table its onClose closure is the
// exclusive decrementor of the node-ref-count entry for its path.
type Node struct {
	Handle        Handle
	Name          string
	AbsolutePath  string
	Mode          Mode
	Attributes    Attribute
	Size          uint64
	DriverPrivate interface{}

	onClose OnCloseFn
}

// NewNode constructs the Node a Driver's Open method hands back to
// the VFS core; the core fills in Handle/AbsolutePath/Mode/onClose
// itself once the driver call returns successfully.
func NewNode(name string, attrs Attribute, size uint64, driverPrivate interface{}) *Node {
	return &Node{Name: name, Attributes: attrs, Size: size, DriverPrivate: driverPrivate}
}

// NodeRefCount is the global bookkeeping record that lets Delete be
// deferred until the last Close, per spec.md §3.
type NodeRefCount struct {
	Path          string
	RefCount      int
	DeletePending bool
}

var (
	openNodes = map[Handle]*Node{}
	refCounts = map[string]*NodeRefCount{}
)

// Open resolves path, delegates to the owning driver, and on success
// inserts the returned Node into the open-node table, increments (or
// creates) its ref-count entry, and fires NODE_OPENED. On driver
// failure the handle drawn for the call is discarded; handles are
// never reused.
func Open(path string, mode Mode) (Handle, *Node, IOStatus) {
	if !isAbsolute(path) {
		return invalidHandle, nil, StatusBadPath
	}

	h, st := nextHandle()
	if st != StatusOK {
		return invalidHandle, nil, st
	}

	mp, relative := resolveMount(path)
	d := drivers[mp.Driver]

	node, st := d.Open(mp.Device, mp.Path, relative, mode, func() { onNodeClose(path, h) })
	if st != StatusOK && st != StatusOpened {
		return invalidHandle, nil, st
	}

	node.Handle = h
	node.AbsolutePath = path
	node.Mode = mode
	node.onClose = func() { onNodeClose(path, h) }
	openNodes[h] = node

	rc, ok := refCounts[path]
	if !ok {
		rc = &NodeRefCount{Path: path}
		refCounts[path] = rc
	}
	rc.RefCount++

	fireNodeOpened(node)
	return h, node, StatusOpened
}

// Close releases the node identified by handle: it removes it from
// the open-node table, fires NODE_CLOSED, and invokes the driver's
// onClose closure (which in turn drives the ref-count decrement via
// onNodeClose below).
func Close(handle Handle) IOStatus {
	node, ok := openNodes[handle]
	if !ok {
		return StatusNotFound
	}
	if node.onClose != nil {
		node.onClose()
	} else {
		onNodeClose(node.AbsolutePath, handle)
	}
	return StatusOK
}

// onNodeClose is the closure every Open call wraps around the
// driver's own onClose: it is the exclusive decrementor of path's
// ref-count entry, per spec.md §3's invariant. Reaching zero removes
// the entry and, if a delete was deferred while the count was
// positive, issues it now -- it is guaranteed to succeed because the
// count just reached zero (spec.md §4.10).
func onNodeClose(path string, handle Handle) {
	node, ok := openNodes[handle]
	if ok {
		delete(openNodes, handle)
		fireNodeClosed(node)
	}

	rc, ok := refCounts[path]
	if !ok {
		return
	}
	rc.RefCount--
	if rc.RefCount > 0 {
		return
	}

	delete(refCounts, path)
	if rc.DeletePending {
		mp, relative := resolveMount(path)
		drivers[mp.Driver].DeleteNode(mp.Device, relative)
	}
}

// FindNode resolves path and asks the owning driver for its metadata
// without opening it.
func FindNode(path string) (NodeInfo, IOStatus) {
	if !isAbsolute(path) {
		return NodeInfo{}, StatusBadPath
	}
	mp, relative := resolveMount(path)
	return drivers[mp.Driver].FindNode(mp.Device, relative)
}

// DeleteNode implements spec.md §4.10/§8.8's delete-on-last-close
// semantics. A mount point can never be deleted. If any open node is a
// strict descendant of path (a directory containing an open node) the
// delete is refused outright rather than deferred, since deferring
// would let callers observe a directory disappearing out from under
// an open descendant. path itself being open is not refused here: it
// falls through to the ref-count check below, which defers the delete
// until the last Close instead of denying it.
func DeleteNode(path string) IOStatus {
	if IsMountPoint(path) {
		return StatusAccessDenied
	}
	for _, n := range openNodes {
		if isStrictDescendant(n.AbsolutePath, path) {
			return StatusAccessDenied
		}
	}

	rc, open := refCounts[path]
	if !open || rc.RefCount == 0 {
		mp, relative := resolveMount(path)
		return drivers[mp.Driver].DeleteNode(mp.Device, relative)
	}

	rc.DeletePending = true
	return StatusDeleted
}

// isStrictDescendant reports whether child is nested under parent,
// excluding the case where child and parent are the same path.
func isStrictDescendant(child, parent string) bool {
	if child == parent {
		return false
	}
	return isPrefix(parent, child)
}

// RefCount returns the current ref-count entry for path, or nil if
// the path has no open nodes. Exposed for tests asserting spec.md
// §8.7's invariant.
func RefCount(path string) *NodeRefCount {
	return refCounts[path]
}
