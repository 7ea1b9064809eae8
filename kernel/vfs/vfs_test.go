package vfs

import (
	"testing"

	. "gopkg.in/check.v1"
)

func Test(t *testing.T) { TestingT(t) }

// memDriver is a trivial in-memory Driver used to exercise the VFS
// core's table invariants without a real storage backend.
type memDriver struct {
	files map[string]bool
}

func newMemDriver() *memDriver { return &memDriver{files: map[string]bool{}} }

func (d *memDriver) Format(DeviceID) FormatStatus { return Formatted }
func (d *memDriver) Mount(DeviceID) MountStatus   { return Mounted }
func (d *memDriver) Unmount(DeviceID) MountStatus { return Mounted }
func (d *memDriver) IsValidFilePath(relative string) bool {
	return relative != ""
}
func (d *memDriver) Create(_ DeviceID, relative string, attrs Attribute) IOStatus {
	if d.files[relative] {
		return StatusExists
	}
	d.files[relative] = true
	return StatusCreated
}
func (d *memDriver) Open(_ DeviceID, _, relative string, mode Mode, onClose OnCloseFn) (*Node, IOStatus) {
	if !d.files[relative] {
		d.files[relative] = true
	}
	return NewNode(relative, AttrFile, 0, nil), StatusOpened
}
func (d *memDriver) FindNode(_ DeviceID, relative string) (NodeInfo, IOStatus) {
	if !d.files[relative] {
		return NodeInfo{}, StatusNotFound
	}
	return NodeInfo{Name: relative, Attributes: AttrFile}, StatusFound
}
func (d *memDriver) DeleteNode(_ DeviceID, relative string) IOStatus {
	if !d.files[relative] {
		return StatusNotFound
	}
	delete(d.files, relative)
	return StatusDeleted
}
func (d *memDriver) OpenDirectoryStream(_ DeviceID, relative string, onClose OnCloseFn) (*DirectoryStream, IOStatus) {
	return NewDirectoryStream(relative, &emptyIterator{}), StatusOpened
}

type emptyIterator struct{}

func (emptyIterator) Next() (DirEntry, DirStreamState) { return DirEntry{}, DirStreamEnd }

func resetVFS() {
	drivers = map[string]Driver{}
	mounts = map[string]*MountPoint{}
	openNodes = map[Handle]*Node{}
	refCounts = map[string]*NodeRefCount{}
	openDirStreams = map[Handle]*DirectoryStream{}
	handleCounter = 1
}

type vfsSuite struct {
	drv *memDriver
}

var _ = Suite(&vfsSuite{})

func (s *vfsSuite) SetUpTest(c *C) {
	resetVFS()
	s.drv = newMemDriver()
	RegisterDriver("mem", s.drv)
	c.Assert(Mount("/", "mem", 0), Equals, Mounted)
}

// TestMountLongestPrefix checks spec.md §8.9: given mounts /, /a,
// /a/b/c, resolution picks the longest matching prefix.
func (s *vfsSuite) TestMountLongestPrefix(c *C) {
	c.Assert(Mount("/a", "mem", 1), Equals, Mounted)
	c.Assert(Mount("/a/b/c", "mem", 2), Equals, Mounted)

	mp, rel := resolveMount("/a/b/c/d")
	c.Assert(mp.Path, Equals, "/a/b/c")
	c.Assert(rel, Equals, "d")

	mp, rel = resolveMount("/a/x")
	c.Assert(mp.Path, Equals, "/a")
	c.Assert(rel, Equals, "x")

	mp, rel = resolveMount("/x")
	c.Assert(mp.Path, Equals, "/")
	c.Assert(rel, Equals, "x")
}

// TestRefCountInvariant checks spec.md §8.7: the number of open-node
// entries for a path always equals its ref-count entry.
func (s *vfsSuite) TestRefCountInvariant(c *C) {
	h1, _, st := Open("/f", ModeRead)
	c.Assert(st, Equals, StatusOpened)
	c.Assert(RefCount("/f").RefCount, Equals, 1)

	h2, _, st := Open("/f", ModeRead)
	c.Assert(st, Equals, StatusOpened)
	c.Assert(RefCount("/f").RefCount, Equals, 2)

	c.Assert(Close(h1), Equals, StatusOK)
	c.Assert(RefCount("/f").RefCount, Equals, 1)

	c.Assert(Close(h2), Equals, StatusOK)
	c.Assert(RefCount("/f"), IsNil)
}

// TestDeleteOnLastClose checks spec.md §8.8/E3.
func (s *vfsSuite) TestDeleteOnLastClose(c *C) {
	c.Assert(Create("/tmp-f", AttrFile), Equals, StatusCreated)
	h, _, st := Open("/tmp-f", ModeRead)
	c.Assert(st, Equals, StatusOpened)

	c.Assert(DeleteNode("/tmp-f"), Equals, StatusDeleted)
	c.Assert(s.drv.files["tmp-f"], Equals, true)

	c.Assert(Close(h), Equals, StatusOK)
	c.Assert(s.drv.files["tmp-f"], Equals, false)
}

func (s *vfsSuite) TestDeleteMountPointRejected(c *C) {
	c.Assert(Mount("/a", "mem", 1), Equals, Mounted)
	c.Assert(DeleteNode("/a"), Equals, StatusAccessDenied)
}

func (s *vfsSuite) TestOpenOutOfHandles(c *C) {
	handleCounter = 0
	_, _, st := Open("/f", ModeRead)
	c.Assert(st, Equals, StatusOutOfHandles)
}
