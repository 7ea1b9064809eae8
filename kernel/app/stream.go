package app

import "runeos/kernel/vfs"

// Stream is the narrow contract a standard stream target satisfies.
// Concrete backends (a terminal renderer, a keyboard driver) are out
// of scope per spec.md §1 -- only the interface and a VFS-file-backed
// implementation live here; StartSystemLoader wires its std streams to
// whatever concrete Stream the platform registers for the console and
// keyboard, passed in rather than constructed by this package.
type Stream interface {
	Close()
}

// voidStream discards everything written to it and never yields
// anything read from it; StdIOTarget VOID resolves to one.
type voidStream struct{}

func (voidStream) Close() {}

// NewVoidStream returns the Stream a VOID stdio target resolves to.
func NewVoidStream() Stream { return voidStream{} }

// fileStream backs a std stream with an open VFS node.
type fileStream struct {
	handle vfs.Handle
}

func (f fileStream) Close() { vfs.Close(f.handle) }

// StdStream selects which of an App's three standard streams a
// StdIOConfig describes.
type StdStream uint8

const (
	StdIn StdStream = iota
	StdOut
	StdErr
)

// StdIOTarget is what a StdIOConfig resolves a standard stream to,
// per spec.md §4.12.
type StdIOTarget uint8

const (
	// TargetVoid discards the stream.
	TargetVoid StdIOTarget = iota
	// TargetInherit reuses the calling App's corresponding stream.
	TargetInherit
	// TargetFile opens (creating if missing) the named path.
	TargetFile
)

// StdIOConfig describes how StartNewApp should wire one standard
// stream of the App it is launching.
type StdIOConfig struct {
	Target StdIOTarget
	Path   string
}

// resolveStdio resolves all three stdio configs for target, launched
// by caller, per spec.md §4.12's config union. When the stderr config
// equals the stdout config, stderr reuses the stdout stream (so a FILE
// target is opened once). Stdin is always resolved on its own, even
// when its config equals the stdout or stderr config.
func resolveStdio(caller, target *App, in, out, err StdIOConfig) (Stream, Stream, Stream, bool) {
	stdin, ok := resolveOne(caller, target, StdIn, in)
	if !ok {
		return nil, nil, nil, false
	}

	stdout, ok := resolveOne(caller, target, StdOut, out)
	if !ok {
		return nil, nil, nil, false
	}

	var stderr Stream
	if err == out {
		stderr = stdout
	} else {
		stderr, ok = resolveOne(caller, target, StdErr, err)
		if !ok {
			return nil, nil, nil, false
		}
	}

	return stdin, stdout, stderr, true
}

func resolveOne(caller, target *App, which StdStream, cfg StdIOConfig) (Stream, bool) {
	switch cfg.Target {
	case TargetVoid:
		return NewVoidStream(), true
	case TargetInherit:
		switch which {
		case StdIn:
			return caller.Stdin, caller.Stdin != nil
		case StdOut:
			return caller.Stdout, caller.Stdout != nil
		default:
			return caller.Stderr, caller.Stderr != nil
		}
	case TargetFile:
		return openFileStream(caller, target, which, cfg.Path)
	default:
		return nil, false
	}
}

// openFileStream opens (creating if missing) the file backing a FILE
// stdio target. StdIn on a nonexistent file is not supported -- only
// output streams are allowed to create, matching
// AppModule::setup_file_stream. Opening the node fires NODE_OPENED
// while target is not yet the active app, so the handle lands in
// caller's node list; it is moved into target's list here, mirroring
// the original's explicit re-homing.
func openFileStream(caller, target *App, which StdStream, path string) (Stream, bool) {
	if path == "" {
		return nil, false
	}
	resolved := ResolvePath(caller.WorkingDirectory, path)

	mode := vfs.ModeWrite
	if which == StdIn {
		mode = vfs.ModeRead
	}

	h, _, st := vfs.Open(resolved, mode)
	if st == vfs.StatusNotFound {
		if which == StdIn {
			return nil, false
		}
		if st := vfs.Create(resolved, vfs.AttrFile); st != vfs.StatusCreated {
			return nil, false
		}
		h, _, st = vfs.Open(resolved, mode)
	}
	if st != vfs.StatusOpened {
		return nil, false
	}

	removeNodeHandle(caller, h)
	target.NodeHandles = append(target.NodeHandles, h)
	return fileStream{handle: h}, true
}
