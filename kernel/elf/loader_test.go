package elf

import (
	"bytes"
	"encoding/binary"
	"testing"

	"runeos/kernel/mem/vmm"
)

// buildHeader encodes a 64-byte ELF64 header with the given type,
// entry point, and program-header table geometry.
func buildHeader(t *testing.T, objType uint16, entry uint64, phoff uint64, phnum uint16) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.Write(magic[:])
	ident := make([]byte, 12)
	ident[eiClass-4] = classELF64
	ident[eiData-4] = dataLittle
	buf.Write(ident)

	fields := []interface{}{
		objType, uint16(0x3e), uint32(1), entry,
		phoff, uint64(0), uint32(0), uint16(64),
		uint16(56), phnum, uint16(0), uint16(0), uint16(0),
	}
	for _, f := range fields {
		if err := binary.Write(&buf, binary.LittleEndian, f); err != nil {
			t.Fatalf("encode header field: %v", err)
		}
	}
	return buf.Bytes()
}

// appendProgramHeader encodes and appends a single 56-byte program
// header entry.
func appendProgramHeader(t *testing.T, buf *bytes.Buffer, ph ProgramHeader64) {
	t.Helper()
	fields := []interface{}{
		ph.Type, ph.Flags, ph.Offset, ph.VAddr, ph.PAddr, ph.FileSz, ph.MemSz, ph.Align,
	}
	for _, f := range fields {
		if err := binary.Write(buf, binary.LittleEndian, f); err != nil {
			t.Fatalf("encode program header field: %v", err)
		}
	}
}

func TestParseHeaderAcceptsValidExec(t *testing.T) {
	raw := buildHeader(t, etExec, 0x400000, 64, 1)
	hdr, st := parseHeader(raw)
	if st != Loaded {
		t.Fatalf("expected Loaded, got %v", st)
	}
	if hdr.Entry != 0x400000 {
		t.Fatalf("expected entry 0x400000, got 0x%x", hdr.Entry)
	}
	if hdr.PHNum != 1 {
		t.Fatalf("expected phnum 1, got %d", hdr.PHNum)
	}
}

func TestParseHeaderRejectsBadMagic(t *testing.T) {
	raw := buildHeader(t, etExec, 0x400000, 64, 1)
	raw[0] = 0x00
	if _, st := parseHeader(raw); st != StatusBadHeader {
		t.Fatalf("expected StatusBadHeader, got %v", st)
	}
}

func TestParseHeaderRejectsNonExecType(t *testing.T) {
	raw := buildHeader(t, 1 /* ET_REL */, 0x400000, 64, 1)
	if _, st := parseHeader(raw); st != StatusBadHeader {
		t.Fatalf("expected StatusBadHeader for non-EXEC type, got %v", st)
	}
}

func TestParseHeaderRejectsTruncatedBuffer(t *testing.T) {
	if _, st := parseHeader(make([]byte, 32)); st != StatusBadHeader {
		t.Fatalf("expected StatusBadHeader for short buffer, got %v", st)
	}
}

func TestParseProgramHeaderRoundTrip(t *testing.T) {
	want := ProgramHeader64{
		Type: ptLoad, Flags: pfRead | pfExecute,
		Offset: 0, VAddr: 0x400000, PAddr: 0x400000,
		FileSz: 0x100, MemSz: 0x200, Align: 0x1000,
	}
	var buf bytes.Buffer
	appendProgramHeader(t, &buf, want)

	got, st := parseProgramHeader(buf.Bytes(), binary.LittleEndian)
	if st != Loaded {
		t.Fatalf("expected Loaded, got %v", st)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestParseVendorNoteRoundTrip(t *testing.T) {
	name := "runeos"
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(len(name)))
	binary.Write(&buf, binary.LittleEndian, uint32(12))
	paddedName := make([]byte, (len(name)+3)&^3)
	copy(paddedName, name)
	buf.Write(paddedName)
	binary.Write(&buf, binary.LittleEndian, uint32(1))
	binary.Write(&buf, binary.LittleEndian, uint32(2))
	binary.Write(&buf, binary.LittleEndian, uint32(3))

	vi, st := parseVendorNote(buf.Bytes(), binary.LittleEndian)
	if st != Loaded {
		t.Fatalf("expected Loaded, got %v", st)
	}
	if vi.Name != name || vi.Major != 1 || vi.Minor != 2 || vi.Patch != 3 {
		t.Fatalf("unexpected vendor info: %+v", vi)
	}
}

func TestScanProgramHeadersNoteOnlyYieldsNoSegments(t *testing.T) {
	var buf bytes.Buffer
	appendProgramHeader(t, &buf, ProgramHeader64{Type: ptNote, Offset: 0, FileSz: 0})
	hdr := decodeTestHeader(buf.Bytes())

	segments, _, _, st := scanProgramHeaders(buf.Bytes(), hdr, binary.LittleEndian)
	if st != Loaded {
		t.Fatalf("NOTE-only scan should succeed at the scan stage, got %v", st)
	}
	if len(segments) != 0 {
		t.Fatalf("expected no LOAD segments, got %d", len(segments))
	}
}

func TestScanProgramHeadersRejectsKernelOverlap(t *testing.T) {
	var buf bytes.Buffer
	appendProgramHeader(t, &buf, ProgramHeader64{
		Type: ptLoad, Flags: pfRead,
		Offset: 0, VAddr: uint64(vmm.UserSpaceEnd - 0x1000), PAddr: 0,
		FileSz: 0x2000, MemSz: 0x2000, Align: 0x1000,
	})
	hdr := decodeTestHeader(buf.Bytes())

	_, _, _, st := scanProgramHeaders(buf.Bytes(), hdr, binary.LittleEndian)
	if st != StatusBadSegment {
		t.Fatalf("expected StatusBadSegment for kernel-overlapping segment, got %v", st)
	}
}

func TestSeedRandomVariesByTick(t *testing.T) {
	defer func(orig func() uint64) { currentTickFn = orig }(currentTickFn)

	currentTickFn = func() uint64 { return 1 }
	a := seedRandom()
	currentTickFn = func() uint64 { return 2 }
	b := seedRandom()

	if a == b {
		t.Fatalf("expected different seeds for different ticks, got %v twice", a)
	}
	if a[0] == 0 && a[1] == 0 {
		t.Fatalf("expected a nonzero seed")
	}
}

// decodeTestHeader builds a minimal Header64 describing a single
// program header entry starting at offset 0, for feeding directly
// into scanProgramHeaders without going through parseHeader.
func decodeTestHeader(phBytes []byte) Header64 {
	return Header64{PHOff: 0, PHEntSize: 56, PHNum: uint16(len(phBytes) / 56)}
}
