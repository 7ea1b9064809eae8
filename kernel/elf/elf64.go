// Package elf implements the ELF64 loader: header/program-header
// validation, segment allocation and copy, and the bootstrap area
// (StartInfo/argv/program-header copy) spec.md §4.11/§6 describe.
package elf

import (
	"bytes"
	"encoding/binary"
)

// magic is the 4-byte ELF identifier, e_ident[0:4].
var magic = [4]byte{0x7F, 'E', 'L', 'F'}

// e_ident indices/values this loader cares about.
const (
	eiClass      = 4
	eiData       = 5
	classELF64   = 2
	dataLittle   = 1
	dataBig      = 2
)

// Object types (e_type).
const (
	etExec = 2
)

// Program header types (p_type).
const (
	ptNull = 0
	ptLoad = 1
	ptNote = 4
)

// Program header flags (p_flags).
const (
	pfExecute = 1 << 0
	pfWrite   = 1 << 1
	pfRead    = 1 << 2
)

// Header64 mirrors the 64-byte ELF64 file header.
type Header64 struct {
	Ident     [16]byte
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint64
	PHOff     uint64
	SHOff     uint64
	Flags     uint32
	EHSize    uint16
	PHEntSize uint16
	PHNum     uint16
	SHEntSize uint16
	SHNum     uint16
	SHStrNdx  uint16
}

// ProgramHeader64 mirrors one 56-byte ELF64 program header entry.
type ProgramHeader64 struct {
	Type   uint32
	Flags  uint32
	Offset uint64
	VAddr  uint64
	PAddr  uint64
	FileSz uint64
	MemSz  uint64
	Align  uint64
}

// byteOrderOf returns the binary.ByteOrder implied by e_ident[EI_DATA].
func byteOrderOf(ident [16]byte) binary.ByteOrder {
	if ident[eiData] == dataBig {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// parseHeader decodes the ELF64 file header from the first 64 bytes
// of buf and validates magic/class/type per spec.md §6: magic
// `\x7FELF`, class=64-bit, type=EXEC.
func parseHeader(buf []byte) (Header64, Status) {
	var hdr Header64
	if len(buf) < 64 {
		return hdr, StatusBadHeader
	}
	if !bytes.Equal(buf[0:4], magic[:]) {
		return hdr, StatusBadHeader
	}
	if buf[eiClass] != classELF64 {
		return hdr, StatusBadHeader
	}

	// The type/machine/version/entry/offsets all follow e_ident (16
	// bytes) and share its endianness.
	copy(hdr.Ident[:], buf[0:16])
	order := byteOrderOf(hdr.Ident)
	r := bytes.NewReader(buf[16:64])
	fields := []interface{}{
		&hdr.Type, &hdr.Machine, &hdr.Version, &hdr.Entry,
		&hdr.PHOff, &hdr.SHOff, &hdr.Flags, &hdr.EHSize,
		&hdr.PHEntSize, &hdr.PHNum, &hdr.SHEntSize, &hdr.SHNum, &hdr.SHStrNdx,
	}
	for _, f := range fields {
		if err := binary.Read(r, order, f); err != nil {
			return hdr, StatusBadHeader
		}
	}

	if hdr.Type != etExec {
		return hdr, StatusBadHeader
	}
	return hdr, Loaded
}

// parseProgramHeader decodes a single 56-byte program header entry.
func parseProgramHeader(buf []byte, order binary.ByteOrder) (ProgramHeader64, Status) {
	var ph ProgramHeader64
	if len(buf) < 56 {
		return ph, StatusBadSegment
	}
	r := bytes.NewReader(buf)
	fields := []interface{}{
		&ph.Type, &ph.Flags, &ph.Offset, &ph.VAddr, &ph.PAddr, &ph.FileSz, &ph.MemSz, &ph.Align,
	}
	for _, f := range fields {
		if err := binary.Read(r, order, f); err != nil {
			return ph, StatusBadSegment
		}
	}
	return ph, Loaded
}

// VendorInfo is the optional PT_NOTE payload spec.md §6 describes:
// two length-prefixed fields (vendor name, null-padded to a 4-byte
// boundary, followed by three u32s), byte order driven by e_ident[EI_DATA].
type VendorInfo struct {
	Name                     string
	Major, Minor, Patch uint32
}

// parseVendorNote decodes a PT_NOTE segment's description field into
// a VendorInfo. desc is the raw note payload (name + description,
// already located at the note's offset).
func parseVendorNote(desc []byte, order binary.ByteOrder) (VendorInfo, Status) {
	if len(desc) < 8 {
		return VendorInfo{}, StatusBadVendorInfo
	}
	r := bytes.NewReader(desc)
	var nameLen, descLen uint32
	if err := binary.Read(r, order, &nameLen); err != nil {
		return VendorInfo{}, StatusBadVendorInfo
	}
	if err := binary.Read(r, order, &descLen); err != nil {
		return VendorInfo{}, StatusBadVendorInfo
	}

	paddedNameLen := (nameLen + 3) &^ 3
	if uint32(r.Len()) < paddedNameLen {
		return VendorInfo{}, StatusBadVendorInfo
	}
	nameBuf := make([]byte, paddedNameLen)
	if _, err := r.Read(nameBuf); err != nil {
		return VendorInfo{}, StatusBadVendorInfo
	}
	name := string(bytes.TrimRight(nameBuf[:nameLen], "\x00"))

	var vi VendorInfo
	vi.Name = name
	for _, f := range []*uint32{&vi.Major, &vi.Minor, &vi.Patch} {
		if err := binary.Read(r, order, f); err != nil {
			return VendorInfo{}, StatusBadVendorInfo
		}
	}
	return vi, Loaded
}
