package elf

import (
	"bytes"
	delf "debug/elf"
	"encoding/binary"
	"fmt"
)

// headerSize covers both Elf32_Ehdr (52 bytes) and Elf64_Ehdr (64 bytes).
const headerSize = 64

// fieldWidth is the size in bytes of address and offset fields for a class.
type fieldWidth int

const (
	width32 fieldWidth = 4
	width64 fieldWidth = 8
)

func (w fieldWidth) read(order binary.ByteOrder, b []byte) uint64 {
	if w == width64 {
		return order.Uint64(b)
	}
	return uint64(order.Uint32(b))
}

// Offsets below are derived from the width because both classes lay out the
// same fields in the same order, only Addr/Off/Xword members change size.

func (w fieldWidth) shoffOffset() int     { return 24 + 2*int(w) }
func (w fieldWidth) shentsizeOffset() int { return 34 + 3*int(w) }
func (w fieldWidth) shnumOffset() int     { return 36 + 3*int(w) }

// section header: sh_name, sh_type are always 4 bytes, followed by
// sh_flags, sh_addr, sh_offset, sh_size of the class width.
func (w fieldWidth) shTypeOffset() int   { return 4 }
func (w fieldWidth) shOffsetOffset() int { return 8 + 2*int(w) }
func (w fieldWidth) shSizeOffset() int   { return 8 + 3*int(w) }

// minSectionHeaderSize is the shortest entry that still holds sh_size.
func (w fieldWidth) minSectionHeaderSize() int { return 8 + 4*int(w) }

type FileHeader struct {
	Class     delf.Class
	ByteOrder binary.ByteOrder
	ShOff     uint64
	ShEntSize uint16
	ShNum     uint16

	width fieldWidth
}

// ParseHeader classifies the ELF identification block and extracts the
// section header table location from the first headerSize bytes of a file.
func ParseHeader(b []byte) (*FileHeader, error) {
	if len(b) < headerSize {
		return nil, fmt.Errorf("elf header is %d bytes: %w", len(b), ErrTruncated)
	}
	if !bytes.Equal(b[:len(delf.ELFMAG)], []byte(delf.ELFMAG)) {
		return nil, ErrNotElf
	}

	hdr := &FileHeader{Class: delf.Class(b[delf.EI_CLASS])}
	switch hdr.Class {
	case delf.ELFCLASS64:
		hdr.width = width64
	case delf.ELFCLASS32:
		hdr.width = width32
	default:
		return nil, fmt.Errorf("class %d: %w", b[delf.EI_CLASS], ErrUnknownClass)
	}

	// Anything but an explicit big endian marker is read as little endian.
	if delf.Data(b[delf.EI_DATA]) == delf.ELFDATA2MSB {
		hdr.ByteOrder = binary.BigEndian
	} else {
		hdr.ByteOrder = binary.LittleEndian
	}

	w := hdr.width
	hdr.ShOff = w.read(hdr.ByteOrder, b[w.shoffOffset():])
	hdr.ShEntSize = hdr.ByteOrder.Uint16(b[w.shentsizeOffset():])
	hdr.ShNum = hdr.ByteOrder.Uint16(b[w.shnumOffset():])
	return hdr, nil
}
