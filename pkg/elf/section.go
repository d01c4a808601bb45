package elf

import (
	delf "debug/elf"
	"fmt"
	"math"
)

type SectionHeader struct {
	Type   delf.SectionType
	Offset uint64
	Size   uint64
}

// Sections walks the section header table in order and calls fn for every
// entry until fn returns false. The walk stops at the first entry that cannot
// be read completely; that error is returned and earlier entries stay valid.
func (f *File) Sections(fn func(index int, sh *SectionHeader) bool) error {
	w := f.width
	entsize := int(f.ShEntSize)
	if f.ShNum > 0 && entsize < w.minSectionHeaderSize() {
		return fmt.Errorf("section header entry size %d: %w", entsize, ErrTruncated)
	}

	buf := make([]byte, entsize)
	for i := 0; i < int(f.ShNum); i++ {
		rel := uint64(i) * uint64(entsize)
		if f.ShOff > math.MaxUint64-rel {
			return fmt.Errorf("section header %d offset overflows: %w", i, ErrTruncated)
		}
		if err := readFull(f.r, buf, f.ShOff+rel); err != nil {
			return fmt.Errorf("read section header %d: %w", i, err)
		}
		sh := SectionHeader{
			Type:   delf.SectionType(f.ByteOrder.Uint32(buf[w.shTypeOffset():])),
			Offset: w.read(f.ByteOrder, buf[w.shOffsetOffset():]),
			Size:   w.read(f.ByteOrder, buf[w.shSizeOffset():]),
		}
		if !fn(i, &sh) {
			return nil
		}
	}
	return nil
}

// NoteSections is Sections restricted to SHT_NOTE entries.
func (f *File) NoteSections(fn func(index int, sh *SectionHeader) bool) error {
	return f.Sections(func(index int, sh *SectionHeader) bool {
		if sh.Type != delf.SHT_NOTE {
			return true
		}
		return fn(index, sh)
	})
}

// SectionData returns the bounded prefix of a section used for note decoding.
// At most Options.NoteBufferSize bytes are read.
func (f *File) SectionData(sh *SectionHeader) ([]byte, error) {
	size := uint64(f.opts.NoteBufferSize)
	if sh.Size < size {
		size = sh.Size
	}
	if size == 0 {
		return nil, fmt.Errorf("empty section: %w", ErrTruncated)
	}
	return readPrefix(f.r, make([]byte, size), sh.Offset)
}
