package elf

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"golang.org/x/exp/constraints"
)

const (
	// DefaultNoteBufferSize is how much of a note section is decoded unless
	// configured otherwise. Build id notes are conventionally placed first.
	DefaultNoteBufferSize = 512

	noteHeaderSize = 12
)

//nolint:st1003
const (
	NT_GNU_BUILD_ID uint32 = 3
	NT_GO_BUILD_ID  uint32 = 4
)

type Note struct {
	Name []byte
	Desc []byte
	Type uint32
}

// noteOwner matches a note name: Size is n_namesz including padding NULs and
// Name is the prefix it must start with.
type noteOwner struct {
	Name string
	Size uint32
}

var (
	gnuOwner = newNoteOwner("GNU")
	goOwner  = newNoteOwner("Go")
)

// newNoteOwner sizes the owner as it is written: NUL terminated, then padded
// to a 4 byte boundary.
func newNoteOwner(name string) noteOwner {
	return noteOwner{Name: name, Size: align4(uint32(len(name) + 1))}
}

func (o noteOwner) match(n *Note) bool {
	return uint32(len(n.Name)) == o.Size && bytes.HasPrefix(n.Name, []byte(o.Name))
}

func align4[T constraints.Unsigned](n T) T { return (n + 3) &^ 3 }

// DecodeNotes walks the note records in buf, a prefix of a note section whose
// declared size is size, and calls fn for each one until fn returns false.
// Name and Desc alias buf. A record whose fields reach past buf ends the walk
// with ErrBadNote.
func DecodeNotes(buf []byte, size uint64, order binary.ByteOrder, fn func(n *Note) bool) error {
	limit := uint64(len(buf))
	var off uint64
	for off+noteHeaderSize <= size {
		if off+noteHeaderSize > limit {
			return fmt.Errorf("note header at 0x%x past %d buffered bytes: %w", off, limit, ErrBadNote)
		}
		namesz := uint64(order.Uint32(buf[off:]))
		descsz := uint64(order.Uint32(buf[off+4:]))
		typ := order.Uint32(buf[off+8:])
		off += noteHeaderSize

		name := off
		off += align4(namesz)
		desc := off
		off += align4(descsz)

		if name+namesz > limit || desc+descsz > limit {
			return fmt.Errorf("note at 0x%x (namesz %d, descsz %d) past %d buffered bytes: %w",
				name-noteHeaderSize, namesz, descsz, limit, ErrBadNote)
		}
		n := &Note{
			Name: buf[name : name+namesz],
			Desc: buf[desc : desc+descsz],
			Type: typ,
		}
		if !fn(n) {
			return nil
		}
	}
	return nil
}

// findNote returns the descriptor of the first note with the given owner and
// type, or nil when the section holds none. A match with an empty descriptor
// returns an empty, non-nil slice.
func findNote(buf []byte, size uint64, order binary.ByteOrder, owner noteOwner, typ uint32) ([]byte, error) {
	var desc []byte
	err := DecodeNotes(buf, size, order, func(n *Note) bool {
		if n.Type == typ && owner.match(n) {
			desc = n.Desc
			return false
		}
		return true
	})
	return desc, err
}
