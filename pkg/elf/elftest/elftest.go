// Package elftest builds small synthetic ELF images for tests.
package elftest

import (
	delf "debug/elf"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

type Note struct {
	Name []byte
	Type uint32
	Desc []byte
}

// GNUBuildId is a well formed NT_GNU_BUILD_ID note.
func GNUBuildId(desc []byte) Note {
	return Note{Name: []byte("GNU\x00"), Type: 3, Desc: desc}
}

// EncodeNotes lays out notes with the name and descriptor each padded to 4 bytes.
func EncodeNotes(order binary.ByteOrder, notes ...Note) []byte {
	var out []byte
	for _, n := range notes {
		var hdr [12]byte
		order.PutUint32(hdr[0:], uint32(len(n.Name)))
		order.PutUint32(hdr[4:], uint32(len(n.Desc)))
		order.PutUint32(hdr[8:], n.Type)
		out = append(out, hdr[:]...)
		out = append(out, pad4(n.Name)...)
		out = append(out, pad4(n.Desc)...)
	}
	return out
}

func pad4(b []byte) []byte {
	out := make([]byte, (len(b)+3)&^3)
	copy(out, b)
	return out
}

type Section struct {
	Type delf.SectionType
	Data []byte
	// Size overrides sh_size when non-zero.
	Size uint64
	// Offset overrides sh_offset when non-zero.
	Offset uint64
}

type Image struct {
	Class    delf.Class
	Order    binary.ByteOrder
	Sections []Section

	// Overrides for the section header table fields, applied when non-zero.
	ShOff     uint64
	ShNum     uint16
	ShEntSize uint16
}

func (img Image) width() int {
	if img.Class == delf.ELFCLASS32 {
		return 4
	}
	return 8
}

func (img Image) order() binary.ByteOrder {
	if img.Order == nil {
		return binary.LittleEndian
	}
	return img.Order
}

func (img Image) putWord(b []byte, v uint64) {
	if img.width() == 8 {
		img.order().PutUint64(b, v)
		return
	}
	img.order().PutUint32(b, uint32(v))
}

// Build returns the file image: a 64 byte header, the section contents and
// the section header table, with a leading SHT_NULL entry.
func (img Image) Build() []byte {
	w := img.width()
	order := img.order()
	entsize := 16 + 6*w // Elf32_Shdr is 40 bytes, Elf64_Shdr is 64

	out := make([]byte, 64)
	copy(out, delf.ELFMAG)
	out[delf.EI_CLASS] = byte(img.Class)
	if order == binary.BigEndian {
		out[delf.EI_DATA] = byte(delf.ELFDATA2MSB)
	} else {
		out[delf.EI_DATA] = byte(delf.ELFDATA2LSB)
	}
	out[delf.EI_VERSION] = byte(delf.EV_CURRENT)
	order.PutUint16(out[16:], uint16(delf.ET_EXEC))

	headers := []Section{{Type: delf.SHT_NULL}}
	for _, s := range img.Sections {
		if s.Offset == 0 {
			s.Offset = uint64(len(out))
		}
		if s.Size == 0 {
			s.Size = uint64(len(s.Data))
		}
		out = append(out, pad4(s.Data)...)
		headers = append(headers, s)
	}

	shoff := uint64(len(out))
	for _, s := range headers {
		entry := make([]byte, entsize)
		order.PutUint32(entry[4:], uint32(s.Type))
		img.putWord(entry[8+2*w:], s.Offset)
		img.putWord(entry[8+3*w:], s.Size)
		out = append(out, entry...)
	}

	shnum := uint16(len(headers))
	if img.ShOff != 0 {
		shoff = img.ShOff
	}
	if img.ShNum != 0 {
		shnum = img.ShNum
	}
	if img.ShEntSize != 0 {
		entsize = int(img.ShEntSize)
	}
	img.putWord(out[24+2*w:], shoff)
	order.PutUint16(out[34+3*w:], uint16(entsize))
	order.PutUint16(out[36+3*w:], shnum)
	return out
}

// WriteFile writes data to a new file under t.TempDir and returns its path.
func WriteFile(tb testing.TB, name string, data []byte) string {
	tb.Helper()
	fpath := filepath.Join(tb.TempDir(), name)
	if err := os.WriteFile(fpath, data, 0o644); err != nil {
		tb.Fatal(err)
	}
	return fpath
}
