package elf

import (
	delf "debug/elf"
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"github.com/vietanhduong/gnu-buildid/pkg/elf/elftest"
)

func TestSections(t *testing.T) {
	for _, class := range []delf.Class{delf.ELFCLASS32, delf.ELFCLASS64} {
		t.Run(class.String(), func(t *testing.T) {
			img := elftest.Image{
				Class: class,
				Order: binary.BigEndian,
				Sections: []elftest.Section{
					{Type: delf.SHT_PROGBITS, Data: make([]byte, 10)},
					{Type: delf.SHT_NOTE, Data: make([]byte, 36)},
					{Type: delf.SHT_SYMTAB, Data: make([]byte, 4), Size: 0x1000, Offset: 0x2000},
				},
			}
			f, err := Open(elftest.WriteFile(t, "a.out", img.Build()), nil)
			require.NoError(t, err)
			defer f.Close()

			var got []SectionHeader
			err = f.Sections(func(_ int, sh *SectionHeader) bool {
				got = append(got, *sh)
				return true
			})
			require.NoError(t, err)

			want := []SectionHeader{
				{Type: delf.SHT_NULL},
				{Type: delf.SHT_PROGBITS, Offset: 64, Size: 10},
				{Type: delf.SHT_NOTE, Offset: 76, Size: 36},
				{Type: delf.SHT_SYMTAB, Offset: 0x2000, Size: 0x1000},
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("sections mismatch (-want +got):\n%s", diff)
			}

			var notes []int
			err = f.NoteSections(func(index int, _ *SectionHeader) bool {
				notes = append(notes, index)
				return true
			})
			require.NoError(t, err)
			require.Equal(t, []int{2}, notes)
		})
	}
}

func TestSectionsPastEndOfFile(t *testing.T) {
	img := elftest.Image{
		Class:    delf.ELFCLASS64,
		Sections: []elftest.Section{{Type: delf.SHT_NOTE, Data: make([]byte, 12)}},
		ShNum:    5,
	}
	f, err := Open(elftest.WriteFile(t, "a.out", img.Build()), nil)
	require.NoError(t, err)
	defer f.Close()

	var count int
	err = f.Sections(func(int, *SectionHeader) bool {
		count++
		return true
	})
	require.ErrorIs(t, err, ErrTruncated)
	require.Equal(t, 2, count)
}
