package extract

import (
	"bytes"
	"context"
	delf "debug/elf"
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vietanhduong/gnu-buildid/pkg/elf"
	"github.com/vietanhduong/gnu-buildid/pkg/elf/elftest"
)

var order = binary.LittleEndian

func withBuildId(class delf.Class, id []byte) []byte {
	return elftest.Image{
		Class: class,
		Sections: []elftest.Section{
			{Type: delf.SHT_PROGBITS, Data: []byte{0x90, 0x90, 0xc3}},
			{Type: delf.SHT_NOTE, Data: elftest.EncodeNotes(order,
				elftest.Note{Name: []byte("XYZ\x00"), Type: 1, Desc: []byte{1, 2, 3, 4, 5}},
				elftest.GNUBuildId(id),
			)},
		},
	}.Build()
}

func withoutNotes() []byte {
	return elftest.Image{
		Class:    delf.ELFCLASS64,
		Sections: []elftest.Section{{Type: delf.SHT_PROGBITS, Data: []byte{1, 2, 3, 4}}},
	}.Build()
}

func tablePastEOF() []byte {
	return elftest.Image{
		Class:    delf.ELFCLASS64,
		Sections: []elftest.Section{{Type: delf.SHT_NOTE, Data: elftest.EncodeNotes(order, elftest.GNUBuildId([]byte{1}))}},
		ShOff:    1 << 30,
		ShNum:    12,
	}.Build()
}

func run(t *testing.T, opts *Options, paths ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := New(&out, opts).Run(context.Background(), paths)
	return out.String(), err
}

func TestRunSingleFile(t *testing.T) {
	id := []byte{0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef}
	tests := []struct {
		name  string
		class delf.Class
	}{
		{"elf64", delf.ELFCLASS64},
		{"elf32", delf.ELFCLASS32},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fpath := elftest.WriteFile(t, "lib.so", withBuildId(tt.class, id))

			out, err := run(t, nil, fpath)
			require.NoError(t, err)
			assert.Equal(t, "0123456789abcdef "+fpath+"\n", out)
		})
	}
}

func TestRunNoBuildId(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"no note sections", withoutNotes()},
		{"section table past end of file", tablePastEOF()},
		{"not an elf file", []byte(strings.Repeat("plain text ", 10))},
		{"empty file", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, nil, elftest.WriteFile(t, "a.out", tt.data))
			require.NoError(t, err)
			assert.Empty(t, out)
		})
	}
}

func TestRunEmptyBuildIdNoteWins(t *testing.T) {
	data := elftest.Image{
		Class: delf.ELFCLASS64,
		Sections: []elftest.Section{
			{Type: delf.SHT_NOTE, Data: elftest.EncodeNotes(order, elftest.GNUBuildId(nil))},
			{Type: delf.SHT_NOTE, Data: elftest.EncodeNotes(order, elftest.GNUBuildId([]byte{0xaa}))},
		},
	}.Build()

	out, err := run(t, nil, elftest.WriteFile(t, "a.out", data))
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRunNoPaths(t *testing.T) {
	out, err := run(t, nil)
	require.ErrorIs(t, err, ErrNoPaths)
	assert.Empty(t, out)
}

func TestRunSkipsBadFiles(t *testing.T) {
	dir := t.TempDir()
	first := elftest.WriteFile(t, "first", withBuildId(delf.ELFCLASS64, []byte{0xaa, 0xbb}))
	bad := elftest.WriteFile(t, "bad", tablePastEOF())
	last := elftest.WriteFile(t, "last", withBuildId(delf.ELFCLASS32, []byte{0xcc, 0xdd}))
	missing := filepath.Join(dir, "missing")

	paths := []string{first, missing, bad, last, first}
	want := fmt.Sprintf("aabb %s\nccdd %s\naabb %s\n", first, last, first)

	for _, workers := range []int{0, 1, 2, 8} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			out, err := run(t, &Options{Workers: workers}, paths...)
			require.NoError(t, err)
			if diff := cmp.Diff(want, out); diff != "" {
				t.Errorf("output mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRunIdempotent(t *testing.T) {
	fpath := elftest.WriteFile(t, "a.out", withBuildId(delf.ELFCLASS64, bytes.Repeat([]byte{0x5a}, 20)))

	first, err := run(t, nil, fpath)
	require.NoError(t, err)
	second, err := run(t, nil, fpath)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, strings.Repeat("5a", 20)+" "+fpath+"\n", first)
}

func TestRunGoBuildId(t *testing.T) {
	const goId = "0123456789abcdefghij/0123456789abcdefghij/0123456789abcdefghij"
	data := elftest.Image{
		Class: delf.ELFCLASS64,
		Sections: []elftest.Section{{Type: delf.SHT_NOTE, Data: elftest.EncodeNotes(order,
			elftest.Note{Name: []byte("Go\x00\x00"), Type: elf.NT_GO_BUILD_ID, Desc: []byte(goId)},
		)}},
	}.Build()
	fpath := elftest.WriteFile(t, "gobin", data)

	out, err := run(t, nil, fpath)
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = run(t, &Options{GoBuildId: true}, fpath)
	require.NoError(t, err)
	assert.Equal(t, goId+" "+fpath+"\n", out)
}

func TestRunCancelled(t *testing.T) {
	fpath := elftest.WriteFile(t, "a.out", withBuildId(delf.ELFCLASS64, []byte{1}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, workers := range []int{1, 4} {
		var out bytes.Buffer
		err := New(&out, &Options{Workers: workers}).Run(ctx, []string{fpath, fpath})
		require.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, out.String())
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestRunWriteError(t *testing.T) {
	fpath := elftest.WriteFile(t, "a.out", withBuildId(delf.ELFCLASS64, []byte{1}))

	err := New(failingWriter{}, nil).Run(context.Background(), []string{fpath})
	require.ErrorContains(t, err, "broken pipe")
}

func TestExtract(t *testing.T) {
	fpath := elftest.WriteFile(t, "a.out", withBuildId(delf.ELFCLASS32, []byte{0xfe, 0xed}))

	id, err := New(nil, nil).Extract(fpath)
	require.NoError(t, err)
	assert.Equal(t, elf.GnuBuildId("feed"), id)

	_, err = New(nil, nil).Extract(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}
