package elf

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	bufra "github.com/avvmoto/buf-readerat"
)

// Section table entries are small and usually contiguous, a page-sized buffer
// turns their reads into a handful of syscalls.
const readBufferSize = 4096

type Options struct {
	// NoteBufferSize bounds how many bytes of a note section are decoded.
	NoteBufferSize int
}

var defaultOptions = &Options{
	NoteBufferSize: DefaultNoteBufferSize,
}

type File struct {
	FileHeader

	fpath string
	f     *os.File
	r     io.ReaderAt
	opts  *Options
}

func Open(fpath string, opts *Options) (*File, error) {
	fd, err := open(fpath)
	if err != nil {
		return nil, err
	}
	this, err := NewFile(bufra.NewBufReaderAt(fd, readBufferSize), opts)
	if err != nil {
		fd.Close()
		return nil, fmt.Errorf("%s: %w", fpath, err)
	}
	this.fpath = fpath
	this.f = fd
	return this, nil
}

// NewFile reads the ELF header from r. The returned File does not own r.
func NewFile(r io.ReaderAt, opts *Options) (*File, error) {
	if opts == nil || opts.NoteBufferSize <= 0 {
		opts = defaultOptions
	}
	buf := make([]byte, headerSize)
	if err := readFull(r, buf, 0); err != nil {
		return nil, fmt.Errorf("read elf header: %w", err)
	}
	hdr, err := ParseHeader(buf)
	if err != nil {
		return nil, err
	}
	return &File{FileHeader: *hdr, r: r, opts: opts}, nil
}

func (f *File) FilePath() string { return f.fpath }

func (f *File) Close() error {
	if f.f == nil {
		return nil
	}
	err := f.f.Close()
	f.f = nil
	f.r = nil
	return err
}

// readFull reads exactly len(buf) bytes at off. Anything shorter is reported
// as ErrTruncated.
func readFull(r io.ReaderAt, buf []byte, off uint64) error {
	if off > math.MaxInt64 {
		return fmt.Errorf("offset 0x%x out of range: %w", off, ErrTruncated)
	}
	n, err := r.ReadAt(buf, int64(off))
	if n == len(buf) {
		return nil
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read at 0x%x: %w", off, err)
	}
	return fmt.Errorf("read %d of %d bytes at 0x%x: %w", n, len(buf), off, ErrTruncated)
}

// readPrefix reads up to len(buf) bytes at off and returns what it got. Only
// a read that yields nothing is an error.
func readPrefix(r io.ReaderAt, buf []byte, off uint64) ([]byte, error) {
	if off > math.MaxInt64 {
		return nil, fmt.Errorf("offset 0x%x out of range: %w", off, ErrTruncated)
	}
	n, err := r.ReadAt(buf, int64(off))
	if n > 0 {
		return buf[:n], nil
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read at 0x%x: %w", off, err)
	}
	return nil, fmt.Errorf("empty read at 0x%x: %w", off, ErrTruncated)
}

func open(fpath string) (*os.File, error) {
	fd, err := os.OpenFile(fpath, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open elf file %s: %w", fpath, err)
	}
	return fd, nil
}
