// Package extract runs build id extraction over a list of files and writes
// one "<build-id> <path>" line per file that has one.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/golang/glog"
	"github.com/vietanhduong/gnu-buildid/pkg/elf"
	"golang.org/x/sync/errgroup"
)

var ErrNoPaths = errors.New("no input paths")

type Options struct {
	// Workers is the number of files processed concurrently.
	Workers int
	// NoteBufferSize bounds how much of each note section is decoded.
	NoteBufferSize int
	// GoBuildId accepts the Go build id note when a file has no GNU one.
	GoBuildId bool
}

var defaultOptions = &Options{
	Workers:        1,
	NoteBufferSize: elf.DefaultNoteBufferSize,
}

type Extractor struct {
	w    io.Writer
	opts *Options
}

func New(w io.Writer, opts *Options) *Extractor {
	if opts == nil {
		opts = defaultOptions
	}
	return &Extractor{w: w, opts: opts}
}

// Extract returns the build id of a single file. The file is closed before
// returning.
func (e *Extractor) Extract(fpath string) (elf.BuildId, error) {
	f, err := elf.Open(fpath, &elf.Options{NoteBufferSize: e.opts.NoteBufferSize})
	if err != nil {
		return elf.BuildId{}, err
	}
	defer f.Close()
	return f.BuildId(e.opts.GoBuildId)
}

// Run extracts every path in order and writes a line for each build id found.
// Files that cannot be opened or parsed are skipped. Only an empty path list,
// a cancelled context or a failing writer make Run return an error.
func (e *Extractor) Run(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return ErrNoPaths
	}
	if e.opts.Workers <= 1 {
		return e.runSerial(ctx, paths)
	}
	return e.runParallel(ctx, paths)
}

func (e *Extractor) runSerial(ctx context.Context, paths []string) error {
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.write(p, e.extract(p)); err != nil {
			return err
		}
	}
	return nil
}

// runParallel fans files out to a bounded pool and writes results in input
// order once all of them are done, so the output matches runSerial.
func (e *Extractor) runParallel(ctx context.Context, paths []string) error {
	ids := make([]elf.BuildId, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i, p := range paths {
		i, p := i, p
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ids[i] = e.extract(p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for i, p := range paths {
		if err := e.write(p, ids[i]); err != nil {
			return err
		}
	}
	return nil
}

func (e *Extractor) extract(fpath string) elf.BuildId {
	id, err := e.Extract(fpath)
	if err != nil {
		glog.V(1).Infof("No build id for %s: %v", fpath, err)
		return elf.BuildId{}
	}
	return id
}

func (e *Extractor) write(fpath string, id elf.BuildId) error {
	if id.Empty() {
		return nil
	}
	if _, err := fmt.Fprintf(e.w, "%s %s\n", id.Id, fpath); err != nil {
		return fmt.Errorf("write build id of %s: %w", fpath, err)
	}
	return nil
}
