package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/golang/glog"
	"github.com/samber/lo"
	"github.com/vietanhduong/gnu-buildid/pkg/elf"
	"github.com/vietanhduong/gnu-buildid/pkg/extract"
	"github.com/vietanhduong/gnu-buildid/pkg/proc"
)

const (
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	var (
		opts    extract.Options
		pids    string
		modules bool
	)
	flag.IntVar(&opts.Workers, "j", 1, "Number of files to process concurrently.")
	flag.IntVar(&opts.NoteBufferSize, "note-buffer-size", elf.DefaultNoteBufferSize, "Max bytes of each note section to decode.")
	flag.BoolVar(&opts.GoBuildId, "go-buildid", false, "Fall back to the Go build id when a file has no GNU build id.")
	flag.StringVar(&pids, "pids", "", "Comma separated process ids whose executables are also inspected.")
	flag.BoolVar(&modules, "modules", false, "With -pids, also inspect every ELF object mapped executable into the processes.")
	flag.Usage = usage
	// Keep stdout for results; glog writes to files in the temp dir otherwise.
	_ = flag.Set("logtostderr", "true")
	flag.Parse()
	defer glog.Flush()

	paths := flag.Args()
	pidpaths, err := resolvePids(pids, modules)
	if err != nil {
		glog.Errorf("Invalid -pids %q: %v", pids, err)
		exit(exitUsage)
	}
	if len(paths) == 0 && pids != "" && len(pidpaths) == 0 {
		// every requested process was unreadable, nothing left to do
		return
	}
	paths = append(paths, pidpaths...)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err = extract.New(os.Stdout, &opts).Run(ctx, paths)
	switch {
	case errors.Is(err, extract.ErrNoPaths):
		flag.Usage()
		exit(exitUsage)
	case err != nil:
		glog.Errorf("Failed to extract build ids: %v", err)
		exit(exitFailure)
	}
}

// resolvePids turns the -pids list into proc paths. A process that is gone or
// unreadable is logged and skipped like any other unreadable input.
func resolvePids(list string, modules bool) ([]string, error) {
	var ret []string
	for _, s := range lo.Without(strings.Split(list, ","), "") {
		pid, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil || pid <= 0 {
			return nil, fmt.Errorf("bad pid %q", s)
		}
		exe, err := proc.ExePath(pid)
		if err != nil {
			glog.V(1).Infof("Skip executable of pid %d: %v", pid, err)
		} else {
			ret = append(ret, exe)
		}
		if !modules {
			continue
		}
		paths, err := proc.ModulePaths(pid)
		if err != nil {
			glog.V(1).Infof("Skip modules of pid %d: %v", pid, err)
			continue
		}
		ret = append(ret, paths...)
	}
	return ret, nil
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] FILE...\n\nPrints \"<build-id> <file>\" for every ELF file carrying a GNU build id.\n\nFlags:\n", os.Args[0])
	flag.PrintDefaults()
}

func exit(code int) {
	glog.Flush()
	os.Exit(code)
}
