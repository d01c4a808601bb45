package proc

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/golang/glog"
	"github.com/samber/lo"
	"golang.org/x/sys/unix"
)

const deletedSuffix = " (deleted)"

func ParseProcMap(pid int) ([]*Map, error) {
	mapfile := HostProcPath(strconv.Itoa(pid), "maps")
	f, err := os.Open(mapfile)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", mapfile, err)
	}
	defer f.Close()

	ret, err := parseProcMap(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", mapfile, err)
	}
	return ret, nil
}

// ModulePaths lists the ELF objects mapped executable into pid, resolved
// through the process root so that files inside containers are reachable.
// Each object appears once, in order of its first mapping.
func ModulePaths(pid int) ([]string, error) {
	maps, err := ParseProcMap(pid)
	if err != nil {
		return nil, err
	}
	names := lo.Uniq(lo.FilterMap(maps, func(m *Map, _ int) (string, bool) {
		return m.Pathname, m.Executable() && isFileBacked(m.Pathname)
	}))

	root := HostProcPath(strconv.Itoa(pid), "root")
	var ret []string
	for _, name := range names {
		p := root + name
		if err := unix.Access(p, unix.R_OK); err != nil {
			glog.V(1).Infof("Skip module %s of pid %d: %v", name, pid, err)
			continue
		}
		ret = append(ret, p)
	}
	return ret, nil
}

func parseProcMap(r io.Reader) ([]*Map, error) {
	var ret []*Map
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		m, ok := parseMapLine(scanner.Text())
		if !ok {
			continue
		}
		ret = append(ret, m)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

// parseMapLine parses "start-end perms offset dev inode [pathname]".
func parseMapLine(line string) (*Map, bool) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return nil, false
	}
	start, end, ok := strings.Cut(fields[0], "-")
	if !ok {
		return nil, false
	}
	var (
		m   = &Map{Perms: fields[1], Dev: fields[3]}
		err error
	)
	if m.StartAddr, err = strconv.ParseUint(start, 16, 64); err != nil {
		return nil, false
	}
	if m.EndAddr, err = strconv.ParseUint(end, 16, 64); err != nil {
		return nil, false
	}
	if m.FileOffset, err = strconv.ParseUint(fields[2], 16, 64); err != nil {
		return nil, false
	}
	if m.Inode, err = strconv.ParseUint(fields[4], 10, 64); err != nil {
		return nil, false
	}
	// pathname may itself contain spaces
	if len(fields) > 5 {
		m.Pathname = strings.Join(fields[5:], " ")
	}
	return m, true
}

// isFileBacked reports whether a mapping name refers to a regular file that
// still exists on disk.
func isFileBacked(mapname string) bool {
	return strings.HasPrefix(mapname, "/") &&
		!strings.HasSuffix(mapname, deletedSuffix) &&
		!strings.HasPrefix(mapname, "//anon") &&
		!strings.HasPrefix(mapname, "/dev/zero") &&
		!strings.HasPrefix(mapname, "/anon_hugepage") &&
		!strings.HasPrefix(mapname, "/SYSV") &&
		!strings.HasPrefix(mapname, "/memfd:")
}
