package proc

import (
	"flag"
	"fmt"
	"path"
	"strconv"

	"golang.org/x/sys/unix"
)

var (
	procPath = flag.String("proc-path", "/proc", "Path to proc directory")
	hostPath = flag.String("host-path", "/", "The host directory. Useful in container.")
)

func ProcPath(paths ...string) string {
	p := append([]string{*procPath}, paths...)
	return path.Join(p...)
}

func HostProcPath(paths ...string) string {
	if *hostPath == "" || *hostPath == "/" {
		return ProcPath(paths...)
	}
	p := append([]string{*hostPath, *procPath}, paths...)
	return path.Join(p...)
}

// ExePath returns the proc link to the executable of pid, provided it can be
// read by the current user.
func ExePath(pid int) (string, error) {
	exe := HostProcPath(strconv.Itoa(pid), "exe")
	if err := unix.Access(exe, unix.R_OK); err != nil {
		return "", fmt.Errorf("access %s: %w", exe, err)
	}
	return exe, nil
}
