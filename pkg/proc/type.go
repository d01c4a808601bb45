package proc

import "fmt"

type Map struct {
	Pathname   string
	StartAddr  uint64
	EndAddr    uint64
	Perms      string
	FileOffset uint64
	Dev        string
	Inode      uint64
}

func (m *Map) String() string {
	if m == nil {
		return ""
	}

	return fmt.Sprintf("%s 0x%016x-0x%016x %s 0x%016x %s %d",
		m.Pathname,
		m.StartAddr,
		m.EndAddr,
		m.Perms,
		m.FileOffset,
		m.Dev,
		m.Inode)
}

func (m *Map) Executable() bool { return len(m.Perms) == 4 && m.Perms[2] == 'x' }
