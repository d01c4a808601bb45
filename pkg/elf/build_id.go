package elf

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/golang/glog"
)

type BuildType string

const (
	GNU BuildType = "GNU"
	GO  BuildType = "GO"
)

type BuildId struct {
	Id   string
	Type BuildType
}

func GnuBuildId(id string) BuildId { return BuildId{id, GNU} }

func GoBuildId(id string) BuildId { return BuildId{id, GO} }

func (id BuildId) GNU() bool { return id.Type == GNU }

func (id BuildId) Empty() bool { return id.Id == "" || id.Type == "" }

// FormatBuildId renders raw descriptor bytes as lowercase hex.
func FormatBuildId(raw []byte) string { return hex.EncodeToString(raw) }

// BuildId returns the GNU build id, falling back to the Go one when goFallback
// is set and the file carries no GNU note.
func (f *File) BuildId(goFallback bool) (BuildId, error) {
	id, err := f.GnuBuildId()
	if err == nil || !goFallback || !errors.Is(err, ErrNoBuildId) {
		return id, err
	}
	return f.GoBuildId()
}

func (f *File) GnuBuildId() (BuildId, error) {
	raw, err := f.findNote(gnuOwner, NT_GNU_BUILD_ID)
	if err != nil {
		return BuildId{}, err
	}
	// The first GNU note decides, even when it carries no bytes.
	if len(raw) == 0 {
		return BuildId{}, fmt.Errorf("empty gnu build id: %w", ErrNoBuildId)
	}
	return GnuBuildId(FormatBuildId(raw)), nil
}

var goBuildIdSep = []byte("/")

func (f *File) GoBuildId() (BuildId, error) {
	raw, err := f.findNote(goOwner, NT_GO_BUILD_ID)
	if err != nil {
		return BuildId{}, err
	}
	if len(raw) < 40 || bytes.Count(raw, goBuildIdSep) < 2 || string(raw) == "redacted" {
		return BuildId{}, fmt.Errorf("go build id %q: %w", raw, ErrNoBuildId)
	}
	return GoBuildId(string(raw)), nil
}

// findNote scans note sections in table order and returns the first matching
// descriptor. A section that cannot be read or decoded is skipped; an
// unreadable section table ends the scan.
func (f *File) findNote(owner noteOwner, typ uint32) ([]byte, error) {
	var found []byte
	err := f.NoteSections(func(index int, sh *SectionHeader) bool {
		data, err := f.SectionData(sh)
		if err != nil {
			glog.V(2).Infof("Skip note section %d of %s: %v", index, f.fpath, err)
			return true
		}
		desc, err := findNote(data, sh.Size, f.ByteOrder, owner, typ)
		if err != nil {
			glog.V(2).Infof("Stop decoding note section %d of %s: %v", index, f.fpath, err)
		}
		if desc == nil {
			return true
		}
		found = desc
		return false
	})
	if found != nil {
		return found, nil
	}
	if err != nil {
		return nil, err
	}
	return nil, ErrNoBuildId
}
