package elf

import "errors"

var (
	ErrNotElf       = errors.New("not an elf file")
	ErrUnknownClass = errors.New("unknown elf class")
	ErrTruncated    = errors.New("truncated elf structure")
	ErrBadNote      = errors.New("malformed note record")
	ErrNoBuildId    = errors.New("build id not found")
)
