// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package linux holds definitions of Linux kernel ABI structures and
// constants that are not (or not conveniently) provided by
// golang.org/x/sys/unix.
package linux

// StatMode is the st_mode field of struct stat.
type StatMode uint32

const (
	ModeFmt StatMode = 0o17_0000 // mask for the type bits

	ModeFmtNamedPipe   StatMode = 0o01_0000
	ModeFmtCharDevice  StatMode = 0o02_0000
	ModeFmtDir         StatMode = 0o04_0000
	ModeFmtBlockDevice StatMode = 0o06_0000
	ModeFmtRegular     StatMode = 0o10_0000
	ModeFmtSymlink     StatMode = 0o12_0000
	ModeFmtSocket      StatMode = 0o14_0000
)

var fileTypeNames = map[StatMode]string{
	ModeFmtNamedPipe:   "named pipe",
	ModeFmtCharDevice:  "character device",
	ModeFmtDir:         "directory",
	ModeFmtBlockDevice: "block device",
	ModeFmtRegular:     "regular file",
	ModeFmtSymlink:     "symbolic link",
	ModeFmtSocket:      "socket",
}

func (mode StatMode) IsBlockDevice() bool {
	return mode&ModeFmt == ModeFmtBlockDevice
}

// FileType describes the type bits of mode, for messages.
func (mode StatMode) FileType() string {
	if name, ok := fileTypeNames[mode&ModeFmt]; ok {
		return name
	}
	return "file of unknown type"
}
