// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package linux

import (
	"git.lukeshu.com/zbd-progs-ng/lib/binstruct"
)

// Block-device ioctl request numbers from <linux/fs.h> and
// <linux/blkzoned.h>, using the asm-generic _IOC encoding (amd64,
// arm64, riscv64, ...).
const (
	BLKSSZGET     = 0x1268     // _IO(0x12, 104): logical block size, int
	BLKPBSZGET    = 0x127b     // _IO(0x12, 123): physical block size, unsigned int
	BLKGETSIZE64  = 0x80081272 // _IOR(0x12, 114, size_t): device size in bytes
	BLKREPORTZONE = 0xc0101282 // _IOWR(0x12, 130, struct blk_zone_report)
	BLKGETZONESZ  = 0x80041284 // _IOR(0x12, 132, __u32): zone size in sectors
	BLKGETNRZONES = 0x80041285 // _IOR(0x12, 133, __u32)
)

// SectorSize is the unit of all sector numbers passed across the
// block-layer ABI, regardless of the device's logical block size.
const SectorSize = 512

const BLK_ZONE_REP_CAPACITY = 1 << 0 //nolint:revive,stylecheck // name from the kernel

// BlkZoneReport is `struct blk_zone_report`, the header of the
// BLKREPORTZONE argument; it is followed by NrZones BlkZone structs.
type BlkZoneReport struct {
	Sector        uint64 `bin:"off=0x0, siz=0x8"`
	NrZones       uint32 `bin:"off=0x8, siz=0x4"`
	Flags         uint32 `bin:"off=0xc, siz=0x4"`
	binstruct.End `bin:"off=0x10"`
}

// BlkZone is `struct blk_zone`.
type BlkZone struct {
	Start         uint64 `bin:"off=0x0, siz=0x8"`  // zone start sector
	Len           uint64 `bin:"off=0x8, siz=0x8"`  // zone length in sectors
	WP            uint64 `bin:"off=0x10, siz=0x8"` // write pointer position
	Type          uint8  `bin:"off=0x18, siz=0x1"`
	Cond          uint8  `bin:"off=0x19, siz=0x1"`
	NonSeq        uint8  `bin:"off=0x1a, siz=0x1"`
	Reset         uint8  `bin:"off=0x1b, siz=0x1"`
	Capacity      uint64 `bin:"off=0x20, siz=0x8"` // only valid with BLK_ZONE_REP_CAPACITY
	binstruct.End `bin:"off=0x40"`
}
