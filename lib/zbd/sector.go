// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package zbd

import (
	"fmt"

	"git.lukeshu.com/zbd-progs-ng/lib/fmtutil"
)

// Sector is a device address or length in units of
// DeviceInfo.SectorSize bytes.
type Sector int64

func (s Sector) Format(f fmt.State, verb rune) {
	switch verb {
	case 'v', 's', 'q':
		str := fmt.Sprintf("%#016x", int64(s))
		fmt.Fprintf(f, fmtutil.FmtStateString(f, verb), str)
	default:
		fmt.Fprintf(f, fmtutil.FmtStateString(f, verb), int64(s))
	}
}

// Bytes converts a sector count to a byte count.
func (s Sector) Bytes(sectorSize int) int64 { return int64(s) * int64(sectorSize) }

// SectorsIn returns the number of whole sectors in n bytes.
func SectorsIn(n int64, sectorSize int) Sector { return Sector(n / int64(sectorSize)) }
