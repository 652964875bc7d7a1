// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package zoneread

import (
	"git.lukeshu.com/zbd-progs-ng/lib/zbd"
)

// ExtentLimit returns the number of sectors, counted from zone.Start,
// that hold readable data.  For a sequential-write-required zone that
// is not full that is the written part below the write pointer;
// every other zone is read in its entirety.
func ExtentLimit(zone zbd.Zone) zbd.Sector {
	if zone.Len <= 0 {
		return 0
	}
	if !zone.SequentialReq() || zone.Full() {
		return zone.Len
	}
	switch {
	case zone.WP <= zone.Start:
		return 0
	case zone.WP >= zone.End():
		return zone.Len
	default:
		return zone.WP - zone.Start
	}
}
