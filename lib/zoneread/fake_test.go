// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package zoneread_test

import (
	"time"

	"git.lukeshu.com/zbd-progs-ng/lib/zbd"
)

type readCall struct {
	Sector   zbd.Sector
	Segments []int
}

// fakeDevice fills every buffer with the low byte of the sector
// number, and records each call.  Hooks may override the result of
// the Nth (1-based) call.
type fakeDevice struct {
	sectorSize int
	calls      []readCall
	fail       map[int]error
	short      map[int]zbd.Sector
	after      func(call int)
}

func (d *fakeDevice) read(bufs [][]byte, sector zbd.Sector) (zbd.Sector, error) {
	call := readCall{Sector: sector}
	for _, buf := range bufs {
		call.Segments = append(call.Segments, len(buf))
	}
	d.calls = append(d.calls, call)
	callNum := len(d.calls)
	if d.after != nil {
		defer d.after(callNum)
	}
	if err, ok := d.fail[callNum]; ok {
		return 0, err
	}
	var n zbd.Sector
	for _, buf := range bufs {
		for i := range buf {
			buf[i] = byte(sector + n + zbd.Sector(i/d.sectorSize))
		}
		n += zbd.SectorsIn(int64(len(buf)), d.sectorSize)
	}
	if short, ok := d.short[callNum]; ok {
		n = short
	}
	return n, nil
}

func (d *fakeDevice) Pread(buf []byte, sector zbd.Sector) (zbd.Sector, error) {
	return d.read([][]byte{buf}, sector)
}

func (d *fakeDevice) Preadv(bufs [][]byte, sector zbd.Sector) (zbd.Sector, error) {
	return d.read(bufs, sector)
}

func testInfo(lbs int) zbd.DeviceInfo {
	return zbd.DeviceInfo{
		Name:              "fake",
		Model:             zbd.ModelHostManaged,
		SectorSize:        512,
		LogicalBlockSize:  lbs,
		PhysicalBlockSize: lbs,
	}
}

// fakeClock advances by step every time it is read.
type fakeClock struct {
	t    time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	ret := c.t
	c.t = c.t.Add(c.step)
	return ret
}
