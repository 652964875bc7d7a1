// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package zoneread

import (
	"fmt"
	"io"

	"git.lukeshu.com/zbd-progs-ng/lib/zbd"
)

// Reader is the positioned-read primitive that the loop reads
// through; zbd.Device implements it.
type Reader interface {
	Pread(buf []byte, sector zbd.Sector) (zbd.Sector, error)
	Preadv(bufs [][]byte, sector zbd.Sector) (zbd.Sector, error)
}

var _ Reader = zbd.Device(nil)

// IOPlan is the shape of a single I/O.  First is the length of the
// first segment; if First < Want, the I/O is vectored and the second
// segment holds the rest.
type IOPlan struct {
	Want  zbd.Sector
	First zbd.Sector
}

func (p IOPlan) Vectored() bool         { return p.First < p.Want }
func (p IOPlan) Second() zbd.Sector     { return p.Want - p.First }
func (p IOPlan) Segments() []zbd.Sector { return []zbd.Sector{p.First, p.Second()} }

// PlanIO decides the shape of the next I/O: min(ioSectors, remaining)
// sectors, split in two halves when vectored I/O is enabled and the
// request spans at least two logical blocks.
func PlanIO(ioSectors, remaining, lblockSectors zbd.Sector, vectored bool) IOPlan {
	if lblockSectors < 1 {
		lblockSectors = 1
	}
	want := ioSectors
	if remaining < want {
		want = remaining
	}
	if vectored && want >= 2*lblockSectors {
		return IOPlan{Want: want, First: want / 2}
	}
	return IOPlan{Want: want, First: want}
}

// TransferError is a failed or empty read from the device.
type TransferError struct {
	Sector zbd.Sector
	Want   zbd.Sector
	Err    error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("read of %d sectors at sector %d: %v", e.Want, e.Sector, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

type dispatcher struct {
	dev        Reader
	sectorSize int
	iov        [2][]byte
}

// dispatch issues one I/O into buf according to plan, and returns
// the number of sectors transferred, which is always > 0 on success.
func (d *dispatcher) dispatch(buf []byte, sector zbd.Sector, plan IOPlan) (zbd.Sector, error) {
	var n zbd.Sector
	var err error
	if plan.Vectored() {
		split := plan.First.Bytes(d.sectorSize)
		end := plan.Want.Bytes(d.sectorSize)
		d.iov[0] = buf[:split]
		d.iov[1] = buf[split:end]
		n, err = d.dev.Preadv(d.iov[:], sector)
	} else {
		n, err = d.dev.Pread(buf[:plan.Want.Bytes(d.sectorSize)], sector)
	}
	if err == nil && n <= 0 {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		return 0, &TransferError{Sector: sector, Want: plan.Want, Err: err}
	}
	if n > plan.Want {
		n = plan.Want
	}
	return n, nil
}
