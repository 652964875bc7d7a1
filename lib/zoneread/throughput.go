// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package zoneread

import (
	"fmt"
	"io"
	"math"
	"math/bits"
	"time"
)

const usecPerSec = 1_000_000

// Measurement is the outcome of a timed read loop.
type Measurement struct {
	Bytes   uint64        `json:"bytes"`
	IOs     uint64        `json:"ios"`
	Elapsed time.Duration `json:"elapsed_ns"`
}

// ElapsedUsec returns the elapsed time in whole microseconds.
func (m Measurement) ElapsedUsec() uint64 {
	if m.Elapsed <= 0 {
		return 0
	}
	return uint64(m.Elapsed / time.Microsecond)
}

// perSecond returns n*1e6/usec, saturating instead of overflowing.
func perSecond(n, usec uint64) uint64 {
	hi, lo := bits.Mul64(n, usecPerSec)
	if hi >= usec {
		return math.MaxUint64
	}
	q, _ := bits.Div64(hi, lo, usec)
	return q
}

// IOPS returns the I/O rate in operations per second; ok is false if
// no measurable time elapsed.
func (m Measurement) IOPS() (rate uint64, ok bool) {
	usec := m.ElapsedUsec()
	if usec == 0 {
		return 0, false
	}
	return perSecond(m.IOs, usec), true
}

// ByteRate returns the transfer rate in bytes per second; ok is false
// if no measurable time elapsed.
func (m Measurement) ByteRate() (rate uint64, ok bool) {
	usec := m.ElapsedUsec()
	if usec == 0 {
		return 0, false
	}
	return perSecond(m.Bytes, usec), true
}

// MBps splits the byte rate into whole megabytes per second and
// thousandths of a megabyte per second.
func (m Measurement) MBps() (whole, milli uint64, ok bool) {
	brate, ok := m.ByteRate()
	if !ok {
		return 0, 0, false
	}
	return brate / 1_000_000, (brate % 1_000_000) / 1_000, true
}

// WriteReport writes the totals, and (if any time elapsed) the rates.
func (m Measurement) WriteReport(w io.Writer) error {
	usec := m.ElapsedUsec()
	if usec == 0 {
		_, err := fmt.Fprintf(w, "Read %d B (%d I/Os)\n", m.Bytes, m.IOs)
		return err
	}
	iops, _ := m.IOPS()
	mbWhole, mbMilli, _ := m.MBps()
	_, err := fmt.Fprintf(w, "Read %d B (%d I/Os) in %d.%03d sec\n  IOPS %d\n  BW %d.%03d MB/s\n",
		m.Bytes, m.IOs,
		usec/usecPerSec, (usec%usecPerSec)/1000,
		iops,
		mbWhole, mbMilli)
	return err
}

// Accumulator keeps the running totals of a read loop, and times it.
type Accumulator struct {
	now   func() time.Time
	start time.Time
	cur   Measurement
}

// NewAccumulator returns an Accumulator that reads the clock through
// now, or time.Now if now is nil.
func NewAccumulator(now func() time.Time) *Accumulator {
	if now == nil {
		now = time.Now
	}
	return &Accumulator{now: now}
}

func (a *Accumulator) Start() {
	a.start = a.now()
	a.cur = Measurement{}
}

// Add records one completed I/O of n bytes.
func (a *Accumulator) Add(n uint64) {
	a.cur.Bytes += n
	a.cur.IOs++
}

func (a *Accumulator) IOs() uint64 { return a.cur.IOs }

// Snapshot returns the totals so far, with the time elapsed since
// Start.
func (a *Accumulator) Snapshot() Measurement {
	ret := a.cur
	ret.Elapsed = a.now().Sub(a.start).Truncate(time.Microsecond)
	return ret
}
