// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package zoneread reads the valid data of one zone of a zoned block
// device, and measures the throughput of doing so.
package zoneread

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/datawire/dlib/dlog"
	"github.com/juju/ratelimit"

	"git.lukeshu.com/zbd-progs-ng/lib/containers"
	"git.lukeshu.com/zbd-progs-ng/lib/diskio"
	"git.lukeshu.com/zbd-progs-ng/lib/textui"
	"git.lukeshu.com/zbd-progs-ng/lib/zbd"
)

type Config struct {
	// IOSize is the size of each I/O in bytes; it must be a
	// multiple of the logical block size.
	IOSize int
	// IOBudget caps the number of I/Os.
	IOBudget containers.Optional[uint64]
	// Offset is where to start reading, in sectors from the start
	// of the zone.
	Offset zbd.Sector
	// Vectored splits each I/O into two segments.
	Vectored bool
	// Direct indicates that the device was opened with O_DIRECT.
	Direct bool
	// Bandwidth caps the read rate in bytes per second; 0 is
	// unlimited.
	Bandwidth int64
}

type ConfigError struct {
	Option string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid %s %v", e.Option, e.Value)
	}
	return fmt.Sprintf("invalid %s %v (%s)", e.Option, e.Value, e.Reason)
}

// Validate checks cfg against the device geometry.
func (cfg Config) Validate(info zbd.DeviceInfo) error {
	if info.SectorSize <= 0 {
		return fmt.Errorf("device %q reports a sector size of %d B", info.Name, info.SectorSize)
	}
	if cfg.IOSize <= 0 {
		return &ConfigError{Option: "I/O size", Value: cfg.IOSize}
	}
	if info.LogicalBlockSize > 0 && cfg.IOSize%info.LogicalBlockSize != 0 {
		return &ConfigError{
			Option: "I/O size",
			Value:  cfg.IOSize,
			Reason: fmt.Sprintf("must be a multiple of %d B", info.LogicalBlockSize),
		}
	}
	if cfg.IOSize%info.SectorSize != 0 {
		return &ConfigError{
			Option: "I/O size",
			Value:  cfg.IOSize,
			Reason: fmt.Sprintf("must be a multiple of %d B", info.SectorSize),
		}
	}
	if cfg.IOBudget.OK && cfg.IOBudget.Val == 0 {
		return &ConfigError{Option: "number of I/Os", Value: cfg.IOBudget.Val}
	}
	if cfg.Offset < 0 {
		return &ConfigError{Option: "sector offset", Value: int64(cfg.Offset)}
	}
	if cfg.Direct && info.LogicalBlockSize > 0 && cfg.Offset.Bytes(info.SectorSize)%int64(info.LogicalBlockSize) != 0 {
		return &ConfigError{
			Option: "sector offset",
			Value:  int64(cfg.Offset),
			Reason: fmt.Sprintf("direct I/O needs a multiple of %d B", info.LogicalBlockSize),
		}
	}
	if cfg.Bandwidth < 0 {
		return &ConfigError{Option: "bandwidth limit", Value: cfg.Bandwidth}
	}
	return nil
}

type Status int

const (
	StatusDone Status = iota
	StatusAborted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusDone:
		return "done"
	case StatusAborted:
		return "aborted"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// SinkError is a failure to hand read data to the output.
type SinkError struct {
	Err error
}

func (e *SinkError) Error() string { return fmt.Sprintf("write output: %v", e.Err) }
func (e *SinkError) Unwrap() error { return e.Err }

// Result is the outcome of Session.Run.  The counters are valid for
// every status, including partial runs.
type Result struct {
	Status Status     `json:"status"`
	Cursor zbd.Sector `json:"cursor"`
	Extent zbd.Sector `json:"extent"`
	Measurement
	Err error `json:"-"`
}

// DiscardArtifact reports whether an output file written by the run
// should be removed.
func (r Result) DiscardArtifact() bool {
	return r.Status == StatusFailed
}

// ExitCode is the process exit status for the result.
func (r Result) ExitCode() int {
	if r.Status == StatusFailed {
		return 1
	}
	return 0
}

// Session is a single read pass over one zone.
type Session struct {
	cfg    Config
	zone   zbd.Zone
	extent zbd.Sector

	sectorSize int
	ioSectors  zbd.Sector
	lblock     zbd.Sector
	dispatcher dispatcher
	buf        []byte

	now   func() time.Time
	sleep func(context.Context, time.Duration)
}

var ErrSessionUsed = errors.New("read session has already run")

// NewSession validates cfg and allocates the transfer buffer.
func NewSession(dev Reader, info zbd.DeviceInfo, zone zbd.Zone, cfg Config) (*Session, error) {
	if err := cfg.Validate(info); err != nil {
		return nil, err
	}
	align := diskio.PageSize
	if info.LogicalBlockSize > align {
		align = info.LogicalBlockSize
	}
	buf := diskio.AllocAligned(cfg.IOSize, align)
	if !diskio.IsAddrAligned(buf, align) {
		return nil, fmt.Errorf("transfer buffer is not aligned to %d B", align)
	}
	return &Session{
		cfg:    cfg,
		zone:   zone,
		extent: ExtentLimit(zone),

		sectorSize: info.SectorSize,
		ioSectors:  zbd.SectorsIn(int64(cfg.IOSize), info.SectorSize),
		lblock:     info.LogicalBlockSectors(),
		dispatcher: dispatcher{
			dev:        dev,
			sectorSize: info.SectorSize,
		},
		buf: buf,

		now:   time.Now,
		sleep: sleepContext,
	}, nil
}

// Extent returns the number of readable sectors in the zone.
func (s *Session) Extent() zbd.Sector { return s.extent }

type progressStats struct {
	cursor zbd.Sector
	extent zbd.Sector
	bytes  uint64
	ios    uint64
}

func (st progressStats) String() string {
	return textui.Sprintf("read %v sectors, %v in %d I/Os",
		textui.Portion[zbd.Sector]{N: st.cursor, D: st.extent},
		textui.IEC(st.bytes, "B"),
		st.ios)
}

// Run reads from the offset (clamped to the extent limit) up to the
// extent limit, handing each
// buffer to sink (if non-nil) before issuing the next I/O.  The run
// stops early when the I/O budget is spent, when abort is set or ctx
// is canceled (StatusAborted), or on the first error (StatusFailed).
// A Session can only be run once.
func (s *Session) Run(ctx context.Context, abort *AbortFlag, sink io.Writer) Result {
	start := s.cfg.Offset
	if start > s.extent {
		start = s.extent
	}
	ret := Result{
		Status: StatusDone,
		Cursor: start,
		Extent: s.extent,
	}
	if s.buf == nil {
		ret.Status = StatusFailed
		ret.Err = ErrSessionUsed
		return ret
	}
	defer func() { s.buf = nil }()
	if abort == nil {
		abort = new(AbortFlag)
	}
	ctx = dlog.WithField(ctx, "zoneread.step", "read")

	var bucket *ratelimit.Bucket
	if s.cfg.Bandwidth > 0 {
		capacity := s.cfg.Bandwidth
		if int64(s.cfg.IOSize) > capacity {
			capacity = int64(s.cfg.IOSize)
		}
		bucket = ratelimit.NewBucketWithRate(float64(s.cfg.Bandwidth), capacity)
	}

	progress := textui.NewProgress[progressStats](ctx, dlog.LogLevelInfo, textui.Tunable(1*time.Second))
	defer progress.Done()

	acc := NewAccumulator(s.now)
	acc.Start()
	cursor := start
	for {
		if abort.Aborted() || ctx.Err() != nil {
			dlog.Infof(ctx, "aborted at sector offset %d", cursor)
			ret.Status = StatusAborted
			break
		}
		if cursor >= s.extent {
			break
		}
		plan := PlanIO(s.ioSectors, s.extent-cursor, s.lblock, s.cfg.Vectored)
		n, err := s.dispatcher.dispatch(s.buf, s.zone.Start+cursor, plan)
		if err != nil {
			ret.Status = StatusFailed
			ret.Err = err
			break
		}
		nBytes := n.Bytes(s.sectorSize)
		if sink != nil {
			if _, err := sink.Write(s.buf[:nBytes]); err != nil {
				ret.Status = StatusFailed
				ret.Err = &SinkError{Err: err}
				break
			}
		}
		cursor += n
		acc.Add(uint64(nBytes))
		progress.Set(progressStats{
			cursor: cursor,
			extent: s.extent,
			bytes:  acc.cur.Bytes,
			ios:    acc.cur.IOs,
		})
		if s.cfg.IOBudget.OK && acc.IOs() >= s.cfg.IOBudget.Val {
			break
		}
		if bucket != nil {
			s.throttle(ctx, bucket, nBytes)
		}
	}
	ret.Measurement = acc.Snapshot()
	ret.Cursor = cursor
	return ret
}

// throttle blocks until the bandwidth cap admits n more bytes, or ctx
// is canceled.
func (s *Session) throttle(ctx context.Context, bucket *ratelimit.Bucket, n int64) {
	if wait := bucket.Take(n); wait > 0 {
		s.sleep(ctx, wait)
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
