// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package zbd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"syscall"

	"git.lukeshu.com/go/lowmemjson"

	"git.lukeshu.com/zbd-progs-ng/lib/diskio"
)

const emulatedSectorSize = 512

// Layout is the zone layout of an emulated device, as stored in a
// --zones JSON file.
type Layout struct {
	Model             Model  `json:"model"`
	LogicalBlockSize  int    `json:"logical_block_size"`
	PhysicalBlockSize int    `json:"physical_block_size"`
	Zones             []Zone `json:"zones"`
}

// ReadLayout decodes a JSON zone layout and validates it.
func ReadLayout(r io.Reader) (Layout, error) {
	var ret Layout
	if err := lowmemjson.NewDecoder(bufio.NewReader(r)).DecodeThenEOF(&ret); err != nil {
		return Layout{}, err
	}
	if err := ret.Validate(); err != nil {
		return Layout{}, err
	}
	return ret, nil
}

// Validate checks that the zones are contiguous from sector 0 and
// that every write pointer is inside its zone.
func (l Layout) Validate() error {
	if !l.Model.Zoned() {
		return fmt.Errorf("layout: model %q is not a zoned model", l.Model)
	}
	for _, bs := range []int{l.LogicalBlockSize, l.PhysicalBlockSize} {
		if bs < emulatedSectorSize || bs&(bs-1) != 0 {
			return fmt.Errorf("layout: block size %d is not a power of two >= %d", bs, emulatedSectorSize)
		}
	}
	if len(l.Zones) == 0 {
		return errors.New("layout: no zones")
	}
	var next Sector
	for i, zone := range l.Zones {
		if zone.Start != next {
			return fmt.Errorf("layout: zone %d: starts at sector %d, expected %d", i, zone.Start, next)
		}
		if zone.Len <= 0 {
			return fmt.Errorf("layout: zone %d: length %d", i, zone.Len)
		}
		if zone.Type.String() == "Unknown" {
			return fmt.Errorf("layout: zone %d: unknown type %#x", i, uint8(zone.Type))
		}
		if zone.Sequential() && (zone.WP < zone.Start || zone.WP > zone.End()) {
			return fmt.Errorf("layout: zone %d: write pointer %d outside of [%d, %d]",
				i, zone.WP, zone.Start, zone.End())
		}
		next = zone.End()
	}
	return nil
}

func (l Layout) Sectors() Sector {
	if len(l.Zones) == 0 {
		return 0
	}
	return l.Zones[len(l.Zones)-1].End()
}

// emulatedDevice serves a zone layout over a plain file.  In direct
// mode it enforces the O_DIRECT alignment rules, but still reads
// through the page cache.
type emulatedDevice struct {
	file   diskio.File[int64]
	info   DeviceInfo
	zones  []Zone
	direct bool
}

var _ Device = (*emulatedDevice)(nil)

// OpenEmulated opens filename as the backing store of an emulated
// zoned device.
func OpenEmulated(filename string, layout Layout, direct bool) (Device, error) {
	fh, err := diskio.OpenFile[int64](filename, 0)
	if err != nil {
		return nil, err
	}
	dev, err := NewEmulated(fh, layout, direct)
	if err != nil {
		_ = fh.Close()
		return nil, err
	}
	return dev, nil
}

// NewEmulated wraps an already-open file as an emulated zoned device.
// The device takes ownership of file.
func NewEmulated(file diskio.File[int64], layout Layout, direct bool) (Device, error) {
	if err := layout.Validate(); err != nil {
		return nil, &fs.PathError{Op: "open", Path: file.Name(), Err: err}
	}
	if need := layout.Sectors().Bytes(emulatedSectorSize); file.Size() < need {
		return nil, &fs.PathError{Op: "open", Path: file.Name(),
			Err: fmt.Errorf("image is %d bytes, zone layout needs %d", file.Size(), need)}
	}
	zones := make([]Zone, len(layout.Zones))
	copy(zones, layout.Zones)
	for i := range zones {
		if zones[i].Capacity == 0 {
			zones[i].Capacity = zones[i].Len
		}
		if !zones[i].Sequential() {
			zones[i].WP = zones[i].End()
		}
	}
	return &emulatedDevice{
		file: file,
		info: DeviceInfo{
			Name:              file.Name(),
			Model:             layout.Model,
			SectorSize:        emulatedSectorSize,
			LogicalBlockSize:  layout.LogicalBlockSize,
			PhysicalBlockSize: layout.PhysicalBlockSize,
			Sectors:           layout.Sectors(),
			ZoneSectors:       zones[0].Len,
			NrZones:           uint32(len(zones)),
		},
		zones:  zones,
		direct: direct,
	}, nil
}

func (dev *emulatedDevice) Name() string     { return dev.info.Name }
func (dev *emulatedDevice) Info() DeviceInfo { return dev.info }
func (dev *emulatedDevice) Close() error     { return dev.file.Close() }

func (dev *emulatedDevice) ReportZones(ctx context.Context) ([]Zone, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ret := make([]Zone, len(dev.zones))
	copy(ret, dev.zones)
	return ret, nil
}

func (dev *emulatedDevice) check(op string, buf []byte, sector Sector) error {
	if sector < 0 || sector > dev.info.Sectors || len(buf)%dev.info.SectorSize != 0 {
		return &fs.PathError{Op: op, Path: dev.info.Name, Err: syscall.EINVAL}
	}
	if dev.direct {
		lbs := dev.info.LogicalBlockSize
		if sector.Bytes(dev.info.SectorSize)%int64(lbs) != 0 || !diskio.IsAligned(buf, lbs) {
			return &fs.PathError{Op: op, Path: dev.info.Name, Err: syscall.EINVAL}
		}
	}
	return nil
}

func (dev *emulatedDevice) readAt(op string, buf []byte, sector Sector) (int, error) {
	// Never read past the last zone, even if the image is larger.
	end := dev.info.Sectors.Bytes(dev.info.SectorSize)
	off := sector.Bytes(dev.info.SectorSize)
	if room := end - off; int64(len(buf)) > room {
		buf = buf[:room]
	}
	if len(buf) == 0 {
		return 0, nil
	}
	n, err := dev.file.ReadAt(buf, off)
	if err != nil && !(errors.Is(err, io.EOF) && n > 0) {
		if errors.Is(err, io.EOF) {
			err = syscall.EIO
		}
		return n, &fs.PathError{Op: op, Path: dev.info.Name, Err: err}
	}
	return n, nil
}

func (dev *emulatedDevice) Pread(buf []byte, sector Sector) (Sector, error) {
	if err := dev.check("pread", buf, sector); err != nil {
		return 0, err
	}
	n, err := dev.readAt("pread", buf, sector)
	if err != nil {
		return 0, err
	}
	return SectorsIn(int64(n), dev.info.SectorSize), nil
}

func (dev *emulatedDevice) Preadv(bufs [][]byte, sector Sector) (Sector, error) {
	at := sector
	for _, buf := range bufs {
		if err := dev.check("preadv", buf, at); err != nil {
			return 0, err
		}
		at += SectorsIn(int64(len(buf)), dev.info.SectorSize)
	}
	var total Sector
	for _, buf := range bufs {
		n, err := dev.readAt("preadv", buf, sector+total)
		if err != nil {
			return 0, err
		}
		total += SectorsIn(int64(n), dev.info.SectorSize)
		if n < len(buf) {
			break
		}
	}
	return total, nil
}
