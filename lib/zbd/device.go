// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package zbd provides access to zoned block devices: device and
// zone reporting, and sector-addressed positioned reads.
package zbd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/datawire/dlib/dlog"
)

// ErrNotZoned is returned by Open for a device that does not
// implement a zone model.
var ErrNotZoned = errors.New("not a zoned block device")

type Model string

const (
	ModelHostManaged = Model("host-managed")
	ModelHostAware   = Model("host-aware")
	ModelNone        = Model("none")
)

func (m Model) Zoned() bool {
	return m == ModelHostManaged || m == ModelHostAware
}

// DeviceInfo describes a device's geometry.
type DeviceInfo struct {
	Name              string `json:"name"`
	Model             Model  `json:"model"`
	SectorSize        int    `json:"sector_size"`
	LogicalBlockSize  int    `json:"logical_block_size"`
	PhysicalBlockSize int    `json:"physical_block_size"`
	Sectors           Sector `json:"sectors"`
	ZoneSectors       Sector `json:"zone_sectors"`
	NrZones           uint32 `json:"nr_zones"`
}

// LogicalBlockSectors returns the logical block size in sectors.
func (info DeviceInfo) LogicalBlockSectors() Sector {
	return Sector(info.LogicalBlockSize / info.SectorSize)
}

func (info DeviceInfo) Bytes() int64 {
	return info.Sectors.Bytes(info.SectorSize)
}

// Print writes a human-readable description of the device.
func (info DeviceInfo) Print(w io.Writer) {
	fmt.Fprintf(w, "Device %s:\n", info.Name)
	fmt.Fprintf(w, "    Zoned block device interface, %s zone model\n", info.Model)
	fmt.Fprintf(w, "    %d %d-bytes sectors\n", int64(info.Sectors), info.SectorSize)
	if info.LogicalBlockSize > 0 {
		fmt.Fprintf(w, "    %d logical blocks of %d B\n",
			info.Bytes()/int64(info.LogicalBlockSize), info.LogicalBlockSize)
	}
	if info.PhysicalBlockSize > 0 {
		fmt.Fprintf(w, "    %d physical blocks of %d B\n",
			info.Bytes()/int64(info.PhysicalBlockSize), info.PhysicalBlockSize)
	}
	fmt.Fprintf(w, "    %d.%03d GB capacity\n",
		info.Bytes()/1000000000, (info.Bytes()%1000000000)/1000000)
	if info.NrZones > 0 {
		fmt.Fprintf(w, "    %d zones of %d sectors\n", info.NrZones, int64(info.ZoneSectors))
	}
}

// Device is an open zoned block device.
type Device interface {
	Name() string
	Info() DeviceInfo
	// ReportZones returns every zone of the device, in order.
	ReportZones(ctx context.Context) ([]Zone, error)
	// Pread reads len(buf) bytes starting at sector, and returns the
	// number of sectors read.
	Pread(buf []byte, sector Sector) (Sector, error)
	// Preadv is like Pread, but scatters into several buffers.
	Preadv(bufs [][]byte, sector Sector) (Sector, error)
	Close() error
}

type OpenOptions struct {
	// Direct requests O_DIRECT.
	Direct bool
	// Layout, if set, emulates a zoned device over the named
	// regular file or image, using this zone layout.
	Layout *Layout
}

// Open opens the device at filename.
func Open(ctx context.Context, filename string, opts OpenOptions) (Device, error) {
	if opts.Layout != nil {
		dlog.Debugf(ctx, "emulating zoned device over %q with %d zones", filename, len(opts.Layout.Zones))
		return OpenEmulated(filename, *opts.Layout, opts.Direct)
	}
	return openBlockDevice(ctx, filename, opts.Direct)
}
