// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package zbd_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"github.com/datawire/dlib/dlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.lukeshu.com/zbd-progs-ng/lib/diskio"
	"git.lukeshu.com/zbd-progs-ng/lib/zbd"
)

type memFile struct {
	*bytes.Reader
	name string
}

var _ diskio.File[int64] = memFile{}

func (f memFile) Name() string { return f.name }
func (f memFile) Size() int64  { return f.Reader.Size() }
func (memFile) Close() error   { return nil }

func testLayout() zbd.Layout {
	return zbd.Layout{
		Model:             zbd.ModelHostManaged,
		LogicalBlockSize:  4096,
		PhysicalBlockSize: 4096,
		Zones: []zbd.Zone{
			{Type: zbd.ZoneTypeConventional, Cond: zbd.ZoneCondNotWP, Start: 0, Len: 64},
			{Type: zbd.ZoneTypeSequentialReq, Cond: zbd.ZoneCondImpOpen, Start: 64, Len: 64, WP: 80},
			{Type: zbd.ZoneTypeSequentialReq, Cond: zbd.ZoneCondFull, Start: 128, Len: 64, WP: 192},
		},
	}
}

func newTestDevice(t *testing.T, direct bool) (zbd.Device, []byte) {
	t.Helper()
	content := make([]byte, 192*512)
	for i := range content {
		content[i] = byte(i / 512)
	}
	dev, err := zbd.NewEmulated(memFile{Reader: bytes.NewReader(content), name: "mem"}, testLayout(), direct)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, dev.Close()) })
	return dev, content
}

func TestReadLayout(t *testing.T) {
	t.Parallel()
	layout, err := zbd.ReadLayout(strings.NewReader(`{
		"model": "host-managed",
		"logical_block_size": 512,
		"physical_block_size": 4096,
		"zones": [
			{"type": "Conventional", "cond": "Not-write-pointer", "start": 0, "len": 8, "wp": 0},
			{"type": "Sequential-write-required", "cond": "Empty", "start": 8, "len": 8, "wp": 8}
		]
	}`))
	require.NoError(t, err)
	assert.Equal(t, zbd.ModelHostManaged, layout.Model)
	assert.Equal(t, zbd.Sector(16), layout.Sectors())
	require.Len(t, layout.Zones, 2)
	assert.Equal(t, zbd.ZoneTypeSequentialReq, layout.Zones[1].Type)
	assert.Equal(t, zbd.ZoneCondEmpty, layout.Zones[1].Cond)

	_, err = zbd.ReadLayout(strings.NewReader(`{"model": "host-managed", "logical_block_size": 512, "physical_block_size": 512, "zones": []} x`))
	assert.Error(t, err)
}

func TestLayoutValidate(t *testing.T) {
	t.Parallel()
	type testcase struct {
		Mutate func(*zbd.Layout)
		ErrStr string
	}
	testcases := map[string]testcase{
		"ok":       {Mutate: func(*zbd.Layout) {}},
		"model":    {Mutate: func(l *zbd.Layout) { l.Model = zbd.ModelNone }, ErrStr: `layout: model "none" is not a zoned model`},
		"lbs":      {Mutate: func(l *zbd.Layout) { l.LogicalBlockSize = 1000 }, ErrStr: "layout: block size 1000 is not a power of two >= 512"},
		"gap":      {Mutate: func(l *zbd.Layout) { l.Zones[1].Start = 65 }, ErrStr: "layout: zone 1: starts at sector 65, expected 64"},
		"wp-below": {Mutate: func(l *zbd.Layout) { l.Zones[1].WP = 10 }, ErrStr: "layout: zone 1: write pointer 10 outside of [64, 128]"},
		"wp-above": {Mutate: func(l *zbd.Layout) { l.Zones[2].WP = 200 }, ErrStr: "layout: zone 2: write pointer 200 outside of [128, 192]"},
		"type":     {Mutate: func(l *zbd.Layout) { l.Zones[0].Type = 0 }, ErrStr: "layout: zone 0: unknown type 0x0"},
		"empty":    {Mutate: func(l *zbd.Layout) { l.Zones = nil }, ErrStr: "layout: no zones"},
	}
	for tcName, tc := range testcases {
		tc := tc
		t.Run(tcName, func(t *testing.T) {
			t.Parallel()
			layout := testLayout()
			tc.Mutate(&layout)
			err := layout.Validate()
			if tc.ErrStr == "" {
				assert.NoError(t, err)
			} else {
				assert.EqualError(t, err, tc.ErrStr)
			}
		})
	}
}

func TestEmulatedInfo(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)
	dev, _ := newTestDevice(t, false)

	info := dev.Info()
	assert.Equal(t, "mem", info.Name)
	assert.Equal(t, 512, info.SectorSize)
	assert.Equal(t, zbd.Sector(8), info.LogicalBlockSectors())
	assert.Equal(t, zbd.Sector(192), info.Sectors)
	assert.Equal(t, zbd.Sector(64), info.ZoneSectors)
	assert.Equal(t, uint32(3), info.NrZones)

	zones, err := dev.ReportZones(ctx)
	require.NoError(t, err)
	require.Len(t, zones, 3)
	assert.Equal(t, zbd.Sector(64), zones[0].WP)
	assert.Equal(t, zbd.Sector(64), zones[0].Capacity)
	assert.Equal(t, zbd.Sector(80), zones[1].WP)

	var out strings.Builder
	info.Print(&out)
	assert.Equal(t, `Device mem:
    Zoned block device interface, host-managed zone model
    192 512-bytes sectors
    24 logical blocks of 4096 B
    24 physical blocks of 4096 B
    0.000 GB capacity
    3 zones of 64 sectors
`, out.String())
}

func TestEmulatedReportZonesCanceled(t *testing.T) {
	t.Parallel()
	dev, _ := newTestDevice(t, false)
	ctx, cancel := context.WithCancel(dlog.NewTestContext(t, false))
	cancel()
	_, err := dev.ReportZones(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEmulatedPread(t *testing.T) {
	t.Parallel()
	dev, content := newTestDevice(t, false)

	buf := make([]byte, 4096)
	n, err := dev.Pread(buf, 64)
	require.NoError(t, err)
	assert.Equal(t, zbd.Sector(8), n)
	assert.Equal(t, content[64*512:72*512], buf)

	// short read at the end of the device
	n, err = dev.Pread(buf, 188)
	require.NoError(t, err)
	assert.Equal(t, zbd.Sector(4), n)

	// at the very end
	n, err = dev.Pread(buf, 192)
	require.NoError(t, err)
	assert.Equal(t, zbd.Sector(0), n)

	_, err = dev.Pread(buf, 193)
	assert.ErrorIs(t, err, syscall.EINVAL)
	_, err = dev.Pread(buf[:100], 0)
	assert.ErrorIs(t, err, syscall.EINVAL)
}

func TestEmulatedPreadv(t *testing.T) {
	t.Parallel()
	dev, content := newTestDevice(t, false)

	buf := make([]byte, 8192)
	n, err := dev.Preadv([][]byte{buf[:4096], buf[4096:]}, 8)
	require.NoError(t, err)
	assert.Equal(t, zbd.Sector(16), n)
	assert.Equal(t, content[8*512:24*512], buf)

	n, err = dev.Preadv([][]byte{buf[:4096], buf[4096:]}, 180)
	require.NoError(t, err)
	assert.Equal(t, zbd.Sector(12), n)
}

func TestEmulatedDirect(t *testing.T) {
	t.Parallel()
	dev, _ := newTestDevice(t, true)

	buf := diskio.AllocAligned(8192, diskio.PageSize)
	n, err := dev.Pread(buf[:4096], 8)
	require.NoError(t, err)
	assert.Equal(t, zbd.Sector(8), n)

	_, err = dev.Pread(buf[:4096], 4)
	assert.ErrorIs(t, err, syscall.EINVAL, "unaligned offset")
	_, err = dev.Pread(buf[512:4608], 8)
	assert.ErrorIs(t, err, syscall.EINVAL, "unaligned buffer")
	_, err = dev.Pread(buf[:1024], 8)
	assert.ErrorIs(t, err, syscall.EINVAL, "unaligned length")
	_, err = dev.Preadv([][]byte{buf[:4096], buf[4096:6144]}, 8)
	assert.ErrorIs(t, err, syscall.EINVAL, "unaligned second segment")
}

func TestOpenEmulated(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)
	name := filepath.Join(t.TempDir(), "image")
	require.NoError(t, os.WriteFile(name, make([]byte, 100*512), 0o600))

	layout := testLayout()
	_, err := zbd.Open(ctx, name, zbd.OpenOptions{Layout: &layout})
	assert.ErrorContains(t, err, "image is 51200 bytes, zone layout needs 98304")

	bad := testLayout()
	bad.Zones[1].Start = 65
	_, err = zbd.Open(ctx, name, zbd.OpenOptions{Layout: &bad})
	assert.EqualError(t, err, "open "+name+": layout: zone 1: starts at sector 65, expected 64")

	layout.Zones = layout.Zones[:1]
	dev, err := zbd.Open(ctx, name, zbd.OpenOptions{Layout: &layout})
	require.NoError(t, err)
	assert.Equal(t, name, dev.Name())
	assert.NoError(t, dev.Close())
}
