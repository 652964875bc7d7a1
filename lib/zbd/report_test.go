// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package zbd

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.lukeshu.com/zbd-progs-ng/lib/binstruct"
	"git.lukeshu.com/zbd-progs-ng/lib/linux"
)

func fakeReply(t *testing.T, flags uint32, zones ...linux.BlkZone) []byte {
	t.Helper()
	dat, err := binstruct.Marshal(linux.BlkZoneReport{
		NrZones: uint32(len(zones)),
		Flags:   flags,
	})
	require.NoError(t, err)
	for _, zone := range zones {
		bs, err := binstruct.Marshal(zone)
		require.NoError(t, err)
		dat = append(dat, bs...)
	}
	return dat
}

func TestNewZoneReport(t *testing.T) {
	t.Parallel()
	buf, err := newZoneReport(0x1000, 4)
	require.NoError(t, err)
	assert.Len(t, buf, 16+4*64)
	assert.Equal(t, []byte{0x00, 0x10, 0, 0, 0, 0, 0, 0, 4, 0, 0, 0, 0, 0, 0, 0}, buf[:16])
}

func TestParseZoneReport(t *testing.T) {
	t.Parallel()
	dat := fakeReply(t, linux.BLK_ZONE_REP_CAPACITY,
		linux.BlkZone{Start: 0, Len: 0x80000, WP: math.MaxUint64, Type: 1, Cond: 0, Capacity: 0x80000},
		linux.BlkZone{Start: 0x80000, Len: 0x80000, WP: 0x80100, Type: 2, Cond: 2, Reset: 1, Capacity: 0x70000},
	)
	zones, err := parseZoneReport(dat)
	require.NoError(t, err)
	assert.Equal(t, []Zone{
		{
			Type:     ZoneTypeConventional,
			Cond:     ZoneCondNotWP,
			Start:    0,
			Len:      0x80000,
			Capacity: 0x80000,
			WP:       0x80000,
		},
		{
			Type:     ZoneTypeSequentialReq,
			Cond:     ZoneCondImpOpen,
			Flags:    ZoneFlagResetRecommended,
			Start:    0x80000,
			Len:      0x80000,
			Capacity: 0x70000,
			WP:       0x80100,
		},
	}, zones)
}

func TestParseZoneReportNoCapacity(t *testing.T) {
	t.Parallel()
	dat := fakeReply(t, 0,
		linux.BlkZone{Start: 0, Len: 0x100, WP: 0x10, Type: 2, Cond: 1, NonSeq: 1, Capacity: 0xdead},
	)
	zones, err := parseZoneReport(dat)
	require.NoError(t, err)
	require.Len(t, zones, 1)
	assert.Equal(t, Sector(0x100), zones[0].Capacity)
	assert.Equal(t, ZoneFlagNonSeq, zones[0].Flags)
}

func TestParseZoneReportShort(t *testing.T) {
	t.Parallel()
	dat := fakeReply(t, 0, linux.BlkZone{Len: 1, Type: 1})
	_, err := parseZoneReport(dat[:len(dat)-1])
	assert.ErrorContains(t, err, "1 zones need 80 bytes, only have 79")

	_, err = parseZoneReport(dat[:8])
	assert.Error(t, err)
}

func FuzzParseZoneReport(f *testing.F) {
	f.Add([]byte{})
	f.Add(make([]byte, 16+64))
	f.Fuzz(func(t *testing.T, dat []byte) {
		zones, err := parseZoneReport(dat)
		if err != nil {
			return
		}
		if want := int(binstruct.HostOrder.Uint32(dat[8:12])); len(zones) != want {
			t.Errorf("got %d zones, header says %d", len(zones), want)
		}
	})
}

func TestParseModel(t *testing.T) {
	t.Parallel()
	m, err := parseModel("host-managed\n")
	require.NoError(t, err)
	assert.Equal(t, ModelHostManaged, m)
	assert.True(t, m.Zoned())

	m, err = parseModel("none\n")
	require.NoError(t, err)
	assert.False(t, m.Zoned())

	_, err = parseModel("drive-managed\n")
	assert.Error(t, err)
}
