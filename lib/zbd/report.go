// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package zbd

import (
	"fmt"
	"strings"

	"git.lukeshu.com/zbd-progs-ng/lib/binstruct"
	"git.lukeshu.com/zbd-progs-ng/lib/linux"
	"git.lukeshu.com/zbd-progs-ng/lib/textui"
)

var (
	reportHeaderSize = binstruct.StaticSize(linux.BlkZoneReport{})
	reportZoneSize   = binstruct.StaticSize(linux.BlkZone{})
)

var reportBatchSize = textui.Tunable(uint32(1024))

// newZoneReport returns a BLKREPORTZONE argument buffer asking for up
// to nr zones starting at sector.
func newZoneReport(sector Sector, nr uint32) ([]byte, error) {
	hdr, err := binstruct.Marshal(linux.BlkZoneReport{
		Sector:  uint64(sector),
		NrZones: nr,
	})
	if err != nil {
		return nil, err
	}
	buf := make([]byte, reportHeaderSize+int(nr)*reportZoneSize)
	copy(buf, hdr)
	return buf, nil
}

// parseZoneReport decodes a BLKREPORTZONE reply.
func parseZoneReport(dat []byte) ([]Zone, error) {
	var hdr linux.BlkZoneReport
	n, err := binstruct.Unmarshal(dat, &hdr)
	if err != nil {
		return nil, fmt.Errorf("zone report header: %w", err)
	}
	if need := n + int(hdr.NrZones)*reportZoneSize; len(dat) < need {
		return nil, fmt.Errorf("zone report: %d zones need %d bytes, only have %d",
			hdr.NrZones, need, len(dat))
	}
	hasCapacity := hdr.Flags&linux.BLK_ZONE_REP_CAPACITY != 0
	zones := make([]Zone, 0, hdr.NrZones)
	for i := uint32(0); i < hdr.NrZones; i++ {
		var bz linux.BlkZone
		_n, err := binstruct.Unmarshal(dat[n:], &bz)
		if err != nil {
			return nil, fmt.Errorf("zone report: zone %d: %w", i, err)
		}
		n += _n
		zones = append(zones, zoneFromBlk(bz, hasCapacity))
	}
	return zones, nil
}

func zoneFromBlk(bz linux.BlkZone, hasCapacity bool) Zone {
	zone := Zone{
		Type:  ZoneType(bz.Type),
		Cond:  ZoneCondition(bz.Cond),
		Start: Sector(bz.Start),
		Len:   Sector(bz.Len),
		WP:    Sector(bz.WP),
	}
	if bz.Reset != 0 {
		zone.Flags |= ZoneFlagResetRecommended
	}
	if bz.NonSeq != 0 {
		zone.Flags |= ZoneFlagNonSeq
	}
	if hasCapacity {
		zone.Capacity = Sector(bz.Capacity)
	} else {
		zone.Capacity = zone.Len
	}
	// Zones without a write pointer report all-ones.
	if zone.WP < 0 {
		zone.WP = zone.End()
	}
	return zone
}

// parseModel decodes the contents of /sys/block/*/queue/zoned.
func parseModel(str string) (Model, error) {
	switch m := Model(strings.TrimSpace(str)); m {
	case ModelHostManaged, ModelHostAware, ModelNone:
		return m, nil
	default:
		return "", fmt.Errorf("unrecognized zone model %q", m)
	}
}
