// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package zbd

import (
	"fmt"

	"git.lukeshu.com/zbd-progs-ng/lib/fmtutil"
)

type ZoneType uint8

const (
	ZoneTypeConventional   = ZoneType(0x1)
	ZoneTypeSequentialReq  = ZoneType(0x2)
	ZoneTypeSequentialPref = ZoneType(0x3)
	ZoneTypeSeqOrBeforeReq = ZoneType(0x4)
	ZoneTypeGap            = ZoneType(0x5)
)

var zoneTypeNames = map[ZoneType]string{
	ZoneTypeConventional:   "Conventional",
	ZoneTypeSequentialReq:  "Sequential-write-required",
	ZoneTypeSequentialPref: "Sequential-write-preferred",
	ZoneTypeSeqOrBeforeReq: "Sequential-or-before-required",
	ZoneTypeGap:            "Gap",
}

func (t ZoneType) String() string {
	if name, ok := zoneTypeNames[t]; ok {
		return name
	}
	return "Unknown"
}

func (t ZoneType) MarshalText() ([]byte, error) {
	if _, ok := zoneTypeNames[t]; !ok {
		return nil, fmt.Errorf("unknown zone type %#x", uint8(t))
	}
	return []byte(t.String()), nil
}

func (t *ZoneType) UnmarshalText(text []byte) error {
	for val, name := range zoneTypeNames {
		if name == string(text) {
			*t = val
			return nil
		}
	}
	return fmt.Errorf("unknown zone type %q", text)
}

type ZoneCondition uint8

const (
	ZoneCondNotWP    = ZoneCondition(0x0)
	ZoneCondEmpty    = ZoneCondition(0x1)
	ZoneCondImpOpen  = ZoneCondition(0x2)
	ZoneCondExpOpen  = ZoneCondition(0x3)
	ZoneCondClosed   = ZoneCondition(0x4)
	ZoneCondInactive = ZoneCondition(0x5)
	ZoneCondReadOnly = ZoneCondition(0xd)
	ZoneCondFull     = ZoneCondition(0xe)
	ZoneCondOffline  = ZoneCondition(0xf)
)

var zoneCondNames = map[ZoneCondition]string{
	ZoneCondNotWP:    "Not-write-pointer",
	ZoneCondEmpty:    "Empty",
	ZoneCondImpOpen:  "Implicit-open",
	ZoneCondExpOpen:  "Explicit-open",
	ZoneCondClosed:   "Closed",
	ZoneCondInactive: "Inactive",
	ZoneCondReadOnly: "Read-only",
	ZoneCondFull:     "Full",
	ZoneCondOffline:  "Offline",
}

func (c ZoneCondition) String() string {
	if name, ok := zoneCondNames[c]; ok {
		return name
	}
	return "Unknown"
}

func (c ZoneCondition) MarshalText() ([]byte, error) {
	if _, ok := zoneCondNames[c]; !ok {
		return nil, fmt.Errorf("unknown zone condition %#x", uint8(c))
	}
	return []byte(c.String()), nil
}

func (c *ZoneCondition) UnmarshalText(text []byte) error {
	for val, name := range zoneCondNames {
		if name == string(text) {
			*c = val
			return nil
		}
	}
	return fmt.Errorf("unknown zone condition %q", text)
}

type ZoneFlags uint8

const (
	ZoneFlagResetRecommended = ZoneFlags(1 << iota)
	ZoneFlagNonSeq
)

var zoneFlagNames = []string{
	"rwp",
	"non_seq",
}

func (f ZoneFlags) Has(req ZoneFlags) bool { return f&req == req }
func (f ZoneFlags) String() string {
	return fmtutil.BitfieldString(f, zoneFlagNames)
}

func (f ZoneFlags) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *ZoneFlags) UnmarshalText(text []byte) error {
	flags, err := fmtutil.ParseBitfield[ZoneFlags](string(text), zoneFlagNames)
	if err != nil {
		return fmt.Errorf("zone flags: %w", err)
	}
	*f = flags
	return nil
}

// Zone describes one zone as reported by the device.  Start, Len,
// Capacity and WP are in sectors.
type Zone struct {
	Type     ZoneType      `json:"type"`
	Cond     ZoneCondition `json:"cond"`
	Flags    ZoneFlags     `json:"flags,omitempty"`
	Start    Sector        `json:"start"`
	Len      Sector        `json:"len"`
	Capacity Sector        `json:"capacity,omitempty"`
	WP       Sector        `json:"wp"`
}

// End returns the first sector after the zone.
func (z Zone) End() Sector { return z.Start + z.Len }

func (z Zone) Conventional() bool   { return z.Type == ZoneTypeConventional }
func (z Zone) SequentialReq() bool  { return z.Type == ZoneTypeSequentialReq }
func (z Zone) SequentialPref() bool { return z.Type == ZoneTypeSequentialPref }

// Sequential reports whether the zone has a write pointer.
func (z Zone) Sequential() bool {
	switch z.Type {
	case ZoneTypeSequentialReq, ZoneTypeSequentialPref, ZoneTypeSeqOrBeforeReq:
		return true
	default:
		return false
	}
}

func (z Zone) Full() bool { return z.Cond == ZoneCondFull }

// String renders the zone the way the target-zone line of read-zone
// does.
func (z Zone) String() string {
	if z.Conventional() {
		return fmt.Sprintf("Conventional zone, sector %d, %d sectors",
			z.Start, z.Len)
	}
	return fmt.Sprintf("type 0x%x (%v), cond 0x%x (%v), rwp %d, non_seq %d, sector %d, %d sectors, wp %d",
		uint8(z.Type), z.Type,
		uint8(z.Cond), z.Cond,
		boolInt(z.Flags.Has(ZoneFlagResetRecommended)),
		boolInt(z.Flags.Has(ZoneFlagNonSeq)),
		z.Start, z.Len, z.WP)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
