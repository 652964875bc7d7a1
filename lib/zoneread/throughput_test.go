// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package zoneread_test

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.lukeshu.com/zbd-progs-ng/lib/zoneread"
)

func report(t *testing.T, m zoneread.Measurement) string {
	t.Helper()
	var out strings.Builder
	require.NoError(t, m.WriteReport(&out))
	return out.String()
}

func TestMeasurementReport(t *testing.T) {
	t.Parallel()
	type testcase struct {
		In  zoneread.Measurement
		Exp string
	}
	testcases := map[string]testcase{
		"scenario-a": {
			In:  zoneread.Measurement{Bytes: 256000, IOs: 63, Elapsed: 1500 * time.Millisecond},
			Exp: "Read 256000 B (63 I/Os) in 1.500 sec\n  IOPS 42\n  BW 0.170 MB/s\n",
		},
		"fast": {
			In:  zoneread.Measurement{Bytes: 1 << 30, IOs: 1024, Elapsed: 2*time.Second + 250*time.Millisecond + 17*time.Microsecond},
			Exp: "Read 1073741824 B (1024 I/Os) in 2.250 sec\n  IOPS 455\n  BW 477.214 MB/s\n",
		},
		"zero": {
			In:  zoneread.Measurement{},
			Exp: "Read 0 B (0 I/Os)\n",
		},
		"sub-microsecond": {
			In:  zoneread.Measurement{Bytes: 4096, IOs: 1, Elapsed: 999 * time.Nanosecond},
			Exp: "Read 4096 B (1 I/Os)\n",
		},
	}
	for tcName, tc := range testcases {
		tc := tc
		t.Run(tcName, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.Exp, report(t, tc.In))
		})
	}
}

func TestMeasurementRates(t *testing.T) {
	t.Parallel()
	m := zoneread.Measurement{Bytes: 3_000_000, IOs: 3, Elapsed: time.Second}
	iops, ok := m.IOPS()
	assert.True(t, ok)
	assert.Equal(t, uint64(3), iops)
	whole, milli, ok := m.MBps()
	assert.True(t, ok)
	assert.Equal(t, uint64(3), whole)
	assert.Equal(t, uint64(0), milli)

	_, ok = zoneread.Measurement{Bytes: 1}.ByteRate()
	assert.False(t, ok)

	huge := zoneread.Measurement{Bytes: math.MaxUint64, IOs: 1, Elapsed: time.Microsecond}
	brate, ok := huge.ByteRate()
	assert.True(t, ok)
	assert.Equal(t, uint64(math.MaxUint64), brate)
}

func TestMeasurementDeterministic(t *testing.T) {
	t.Parallel()
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)
	properties.Property("the report is a pure function of the counters", prop.ForAll(
		func(bytes, ios uint64, elapsed int64) bool {
			m := zoneread.Measurement{Bytes: bytes, IOs: ios, Elapsed: time.Duration(elapsed)}
			var a, b strings.Builder
			if err := m.WriteReport(&a); err != nil {
				return false
			}
			if err := m.WriteReport(&b); err != nil {
				return false
			}
			return a.String() == b.String()
		},
		gen.UInt64(),
		gen.UInt64(),
		gen.Int64Range(0, int64(time.Hour)),
	))
	properties.Property("no rates without elapsed time", prop.ForAll(
		func(bytes, ios uint64, elapsed int64) bool {
			m := zoneread.Measurement{Bytes: bytes, IOs: ios, Elapsed: time.Duration(elapsed)}
			var out strings.Builder
			_ = m.WriteReport(&out)
			return !strings.Contains(out.String(), "IOPS")
		},
		gen.UInt64(),
		gen.UInt64(),
		gen.Int64Range(-1000, 999),
	))
	properties.TestingRun(t)
}

func TestAccumulator(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{t: time.Unix(0, 0), step: 250*time.Millisecond + 300*time.Nanosecond}
	acc := zoneread.NewAccumulator(clock.Now)
	acc.Start()
	acc.Add(4096)
	acc.Add(2048)
	assert.Equal(t, uint64(2), acc.IOs())
	m := acc.Snapshot()
	assert.Equal(t, zoneread.Measurement{
		Bytes:   6144,
		IOs:     2,
		Elapsed: 250 * time.Millisecond,
	}, m)
}
