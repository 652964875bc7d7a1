// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package zoneread_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.lukeshu.com/zbd-progs-ng/lib/zoneread"
)

func TestMetrics(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m := zoneread.NewMetrics(reg, "/dev/sdb", 7)
	m.Observe(zoneread.Result{
		Status: zoneread.StatusAborted,
		Measurement: zoneread.Measurement{
			Bytes:   2_000_000,
			IOs:     4,
			Elapsed: 2 * time.Second,
		},
	})

	assert.Equal(t, 2e6, testutil.ToFloat64(m.Bytes))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.IOs))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Elapsed))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.IOPS))
	assert.Equal(t, 1e6, testutil.ToFloat64(m.Bandwidth))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Status.WithLabelValues("aborted")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Status.WithLabelValues("done")))
	assert.Equal(t, 3, testutil.CollectAndCount(m.Status))

	err := testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP zbd_read_zone_ios Read I/Os completed.
# TYPE zbd_read_zone_ios gauge
zbd_read_zone_ios{device="/dev/sdb",zone="7"} 4
`), "zbd_read_zone_ios")
	assert.NoError(t, err)
}

func TestWriteMetricsFile(t *testing.T) {
	t.Parallel()
	name := filepath.Join(t.TempDir(), "zbd.prom")
	require.NoError(t, zoneread.WriteMetricsFile(name, "/dev/sdb", 3, zoneread.Result{
		Status:      zoneread.StatusFailed,
		Measurement: zoneread.Measurement{Bytes: 4096, IOs: 1},
	}))
	dat, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.Contains(t, string(dat), `zbd_read_zone_bytes{device="/dev/sdb",zone="3"} 4096`)
	assert.Contains(t, string(dat), `zbd_read_zone_status{device="/dev/sdb",status="failed",zone="3"} 1`)
	assert.Contains(t, string(dat), `zbd_read_zone_iops{device="/dev/sdb",zone="3"} 0`)
}
