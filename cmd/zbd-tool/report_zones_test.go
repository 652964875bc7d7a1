// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/datawire/dlib/dlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.lukeshu.com/zbd-progs-ng/lib/zbd"
)

func TestPrintZones(t *testing.T) {
	t.Parallel()
	var out strings.Builder
	zones := testLayout().Zones
	zones[0].WP = zones[0].End()
	require.NoError(t, printZones(&out, zones))
	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "readable")
	assert.Contains(t, lines[1], "Conventional")
	assert.Contains(t, lines[1], "100%")
	assert.Contains(t, lines[2], "Implicit-open")
	assert.Contains(t, lines[2], "25%")
	assert.Contains(t, lines[3], "0%")
}

func TestLayoutOfRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)
	dev, _ := openTestDevice(t)
	zones, err := dev.ReportZones(ctx)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeJSONFile(&buf, layoutOf(dev.Info(), zones), jsonConfig))
	layout, err := zbd.ReadLayout(&buf)
	require.NoError(t, err)
	assert.Equal(t, zones, layout.Zones)
	assert.Equal(t, zbd.ModelHostManaged, layout.Model)
	assert.Equal(t, 4096, layout.LogicalBlockSize)
}
