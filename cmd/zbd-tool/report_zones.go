// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/datawire/dlib/dlog"
	"github.com/datawire/ocibuild/pkg/cliutil"
	"github.com/spf13/cobra"

	"git.lukeshu.com/zbd-progs-ng/lib/textui"
	"git.lukeshu.com/zbd-progs-ng/lib/zbd"
	"git.lukeshu.com/zbd-progs-ng/lib/zoneread"
)

func init() {
	var jsonFlag bool
	cmd := subcommand{
		Command: cobra.Command{
			Use:   "report-zones",
			Short: "List the zones of the device",
			Args:  cliutil.WrapPositionalArgs(cobra.NoArgs),
		},
		RunE: func(dev zbd.Device, _ *zoneread.AbortFlag, cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			zones, err := dev.ReportZones(ctx)
			if err != nil {
				return err
			}
			dlog.Debugf(ctx, "device reported %d zones", len(zones))
			if jsonFlag {
				return writeJSONFile(cmd.OutOrStdout(), layoutOf(dev.Info(), zones), jsonConfig)
			}
			return printZones(cmd.OutOrStdout(), zones)
		},
	}
	cmd.Command.Flags().BoolVar(&jsonFlag, "json", false, "write the zone list as JSON, in the format read by --zones")
	subcommands = append(subcommands, cmd)
}

// layoutOf returns a layout that emulates the device, for --zones.
func layoutOf(info zbd.DeviceInfo, zones []zbd.Zone) zbd.Layout {
	return zbd.Layout{
		Model:             info.Model,
		LogicalBlockSize:  info.LogicalBlockSize,
		PhysicalBlockSize: info.PhysicalBlockSize,
		Zones:             zones,
	}
}

func printZones(w io.Writer, zones []zbd.Zone) error {
	table := tabwriter.NewWriter(w, 0, 8, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(table, "zone\ttype\tcond\tstart\tlen\twp\treadable\tflags\t")
	for i, zone := range zones {
		readable := textui.Portion[zbd.Sector]{N: zoneread.ExtentLimit(zone), D: zone.Len}
		textui.Fprintf(table, "%d\t%v\t%v\t%d\t%d\t%d\t%v\t%v\t\n",
			i, zone.Type, zone.Cond, int64(zone.Start), int64(zone.Len), int64(zone.WP), readable, zone.Flags)
	}
	return table.Flush()
}
