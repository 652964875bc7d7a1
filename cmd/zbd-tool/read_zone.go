// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/datawire/dlib/dlog"
	"github.com/datawire/ocibuild/pkg/cliutil"
	"github.com/spf13/cobra"

	"git.lukeshu.com/zbd-progs-ng/lib/containers"
	"git.lukeshu.com/zbd-progs-ng/lib/textui"
	"git.lukeshu.com/zbd-progs-ng/lib/zbd"
	"git.lukeshu.com/zbd-progs-ng/lib/zoneread"
)

type readZoneFlags struct {
	nio         containers.Optional[uint64]
	offset      int64
	vectored    bool
	direct      bool
	output      string
	bwlimit     int64
	json        bool
	metricsFile string
}

func init() {
	var flags readZoneFlags
	var nio uint64
	cmd := subcommand{
		Command: cobra.Command{
			Use:   "read-zone ZONE_NO IO_SIZE",
			Short: "Read a zone up to its write pointer, and report the throughput",
			Long: "" +
				"Read zone ZONE_NO from the start of the zone (or from --offset) " +
				"up to its write pointer, or up to the end of the zone if it is " +
				"conventional or full, in I/Os of IO_SIZE bytes.  IO_SIZE must " +
				"be a multiple of the logical block size.\n" +
				"\n" +
				"SIGINT, SIGQUIT and SIGTERM stop the read after the current " +
				"I/O; the partial result is still reported.",
			Args: cliutil.WrapPositionalArgs(cobra.ExactArgs(2)),
		},
		AbortOnSignal: true,
		RunE: func(dev zbd.Device, abort *zoneread.AbortFlag, cmd *cobra.Command, args []string) error {
			zoneNo, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid zone number %q: %w", args[0], err)
			}
			ioSize, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid I/O size %q: %w", args[1], err)
			}
			if cmd.Flags().Changed("nio") {
				flags.nio = containers.OptionalValue(nio)
			}
			flags.direct, _ = cmd.Flags().GetBool("direct")
			return readZone(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), dev, abort, flags, zoneNo, ioSize)
		},
	}
	cmd.Command.Flags().Uint64Var(&nio, "nio", 0, "stop after `N` I/Os")
	cmd.Command.Flags().Int64Var(&flags.offset, "offset", 0, "start reading `sectors` after the start of the zone")
	cmd.Command.Flags().BoolVar(&flags.vectored, "vectored", false, "issue each I/O as a two-segment vectored read")
	cmd.Command.Flags().StringVar(&flags.output, "output", "", "write the zone data to `file` (\"-\" for stdout)")
	if err := cmd.Command.MarkFlagFilename("output"); err != nil {
		panic(err)
	}
	cmd.Command.Flags().Int64Var(&flags.bwlimit, "bwlimit", 0, "limit the read rate to `bytes_per_second`")
	cmd.Command.Flags().BoolVar(&flags.json, "json", false, "write the result as JSON")
	cmd.Command.Flags().StringVar(&flags.metricsFile, "metrics-file", "", "write the result to `file.prom` for the node_exporter textfile collector")
	if err := cmd.Command.MarkFlagFilename("metrics-file", "prom"); err != nil {
		panic(err)
	}
	subcommands = append(subcommands, cmd)
}

type readZoneReport struct {
	Device      zbd.DeviceInfo              `json:"device"`
	ZoneNo      int                         `json:"zone_no"`
	Zone        zbd.Zone                    `json:"zone"`
	IOSize      int                         `json:"io_size"`
	Status      zoneread.Status             `json:"status"`
	Cursor      zbd.Sector                  `json:"cursor"`
	Extent      zbd.Sector                  `json:"extent"`
	Bytes       uint64                      `json:"bytes"`
	IOs         uint64                      `json:"ios"`
	ElapsedUsec uint64                      `json:"elapsed_usec"`
	IOPS        containers.Optional[uint64] `json:"iops"`
	ByteRate    containers.Optional[uint64] `json:"bytes_per_second"`
	Error       string                      `json:"error,omitempty"`
}

func newReadZoneReport(info zbd.DeviceInfo, zoneNo int, zone zbd.Zone, ioSize int, res zoneread.Result) readZoneReport {
	ret := readZoneReport{
		Device:      info,
		ZoneNo:      zoneNo,
		Zone:        zone,
		IOSize:      ioSize,
		Status:      res.Status,
		Cursor:      res.Cursor,
		Extent:      res.Extent,
		Bytes:       res.Bytes,
		IOs:         res.IOs,
		ElapsedUsec: res.ElapsedUsec(),
	}
	if iops, ok := res.IOPS(); ok {
		ret.IOPS = containers.OptionalValue(iops)
	}
	if brate, ok := res.ByteRate(); ok {
		ret.ByteRate = containers.OptionalValue(brate)
	}
	if res.Err != nil {
		ret.Error = res.Err.Error()
	}
	return ret
}

func printTargetZone(w io.Writer, zoneNo int, zones []zbd.Zone) {
	zone := zones[zoneNo]
	if zone.Conventional() {
		fmt.Fprintf(w, "Target zone: Conventional zone %d / %d, sector %d, %d sectors\n",
			zoneNo, len(zones), int64(zone.Start), int64(zone.Len))
		return
	}
	fmt.Fprintf(w, "Target zone: Zone %d / %d, %v\n", zoneNo, len(zones), zone)
}

// readZone is the body of the read-zone command.  Human-readable
// output goes to stdout, unless the zone data itself goes there, in
// which case it goes to stderr.
func readZone(ctx context.Context, stdout, stderr io.Writer, dev zbd.Device, abort *zoneread.AbortFlag, flags readZoneFlags, zoneNo, ioSize int) (err error) {
	maybeSetErr := func(_err error) {
		if _err != nil && err == nil {
			err = _err
		}
	}

	if zoneNo < 0 {
		return fmt.Errorf("invalid zone number %d", zoneNo)
	}
	if flags.json && flags.output == zoneread.StdoutName {
		return errors.New("--json cannot be combined with --output=-")
	}
	msgs := stdout
	switch {
	case flags.json:
		msgs = io.Discard
	case flags.output == zoneread.StdoutName:
		msgs = stderr
	}

	info := dev.Info()
	info.Print(msgs)

	zones, err := dev.ReportZones(ctx)
	if err != nil {
		return fmt.Errorf("report zones: %w", err)
	}
	if zoneNo >= len(zones) {
		return fmt.Errorf("target zone not found: zone %d, but the device has %d zones", zoneNo, len(zones))
	}
	zone := zones[zoneNo]
	printTargetZone(msgs, zoneNo, zones)

	cfg := zoneread.Config{
		IOSize:    ioSize,
		IOBudget:  flags.nio,
		Offset:    zbd.Sector(flags.offset),
		Vectored:  flags.vectored,
		Direct:    flags.direct,
		Bandwidth: flags.bwlimit,
	}
	sess, err := zoneread.NewSession(dev, info, zone, cfg)
	if err != nil {
		return err
	}

	var sink io.Writer
	if flags.output != "" {
		output, err := zoneread.OpenOutput(flags.output)
		if err != nil {
			return err
		}
		fmt.Fprintf(msgs, "Writing target zone %d to %s, %d B I/Os\n", zoneNo, output.Name(), ioSize)
		sink = output
		var res zoneread.Result
		defer func() {
			maybeSetErr(output.Finish(res))
		}()
		res = runSession(ctx, sess, abort, sink, zoneNo)
		return reportResult(stdout, msgs, flags, info, zoneNo, zone, ioSize, res)
	}
	if flags.nio.OK {
		fmt.Fprintf(msgs, "Reading target zone %d, %d I/Os of %d B\n", zoneNo, flags.nio.Val, ioSize)
	} else {
		fmt.Fprintf(msgs, "Reading target zone %d, %d B I/Os\n", zoneNo, ioSize)
	}
	res := runSession(ctx, sess, abort, nil, zoneNo)
	return reportResult(stdout, msgs, flags, info, zoneNo, zone, ioSize, res)
}

func runSession(ctx context.Context, sess *zoneread.Session, abort *zoneread.AbortFlag, sink io.Writer, zoneNo int) zoneread.Result {
	ctx = dlog.WithField(ctx, "zoneread.zone", zoneNo)
	dlog.Debugf(ctx, "reading %v sectors", textui.Humanized(int64(sess.Extent())))
	res := sess.Run(ctx, abort, sink)
	if rate, ok := res.ByteRate(); ok {
		dlog.Debugf(ctx, "read loop %v: %v at %v", res.Status, textui.IEC(res.Bytes, "B"), textui.Metric(rate, "B/s"))
	} else {
		dlog.Debugf(ctx, "read loop %v: %v", res.Status, textui.IEC(res.Bytes, "B"))
	}
	return res
}

func reportResult(stdout, msgs io.Writer, flags readZoneFlags, info zbd.DeviceInfo, zoneNo int, zone zbd.Zone, ioSize int, res zoneread.Result) (err error) {
	maybeSetErr := func(_err error) {
		if _err != nil && err == nil {
			err = _err
		}
	}
	if res.Status == zoneread.StatusAborted {
		fmt.Fprintln(msgs, "Aborted")
	}
	if flags.json {
		maybeSetErr(writeJSONFile(stdout, newReadZoneReport(info, zoneNo, zone, ioSize, res), jsonConfig))
	} else {
		maybeSetErr(res.WriteReport(msgs))
	}
	if flags.metricsFile != "" {
		maybeSetErr(zoneread.WriteMetricsFile(flags.metricsFile, info.Name, zoneNo, res))
	}
	// The read error takes precedence over reporting errors.
	if res.Err != nil {
		return res.Err
	}
	return err
}
