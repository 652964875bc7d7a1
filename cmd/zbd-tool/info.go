// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"github.com/datawire/dlib/dlog"
	"github.com/datawire/ocibuild/pkg/cliutil"
	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"git.lukeshu.com/zbd-progs-ng/lib/zbd"
	"git.lukeshu.com/zbd-progs-ng/lib/zoneread"
)

var spewConfig = func() *spew.ConfigState {
	cfg := spew.NewDefaultConfig()
	cfg.DisablePointerAddresses = true
	cfg.DisableCapacities = true
	cfg.SortKeys = true
	return cfg
}()

func init() {
	var jsonFlag bool
	cmd := subcommand{
		Command: cobra.Command{
			Use:   "info",
			Short: "Show the geometry and zone model of the device",
			Args:  cliutil.WrapPositionalArgs(cobra.NoArgs),
		},
		RunE: func(dev zbd.Device, _ *zoneread.AbortFlag, cmd *cobra.Command, _ []string) error {
			info := dev.Info()
			dlog.Tracef(cmd.Context(), "device info: %s", spewConfig.Sdump(info))
			if jsonFlag {
				return writeJSONFile(cmd.OutOrStdout(), info, jsonConfig)
			}
			info.Print(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Command.Flags().BoolVar(&jsonFlag, "json", false, "write the device info as JSON")
	subcommands = append(subcommands, cmd)
}
