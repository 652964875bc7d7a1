// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Command zbd-tool inspects zoned block devices, and measures how
// fast a single zone can be read.
package main

import (
	"context"
	"os"

	"github.com/datawire/dlib/dgroup"
	"github.com/datawire/dlib/dlog"
	"github.com/datawire/ocibuild/pkg/cliutil"
	"github.com/spf13/cobra"

	"git.lukeshu.com/zbd-progs-ng/lib/profile"
	"git.lukeshu.com/zbd-progs-ng/lib/textui"
	"git.lukeshu.com/zbd-progs-ng/lib/zbd"
	"git.lukeshu.com/zbd-progs-ng/lib/zoneread"
)

type subcommand struct {
	cobra.Command
	// If AbortOnSignal is set, SIGINT/SIGQUIT/SIGTERM set the
	// abort flag instead of shutting the command down.
	AbortOnSignal bool
	RunE          func(zbd.Device, *zoneread.AbortFlag, *cobra.Command, []string) error
}

var subcommands []subcommand

func main() {
	logLevelFlag := textui.LogLevelFlag{
		Level: dlog.LogLevelInfo,
	}
	var devFlag string
	var zonesFlag string
	var directFlag bool

	argparser := &cobra.Command{
		Use:   "zbd-tool {[flags]|SUBCOMMAND}",
		Short: "Inspect and benchmark zoned block devices",

		Args: cliutil.WrapPositionalArgs(cliutil.OnlySubcommands),
		RunE: cliutil.RunSubcommands,

		SilenceErrors: true, // main() will handle this after .ExecuteContext() returns
		SilenceUsage:  true, // our FlagErrorFunc will handle it

		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	argparser.SetFlagErrorFunc(cliutil.FlagErrorFunc)
	argparser.SetHelpTemplate(cliutil.HelpTemplate)
	argparser.PersistentFlags().Var(&logLevelFlag, "verbosity", "set the verbosity")
	argparser.PersistentFlags().StringVar(&devFlag, "dev", "", "operate on the zoned block device `device`")
	if err := argparser.MarkPersistentFlagFilename("dev"); err != nil {
		panic(err)
	}
	if err := argparser.MarkPersistentFlagRequired("dev"); err != nil {
		panic(err)
	}
	argparser.PersistentFlags().StringVar(&zonesFlag, "zones", "", "treat --dev as a plain image, with the zone layout from the JSON file `layout.json`")
	if err := argparser.MarkPersistentFlagFilename("zones"); err != nil {
		panic(err)
	}
	argparser.PersistentFlags().BoolVar(&directFlag, "direct", false, "open the device with O_DIRECT")
	stopProfiling := profile.AddProfileFlags(argparser.PersistentFlags(), "profile.")

	for _, child := range subcommands {
		cmd := child.Command
		runE := child.RunE
		abortOnSignal := child.AbortOnSignal
		cmd.RunE = func(cmd *cobra.Command, args []string) (err error) {
			maybeSetErr := func(_err error) {
				if _err != nil && err == nil {
					err = _err
				}
			}
			defer func() {
				maybeSetErr(stopProfiling())
			}()

			ctx := cmd.Context()
			logger := textui.NewLogger(os.Stderr, logLevelFlag.Level)
			ctx = dlog.WithLogger(ctx, logger)
			ctx = dlog.WithField(ctx, "zbd.dev", devFlag)
			dlog.SetFallbackLogger(logger.WithField("zbd-progs.THIS_IS_A_BUG", true))

			abort := new(zoneread.AbortFlag)
			grp := dgroup.NewGroup(ctx, dgroup.GroupConfig{
				EnableSignalHandling: !abortOnSignal,
				ShutdownOnNonError:   true,
			})
			if abortOnSignal {
				grp.Go("signals", func(ctx context.Context) error {
					return zoneread.NotifyAbort(ctx, abort)
				})
			}
			grp.Go("main", func(ctx context.Context) (err error) {
				maybeSetErr := func(_err error) {
					if _err != nil && err == nil {
						err = _err
					}
				}
				opts := zbd.OpenOptions{
					Direct: directFlag,
				}
				if zonesFlag != "" {
					layout, err := readJSONFile[zbd.Layout](ctx, zonesFlag)
					if err != nil {
						return err
					}
					opts.Layout = &layout
				}
				dev, err := zbd.Open(ctx, devFlag, opts)
				if err != nil {
					return err
				}
				defer func() {
					maybeSetErr(dev.Close())
				}()

				cmd.SetContext(ctx)
				return runE(dev, abort, cmd, args)
			})
			maybeSetErr(grp.Wait())
			return
		}
		argparser.AddCommand(&cmd)
	}

	if err := argparser.ExecuteContext(context.Background()); err != nil {
		textui.Fprintf(os.Stderr, "%v: error: %v\n", argparser.CommandPath(), err)
		os.Exit(1)
	}
}
