// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package profile

import (
	"os"

	"github.com/datawire/dlib/derror"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type profiler struct {
	stops []StopFunc
}

// Stop finishes every profile that was started, in reverse order.
func (p *profiler) Stop() error {
	var errs derror.MultiError
	for i := len(p.stops) - 1; i >= 0; i-- {
		if err := p.stops[i](); err != nil {
			errs = append(errs, err)
		}
	}
	p.stops = nil
	if len(errs) > 0 {
		return errs
	}
	return nil
}

type flagValue struct {
	parent   *profiler
	start    startFunc
	filename string
}

var _ pflag.Value = (*flagValue)(nil)

// String implements pflag.Value.
func (fv *flagValue) String() string { return fv.filename }

// Type implements pflag.Value.
func (*flagValue) Type() string { return "filename" }

// Set implements pflag.Value.  The profile starts as soon as the flag
// is parsed.
func (fv *flagValue) Set(filename string) error {
	if filename == "" {
		return nil
	}
	fh, err := os.Create(filename)
	if err != nil {
		return err
	}
	stop, err := fv.start(fh)
	if err != nil {
		_ = fh.Close()
		return err
	}
	fv.filename = filename
	fv.parent.stops = append(fv.parent.stops, func() error {
		var errs derror.MultiError
		if err := stop(); err != nil {
			errs = append(errs, err)
		}
		if err := fh.Close(); err != nil {
			errs = append(errs, err)
		}
		if len(errs) > 0 {
			return errs
		}
		return nil
	})
	return nil
}

var flagTable = []struct {
	name  string
	start startFunc
	usage string
}{
	{"cpu", CPU, "write a CPU profile to the file `cpu.pprof`"},
	{"trace", Trace, "write an execution trace to the file `trace.out`"},
	{"heap", Named("heap"), "write a heap profile to the file `heap.pprof`"},
	{"allocs", Named("allocs"), "write an allocs profile to the file `allocs.pprof`"},
	{"block", Named("block"), "write a block profile to the file `block.pprof`"},
	{"mutex", Named("mutex"), "write a mutex profile to the file `mutex.pprof`"},
	{"goroutine", Named("goroutine"), "write a goroutine profile to the file `goroutine.pprof`"},
}

// AddProfileFlags adds a --<prefix><profile> flag for each supported
// profile to flags, and returns the function that finishes writing
// them, to be called at program exit.
func AddProfileFlags(flags *pflag.FlagSet, prefix string) StopFunc {
	root := new(profiler)
	for _, row := range flagTable {
		flags.Var(&flagValue{parent: root, start: row.start}, prefix+row.name, row.usage)
		_ = cobra.MarkFlagFilename(flags, prefix+row.name)
	}
	return root.Stop
}
