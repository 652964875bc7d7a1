// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package profile writes Go runtime profiles of a command run to
// files named on the command line.
package profile

import (
	"io"
	"runtime/pprof"
	"runtime/trace"
)

type StopFunc = func() error

type startFunc = func(io.Writer) (StopFunc, error)

// CPU starts a CPU profile written to w.
func CPU(w io.Writer) (StopFunc, error) {
	if err := pprof.StartCPUProfile(w); err != nil {
		return nil, err
	}
	return func() error {
		pprof.StopCPUProfile()
		return nil
	}, nil
}

// Trace starts an execution trace written to w.
func Trace(w io.Writer) (StopFunc, error) {
	if err := trace.Start(w); err != nil {
		return nil, err
	}
	return func() error {
		trace.Stop()
		return nil
	}, nil
}

// Named arranges for the named runtime/pprof profile to be written to
// w when the returned function is called.
func Named(name string) startFunc {
	return func(w io.Writer) (StopFunc, error) {
		return func() error {
			if prof := pprof.Lookup(name); prof != nil {
				return prof.WriteTo(w, 0)
			}
			return nil
		}, nil
	}
}

var (
	_ startFunc = CPU
	_ startFunc = Trace
)
