// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package zoneread

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/datawire/dlib/dlog"
)

// AbortFlag is a one-way cancellation cell.  It is set from outside
// the read loop, and polled by the loop before each I/O; an I/O that
// is already in flight is never interrupted.
type AbortFlag struct {
	set atomic.Bool
}

// Abort sets the flag, and reports whether this call was the one that
// set it.
func (f *AbortFlag) Abort() bool {
	return f.set.CompareAndSwap(false, true)
}

func (f *AbortFlag) Aborted() bool {
	return f.set.Load()
}

// AbortSignals are the signals that NotifyAbort listens for if it is
// not given any.
var AbortSignals = []os.Signal{
	syscall.SIGINT,
	syscall.SIGQUIT,
	syscall.SIGTERM,
}

// NotifyAbort sets flag whenever one of sigs is delivered to the
// process.  It blocks until ctx is canceled, and is meant to be run
// in its own goroutine alongside the read loop.
func NotifyAbort(ctx context.Context, flag *AbortFlag, sigs ...os.Signal) error {
	if len(sigs) == 0 {
		sigs = AbortSignals
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)
	defer signal.Stop(ch)
	for {
		select {
		case <-ctx.Done():
			return nil
		case sig := <-ch:
			if flag.Abort() {
				dlog.Warnf(ctx, "received %v, stopping after the current I/O", sig)
			} else {
				dlog.Debugf(ctx, "received %v, already stopping", sig)
			}
		}
	}
}
