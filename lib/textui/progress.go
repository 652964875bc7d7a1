// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package textui

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/datawire/dlib/dlog"
)

type Stats interface {
	comparable
	fmt.Stringer
}

// Progress logs the latest value passed to Set once per interval,
// and once more from Done.  Set only stores a pointer, so it is safe
// to call from a hot loop.  An interval with no new value logs
// nothing.
type Progress[T Stats] struct {
	ctx      context.Context //nolint:containedctx // Log lines are attributed to the caller's context
	lvl      dlog.LogLevel
	interval time.Duration

	cur     atomic.Pointer[T]
	start   sync.Once
	stop    chan struct{}
	stopped chan struct{}

	logged   bool
	lastLine string
}

func NewProgress[T Stats](ctx context.Context, lvl dlog.LogLevel, interval time.Duration) *Progress[T] {
	return &Progress[T]{
		ctx:      ctx,
		lvl:      lvl,
		interval: interval,
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

func (p *Progress[T]) Set(val T) {
	p.cur.Store(&val)
	p.start.Do(func() { go p.loop() })
}

// Done logs the final value, if there is one that has not been
// logged yet, and stops the logging goroutine.  Done must be called
// exactly once.
func (p *Progress[T]) Done() {
	started := true
	p.start.Do(func() { started = false })
	close(p.stop)
	if started {
		<-p.stopped
	}
}

func (p *Progress[T]) emit() {
	cur := p.cur.Load()
	if cur == nil {
		return
	}
	line := (*cur).String()
	if p.logged && line == p.lastLine {
		return
	}
	p.logged, p.lastLine = true, line
	dlog.Log(p.ctx, p.lvl, line)
}

func (p *Progress[T]) loop() {
	defer close(p.stopped)
	p.emit()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			p.emit()
			return
		case <-p.ctx.Done():
			// Keep storing values, but stop logging them until
			// Done.
			<-p.stop
			p.emit()
			return
		case <-ticker.C:
			p.emit()
		}
	}
}
