// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"bufio"
	"context"
	"io"
	"os"
	"time"

	"git.lukeshu.com/go/lowmemjson"
	"github.com/datawire/dlib/dlog"

	"git.lukeshu.com/zbd-progs-ng/lib/textui"
)

// progressReader counts the bytes read through it, and checks for
// cancellation between reads.
type progressReader struct {
	ctx      context.Context //nolint:containedctx // For detecting shutdown from Read
	inner    io.Reader
	portion  textui.Portion[int64]
	progress *textui.Progress[textui.Portion[int64]]
}

func (pr *progressReader) Read(p []byte) (int, error) {
	if err := pr.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := pr.inner.Read(p)
	pr.portion.N += int64(n)
	pr.progress.Set(pr.portion)
	return n, err
}

func readJSONFile[T any](ctx context.Context, filename string) (T, error) {
	var ret T
	fh, err := os.Open(filename)
	if err != nil {
		return ret, err
	}
	defer func() {
		_ = fh.Close()
	}()
	fi, err := fh.Stat()
	if err != nil {
		return ret, err
	}

	ctx = dlog.WithField(ctx, "zbd-tool.read-json-file", filename)
	pr := &progressReader{
		ctx:      ctx,
		inner:    fh,
		portion:  textui.Portion[int64]{D: fi.Size()},
		progress: textui.NewProgress[textui.Portion[int64]](ctx, dlog.LogLevelDebug, textui.Tunable(1*time.Second)),
	}
	defer pr.progress.Done()

	if err := lowmemjson.NewDecoder(bufio.NewReader(pr)).DecodeThenEOF(&ret); err != nil {
		var zero T
		return zero, err
	}
	return ret, nil
}

func writeJSONFile(w io.Writer, obj any, cfg lowmemjson.ReEncoderConfig) (err error) {
	buffer := bufio.NewWriter(w)
	defer func() {
		if _err := buffer.Flush(); err == nil && _err != nil {
			err = _err
		}
	}()
	return lowmemjson.NewEncoder(lowmemjson.NewReEncoder(buffer, cfg)).Encode(obj)
}

// jsonConfig is how every JSON document written by zbd-tool is laid
// out.
var jsonConfig = lowmemjson.ReEncoderConfig{
	Indent:                "\t",
	CompactIfUnder:        80, //nolint:gomnd // This is what looks nice.
	ForceTrailingNewlines: true,
}
