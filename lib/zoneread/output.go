// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package zoneread

import (
	"fmt"
	"io"
	"os"

	"github.com/datawire/dlib/derror"
)

// StdoutName is the output name that selects the standard output.
const StdoutName = "-"

// Output is where zone data is written.  It is either a file created
// (or truncated) for the run, or the process's standard output.
type Output struct {
	name   string
	stream bool
	fh     *os.File
}

var _ io.Writer = (*Output)(nil)

// OpenOutput opens the named output file; the name "-" selects
// stdout.
func OpenOutput(name string) (*Output, error) {
	if name == StdoutName {
		return &Output{name: "standard output", stream: true, fh: os.Stdout}, nil
	}
	fh, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return nil, err
	}
	return &Output{name: name, fh: fh}, nil
}

// Name returns a description of the output, for messages.
func (o *Output) Name() string {
	if o.stream {
		return o.name
	}
	return fmt.Sprintf("file %q", o.name)
}

// IsStream reports whether the output is stdout.
func (o *Output) IsStream() bool { return o.stream }

func (o *Output) Write(p []byte) (int, error) {
	return o.fh.Write(p)
}

// Finish closes a file output, and removes it if the run that wrote
// it failed.  Stdout is left open and is never removed.
func (o *Output) Finish(res Result) error {
	if o.stream {
		return nil
	}
	var errs derror.MultiError
	if err := o.fh.Close(); err != nil {
		errs = append(errs, err)
	}
	if res.DiscardArtifact() {
		if err := os.Remove(o.name); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
