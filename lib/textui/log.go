// Copyright (C) 2019-2022  Ambassador Labs
// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: Apache-2.0
//
// Contains code based on:
// https://github.com/datawire/dlib/blob/b09ab2e017e16d261f05fff5b3b860d645e774d4/dlog/logger_logrus.go
// https://github.com/telepresenceio/telepresence/blob/ece94a40b00a90722af36b12e40f91cbecc0550c/pkg/log/formatter.go

package textui

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"git.lukeshu.com/go/typedsync"
	"github.com/datawire/dlib/dlog"
	"github.com/spf13/pflag"
)

var logLevels = []struct {
	name  string
	abbr  string
	level dlog.LogLevel
}{
	{"error", "ERR", dlog.LogLevelError},
	{"warn", "WRN", dlog.LogLevelWarn},
	{"info", "INF", dlog.LogLevelInfo},
	{"debug", "DBG", dlog.LogLevelDebug},
	{"trace", "TRC", dlog.LogLevelTrace},
}

// LogLevelFlag is a pflag.Value that selects the most verbose level
// that gets logged.
type LogLevelFlag struct {
	Level dlog.LogLevel
}

var _ pflag.Value = (*LogLevelFlag)(nil)

// Type implements pflag.Value.
func (lvl *LogLevelFlag) Type() string { return "loglevel" }

// Set implements pflag.Value.
func (lvl *LogLevelFlag) Set(str string) error {
	str = strings.ToLower(str)
	if str == "warning" {
		str = "warn"
	}
	for _, l := range logLevels {
		if l.name == str {
			lvl.Level = l.level
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %q", str)
}

// String implements pflag.Value.
func (lvl *LogLevelFlag) String() string {
	for _, l := range logLevels {
		if l.level == lvl.Level {
			return l.name
		}
	}
	panic(fmt.Errorf("invalid log level: %#v", lvl.Level))
}

// fieldSpec says where a well-known field goes in a log line.
// Fields with a negative ord go before the message, ordered by ord;
// the rest go after it, sorted by key.
type fieldSpec struct {
	ord   int
	label string
	// If path is set, the value is appended to the previous
	// field as "/value".
	path bool
}

var fieldSpecs = map[string]fieldSpec{
	"THREAD":                  {ord: -99, label: "thread"}, // dgroup
	"zbd.dev":                 {ord: -10, label: "dev"},
	"zoneread.zone":           {ord: -9, label: "zone"},
	"zoneread.step":           {ord: -8, path: true},
	"zbd-tool.read-json-file": {ord: -1, label: "read-json-file"},
}

func specFor(key string) fieldSpec {
	if spec, ok := fieldSpecs[key]; ok {
		return spec
	}
	return fieldSpec{ord: 1, label: key}
}

type logField struct {
	key string
	val any
}

type logger struct {
	out io.Writer
	lvl dlog.LogLevel
	// fields is shared between loggers; it is never appended to
	// in place.
	fields []logField
}

var _ dlog.OptimizedLogger = (*logger)(nil)

// NewLogger returns a dlog.Logger that writes one line per message to
// out, dropping messages more verbose than lvl.
func NewLogger(out io.Writer, lvl dlog.LogLevel) dlog.Logger {
	return &logger{
		out: out,
		lvl: lvl,
	}
}

// Helper implements dlog.Logger.
func (l *logger) Helper() {}

// WithField implements dlog.Logger.
func (l *logger) WithField(key string, value any) dlog.Logger {
	fields := make([]logField, 0, len(l.fields)+1)
	for _, f := range l.fields {
		if f.key != key {
			fields = append(fields, f)
		}
	}
	return &logger{
		out:    l.out,
		lvl:    l.lvl,
		fields: append(fields, logField{key: key, val: value}),
	}
}

type logWriter struct {
	log *logger
	lvl dlog.LogLevel
}

// Write implements io.Writer.
func (lw logWriter) Write(data []byte) (int, error) {
	lw.log.log(lw.lvl, func(w io.Writer) {
		_, _ = w.Write(bytes.TrimSuffix(data, []byte("\n")))
	})
	return len(data), nil
}

// StdLogger implements dlog.Logger.
func (l *logger) StdLogger(lvl dlog.LogLevel) *log.Logger {
	return log.New(logWriter{log: l, lvl: lvl}, "", 0)
}

// Log implements dlog.Logger.
func (l *logger) Log(lvl dlog.LogLevel, msg string) {
	panic("should not happen: optimized log methods should be used instead")
}

// UnformattedLog implements dlog.OptimizedLogger.
func (l *logger) UnformattedLog(lvl dlog.LogLevel, args ...any) {
	l.log(lvl, func(w io.Writer) {
		_, _ = printer.Fprint(w, args...)
	})
}

// UnformattedLogln implements dlog.OptimizedLogger.
func (l *logger) UnformattedLogln(lvl dlog.LogLevel, args ...any) {
	l.log(lvl, func(w io.Writer) {
		_, _ = printer.Fprint(w, strings.TrimSuffix(printer.Sprintln(args...), "\n"))
	})
}

// UnformattedLogf implements dlog.OptimizedLogger.
func (l *logger) UnformattedLogf(lvl dlog.LogLevel, format string, args ...any) {
	l.log(lvl, func(w io.Writer) {
		_, _ = printer.Fprintf(w, format, args...)
	})
}

var (
	lineBufPool = typedsync.Pool[*bytes.Buffer]{
		New: func() *bytes.Buffer {
			return new(bytes.Buffer)
		},
	}
	outMu sync.Mutex
	// srcRoot is the directory that caller file names are printed
	// relative to.
	srcRoot string
)

func init() {
	//nolint:dogsled // I can't change the signature of the stdlib.
	_, file, _, _ := runtime.Caller(0)
	srcRoot = filepath.Dir(filepath.Dir(filepath.Dir(file))) + "/"
}

const (
	modulePath  = "git.lukeshu.com/zbd-progs-ng/"
	packagePath = modulePath + "lib/textui."
	timeFormat  = "2006-01-02 15:04:05.0000"
)

// A line is
//
//	TIME LVL [early fields] : message [: late fields] [(from file:line)]
func (l *logger) log(lvl dlog.LogLevel, writeMsg func(io.Writer)) {
	if lvl > l.lvl {
		return
	}
	buf, _ := lineBufPool.Get()
	defer func() {
		buf.Reset()
		lineBufPool.Put(buf)
	}()

	buf.Write(time.Now().AppendFormat(nil, timeFormat))
	for _, level := range logLevels {
		if level.level == lvl {
			buf.WriteString(" " + level.abbr)
		}
	}

	fields := make([]logField, len(l.fields))
	copy(fields, l.fields)
	sort.SliceStable(fields, func(i, j int) bool {
		iSpec, jSpec := specFor(fields[i].key), specFor(fields[j].key)
		if iSpec.ord != jSpec.ord {
			return iSpec.ord < jSpec.ord
		}
		return fields[i].key < fields[j].key
	})
	late := sort.Search(len(fields), func(i int) bool {
		return specFor(fields[i].key).ord >= 0
	})

	for _, f := range fields[:late] {
		writeField(buf, f)
	}
	buf.WriteString(" : ")
	writeMsg(buf)
	if late < len(fields) {
		buf.WriteString(" :")
		for _, f := range fields[late:] {
			writeField(buf, f)
		}
	}
	if file, line, ok := callerInModule(); ok {
		fmt.Fprintf(buf, " (from %s:%d)", file, line)
	}
	buf.WriteByte('\n')

	outMu.Lock()
	_, _ = l.out.Write(buf.Bytes())
	outMu.Unlock()
}

// callerInModule returns the innermost caller that is in this module
// but outside of this package.
func callerInModule() (file string, line int, ok bool) {
	var pcs [32]uintptr
	depth := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:depth])
	for {
		frame, more := frames.Next()
		if strings.HasPrefix(frame.Function, modulePath) && !strings.HasPrefix(frame.Function, packagePath) {
			return strings.TrimPrefix(frame.File, srcRoot), frame.Line, true
		}
		if !more {
			return "", 0, false
		}
	}
}

func writeField(w *bytes.Buffer, f logField) {
	val := printer.Sprint(f.val)
	if needsQuote(val) {
		val = strconv.Quote(val)
	}
	spec := specFor(f.key)
	switch {
	case f.key == "THREAD":
		val = strings.TrimPrefix(strings.TrimPrefix(val, "/main"), "/")
		if val == "" {
			return
		}
	case spec.path:
		w.WriteString("/" + val)
		return
	}
	fmt.Fprintf(w, " %s=%s", spec.label, val)
}

func needsQuote(val string) bool {
	if strings.HasPrefix(val, `"`) {
		return true
	}
	for _, r := range val {
		if !unicode.IsPrint(r) || r == ' ' {
			return true
		}
	}
	return false
}
