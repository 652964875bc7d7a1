// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package textui implements utilities for emitting human-friendly
// text on stdout and stderr.
package textui

import (
	"fmt"
	"io"
	"math"
	"unicode/utf8"

	"golang.org/x/exp/constraints"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"git.lukeshu.com/zbd-progs-ng/lib/fmtutil"
)

var printer = message.NewPrinter(language.English)

// Fprintf is like `fmt.Fprintf`, but (1) includes the extensions of
// `golang.org/x/text/message.Printer`, and (2) is useful for marking
// when a print call is part of the UI, rather than something
// internal.
func Fprintf(w io.Writer, key string, a ...any) (n int, err error) {
	return printer.Fprintf(w, key, a...)
}

// Sprintf is like `fmt.Sprintf`, but (1) includes the extensions of
// `golang.org/x/text/message.Printer`, and (2) is useful for marking
// when a sprint call is part of the UI, rather than something
// internal.
func Sprintf(key string, a ...any) string {
	return printer.Sprintf(key, a...)
}

////////////////////////////////////////////////////////////////////////////////

// Humanized wraps a value such that formatting of it can make use of
// the `golang.org/x/text/message.Printer` extensions even when used
// with plain-old `fmt`.
func Humanized(x any) any {
	return humanized{val: x}
}

type humanized struct {
	val any
}

var (
	_ fmt.Formatter = humanized{}
	_ fmt.Stringer  = humanized{}
)

// Format implements fmt.Formatter.
func (h humanized) Format(f fmt.State, verb rune) {
	_, _ = printer.Fprintf(f, fmtutil.FmtStateString(f, verb), h.val)
}

// String implements fmt.Stringer.
func (h humanized) String() string {
	return fmt.Sprint(h)
}

////////////////////////////////////////////////////////////////////////////////

// Portion renders a fraction N/D as both a percentage and
// parenthetically as the exact fractional value, rendered with
// human-friendly commas.
//
// For example:
//
//	fmt.Sprint(Portion[int]{N: 1, D: 12345}) ⇒ "0% (1/12,345)"
type Portion[T constraints.Integer] struct {
	N, D T
}

var _ fmt.Stringer = Portion[int]{}

// String implements fmt.Stringer.
func (p Portion[T]) String() string {
	pct := uint64(100)
	if p.D > 0 {
		pct = (uint64(p.N) * 100) / uint64(p.D)
	}
	return printer.Sprintf("%d%% (%v/%v)", pct, uint64(p.N), uint64(p.D))
}

////////////////////////////////////////////////////////////////////////////////

type numeric interface {
	constraints.Integer | constraints.Float
}

// scaled is a value that is rendered with a unit prefix chosen so
// that the mantissa is in [1, base).
type scaled struct {
	val  float64
	unit string

	base  float64
	big   []string
	small []string
}

var (
	_ fmt.Formatter = scaled{}
	_ fmt.Stringer  = scaled{}
)

var (
	metricBig   = []string{"k", "M", "G", "T", "P", "E", "Z", "Y", "R", "Q"}
	metricSmall = []string{"m", "μ", "n", "p", "f", "a", "z", "y", "r", "q"}
	iecBig      = []string{"Ki", "Mi", "Gi", "Ti", "Pi", "Ei", "Zi", "Yi"}
)

// Metric renders a value with an SI prefix: Metric(1500, "B/s") ⇒
// "1.5kB/s".
func Metric[T numeric](x T, unit string) fmt.Formatter {
	return scaled{val: float64(x), unit: unit, base: 1000, big: metricBig, small: metricSmall}
}

// IEC renders a value with a binary prefix: IEC(4096, "B") ⇒ "4KiB".
func IEC[T numeric](x T, unit string) fmt.Formatter {
	return scaled{val: float64(x), unit: unit, base: 1024, big: iecBig}
}

func (v scaled) mantissa() (float64, string) {
	mag := math.Abs(v.val)
	if math.IsNaN(mag) || math.IsInf(mag, 0) || mag == 0 {
		return v.val, ""
	}
	var prefix string
	if mag < 1 {
		for i := 0; mag < 1 && i < len(v.small); i++ {
			mag *= v.base
			prefix = v.small[i]
		}
	} else {
		for i := 0; mag >= v.base && i < len(v.big); i++ {
			mag /= v.base
			prefix = v.big[i]
		}
	}
	return math.Copysign(mag, v.val), prefix
}

// Format implements fmt.Formatter.  Width and precision apply to the
// whole rendered value, suffix included.
func (v scaled) Format(f fmt.State, verb rune) {
	val, prefix := v.mantissa()
	suffix := prefix + v.unit

	var opts []number.Option
	format := fmtutil.FmtStateString(f, verb)
	if width, ok := f.Width(); ok {
		width -= utf8.RuneCountInString(suffix)
		opts = append(opts, number.FormatWidth(width))
		format = fmtutil.FmtStateStringWidth(f, verb, width)
	}
	if prec, ok := f.Precision(); ok {
		opts = append(opts, number.MinFractionDigits(prec), number.MaxFractionDigits(prec))
	}
	var arg any = val
	if !math.IsNaN(val) {
		arg = number.Decimal(val, opts...)
	}
	_, _ = printer.Fprintf(f, format+"%s", arg, suffix)
}

// String implements fmt.Stringer.
func (v scaled) String() string {
	return fmt.Sprint(v)
}
