// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package fmtutil contains helpers for implementing fmt.Formatter
// and for rendering small enumerations.
package fmtutil

import (
	"fmt"
	"strings"
)

// FmtStateString returns the fmt.Printf string that produced a given
// fmt.State and verb.
func FmtStateString(st fmt.State, verb rune) string {
	width, hasWidth := st.Width()
	return fmtStateString(st, verb, width, hasWidth)
}

// FmtStateStringWidth is like FmtStateString, but overrides the
// width with the given value.
func FmtStateStringWidth(st fmt.State, verb rune, width int) string {
	return fmtStateString(st, verb, width, true)
}

func fmtStateString(st fmt.State, verb rune, width int, hasWidth bool) string {
	var ret strings.Builder
	ret.WriteByte('%')
	for _, flag := range []int{'-', '+', '#', ' ', '0'} {
		if st.Flag(flag) {
			ret.WriteByte(byte(flag))
		}
	}
	if hasWidth && width > 0 {
		fmt.Fprintf(&ret, "%v", width)
	}
	if prec, ok := st.Precision(); ok {
		if prec == 0 {
			ret.WriteByte('.')
		} else {
			fmt.Fprintf(&ret, ".%v", prec)
		}
	}
	ret.WriteRune(verb)
	return ret.String()
}
