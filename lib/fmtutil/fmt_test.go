// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package fmtutil_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"git.lukeshu.com/zbd-progs-ng/lib/fmtutil"
)

type FmtState struct {
	MWidth     int
	MPrec      int
	MFlagMinus bool
	MFlagPlus  bool
	MFlagSharp bool
	MFlagSpace bool
	MFlagZero  bool
}

func (st FmtState) Width() (int, bool) {
	if st.MWidth < 1 {
		return 0, false
	}
	return st.MWidth, true
}

func (st FmtState) Precision() (int, bool) {
	if st.MPrec < 1 {
		return 0, false
	}
	return st.MPrec, true
}

func (st FmtState) Flag(b int) bool {
	switch b {
	case '-':
		return st.MFlagMinus
	case '+':
		return st.MFlagPlus
	case '#':
		return st.MFlagSharp
	case ' ':
		return st.MFlagSpace
	case '0':
		return st.MFlagZero
	}
	return false
}

func (st FmtState) Write([]byte) (int, error) {
	panic("not implemented")
}

func (dst *FmtState) Format(src fmt.State, verb rune) {
	if width, ok := src.Width(); ok {
		dst.MWidth = width
	}
	if prec, ok := src.Precision(); ok {
		dst.MPrec = prec
	}
	dst.MFlagMinus = src.Flag('-')
	dst.MFlagPlus = src.Flag('+')
	dst.MFlagSharp = src.Flag('#')
	dst.MFlagSpace = src.Flag(' ')
	dst.MFlagZero = src.Flag('0')
}

// letters only? No 'p', 'T', or 'w'.
const verbs = "abcdefghijklmnoqrstuvxyzABCDEFGHIJKLMNOPQRSUVWXYZ"

func FuzzFmtStateString(f *testing.F) {
	f.Fuzz(func(t *testing.T,
		width, prec uint8,
		flagMinus, flagPlus, flagSharp, flagSpace, flagZero bool,
		verbIdx uint8,
	) {
		if flagMinus {
			flagZero = false
		}
		input := FmtState{
			MWidth:     int(width),
			MPrec:      int(prec),
			MFlagMinus: flagMinus,
			MFlagPlus:  flagPlus,
			MFlagSharp: flagSharp,
			MFlagSpace: flagSpace,
			MFlagZero:  flagZero,
		}
		verb := rune(verbs[int(verbIdx)%len(verbs)])

		t.Logf("(%#v, %c) => %q", input, verb, fmtutil.FmtStateString(input, verb))

		var output FmtState
		assert.Equal(t, "", fmt.Sprintf(fmtutil.FmtStateString(input, verb), &output))
		assert.Equal(t, input, output)
	})
}

func TestFmtStateStringWidth(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "%-6d", fmtutil.FmtStateStringWidth(FmtState{MWidth: 9, MFlagMinus: true}, 'd', 6))
	assert.Equal(t, "%d", fmtutil.FmtStateStringWidth(FmtState{MWidth: 9}, 'd', 0))
}

func TestBitfieldString(t *testing.T) {
	t.Parallel()
	names := []string{"rwp", "non_seq"}
	assert.Equal(t, "none", fmtutil.BitfieldString(uint8(0), names))
	assert.Equal(t, "rwp", fmtutil.BitfieldString(uint8(1), names))
	assert.Equal(t, "rwp|non_seq", fmtutil.BitfieldString(uint8(3), names))
	assert.Equal(t, "rwp|(1<<2)", fmtutil.BitfieldString(uint8(5), names))
}

func TestParseBitfield(t *testing.T) {
	t.Parallel()
	names := []string{"rwp", "non_seq"}
	type testcase struct {
		In     string
		Out    uint8
		ErrStr string
	}
	testcases := map[string]testcase{
		"none":    {In: "none", Out: 0},
		"empty":   {In: "", Out: 0},
		"one":     {In: "non_seq", Out: 2},
		"both":    {In: "non_seq|rwp", Out: 3},
		"unnamed": {In: "rwp|(1<<7)", Out: 0x81},
		"wide":    {In: "(1<<8)", ErrStr: `unknown flag "(1<<8)"`},
		"bogus":   {In: "rwp|bogus", ErrStr: `unknown flag "bogus"`},
	}
	for tcName, tc := range testcases {
		tc := tc
		t.Run(tcName, func(t *testing.T) {
			t.Parallel()
			out, err := fmtutil.ParseBitfield[uint8](tc.In, names)
			if tc.ErrStr != "" {
				assert.EqualError(t, err, tc.ErrStr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.Out, out)
		})
	}
}

func FuzzBitfieldString(f *testing.F) {
	f.Add(uint16(0))
	f.Add(uint16(3))
	f.Add(uint16(0x8001))
	f.Fuzz(func(t *testing.T, bits uint16) {
		names := []string{"a", "b", "", "d"}
		str := fmtutil.BitfieldString(bits, names)
		back, err := fmtutil.ParseBitfield[uint16](str, names)
		assert.NoError(t, err)
		assert.Equal(t, bits, back)
	})
}
