// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package fmtutil

import (
	"fmt"
	"strings"
)

type bitfield interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// BitfieldString renders a set of flag bits as "name|name", using
// names[i] for bit i; unnamed bits are rendered as "(1<<i)", and the
// empty set as "none".
func BitfieldString[T bitfield](bits T, names []string) string {
	if bits == 0 {
		return "none"
	}
	var parts []string
	for i := 0; i < 64 && uint64(bits)>>i != 0; i++ {
		if uint64(bits)&(1<<i) == 0 {
			continue
		}
		if i < len(names) && names[i] != "" {
			parts = append(parts, names[i])
		} else {
			parts = append(parts, fmt.Sprintf("(1<<%d)", i))
		}
	}
	return strings.Join(parts, "|")
}

// ParseBitfield is the inverse of BitfieldString.
func ParseBitfield[T bitfield](str string, names []string) (T, error) {
	var bits T
	if str == "none" || str == "" {
		return 0, nil
	}
	width := int(8 * sizeOf(bits))
parts:
	for _, part := range strings.Split(str, "|") {
		for i, name := range names {
			if name != "" && name == part {
				bits |= 1 << i
				continue parts
			}
		}
		var i int
		if _, err := fmt.Sscanf(part, "(1<<%d)", &i); err != nil || i < 0 || i >= width {
			return 0, fmt.Errorf("unknown flag %q", part)
		}
		bits |= 1 << i
	}
	return bits, nil
}

func sizeOf[T bitfield](T) uintptr {
	var x T
	x--
	n := uintptr(0)
	for ; x != 0; x >>= 8 {
		n++
	}
	return n
}
