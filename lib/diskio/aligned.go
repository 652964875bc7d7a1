// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package diskio

import (
	"fmt"
	"os"
	"unsafe"
)

// PageSize is the buffer alignment that satisfies O_DIRECT for any
// block size up to the page size.
var PageSize = os.Getpagesize()

// AllocAligned returns a zeroed buffer of exactly size bytes whose
// base address is a multiple of align.  align must be a power of two.
func AllocAligned(size, align int) []byte {
	if align <= 0 || align&(align-1) != 0 {
		panic(fmt.Errorf("diskio.AllocAligned: alignment %v is not a power of two", align))
	}
	if size == 0 {
		return []byte{}
	}
	raw := make([]byte, size+align)
	skip := 0
	if rem := int(uintptr(unsafe.Pointer(&raw[0])) & uintptr(align-1)); rem != 0 {
		skip = align - rem
	}
	return raw[skip : skip+size : skip+size]
}

// IsAligned reports whether buf starts at a multiple of align and its
// length is a multiple of align.
func IsAligned(buf []byte, align int) bool {
	if len(buf)%align != 0 {
		return false
	}
	if len(buf) == 0 {
		return true
	}
	return uintptr(unsafe.Pointer(&buf[0]))%uintptr(align) == 0
}

// IsAddrAligned is like IsAligned, but ignores the length.
func IsAddrAligned(buf []byte, align int) bool {
	if len(buf) == 0 {
		return true
	}
	return uintptr(unsafe.Pointer(&buf[0]))%uintptr(align) == 0
}
