// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package diskio provides positioned, typed-address access to files
// and disk images.
package diskio

import (
	"io"
	"os"
)

// File is a fixed-size, randomly readable file whose offsets are of
// type A.
type File[A ~int64] interface {
	Name() string
	Size() A
	Close() error
	ReadAt(p []byte, off A) (n int, err error)
}

type assertAddr int64

var _ io.ReaderAt = File[int64](nil)

type OSFile[A ~int64] struct {
	fh   *os.File
	size A
}

var _ File[assertAddr] = (*OSFile[assertAddr])(nil)

// OpenFile opens the named file read-only, with any extra flags
// (such as O_DIRECT) or'ed in.  The size is measured once, by seeking
// to the end, so that it is also right for block devices, whose
// st_size is 0.
func OpenFile[A ~int64](name string, flag int) (*OSFile[A], error) {
	fh, err := os.OpenFile(name, os.O_RDONLY|flag, 0)
	if err != nil {
		return nil, err
	}
	size, err := fh.Seek(0, io.SeekEnd)
	if err != nil {
		_ = fh.Close()
		return nil, err
	}
	return &OSFile[A]{fh: fh, size: A(size)}, nil
}

func (f *OSFile[A]) Name() string { return f.fh.Name() }
func (f *OSFile[A]) Size() A      { return f.size }
func (f *OSFile[A]) Close() error { return f.fh.Close() }

func (f *OSFile[A]) ReadAt(dat []byte, paddr A) (int, error) {
	return f.fh.ReadAt(dat, int64(paddr))
}
