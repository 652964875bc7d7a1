// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

//go:build !linux

package zbd

import (
	"context"
	"fmt"
	"io/fs"
)

func openBlockDevice(_ context.Context, filename string, _ bool) (Device, error) {
	return nil, &fs.PathError{Op: "open", Path: filename,
		Err: fmt.Errorf("%w: zoned block devices are only supported on Linux", ErrNotZoned)}
}
