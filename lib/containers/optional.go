// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package containers holds small generic container types.
package containers

import (
	"encoding/json"
	"fmt"
)

// Optional is a value that may or may not be set; the zero Optional
// is unset.
type Optional[T any] struct {
	OK  bool
	Val T
}

func OptionalValue[T any](val T) Optional[T] {
	return Optional[T]{OK: true, Val: val}
}

var (
	_ json.Marshaler   = Optional[bool]{}
	_ json.Unmarshaler = (*Optional[bool])(nil)
	_ fmt.Stringer     = Optional[bool]{}
)

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.OK {
		return []byte("null"), nil
	}
	return json.Marshal(o.Val)
}

func (o *Optional[T]) UnmarshalJSON(dat []byte) error {
	if string(dat) == "null" {
		*o = Optional[T]{}
		return nil
	}
	o.OK = true
	return json.Unmarshal(dat, &o.Val)
}

// String implements fmt.Stringer.
func (o Optional[T]) String() string {
	if !o.OK {
		return "none"
	}
	return fmt.Sprint(o.Val)
}
