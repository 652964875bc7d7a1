// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package binstruct encodes and decodes fixed-layout kernel ABI
// structures, such as ioctl arguments, in host byte order.
//
// The layout of a struct is given by `bin:"off=…, siz=…"` tags on
// its fields, and its total size by an embedded End field.  Reserved
// space does not need a field: gaps between fields are zero when
// encoding and ignored when decoding.
package binstruct

import (
	"encoding/binary"
	"errors"
	"fmt"
	"reflect"
	"unsafe"
)

// HostOrder is the byte order of the running machine, which is the
// byte order that the kernel ABI uses.
var HostOrder = func() binary.ByteOrder {
	x := uint16(0x0102)
	if *(*byte)(unsafe.Pointer(&x)) == 0x01 {
		return binary.BigEndian
	}
	return binary.LittleEndian
}()

// StaticSize returns the encoded size of obj's type; it panics if the
// type cannot be encoded.
func StaticSize(obj any) int {
	return mustCodec(reflect.TypeOf(obj)).size
}

// Marshal encodes obj, which must be an integer, an array, or a
// tagged struct (or a pointer to one of those).
func Marshal(obj any) ([]byte, error) {
	val := reflect.ValueOf(obj)
	for val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return nil, &InvalidTypeError{Type: val.Type(), Err: errors.New("nil pointer")}
		}
		val = val.Elem()
	}
	c, err := getCodec(val.Type())
	if err != nil {
		return nil, err
	}
	dat := make([]byte, c.size)
	c.encode(dat, val)
	return dat, nil
}

// Unmarshal decodes dat into the object pointed to by dstPtr, and
// returns the number of bytes consumed.
func Unmarshal(dat []byte, dstPtr any) (int, error) {
	ptr := reflect.ValueOf(dstPtr)
	if ptr.Kind() != reflect.Ptr || ptr.IsNil() {
		return 0, &InvalidTypeError{Type: reflect.TypeOf(dstPtr), Err: errors.New("not a non-nil pointer")}
	}
	dst := ptr.Elem()
	c, err := getCodec(dst.Type())
	if err != nil {
		return 0, err
	}
	if len(dat) < c.size {
		return 0, &UnmarshalError{
			Type: dst.Type(),
			Err:  fmt.Errorf("need at least %v bytes, only have %v", c.size, len(dat)),
		}
	}
	c.decode(dat[:c.size], dst)
	return c.size, nil
}

type InvalidTypeError struct {
	Type reflect.Type
	Err  error
}

func (e *InvalidTypeError) Error() string {
	return fmt.Sprintf("%v: %v", e.Type, e.Err)
}
func (e *InvalidTypeError) Unwrap() error { return e.Err }

type UnmarshalError struct {
	Type reflect.Type
	Err  error
}

func (e *UnmarshalError) Error() string {
	return fmt.Sprintf("%v: %v", e.Type, e.Err)
}
func (e *UnmarshalError) Unwrap() error { return e.Err }
