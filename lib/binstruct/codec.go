// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package binstruct

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"git.lukeshu.com/go/typedsync"
)

// End marks the end of a struct; embed it with a `bin:"off=N"` tag to
// declare that the struct is N bytes.
type End struct{}

var (
	endType  = reflect.TypeOf(End{})
	byteType = reflect.TypeOf(byte(0))
)

// A codec encodes and decodes one type.  The slices handed to encode
// and decode are exactly size bytes long.
type codec struct {
	size   int
	encode func(dst []byte, val reflect.Value)
	decode func(src []byte, val reflect.Value)
}

var codecCache typedsync.Map[reflect.Type, *codec]

func getCodec(typ reflect.Type) (*codec, error) {
	if c, ok := codecCache.Load(typ); ok {
		return c, nil
	}
	c, err := buildCodec(typ)
	if err != nil {
		return nil, &InvalidTypeError{Type: typ, Err: err}
	}
	codecCache.Store(typ, c)
	return c, nil
}

func mustCodec(typ reflect.Type) *codec {
	c, err := getCodec(typ)
	if err != nil {
		panic(err)
	}
	return c
}

func buildCodec(typ reflect.Type) (*codec, error) {
	switch typ.Kind() {
	case reflect.Uint8, reflect.Int8:
		return &codec{
			size:   1,
			encode: func(dst []byte, val reflect.Value) { dst[0] = byte(intBits(val)) },
			decode: func(src []byte, val reflect.Value) { setIntBits(val, uint64(src[0])) },
		}, nil
	case reflect.Uint16, reflect.Int16:
		return &codec{
			size:   2,
			encode: func(dst []byte, val reflect.Value) { HostOrder.PutUint16(dst, uint16(intBits(val))) },
			decode: func(src []byte, val reflect.Value) { setIntBits(val, uint64(HostOrder.Uint16(src))) },
		}, nil
	case reflect.Uint32, reflect.Int32:
		return &codec{
			size:   4,
			encode: func(dst []byte, val reflect.Value) { HostOrder.PutUint32(dst, uint32(intBits(val))) },
			decode: func(src []byte, val reflect.Value) { setIntBits(val, uint64(HostOrder.Uint32(src))) },
		}, nil
	case reflect.Uint64, reflect.Int64:
		return &codec{
			size:   8,
			encode: func(dst []byte, val reflect.Value) { HostOrder.PutUint64(dst, intBits(val)) },
			decode: func(src []byte, val reflect.Value) { setIntBits(val, HostOrder.Uint64(src)) },
		}, nil
	case reflect.Array:
		return buildArrayCodec(typ)
	case reflect.Struct:
		return buildStructCodec(typ)
	default:
		return nil, fmt.Errorf("kind=%v does not have a fixed binary layout", typ.Kind())
	}
}

func intBits(val reflect.Value) uint64 {
	if val.CanInt() {
		return uint64(val.Int())
	}
	return val.Uint()
}

// setIntBits stores the low bits of x, sign-extending for signed
// kinds.
func setIntBits(val reflect.Value, x uint64) {
	if !val.CanInt() {
		val.SetUint(x)
		return
	}
	shift := 64 - 8*val.Type().Size()
	val.SetInt(int64(x<<shift) >> shift)
}

func buildArrayCodec(typ reflect.Type) (*codec, error) {
	if typ.Elem() == byteType {
		return &codec{
			size:   typ.Len(),
			encode: func(dst []byte, val reflect.Value) { reflect.Copy(reflect.ValueOf(dst), val) },
			decode: func(src []byte, val reflect.Value) { reflect.Copy(val, reflect.ValueOf(src)) },
		}, nil
	}
	elem, err := buildCodec(typ.Elem())
	if err != nil {
		return nil, err
	}
	n := typ.Len()
	return &codec{
		size: elem.size * n,
		encode: func(dst []byte, val reflect.Value) {
			for i := 0; i < n; i++ {
				elem.encode(dst[i*elem.size:(i+1)*elem.size], val.Index(i))
			}
		},
		decode: func(src []byte, val reflect.Value) {
			for i := 0; i < n; i++ {
				elem.decode(src[i*elem.size:(i+1)*elem.size], val.Index(i))
			}
		},
	}, nil
}

type fieldTag struct {
	skip bool
	off  int
	siz  int
}

func parseFieldTag(str string) (fieldTag, error) {
	var ret fieldTag
	for _, part := range strings.Split(str, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if part == "-" {
			return fieldTag{skip: true}, nil
		}
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			return fieldTag{}, fmt.Errorf("option is not a key=value pair: %q", part)
		}
		vint, err := strconv.ParseInt(val, 0, 0)
		if err != nil {
			return fieldTag{}, fmt.Errorf("option %q: %w", key, err)
		}
		switch key {
		case "off":
			ret.off = int(vint)
		case "siz":
			ret.siz = int(vint)
		default:
			return fieldTag{}, fmt.Errorf("unrecognized option %q", key)
		}
	}
	return ret, nil
}

type structField struct {
	idx   int
	off   int
	codec *codec
}

func buildStructCodec(typ reflect.Type) (*codec, error) {
	var fields []structField
	end := -1
	cur := 0
	for i := 0; i < typ.NumField(); i++ {
		info := typ.Field(i)
		tag, err := parseFieldTag(info.Tag.Get("bin"))
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", info.Name, err)
		}
		if tag.skip {
			continue
		}
		if tag.off < cur {
			return nil, fmt.Errorf("field %q: off=%#x overlaps the previous field, which ends at %#x",
				info.Name, tag.off, cur)
		}
		if info.Type == endType {
			end = tag.off
			cur = tag.off
			continue
		}
		if info.Anonymous {
			return nil, fmt.Errorf("field %q: embedded fields are not supported", info.Name)
		}
		if end >= 0 {
			return nil, fmt.Errorf("field %q: comes after End", info.Name)
		}
		c, err := buildCodec(info.Type)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", info.Name, err)
		}
		if tag.siz != c.size {
			return nil, fmt.Errorf("field %q: tag says siz=%#x but the type is %#x bytes",
				info.Name, tag.siz, c.size)
		}
		fields = append(fields, structField{idx: i, off: tag.off, codec: c})
		cur = tag.off + tag.siz
	}
	if end < 0 {
		return nil, fmt.Errorf("no binstruct.End field")
	}
	return &codec{
		size: end,
		encode: func(dst []byte, val reflect.Value) {
			for i := range dst {
				dst[i] = 0
			}
			for _, f := range fields {
				f.codec.encode(dst[f.off:f.off+f.codec.size], val.Field(f.idx))
			}
		},
		decode: func(src []byte, val reflect.Value) {
			for _, f := range fields {
				f.codec.decode(src[f.off:f.off+f.codec.size], val.Field(f.idx))
			}
		},
	}, nil
}
