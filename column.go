// Copyright 2024 The Wormtable Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package wormtable

import (
	"bytes"
	"math"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/wormtable-go/wormtable/internal/codec"
)

// Column is a typed element buffer for one column of one row: the runtime
// counterpart to a ColumnSchema. It holds the elements most recently
// parsed from a native value or text, and knows how to pack/unpack itself
// to/from a row buffer in the column's order-preserving wire format.
type Column struct {
	Schema ColumnSchema

	uints  []uint64
	ints   []int64
	floats []float64
	chars  []byte

	numBuffered int
	missing     bool
}

// NewColumn returns a zero-valued Column for the given schema, with
// scratch buffers sized for the column's maximum arity.
func NewColumn(s ColumnSchema) *Column {
	c := &Column{Schema: s}
	n := s.NumElements.maxElements()
	if !s.isVariable() {
		n = int(s.NumElements)
	}
	switch s.Type {
	case Uint:
		c.uints = make([]uint64, n)
	case Int:
		c.ints = make([]int64, n)
	case Float:
		c.floats = make([]float64, n)
	case Char:
		c.chars = make([]byte, n)
	}
	return c
}

// NumBuffered returns the number of elements currently buffered (0 for a
// missing value, unless the column is fixed-arity, in which case it is
// always the column's declared arity).
func (c *Column) NumBuffered() int { return c.numBuffered }

// Missing reports whether the buffered value represents "no data".
func (c *Column) Missing() bool { return c.missing }

func (c *Column) fixedCount() int { return int(c.Schema.NumElements) }

func (c *Column) maxElements() int {
	if c.Schema.isVariable() {
		return c.Schema.NumElements.maxElements()
	}
	return c.fixedCount()
}

// FromNative fills the column's buffer from a native Go value: nil means
// missing; otherwise a scalar (uint64/int64/float64) for an arity-1
// numeric column or a slice ([]uint64/[]int64/[]float64) matching the
// column's element type. A char column always takes a []byte.
func (c *Column) FromNative(v interface{}) error {
	c.missing = false
	c.numBuffered = 0

	if v == nil {
		c.missing = true
		if !c.Schema.isVariable() {
			c.numBuffered = c.fixedCount()
		}
		return nil
	}

	switch c.Schema.Type {
	case Uint:
		vals, err := asUint64Slice(v)
		if err != nil {
			return c.badType(err)
		}
		if err := c.checkArity(len(vals)); err != nil {
			return err
		}
		lo, hi := uint64(0), codec.MaxUint(c.Schema.ElementSize)
		for _, x := range vals {
			if x < lo || x > hi {
				return c.outOfRange(x)
			}
		}
		copy(c.uints, vals)
		c.numBuffered = len(vals)

	case Int:
		vals, err := asInt64Slice(v)
		if err != nil {
			return c.badType(err)
		}
		if err := c.checkArity(len(vals)); err != nil {
			return err
		}
		lo, hi := codec.MinInt(c.Schema.ElementSize), codec.MaxInt(c.Schema.ElementSize)
		for _, x := range vals {
			if x < lo || x > hi {
				return c.outOfRange(x)
			}
		}
		copy(c.ints, vals)
		c.numBuffered = len(vals)

	case Float:
		vals, err := asFloat64Slice(v)
		if err != nil {
			return c.badType(err)
		}
		for _, x := range vals {
			if math.IsNaN(x) {
				// Spec: committing NaN as data is equivalent to committing
				// "none" (scenario S3); NaN has no order-preserving packing
				// of its own, so any NaN collapses the whole value to missing.
				c.missing = true
				if !c.Schema.isVariable() {
					c.numBuffered = c.fixedCount()
				}
				return nil
			}
		}
		if err := c.checkArity(len(vals)); err != nil {
			return err
		}
		copy(c.floats, vals)
		c.numBuffered = len(vals)

	case Char:
		b, ok := v.([]byte)
		if !ok {
			return c.badType(errors.Newf("expected []byte, got %T", v))
		}
		if err := c.checkArity(len(b)); err != nil {
			return err
		}
		copy(c.chars, b)
		c.numBuffered = len(b)
	}
	return nil
}

func (c *Column) checkArity(n int) error {
	if c.Schema.isVariable() {
		if n > c.Schema.NumElements.maxElements() {
			return errors.Mark(errors.Newf(
				"wormtable: column %q: %d elements exceeds maximum of %d",
				c.Schema.Name, n, c.Schema.NumElements.maxElements()), ErrBadArity)
		}
		return nil
	}
	if n != c.fixedCount() {
		return errors.Mark(errors.Newf(
			"wormtable: column %q: expected %d elements, got %d",
			c.Schema.Name, c.fixedCount(), n), ErrBadArity)
	}
	return nil
}

func (c *Column) badType(cause error) error {
	return errors.Wrapf(errors.Mark(cause, ErrBadType), "wormtable: column %q", c.Schema.Name)
}

func (c *Column) outOfRange(v interface{}) error {
	return errors.Mark(errors.Newf("wormtable: column %q: value %v out of range", c.Schema.Name, v), ErrOutOfRange)
}

// FromText parses a comma/semicolon-separated list of textual elements (a
// single value for arity-1 columns) with the same validation as
// FromNative. A char column takes the whole text as its raw bytes. Empty
// input means missing, except for a fixed multi-arity column, where empty
// input is rejected.
func (c *Column) FromText(text []byte) error {
	if len(text) == 0 {
		if !c.Schema.isVariable() && c.fixedCount() > 1 {
			return errors.Mark(errors.Newf("wormtable: column %q: empty input not allowed for multi-element fixed column", c.Schema.Name), ErrParseError)
		}
		return c.FromNative(nil)
	}

	if c.Schema.Type == Char {
		return c.FromNative(append([]byte(nil), text...))
	}

	parts := bytes.FieldsFunc(text, func(r rune) bool { return r == ',' || r == ';' })
	switch c.Schema.Type {
	case Uint:
		vals := make([]uint64, len(parts))
		for i, p := range parts {
			n, err := strconv.ParseUint(string(p), 10, 64)
			if err != nil {
				return errors.Mark(errors.Wrapf(err, "wormtable: column %q: parsing %q", c.Schema.Name, p), ErrParseError)
			}
			vals[i] = n
		}
		return c.FromNative(vals)
	case Int:
		vals := make([]int64, len(parts))
		for i, p := range parts {
			n, err := strconv.ParseInt(string(p), 10, 64)
			if err != nil {
				return errors.Mark(errors.Wrapf(err, "wormtable: column %q: parsing %q", c.Schema.Name, p), ErrParseError)
			}
			vals[i] = n
		}
		return c.FromNative(vals)
	case Float:
		vals := make([]float64, len(parts))
		for i, p := range parts {
			f, err := strconv.ParseFloat(string(p), 64)
			if err != nil {
				return errors.Mark(errors.Wrapf(err, "wormtable: column %q: parsing %q", c.Schema.Name, p), ErrParseError)
			}
			vals[i] = f
		}
		return c.FromNative(vals)
	}
	return errors.Mark(errors.Newf("wormtable: column %q: unsupported type for text parsing", c.Schema.Name), ErrParseError)
}

// Verify re-checks that every buffered element lies within the column's
// representable range and round-trips exactly through pack/unpack.
func (c *Column) Verify() error {
	if c.missing {
		return nil
	}
	buf := make([]byte, c.Schema.ElementSize)
	switch c.Schema.Type {
	case Uint:
		for _, v := range c.uints[:c.numBuffered] {
			if v > codec.MaxUint(c.Schema.ElementSize) {
				return c.outOfRange(v)
			}
			if err := codec.PackUint(buf, c.Schema.ElementSize, v); err != nil {
				return err
			}
			got, missing, err := codec.UnpackUint(buf, c.Schema.ElementSize)
			if err != nil {
				return err
			}
			if missing || got != v {
				return errors.Mark(errors.Newf("wormtable: column %q: round-trip mismatch", c.Schema.Name), ErrInvariant)
			}
		}
	case Int:
		for _, v := range c.ints[:c.numBuffered] {
			if err := codec.PackInt(buf, c.Schema.ElementSize, v); err != nil {
				return err
			}
			got, missing, err := codec.UnpackInt(buf, c.Schema.ElementSize)
			if err != nil {
				return err
			}
			if missing || got != v {
				return errors.Mark(errors.Newf("wormtable: column %q: round-trip mismatch", c.Schema.Name), ErrInvariant)
			}
		}
	case Float:
		for _, v := range c.floats[:c.numBuffered] {
			if err := codec.PackFloat(buf, c.Schema.ElementSize, v); err != nil {
				return err
			}
			got, missing, err := codec.UnpackFloat(buf, c.Schema.ElementSize)
			if err != nil {
				return err
			}
			if missing || got != v {
				return errors.Mark(errors.Newf("wormtable: column %q: round-trip mismatch", c.Schema.Name), ErrInvariant)
			}
		}
	}
	return nil
}

// PackInto writes NumBuffered (or, for a missing fixed column, the full
// arity's worth of) sentinel-or-real elements into buf, which must have
// at least PackedLen() bytes available.
func (c *Column) PackInto(buf []byte) error {
	size := c.Schema.ElementSize
	n := c.numBuffered
	if c.missing && !c.Schema.isVariable() {
		n = c.fixedCount()
	}
	switch c.Schema.Type {
	case Uint:
		for i := 0; i < n; i++ {
			off := i * size
			if c.missing {
				if err := codec.PackUintMissing(buf[off:], size); err != nil {
					return err
				}
				continue
			}
			if err := codec.PackUint(buf[off:], size, c.uints[i]); err != nil {
				return err
			}
		}
	case Int:
		for i := 0; i < n; i++ {
			off := i * size
			if c.missing {
				if err := codec.PackIntMissing(buf[off:], size); err != nil {
					return err
				}
				continue
			}
			if err := codec.PackInt(buf[off:], size, c.ints[i]); err != nil {
				return err
			}
		}
	case Float:
		for i := 0; i < n; i++ {
			off := i * size
			if c.missing {
				if err := codec.PackFloatMissing(buf[off:], size); err != nil {
					return err
				}
				continue
			}
			if err := codec.PackFloat(buf[off:], size, c.floats[i]); err != nil {
				return err
			}
		}
	case Char:
		if c.missing {
			for i := 0; i < n; i++ {
				buf[i] = 0
			}
			return nil
		}
		codec.PackChar(buf[:n], c.chars[:n])
	}
	return nil
}

// PackedLen returns the number of bytes PackInto will write for the
// currently buffered value.
func (c *Column) PackedLen() int {
	n := c.numBuffered
	if c.missing && !c.Schema.isVariable() {
		n = c.fixedCount()
	}
	return n * c.Schema.ElementSize
}

// UnpackFrom reads n elements (n*element_size bytes) from buf into the
// column's buffer. When inferMissing is set (fixed-arity columns, which
// have no separate presence flag), missingSeen reports that every decoded
// element equaled the per-type missing sentinel; a mix of sentinel and
// non-sentinel elements is an invariant violation. Variable-arity columns
// carry their own address-based presence flag (see RowBuffer.Extract), so
// callers pass inferMissing=false for them and the column is never marked
// missing here.
func (c *Column) UnpackFrom(buf []byte, n int, inferMissing bool) (missingSeen bool, err error) {
	size := c.Schema.ElementSize
	c.numBuffered = n
	sentinelCount := 0
	switch c.Schema.Type {
	case Uint:
		for i := 0; i < n; i++ {
			v, missing, err := codec.UnpackUint(buf[i*size:], size)
			if err != nil {
				return false, err
			}
			if missing {
				sentinelCount++
			}
			c.uints[i] = v
		}
	case Int:
		for i := 0; i < n; i++ {
			v, missing, err := codec.UnpackInt(buf[i*size:], size)
			if err != nil {
				return false, err
			}
			if missing {
				sentinelCount++
			}
			c.ints[i] = v
		}
	case Float:
		for i := 0; i < n; i++ {
			v, missing, err := codec.UnpackFloat(buf[i*size:], size)
			if err != nil {
				return false, err
			}
			if missing {
				sentinelCount++
			}
			c.floats[i] = v
		}
	case Char:
		copy(c.chars, buf[:n])
		for i := 0; i < n; i++ {
			if buf[i] == 0 {
				sentinelCount++
			}
		}
	}
	if !inferMissing || n == 0 {
		c.missing = false
		return false, nil
	}
	if sentinelCount == 0 {
		c.missing = false
		return false, nil
	}
	if sentinelCount == n {
		c.missing = true
		return true, nil
	}
	return false, errors.Mark(errors.Newf(
		"wormtable: column %q: %d of %d elements were the missing sentinel", c.Schema.Name, sentinelCount, n), ErrInvariant)
}

// Truncate applies bin-width truncation (integer modulo, or fmod for
// floats) to every non-missing buffered element: x -= x mod binWidth.
// Char columns do not support binning.
func (c *Column) Truncate(binWidth float64) error {
	if c.missing || binWidth <= 0 {
		return nil
	}
	switch c.Schema.Type {
	case Uint:
		w := uint64(binWidth)
		for i := 0; i < c.numBuffered; i++ {
			c.uints[i] -= c.uints[i] % w
		}
	case Int:
		w := int64(binWidth)
		for i := 0; i < c.numBuffered; i++ {
			c.ints[i] -= c.ints[i] % w
		}
	case Float:
		for i := 0; i < c.numBuffered; i++ {
			c.floats[i] -= mod(c.floats[i], binWidth)
		}
	case Char:
		return errors.Mark(errors.Newf("wormtable: column %q: char columns do not support binning", c.Schema.Name), ErrBadSchema)
	}
	return nil
}

func mod(x, y float64) float64 {
	m := x - y*float64(int64(x/y))
	return m
}

// Elements returns the buffered elements as a generic Go value, suitable
// for returning to a caller: nil if missing, else a scalar for fixed
// arity-1 numeric columns or a typed slice otherwise (a char column always
// yields a []byte).
func (c *Column) Elements() interface{} {
	if c.missing {
		return nil
	}
	switch c.Schema.Type {
	case Uint:
		if !c.Schema.isVariable() && c.fixedCount() == 1 {
			return c.uints[0]
		}
		return append([]uint64(nil), c.uints[:c.numBuffered]...)
	case Int:
		if !c.Schema.isVariable() && c.fixedCount() == 1 {
			return c.ints[0]
		}
		return append([]int64(nil), c.ints[:c.numBuffered]...)
	case Float:
		if !c.Schema.isVariable() && c.fixedCount() == 1 {
			return c.floats[0]
		}
		return append([]float64(nil), c.floats[:c.numBuffered]...)
	case Char:
		return append([]byte{}, c.chars[:c.numBuffered]...)
	}
	return nil
}

func asUint64Slice(v interface{}) ([]uint64, error) {
	switch x := v.(type) {
	case uint64:
		return []uint64{x}, nil
	case []uint64:
		return x, nil
	default:
		return nil, errors.Newf("expected uint64 or []uint64, got %T", v)
	}
}

func asInt64Slice(v interface{}) ([]int64, error) {
	switch x := v.(type) {
	case int64:
		return []int64{x}, nil
	case []int64:
		return x, nil
	default:
		return nil, errors.Newf("expected int64 or []int64, got %T", v)
	}
}

func asFloat64Slice(v interface{}) ([]float64, error) {
	switch x := v.(type) {
	case float64:
		return []float64{x}, nil
	case []float64:
		return x, nil
	default:
		return nil, errors.Newf("expected float64 or []float64, got %T", v)
	}
}
