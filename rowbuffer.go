// Copyright 2024 The Wormtable Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package wormtable

import (
	"github.com/cockroachdb/errors"
	"github.com/wormtable-go/wormtable/internal/codec"
)

// RowBuffer is the write-side assembly buffer described in spec §4.3: a
// fixed region (one slot per column) followed by a variable region that
// grows as variable-length columns are inserted.
type RowBuffer struct {
	schema *Schema
	buf    []byte
	size   int // current end of the assembled row, starts at FixedRegionSize
	cols   []*Column
}

// NewRowBuffer returns a RowBuffer for schema, reset and ready for the
// first row.
func NewRowBuffer(schema *Schema) *RowBuffer {
	rb := &RowBuffer{
		schema: schema,
		buf:    make([]byte, MaxRowSize),
		cols:   make([]*Column, len(schema.Columns)),
	}
	for i, c := range schema.Columns {
		rb.cols[i] = NewColumn(c)
	}
	rb.Reset()
	return rb
}

// Reset zeroes the fixed region and rewinds the row to empty, ready for
// the next row's columns to be inserted.
func (rb *RowBuffer) Reset() {
	for i := range rb.buf[:rb.schema.FixedRegionSize()] {
		rb.buf[i] = 0
	}
	rb.size = rb.schema.FixedRegionSize()
}

// Size returns the current assembled size of the row, in bytes.
func (rb *RowBuffer) Size() int { return rb.size }

// Bytes returns the assembled row so far: buf[:Size()].
func (rb *RowBuffer) Bytes() []byte { return rb.buf[:rb.size] }

// Body returns the portion of the row after the primary-key slot: the
// bytes persisted to the data file on commit.
func (rb *RowBuffer) Body() []byte { return rb.buf[rb.schema.RowIDSize():rb.size] }

// SetRowID writes the packed row id into column 0's slot. Only Table's
// commit path calls this; Insert rejects column 0 directly.
func (rb *RowBuffer) SetRowID(id uint64) error {
	return codec.PackUint(rb.buf[:rb.schema.RowIDSize()], rb.schema.RowIDSize(), id)
}

// Insert assembles value into column colIndex's slot, per spec §4.3.
// colIndex 0 (row_id) is rejected; it is assigned automatically at
// commit.
func (rb *RowBuffer) Insert(colIndex int, value interface{}) error {
	if colIndex == 0 {
		return errors.Mark(errors.New("wormtable: cannot insert into the row_id column directly"), ErrBadSchema)
	}
	col := rb.cols[colIndex]
	if err := col.FromNative(value); err != nil {
		return err
	}
	return rb.place(colIndex, col)
}

// InsertText is Insert, parsing value from its textual representation.
func (rb *RowBuffer) InsertText(colIndex int, text []byte) error {
	if colIndex == 0 {
		return errors.Mark(errors.New("wormtable: cannot insert into the row_id column directly"), ErrBadSchema)
	}
	col := rb.cols[colIndex]
	if err := col.FromText(text); err != nil {
		return err
	}
	return rb.place(colIndex, col)
}

// InsertEncoded writes already order-preserving-packed element bytes for
// colIndex directly, bypassing native/text parsing. For a fixed column,
// encoded must be exactly FixedRegionSize(col) bytes. For a variable
// column, encoded is the already-packed element bytes (its length must be
// a multiple of the column's element_size).
func (rb *RowBuffer) InsertEncoded(colIndex int, encoded []byte) error {
	if colIndex == 0 {
		return errors.Mark(errors.New("wormtable: cannot insert into the row_id column directly"), ErrBadSchema)
	}
	cs := rb.schema.Columns[colIndex]
	offset := rb.schema.ColumnOffset(colIndex)
	if !cs.isVariable() {
		if len(encoded) != cs.FixedRegionSize() {
			return errors.Mark(errors.Newf(
				"wormtable: column %q: encoded value must be %d bytes, got %d",
				cs.Name, cs.FixedRegionSize(), len(encoded)), ErrBadArity)
		}
		copy(rb.buf[offset:offset+cs.FixedRegionSize()], encoded)
		return nil
	}

	if cs.ElementSize == 0 || len(encoded)%cs.ElementSize != 0 {
		return errors.Mark(errors.Newf("wormtable: column %q: encoded length %d not a multiple of element_size %d",
			cs.Name, len(encoded), cs.ElementSize), ErrBadArity)
	}
	n := len(encoded) / cs.ElementSize
	if n > cs.NumElements.maxElements() {
		return errors.Mark(errors.Newf("wormtable: column %q: %d elements exceeds maximum of %d",
			cs.Name, n, cs.NumElements.maxElements()), ErrBadArity)
	}
	need := len(encoded)
	if rb.size+need > MaxRowSize {
		return errors.Mark(errors.Newf("wormtable: row size would exceed %d bytes", MaxRowSize), ErrRowOverflow)
	}
	if err := codec.PackUint(rb.buf[offset:], addressSize, uint64(rb.size)); err != nil {
		return err
	}
	putLen(rb.buf[offset+addressSize:], cs.NumElements.varSize(), n)
	copy(rb.buf[rb.size:rb.size+need], encoded)
	rb.size += need
	return nil
}

func (rb *RowBuffer) place(colIndex int, col *Column) error {
	cs := rb.schema.Columns[colIndex]
	offset := rb.schema.ColumnOffset(colIndex)

	if !cs.isVariable() {
		return col.PackInto(rb.buf[offset : offset+cs.FixedRegionSize()])
	}

	if col.Missing() {
		if err := codec.PackUintMissing(rb.buf[offset:], addressSize); err != nil {
			return err
		}
		putLen(rb.buf[offset+addressSize:], cs.NumElements.varSize(), 0)
		return nil
	}

	n := col.NumBuffered()
	need := n * cs.ElementSize
	if rb.size+need > MaxRowSize {
		return errors.Mark(errors.Newf("wormtable: row size would exceed %d bytes", MaxRowSize), ErrRowOverflow)
	}
	if err := codec.PackUint(rb.buf[offset:], addressSize, uint64(rb.size)); err != nil {
		return err
	}
	putLen(rb.buf[offset+addressSize:], cs.NumElements.varSize(), n)
	if err := col.PackInto(rb.buf[rb.size : rb.size+need]); err != nil {
		return err
	}
	rb.size += need
	return nil
}

// LoadDecoded points the buffer at an already-assembled row (key bytes
// followed by body bytes), as read back from the data file, so that
// Extract can decode individual columns from it.
func (rb *RowBuffer) LoadDecoded(key, body []byte) {
	copy(rb.buf, key)
	copy(rb.buf[len(key):], body)
	rb.size = len(key) + len(body)
}

// Extract decodes column colIndex out of the row currently loaded (via
// LoadDecoded or after an Insert/place sequence) and returns its Column.
func (rb *RowBuffer) Extract(colIndex int) (*Column, error) {
	cs := rb.schema.Columns[colIndex]
	offset := rb.schema.ColumnOffset(colIndex)
	col := rb.cols[colIndex]

	if !cs.isVariable() {
		if _, err := col.UnpackFrom(rb.buf[offset:offset+cs.FixedRegionSize()], int(cs.NumElements), true); err != nil {
			return nil, err
		}
		return col, nil
	}

	addr, missing, err := codec.UnpackUint(rb.buf[offset:], addressSize)
	if err != nil {
		return nil, err
	}
	varSize := cs.NumElements.varSize()
	n := getLen(rb.buf[offset+addressSize:], varSize)
	if missing {
		col.missing = true
		col.numBuffered = 0
		return col, nil
	}
	start := int(addr)
	elemBytes := rb.buf[start : start+n*cs.ElementSize]
	if _, err := col.UnpackFrom(elemBytes, n, false); err != nil {
		return nil, err
	}
	return col, nil
}

func putLen(buf []byte, size, v int) {
	switch size {
	case 1:
		buf[0] = byte(v)
	case 2:
		buf[0] = byte(v >> 8)
		buf[1] = byte(v)
	}
}

func getLen(buf []byte, size int) int {
	switch size {
	case 1:
		return int(buf[0])
	case 2:
		return int(buf[0])<<8 | int(buf[1])
	}
	return 0
}
