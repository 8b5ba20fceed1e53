// Copyright 2024 The Wormtable Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package wormtable

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/olekukonko/tablewriter"
)

// ElementType is the type tag of a column's elements.
type ElementType int

const (
	// Uint is an unsigned integer element type, 1-8 bytes.
	Uint ElementType = iota
	// Int is a signed integer element type, 1-8 bytes.
	Int
	// Float is an IEEE float element type, 2 (half), 4, or 8 bytes.
	Float
	// Char is a raw single-byte element type.
	Char
)

func (t ElementType) String() string {
	switch t {
	case Uint:
		return "UINT"
	case Int:
		return "INT"
	case Float:
		return "FLOAT"
	case Char:
		return "CHAR"
	default:
		return fmt.Sprintf("ElementType(%d)", int(t))
	}
}

// Arity describes a column's element count: a positive fixed count, or
// one of the two variable-length tags.
type Arity int

const (
	// VAR1 marks a variable-length column whose element count is encoded
	// in a one-byte length field (count <= VAR1MaxElements).
	VAR1 Arity = -1
	// VAR2 marks a variable-length column whose element count is encoded
	// in a two-byte length field (count <= VAR2MaxElements).
	VAR2 Arity = -2
)

// Variable-length framing constants, see spec §6.
const (
	VAR1MaxElements = 254
	VAR2MaxElements = 65534

	addressSize = 2
)

// IsVariable reports whether the arity denotes a variable-length column.
func (a Arity) IsVariable() bool {
	return a == VAR1 || a == VAR2
}

func (a Arity) varSize() int {
	switch a {
	case VAR1:
		return 1
	case VAR2:
		return 2
	default:
		return 0
	}
}

func (a Arity) maxElements() int {
	switch a {
	case VAR1:
		return VAR1MaxElements
	case VAR2:
		return VAR2MaxElements
	default:
		return int(a)
	}
}

// RowIDColumnName is the conventional name required of column 0.
const RowIDColumnName = "row_id"

// MaxRowSize is the largest permitted assembled row size, in bytes. This
// module resolves the spec's open question between 65,535 and 65,536 in
// favor of 65,535: see SPEC_FULL.md §D.
const MaxRowSize = 65535

// ColumnSchema describes one column of a table.
type ColumnSchema struct {
	Name        string
	Description string
	Type        ElementType
	ElementSize int
	NumElements Arity
}

func (c ColumnSchema) isVariable() bool {
	return c.NumElements.IsVariable()
}

// FixedRegionSize returns the number of bytes this column reserves in a
// row's fixed region.
func (c ColumnSchema) FixedRegionSize() int {
	if c.isVariable() {
		return addressSize + c.NumElements.varSize()
	}
	return c.ElementSize * int(c.NumElements)
}

func (c ColumnSchema) validate() error {
	if c.Name == "" {
		return errors.Mark(errors.New("wormtable: column name must not be empty"), ErrBadSchema)
	}
	switch c.Type {
	case Uint, Int:
		if c.ElementSize < 1 || c.ElementSize > 8 {
			return errors.Mark(errors.Newf("wormtable: column %q: element_size %d invalid for integer type", c.Name, c.ElementSize), ErrBadSchema)
		}
	case Float:
		if c.ElementSize != 2 && c.ElementSize != 4 && c.ElementSize != 8 {
			return errors.Mark(errors.Newf("wormtable: column %q: element_size %d invalid for float type", c.Name, c.ElementSize), ErrBadSchema)
		}
	case Char:
		if c.ElementSize != 1 {
			return errors.Mark(errors.Newf("wormtable: column %q: char element_size must be 1", c.Name), ErrBadSchema)
		}
	default:
		return errors.Mark(errors.Newf("wormtable: column %q: unknown element type %v", c.Name, c.Type), ErrBadSchema)
	}
	if !c.NumElements.IsVariable() && c.NumElements <= 0 {
		return errors.Mark(errors.Newf("wormtable: column %q: num_elements must be positive or VAR1/VAR2", c.Name), ErrBadSchema)
	}
	return nil
}

// Schema is the ordered, validated list of columns making up a table.
type Schema struct {
	Columns []ColumnSchema

	fixedRegionSize int
	rowIDSize       int
	offsets         []int // fixed-region byte offset of each column
}

// NewSchema validates cols and returns a Schema. Column 0 must be named
// RowIDColumnName, have type Uint and a fixed arity of 1. Column names
// must be unique.
func NewSchema(cols []ColumnSchema) (*Schema, error) {
	if len(cols) == 0 {
		return nil, errors.Mark(errors.New("wormtable: schema must have at least one column"), ErrBadSchema)
	}
	first := cols[0]
	if first.Name != RowIDColumnName || first.Type != Uint || first.NumElements != Arity(1) {
		return nil, errors.Mark(errors.Newf(
			"wormtable: column 0 must be a 1-element uint column named %q", RowIDColumnName), ErrBadSchema)
	}

	seen := make(map[string]bool, len(cols))
	offsets := make([]int, len(cols))
	off := 0
	for i, c := range cols {
		if err := c.validate(); err != nil {
			return nil, err
		}
		if seen[c.Name] {
			return nil, errors.Mark(errors.Newf("wormtable: duplicate column name %q", c.Name), ErrBadSchema)
		}
		seen[c.Name] = true
		offsets[i] = off
		off += c.FixedRegionSize()
	}

	s := &Schema{
		Columns:         append([]ColumnSchema(nil), cols...),
		fixedRegionSize: off,
		rowIDSize:       first.ElementSize,
		offsets:         offsets,
	}
	return s, nil
}

// NumColumns returns the number of columns in the schema.
func (s *Schema) NumColumns() int { return len(s.Columns) }

// ColumnIndex returns the index of the column with the given name, or -1.
func (s *Schema) ColumnIndex(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// FixedRegionSize is the total width, in bytes, of the row's fixed region.
func (s *Schema) FixedRegionSize() int { return s.fixedRegionSize }

// RowIDSize is the element_size of column 0 (the row_id column), i.e. the
// width in bytes of primary keys.
func (s *Schema) RowIDSize() int { return s.rowIDSize }

// ColumnOffset returns the byte offset of column i within the row's fixed
// region.
func (s *Schema) ColumnOffset(i int) int { return s.offsets[i] }

// Describe renders a human-readable table of the schema's columns,
// following the teacher's tablewriter-based diagnostic formatting.
func (s *Schema) Describe() string {
	var sb strings.Builder
	table := tablewriter.NewWriter(&sb)
	table.SetHeader([]string{"#", "name", "type", "element_size", "num_elements"})
	for i, c := range s.Columns {
		arity := fmt.Sprintf("%d", int(c.NumElements))
		switch c.NumElements {
		case VAR1:
			arity = "VAR1"
		case VAR2:
			arity = "VAR2"
		}
		table.Append([]string{
			fmt.Sprintf("%d", i), c.Name, c.Type.String(),
			fmt.Sprintf("%d", c.ElementSize), arity,
		})
	}
	table.Render()
	return sb.String()
}
