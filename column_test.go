// Copyright 2024 The Wormtable Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package wormtable

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestColumnFromNativeScalarUint(t *testing.T) {
	c := NewColumn(ColumnSchema{Name: "x", Type: Uint, ElementSize: 2, NumElements: 1})
	require.NoError(t, c.FromNative(uint64(42)))
	require.False(t, c.Missing())
	require.Equal(t, uint64(42), c.Elements())
}

func TestColumnFromNativeMissing(t *testing.T) {
	c := NewColumn(ColumnSchema{Name: "x", Type: Uint, ElementSize: 2, NumElements: 1})
	require.NoError(t, c.FromNative(nil))
	require.True(t, c.Missing())
	require.Nil(t, c.Elements())
}

func TestColumnFromNativeOutOfRange(t *testing.T) {
	c := NewColumn(ColumnSchema{Name: "x", Type: Uint, ElementSize: 1, NumElements: 1})
	err := c.FromNative(uint64(300))
	require.ErrorIs(t, err, ErrOutOfRange)
}

func TestColumnFromNativeWrongArity(t *testing.T) {
	c := NewColumn(ColumnSchema{Name: "x", Type: Uint, ElementSize: 2, NumElements: 3})
	err := c.FromNative([]uint64{1, 2})
	require.ErrorIs(t, err, ErrBadArity)
}

func TestColumnVariableArityRespectsMax(t *testing.T) {
	c := NewColumn(ColumnSchema{Name: "x", Type: Int, ElementSize: 2, NumElements: VAR1})
	vals := make([]int64, VAR1MaxElements+1)
	err := c.FromNative(vals)
	require.ErrorIs(t, err, ErrBadArity)
}

func TestColumnFromTextParsesAndRoundTrips(t *testing.T) {
	c := NewColumn(ColumnSchema{Name: "x", Type: Int, ElementSize: 4, NumElements: VAR1})
	require.NoError(t, c.FromText([]byte("1,2,-3")))
	require.Equal(t, []int64{1, 2, -3}, c.Elements())
}

func TestColumnFromTextEmptyMeansMissing(t *testing.T) {
	c := NewColumn(ColumnSchema{Name: "x", Type: Uint, ElementSize: 2, NumElements: 1})
	require.NoError(t, c.FromText(nil))
	require.True(t, c.Missing())
}

func TestColumnPackUnpackRoundTrip(t *testing.T) {
	schema := ColumnSchema{Name: "x", Type: Uint, ElementSize: 2, NumElements: 3}
	c := NewColumn(schema)
	require.NoError(t, c.FromNative([]uint64{1, 2, 3}))
	buf := make([]byte, c.PackedLen())
	require.NoError(t, c.PackInto(buf))

	c2 := NewColumn(schema)
	missing, err := c2.UnpackFrom(buf, 3, true)
	require.NoError(t, err)
	require.False(t, missing)
	require.Equal(t, []uint64{1, 2, 3}, c2.Elements())
}

func TestColumnUnpackInfersMissingFromAllSentinels(t *testing.T) {
	schema := ColumnSchema{Name: "x", Type: Uint, ElementSize: 2, NumElements: 2}
	c := NewColumn(schema)
	require.NoError(t, c.FromNative(nil))
	buf := make([]byte, c.PackedLen())
	require.NoError(t, c.PackInto(buf))

	c2 := NewColumn(schema)
	missing, err := c2.UnpackFrom(buf, 2, true)
	require.NoError(t, err)
	require.True(t, missing)
	require.True(t, c2.Missing())
}

func TestColumnUnpackRejectsPartialSentinelMix(t *testing.T) {
	schema := ColumnSchema{Name: "x", Type: Uint, ElementSize: 2, NumElements: 2}
	c := NewColumn(schema)
	buf := make([]byte, 4)
	require.NoError(t, c.FromNative([]uint64{1, 2}))
	require.NoError(t, c.PackInto(buf))
	// Corrupt the second element into the missing sentinel only.
	buf[2], buf[3] = 0xFF, 0xFF

	c2 := NewColumn(schema)
	_, err := c2.UnpackFrom(buf, 2, true)
	require.ErrorIs(t, err, ErrInvariant)
}

func TestColumnFromNativeNaNIsMissing(t *testing.T) {
	c := NewColumn(ColumnSchema{Name: "x", Type: Float, ElementSize: 8, NumElements: 1})
	require.NoError(t, c.FromNative(math.NaN()))
	require.True(t, c.Missing())
}

func TestColumnFromNativeNaNElementCollapsesWholeValue(t *testing.T) {
	c := NewColumn(ColumnSchema{Name: "x", Type: Float, ElementSize: 8, NumElements: VAR1})
	require.NoError(t, c.FromNative([]float64{1, math.NaN(), 3}))
	require.True(t, c.Missing())
	require.Equal(t, 0, c.NumBuffered())
}

func TestColumnTruncateBinsValues(t *testing.T) {
	c := NewColumn(ColumnSchema{Name: "x", Type: Uint, ElementSize: 2, NumElements: 1})
	require.NoError(t, c.FromNative(uint64(47)))
	require.NoError(t, c.Truncate(10))
	require.Equal(t, uint64(40), c.Elements())
}
