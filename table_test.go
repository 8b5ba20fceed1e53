// Copyright 2024 The Wormtable Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package wormtable

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func uintSchema(t *testing.T, rowIDSize, colSize int) *Schema {
	t.Helper()
	s, err := NewSchema([]ColumnSchema{
		rowIDColumn(rowIDSize),
		{Name: "k", Type: Uint, ElementSize: colSize, NumElements: 1},
	})
	require.NoError(t, err)
	return s
}

func writeRows(t *testing.T, dir string, schema *Schema, n int) {
	t.Helper()
	tbl, err := OpenTable(dir, schema, Write, CacheSize{})
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		require.NoError(t, tbl.Insert(1, uint64(i)))
		require.NoError(t, tbl.CommitRow())
	}
	require.NoError(t, tbl.Close())
}

func TestTableCommitAndGetRow(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tbl")
	schema := uintSchema(t, 5, 4)
	writeRows(t, dir, schema, 10)

	tbl, err := OpenTable(dir, schema, Read, CacheSize{})
	require.NoError(t, err)
	defer tbl.Close()

	n, err := tbl.NumRows()
	require.NoError(t, err)
	require.Equal(t, uint64(10), n)

	row, err := tbl.GetRow(3)
	require.NoError(t, err)
	require.Equal(t, uint64(3), row[0])
	require.Equal(t, uint64(3), row[1])
}

func TestTableGetRowMissingKey(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tbl")
	schema := uintSchema(t, 5, 4)
	writeRows(t, dir, schema, 3)

	tbl, err := OpenTable(dir, schema, Read, CacheSize{})
	require.NoError(t, err)
	defer tbl.Close()

	_, err = tbl.GetRow(99)
	require.ErrorIs(t, err, ErrKeyError)
}

func TestTableEmptyHasZeroRows(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tbl")
	schema := uintSchema(t, 5, 4)
	tbl, err := OpenTable(dir, schema, Write, CacheSize{})
	require.NoError(t, err)
	require.NoError(t, tbl.Close())

	tbl, err = OpenTable(dir, schema, Read, CacheSize{})
	require.NoError(t, err)
	defer tbl.Close()

	n, err := tbl.NumRows()
	require.NoError(t, err)
	require.Equal(t, uint64(0), n)

	_, err = tbl.GetRow(0)
	require.ErrorIs(t, err, ErrKeyError)
}

func TestTableCloseIsNotIdempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tbl")
	schema := uintSchema(t, 5, 4)
	tbl, err := OpenTable(dir, schema, Write, CacheSize{})
	require.NoError(t, err)
	require.NoError(t, tbl.Close())
	require.ErrorIs(t, tbl.Close(), ErrClosed)
}

func TestTableInsertRejectedInReadMode(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tbl")
	schema := uintSchema(t, 5, 4)
	writeRows(t, dir, schema, 1)

	tbl, err := OpenTable(dir, schema, Read, CacheSize{})
	require.NoError(t, err)
	defer tbl.Close()

	err = tbl.Insert(1, uint64(1))
	require.ErrorIs(t, err, ErrBadMode)
}

// TestTableRowIteratorBoundedRange mirrors spec scenario S6: a primary
// range iterator with set_min(20)/set_max(80) over 100 rows yields
// exactly rows 20..79.
func TestTableRowIteratorBoundedRange(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tbl")
	schema := uintSchema(t, 5, 4)
	writeRows(t, dir, schema, 100)

	tbl, err := OpenTable(dir, schema, Read, CacheSize{})
	require.NoError(t, err)
	defer tbl.Close()

	min, max := uint64(20), uint64(80)
	it, err := tbl.NewRowIterator(&min, &max)
	require.NoError(t, err)

	var got []uint64
	for {
		row, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, row[0].(uint64))
	}
	require.Len(t, got, 60)
	require.Equal(t, uint64(20), got[0])
	require.Equal(t, uint64(79), got[len(got)-1])

	// Exhausted iterator stays exhausted without reopening a cursor.
	row, ok, err := it.Next()
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, row)
}
