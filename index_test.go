// Copyright 2024 The Wormtable Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package wormtable

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildBucketedTable writes n rows whose "bucket" column is i%buckets, so
// each bucket value has n/buckets duplicate rows, in ascending row_id
// order.
func buildBucketedTable(t *testing.T, dir string, n, buckets int) *Schema {
	t.Helper()
	schema, err := NewSchema([]ColumnSchema{
		rowIDColumn(4),
		{Name: "bucket", Type: Uint, ElementSize: 2, NumElements: 1},
	})
	require.NoError(t, err)

	tbl, err := OpenTable(dir, schema, Write, CacheSize{})
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		require.NoError(t, tbl.Insert(1, uint64(i%buckets)))
		require.NoError(t, tbl.CommitRow())
	}
	require.NoError(t, tbl.Close())
	return schema
}

func packBucketKey(t *testing.T, idx *Index, bucket uint64) []byte {
	t.Helper()
	key, err := idx.MakeKey(bucket)
	require.NoError(t, err)
	return key
}

func TestIndexBuildAndQuery(t *testing.T) {
	root := t.TempDir()
	tableDir := filepath.Join(root, "tbl")
	schema := buildBucketedTable(t, tableDir, 30, 3)

	tbl, err := OpenTable(tableDir, schema, Read, CacheSize{})
	require.NoError(t, err)
	defer tbl.Close()

	idx, err := OpenIndex(filepath.Join(root, "idx"), tbl, IndexSpec{Name: "by_bucket", Columns: []int{1}}, Write, CacheSize{})
	require.NoError(t, err)

	var lastRows, lastTotal uint64
	require.NoError(t, idx.Build(func(rowsIndexed, total uint64) error {
		lastRows, lastTotal = rowsIndexed, total
		return nil
	}))
	require.Equal(t, uint64(30), lastTotal)
	require.Equal(t, uint64(30), lastRows)
	defer idx.Close()

	key1 := packBucketKey(t, idx, 1)
	n, err := idx.NumRows(key1)
	require.NoError(t, err)
	require.Equal(t, uint64(10), n)

	minID, err := idx.Min(key1)
	require.NoError(t, err)
	require.Equal(t, uint64(1), minID)

	maxID, err := idx.Max(key1)
	require.NoError(t, err)
	require.Equal(t, uint64(28), maxID)
}

func TestIndexMinMaxOnMissingPrefix(t *testing.T) {
	root := t.TempDir()
	tableDir := filepath.Join(root, "tbl")
	schema := buildBucketedTable(t, tableDir, 10, 2)

	tbl, err := OpenTable(tableDir, schema, Read, CacheSize{})
	require.NoError(t, err)
	defer tbl.Close()

	idx, err := OpenIndex(filepath.Join(root, "idx"), tbl, IndexSpec{Name: "by_bucket", Columns: []int{1}}, Write, CacheSize{})
	require.NoError(t, err)
	require.NoError(t, idx.Build(nil))
	defer idx.Close()

	missingKey := packBucketKey(t, idx, 99)
	_, err = idx.Min(missingKey)
	require.ErrorIs(t, err, ErrKeyError)
	_, err = idx.Max(missingKey)
	require.ErrorIs(t, err, ErrKeyError)
}

func TestIndexKeyIteratorSkipsDuplicates(t *testing.T) {
	root := t.TempDir()
	tableDir := filepath.Join(root, "tbl")
	schema := buildBucketedTable(t, tableDir, 30, 3)

	tbl, err := OpenTable(tableDir, schema, Read, CacheSize{})
	require.NoError(t, err)
	defer tbl.Close()

	idx, err := OpenIndex(filepath.Join(root, "idx"), tbl, IndexSpec{Name: "by_bucket", Columns: []int{1}}, Write, CacheSize{})
	require.NoError(t, err)
	require.NoError(t, idx.Build(nil))
	defer idx.Close()

	ki, err := idx.NewKeyIterator(nil, nil)
	require.NoError(t, err)
	var distinctKeys int
	for {
		_, _, ok, err := ki.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		distinctKeys++
	}
	require.Equal(t, 3, distinctKeys)
}

func TestIndexIteratorYieldsEveryDuplicateInRowIDOrder(t *testing.T) {
	root := t.TempDir()
	tableDir := filepath.Join(root, "tbl")
	schema := buildBucketedTable(t, tableDir, 30, 3)

	tbl, err := OpenTable(tableDir, schema, Read, CacheSize{})
	require.NoError(t, err)
	defer tbl.Close()

	idx, err := OpenIndex(filepath.Join(root, "idx"), tbl, IndexSpec{Name: "by_bucket", Columns: []int{1}}, Write, CacheSize{})
	require.NoError(t, err)
	require.NoError(t, idx.Build(nil))
	defer idx.Close()

	key1 := packBucketKey(t, idx, 1)
	succ, ok := prefixSuccessor(key1)
	require.True(t, ok)
	ii, err := idx.NewIterator(key1, succ)
	require.NoError(t, err)

	var rowIDs []uint64
	for {
		_, rowID, ok, err := ii.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		rowIDs = append(rowIDs, rowID)
	}
	require.Len(t, rowIDs, 10)
	for i := 1; i < len(rowIDs); i++ {
		require.Less(t, rowIDs[i-1], rowIDs[i])
	}
}
