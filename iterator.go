// Copyright 2024 The Wormtable Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package wormtable

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/wormtable-go/wormtable/internal/codec"
)

// RowIterator walks a Table's rows in row_id order over [min, max): an
// inclusive lower bound and exclusive upper bound, matching pebble's own
// LowerBound/UpperBound semantics exactly. A RowIterator is created by
// Table.NewRowIterator and borrows the table's data file for as long as
// it is not exhausted or Closed.
type RowIterator struct {
	table     *Table
	iter      *pebble.Iterator
	started   bool
	exhausted bool
}

// NewRowIterator returns a RowIterator over this table. A nil minID
// starts at the smallest row_id; a nil maxID runs to table exhaustion.
func (t *Table) NewRowIterator(minID, maxID *uint64) (*RowIterator, error) {
	if t.closed {
		return nil, errors.Mark(errors.New("wormtable: table is closed"), ErrClosed)
	}
	size := t.schema.RowIDSize()
	opts := &pebble.IterOptions{}
	if minID != nil {
		lb := make([]byte, size)
		if err := codec.PackUint(lb, size, *minID); err != nil {
			return nil, err
		}
		opts.LowerBound = lb
	}
	if maxID != nil {
		ub := make([]byte, size)
		if err := codec.PackUint(ub, size, *maxID); err != nil {
			return nil, err
		}
		opts.UpperBound = ub
	}
	iter, err := t.primary.NewIter(opts)
	if err != nil {
		return nil, wrapStorage(err, "wormtable: opening row iterator")
	}
	return &RowIterator{table: t, iter: iter}, nil
}

// Next returns the next row in ascending row_id order, decoded the same
// way as Table.GetRow. ok is false once the iterator is exhausted; after
// that, Next continues to return (nil, false, nil) without reopening a
// cursor (spec §8, scenario S6).
func (ri *RowIterator) Next() (row []interface{}, ok bool, err error) {
	if ri.exhausted {
		return nil, false, nil
	}
	var valid bool
	if !ri.started {
		valid = ri.iter.First()
		ri.started = true
	} else {
		valid = ri.iter.Next()
	}
	if !valid {
		ri.exhaust()
		return nil, false, nil
	}
	rowID, _, err := codec.UnpackUint(ri.iter.Key(), ri.table.schema.RowIDSize())
	if err != nil {
		return nil, false, err
	}
	row, err = ri.table.GetRow(rowID)
	if err != nil {
		return nil, false, err
	}
	return row, true, nil
}

func (ri *RowIterator) exhaust() {
	ri.exhausted = true
	_ = ri.iter.Close()
}

// Close releases the iterator's cursor. Safe to call after exhaustion.
func (ri *RowIterator) Close() error {
	if ri.exhausted {
		return nil
	}
	ri.exhaust()
	return nil
}

// IndexIterator walks an Index's secondary store in materialized-key
// order over [lower, upper), yielding one primary row_id per entry
// (duplicates included, each in row_id-ascending order within a key).
type IndexIterator struct {
	idx       *Index
	iter      *pebble.Iterator
	started   bool
	exhausted bool
}

// NewIterator returns an IndexIterator bounded by lower/upper key
// prefixes produced by the same materialization procedure as Build —
// see Index.MakeKey. A nil bound behaves as in NewRowIterator.
func (idx *Index) NewIterator(lower, upper []byte) (*IndexIterator, error) {
	if err := idx.checkReadable(); err != nil {
		return nil, err
	}
	opts := &pebble.IterOptions{LowerBound: lower, UpperBound: upper}
	iter, err := idx.secondary.NewIter(opts)
	if err != nil {
		return nil, wrapStorage(err, "wormtable: opening index iterator")
	}
	return &IndexIterator{idx: idx, iter: iter}, nil
}

// Next returns the next (key, row_id) pair in the iterator's range.
func (ii *IndexIterator) Next() (key []byte, rowID uint64, ok bool, err error) {
	if ii.exhausted {
		return nil, 0, false, nil
	}
	var valid bool
	if !ii.started {
		valid = ii.iter.First()
		ii.started = true
	} else {
		valid = ii.iter.Next()
	}
	if !valid {
		ii.exhaust()
		return nil, 0, false, nil
	}
	physKey := ii.iter.Key()
	rowID, err = ii.idx.rowIDFromPhysicalKey(physKey)
	if err != nil {
		return nil, 0, false, err
	}
	matKeyLen := len(physKey) - ii.idx.table.schema.RowIDSize()
	return append([]byte(nil), physKey[:matKeyLen]...), rowID, true, nil
}

func (ii *IndexIterator) exhaust() {
	ii.exhausted = true
	_ = ii.iter.Close()
}

// Close releases the iterator's cursor. Safe to call after exhaustion.
func (ii *IndexIterator) Close() error {
	if ii.exhausted {
		return nil
	}
	ii.exhaust()
	return nil
}

// KeyIterator walks an Index's distinct materialized keys (one entry per
// key, skipping duplicates), used for scans that only care about the set
// of key values present rather than every row that produced each one
// (SPEC_FULL.md §C).
type KeyIterator struct {
	idx       *Index
	iter      *pebble.Iterator
	started   bool
	exhausted bool
}

// NewKeyIterator returns a KeyIterator bounded by lower/upper key
// prefixes; see Index.MakeKey.
func (idx *Index) NewKeyIterator(lower, upper []byte) (*KeyIterator, error) {
	if err := idx.checkReadable(); err != nil {
		return nil, err
	}
	opts := &pebble.IterOptions{LowerBound: lower, UpperBound: upper}
	iter, err := idx.secondary.NewIter(opts)
	if err != nil {
		return nil, wrapStorage(err, "wormtable: opening index key iterator")
	}
	return &KeyIterator{idx: idx, iter: iter}, nil
}

// Next returns the next distinct materialized key and the row_id of its
// first (smallest row_id) occurrence.
func (ki *KeyIterator) Next() (key []byte, firstRowID uint64, ok bool, err error) {
	if ki.exhausted {
		return nil, 0, false, nil
	}

	var valid bool
	if !ki.started {
		valid = ki.iter.First()
		ki.started = true
	} else {
		rowIDSize := ki.idx.table.schema.RowIDSize()
		cur := ki.iter.Key()
		matKeyLen := len(cur) - rowIDSize
		succ, hasSucc := prefixSuccessor(cur[:matKeyLen])
		if !hasSucc {
			ki.exhaust()
			return nil, 0, false, nil
		}
		valid = ki.iter.SeekGE(succ)
	}
	if !valid {
		ki.exhaust()
		return nil, 0, false, nil
	}

	physKey := ki.iter.Key()
	firstRowID, err = ki.idx.rowIDFromPhysicalKey(physKey)
	if err != nil {
		return nil, 0, false, err
	}
	matKeyLen := len(physKey) - ki.idx.table.schema.RowIDSize()
	return append([]byte(nil), physKey[:matKeyLen]...), firstRowID, true, nil
}

func (ki *KeyIterator) exhaust() {
	ki.exhausted = true
	_ = ki.iter.Close()
}

// Close releases the iterator's cursor. Safe to call after exhaustion.
func (ki *KeyIterator) Close() error {
	if ki.exhausted {
		return nil
	}
	ki.exhaust()
	return nil
}
