// Copyright 2024 The Wormtable Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package wormtable

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/olekukonko/tablewriter"
	"github.com/wormtable-go/wormtable/internal/codec"
)

// ProgressFunc reports progress during Index.Build. Returning a non-nil
// error aborts the build; Build then best-effort truncates the partially
// written secondary store before returning that error.
type ProgressFunc func(rowsIndexed, totalRows uint64) error

// IndexSpec names the columns (by index into the table's schema, in
// order) that make up a secondary index's key, with an optional per-
// column bin width for numeric truncation (0 disables binning for that
// column), per spec §4.5 "Binning".
type IndexSpec struct {
	Name      string
	Columns   []int
	BinWidths []float64 // nil, or one entry per Columns entry
}

// Index is a secondary ordered store mapping a materialized multi-column
// key to the primary rows that produced it. Because pebble has no native
// support for duplicate keys, each physical key is the materialized key
// with the row's primary key bytes appended as a uniqueness suffix; since
// row_ids are assigned in commit order, this suffix also gives duplicate
// keys their required tie-break order: ascending by row_id (spec §4.5,
// Testable Property #7).
type Index struct {
	table *Table
	spec  IndexSpec
	dir   string
	mode  OpenMode

	cols []ColumnSchema
	kb   *keyBuffer

	mu        sync.Mutex
	secondary *pebble.DB
	metrics   *indexMetrics
	closed    bool
}

// OpenIndex opens (for Read) or prepares (for Write, via Build) a
// secondary index over table at dir, keyed by spec.Columns.
func OpenIndex(dir string, table *Table, spec IndexSpec, mode OpenMode, cache CacheSize) (*Index, error) {
	if len(spec.Columns) == 0 {
		return nil, errors.Mark(errors.New("wormtable: index must reference at least one column"), ErrBadSchema)
	}
	cols := make([]ColumnSchema, len(spec.Columns))
	for i, ci := range spec.Columns {
		if ci <= 0 || ci >= table.schema.NumColumns() {
			return nil, errors.Mark(errors.Newf("wormtable: index column %d out of range", ci), ErrBadSchema)
		}
		cols[i] = table.schema.Columns[ci]
	}
	if spec.BinWidths != nil && len(spec.BinWidths) != len(spec.Columns) {
		return nil, errors.Mark(errors.New("wormtable: BinWidths must match Columns length"), ErrBadSchema)
	}

	idx := &Index{
		table: table,
		spec:  spec,
		dir:   dir,
		mode:  mode,
		cols:  cols,
		kb:    newKeyBuffer(cols, spec.BinWidths),
	}
	idx.metrics = newIndexMetrics(spec.Name)

	if mode == Read {
		db, err := openStore(filepath.Join(dir, "secondary"), Read, cache, true)
		if err != nil {
			return nil, err
		}
		idx.secondary = db
	}
	return idx, nil
}

// Build (re)constructs the index by scanning every row of the backing
// table in row_id order and inserting its materialized key. Build may
// only be called on an Index opened with mode Write.
func (idx *Index) Build(progress ProgressFunc) error {
	if idx.mode != Write {
		return errors.Mark(errors.New("wormtable: index not opened for building"), ErrBadMode)
	}
	start := time.Now()
	secondaryDir := filepath.Join(idx.dir, "secondary")
	db, err := openStore(secondaryDir, Write, CacheSize{}, true)
	if err != nil {
		return err
	}

	total, err := idx.table.NumRows()
	if err != nil {
		_ = db.Close()
		return err
	}

	batch := db.NewBatch()
	const batchFlushEvery = 4096
	var failed error
	for rowID := uint64(0); rowID < total; rowID++ {
		cols, err := idx.table.extractColumns(rowID, idx.spec.Columns)
		if err != nil {
			failed = err
			break
		}
		key, err := idx.kb.build(cols)
		if err != nil {
			failed = err
			break
		}
		physKey := idx.physicalKey(key, rowID)
		if err := batch.Set(physKey, nil, nil); err != nil {
			failed = err
			break
		}
		idx.metrics.rowsIndexed.Inc()

		if (rowID+1)%batchFlushEvery == 0 {
			if err := batch.Commit(pebble.NoSync); err != nil {
				failed = err
				break
			}
			batch = db.NewBatch()
		}
		if progress != nil {
			if err := progress(rowID+1, total); err != nil {
				failed = err
				break
			}
		}
	}

	if failed == nil {
		failed = batch.Commit(pebble.Sync)
	}
	if failed != nil {
		_ = truncateStore(db)
		_ = db.Close()
		return failed
	}

	idx.metrics.buildSeconds.Set(time.Since(start).Seconds())
	if err := db.Close(); err != nil {
		return wrapStorage(err, "wormtable: closing index %q after build", idx.spec.Name)
	}

	reopened, err := openStore(secondaryDir, Read, CacheSize{}, true)
	if err != nil {
		return err
	}
	idx.mu.Lock()
	idx.secondary = reopened
	idx.mode = Read
	idx.mu.Unlock()
	return nil
}

// physicalKey appends rowID's primary-key bytes to key, giving every
// duplicate materialized key a distinct, ascending-by-row_id physical
// encoding in the secondary store.
func (idx *Index) physicalKey(key []byte, rowID uint64) []byte {
	rowIDSize := idx.table.schema.RowIDSize()
	out := make([]byte, len(key)+rowIDSize)
	copy(out, key)
	_ = codec.PackUint(out[len(key):], rowIDSize, rowID)
	return out
}

func (idx *Index) rowIDFromPhysicalKey(physKey []byte) (uint64, error) {
	rowIDSize := idx.table.schema.RowIDSize()
	if len(physKey) < rowIDSize {
		return 0, errors.Mark(errors.New("wormtable: corrupt secondary key"), ErrInvariant)
	}
	suffix := physKey[len(physKey)-rowIDSize:]
	id, _, err := codec.UnpackUint(suffix, rowIDSize)
	return id, err
}

// MakeKey materializes a secondary-index key (or key prefix) from a tuple
// of native column values, using the same procedure as Build (spec §4.5).
// values may be shorter than the index's column list, producing a prefix
// key suitable for NumRows/Min/Max/NewIterator/NewKeyIterator; it may not
// be longer.
func (idx *Index) MakeKey(values ...interface{}) ([]byte, error) {
	if len(values) > len(idx.cols) {
		return nil, errors.Mark(errors.Newf(
			"wormtable: index %q: key has %d values, index has %d columns", idx.spec.Name, len(values), len(idx.cols)), ErrBadArity)
	}
	cols := make([]*Column, len(values))
	for i, v := range values {
		col := NewColumn(idx.cols[i])
		if err := col.FromNative(v); err != nil {
			return nil, err
		}
		cols[i] = col
	}
	return idx.kb.build(cols)
}

func (idx *Index) checkReadable() error {
	if idx.closed {
		return errors.Mark(errors.New("wormtable: index is closed"), ErrClosed)
	}
	if idx.secondary == nil {
		return errors.Mark(errors.New("wormtable: index not built or opened for reading"), ErrBadMode)
	}
	return nil
}

// NumRows returns the number of rows whose materialized key has the given
// prefix (a key built from a prefix of the index's columns; see MakeKey).
func (idx *Index) NumRows(prefix []byte) (uint64, error) {
	if err := idx.checkReadable(); err != nil {
		return 0, err
	}
	iter, err := idx.newPrefixIter(prefix)
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	var n uint64
	for valid := iter.First(); valid; valid = iter.Next() {
		n++
	}
	return n, nil
}

// Min returns the row_id of the first entry, in key order, whose
// materialized key has the given prefix (see MakeKey): among the rows with
// the smallest such key, the one with the smallest row_id. It returns
// ErrKeyError if no such row exists.
func (idx *Index) Min(prefix []byte) (uint64, error) {
	if err := idx.checkReadable(); err != nil {
		return 0, err
	}
	iter, err := idx.newPrefixIter(prefix)
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	if !iter.First() {
		return 0, errors.Mark(errors.New("wormtable: no rows match prefix"), ErrKeyError)
	}
	return idx.rowIDFromPhysicalKey(iter.Key())
}

// Max returns the row_id of the last entry, in key order, whose
// materialized key has the given prefix (see MakeKey): among the rows with
// the largest such key, the one with the largest row_id. It returns
// ErrKeyError if no such row exists. A prefix that sorts past
// every key in the index (rather than merely having no matches within
// its own range) also raises ErrKeyError: see SPEC_FULL.md §D.
func (idx *Index) Max(prefix []byte) (uint64, error) {
	if err := idx.checkReadable(); err != nil {
		return 0, err
	}
	iter, err := idx.newPrefixIter(prefix)
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	if !iter.Last() {
		return 0, errors.Mark(errors.New("wormtable: no rows match prefix"), ErrKeyError)
	}
	return idx.rowIDFromPhysicalKey(iter.Key())
}

// newPrefixIter returns a pebble iterator bounded to physical keys whose
// materialized-key portion has the given prefix.
func (idx *Index) newPrefixIter(prefix []byte) (*pebble.Iterator, error) {
	opts := &pebble.IterOptions{LowerBound: prefix}
	if succ, ok := prefixSuccessor(prefix); ok {
		opts.UpperBound = succ
	}
	iter, err := idx.secondary.NewIter(opts)
	if err != nil {
		return nil, wrapStorage(err, "wormtable: opening index iterator")
	}
	return iter, nil
}

// Describe renders a human-readable table of the index's key columns and
// bin widths, following the same tablewriter-based diagnostic formatting
// as Schema.Describe.
func (idx *Index) Describe() string {
	var sb strings.Builder
	table := tablewriter.NewWriter(&sb)
	table.SetHeader([]string{"#", "column", "bin_width"})
	for i, ci := range idx.spec.Columns {
		binWidth := "-"
		if idx.spec.BinWidths != nil && idx.spec.BinWidths[i] > 0 {
			binWidth = fmt.Sprintf("%g", idx.spec.BinWidths[i])
		}
		table.Append([]string{
			fmt.Sprintf("%d", i), fmt.Sprintf("%d:%s", ci, idx.cols[i].Name), binWidth,
		})
	}
	table.Render()
	return fmt.Sprintf("index %q\n%s", idx.spec.Name, sb.String())
}

// Close releases the index's resources. As with Table.Close, calling it
// more than once returns ErrClosed.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return errors.Mark(errors.New("wormtable: index already closed"), ErrClosed)
	}
	idx.closed = true
	if idx.secondary == nil {
		return nil
	}
	if err := idx.secondary.Close(); err != nil {
		return wrapStorage(err, "wormtable: closing index %q", idx.spec.Name)
	}
	return nil
}
