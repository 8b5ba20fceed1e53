// Copyright 2024 The Wormtable Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package wormtable

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/wormtable-go/wormtable/internal/codec"
)

// primaryDirName and dataFileName are the two on-disk artifacts a Table
// owns within its directory: a pebble store mapping row_id to a data-file
// locator, and the flat file holding the row bodies themselves (spec §4,
// "a primary store ... plus a single flat data file").
const (
	primaryDirName = "primary"
	dataFileName   = "data"

	// locatorSize is the width of a primary-store value: an 8-byte file
	// offset followed by a 2-byte body length (spec §4.2, row addressing).
	locatorSize       = 10
	locatorOffsetSize = 8
	locatorLenSize    = 2
)

// Table is a write-once, read-many collection of rows sharing a Schema,
// backed by a flat data file and a primary ordered store keyed by row_id.
// A Table is either open for Write (appending new rows) or Read (random
// and sequential access by row_id); it is never both in the same process.
type Table struct {
	schema *Schema
	dir    string
	mode   OpenMode
	cache  CacheSize
	logger Logger

	mu       sync.Mutex
	primary  *pebble.DB
	dataFile *os.File

	dataOffset int64
	numRows    uint64
	numRowsSet bool

	rowBuf  *RowBuffer
	stats   *rowStats
	metrics *tableMetrics

	closed bool
}

// OpenTable opens (or, in Write mode, creates) a Table at dir with the
// given schema. cache sizes the primary store's block cache; it is
// ignored in Write mode, where pebble's defaults are used instead, per
// spec §5 ("cache_size ... has no effect when opening for writing").
func OpenTable(dir string, schema *Schema, mode OpenMode, cache CacheSize) (*Table, error) {
	if mode != Read && mode != Write {
		return nil, errors.Mark(errors.Newf("wormtable: invalid open mode %v", mode), ErrBadMode)
	}

	t := &Table{
		schema: schema,
		dir:    dir,
		mode:   mode,
		cache:  cache,
		logger: DefaultLogger,
		rowBuf: NewRowBuffer(schema),
		stats:  newRowStats(),
	}
	t.metrics = newTableMetrics(filepath.Base(dir))

	primaryDir := filepath.Join(dir, primaryDirName)
	dataPath := filepath.Join(dir, dataFileName)

	switch mode {
	case Write:
		if err := os.MkdirAll(dir, 0o777); err != nil {
			return nil, wrapIO(err, "wormtable: creating table directory %s", dir)
		}
		db, err := openStore(primaryDir, Write, CacheSize{}, false)
		if err != nil {
			return nil, err
		}
		f, err := os.OpenFile(dataPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o666)
		if err != nil {
			_ = db.Close()
			return nil, wrapIO(err, "wormtable: creating data file %s", dataPath)
		}
		t.primary = db
		t.dataFile = f
		t.numRows = 0
		t.numRowsSet = true

	case Read:
		db, err := openStore(primaryDir, Read, cache, false)
		if err != nil {
			return nil, err
		}
		f, err := os.Open(dataPath)
		if err != nil {
			_ = db.Close()
			return nil, wrapIO(err, "wormtable: opening data file %s", dataPath)
		}
		t.primary = db
		t.dataFile = f
	}

	t.logger.Infof("opened table %s mode=%v", dir, mode)
	return t, nil
}

// SetLogger overrides the Table's Logger, which defaults to DefaultLogger.
// Passing nil installs a silent Logger (following the teacher's own
// SetLogger(nil)-means-quiet convention) rather than leaving the table
// without one.
func (t *Table) SetLogger(l Logger) {
	if l == nil {
		l = discardWTLogger{}
	}
	t.logger = l
}

// Insert assembles value into column colIndex of the row currently being
// built. colIndex 0 (row_id) cannot be set directly; CommitRow assigns it.
func (t *Table) Insert(colIndex int, value interface{}) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	return t.rowBuf.Insert(colIndex, value)
}

// InsertText is Insert, parsing value from its textual representation.
func (t *Table) InsertText(colIndex int, text []byte) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	return t.rowBuf.InsertText(colIndex, text)
}

// InsertEncoded writes an already order-preserving-packed value directly
// into column colIndex, bypassing native/text parsing (used by bulk
// loaders that already hold wire-format bytes).
func (t *Table) InsertEncoded(colIndex int, encoded []byte) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	return t.rowBuf.InsertEncoded(colIndex, encoded)
}

func (t *Table) checkWritable() error {
	if t.closed {
		return errors.Mark(errors.New("wormtable: table is closed"), ErrClosed)
	}
	if t.mode != Write {
		return errors.Mark(errors.New("wormtable: table not opened for writing"), ErrBadMode)
	}
	return nil
}

// CommitRow assigns the next sequential row_id to the row assembled via
// Insert/InsertText/InsertEncoded, appends its body to the data file,
// records its (offset, length) locator in the primary store, and resets
// the row buffer for the next row. Rows are assigned row_ids in strictly
// increasing order starting from 0 (spec §4.2).
func (t *Table) CommitRow() error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	rowID := t.numRows
	if err := t.rowBuf.SetRowID(rowID); err != nil {
		return err
	}

	body := t.rowBuf.Body()
	offset := t.dataOffset
	if _, err := t.dataFile.WriteAt(body, offset); err != nil {
		return wrapIO(err, "wormtable: writing row %d to data file", rowID)
	}

	var locator [locatorSize]byte
	if err := codec.PackUint(locator[:locatorOffsetSize], locatorOffsetSize, uint64(offset)); err != nil {
		return err
	}
	if err := codec.PackUint(locator[locatorOffsetSize:], locatorLenSize, uint64(len(body))); err != nil {
		return err
	}

	primaryKey := t.rowBuf.Bytes()[:t.schema.RowIDSize()]
	if err := t.primary.Set(primaryKey, locator[:], pebble.NoSync); err != nil {
		return wrapStorage(err, "wormtable: committing row %d", rowID)
	}

	t.stats.observe(len(body))
	t.metrics.rowsCommitted.Inc()
	t.metrics.rowBodyBytes.Add(float64(len(body)))
	t.dataOffset += int64(len(body))
	t.numRows++
	t.rowBuf.Reset()
	return nil
}

// lookupLocator resolves rowID to its (offset, length) in the data file.
func (t *Table) lookupLocator(rowID uint64) (offset int64, length int, err error) {
	var key [8]byte
	if err := codec.PackUint(key[:t.schema.RowIDSize()], t.schema.RowIDSize(), rowID); err != nil {
		return 0, 0, err
	}
	val, closer, err := t.primary.Get(key[:t.schema.RowIDSize()])
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return 0, 0, errors.Mark(errors.Newf("wormtable: row %d not found", rowID), ErrKeyError)
		}
		return 0, 0, wrapStorage(err, "wormtable: looking up row %d", rowID)
	}
	defer closer.Close()

	off, _, err := codec.UnpackUint(val[:locatorOffsetSize], locatorOffsetSize)
	if err != nil {
		return 0, 0, err
	}
	ln, _, err := codec.UnpackUint(val[locatorOffsetSize:], locatorLenSize)
	if err != nil {
		return 0, 0, err
	}
	return int64(off), int(ln), nil
}

// GetRow reads back row rowID's columns, decoded as native Go values (nil
// for a column recorded as missing). Column 0 (row_id) is always present.
func (t *Table) GetRow(rowID uint64) ([]interface{}, error) {
	if t.closed {
		return nil, errors.Mark(errors.New("wormtable: table is closed"), ErrClosed)
	}
	offset, length, err := t.lookupLocator(rowID)
	if err != nil {
		return nil, err
	}

	body := make([]byte, length)
	if _, err := t.dataFile.ReadAt(body, offset); err != nil {
		return nil, wrapIO(err, "wormtable: reading row %d", rowID)
	}

	var key [8]byte
	if err := codec.PackUint(key[:t.schema.RowIDSize()], t.schema.RowIDSize(), rowID); err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.rowBuf.LoadDecoded(key[:t.schema.RowIDSize()], body)
	vals := make([]interface{}, t.schema.NumColumns())
	for i := 0; i < t.schema.NumColumns(); i++ {
		if i == 0 {
			vals[i] = rowID
			continue
		}
		col, err := t.rowBuf.Extract(i)
		if err != nil {
			t.mu.Unlock()
			return nil, err
		}
		vals[i] = col.Elements()
	}
	t.mu.Unlock()
	return vals, nil
}

// extractColumns reads back rowID and decodes only the requested columns,
// returning their live *Column objects (not yet converted to native Go
// values) for a caller such as Index.Build that needs Truncate/PackInto
// access rather than Elements(). The returned Columns alias the table's
// internal scratch buffers and are invalidated by the next call into t.
func (t *Table) extractColumns(rowID uint64, colIndices []int) ([]*Column, error) {
	if t.closed {
		return nil, errors.Mark(errors.New("wormtable: table is closed"), ErrClosed)
	}
	offset, length, err := t.lookupLocator(rowID)
	if err != nil {
		return nil, err
	}
	body := make([]byte, length)
	if _, err := t.dataFile.ReadAt(body, offset); err != nil {
		return nil, wrapIO(err, "wormtable: reading row %d", rowID)
	}
	var key [8]byte
	if err := codec.PackUint(key[:t.schema.RowIDSize()], t.schema.RowIDSize(), rowID); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.rowBuf.LoadDecoded(key[:t.schema.RowIDSize()], body)
	cols := make([]*Column, len(colIndices))
	for i, ci := range colIndices {
		col, err := t.rowBuf.Extract(ci)
		if err != nil {
			return nil, err
		}
		cols[i] = col
	}
	return cols, nil
}

// NumRows returns the number of rows committed to the table. In Read
// mode this is computed once, from the primary store's last key, and
// cached; in Write mode it is the live count maintained by CommitRow.
func (t *Table) NumRows() (uint64, error) {
	if t.closed {
		return 0, errors.Mark(errors.New("wormtable: table is closed"), ErrClosed)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.numRowsSet {
		return t.numRows, nil
	}

	iter, err := t.primary.NewIter(nil)
	if err != nil {
		return 0, wrapStorage(err, "wormtable: computing row count")
	}
	defer iter.Close()

	if !iter.Last() {
		t.numRows = 0
		t.numRowsSet = true
		return 0, nil
	}
	lastID, _, err := codec.UnpackUint(iter.Key(), t.schema.RowIDSize())
	if err != nil {
		return 0, err
	}
	t.numRows = lastID + 1
	t.numRowsSet = true
	return t.numRows, nil
}

// Stats returns a snapshot of the row body-size statistics accumulated
// since the table was opened for writing (spec §4.4).
func (t *Table) Stats() Stats {
	return t.stats.snapshot()
}

// Schema returns the table's schema.
func (t *Table) Schema() *Schema { return t.schema }

// Close flushes and releases the table's resources. Close is not
// idempotent: calling it more than once returns ErrClosed rather than
// re-closing already-released handles.
func (t *Table) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errors.Mark(errors.New("wormtable: table already closed"), ErrClosed)
	}
	t.closed = true

	var firstErr error
	if t.mode == Write {
		if err := t.dataFile.Sync(); err != nil && firstErr == nil {
			firstErr = wrapIO(err, "wormtable: syncing data file")
		}
	}
	if err := t.dataFile.Close(); err != nil && firstErr == nil {
		firstErr = wrapIO(err, "wormtable: closing data file")
	}
	if err := t.primary.Close(); err != nil && firstErr == nil {
		firstErr = wrapStorage(err, "wormtable: closing primary store")
	}
	return firstErr
}
