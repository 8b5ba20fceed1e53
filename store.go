// Copyright 2024 The Wormtable Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package wormtable

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/bloom"
)

// CacheSize mirrors the two-part (gigabytes, remainder bytes) cache
// budget of the BDB-family APIs the reference wormtable was built
// against (spec §5), split the way that API wants it instead of a single
// byte count.
type CacheSize struct {
	Gigabytes uint64
	Bytes     uint64
}

// TotalBytes returns the combined cache budget in bytes.
func (c CacheSize) TotalBytes() int64 {
	return int64(c.Gigabytes*(1<<30) + c.Bytes)
}

// OpenMode selects whether a Table or Index is opened for writing (which
// creates/truncates storage) or reading.
type OpenMode int

const (
	// Read opens an existing Table or Index for random/sequential reads.
	Read OpenMode = iota
	// Write opens a Table for appending new rows, or an Index to be
	// (re)built from the primary.
	Write
)

func (m OpenMode) String() string {
	if m == Write {
		return "Write"
	}
	return "Read"
}

// discardLogger silences pebble's internal error/event logging when a
// store is opened for Read, per spec §4.4 ("disables internal error
// prints").
type discardLogger struct{}

func (discardLogger) Infof(string, ...interface{})  {}
func (discardLogger) Errorf(string, ...interface{}) {}
func (discardLogger) Fatalf(string, ...interface{}) {}

// openStore opens (creating if necessary, for Write) a pebble-backed
// ordered store at dir. This is the concrete realization of the spec's
// black-box "embedded ordered key-value engine": pebble.DB supplies
// cursors, a configurable block cache, and prefix-compressed key blocks
// (pebble's default block format shares key prefixes within a block,
// satisfying the "prefix compression enabled" requirement of spec §4.5).
func openStore(dir string, mode OpenMode, cache CacheSize, withBloomFilter bool) (*pebble.DB, error) {
	opts := &pebble.Options{}
	if cache.TotalBytes() > 0 {
		opts.Cache = pebble.NewCache(cache.TotalBytes())
	}

	lvl := pebble.LevelOptions{Compression: pebble.SnappyCompression}
	if withBloomFilter {
		lvl.FilterPolicy = bloom.FilterPolicy(10)
		lvl.FilterType = pebble.TableFilter
	}
	opts.Levels = []pebble.LevelOptions{lvl}

	switch mode {
	case Write:
		if err := os.RemoveAll(dir); err != nil {
			return nil, wrapIO(err, "wormtable: removing existing store at %s", dir)
		}
		if err := os.MkdirAll(dir, 0o777); err != nil {
			return nil, wrapIO(err, "wormtable: creating store directory %s", dir)
		}
	case Read:
		opts.ReadOnly = true
		opts.Logger = discardLogger{}
	default:
		return nil, errors.Newf("wormtable: invalid open mode %d", mode)
	}

	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, wrapStorage(err, "wormtable: opening store at %s", dir)
	}
	return db, nil
}

// truncateStore best-effort empties a store's keyspace, used to clean up
// a partially built secondary index after a failed Index.Build (spec
// §4.5, §5 "Cancellation").
func truncateStore(db *pebble.DB) error {
	iter, err := db.NewIter(nil)
	if err != nil {
		return wrapStorage(err, "wormtable: truncating store")
	}
	defer iter.Close()
	batch := db.NewBatch()
	for valid := iter.First(); valid; valid = iter.Next() {
		if err := batch.Delete(append([]byte(nil), iter.Key()...), nil); err != nil {
			return wrapStorage(err, "wormtable: truncating store")
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return wrapStorage(err, "wormtable: truncating store")
	}
	return nil
}
