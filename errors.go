// Copyright 2024 The Wormtable Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package wormtable

import "github.com/cockroachdb/errors"

// Error kinds. Every exported error produced by this package is, or wraps,
// one of these sentinels; check with errors.Is.
var (
	// ErrBadMode is returned when an operation is attempted in the wrong
	// open-state (e.g. Insert on a Table opened for Read).
	ErrBadMode = errors.New("wormtable: operation not permitted in current mode")

	// ErrAlreadyOpen is returned by Open when the object is already open.
	ErrAlreadyOpen = errors.New("wormtable: already open")

	// ErrClosed is returned when an operation is attempted on a closed
	// object.
	ErrClosed = errors.New("wormtable: closed")

	// ErrBadSchema is returned by schema validation: duplicate columns,
	// missing row_id column, unsupported element size, negative arity.
	ErrBadSchema = errors.New("wormtable: invalid schema")

	// ErrBadArity is returned when the number of elements supplied to a
	// column does not match its declared arity.
	ErrBadArity = errors.New("wormtable: wrong number of elements for column")

	// ErrBadType is returned when a value's Go type does not match the
	// column's element type.
	ErrBadType = errors.New("wormtable: value has wrong type for column")

	// ErrOutOfRange is returned when a numeric value lies outside the
	// column's representable range.
	ErrOutOfRange = errors.New("wormtable: value out of range for column")

	// ErrParseError is returned when textual element decoding fails.
	ErrParseError = errors.New("wormtable: could not parse value")

	// ErrRowOverflow is returned by Insert/InsertText/InsertEncoded when
	// placing a variable-length column would grow the row past MaxRowSize.
	ErrRowOverflow = errors.New("wormtable: row exceeds maximum row size")

	// ErrKeyError is returned when a primary or secondary lookup finds no
	// matching entry.
	ErrKeyError = errors.New("wormtable: key not found")

	// ErrStorage wraps an error surfaced by the underlying ordered store.
	ErrStorage = errors.New("wormtable: storage engine error")

	// ErrIO wraps a data-file I/O failure.
	ErrIO = errors.New("wormtable: I/O error")

	// ErrInvariant indicates an internal consistency check failed.
	ErrInvariant = errors.New("wormtable: internal invariant violated")
)

func wrapStorage(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(errors.Mark(err, ErrStorage), format, args...)
}

func wrapIO(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(errors.Mark(err, ErrIO), format, args...)
}
