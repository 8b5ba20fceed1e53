// Copyright 2024 The Wormtable Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

// Package wormtable implements a write-once, read-many columnar table
// store for large datasets that do not fit comfortably in memory.
//
// A Table holds one schema's worth of rows in a flat data file, addressed
// by a primary ordered store mapping row_id to (offset, length). Rows are
// appended in Write mode and never mutated afterwards; once closed, a
// Table is reopened in Read mode for random or sequential access.
//
// An Index materializes a subset of a table's columns into a secondary
// ordered store, supporting prefix queries, duplicate counting, and
// min/max lookups without a full table scan.
package wormtable
