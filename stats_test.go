// Copyright 2024 The Wormtable Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package wormtable

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRowStatsObserveAndSnapshot(t *testing.T) {
	s := newRowStats()
	for _, size := range []int{10, 20, 5, 40} {
		s.observe(size)
	}
	snap := s.snapshot()
	require.Equal(t, uint64(4), snap.Count)
	require.Equal(t, 5, snap.MinSize)
	require.Equal(t, 40, snap.MaxSize)
	require.Equal(t, uint64(75), snap.TotalSize)
	require.Greater(t, snap.Percentile(50), int64(0))
}

func TestStatsReportHandlesNoRows(t *testing.T) {
	var s Stats
	require.Equal(t, "wormtable: no rows committed", s.Report())
}
