// Copyright 2024 The Wormtable Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package codec

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUintRoundTripAndOrder(t *testing.T) {
	for _, size := range []int{1, 2, 3, 5, 8} {
		buf1 := make([]byte, size)
		buf2 := make([]byte, size)
		values := []uint64{0, 1, 2, MaxUint(size) - 1, MaxUint(size)}
		for _, v := range values {
			require.NoError(t, PackUint(buf1, size, v))
			got, missing, err := UnpackUint(buf1, size)
			require.NoError(t, err)
			require.False(t, missing)
			require.Equal(t, v, got)
		}
		require.NoError(t, PackUint(buf1, size, 10))
		require.NoError(t, PackUint(buf2, size, 11))
		require.True(t, bytes.Compare(buf1, buf2) < 0)

		require.NoError(t, PackUintMissing(buf1, size))
		_, missing, err := UnpackUint(buf1, size)
		require.NoError(t, err)
		require.True(t, missing)
	}
}

func TestUintOutOfRange(t *testing.T) {
	require.Error(t, PackUint(make([]byte, 1), 1, MaxUint(1)+1))
}

func TestIntRoundTripAndOrder(t *testing.T) {
	for _, size := range []int{1, 2, 3, 5, 8} {
		lo, hi := MinInt(size), MaxInt(size)
		for _, v := range []int64{lo, lo + 1, -1, 0, 1, hi - 1, hi} {
			buf := make([]byte, size)
			require.NoError(t, PackInt(buf, size, v))
			got, missing, err := UnpackInt(buf, size)
			require.NoError(t, err)
			require.False(t, missing)
			require.Equal(t, v, got)
		}

		bufA := make([]byte, size)
		bufB := make([]byte, size)
		require.NoError(t, PackInt(bufA, size, -5))
		require.NoError(t, PackInt(bufB, size, 3))
		require.True(t, bytes.Compare(bufA, bufB) < 0)

		buf := make([]byte, size)
		require.NoError(t, PackIntMissing(buf, size))
		_, missing, err := UnpackInt(buf, size)
		require.NoError(t, err)
		require.True(t, missing)
	}
}

func TestIntOutOfRange(t *testing.T) {
	require.Error(t, PackInt(make([]byte, 1), 1, MinInt(1)-1))
	require.Error(t, PackInt(make([]byte, 1), 1, MaxInt(1)+1))
}

func TestFloatRoundTripAndOrder(t *testing.T) {
	for _, width := range []int{4, 8} {
		values := []float64{-1.0, 0.0, 1.0, math.Inf(-1), math.Inf(1), -123.5, 42}
		for _, v := range values {
			buf := make([]byte, width)
			require.NoError(t, PackFloat(buf, width, v))
			got, missing, err := UnpackFloat(buf, width)
			require.NoError(t, err)
			require.False(t, missing)
			require.Equal(t, v, got)
		}

		order := []float64{math.Inf(-1), -1.0, 0.0, 1.0, math.Inf(1)}
		var prev []byte
		for _, v := range order {
			buf := make([]byte, width)
			require.NoError(t, PackFloat(buf, width, v))
			if prev != nil {
				require.True(t, bytes.Compare(prev, buf) < 0)
			}
			prev = buf
		}
	}
}

func TestFloatMissingSentinel(t *testing.T) {
	for _, width := range []int{2, 4, 8} {
		buf := make([]byte, width)
		require.NoError(t, PackFloatMissing(buf, width))
		for _, b := range buf {
			require.Equal(t, byte(0), b)
		}
		_, missing, err := UnpackFloat(buf, width)
		require.NoError(t, err)
		require.True(t, missing)
	}
}

func TestFloat16RoundTrip(t *testing.T) {
	for _, v := range []float64{0, 1, -1, 2, -2, 0.5, -0.5, 16, -16} {
		buf := make([]byte, 2)
		require.NoError(t, PackFloat(buf, 2, v))
		got, missing, err := UnpackFloat(buf, 2)
		require.NoError(t, err)
		require.False(t, missing)
		require.Equal(t, v, got)
	}
}

func TestCharPackIsIdentity(t *testing.T) {
	buf := make([]byte, 3)
	PackChar(buf, []byte("ab"))
	require.Equal(t, []byte{'a', 'b', 0}, buf)
}
