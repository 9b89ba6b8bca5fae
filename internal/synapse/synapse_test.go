// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package synapse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(s []Interval) []int {
	var out []int
	Iterate(s, func(i int) bool {
		out = append(out, i)
		return true
	})
	return out
}

func TestIterateVisitsEveryElementInOrder(t *testing.T) {
	s := []Interval{{Start: 3, Size: 3}, {Start: 10, Size: 2}}
	got := collect(s)
	assert.Equal(t, []int{3, 4, 5, 10, 11}, got)
	assert.Equal(t, Len(s), len(got))
}

func TestIterateNegativeStartDecrements(t *testing.T) {
	// start = -1 encodes external input 0; successive elements decrement.
	s := []Interval{{Start: -1, Size: 3}}
	got := collect(s)
	assert.Equal(t, []int{-1, -2, -3}, got)
	for _, v := range got {
		assert.True(t, IsIndexInput(v))
	}
}

func TestExternalIndexRoundTrip(t *testing.T) {
	for k := 0; k < 10; k++ {
		enc := ArrayIndexFromExternal(k)
		assert.True(t, IsIndexInput(enc))
		assert.Equal(t, k, ExternalIndexFromArray(enc))
	}
}

func TestElementAtMatchesIterate(t *testing.T) {
	s := []Interval{{Start: 0, Size: 4}, {Start: -1, Size: 2}}
	want := collect(s)
	for i, w := range want {
		got, err := ElementAt(s, i)
		require.NoError(t, err)
		assert.Equal(t, w, got)
	}
	_, err := ElementAt(s, len(want))
	assert.Error(t, err)
}

func TestQueryAtReturnsOwningInterval(t *testing.T) {
	s := []Interval{
		{Start: 0, Size: 2, ReachPastLoops: 0},
		{Start: 5, Size: 3, ReachPastLoops: 2},
	}
	reach, size, err := QueryAt(s, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, reach)
	assert.Equal(t, 3, size)
}

func TestIterateWithReachCarriesOwningIntervalReach(t *testing.T) {
	s := []Interval{
		{Start: 0, Size: 2, ReachPastLoops: 0},
		{Start: 5, Size: 2, ReachPastLoops: 3},
	}
	var idxs, reaches []int
	IterateWithReach(s, func(elementIndex, reachPastLoops int) bool {
		idxs = append(idxs, elementIndex)
		reaches = append(reaches, reachPastLoops)
		return true
	})
	assert.Equal(t, []int{0, 1, 5, 6}, idxs)
	assert.Equal(t, []int{0, 0, 3, 3}, reaches)
}

func TestIterateEarlyExit(t *testing.T) {
	s := []Interval{{Start: 0, Size: 5}}
	var seen []int
	Iterate(s, func(i int) bool {
		seen = append(seen, i)
		return i < 2
	})
	assert.Equal(t, []int{0, 1, 2}, seen)
}
