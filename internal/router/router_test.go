// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davids91/rafko-sub003/internal/rafnet"
	"github.com/davids91/rafko-sub003/internal/synapse"
)

// chainNetwork builds a 3-neuron feed-forward chain: external input -> n0
// -> n1 -> n2 (output), with no recurrence.
func chainNetwork() *rafnet.Network {
	ext := func(i int) synapse.Interval {
		return synapse.Interval{Start: synapse.ArrayIndexFromExternal(i), Size: 1}
	}
	ref := func(i int) synapse.Interval { return synapse.Interval{Start: i, Size: 1} }
	return &rafnet.Network{
		InputSize:   1,
		WeightTable: make([]float64, 6),
		Neurons: []rafnet.Neuron{
			{Transfer: rafnet.TransferIdentity, InputIndices: []synapse.Interval{ext(0)}, InputWeights: []synapse.Interval{{Start: 0, Size: 2}}},
			{Transfer: rafnet.TransferIdentity, InputIndices: []synapse.Interval{ref(0)}, InputWeights: []synapse.Interval{{Start: 2, Size: 2}}},
			{Transfer: rafnet.TransferIdentity, InputIndices: []synapse.Interval{ref(1)}, InputWeights: []synapse.Interval{{Start: 4, Size: 2}}},
		},
	}
}

func TestCollectSubsetWalksChainInDependencyOrder(t *testing.T) {
	net := chainNetwork()
	require.NoError(t, net.Validate())
	r := New(net, 1)

	subset := r.CollectSubset(1, 1024, true)
	require.Equal(t, []int{0}, subset)
	require.NoError(t, r.MarkProcessed(0))

	subset = r.CollectSubset(1, 1024, true)
	require.Equal(t, []int{1}, subset)
	require.NoError(t, r.MarkProcessed(1))

	subset = r.CollectSubset(1, 1024, true)
	require.Equal(t, []int{2}, subset)
	require.NoError(t, r.MarkProcessed(2))

	assert.True(t, r.Finished())
}

func TestMarkProcessedRejectsWrongFront(t *testing.T) {
	net := chainNetwork()
	r := New(net, 1)
	r.CollectSubset(1, 1024, true)
	assert.Error(t, r.MarkProcessed(1))
}

func TestOmitResetsStateForReconsideration(t *testing.T) {
	net := chainNetwork()
	r := New(net, 1)

	subset := r.CollectSubset(1, 1024, true)
	require.Equal(t, []int{0}, subset)
	require.NoError(t, r.Omit(0))
	assert.False(t, r.isNeuronReserved(0))

	subset = r.CollectSubset(1, 1024, true)
	require.Equal(t, []int{0}, subset)
}

func TestOmitRemovesDependentsToo(t *testing.T) {
	net := chainNetwork()
	r := New(net, 1)

	r.CollectSubset(1, 1024, true)
	require.NoError(t, r.MarkProcessed(0))
	subset := r.CollectSubset(1, 1024, true)
	require.Equal(t, []int{1}, subset)

	// Manually place neuron 1 back into the subset deque alongside a
	// synthetic dependent to exercise the dependents walk without needing a
	// third collection pass.
	r.mu.Lock()
	r.subset = []int{1, 2}
	r.mu.Unlock()

	require.NoError(t, r.Omit(1))
	r.mu.Lock()
	assert.Empty(t, r.subset)
	r.mu.Unlock()
}
