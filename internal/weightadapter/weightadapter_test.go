// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package weightadapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davids91/rafko-sub003/internal/compiler"
	"github.com/davids91/rafko-sub003/internal/rafnet"
	"github.com/davids91/rafko-sub003/internal/ring"
	"github.com/davids91/rafko-sub003/internal/solutionsolver"
	"github.com/davids91/rafko-sub003/internal/synapse"
	"github.com/davids91/rafko-sub003/internal/threadgroup"
)

func chainNetwork() *rafnet.Network {
	ext := func(i int) synapse.Interval {
		return synapse.Interval{Start: synapse.ArrayIndexFromExternal(i), Size: 1}
	}
	ref := func(i int) synapse.Interval { return synapse.Interval{Start: i, Size: 1} }
	return &rafnet.Network{
		InputSize:   1,
		WeightTable: []float64{2, 0, 3, 1, 1, 0},
		Neurons: []rafnet.Neuron{
			{Transfer: rafnet.TransferIdentity, InputIndices: []synapse.Interval{ext(0)}, InputWeights: []synapse.Interval{{Start: 0, Size: 2}}},
			{Transfer: rafnet.TransferIdentity, InputIndices: []synapse.Interval{ref(0)}, InputWeights: []synapse.Interval{{Start: 2, Size: 2}}},
			{Transfer: rafnet.TransferIdentity, InputIndices: []synapse.Interval{ref(1)}, InputWeights: []synapse.Interval{{Start: 4, Size: 2}}},
		},
	}
}

func solve(t *testing.T, solution *rafnet.Solution, input float64) float64 {
	t.Helper()
	buf := ring.New(solution.NetworkMemoryLength, solution.NeuronNumber)
	tg := threadgroup.New(2)
	defer tg.Close()
	out, err := solutionsolver.Solve(solution, buf, []float64{input}, tg, solutionsolver.Options{Reset: true})
	require.NoError(t, err)
	require.Len(t, out, 1)
	return out[0]
}

func TestUpdateWeightPropagatesNetworkChangeIntoPartial(t *testing.T) {
	net := chainNetwork()
	solution, err := compiler.Compile(net, compiler.Options{OutputNeurons: 1, MaxSolveThreads: 2, DeviceMaxMegabytes: 1024, Strict: true})
	require.NoError(t, err)

	assert.Equal(t, 7.0, solve(t, solution, 1)) // ((1*2+0)*3+1)*1+0 = 7

	adapter := New(net, solution)
	net.WeightTable[0] = 5 // first neuron's input weight, 2 -> 5
	require.NoError(t, adapter.UpdateWeight(0))

	assert.Equal(t, 16.0, solve(t, solution, 1)) // ((1*5+0)*3+1)*1+0 = 16
}

func TestUpdateWeightRejectsOutOfRangeIndex(t *testing.T) {
	net := chainNetwork()
	solution, err := compiler.Compile(net, compiler.Options{OutputNeurons: 1, MaxSolveThreads: 1, DeviceMaxMegabytes: 1024, Strict: true})
	require.NoError(t, err)

	adapter := New(net, solution)
	assert.Error(t, adapter.UpdateWeight(-1))
	assert.Error(t, adapter.UpdateWeight(len(net.WeightTable)))
}

func TestUpdateAllRefreshesEveryPartialFromTheNetwork(t *testing.T) {
	net := chainNetwork()
	solution, err := compiler.Compile(net, compiler.Options{OutputNeurons: 1, MaxSolveThreads: 2, DeviceMaxMegabytes: 1024, Strict: true})
	require.NoError(t, err)

	adapter := New(net, solution)
	net.WeightTable[2] = 10 // second neuron's multiplicative weight, 3 -> 10
	net.WeightTable[5] = 2  // third neuron's bias weight, 0 -> 2

	tg := threadgroup.New(2)
	defer tg.Close()
	adapter.UpdateAll(tg)

	assert.Equal(t, 23.0, solve(t, solution, 1)) // ((1*2+0)*10+1)*1+2 = 23
}
