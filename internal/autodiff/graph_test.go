// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package autodiff_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davids91/rafko-sub003/internal/autodiff"
	"github.com/davids91/rafko-sub003/internal/compiler"
	"github.com/davids91/rafko-sub003/internal/rafnet"
	"github.com/davids91/rafko-sub003/internal/synapse"
)

// chainNetwork builds a 2-neuron feedforward network: neuron 0 reads
// external input 0, neuron 1 reads neuron 0. Both sigmoid. Weight table
// layout: [n0 input weight, n0 bias, n1 input weight, n1 bias].
func chainNetwork() *rafnet.Network {
	return &rafnet.Network{
		WeightTable: []float64{0.5, 0.1, -0.3, 0.2},
		InputSize:   1,
		Neurons: []rafnet.Neuron{
			{
				Transfer:     rafnet.TransferSigmoid,
				InputIndices: []synapse.Interval{{Start: synapse.ArrayIndexFromExternal(0), Size: 1}},
				InputWeights: []synapse.Interval{{Start: 0, Size: 2}},
			},
			{
				Transfer:     rafnet.TransferSigmoid,
				InputIndices: []synapse.Interval{{Start: 0, Size: 1}},
				InputWeights: []synapse.Interval{{Start: 2, Size: 2}},
			},
		},
	}
}

func TestBuildOrdersOpsByRowAndRecordsObjectivePerOutput(t *testing.T) {
	net := chainNetwork()
	solution, err := compiler.Compile(net, compiler.Options{OutputNeurons: 1, MaxSolveThreads: 1})
	require.NoError(t, err)

	g, err := autodiff.Build(net, solution)
	require.NoError(t, err)

	// 2 neurons * 3 ops (input, transfer, spike) + 1 objective op.
	require.Len(t, g.Ops, 7)
	assert.Equal(t, autodiff.OpObjective, g.Ops[len(g.Ops)-1].Kind)
	assert.Equal(t, 0, g.Ops[len(g.Ops)-1].LabelSlot)

	spike0, ok := g.SpikeOp[0]
	require.True(t, ok)
	spike1, ok := g.SpikeOp[1]
	require.True(t, ok)
	assert.Less(t, spike0, spike1, "neuron 0 must be fully materialized before neuron 1, which depends on it")

	inputOp1 := g.Ops[spike1-2]
	require.Equal(t, autodiff.OpInput, inputOp1.Kind)
	require.Len(t, inputOp1.Elements, 1)
	assert.Equal(t, spike0, inputOp1.Dependencies[0])
}

func TestBuildRejectsNonSelfRecurrence(t *testing.T) {
	net := &rafnet.Network{
		WeightTable: []float64{1, 1, 1, 1},
		InputSize:   1,
		Neurons: []rafnet.Neuron{
			{
				Transfer:     rafnet.TransferIdentity,
				InputIndices: []synapse.Interval{{Start: synapse.ArrayIndexFromExternal(0), Size: 1}},
				InputWeights: []synapse.Interval{{Start: 0, Size: 2}},
			},
			{
				Transfer:     rafnet.TransferIdentity,
				InputIndices: []synapse.Interval{{Start: 0, Size: 1, ReachPastLoops: 1}},
				InputWeights: []synapse.Interval{{Start: 2, Size: 2}},
			},
		},
	}
	solution, err := compiler.Compile(net, compiler.Options{OutputNeurons: 1, MaxSolveThreads: 1})
	require.NoError(t, err)

	_, err = autodiff.Build(net, solution)
	assert.Error(t, err)
}
