// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package partialsolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davids91/rafko-sub003/internal/rafnet"
	"github.com/davids91/rafko-sub003/internal/ring"
	"github.com/davids91/rafko-sub003/internal/synapse"
)

func TestSolveComputesWeightedSumPlusBiasThenTransfer(t *testing.T) {
	buf := ring.New(2, 3)
	buf.CopyStep()
	buf.Current()[0] = 5 // neuron 0's value one step ago
	buf.CopyStep()       // carries neuron 0's value forward into the current step too

	p := &rafnet.Partial{
		OutputStart: 2,
		OutputSize:  1,
		WeightTable: []float64{2, 3, 1}, // w(neuron0)=2, w(ext0)=3, bias=1
		InputIndices: []synapse.Interval{
			{Start: 0, Size: 1, ReachPastLoops: 1},
			{Start: synapse.ArrayIndexFromExternal(0), Size: 1},
		},
		InputWeights:        []synapse.Interval{{Start: 0, Size: 3}},
		IndexSynapseCounts:  []int{2},
		WeightSynapseCounts: []int{1},
		Transfers:           []rafnet.Transfer{rafnet.TransferIdentity},
	}

	require.NoError(t, Solve(p, buf, []float64{10}))
	assert.InDelta(t, 41.0, buf.Current()[2], 1e-12)
}

func TestSolveAppliesTransferFunction(t *testing.T) {
	buf := ring.New(1, 1)
	p := &rafnet.Partial{
		OutputStart:         0,
		OutputSize:          1,
		WeightTable:         []float64{0, 0}, // no inputs, bias 0 -> sum is 0
		InputIndices:        nil,
		InputWeights:        []synapse.Interval{{Start: 0, Size: 1}},
		IndexSynapseCounts:  []int{0},
		WeightSynapseCounts: []int{1},
		Transfers:           []rafnet.Transfer{rafnet.TransferSigmoid},
	}
	require.NoError(t, Solve(p, buf, nil))
	assert.InDelta(t, 0.5, buf.Current()[0], 1e-12)
}

func TestSolveRejectsWeightCountMismatch(t *testing.T) {
	buf := ring.New(1, 1)
	p := &rafnet.Partial{
		OutputStart:         0,
		OutputSize:          1,
		WeightTable:         []float64{1},
		InputIndices:        []synapse.Interval{{Start: synapse.ArrayIndexFromExternal(0), Size: 1}},
		InputWeights:        []synapse.Interval{{Start: 0, Size: 1}}, // should be 2 (1 input + bias)
		IndexSynapseCounts:  []int{1},
		WeightSynapseCounts: []int{1},
		Transfers:           []rafnet.Transfer{rafnet.TransferIdentity},
	}
	assert.Error(t, Solve(p, buf, []float64{1}))
}

func TestSolveRejectsOutOfRangeExternalInput(t *testing.T) {
	buf := ring.New(1, 1)
	p := &rafnet.Partial{
		OutputStart:         0,
		OutputSize:          1,
		WeightTable:         []float64{1, 0},
		InputIndices:        []synapse.Interval{{Start: synapse.ArrayIndexFromExternal(5), Size: 1}},
		InputWeights:        []synapse.Interval{{Start: 0, Size: 2}},
		IndexSynapseCounts:  []int{1},
		WeightSynapseCounts: []int{1},
		Transfers:           []rafnet.Transfer{rafnet.TransferIdentity},
	}
	assert.Error(t, Solve(p, buf, []float64{1}))
}
