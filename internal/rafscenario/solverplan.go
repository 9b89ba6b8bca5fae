// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rafscenario

import (
	"github.com/davids91/rafko-sub003/internal/rafnet"
	"github.com/davids91/rafko-sub003/internal/synapse"
)

// HandCodedTwoByTwoSolution builds the S5 fixture: a 2 row x 2 column plan
// over 4 external inputs, every partial a single identity neuron so the
// expected output is computable by hand. Row 0's two partials each read
// one input pair and double it; row 1's two partials each read one row-0
// output and add 1. With inputs [5.1, 10.3, 3.2, 9.4] the output neurons
// settle at [2*(5.1+10.3)+1, 2*(3.2+9.4)+1], the reference values
// TestS5SolverAgreesAcrossThreadCounts checks every thread count against
// (spec section 8, S5).
func HandCodedTwoByTwoSolution() *rafnet.Solution {
	ext := func(i int) synapse.Interval { return synapse.Interval{Start: synapse.ArrayIndexFromExternal(i), Size: 2} }
	ref := func(i int) synapse.Interval { return synapse.Interval{Start: i, Size: 1} }

	row0 := []*rafnet.Partial{
		{
			OutputStart: 0, OutputSize: 1,
			WeightTable:         []float64{2, 2, 0}, // 2*in0 + 2*in1 + bias0
			InputIndices:        []synapse.Interval{ext(0)},
			InputWeights:        []synapse.Interval{{Start: 0, Size: 3}},
			IndexSynapseCounts:  []int{1},
			WeightSynapseCounts: []int{1},
			Transfers:           []rafnet.Transfer{rafnet.TransferIdentity},
		},
		{
			OutputStart: 1, OutputSize: 1,
			WeightTable:         []float64{2, 2, 0},
			InputIndices:        []synapse.Interval{ext(2)},
			InputWeights:        []synapse.Interval{{Start: 0, Size: 3}},
			IndexSynapseCounts:  []int{1},
			WeightSynapseCounts: []int{1},
			Transfers:           []rafnet.Transfer{rafnet.TransferIdentity},
		},
	}
	row1 := []*rafnet.Partial{
		{
			OutputStart: 2, OutputSize: 1,
			WeightTable:         []float64{1, 1},
			InputIndices:        []synapse.Interval{ref(0)},
			InputWeights:        []synapse.Interval{{Start: 0, Size: 2}},
			IndexSynapseCounts:  []int{1},
			WeightSynapseCounts: []int{1},
			Transfers:           []rafnet.Transfer{rafnet.TransferIdentity},
		},
		{
			OutputStart: 3, OutputSize: 1,
			WeightTable:         []float64{1, 1},
			InputIndices:        []synapse.Interval{ref(1)},
			InputWeights:        []synapse.Interval{{Start: 0, Size: 2}},
			IndexSynapseCounts:  []int{1},
			WeightSynapseCounts: []int{1},
			Transfers:           []rafnet.Transfer{rafnet.TransferIdentity},
		},
	}

	return &rafnet.Solution{
		Rows:                [][]*rafnet.Partial{row0, row1},
		NetworkMemoryLength: 1,
		NeuronNumber:        4,
		OutputNeuronNumber:  2,
		NetworkInputSize:    4,
	}
}

// HandCodedTwoByTwoInputs is the fixed input vector S5 is stated against.
func HandCodedTwoByTwoInputs() []float64 { return []float64{5.1, 10.3, 3.2, 9.4} }

// HandCodedTwoByTwoExpected is the hand-computed expected output for
// HandCodedTwoByTwoInputs, derived the same way a reader checking S5 by
// hand would: double each input pair's sum, then add 1.
func HandCodedTwoByTwoExpected() []float64 {
	in := HandCodedTwoByTwoInputs()
	return []float64{
		2*(in[0]+in[1]) + 1,
		2*(in[2]+in[3]) + 1,
	}
}
