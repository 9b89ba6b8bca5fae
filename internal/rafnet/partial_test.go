// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rafnet

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/davids91/rafko-sub003/internal/synapse"
)

func samplePartial() *Partial {
	return &Partial{
		OutputStart: 4,
		OutputSize:  2,
		WeightTable: []float64{1, 2, 3, 4, 5},
		InputIndices: []synapse.Interval{
			{Start: 0, Size: 2}, // inner neuron 0: 2 index synapses
			{Start: 2, Size: 1}, // inner neuron 1: 1 index synapse
		},
		InputWeights: []synapse.Interval{
			{Start: 0, Size: 3}, // inner neuron 0: 3 weight synapses (2 inputs + bias)
			{Start: 3, Size: 2}, // inner neuron 1: 2 weight synapses (1 input + bias)
		},
		IndexSynapseCounts:  []int{1, 1},
		WeightSynapseCounts: []int{1, 1},
		Transfers:           []Transfer{TransferSigmoid, TransferIdentity},
	}
}

func TestIndexSynapsesForReturnsOwnSlice(t *testing.T) {
	p := samplePartial()
	assert.Equal(t, []synapse.Interval{{Start: 0, Size: 2}}, p.IndexSynapsesFor(0))
	assert.Equal(t, []synapse.Interval{{Start: 2, Size: 1}}, p.IndexSynapsesFor(1))
}

func TestWeightSynapsesForReturnsOwnSlice(t *testing.T) {
	p := samplePartial()
	assert.Equal(t, []synapse.Interval{{Start: 0, Size: 3}}, p.WeightSynapsesFor(0))
	assert.Equal(t, []synapse.Interval{{Start: 3, Size: 2}}, p.WeightSynapsesFor(1))
}

func TestGlobalNeuronIndexOffsetsByOutputStart(t *testing.T) {
	p := samplePartial()
	assert.Equal(t, 4, p.GlobalNeuronIndex(0))
	assert.Equal(t, 5, p.GlobalNeuronIndex(1))
}

func TestInnerCountMatchesOutputSize(t *testing.T) {
	p := samplePartial()
	assert.Equal(t, 2, p.InnerCount())
}
