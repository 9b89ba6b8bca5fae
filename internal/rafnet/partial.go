// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rafnet

import "github.com/davids91/rafko-sub003/internal/synapse"

// Partial is a contiguous slab [OutputStart, OutputStart+OutputSize) of
// neurons with a private weight table, per spec section 3. InputIndices
// and InputWeights are flattened across every inner neuron of the slab;
// IndexSynapseCounts/WeightSynapseCounts record, per inner neuron (in
// output order), how many of the leading intervals belong to it: parallel
// arrays from which IndexSynapsesFor/WeightSynapsesFor locate a given inner
// neuron's slice by summing the counts of the inner neurons before it (a
// walk linear in the inner index, not a constant-time lookup), the same
// role weight_synapse_number(inner_neuron_index) plays in locating a
// neuron's slice of a partial's flattened weight_indices.
type Partial struct {
	OutputStart int
	OutputSize  int

	WeightTable []float64 // private copy of the network weights this partial reads

	InputIndices []synapse.Interval // flattened across inner neurons, in order
	InputWeights []synapse.Interval // flattened across inner neurons, in order

	IndexSynapseCounts  []int // per inner neuron: number of leading InputIndices intervals
	WeightSynapseCounts []int // per inner neuron: number of leading InputWeights intervals

	Transfers []Transfer // per inner neuron
}

// InnerCount returns the number of neurons in this partial (OutputSize).
func (p *Partial) InnerCount() int { return p.OutputSize }

// IndexSynapsesFor returns the slice of InputIndices belonging to the given
// inner neuron (0-based within the partial).
func (p *Partial) IndexSynapsesFor(inner int) []synapse.Interval {
	start := 0
	for i := 0; i < inner; i++ {
		start += p.IndexSynapseCounts[i]
	}
	return p.InputIndices[start : start+p.IndexSynapseCounts[inner]]
}

// WeightSynapsesFor returns the slice of InputWeights belonging to the
// given inner neuron.
func (p *Partial) WeightSynapsesFor(inner int) []synapse.Interval {
	start := 0
	for i := 0; i < inner; i++ {
		start += p.WeightSynapseCounts[i]
	}
	return p.InputWeights[start : start+p.WeightSynapseCounts[inner]]
}

// GlobalNeuronIndex maps an inner (partial-local) neuron index to its
// global network neuron index.
func (p *Partial) GlobalNeuronIndex(inner int) int { return p.OutputStart + inner }
