// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rafscenario builds the fixture networks and datasets that the
// S1-S5 scenarios of spec section 8 are stated against: layered
// feed-forward and self-recurrent addition networks, their (a, b, a+b)
// training/test sample pairs, and the hand-coded 2x2 solver-equivalence
// plan. It has no production caller; every piece here is driven from this
// package's own scenarios_test.go.
package rafscenario

import (
	"math/rand"

	"github.com/davids91/rafko-sub003/internal/rafnet"
	"github.com/davids91/rafko-sub003/internal/synapse"
)

// LayerSpec describes one layer of a dense feed-forward (or self-recurrent)
// network built by BuildLayeredNetwork.
type LayerSpec struct {
	Size          int
	Transfer      rafnet.Transfer
	SelfRecurrent bool // each neuron also reads its own value from one step back
}

// BuildLayeredNetwork wires a fully-connected network: layer 0 reads every
// external input, each later layer reads every neuron of the layer before
// it, and weights are drawn uniformly from [-1, 1) by rng. This is the
// generalized form of the literal Network construction in
// rafnet/network_test.go: same Neuron/Interval shape, built in a loop
// instead of spelled out by hand, since scenario S1-S4's networks range
// from one neuron to three layers.
func BuildLayeredNetwork(inputSize int, layers []LayerSpec, rng *rand.Rand) *rafnet.Network {
	net := &rafnet.Network{InputSize: inputSize}

	prevStart, prevSize := 0, inputSize
	prevIsExternal := true
	neuronIndex := 0
	for _, layer := range layers {
		layerStart := neuronIndex
		for i := 0; i < layer.Size; i++ {
			var indices []synapse.Interval
			if prevIsExternal {
				indices = append(indices, synapse.Interval{Start: synapse.ArrayIndexFromExternal(0), Size: prevSize})
			} else {
				indices = append(indices, synapse.Interval{Start: prevStart, Size: prevSize})
			}
			weightCount := prevSize
			if layer.SelfRecurrent {
				indices = append(indices, synapse.Interval{Start: neuronIndex, Size: 1, ReachPastLoops: 1})
				weightCount++
			}
			weightStart := len(net.WeightTable)
			for w := 0; w <= weightCount; w++ { // +1 bias
				net.WeightTable = append(net.WeightTable, rng.Float64()*2-1)
			}
			net.Neurons = append(net.Neurons, rafnet.Neuron{
				Transfer:     layer.Transfer,
				InputIndices: indices,
				InputWeights: []synapse.Interval{{Start: weightStart, Size: weightCount + 1}},
			})
			neuronIndex++
		}
		prevStart, prevSize, prevIsExternal = layerStart, layer.Size, false
	}
	return net
}

// AdditionSamples draws n random (a, b, a+b) triples with a, b uniformly
// sampled from [0, 1), split into parallel input/label slices ready for
// rafkoenv.NewSliceEnvironment with sequenceSize=1, prefillInputsNumber=0.
func AdditionSamples(n int, rng *rand.Rand) (inputs, labels [][]float64) {
	inputs = make([][]float64, n)
	labels = make([][]float64, n)
	for i := 0; i < n; i++ {
		a, b := rng.Float64(), rng.Float64()
		inputs[i] = []float64{a, b}
		labels[i] = []float64{a + b}
	}
	return inputs, labels
}

// SequencedAdditionSamples draws sampleCount sequences of sequenceSize
// running-sum steps: each sequence starts its running total at 0 and at
// step t feeds external input a_t, with label set to the running total
// including a_t. This is the S4 fixture: the label is only recoverable by
// carrying state across steps, which a self-recurrent layer must learn to
// do since each step's raw input alone can't reconstruct it.
func SequencedAdditionSamples(sampleCount, sequenceSize int, rng *rand.Rand) (inputs, labels [][]float64) {
	for s := 0; s < sampleCount; s++ {
		running := 0.0
		for t := 0; t < sequenceSize; t++ {
			a := rng.Float64()
			running += a
			inputs = append(inputs, []float64{a})
			labels = append(labels, []float64{running})
		}
	}
	return inputs, labels
}
