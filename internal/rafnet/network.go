// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rafnet is the network data model: a directed graph of neurons
// wired by index and weight synapses, plus the neuron-group feature list,
// per spec section 3. The network-definition builder API and serialized
// message schema that would normally produce a Network are out of scope
// (spec section 1); this package only fixes the fields the engine consumes.
package rafnet

import (
	"fmt"

	"github.com/davids91/rafko-sub003/internal/synapse"
)

// Neuron is one node of the network: a transfer function, an ordered list
// of input-index synapses (resolving to neurons or external inputs) and an
// ordered list of input-weight synapses (resolving into the network's
// shared weight table). Total weight-synapse length must equal total
// index-synapse length plus one (the trailing bias weight).
type Neuron struct {
	Transfer     Transfer
	InputIndices []synapse.Interval
	InputWeights []synapse.Interval
}

// InputCount returns the number of input-index elements this neuron reads.
func (n Neuron) InputCount() int { return synapse.Len(n.InputIndices) }

// WeightCount returns the number of input-weight elements this neuron
// consumes from the network weight table (InputCount + 1 bias).
func (n Neuron) WeightCount() int { return synapse.Len(n.InputWeights) }

// EstimatedSizeBytes approximates the router's per-neuron memory cost used
// to bound a collected subset by a device memory budget: each synapse
// interval costs 2 fields (start, size) at 2 bytes apiece.
func (n Neuron) EstimatedSizeBytes() int {
	return 4 * (len(n.InputWeights) + len(n.InputIndices))
}

// Network is a directed graph of neurons sharing one weight table, per spec
// section 3.
type Network struct {
	WeightTable []float64
	Neurons     []Neuron
	Features    []Group
	InputSize   int // network_input_size: number of external inputs
}

// NeuronCount returns the number of neurons in the network.
func (net *Network) NeuronCount() int { return len(net.Neurons) }

// Validate checks the invariants from spec section 3: every neuron's
// weight-synapse total must exceed its index-synapse total by exactly one
// (the bias), every referenced neuron index must be in range or a valid
// external-input encoding, and no reach_past_loops=0 cycle may exist among
// synapses.
func (net *Network) Validate() error {
	n := net.NeuronCount()
	for i, neuron := range net.Neurons {
		inputs := neuron.InputCount()
		weights := neuron.WeightCount()
		if weights != inputs+1 {
			return fmt.Errorf("rafnet: neuron %d has %d weights for %d inputs, want %d (inputs+1 bias)", i, weights, inputs, inputs+1)
		}
		var rangeErr error
		synapse.Iterate(neuron.InputIndices, func(idx int) bool {
			if synapse.IsIndexInput(idx) {
				ext := synapse.ExternalIndexFromArray(idx)
				if ext < 0 || ext >= net.InputSize {
					rangeErr = fmt.Errorf("rafnet: neuron %d references external input %d outside [0,%d)", i, ext, net.InputSize)
					return false
				}
				return true
			}
			if idx < 0 || idx >= n {
				rangeErr = fmt.Errorf("rafnet: neuron %d references neuron index %d outside [0,%d)", i, idx, n)
				return false
			}
			return true
		})
		if rangeErr != nil {
			return rangeErr
		}
	}
	return detectZeroLagCycle(net.Neurons)
}

// detectZeroLagCycle performs a DFS over the subgraph of synapses with
// reach_past_loops == 0 (the only edges that must resolve within the same
// timestep) and fails if it finds a cycle.
func detectZeroLagCycle(neurons []Neuron) error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make([]int, len(neurons))
	var visit func(i int) error
	visit = func(i int) error {
		color[i] = gray
		var err error
	outer:
		for _, iv := range neurons[i].InputIndices {
			if iv.ReachPastLoops != 0 {
				continue // a past reference can never close a same-step cycle
			}
			synapse.Iterate([]synapse.Interval{iv}, func(idx int) bool {
				if synapse.IsIndexInput(idx) {
					return true
				}
				switch color[idx] {
				case gray:
					err = fmt.Errorf("rafnet: cycle detected among reach_past_loops=0 synapses involving neuron %d", idx)
					return false
				case white:
					if e := visit(idx); e != nil {
						err = e
						return false
					}
				}
				return true
			})
			if err != nil {
				break outer
			}
		}
		color[i] = black
		return err
	}
	for i := range neurons {
		if color[i] == white {
			if err := visit(i); err != nil {
				return err
			}
		}
	}
	return nil
}
