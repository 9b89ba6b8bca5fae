// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package partialsolver evaluates a single partial solution's inner
// neurons — weighted sum of inputs plus bias, then transfer function — per
// spec section 4.E. This mirrors the per-unit compute loop leabra's
// network layers run per cycle (leabra/leabra/act.go's ActFmG-style
// gather-then-activate shape), generalized from leabra's fixed unit
// lattice to rafko's run-length-encoded synapse lists.
package partialsolver

import (
	"fmt"

	"github.com/davids91/rafko-sub003/internal/rafnet"
	"github.com/davids91/rafko-sub003/internal/ring"
	"github.com/davids91/rafko-sub003/internal/synapse"
)

// Solve evaluates every inner neuron of p in order, reading inputs from
// networkInputs (external) or buf (neuron values, possibly from a past
// timestep per each synapse's reach_past_loops), and writes each neuron's
// transfer output into buf's current slot at its global neuron index. buf
// must already be positioned (CopyStep/ShallowStep/CleanStep) for this
// timestep before Solve is called.
func Solve(p *rafnet.Partial, buf *ring.Buffer, networkInputs []float64) error {
	for inner := 0; inner < p.InnerCount(); inner++ {
		value, err := solveOne(p, buf, networkInputs, inner)
		if err != nil {
			return err
		}
		current := buf.Current()
		current[p.GlobalNeuronIndex(inner)] = value
	}
	return nil
}

func solveOne(p *rafnet.Partial, buf *ring.Buffer, networkInputs []float64, inner int) (float64, error) {
	indexSynapses := p.IndexSynapsesFor(inner)
	weightSynapses := p.WeightSynapsesFor(inner)

	weights := make([]float64, 0, synapse.Len(weightSynapses))
	synapse.Iterate(weightSynapses, func(idx int) bool {
		weights = append(weights, p.WeightTable[idx])
		return true
	})
	if len(weights) != synapse.Len(indexSynapses)+1 {
		return 0, fmt.Errorf("rafko: partial solver: inner neuron %d has %d weights for %d inputs, want %d",
			inner, len(weights), synapse.Len(indexSynapses), synapse.Len(indexSynapses)+1)
	}

	sum := 0.0
	i := 0
	var iterErr error
	synapse.IterateWithReach(indexSynapses, func(elementIndex, reachPastLoops int) bool {
		value, err := inputValue(buf, networkInputs, elementIndex, reachPastLoops)
		if err != nil {
			iterErr = err
			return false
		}
		sum += value * weights[i]
		i++
		return true
	})
	if iterErr != nil {
		return 0, iterErr
	}
	sum += weights[len(weights)-1] // trailing bias weight

	return p.Transfers[inner].Apply(sum), nil
}

func inputValue(buf *ring.Buffer, networkInputs []float64, elementIndex, reachPastLoops int) (float64, error) {
	if synapse.IsIndexInput(elementIndex) {
		ext := synapse.ExternalIndexFromArray(elementIndex)
		if ext < 0 || ext >= len(networkInputs) {
			return 0, fmt.Errorf("rafko: partial solver: external input %d out of range [0,%d)", ext, len(networkInputs))
		}
		return networkInputs[ext], nil
	}
	return buf.At(reachPastLoops, elementIndex)
}
