// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package autodiff builds and evaluates the backprop optimizer's operation
// DAG (spec section 4.K, the centerpiece of this engine). The graph is
// built directly over a compiled Solution's row order rather than
// recomputing a topological sort from the Network: rows are already
// dependency-ordered and mutually-independent within themselves (the same
// property the solver relies on), so walking Solution.Rows gives the DAG
// builder the ascending/topological order spec section 4.K calls for, and
// lets solution-relevant features (softmax, dropout) slot in right where
// the solver itself would apply them — after every neuron of the rows that
// produce them, before any later row consumes them.
//
// Gradients are computed by forward-mode differentiation seeded at one
// weight at a time ("for each weight w of interest, compute the partial
// derivative of each operation's value w.r.t. w in ascending order"), per
// spec section 4.K's Reverse pass paragraph — read literally, this sweeps
// operations forward while carrying d(value)/dw, not classic reverse-mode
// backprop. This mirrors the original rafko engine's own unusual (but
// simple, GPU-parallelizable) choice, and is the design this package
// implements: see DESIGN.md.
package autodiff

import (
	"fmt"

	"github.com/davids91/rafko-sub003/internal/rafnet"
	"github.com/davids91/rafko-sub003/internal/raferr"
	"github.com/davids91/rafko-sub003/internal/synapse"
)

// OpKind identifies one of the five operation kinds spec section 3 names
// for the backprop DAG.
type OpKind int

const (
	OpInput OpKind = iota
	OpTransfer
	OpSpike
	OpSolutionFeature
	OpObjective
)

// InputElement is one term of a neuron_input operation's weighted sum.
type InputElement struct {
	IsExternal     bool
	ExternalIndex  int // valid when IsExternal
	NeuronIndex    int // valid when !IsExternal
	ReachPastLoops int
	WeightIndex    int // absolute index into Network.WeightTable
}

// Operation is one node of the backprop DAG.
type Operation struct {
	Kind OpKind

	// NeuronIndex is set for OpInput/OpTransfer/OpSpike/OpObjective: the
	// neuron this operation belongs to (for OpObjective, the output
	// neuron whose prediction it scores).
	NeuronIndex int

	// Dependencies lists the op indices this operation's value depends on
	// within the same timestep (the DAG edges proper; self-recurrent
	// past references are NOT modeled as DAG edges — they are resolved
	// against the derivative/value history instead, per spec section
	// 4.K's derivative ring).
	Dependencies []int

	Elements  []InputElement // OpInput only
	BiasWeight int           // OpInput only: absolute weight-table index of the trailing bias weight

	Group rafnet.Group // OpSolutionFeature only

	LabelSlot int // OpObjective only: 0-based position within the output range
}

// Graph is a compiled backprop operation DAG over one Network, as shaped
// by one compiled Solution's row order.
type Graph struct {
	Ops []Operation

	// SpikeOp maps a neuron index to the op index of its raw (pre-feature)
	// spike operation, per spec section 3's spike_to_operation_map.
	SpikeOp map[int]int

	// ProducerOp maps a neuron index to the op index downstream readers
	// should treat as "this neuron's current value": its spike op, or a
	// later solution-feature op if the neuron belongs to a
	// solution-relevant feature group.
	ProducerOp map[int]int

	OutputStart  int
	OutputNeurons int
}

// Build constructs the operation DAG for net's row-ordered solution. Which
// neurons get OpObjective nodes comes from solution's output range; no
// objective is involved here, and the cost math is applied later by the
// reverse sweep.
func Build(net *rafnet.Network, solution *rafnet.Solution) (*Graph, error) {
	g := &Graph{
		SpikeOp:    make(map[int]int),
		ProducerOp: make(map[int]int),
	}
	outputStart, outputEnd := solution.OutputRange()
	g.OutputStart = outputStart
	g.OutputNeurons = outputEnd - outputStart

	processed := make([]bool, net.NeuronCount())
	applied := make([]bool, len(net.Features))
	for _, row := range solution.Rows {
		rowNeurons := rowNeuronIndices(row)
		for _, neuronIndex := range rowNeurons {
			if err := g.addNeuronOps(net, neuronIndex); err != nil {
				return nil, err
			}
			processed[neuronIndex] = true
		}
		if err := g.addReadyFeatures(net, processed, applied); err != nil {
			return nil, err
		}
	}

	for neuronIndex := outputStart; neuronIndex < outputEnd; neuronIndex++ {
		producer, ok := g.ProducerOp[neuronIndex]
		if !ok {
			return nil, fmt.Errorf("autodiff: output neuron %d was never materialized by any row: %w", neuronIndex, raferr.ErrEmptyPlan)
		}
		g.Ops = append(g.Ops, Operation{
			Kind:         OpObjective,
			NeuronIndex:  neuronIndex,
			Dependencies: []int{producer},
			LabelSlot:    neuronIndex - outputStart,
		})
	}

	return g, nil
}

func rowNeuronIndices(row []*rafnet.Partial) []int {
	var out []int
	for _, p := range row {
		for i := 0; i < p.OutputSize; i++ {
			out = append(out, p.OutputStart+i)
		}
	}
	return out
}

func (g *Graph) addNeuronOps(net *rafnet.Network, neuronIndex int) error {
	neuron := net.Neurons[neuronIndex]

	var weightIndices []int
	synapse.Iterate(neuron.InputWeights, func(idx int) bool {
		weightIndices = append(weightIndices, idx)
		return true
	})
	if len(weightIndices) != neuron.InputCount()+1 {
		return fmt.Errorf("autodiff: neuron %d has %d weights for %d inputs, want %d",
			neuronIndex, len(weightIndices), neuron.InputCount(), neuron.InputCount()+1)
	}

	elements := make([]InputElement, 0, neuron.InputCount())
	i := 0
	var buildErr error
	synapse.IterateWithReach(neuron.InputIndices, func(elementIndex, reach int) bool {
		el := InputElement{ReachPastLoops: reach, WeightIndex: weightIndices[i]}
		i++
		if synapse.IsIndexInput(elementIndex) {
			el.IsExternal = true
			el.ExternalIndex = synapse.ExternalIndexFromArray(elementIndex)
			elements = append(elements, el)
			return true
		}
		if reach > 0 && elementIndex != neuronIndex {
			buildErr = fmt.Errorf("autodiff: neuron %d has a reach_past_loops=%d edge from neuron %d (only self-recurrence is supported): %w",
				neuronIndex, reach, elementIndex, raferr.ErrUnsupportedRecurrence)
			return false
		}
		el.NeuronIndex = elementIndex
		elements = append(elements, el)
		return true
	})
	if buildErr != nil {
		return buildErr
	}

	inputOpIdx := len(g.Ops)
	var deps []int
	for _, el := range elements {
		if el.IsExternal || el.ReachPastLoops > 0 {
			continue
		}
		producer, ok := g.ProducerOp[el.NeuronIndex]
		if !ok {
			return fmt.Errorf("autodiff: neuron %d references neuron %d at reach_past_loops=0 before it was materialized; solution row order is not dependency-respecting", neuronIndex, el.NeuronIndex)
		}
		deps = append(deps, producer)
	}
	g.Ops = append(g.Ops, Operation{
		Kind:         OpInput,
		NeuronIndex:  neuronIndex,
		Elements:     elements,
		BiasWeight:   weightIndices[len(weightIndices)-1],
		Dependencies: deps,
	})

	transferOpIdx := len(g.Ops)
	g.Ops = append(g.Ops, Operation{Kind: OpTransfer, NeuronIndex: neuronIndex, Dependencies: []int{inputOpIdx}})

	spikeOpIdx := len(g.Ops)
	g.Ops = append(g.Ops, Operation{Kind: OpSpike, NeuronIndex: neuronIndex, Dependencies: []int{transferOpIdx}})

	g.SpikeOp[neuronIndex] = spikeOpIdx
	g.ProducerOp[neuronIndex] = spikeOpIdx
	return nil
}

// addReadyFeatures inserts a solution-feature operation for every
// solution-relevant group whose neurons have all just become processed (by
// this row or an earlier one) and that hasn't been applied yet, mirroring
// solutionsolver.Solve's per-row feature application (spec section 4.G
// step 3): a later row reading one of these neurons must see the
// transformed value, not the raw spike.
func (g *Graph) addReadyFeatures(net *rafnet.Network, processed, applied []bool) error {
	for gi, group := range net.Features {
		if applied[gi] || !group.Kind.IsSolutionRelevant() {
			continue
		}
		ready := true
		for _, n := range group.Neurons {
			if !processed[n] {
				ready = false
				break
			}
		}
		if !ready {
			continue
		}
		var deps []int
		for _, n := range group.Neurons {
			producer, ok := g.ProducerOp[n]
			if !ok {
				return fmt.Errorf("autodiff: feature group references neuron %d before it was materialized", n)
			}
			deps = append(deps, producer)
		}
		featureOpIdx := len(g.Ops)
		g.Ops = append(g.Ops, Operation{Kind: OpSolutionFeature, Group: group, Dependencies: deps})
		for _, n := range group.Neurons {
			g.ProducerOp[n] = featureOpIdx
		}
		applied[gi] = true
	}
	return nil
}
