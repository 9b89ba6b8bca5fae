// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package autodiff

import (
	"github.com/davids91/rafko-sub003/internal/objective"
	"github.com/davids91/rafko-sub003/internal/rafnet"
	"github.com/davids91/rafko-sub003/internal/ring"
	"github.com/davids91/rafko-sub003/internal/threadgroup"
)

// Gradient computes d(cost)/dw for every weight in net.WeightTable, by
// sweeping g's operations forward once per weight while carrying d(value)/dw
// (spec section 4.K's Reverse pass, read literally as a per-weight
// forward-mode sweep rather than classic reverse-mode backprop — see
// graph.go's package doc). steps is the already-computed forward pass
// (ForwardSequence) over the same inputs; labels holds one label vector per
// truncation-window step (labels[0] corresponds to absolute step
// prefillSteps). The sweep runs from step 0 so self-recurrent derivative
// history is correct even when it reaches back into the prefill window, but
// only accumulates gradient contributions for steps
// [prefillSteps, prefillSteps+truncation), per spec section 4.K's
// truncation contract. Weights are partitioned across tg's workers; each
// worker only ever writes the entries it owns, so no synchronization is
// needed on the result slice.
func Gradient(
	g *Graph, net *rafnet.Network, steps []StepValues, inputs [][]float64,
	labels [][]float64, prefillSteps, truncation int, obj objective.Objective,
	tg *threadgroup.Group, ringDepth int,
) ([]float64, error) {
	gradient := make([]float64, len(net.WeightTable))
	errs := make([]error, tg.NumWorkers())

	tg.StartAndBlock(func(workerIndex int) {
		workers := tg.NumWorkers()
		for w := workerIndex; w < len(gradient); w += workers {
			value, err := weightGradient(g, net, steps, inputs, labels, w, prefillSteps, truncation, obj, ringDepth)
			if err != nil {
				errs[workerIndex] = err
				return
			}
			gradient[w] = value
		}
	})
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return gradient, nil
}

func weightGradient(
	g *Graph, net *rafnet.Network, steps []StepValues, inputs [][]float64,
	labels [][]float64, weightIndex, prefillSteps, truncation int, obj objective.Objective,
	ringDepth int,
) (float64, error) {
	derivRing := ring.New(ringDepth, net.NeuronCount())
	inputDeriv := make([]float64, net.NeuronCount())
	spikeDeriv := make([]float64, net.NeuronCount())
	sampleCount := truncation
	if sampleCount < 1 {
		sampleCount = 1
	}

	total := 0.0
	for t := 0; t < prefillSteps+truncation; t++ {
		derivRing.CleanStep()
		cur := derivRing.Current()
		sv := steps[t]

		derivAt := func(neuronIndex, reach int) float64 {
			if reach == 0 {
				return cur[neuronIndex]
			}
			if t-reach < 0 {
				return 0
			}
			v, err := derivRing.At(reach, neuronIndex)
			if err != nil {
				return 0
			}
			return v
		}

		for _, op := range g.Ops {
			switch op.Kind {
			case OpInput:
				sum := 0.0
				if op.BiasWeight == weightIndex {
					sum += 1.0
				}
				for _, el := range op.Elements {
					indicator := 0.0
					if el.WeightIndex == weightIndex {
						indicator = 1.0
					}
					if el.IsExternal {
						sum += indicator * inputs[t][el.ExternalIndex]
						continue
					}
					var value float64
					if el.ReachPastLoops == 0 {
						value = sv.Effective[el.NeuronIndex]
					} else if t-el.ReachPastLoops >= 0 {
						value = steps[t-el.ReachPastLoops].Effective[el.NeuronIndex]
					}
					dval := derivAt(el.NeuronIndex, el.ReachPastLoops)
					sum += indicator*value + net.WeightTable[el.WeightIndex]*dval
				}
				inputDeriv[op.NeuronIndex] = sum
			case OpTransfer:
				x := sv.Input[op.NeuronIndex]
				y := sv.Spike[op.NeuronIndex]
				d := net.Neurons[op.NeuronIndex].Transfer.Derivative(x, y)
				spikeDeriv[op.NeuronIndex] = d * inputDeriv[op.NeuronIndex]
			case OpSpike:
				cur[op.NeuronIndex] = spikeDeriv[op.NeuronIndex]
			case OpSolutionFeature:
				applyReverseFeature(cur, sv, op)
			case OpObjective:
				if t < prefillSteps {
					continue
				}
				tw := t - prefillSteps
				if tw >= len(labels) {
					continue
				}
				prediction := sv.Effective[g.OutputStart : g.OutputStart+g.OutputNeurons]
				dCost, err := obj.DCostDFeature(op.LabelSlot, labels[tw], prediction, sampleCount)
				if err != nil {
					return 0, err
				}
				total += dCost * cur[op.NeuronIndex]
			}
		}
	}
	return total, nil
}

// applyReverseFeature propagates d(value)/dw through a solution-relevant
// feature, overwriting cur in place for every neuron the feature covers.
// Softmax uses the closed-form Jacobian-vector product
// ds_i/dw = s_i*(dx_i/dw - sum_j s_j*dx_j/dw); dropout passes the upstream
// derivative through unchanged for kept neurons and zeroes it for dropped
// ones, since the dropout mask is constant with respect to the weights.
func applyReverseFeature(cur []float64, sv StepValues, op Operation) {
	members := op.Group.Neurons
	switch op.Group.Kind {
	case rafnet.FeatureSoftmax:
		probs := sv.Softmax[members[0]]
		if probs == nil {
			return
		}
		dx := make([]float64, len(members))
		for i, n := range members {
			dx[i] = cur[n]
		}
		weighted := 0.0
		for i := range members {
			weighted += probs[i] * dx[i]
		}
		for i, n := range members {
			cur[n] = probs[i] * (dx[i] - weighted)
		}
	case rafnet.FeatureDropout:
		mask := sv.DropMask[members[0]]
		if mask == nil {
			return
		}
		for i, n := range members {
			if mask[i] {
				cur[n] = 0
			}
		}
	}
}
