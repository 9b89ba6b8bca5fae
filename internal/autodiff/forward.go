// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package autodiff

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/davids91/rafko-sub003/internal/rafnet"
	"github.com/davids91/rafko-sub003/internal/settings"
)

// ForwardOptions configures one ForwardSequence call.
type ForwardOptions struct {
	Training           bool
	DropoutProbability float64
	RNG                *rand.Rand
}

// StepValues holds every operation's per-neuron value at one timestep, as
// produced by ForwardSequence. Input, Spike and Effective are parallel to
// the network's neuron indices; Input is the pre-transfer weighted sum,
// Spike the post-transfer value, and Effective the value downstream
// consumers (and the next timestep's self-recurrent reads) actually see —
// equal to Spike unless a solution-relevant feature overwrote it.
type StepValues struct {
	Input     []float64
	Spike     []float64
	Effective []float64

	// Softmax holds, for every OpSolutionFeature op of kind SOFTMAX that
	// fired this step, the resulting probabilities in Group.Neurons order
	// — the reverse sweep's Jacobian needs these, not just Effective.
	Softmax map[int][]float64
	// DropMask holds, for every OpSolutionFeature op of kind DROPOUT that
	// fired this step, which of Group.Neurons were zeroed.
	DropMask map[int][]bool
}

// ForwardSequence evaluates g against a sequence of external input vectors
// (one per timestep, prefill steps included), returning one StepValues per
// timestep. Self-recurrent reads (reach_past_loops > 0) of a step before the
// sequence began (t - reach < 0) see zero, the same convention
// ring.Buffer.Reset uses.
func ForwardSequence(g *Graph, net *rafnet.Network, inputs [][]float64, opts ForwardOptions) ([]StepValues, error) {
	steps := make([]StepValues, len(inputs))
	neuronCount := net.NeuronCount()

	for t, in := range inputs {
		sv := StepValues{
			Input:     make([]float64, neuronCount),
			Spike:     make([]float64, neuronCount),
			Effective: make([]float64, neuronCount),
		}

		valueAt := func(neuronIndex, reach int) float64 {
			if reach == 0 {
				return sv.Effective[neuronIndex]
			}
			if t-reach < 0 {
				return 0
			}
			return steps[t-reach].Effective[neuronIndex]
		}

		for _, op := range g.Ops {
			switch op.Kind {
			case OpInput:
				sum := net.WeightTable[op.BiasWeight]
				for _, el := range op.Elements {
					var v float64
					if el.IsExternal {
						if el.ExternalIndex < 0 || el.ExternalIndex >= len(in) {
							return nil, fmt.Errorf("autodiff: external input index %d out of [0,%d) at step %d", el.ExternalIndex, len(in), t)
						}
						v = in[el.ExternalIndex]
					} else {
						v = valueAt(el.NeuronIndex, el.ReachPastLoops)
					}
					sum += v * net.WeightTable[el.WeightIndex]
				}
				sv.Input[op.NeuronIndex] = sum
			case OpTransfer:
				x := sv.Input[op.NeuronIndex]
				sv.Spike[op.NeuronIndex] = net.Neurons[op.NeuronIndex].Transfer.Apply(x)
			case OpSpike:
				sv.Effective[op.NeuronIndex] = sv.Spike[op.NeuronIndex]
			case OpSolutionFeature:
				if err := applyForwardFeature(&sv, op, opts); err != nil {
					return nil, err
				}
			case OpObjective:
				// No forward value: the objective's contribution is only
				// needed by the reverse sweep, seeded from its prediction.
			}
		}

		steps[t] = sv
	}
	return steps, nil
}

func applyForwardFeature(sv *StepValues, op Operation, opts ForwardOptions) error {
	members := op.Group.Neurons
	raw := make([]float64, len(members))
	for i, n := range members {
		raw[i] = sv.Effective[n]
	}

	switch op.Group.Kind {
	case rafnet.FeatureSoftmax:
		probs := softmaxValues(raw)
		if sv.Softmax == nil {
			sv.Softmax = make(map[int][]float64)
		}
		// Groups are disjoint (spec section 3), so the first member's
		// neuron index is a unique, stable key for this group's result.
		sv.Softmax[members[0]] = probs
		for i, n := range members {
			sv.Effective[n] = probs[i]
		}
	case rafnet.FeatureDropout:
		mask := make([]bool, len(members))
		if opts.Training && opts.DropoutProbability > 0 {
			if opts.RNG == nil {
				return fmt.Errorf("autodiff: dropout requested without an RNG")
			}
			for i, n := range members {
				if opts.RNG.Float64() < opts.DropoutProbability {
					mask[i] = true
					sv.Effective[n] = 0
				}
			}
		}
		if sv.DropMask == nil {
			sv.DropMask = make(map[int][]bool)
		}
		sv.DropMask[members[0]] = mask
	}
	return nil
}

// softmaxValues computes a numerically stable softmax over raw, the same
// max-subtraction shape internal/feature.Softmax uses for the live solve
// path, specialized to a single already-collected slice (no thread group:
// these groups are small by construction, and the caller may itself already
// be one of many parallel per-weight sweeps).
func softmaxValues(raw []float64) []float64 {
	maxValue := -math.MaxFloat64
	for _, v := range raw {
		if v > maxValue {
			maxValue = v
		}
	}
	out := make([]float64, len(raw))
	sum := 0.0
	for i, v := range raw {
		out[i] = math.Exp(v - maxValue)
		sum += out[i]
	}
	if sum < settings.MachineEpsilon {
		sum = settings.MachineEpsilon
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
