// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package autodiff

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"github.com/davids91/rafko-sub003/internal/feature"
	"github.com/davids91/rafko-sub003/internal/objective"
	"github.com/davids91/rafko-sub003/internal/rafkoenv"
	"github.com/davids91/rafko-sub003/internal/rafnet"
	"github.com/davids91/rafko-sub003/internal/settings"
	"github.com/davids91/rafko-sub003/internal/threadgroup"
	"github.com/davids91/rafko-sub003/internal/update"
	"github.com/davids91/rafko-sub003/internal/weightadapter"
)

// Optimizer is the backprop optimizer of spec section 4.K: it owns the
// operation DAG, the pluggable weight updater and the weight adapter that
// keeps a compiled Solution in sync, and drives the minibatch training loop.
type Optimizer struct {
	net      *rafnet.Network
	solution *rafnet.Solution
	graph    *Graph
	obj      objective.Objective
	updater  *update.Updater
	adapter  *weightadapter.Adapter
	tg       *threadgroup.Group
	cfg      *settings.Settings
	rng      *rand.Rand
}

// NewOptimizer builds an Optimizer over an already-compiled net/solution
// pair. variant selects the weight-update rule (spec section 4.I).
func NewOptimizer(
	net *rafnet.Network, solution *rafnet.Solution, obj objective.Objective,
	variant update.Variant, cfg *settings.Settings, tg *threadgroup.Group, rng *rand.Rand,
) (*Optimizer, error) {
	g, err := Build(net, solution)
	if err != nil {
		return nil, fmt.Errorf("autodiff: %w", err)
	}
	return &Optimizer{
		net:      net,
		solution: solution,
		graph:    g,
		obj:      obj,
		updater:  update.New(variant, net, cfg),
		adapter:  weightadapter.New(net, solution),
		tg:       tg,
		cfg:      cfg,
		rng:      rng,
	}, nil
}

// sequenceInputsAndLabels gathers one sequence's external inputs (prefill
// steps included) and its truncation-window labels from env.
func (o *Optimizer) sequenceInputsAndLabels(env rafkoenv.Environment, sequenceIndex int) (inputs, labels [][]float64, err error) {
	prefill := env.PrefillInputsNumber()
	seqSize := env.SequenceSize()
	total := prefill + seqSize

	inputs = make([][]float64, total)
	for t := 0; t < total; t++ {
		v, e := env.GetInputSample(rafkoenv.RawInputIndex(env, sequenceIndex, t))
		if e != nil {
			return nil, nil, fmt.Errorf("autodiff: %w", e)
		}
		inputs[t] = v
	}

	truncation := o.cfg.MemoryTruncation
	if truncation > seqSize {
		truncation = seqSize
	}
	labels = make([][]float64, truncation)
	for t := 0; t < truncation; t++ {
		v, e := env.GetLabelSample(rafkoenv.RawLabelIndex(env, sequenceIndex, t))
		if e != nil {
			return nil, nil, fmt.Errorf("autodiff: %w", e)
		}
		labels[t] = v
	}
	return inputs, labels, nil
}

// GradientForSequence runs the forward pass and the per-weight reverse
// sweep over one training sequence, returning both the gradient and the
// sequence's own (already length-normalized) error.
func (o *Optimizer) GradientForSequence(env rafkoenv.Environment, sequenceIndex int) ([]float64, float64, error) {
	inputs, labels, err := o.sequenceInputsAndLabels(env, sequenceIndex)
	if err != nil {
		return nil, 0, err
	}
	prefill := env.PrefillInputsNumber()
	truncation := len(labels)

	steps, err := ForwardSequence(o.graph, o.net, inputs, ForwardOptions{
		Training:           true,
		DropoutProbability: o.cfg.DropoutProbability,
		RNG:                o.rng,
	})
	if err != nil {
		return nil, 0, err
	}

	gradient, err := Gradient(o.graph, o.net, steps, inputs, labels, prefill, truncation, o.obj, o.tg, o.solution.NetworkMemoryLength)
	if err != nil {
		return nil, 0, err
	}

	errValue, err := o.sequenceError(env, sequenceIndex, steps, prefill, truncation)
	if err != nil {
		return nil, 0, err
	}
	return gradient, errValue, nil
}

// sequenceError scores one sequence's already-computed forward pass against
// env's labels via the objective's batched rectangle form.
func (o *Optimizer) sequenceError(env rafkoenv.Environment, sequenceIndex int, steps []StepValues, prefill, truncation int) (float64, error) {
	predictions := make([][]float64, truncation)
	for t := 0; t < truncation; t++ {
		predictions[t] = steps[prefill+t].Effective[o.graph.OutputStart : o.graph.OutputStart+o.graph.OutputNeurons]
	}
	return o.obj.SetFeaturesForSequences(env, predictions, sequenceIndex, 1, 0, truncation)
}

// SequenceError runs a forward-only (no gradient, no dropout) pass over one
// sequence and scores it, for evaluation outside the training loop.
func (o *Optimizer) SequenceError(env rafkoenv.Environment, sequenceIndex int) (float64, error) {
	inputs, _, err := o.sequenceInputsAndLabels(env, sequenceIndex)
	if err != nil {
		return 0, err
	}
	prefill := env.PrefillInputsNumber()
	truncation := o.cfg.MemoryTruncation
	if truncation > env.SequenceSize() {
		truncation = env.SequenceSize()
	}
	steps, err := ForwardSequence(o.graph, o.net, inputs, ForwardOptions{})
	if err != nil {
		return 0, err
	}
	return o.sequenceError(env, sequenceIndex, steps, prefill, truncation)
}

// Evaluate averages SequenceError over count sequences starting at start,
// adding any L1/L2 regularization penalty the network carries (spec section
// 4.F, applied outside the solve path). FullEvaluation, and through it the
// Context and TrainUntil's periodic error checks, reduce to this.
func (o *Optimizer) Evaluate(env rafkoenv.Environment, start, count int) (float64, error) {
	if count < 1 {
		return o.regularizationError(), nil
	}
	sum := 0.0
	for i := 0; i < count; i++ {
		e, err := o.SequenceError(env, start+i)
		if err != nil {
			return 0, err
		}
		sum += e
	}
	return sum/float64(count) + o.regularizationError(), nil
}

// FullEvaluation scores every sequence in env.
func (o *Optimizer) FullEvaluation(env rafkoenv.Environment) (float64, error) {
	return o.Evaluate(env, 0, env.NumberOfSequences())
}

// StochasticEvaluation scores a seeded random sample of sampleSize
// sequences from env, for the Context façade's stochastic_evaluation
// operation (spec section 4.N): cheaper than FullEvaluation, with a
// reproducible sample given the same seed.
func (o *Optimizer) StochasticEvaluation(env rafkoenv.Environment, seed int64, sampleSize int) (float64, error) {
	numSeq := env.NumberOfSequences()
	if sampleSize > numSeq {
		sampleSize = numSeq
	}
	if sampleSize < 1 {
		return o.regularizationError(), nil
	}
	r := rand.New(rand.NewSource(seed))
	sum := 0.0
	for i := 0; i < sampleSize; i++ {
		e, err := o.SequenceError(env, r.Intn(numSeq))
		if err != nil {
			return 0, err
		}
		sum += e
	}
	return sum/float64(sampleSize) + o.regularizationError(), nil
}

func (o *Optimizer) regularizationError() float64 {
	total := 0.0
	for _, group := range o.net.Features {
		switch group.Kind {
		case rafnet.FeatureL1Reg:
			total += feature.L1Regularization(o.net, group, o.tg)
		case rafnet.FeatureL2Reg:
			total += feature.L2Regularization(o.net, group, o.tg)
		}
	}
	return total
}

// IterateMinibatch draws MinibatchSize random sequences from env, averages
// their gradients, runs them through the weight updater's full step (one
// call for Plain/Momentum/Adam/AMSGrad, two for Nesterov), and refreshes
// the compiled solution's partials, per spec section 4.K's minibatch loop.
// It returns the minibatch's average training error.
func (o *Optimizer) IterateMinibatch(env rafkoenv.Environment) (float64, error) {
	minibatchSize := o.cfg.MinibatchSize
	if minibatchSize < 1 {
		minibatchSize = 1
	}
	numSeq := env.NumberOfSequences()
	if numSeq < 1 {
		return 0, fmt.Errorf("autodiff: environment has no sequences to train on")
	}

	gradientSum := make([]float64, len(o.net.WeightTable))
	errSum := 0.0
	for i := 0; i < minibatchSize; i++ {
		sequenceIndex := o.rng.Intn(numSeq)
		gradient, errValue, err := o.GradientForSequence(env, sequenceIndex)
		if err != nil {
			return 0, err
		}
		floats.Add(gradientSum, gradient)
		errSum += errValue
	}
	floats.Scale(1/float64(minibatchSize), gradientSum)

	o.updater.Start()
	for !o.updater.IsFinished() {
		if err := o.updater.Iterate(gradientSum, o.tg); err != nil {
			return 0, err
		}
	}
	o.adapter.UpdateAll(o.tg)

	return errSum / float64(minibatchSize), nil
}

// TrainUntil runs minibatch iterations against trainEnv until maxIterations
// is reached or a configured training strategy stops it early: every
// TrainingRelevantLoopCount iterations testEnv is fully evaluated, and
// EarlyStopping ends the run once the training error falls more than
// EarlyStoppingDelta below it; StopIfTrainingErrorZero ends the run as soon
// as the training error drops to InsignificantChanges or below (spec
// section 6, section 4.K).
func (o *Optimizer) TrainUntil(trainEnv, testEnv rafkoenv.Environment, maxIterations int) (iterations int, trainingError, testingError float64, err error) {
	cadence := o.cfg.TrainingRelevantLoopCount
	if cadence < 1 {
		cadence = 1
	}
	for iterations = 0; iterations < maxIterations; iterations++ {
		trainingError, err = o.IterateMinibatch(trainEnv)
		if err != nil {
			return
		}
		if o.cfg.HasStrategy(settings.StopIfTrainingErrorZero) && trainingError <= o.cfg.InsignificantChanges {
			iterations++
			return
		}
		if (iterations+1)%cadence == 0 {
			testingError, err = o.FullEvaluation(testEnv)
			if err != nil {
				return
			}
			if o.cfg.HasStrategy(settings.EarlyStopping) && trainingError < testingError-o.cfg.EarlyStoppingDelta {
				iterations++
				return
			}
		}
	}
	return
}

// Graph exposes the compiled operation DAG, for callers (the Q-trainer's
// target-network sync, diagnostics) that need to inspect it directly.
func (o *Optimizer) Graph() *Graph { return o.graph }
