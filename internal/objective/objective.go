// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package objective implements the cost-function collaborator of spec
// section 4.J: a scalar loss plus its per-label derivative, and the
// batched rectangle-aggregate form (SetFeaturesForSequences) the context
// uses to evaluate a run of sequences at once, grounded on
// rafko_objective.hpp's set_features_for_sequences shape.
package objective

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/davids91/rafko-sub003/internal/rafkoenv"
	"github.com/davids91/rafko-sub003/internal/raferr"
)

// Kind selects a cost function.
type Kind int

const (
	// MSE is the mean squared error, averaged over the feature dimension.
	MSE Kind = iota
	// CrossEntropy is the binary cross-entropy cost, averaged over the
	// feature dimension; predictions are expected in (0,1).
	CrossEntropy
)

// Objective bundles a cost Kind with the operations spec section 4.J
// requires of it.
type Objective struct {
	Kind Kind
}

// New builds an Objective of the given kind.
func New(kind Kind) Objective { return Objective{Kind: kind} }

// FeatureError returns the average per-feature cost between label and
// prediction, normalized by sampleCount (the number of label samples the
// caller is jointly evaluating, for gradient-averaging consistency with
// d_cost_d_feature).
func (o Objective) FeatureError(label, prediction []float64, sampleCount int) (float64, error) {
	if len(label) != len(prediction) {
		return 0, fmt.Errorf("objective: label/prediction size mismatch %d vs %d: %w", len(label), len(prediction), raferr.ErrShapeMismatch)
	}
	if sampleCount < 1 {
		sampleCount = 1
	}
	pointwise := make([]float64, len(label))
	for i := range label {
		pointwise[i] = o.pointwiseError(label[i], prediction[i])
	}
	return floats.Sum(pointwise) / float64(len(label)*sampleCount), nil
}

func (o Objective) pointwiseError(label, prediction float64) float64 {
	switch o.Kind {
	case CrossEntropy:
		p := clampProbability(prediction)
		return -(label*math.Log(p) + (1-label)*math.Log(1-p))
	default: // MSE
		d := label - prediction
		return d * d
	}
}

// DCostDFeature returns the derivative of the per-label cost with respect
// to prediction[k], normalized the same way FeatureError is, for use by
// the backprop optimizer's objective operation.
func (o Objective) DCostDFeature(k int, label, prediction []float64, sampleCount int) (float64, error) {
	if len(label) != len(prediction) {
		return 0, fmt.Errorf("objective: label/prediction size mismatch %d vs %d: %w", len(label), len(prediction), raferr.ErrShapeMismatch)
	}
	if k < 0 || k >= len(label) {
		return 0, fmt.Errorf("objective: feature index %d out of [0,%d): %w", k, len(label), raferr.ErrOutOfBounds)
	}
	if sampleCount < 1 {
		sampleCount = 1
	}
	norm := float64(len(label) * sampleCount)
	switch o.Kind {
	case CrossEntropy:
		p := clampProbability(prediction[k])
		return (-label[k]/p + (1-label[k])/(1-p)) / norm, nil
	default: // MSE
		return -2 * (label[k] - prediction[k]) / norm, nil
	}
}

func clampProbability(p float64) float64 {
	const eps = 1e-12
	if p < eps {
		return eps
	}
	if p > 1-eps {
		return 1 - eps
	}
	return p
}

// SetFeaturesForSequences aggregates FeatureError over a rectangle of
// (sequence, in-sequence-index) pairs: sequencesToEvaluate sequences
// starting at sequenceStart, each restricted to steps
// [startInSequence, startInSequence+truncation). predictions holds one
// vector per evaluated step, laid out sequence-major
// (predictions[s*truncation + t] is step t of the s-th evaluated
// sequence), mirroring how the context's per-thread output buffers are
// filled in spec section 4.N.
func (o Objective) SetFeaturesForSequences(
	env rafkoenv.Environment, predictions [][]float64,
	sequenceStart, sequencesToEvaluate, startInSequence, truncation int,
) (float64, error) {
	if sequenceStart < 0 || sequenceStart+sequencesToEvaluate > env.NumberOfSequences() {
		return 0, fmt.Errorf("objective: sequence range [%d,%d) out of [0,%d): %w",
			sequenceStart, sequenceStart+sequencesToEvaluate, env.NumberOfSequences(), raferr.ErrShapeMismatch)
	}
	sequenceSize := env.SequenceSize()
	if startInSequence < 0 || startInSequence+truncation > sequenceSize {
		return 0, fmt.Errorf("objective: in-sequence window [%d,%d) out of [0,%d): %w",
			startInSequence, startInSequence+truncation, sequenceSize, raferr.ErrShapeMismatch)
	}

	sampleCount := sequencesToEvaluate * truncation
	errSum := 0.0
	for s := 0; s < sequencesToEvaluate; s++ {
		for t := 0; t < truncation; t++ {
			prediction := predictions[s*truncation+t]
			rawLabelIndex := rafkoenv.RawLabelIndex(env, sequenceStart+s, startInSequence+t)
			label, err := env.GetLabelSample(rawLabelIndex)
			if err != nil {
				return 0, fmt.Errorf("objective: %w", err)
			}
			stepErr, err := o.FeatureError(label, prediction, sampleCount)
			if err != nil {
				return 0, err
			}
			errSum += stepErr
		}
	}
	return errSum, nil
}
