// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rafkoenv is the external collaborator spec section 6 fixes the
// interface of but leaves the implementation of to the caller: an ordered
// sequence of input/label samples (Environment) for supervised training,
// and a reinforcement-learning world (ReinforcementEnvironment) for the
// Q-trainer. Environment follows the shape of a small, paradigm-agnostic
// counter/input contract a model drives, narrowed to the fixed
// sequence-of-samples paradigm this engine consumes.
package rafkoenv

import "fmt"

// Environment is the supervised-training collaborator of spec section 6:
// ordered sequences of input vectors and label vectors, grouped into
// samples of sequence_size steps preceded by prefill_inputs_number warm-up
// steps with no associated label.
type Environment interface {
	InputSize() int
	FeatureSize() int
	NumberOfSequences() int
	SequenceSize() int
	PrefillInputsNumber() int

	// GetInputSample returns the input vector at the given raw (flattened
	// across every sequence, prefill included) index.
	GetInputSample(rawIndex int) ([]float64, error)

	// GetLabelSample returns the label vector for the given raw label
	// index (flattened across every sequence, sequence_size each, no
	// prefill slots).
	GetLabelSample(rawIndex int) ([]float64, error)

	// PushState/PopState checkpoint and restore the environment's internal
	// error counters (sample-level miss counts used for diagnostics), per
	// SPEC_FULL.md section 4 — not the sample cursor, which stays
	// reentrant across concurrent readers.
	PushState()
	PopState()
}

// NumberOfLabelSamples returns number_of_sequences * sequence_size, the
// derived constant from spec section 3.
func NumberOfLabelSamples(env Environment) int {
	return env.NumberOfSequences() * env.SequenceSize()
}

// RawInputIndex returns the flattened input index of step
// stepInSequence (0-based, including prefill) of the given sequence.
func RawInputIndex(env Environment, sequenceIndex, stepInSequence int) int {
	stepsPerSequence := env.PrefillInputsNumber() + env.SequenceSize()
	return sequenceIndex*stepsPerSequence + stepInSequence
}

// RawLabelIndex returns the flattened label index of step
// stepInSequence (0-based, excluding prefill) of the given sequence.
func RawLabelIndex(env Environment, sequenceIndex, stepInSequence int) int {
	return sequenceIndex*env.SequenceSize() + stepInSequence
}

// SliceEnvironment is an in-memory Environment over dense input/label
// slices, sized for a fixed sequence_size and prefill_inputs_number. It is
// the straightforward fixture implementation scenario fixtures and tests
// build directly, analogous to a fixed in-memory table of samples.
type SliceEnvironment struct {
	inputs               [][]float64
	labels               [][]float64
	inputSize            int
	featureSize          int
	sequenceSize         int
	prefillInputsNumber  int
	missedSamples        int
	pushedMissedSamples  []int
}

// NewSliceEnvironment builds a SliceEnvironment. inputs must contain
// numberOfSequences*(sequenceSize+prefillInputsNumber) vectors of
// inputSize; labels must contain numberOfSequences*sequenceSize vectors of
// featureSize.
func NewSliceEnvironment(inputs, labels [][]float64, inputSize, featureSize, sequenceSize, prefillInputsNumber int) (*SliceEnvironment, error) {
	if sequenceSize <= 0 {
		return nil, fmt.Errorf("rafkoenv: sequence size must be positive, got %d", sequenceSize)
	}
	stepsPerSequence := sequenceSize + prefillInputsNumber
	if len(inputs)%stepsPerSequence != 0 {
		return nil, fmt.Errorf("rafkoenv: %d input samples is not a multiple of %d steps per sequence", len(inputs), stepsPerSequence)
	}
	numberOfSequences := len(inputs) / stepsPerSequence
	if len(labels) != numberOfSequences*sequenceSize {
		return nil, fmt.Errorf("rafkoenv: got %d label samples, want %d", len(labels), numberOfSequences*sequenceSize)
	}
	for i, v := range inputs {
		if len(v) != inputSize {
			return nil, fmt.Errorf("rafkoenv: input sample %d has size %d, want %d", i, len(v), inputSize)
		}
	}
	for i, v := range labels {
		if len(v) != featureSize {
			return nil, fmt.Errorf("rafkoenv: label sample %d has size %d, want %d", i, len(v), featureSize)
		}
	}
	return &SliceEnvironment{
		inputs:              inputs,
		labels:              labels,
		inputSize:           inputSize,
		featureSize:         featureSize,
		sequenceSize:        sequenceSize,
		prefillInputsNumber: prefillInputsNumber,
	}, nil
}

func (e *SliceEnvironment) InputSize() int   { return e.inputSize }
func (e *SliceEnvironment) FeatureSize() int { return e.featureSize }
func (e *SliceEnvironment) NumberOfSequences() int {
	return len(e.inputs) / (e.sequenceSize + e.prefillInputsNumber)
}
func (e *SliceEnvironment) SequenceSize() int        { return e.sequenceSize }
func (e *SliceEnvironment) PrefillInputsNumber() int { return e.prefillInputsNumber }

func (e *SliceEnvironment) GetInputSample(rawIndex int) ([]float64, error) {
	if rawIndex < 0 || rawIndex >= len(e.inputs) {
		return nil, fmt.Errorf("rafkoenv: input sample index %d out of [0,%d)", rawIndex, len(e.inputs))
	}
	return e.inputs[rawIndex], nil
}

func (e *SliceEnvironment) GetLabelSample(rawIndex int) ([]float64, error) {
	if rawIndex < 0 || rawIndex >= len(e.labels) {
		return nil, fmt.Errorf("rafkoenv: label sample index %d out of [0,%d)", rawIndex, len(e.labels))
	}
	return e.labels[rawIndex], nil
}

// RecordMiss bumps the internal miss counter checkpointed by
// PushState/PopState; diagnostics use it to report how many evaluated
// samples fell outside a caller-defined tolerance.
func (e *SliceEnvironment) RecordMiss() { e.missedSamples++ }

// MissedSamples returns the current miss counter.
func (e *SliceEnvironment) MissedSamples() int { return e.missedSamples }

func (e *SliceEnvironment) PushState() {
	e.pushedMissedSamples = append(e.pushedMissedSamples, e.missedSamples)
}

func (e *SliceEnvironment) PopState() {
	n := len(e.pushedMissedSamples)
	if n == 0 {
		return
	}
	e.missedSamples = e.pushedMissedSamples[n-1]
	e.pushedMissedSamples = e.pushedMissedSamples[:n-1]
}
