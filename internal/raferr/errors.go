// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package raferr defines the fatal, structured failure kinds the engine can
// surface at the boundary of a solve/iterate/incorporate call, per spec
// section 7 of the training engine design.
package raferr

import "errors"

// Sentinel errors for the fatal conditions the engine recognizes. An error
// reporting one of these conditions wraps the matching sentinel with
// fmt.Errorf("...: %w", ...) so callers can test with errors.Is; other
// failures (bad arguments, invalid networks, misuse of the router) are
// returned as plain errors that wrap none of them.
var (
	// ErrShapeMismatch indicates an input/output size disagreement, or a
	// sequence interval that runs outside the bounds of its environment.
	ErrShapeMismatch = errors.New("rafko: shape mismatch")

	// ErrEmptyPlan indicates a Solution with zero rows was handed to the
	// solver, or the router could not make progress on an empty subset.
	ErrEmptyPlan = errors.New("rafko: empty plan")

	// ErrUnsupportedRecurrence indicates a reach_past_loops > 0 synapse
	// referencing a neuron other than itself; only self-recurrence has a
	// defined gradient under the backprop optimizer.
	ErrUnsupportedRecurrence = errors.New("rafko: recurrent dependency not supported")

	// ErrOutOfBounds indicates a ring past-offset, neuron index, or weight
	// index outside its valid range.
	ErrOutOfBounds = errors.New("rafko: index out of bounds")

	// ErrMissingObjective indicates a Context was constructed without an
	// Objective. See DESIGN.md for why this replaces the original's
	// set-then-clear missing-cost-function flag.
	ErrMissingObjective = errors.New("rafko: missing objective")
)
