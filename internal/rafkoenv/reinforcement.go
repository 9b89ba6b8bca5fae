// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rafkoenv

// ActionDistribution describes the per-component Gaussian the Q-trainer
// samples from while exploring (spec section 4.M step 1): Mean and
// StdDev each have ActionSize entries.
type ActionDistribution struct {
	Mean   []float64
	StdDev []float64
}

// StateTransition is the result of stepping a ReinforcementEnvironment:
// the state reached (absent if the environment has no further state),
// the immediate q-value/reward of the transition, whether the reached
// state is terminal, and opaque caller user data carried along for
// bookkeeping (spec section 6).
type StateTransition struct {
	ResultState []float64
	HasState    bool
	QValue      float64
	Terminal    bool
	UserData    any
}

// ReinforcementEnvironment is the Q-trainer's world collaborator (spec
// section 6). Next advances the environment's own internal cursor; the
// pure NextFrom variant is required by the Q-set's TD lookahead, which
// must probe hypothetical transitions without mutating the live episode.
type ReinforcementEnvironment interface {
	StateSize() int
	ActionSize() int
	ActionProperties() ActionDistribution

	Reset()
	CurrentState() ([]float64, bool)

	// Next steps the live episode forward by action, returning the
	// resulting transition.
	Next(action []float64) StateTransition

	// NextFrom is a pure variant of Next: it must not mutate the live
	// episode, only report what stepping from state with action would
	// produce. Required by the Q-set's TD lookahead (spec section 4.L).
	NextFrom(state, action []float64) StateTransition
}
