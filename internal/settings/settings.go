// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package settings holds the configuration recognized by every component of
// the training engine: learning rates, thread budgets, tolerances. Fields
// follow a tagged-struct convention (see decoder.SoftMax.Lrate) of
// documenting a default value inline via a struct tag, applied by Defaults.
package settings


// TrainingStrategy is a bitset of stop/continue policies for the backprop
// optimizer's iteration loop.
type TrainingStrategy uint8

const (
	// StopIfTrainingErrorZero ends training once the training error reaches
	// (approximately) zero.
	StopIfTrainingErrorZero TrainingStrategy = 1 << iota
	// EarlyStopping ends training once the training error falls more than
	// EarlyStoppingDelta below the testing error, indicating the testing
	// error is no longer tracking improvement.
	EarlyStopping
)

// Settings collects every tunable option named in spec section 6. A zero
// value is not usable as-is; Defaults returns a fully populated value to
// start from.
type Settings struct {
	// LearningRate scales the gradient in every weight updater variant.
	LearningRate float64 `default:"0.1"`

	// Gamma is the momentum/Nesterov decay factor, and also the Q-learning
	// lookahead discount factor.
	Gamma float64 `default:"0.9"`

	// Beta is the Adam/AMSGrad first-moment decay.
	Beta float64 `default:"0.9"`

	// Beta2 is the Adam/AMSGrad second-moment decay.
	Beta2 float64 `default:"0.999"`

	// Epsilon stabilizes the Adam/AMSGrad denominator.
	Epsilon float64 `default:"1e-8"`

	// SqrtEpsilon bounds the finite-difference probe scale used by
	// approximation-based gradient checks (see DESIGN.md Open Question 2 —
	// unused by the analytic autodiff path, kept for interface completeness).
	SqrtEpsilon float64 `default:"1e-7"`

	// StepSize scales the approximation probe (unused by the analytic
	// autodiff path; see DESIGN.md Open Question 2).
	StepSize float64 `default:"0.1"`

	// Zetta dampens the approximation probe when both directions worsen
	// (unused by the analytic autodiff path; see DESIGN.md Open Question 2).
	Zetta float64 `default:"0.5"`

	// MinibatchSize is the number of sequences drawn per stochastic
	// training step.
	MinibatchSize int `default:"32"`

	// MemoryTruncation bounds the number of leading timesteps per sequence
	// for which the backprop optimizer computes derivatives.
	MemoryTruncation int `default:"10"`

	// MaxSolveThreads names the inner thread budget: partials within a row,
	// neurons within a partial evaluation. No component reads this field;
	// the compiler takes its column count from compiler.Options, and every
	// solve runs on the threadgroup.Group its caller passes in.
	MaxSolveThreads int `default:"4"`

	// MaxProcessingThreads names the outer thread budget: sequences,
	// weights. No component reads this field; the optimizer's worker count
	// is that of the threadgroup.Group it is built with.
	MaxProcessingThreads int `default:"4"`

	// DropoutProbability is the per-neuron zeroing probability applied by
	// the dropout feature while the context is in training mode.
	DropoutProbability float64 `default:"0"`

	// Delta is the state-match MSE tolerance used by the Q-set lookup.
	Delta float64 `default:"0.01"`

	// Delta2 is the action-match MSE tolerance used when incorporating a
	// new action into an existing Q-set entry.
	Delta2 float64 `default:"0.01"`

	// LookAheadCount is the number of TD-bootstrap lookahead steps used by
	// the Q-set's incorporate.
	LookAheadCount int `default:"3"`

	// OverwriteQThreshold is the percentage by which a new action's TD
	// value must exceed an entry's minimum stored q-value before it
	// displaces a slot (sign-aware: see qset.Set.Incorporate).
	OverwriteQThreshold float64 `default:"0.1"`

	// TrainingStrategyFlags selects the stop/continue policies in effect.
	TrainingStrategyFlags TrainingStrategy `default:"0"`

	// EarlyStoppingDelta is the training/testing error gap that triggers
	// EarlyStopping, when set.
	EarlyStoppingDelta float64 `default:"0.05"`

	// TrainingRelevantLoopCount is the cadence, in iterations, at which the
	// Q-trainer syncs its target network and the backprop optimizer
	// computes a periodic training/testing error.
	TrainingRelevantLoopCount int `default:"50"`

	// ToleranceLoopValue is a full-re-evaluation cadence, in iterations. No
	// component reads it: the Context runs no periodic full re-evaluation,
	// and FullEvaluation runs only when called.
	ToleranceLoopValue int `default:"100"`

	// InsignificantChanges is the training-error threshold at or below which
	// StopIfTrainingErrorZero ends Optimizer.TrainUntil. It is not compared
	// against weight deltas, and no running optimizer or updater state is
	// reset on its account.
	InsignificantChanges float64 `default:"1e-9"`

	// ExplorationRatio is the probability, per Q-trainer iteration, that an
	// action component is replaced by a draw from the environment's action
	// distribution instead of the policy network's output.
	ExplorationRatio float64 `default:"0.2"`

	// MaxDiscoveryLength bounds the number of environment steps walked per
	// Q-trainer iteration before forcing a stop.
	MaxDiscoveryLength int `default:"100"`

	// QSetTrainingEpochs is the number of optimizer iterations run against
	// the Q-set's generated sequences per Q-trainer iteration.
	QSetTrainingEpochs int `default:"4"`

	// MaxSetSize caps the number of entries retained by the Q-set.
	MaxSetSize int `default:"1000"`
}

// HasStrategy reports whether the given strategy flag is set.
func (s *Settings) HasStrategy(flag TrainingStrategy) bool {
	return s.TrainingStrategyFlags&flag != 0
}

// Defaults returns a Settings populated with every field's documented
// default. Callers typically take this value and override only the fields
// relevant to their scenario.
func Defaults() Settings {
	return Settings{
		LearningRate:              0.1,
		Gamma:                     0.9,
		Beta:                      0.9,
		Beta2:                     0.999,
		Epsilon:                   1e-8,
		SqrtEpsilon:               1e-7,
		StepSize:                  0.1,
		Zetta:                     0.5,
		MinibatchSize:             32,
		MemoryTruncation:          10,
		MaxSolveThreads:           4,
		MaxProcessingThreads:      4,
		DropoutProbability:        0,
		Delta:                     0.01,
		Delta2:                    0.01,
		LookAheadCount:            3,
		OverwriteQThreshold:       0.1,
		TrainingStrategyFlags:     0,
		EarlyStoppingDelta:        0.05,
		TrainingRelevantLoopCount: 50,
		ToleranceLoopValue:        100,
		InsignificantChanges:      1e-9,
		ExplorationRatio:          0.2,
		MaxDiscoveryLength:        100,
		QSetTrainingEpochs:        4,
		MaxSetSize:                1000,
	}
}

// MachineEpsilon is the clamp floor used by the softmax feature's exp-sum,
// per spec section 4.F ("clamped below by machine epsilon").
const MachineEpsilon = 2.220446049250313e-16
