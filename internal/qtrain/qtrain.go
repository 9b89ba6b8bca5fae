// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package qtrain implements the exploration/exploitation reinforcement
// loop of spec section 4.M: walk a reinforcement environment with the
// policy network's (occasionally randomized) action, incorporate the
// discovered transitions into a Q-set, train the policy network
// supervised on the Q-set's best sequences, and periodically publish the
// policy's weights to a stable target network used for action selection
// elsewhere.
package qtrain

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/davids91/rafko-sub003/internal/autodiff"
	"github.com/davids91/rafko-sub003/internal/objective"
	"github.com/davids91/rafko-sub003/internal/qset"
	"github.com/davids91/rafko-sub003/internal/rafkoenv"
	"github.com/davids91/rafko-sub003/internal/rafnet"
	"github.com/davids91/rafko-sub003/internal/ring"
	"github.com/davids91/rafko-sub003/internal/settings"
	"github.com/davids91/rafko-sub003/internal/solutionsolver"
	"github.com/davids91/rafko-sub003/internal/threadgroup"
	"github.com/davids91/rafko-sub003/internal/update"
	"github.com/davids91/rafko-sub003/internal/weightadapter"
)

// Trainer is the Q-trainer of spec section 4.M. PolicyOpt trains against
// the Q-set's generated sequences; TargetNet is a separate, identically
// shaped network that only ever receives a straight copy of the policy's
// weights, so it can be handed to a Context for stable action selection
// while the policy is mid-update.
type Trainer struct {
	policyNet      *rafnet.Network
	policySolution *rafnet.Solution
	policyOpt      *autodiff.Optimizer
	policyBuf      *ring.Buffer

	targetNet      *rafnet.Network
	targetAdapter  *weightadapter.Adapter

	qs  *qset.Set
	cfg *settings.Settings
	tg  *threadgroup.Group
	rng *rand.Rand

	iterations int
}

// NewTrainer wires a Trainer from an already-compiled policy network and
// an identically shaped target network (same topology, its own weight
// table — typically built by compiling a deep copy of the policy network).
func NewTrainer(
	policyNet *rafnet.Network, policySolution *rafnet.Solution,
	targetNet *rafnet.Network, targetSolution *rafnet.Solution,
	obj objective.Objective, variant update.Variant, actionSlotCount int,
	cfg *settings.Settings, tg *threadgroup.Group, rng *rand.Rand,
) (*Trainer, error) {
	policyOpt, err := autodiff.NewOptimizer(policyNet, policySolution, obj, variant, cfg, tg, rng)
	if err != nil {
		return nil, fmt.Errorf("qtrain: %w", err)
	}
	return &Trainer{
		policyNet:      policyNet,
		policySolution: policySolution,
		policyOpt:      policyOpt,
		policyBuf:      ring.New(policySolution.NetworkMemoryLength, policySolution.NeuronNumber),
		targetNet:      targetNet,
		targetAdapter:  weightadapter.New(targetNet, targetSolution),
		qs:             qset.New(actionSlotCount, cfg, tg),
		cfg:            cfg,
		tg:             tg,
		rng:            rng,
	}, nil
}

// QSet exposes the accumulated experience set, for diagnostics and tests.
func (tr *Trainer) QSet() *qset.Set { return tr.qs }

// selectAction runs the policy network forward on state and replaces each
// action component with a draw from env's action distribution with
// probability ExplorationRatio (spec section 4.M step 1).
func (tr *Trainer) selectAction(env rafkoenv.ReinforcementEnvironment, state []float64, reset bool) ([]float64, error) {
	raw, err := solutionsolver.Solve(tr.policySolution, tr.policyBuf, state, tr.tg, solutionsolver.Options{Reset: reset})
	if err != nil {
		return nil, fmt.Errorf("qtrain: %w", err)
	}
	action := append([]float64(nil), raw...)
	props := env.ActionProperties()
	for i := range action {
		if tr.rng.Float64() >= tr.cfg.ExplorationRatio {
			continue
		}
		sample := distuv.Normal{Mu: props.Mean[i], Sigma: props.StdDev[i], Src: tr.rng}
		action[i] = sample.Rand()
	}
	return action, nil
}

// Discover walks env for up to MaxDiscoveryLength steps using the policy
// network's (exploration-perturbed) actions, then incorporates every
// visited (state, action, q) triple into the Q-set (spec section 4.M
// steps 2-3).
func (tr *Trainer) Discover(env rafkoenv.ReinforcementEnvironment) error {
	env.Reset()
	state, ok := env.CurrentState()
	if !ok {
		return nil
	}

	var states, actions [][]float64
	var qValues []float64
	reset := true
	for step := 0; step < tr.cfg.MaxDiscoveryLength; step++ {
		action, err := tr.selectAction(env, state, reset)
		if err != nil {
			return err
		}
		reset = false

		transition := env.Next(action)
		states = append(states, state)
		actions = append(actions, action)
		qValues = append(qValues, transition.QValue)

		if !transition.HasState || transition.Terminal {
			break
		}
		state = transition.ResultState
	}
	if len(states) == 0 {
		return nil
	}
	return tr.qs.Incorporate(env, states, actions, qValues)
}

// TrainOnQSet trains the policy network supervised for QSetTrainingEpochs
// minibatch iterations, on sequences generated from the Q-set's current
// best-action chains (spec section 4.M step 4). preferredLen must match
// the policy network's expected sequence_size.
func (tr *Trainer) TrainOnQSet(env rafkoenv.ReinforcementEnvironment, preferredLen int) (float64, error) {
	sequences := tr.qs.GenerateBestSequences(env, preferredLen)
	if len(sequences) == 0 {
		return 0, nil
	}

	var inputs, labels [][]float64
	for _, seq := range sequences {
		inputs = append(inputs, seq.States...)
		labels = append(labels, seq.Actions...)
	}
	inputSize := len(inputs[0])
	featureSize := len(labels[0])
	trainEnv, err := rafkoenv.NewSliceEnvironment(inputs, labels, inputSize, featureSize, preferredLen, 0)
	if err != nil {
		return 0, fmt.Errorf("qtrain: %w", err)
	}

	epochs := tr.cfg.QSetTrainingEpochs
	if epochs < 1 {
		epochs = 1
	}
	lastError := 0.0
	for i := 0; i < epochs; i++ {
		lastError, err = tr.policyOpt.IterateMinibatch(trainEnv)
		if err != nil {
			return 0, err
		}
	}
	return lastError, nil
}

// syncTargetNetwork copies the policy network's weight table into the
// target network and refreshes its compiled partials, per spec section
// 4.M step 5.
func (tr *Trainer) syncTargetNetwork() {
	copy(tr.targetNet.WeightTable, tr.policyNet.WeightTable)
	tr.targetAdapter.UpdateAll(tr.tg)
}

// Iterate runs one full Q-trainer cycle: discovery, Q-set incorporation,
// supervised training, and — every TrainingRelevantLoopCount iterations —
// a target network sync (spec section 4.M).
func (tr *Trainer) Iterate(env rafkoenv.ReinforcementEnvironment, sequenceSize int) (trainingError float64, err error) {
	if err = tr.Discover(env); err != nil {
		return 0, err
	}
	trainingError, err = tr.TrainOnQSet(env, sequenceSize)
	if err != nil {
		return 0, err
	}

	tr.iterations++
	cadence := tr.cfg.TrainingRelevantLoopCount
	if cadence < 1 {
		cadence = 1
	}
	if tr.iterations%cadence == 0 {
		tr.syncTargetNetwork()
	}
	return trainingError, nil
}
