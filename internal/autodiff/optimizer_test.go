// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package autodiff_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davids91/rafko-sub003/internal/autodiff"
	"github.com/davids91/rafko-sub003/internal/compiler"
	"github.com/davids91/rafko-sub003/internal/objective"
	"github.com/davids91/rafko-sub003/internal/rafkoenv"
	"github.com/davids91/rafko-sub003/internal/rafnet"
	"github.com/davids91/rafko-sub003/internal/settings"
	"github.com/davids91/rafko-sub003/internal/synapse"
	"github.com/davids91/rafko-sub003/internal/threadgroup"
	"github.com/davids91/rafko-sub003/internal/update"
)

// recurrentNetwork is a 1-neuron network feeding its own previous output
// back in (self-recurrence at reach_past_loops=1), plus the external input,
// so the gradient check exercises the derivative ring.
func recurrentNetwork() *rafnet.Network {
	return &rafnet.Network{
		WeightTable: []float64{0.6, -0.2, 0.3},
		InputSize:   1,
		Neurons: []rafnet.Neuron{
			{
				Transfer: rafnet.TransferTanh,
				InputIndices: []synapse.Interval{
					{Start: synapse.ArrayIndexFromExternal(0), Size: 1},
					{Start: 0, Size: 1, ReachPastLoops: 1},
				},
				InputWeights: []synapse.Interval{{Start: 0, Size: 3}},
			},
		},
	}
}

func newTestOptimizer(t *testing.T, net *rafnet.Network, truncation int, learningRate float64) (*autodiff.Optimizer, *rafkoenv.SliceEnvironment) {
	t.Helper()
	solution, err := compiler.Compile(net, compiler.Options{OutputNeurons: 1, MaxSolveThreads: 1})
	require.NoError(t, err)

	cfg := settings.Defaults()
	cfg.MemoryTruncation = truncation
	cfg.LearningRate = learningRate
	tg := threadgroup.New(1)
	t.Cleanup(tg.Close)

	opt, err := autodiff.NewOptimizer(net, solution, objective.New(objective.MSE), update.Plain, &cfg, tg, rand.New(rand.NewSource(7)))
	require.NoError(t, err)

	env, err := rafkoenv.NewSliceEnvironment(
		[][]float64{{0.2}, {0.4}, {-0.1}},
		[][]float64{{0.1}, {0.8}},
		1, 1, 2, 1,
	)
	require.NoError(t, err)
	return opt, env
}

func TestGradientForSequenceMatchesFiniteDifference(t *testing.T) {
	net := recurrentNetwork()
	opt, env := newTestOptimizer(t, net, 2, 0.1)

	gradient, _, err := opt.GradientForSequence(env, 0)
	require.NoError(t, err)
	require.Len(t, gradient, len(net.WeightTable))

	const eps = 1e-5
	for w := range net.WeightTable {
		original := net.WeightTable[w]

		net.WeightTable[w] = original + eps
		errPlus, err := opt.SequenceError(env, 0)
		require.NoError(t, err)

		net.WeightTable[w] = original - eps
		errMinus, err := opt.SequenceError(env, 0)
		require.NoError(t, err)

		net.WeightTable[w] = original
		numeric := (errPlus - errMinus) / (2 * eps)
		assert.InDelta(t, numeric, gradient[w], 2e-3, "weight %d", w)
	}
}

func TestIterateMinibatchReducesTrainingError(t *testing.T) {
	net := recurrentNetwork()
	// A small learning rate keeps this a first-order descent check: for any
	// nonzero gradient, a small enough step along -gradient must decrease a
	// smooth loss. Each minibatch draws the same single sequence, so this is
	// plain full-batch gradient descent.
	opt, env := newTestOptimizer(t, net, 2, 0.01)

	first, err := opt.IterateMinibatch(env)
	require.NoError(t, err)

	last := first
	for i := 0; i < 5; i++ {
		last, err = opt.IterateMinibatch(env)
		require.NoError(t, err)
	}

	assert.Less(t, last, first)
}

func TestFullEvaluationAveragesOverEverySequence(t *testing.T) {
	net := recurrentNetwork()
	opt, env := newTestOptimizer(t, net, 2, 0.1)

	full, err := opt.FullEvaluation(env)
	require.NoError(t, err)

	only, err := opt.Evaluate(env, 0, 1)
	require.NoError(t, err)

	assert.InDelta(t, only, full, 1e-12, "single-sequence environment: full and single-range evaluation must match")
}
