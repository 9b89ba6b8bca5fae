// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rafscenario

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davids91/rafko-sub003/internal/autodiff"
	"github.com/davids91/rafko-sub003/internal/compiler"
	"github.com/davids91/rafko-sub003/internal/objective"
	"github.com/davids91/rafko-sub003/internal/ring"
	"github.com/davids91/rafko-sub003/internal/settings"
	"github.com/davids91/rafko-sub003/internal/solutionsolver"
	"github.com/davids91/rafko-sub003/internal/threadgroup"
)

func trainFixture(t *testing.T, f *Fixture, cfg *settings.Settings, tg *threadgroup.Group) *autodiff.Optimizer {
	t.Helper()
	solution, err := compiler.Compile(f.Net, compiler.Options{OutputNeurons: 1, MaxSolveThreads: 1})
	require.NoError(t, err)
	opt, err := autodiff.NewOptimizer(f.Net, solution, objective.New(objective.MSE), f.Variant, cfg, tg, rand.New(rand.NewSource(11)))
	require.NoError(t, err)
	return opt
}

func TestS1PlainSGDConvergesWithinTolerance(t *testing.T) {
	cfg := settings.Defaults()
	cfg.LearningRate = 0.1
	cfg.MinibatchSize = 32
	tg := threadgroup.New(1)
	defer tg.Close()

	f, err := S1(rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	opt := trainFixture(t, f, &cfg, tg)

	_, trainErr, testErr, err := opt.TrainUntil(f.Train, f.Test, 5000)
	require.NoError(t, err)
	assert.Less(t, trainErr, 0.1)
	assert.Less(t, testErr, 0.15)
}

func TestS2MomentumConvergesWithin5000Iterations(t *testing.T) {
	cfg := settings.Defaults()
	cfg.LearningRate = 0.1
	cfg.MinibatchSize = 32
	tg := threadgroup.New(1)
	defer tg.Close()

	f, err := S2(rand.New(rand.NewSource(2)))
	require.NoError(t, err)
	opt := trainFixture(t, f, &cfg, tg)

	iterations, trainErr, _, err := opt.TrainUntil(f.Train, f.Train, 5000)
	require.NoError(t, err)
	assert.LessOrEqual(t, iterations, 5000)
	assert.Less(t, trainErr, 0.1)
}

func TestS3NesterovConvergesWithin5000Iterations(t *testing.T) {
	cfg := settings.Defaults()
	cfg.LearningRate = 0.1
	cfg.MinibatchSize = 32
	tg := threadgroup.New(1)
	defer tg.Close()

	f, err := S3(rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	opt := trainFixture(t, f, &cfg, tg)

	_, trainErr, _, err := opt.TrainUntil(f.Train, f.Train, 5000)
	require.NoError(t, err)
	assert.Less(t, trainErr, 0.1)
}

func TestS4RecurrentRunningSumConverges(t *testing.T) {
	cfg := settings.Defaults()
	cfg.LearningRate = 0.05
	cfg.MinibatchSize = 10
	cfg.MemoryTruncation = 5
	tg := threadgroup.New(1)
	defer tg.Close()

	f, err := S4(rand.New(rand.NewSource(4)))
	require.NoError(t, err)
	opt := trainFixture(t, f, &cfg, tg)

	_, trainErr, _, err := opt.TrainUntil(f.Train, f.Train, 5000)
	require.NoError(t, err)
	assert.Less(t, trainErr, 0.01)
}

func TestS5SolverAgreesAcrossThreadCounts(t *testing.T) {
	solution := HandCodedTwoByTwoSolution()
	want := HandCodedTwoByTwoExpected()

	for _, threads := range []int{1, 2, 10} {
		tg := threadgroup.New(threads)
		buf := ring.New(solution.NetworkMemoryLength, solution.NeuronNumber)

		got, err := solutionsolver.Solve(solution, buf, HandCodedTwoByTwoInputs(), tg, solutionsolver.Options{Reset: true})
		require.NoError(t, err)
		tg.Close()

		require.Len(t, got, 2)
		assert.InDelta(t, want[0], got[0], 1e-13, "thread count %d", threads)
		assert.InDelta(t, want[1], got[1], 1e-13, "thread count %d", threads)
	}
}
