// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package update

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davids91/rafko-sub003/internal/rafnet"
	"github.com/davids91/rafko-sub003/internal/settings"
	"github.com/davids91/rafko-sub003/internal/threadgroup"
)

func net3() *rafnet.Network {
	return &rafnet.Network{WeightTable: []float64{1, 2, 3}}
}

func TestVariantsLeaveWeightsUnchangedAtZeroGradient(t *testing.T) {
	cfg := settings.Defaults()
	tg := threadgroup.New(2)
	defer tg.Close()

	for _, variant := range []Variant{Plain, Momentum, Nesterov, Adam, AMSGrad} {
		net := net3()
		original := append([]float64(nil), net.WeightTable...)
		u := New(variant, net, &cfg)

		u.Start()
		for !u.IsFinished() {
			require.NoError(t, u.Iterate([]float64{0, 0, 0}, tg))
		}
		assert.Equal(t, original, net.WeightTable, "variant %v", variant)
	}
}

func TestNesterovRequiresTwoIterationsToFinish(t *testing.T) {
	cfg := settings.Defaults()
	tg := threadgroup.New(2)
	defer tg.Close()

	net := net3()
	u := New(Nesterov, net, &cfg)
	u.Start()

	require.NoError(t, u.Iterate([]float64{1, 1, 1}, tg))
	assert.False(t, u.IsFinished())

	require.NoError(t, u.Iterate([]float64{1, 1, 1}, tg))
	assert.True(t, u.IsFinished())
}

func TestPlainVelocityMatchesFormula(t *testing.T) {
	cfg := settings.Defaults() // LearningRate 0.1
	tg := threadgroup.New(2)
	defer tg.Close()

	net := net3()
	u := New(Plain, net, &cfg)
	u.Start()
	require.NoError(t, u.Iterate([]float64{1, -2, 0.5}, tg))

	assert.InDelta(t, -0.1, u.Velocity(0), 1e-12)
	assert.InDelta(t, 0.2, u.Velocity(1), 1e-12)
	assert.InDelta(t, -0.05, u.Velocity(2), 1e-12)
	assert.InDelta(t, 1-0.1, net.WeightTable[0], 1e-12)
}

func TestMomentumAccumulatesVelocityAcrossSteps(t *testing.T) {
	cfg := settings.Defaults() // LearningRate 0.1, Gamma 0.9
	tg := threadgroup.New(2)
	defer tg.Close()

	net := net3()
	u := New(Momentum, net, &cfg)

	u.Start()
	require.NoError(t, u.Iterate([]float64{2, 0, 0}, tg))
	assert.InDelta(t, 0.2, u.Velocity(0), 1e-12) // 0*0.9 + 0.1*2

	u.Start()
	require.NoError(t, u.Iterate([]float64{2, 0, 0}, tg))
	assert.InDelta(t, 0.38, u.Velocity(0), 1e-12) // 0.2*0.9 + 0.1*2
}

func TestAdamMatchesBiasCorrectedFormula(t *testing.T) {
	cfg := settings.Defaults() // LearningRate 0.1, Beta 0.9, Beta2 0.999, Epsilon 1e-8
	tg := threadgroup.New(2)
	defer tg.Close()

	net := net3()
	u := New(Adam, net, &cfg)
	u.Start()
	require.NoError(t, u.Iterate([]float64{1, 1, 1}, tg))

	assert.InDelta(t, 0.099999999, u.Velocity(0), 1e-9)
}

func TestAMSGradMatchesMonotonicMaxFormula(t *testing.T) {
	cfg := settings.Defaults()
	tg := threadgroup.New(2)
	defer tg.Close()

	net := net3()
	u := New(AMSGrad, net, &cfg)
	u.Start()
	require.NoError(t, u.Iterate([]float64{1, 1, 1}, tg))

	assert.InDelta(t, 0.3162277660, u.Velocity(0), 1e-6)
}

func TestIterateRejectsGradientLengthMismatch(t *testing.T) {
	cfg := settings.Defaults()
	tg := threadgroup.New(1)
	defer tg.Close()

	net := net3()
	u := New(Plain, net, &cfg)
	u.Start()
	assert.Error(t, u.Iterate([]float64{1, 2}, tg))
}
