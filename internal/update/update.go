// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package update implements the pluggable weight-update rules (Plain,
// Momentum, Nesterov, Adam, AMSGrad) of spec section 4.I. Every variant
// shares the same start/iterate/is_finished contract and the same velocity-
// then-apply shape; only the per-weight velocity formula and the small set
// of per-variant accumulators differ, matching the single-struct
// tagged-union replacement for the original's updater inheritance chain
// (spec section 9's design note).
package update

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/davids91/rafko-sub003/internal/raferr"
	"github.com/davids91/rafko-sub003/internal/rafnet"
	"github.com/davids91/rafko-sub003/internal/settings"
	"github.com/davids91/rafko-sub003/internal/threadgroup"
)

// Variant selects a velocity rule.
type Variant int

const (
	Plain Variant = iota
	Momentum
	Nesterov
	Adam
	AMSGrad
)

// Updater mutates a Network's weight table from a gradient vector. Start
// begins a new logical "step"; Iterate must be called RequiredIterations
// times per step before IsFinished reports true and the weight adapter
// should be invoked to refresh compiled partials.
type Updater struct {
	variant Variant
	net     *rafnet.Network
	config  *settings.Settings

	requiredIterationsForStep int
	iteration                 int
	finished                  bool

	currentVelocity         []float64
	previousVelocity        []float64 // Momentum, Nesterov
	previousVelocityAtStart []float64 // Nesterov only
	moment                  []float64 // Adam, AMSGrad (first moment / beta-weighted gradient)
	secondMoment            []float64 // Adam
	secondMomentMax         []float64 // AMSGrad
	scratch                 []float64 // Adam, AMSGrad: gradient² / raw second-moment candidate buffer
	biasStep                int       // Adam bias-correction counter
}

// New builds an Updater of the given variant over net's weight table.
func New(variant Variant, net *rafnet.Network, config *settings.Settings) *Updater {
	n := len(net.WeightTable)
	u := &Updater{
		variant:                   variant,
		net:                       net,
		config:                    config,
		currentVelocity:           make([]float64, n),
		requiredIterationsForStep: 1,
	}
	switch variant {
	case Momentum:
		u.previousVelocity = make([]float64, n)
	case Nesterov:
		u.previousVelocity = make([]float64, n)
		u.previousVelocityAtStart = make([]float64, n)
		u.requiredIterationsForStep = 2
	case Adam:
		u.moment = make([]float64, n)
		u.secondMoment = make([]float64, n)
		u.scratch = make([]float64, n)
	case AMSGrad:
		u.moment = make([]float64, n)
		u.secondMomentMax = make([]float64, n)
		u.scratch = make([]float64, n)
	}
	return u
}

// Start begins a new step. Nesterov captures the velocity reached at the
// end of the previous step, used as the lookahead base for this step's
// first iterate call.
func (u *Updater) Start() {
	u.iteration = 0
	u.finished = false
	if u.variant == Nesterov {
		copy(u.previousVelocityAtStart, u.currentVelocity)
	}
}

// IsFinished reports whether RequiredIterations() calls to Iterate have
// completed since the last Start.
func (u *Updater) IsFinished() bool { return u.finished }

// RequiredIterations returns how many Iterate calls complete one step (2
// for Nesterov, 1 for every other variant).
func (u *Updater) RequiredIterations() int { return u.requiredIterationsForStep }

// Velocity returns the most recently computed velocity for weight i.
func (u *Updater) Velocity(i int) float64 { return u.currentVelocity[i] }

// Iterate computes this step's velocity from gradients and applies
// w_i += v_i to every weight in the network, across tg's workers.
func (u *Updater) Iterate(gradients []float64, tg *threadgroup.Group) error {
	if len(gradients) != len(u.net.WeightTable) {
		return fmt.Errorf("rafko: weight updater: got %d gradients, want %d: %w",
			len(gradients), len(u.net.WeightTable), raferr.ErrShapeMismatch)
	}

	u.calculateVelocity(gradients, tg)
	u.updateWeights(tg)

	switch u.variant {
	case Momentum, Nesterov:
		copy(u.previousVelocity, u.currentVelocity)
	}

	u.iteration = (u.iteration + 1) % u.requiredIterationsForStep
	u.finished = u.iteration == 0
	return nil
}

func (u *Updater) calculateVelocity(gradients []float64, tg *threadgroup.Group) {
	// Nesterov's branch choice is made from the iteration counter as it
	// stood before this call: 0 (set by Start) selects the velocity Start
	// captured, anything else the velocity of the previous Iterate.
	firstOfStep := u.iteration == 0
	if u.variant == Adam {
		u.biasStep++
	}
	biasT := u.biasStep

	forEachWeightChunk(tg, len(u.currentVelocity), func(start, end int) {
		u.velocityForChunk(start, end, gradients[start:end], firstOfStep, biasT)
	})
}

// velocityForChunk fills currentVelocity[start:end] from gradient, the
// matching slice of the gradient vector. Every variant's linear terms
// (the EMA-style moment/velocity combinations) run through
// gonum.org/v1/gonum/floats's element-wise vector ops instead of a
// per-index loop; only the genuinely non-linear steps — Adam/AMSGrad's
// bias-corrected division by a square root, and AMSGrad's element-wise
// running max — stay as explicit loops, since floats has no vector
// operation for either.
func (u *Updater) velocityForChunk(start, end int, gradient []float64, firstOfStep bool, biasT int) {
	s := u.config
	vel := u.currentVelocity[start:end]
	switch u.variant {
	case Momentum:
		floats.ScaleTo(vel, s.Gamma, u.previousVelocity[start:end])
		floats.AddScaled(vel, s.LearningRate, gradient)
	case Nesterov:
		base := u.previousVelocity[start:end]
		if firstOfStep {
			base = u.previousVelocityAtStart[start:end]
		}
		floats.ScaleTo(vel, s.Gamma, base)
		floats.AddScaled(vel, s.LearningRate, gradient)
	case Adam:
		moment := u.moment[start:end]
		secondMoment := u.secondMoment[start:end]
		gradSq := u.scratch[start:end]
		floats.Scale(s.Beta, moment)
		floats.AddScaled(moment, 1-s.Beta, gradient)
		floats.MulTo(gradSq, gradient, gradient)
		floats.Scale(s.Beta2, secondMoment)
		floats.AddScaled(secondMoment, 1-s.Beta2, gradSq)
		biasCorr1 := 1 - math.Pow(s.Beta, float64(biasT))
		biasCorr2 := 1 - math.Pow(s.Beta2, float64(biasT))
		for i := range vel {
			mHat := moment[i] / biasCorr1
			vHat := secondMoment[i] / biasCorr2
			vel[i] = s.LearningRate * mHat / (math.Sqrt(vHat) + s.Epsilon)
		}
	case AMSGrad:
		moment := u.moment[start:end]
		secondMomentMax := u.secondMomentMax[start:end]
		raw := u.scratch[start:end]
		floats.Scale(s.Beta, moment)
		floats.AddScaled(moment, 1-s.Beta, gradient)
		floats.MulTo(raw, gradient, gradient)
		floats.Scale(1-s.Beta2, raw)
		floats.AddScaled(raw, s.Beta2, secondMomentMax)
		for i := range vel {
			if raw[i] > secondMomentMax[i] {
				secondMomentMax[i] = raw[i]
			}
			vel[i] = s.LearningRate * moment[i] / (math.Sqrt(secondMomentMax[i]) + s.Epsilon)
		}
	default: // Plain
		floats.ScaleTo(vel, -s.LearningRate, gradient)
	}
}

func (u *Updater) updateWeights(tg *threadgroup.Group) {
	forEachWeightChunk(tg, len(u.currentVelocity), func(start, end int) {
		floats.Add(u.net.WeightTable[start:end], u.currentVelocity[start:end])
	})
}

// forEachWeightChunk splits [0,n) into tg's worker count contiguous
// chunks, mirroring the teacher's weights-per-thread dispatch, and hands
// each worker its slice bounds so it can call the gonum/floats vector ops
// directly over its own range.
func forEachWeightChunk(tg *threadgroup.Group, n int, fn func(start, end int)) {
	workers := tg.NumWorkers()
	perThread := 1 + n/workers
	tg.StartAndBlock(func(workerIndex int) {
		start := perThread * workerIndex
		if start > n {
			start = n
		}
		end := start + perThread
		if end > n {
			end = n
		}
		if start < end {
			fn(start, end)
		}
	})
}
