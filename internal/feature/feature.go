// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package feature applies a network's neuron-group features — softmax,
// dropout, L1/L2 regularization — per spec section 4.F. The softmax and
// regularization accumulators use lock-free compare-and-swap loops over
// float64 bit patterns the same way decoder/softmax.go normalizes a
// distribution in place, generalized here to run across a thread group
// instead of a single goroutine.
package feature

import (
	"math"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/davids91/rafko-sub003/internal/rafnet"
	"github.com/davids91/rafko-sub003/internal/settings"
	"github.com/davids91/rafko-sub003/internal/synapse"
	"github.com/davids91/rafko-sub003/internal/threadgroup"
)

// atomicFloat64 is a compare-and-swap accumulator over a float64, the Go
// analogue of std::atomic<double> used by the original feature executor.
type atomicFloat64 struct{ bits atomic.Uint64 }

func newAtomicFloat64(v float64) *atomicFloat64 {
	a := &atomicFloat64{}
	a.bits.Store(math.Float64bits(v))
	return a
}

func (a *atomicFloat64) Load() float64 { return math.Float64frombits(a.bits.Load()) }

// updateMax performs the CAS loop: keep current if it's already >= v.
func (a *atomicFloat64) updateMax(v float64) {
	for {
		current := a.Load()
		if v <= current {
			return
		}
		if a.bits.CompareAndSwap(math.Float64bits(current), math.Float64bits(v)) {
			return
		}
	}
}

func (a *atomicFloat64) add(delta float64) {
	for {
		current := a.Load()
		if a.bits.CompareAndSwap(math.Float64bits(current), math.Float64bits(current+delta)) {
			return
		}
	}
}

// parallelForEach splits relevant (in Iterate order) evenly across tg's
// workers, mirroring execute_in_paralell_for's contiguous-chunk split.
func parallelForEach(tg *threadgroup.Group, relevant []int, fn func(neuronIndex int)) {
	n := len(relevant)
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
		for _, idx := range relevant[start:end] {
			fn(idx)
		}
	})
}

func collectIndices(g rafnet.Group) []int {
	var out []int
	synapse.Iterate(neuronIntervals(g), func(i int) bool {
		out = append(out, i)
		return true
	})
	return out
}

// neuronIntervals turns a Group's plain neuron index list into a single
// run-length interval so it can be walked with the same synapse iteration
// helpers used elsewhere — groups are stored densely (spec section 3), so
// Neurons is already in Iterate-compatible ascending order.
func neuronIntervals(g rafnet.Group) []synapse.Interval {
	out := make([]synapse.Interval, len(g.Neurons))
	for i, n := range g.Neurons {
		out[i] = synapse.Interval{Start: n, Size: 1}
	}
	return out
}

// Softmax normalizes data[idx] for every idx in group's neurons into a
// probability distribution, numerically stabilized by subtracting the
// cross-thread max before exponentiating (spec section 4.F).
func Softmax(data []float64, group rafnet.Group, tg *threadgroup.Group) {
	relevant := collectIndices(group)
	maxValue := newAtomicFloat64(-math.MaxFloat64)
	expsum := newAtomicFloat64(0)

	parallelForEach(tg, relevant, func(idx int) {
		maxValue.updateMax(data[idx])
	})
	usedMax := maxValue.Load()

	parallelForEach(tg, relevant, func(idx int) {
		expsum.add(math.Exp(data[idx] - usedMax))
	})
	usedExpsum := expsum.Load()
	if usedExpsum < settings.MachineEpsilon {
		usedExpsum = settings.MachineEpsilon
	}

	parallelForEach(tg, relevant, func(idx int) {
		data[idx] = math.Exp(data[idx]-usedMax) / usedExpsum
	})
}

// Dropout zeroes each of group's neurons independently with probability p
// whenever it is called; it has no training-mode check of its own, and
// solutionsolver.Solve calls it only when Options.Training is set. rng is not safe for concurrent use on its
// own, so draws are serialized through a mutex; this keeps the random
// stream well-defined without forcing the whole group onto one goroutine.
func Dropout(data []float64, group rafnet.Group, p float64, tg *threadgroup.Group, rng *rand.Rand) {
	relevant := collectIndices(group)
	var mu sync.Mutex
	parallelForEach(tg, relevant, func(idx int) {
		mu.Lock()
		draw := rng.Float64()
		mu.Unlock()
		if draw < p {
			data[idx] = 0
		}
	})
}

// L1Regularization returns the sum of |weight| over every weight referenced
// by group's neurons, added to the loss outside the solve path (spec
// section 4.F, 4.G step 3).
func L1Regularization(net *rafnet.Network, group rafnet.Group, tg *threadgroup.Group) float64 {
	return lxRegularization(net, group, tg, math.Abs)
}

// L2Regularization returns the sum of weight^2 over the same weights.
func L2Regularization(net *rafnet.Network, group rafnet.Group, tg *threadgroup.Group) float64 {
	return lxRegularization(net, group, tg, func(w float64) float64 { return w * w })
}

func lxRegularization(net *rafnet.Network, group rafnet.Group, tg *threadgroup.Group, lx func(float64) float64) float64 {
	relevant := collectIndices(group)
	errorValue := newAtomicFloat64(0)
	parallelForEach(tg, relevant, func(neuronIndex int) {
		synapse.Iterate(net.Neurons[neuronIndex].InputWeights, func(weightIndex int) bool {
			errorValue.add(lx(net.WeightTable[weightIndex]))
			return true
		})
	})
	return errorValue.Load()
}
