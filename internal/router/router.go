// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package router collects independent subsets of a network's neurons for
// the solution compiler, per spec section 4.D. Each neuron carries an
// atomic progress counter; a neuron becomes a subset candidate once every
// one of its same-step inputs is already processed or reserved ahead of it
// in the subset, a CAS-guarded state machine generalized here to the
// router's dependency-ordered walk.
package router

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/davids91/rafko-sub003/internal/rafnet"
	"github.com/davids91/rafko-sub003/internal/synapse"
	"github.com/davids91/rafko-sub003/internal/threadgroup"
)

// Router walks a Network's neurons in dependency order, collecting
// subsets of mutually-independent neurons bounded by a per-device memory
// budget.
type Router struct {
	net       *rafnet.Network
	numInputs []int
	states    []atomic.Uint32

	outputLayerIterator atomic.Uint32
	iteration           uint16

	mu                sync.Mutex
	subset            []int
	subsetSizeBytes   float64
	collectionRunning bool
}

// New builds a Router over net. net must already have passed Validate.
// outputNeurons is the network's trailing output-layer width: the router's
// walk always begins at one of the output neurons and works backward
// through their dependencies.
func New(net *rafnet.Network, outputNeurons int) *Router {
	r := &Router{
		net:       net,
		numInputs: make([]int, net.NeuronCount()),
		states:    make([]atomic.Uint32, net.NeuronCount()),
		iteration: 1, // must start at 1: 0 would collide with the processed-value encoding
	}
	for i, neuron := range net.Neurons {
		r.numInputs[i] = neuron.InputCount()
	}
	r.outputLayerIterator.Store(uint32(net.NeuronCount() - outputNeurons))
	return r
}

func (r *Router) reservedValue(i int) uint32  { return uint32(r.numInputs[i]) + 1 }
func (r *Router) processedValue(i int) uint32 { return uint32(r.numInputs[i]) + 2 }

func (r *Router) isNeuronInProgress(i int) bool {
	return uint32(r.numInputs[i]) > r.states[i].Load()
}
func (r *Router) isNeuronReserved(i int) bool { return r.states[i].Load() == r.reservedValue(i) }
func (r *Router) isNeuronSolvable(i int) bool { return r.states[i].Load() == uint32(r.numInputs[i]) }
func (r *Router) isNeuronProcessed(i int) bool {
	return r.states[i].Load() == r.processedValue(i)
}

func (r *Router) iterationRelevance(i int) int {
	v := int64(r.states[i].Load()) - int64(r.processedValue(i))
	if v < 0 {
		return 0
	}
	return int(v)
}

func (r *Router) isSubsetCandidate(i int, iteration uint16) bool {
	return r.iterationRelevance(i) <= int(iteration) && !r.isNeuronProcessed(i) && !r.isNeuronReserved(i)
}

func (r *Router) nextIterationValue(i int, iteration uint16) uint32 {
	return r.processedValue(i) + uint32(iteration) + 1
}

// Finished reports whether every output neuron has been processed.
func (r *Router) Finished() bool {
	last := r.net.NeuronCount() - 1
	return int(r.outputLayerIterator.Load()) == last && r.isNeuronProcessed(last)
}

// Subset returns the most recently collected subset, in collection order.
// Only valid once CollectSubset has returned.
func (r *Router) Subset() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.subset))
	copy(out, r.subset)
	return out
}

// CollectSubset walks the network with maxThreads workers, gathering
// neurons into the subset until either every output neuron has a finished
// dependency chain or the subset's estimated size crosses
// deviceMaxMegabytes. In strict mode, reserved neurons (not yet processed)
// do not count as satisfying a dependency, which yields smaller,
// mutually-independent subsets at the cost of more iterations; relaxing it
// collects larger subsets with internal ordering dependencies. Returns the
// collected subset, in the order neurons were added (sorted in strict mode,
// since independent neurons then have no natural order).
func (r *Router) CollectSubset(maxThreads int, deviceMaxMegabytes float64, strict bool) []int {
	r.mu.Lock()
	r.subset = nil
	r.subsetSizeBytes = 0
	r.collectionRunning = true
	r.mu.Unlock()

	if maxThreads < 1 {
		maxThreads = 1
	}
	tg := threadgroup.New(maxThreads)
	defer tg.Close()
	tg.StartAndBlock(func(workerIndex int) {
		r.collectSubsetThread(maxThreads, deviceMaxMegabytes, workerIndex, strict)
	})

	r.mu.Lock()
	if strict {
		sortInts(r.subset)
	}
	out := make([]int, len(r.subset))
	copy(out, r.subset)
	r.collectionRunning = false
	r.mu.Unlock()

	r.iteration++
	return out
}

func sortInts(s []int) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

func (r *Router) collectSubsetThread(maxThreads int, deviceMaxMegabytes float64, threadIndex int, strict bool) {
	n := r.net.NeuronCount()
	start := int(r.outputLayerIterator.Load()) + ((n - 1 - int(r.outputLayerIterator.Load())) / maxThreads * threadIndex)
	visiting := []int{start}

	for len(visiting) > 0 &&
		visiting[len(visiting)-1] < n &&
		int(r.outputLayerIterator.Load()) < n &&
		r.currentSizeMB() < deviceMaxMegabytes {

		visitingNext := r.getNextNeuron(visiting, strict)
		if visiting[len(visiting)-1] == visitingNext {
			r.addNeuronIntoSubset(visiting[len(visiting)-1])
		}
		visiting = r.step(visiting, visitingNext)
	}
}

func (r *Router) currentSizeMB() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subsetSizeBytes / (1024.0 * 1024.0)
}

// getNextNeuron advances the in-progress state of the neuron currently
// being visited (the back of visiting), returning either that same
// neuron's index (meaning it is ready to be added to the subset or has no
// more candidate children to move to) or the index of an unprocessed
// dependency to visit next.
func (r *Router) getNextNeuron(visiting []int, strict bool) int {
	current := visiting[len(visiting)-1]
	visitingNext := current
	startFrom := 0
	processed := 0

	for r.isSubsetCandidate(current, r.iteration) &&
		processed < r.numInputs[current] &&
		current == visitingNext {

		neuron := r.net.Neurons[current]
		expected := r.states[current].Load()

		if r.isNeuronInProgress(current) {
			already := r.states[current].Load()
			if already > uint32(r.numInputs[current]) {
				already = uint32(r.numInputs[current])
			}
			processed = int(already)
			startFrom = skipResolvedIntervals(neuron.InputIndices, processed)
		}

		processed = startFrom
		visitingNext = r.iterateFrom(neuron.InputIndices, startFrom, strict, current, &processed)

		if processed < r.numInputs[current] && visitingNext == current {
			r.states[current].CompareAndSwap(expected, r.nextIterationValue(current, r.iteration))
		} else {
			r.states[current].CompareAndSwap(expected, uint32(processed))
		}
	}
	return visitingNext
}

// skipResolvedIntervals returns how many leading index-synapse intervals of
// ivs are already accounted for by processedCount input elements.
func skipResolvedIntervals(ivs []synapse.Interval, processedCount int) int {
	seen := 0
	skipped := 0
	for _, iv := range ivs {
		if seen+iv.Size >= processedCount {
			break
		}
		seen += iv.Size
		skipped++
	}
	return skipped
}

// iterateFrom walks the index-synapse intervals of a neuron starting at
// interval ivs[fromInterval:], counting already-settled inputs (external
// inputs, past-loop references, processed neurons, and — outside strict
// mode — reserved neurons) into *processed, and returns the first
// unprocessed same-step neuron dependency found, or self if none.
func (r *Router) iterateFrom(ivs []synapse.Interval, fromInterval int, strict bool, self int, processed *int) int {
	for i := fromInterval; i < len(ivs); i++ {
		iv := ivs[i]
		found := -1
		synapse.Iterate([]synapse.Interval{iv}, func(idx int) bool {
			switch {
			case synapse.IsIndexInput(idx), iv.ReachPastLoops > 0:
				*processed++
				return true
			case r.isNeuronProcessed(idx), (!strict && r.isNeuronReserved(idx)):
				*processed++
				return true
			case r.isSubsetCandidate(idx, r.iteration):
				found = idx
				return false
			default:
				return true
			}
		})
		if found >= 0 {
			return found
		}
	}
	return self
}

func (r *Router) addNeuronIntoSubset(neuronIndex int) {
	if !r.isNeuronSolvable(neuronIndex) {
		return
	}
	expected := uint32(r.numInputs[neuronIndex])
	if !r.states[neuronIndex].CompareAndSwap(expected, r.reservedValue(neuronIndex)) {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.subset {
		if existing == neuronIndex {
			return
		}
	}
	r.subset = append(r.subset, neuronIndex)
	r.subsetSizeBytes += float64(r.net.Neurons[neuronIndex].EstimatedSizeBytes())
}

// step advances the visiting stack: push visitingNext if it differs from
// the neuron currently being visited, else pop back to the parent. When
// the stack collapses to its single starting neuron, advance past it (and
// the shared output-layer cursor) if it turned out not to be relevant this
// iteration.
func (r *Router) step(visiting []int, visitingNext int) []int {
	current := visiting[len(visiting)-1]
	switch {
	case visitingNext != current:
		visiting = append(visiting, visitingNext)
	case len(visiting) > 1:
		visiting = visiting[:len(visiting)-1]
	}

	if len(visiting) == 1 {
		idx := visiting[0]
		if !r.isNeuronInProgress(idx) && !r.isSubsetCandidate(idx, r.iteration) {
			visiting[0]++
		}
		if r.isNeuronProcessed(idx) &&
			idx == int(r.outputLayerIterator.Load()) &&
			idx < r.net.NeuronCount()-1 {
			r.outputLayerIterator.CompareAndSwap(uint32(idx), uint32(idx+1))
		}
	}
	return visiting
}

// MarkProcessed records that neuronIndex — previously returned from a
// collected subset — has been fully solved, unblocking any dependents.
func (r *Router) MarkProcessed(neuronIndex int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.subset) == 0 || r.subset[0] != neuronIndex {
		return fmt.Errorf("rafko: router: neuron %d is not the front of the collected subset", neuronIndex)
	}
	r.states[neuronIndex].Store(r.processedValue(neuronIndex))
	r.subset = r.subset[1:]
	return nil
}

// Omit removes neuronIndex — previously returned from a collected subset —
// and every subset member that depends on it, resetting their states so a
// future iteration can reconsider them. Must not be called while a
// collection is running.
func (r *Router) Omit(neuronIndex int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.collectionRunning {
		return fmt.Errorf("rafko: router: cannot omit while collection is running")
	}
	r.omitLocked(neuronIndex)
	return nil
}

func (r *Router) omitLocked(neuronIndex int) {
	dependents := r.dependentsInSubsetOfLocked(neuronIndex)
	if len(dependents) == 0 {
		return
	}
	r.states[neuronIndex].Store(0)
	for i, v := range r.subset {
		if v == neuronIndex {
			r.subsetSizeBytes -= float64(r.net.Neurons[neuronIndex].EstimatedSizeBytes())
			r.subset = append(r.subset[:i], r.subset[i+1:]...)
			break
		}
	}
	// Each direct dependent is still in the subset here, so the recursive
	// call also reaches the members that depend on it in turn.
	for _, dep := range dependents[1:] {
		r.omitLocked(dep)
	}
}

// dependentsInSubsetOfLocked returns neuronIndex (if present in the
// subset) followed by every subset member whose input synapses reference
// it directly.
func (r *Router) dependentsInSubsetOfLocked(neuronIndex int) []int {
	var result []int
	found := false
	for _, v := range r.subset {
		if v == neuronIndex {
			found = true
			break
		}
	}
	if !found {
		return result
	}
	result = append(result, neuronIndex)
	for _, candidate := range r.subset {
		synapse.Iterate(r.net.Neurons[candidate].InputIndices, func(idx int) bool {
			if idx == neuronIndex {
				result = append(result, candidate)
			}
			return true
		})
	}
	return result
}
