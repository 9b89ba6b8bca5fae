// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package weightadapter keeps a compiled Solution's per-partial private
// weight tables synchronized with the network's shared weight table, per
// spec section 4.H. Network-weight-index to partial-local-index lookups
// are expensive to recompute (a linear scan of every neuron and partial),
// so both directions are cached behind a mutex the first time they're
// needed — the same lazily-built, mutex-guarded cache shape as the
// teacher's rafko_weight_adapter.cc (neurons_in_partials,
// weights_in_partials).
package weightadapter

import (
	"fmt"
	"sync"

	"github.com/davids91/rafko-sub003/internal/rafnet"
	"github.com/davids91/rafko-sub003/internal/synapse"
	"github.com/davids91/rafko-sub003/internal/threadgroup"
)

// location identifies one partial inside a Solution's row/col grid.
type location struct{ row, col int }

// partialWeightRef is one (partial, local weight-table index) pair a
// network weight resolves to.
type partialWeightRef struct {
	loc   location
	local int
}

// Adapter maps network weight indices to the partial-local weight-table
// slots that mirror them, and keeps those slots synchronized.
type Adapter struct {
	net      *rafnet.Network
	solution *rafnet.Solution

	mu             sync.Mutex
	neuronPartial  map[int]location
	weightPartials map[int][]partialWeightRef
}

// New builds an Adapter over net and its already-compiled solution.
func New(net *rafnet.Network, solution *rafnet.Solution) *Adapter {
	return &Adapter{
		net:            net,
		solution:       solution,
		neuronPartial:  make(map[int]location),
		weightPartials: make(map[int][]partialWeightRef),
	}
}

// partialFor returns the (row, col) of the partial whose contiguous output
// slab contains neuronIndex, building (and caching) the lookup the first
// time any neuron in an unexamined partial is requested.
func (a *Adapter) partialFor(neuronIndex int) (location, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if loc, ok := a.neuronPartial[neuronIndex]; ok {
		return loc, true
	}
	for row, cols := range a.solution.Rows {
		for col, p := range cols {
			if neuronIndex >= p.OutputStart && neuronIndex < p.OutputStart+p.OutputSize {
				for i := 0; i < p.OutputSize; i++ {
					a.neuronPartial[p.OutputStart+i] = location{row: row, col: col}
				}
				return location{row: row, col: col}, true
			}
		}
	}
	return location{}, false
}

// neuronOwning returns the neuron index that owns weightIndex in the
// network's shared weight table, along with the weight's 0-based ordinal
// among that neuron's own input weights.
func neuronOwning(net *rafnet.Network, weightIndex int) (neuronIndex, relative int, found bool) {
	for ni, neuron := range net.Neurons {
		rel := 0
		hit := false
		synapse.Iterate(neuron.InputWeights, func(idx int) bool {
			if idx == weightIndex {
				hit = true
				return false
			}
			rel++
			return true
		})
		if hit {
			return ni, rel, true
		}
	}
	return 0, 0, false
}

// relevantPartialWeights resolves weightIndex to every partial-local slot
// mirroring it (one, in the absence of weight sharing), building the
// result the first time and caching it thereafter.
func (a *Adapter) relevantPartialWeights(weightIndex int) ([]partialWeightRef, error) {
	a.mu.Lock()
	if refs, ok := a.weightPartials[weightIndex]; ok {
		a.mu.Unlock()
		return refs, nil
	}
	a.mu.Unlock()

	neuronIndex, relative, found := neuronOwning(a.net, weightIndex)
	if !found {
		return nil, fmt.Errorf("rafko: weight adapter: weight %d is not referenced by any neuron", weightIndex)
	}
	loc, found := a.partialFor(neuronIndex)
	if !found {
		return nil, fmt.Errorf("rafko: weight adapter: neuron %d is not covered by any partial", neuronIndex)
	}
	partial := a.solution.Rows[loc.row][loc.col]
	inner := neuronIndex - partial.OutputStart
	weightSynapse := partial.WeightSynapsesFor(inner)
	if len(weightSynapse) != 1 {
		return nil, fmt.Errorf("rafko: weight adapter: neuron %d has %d weight-synapse intervals, want 1", neuronIndex, len(weightSynapse))
	}
	local := weightSynapse[0].Start + relative

	refs := []partialWeightRef{{loc: loc, local: local}}
	a.mu.Lock()
	a.weightPartials[weightIndex] = refs
	a.mu.Unlock()
	return refs, nil
}

// UpdateWeight pushes the network's current value of weightIndex into
// every partial-local weight-table slot that mirrors it.
func (a *Adapter) UpdateWeight(weightIndex int) error {
	if weightIndex < 0 || weightIndex >= len(a.net.WeightTable) {
		return fmt.Errorf("rafko: weight adapter: weight index %d out of range", weightIndex)
	}
	refs, err := a.relevantPartialWeights(weightIndex)
	if err != nil {
		return err
	}
	value := a.net.WeightTable[weightIndex]
	for _, ref := range refs {
		a.solution.Rows[ref.loc.row][ref.loc.col].WeightTable[ref.local] = value
	}
	return nil
}

// UpdateAll refreshes every partial's private weight table from the
// network's current weights in one pass, spreading the partials across
// tg's workers.
func (a *Adapter) UpdateAll(tg *threadgroup.Group) {
	type job struct {
		row, col int
	}
	var jobs []job
	for row, cols := range a.solution.Rows {
		for col := range cols {
			jobs = append(jobs, job{row, col})
		}
	}
	if len(jobs) == 0 {
		return
	}

	workers := tg.NumWorkers()
	tg.StartAndBlock(func(workerIndex int) {
		for i := workerIndex; i < len(jobs); i += workers {
			a.refreshPartial(jobs[i].row, jobs[i].col)
		}
	})
}

func (a *Adapter) refreshPartial(row, col int) {
	partial := a.solution.Rows[row][col]
	for inner := 0; inner < partial.OutputSize; inner++ {
		neuron := a.net.Neurons[partial.OutputStart+inner]
		weightSynapse := partial.WeightSynapsesFor(inner)
		dest := weightSynapse[0].Start
		i := 0
		synapse.Iterate(neuron.InputWeights, func(idx int) bool {
			partial.WeightTable[dest+i] = a.net.WeightTable[idx]
			i++
			return true
		})
	}
}
