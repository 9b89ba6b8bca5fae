// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package synapse walks the run-length-encoded index intervals that wire a
// neuron's inputs and weights together (spec section 4.C). A single
// Interval type serves both index-synapses (where a negative Start encodes
// an external input and ReachPastLoops carries the temporal offset) and
// weight-synapses (where ReachPastLoops is simply unused), per the design
// note in spec section 9 calling for one generic iterator over an
// interval-view capability rather than two parallel template
// instantiations.
package synapse

import "fmt"

// Interval is one (start, size[, reach_past_loops]) run. When Start < 0 the
// interval denotes external inputs and successive elements count downward;
// otherwise elements count upward from Start.
type Interval struct {
	Start          int
	Size           int
	ReachPastLoops int
}

// IsIndexInput reports whether i encodes an external input position rather
// than a neuron index.
func IsIndexInput(i int) bool { return i < 0 }

// ExternalIndexFromArray converts a negative encoded index into the
// external input position it denotes.
func ExternalIndexFromArray(i int) int { return -i - 1 }

// ArrayIndexFromExternal is the inverse of ExternalIndexFromArray: given an
// external input position, returns its encoded (negative) index form.
func ArrayIndexFromExternal(pos int) int { return -pos - 1 }

// Len returns the total number of elements visited by iterating every
// interval in s.
func Len(s []Interval) int {
	n := 0
	for _, iv := range s {
		n += iv.Size
	}
	return n
}

// element returns the logical element at position i (0-based) within a
// single interval, following the increment/decrement rule from Start's sign.
func element(iv Interval, i int) int {
	if IsIndexInput(iv.Start) {
		return iv.Start - i
	}
	return iv.Start + i
}

// Iterate walks every element index across s in order, calling visit for
// each. If visit returns false, iteration stops early (forward iteration
// with early-exit predicate).
func Iterate(s []Interval, visit func(elementIndex int) bool) {
	for _, iv := range s {
		for i := 0; i < iv.Size; i++ {
			if !visit(element(iv, i)) {
				return
			}
		}
	}
}

// IterateWithReach walks every element across s like Iterate, but also
// passes the owning interval's ReachPastLoops — the partial solver uses
// this to know, per input, whether to read the current ring slot or a past
// one, without losing interval boundaries the way a flat Iterate would.
func IterateWithReach(s []Interval, visit func(elementIndex, reachPastLoops int) bool) {
	for _, iv := range s {
		for i := 0; i < iv.Size; i++ {
			if !visit(element(iv, i), iv.ReachPastLoops) {
				return
			}
		}
	}
}

// Skim calls visit once per interval (not per element), e.g. for
// bulk per-synapse bookkeeping that doesn't need individual elements.
func Skim(s []Interval, visit func(Interval)) {
	for _, iv := range s {
		visit(iv)
	}
}

// ElementAt returns the element at the given 0-based ordinal across all of
// s's intervals (random access by element ordinal).
func ElementAt(s []Interval, ordinal int) (int, error) {
	remaining := ordinal
	for _, iv := range s {
		if remaining < iv.Size {
			return element(iv, remaining), nil
		}
		remaining -= iv.Size
	}
	return 0, fmt.Errorf("synapse: ordinal %d exceeds synapse length %d", ordinal, Len(s))
}

// QueryAt returns the (reach_past_loops, interval_size) of the interval
// containing the given element ordinal.
func QueryAt(s []Interval, ordinal int) (reachPastLoops, intervalSize int, err error) {
	remaining := ordinal
	for _, iv := range s {
		if remaining < iv.Size {
			return iv.ReachPastLoops, iv.Size, nil
		}
		remaining -= iv.Size
	}
	return 0, 0, fmt.Errorf("synapse: ordinal %d exceeds synapse length %d", ordinal, Len(s))
}
