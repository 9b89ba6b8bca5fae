// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rafnet

import "github.com/davids91/rafko-sub003/internal/raferr"

// Solution is the compiled execution plan for a Network: a rows×cols grid
// of partials, per spec section 3. Rows execute strictly in order; the
// partials within a row are mutually independent and are the engine's unit
// of cross-thread parallelism (spec section 5).
type Solution struct {
	Rows     [][]*Partial
	Features []Group // neuron-group features relevant across the whole plan

	NetworkMemoryLength int // ring depth: 1 + max reach_past_loops observed anywhere in the network
	NeuronNumber        int
	OutputNeuronNumber  int
	NetworkInputSize    int
}

// RowCount returns the number of rows in the plan.
func (s *Solution) RowCount() int { return len(s.Rows) }

// PartialAt returns the partial at (row, col), or an error if out of range.
func (s *Solution) PartialAt(row, col int) (*Partial, error) {
	if row < 0 || row >= len(s.Rows) {
		return nil, raferr.ErrOutOfBounds
	}
	cols := s.Rows[row]
	if col < 0 || col >= len(cols) {
		return nil, raferr.ErrOutOfBounds
	}
	return cols[col], nil
}

// OutputRange reports the [start, end) neuron indices holding the
// network's output, i.e. the trailing OutputNeuronNumber neurons.
func (s *Solution) OutputRange() (start, end int) {
	return s.NeuronNumber - s.OutputNeuronNumber, s.NeuronNumber
}
