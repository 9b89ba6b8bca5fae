// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ring provides the bounded ring buffer of neuron activation
// vectors used by the solver to support recurrence (spec section 4.A). It
// generalizes the index arithmetic of ringidx.Idx from a single logical
// ring position into a ring of whole activation-vector slots, addressed by
// (past_offset, neuron_index).
package ring

import (
	"fmt"

	"github.com/davids91/rafko-sub003/internal/raferr"
)

// Buffer is a ring of activation-vector slots. Slot 0, reached via head, is
// always "current"; slot i (0 <= i < Depth) is i steps into the past.
type Buffer struct {
	slots    [][]float64 // Depth slots, each of length Width
	head     int         // logical index of the current (most recent) slot
	width    int
	depth    int
}

// New allocates a ring of the given depth (network_memory_length) and width
// (neuron_number), with every slot zeroed and head positioned so the first
// CopyStep lands on slot 0.
func New(depth, width int) *Buffer {
	if depth < 1 {
		depth = 1
	}
	b := &Buffer{
		slots: make([][]float64, depth),
		width: width,
		depth: depth,
	}
	for i := range b.slots {
		b.slots[i] = make([]float64, width)
	}
	b.Reset()
	return b
}

// Depth returns the ring's configured number of past-offset slots.
func (b *Buffer) Depth() int { return b.depth }

// Width returns the number of neuron activations held per slot.
func (b *Buffer) Width() int { return b.width }

// slotIndex maps a logical past offset onto the physical slot index.
func (b *Buffer) slotIndex(pastOffset int) int {
	i := b.head - pastOffset
	if i < 0 {
		i += b.depth
	}
	return i
}

// CopyStep advances the head and copies the previous head's contents into
// the new head, preserving continuity between timesteps: callers that only
// overwrite part of the new head (e.g. recurrent inputs not yet produced
// this step) still see last step's values for the rest.
func (b *Buffer) CopyStep() {
	prev := b.slotIndex(0)
	b.head = (b.head + 1) % b.depth
	cur := b.slotIndex(0)
	copy(b.slots[cur], b.slots[prev])
}

// ShallowStep advances the head only; the caller is responsible for
// overwriting every element of the new head before reading it.
func (b *Buffer) ShallowStep() {
	b.head = (b.head + 1) % b.depth
}

// CleanStep advances the head and zeroes the new slot.
func (b *Buffer) CleanStep() {
	b.head = (b.head + 1) % b.depth
	slot := b.slots[b.slotIndex(0)]
	for i := range slot {
		slot[i] = 0
	}
}

// Reset zeroes every slot and positions the head at the last slot, so that
// the next CopyStep lands on slot 0.
func (b *Buffer) Reset() {
	for _, s := range b.slots {
		for i := range s {
			s[i] = 0
		}
	}
	b.head = b.depth - 1
}

// Current returns the mutable current (past_offset 0) slot.
func (b *Buffer) Current() []float64 {
	return b.slots[b.slotIndex(0)]
}

// At returns the value of neuronIndex at the given past offset. It fails
// loudly (wrapping raferr.ErrOutOfBounds) if pastOffset >= Depth() or the
// neuron index is out of range, per spec section 4.A.
func (b *Buffer) At(pastOffset, neuronIndex int) (float64, error) {
	if pastOffset < 0 || pastOffset >= b.depth {
		return 0, fmt.Errorf("ring: past offset %d exceeds ring depth %d: %w", pastOffset, b.depth, raferr.ErrOutOfBounds)
	}
	if neuronIndex < 0 || neuronIndex >= b.width {
		return 0, fmt.Errorf("ring: neuron index %d out of [0,%d): %w", neuronIndex, b.width, raferr.ErrOutOfBounds)
	}
	return b.slots[b.slotIndex(pastOffset)][neuronIndex], nil
}

// Slot returns the whole vector at the given past offset (0 = current).
// It fails loudly if pastOffset >= Depth().
func (b *Buffer) Slot(pastOffset int) ([]float64, error) {
	if pastOffset < 0 || pastOffset >= b.depth {
		return nil, fmt.Errorf("ring: past offset %d exceeds ring depth %d: %w", pastOffset, b.depth, raferr.ErrOutOfBounds)
	}
	return b.slots[b.slotIndex(pastOffset)], nil
}
