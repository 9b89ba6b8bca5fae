// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ring

import (
	"errors"
	"testing"

	"github.com/davids91/rafko-sub003/internal/raferr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResetZeroesEverySlot(t *testing.T) {
	b := New(3, 2)
	b.CopyStep()
	cur := b.Current()
	cur[0], cur[1] = 1, 2
	b.Reset()
	for off := 0; off < 3; off++ {
		slot, err := b.Slot(off)
		require.NoError(t, err)
		assert.Equal(t, []float64{0, 0}, slot)
	}
}

func TestCopyStepPreservesHistory(t *testing.T) {
	b := New(3, 1)
	writes := []float64{1, 2, 3, 4, 5}
	for _, w := range writes {
		b.CopyStep()
		b.Current()[0] = w
	}
	for off := 0; off < 3; off++ {
		v, err := b.At(off, 0)
		require.NoError(t, err)
		want := writes[len(writes)-1-off]
		assert.Equal(t, want, v)
	}
	_, err := b.At(3, 0)
	assert.True(t, errors.Is(err, raferr.ErrOutOfBounds))
}

func TestCopyStepCarriesUnwrittenValuesForward(t *testing.T) {
	b := New(2, 2)
	b.CopyStep()
	b.Current()[0], b.Current()[1] = 1, 9
	b.CopyStep()
	b.Current()[0] = 2 // leave index 1 untouched this step
	v, err := b.At(0, 1)
	require.NoError(t, err)
	assert.Equal(t, 9.0, v, "copy-step must carry forward values the caller didn't overwrite")
}

func TestShallowStepDoesNotCopy(t *testing.T) {
	b := New(2, 1)
	b.CopyStep()
	b.Current()[0] = 42
	b.ShallowStep()
	v, err := b.At(0, 0)
	require.NoError(t, err)
	assert.NotEqual(t, 42.0, v, "shallow-step must not inherit the previous slot's contents")
}

func TestCleanStepZeroesNewSlot(t *testing.T) {
	b := New(2, 1)
	b.CopyStep()
	b.Current()[0] = 42
	b.CleanStep()
	v, err := b.At(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
}

func TestAtOutOfBoundsNeuronIndex(t *testing.T) {
	b := New(2, 2)
	_, err := b.At(0, 5)
	assert.True(t, errors.Is(err, raferr.ErrOutOfBounds))
}
