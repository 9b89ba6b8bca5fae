// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rafkoenv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSliceEnvironmentRejectsNonMultipleInputCount(t *testing.T) {
	_, err := NewSliceEnvironment(
		[][]float64{{0}, {0}, {0}},
		[][]float64{{0}},
		1, 1, 2, 0,
	)
	assert.Error(t, err)
}

func TestNewSliceEnvironmentRejectsLabelCountMismatch(t *testing.T) {
	_, err := NewSliceEnvironment(
		[][]float64{{0}, {0}},
		[][]float64{{0}},
		1, 1, 2, 0,
	)
	assert.Error(t, err)
}

func TestNewSliceEnvironmentRejectsWrongSampleWidth(t *testing.T) {
	_, err := NewSliceEnvironment(
		[][]float64{{0, 0}},
		[][]float64{{0}},
		1, 1, 1, 0,
	)
	assert.Error(t, err)
}

func TestSliceEnvironmentDerivedSizesWithPrefill(t *testing.T) {
	env, err := NewSliceEnvironment(
		[][]float64{{1}, {2}, {3}, {4}, {5}, {6}}, // 2 sequences * (1 prefill + 2 steps)
		[][]float64{{0}, {0}, {0}, {0}},
		1, 1, 2, 1,
	)
	require.NoError(t, err)
	assert.Equal(t, 2, env.NumberOfSequences())
	assert.Equal(t, 4, NumberOfLabelSamples(env))
}

func TestRawInputIndexAccountsForPrefill(t *testing.T) {
	env, err := NewSliceEnvironment(
		[][]float64{{1}, {2}, {3}, {4}, {5}, {6}},
		[][]float64{{0}, {0}, {0}, {0}},
		1, 1, 2, 1,
	)
	require.NoError(t, err)

	assert.Equal(t, 0, RawInputIndex(env, 0, 0))
	assert.Equal(t, 2, RawInputIndex(env, 0, 2))
	assert.Equal(t, 3, RawInputIndex(env, 1, 0))
}

func TestRawLabelIndexExcludesPrefill(t *testing.T) {
	env, err := NewSliceEnvironment(
		[][]float64{{1}, {2}, {3}, {4}, {5}, {6}},
		[][]float64{{0}, {0}, {0}, {0}},
		1, 1, 2, 1,
	)
	require.NoError(t, err)

	assert.Equal(t, 0, RawLabelIndex(env, 0, 0))
	assert.Equal(t, 2, RawLabelIndex(env, 1, 0))
}

func TestGetInputAndLabelSampleRejectOutOfRange(t *testing.T) {
	env, err := NewSliceEnvironment([][]float64{{1}}, [][]float64{{2}}, 1, 1, 1, 0)
	require.NoError(t, err)

	_, err = env.GetInputSample(5)
	assert.Error(t, err)
	_, err = env.GetLabelSample(-1)
	assert.Error(t, err)

	in, err := env.GetInputSample(0)
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, in)
}

func TestPushPopStateRestoresMissedSamples(t *testing.T) {
	env, err := NewSliceEnvironment([][]float64{{1}}, [][]float64{{2}}, 1, 1, 1, 0)
	require.NoError(t, err)

	env.RecordMiss()
	env.PushState()
	env.RecordMiss()
	env.RecordMiss()
	assert.Equal(t, 3, env.MissedSamples())

	env.PopState()
	assert.Equal(t, 1, env.MissedSamples())
}

func TestPopStateOnEmptyStackIsANoop(t *testing.T) {
	env, err := NewSliceEnvironment([][]float64{{1}}, [][]float64{{2}}, 1, 1, 1, 0)
	require.NoError(t, err)

	env.PopState()
	assert.Equal(t, 0, env.MissedSamples())
}
