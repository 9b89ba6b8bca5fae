// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rafnet

import (
	"fmt"

	"github.com/iancoleman/strcase"
)

// FeatureKind identifies one of the neuron-group features applied by the
// feature executor (spec section 4.F).
type FeatureKind string

const (
	FeatureSoftmax FeatureKind = "SOFTMAX"
	FeatureDropout FeatureKind = "DROPOUT"
	FeatureL1Reg   FeatureKind = "L1_REGULARIZATION"
	FeatureL2Reg   FeatureKind = "L2_REGULARIZATION"
)

// ParseFeatureKind canonicalizes a raw feature-kind tag the same way
// ParseTransfer does for transfer functions.
func ParseFeatureKind(raw string) (FeatureKind, error) {
	switch FeatureKind(strcase.ToScreamingSnake(raw)) {
	case FeatureSoftmax:
		return FeatureSoftmax, nil
	case FeatureDropout:
		return FeatureDropout, nil
	case FeatureL1Reg:
		return FeatureL1Reg, nil
	case FeatureL2Reg:
		return FeatureL2Reg, nil
	default:
		return "", fmt.Errorf("rafnet: unrecognized feature kind tag %q", raw)
	}
}

// IsSolutionRelevant reports whether this feature must be applied by the
// solution solver as part of evaluating a row (softmax, dropout), as
// opposed to being a pure error-side regularization term added during
// objective post-processing (L1/L2), per spec section 4.G step 3.
func (k FeatureKind) IsSolutionRelevant() bool {
	return k == FeatureSoftmax || k == FeatureDropout
}

// Group is one (feature_kind, relevant_neuron_indices) entry from a
// network's neuron_group_features list.
type Group struct {
	Kind    FeatureKind
	Neurons []int // relevant neuron indices, in ascending order
}

// Range reports [min,max) of Neurons. Neurons must be non-empty.
func (g Group) Range() (min, max int) {
	min, max = g.Neurons[0], g.Neurons[0]+1
	for _, n := range g.Neurons[1:] {
		if n < min {
			min = n
		}
		if n+1 > max {
			max = n + 1
		}
	}
	return min, max
}
