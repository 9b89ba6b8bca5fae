// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rafnet

import (
	"fmt"
	"math"

	"github.com/iancoleman/strcase"
)

// Transfer identifies a neuron's transfer (activation) function. The tag is
// canonicalized from whatever casing a network-definition record uses (e.g.
// "selu", "Selu", "SELU") via strcase, normalizing externally-sourced
// identifiers before using them as map keys.
type Transfer string

const (
	TransferIdentity Transfer = "IDENTITY"
	TransferSigmoid  Transfer = "SIGMOID"
	TransferTanh     Transfer = "TANH"
	TransferRelu     Transfer = "RELU"
	TransferSelu     Transfer = "SELU"
)

// seluAlpha and seluScale are the standard SELU constants (Klambauer et al.
// 2017), used by scenario S1/S2/S3/S4's addition networks.
const (
	seluAlpha = 1.6732632423543772848170429916717
	seluScale = 1.0507009873554804934193349852946
)

// ParseTransfer canonicalizes a raw transfer-function tag from a
// network-definition record into a known Transfer, reporting an error for
// unrecognized tags rather than silently defaulting.
func ParseTransfer(raw string) (Transfer, error) {
	switch Transfer(strcase.ToScreamingSnake(raw)) {
	case TransferIdentity:
		return TransferIdentity, nil
	case TransferSigmoid:
		return TransferSigmoid, nil
	case TransferTanh:
		return TransferTanh, nil
	case TransferRelu:
		return TransferRelu, nil
	case TransferSelu:
		return TransferSelu, nil
	default:
		return "", fmt.Errorf("rafnet: unrecognized transfer function tag %q", raw)
	}
}

// Apply evaluates the transfer function at x.
func (tr Transfer) Apply(x float64) float64 {
	switch tr {
	case TransferSigmoid:
		return 1 / (1 + math.Exp(-x))
	case TransferTanh:
		return math.Tanh(x)
	case TransferRelu:
		if x < 0 {
			return 0
		}
		return x
	case TransferSelu:
		if x > 0 {
			return seluScale * x
		}
		return seluScale * seluAlpha * (math.Exp(x) - 1)
	default: // TransferIdentity and unset
		return x
	}
}

// Derivative evaluates the transfer function's derivative at x, given the
// already-computed Apply(x) value y (avoids recomputing exp/tanh), for use
// by the backprop optimizer's reverse pass.
func (tr Transfer) Derivative(x, y float64) float64 {
	switch tr {
	case TransferSigmoid:
		return y * (1 - y)
	case TransferTanh:
		return 1 - y*y
	case TransferRelu:
		if x < 0 {
			return 0
		}
		return 1
	case TransferSelu:
		if x > 0 {
			return seluScale
		}
		return y + seluScale*seluAlpha
	default:
		return 1
	}
}
