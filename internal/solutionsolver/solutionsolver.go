// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package solutionsolver drives a compiled Solution row by row: every row's
// partials are mutually independent, so they run across a thread group
// (spec section 4.G), the same shape as ThrLayFun fanning a layer's units
// out across worker threads (leabra/leabra/networkstru.go). A
// solution-relevant feature (softmax, dropout) is applied as soon as every
// neuron it covers has been solved, so a later row reads the transformed
// values rather than the raw spikes.
package solutionsolver

import (
	"fmt"
	"math/rand"

	"github.com/davids91/rafko-sub003/internal/feature"
	"github.com/davids91/rafko-sub003/internal/partialsolver"
	"github.com/davids91/rafko-sub003/internal/raferr"
	"github.com/davids91/rafko-sub003/internal/rafnet"
	"github.com/davids91/rafko-sub003/internal/ring"
	"github.com/davids91/rafko-sub003/internal/threadgroup"
)

// Options configures a single Solve call.
type Options struct {
	Reset              bool // true at the start of a sequence: clears all recurrent history
	Training           bool // dropout is only applied in training mode
	DropoutProbability float64
	RNG                *rand.Rand // required when Training and DropoutProbability > 0
}

// Solve evaluates solution against networkInput, advancing buf by one
// timestep, and returns a copy of the network's output neurons.
func Solve(solution *rafnet.Solution, buf *ring.Buffer, networkInput []float64, tg *threadgroup.Group, opts Options) ([]float64, error) {
	if len(solution.Rows) == 0 {
		return nil, fmt.Errorf("rafko: solution solver: solution has no rows: %w", raferr.ErrEmptyPlan)
	}
	if len(networkInput) != solution.NetworkInputSize {
		return nil, fmt.Errorf("rafko: solution solver: got %d inputs, want %d: %w", len(networkInput), solution.NetworkInputSize, raferr.ErrShapeMismatch)
	}

	if opts.Reset {
		buf.Reset()
	}
	buf.CopyStep()

	current := buf.Current()
	processed := make([]bool, solution.NeuronNumber)
	applied := make([]bool, len(solution.Features))

	for _, row := range solution.Rows {
		if err := solveRow(row, buf, networkInput, tg); err != nil {
			return nil, err
		}
		for _, p := range row {
			for i := 0; i < p.OutputSize; i++ {
				processed[p.OutputStart+i] = true
			}
		}

		// Apply each solution-relevant feature (softmax, dropout) as soon as
		// every neuron it covers has been solved, rather than waiting for the
		// whole plan to finish: a later row may read these neurons as
		// same-step inputs and must see the transformed values (spec section
		// 4.G step 3).
		for gi, group := range solution.Features {
			if applied[gi] || !group.Kind.IsSolutionRelevant() || !allProcessed(processed, group.Neurons) {
				continue
			}
			switch group.Kind {
			case rafnet.FeatureSoftmax:
				feature.Softmax(current, group, tg)
			case rafnet.FeatureDropout:
				if opts.Training && opts.DropoutProbability > 0 {
					if opts.RNG == nil {
						return nil, fmt.Errorf("rafko: solution solver: dropout requested without an RNG")
					}
					feature.Dropout(current, group, opts.DropoutProbability, tg, opts.RNG)
				}
			}
			applied[gi] = true
		}
	}

	start, end := solution.OutputRange()
	out := make([]float64, end-start)
	copy(out, current[start:end])
	return out, nil
}

func allProcessed(processed []bool, neurons []int) bool {
	for _, n := range neurons {
		if !processed[n] {
			return false
		}
	}
	return true
}

func solveRow(row []*rafnet.Partial, buf *ring.Buffer, networkInput []float64, tg *threadgroup.Group) error {
	workers := tg.NumWorkers()
	errs := make([]error, workers)
	tg.StartAndBlock(func(workerIndex int) {
		for i := workerIndex; i < len(row); i += workers {
			if err := partialsolver.Solve(row[i], buf, networkInput); err != nil {
				errs[workerIndex] = err
				return
			}
		}
	})
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
