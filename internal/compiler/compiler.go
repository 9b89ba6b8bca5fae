// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package compiler turns a validated Network into a Solution (plan) of
// row-ordered, column-parallel partials, per spec section 4.C/4.D. Each
// row is one of the router's collected, mutually-independent neuron
// subsets; within a row, maximal runs of index-contiguous neurons become
// the row's column partials, since a partial's output is required to be a
// contiguous slab.
package compiler

import (
	"fmt"
	"math"

	"github.com/davids91/rafko-sub003/internal/raferr"
	"github.com/davids91/rafko-sub003/internal/rafnet"
	"github.com/davids91/rafko-sub003/internal/router"
	"github.com/davids91/rafko-sub003/internal/synapse"
)

// Options bounds the compiled plan's shape.
type Options struct {
	OutputNeurons      int
	MaxSolveThreads    int
	DeviceMaxMegabytes float64 // <= 0 means no per-row memory budget
	Strict             bool    // see router.CollectSubset
}

// Compile validates net and builds its Solution.
func Compile(net *rafnet.Network, opts Options) (*rafnet.Solution, error) {
	if err := net.Validate(); err != nil {
		return nil, err
	}
	if opts.MaxSolveThreads < 1 {
		opts.MaxSolveThreads = 1
	}
	if opts.DeviceMaxMegabytes <= 0 {
		opts.DeviceMaxMegabytes = math.Inf(1)
	}

	r := router.New(net, opts.OutputNeurons)
	var rows [][]*rafnet.Partial
	for !r.Finished() {
		subset := r.CollectSubset(opts.MaxSolveThreads, opts.DeviceMaxMegabytes, opts.Strict)
		if len(subset) == 0 {
			return nil, fmt.Errorf("rafko: compiler: router made no progress; network may have an unsupported dependency cycle: %w", raferr.ErrEmptyPlan)
		}

		row := buildRow(net, subset, opts.MaxSolveThreads)
		rows = append(rows, row)

		for _, neuronIndex := range subset {
			if err := r.MarkProcessed(neuronIndex); err != nil {
				return nil, fmt.Errorf("rafko: compiler: %w", err)
			}
		}
	}

	return &rafnet.Solution{
		Rows:                rows,
		Features:            net.Features,
		NetworkMemoryLength: 1 + maxReachPastLoops(net),
		NeuronNumber:        net.NeuronCount(),
		OutputNeuronNumber:  opts.OutputNeurons,
		NetworkInputSize:    net.InputSize,
	}, nil
}

// buildRow splits a router subset into contiguous-index runs (a partial's
// output must be a contiguous slab), further splitting any run wider than
// necessary for maxSolveThreads-way column parallelism.
func buildRow(net *rafnet.Network, subset []int, maxSolveThreads int) []*rafnet.Partial {
	var row []*rafnet.Partial
	for _, run := range contiguousRuns(subset) {
		for _, chunk := range splitForParallelism(run, maxSolveThreads) {
			row = append(row, buildPartial(net, chunk))
		}
	}
	return row
}

// contiguousRuns groups a sorted-ascending subset into maximal runs of
// consecutive neuron indices.
func contiguousRuns(sorted []int) [][]int {
	if len(sorted) == 0 {
		return nil
	}
	var runs [][]int
	start := 0
	for i := 1; i <= len(sorted); i++ {
		if i == len(sorted) || sorted[i] != sorted[i-1]+1 {
			runs = append(runs, sorted[start:i])
			start = i
		}
	}
	return runs
}

// splitForParallelism further divides a contiguous run into up to
// maxSolveThreads contiguous chunks, each still a valid partial slab.
func splitForParallelism(run []int, maxSolveThreads int) [][]int {
	if len(run) <= 1 || maxSolveThreads <= 1 {
		return [][]int{run}
	}
	chunks := maxSolveThreads
	if chunks > len(run) {
		chunks = len(run)
	}
	perChunk := (len(run) + chunks - 1) / chunks
	var out [][]int
	for i := 0; i < len(run); i += perChunk {
		end := i + perChunk
		if end > len(run) {
			end = len(run)
		}
		out = append(out, run[i:end])
	}
	return out
}

// buildPartial copies chunk's neurons into a fresh Partial with a
// compacted, private weight table. Index synapses keep referencing the
// network's global neuron/external-input addressing, since the solver's
// ring buffer is sized to the whole network.
func buildPartial(net *rafnet.Network, chunk []int) *rafnet.Partial {
	p := &rafnet.Partial{
		OutputStart: chunk[0],
		OutputSize:  len(chunk),
	}
	for _, neuronIndex := range chunk {
		neuron := net.Neurons[neuronIndex]

		weightStart := len(p.WeightTable)
		synapse.Iterate(neuron.InputWeights, func(weightIndex int) bool {
			p.WeightTable = append(p.WeightTable, net.WeightTable[weightIndex])
			return true
		})
		p.InputWeights = append(p.InputWeights, synapse.Interval{Start: weightStart, Size: len(p.WeightTable) - weightStart})
		p.WeightSynapseCounts = append(p.WeightSynapseCounts, 1)

		p.InputIndices = append(p.InputIndices, neuron.InputIndices...)
		p.IndexSynapseCounts = append(p.IndexSynapseCounts, len(neuron.InputIndices))

		p.Transfers = append(p.Transfers, neuron.Transfer)
	}
	return p
}

func maxReachPastLoops(net *rafnet.Network) int {
	max := 0
	for _, neuron := range net.Neurons {
		for _, iv := range neuron.InputIndices {
			if iv.ReachPastLoops > max {
				max = iv.ReachPastLoops
			}
		}
	}
	return max
}
