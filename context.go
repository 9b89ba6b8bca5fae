// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rafko

import (
	"fmt"
	"math/rand"

	"github.com/davids91/rafko-sub003/internal/autodiff"
	"github.com/davids91/rafko-sub003/internal/compiler"
	"github.com/davids91/rafko-sub003/internal/objective"
	"github.com/davids91/rafko-sub003/internal/raferr"
	"github.com/davids91/rafko-sub003/internal/rafkoenv"
	"github.com/davids91/rafko-sub003/internal/rafnet"
	"github.com/davids91/rafko-sub003/internal/ring"
	"github.com/davids91/rafko-sub003/internal/settings"
	"github.com/davids91/rafko-sub003/internal/solutionsolver"
	"github.com/davids91/rafko-sub003/internal/threadgroup"
	"github.com/davids91/rafko-sub003/internal/update"
)

// Context is the façade of spec section 4.N: it owns one network's compiled
// Solution and the backprop Optimizer over it, and exposes the handful of
// operations a caller needs to both run and train the network without
// touching the internal packages directly. It follows the shape of
// rafko_cpu_context.cc's method set, minus its GPU counterpart's device
// bookkeeping (this engine is CPU-only, per spec.md's Non-goals).
type Context struct {
	net      *rafnet.Network
	solution *rafnet.Solution
	opt      *autodiff.Optimizer
	buf      *ring.Buffer
	tg       *threadgroup.Group
	cfg      *settings.Settings
}

// Options configures New. Obj is required: spec section 9's Open Question 1
// resolution is that a missing objective is a construction-time error, not
// a silently-cleared flag.
type Options struct {
	// Obj must be non-nil: a nil Obj is spec.md §9 Open Question 1's
	// missing-objective condition.
	Obj             *objective.Objective
	Variant         update.Variant
	OutputNeurons   int
	MaxSolveThreads int
	Strict          bool
	RNG             *rand.Rand
}

// New compiles net and builds a Context ready to solve and train it. It
// returns raferr.ErrMissingObjective immediately if opts.Obj is the zero
// value, rather than the original engine's pattern of setting an internal
// flag that a later call could silently clear (spec.md §9 Open Question 1).
func New(net *rafnet.Network, cfg *settings.Settings, tg *threadgroup.Group, opts Options) (*Context, error) {
	if opts.Obj == nil {
		return nil, raferr.ErrMissingObjective
	}
	if opts.RNG == nil {
		opts.RNG = rand.New(rand.NewSource(1))
	}

	solution, err := compiler.Compile(net, compiler.Options{
		OutputNeurons:   opts.OutputNeurons,
		MaxSolveThreads: opts.MaxSolveThreads,
		Strict:          opts.Strict,
	})
	if err != nil {
		return nil, fmt.Errorf("rafko: %w", err)
	}

	opt, err := autodiff.NewOptimizer(net, solution, *opts.Obj, opts.Variant, cfg, tg, opts.RNG)
	if err != nil {
		return nil, fmt.Errorf("rafko: %w", err)
	}

	return &Context{
		net:      net,
		solution: solution,
		opt:      opt,
		buf:      ring.New(solution.NetworkMemoryLength, solution.NeuronNumber),
		tg:       tg,
		cfg:      cfg,
	}, nil
}

// Solve evaluates the compiled network on one external input vector,
// advancing its recurrent history by one step, and returns a copy of the
// output neurons' values (spec section 4.N's `solve`).
func (c *Context) Solve(input []float64, reset bool) ([]float64, error) {
	out, err := solutionsolver.Solve(c.solution, c.buf, input, c.tg, solutionsolver.Options{
		Reset:              reset,
		Training:           false,
		DropoutProbability: c.cfg.DropoutProbability,
	})
	if err != nil {
		return nil, fmt.Errorf("rafko: %w", err)
	}
	return out, nil
}

// FullEvaluation scores every sequence in env, including L1/L2
// regularization and normalizing by the number of evaluated labels (spec
// section 4.N). The result is a positive loss — lower is better — matching
// spec.md's "training error < X" convention rather than the original
// engine's negated "fitness" score.
func (c *Context) FullEvaluation(env rafkoenv.Environment) (float64, error) {
	v, err := c.opt.FullEvaluation(env)
	if err != nil {
		return 0, fmt.Errorf("rafko: %w", err)
	}
	return v, nil
}

// StochasticEvaluation scores a seeded random sample of env's sequences
// (spec section 4.N's `stochastic_evaluation(seed)`), for cheaper periodic
// evaluation during training. sampleSize is typically cfg.MinibatchSize.
func (c *Context) StochasticEvaluation(env rafkoenv.Environment, seed int64, sampleSize int) (float64, error) {
	v, err := c.opt.StochasticEvaluation(env, seed, sampleSize)
	if err != nil {
		return 0, fmt.Errorf("rafko: %w", err)
	}
	return v, nil
}

// TrainUntil drives the backprop optimizer's minibatch loop against
// trainEnv, periodically evaluating testEnv, until maxIterations is
// reached or a configured training strategy stops it early (spec section
// 4.K, section 6).
func (c *Context) TrainUntil(trainEnv, testEnv rafkoenv.Environment, maxIterations int) (iterations int, trainingError, testingError float64, err error) {
	return c.opt.TrainUntil(trainEnv, testEnv, maxIterations)
}

// PushState/PopState delegate to the training environment's own checkpoint
// stack (spec section 4.N): the Context itself holds no environment state
// to save, only the solve-time recurrent ring, which a caller resets
// explicitly via Solve's reset flag rather than through push/pop.

// PushState checkpoints env's internal counters.
func (c *Context) PushState(env rafkoenv.Environment) { env.PushState() }

// PopState restores env's internal counters to the last PushState.
func (c *Context) PopState(env rafkoenv.Environment) { env.PopState() }

// Network exposes the underlying network for callers that need direct
// weight access (the weight updater, diagnostics).
func (c *Context) Network() *rafnet.Network { return c.net }

// Solution exposes the compiled plan.
func (c *Context) Solution() *rafnet.Solution { return c.solution }
