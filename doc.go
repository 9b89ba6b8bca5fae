// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package rafko is a sparse recurrent neural network training engine: compile
a Network into a row-ordered Solution, run it forward through
solutionsolver, train its weights with the backprop optimizer in
internal/autodiff, and optionally drive reinforcement-learning style
training through the Q-set/Q-trainer pair in internal/qset and
internal/qtrain.

The root package exposes a single façade, Context, over these pieces:

  - New compiles a Network and wires an Optimizer over it. An Options.Obj
    left nil is reported immediately as raferr.ErrMissingObjective, rather
    than deferred to the first evaluation call.
  - Solve runs one forward step through the compiled Solution.
  - FullEvaluation and StochasticEvaluation score the network against a
    rafkoenv.Environment, including any configured L1/L2 regularization.
  - TrainUntil drives the minibatch training loop to a stop trigger or an
    iteration cap.

Everything below Context lives under internal/, split along the engine's
own component boundaries: rafnet (network/weight/feature/transfer types),
synapse and router (the sparse connectivity iterators the compiler walks),
compiler (builds the Solution), partialsolver/solutionsolver/ring (the
forward solve path), weightadapter and update (keeping a compiled Solution's
weights in sync and computing velocity updates), objective and autodiff
(the cost functions and the backprop optimizer), qset and qtrain
(reinforcement-learning experience storage and the exploration loop), and
rafkoenv (the Environment/ReinforcementEnvironment interfaces a caller
implements to supply data). rafscenario holds the S1-S5 scenario fixture
builders, exercised by its own test file.
*/
package rafko
