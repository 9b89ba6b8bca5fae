// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package qset implements the ranked per-state action memory of spec
// section 4.L: a capacity-bounded set of entries, each a state vector and a
// descending-by-q-value list of action slots, incorporated via one-step TD
// bootstrapping against a reinforcement environment.
package qset

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/davids91/rafko-sub003/internal/rafkoenv"
	"github.com/davids91/rafko-sub003/internal/settings"
	"github.com/davids91/rafko-sub003/internal/threadgroup"
)

// unfilled marks an action slot that has never received a real action: it
// sorts below every real q-value and is always eligible for overwrite.
var unfilled = math.Inf(-1)

// ActionSlot is one (q_value, action_vector) pair stored against a state.
type ActionSlot struct {
	Action []float64
	Q      float64
}

func (s ActionSlot) filled() bool { return s.Q != unfilled }

// Entry is a Q-set entry: a state and its ranked action slots (slot 0 is
// always the best action seen for that state), with a running average q
// used for capacity eviction.
type Entry struct {
	State []float64
	Slots []ActionSlot
	AvgQ  float64
}

// Set is the ranked action memory of spec section 4.L.
type Set struct {
	entries    []Entry
	actionSlot int
	cfg        *settings.Settings
	tg         *threadgroup.Group
}

// New creates an empty Q-set. actionSlotCount is the fixed number of action
// slots every entry carries (spec.md §3's `action_count`).
func New(actionSlotCount int, cfg *settings.Settings, tg *threadgroup.Group) *Set {
	if actionSlotCount < 1 {
		actionSlotCount = 1
	}
	return &Set{actionSlot: actionSlotCount, cfg: cfg, tg: tg}
}

// Len reports the number of stored entries.
func (s *Set) Len() int { return len(s.entries) }

// Entries exposes the current entries read-only, for GenerateBestSequences
// callers and diagnostics.
func (s *Set) Entries() []Entry { return s.entries }

// Lookup finds the first entry whose state matches the query within
// settings.Delta (MSE), scanning in parallel and guarding the found index
// with a mutex so concurrent matches never race (spec section 4.L,
// section 5).
func (s *Set) Lookup(state []float64) (int, bool) {
	n := len(s.entries)
	if n == 0 {
		return -1, false
	}
	found := -1
	var resultMu sync.Mutex
	s.tg.StartAndBlock(func(workerIndex int) {
		workers := s.tg.NumWorkers()
		for i := workerIndex; i < n; i += workers {
			if mse(state, s.entries[i].State) >= s.cfg.Delta {
				continue
			}
			resultMu.Lock()
			if found == -1 || i < found {
				found = i
			}
			resultMu.Unlock()
		}
	})
	return found, found >= 0
}

// Incorporate folds one batch of (state, action, raw q) observations into
// the set, TD-bootstrapping each raw q against env before storing it, then
// evicts down to settings.MaxSetSize (spec section 4.L). Incorporate is a
// single-producer operation and is not safe for concurrent use with
// itself; Lookup is safe to run concurrently from other callers.
func (s *Set) Incorporate(env rafkoenv.ReinforcementEnvironment, states, actions [][]float64, rawQs []float64) error {
	if len(states) != len(actions) || len(states) != len(rawQs) {
		return fmt.Errorf("qset: states, actions and rawQs must be the same length (%d, %d, %d)", len(states), len(actions), len(rawQs))
	}
	for i := range states {
		qNew := s.tdValue(env, states[i], actions[i], rawQs[i])
		if idx, ok := s.Lookup(states[i]); ok {
			s.incorporateIntoEntry(idx, actions[i], qNew)
		} else {
			s.appendEntry(states[i], actions[i], qNew)
		}
	}
	s.KeepBest(s.cfg.MaxSetSize)
	return nil
}

// tdValue computes spec section 4.L step 1's bootstrapped q value. The raw
// formula is q_raw + learning_rate*(q_raw + sum_k gamma^(2^k)*max_q(next_k)
// - q_raw); the q_raw terms inside the parentheses cancel, leaving q_raw
// plus learning_rate times the discounted lookahead sum below. The chain advances via env.NextFrom using, at each
// step, the best action stored for the reached state; it stops early on a
// terminal transition, a state with no further transition, or a reached
// state with no Q-set match (spec section 4.L step 1, section 8's
// "transient no-match" edge case).
func (s *Set) tdValue(env rafkoenv.ReinforcementEnvironment, state, action []float64, rawQ float64) float64 {
	curState, curAction := state, action
	sum := 0.0
	for k := 1; k <= s.cfg.LookAheadCount; k++ {
		transition := env.NextFrom(curState, curAction)
		if !transition.HasState {
			break
		}
		idx, ok := s.Lookup(transition.ResultState)
		if !ok {
			break
		}
		best := s.entries[idx].Slots[0]
		sum += math.Pow(s.cfg.Gamma, math.Pow(2, float64(k))) * best.Q
		if transition.Terminal {
			break
		}
		curState, curAction = transition.ResultState, best.Action
	}
	return rawQ + s.cfg.LearningRate*sum
}

// incorporateIntoEntry implements spec section 4.L step 2: either update a
// matching action slot in place and re-sort it into position, or, if no
// slot's action is within settings.Delta2 of the new one, try to overwrite
// the worst slot.
func (s *Set) incorporateIntoEntry(entryIndex int, action []float64, qNew float64) {
	entry := &s.entries[entryIndex]
	slots := entry.Slots

	if slotIdx, ok := matchActionSlot(slots, action, s.cfg.Delta2); ok {
		slots[slotIdx].Q += s.cfg.LearningRate * (qNew - slots[slotIdx].Q)
		bubbleIntoOrder(slots, slotIdx)
		updateAvgQ(entry)
		return
	}

	minQ := slots[len(slots)-1].Q
	if !exceedsBySignAwareThreshold(qNew, minQ, s.cfg.OverwriteQThreshold) {
		return
	}
	pos := 0
	for pos < len(slots) && slots[pos].Q >= qNew {
		pos++
	}
	copy(slots[pos+1:], slots[pos:len(slots)-1])
	slots[pos] = ActionSlot{Action: append([]float64(nil), action...), Q: qNew}
	updateAvgQ(entry)
}

// appendEntry implements spec section 4.L step 3: a brand new entry with
// the Set's actionSlot count of slots, all unfilled except one real slot, placed at
// slot 0 if qNew is non-negative (the best-first convention) or the last
// slot otherwise.
func (s *Set) appendEntry(state, action []float64, qNew float64) {
	slots := make([]ActionSlot, s.actionSlot)
	for i := range slots {
		slots[i] = ActionSlot{Q: unfilled}
	}
	placed := append([]float64(nil), action...)
	if qNew >= 0 {
		slots[0] = ActionSlot{Action: placed, Q: qNew}
	} else {
		slots[len(slots)-1] = ActionSlot{Action: placed, Q: qNew}
	}
	entry := Entry{State: append([]float64(nil), state...), Slots: slots}
	updateAvgQ(&entry)
	s.entries = append(s.entries, entry)
}

// KeepBest evicts the lowest-avg_q entries until at most maxSetSize remain
// (spec section 4.L, testable property 8).
func (s *Set) KeepBest(maxSetSize int) {
	if len(s.entries) > maxSetSize {
		s.EraseWorst(len(s.entries) - maxSetSize)
	}
}

// EraseWorst removes the k lowest-avg_q entries via a running worst-of-the-
// remaining selection, matching spec section 4.L's erase_worst (testable
// property 9: no evicted entry outranks a surviving one).
func (s *Set) EraseWorst(k int) {
	for i := 0; i < k && len(s.entries) > 0; i++ {
		worst := 0
		for j := 1; j < len(s.entries); j++ {
			if s.entries[j].AvgQ < s.entries[worst].AvgQ {
				worst = j
			}
		}
		s.entries = append(s.entries[:worst], s.entries[worst+1:]...)
	}
}

// Sequence is one fixed-length window of (state, best action) pairs
// produced by GenerateBestSequences, ready to seed supervised training:
// Actions[i] is the best action the Q-set recorded for States[i].
type Sequence struct {
	States  [][]float64
	Actions [][]float64
}

// GenerateBestSequences walks each stored state's best-action chain
// greedily via env.NextFrom, emitting fixed-length windows of (state, best
// action) pairs — used to seed supervised training of the policy network
// from the Q-set's accumulated experience (spec section 4.L).
func (s *Set) GenerateBestSequences(env rafkoenv.ReinforcementEnvironment, preferredLen int) []Sequence {
	if preferredLen < 1 {
		return nil
	}
	var sequences []Sequence
	visited := make(map[int]bool)
	for startIdx := range s.entries {
		if visited[startIdx] {
			continue
		}
		var states, actions [][]float64
		curState := s.entries[startIdx].State
		for len(states) < preferredLen*4 {
			idx, ok := s.Lookup(curState)
			if !ok {
				break
			}
			visited[idx] = true
			best := s.entries[idx].Slots[0]
			if !best.filled() {
				break
			}
			states = append(states, curState)
			actions = append(actions, best.Action)

			transition := env.NextFrom(curState, best.Action)
			if !transition.HasState || transition.Terminal {
				break
			}
			curState = transition.ResultState
		}
		if len(states) < preferredLen {
			continue
		}
		for w := 0; w < len(states); w += preferredLen {
			start := w
			if start+preferredLen > len(states) {
				start = len(states) - preferredLen
			}
			sequences = append(sequences, Sequence{
				States:  states[start : start+preferredLen],
				Actions: actions[start : start+preferredLen],
			})
		}
	}
	return sequences
}

func matchActionSlot(slots []ActionSlot, action []float64, delta2 float64) (int, bool) {
	for i, slot := range slots {
		if !slot.filled() {
			continue
		}
		if mse(slot.Action, action) < delta2 {
			return i, true
		}
	}
	return -1, false
}

// bubbleIntoOrder restores descending order by swapping slot i with its
// neighbors, per spec section 4.L step 2a's "re-sort by swapping with
// adjacent slots until order is restored."
func bubbleIntoOrder(slots []ActionSlot, i int) {
	for i > 0 && slots[i].Q > slots[i-1].Q {
		slots[i], slots[i-1] = slots[i-1], slots[i]
		i--
	}
	for i < len(slots)-1 && slots[i].Q < slots[i+1].Q {
		slots[i], slots[i+1] = slots[i+1], slots[i]
		i++
	}
}

// exceedsBySignAwareThreshold reports whether candidate exceeds base by at
// least the given fraction of |base|, correctly for either sign of base
// (spec section 4.L step 2b's "sign-aware comparison"): scaling the
// threshold by the sign of base directly would loosen the bound for
// negative base, so it is scaled by |base| instead.
func exceedsBySignAwareThreshold(candidate, base, threshold float64) bool {
	if math.IsInf(base, -1) {
		return true
	}
	return candidate > base+math.Abs(base)*threshold
}

func updateAvgQ(entry *Entry) {
	sum, count := 0.0, 0
	for _, slot := range entry.Slots {
		if slot.filled() {
			sum += slot.Q
			count++
		}
	}
	if count > 0 {
		entry.AvgQ = sum / float64(count)
	}
}

// mse returns the mean squared error between two equal-length vectors,
// via gonum.org/v1/gonum/floats's Euclidean (L2) distance: Distance(a, b,
// 2) is sqrt(sum((a_i-b_i)^2)), so squaring it and dividing by the vector
// length recovers the mean squared error exactly. A length mismatch
// (which should not occur for well-formed states/actions) reports an
// infinite distance rather than panicking.
func mse(a, b []float64) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	if len(a) == 0 {
		return 0
	}
	d := floats.Distance(a, b, 2)
	return d * d / float64(len(a))
}
