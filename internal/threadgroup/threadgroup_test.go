// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package threadgroup

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStartAndBlockRunsEveryWorkerExactlyOnce(t *testing.T) {
	for _, n := range []int{1, 2, 10} {
		g := New(n)
		defer g.Close()
		seen := make([]int32, n)
		g.StartAndBlock(func(idx int) {
			atomic.AddInt32(&seen[idx], 1)
		})
		for idx, v := range seen {
			assert.Equalf(t, int32(1), v, "worker %d ran %d times, want 1", idx, v)
		}
	}
}

func TestStartAndBlockWaitsForAllWorkers(t *testing.T) {
	g := New(8)
	defer g.Close()
	var total int64
	for round := 0; round < 50; round++ {
		g.StartAndBlock(func(idx int) {
			atomic.AddInt64(&total, 1)
		})
	}
	assert.Equal(t, int64(8*50), atomic.LoadInt64(&total))
}
