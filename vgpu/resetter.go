// Copyright (c) 2023, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vgpu

// resetRequest asks the resetter to recycle the pool slot at index,
// or to exit if shutdown is set.
type resetRequest struct {
	index    int
	shutdown bool
}

// resetter recycles released command buffers on its own goroutine,
// so that Release does not block on the GPU.
type resetter struct {
	requests chan resetRequest
	done     chan struct{}
}

// resetQueueLen is how many releases can be pending before
// Release blocks.
const resetQueueLen = 64

func newResetter(cp *CmdPool) *resetter {
	rs := &resetter{
		requests: make(chan resetRequest, resetQueueLen),
		done:     make(chan struct{}),
	}
	go rs.run(cp)
	return rs
}

func (rs *resetter) run(cp *CmdPool) {
	defer close(rs.done)
	for req := range rs.requests {
		if req.shutdown {
			return
		}
		cp.recycle(req.index)
	}
}

func (rs *resetter) request(index int) {
	rs.requests <- resetRequest{index: index}
}

// stop processes all pending requests, then waits for the worker to exit.
func (rs *resetter) stop() {
	rs.requests <- resetRequest{shutdown: true}
	<-rs.done
}
