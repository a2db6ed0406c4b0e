package dsp

import "golang.org/x/sync/errgroup"

// minChunk keeps goroutine overhead below the work handed to each worker.
const minChunk = 4096

// parallel calls fn over [0, n) split into contiguous ranges, one per
// worker. Workers <= 1 runs fn inline.
func parallel(n, workers int, fn func(lo, hi int)) {
	if workers <= 1 || n < 2*minChunk {
		fn(0, n)
		return
	}
	chunk := max((n+workers-1)/workers, minChunk)

	var g errgroup.Group
	g.SetLimit(workers)
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		g.Go(func() error {
			fn(lo, hi)
			return nil
		})
	}
	_ = g.Wait()
}
