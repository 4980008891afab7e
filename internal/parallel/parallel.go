// Package parallel splits independent index ranges across goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// Workers resolves a requested worker count: values below 1 mean
// "use every available core"
func Workers(n int) int {
	if n < 1 {
		return runtime.NumCPU()
	}
	return n
}

// For calls fn on contiguous sub-ranges [lo, hi) covering [0, n).
// Each range is handled by exactly one goroutine, so fn may write to any
// state owned by the indices of its range without locking.
func For(n, workers int, fn func(lo, hi int)) {
	if n <= 0 {
		return
	}
	workers = Workers(workers)
	if workers > n {
		workers = n
	}
	if workers == 1 {
		fn(0, n)
		return
	}

	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += chunk {
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			fn(lo, hi)
		}(lo, hi)
	}
	wg.Wait()
}
