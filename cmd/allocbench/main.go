// Command allocbench drives the allocator under a synthetic mixed-size
// workload across several goroutines, reporting throughput. It exists
// mainly to give the allocator package a runnable entry point exercising
// both paths under contention; see the package's own tests for
// correctness coverage.
package main

import (
	"flag"
	"fmt"
	"math"
	"sync"
	"time"
	"unsafe"

	"github.com/cznic/mathutil"

	"github.com/maoding1/allocator"
)

func main() {
	workers := flag.Int("workers", 4, "concurrent goroutines")
	perWorker := flag.Int("n", 200000, "acquire/release pairs per worker")
	maxSize := flag.Int("max", 4096, "largest request size, in bytes")
	debug := flag.Bool("debug", false, "trace every acquire/release")
	flag.Parse()

	allocator.Debug = *debug

	var wg sync.WaitGroup
	start := time.Now()

	for w := 0; w < *workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			worker(seed, *perWorker, *maxSize)
		}(int64(w + 1))
	}

	wg.Wait()
	elapsed := time.Since(start)

	total := *workers * *perWorker
	fmt.Printf("%d acquire/release pairs across %d workers in %s (%.0f ops/s)\n",
		total, *workers, elapsed, float64(total)/elapsed.Seconds())
}

func worker(seed int64, n, maxSize int) {
	rng, err := mathutil.NewFC32(1, math.MaxInt32, true)
	if err != nil {
		panic(err)
	}
	rng.Seed(seed)

	live := make([]unsafe.Pointer, 0, 64)
	for i := 0; i < n; i++ {
		if len(live) > 0 && rng.Next()%3 == 0 {
			last := len(live) - 1
			allocator.Release(live[last])
			live = live[:last]
			continue
		}

		size := uintptr(rng.Next()%maxSize + 1)
		p := allocator.Acquire(size)
		if p == nil {
			continue
		}
		live = append(live, p)
	}

	for _, p := range live {
		allocator.Release(p)
	}
}
