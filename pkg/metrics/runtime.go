package metrics

import (
	"context"
	"runtime"
	"time"
)

// CollectRuntime samples goroutine count and heap usage into r every interval
// until ctx is done. It samples once immediately.
func CollectRuntime(ctx context.Context, r *Registry, interval time.Duration) {
	goroutines := r.Gauge("go_goroutines", "Number of goroutines")
	heap := r.Gauge("go_memstats_heap_alloc_bytes", "Heap bytes allocated and in use")
	gcs := r.Gauge("go_gc_cycles_total", "Completed GC cycles")

	sample := func() {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		goroutines.Set(float64(runtime.NumGoroutine()))
		heap.Set(float64(ms.HeapAlloc))
		gcs.Set(float64(ms.NumGC))
	}
	sample()

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			sample()
		}
	}
}
