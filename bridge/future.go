package bridge

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ImPhilipGlover/EntropicGarden/kernel"
)

// Future is a placeholder for an async_eval result, the same role as the
// teacher's Future (future.go): an atomic completion flag plus a channel
// Wait can block on, filled in by a goroutine running elsewhere. Unlike the
// teacher, which spins up one dedicated coroutine per future and lets the
// scheduler's Await/pause machinery track it, futures here are jobs queued
// onto a bounded worker pool (see futurePool): a single-threaded foreign
// runtime gated by Gate has no use for thousands of concurrent coroutines
// all blocked on the same lock.
type Future struct {
	done  uint32
	ready chan struct{}

	value kernel.Value
	err   error
}

func newFuture() *Future {
	return &Future{ready: make(chan struct{})}
}

func (f *Future) complete(v kernel.Value, err error) {
	f.value = v
	f.err = err
	if atomic.CompareAndSwapUint32(&f.done, 0, 1) {
		close(f.ready)
	}
}

// Done reports whether the future has completed.
func (f *Future) Done() bool {
	return atomic.LoadUint32(&f.done) == 1
}

// wait blocks until the future completes, timeout elapses (if positive), or
// ctx is cancelled, implementing §4.5 op 9's TimedOut/Cancelled outcomes.
func (f *Future) wait(ctx context.Context, timeout time.Duration) (kernel.Value, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout <= 0 {
		select {
		case <-f.ready:
			return f.value, f.err
		case <-ctx.Done():
			return nil, errf(ErrCancelled, "wait cancelled: %v", ctx.Err())
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-f.ready:
		return f.value, f.err
	case <-ctx.Done():
		return nil, errf(ErrCancelled, "wait cancelled: %v", ctx.Err())
	case <-timer.C:
		return nil, errf(ErrTimedOut, "wait exceeded %s", timeout)
	}
}

// futurePool is a bounded worker pool that runs queued async_eval jobs,
// sized by GOMAXPROCS when workers <= 0. This generalizes the teacher's
// one-goroutine-per-future model (future.go's NewFuture: "go f.run()") to a
// fixed-size pool, since every job here ultimately contends for the single
// process-wide Gate and an unbounded goroutine burst would just queue at
// that lock anyway.
type futurePool struct {
	jobs chan func()
	wg   sync.WaitGroup
	stopOnce sync.Once
}

func newFuturePool(workers int) *futurePool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
		if workers < 1 {
			workers = 1
		}
	}
	p := &futurePool{jobs: make(chan func(), 64)}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *futurePool) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		job()
	}
}

func (p *futurePool) submit(job func()) {
	p.jobs <- job
}

// stop closes the job queue and waits for in-flight jobs to drain. Safe to
// call more than once.
func (p *futurePool) stop() {
	p.stopOnce.Do(func() {
		close(p.jobs)
	})
	p.wg.Wait()
}
