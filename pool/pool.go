// Package pool implements the fixed-size, priority-ordered worker pool
// spec.md §4.1 describes: a priority multimap of FIFO task queues, N
// worker goroutines, and optional per-worker CPU pinning.
//
// Grounded on core/ThreadPool.hpp (original_source), translated from
// std::packaged_task/std::future into a channel-backed Future, in the
// teacher's idiom of a mutex/condition-guarded struct (cache/lru.go,
// db.go).
package pool

import (
	"sort"
	"sync"

	"pargzip/internal/affinity"
	"pargzip/internal/errs"
)

// Task is a unit of work submitted to the pool. It returns a result and
// an error; the error is surfaced to whoever consumes the Future, never
// to the worker loop itself (spec.md §4.1: "Workers never abort on task
// failure").
type Task func() (interface{}, error)

// Future is the handle returned by Submit. It resolves to the task's
// result, or surfaces a raised failure, on consumption.
type Future struct {
	done   chan struct{}
	result interface{}
	err    error
}

// Get blocks until the task completes and returns its result or error.
func (f *Future) Get() (interface{}, error) {
	<-f.done
	return f.result, f.err
}

// Ready reports whether the task has completed, without blocking.
func (f *Future) Ready() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

func (f *Future) resolve(result interface{}, err error) {
	f.result = result
	f.err = err
	close(f.done)
}

// broken resolves the Future with a "broken promise" style failure, used
// for tasks still queued when the pool is stopped (spec.md §5:
// "Cancellation").
func (f *Future) broken() {
	f.resolve(nil, errs.New(errs.LogicError, "task discarded: thread pool stopped before it ran"))
}

type queuedTask struct {
	task   Task
	future *Future
}

// Pool is a fixed-size worker pool with priority-ordered task dispatch.
// Lower integer priority runs first; within a priority bucket, FIFO.
type Pool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	buckets map[int][]queuedTask
	running bool
	wg      sync.WaitGroup
	size    int
}

// New starts n workers. pinning optionally maps a worker index to a
// logical core ID for CPU affinity; workers with no entry are left
// unpinned. n must be positive.
func New(n int, pinning map[int]int) *Pool {
	if n < 1 {
		n = 1
	}
	p := &Pool{
		buckets: make(map[int][]queuedTask),
		running: true,
		size:    n,
	}
	p.cond = sync.NewCond(&p.mu)

	p.wg.Add(n)
	for i := 0; i < n; i++ {
		coreID, pin := pinning[i]
		go p.worker(pin, coreID)
	}
	return p
}

// Size returns the number of worker goroutines.
func (p *Pool) Size() int {
	return p.size
}

func (p *Pool) worker(pin bool, coreID int) {
	defer p.wg.Done()

	if pin && affinity.Available() {
		_ = affinity.PinCurrentThread(coreID)
	}

	for {
		p.mu.Lock()
		for p.running && !p.hasUnprocessedLocked() {
			p.cond.Wait()
		}
		if !p.running {
			p.mu.Unlock()
			return
		}

		priority := p.lowestNonEmptyPriorityLocked()
		bucket := p.buckets[priority]
		qt := bucket[0]
		if len(bucket) == 1 {
			delete(p.buckets, priority)
		} else {
			p.buckets[priority] = bucket[1:]
		}
		p.mu.Unlock()

		result, err := qt.task()
		qt.future.resolve(result, err)
	}
}

func (p *Pool) hasUnprocessedLocked() bool {
	for _, bucket := range p.buckets {
		if len(bucket) > 0 {
			return true
		}
	}
	return false
}

func (p *Pool) lowestNonEmptyPriorityLocked() int {
	priorities := make([]int, 0, len(p.buckets))
	for priority, bucket := range p.buckets {
		if len(bucket) > 0 {
			priorities = append(priorities, priority)
		}
	}
	sort.Ints(priorities)
	return priorities[0]
}

// Submit enqueues task at the given priority (lower runs first) and
// returns a Future for its result.
func (p *Pool) Submit(task Task, priority int) *Future {
	future := &Future{done: make(chan struct{})}

	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		future.broken()
		return future
	}
	p.buckets[priority] = append(p.buckets[priority], queuedTask{task: task, future: future})
	p.mu.Unlock()
	p.cond.Signal()

	return future
}

// UnprocessedTasksCount returns the total queue depth, or the depth of a
// single priority bucket when priority is non-nil.
func (p *Pool) UnprocessedTasksCount(priority *int) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if priority != nil {
		return len(p.buckets[*priority])
	}
	total := 0
	for _, bucket := range p.buckets {
		total += len(bucket)
	}
	return total
}

// Stop sets the running flag false, wakes all workers, and joins them.
// Idempotent. Tasks still queued at stop time are discarded and their
// Futures resolve with a "broken promise" style failure; in-flight tasks
// run to completion.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false

	pending := p.buckets
	p.buckets = make(map[int][]queuedTask)
	p.mu.Unlock()

	p.cond.Broadcast()
	p.wg.Wait()

	for _, bucket := range pending {
		for _, qt := range bucket {
			qt.future.broken()
		}
	}
}
