// Package async provides the bounded worker pool and completion handles used
// by the ledger. Every store-touching operation runs on the pool; callers hold
// a Future and decide whether to wait, chain, or fire-and-forget.
package async

import (
	"context"
	"runtime"
	"sync"
)

// Pool is a fixed-size worker pool. Tasks are executed in submission order per
// worker but carry no cross-task ordering guarantee.
type Pool struct {
	tasks chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

// NewPool creates a pool with the given number of workers. A non-positive size
// selects at least 4 workers, scaling with available parallelism.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
		if size < 4 {
			size = 4
		}
	}
	p := &Pool{
		tasks: make(chan func(), 1024),
	}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
	}
}

// Submit enqueues a task for execution. Blocks only if the queue is saturated.
func (p *Pool) Submit(task func()) {
	p.tasks <- task
}

// Close stops accepting tasks and waits for in-flight tasks to finish
func (p *Pool) Close() {
	p.once.Do(func() {
		close(p.tasks)
	})
	p.wg.Wait()
}

// Future is a handle for the eventual result of an operation
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Go submits fn to the pool and returns a handle that resolves with its result
func Go[T any](p *Pool, fn func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	p.Submit(func() {
		f.val, f.err = fn()
		close(f.done)
	})
	return f
}

// Run executes fn in its own goroutine and returns a handle for its result.
// Used for composing operations that themselves wait on pooled work, so that
// continuations never occupy a pool worker.
func Run[T any](fn func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		f.val, f.err = fn()
		close(f.done)
	}()
	return f
}

// Completed returns an already-resolved handle
func Completed[T any](val T) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), val: val}
	close(f.done)
	return f
}

// Failed returns an already-failed handle
func Failed[T any](err error) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), err: err}
	close(f.done)
	return f
}

// Wait blocks until the operation completes or the context is done
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done returns a channel closed when the operation completes
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}
