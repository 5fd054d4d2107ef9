package softgpu

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"render-interop/interop"
)

// queue executes submitted work in order on its own goroutine.
type queue struct {
	mu      sync.Mutex
	jobs    chan func()
	done    chan struct{}
	stopped bool
}

func newQueue() *queue {
	q := &queue{jobs: make(chan func(), 16), done: make(chan struct{})}
	go func() {
		defer close(q.done)
		for job := range q.jobs {
			job()
		}
	}()
	return q
}

// submit drops the job once the queue is stopped.
func (q *queue) submit(job func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.stopped {
		q.jobs <- job
	}
}

// idle blocks until everything submitted so far has executed.
func (q *queue) idle() {
	ch := make(chan struct{})
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.jobs <- func() { close(ch) }
	q.mu.Unlock()
	<-ch
}

func (q *queue) stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	close(q.jobs)
	q.mu.Unlock()
	<-q.done
}

// fence is signaled by the queue goroutine and waited on by the caller.
type fence struct {
	sys       *System
	mu        sync.Mutex
	signaled  chan struct{}
	fired     bool
	destroyed bool
}

func newFence(sys *System) *fence {
	sys.track("fence")
	return &fence{sys: sys, signaled: make(chan struct{})}
}

func (f *fence) signal() {
	if f.sys.getFaults().HangFences {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.fired {
		f.fired = true
		close(f.signaled)
	}
}

func (f *fence) Wait(timeout time.Duration) error {
	if f.sys.getFaults().LoseDevice {
		return interop.NewError(interop.KindDeviceLost, "wait fence", 0, errors.New("device removed"))
	}
	f.mu.Lock()
	ch := f.signaled
	f.mu.Unlock()
	if timeout <= 0 {
		<-ch
		return nil
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-ch:
		return nil
	case <-t.C:
		return interop.NewError(interop.KindTimeout, "wait fence", 0, fmt.Errorf("not signaled after %s", timeout))
	}
}

func (f *fence) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fired {
		f.fired = false
		f.signaled = make(chan struct{})
	}
	return nil
}

func (f *fence) Destroy() {
	if f.destroyed {
		return
	}
	f.destroyed = true
	f.sys.untrack("fence")
}

func asFence(f interop.Fence) (*fence, error) {
	sf, ok := f.(*fence)
	if !ok {
		return nil, fmt.Errorf("fence %T does not belong to softgpu", f)
	}
	return sf, nil
}
