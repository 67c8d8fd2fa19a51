// Package tasks runs long player actions (reloading, getting ready to shoot
// prone) off the tick goroutine. Tasks only read thread-safe player state
// and report their single terminal outcome through a queue the tick drains.
package tasks

import (
	"log"
	"runtime/debug"
	"sync"
	"time"
)

type Outcome uint8

const (
	Continue Outcome = iota
	Done
)

// Task is polled until it reports Done. Abort is called instead of a
// terminal record when Step panics.
type Task interface {
	Step(now time.Time) Outcome
	Abort()
}

// Handle controls a started task. Cancel is idempotent and safe from any
// goroutine; a cancelled task is never stepped again.
type Handle struct {
	task    Task
	Started time.Time

	once sync.Once
	done chan struct{}
}

func (h *Handle) Cancel() {
	h.once.Do(func() { close(h.done) })
}

func (h *Handle) Done() <-chan struct{} { return h.done }

func (h *Handle) Cancelled() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Runner starts tasks. A live runner gives each task its own ticker
// goroutine; a manual runner only steps tasks when StepAll is called, which
// keeps engine tests deterministic.
type Runner struct {
	Interval time.Duration
	Now      func() time.Time
	Logger   *log.Logger

	manual bool

	mu     sync.Mutex
	active map[*Handle]struct{}
	order  []*Handle
	wg     sync.WaitGroup
}

func NewRunner(interval time.Duration, logger *log.Logger) *Runner {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	return &Runner{Interval: interval, Now: time.Now, Logger: logger, active: map[*Handle]struct{}{}}
}

func NewManualRunner(now func() time.Time, logger *log.Logger) *Runner {
	r := NewRunner(0, logger)
	r.manual = true
	if now != nil {
		r.Now = now
	}
	return r
}

func (r *Runner) Start(t Task) *Handle {
	h := &Handle{task: t, Started: r.Now(), done: make(chan struct{})}
	r.mu.Lock()
	r.active[h] = struct{}{}
	r.order = append(r.order, h)
	r.mu.Unlock()

	if r.manual {
		return h
	}
	r.wg.Add(1)
	go r.loop(h)
	return h
}

func (r *Runner) loop(h *Handle) {
	defer r.wg.Done()
	defer r.forget(h)
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()
	for {
		if r.step(h) {
			return
		}
		select {
		case <-h.done:
			return
		case <-ticker.C:
		}
	}
}

// step runs one poll and reports whether the task is finished.
func (r *Runner) step(h *Handle) (finished bool) {
	if h.Cancelled() {
		return true
	}
	defer func() {
		if rec := recover(); rec != nil {
			if r.Logger != nil {
				r.Logger.Printf("SEVERE task panic: %v\n%s", rec, debug.Stack())
			}
			h.task.Abort()
			h.Cancel()
			finished = true
		}
	}()
	if h.task.Step(r.Now()) == Done {
		h.Cancel()
		return true
	}
	return false
}

func (r *Runner) forget(h *Handle) {
	r.mu.Lock()
	delete(r.active, h)
	r.mu.Unlock()
}

// StepAll polls every active task once in start order. Manual runners only.
func (r *Runner) StepAll() {
	r.mu.Lock()
	hs := make([]*Handle, 0, len(r.order))
	kept := r.order[:0]
	for _, h := range r.order {
		if _, ok := r.active[h]; ok {
			hs = append(hs, h)
			kept = append(kept, h)
		}
	}
	r.order = kept
	r.mu.Unlock()

	for _, h := range hs {
		if r.step(h) {
			r.forget(h)
		}
	}
}

func (r *Runner) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// Stop cancels every task and waits for live goroutines to exit.
func (r *Runner) Stop() {
	r.mu.Lock()
	hs := make([]*Handle, 0, len(r.active))
	for h := range r.active {
		hs = append(hs, h)
	}
	r.mu.Unlock()
	for _, h := range hs {
		h.Cancel()
	}
	r.wg.Wait()
	r.mu.Lock()
	r.active = map[*Handle]struct{}{}
	r.order = nil
	r.mu.Unlock()
}
