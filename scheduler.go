package mixprep

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

const (
	// DefaultMaxConcurrent bounds how many decode+analyze tasks run at once
	// when SchedulerOptions does not say otherwise.
	DefaultMaxConcurrent = 2

	listenerBuffer = 128
)

// TaskFunc runs the decode+analyze work for one request. It returns either
// a Result or an error, never both.
type TaskFunc func(ctx context.Context, req Request) (*Result, error)

// SchedulerOptions configures a Scheduler. The zero value gets the default
// concurrency bound and the ffmpeg-backed pipeline.
type SchedulerOptions struct {
	MaxConcurrent int
	Runner        TaskFunc
}

// Listener receives terminal events from the scheduler. Channels are
// buffered; a subscriber that stops draining eventually blocks completion
// delivery, so unsubscribe before abandoning one.
type Listener struct {
	Results chan Result
	Errors  chan TaskError
}

// Scheduler coordinates bounded-concurrency analysis tasks over a priority
// pending list. Bookkeeping (enqueue, pause, resume, completion) is
// serialized under one mutex and never races; only the decode+analyze work
// itself runs concurrently, one goroutine per in-flight task, so CPU-bound
// analysis never stalls the callers of Enqueue/Pause/Resume.
type Scheduler struct {
	ctx           context.Context
	runner        TaskFunc
	maxConcurrent int

	mu      sync.Mutex
	pending []Request
	running int
	total   int
	paused  bool

	lmu       sync.RWMutex
	listeners map[*Listener]struct{}
}

// NewScheduler creates a scheduler. The context bounds every task the
// scheduler ever starts.
func NewScheduler(ctx context.Context, opts SchedulerOptions) *Scheduler {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}

	if opts.Runner == nil {
		opts.Runner = NewPipeline().Run
	}

	return &Scheduler{
		ctx:           ctx,
		runner:        opts.Runner,
		maxConcurrent: opts.MaxConcurrent,
		listeners:     make(map[*Listener]struct{}),
	}
}

// Enqueue adds a request to the pending list, front for PriorityHigh and
// back for PriorityNormal, and starts it immediately if a slot is free.
func (s *Scheduler) Enqueue(id, path string, priority Priority) {
	req := Request{ID: id, Path: path, Priority: priority}

	s.mu.Lock()

	if priority == PriorityHigh {
		s.pending = append([]Request{req}, s.pending...)
	} else {
		s.pending = append(s.pending, req)
	}

	s.total++

	s.mu.Unlock()

	s.fill()
}

// Pause prevents new tasks from starting. In-flight tasks run to completion.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

// Resume lifts a pause and immediately fills every free slot from the
// pending list, in priority order.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()

	s.fill()
}

// Status returns a snapshot of the queue without side effects.
func (s *Scheduler) Status() QueueStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	return QueueStatus{
		Pending: len(s.pending),
		Running: s.running,
		Total:   s.total,
	}
}

// Subscribe registers a new listener for terminal events.
func (s *Scheduler) Subscribe() *Listener {
	l := &Listener{
		Results: make(chan Result, listenerBuffer),
		Errors:  make(chan TaskError, listenerBuffer),
	}

	s.lmu.Lock()
	s.listeners[l] = struct{}{}
	s.lmu.Unlock()

	return l
}

// Unsubscribe removes a listener. Events already in its channel buffers
// remain readable.
func (s *Scheduler) Unsubscribe(l *Listener) {
	s.lmu.Lock()
	delete(s.listeners, l)
	s.lmu.Unlock()
}

// fill starts pending tasks until the concurrency limit is reached, the
// pending list drains, or the scheduler is paused.
func (s *Scheduler) fill() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for !s.paused && s.running < s.maxConcurrent && len(s.pending) > 0 {
		req := s.pending[0]
		s.pending = s.pending[1:]
		s.running++

		go s.run(req)
	}
}

var errNilOutcome = errors.New("task produced neither result nor error")

// run executes one task in its own goroutine and delivers exactly one
// terminal event for it, then frees the slot and re-triggers scheduling.
func (s *Scheduler) run(req Request) {
	result, err := s.invoke(req)
	if err == nil && result == nil {
		err = errNilOutcome
	}

	s.mu.Lock()
	s.running--
	s.mu.Unlock()

	if err != nil {
		s.emitError(TaskError{RequestID: req.ID, Message: err.Error()})
	} else {
		s.emitResult(*result)
	}

	s.fill()
}

// invoke shields the scheduler from a crashing task: a panic inside
// decode+analyze is converted to an ordinary task error so the queue
// always progresses.
func (s *Scheduler) invoke(req Request) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("task crashed: %v", r)
		}
	}()

	return s.runner(s.ctx, req)
}

func (s *Scheduler) emitResult(result Result) {
	for _, l := range s.snapshot() {
		l.Results <- result
	}
}

func (s *Scheduler) emitError(taskErr TaskError) {
	for _, l := range s.snapshot() {
		l.Errors <- taskErr
	}
}

func (s *Scheduler) snapshot() []*Listener {
	s.lmu.RLock()
	defer s.lmu.RUnlock()

	listeners := make([]*Listener, 0, len(s.listeners))
	for l := range s.listeners {
		listeners = append(listeners, l)
	}

	return listeners
}
