package mixprep

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const eventTimeout = 5 * time.Second

func collectEvents(t *testing.T, l *Listener, count int) (results []Result, taskErrs []TaskError) {
	t.Helper()

	deadline := time.After(eventTimeout)

	for len(results)+len(taskErrs) < count {
		select {
		case r := <-l.Results:
			results = append(results, r)
		case e := <-l.Errors:
			taskErrs = append(taskErrs, e)
		case <-deadline:
			t.Fatalf("timed out after %d of %d events", len(results)+len(taskErrs), count)
		}
	}

	return results, taskErrs
}

func TestSchedulerBoundsConcurrency(t *testing.T) {
	const (
		limit = 3
		tasks = 20
	)

	var current, peak atomic.Int64

	runner := func(_ context.Context, req Request) (*Result, error) {
		now := current.Add(1)
		defer current.Add(-1)

		for {
			prev := peak.Load()
			if now <= prev || peak.CompareAndSwap(prev, now) {
				break
			}
		}

		time.Sleep(10 * time.Millisecond)

		return &Result{RequestID: req.ID}, nil
	}

	s := NewScheduler(context.Background(), SchedulerOptions{MaxConcurrent: limit, Runner: runner})
	listener := s.Subscribe()

	for i := range tasks {
		s.Enqueue(fmt.Sprintf("task-%d", i), "ignored", PriorityNormal)
	}

	results, taskErrs := collectEvents(t, listener, tasks)

	if len(taskErrs) != 0 {
		t.Fatalf("unexpected errors: %+v", taskErrs)
	}

	if got := peak.Load(); got > limit {
		t.Fatalf("observed %d concurrent tasks, limit is %d", got, limit)
	}

	seen := map[string]bool{}
	for _, r := range results {
		if seen[r.RequestID] {
			t.Fatalf("request %q completed twice", r.RequestID)
		}

		seen[r.RequestID] = true
	}

	if len(seen) != tasks {
		t.Fatalf("completed %d distinct requests, want %d", len(seen), tasks)
	}
}

func TestSchedulerHighPriorityRunsFirst(t *testing.T) {
	var (
		mu    sync.Mutex
		order []string
	)

	runner := func(_ context.Context, req Request) (*Result, error) {
		mu.Lock()
		order = append(order, req.ID)
		mu.Unlock()

		return &Result{RequestID: req.ID}, nil
	}

	s := NewScheduler(context.Background(), SchedulerOptions{MaxConcurrent: 1, Runner: runner})
	listener := s.Subscribe()

	s.Pause()
	s.Enqueue("normal-1", "ignored", PriorityNormal)
	s.Enqueue("normal-2", "ignored", PriorityNormal)
	s.Enqueue("urgent", "ignored", PriorityHigh)
	s.Resume()

	collectEvents(t, listener, 3)

	mu.Lock()
	defer mu.Unlock()

	want := []string{"urgent", "normal-1", "normal-2"}
	for i, id := range want {
		if order[i] != id {
			t.Fatalf("start order = %v, want %v", order, want)
		}
	}
}

func TestSchedulerPauseHoldsPendingTasks(t *testing.T) {
	var started atomic.Int64

	runner := func(_ context.Context, req Request) (*Result, error) {
		started.Add(1)

		return &Result{RequestID: req.ID}, nil
	}

	s := NewScheduler(context.Background(), SchedulerOptions{MaxConcurrent: 2, Runner: runner})
	listener := s.Subscribe()

	s.Pause()

	for i := range 5 {
		s.Enqueue(fmt.Sprintf("task-%d", i), "ignored", PriorityNormal)
	}

	time.Sleep(20 * time.Millisecond)

	if n := started.Load(); n != 0 {
		t.Fatalf("%d tasks started while paused", n)
	}

	status := s.Status()
	if status.Pending != 5 || status.Running != 0 || status.Total != 5 {
		t.Fatalf("paused status = %+v, want 5 pending / 0 running / 5 total", status)
	}

	s.Resume()

	results, taskErrs := collectEvents(t, listener, 5)
	if len(taskErrs) != 0 || len(results) != 5 {
		t.Fatalf("got %d results and %d errors, want 5 and 0", len(results), len(taskErrs))
	}

	status = s.Status()
	if status.Pending != 0 || status.Running != 0 || status.Total != 5 {
		t.Fatalf("drained status = %+v, want 0 pending / 0 running / 5 total", status)
	}
}

func TestSchedulerRecoversFromPanics(t *testing.T) {
	runner := func(_ context.Context, req Request) (*Result, error) {
		if req.ID == "boom" {
			panic("corrupt sample buffer")
		}

		return &Result{RequestID: req.ID}, nil
	}

	s := NewScheduler(context.Background(), SchedulerOptions{MaxConcurrent: 2, Runner: runner})
	listener := s.Subscribe()

	s.Enqueue("ok-1", "ignored", PriorityNormal)
	s.Enqueue("boom", "ignored", PriorityNormal)
	s.Enqueue("ok-2", "ignored", PriorityNormal)

	results, taskErrs := collectEvents(t, listener, 3)

	if len(results) != 2 || len(taskErrs) != 1 {
		t.Fatalf("got %d results and %d errors, want 2 and 1", len(results), len(taskErrs))
	}

	if taskErrs[0].RequestID != "boom" {
		t.Fatalf("error attributed to %q, want %q", taskErrs[0].RequestID, "boom")
	}

	if !strings.Contains(taskErrs[0].Message, "task crashed") {
		t.Fatalf("error message %q does not mention the crash", taskErrs[0].Message)
	}
}

func TestSchedulerTaskErrorsDoNotStallTheQueue(t *testing.T) {
	errDecode := errors.New("decode failed")

	runner := func(_ context.Context, _ Request) (*Result, error) {
		return nil, errDecode
	}

	s := NewScheduler(context.Background(), SchedulerOptions{MaxConcurrent: 2, Runner: runner})
	listener := s.Subscribe()

	for i := range 6 {
		s.Enqueue(fmt.Sprintf("task-%d", i), "ignored", PriorityNormal)
	}

	results, taskErrs := collectEvents(t, listener, 6)
	if len(results) != 0 || len(taskErrs) != 6 {
		t.Fatalf("got %d results and %d errors, want 0 and 6", len(results), len(taskErrs))
	}
}

func TestSchedulerUnsubscribedListenerStopsReceiving(t *testing.T) {
	runner := func(_ context.Context, req Request) (*Result, error) {
		return &Result{RequestID: req.ID}, nil
	}

	s := NewScheduler(context.Background(), SchedulerOptions{MaxConcurrent: 1, Runner: runner})

	kept := s.Subscribe()
	dropped := s.Subscribe()
	s.Unsubscribe(dropped)

	s.Enqueue("only", "ignored", PriorityNormal)

	collectEvents(t, kept, 1)

	select {
	case r := <-dropped.Results:
		t.Fatalf("unsubscribed listener received %+v", r)
	default:
	}
}
