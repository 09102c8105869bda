package server

import (
	"sync"
	"time"

	"github.com/acudp-mock/internal/timeutil"
)

// Task runs fn on every tick of a clock until stopped. A Task starts at
// most once; Stop is its cancellation handle.
type Task struct {
	clock    timeutil.Clock
	interval time.Duration
	fn       func()

	mu      sync.Mutex
	started bool
	stopped bool
	stop    chan struct{}
	done    chan struct{}
}

// NewTask creates a stopped task
func NewTask(clock timeutil.Clock, interval time.Duration, fn func()) *Task {
	return &Task{
		clock:    clock,
		interval: interval,
		fn:       fn,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the tick loop. It returns false if the task was already
// started, including after Stop.
func (t *Task) Start() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started {
		return false
	}
	t.started = true

	// Created before the goroutine so a mock clock can be advanced as soon
	// as Start returns.
	ticker := t.clock.NewTicker(t.interval)
	go t.run(ticker)
	return true
}

func (t *Task) run(ticker timeutil.Ticker) {
	defer close(t.done)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C():
			t.fn()
		case <-t.stop:
			return
		}
	}
}

// Running reports whether the loop has been started and not stopped
func (t *Task) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started && !t.stopped
}

// Stop ends the loop and waits for an in-flight tick to finish. It is safe
// to call more than once and before Start.
func (t *Task) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	started := t.started
	t.started = true
	close(t.stop)
	t.mu.Unlock()

	if started {
		<-t.done
	}
}
