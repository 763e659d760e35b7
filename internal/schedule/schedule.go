// Package schedule provides the strategies used to defer DOM flushes: an
// immediate scheduler for deterministic tests, a manually pumped frame queue
// standing in for animation frames, and a single-goroutine UI loop.
package schedule

import (
	"context"
	"sync"
	"time"
)

// DefaultFrameInterval approximates a 60Hz display refresh.
const DefaultFrameInterval = 16 * time.Millisecond

// Scheduler defers a callback to a later point on the UI thread.
type Scheduler interface {
	Schedule(fn func())
}

// Func adapts a plain function to Scheduler.
type Func func(fn func())

// Schedule calls f(fn).
func (f Func) Schedule(fn func()) { f(fn) }

// Sync runs callbacks immediately.
type Sync struct{}

// Schedule runs fn before returning.
func (Sync) Schedule(fn func()) { fn() }

// FrameQueue collects callbacks until the next Tick, like a browser's
// animation frame queue. Callbacks scheduled while a tick is running wait for
// the following tick.
type FrameQueue struct {
	mu      sync.Mutex
	pending []func()
	frames  int
}

// NewFrameQueue creates an empty frame queue.
func NewFrameQueue() *FrameQueue {
	return &FrameQueue{}
}

// Schedule queues fn for the next frame.
func (q *FrameQueue) Schedule(fn func()) {
	q.mu.Lock()
	q.pending = append(q.pending, fn)
	q.mu.Unlock()
}

// Pending returns the number of callbacks waiting for a frame.
func (q *FrameQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Frames returns how many non-empty frames have run.
func (q *FrameQueue) Frames() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.frames
}

// Tick runs the callbacks that were queued before it started and reports how
// many ran.
func (q *FrameQueue) Tick() int {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	if len(batch) > 0 {
		q.frames++
	}
	q.mu.Unlock()

	for _, fn := range batch {
		fn()
	}
	return len(batch)
}

// Drain ticks until the queue is empty or maxFrames frames have run, and
// returns the number of frames used.
func (q *FrameQueue) Drain(maxFrames int) int {
	frames := 0
	for frames < maxFrames && q.Pending() > 0 {
		q.Tick()
		frames++
	}
	return frames
}

// Loop is a single-goroutine UI loop. Posted tasks and frame callbacks all
// run on the goroutine that called Run, so DOM work scheduled through the
// loop never races.
type Loop struct {
	frames   *FrameQueue
	tasks    chan func()
	interval time.Duration
}

// NewLoop creates a loop that ticks its frame queue every interval. A
// non-positive interval uses DefaultFrameInterval.
func NewLoop(interval time.Duration) *Loop {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &Loop{
		frames:   NewFrameQueue(),
		tasks:    make(chan func(), 64),
		interval: interval,
	}
}

// Schedule queues fn for the loop's next frame.
func (l *Loop) Schedule(fn func()) {
	l.frames.Schedule(fn)
}

// Frames exposes the loop's frame queue.
func (l *Loop) Frames() *FrameQueue {
	return l.frames
}

// Post queues fn to run on the loop goroutine as soon as possible.
func (l *Loop) Post(fn func()) {
	l.tasks <- fn
}

// Do runs fn on the loop goroutine and waits for it to return.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	task := func() {
		defer close(done)
		fn()
	}
	select {
	case l.tasks <- task:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes tasks and frames until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.tasks:
			fn()
		case <-ticker.C:
			l.frames.Tick()
		}
	}
}
