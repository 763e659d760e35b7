package schedule

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSync(t *testing.T) {
	ran := false
	Sync{}.Schedule(func() { ran = true })
	if !ran {
		t.Error("Sync should run the callback immediately")
	}
}

func TestFrameQueue_TickRunsOnlyQueuedCallbacks(t *testing.T) {
	q := NewFrameQueue()
	var order []string

	q.Schedule(func() {
		order = append(order, "first")
		q.Schedule(func() { order = append(order, "nested") })
	})
	q.Schedule(func() { order = append(order, "second") })

	if n := q.Tick(); n != 2 {
		t.Fatalf("expected 2 callbacks in first tick, got %d", n)
	}
	if len(order) != 2 {
		t.Fatalf("nested callback should wait for the next frame, got %v", order)
	}
	if q.Pending() != 1 {
		t.Fatalf("expected 1 pending callback, got %d", q.Pending())
	}

	q.Tick()
	if len(order) != 3 || order[2] != "nested" {
		t.Errorf("unexpected order %v", order)
	}
	if q.Frames() != 2 {
		t.Errorf("expected 2 frames, got %d", q.Frames())
	}
	if q.Tick() != 0 {
		t.Error("empty tick should run nothing")
	}
	if q.Frames() != 2 {
		t.Error("empty tick should not count as a frame")
	}
}

func TestFrameQueue_Drain(t *testing.T) {
	q := NewFrameQueue()
	depth := 0
	var reschedule func()
	reschedule = func() {
		depth++
		if depth < 3 {
			q.Schedule(reschedule)
		}
	}
	q.Schedule(reschedule)

	if frames := q.Drain(10); frames != 3 {
		t.Errorf("expected 3 frames, got %d", frames)
	}

	var forever func()
	forever = func() { q.Schedule(forever) }
	q.Schedule(forever)
	if frames := q.Drain(5); frames != 5 {
		t.Errorf("Drain should stop at the frame limit, got %d", frames)
	}
}

func TestLoop(t *testing.T) {
	loop := NewLoop(time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- loop.Run(ctx) }()

	frameRan := make(chan struct{})
	loop.Schedule(func() { close(frameRan) })

	select {
	case <-frameRan:
	case <-time.After(time.Second):
		t.Fatal("frame callback never ran")
	}

	value := 0
	if err := loop.Do(context.Background(), func() { value = 42 }); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if value != 42 {
		t.Errorf("expected Do to run on the loop, got %d", value)
	}

	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
