package eventbus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lodestone-ai/lodestone/pkg/events"
)

func TestNextDeliversInOrder(t *testing.T) {
	b := New()
	for _, delta := range []string{"a", "b", "c"} {
		if err := b.Publish(events.Content(delta)); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	for _, want := range []string{"a", "b", "c"} {
		ev, err := b.Next(context.Background())
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if ev.Type != events.TypeContent || ev.Value != want {
			t.Errorf("got %v %v, want content %q", ev.Type, ev.Value, want)
		}
	}
}

func TestNextBlocksUntilPublish(t *testing.T) {
	b := New()
	got := make(chan events.Event, 1)
	go func() {
		ev, err := b.Next(context.Background())
		if err != nil {
			t.Errorf("Next: %v", err)
		}
		got <- ev
	}()

	time.Sleep(20 * time.Millisecond)
	if err := b.Publish(events.Content("late")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case ev := <-got:
		if ev.Value != "late" {
			t.Errorf("got %v", ev.Value)
		}
	case <-time.After(time.Second):
		t.Fatal("Next never returned")
	}
}

func TestNextContextCancelled(t *testing.T) {
	b := New()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := b.Next(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}

func TestCloseDrainsThenReportsClosed(t *testing.T) {
	b := New()
	_ = b.Publish(events.Content("pending"))
	b.Close()

	if err := b.Publish(events.Content("after")); !errors.Is(err, ErrBusClosed) {
		t.Fatalf("Publish after Close: got %v, want ErrBusClosed", err)
	}

	// The queued event is still readable.
	ev, err := b.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ev.Value != "pending" {
		t.Errorf("got %v", ev.Value)
	}

	if _, err := b.Next(context.Background()); !errors.Is(err, ErrBusClosed) {
		t.Fatalf("drained Next: got %v, want ErrBusClosed", err)
	}
}

func TestSubscribeReceivesInOrder(t *testing.T) {
	b := New()
	ch, cancel := b.Subscribe()
	defer cancel()

	go func() {
		for i := 0; i < 3; i++ {
			_ = b.Publish(events.Event{Type: events.TypeContent, Value: i})
		}
	}()

	for want := 0; want < 3; want++ {
		select {
		case ev := <-ch:
			if ev.Value != want {
				t.Errorf("got %v, want %d", ev.Value, want)
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber starved")
		}
	}
}

func TestLateSubscriberSeesNoHistory(t *testing.T) {
	b := New()
	_ = b.Publish(events.Content("before"))

	ch, cancel := b.Subscribe()
	defer cancel()
	_ = b.Publish(events.Content("after"))

	select {
	case ev := <-ch:
		if ev.Value != "after" {
			t.Errorf("late subscriber got historical event %v", ev.Value)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber starved")
	}
}

func TestPublishDoesNotBlockOnSlowSubscriber(t *testing.T) {
	b := New()
	_, cancel := b.Subscribe() // never read
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			_ = b.Publish(events.Event{Type: events.TypeContent, Value: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}

func TestSubscriberChannelClosesOnBusClose(t *testing.T) {
	b := New()
	ch, _ := b.Subscribe()
	b.Close()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("subscriber channel never closed")
		}
	}
}

func TestSubscribeAfterClose(t *testing.T) {
	b := New()
	b.Close()
	ch, cancel := b.Subscribe()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("subscription on a closed bus should be closed")
	}
}
