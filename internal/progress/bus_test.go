package progress

import (
	"testing"

	"github.com/saptiva-ai/alethia-deepresearch/internal/types"
)

func event(taskID string, et types.EventType) types.ProgressEvent {
	return types.ProgressEvent{TaskID: taskID, EventType: et}
}

func TestBusDeliveryOrder(t *testing.T) {
	b := NewBus()
	ch := b.Subscribe("t1")

	b.Publish(event("t1", types.EventStarted))
	b.Publish(event("t1", types.EventPlanning))
	b.Publish(event("t1", types.EventCompleted))

	for _, want := range []types.EventType{types.EventStarted, types.EventPlanning, types.EventCompleted} {
		got := <-ch
		if got.EventType != want {
			t.Errorf("got %s, want %s", got.EventType, want)
		}
	}
}

func TestBusTaskIsolation(t *testing.T) {
	// Subscribers only see their own task's events.
	b := NewBus()
	ch := b.Subscribe("t1")

	b.Publish(event("t2", types.EventStarted))
	b.Publish(event("t1", types.EventCompleted))

	if got := <-ch; got.TaskID != "t1" {
		t.Errorf("received event for task %s", got.TaskID)
	}
	select {
	case ev := <-ch:
		t.Errorf("unexpected extra event: %+v", ev)
	default:
	}
}

func TestBusNoReplay(t *testing.T) {
	// A late subscriber only sees events published after it joined.
	b := NewBus()
	b.Publish(event("t1", types.EventStarted))

	ch := b.Subscribe("t1")
	b.Publish(event("t1", types.EventCompleted))

	if got := <-ch; got.EventType != types.EventCompleted {
		t.Errorf("got %s, want completed only", got.EventType)
	}
}

func TestBusDropsSlowSubscriber(t *testing.T) {
	b := NewBus()
	slow := b.Subscribe("t1")
	fast := b.Subscribe("t1")

	// Overflow the slow subscriber's buffer without draining it.
	for i := 0; i < subscriberBufSize+1; i++ {
		b.Publish(event("t1", types.EventEvidence))
		// Keep the healthy subscriber drained so it survives.
		<-fast
	}

	// The slow subscriber was dropped: its channel is closed after the
	// buffered events.
	drained := 0
	for range slow {
		drained++
		if drained > subscriberBufSize {
			t.Fatal("slow subscriber channel was never closed")
		}
	}
	if drained != subscriberBufSize {
		t.Errorf("drained %d buffered events, want %d", drained, subscriberBufSize)
	}

	// The healthy subscriber keeps receiving.
	b.Publish(event("t1", types.EventCompleted))
	if got := <-fast; got.EventType != types.EventCompleted {
		t.Errorf("fast subscriber got %s, want completed", got.EventType)
	}
}

func TestBusUnsubscribe(t *testing.T) {
	b := NewBus()
	ch := b.Subscribe("t1")
	b.Unsubscribe("t1", ch)

	// The channel is closed and no longer receives.
	if _, open := <-ch; open {
		t.Error("channel still open after Unsubscribe")
	}
	b.Publish(event("t1", types.EventCompleted)) // must not panic
}

func TestBusClose(t *testing.T) {
	b := NewBus()
	ch1 := b.Subscribe("t1")
	ch2 := b.Subscribe("t1")
	b.Close("t1")

	if _, open := <-ch1; open {
		t.Error("ch1 still open after Close")
	}
	if _, open := <-ch2; open {
		t.Error("ch2 still open after Close")
	}
}

func TestBusSubscribeAfterClose(t *testing.T) {
	// Joining a finished task yields a closed channel, not one that waits
	// forever.
	b := NewBus()
	b.Subscribe("t1")
	b.Close("t1")

	ch := b.Subscribe("t1")
	if _, open := <-ch; open {
		t.Error("subscription to a closed task delivered an event")
	}
}
