// Package progress fans research events out to live subscribers, keyed by
// task. WebSocket handlers subscribe here; the orchestrator publishes.
package progress

import (
	"log"
	"sync"

	"github.com/saptiva-ai/alethia-deepresearch/internal/types"
)

const subscriberBufSize = 64

// Bus is the per-task progress bus. Delivery is ordered per subscriber and
// best-effort: there is no replay for late joiners, and a subscriber that
// stops draining its channel is removed rather than stalling the publisher.
type Bus struct {
	mu          sync.Mutex
	subscribers map[string][]chan types.ProgressEvent
	finished    map[string]bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[string][]chan types.ProgressEvent),
		finished:    make(map[string]bool),
	}
}

// Publish fans ev out to every subscriber of ev.TaskID. Non-blocking: a
// subscriber whose buffer is full is dropped with a warning, and its channel
// closed.
func (b *Bus) Publish(ev types.ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[ev.TaskID]
	kept := subs[:0]
	for _, ch := range subs {
		select {
		case ch <- ev:
			kept = append(kept, ch)
		default:
			log.Printf("[PROGRESS] WARNING: slow subscriber for task=%s, dropping it", ev.TaskID)
			close(ch)
		}
	}
	if len(kept) == 0 {
		delete(b.subscribers, ev.TaskID)
	} else {
		b.subscribers[ev.TaskID] = kept
	}
}

// Subscribe returns a receive-only channel delivering events for taskID,
// starting from the next published event. Each call creates an independent
// subscriber. Subscribing to a task that was already closed returns a closed
// channel, so consumers see end-of-stream immediately.
func (b *Bus) Subscribe(taskID string) <-chan types.ProgressEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finished[taskID] {
		ch := make(chan types.ProgressEvent)
		close(ch)
		return ch
	}
	ch := make(chan types.ProgressEvent, subscriberBufSize)
	b.subscribers[taskID] = append(b.subscribers[taskID], ch)
	return ch
}

// Unsubscribe detaches ch from taskID and closes it. Safe to call for a
// channel the bus already dropped.
func (b *Bus) Unsubscribe(taskID string, ch <-chan types.ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[taskID]
	for i, sub := range subs {
		if sub == ch {
			b.subscribers[taskID] = append(subs[:i], subs[i+1:]...)
			close(sub)
			break
		}
	}
	if len(b.subscribers[taskID]) == 0 {
		delete(b.subscribers, taskID)
	}
}

// Close drops every subscriber for taskID and marks the task finished. The
// task manager calls this once the terminal event has been published; later
// Subscribe calls for the task see a closed channel.
func (b *Bus) Close(taskID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subscribers[taskID] {
		close(ch)
	}
	delete(b.subscribers, taskID)
	b.finished[taskID] = true
}
