package acp

import "testing"

func TestBroadcasterReplayThenLive(t *testing.T) {
	b := newBroadcaster(8)
	sub := b.subscribe([]Event{{Kind: KindUserMessage, Text: "hi"}})
	b.publish(Event{Kind: KindMessageChunk, Text: "there"})

	first := <-sub.Events
	if first.Text != "hi" {
		t.Fatalf("expected replayed event first, got %+v", first)
	}
	second := <-sub.Events
	if second.Text != "there" {
		t.Fatalf("expected live event second, got %+v", second)
	}
}

func TestBroadcasterLaggingSubscriberSkipsWithoutBlocking(t *testing.T) {
	b := newBroadcaster(1)
	sub := b.subscribe(nil)

	// Fill the subscriber's buffer, then publish one more: publish must
	// not block even though the channel is full.
	b.publish(Event{Kind: KindMessageChunk, Text: "first"})
	done := make(chan struct{})
	go func() {
		b.publish(Event{Kind: KindMessageChunk, Text: "second"})
		close(done)
	}()
	<-done // publish must return promptly regardless of subscriber buffer state

	got := <-sub.Events
	if got.Text != "first" {
		t.Errorf("expected to still receive the first buffered event, got %+v", got)
	}
}

func TestBroadcasterSessionEndedClosesSubscribers(t *testing.T) {
	b := newBroadcaster(8)
	sub := b.subscribe(nil)
	b.publish(Event{Kind: KindSessionEnded})

	for range sub.Events {
	}
	// channel drained and closed; a second publish must not panic on a
	// stale subscriber map entry.
	b.publish(Event{Kind: KindMessageChunk, Text: "after end"})
}

func TestSubscriberUnsubscribeIsIdempotentWithSessionEnded(t *testing.T) {
	b := newBroadcaster(8)
	sub := b.subscribe(nil)
	sub.Unsubscribe()
	// SessionEnded fires after explicit Unsubscribe already dropped the
	// channel; drop() must not double-close it.
	b.publish(Event{Kind: KindSessionEnded})
}
