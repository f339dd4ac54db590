package eventbus

import (
	"testing"
	"time"
)

func TestPublishFanout(t *testing.T) {
	t.Parallel()
	b := New()
	ch1, unsub1 := b.Subscribe(4)
	ch2, unsub2 := b.Subscribe(4)
	defer unsub1()
	defer unsub2()

	b.Publish(Event{Type: CampaignStarted})

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.Type != CampaignStarted {
				t.Fatalf("unexpected event %q", ev.Type)
			}
			if ev.Time.IsZero() {
				t.Fatalf("publish did not stamp time")
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber did not receive event")
		}
	}
}

func TestPublishDropsWhenSubscriberFull(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(1)
	defer unsub()

	b.Publish(Event{Type: ChannelReady})
	// Buffer is full now; this one must be dropped, not block.
	done := make(chan struct{})
	go func() {
		b.Publish(Event{Type: ChannelDisconnected})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("publish blocked on a full subscriber")
	}

	if ev := <-ch; ev.Type != ChannelReady {
		t.Fatalf("first event lost, got %q", ev.Type)
	}
}

func TestPublishAfterUnsubscribe(t *testing.T) {
	t.Parallel()
	b := New()
	_, unsub := b.Subscribe(1)
	unsub()
	// Must not panic even though the channel is closed.
	b.Publish(Event{Type: WritebackFailed})
}
