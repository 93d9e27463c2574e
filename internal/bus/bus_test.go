package bus

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestPublishAndDispatch(t *testing.T) {
	b := NewBus(4)

	var mu sync.Mutex
	var got []Notification
	b.SubscribeOutbound("test", func(n Notification) {
		mu.Lock()
		got = append(got, n)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.DispatchOutbound(ctx)

	if ok := b.Publish(Notification{Type: TypeEventSuggestion, Body: "AI Dinner looks relevant"}); !ok {
		t.Fatal("Publish returned false with empty buffer")
	}

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("notification never delivered")
		case <-time.After(10 * time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if got[0].Type != TypeEventSuggestion {
		t.Errorf("type = %q, want event_suggestion", got[0].Type)
	}
	if got[0].Priority != PriorityNormal {
		t.Errorf("priority = %q, want default normal", got[0].Priority)
	}
	if got[0].CreatedAt.IsZero() {
		t.Error("CreatedAt not stamped")
	}
}

func TestPublishFullBufferDrops(t *testing.T) {
	b := NewBus(1)
	if !b.Publish(Notification{Type: TypeStatusUpdate, Body: "a"}) {
		t.Fatal("first publish failed")
	}
	if b.Publish(Notification{Type: TypeStatusUpdate, Body: "b"}) {
		t.Error("second publish succeeded on a full buffer, want drop")
	}
}
