// Package bus carries outbound notifications from the agent to the
// delivery channels.
package bus

import (
	"context"
	"log"
	"sync"
	"time"
)

// Notification types sent to the user.
const (
	TypeEventSuggestion      = "event_suggestion"
	TypeApplicationSubmitted = "application_submitted"
	TypeManualRequired       = "manual_required"
	TypeDraftReview          = "draft_review"
	TypeStatusUpdate         = "status_update"
)

// Priorities, used by channels to decide formatting and urgency.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// Notification is one outbound message to the user.
type Notification struct {
	Type      string         `json:"type"`
	Priority  string         `json:"priority"`
	Title     string         `json:"title,omitempty"`
	Body      string         `json:"body"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

type subscriber struct {
	name string
	fn   func(Notification)
}

// Bus fans notifications out to every subscribed channel.
type Bus struct {
	Outbound chan Notification

	mu   sync.RWMutex
	subs []subscriber
}

func NewBus(bufSize int) *Bus {
	if bufSize <= 0 {
		bufSize = 1
	}
	return &Bus{Outbound: make(chan Notification, bufSize)}
}

// SubscribeOutbound registers a delivery callback under a channel
// name. Callbacks run on the dispatch goroutine.
func (b *Bus) SubscribeOutbound(name string, fn func(Notification)) {
	b.mu.Lock()
	b.subs = append(b.subs, subscriber{name: name, fn: fn})
	b.mu.Unlock()
}

// Publish enqueues a notification without blocking the caller. A full
// buffer drops the notification with a log line rather than stalling
// the agent loop.
func (b *Bus) Publish(n Notification) bool {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	if n.Priority == "" {
		n.Priority = PriorityNormal
	}
	select {
	case b.Outbound <- n:
		return true
	default:
		log.Printf("[bus] outbound buffer full, dropping %s notification", n.Type)
		return false
	}
}

// DispatchOutbound delivers queued notifications to subscribers until
// the context is cancelled.
func (b *Bus) DispatchOutbound(ctx context.Context) {
	for {
		select {
		case n := <-b.Outbound:
			b.mu.RLock()
			subs := b.subs
			b.mu.RUnlock()
			if len(subs) == 0 {
				log.Printf("[bus] no channels configured, %s: %s %s", n.Type, n.Title, n.Body)
				continue
			}
			for _, s := range subs {
				s.fn(n)
			}
		case <-ctx.Done():
			return
		}
	}
}
