package stream

import (
	"context"
	"sync"
	"time"

	"alignd.io/internal/policy"
)

// DecisionEvent is the wire form of one policy decision pushed to live
// subscribers (the admin console's decision feed).
type DecisionEvent struct {
	RequestUserID   string            `json:"requestUserId"`
	EvaluatedUserID string            `json:"evaluatedUserId"`
	Action          policy.Action     `json:"action"`
	Allow           bool              `json:"allow"`
	Reason          policy.ReasonCode `json:"reason"`
	TenantID        string            `json:"tenantId,omitempty"`
	ObjectiveID     string            `json:"objectiveId,omitempty"`
	Timestamp       time.Time         `json:"timestamp"`
}

// FromDecision projects an engine decision into its event form.
func FromDecision(d policy.Decision) DecisionEvent {
	return DecisionEvent{
		RequestUserID:   d.Meta.RequestUserID,
		EvaluatedUserID: d.Meta.EvaluatedUserID,
		Action:          d.Meta.Action,
		Allow:           d.Allow,
		Reason:          d.Reason,
		TenantID:        d.Details.Resource.TenantID,
		ObjectiveID:     d.Details.Resource.ObjectiveID,
		Timestamp:       d.Meta.Timestamp,
	}
}

// Stream fan-outs decision events to all active subscribers (SSE clients).
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan DecisionEvent
	next int
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]chan DecisionEvent)}
}

// Subscribe registers a subscriber and returns a channel which will receive
// events. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan DecisionEvent {
	ch := make(chan DecisionEvent, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all subscribers.
func (s *Stream) Publish(evt DecisionEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}

// SubscriberCount reports the number of live subscribers.
func (s *Stream) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}
