package events

import (
	"encoding/json"
	"sync"
	"time"
)

// EventKind represents the type of realtime event produced by the pipeline.
type EventKind string

const (
	EventNewRing       EventKind = "new_ring"
	EventPipelineStage EventKind = "pipeline_stage"
	EventWeaponAlert   EventKind = "weapon_alert"
	EventSessionEnded  EventKind = "session_ended"
	EventOwnerReply    EventKind = "owner_reply"
	EventAIReply       EventKind = "ai_reply"
)

// OwnerChannel receives ring notifications for the owner dashboard. Session
// channels are named by the session id itself.
const OwnerChannel = "owner"

// DefaultBuffer is the per-subscriber queue depth.
const DefaultBuffer = 64

// Event carries the kind, the session it concerns, and a small payload.
// Consumers needing full records query the store; only identifiers and
// display fields ride the bus.
type Event struct {
	Kind      EventKind
	SessionID string
	Data      map[string]any
	Timestamp time.Time
}

// MarshalJSON flattens Data into the top level so wire consumers see
// {"type": ..., "sessionId": ..., <payload fields>}.
func (e Event) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(e.Data)+3)
	for k, v := range e.Data {
		m[k] = v
	}
	m["type"] = string(e.Kind)
	if e.SessionID != "" {
		m["sessionId"] = e.SessionID
	}
	if !e.Timestamp.IsZero() {
		m["timestamp"] = e.Timestamp
	}
	return json.Marshal(m)
}

// Bus is a lightweight in-process pub-sub over named channels. Publishing
// never blocks: each subscriber has its own buffer, and when a buffer is
// full the oldest event is dropped so the newest survives. Delivery is
// at-most-once.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	buffer int
}

// NewBus creates a bus with the given per-subscriber buffer size.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Bus{
		subs:   make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
	}
}

// Subscription is one consumer's view of a channel. Receive from C; Close
// when done.
type Subscription struct {
	C       <-chan Event
	ch      chan Event
	channel string
	bus     *Bus
	once    sync.Once
}

// Subscribe registers a new consumer on the named channel.
func (b *Bus) Subscribe(channel string) *Subscription {
	ch := make(chan Event, b.buffer)
	sub := &Subscription{C: ch, ch: ch, channel: channel, bus: b}
	b.mu.Lock()
	set, ok := b.subs[channel]
	if !ok {
		set = make(map[*Subscription]struct{})
		b.subs[channel] = set
	}
	set[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Close removes the subscription and closes its channel. Safe to call more
// than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		if set, ok := s.bus.subs[s.channel]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(s.bus.subs, s.channel)
			}
		}
		close(s.ch)
		s.bus.mu.Unlock()
	})
}

// Publish delivers the event to every subscriber of the channel without
// blocking and returns the number of subscribers reached. A full subscriber
// buffer sheds its oldest event to make room.
func (b *Bus) Publish(channel string, evt Event) int {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for sub := range b.subs[channel] {
		select {
		case sub.ch <- evt:
		default:
			select {
			case <-sub.ch:
				droppedTotal.Inc()
			default:
			}
			select {
			case sub.ch <- evt:
			default:
			}
		}
		publishedTotal.Inc()
		n++
	}
	return n
}

// Event constructors keep payload keys consistent across publishers.

func NewRing(sessionID, greeting, imageURL string) Event {
	return Event{Kind: EventNewRing, SessionID: sessionID, Data: map[string]any{
		"greeting": greeting,
		"imageUrl": imageURL,
	}}
}

func PipelineStage(sessionID, status string) Event {
	return Event{Kind: EventPipelineStage, SessionID: sessionID, Data: map[string]any{
		"status": status,
	}}
}

func WeaponAlert(sessionID string, labels []string, confidence float64) Event {
	return Event{Kind: EventWeaponAlert, SessionID: sessionID, Data: map[string]any{
		"labels":     labels,
		"confidence": confidence,
	}}
}

func SessionEnded(sessionID, reason string) Event {
	return Event{Kind: EventSessionEnded, SessionID: sessionID, Data: map[string]any{
		"reason": reason,
	}}
}

func OwnerReply(sessionID, message string) Event {
	return Event{Kind: EventOwnerReply, SessionID: sessionID, Data: map[string]any{
		"message": message,
	}}
}

func AIReply(sessionID, message string) Event {
	return Event{Kind: EventAIReply, SessionID: sessionID, Data: map[string]any{
		"message": message,
	}}
}
