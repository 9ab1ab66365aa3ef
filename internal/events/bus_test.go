package events

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestPublishReachesSubscriber(t *testing.T) {
	b := NewBus(4)
	sub := b.Subscribe(OwnerChannel)
	defer sub.Close()

	if n := b.Publish(OwnerChannel, NewRing("s1", "hello", "/static/snaps/s1.jpg")); n != 1 {
		t.Fatalf("publish reached %d subscribers, want 1", n)
	}
	select {
	case evt := <-sub.C:
		if evt.Kind != EventNewRing || evt.SessionID != "s1" {
			t.Fatalf("unexpected event: %+v", evt)
		}
		if evt.Timestamp.IsZero() {
			t.Fatal("timestamp not stamped")
		}
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestPublishWithoutSubscribers(t *testing.T) {
	b := NewBus(4)
	if n := b.Publish("nobody-home", SessionEnded("s1", "inactive")); n != 0 {
		t.Fatalf("publish reached %d subscribers, want 0", n)
	}
}

func TestOverflowDropsOldest(t *testing.T) {
	b := NewBus(2)
	sub := b.Subscribe("s1")
	defer sub.Close()

	b.Publish("s1", PipelineStage("s1", "processing"))
	b.Publish("s1", PipelineStage("s1", "perception_done"))
	b.Publish("s1", PipelineStage("s1", "intelligence_done"))

	first := <-sub.C
	second := <-sub.C
	if first.Data["status"] != "perception_done" || second.Data["status"] != "intelligence_done" {
		t.Fatalf("expected the oldest event dropped, got %v then %v", first.Data["status"], second.Data["status"])
	}
	select {
	case evt := <-sub.C:
		t.Fatalf("unexpected extra event: %+v", evt)
	default:
	}
}

func TestChannelsAreIsolated(t *testing.T) {
	b := NewBus(4)
	owner := b.Subscribe(OwnerChannel)
	session := b.Subscribe("s1")
	defer owner.Close()
	defer session.Close()

	b.Publish("s1", OwnerReply("s1", "coming down"))

	select {
	case <-owner.C:
		t.Fatal("owner channel received a session event")
	default:
	}
	if evt := <-session.C; evt.Data["message"] != "coming down" {
		t.Fatalf("unexpected session event: %+v", evt)
	}
}

func TestCloseStopsDelivery(t *testing.T) {
	b := NewBus(4)
	sub := b.Subscribe("s1")
	sub.Close()
	sub.Close() // idempotent

	if n := b.Publish("s1", SessionEnded("s1", "inactive")); n != 0 {
		t.Fatalf("publish after close reached %d subscribers, want 0", n)
	}
	if _, ok := <-sub.C; ok {
		t.Fatal("channel still open after Close")
	}
}

func TestConcurrentPublishAndClose(t *testing.T) {
	b := NewBus(8)

	var drainers sync.WaitGroup
	subs := make([]*Subscription, 4)
	for i := range subs {
		sub := b.Subscribe("s1")
		subs[i] = sub
		drainers.Add(1)
		go func() {
			defer drainers.Done()
			for range sub.C {
			}
		}()
	}

	var publishers sync.WaitGroup
	for i := 0; i < 4; i++ {
		publishers.Add(1)
		go func() {
			defer publishers.Done()
			for j := 0; j < 200; j++ {
				b.Publish("s1", PipelineStage("s1", "processing"))
			}
		}()
	}
	publishers.Wait()

	for _, sub := range subs {
		sub.Close()
	}
	drainers.Wait()
}

func TestEventMarshalFlattensPayload(t *testing.T) {
	evt := WeaponAlert("s3", []string{"knife"}, 0.82)
	evt.Timestamp = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	raw, err := json.Marshal(evt)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["type"] != "weapon_alert" || m["sessionId"] != "s3" {
		t.Fatalf("missing envelope fields: %v", m)
	}
	if m["confidence"] != 0.82 {
		t.Fatalf("payload not flattened: %v", m)
	}
	if _, nested := m["data"]; nested {
		t.Fatal("payload should not be nested under data")
	}
}
