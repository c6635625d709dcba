package dispatch

import (
	"io"
	"testing"
	"time"

	"github.com/pietro2356/gr-selcall/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Output: io.Discard})
}

func recv(t *testing.T, sub *Subscriber) Event {
	t.Helper()
	select {
	case evt, ok := <-sub.Events():
		if !ok {
			t.Fatalf("subscriber %q channel closed", sub.Name())
		}
		return evt
	case <-time.After(time.Second):
		t.Fatalf("subscriber %q got no event", sub.Name())
		return Event{}
	}
}

func TestDispatcher_FanOut(t *testing.T) {
	d := New(testLogger())
	decodes := d.Subscribe("decodes-only", 8, EventDecode)
	all := d.Subscribe("everything", 8)

	d.Publish(NewEvent(EventDecode, "first"))
	d.Publish(NewEvent(EventGate, "second"))

	evt := recv(t, decodes)
	if evt.Type != EventDecode || evt.Payload != "first" {
		t.Errorf("filtered subscriber got %v %v", evt.Type, evt.Payload)
	}
	select {
	case evt := <-decodes.Events():
		t.Errorf("filtered subscriber got extra event %v", evt.Type)
	default:
	}

	if evt := recv(t, all); evt.Type != EventDecode {
		t.Errorf("wildcard event 1 = %v, want decode", evt.Type)
	}
	if evt := recv(t, all); evt.Type != EventGate {
		t.Errorf("wildcard event 2 = %v, want gate", evt.Type)
	}
}

func TestDispatcher_OrderPreserved(t *testing.T) {
	d := New(testLogger())
	sub := d.Subscribe("ordered", 128)

	for i := 0; i < 100; i++ {
		d.Publish(NewEvent(EventStatus, i))
	}
	for i := 0; i < 100; i++ {
		evt := recv(t, sub)
		if evt.Payload != i {
			t.Fatalf("event %d carried payload %v", i, evt.Payload)
		}
	}
}

func TestDispatcher_DropOnFull(t *testing.T) {
	d := New(testLogger())
	sub := d.Subscribe("slow", 1)

	d.Publish(NewEvent(EventDecode, 1))
	d.Publish(NewEvent(EventDecode, 2))
	d.Publish(NewEvent(EventDecode, 3))

	if evt := recv(t, sub); evt.Payload != 1 {
		t.Errorf("delivered payload = %v, want 1", evt.Payload)
	}
	if n := sub.Drops(); n != 2 {
		t.Errorf("subscriber drops = %d, want 2", n)
	}
	if n := d.Drops(); n != 2 {
		t.Errorf("dispatcher drops = %d, want 2", n)
	}
}

func TestDispatcher_Unsubscribe(t *testing.T) {
	d := New(testLogger())
	sub := d.Subscribe("temp", 8)
	d.Unsubscribe("temp")

	if n := d.SubscriberCount(); n != 0 {
		t.Errorf("SubscriberCount = %d, want 0", n)
	}
	if _, ok := <-sub.Events(); ok {
		t.Error("channel should be closed after Unsubscribe")
	}

	// publishing to nobody is fine
	d.Publish(NewEvent(EventDecode, nil))
}

func TestDispatcher_ResubscribeReplaces(t *testing.T) {
	d := New(testLogger())
	first := d.Subscribe("mqtt", 8)
	second := d.Subscribe("mqtt", 8)

	if n := d.SubscriberCount(); n != 1 {
		t.Fatalf("SubscriberCount = %d, want 1", n)
	}
	if _, ok := <-first.Events(); ok {
		t.Error("replaced subscriber channel should be closed")
	}

	d.Publish(NewEvent(EventDecode, "x"))
	if evt := recv(t, second); evt.Payload != "x" {
		t.Errorf("replacement got %v", evt.Payload)
	}
}

func TestDispatcher_Close(t *testing.T) {
	d := New(testLogger())
	a := d.Subscribe("a", 8)
	b := d.Subscribe("b", 8)
	d.Close()

	if n := d.SubscriberCount(); n != 0 {
		t.Errorf("SubscriberCount = %d, want 0", n)
	}
	if _, ok := <-a.Events(); ok {
		t.Error("subscriber a channel should be closed")
	}
	if _, ok := <-b.Events(); ok {
		t.Error("subscriber b channel should be closed")
	}
}

func TestDispatcher_StampsTimestamp(t *testing.T) {
	d := New(testLogger())
	sub := d.Subscribe("stamped", 8)

	d.Publish(Event{Type: EventGate, Payload: true})
	if evt := recv(t, sub); evt.Timestamp.IsZero() {
		t.Error("published event has zero timestamp")
	}

	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	d.Publish(Event{Type: EventGate, Timestamp: fixed, Payload: true})
	if evt := recv(t, sub); !evt.Timestamp.Equal(fixed) {
		t.Errorf("explicit timestamp rewritten to %v", evt.Timestamp)
	}
}
