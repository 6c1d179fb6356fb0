package router

import (
	"reflect"
	"testing"
)

func TestDispatcher_OrderWithSelfUnsubscribe(t *testing.T) {
	d := NewDispatcher(nil)

	var calls []string
	d.Subscribe("T", func(Message) { calls = append(calls, "H1") })

	var unsubH2 Unsubscribe
	unsubH2 = d.Subscribe("T", func(Message) {
		calls = append(calls, "H2")
		unsubH2()
	})

	d.Subscribe("T", func(Message) { calls = append(calls, "H3") })

	d.Publish(Message{Topic: "T"})
	if want := []string{"H1", "H2", "H3"}; !reflect.DeepEqual(calls, want) {
		t.Errorf("calls = %v, want %v", calls, want)
	}

	calls = nil
	d.Publish(Message{Topic: "T"})
	if want := []string{"H1", "H3"}; !reflect.DeepEqual(calls, want) {
		t.Errorf("second publish calls = %v, want %v", calls, want)
	}
}

func TestDispatcher_RemovedDuringPublishIsSkipped(t *testing.T) {
	d := NewDispatcher(nil)

	var calls []string
	var unsubH3 Unsubscribe
	d.Subscribe("T", func(Message) {
		calls = append(calls, "H1")
		unsubH3()
	})
	unsubH3 = d.Subscribe("T", func(Message) { calls = append(calls, "H3") })

	d.Publish(Message{Topic: "T"})
	if want := []string{"H1"}; !reflect.DeepEqual(calls, want) {
		t.Errorf("calls = %v, want %v", calls, want)
	}
}

func TestDispatcher_AddedDuringPublishWaitsForNext(t *testing.T) {
	d := NewDispatcher(nil)

	var calls []string
	added := false
	d.Subscribe("T", func(Message) {
		calls = append(calls, "H1")
		if !added {
			added = true
			d.Subscribe("T", func(Message) { calls = append(calls, "H2") })
		}
	})

	d.Publish(Message{Topic: "T"})
	d.Publish(Message{Topic: "T"})

	if want := []string{"H1", "H1", "H2"}; !reflect.DeepEqual(calls, want) {
		t.Errorf("calls = %v, want %v", calls, want)
	}
}

func TestDispatcher_UnsubscribeIdempotent(t *testing.T) {
	d := NewDispatcher(nil)

	count := 0
	unsub := d.Subscribe("T", func(Message) { count++ })
	d.Subscribe("T", func(Message) {})

	unsub()
	unsub()

	if n := d.HandlerCount("T"); n != 1 {
		t.Errorf("HandlerCount = %d, want 1", n)
	}

	d.Publish(Message{Topic: "T"})
	if count != 0 {
		t.Errorf("removed handler called %d times", count)
	}
}

func TestDispatcher_TopicsAreIndependent(t *testing.T) {
	d := NewDispatcher(nil)

	var got []string
	d.Subscribe(TopicPriceUpdate, func(m Message) { got = append(got, m.Topic) })
	d.Subscribe(TopicAlertTriggered, func(m Message) { got = append(got, m.Topic) })

	d.Publish(Message{Topic: TopicPriceUpdate})
	d.Publish(Message{Topic: "unknown"})

	if want := []string{TopicPriceUpdate}; !reflect.DeepEqual(got, want) {
		t.Errorf("got = %v, want %v", got, want)
	}
	if want := []string{TopicAlertTriggered, TopicPriceUpdate}; !reflect.DeepEqual(d.Topics(), want) {
		t.Errorf("Topics() = %v, want %v", d.Topics(), want)
	}

	stats := d.Stats()
	if stats.Published != 2 || stats.Delivered != 1 || stats.Undelivered != 1 || stats.Handlers != 2 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestDispatcher_PanicPropagates(t *testing.T) {
	d := NewDispatcher(nil)
	d.Subscribe("T", func(Message) { panic("boom") })

	defer func() {
		if r := recover(); r != "boom" {
			t.Errorf("recover() = %v, want boom", r)
		}
	}()
	d.Publish(Message{Topic: "T"})
	t.Fatal("Publish should have panicked")
}

func TestDispatcher_Clear(t *testing.T) {
	d := NewDispatcher(nil)

	called := false
	unsub := d.Subscribe("T", func(Message) { called = true })
	d.Subscribe("U", func(Message) {})

	d.Clear()
	d.Publish(Message{Topic: "T"})

	if called {
		t.Error("handler called after Clear")
	}
	if len(d.Topics()) != 0 {
		t.Errorf("Topics() = %v, want empty", d.Topics())
	}

	// Stale unsubscribe after Clear must not touch new registrations.
	d.Subscribe("T", func(Message) {})
	unsub()
	if n := d.HandlerCount("T"); n != 1 {
		t.Errorf("HandlerCount = %d, want 1", n)
	}
}

func TestDispatcher_PublishValue(t *testing.T) {
	d := NewDispatcher(nil)

	var got any
	d.Subscribe(TopicConnectionStatus, func(m Message) { got = m.Value })
	d.PublishValue(TopicConnectionStatus, "connected")

	if got != "connected" {
		t.Errorf("Value = %v, want connected", got)
	}
}
