package router

import (
	"sync"
	"testing"
	"time"
)

func TestGrowableBuffer_FIFO(t *testing.T) {
	buf := NewGrowableBuffer[Message](4)

	topics := []string{"a", "b", "c", "d", "e", "f", "g"}
	for _, topic := range topics {
		if !buf.Send(Message{Topic: topic}) {
			t.Fatalf("Send(%q) returned false", topic)
		}
	}

	if buf.Len() != len(topics) {
		t.Errorf("Len() = %d, want %d", buf.Len(), len(topics))
	}

	for _, want := range topics {
		msg, ok := buf.TryReceive()
		if !ok {
			t.Fatalf("TryReceive() returned false, want %q", want)
		}
		if msg.Topic != want {
			t.Errorf("Topic = %q, want %q", msg.Topic, want)
		}
	}

	if _, ok := buf.TryReceive(); ok {
		t.Error("TryReceive() on empty buffer returned true")
	}
}

func TestGrowableBuffer_GrowAt70Percent(t *testing.T) {
	buf := NewGrowableBuffer[int](10)

	for i := 0; i < 7; i++ {
		buf.Send(i)
	}

	stats := buf.Stats()
	if stats.Capacity != 20 {
		t.Errorf("Capacity = %d, want 20", stats.Capacity)
	}
	if stats.ResizeCount != 1 {
		t.Errorf("ResizeCount = %d, want 1", stats.ResizeCount)
	}
}

func TestGrowableBuffer_WrapAroundGrowKeepsOrder(t *testing.T) {
	buf := NewGrowableBuffer[int](5)

	buf.Send(1)
	buf.Send(2)
	buf.TryReceive()
	buf.TryReceive()

	for i := 3; i <= 20; i++ {
		buf.Send(i)
	}

	for want := 3; want <= 20; want++ {
		got, ok := buf.TryReceive()
		if !ok {
			t.Fatalf("TryReceive failed, want %d", want)
		}
		if got != want {
			t.Fatalf("got %d, want %d", got, want)
		}
	}
}

func TestGrowableBuffer_BlockingReceive(t *testing.T) {
	buf := NewGrowableBuffer[int](10)
	received := make(chan int, 1)

	go func() {
		if v, ok := buf.Receive(); ok {
			received <- v
		}
	}()

	time.Sleep(10 * time.Millisecond)
	buf.Send(42)

	select {
	case v := <-received:
		if v != 42 {
			t.Errorf("received %d, want 42", v)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for blocked receive")
	}
}

func TestGrowableBuffer_Close(t *testing.T) {
	buf := NewGrowableBuffer[int](10)
	buf.Send(1)
	buf.Send(2)
	buf.Close()

	if buf.Send(3) {
		t.Error("Send should return false after Close")
	}

	// Queued items survive Close.
	if v, ok := buf.Receive(); !ok || v != 1 {
		t.Errorf("Receive() = %d, %v; want 1, true", v, ok)
	}
	if v, ok := buf.Receive(); !ok || v != 2 {
		t.Errorf("Receive() = %d, %v; want 2, true", v, ok)
	}
	if _, ok := buf.Receive(); ok {
		t.Error("Receive should return false when closed and empty")
	}
}

func TestGrowableBuffer_CloseUnblocksReceivers(t *testing.T) {
	buf := NewGrowableBuffer[int](10)
	done := make(chan bool, 2)

	go func() {
		_, ok := buf.Receive()
		done <- ok
	}()
	go func() {
		done <- buf.ReceiveBatch(0) != nil
	}()

	time.Sleep(10 * time.Millisecond)
	buf.Close()

	for i := 0; i < 2; i++ {
		select {
		case ok := <-done:
			if ok {
				t.Error("receiver should report closed")
			}
		case <-time.After(time.Second):
			t.Fatal("Close did not unblock receiver")
		}
	}
}

func TestGrowableBuffer_DrainAndBatch(t *testing.T) {
	buf := NewGrowableBuffer[int](10)
	for i := 0; i < 10; i++ {
		buf.Send(i)
	}

	items := buf.DrainTo(4)
	if len(items) != 4 || items[0] != 0 || items[3] != 3 {
		t.Errorf("DrainTo(4) = %v", items)
	}

	items = buf.ReceiveBatch(0)
	if len(items) != 6 || items[0] != 4 || items[5] != 9 {
		t.Errorf("ReceiveBatch(0) = %v", items)
	}

	if items := buf.DrainTo(0); items != nil {
		t.Errorf("DrainTo on empty buffer = %v, want nil", items)
	}
}

func TestGrowableBuffer_ConcurrentSendReceive(t *testing.T) {
	buf := NewGrowableBuffer[int](4)
	const n = 1000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			buf.Send(i)
		}
	}()

	got := make([]int, 0, n)
	for len(got) < n {
		v, ok := buf.Receive()
		if !ok {
			break
		}
		got = append(got, v)
	}
	wg.Wait()

	// Single producer, single consumer: order is preserved.
	for i, v := range got {
		if v != i {
			t.Fatalf("got[%d] = %d, want %d", i, v, i)
		}
	}

	stats := buf.Stats()
	if stats.TotalReceived != n || stats.TotalSent != n || stats.Count != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestNewGrowableBuffer_MinCapacity(t *testing.T) {
	for _, c := range []int{0, -5} {
		if got := NewGrowableBuffer[int](c).Cap(); got != 1 {
			t.Errorf("Cap() = %d for initial capacity %d, want 1", got, c)
		}
	}
}
