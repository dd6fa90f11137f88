package eventbus

import "testing"

type progress struct {
	Period    int
	Iteration int
}

func TestTypedBusPublishSubscribe(t *testing.T) {
	bus := NewTyped[progress]()
	ch := bus.Subscribe()
	bus.Publish(progress{Period: 2, Iteration: 7})
	v := <-ch
	if v.Period != 2 || v.Iteration != 7 {
		t.Fatalf("unexpected event %+v", v)
	}
	bus.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel closed after unsubscribe")
	}
}

func TestTypedBusDropsWhenFull(t *testing.T) {
	bus := NewTypedWithBuffer[int](1)
	ch := bus.Subscribe()
	bus.Publish(1)
	bus.Publish(2)
	if v := <-ch; v != 1 {
		t.Fatalf("expected first event, got %d", v)
	}
	select {
	case v := <-ch:
		t.Fatalf("expected dropped event, got %d", v)
	default:
	}
	if n := bus.Dropped(); n != 1 {
		t.Fatalf("expected 1 dropped delivery, got %d", n)
	}
}

func TestTypedBusClose(t *testing.T) {
	bus := NewTyped[int]()
	ch1 := bus.Subscribe()
	ch2 := bus.Subscribe()
	bus.Close()
	bus.Close()
	if _, ok := <-ch1; ok {
		t.Fatalf("expected ch1 closed")
	}
	if _, ok := <-ch2; ok {
		t.Fatalf("expected ch2 closed")
	}
	bus.Publish(3)
	if _, ok := <-bus.Subscribe(); ok {
		t.Fatalf("expected subscription after close to be closed")
	}
}

func TestTypedBusUnsubscribeAfterClose(t *testing.T) {
	bus := NewTyped[float64]()
	ch := bus.Subscribe()
	bus.Close()
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("panic on Unsubscribe after Close: %v", r)
		}
	}()
	bus.Unsubscribe(ch)
}
