package ui

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestDebounceFiresOnceWithLastArg(t *testing.T) {
	var calls atomic.Int32
	got := make(chan string, 4)
	d := NewDebouncer(30*time.Millisecond, func(q string) {
		calls.Add(1)
		got <- q
	})

	d.Call("d")
	d.Call("du")
	d.Call("dune")

	select {
	case q := <-got:
		if q != "dune" {
			t.Fatalf("got %q, want dune", q)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("debounced function never ran")
	}
	time.Sleep(60 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Fatalf("want 1 call, got %d", n)
	}
}

func TestDebounceStop(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(20*time.Millisecond, func(int) { calls.Add(1) })

	if d.Stop() {
		t.Fatalf("nothing pending yet")
	}
	d.Call(1)
	if !d.Stop() {
		t.Fatalf("pending call should be stopped")
	}
	time.Sleep(50 * time.Millisecond)
	if n := calls.Load(); n != 0 {
		t.Fatalf("stopped call ran %d times", n)
	}
}

func TestDebounceSeparateBursts(t *testing.T) {
	done := make(chan int, 4)
	d := NewDebouncer(10*time.Millisecond, func(v int) { done <- v })

	d.Call(1)
	if v := <-done; v != 1 {
		t.Fatalf("first burst: %d", v)
	}
	d.Call(2)
	if v := <-done; v != 2 {
		t.Fatalf("second burst: %d", v)
	}
}

func TestDebounceFlush(t *testing.T) {
	var got []string
	d := NewDebouncer(time.Hour, func(q string) { got = append(got, q) })

	if d.Flush() {
		t.Fatalf("nothing pending yet")
	}
	d.Call("du")
	d.Call("dune")
	if !d.Flush() {
		t.Fatalf("pending call should run")
	}
	if len(got) != 1 || got[0] != "dune" {
		t.Fatalf("flush ran %v, want [dune]", got)
	}
	if d.Flush() || d.Stop() {
		t.Fatalf("flushed call is still pending")
	}
}
