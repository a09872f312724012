package ingest

import (
	"sync"
	"testing"
	"time"
)

func TestBufferPushPop(t *testing.T) {
	b := NewBuffer[int](8)

	for i := 0; i < 5; i++ {
		if !b.Push(i) {
			t.Fatalf("Push(%d) returned false", i)
		}
	}
	if b.Len() != 5 {
		t.Errorf("Len() = %d, want 5", b.Len())
	}

	for i := 0; i < 5; i++ {
		got, ok := b.Pop()
		if !ok {
			t.Fatalf("Pop() closed early at %d", i)
		}
		if got != i {
			t.Errorf("Pop() = %d, want %d (FIFO order)", got, i)
		}
	}
}

func TestBufferGrows(t *testing.T) {
	b := NewBuffer[int](4)

	for i := 0; i < 100; i++ {
		if !b.Push(i) {
			t.Fatalf("Push(%d) returned false", i)
		}
	}

	if b.Cap() <= 4 {
		t.Errorf("Cap() = %d, want growth beyond 4", b.Cap())
	}
	if b.Stats().Resizes == 0 {
		t.Error("Resizes = 0, want at least one resize")
	}

	// Order must survive the resizes.
	for i := 0; i < 100; i++ {
		got, ok := b.Pop()
		if !ok || got != i {
			t.Fatalf("Pop() = %d,%v, want %d,true", got, ok, i)
		}
	}
}

func TestBufferGrowPreservesWrappedOrder(t *testing.T) {
	b := NewBuffer[int](8)

	// Advance head so the ring wraps before growing.
	for i := 0; i < 4; i++ {
		b.Push(i)
	}
	for i := 0; i < 4; i++ {
		b.Pop()
	}
	for i := 0; i < 20; i++ {
		b.Push(100 + i)
	}
	for i := 0; i < 20; i++ {
		got, ok := b.Pop()
		if !ok || got != 100+i {
			t.Fatalf("Pop() = %d,%v, want %d,true", got, ok, 100+i)
		}
	}
}

func TestBufferDrain(t *testing.T) {
	b := NewBuffer[string](4)
	b.Push("a")
	b.Push("b")
	b.Push("c")

	got := b.Drain(2)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Drain(2) = %v, want [a b]", got)
	}

	got = b.Drain(0)
	if len(got) != 1 || got[0] != "c" {
		t.Errorf("Drain(0) = %v, want [c]", got)
	}

	if got = b.Drain(0); got != nil {
		t.Errorf("Drain on empty = %v, want nil", got)
	}
}

func TestBufferClose(t *testing.T) {
	b := NewBuffer[int](4)
	b.Push(1)
	b.Close()

	if b.Push(2) {
		t.Error("Push after Close returned true")
	}

	// Remaining item still drains.
	if got, ok := b.Pop(); !ok || got != 1 {
		t.Errorf("Pop() = %d,%v, want 1,true", got, ok)
	}
	if _, ok := b.Pop(); ok {
		t.Error("Pop on closed empty buffer returned ok")
	}
}

func TestBufferPopBlocksUntilPush(t *testing.T) {
	b := NewBuffer[int](4)

	var wg sync.WaitGroup
	wg.Add(1)
	var got int
	var ok bool
	go func() {
		defer wg.Done()
		got, ok = b.Pop()
	}()

	time.Sleep(20 * time.Millisecond)
	b.Push(42)
	wg.Wait()

	if !ok || got != 42 {
		t.Errorf("Pop() = %d,%v, want 42,true", got, ok)
	}
}
