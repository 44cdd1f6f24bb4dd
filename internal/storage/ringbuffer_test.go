package storage

import (
	"sync"
	"testing"
)

// TestRingBufferBasic tests basic add and retrieval operations.
func TestRingBufferBasic(t *testing.T) {
	rb := NewRingBuffer[int](3)

	if rb.Size() != 0 {
		t.Fatalf("expected size 0, got %d", rb.Size())
	}
	if rb.Capacity() != 3 {
		t.Fatalf("expected capacity 3, got %d", rb.Capacity())
	}

	for i := 1; i <= 3; i++ {
		if _, evicted := rb.Add(i); evicted {
			t.Fatalf("unexpected eviction while adding %d", i)
		}
	}

	all := rb.GetAll()
	expected := []int{1, 2, 3}
	if len(all) != len(expected) {
		t.Fatalf("expected %d items, got %d", len(expected), len(all))
	}
	for i, val := range all {
		if val != expected[i] {
			t.Errorf("at index %d: expected %d, got %d", i, expected[i], val)
		}
	}
}

// TestRingBufferWrapping tests that the buffer wraps and reports evictions.
func TestRingBufferWrapping(t *testing.T) {
	rb := NewRingBuffer[int](3)
	rb.Add(1)
	rb.Add(2)
	rb.Add(3)

	old, evicted := rb.Add(4)
	if !evicted || old != 1 {
		t.Fatalf("expected eviction of 1, got %d (evicted=%v)", old, evicted)
	}

	rb.Add(5)
	old, _ = rb.Add(6)
	if old != 3 {
		t.Errorf("expected eviction of 3, got %d", old)
	}

	all := rb.GetAll()
	expected := []int{4, 5, 6}
	for i, val := range all {
		if val != expected[i] {
			t.Errorf("at index %d: expected %d, got %d", i, expected[i], val)
		}
	}
}

// TestRingBufferGetRecent tests the GetRecent method.
func TestRingBufferGetRecent(t *testing.T) {
	rb := NewRingBuffer[int](5)
	for i := 1; i <= 7; i++ {
		rb.Add(i)
	}

	recent := rb.GetRecent(2)
	if len(recent) != 2 || recent[0] != 6 || recent[1] != 7 {
		t.Errorf("expected [6 7], got %v", recent)
	}

	all := rb.GetRecent(10)
	if len(all) != 5 {
		t.Errorf("expected 5 items when asking for more than size, got %d", len(all))
	}
}

// TestRingBufferClear tests clearing the buffer.
func TestRingBufferClear(t *testing.T) {
	rb := NewRingBuffer[string](2)
	rb.Add("a")
	rb.Add("b")
	rb.Add("c")

	rb.Clear()
	if rb.Size() != 0 {
		t.Fatalf("expected size 0 after clear, got %d", rb.Size())
	}
	if all := rb.GetAll(); all != nil {
		t.Errorf("expected nil after clear, got %v", all)
	}

	if _, evicted := rb.Add("d"); evicted {
		t.Error("cleared buffer should not evict")
	}
	if all := rb.GetAll(); len(all) != 1 || all[0] != "d" {
		t.Errorf("expected [d], got %v", all)
	}
}

// TestRingBufferConcurrent tests concurrent adds and reads.
func TestRingBufferConcurrent(t *testing.T) {
	rb := NewRingBuffer[int](100)

	var wg sync.WaitGroup
	for w := 0; w < 10; w++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				rb.Add(base*100 + i)
				_ = rb.GetRecent(5)
			}
		}(w)
	}
	wg.Wait()

	if rb.Size() != 100 {
		t.Errorf("expected full buffer of 100, got %d", rb.Size())
	}
}

// TestRingBufferEmpty tests operations on an empty buffer.
func TestRingBufferEmpty(t *testing.T) {
	rb := NewRingBuffer[int](4)
	if all := rb.GetAll(); all != nil {
		t.Errorf("expected nil, got %v", all)
	}
	if recent := rb.GetRecent(3); recent != nil {
		t.Errorf("expected nil, got %v", recent)
	}
}
