package testfixtures

import (
	"sync"
	"testing"
)

func TestIDGeneratorProducesSequentialIDs(t *testing.T) {
	gen := NewIDGenerator("booking")

	first := gen.Next()
	second := gen.Next()

	if first != "booking-1" || second != "booking-2" {
		t.Fatalf("unexpected identifiers: %q, %q", first, second)
	}
}

func TestIDGeneratorConcurrentUse(t *testing.T) {
	gen := NewIDGenerator("")
	seen := sync.Map{}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, dup := seen.LoadOrStore(gen.Next(), struct{}{}); dup {
				t.Errorf("duplicate id")
			}
		}()
	}
	wg.Wait()
	if gen.Issued() != 50 {
		t.Fatalf("expected 50 ids, got %d", gen.Issued())
	}
}
