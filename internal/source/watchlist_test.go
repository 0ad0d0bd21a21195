package source

import (
	"fmt"
	"sync"
	"testing"
)

func TestWatchlistFIFO(t *testing.T) {
	w := NewWatchlist()
	w.Add("a")
	w.Add("b")
	w.Add("c")

	got := w.Take(2)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("Take(2) = %v, want [a b]", got)
	}
	if w.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", w.Len())
	}
}

func TestWatchlistDedupWhileQueued(t *testing.T) {
	w := NewWatchlist()
	w.Add("a")
	w.Add("a")
	if w.Len() != 1 {
		t.Fatalf("duplicate add should be ignored, Len() = %d", w.Len())
	}

	w.Take(1)
	w.Add("a") // re-add after take is allowed
	if w.Len() != 1 {
		t.Fatalf("re-add after take should enqueue, Len() = %d", w.Len())
	}
}

func TestWatchlistTakeMoreThanQueued(t *testing.T) {
	w := NewWatchlist()
	w.Add("only")
	got := w.Take(10)
	if len(got) != 1 || got[0] != "only" {
		t.Fatalf("Take(10) = %v, want [only]", got)
	}
	if got := w.Take(5); got != nil {
		t.Fatalf("Take on empty = %v, want nil", got)
	}
}

func TestWatchlistConcurrent(t *testing.T) {
	w := NewWatchlist()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				w.Add(fmt.Sprintf("key-%d-%d", n, j))
				w.Take(1)
			}
		}(i)
	}
	wg.Wait()
	// Drain whatever is left; total adds equal total takes plus remainder.
	rest := w.Take(w.Len())
	if w.Len() != 0 {
		t.Fatalf("watchlist not drained, %d left after taking %d", w.Len(), len(rest))
	}
}
