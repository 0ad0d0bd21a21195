package source

import "sync"

// Watchlist is a concurrent FIFO of keys waiting to be fetched by a
// pull-driven adapter (contract metadata, DEX listing, social). Keys are
// deduplicated while queued; a key that has been taken may be re-added,
// which is how periodic re-sweeps of already-known entities work.
type Watchlist struct {
	mu     sync.Mutex
	queue  []string
	queued map[string]struct{}
}

// NewWatchlist creates an empty watchlist.
func NewWatchlist() *Watchlist {
	return &Watchlist{queued: make(map[string]struct{})}
}

// Add enqueues a key unless it is already waiting.
func (w *Watchlist) Add(key string) {
	if key == "" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.queued[key]; ok {
		return
	}
	w.queued[key] = struct{}{}
	w.queue = append(w.queue, key)
}

// Take removes and returns up to n keys in FIFO order.
func (w *Watchlist) Take(n int) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if n > len(w.queue) {
		n = len(w.queue)
	}
	if n <= 0 {
		return nil
	}
	taken := make([]string, n)
	copy(taken, w.queue[:n])
	w.queue = append([]string(nil), w.queue[n:]...)
	for _, k := range taken {
		delete(w.queued, k)
	}
	return taken
}

// Len returns the number of keys waiting.
func (w *Watchlist) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}
