package webhook

import (
	"sync"
	"time"
)

// Entry is one operational log record exposed through /logs.
type Entry struct {
	Time    time.Time `json:"timestamp"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// Ring is a fixed-capacity, concurrency-safe ring buffer of log entries.
// Once full, the oldest entry is overwritten.
type Ring struct {
	mu       sync.Mutex
	entries  []Entry
	start    int
	count    int
	capacity int
}

// NewRing creates a ring buffer holding at most capacity entries.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring{entries: make([]Entry, capacity), capacity: capacity}
}

// Add appends an entry, evicting the oldest when full.
func (r *Ring) Add(level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	index := (r.start + r.count) % r.capacity
	r.entries[index] = Entry{Time: time.Now(), Level: level, Message: message}
	if r.count < r.capacity {
		r.count++
	} else {
		r.start = (r.start + 1) % r.capacity
	}
}

// Last returns up to n entries, oldest first. n <= 0 returns everything.
func (r *Ring) Last(n int) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n <= 0 || n > r.count {
		n = r.count
	}
	out := make([]Entry, 0, n)
	for i := r.count - n; i < r.count; i++ {
		out = append(out, r.entries[(r.start+i)%r.capacity])
	}
	return out
}
