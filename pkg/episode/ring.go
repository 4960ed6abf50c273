package episode

import (
	"sync"

	"github.com/quarzal/quintile/pkg/model"
)

// Ring is a circular buffer keeping the most recent episodes for streaming
// scoring, with fixed capacity
type Ring struct {
	data     []*model.Episode
	capacity int
	size     int
	head     int // points to the next write position
	mu       sync.RWMutex
}

// NewRing creates a new ring with the specified capacity
func NewRing(capacity int) *Ring {
	return &Ring{
		data:     make([]*model.Episode, capacity),
		capacity: capacity,
	}
}

// Push adds an episode to the ring
// If the ring is full, the oldest episode is overwritten
func (r *Ring) Push(e *model.Episode) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.data[r.head] = e
	r.head = (r.head + 1) % r.capacity
	if r.size < r.capacity {
		r.size++
	}
}

// Size returns the current number of episodes in the ring
func (r *Ring) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// IsFull returns true if the ring is at capacity
func (r *Ring) IsFull() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size == r.capacity
}

// Capacity returns the maximum capacity of the ring
func (r *Ring) Capacity() int {
	return r.capacity
}

// ToSlice returns all episodes oldest first
func (r *Ring) ToSlice() []*model.Episode {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*model.Episode, r.size)
	if r.size == 0 {
		return result
	}

	start := 0
	if r.size == r.capacity {
		start = r.head
	}

	for i := 0; i < r.size; i++ {
		idx := (start + i) % r.capacity
		result[i] = r.data[idx]
	}

	return result
}

// Last returns the most recent episode, or nil when the ring is empty
func (r *Ring) Last() *model.Episode {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.size == 0 {
		return nil
	}
	return r.data[(r.head-1+r.capacity)%r.capacity]
}

// Clear empties the ring
func (r *Ring) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.data {
		r.data[i] = nil
	}
	r.size = 0
	r.head = 0
}
