package events

import (
	"container/heap"
	"sync"
	"time"
)

// Feed is a pull-based, time-ordered event queue. Events come out in
// non-decreasing timestamp order; equal timestamps preserve insertion order.
type Feed struct {
	mu  sync.Mutex
	h   eventHeap
	seq uint64
}

// NewFeed returns an empty feed.
func NewFeed() *Feed {
	return &Feed{}
}

// Push inserts an event into the feed.
func (f *Feed) Push(ev Event) {
	f.mu.Lock()
	f.seq++
	heap.Push(&f.h, queued{ev: ev, seq: f.seq})
	f.mu.Unlock()
}

// PopUntil removes and returns all events with timestamps at or before t.
func (f *Feed) PopUntil(t time.Time) []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Event
	for f.h.Len() > 0 && !f.h[0].ev.Time.After(t) {
		out = append(out, heap.Pop(&f.h).(queued).ev)
	}
	return out
}

// Len returns the number of queued events.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.h.Len()
}

type queued struct {
	ev  Event
	seq uint64
}

type eventHeap []queued

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].ev.Time.Equal(h[j].ev.Time) {
		return h[i].seq < h[j].seq
	}
	return h[i].ev.Time.Before(h[j].ev.Time)
}
func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) { *h = append(*h, x.(queued)) }

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}
