package session

import (
	"sync"

	"github.com/nlmon/frr-converge/internal/events"
)

// qdiscRingBufferSize is N: the ring buffer never holds more
// than this many entries, oldest evicted first.
const qdiscRingBufferSize = 20

// QdiscRingBuffer is the bounded history of recent qdisc observations the
// netem-recognition heuristic consults to recognize delete messages that
// arrive without a kind attribute. It has its own lock and is never held
// across the session lock.
type QdiscRingBuffer struct {
	mu      sync.Mutex
	entries []events.QdiscEvent
}

func NewQdiscRingBuffer() *QdiscRingBuffer {
	return &QdiscRingBuffer{entries: make([]events.QdiscEvent, 0, qdiscRingBufferSize)}
}

// Push appends ev, evicting the oldest entry if the buffer is already full.
func (b *QdiscRingBuffer) Push(ev events.QdiscEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.entries) >= qdiscRingBufferSize {
		b.entries = b.entries[1:]
	}
	b.entries = append(b.entries, ev)
}

// HasRecentNetem reports whether any buffered entry for iface was observed
// with IsNetem set, searching newest-first.
func (b *QdiscRingBuffer) HasRecentNetem(iface string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := len(b.entries) - 1; i >= 0; i-- {
		if b.entries[i].Interface == iface && b.entries[i].IsNetem {
			return true
		}
	}
	return false
}

// Len returns the current number of buffered entries, for tests.
func (b *QdiscRingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}
