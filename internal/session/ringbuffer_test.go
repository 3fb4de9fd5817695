package session

import (
	"testing"

	"github.com/nlmon/frr-converge/internal/events"
)

func TestQdiscRingBuffer_EvictsOldestWhenFull(t *testing.T) {
	b := NewQdiscRingBuffer()

	for i := 0; i < 21; i++ {
		b.Push(events.QdiscEvent{Interface: "eth0", Timestamp: int64(i)})
	}

	if got := b.Len(); got != 20 {
		t.Fatalf("Len() = %d, want 20", got)
	}
}

func TestQdiscRingBuffer_HasRecentNetem(t *testing.T) {
	b := NewQdiscRingBuffer()
	b.Push(events.QdiscEvent{Interface: "eth0", IsNetem: true})
	b.Push(events.QdiscEvent{Interface: "eth1", IsNetem: false})

	if !b.HasRecentNetem("eth0") {
		t.Error("HasRecentNetem(eth0) = false, want true")
	}
	if b.HasRecentNetem("eth1") {
		t.Error("HasRecentNetem(eth1) = true, want false")
	}
	if b.HasRecentNetem("eth2") {
		t.Error("HasRecentNetem(eth2) = true, want false for unseen interface")
	}
}

func TestQdiscRingBuffer_OldestEvictedFirst(t *testing.T) {
	b := NewQdiscRingBuffer()
	b.Push(events.QdiscEvent{Interface: "eth0", IsNetem: true})
	for i := 0; i < 20; i++ {
		b.Push(events.QdiscEvent{Interface: "ethX", IsNetem: false})
	}

	if b.HasRecentNetem("eth0") {
		t.Error("HasRecentNetem(eth0) = true, want false after eviction")
	}
}
