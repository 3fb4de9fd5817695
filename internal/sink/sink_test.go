package sink

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openTestSink(t *testing.T) (*Sink, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "converge.jsonl")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return s, path
}

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open log file: %v", err)
	}
	defer f.Close()

	var out []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var m map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &m); err != nil {
			t.Fatalf("unmarshal line %q: %v", scanner.Text(), err)
		}
		out = append(out, m)
	}
	return out
}

func TestSink_CreatesParentDirectory(t *testing.T) {
	_, path := openTestSink(t)
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Fatalf("parent dir not created: %v", err)
	}
}

func TestSink_AsyncLogPreservesOrder(t *testing.T) {
	s, path := openTestSink(t)
	s.Start()

	for i := 0; i < 50; i++ {
		s.AsyncLog(map[string]any{"seq": float64(i)})
	}
	s.Stop()

	lines := readLines(t, path)
	if len(lines) != 50 {
		t.Fatalf("len(lines) = %d, want 50", len(lines))
	}
	for i, m := range lines {
		if m["seq"] != float64(i) {
			t.Fatalf("line %d: seq = %v, want %d", i, m["seq"], i)
		}
	}
}

func TestSink_StopDrainsQueueBeforeReturning(t *testing.T) {
	s, path := openTestSink(t)
	s.Start()

	for i := 0; i < 10; i++ {
		s.AsyncLog(map[string]any{"seq": float64(i)})
	}
	s.Stop()

	lines := readLines(t, path)
	if len(lines) != 10 {
		t.Fatalf("len(lines) = %d, want 10, Stop returned before queue drained", len(lines))
	}
}

func TestSink_OverflowDropsOldest(t *testing.T) {
	s, _ := openTestSink(t)

	// fill the queue without a consumer running so nothing drains.
	for i := 0; i < queueCapacity+5; i++ {
		s.AsyncLog(map[string]any{"seq": float64(i)})
	}

	s.mu.Lock()
	n := len(s.queue)
	first := s.queue[0]["seq"]
	last := s.queue[n-1]["seq"]
	s.mu.Unlock()

	if n != queueCapacity {
		t.Fatalf("queue length = %d, want %d", n, queueCapacity)
	}
	if first != float64(5) {
		t.Errorf("oldest surviving record seq = %v, want 5 (first 5 dropped)", first)
	}
	if last != float64(queueCapacity+4) {
		t.Errorf("newest record seq = %v, want %d", last, queueCapacity+4)
	}
}

func TestSink_SyncLogBypassesQueue(t *testing.T) {
	s, path := openTestSink(t)
	// no Start(): nothing is draining the async queue.

	s.AsyncLog(map[string]any{"seq": float64(0)})
	s.SyncLog(map[string]any{"event_type": "monitoring_completed"})

	lines := readLines(t, path)
	if len(lines) != 1 {
		t.Fatalf("len(lines) = %d, want 1 (only the sync write)", len(lines))
	}
	if lines[0]["event_type"] != "monitoring_completed" {
		t.Errorf("lines[0] = %v, want the sync record", lines[0])
	}
}

func TestSink_StartIsIdempotent(t *testing.T) {
	s, path := openTestSink(t)
	s.Start()
	s.Start()

	s.AsyncLog(map[string]any{"seq": float64(1)})
	time.Sleep(20 * time.Millisecond)
	s.Stop()

	lines := readLines(t, path)
	if len(lines) != 1 {
		t.Fatalf("len(lines) = %d, want 1", len(lines))
	}
}

func TestSink_StopWithoutStart(t *testing.T) {
	s, _ := openTestSink(t)
	s.Stop() // must not block or panic
}

func TestSink_StopIsIdempotent(t *testing.T) {
	s, _ := openTestSink(t)
	s.Start()
	s.Stop()
	s.Stop() // must not block or panic
}
