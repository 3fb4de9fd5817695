// Package sink implements the Record Sink: a bounded queue
// decoupling the Session Engine from the append-only log stream, plus the
// synchronous path used for the one record that must be durable before the
// process exits.
package sink

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nlmon/frr-converge/pkg/logging"
)

// queueCapacity is the bounded queue size
const queueCapacity = 1000

// plainJSONFormatter writes each logrus entry as a bare JSON line with no
// level/time prefix — the same contract original_source's
// PlainJSONFormatter gives the downstream analyzer: one JSON object per
// line, nothing else. logrus.JSONFormatter already marshaled entry.Message
// won't double-encode; we pass the record's own json.Marshal output as the
// message so this formatter only needs to append the newline.
type plainJSONFormatter struct{}

func (plainJSONFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	return append([]byte(entry.Message), '\n'), nil
}

// Sink accepts record maps from the Session Engine and appends them, in
// order, to a durable stream. AsyncLog enqueues and returns immediately;
// SyncLog bypasses the queue for the terminal monitoring_completed record.
//
// The queue is a mutex-guarded ring, not a plain buffered channel, because
// the overflow policy is drop-oldest rather than the
// block-or-drop-newest behavior a channel gives for free.
type Sink struct {
	logger *logrus.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []map[string]any
	running bool

	consumerDone chan struct{}
}

// Open creates (or appends to) the log file at path with mode 0666 and
// returns a Sink ready to Start. If path's parent directory is missing it
// is created with mode 0755, A file-open failure falls back
// to stderr rather than failing startup — log write failure is not a
// startup failure
func Open(path string) (*Sink, error) {
	if err := ensureParentDir(path); err != nil {
		return nil, errors.Wrap(err, "create log directory")
	}

	var out io.Writer
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		logging.Errorf("cannot open log file %s, falling back to stderr: %v", path, err)
		out = os.Stderr
	} else {
		out = file
	}

	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetFormatter(plainJSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	s := &Sink{
		logger: logger,
		queue:  make([]map[string]any, 0, queueCapacity),
	}
	s.cond = sync.NewCond(&s.mu)
	return s, nil
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0755)
}

// Start launches the single consumer goroutine that drains the queue.
// Idempotent: a second call while running is a no-op.
func (s *Sink) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.consumerDone = make(chan struct{})
	s.mu.Unlock()

	go s.consume()
}

// Stop is the two-phase shutdown: flip running=false, signal
// the consumer, then join it. The consumer drains whatever remains in the
// queue before it exits.
func (s *Sink) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cond.Broadcast()
	done := s.consumerDone
	s.mu.Unlock()

	<-done
}

// AsyncLog enqueues record for delivery by the consumer goroutine and
// returns immediately. If the queue is already at capacity the oldest
// queued record is dropped and a warning is written to stderr. Ordering of
// records that do get through is preserved.
func (s *Sink) AsyncLog(record map[string]any) {
	s.mu.Lock()
	if len(s.queue) >= queueCapacity {
		s.queue = s.queue[1:]
		s.mu.Unlock()
		logging.Errorf("log queue full, dropped one record")
		s.mu.Lock()
	}
	s.queue = append(s.queue, record)
	s.cond.Signal()
	s.mu.Unlock()
}

// SyncLog writes record synchronously, bypassing the queue entirely, so it
// is durable before the caller proceeds — used only for the terminal
// monitoring_completed record.
func (s *Sink) SyncLog(record map[string]any) {
	s.write(record)
}

func (s *Sink) consume() {
	defer close(s.consumerDone)

	for {
		s.mu.Lock()
		for len(s.queue) == 0 && s.running {
			s.cond.Wait()
		}
		if len(s.queue) == 0 && !s.running {
			s.mu.Unlock()
			return
		}

		record := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.write(record)
	}
}

func (s *Sink) write(record map[string]any) {
	jsonBytes, err := json.Marshal(record)
	if err != nil {
		logging.Errorf("failed to marshal record, writing to stderr: %v", err)
		logging.Error(record)
		return
	}
	s.logger.Info(string(jsonBytes))
}
