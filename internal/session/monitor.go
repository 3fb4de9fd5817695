// Package session implements the quiet-period state machine described in
// : it classifies incoming kernel events as triggers or in-session
// events, enforces single-session semantics, decides convergence, and hands
// structured records to a Sink.
package session

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/nlmon/frr-converge/internal/events"
	"github.com/nlmon/frr-converge/pkg/logging"
)

// state is the Monitor's lifecycle state
type state int

const (
	stateIdle state = iota
	stateMonitoring
)

// Sink is the narrow dependency the Session Engine needs from the Record
// Sink: enqueue a record for asynchronous, ordered delivery. Everything the
// engine emits goes through this path — only the final monitoring_completed
// record (built by the Statistics Aggregator) uses the sink's sync path.
type Sink interface {
	AsyncLog(record map[string]any)
}

// Counters are the wraparound-free 64-bit counters They are
// read with atomic loads so callers (the metrics exporter) never need the
// session lock to sample them.
type Counters struct {
	TotalRouteEvents   uint64
	TotalNetemTriggers uint64
	TotalRouteTriggers uint64
}

// Monitor is the process-wide Session Engine singleton. Its state, current
// session, completed-session list, and counters form one logical resource
// guarded by mu, held only for the duration of state transitions — never
// across a call into Sink.
type Monitor struct {
	RouterName    string
	MonitorID     string
	QuietPeriodMs int64

	mu                sync.Mutex
	state             state
	current           *Session
	completed         []*Session
	sessionSeq        int64
	totalRouteEvents  atomic.Uint64
	totalNetemTrigger atomic.Uint64
	totalRouteTrigger atomic.Uint64

	ring *QdiscRingBuffer
	sink Sink
}

// New constructs a Monitor. quietPeriodMs is the convergence threshold; sink
// receives every session_started/netem_detected/route_event/session_completed
// record as it is produced.
func New(routerName string, quietPeriodMs int64, sink Sink) *Monitor {
	return &Monitor{
		RouterName:    routerName,
		MonitorID:     uuid.New().String(),
		QuietPeriodMs: quietPeriodMs,
		state:         stateIdle,
		ring:          NewQdiscRingBuffer(),
		sink:          sink,
	}
}

// Counters returns a point-in-time snapshot of the global counters.
func (m *Monitor) Counters() Counters {
	return Counters{
		TotalRouteEvents:   m.totalRouteEvents.Load(),
		TotalNetemTriggers: m.totalNetemTrigger.Load(),
		TotalRouteTriggers: m.totalRouteTrigger.Load(),
	}
}

// CurrentSessionID returns the active session's id and true, or (0, false)
// while Idle. Used by the metrics exporter's gauge, never for control flow.
func (m *Monitor) CurrentSessionID() (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return 0, false
	}
	return m.current.ID, true
}

// CompletedSessions returns a snapshot slice of completed sessions in the
// order they were finalized, for the Statistics Aggregator.
func (m *Monitor) CompletedSessions() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, len(m.completed))
	copy(out, m.completed)
	return out
}

// IngestRoute classifies a parsed route event as a trigger or an in-session
// event per the transition table, and always consumes it —
// route events are triggers in Idle state unconditionally.
func (m *Monitor) IngestRoute(ev events.RouteEvent) {
	label := ev.Kind.String()

	m.mu.Lock()
	if m.state == stateMonitoring && m.current != nil && !m.current.Converged {
		m.current.append(ev.Timestamp, label, ev.Attrs)
		sessionID := m.current.ID
		eventNumber := m.current.eventCount()
		triggerTime := m.current.TriggerTime
		m.mu.Unlock()

		routeNumber := m.totalRouteEvents.Add(1)
		m.emitRouteEvent(sessionID, label, routeNumber, eventNumber, ev.Timestamp-triggerTime, ev.Attrs)
		return
	}
	m.mu.Unlock()

	m.beginSession(ev.Timestamp, label, ev.Attrs, TriggerRoute)
}

// IngestQdisc applies the netem-recognition heuristic,
// drops anything that isn't netem-related, and otherwise dispatches exactly
// like IngestRoute.
func (m *Monitor) IngestQdisc(ev events.QdiscEvent) {
	m.ring.Push(ev)

	if !m.isNetemRelated(ev) {
		return
	}

	label := "netem_event(" + ev.Kind.String() + ")"

	m.mu.Lock()
	if m.state == stateMonitoring && m.current != nil && !m.current.Converged {
		sessionID := m.current.ID
		logging.Infof("ignoring new event: session #%d in progress", sessionID)

		m.current.append(ev.Timestamp, label, ev.Attrs)
		eventNumber := m.current.eventCount()
		triggerTime := m.current.TriggerTime
		m.mu.Unlock()

		m.emitNetemDetected(ev)
		routeNumber := m.totalRouteEvents.Add(1)
		m.emitRouteEvent(sessionID, label, routeNumber, eventNumber, ev.Timestamp-triggerTime, ev.Attrs)
		return
	}
	m.mu.Unlock()

	m.beginSession(ev.Timestamp, ev.Kind.String(), ev.Attrs, TriggerNetem)
	m.emitNetemDetected(ev)
}

// isNetemRelated implements the heuristic: the event's own
// is_netem flag, or — for deletes, which the kernel habitually sends without
// a kind attribute — a recent same-interface netem entry in the ring buffer.
func (m *Monitor) isNetemRelated(ev events.QdiscEvent) bool {
	if ev.IsNetem {
		return true
	}
	if ev.Kind == events.QdiscDel {
		return m.ring.HasRecentNetem(ev.Interface)
	}
	return false
}

// beginSession opens a new session when in Idle state. If a session is
// already in progress it is never promoted to a new trigger (the critical
// rule) — the caller has already verified that case before
// calling beginSession for the trigger path, but a second check is kept
// here so beginSession stays correct if called directly (e.g. from tests).
func (m *Monitor) beginSession(timestamp int64, triggerEventType string, triggerInfo events.Attrs, source TriggerSource) {
	m.mu.Lock()
	if m.state == stateMonitoring && m.current != nil && !m.current.Converged {
		sessionID := m.current.ID
		m.mu.Unlock()
		logging.Infof("ignoring new event: session #%d in progress", sessionID)
		return
	}

	m.sessionSeq++
	id := m.sessionSeq
	m.current = newSession(id, timestamp, triggerEventType, triggerInfo, source)
	m.state = stateMonitoring
	m.mu.Unlock()

	if source == TriggerNetem {
		m.totalNetemTrigger.Add(1)
	} else {
		m.totalRouteTrigger.Add(1)
	}

	logging.Infof("session #%d started (%s trigger: %s)", id, source, triggerEventType)
	m.sink.AsyncLog(sessionStartedRecord(m.RouterName, m.MonitorID, id, source, triggerEventType, triggerInfo))
}

// Tick asks the engine whether the current session has been quiet long
// enough to be declared converged. It takes its own lock and releases it
// before doing any sink I/O, so the ticker never blocks holding the session
// lock.
func (m *Monitor) Tick(now int64) {
	m.mu.Lock()
	if m.state != stateMonitoring || m.current == nil {
		m.mu.Unlock()
		return
	}

	if !m.current.checkConvergence(now, m.QuietPeriodMs) {
		m.mu.Unlock()
		return
	}

	finished := m.current
	m.completed = append(m.completed, finished)
	m.current = nil
	m.state = stateIdle
	m.mu.Unlock()

	logging.Infof("session #%d converged", finished.ID)
	m.sink.AsyncLog(sessionCompletedRecord(m.RouterName, m.MonitorID, finished, m.QuietPeriodMs))
}

// ForceFinishCurrent implements the force-finish path used
// on shutdown: if a session is in progress and not yet converged, it is
// finalized immediately with convergence_time_ms forced to whatever the
// pure convergence function would have produced for a zero quiet period,
// and the completion record carries reason.
func (m *Monitor) ForceFinishCurrent(now int64, reason string) {
	m.mu.Lock()
	if m.current == nil || m.current.Converged {
		m.mu.Unlock()
		return
	}

	m.current.checkConvergence(now, 0)
	m.current.ForceFinished = true
	m.current.ForceReason = reason

	finished := m.current
	m.completed = append(m.completed, finished)
	m.current = nil
	m.state = stateIdle
	m.mu.Unlock()

	logging.Infof("session #%d force-finished: %s", finished.ID, reason)
	m.sink.AsyncLog(sessionCompletedRecord(m.RouterName, m.MonitorID, finished, m.QuietPeriodMs))
}

// EmitMonitoringStarted logs the first record in the stream. Callers emit
// it once, immediately after constructing the Monitor and before any
// subscriber goroutine can deliver an event, so it is guaranteed to precede
// everything else
func (m *Monitor) EmitMonitoringStarted(logFilePath string, startedAtMs int64) {
	m.sink.AsyncLog(monitoringStartedRecord(m.RouterName, m.MonitorID, m.QuietPeriodMs, logFilePath, startedAtMs))
}

func (m *Monitor) emitNetemDetected(ev events.QdiscEvent) {
	m.sink.AsyncLog(netemDetectedRecord(m.RouterName, m.MonitorID, ev))
}

func (m *Monitor) emitRouteEvent(sessionID int64, routeEventType string, routeEventNumber uint64, sessionEventNumber int, offsetMs int64, attrs events.Attrs) {
	m.sink.AsyncLog(routeEventRecord(m.RouterName, m.MonitorID, sessionID, routeEventType, routeEventNumber, sessionEventNumber, offsetMs, attrs))
}
