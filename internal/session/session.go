package session

import (
	"github.com/nlmon/frr-converge/internal/events"
)

// TriggerSource tags what kind of event opened a session.
type TriggerSource int

const (
	TriggerNetem TriggerSource = iota
	TriggerRoute
)

func (s TriggerSource) String() string {
	if s == TriggerNetem {
		return "netem"
	}
	return "route"
}

// SessionEvent is one entry in a Session's ordered event log: either a
// RouteEvent or an in-session QdiscEvent relabeled
type SessionEvent struct {
	Timestamp int64
	Label     string
	Attrs     events.Attrs
}

// Session is one convergence measurement window. It is mutated only by the
// Session Engine while it is the Monitor's current session; once finalized
// it is read-only.
type Session struct {
	ID            int64
	TriggerTime   int64
	TriggerInfo   events.Attrs
	TriggerSource TriggerSource
	TriggerEvent  string
	Events        []SessionEvent
	LastEventTime *int64
	Converged     bool
	ConvergedAt   *int64
	ConvergenceMs *int64
	ForceFinished bool
	ForceReason   string
}

func newSession(id int64, triggerTime int64, triggerEvent string, triggerInfo events.Attrs, source TriggerSource) *Session {
	return &Session{
		ID:            id,
		TriggerTime:   triggerTime,
		TriggerInfo:   triggerInfo,
		TriggerSource: source,
		TriggerEvent:  triggerEvent,
		Events:        make([]SessionEvent, 0),
	}
}

// append records an in-session event, preserving non-decreasing timestamp
// order: the Session Engine is the only writer and it only ever calls this
// with events already ordered by arrival.
func (s *Session) append(timestamp int64, label string, attrs events.Attrs) {
	s.Events = append(s.Events, SessionEvent{Timestamp: timestamp, Label: label, Attrs: attrs})
	t := timestamp
	s.LastEventTime = &t
}

// eventCount returns the number of in-session events recorded so far.
func (s *Session) eventCount() int {
	return len(s.Events)
}

// EventCount is eventCount exported for the Statistics Aggregator, which
// lives in a separate package and only ever reads completed sessions.
func (s *Session) EventCount() int {
	return s.eventCount()
}

// DurationMs is durationMs exported for the Statistics Aggregator.
func (s *Session) DurationMs(now int64) int64 {
	return s.durationMs(now)
}

// checkConvergence is the pure function, applied to this
// session's own fields. It mutates Converged/ConvergedAt/ConvergenceMs when
// it returns true, and is idempotent: calling it again after convergence
// simply returns true again without recomputing.
func (s *Session) checkConvergence(now int64, quietPeriodMs int64) bool {
	if s.Converged {
		return true
	}

	if !isQuiet(now, s.TriggerTime, s.LastEventTime, quietPeriodMs) {
		return false
	}

	s.Converged = true
	detected := now
	s.ConvergedAt = &detected

	var convergenceMs int64
	if s.LastEventTime != nil {
		convergenceMs = *s.LastEventTime - s.TriggerTime
	}
	s.ConvergenceMs = &convergenceMs

	return true
}

// isQuiet implements the idle-time comparison:
//
//	idle_time = last_event_time.map_or(now - trigger_time, |t| now - t)
//	converged iff idle_time >= quiet_period_ms
func isQuiet(now, triggerTime int64, lastEventTime *int64, quietPeriodMs int64) bool {
	var idle int64
	if lastEventTime != nil {
		idle = now - *lastEventTime
	} else {
		idle = now - triggerTime
	}
	return idle >= quietPeriodMs
}

// durationMs returns the session's total wall-clock span: from trigger to
// the moment convergence was detected, or to now if still open.
func (s *Session) durationMs(now int64) int64 {
	if s.ConvergedAt != nil {
		return *s.ConvergedAt - s.TriggerTime
	}
	return now - s.TriggerTime
}
