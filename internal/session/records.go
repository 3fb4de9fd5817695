package session

import (
	"github.com/nlmon/frr-converge/internal/events"
	"github.com/nlmon/frr-converge/internal/record"
)

func monitoringStartedRecord(routerName, monitorID string, quietPeriodMs int64, logFilePath string, startedAtMs int64) map[string]any {
	r := record.BaseFields("monitoring_started", routerName, monitorID)
	r["convergence_threshold_ms"] = quietPeriodMs
	r["log_file_path"] = logFilePath
	r["listen_start_time"] = record.ISOTimestamp(startedAtMs)
	return r
}

func sessionStartedRecord(routerName, monitorID string, sessionID int64, source TriggerSource, triggerEventType string, triggerInfo events.Attrs) map[string]any {
	r := record.BaseFields("session_started", routerName, monitorID)
	r["session_id"] = sessionID
	r["trigger_source"] = source.String()
	r["trigger_event_type"] = triggerEventType
	r["trigger_info"] = record.AttrsToMap(triggerInfo)
	return r
}

func netemDetectedRecord(routerName, monitorID string, ev events.QdiscEvent) map[string]any {
	r := record.BaseFields("netem_detected", routerName, monitorID)
	r["netem_event_type"] = ev.Kind.String()
	r["qdisc_info"] = record.AttrsToMap(ev.Attrs)
	return r
}

func routeEventRecord(routerName, monitorID string, sessionID int64, routeEventType string, routeEventNumber uint64, sessionEventNumber int, offsetMs int64, routeInfo events.Attrs) map[string]any {
	r := record.BaseFields("route_event", routerName, monitorID)
	r["session_id"] = sessionID
	r["route_event_type"] = routeEventType
	r["route_event_number"] = routeEventNumber
	r["session_event_number"] = sessionEventNumber
	r["offset_from_trigger_ms"] = offsetMs
	r["route_info"] = record.AttrsToMap(routeInfo)
	return r
}

func sessionCompletedRecord(routerName, monitorID string, s *Session, quietPeriodMs int64) map[string]any {
	r := record.BaseFields("session_completed", routerName, monitorID)
	r["session_id"] = s.ID
	r["convergence_time_ms"] = *s.ConvergenceMs
	r["route_events_count"] = s.eventCount()
	r["session_duration_ms"] = s.durationMs(*s.ConvergedAt)
	r["convergence_threshold_ms"] = quietPeriodMs
	r["netem_info"] = record.AttrsToMap(s.TriggerInfo)

	eventRecords := make([]map[string]any, 0, len(s.Events))
	for _, ev := range s.Events {
		eventRecords = append(eventRecords, map[string]any{
			"timestamp": record.ISOTimestamp(ev.Timestamp),
			"type":      ev.Label,
			"info":      record.AttrsToMap(ev.Attrs),
		})
	}
	r["route_events"] = eventRecords

	if s.ForceFinished {
		r["reason"] = s.ForceReason
		r["force_finished"] = true
	}
	return r
}
