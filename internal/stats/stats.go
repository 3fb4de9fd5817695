// Package stats implements the Statistics Aggregator: on
// shutdown it forces the in-progress session (if any) to finish, then folds
// the completed-session list into the monitoring_completed summary record,
// grounded on the aggregation pass in original_source's printStatistics.
package stats

import (
	"math"
	"sort"

	"github.com/nlmon/frr-converge/internal/record"
	"github.com/nlmon/frr-converge/internal/session"
)

// fastThresholdMs and mediumThresholdMs bucket convergence_time_ms:
// fast < 100ms, medium < 1000ms, slow otherwise.
const (
	fastThresholdMs   = 100
	mediumThresholdMs = 1000
)

// Engine is the narrow dependency the aggregator needs from the Session
// Engine: force-finish whatever is in progress, then read back everything
// completed, plus the counters for the global section of the summary.
type Engine interface {
	ForceFinishCurrent(now int64, reason string)
	CompletedSessions() []*session.Session
	Counters() session.Counters
}

// Sink is the narrow dependency needed from the Record Sink: the
// monitoring_completed record must go through the synchronous path so it is
// durable before the process exits.
type Sink interface {
	SyncLog(record map[string]any)
}

// ForceFinishReason is the stable ASCII label recorded on the final,
// force-finished session when shutdown interrupts an open measurement.
// original_source used "监听结束";  allows an ASCII equivalent.
const ForceFinishReason = "monitoring_stopped"

// Finalize force-finishes any open session, then computes and emits the
// monitoring_completed record. now is the wall clock at shutdown;
// startedAtMs is when monitoring began, used for total_listen_duration_ms.
func Finalize(engine Engine, sink Sink, routerName, monitorID, logFilePath string, quietPeriodMs, startedAtMs, now int64) {
	engine.ForceFinishCurrent(now, ForceFinishReason)

	completed := engine.CompletedSessions()
	counters := engine.Counters()

	r := record.BaseFields("monitoring_completed", routerName, monitorID)
	r["log_file_path"] = logFilePath
	r["listen_start_time"] = record.ISOTimestamp(startedAtMs)
	r["listen_end_time"] = record.ISOTimestamp(now)
	r["total_listen_duration_ms"] = now - startedAtMs
	r["total_listen_duration_seconds"] = float64(now-startedAtMs) / 1000.0
	r["convergence_threshold_ms"] = quietPeriodMs
	r["total_trigger_events"] = counters.TotalNetemTriggers + counters.TotalRouteTriggers
	r["netem_events_count"] = counters.TotalNetemTriggers
	r["route_events_in_trigger"] = counters.TotalRouteTriggers
	r["total_route_events"] = counters.TotalRouteEvents
	r["completed_sessions_count"] = len(completed)
	r["session_count"] = len(completed)
	r["extraction_timestamp"] = record.ISOTimestamp(now)
	r["extracted_by"] = "nlmon-frr-converge/" + monitorID

	sessionsList, convergenceTimes, eventCounts, durations, interfaces := summarizeSessions(completed, now)

	r["sessions_list"] = sessionsList
	r["interfaces_list"] = interfaces
	r["unique_interfaces"] = interfaces
	r["unique_interface_count"] = len(interfaces)
	r["convergence_times_list"] = convergenceTimes

	fast, medium, slow := bucketConvergence(convergenceTimes)
	r["fast_convergence_count"] = fast
	r["medium_convergence_count"] = medium
	r["slow_convergence_count"] = slow

	// Omit these fields entirely rather than writing nulls when there is no
	// data to summarize.
	if stat, ok := summarizeInt64(convergenceTimes); ok {
		r["fastest_convergence_ms"] = stat.min
		r["slowest_convergence_ms"] = stat.max
		r["avg_convergence_time_ms"] = stat.mean
		if stdDev, ok := sampleStdDev(convergenceTimes, stat.mean); ok {
			r["convergence_std_deviation_ms"] = stdDev
		}
	}
	if stat, ok := summarizeInt(eventCounts); ok {
		r["min_route_events_per_session"] = stat.min
		r["max_route_events_per_session"] = stat.max
		r["avg_route_events_per_session"] = stat.mean
	}
	if stat, ok := summarizeInt64(durations); ok {
		r["shortest_session_ms"] = stat.min
		r["longest_session_ms"] = stat.max
		r["avg_session_duration_ms"] = stat.mean
	}

	sink.SyncLog(r)
}

func summarizeSessions(completed []*session.Session, now int64) (sessionsList []map[string]any, convergenceTimes []int64, eventCounts []int, durations []int64, interfaces []string) {
	interfaceSet := make(map[string]struct{})

	for _, s := range completed {
		if s.ConvergenceMs != nil {
			convergenceTimes = append(convergenceTimes, *s.ConvergenceMs)
		}
		eventCounts = append(eventCounts, s.EventCount())
		durations = append(durations, s.DurationMs(now))

		if iface, ok := s.TriggerInfo["interface"]; ok && iface != "" {
			interfaceSet[iface] = struct{}{}
		}
		for _, ev := range s.Events {
			if iface, ok := ev.Attrs["interface"]; ok && iface != "" {
				interfaceSet[iface] = struct{}{}
			}
		}

		sessionsList = append(sessionsList, map[string]any{
			"session_id":          s.ID,
			"convergence_time_ms": s.ConvergenceMs,
			"route_events_count":  s.EventCount(),
			"session_duration_ms": s.DurationMs(now),
			"netem_info":          record.AttrsToMap(s.TriggerInfo),
		})
	}

	for iface := range interfaceSet {
		interfaces = append(interfaces, iface)
	}
	sort.Strings(interfaces)

	return sessionsList, convergenceTimes, eventCounts, durations, interfaces
}

func bucketConvergence(times []int64) (fast, medium, slow int) {
	for _, t := range times {
		switch {
		case t < fastThresholdMs:
			fast++
		case t < mediumThresholdMs:
			medium++
		default:
			slow++
		}
	}
	return fast, medium, slow
}

type int64Stat struct {
	min, max int64
	mean     float64
}

type intStat struct {
	min, max int
	mean     float64
}

func summarizeInt64(values []int64) (int64Stat, bool) {
	if len(values) == 0 {
		return int64Stat{}, false
	}
	sorted := append([]int64(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum int64
	for _, v := range sorted {
		sum += v
	}
	return int64Stat{
		min:  sorted[0],
		max:  sorted[len(sorted)-1],
		mean: float64(sum) / float64(len(sorted)),
	}, true
}

func summarizeInt(values []int) (intStat, bool) {
	if len(values) == 0 {
		return intStat{}, false
	}
	sorted := append([]int(nil), values...)
	sort.Ints(sorted)

	var sum int
	for _, v := range sorted {
		sum += v
	}
	return intStat{
		min:  sorted[0],
		max:  sorted[len(sorted)-1],
		mean: float64(sum) / float64(len(sorted)),
	}, true
}

// sampleStdDev is the n-1 sample standard deviation, reported only when
// n >= 2
func sampleStdDev(values []int64, mean float64) (float64, bool) {
	if len(values) < 2 {
		return 0, false
	}
	var variance float64
	for _, v := range values {
		d := float64(v) - mean
		variance += d * d
	}
	variance /= float64(len(values) - 1)
	return math.Sqrt(variance), true
}
